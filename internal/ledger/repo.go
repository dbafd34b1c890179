package ledger

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/Skotchmaster/marketfeed/internal/apperr"
	"github.com/Skotchmaster/marketfeed/internal/models"
)

// TxSale is the seller-side entry of a purchase. Without it the seller's
// balance could not be replayed from the transaction log.
const TxSale = "sale"

type GormRepo struct {
	DB *gorm.DB
}

type PurchaseResult struct {
	PurchaseID uint
	ProductID  uint
	SellerID   uint
	Title      string
	Price      decimal.Decimal
	NewBalance decimal.Decimal
}

var forUpdate = clause.Locking{Strength: "UPDATE"}

// ResolveProductID accepts a numeric id or a slug.
func (r *GormRepo) ResolveProductID(ctx context.Context, ident string) (uint, error) {
	if id, err := strconv.ParseUint(ident, 10, 64); err == nil && id > 0 {
		return uint(id), nil
	}
	var p models.Product
	err := r.DB.WithContext(ctx).Select("id").Where("slug = ?", ident).First(&p).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return 0, apperr.New(apperr.KindNotFound, "product not found")
	}
	if err != nil {
		return 0, apperr.FromStore(err)
	}
	return p.ID, nil
}

func (r *GormRepo) Purchase(ctx context.Context, buyerID, productID uint) (*PurchaseResult, error) {
	var res PurchaseResult

	err := r.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var existing int64
		if err := tx.Model(&models.Purchase{}).
			Where("user_id = ? AND product_id = ?", buyerID, productID).
			Count(&existing).Error; err != nil {
			return err
		}
		if existing > 0 {
			return apperr.New(apperr.KindConflict, "product already purchased")
		}

		var product models.Product
		if err := tx.Clauses(forUpdate).First(&product, productID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return apperr.New(apperr.KindNotFound, "product not found")
			}
			return err
		}
		if product.Status != models.StatusActive {
			return apperr.New(apperr.KindInvalidState, "product is not available for purchase")
		}

		balances, err := lockUsers(tx, buyerID, product.SellerID)
		if err != nil {
			return err
		}
		buyerBefore, ok := balances[buyerID]
		if !ok {
			return apperr.New(apperr.KindNotFound, "user not found")
		}
		if _, ok := balances[product.SellerID]; !ok {
			return apperr.New(apperr.KindInvalidState, "product seller no longer exists")
		}
		price := product.Price
		if buyerBefore.LessThan(price) {
			return apperr.New(apperr.KindInsufficientFunds, "insufficient balance")
		}

		ref := product.ID
		buyerAfter := buyerBefore.Sub(price)
		balances[buyerID] = buyerAfter
		sellerBefore := balances[product.SellerID]
		sellerAfter := sellerBefore.Add(price)
		balances[product.SellerID] = sellerAfter

		if err := setBalance(tx, buyerID, buyerAfter); err != nil {
			return err
		}
		if err := setBalance(tx, product.SellerID, sellerAfter); err != nil {
			return err
		}

		purchase := models.Purchase{UserID: buyerID, ProductID: product.ID, PricePaid: price}
		if err := tx.Create(&purchase).Error; err != nil {
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				return apperr.New(apperr.KindConflict, "product already purchased")
			}
			return err
		}

		entries := []models.Transaction{
			{
				UserID:        buyerID,
				Type:          models.TxPurchase,
				Amount:        price.Neg(),
				BalanceBefore: buyerBefore,
				BalanceAfter:  buyerAfter,
				Description:   "Purchase: " + product.Title,
				ReferenceID:   &ref,
			},
			{
				UserID:        product.SellerID,
				Type:          TxSale,
				Amount:        price,
				BalanceBefore: sellerBefore,
				BalanceAfter:  sellerAfter,
				Description:   "Sale: " + product.Title,
				ReferenceID:   &ref,
			},
		}
		if err := tx.Create(&entries).Error; err != nil {
			return err
		}

		upd := tx.Model(&models.Product{}).Where("id = ?", product.ID).
			UpdateColumn("purchase_count", gorm.Expr("purchase_count + ?", 1))
		if upd.Error != nil {
			return upd.Error
		}
		if upd.RowsAffected == 0 {
			return gorm.ErrRecordNotFound
		}

		if err := addRevenue(tx, price); err != nil {
			return err
		}

		res = PurchaseResult{
			PurchaseID: purchase.ID,
			ProductID:  product.ID,
			SellerID:   product.SellerID,
			Title:      product.Title,
			Price:      price,
			NewBalance: buyerAfter,
		}
		return nil
	})
	if err != nil {
		return nil, apperr.FromStore(err)
	}
	return &res, nil
}

type DepositDecision struct {
	RequestID  uint
	UserID     uint
	Status     string
	Amount     decimal.Decimal
	NewBalance decimal.Decimal
}

// DecideDeposit moves a pending request to approved or rejected. The status
// guard in the UPDATE makes the transition itself the point of mutual
// exclusion; the preceding read only produces a friendlier error.
func (r *GormRepo) DecideDeposit(ctx context.Context, requestID, adminID uint, approve bool, note string) (*DepositDecision, error) {
	var out DepositDecision

	err := r.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var req models.DepositRequest
		if err := tx.Clauses(forUpdate).First(&req, requestID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return apperr.New(apperr.KindNotFound, "deposit request not found")
			}
			return err
		}
		if req.Status != models.DepositPending {
			return apperr.New(apperr.KindConflict, "request already processed")
		}
		if approve && !req.Amount.IsPositive() {
			return apperr.New(apperr.KindInvalidState, "invalid deposit amount")
		}

		status := models.DepositRejected
		if approve {
			status = models.DepositApproved
		}
		now := time.Now().UTC()
		upd := tx.Model(&models.DepositRequest{}).
			Where("id = ? AND status = ?", req.ID, models.DepositPending).
			Updates(map[string]any{
				"status":       status,
				"admin_note":   note,
				"approved_by":  adminID,
				"processed_at": now,
			})
		if upd.Error != nil {
			return upd.Error
		}
		if upd.RowsAffected == 0 {
			return apperr.New(apperr.KindConflict, "request already processed")
		}

		out = DepositDecision{RequestID: req.ID, UserID: req.UserID, Status: status, Amount: req.Amount}
		if !approve {
			return nil
		}

		balances, err := lockUsers(tx, req.UserID)
		if err != nil {
			return err
		}
		before, ok := balances[req.UserID]
		if !ok {
			return apperr.New(apperr.KindNotFound, "user not found")
		}
		after := before.Add(req.Amount)
		if err := setBalance(tx, req.UserID, after); err != nil {
			return err
		}
		ref := req.ID
		if err := tx.Create(&models.Transaction{
			UserID:        req.UserID,
			Type:          models.TxDeposit,
			Amount:        req.Amount,
			BalanceBefore: before,
			BalanceAfter:  after,
			Description:   "Deposit approved",
			ReferenceID:   &ref,
		}).Error; err != nil {
			return err
		}
		out.NewBalance = after
		return nil
	})
	if err != nil {
		return nil, apperr.FromStore(err)
	}
	return &out, nil
}

func (r *GormRepo) AdjustBalance(ctx context.Context, userID uint, amount decimal.Decimal, description string) (decimal.Decimal, error) {
	var after decimal.Decimal

	err := r.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		balances, err := lockUsers(tx, userID)
		if err != nil {
			return err
		}
		before, ok := balances[userID]
		if !ok {
			return apperr.New(apperr.KindNotFound, "user not found")
		}
		after = before.Add(amount)
		if after.IsNegative() {
			return apperr.New(apperr.KindInsufficientFunds, "balance cannot become negative")
		}
		if err := setBalance(tx, userID, after); err != nil {
			return err
		}
		return tx.Create(&models.Transaction{
			UserID:        userID,
			Type:          models.TxAdminAdjust,
			Amount:        amount,
			BalanceBefore: before,
			BalanceAfter:  after,
			Description:   description,
		}).Error
	})
	if err != nil {
		return decimal.Zero, apperr.FromStore(err)
	}
	return after, nil
}

func (r *GormRepo) Revenue(ctx context.Context) (decimal.Decimal, error) {
	var s models.SystemSetting
	err := r.DB.WithContext(ctx).Where(map[string]any{"key": models.SettingTotalRevenue}).First(&s).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return decimal.Zero, nil
	}
	if err != nil {
		return decimal.Zero, apperr.FromStore(err)
	}
	return parseAmount(s.Value)
}

func (r *GormRepo) ResetRevenue(ctx context.Context) error {
	err := r.DB.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "key"}},
		DoUpdates: clause.AssignmentColumns([]string{"value", "updated_at"}),
	}).Create(&models.SystemSetting{Key: models.SettingTotalRevenue, Value: "0"}).Error
	return apperr.FromStore(err)
}

// lockUsers locks the given users in ascending id order and returns their
// balances. Missing users are absent from the map.
func lockUsers(tx *gorm.DB, ids ...uint) (map[uint]decimal.Decimal, error) {
	uniq := make([]uint, 0, len(ids))
	seen := map[uint]bool{}
	for _, id := range ids {
		if !seen[id] {
			seen[id] = true
			uniq = append(uniq, id)
		}
	}
	sort.Slice(uniq, func(i, j int) bool { return uniq[i] < uniq[j] })

	var users []models.User
	if err := tx.Clauses(forUpdate).
		Select("id", "balance").
		Where("id IN ?", uniq).
		Order("id").
		Find(&users).Error; err != nil {
		return nil, err
	}
	out := make(map[uint]decimal.Decimal, len(users))
	for _, u := range users {
		out[u.ID] = u.Balance
	}
	return out, nil
}

func setBalance(tx *gorm.DB, userID uint, balance decimal.Decimal) error {
	res := tx.Model(&models.User{}).Where("id = ?", userID).UpdateColumn("balance", balance)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("update balance of user %d: %w", userID, gorm.ErrRecordNotFound)
	}
	return nil
}

func addRevenue(tx *gorm.DB, amount decimal.Decimal) error {
	if err := tx.Clauses(clause.OnConflict{DoNothing: true}).
		Create(&models.SystemSetting{Key: models.SettingTotalRevenue, Value: "0"}).Error; err != nil {
		return err
	}
	var s models.SystemSetting
	if err := tx.Clauses(forUpdate).Where(map[string]any{"key": models.SettingTotalRevenue}).First(&s).Error; err != nil {
		return err
	}
	total, err := parseAmount(s.Value)
	if err != nil {
		return err
	}
	return tx.Model(&models.SystemSetting{}).
		Where(map[string]any{"key": models.SettingTotalRevenue}).
		Updates(map[string]any{"value": total.Add(amount).String(), "updated_at": time.Now().UTC()}).Error
}

func parseAmount(s string) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, apperr.Wrap(apperr.KindInvalidState, "stored revenue total is corrupt", err)
	}
	return d, nil
}
