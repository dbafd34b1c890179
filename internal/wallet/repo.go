package wallet

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/Skotchmaster/marketfeed/internal/apperr"
	"github.com/Skotchmaster/marketfeed/internal/models"
)

type PurchaseRow struct {
	ID            uint            `json:"id"`
	ProductID     uint            `json:"product_id"`
	PricePaid     decimal.Decimal `json:"price_paid"`
	DownloadCount int             `json:"download_count"`
	CreatedAt     time.Time       `json:"created_at"`
	Title         *string         `json:"title"`
	Slug          *string         `json:"slug"`
	Thumbnail     *string         `json:"thumbnail"`
	IsArchived    bool            `json:"is_archived"`
}

type DepositRow struct {
	models.DepositRequest
	UserEmail    string `json:"user_email"`
	UserFullName string `json:"user_full_name"`
}

type GormRepo struct {
	DB *gorm.DB
}

func (r *GormRepo) Transactions(ctx context.Context, userID uint, offset, limit int) ([]models.Transaction, int64, error) {
	db := r.DB.WithContext(ctx).Model(&models.Transaction{}).Where("user_id = ?", userID).Session(&gorm.Session{})
	var total int64
	if err := db.Count(&total).Error; err != nil {
		return nil, 0, apperr.FromStore(fmt.Errorf("count transactions: %w", err))
	}
	var rows []models.Transaction
	if err := db.Order("created_at DESC, id DESC").Offset(offset).Limit(limit).Find(&rows).Error; err != nil {
		return nil, 0, apperr.FromStore(fmt.Errorf("list transactions: %w", err))
	}
	return rows, total, nil
}

func (r *GormRepo) DepositRequests(ctx context.Context, userID uint) ([]models.DepositRequest, error) {
	var rows []models.DepositRequest
	if err := r.DB.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at DESC, id DESC").
		Find(&rows).Error; err != nil {
		return nil, apperr.FromStore(fmt.Errorf("list deposit requests: %w", err))
	}
	return rows, nil
}

func (r *GormRepo) AllDepositRequests(ctx context.Context, status string, offset, limit int) ([]DepositRow, int64, error) {
	q := r.DB.WithContext(ctx).Table("deposit_requests d")
	if status != "" {
		q = q.Where("d.status = ?", status)
	}
	q = q.Session(&gorm.Session{})
	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, apperr.FromStore(fmt.Errorf("count deposit requests: %w", err))
	}
	var rows []DepositRow
	if err := q.Select("d.*, u.email AS user_email, u.full_name AS user_full_name").
		Joins("LEFT JOIN users u ON u.id = d.user_id").
		Order("d.created_at DESC, d.id DESC").
		Offset(offset).Limit(limit).
		Scan(&rows).Error; err != nil {
		return nil, 0, apperr.FromStore(fmt.Errorf("list deposit requests: %w", err))
	}
	return rows, total, nil
}

func (r *GormRepo) CreateDepositRequest(ctx context.Context, d *models.DepositRequest) error {
	if err := r.DB.WithContext(ctx).Create(d).Error; err != nil {
		return apperr.FromStore(fmt.Errorf("create deposit request: %w", err))
	}
	return nil
}

func (r *GormRepo) Purchases(ctx context.Context, userID uint, offset, limit int) ([]PurchaseRow, int64, error) {
	db := r.DB.WithContext(ctx)
	var total int64
	if err := db.Model(&models.Purchase{}).Where("user_id = ?", userID).Count(&total).Error; err != nil {
		return nil, 0, apperr.FromStore(fmt.Errorf("count purchases: %w", err))
	}
	var rows []PurchaseRow
	if err := db.Table("purchases pu").
		Select(`pu.id, pu.product_id, pu.price_paid, pu.download_count, pu.created_at,
			pr.title, pr.slug, pr.thumbnail`).
		Joins("LEFT JOIN products pr ON pr.id = pu.product_id").
		Where("pu.user_id = ?", userID).
		Order("pu.created_at DESC, pu.id DESC").
		Offset(offset).Limit(limit).
		Scan(&rows).Error; err != nil {
		return nil, 0, apperr.FromStore(fmt.Errorf("list purchases: %w", err))
	}
	return rows, total, nil
}
