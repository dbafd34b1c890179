package ledger

import (
	"context"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/Skotchmaster/marketfeed/internal/apperr"
	"github.com/Skotchmaster/marketfeed/pkg/logging"
	"github.com/Skotchmaster/marketfeed/pkg/metrics"
)

// BackupTrigger schedules a best-effort full backup. It must not block.
type BackupTrigger interface {
	Enqueue(reason string, meta map[string]any)
}

type LedgerService struct {
	Repo    *GormRepo
	Backup  BackupTrigger
	Metrics *metrics.Metrics
}

func (s *LedgerService) Purchase(ctx context.Context, buyerID uint, productIdent string) (*PurchaseResult, error) {
	l := logging.FromContext(ctx).With("svc", "ledger.purchase", "buyer_id", buyerID)

	productIdent = strings.TrimSpace(productIdent)
	if productIdent == "" {
		return nil, apperr.New(apperr.KindValidation, "product id is required")
	}

	productID, err := s.Repo.ResolveProductID(ctx, productIdent)
	if err != nil {
		s.Metrics.Purchase(string(apperr.KindOf(err)), 0)
		return nil, fmt.Errorf("resolve product: %w", err)
	}

	res, err := s.Repo.Purchase(ctx, buyerID, productID)
	if err != nil {
		s.Metrics.Purchase(outcome(err), 0)
		return nil, fmt.Errorf("purchase product %d: %w", productID, err)
	}

	price, _ := res.Price.Float64()
	s.Metrics.Purchase("ok", price)
	l.Info("purchase_committed", "product_id", res.ProductID, "price", res.Price.String(), "new_balance", res.NewBalance.String())

	if s.Backup != nil {
		s.Backup.Enqueue("purchase", map[string]any{"user_id": buyerID, "product_id": res.ProductID})
	}
	return res, nil
}

func (s *LedgerService) DecideDeposit(ctx context.Context, requestID, adminID uint, approve bool, note string) (*DepositDecision, error) {
	l := logging.FromContext(ctx).With("svc", "ledger.decide_deposit", "request_id", requestID, "admin_id", adminID)

	d, err := s.Repo.DecideDeposit(ctx, requestID, adminID, approve, strings.TrimSpace(note))
	if err != nil {
		return nil, fmt.Errorf("decide deposit %d: %w", requestID, err)
	}

	s.Metrics.DepositDecided(d.Status)
	l.Info("deposit_decided", "status", d.Status, "amount", d.Amount.String())
	return d, nil
}

func (s *LedgerService) AdjustBalance(ctx context.Context, userID uint, amount decimal.Decimal, description string) (decimal.Decimal, error) {
	if userID == 0 {
		return decimal.Zero, apperr.New(apperr.KindValidation, "user_id is required")
	}
	if amount.IsZero() {
		return decimal.Zero, apperr.New(apperr.KindValidation, "amount must be non-zero")
	}
	description = strings.TrimSpace(description)
	if description == "" {
		description = "Admin adjustment"
	}

	after, err := s.Repo.AdjustBalance(ctx, userID, amount, description)
	if err != nil {
		return decimal.Zero, fmt.Errorf("adjust balance of user %d: %w", userID, err)
	}
	logging.FromContext(ctx).Info("balance_adjusted", "user_id", userID, "amount", amount.String(), "new_balance", after.String())
	return after, nil
}

func (s *LedgerService) Revenue(ctx context.Context) (decimal.Decimal, error) {
	return s.Repo.Revenue(ctx)
}

func (s *LedgerService) ResetRevenue(ctx context.Context) error {
	if err := s.Repo.ResetRevenue(ctx); err != nil {
		return fmt.Errorf("reset revenue: %w", err)
	}
	logging.FromContext(ctx).Info("revenue_reset")
	return nil
}

func outcome(err error) string {
	if k := apperr.KindOf(err); k != "" {
		return string(k)
	}
	return "error"
}
