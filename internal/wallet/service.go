// Package wallet is the read side of the ledger plus deposit request intake.
package wallet

import (
	"context"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/Skotchmaster/marketfeed/internal/apperr"
	"github.com/Skotchmaster/marketfeed/internal/archive"
	"github.com/Skotchmaster/marketfeed/internal/models"
	"github.com/Skotchmaster/marketfeed/internal/notify"
	"github.com/Skotchmaster/marketfeed/pkg/util"
)

const defaultLimit = 20

type Archive interface {
	Envelope(ctx context.Context) (*archive.Envelope, error)
}

type Notifier interface {
	Enqueue(ev notify.Event) bool
}

type DepositInput struct {
	Amount        decimal.Decimal
	PaymentMethod string
	PaymentProof  string
}

type TransactionPage struct {
	Transactions []models.Transaction `json:"transactions"`
	Pagination   util.Pagination      `json:"pagination"`
}

type PurchasePage struct {
	Purchases  []PurchaseRow   `json:"purchases"`
	Pagination util.Pagination `json:"pagination"`
}

type DepositPage struct {
	Requests   []DepositRow    `json:"requests"`
	Pagination util.Pagination `json:"pagination"`
}

type WalletService struct {
	Repo     *GormRepo
	Archive  Archive
	Notifier Notifier
}

func page(p, l int) (util.Pagination, int) {
	p, l = util.Normalize(p, l, defaultLimit)
	from, _ := util.Calculate(p, l)
	return util.Pagination{Page: p, Limit: l}, from
}

func finish(meta util.Pagination, total int64) util.Pagination {
	meta.Total = int(total)
	meta.TotalPages = util.TotalPages(meta.Total, meta.Limit)
	return meta
}

func (s *WalletService) Transactions(ctx context.Context, userID uint, p, l int) (*TransactionPage, error) {
	meta, from := page(p, l)
	rows, total, err := s.Repo.Transactions(ctx, userID, from, meta.Limit)
	if err != nil {
		return nil, err
	}
	if rows == nil {
		rows = []models.Transaction{}
	}
	return &TransactionPage{Transactions: rows, Pagination: finish(meta, total)}, nil
}

func (s *WalletService) DepositRequests(ctx context.Context, userID uint) ([]models.DepositRequest, error) {
	rows, err := s.Repo.DepositRequests(ctx, userID)
	if err != nil {
		return nil, err
	}
	if rows == nil {
		rows = []models.DepositRequest{}
	}
	return rows, nil
}

func (s *WalletService) CreateDepositRequest(ctx context.Context, userID uint, in DepositInput) (*models.DepositRequest, error) {
	if !in.Amount.IsPositive() {
		return nil, apperr.New(apperr.KindValidation, "Invalid amount")
	}
	d := &models.DepositRequest{
		UserID:        userID,
		Amount:        in.Amount.Round(2),
		PaymentMethod: strings.TrimSpace(in.PaymentMethod),
		PaymentProof:  strings.TrimSpace(in.PaymentProof),
		Status:        models.DepositPending,
	}
	if err := s.Repo.CreateDepositRequest(ctx, d); err != nil {
		return nil, err
	}
	if s.Notifier != nil {
		s.Notifier.Enqueue(notify.Event{
			Kind:    notify.KindDeposit,
			Title:   "New deposit request",
			Content: d.Amount.StringFixed(2),
			Meta:    map[string]any{"request_id": d.ID, "user_id": userID},
		})
	}
	return d, nil
}

func (s *WalletService) AllDepositRequests(ctx context.Context, status string, p, l int) (*DepositPage, error) {
	switch status {
	case "", models.DepositPending, models.DepositApproved, models.DepositRejected:
	default:
		return nil, apperr.Newf(apperr.KindValidation, "invalid status %q", status)
	}
	meta, from := page(p, l)
	rows, total, err := s.Repo.AllDepositRequests(ctx, status, from, meta.Limit)
	if err != nil {
		return nil, err
	}
	if rows == nil {
		rows = []DepositRow{}
	}
	return &DepositPage{Requests: rows, Pagination: finish(meta, total)}, nil
}

// Purchases fills in the display fields of purchases whose product has been
// archived, since the live join finds nothing for them.
func (s *WalletService) Purchases(ctx context.Context, userID uint, p, l int) (*PurchasePage, error) {
	meta, from := page(p, l)
	rows, total, err := s.Repo.Purchases(ctx, userID, from, meta.Limit)
	if err != nil {
		return nil, err
	}
	if rows == nil {
		rows = []PurchaseRow{}
	}

	var env *archive.Envelope
	for i := range rows {
		if rows[i].Title != nil {
			continue
		}
		if env == nil {
			if env, err = s.Archive.Envelope(ctx); err != nil {
				return nil, err
			}
		}
		if ap, ok := env.FindProduct("", rows[i].ProductID); ok {
			rows[i].Title = &ap.Title
			rows[i].Slug = &ap.Slug
			rows[i].Thumbnail = &ap.Thumbnail
			rows[i].IsArchived = true
		}
	}
	return &PurchasePage{Purchases: rows, Pagination: finish(meta, total)}, nil
}
