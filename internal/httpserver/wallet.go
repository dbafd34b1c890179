package httpserver

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/shopspring/decimal"

	"github.com/Skotchmaster/marketfeed/internal/auth"
	"github.com/Skotchmaster/marketfeed/internal/wallet"
	"github.com/Skotchmaster/marketfeed/pkg/logging"
)

type WalletHTTP struct {
	Svc  *wallet.WalletService
	Auth *auth.AuthService
}

type depositRequest struct {
	Amount        decimal.Decimal `json:"amount"`
	PaymentMethod string          `json:"payment_method" validate:"max=64"`
	PaymentProof  string          `json:"payment_proof" validate:"max=1024"`
}

func (h *WalletHTTP) Balance(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "wallet_balance")

	u, err := h.Auth.Me(ctx, viewerID(c))
	if err != nil {
		return fail(l, "balance_error", err)
	}
	return ok(c, echo.Map{"balance": u.Balance})
}

func (h *WalletHTTP) Transactions(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "wallet_transactions")

	res, err := h.Svc.Transactions(ctx, viewerID(c), queryInt(c, "page", 1), queryInt(c, "limit", 0))
	if err != nil {
		return fail(l, "transactions_error", err)
	}
	return ok(c, res)
}

func (h *WalletHTTP) DepositRequests(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "wallet_deposit_requests")

	rows, err := h.Svc.DepositRequests(ctx, viewerID(c))
	if err != nil {
		return fail(l, "deposit_requests_error", err)
	}
	return ok(c, rows)
}

func (h *WalletHTTP) CreateDepositRequest(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "wallet_create_deposit")

	var req depositRequest
	if err := bind(c, &req); err != nil {
		return fail(l, "deposit_request_error", err)
	}
	d, err := h.Svc.CreateDepositRequest(ctx, viewerID(c), wallet.DepositInput{
		Amount:        req.Amount,
		PaymentMethod: req.PaymentMethod,
		PaymentProof:  req.PaymentProof,
	})
	if err != nil {
		return fail(l, "deposit_request_error", err)
	}
	return c.JSON(http.StatusCreated, envelope{Success: true, Message: "Deposit request created", Data: d})
}

func (h *WalletHTTP) Purchases(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "wallet_purchases")

	res, err := h.Svc.Purchases(ctx, viewerID(c), queryInt(c, "page", 1), queryInt(c, "limit", 0))
	if err != nil {
		return fail(l, "purchases_error", err)
	}
	return ok(c, res)
}
