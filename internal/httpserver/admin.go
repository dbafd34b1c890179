package httpserver

import (
	"context"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"
	"github.com/shopspring/decimal"

	"github.com/Skotchmaster/marketfeed/internal/activity"
	"github.com/Skotchmaster/marketfeed/internal/archive"
	"github.com/Skotchmaster/marketfeed/internal/backup"
	"github.com/Skotchmaster/marketfeed/internal/catalog"
	"github.com/Skotchmaster/marketfeed/internal/ledger"
	"github.com/Skotchmaster/marketfeed/internal/notify"
	"github.com/Skotchmaster/marketfeed/internal/people"
	"github.com/Skotchmaster/marketfeed/internal/settings"
	"github.com/Skotchmaster/marketfeed/internal/wallet"
	"github.com/Skotchmaster/marketfeed/pkg/logging"
)

type BackupQueue interface {
	Enqueue(reason string, meta map[string]any)
}

type BackupExporter interface {
	Export(ctx context.Context) (*backup.Dump, error)
}

type AdminHTTP struct {
	Ledger        *ledger.LedgerService
	Wallet        *wallet.WalletService
	Catalog       *catalog.CatalogService
	People        *people.PeopleService
	Settings      *settings.SettingsService
	Notifications *notify.NotificationService
	Archive       *archive.ArchiveService
	Backup        BackupQueue
	Exporter      BackupExporter
	Activity      *activity.Log
}

type decideDepositRequest struct {
	Approve   *bool  `json:"approve" validate:"required"`
	AdminNote string `json:"admin_note" validate:"max=1000"`
}

type adjustRequest struct {
	UserID      uint            `json:"user_id" validate:"required"`
	Amount      decimal.Decimal `json:"amount"`
	Description string          `json:"description" validate:"max=255"`
}

type statusRequest struct {
	Status string `json:"status" validate:"required"`
}

type roleRequest struct {
	Role string `json:"role" validate:"required"`
}

type settingRequest struct {
	Value string `json:"value"`
}

type notificationRequest struct {
	Title        string `json:"title" validate:"required,max=255"`
	Content      string `json:"content" validate:"max=5000"`
	ImageURL     string `json:"image_url" validate:"omitempty,url"`
	TargetUserID *uint  `json:"target_user_id"`
}

func (h *AdminHTTP) DecideDeposit(c echo.Context) error {
	ctx := c.Request().Context()
	admin := viewerID(c)
	l := logging.FromContext(ctx).With("handler", "admin_decide_deposit", "admin_id", admin)

	id, err := parseID(c, "id")
	if err != nil {
		return fail(l, "deposit_decide_error", err)
	}
	var req decideDepositRequest
	if err := bind(c, &req); err != nil {
		return fail(l, "deposit_decide_error", err)
	}
	d, err := h.Ledger.DecideDeposit(ctx, id, admin, *req.Approve, req.AdminNote)
	if err != nil {
		return fail(l, "deposit_decide_error", err)
	}
	msg := "Deposit request rejected"
	if *req.Approve {
		msg = "Deposit request approved"
	}
	return okMsg(c, msg, echo.Map{"request_id": d.RequestID, "status": d.Status, "newBalance": d.NewBalance})
}

func (h *AdminHTTP) DepositRequests(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "admin_deposit_requests")

	res, err := h.Wallet.AllDepositRequests(ctx, c.QueryParam("status"), queryInt(c, "page", 1), queryInt(c, "limit", 0))
	if err != nil {
		return fail(l, "deposit_requests_error", err)
	}
	return ok(c, res)
}

func (h *AdminHTTP) AdjustBalance(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "admin_adjust_balance", "admin_id", viewerID(c))

	var req adjustRequest
	if err := bind(c, &req); err != nil {
		return fail(l, "adjust_balance_error", err)
	}
	after, err := h.Ledger.AdjustBalance(ctx, req.UserID, req.Amount, req.Description)
	if err != nil {
		return fail(l, "adjust_balance_error", err)
	}
	return okMsg(c, "Balance adjusted", echo.Map{"newBalance": after})
}

func (h *AdminHTTP) Revenue(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "admin_revenue")

	rev, err := h.Ledger.Revenue(ctx)
	if err != nil {
		return fail(l, "revenue_error", err)
	}
	return ok(c, echo.Map{"total_revenue": rev})
}

func (h *AdminHTTP) ResetRevenue(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "admin_reset_revenue", "admin_id", viewerID(c))

	if err := h.Ledger.ResetRevenue(ctx); err != nil {
		return fail(l, "revenue_reset_error", err)
	}
	return okMsg(c, "Revenue reset", echo.Map{"total_revenue": decimal.Zero})
}

func (h *AdminHTTP) ProductStatus(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "admin_product_status")

	id, err := parseID(c, "id")
	if err != nil {
		return fail(l, "product_status_error", err)
	}
	var req statusRequest
	if err := bind(c, &req); err != nil {
		return fail(l, "product_status_error", err)
	}
	if err := h.Catalog.SetStatus(ctx, id, req.Status); err != nil {
		return fail(l, "product_status_error", err)
	}
	return okMsg(c, "Product status updated", nil)
}

func (h *AdminHTTP) UserStatus(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "admin_user_status")

	id, err := parseID(c, "id")
	if err != nil {
		return fail(l, "user_status_error", err)
	}
	var req statusRequest
	if err := bind(c, &req); err != nil {
		return fail(l, "user_status_error", err)
	}
	if err := h.People.SetStatus(ctx, id, req.Status); err != nil {
		return fail(l, "user_status_error", err)
	}
	return okMsg(c, "User status updated", nil)
}

func (h *AdminHTTP) UserRole(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "admin_user_role")

	id, err := parseID(c, "id")
	if err != nil {
		return fail(l, "user_role_error", err)
	}
	var req roleRequest
	if err := bind(c, &req); err != nil {
		return fail(l, "user_role_error", err)
	}
	if err := h.People.SetRole(ctx, id, req.Role); err != nil {
		return fail(l, "user_role_error", err)
	}
	return okMsg(c, "User role updated", nil)
}

func (h *AdminHTTP) SetSetting(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "admin_set_setting", "key", c.Param("key"))

	var req settingRequest
	if err := bind(c, &req); err != nil {
		return fail(l, "setting_error", err)
	}
	row, err := h.Settings.Set(ctx, c.Param("key"), req.Value)
	if err != nil {
		return fail(l, "setting_error", err)
	}
	return ok(c, row)
}

func (h *AdminHTTP) CreateNotification(c echo.Context) error {
	ctx := c.Request().Context()
	admin := viewerID(c)
	l := logging.FromContext(ctx).With("handler", "admin_create_notification", "admin_id", admin)

	var req notificationRequest
	if err := bind(c, &req); err != nil {
		return fail(l, "notification_error", err)
	}
	n, err := h.Notifications.Create(ctx, notify.CreateInput{
		Title:        req.Title,
		Content:      req.Content,
		ImageURL:     req.ImageURL,
		TargetUserID: req.TargetUserID,
		CreatedBy:    &admin,
	})
	if err != nil {
		return fail(l, "notification_error", err)
	}
	return c.JSON(http.StatusCreated, envelope{Success: true, Data: n})
}

func (h *AdminHTTP) ShareCategories(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "admin_share_categories")

	cats, err := h.Archive.Categories(ctx)
	if err != nil {
		return fail(l, "share_categories_error", err)
	}
	return ok(c, cats)
}

// ShareData archives one category and returns the whole envelope.
func (h *AdminHTTP) ShareData(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "admin_share_data", "category", c.Param("key"))

	env, res, err := h.Archive.Share(ctx, c.Param("key"))
	if err != nil {
		return fail(l, "share_error", err)
	}
	c.Response().Header().Set("X-Archived-Count", strconv.Itoa(res.Archived))
	c.Response().Header().Set("X-Purged-Count", strconv.Itoa(res.Purged))
	return ok(c, env)
}

func (h *AdminHTTP) ExportBackup(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "admin_backup_export")

	d, err := h.Exporter.Export(ctx)
	if err != nil {
		return fail(l, "backup_export_error", err)
	}
	return ok(c, d)
}

func (h *AdminHTTP) RunBackup(c echo.Context) error {
	h.Backup.Enqueue("manual", map[string]any{"admin_id": viewerID(c)})
	return c.JSON(http.StatusAccepted, envelope{Success: true, Message: "Backup queued"})
}

func (h *AdminHTTP) Logs(c echo.Context) error {
	return ok(c, h.Activity.List(c.QueryParam("type"), queryInt(c, "limit", 0)))
}

func (h *AdminHTTP) Reindex(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "admin_search_reindex")

	n, err := h.Catalog.Reindex(ctx)
	if err != nil {
		return fail(l, "reindex_error", err)
	}
	l.Info("search_reindexed", "count", n)
	return ok(c, echo.Map{"indexed": n})
}
