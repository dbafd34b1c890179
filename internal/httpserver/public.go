package httpserver

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/Skotchmaster/marketfeed/internal/notify"
	"github.com/Skotchmaster/marketfeed/internal/search"
	"github.com/Skotchmaster/marketfeed/internal/settings"
	"github.com/Skotchmaster/marketfeed/internal/support"
	"github.com/Skotchmaster/marketfeed/pkg/config"
	"github.com/Skotchmaster/marketfeed/pkg/logging"
)

type SettingsHTTP struct {
	Svc *settings.SettingsService
}

func (h *SettingsHTTP) Get(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "settings_get")

	vals, err := h.Svc.Get(ctx, config.CSV(c.QueryParam("keys")))
	if err != nil {
		return fail(l, "settings_error", err)
	}
	return ok(c, vals)
}

type NotificationHTTP struct {
	Svc *notify.NotificationService
}

func (h *NotificationHTTP) List(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "notifications_list")

	items, unread, err := h.Svc.List(ctx, viewerID(c), queryInt(c, "limit", 0))
	if err != nil {
		return fail(l, "notifications_error", err)
	}
	return ok(c, echo.Map{"notifications": items, "unread": unread})
}

func (h *NotificationHTTP) ReadAll(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "notifications_read_all")

	if err := h.Svc.ReadAll(ctx, viewerID(c)); err != nil {
		return fail(l, "notifications_error", err)
	}
	return okMsg(c, "All notifications marked as read", nil)
}

type SupportHTTP struct {
	Svc *support.SupportService
}

type supportRequest struct {
	Type    string `json:"type" validate:"omitempty,oneof=support report"`
	Subject string `json:"subject" validate:"required,max=255"`
	Content string `json:"content" validate:"required,max=5000"`
}

func (h *SupportHTTP) Create(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "support_create")

	var req supportRequest
	if err := bind(c, &req); err != nil {
		return fail(l, "support_error", err)
	}
	r, err := h.Svc.Create(ctx, viewerID(c), support.Input{Type: req.Type, Subject: req.Subject, Content: req.Content})
	if err != nil {
		return fail(l, "support_error", err)
	}
	return c.JSON(http.StatusCreated, envelope{Success: true, Data: echo.Map{"id": r.ID}})
}

func (h *SupportHTTP) Mine(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "support_mine")

	rows, err := h.Svc.Mine(ctx, viewerID(c), c.QueryParam("type"))
	if err != nil {
		return fail(l, "support_error", err)
	}
	return ok(c, rows)
}

func (h *SupportHTTP) Thread(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "support_thread")

	rows, err := h.Svc.Thread(ctx, viewerID(c))
	if err != nil {
		return fail(l, "support_error", err)
	}
	return ok(c, rows)
}

type SearchHTTP struct {
	Svc *search.SearchService
}

func (h *SearchHTTP) Search(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "search")

	res, err := h.Svc.Search(ctx, c.QueryParam("q"), queryInt(c, "page", 1), queryInt(c, "limit", 0))
	if err != nil {
		return fail(l, "search_error", err)
	}
	return ok(c, res)
}
