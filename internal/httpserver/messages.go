package httpserver

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/Skotchmaster/marketfeed/internal/messages"
	"github.com/Skotchmaster/marketfeed/pkg/logging"
	mw "github.com/Skotchmaster/marketfeed/pkg/middleware/auth"
)

type MessageHTTP struct {
	Svc *messages.MessageService
}

type sendMessageRequest struct {
	ReceiverID uint   `json:"receiver_id" validate:"required"`
	Content    string `json:"content" validate:"required,max=5000"`
}

func (h *MessageHTTP) Conversations(c echo.Context) error {
	ctx := c.Request().Context()
	p, _ := mw.PrincipalFrom(c)
	l := logging.FromContext(ctx).With("handler", "messages_conversations", "user_id", p.ID)

	convs, err := h.Svc.Conversations(ctx, p.ID)
	if err != nil {
		return fail(l, "conversations_error", err)
	}
	return ok(c, convs)
}

func (h *MessageHTTP) Thread(c echo.Context) error {
	ctx := c.Request().Context()
	p, _ := mw.PrincipalFrom(c)
	l := logging.FromContext(ctx).With("handler", "messages_thread", "user_id", p.ID)

	other, err := parseID(c, "userId")
	if err != nil {
		return fail(l, "thread_error", err)
	}
	th, err := h.Svc.Thread(ctx, p.ID, other, queryInt(c, "page", 1), queryInt(c, "limit", 0))
	if err != nil {
		return fail(l, "thread_error", err)
	}
	return ok(c, th)
}

func (h *MessageHTTP) Send(c echo.Context) error {
	ctx := c.Request().Context()
	p, _ := mw.PrincipalFrom(c)
	l := logging.FromContext(ctx).With("handler", "messages_send", "user_id", p.ID)

	var req sendMessageRequest
	if err := bind(c, &req); err != nil {
		return fail(l, "message_send_error", err)
	}
	msg, err := h.Svc.Send(ctx, p.ID, req.ReceiverID, req.Content)
	if err != nil {
		return fail(l, "message_send_error", err)
	}
	return c.JSON(http.StatusCreated, envelope{Success: true, Data: msg})
}
