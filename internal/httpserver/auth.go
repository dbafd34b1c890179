package httpserver

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/Skotchmaster/marketfeed/internal/auth"
	"github.com/Skotchmaster/marketfeed/pkg/logging"
	mw "github.com/Skotchmaster/marketfeed/pkg/middleware/auth"
)

type AuthHTTP struct {
	Svc          *auth.AuthService
	SecureCookie bool
}

type registerRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=6"`
	FullName string `json:"full_name" validate:"max=255"`
}

type loginRequest struct {
	Email    string `json:"email" validate:"required"`
	Password string `json:"password" validate:"required"`
}

func (h *AuthHTTP) Register(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "auth_register")

	var req registerRequest
	if err := bind(c, &req); err != nil {
		return fail(l, "register_error", err)
	}
	u, err := h.Svc.Register(ctx, auth.RegisterInput{Email: req.Email, Password: req.Password, FullName: req.FullName})
	if err != nil {
		return fail(l, "register_error", err)
	}
	return c.JSON(http.StatusCreated, envelope{Success: true, Message: "Registered", Data: u})
}

func (h *AuthHTTP) Login(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "auth_login")

	var req loginRequest
	if err := bind(c, &req); err != nil {
		return fail(l, "login_error", err)
	}
	res, err := h.Svc.Login(ctx, req.Email, req.Password, c.RealIP())
	if err != nil {
		return fail(l, "login_failed", err)
	}

	c.SetCookie(&http.Cookie{
		Name:     "accessToken",
		Value:    res.AccessToken,
		Path:     "/",
		Expires:  res.AccessExp,
		HttpOnly: true,
		Secure:   h.SecureCookie,
		SameSite: http.SameSiteLaxMode,
	})
	l.Info("login_successful", "user_id", res.User.ID)
	return ok(c, res)
}

func (h *AuthHTTP) Me(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "auth_me")

	p, _ := mw.PrincipalFrom(c)
	u, err := h.Svc.Me(ctx, p.ID)
	if err != nil {
		return fail(l, "me_error", err)
	}
	return ok(c, u)
}
