package middleware

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/Skotchmaster/marketfeed/pkg/tokens"
)

const principalKey = "principal"

// Principal is the authenticated caller attached to the echo context.
type Principal struct {
	ID     uint
	Role   string
	Status string
}

// ErrUnknownPrincipal is returned by a PrincipalLoader when the user does not
// exist. Any other loader error means the store could not answer.
var ErrUnknownPrincipal = errors.New("principal not found")

// PrincipalLoader resolves the current role and status of a user. Claims in
// the token only carry identity; the store decides whether the account is banned.
type PrincipalLoader interface {
	LoadPrincipal(ctx context.Context, id uint) (Principal, error)
}

type AuthMiddleware struct {
	JWTSecret []byte
	Loader    PrincipalLoader
}

func NewAuthMiddleware(secret []byte, loader PrincipalLoader) *AuthMiddleware {
	return &AuthMiddleware{JWTSecret: secret, Loader: loader}
}

func (m *AuthMiddleware) RequireAuth(next echo.HandlerFunc) echo.HandlerFunc {
	return m.require(next, nil)
}

func (m *AuthMiddleware) RequireAdmin(next echo.HandlerFunc) echo.HandlerFunc {
	return m.require(next, []string{"admin"})
}

func (m *AuthMiddleware) RequireRole(roles ...string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return m.require(next, roles)
	}
}

// Optional attaches a principal when a valid token is present and never rejects.
func (m *AuthMiddleware) Optional(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		if p, err := m.authenticate(c); err == nil {
			c.Set(principalKey, p)
		}
		return next(c)
	}
}

func (m *AuthMiddleware) require(next echo.HandlerFunc, roles []string) echo.HandlerFunc {
	return func(c echo.Context) error {
		p, err := m.authenticate(c)
		if err != nil {
			return err
		}
		if len(roles) > 0 && !hasRole(p.Role, roles) {
			return echo.NewHTTPError(http.StatusForbidden, "insufficient permissions")
		}
		c.Set(principalKey, p)
		return next(c)
	}
}

func (m *AuthMiddleware) authenticate(c echo.Context) (Principal, error) {
	raw := bearerToken(c)
	if raw == "" {
		return Principal{}, echo.NewHTTPError(http.StatusUnauthorized, "missing access token")
	}

	claims, err := tokens.AccessClaimsFromToken(raw, m.JWTSecret)
	if err != nil {
		return Principal{}, echo.NewHTTPError(http.StatusUnauthorized, "invalid access token")
	}

	id, err := strconv.ParseUint(claims.Subject, 10, 64)
	if err != nil || id == 0 {
		return Principal{}, echo.NewHTTPError(http.StatusUnauthorized, "invalid access token")
	}

	p, err := m.Loader.LoadPrincipal(c.Request().Context(), uint(id))
	if errors.Is(err, ErrUnknownPrincipal) {
		return Principal{}, echo.NewHTTPError(http.StatusUnauthorized, "user not found")
	}
	if err != nil {
		return Principal{}, echo.NewHTTPError(http.StatusServiceUnavailable, "service unavailable").WithInternal(err)
	}
	if p.Status == "banned" {
		return Principal{}, echo.NewHTTPError(http.StatusForbidden, "account is banned")
	}
	return p, nil
}

func bearerToken(c echo.Context) string {
	h := c.Request().Header.Get(echo.HeaderAuthorization)
	if after, ok := strings.CutPrefix(h, "Bearer "); ok {
		return strings.TrimSpace(after)
	}
	if ck, err := c.Cookie("accessToken"); err == nil {
		return ck.Value
	}
	return ""
}

func hasRole(role string, roles []string) bool {
	for _, r := range roles {
		if r == role {
			return true
		}
	}
	return false
}

// PrincipalFrom returns the principal set by the middleware, if any.
func PrincipalFrom(c echo.Context) (Principal, bool) {
	p, ok := c.Get(principalKey).(Principal)
	return p, ok
}

// SetPrincipal is used by handlers' tests to bypass token parsing.
func SetPrincipal(c echo.Context, p Principal) {
	c.Set(principalKey, p)
}
