package csrf

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newEcho() *echo.Echo {
	e := echo.New()
	e.Use(Middleware(Config{SkipPaths: []string{"/auth/login"}}))
	ok := func(c echo.Context) error { return c.NoContent(http.StatusOK) }
	e.GET("/x", ok)
	e.POST("/x", ok)
	e.POST("/auth/login", ok)
	return e
}

func serve(e *echo.Echo, req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func TestMiddleware(t *testing.T) {
	e := newEcho()
	session := &http.Cookie{Name: "accessToken", Value: "jwt"}

	t.Run("no session cookie passes", func(t *testing.T) {
		rec := serve(e, httptest.NewRequest(http.MethodPost, "/x", nil))
		assert.Equal(t, http.StatusOK, rec.Code)
	})

	t.Run("bearer client passes", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/x", nil)
		req.AddCookie(session)
		req.Header.Set(echo.HeaderAuthorization, "Bearer jwt")
		assert.Equal(t, http.StatusOK, serve(e, req).Code)
	})

	t.Run("skipped path passes", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/auth/login", nil)
		req.AddCookie(session)
		assert.Equal(t, http.StatusOK, serve(e, req).Code)
	})

	t.Run("cookie write without token is rejected", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/x", nil)
		req.AddCookie(session)
		assert.Equal(t, http.StatusForbidden, serve(e, req).Code)
	})

	t.Run("token issued on read is accepted on write", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/x", nil)
		req.AddCookie(session)
		rec := serve(e, req)
		require.Equal(t, http.StatusOK, rec.Code)
		token := rec.Header().Get("X-CSRF-Token")
		require.NotEmpty(t, token)

		req = httptest.NewRequest(http.MethodPost, "/x", nil)
		req.AddCookie(session)
		req.AddCookie(&http.Cookie{Name: "XSRF-TOKEN", Value: token})
		req.Header.Set("X-CSRF-Token", token)
		assert.Equal(t, http.StatusOK, serve(e, req).Code)

		req = httptest.NewRequest(http.MethodPost, "/x", nil)
		req.AddCookie(session)
		req.AddCookie(&http.Cookie{Name: "XSRF-TOKEN", Value: token})
		req.Header.Set("X-CSRF-Token", token+"x")
		assert.Equal(t, http.StatusForbidden, serve(e, req).Code)
	})
}
