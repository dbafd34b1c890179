package httpserver

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/Skotchmaster/marketfeed/internal/apperr"
	"github.com/Skotchmaster/marketfeed/internal/models"
	"github.com/Skotchmaster/marketfeed/pkg/metrics"
	authmw "github.com/Skotchmaster/marketfeed/pkg/middleware/auth"
	loggingmw "github.com/Skotchmaster/marketfeed/pkg/middleware/logging"
)

type Deps struct {
	Auth          *AuthHTTP
	Products      *ProductHTTP
	Posts         *PostHTTP
	Users         *UserHTTP
	Wallet        *WalletHTTP
	Settings      *SettingsHTTP
	Notifications *NotificationHTTP
	Support       *SupportHTTP
	Messages      *MessageHTTP
	Search        *SearchHTTP
	Admin         *AdminHTTP

	AuthMw  *authmw.AuthMiddleware
	Metrics *metrics.Metrics
	// CSRF, when set, guards cookie-authenticated writes.
	CSRF echo.MiddlewareFunc
	// RequestTimeout bounds the context every handler and store call runs
	// under; zero disables it.
	RequestTimeout time.Duration
	// Ready reports whether the store answers; nil means always ready.
	Ready func(ctx context.Context) error
}

// New returns an echo instance with the error renderer, validator and the
// global middleware chain installed.
func New(log *slog.Logger, rec loggingmw.Recorder, m *metrics.Metrics) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.HTTPErrorHandler = ErrorHandler
	e.Validator = NewValidator()

	e.Pre(middleware.RemoveTrailingSlash())
	e.Use(middleware.Recover(), middleware.RequestID())
	e.Use(loggingmw.RequestLogger(log, rec))
	e.Use(middleware.CORS())
	if m != nil {
		e.Use(m.Middleware())
	}
	return e
}

func Register(e *echo.Echo, d *Deps) {
	if d.RequestTimeout > 0 {
		e.Use(middleware.ContextTimeoutWithConfig(middleware.ContextTimeoutConfig{
			Timeout:      d.RequestTimeout,
			ErrorHandler: timeoutError,
		}))
	}
	if d.CSRF != nil {
		e.Use(d.CSRF)
	}
	e.GET("/health/live", func(c echo.Context) error { return c.NoContent(http.StatusOK) })
	e.GET("/health/ready", func(c echo.Context) error {
		if d.Ready == nil {
			return c.NoContent(http.StatusOK)
		}
		ctx, cancel := context.WithTimeout(c.Request().Context(), 2*time.Second)
		defer cancel()
		if err := d.Ready(ctx); err != nil {
			return c.JSON(http.StatusServiceUnavailable, envelope{Success: false, Message: "store unavailable"})
		}
		return c.NoContent(http.StatusOK)
	})
	if d.Metrics != nil {
		e.GET("/metrics", echo.WrapHandler(d.Metrics.Handler()))
	}

	// per-route middleware keeps unknown paths out of the auth chain
	private, optional := d.AuthMw.RequireAuth, d.AuthMw.Optional

	e.POST("/auth/register", d.Auth.Register)
	e.POST("/auth/login", d.Auth.Login)
	e.GET("/auth/me", d.Auth.Me, private)

	e.GET("/categories", d.Products.Categories)
	e.GET("/products", d.Products.List, optional)
	e.GET("/products/:id", d.Products.Get, optional)
	e.POST("/products", d.Products.Create, d.AuthMw.RequireRole(models.RoleSeller, models.RoleAdmin))
	e.PUT("/products/:id", d.Products.Update, private)
	e.DELETE("/products/:id", d.Products.Delete, private)
	e.POST("/products/:id/purchase", d.Products.Purchase, private)

	e.GET("/posts", d.Posts.List, optional)
	e.GET("/posts/:id", d.Posts.Get, optional)
	e.GET("/posts/:id/comments", d.Posts.Comments, optional)
	e.POST("/posts", d.Posts.Create, private)
	e.POST("/posts/:id/like", d.Posts.ToggleLike, private)
	e.POST("/posts/:id/comments", d.Posts.AddComment, private)
	e.DELETE("/posts/:id", d.Posts.Delete, private)

	e.GET("/users/search", d.Users.Search)
	e.GET("/users/:id", d.Users.Profile)

	e.GET("/wallet/balance", d.Wallet.Balance, private)
	e.GET("/wallet/transactions", d.Wallet.Transactions, private)
	e.GET("/wallet/deposit-requests", d.Wallet.DepositRequests, private)
	e.POST("/wallet/deposit-requests", d.Wallet.CreateDepositRequest, private)
	e.GET("/wallet/purchases", d.Wallet.Purchases, private)

	e.GET("/settings", d.Settings.Get)

	e.GET("/notifications", d.Notifications.List, private)
	e.POST("/notifications/read-all", d.Notifications.ReadAll, private)

	e.POST("/support", d.Support.Create, private)
	e.GET("/support/my", d.Support.Mine, private)
	e.GET("/support/thread", d.Support.Thread, private)

	e.GET("/messages/conversations", d.Messages.Conversations, private)
	e.GET("/messages/:userId", d.Messages.Thread, private)
	e.POST("/messages", d.Messages.Send, private)

	e.GET("/search", d.Search.Search)

	admin := e.Group("/admin", d.AuthMw.RequireAdmin)
	admin.PUT("/deposit-requests/:id/approve", d.Admin.DecideDeposit)
	admin.GET("/deposit-requests", d.Admin.DepositRequests)
	admin.POST("/balance/adjust", d.Admin.AdjustBalance)
	admin.GET("/revenue", d.Admin.Revenue)
	admin.POST("/revenue/reset", d.Admin.ResetRevenue)
	admin.PUT("/products/:id/status", d.Admin.ProductStatus)
	admin.PUT("/users/:id/status", d.Admin.UserStatus)
	admin.PUT("/users/:id/role", d.Admin.UserRole)
	admin.PUT("/settings/:key", d.Admin.SetSetting)
	admin.POST("/notifications", d.Admin.CreateNotification)
	admin.POST("/posts", d.Posts.Create)
	admin.GET("/share/categories", d.Admin.ShareCategories)
	admin.GET("/share/data/:key", d.Admin.ShareData)
	admin.GET("/backup/export", d.Admin.ExportBackup)
	admin.POST("/backup/run", d.Admin.RunBackup)
	admin.GET("/logs", d.Admin.Logs)
	admin.POST("/search/reindex", d.Admin.Reindex)
}

func timeoutError(err error, _ echo.Context) error {
	if errors.Is(err, context.DeadlineExceeded) && apperr.KindOf(err) == "" {
		return apperr.Wrap(apperr.KindUnavailable, "request timed out", err)
	}
	return err
}
