package httpserver

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"github.com/Skotchmaster/marketfeed/internal/activity"
	"github.com/Skotchmaster/marketfeed/internal/apperr"
	"github.com/Skotchmaster/marketfeed/internal/archive"
	"github.com/Skotchmaster/marketfeed/internal/auth"
	"github.com/Skotchmaster/marketfeed/internal/backup"
	"github.com/Skotchmaster/marketfeed/internal/catalog"
	"github.com/Skotchmaster/marketfeed/internal/dbtest"
	"github.com/Skotchmaster/marketfeed/internal/feed"
	"github.com/Skotchmaster/marketfeed/internal/ledger"
	"github.com/Skotchmaster/marketfeed/internal/messages"
	"github.com/Skotchmaster/marketfeed/internal/models"
	"github.com/Skotchmaster/marketfeed/internal/notify"
	"github.com/Skotchmaster/marketfeed/internal/people"
	"github.com/Skotchmaster/marketfeed/internal/settings"
	"github.com/Skotchmaster/marketfeed/internal/support"
	"github.com/Skotchmaster/marketfeed/internal/wallet"
	authmw "github.com/Skotchmaster/marketfeed/pkg/middleware/auth"
	"github.com/Skotchmaster/marketfeed/pkg/tokens"
)

var testSecret = []byte("test-jwt-secret")

type recordingQueue struct {
	mu      sync.Mutex
	reasons []string
}

func (q *recordingQueue) Enqueue(reason string, _ map[string]any) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.reasons = append(q.reasons, reason)
}

func (q *recordingQueue) list() []string {
	q.mu.Lock()
	defer q.mu.Unlock()
	return append([]string(nil), q.reasons...)
}

type testEnv struct {
	e       *echo.Echo
	db      *gorm.DB
	backups *recordingQueue
	logs    *activity.Log
}

func newTestEnv(t *testing.T, opts ...func(*Deps)) *testEnv {
	t.Helper()
	db := dbtest.New(t)
	logs := activity.New(50)
	backups := &recordingQueue{}

	arch := &archive.ArchiveService{
		Store:  archive.NewFileStore(filepath.Join(t.TempDir(), "archive.json"), nil, time.Second),
		Snap:   &archive.Snapshotter{DB: db},
		Purger: archive.NewPurger(db),
	}
	authSvc := &auth.AuthService{Repo: &auth.GormRepo{DB: db}, JWTSecret: testSecret, AccessTTL: time.Hour, Activity: logs, BcryptCost: bcrypt.MinCost}
	cat := &catalog.CatalogService{Repo: &catalog.GormRepo{DB: db}, Archive: arch, PrimaryAdminEmail: "root@example.com"}
	led := &ledger.LedgerService{Repo: &ledger.GormRepo{DB: db}, Backup: backups}
	wal := &wallet.WalletService{Repo: &wallet.GormRepo{DB: db}, Archive: arch}
	ppl := &people.PeopleService{DB: db, Archive: arch, PrimaryAdminEmail: "root@example.com"}
	set := settings.NewSettingsService(db, time.Minute)
	nots := &notify.NotificationService{Repo: &notify.GormRepo{DB: db}}

	e := New(slog.New(slog.NewTextHandler(io.Discard, nil)), logs, nil)
	deps := &Deps{
		Auth:          &AuthHTTP{Svc: authSvc},
		Products:      &ProductHTTP{Catalog: cat, Ledger: led},
		Posts:         &PostHTTP{Svc: &feed.FeedService{Repo: &feed.GormRepo{DB: db}, Archive: arch}},
		Users:         &UserHTTP{Svc: ppl},
		Wallet:        &WalletHTTP{Svc: wal, Auth: authSvc},
		Settings:      &SettingsHTTP{Svc: set},
		Notifications: &NotificationHTTP{Svc: nots},
		Support:       &SupportHTTP{Svc: &support.SupportService{DB: db}},
		Messages:      &MessageHTTP{Svc: &messages.MessageService{DB: db}},
		Search:        &SearchHTTP{},
		Admin: &AdminHTTP{
			Ledger: led, Wallet: wal, Catalog: cat, People: ppl, Settings: set,
			Notifications: nots, Archive: arch, Backup: backups,
			Exporter: &backup.Exporter{DB: db, Archive: arch}, Activity: logs,
		},
		AuthMw: authmw.NewAuthMiddleware(testSecret, authSvc),
	}
	for _, opt := range opts {
		opt(deps)
	}
	Register(e, deps)
	return &testEnv{e: e, db: db, backups: backups, logs: logs}
}

func bearer(t *testing.T, u *models.User) string {
	t.Helper()
	tok, err := tokens.NewAccessToken(testSecret, u.Role, strconv.FormatUint(uint64(u.ID), 10), time.Now().Add(time.Hour))
	require.NoError(t, err)
	return tok
}

type response struct {
	Success bool            `json:"success"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

func (env *testEnv) do(t *testing.T, method, path string, body any, token string) (int, response) {
	t.Helper()
	var r io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		r = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, r)
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	if token != "" {
		req.Header.Set(echo.HeaderAuthorization, "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	env.e.ServeHTTP(rec, req)

	var out response
	if rec.Body.Len() > 0 {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	}
	return rec.Code, out
}

func admin(u *models.User) { u.Role = models.RoleAdmin }

func TestHealth(t *testing.T) {
	env := newTestEnv(t)
	code, _ := env.do(t, http.MethodGet, "/health/live", nil, "")
	assert.Equal(t, http.StatusOK, code)
	code, _ = env.do(t, http.MethodGet, "/health/ready", nil, "")
	assert.Equal(t, http.StatusOK, code)
}

func TestRequestTimeout(t *testing.T) {
	env := newTestEnv(t, func(d *Deps) { d.RequestTimeout = 20 * time.Millisecond })
	env.e.GET("/slow", func(c echo.Context) error {
		<-c.Request().Context().Done()
		return c.Request().Context().Err()
	})

	code, res := env.do(t, http.MethodGet, "/slow", nil, "")
	assert.Equal(t, http.StatusServiceUnavailable, code)
	assert.False(t, res.Success)
	assert.Equal(t, "request timed out", res.Message)
}

func TestStoreDownIsServiceUnavailable(t *testing.T) {
	env := newTestEnv(t)
	u := dbtest.User(t, env.db, "buyer@example.com", 100)
	token := bearer(t, u)

	sqlDB, err := env.db.DB()
	require.NoError(t, err)
	require.NoError(t, sqlDB.Close())

	code, res := env.do(t, http.MethodPost, "/products/1/purchase", nil, token)
	assert.Equal(t, http.StatusServiceUnavailable, code)
	assert.False(t, res.Success)

	code, res = env.do(t, http.MethodGet, "/products", nil, "")
	assert.Equal(t, http.StatusServiceUnavailable, code)
	assert.False(t, res.Success)
}

func TestUnknownRouteUsesEnvelope(t *testing.T) {
	env := newTestEnv(t)
	code, res := env.do(t, http.MethodGet, "/nope", nil, "")
	assert.Equal(t, http.StatusNotFound, code)
	assert.False(t, res.Success)
	assert.NotEmpty(t, res.Message)
}

func TestRegisterLoginMe(t *testing.T) {
	env := newTestEnv(t)
	body := map[string]string{"email": "new@example.com", "password": "secret1", "full_name": "New"}

	code, res := env.do(t, http.MethodPost, "/auth/register", body, "")
	require.Equal(t, http.StatusCreated, code, res.Message)
	assert.True(t, res.Success)

	code, res = env.do(t, http.MethodPost, "/auth/register", body, "")
	assert.Equal(t, http.StatusConflict, code)
	assert.False(t, res.Success)
	assert.Equal(t, "Email already registered", res.Message)

	code, res = env.do(t, http.MethodPost, "/auth/register", map[string]string{"email": "x@example.com", "password": "123"}, "")
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Contains(t, res.Message, "password")

	code, res = env.do(t, http.MethodPost, "/auth/login", map[string]string{"email": "new@example.com", "password": "secret1"}, "")
	require.Equal(t, http.StatusOK, code, res.Message)
	var login struct {
		Token string `json:"token"`
	}
	require.NoError(t, json.Unmarshal(res.Data, &login))
	require.NotEmpty(t, login.Token)

	code, res = env.do(t, http.MethodGet, "/auth/me", nil, login.Token)
	require.Equal(t, http.StatusOK, code)
	var me models.User
	require.NoError(t, json.Unmarshal(res.Data, &me))
	assert.Equal(t, "new@example.com", me.Email)

	code, _ = env.do(t, http.MethodPost, "/auth/login", map[string]string{"email": "new@example.com", "password": "wrong1"}, "")
	assert.Equal(t, http.StatusUnauthorized, code)

	assert.Len(t, env.logs.List(activity.TypeLogin, 10), 2)
	assert.NotEmpty(t, env.logs.List(activity.TypeRequest, 10))
}

func TestPurchaseFlow(t *testing.T) {
	env := newTestEnv(t)
	seller := dbtest.User(t, env.db, "seller@example.com", 0)
	buyer := dbtest.User(t, env.db, "buyer@example.com", 100000)
	poor := dbtest.User(t, env.db, "poor@example.com", 100)
	p := dbtest.Product(t, env.db, seller, nil, "course", 30000)
	path := "/products/" + strconv.FormatUint(uint64(p.ID), 10) + "/purchase"

	code, _ := env.do(t, http.MethodPost, path, nil, "")
	assert.Equal(t, http.StatusUnauthorized, code)

	code, res := env.do(t, http.MethodPost, path, nil, bearer(t, buyer))
	require.Equal(t, http.StatusOK, code, res.Message)
	var out struct {
		NewBalance decimal.Decimal `json:"newBalance"`
	}
	require.NoError(t, json.Unmarshal(res.Data, &out))
	assert.True(t, decimal.NewFromInt(70000).Equal(out.NewBalance))
	assert.Equal(t, []string{"purchase"}, env.backups.list())

	code, res = env.do(t, http.MethodPost, path, nil, bearer(t, buyer))
	assert.Equal(t, http.StatusConflict, code)
	assert.False(t, res.Success)

	code, _ = env.do(t, http.MethodPost, "/products/course/purchase", nil, bearer(t, poor))
	assert.Equal(t, http.StatusPaymentRequired, code)

	code, res = env.do(t, http.MethodGet, "/wallet/purchases", nil, bearer(t, buyer))
	require.Equal(t, http.StatusOK, code)
	var page struct {
		Purchases []map[string]any `json:"purchases"`
	}
	require.NoError(t, json.Unmarshal(res.Data, &page))
	assert.Len(t, page.Purchases, 1)
}

func TestProductsList(t *testing.T) {
	env := newTestEnv(t)
	seller := dbtest.User(t, env.db, "seller@example.com", 0)
	for i := 0; i < 3; i++ {
		dbtest.Product(t, env.db, seller, nil, "p"+strconv.Itoa(i), 100)
	}

	code, res := env.do(t, http.MethodGet, "/products?limit=2&page=2", nil, "")
	require.Equal(t, http.StatusOK, code)
	var out struct {
		Products   []map[string]any `json:"products"`
		Pagination struct {
			Total      int `json:"total"`
			TotalPages int `json:"totalPages"`
		} `json:"pagination"`
	}
	require.NoError(t, json.Unmarshal(res.Data, &out))
	assert.Len(t, out.Products, 1)
	assert.Equal(t, 3, out.Pagination.Total)
	assert.Equal(t, 2, out.Pagination.TotalPages)

	code, _ = env.do(t, http.MethodGet, "/products/missing-slug", nil, "")
	assert.Equal(t, http.StatusNotFound, code)
}

func TestProductManagement(t *testing.T) {
	env := newTestEnv(t)
	seller := dbtest.User(t, env.db, "seller@example.com", 0, func(u *models.User) { u.Role = models.RoleSeller })
	other := dbtest.User(t, env.db, "other@example.com", 0, func(u *models.User) { u.Role = models.RoleSeller })
	buyer := dbtest.User(t, env.db, "buyer@example.com", 0)
	cat := dbtest.Category(t, env.db, "courses")
	body := map[string]any{"title": "Go Basics", "price": "19.99", "category_id": cat.ID}

	code, _ := env.do(t, http.MethodPost, "/products", body, bearer(t, buyer))
	assert.Equal(t, http.StatusForbidden, code)

	code, res := env.do(t, http.MethodPost, "/products", map[string]any{"price": "1"}, bearer(t, seller))
	assert.Equal(t, http.StatusBadRequest, code)

	code, res = env.do(t, http.MethodPost, "/products", body, bearer(t, seller))
	require.Equal(t, http.StatusCreated, code, res.Message)
	assert.Equal(t, "Product created", res.Message)
	var created struct {
		ID   uint   `json:"id"`
		Slug string `json:"slug"`
	}
	require.NoError(t, json.Unmarshal(res.Data, &created))
	assert.Equal(t, "go-basics", created.Slug)
	path := "/products/" + strconv.FormatUint(uint64(created.ID), 10)

	code, _ = env.do(t, http.MethodPut, path, map[string]any{"title": "Mine now"}, bearer(t, other))
	assert.Equal(t, http.StatusForbidden, code)

	code, res = env.do(t, http.MethodPut, path, map[string]any{"title": "Go Basics 2", "slug": "go-basics-2"}, bearer(t, seller))
	require.Equal(t, http.StatusOK, code, res.Message)
	code, _ = env.do(t, http.MethodGet, "/products/go-basics-2", nil, "")
	assert.Equal(t, http.StatusOK, code)

	code, _ = env.do(t, http.MethodPut, path, map[string]any{"status": "deleted"}, bearer(t, seller))
	assert.Equal(t, http.StatusBadRequest, code)

	code, _ = env.do(t, http.MethodDelete, path, nil, bearer(t, other))
	assert.Equal(t, http.StatusForbidden, code)
	code, res = env.do(t, http.MethodDelete, path, nil, bearer(t, seller))
	require.Equal(t, http.StatusOK, code, res.Message)
	assert.Equal(t, "Product deleted", res.Message)
	code, _ = env.do(t, http.MethodGet, "/products/go-basics-2", nil, "")
	assert.Equal(t, http.StatusNotFound, code)
}

func TestCategoriesList(t *testing.T) {
	env := newTestEnv(t)
	dbtest.Category(t, env.db, "design")
	dbtest.Category(t, env.db, "code")

	code, res := env.do(t, http.MethodGet, "/categories", nil, "")
	require.Equal(t, http.StatusOK, code)
	var cats []models.Category
	require.NoError(t, json.Unmarshal(res.Data, &cats))
	assert.Len(t, cats, 2)
}

func TestDirectMessages(t *testing.T) {
	env := newTestEnv(t)
	alice := dbtest.User(t, env.db, "alice@example.com", 0)
	bob := dbtest.User(t, env.db, "bob@example.com", 0)

	code, _ := env.do(t, http.MethodPost, "/messages", map[string]any{"receiver_id": bob.ID, "content": "hi"}, "")
	assert.Equal(t, http.StatusUnauthorized, code)

	code, res := env.do(t, http.MethodPost, "/messages", map[string]any{"receiver_id": bob.ID, "content": "hi"}, bearer(t, alice))
	require.Equal(t, http.StatusCreated, code, res.Message)

	code, _ = env.do(t, http.MethodPost, "/messages", map[string]any{"receiver_id": alice.ID, "content": "me"}, bearer(t, alice))
	assert.Equal(t, http.StatusBadRequest, code)
	code, _ = env.do(t, http.MethodPost, "/messages", map[string]any{"receiver_id": 9999, "content": "x"}, bearer(t, alice))
	assert.Equal(t, http.StatusNotFound, code)

	code, res = env.do(t, http.MethodGet, "/messages/conversations", nil, bearer(t, bob))
	require.Equal(t, http.StatusOK, code)
	var convs []struct {
		PartnerID uint `json:"partner_id"`
		Unread    int  `json:"unread"`
	}
	require.NoError(t, json.Unmarshal(res.Data, &convs))
	require.Len(t, convs, 1)
	assert.Equal(t, alice.ID, convs[0].PartnerID)
	assert.Equal(t, 1, convs[0].Unread)

	code, res = env.do(t, http.MethodGet, "/messages/"+strconv.FormatUint(uint64(alice.ID), 10), nil, bearer(t, bob))
	require.Equal(t, http.StatusOK, code)
	var thread struct {
		Messages []models.Message `json:"messages"`
	}
	require.NoError(t, json.Unmarshal(res.Data, &thread))
	require.Len(t, thread.Messages, 1)
	assert.Equal(t, "hi", thread.Messages[0].Content)

	code, _ = env.do(t, http.MethodGet, "/messages/abc", nil, bearer(t, bob))
	assert.Equal(t, http.StatusBadRequest, code)
}

func TestDepositApproval(t *testing.T) {
	env := newTestEnv(t)
	user := dbtest.User(t, env.db, "user@example.com", 0)
	boss := dbtest.User(t, env.db, "boss@example.com", 0, admin)

	code, _ := env.do(t, http.MethodPost, "/wallet/deposit-requests", map[string]any{"amount": 0}, bearer(t, user))
	assert.Equal(t, http.StatusBadRequest, code)

	code, res := env.do(t, http.MethodPost, "/wallet/deposit-requests", map[string]any{"amount": 500, "payment_method": "bank"}, bearer(t, user))
	require.Equal(t, http.StatusCreated, code, res.Message)
	var d models.DepositRequest
	require.NoError(t, json.Unmarshal(res.Data, &d))
	path := "/admin/deposit-requests/" + strconv.FormatUint(uint64(d.ID), 10) + "/approve"

	code, _ = env.do(t, http.MethodPut, path, map[string]any{"approve": true}, bearer(t, user))
	assert.Equal(t, http.StatusForbidden, code)

	code, res = env.do(t, http.MethodPut, path, map[string]any{"admin_note": "?"}, bearer(t, boss))
	assert.Equal(t, http.StatusBadRequest, code, "approve is required")
	assert.Contains(t, res.Message, "approve")

	code, res = env.do(t, http.MethodPut, path, map[string]any{"approve": true, "admin_note": "ok"}, bearer(t, boss))
	require.Equal(t, http.StatusOK, code, res.Message)

	code, _ = env.do(t, http.MethodPut, path, map[string]any{"approve": true}, bearer(t, boss))
	assert.Equal(t, http.StatusConflict, code)

	code, res = env.do(t, http.MethodGet, "/wallet/balance", nil, bearer(t, user))
	require.Equal(t, http.StatusOK, code)
	var bal struct {
		Balance decimal.Decimal `json:"balance"`
	}
	require.NoError(t, json.Unmarshal(res.Data, &bal))
	assert.True(t, decimal.NewFromInt(500).Equal(bal.Balance))

	code, res = env.do(t, http.MethodGet, "/admin/deposit-requests?status=approved", nil, bearer(t, boss))
	require.Equal(t, http.StatusOK, code)
	assert.Contains(t, string(res.Data), "user@example.com")
}

func TestAdminSurface(t *testing.T) {
	env := newTestEnv(t)
	user := dbtest.User(t, env.db, "user@example.com", 10)
	boss := dbtest.User(t, env.db, "boss@example.com", 0, admin)
	tok := bearer(t, boss)

	t.Run("settings", func(t *testing.T) {
		code, _ := env.do(t, http.MethodPut, "/admin/settings/site_name", map[string]string{"value": "Market"}, tok)
		require.Equal(t, http.StatusOK, code)
		code, _ = env.do(t, http.MethodPut, "/admin/settings/total_revenue", map[string]string{"value": "1"}, tok)
		assert.Equal(t, http.StatusForbidden, code)

		code, res := env.do(t, http.MethodGet, "/settings?keys=site_name,total_revenue", nil, "")
		require.Equal(t, http.StatusOK, code)
		assert.JSONEq(t, `{"site_name":"Market"}`, string(res.Data))
	})

	t.Run("balance adjust", func(t *testing.T) {
		body := map[string]any{"user_id": user.ID, "amount": -50}
		code, _ := env.do(t, http.MethodPost, "/admin/balance/adjust", body, tok)
		assert.Equal(t, http.StatusPaymentRequired, code)

		body["amount"] = 40
		code, res := env.do(t, http.MethodPost, "/admin/balance/adjust", body, tok)
		require.Equal(t, http.StatusOK, code, res.Message)
		assert.JSONEq(t, `{"newBalance":50}`, string(res.Data))
	})

	t.Run("share", func(t *testing.T) {
		code, _ := env.do(t, http.MethodGet, "/admin/share/data/everything", nil, tok)
		assert.Equal(t, http.StatusBadRequest, code)

		code, res := env.do(t, http.MethodGet, "/admin/share/data/products_inactive", nil, tok)
		require.Equal(t, http.StatusOK, code, res.Message)
		var envl archive.Envelope
		require.NoError(t, json.Unmarshal(res.Data, &envl))
		require.NotNil(t, envl.Meta.LastSharedAt)

		code, _ = env.do(t, http.MethodGet, "/admin/share/categories", nil, tok)
		assert.Equal(t, http.StatusOK, code)
	})

	t.Run("backup", func(t *testing.T) {
		code, _ := env.do(t, http.MethodPost, "/admin/backup/run", nil, tok)
		assert.Equal(t, http.StatusAccepted, code)
		assert.Contains(t, env.backups.list(), "manual")

		code, res := env.do(t, http.MethodGet, "/admin/backup/export", nil, tok)
		require.Equal(t, http.StatusOK, code, res.Message)
		assert.Contains(t, string(res.Data), "boss@example.com")
	})

	t.Run("logs and reindex", func(t *testing.T) {
		code, res := env.do(t, http.MethodGet, "/admin/logs?type=request&limit=3", nil, tok)
		require.Equal(t, http.StatusOK, code)
		var entries []activity.Entry
		require.NoError(t, json.Unmarshal(res.Data, &entries))
		assert.Len(t, entries, 3)

		code, _ = env.do(t, http.MethodPost, "/admin/search/reindex", nil, tok)
		assert.Equal(t, http.StatusServiceUnavailable, code, "no index configured")
	})

	t.Run("primary admin is protected", func(t *testing.T) {
		root := dbtest.User(t, env.db, "root@example.com", 0, admin)
		path := "/admin/users/" + strconv.FormatUint(uint64(root.ID), 10) + "/status"
		code, _ := env.do(t, http.MethodPut, path, map[string]string{"status": "banned"}, tok)
		assert.Equal(t, http.StatusForbidden, code)
	})

	t.Run("non admin", func(t *testing.T) {
		code, _ := env.do(t, http.MethodGet, "/admin/logs", nil, bearer(t, user))
		assert.Equal(t, http.StatusForbidden, code)
	})
}

func TestBannedUserIsRejected(t *testing.T) {
	env := newTestEnv(t)
	u := dbtest.User(t, env.db, "banned@example.com", 0, func(u *models.User) { u.Status = models.StatusBanned })
	code, _ := env.do(t, http.MethodGet, "/auth/me", nil, bearer(t, u))
	assert.Equal(t, http.StatusForbidden, code)
}

func TestPostsAndNotifications(t *testing.T) {
	env := newTestEnv(t)
	user := dbtest.User(t, env.db, "user@example.com", 0)
	boss := dbtest.User(t, env.db, "boss@example.com", 0, admin)

	code, res := env.do(t, http.MethodPost, "/posts", map[string]any{"content": "hello"}, bearer(t, user))
	require.Equal(t, http.StatusCreated, code, res.Message)
	var post struct {
		ID uint `json:"id"`
	}
	require.NoError(t, json.Unmarshal(res.Data, &post))
	base := "/posts/" + strconv.FormatUint(uint64(post.ID), 10)

	code, res = env.do(t, http.MethodPost, base+"/like", nil, bearer(t, boss))
	require.Equal(t, http.StatusOK, code)
	assert.JSONEq(t, `{"liked":true}`, string(res.Data))

	code, _ = env.do(t, http.MethodPost, base+"/comments", map[string]string{"content": "nice"}, bearer(t, boss))
	require.Equal(t, http.StatusCreated, code)
	code, res = env.do(t, http.MethodGet, base+"/comments", nil, "")
	require.Equal(t, http.StatusOK, code)
	assert.Contains(t, string(res.Data), "nice")

	code, _ = env.do(t, http.MethodDelete, base, nil, bearer(t, boss))
	assert.Equal(t, http.StatusOK, code)
	code, _ = env.do(t, http.MethodGet, base, nil, "")
	assert.Equal(t, http.StatusNotFound, code)

	code, _ = env.do(t, http.MethodPost, "/admin/notifications", map[string]any{"title": "Maintenance"}, bearer(t, boss))
	require.Equal(t, http.StatusCreated, code)
	code, res = env.do(t, http.MethodGet, "/notifications", nil, bearer(t, user))
	require.Equal(t, http.StatusOK, code)
	var list struct {
		Unread int64 `json:"unread"`
	}
	require.NoError(t, json.Unmarshal(res.Data, &list))
	assert.EqualValues(t, 1, list.Unread)

	code, _ = env.do(t, http.MethodPost, "/notifications/read-all", nil, bearer(t, user))
	require.Equal(t, http.StatusOK, code)
}

func TestUnconfiguredCollaborators(t *testing.T) {
	env := newTestEnv(t)
	user := dbtest.User(t, env.db, "user@example.com", 0)

	code, _ := env.do(t, http.MethodPost, "/support", map[string]string{"subject": "a", "content": "b"}, bearer(t, user))
	assert.Equal(t, http.StatusServiceUnavailable, code)

	code, _ = env.do(t, http.MethodGet, "/search?q=book", nil, "")
	assert.Equal(t, http.StatusServiceUnavailable, code)
}

func TestStatusOf(t *testing.T) {
	t.Parallel()
	tests := []struct {
		kind apperr.Kind
		want int
	}{
		{apperr.KindNotFound, http.StatusNotFound},
		{apperr.KindConflict, http.StatusConflict},
		{apperr.KindInvalidState, http.StatusUnprocessableEntity},
		{apperr.KindInsufficientFunds, http.StatusPaymentRequired},
		{apperr.KindUnauthorized, http.StatusUnauthorized},
		{apperr.KindForbidden, http.StatusForbidden},
		{apperr.KindValidation, http.StatusBadRequest},
		{apperr.KindUnavailable, http.StatusServiceUnavailable},
	}
	for _, tt := range tests {
		t.Run(string(tt.kind), func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, statusOf(apperr.New(tt.kind, "x")))
		})
	}
	assert.Equal(t, http.StatusInternalServerError, statusOf(errors.New("boom")))
}
