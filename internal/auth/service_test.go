package auth

import (
	"context"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/Skotchmaster/marketfeed/internal/activity"
	"github.com/Skotchmaster/marketfeed/internal/apperr"
	"github.com/Skotchmaster/marketfeed/internal/dbtest"
	"github.com/Skotchmaster/marketfeed/internal/models"
	mw "github.com/Skotchmaster/marketfeed/pkg/middleware/auth"
	"github.com/Skotchmaster/marketfeed/pkg/tokens"
)

var secret = []byte("test-jwt-secret")

func newService(t *testing.T) (*AuthService, *activity.Log) {
	t.Helper()
	log := activity.New(10)
	return &AuthService{
		Repo:       &GormRepo{DB: dbtest.New(t)},
		JWTSecret:  secret,
		AccessTTL:  time.Hour,
		Activity:   log,
		BcryptCost: bcrypt.MinCost,
	}, log
}

func TestRegister_Validation(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()

	tests := []struct {
		name string
		in   RegisterInput
	}{
		{name: "bad email", in: RegisterInput{Email: "nope", Password: "secret1"}},
		{name: "short password", in: RegisterInput{Email: "a@example.com", Password: "12345"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.Register(ctx, tt.in)
			require.ErrorIs(t, err, apperr.ErrValidation)
		})
	}
}

func TestRegister_DuplicateEmailConflicts(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()

	u, err := svc.Register(ctx, RegisterInput{Email: "Buyer@Example.com", Password: "secret1", FullName: " Buyer "})
	require.NoError(t, err)
	assert.Equal(t, "buyer@example.com", u.Email)
	assert.Equal(t, "Buyer", u.FullName)
	assert.Equal(t, models.RoleUser, u.Role)
	assert.True(t, u.Balance.IsZero())

	_, err = svc.Register(ctx, RegisterInput{Email: "buyer@example.com", Password: "other12"})
	require.ErrorIs(t, err, apperr.ErrConflict)
}

func TestLogin(t *testing.T) {
	svc, log := newService(t)
	ctx := context.Background()
	u, err := svc.Register(ctx, RegisterInput{Email: "buyer@example.com", Password: "secret1"})
	require.NoError(t, err)

	res, err := svc.Login(ctx, "BUYER@example.com", "secret1", "10.0.0.1")
	require.NoError(t, err)
	require.NotNil(t, res.User.LastLogin)

	claims, err := tokens.AccessClaimsFromToken(res.AccessToken, secret)
	require.NoError(t, err)
	assert.Equal(t, strconv.FormatUint(uint64(u.ID), 10), claims.Subject)
	assert.Equal(t, models.RoleUser, claims.Role)
	assert.WithinDuration(t, time.Now().Add(time.Hour), claims.ExpiresAt.Time, 5*time.Second)

	_, err = svc.Login(ctx, "buyer@example.com", "wrong!", "10.0.0.1")
	require.ErrorIs(t, err, apperr.ErrUnauthorized)
	_, err = svc.Login(ctx, "ghost@example.com", "secret1", "10.0.0.1")
	require.ErrorIs(t, err, apperr.ErrUnauthorized)

	logins := log.List(activity.TypeLogin, 10)
	require.Len(t, logins, 3)
	assert.True(t, *logins[0].Success)
	assert.False(t, *logins[1].Success)
	assert.Nil(t, logins[2].UserID)
}

func TestLogin_BannedIsForbidden(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()
	u, err := svc.Register(ctx, RegisterInput{Email: "bad@example.com", Password: "secret1"})
	require.NoError(t, err)
	require.NoError(t, svc.Repo.DB.Model(u).Update("status", models.StatusBanned).Error)

	_, err = svc.Login(ctx, "bad@example.com", "secret1", "")
	require.ErrorIs(t, err, apperr.ErrForbidden)

	p, err := svc.LoadPrincipal(ctx, u.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusBanned, p.Status)
}

func TestMe_Unknown(t *testing.T) {
	svc, _ := newService(t)
	_, err := svc.Me(context.Background(), 404)
	require.ErrorIs(t, err, apperr.ErrNotFound)
}

func TestLoadPrincipal_UnknownVersusStoreDown(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()

	_, err := svc.LoadPrincipal(ctx, 404)
	require.ErrorIs(t, err, mw.ErrUnknownPrincipal)

	sqlDB, err := svc.Repo.DB.DB()
	require.NoError(t, err)
	require.NoError(t, sqlDB.Close())

	_, err = svc.LoadPrincipal(ctx, 1)
	require.Error(t, err)
	assert.NotErrorIs(t, err, mw.ErrUnknownPrincipal)
	assert.Equal(t, apperr.KindUnavailable, apperr.KindOf(err))
}
