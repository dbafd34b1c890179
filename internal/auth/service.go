// Package auth registers and logs in users and resolves the principal behind
// an access token.
package auth

import (
	"context"
	"net/mail"
	"strconv"
	"strings"
	"time"

	"github.com/Skotchmaster/marketfeed/internal/apperr"
	"github.com/Skotchmaster/marketfeed/internal/models"
	"github.com/Skotchmaster/marketfeed/pkg/hash"
	"github.com/Skotchmaster/marketfeed/pkg/logging"
	mw "github.com/Skotchmaster/marketfeed/pkg/middleware/auth"
	"github.com/Skotchmaster/marketfeed/pkg/tokens"
)

const minPasswordLen = 6

var errInvalidCredentials = apperr.New(apperr.KindUnauthorized, "Invalid email or password")

type LoginRecorder interface {
	RecordLogin(email string, userID *uint, success bool, ip string)
}

type RegisterInput struct {
	Email    string
	Password string
	FullName string
}

type LoginResult struct {
	AccessToken string       `json:"token"`
	AccessExp   time.Time    `json:"expires_at"`
	User        *models.User `json:"user"`
}

type AuthService struct {
	Repo       *GormRepo
	JWTSecret  []byte
	AccessTTL  time.Duration
	Activity   LoginRecorder
	BcryptCost int
}

func (s *AuthService) Register(ctx context.Context, in RegisterInput) (*models.User, error) {
	l := logging.FromContext(ctx).With("svc", "auth.register")

	email := strings.ToLower(strings.TrimSpace(in.Email))
	if _, err := mail.ParseAddress(email); err != nil {
		return nil, apperr.New(apperr.KindValidation, "Invalid email")
	}
	if len(in.Password) < minPasswordLen {
		return nil, apperr.Newf(apperr.KindValidation, "Password must be at least %d characters", minPasswordLen)
	}

	pw, err := hash.HashPassword(in.Password, s.BcryptCost)
	if err != nil {
		l.Error("register_error", "reason", "cannot hash the password", "error", err)
		return nil, err
	}
	u := &models.User{
		Email:        email,
		PasswordHash: pw,
		FullName:     strings.TrimSpace(in.FullName),
		Role:         models.RoleUser,
		Status:       models.StatusActive,
	}
	if err := s.Repo.CreateIfAbsent(ctx, u); err != nil {
		return nil, err
	}
	l.Info("user_registered", "user_id", u.ID)
	return u, nil
}

func (s *AuthService) Login(ctx context.Context, email, password, ip string) (*LoginResult, error) {
	l := logging.FromContext(ctx).With("svc", "auth.login")
	email = strings.ToLower(strings.TrimSpace(email))

	u, err := s.Repo.ByEmail(ctx, email)
	if err != nil {
		if apperr.KindOf(err) == apperr.KindNotFound {
			s.record(email, nil, false, ip)
			return nil, errInvalidCredentials
		}
		return nil, err
	}
	if !hash.CheckPassword(u.PasswordHash, password) {
		s.record(email, &u.ID, false, ip)
		return nil, errInvalidCredentials
	}
	if u.Status == models.StatusBanned {
		s.record(email, &u.ID, false, ip)
		return nil, apperr.New(apperr.KindForbidden, "Account is banned")
	}

	now := time.Now().UTC()
	if err := s.Repo.TouchLogin(ctx, u.ID, now); err != nil {
		l.Warn("last_login_not_updated", "user_id", u.ID, "error", err)
	} else {
		u.LastLogin = &now
	}

	ttl := s.AccessTTL
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	exp := now.Add(ttl)
	token, err := tokens.NewAccessToken(s.JWTSecret, u.Role, strconv.FormatUint(uint64(u.ID), 10), exp)
	if err != nil {
		l.Error("login_error", "reason", "cannot sign token", "error", err)
		return nil, err
	}
	s.record(email, &u.ID, true, ip)
	return &LoginResult{AccessToken: token, AccessExp: exp, User: u}, nil
}

func (s *AuthService) record(email string, id *uint, ok bool, ip string) {
	if s.Activity != nil {
		s.Activity.RecordLogin(email, id, ok, ip)
	}
}

func (s *AuthService) Me(ctx context.Context, id uint) (*models.User, error) {
	return s.Repo.ByID(ctx, id)
}

// LoadPrincipal satisfies the auth middleware's loader.
func (s *AuthService) LoadPrincipal(ctx context.Context, id uint) (mw.Principal, error) {
	u, err := s.Repo.ByID(ctx, id)
	if apperr.KindOf(err) == apperr.KindNotFound {
		return mw.Principal{}, mw.ErrUnknownPrincipal
	}
	if err != nil {
		return mw.Principal{}, err
	}
	return mw.Principal{ID: u.ID, Role: u.Role, Status: u.Status}, nil
}
