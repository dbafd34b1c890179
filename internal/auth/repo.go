package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/Skotchmaster/marketfeed/internal/apperr"
	"github.com/Skotchmaster/marketfeed/internal/models"
)

type GormRepo struct {
	DB *gorm.DB
}

func (r *GormRepo) ByEmail(ctx context.Context, email string) (*models.User, error) {
	var u models.User
	err := r.DB.WithContext(ctx).Where("LOWER(email) = ?", strings.ToLower(email)).First(&u).Error
	if err != nil {
		return nil, apperr.FromStore(fmt.Errorf("find user by email: %w", err))
	}
	return &u, nil
}

func (r *GormRepo) ByID(ctx context.Context, id uint) (*models.User, error) {
	var u models.User
	if err := r.DB.WithContext(ctx).First(&u, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.New(apperr.KindNotFound, "user not found")
		}
		return nil, apperr.FromStore(fmt.Errorf("find user: %w", err))
	}
	return &u, nil
}

// CreateIfAbsent inserts u unless a user with the same email exists.
func (r *GormRepo) CreateIfAbsent(ctx context.Context, u *models.User) error {
	tx := r.DB.WithContext(ctx).Where("LOWER(email) = ?", strings.ToLower(u.Email)).FirstOrCreate(u)
	if tx.Error != nil {
		return apperr.FromStore(fmt.Errorf("create user: %w", tx.Error))
	}
	if tx.RowsAffected == 0 {
		return apperr.New(apperr.KindConflict, "Email already registered")
	}
	return nil
}

func (r *GormRepo) TouchLogin(ctx context.Context, id uint, at time.Time) error {
	err := r.DB.WithContext(ctx).Model(&models.User{}).Where("id = ?", id).Update("last_login", at).Error
	return apperr.FromStore(err)
}
