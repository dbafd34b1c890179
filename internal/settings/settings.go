// Package settings stores admin-editable key/value settings and serves the
// public subset from an in-process cache.
package settings

import (
	"context"
	"fmt"
	"strings"
	"time"

	gocache "github.com/patrickmn/go-cache"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/Skotchmaster/marketfeed/internal/apperr"
	"github.com/Skotchmaster/marketfeed/internal/models"
)

const maxKeys = 50

// private keys are never served by the public read.
var private = map[string]bool{
	models.SettingTotalRevenue: true,
}

type entry struct {
	value string
	found bool
}

type SettingsService struct {
	DB    *gorm.DB
	cache *gocache.Cache
}

func NewSettingsService(db *gorm.DB, ttl time.Duration) *SettingsService {
	if ttl <= 0 {
		ttl = time.Minute
	}
	return &SettingsService{DB: db, cache: gocache.New(ttl, 2*ttl)}
}

// Get returns the requested public settings; unknown keys are omitted.
func (s *SettingsService) Get(ctx context.Context, keys []string) (map[string]string, error) {
	out := map[string]string{}
	var missing []string
	seen := map[string]bool{}
	for _, k := range keys {
		k = strings.TrimSpace(k)
		if k == "" || seen[k] || private[k] {
			continue
		}
		seen[k] = true
		if len(seen) > maxKeys {
			return nil, apperr.Newf(apperr.KindValidation, "at most %d keys per request", maxKeys)
		}
		if v, ok := s.cache.Get(k); ok {
			if e := v.(entry); e.found {
				out[k] = e.value
			}
			continue
		}
		missing = append(missing, k)
	}
	if len(missing) == 0 {
		return out, nil
	}

	var rows []models.SystemSetting
	if err := s.DB.WithContext(ctx).Where(map[string]any{"key": missing}).Find(&rows).Error; err != nil {
		return nil, apperr.FromStore(fmt.Errorf("load settings: %w", err))
	}
	got := make(map[string]string, len(rows))
	for _, r := range rows {
		got[r.Key] = r.Value
	}
	for _, k := range missing {
		v, ok := got[k]
		s.cache.SetDefault(k, entry{value: v, found: ok})
		if ok {
			out[k] = v
		}
	}
	return out, nil
}

func (s *SettingsService) Set(ctx context.Context, key, value string) (*models.SystemSetting, error) {
	key = strings.TrimSpace(key)
	if key == "" {
		return nil, apperr.New(apperr.KindValidation, "key is required")
	}
	if private[key] {
		return nil, apperr.Newf(apperr.KindForbidden, "setting %q is managed by the ledger", key)
	}
	row := &models.SystemSetting{Key: key, Value: value, UpdatedAt: time.Now().UTC()}
	err := s.DB.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "key"}},
		DoUpdates: clause.AssignmentColumns([]string{"value", "updated_at"}),
	}).Create(row).Error
	if err != nil {
		return nil, apperr.FromStore(fmt.Errorf("save setting: %w", err))
	}
	s.cache.Delete(key)
	return row, nil
}
