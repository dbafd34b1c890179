package notify

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/Skotchmaster/marketfeed/internal/apperr"
	"github.com/Skotchmaster/marketfeed/internal/models"
)

type Item struct {
	models.Notification
	IsRead bool `json:"is_read"`
}

type GormRepo struct {
	DB *gorm.DB
}

func (r *GormRepo) Create(ctx context.Context, n *models.Notification) error {
	if err := r.DB.WithContext(ctx).Create(n).Error; err != nil {
		return apperr.FromStore(fmt.Errorf("create notification: %w", err))
	}
	return nil
}

// Expire deletes notifications created before cutoff, with their read marks.
func (r *GormRepo) Expire(ctx context.Context, cutoff time.Time) error {
	return r.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		old := tx.Model(&models.Notification{}).Select("id").Where("created_at < ?", cutoff)
		if err := tx.Where("notification_id IN (?)", old).Delete(&models.NotificationRead{}).Error; err != nil {
			return err
		}
		return tx.Where("created_at < ?", cutoff).Delete(&models.Notification{}).Error
	})
}

func visibleTo(userID uint) func(*gorm.DB) *gorm.DB {
	return func(db *gorm.DB) *gorm.DB {
		return db.Where("n.target_user_id IS NULL OR n.target_user_id = ?", userID)
	}
}

func (r *GormRepo) ListFor(ctx context.Context, userID uint, limit int) ([]Item, int64, error) {
	db := r.DB.WithContext(ctx)

	var rows []struct {
		models.Notification
		ReadAt *time.Time
	}
	err := db.Table("notifications n").
		Select("n.*, nr.read_at").
		Joins("LEFT JOIN notification_reads nr ON nr.notification_id = n.id AND nr.user_id = ?", userID).
		Scopes(visibleTo(userID)).
		Order("n.created_at DESC, n.id DESC").
		Limit(limit).
		Scan(&rows).Error
	if err != nil {
		return nil, 0, apperr.FromStore(fmt.Errorf("list notifications: %w", err))
	}

	var unread int64
	err = db.Table("notifications n").
		Joins("LEFT JOIN notification_reads nr ON nr.notification_id = n.id AND nr.user_id = ?", userID).
		Scopes(visibleTo(userID)).
		Where("nr.notification_id IS NULL").
		Count(&unread).Error
	if err != nil {
		return nil, 0, apperr.FromStore(fmt.Errorf("count unread: %w", err))
	}

	out := make([]Item, 0, len(rows))
	for _, r := range rows {
		out = append(out, Item{Notification: r.Notification, IsRead: r.ReadAt != nil})
	}
	return out, unread, nil
}

func (r *GormRepo) MarkAllRead(ctx context.Context, userID uint) error {
	db := r.DB.WithContext(ctx)
	var ids []uint
	if err := db.Table("notifications n").Scopes(visibleTo(userID)).Pluck("n.id", &ids).Error; err != nil {
		return apperr.FromStore(fmt.Errorf("list notification ids: %w", err))
	}
	if len(ids) == 0 {
		return nil
	}
	now := time.Now().UTC()
	reads := make([]models.NotificationRead, 0, len(ids))
	for _, id := range ids {
		reads = append(reads, models.NotificationRead{NotificationID: id, UserID: userID, ReadAt: now})
	}
	err := db.Clauses(clause.OnConflict{DoNothing: true}).Create(&reads).Error
	return apperr.FromStore(err)
}
