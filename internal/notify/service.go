package notify

import (
	"context"
	"strings"
	"time"

	"github.com/Skotchmaster/marketfeed/internal/apperr"
	"github.com/Skotchmaster/marketfeed/internal/models"
	"github.com/Skotchmaster/marketfeed/pkg/logging"
)

const (
	defaultListLimit = 20
	maxListLimit     = 100
)

type CreateInput struct {
	Title        string
	Content      string
	ImageURL     string
	TargetUserID *uint
	CreatedBy    *uint
}

type NotificationService struct {
	Repo     *GormRepo
	Notifier *Notifier
	// Retention > 0 expires older notifications before each read.
	Retention time.Duration
}

func (s *NotificationService) Create(ctx context.Context, in CreateInput) (*models.Notification, error) {
	title := strings.TrimSpace(in.Title)
	if title == "" {
		return nil, apperr.New(apperr.KindValidation, "title is required")
	}
	n := &models.Notification{
		Title:        title,
		Content:      in.Content,
		ImageURL:     in.ImageURL,
		TargetUserID: in.TargetUserID,
		CreatedBy:    in.CreatedBy,
	}
	if err := s.Repo.Create(ctx, n); err != nil {
		return nil, err
	}
	s.Notifier.Enqueue(Event{
		Kind:         KindNotification,
		Title:        n.Title,
		Content:      n.Content,
		ImageURL:     n.ImageURL,
		TargetUserID: n.TargetUserID,
		Meta:         map[string]any{"notification_id": n.ID},
	})
	return n, nil
}

func (s *NotificationService) expire(ctx context.Context) {
	if s.Retention <= 0 {
		return
	}
	if err := s.Repo.Expire(ctx, time.Now().UTC().Add(-s.Retention)); err != nil {
		logging.FromContext(ctx).Warn("notification_expire_failed", "error", err)
	}
}

func (s *NotificationService) List(ctx context.Context, userID uint, limit int) ([]Item, int64, error) {
	if limit <= 0 {
		limit = defaultListLimit
	}
	if limit > maxListLimit {
		limit = maxListLimit
	}
	s.expire(ctx)
	return s.Repo.ListFor(ctx, userID, limit)
}

func (s *NotificationService) ReadAll(ctx context.Context, userID uint) error {
	s.expire(ctx)
	return s.Repo.MarkAllRead(ctx, userID)
}
