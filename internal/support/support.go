// Package support files user support requests and reports into the inbox of
// a configured staff account.
package support

import (
	"context"
	"fmt"
	"strings"

	"gorm.io/gorm"

	"github.com/Skotchmaster/marketfeed/internal/apperr"
	"github.com/Skotchmaster/marketfeed/internal/models"
	"github.com/Skotchmaster/marketfeed/internal/notify"
	"github.com/Skotchmaster/marketfeed/pkg/logging"
)

const (
	TypeSupport = "support"
	TypeReport  = "report"
)

var errNoInbox = apperr.New(apperr.KindUnavailable, "support inbox is not configured")

type Notifier interface {
	Enqueue(ev notify.Event) bool
}

type Input struct {
	Type    string
	Subject string
	Content string
}

type SupportService struct {
	DB       *gorm.DB
	Notifier Notifier
	// InboxUserID receives the thread messages. Zero disables the service.
	InboxUserID uint
}

func label(typ string) string {
	if typ == TypeReport {
		return "[Report] "
	}
	return "[Support] "
}

// Create stores the request and mirrors it as a message to the inbox owner.
func (s *SupportService) Create(ctx context.Context, userID uint, in Input) (*models.SupportRequest, error) {
	l := logging.FromContext(ctx).With("svc", "support.create", "user_id", userID)
	if s.InboxUserID == 0 {
		return nil, errNoInbox
	}

	typ := in.Type
	if typ != TypeReport {
		typ = TypeSupport
	}
	subject, content := strings.TrimSpace(in.Subject), strings.TrimSpace(in.Content)
	if subject == "" || content == "" {
		return nil, apperr.New(apperr.KindValidation, "Subject and content are required")
	}

	req := &models.SupportRequest{UserID: userID, Type: typ, Subject: subject, Content: content, Status: "open"}
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(req).Error; err != nil {
			return err
		}
		msg := &models.Message{SenderID: userID, ReceiverID: s.InboxUserID, Content: label(typ) + subject + "\n" + content}
		return tx.Create(msg).Error
	})
	if err != nil {
		return nil, apperr.FromStore(fmt.Errorf("create support request: %w", err))
	}

	if s.Notifier != nil {
		owner := s.InboxUserID
		s.Notifier.Enqueue(notify.Event{
			Kind:         notify.KindSupport,
			Title:        label(typ) + subject,
			Content:      content,
			TargetUserID: &owner,
			Meta:         map[string]any{"request_id": req.ID, "user_id": userID, "type": typ},
		})
	}
	l.Info("support_request_created", "request_id", req.ID, "type", typ)
	return req, nil
}

func (s *SupportService) Mine(ctx context.Context, userID uint, typ string) ([]models.SupportRequest, error) {
	q := s.DB.WithContext(ctx).Where("user_id = ?", userID)
	if typ != "" {
		q = q.Where("type = ?", typ)
	}
	rows := []models.SupportRequest{}
	if err := q.Order("created_at DESC").Order("id DESC").Find(&rows).Error; err != nil {
		return nil, apperr.FromStore(fmt.Errorf("list support requests: %w", err))
	}
	return rows, nil
}

// Thread is the message history between the user and the inbox owner.
func (s *SupportService) Thread(ctx context.Context, userID uint) ([]models.Message, error) {
	if s.InboxUserID == 0 {
		return nil, errNoInbox
	}
	rows := []models.Message{}
	err := s.DB.WithContext(ctx).
		Where("(sender_id = ? AND receiver_id = ?) OR (sender_id = ? AND receiver_id = ?)",
			userID, s.InboxUserID, s.InboxUserID, userID).
		Order("created_at ASC").Order("id ASC").
		Find(&rows).Error
	if err != nil {
		return nil, apperr.FromStore(fmt.Errorf("support thread: %w", err))
	}
	return rows, nil
}
