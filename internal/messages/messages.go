// Package messages implements one-to-one direct messages between users.
package messages

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"unicode/utf8"

	"gorm.io/gorm"

	"github.com/Skotchmaster/marketfeed/internal/apperr"
	"github.com/Skotchmaster/marketfeed/internal/models"
	"github.com/Skotchmaster/marketfeed/internal/notify"
	"github.com/Skotchmaster/marketfeed/pkg/logging"
	"github.com/Skotchmaster/marketfeed/pkg/util"
)

const (
	maxContent   = 5000
	defaultLimit = 30
	previewRunes = 120
)

type Notifier interface {
	Enqueue(ev notify.Event) bool
}

type Conversation struct {
	PartnerID     uint           `json:"partner_id"`
	PartnerName   string         `json:"partner_name"`
	PartnerAvatar string         `json:"partner_avatar"`
	PartnerEmail  string         `json:"partner_email"`
	LastMessage   models.Message `json:"last_message"`
	Unread        int            `json:"unread"`
}

type Thread struct {
	Messages   []models.Message `json:"messages"`
	Pagination util.Pagination  `json:"pagination"`
}

type MessageService struct {
	DB       *gorm.DB
	Notifier Notifier
}

// Conversations lists one entry per partner with the latest message of the
// pair, newest conversation first.
func (s *MessageService) Conversations(ctx context.Context, userID uint) ([]Conversation, error) {
	db := s.DB.WithContext(ctx)

	// latest message per direction; the two directions of a pair are folded below
	latest := db.Model(&models.Message{}).
		Select("MAX(id)").
		Where("sender_id = ? OR receiver_id = ?", userID, userID).
		Group("sender_id, receiver_id")
	var candidates []models.Message
	if err := db.Where("id IN (?)", latest).Find(&candidates).Error; err != nil {
		return nil, apperr.FromStore(fmt.Errorf("list conversations: %w", err))
	}
	if len(candidates) == 0 {
		return []Conversation{}, nil
	}
	newest := make(map[uint]models.Message, len(candidates))
	for _, m := range candidates {
		pid := partner(m, userID)
		if cur, ok := newest[pid]; !ok || m.ID > cur.ID {
			newest[pid] = m
		}
	}
	last := make([]models.Message, 0, len(newest))
	for _, m := range newest {
		last = append(last, m)
	}

	partners := make([]uint, 0, len(last))
	for _, m := range last {
		partners = append(partners, partner(m, userID))
	}
	var users []models.User
	if err := db.Select("id, full_name, avatar, email").Where("id IN ?", partners).Find(&users).Error; err != nil {
		return nil, apperr.FromStore(fmt.Errorf("load partners: %w", err))
	}
	byID := make(map[uint]models.User, len(users))
	for _, u := range users {
		byID[u.ID] = u
	}

	var unread []struct {
		SenderID uint
		Total    int
	}
	if err := db.Model(&models.Message{}).
		Select("sender_id, COUNT(*) AS total").
		Where("receiver_id = ? AND is_read = ?", userID, false).
		Group("sender_id").
		Scan(&unread).Error; err != nil {
		return nil, apperr.FromStore(fmt.Errorf("count unread: %w", err))
	}
	unreadBy := make(map[uint]int, len(unread))
	for _, u := range unread {
		unreadBy[u.SenderID] = u.Total
	}

	out := make([]Conversation, 0, len(last))
	for _, m := range last {
		pid := partner(m, userID)
		u := byID[pid]
		out = append(out, Conversation{
			PartnerID:     pid,
			PartnerName:   u.FullName,
			PartnerAvatar: u.Avatar,
			PartnerEmail:  u.Email,
			LastMessage:   m,
			Unread:        unreadBy[pid],
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].LastMessage.ID > out[j].LastMessage.ID })
	return out, nil
}

// Thread returns one page of the exchange with otherID, oldest first within
// the page, and marks what otherID sent as read. Page 1 is the most recent.
func (s *MessageService) Thread(ctx context.Context, userID, otherID uint, page, limit int) (*Thread, error) {
	if otherID == 0 {
		return nil, apperr.New(apperr.KindValidation, "user id is required")
	}
	page, limit = util.Normalize(page, limit, defaultLimit)
	from, size := util.Calculate(page, limit)

	db := s.DB.WithContext(ctx)
	const pair = "(sender_id = ? AND receiver_id = ?) OR (sender_id = ? AND receiver_id = ?)"

	var total int64
	if err := db.Model(&models.Message{}).Where(pair, userID, otherID, otherID, userID).Count(&total).Error; err != nil {
		return nil, apperr.FromStore(fmt.Errorf("count thread: %w", err))
	}
	rows := []models.Message{}
	if err := db.Where(pair, userID, otherID, otherID, userID).
		Order("created_at DESC").Order("id DESC").
		Offset(from).Limit(size).
		Find(&rows).Error; err != nil {
		return nil, apperr.FromStore(fmt.Errorf("load thread: %w", err))
	}
	for i, j := 0, len(rows)-1; i < j; i, j = i+1, j-1 {
		rows[i], rows[j] = rows[j], rows[i]
	}

	if err := db.Model(&models.Message{}).
		Where("sender_id = ? AND receiver_id = ? AND is_read = ?", otherID, userID, false).
		Update("is_read", true).Error; err != nil {
		return nil, apperr.FromStore(fmt.Errorf("mark thread read: %w", err))
	}

	return &Thread{
		Messages: rows,
		Pagination: util.Pagination{
			Page:       page,
			Limit:      limit,
			Total:      int(total),
			TotalPages: util.TotalPages(int(total), limit),
		},
	}, nil
}

// Send stores a text message to an existing, non-banned user and notifies
// the receiver.
func (s *MessageService) Send(ctx context.Context, senderID, receiverID uint, content string) (*models.Message, error) {
	l := logging.FromContext(ctx).With("svc", "messages.send", "sender_id", senderID, "receiver_id", receiverID)

	content = strings.TrimSpace(content)
	switch {
	case receiverID == 0:
		return nil, apperr.New(apperr.KindValidation, "receiver is required")
	case receiverID == senderID:
		return nil, apperr.New(apperr.KindValidation, "cannot message yourself")
	case content == "":
		return nil, apperr.New(apperr.KindValidation, "content is required")
	case utf8.RuneCountInString(content) > maxContent:
		return nil, apperr.Newf(apperr.KindValidation, "content must be at most %d characters", maxContent)
	}

	var receiver models.User
	err := s.DB.WithContext(ctx).Select("id, status").First(&receiver, receiverID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperr.New(apperr.KindNotFound, "receiver not found")
	}
	if err != nil {
		return nil, apperr.FromStore(fmt.Errorf("find receiver: %w", err))
	}
	if receiver.Status == models.StatusBanned {
		return nil, apperr.New(apperr.KindInvalidState, "receiver account is banned")
	}

	msg := &models.Message{SenderID: senderID, ReceiverID: receiverID, Content: content}
	if err := s.DB.WithContext(ctx).Create(msg).Error; err != nil {
		return nil, apperr.FromStore(fmt.Errorf("send message: %w", err))
	}

	if s.Notifier != nil {
		target := receiverID
		s.Notifier.Enqueue(notify.Event{
			Kind:         notify.KindMessage,
			Title:        "New message",
			Content:      preview(content),
			TargetUserID: &target,
			Meta:         map[string]any{"message_id": msg.ID, "sender_id": senderID},
		})
	}
	l.Info("message_sent", "message_id", msg.ID)
	return msg, nil
}

func partner(m models.Message, userID uint) uint {
	if m.SenderID == userID {
		return m.ReceiverID
	}
	return m.SenderID
}

func preview(s string) string {
	if utf8.RuneCountInString(s) <= previewRunes {
		return s
	}
	return string([]rune(s)[:previewRunes]) + "…"
}
