// Package notify delivers outbound events (new notifications, admin posts,
// support requests) to an external channel without blocking the request
// that produced them.
package notify

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/Skotchmaster/marketfeed/pkg/metrics"
)

const (
	KindNotification = "notification"
	KindAdminPost    = "admin_post"
	KindSupport      = "support_request"
	KindDeposit      = "deposit_request"
	KindMessage      = "direct_message"
)

type Event struct {
	ID           string         `json:"id"`
	Kind         string         `json:"kind"`
	Title        string         `json:"title"`
	Content      string         `json:"content,omitempty"`
	ImageURL     string         `json:"image_url,omitempty"`
	TargetUserID *uint          `json:"target_user_id,omitempty"`
	Meta         map[string]any `json:"meta,omitempty"`
	CreatedAt    time.Time      `json:"created_at"`
}

type Publisher interface {
	Publish(ctx context.Context, ev Event) error
}

// Notifier buffers events on a channel drained by a single worker. Delivery
// is best effort: failures are logged and the event is dropped.
type Notifier struct {
	pub     Publisher
	log     *slog.Logger
	metrics *metrics.Metrics
	timeout time.Duration

	mu     sync.RWMutex
	closed bool
	ch     chan Event
	done   chan struct{}
}

func NewNotifier(pub Publisher, buffer int, log *slog.Logger, m *metrics.Metrics) *Notifier {
	if buffer <= 0 {
		buffer = 64
	}
	if log == nil {
		log = slog.Default()
	}
	return &Notifier{
		pub:     pub,
		log:     log.With("component", "notifier"),
		metrics: m,
		timeout: 5 * time.Second,
		ch:      make(chan Event, buffer),
		done:    make(chan struct{}),
	}
}

// Enqueue never blocks. It reports whether the event was accepted.
func (n *Notifier) Enqueue(ev Event) bool {
	if n == nil {
		return false
	}
	if ev.ID == "" {
		ev.ID = uuid.NewString()
	}
	if ev.CreatedAt.IsZero() {
		ev.CreatedAt = time.Now().UTC()
	}

	n.mu.RLock()
	defer n.mu.RUnlock()
	if n.closed {
		n.log.Warn("notify_dropped", "reason", "closed", "kind", ev.Kind)
		n.metrics.Notify("dropped")
		return false
	}
	select {
	case n.ch <- ev:
		return true
	default:
		n.log.Warn("notify_dropped", "reason", "buffer_full", "kind", ev.Kind)
		n.metrics.Notify("dropped")
		return false
	}
}

// Run drains the queue until Close is called; events still buffered at that
// point are delivered before Run returns.
func (n *Notifier) Run(ctx context.Context) {
	defer close(n.done)
	for ev := range n.ch {
		n.deliver(ctx, ev)
	}
}

func (n *Notifier) deliver(ctx context.Context, ev Event) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), n.timeout)
	defer cancel()
	if err := n.pub.Publish(ctx, ev); err != nil {
		n.log.Error("notify_failed", "kind", ev.Kind, "event_id", ev.ID, "error", err)
		n.metrics.Notify("failed")
		return
	}
	n.metrics.Notify("sent")
}

// Close stops accepting events and waits for the worker to flush, or for
// ctx to expire.
func (n *Notifier) Close(ctx context.Context) error {
	n.mu.Lock()
	if !n.closed {
		n.closed = true
		close(n.ch)
	}
	n.mu.Unlock()

	select {
	case <-n.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
