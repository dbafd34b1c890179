package notify

import (
	"context"
	"log/slog"
	"strconv"

	"github.com/Skotchmaster/marketfeed/internal/mykafka"
)

// KafkaPublisher writes events to one topic, keyed by target user so that
// a user's notifications stay ordered.
type KafkaPublisher struct {
	Producer *mykafka.Producer
	Topic    string
}

func (p *KafkaPublisher) Publish(ctx context.Context, ev Event) error {
	key := "broadcast"
	if ev.TargetUserID != nil {
		key = strconv.FormatUint(uint64(*ev.TargetUserID), 10)
	}
	return p.Producer.PublishEvent(ctx, p.Topic, key, ev)
}

// LogPublisher is used when no broker is configured.
type LogPublisher struct {
	Log *slog.Logger
}

func (p LogPublisher) Publish(_ context.Context, ev Event) error {
	l := p.Log
	if l == nil {
		l = slog.Default()
	}
	l.Info("notify_event", "kind", ev.Kind, "event_id", ev.ID, "title", ev.Title)
	return nil
}
