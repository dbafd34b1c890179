package backup

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/Skotchmaster/marketfeed/internal/mykafka"
)

type Sink interface {
	Send(ctx context.Context, name string, payload []byte) error
}

// FileSink writes each dump as its own file under Dir.
type FileSink struct {
	Dir string
}

func (s FileSink) Send(_ context.Context, name string, payload []byte) error {
	if err := os.MkdirAll(s.Dir, 0o755); err != nil {
		return fmt.Errorf("backup dir: %w", err)
	}
	final := filepath.Join(s.Dir, name)
	tmp := final + ".tmp"
	if err := os.WriteFile(tmp, payload, 0o600); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("write backup: %w", err)
	}
	if err := os.Rename(tmp, final); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("write backup: %w", err)
	}
	return nil
}

type KafkaSink struct {
	Producer *mykafka.Producer
	Topic    string
}

func (s KafkaSink) Send(ctx context.Context, name string, payload []byte) error {
	return s.Producer.PublishRaw(ctx, s.Topic, name, payload)
}

// Multi sends to every sink and joins their errors.
type Multi []Sink

func (m Multi) Send(ctx context.Context, name string, payload []byte) error {
	var errs []error
	for _, s := range m {
		if err := s.Send(ctx, name, payload); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
