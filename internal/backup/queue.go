package backup

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/Skotchmaster/marketfeed/pkg/metrics"
)

const runTimeout = 2 * time.Minute

type exporter interface {
	Export(ctx context.Context) (*Dump, error)
}

// Queue runs at most one backup at a time. Requests that arrive during a
// run collapse into a single follow-up run with reason "queued".
type Queue struct {
	exp     exporter
	sink    Sink
	log     *slog.Logger
	metrics *metrics.Metrics
	now     func() time.Time

	mu         sync.Mutex
	running    bool
	queued     bool
	queuedMeta map[string]any
	closed     bool
	wg         sync.WaitGroup
}

func NewQueue(exp exporter, sink Sink, log *slog.Logger, m *metrics.Metrics) *Queue {
	if log == nil {
		log = slog.Default()
	}
	return &Queue{
		exp:     exp,
		sink:    sink,
		log:     log.With("component", "backup"),
		metrics: m,
		now:     time.Now,
	}
}

// Enqueue never blocks and never reports failures to the caller.
func (q *Queue) Enqueue(reason string, meta map[string]any) {
	if q == nil {
		return
	}
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return
	}
	if q.running {
		q.queued = true
		q.queuedMeta = meta
		return
	}
	q.running = true
	q.wg.Add(1)
	go q.loop(reason, meta)
}

func (q *Queue) loop(reason string, meta map[string]any) {
	defer q.wg.Done()
	for {
		q.run(reason, meta)

		q.mu.Lock()
		if !q.queued || q.closed {
			q.running = false
			q.queued = false
			q.mu.Unlock()
			return
		}
		q.queued = false
		reason, meta = "queued", q.queuedMeta
		q.queuedMeta = nil
		q.mu.Unlock()
	}
}

func (q *Queue) run(reason string, meta map[string]any) {
	ctx, cancel := context.WithTimeout(context.Background(), runTimeout)
	defer cancel()

	runID := uuid.NewString()
	l := q.log.With("run_id", runID, "reason", reason)
	start := time.Now()

	if err := q.runOnce(ctx, runID, reason, meta); err != nil {
		l.Error("backup_failed", "error", err, "duration", time.Since(start))
		q.metrics.BackupRun("failed")
		return
	}
	l.Info("backup_done", "duration", time.Since(start))
	q.metrics.BackupRun("ok")
}

func (q *Queue) runOnce(ctx context.Context, runID, reason string, meta map[string]any) error {
	d, err := q.exp.Export(ctx)
	if err != nil {
		return err
	}
	d.RunID, d.Reason, d.Meta = runID, reason, meta

	payload, err := json.MarshalIndent(d, "", "  ")
	if err != nil {
		return fmt.Errorf("encode dump: %w", err)
	}
	name := fmt.Sprintf("data-%s.json", q.now().UTC().Format("20060102T150405.000Z"))
	return q.sink.Send(ctx, name, payload)
}

// Close stops accepting requests, drops any pending follow-up and waits for
// the current run, or for ctx.
func (q *Queue) Close(ctx context.Context) error {
	q.mu.Lock()
	q.closed = true
	q.mu.Unlock()

	done := make(chan struct{})
	go func() {
		q.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
