package backup

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/Skotchmaster/marketfeed/pkg/lock"
)

const scheduleLockKey = "cron:lock:backup"

// Scheduler enqueues a backup on a cron spec. With several instances
// sharing a Redis lock only one of them fires per tick.
type Scheduler struct {
	cron  *cron.Cron
	queue *Queue
	lock  lock.DistributedLock
	log   *slog.Logger
}

func NewScheduler(spec string, q *Queue, dl lock.DistributedLock, log *slog.Logger) (*Scheduler, error) {
	if dl == nil {
		dl = lock.Nop{}
	}
	if log == nil {
		log = slog.Default()
	}
	s := &Scheduler{cron: cron.New(), queue: q, lock: dl, log: log.With("component", "backup_scheduler")}
	if _, err := s.cron.AddFunc(spec, s.tick); err != nil {
		return nil, fmt.Errorf("backup schedule %q: %w", spec, err)
	}
	return s, nil
}

func (s *Scheduler) tick() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	ok, err := s.lock.Acquire(ctx, scheduleLockKey, 30*time.Second)
	if err != nil {
		s.log.Warn("backup_schedule_lock_failed", "error", err)
		return
	}
	if !ok {
		s.log.Debug("backup_schedule_skipped", "reason", "locked")
		return
	}
	// the lock is left to expire so a second instance firing a little
	// later in the same tick still sees it held
	s.queue.Enqueue("scheduled", nil)
}

func (s *Scheduler) Start() {
	s.cron.Start()
	s.log.Info("backup_scheduler_started")
}

// Stop waits for a running tick; the backup itself belongs to the queue.
func (s *Scheduler) Stop() {
	<-s.cron.Stop().Done()
	s.log.Info("backup_scheduler_stopped")
}
