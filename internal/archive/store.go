package archive

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/Skotchmaster/marketfeed/internal/apperr"
	"github.com/Skotchmaster/marketfeed/pkg/lock"
)

const lockKey = "archive:envelope"

// FileStore keeps the envelope in one JSON file. Reads are served from a
// cache keyed by the file's modification time and size; writes are
// serialized in-process by writeMu and across processes by the distributed
// lock, then land atomically through a rename.
type FileStore struct {
	path    string
	dlock   lock.DistributedLock
	lockTTL time.Duration

	writeMu sync.Mutex

	mu     sync.RWMutex
	cached *Envelope
	mtime  time.Time
	size   int64
}

func NewFileStore(path string, dl lock.DistributedLock, lockTTL time.Duration) *FileStore {
	if dl == nil {
		dl = lock.Nop{}
	}
	if lockTTL <= 0 {
		lockTTL = 30 * time.Second
	}
	return &FileStore{path: path, dlock: dl, lockTTL: lockTTL}
}

func (s *FileStore) Path() string { return s.path }

// Load returns a private copy of the current envelope. A missing file is an
// empty envelope.
func (s *FileStore) Load(ctx context.Context) (*Envelope, error) {
	if err := ctx.Err(); err != nil {
		return nil, apperr.Wrap(apperr.KindUnavailable, "archive unavailable", err)
	}
	env, err := s.load()
	if err != nil {
		return nil, err
	}
	return env.clone(), nil
}

func (s *FileStore) load() (*Envelope, error) {
	st, err := os.Stat(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		s.mu.Lock()
		defer s.mu.Unlock()
		s.cached, s.mtime, s.size = emptyEnvelope(), time.Time{}, 0
		return s.cached, nil
	}
	if err != nil {
		return nil, apperr.Wrap(apperr.KindUnavailable, "archive unavailable", err)
	}

	s.mu.RLock()
	if s.cached != nil && st.ModTime().Equal(s.mtime) && st.Size() == s.size {
		env := s.cached
		s.mu.RUnlock()
		return env, nil
	}
	s.mu.RUnlock()

	raw, err := os.ReadFile(s.path)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindUnavailable, "archive unavailable", err)
	}
	env := emptyEnvelope()
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, env); err != nil {
			return nil, apperr.Wrap(apperr.KindUnavailable, "archive file is corrupt", err)
		}
	}
	env.normalize()

	s.mu.Lock()
	s.cached, s.mtime, s.size = env, st.ModTime(), st.Size()
	s.mu.Unlock()
	return env, nil
}

// Update runs a read-modify-write cycle under the writer locks. fn receives
// a private copy; when it returns nil the copy is persisted.
func (s *FileStore) Update(ctx context.Context, fn func(*Envelope) error) (*Envelope, error) {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	if err := lock.Wait(ctx, s.dlock, lockKey, s.lockTTL, 50*time.Millisecond); err != nil {
		return nil, apperr.Wrap(apperr.KindUnavailable, "archive is locked by another writer", err)
	}
	defer func() {
		// release must outlive a cancelled request context
		relCtx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		_ = s.dlock.Release(relCtx, lockKey)
	}()

	// another process may have written since our last read; stat-based
	// caching picks that up here
	cur, err := s.load()
	if err != nil {
		return nil, err
	}
	next := cur.clone()
	if err := fn(next); err != nil {
		return nil, err
	}
	next.normalize()

	if err := s.write(next); err != nil {
		return nil, err
	}
	return next.clone(), nil
}

func (s *FileStore) write(env *Envelope) error {
	raw, err := json.MarshalIndent(env, "", "  ")
	if err != nil {
		return fmt.Errorf("encode archive: %w", err)
	}

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return apperr.Wrap(apperr.KindUnavailable, "archive unavailable", err)
	}
	tmp := filepath.Join(dir, "."+filepath.Base(s.path)+"."+uuid.NewString()+".tmp")
	if err := writeFileSync(tmp, raw); err != nil {
		_ = os.Remove(tmp)
		return apperr.Wrap(apperr.KindUnavailable, "write archive", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		_ = os.Remove(tmp)
		return apperr.Wrap(apperr.KindUnavailable, "write archive", err)
	}

	st, err := os.Stat(s.path)
	if err != nil {
		return apperr.Wrap(apperr.KindUnavailable, "stat archive", err)
	}
	s.mu.Lock()
	s.cached, s.mtime, s.size = env, st.ModTime(), st.Size()
	s.mu.Unlock()
	return nil
}

func writeFileSync(path string, data []byte) error {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return err
	}
	if _, err := f.Write(data); err != nil {
		_ = f.Close()
		return err
	}
	if err := f.Sync(); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}

func emptyEnvelope() *Envelope {
	e := &Envelope{}
	e.normalize()
	return e
}
