// Package activity keeps the most recent requests and login attempts in
// memory for the admin log view.
package activity

import (
	"sync"
	"time"
)

const (
	DefaultCapacity = 500
	defaultLimit    = 200

	TypeRequest = "request"
	TypeLogin   = "login"
)

type Entry struct {
	Type       string    `json:"type"`
	TS         time.Time `json:"ts"`
	Method     string    `json:"method,omitempty"`
	Path       string    `json:"path,omitempty"`
	Status     int       `json:"status,omitempty"`
	DurationMs int64     `json:"durationMs,omitempty"`
	RequestID  string    `json:"request_id,omitempty"`
	UserID     *uint     `json:"userId,omitempty"`
	Email      string    `json:"email,omitempty"`
	Success    *bool     `json:"success,omitempty"`
	IP         string    `json:"ip,omitempty"`
}

// Log is a fixed-size ring buffer; the oldest entry is overwritten once full.
type Log struct {
	mu   sync.Mutex
	buf  []Entry
	next int
	full bool
	now  func() time.Time
}

func New(capacity int) *Log {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Log{buf: make([]Entry, capacity), now: time.Now}
}

func (l *Log) push(e Entry) {
	if l == nil {
		return
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	e.TS = l.now().UTC()
	l.buf[l.next] = e
	l.next = (l.next + 1) % len(l.buf)
	if l.next == 0 {
		l.full = true
	}
}

// RecordRequest satisfies the request logger's Recorder.
func (l *Log) RecordRequest(method, path string, status int, duration time.Duration, ip, requestID string) {
	l.push(Entry{
		Type:       TypeRequest,
		Method:     method,
		Path:       path,
		Status:     status,
		DurationMs: duration.Milliseconds(),
		IP:         ip,
		RequestID:  requestID,
	})
}

func (l *Log) RecordLogin(email string, userID *uint, success bool, ip string) {
	l.push(Entry{Type: TypeLogin, Email: email, UserID: userID, Success: &success, IP: ip})
}

// List returns up to limit of the newest entries, oldest first, optionally
// filtered by type.
func (l *Log) List(typ string, limit int) []Entry {
	if limit <= 0 {
		limit = defaultLimit
	}
	out := []Entry{}
	if l == nil {
		return out
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	n := l.next
	if l.full {
		n = len(l.buf)
	}
	// walk backwards from the newest entry
	for i := 0; i < n && len(out) < limit; i++ {
		e := l.buf[(l.next-1-i+len(l.buf))%len(l.buf)]
		if typ != "" && e.Type != typ {
			continue
		}
		out = append(out, e)
	}
	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	return out
}
