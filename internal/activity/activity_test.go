package activity

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLog_KeepsNewestEntries(t *testing.T) {
	t.Parallel()
	l := New(3)
	for i := 0; i < 5; i++ {
		l.RecordRequest("GET", fmt.Sprintf("/p/%d", i), 200, time.Millisecond, "127.0.0.1", "")
	}

	got := l.List("", 10)
	require.Len(t, got, 3)
	assert.Equal(t, "/p/2", got[0].Path)
	assert.Equal(t, "/p/4", got[2].Path)
}

func TestLog_FilterAndLimit(t *testing.T) {
	t.Parallel()
	l := New(0)
	id := uint(7)
	l.RecordLogin("a@example.com", &id, true, "10.0.0.1")
	l.RecordRequest("POST", "/auth/login", 200, 3*time.Millisecond, "10.0.0.1", "rid-1")
	l.RecordLogin("b@example.com", nil, false, "10.0.0.2")

	logins := l.List(TypeLogin, 0)
	require.Len(t, logins, 2)
	assert.Equal(t, "a@example.com", logins[0].Email)
	require.NotNil(t, logins[1].Success)
	assert.False(t, *logins[1].Success)

	last := l.List("", 1)
	require.Len(t, last, 1)
	assert.Equal(t, "b@example.com", last[0].Email)

	reqs := l.List(TypeRequest, 5)
	require.Len(t, reqs, 1)
	assert.Equal(t, int64(3), reqs[0].DurationMs)
	assert.Equal(t, "rid-1", reqs[0].RequestID)
}

func TestLog_ConcurrentWriters(t *testing.T) {
	t.Parallel()
	l := New(DefaultCapacity)
	var wg sync.WaitGroup
	for w := 0; w < 8; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 100; i++ {
				l.RecordRequest("GET", "/products", 200, 0, "", "")
			}
		}()
	}
	wg.Wait()
	assert.Len(t, l.List("", 1000), DefaultCapacity)
}

func TestLog_NilIsEmpty(t *testing.T) {
	t.Parallel()
	var l *Log
	l.RecordLogin("x@example.com", nil, true, "")
	assert.Empty(t, l.List("", 10))
}
