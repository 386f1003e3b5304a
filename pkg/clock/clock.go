// Package clock provides the injectable time source used across the core.
// Production code uses Wall; tests drive a Manual clock so freshness windows,
// circuit penalties, and approval deadlines are deterministic.
package clock

import (
	"sync"
	"time"
)

// Clock abstracts the current time.
type Clock interface {
	Now() time.Time
}

type wallClock struct{}

func (wallClock) Now() time.Time { return time.Now() }

// Wall returns the real-time clock.
func Wall() Clock { return wallClock{} }

// Millis returns t as milliseconds since the Unix epoch, the unit used by
// vitality tokens.
func Millis(t time.Time) int64 { return t.UnixMilli() }

// FromMillis converts epoch milliseconds back to a UTC time.
func FromMillis(ms int64) time.Time { return time.UnixMilli(ms).UTC() }

// Manual is a settable clock for tests. The zero value starts at the Unix
// epoch; use Set or Advance to move it.
type Manual struct {
	mu sync.Mutex
	t  time.Time
}

// NewManual returns a Manual clock pinned to start.
func NewManual(start time.Time) *Manual {
	return &Manual{t: start}
}

func (m *Manual) Now() time.Time {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.t
}

// Advance moves the clock forward by d and returns the new time.
func (m *Manual) Advance(d time.Duration) time.Time {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.t = m.t.Add(d)
	return m.t
}

// Set pins the clock to t.
func (m *Manual) Set(t time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.t = t
}
