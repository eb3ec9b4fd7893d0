package stock

import (
	"sync"
	"time"
)

// =============================================================================
// CLOCK
// =============================================================================

// Clock supplies commit timestamps. Tests swap in a fixed or stepping clock.
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now().UTC() }

// SystemClock is the wall clock in UTC.
var SystemClock Clock = systemClock{}

// monotonic never hands out a time earlier than one it already returned, so
// the ledger stays ordered even if the wall clock steps backwards.
type monotonic struct {
	mu    sync.Mutex
	clock Clock
	last  time.Time
}

func (m *monotonic) next() time.Time {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := m.clock.Now().UTC()
	if now.Before(m.last) {
		now = m.last
	}
	m.last = now
	return now
}

func (m *monotonic) observe(t time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if t.After(m.last) {
		m.last = t
	}
}

// =============================================================================
// DATE RANGE
// =============================================================================

// DateRange is an inclusive [From, To] window. A zero bound is open.
type DateRange struct {
	From time.Time
	To   time.Time
}

// Contains reports whether t falls inside the range.
func (r DateRange) Contains(t time.Time) bool {
	if !r.From.IsZero() && t.Before(r.From) {
		return false
	}
	if !r.To.IsZero() && t.After(r.To) {
		return false
	}
	return true
}

func (r DateRange) validate() error {
	if !r.From.IsZero() && !r.To.IsZero() && r.To.Before(r.From) {
		return invalidInput("date_range", "end before start")
	}
	return nil
}
