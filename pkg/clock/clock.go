package clock

import (
	"sync"
	"time"
)

// clock is the only source of "now" for the ledger
// reading it is the ledger's only time dependent behavior, there are no timers
type Clock interface {
	Now() time.Time
}

// wall clock in UTC
// on a raft cluster only the leader reads it, followers replay the stamped time
type System struct{}

func (System) Now() time.Time {
	return time.Now().UTC()
}

// a clock that only moves when told to, used by tests and replays
type Manual struct {
	mu  sync.Mutex
	now time.Time
}

func NewManual(start time.Time) *Manual {
	return &Manual{now: start.UTC()}
}

func (m *Manual) Now() time.Time {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.now
}

// moves the clock forward by d
func (m *Manual) Advance(d time.Duration) time.Time {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.now = m.now.Add(d)
	return m.now
}

func (m *Manual) Set(t time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.now = t.UTC()
}
