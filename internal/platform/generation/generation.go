// Package generation tags outstanding requests so that only the most recently
// issued request for a key may publish its response.
package generation

import (
	"errors"
	"sync"
)

// ErrStaleResponse is returned when a response arrives for a request that has
// been superseded by a newer one for the same key.
var ErrStaleResponse = errors.New("stale response discarded")

// Ticket identifies one issued request.
type Ticket struct {
	Key string
	Gen uint64
}

// Tracker hands out monotonically increasing tickets per key.
type Tracker struct {
	mu      sync.Mutex
	current map[string]uint64
}

// NewTracker creates an empty Tracker.
func NewTracker() *Tracker {
	return &Tracker{current: make(map[string]uint64)}
}

// Begin issues a new ticket for key, superseding every earlier ticket.
func (t *Tracker) Begin(key string) Ticket {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.current[key]++
	return Ticket{Key: key, Gen: t.current[key]}
}

// Current reports whether tk is still the latest ticket for its key.
func (t *Tracker) Current(tk Ticket) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.current[tk.Key] == tk.Gen
}

// Check returns ErrStaleResponse when tk has been superseded.
func (t *Tracker) Check(tk Ticket) error {
	if !t.Current(tk) {
		return ErrStaleResponse
	}
	return nil
}

// Invalidate supersedes every outstanding ticket for key without issuing a
// new one, so in-flight responses are dropped.
func (t *Tracker) Invalidate(key string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.current[key]++
}
