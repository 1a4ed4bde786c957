// Package firsttouch classifies bot-start events as first-time or repeat for
// the lifetime of the process. State is held in memory only: a restart
// forgets all history, which is accepted behavior for this bot.
package firsttouch

import "sync"

// Tracker remembers which user ids have already been observed. The zero
// value is not usable; construct with NewTracker.
type Tracker struct {
	mu   sync.Mutex
	seen map[int64]struct{}
}

// NewTracker constructs an empty Tracker.
func NewTracker() *Tracker {
	return &Tracker{seen: make(map[int64]struct{})}
}

// Observe records the user id and reports whether this is its first
// observation during the current process lifetime. Check and insert happen
// as one step under the lock, so concurrent starts for the same user never
// both report first-time.
func (t *Tracker) Observe(userID int64) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	if _, ok := t.seen[userID]; ok {
		return false
	}

	t.seen[userID] = struct{}{}
	return true
}

// Len returns the number of distinct users observed so far.
func (t *Tracker) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()

	return len(t.seen)
}

// Reset clears all tracked ids. Intended for test isolation.
func (t *Tracker) Reset() {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.seen = make(map[int64]struct{})
}
