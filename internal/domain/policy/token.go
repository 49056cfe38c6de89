package policy

import (
	"sync"
	"time"
)

// tokenFormat is a fixed-width UTC layout with nanosecond precision so that
// lexicographic order of tokens equals chronological order of issue.
const tokenFormat = "2006-01-02T15:04:05.000000000Z"

// TokenClock issues strictly increasing version tokens. The wall clock alone
// is not a safe token source: two mutations inside the same clock tick would
// collide, and (policy, version) history rows must stay totally ordered.
// When the clock has not advanced past the previously issued token, the
// clock reading is bumped by one nanosecond.
type TokenClock struct {
	mu   sync.Mutex
	now  func() time.Time
	last time.Time
}

// NewTokenClock creates a TokenClock backed by the system clock.
func NewTokenClock() *TokenClock {
	return &TokenClock{now: time.Now}
}

// newTokenClockAt creates a TokenClock with an injectable time source, for tests.
func newTokenClockAt(now func() time.Time) *TokenClock {
	return &TokenClock{now: now}
}

// Next returns a fresh version token, strictly greater than any token this
// clock has issued before.
func (c *TokenClock) Next() string {
	c.mu.Lock()
	defer c.mu.Unlock()

	t := c.now().UTC()
	if !t.After(c.last) {
		t = c.last.Add(time.Nanosecond)
	}
	c.last = t
	return t.Format(tokenFormat)
}
