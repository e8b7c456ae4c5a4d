// Package suppress tracks a deadline before which enforcement is paused.
package suppress

import (
	"sync/atomic"
	"time"
)

// DefaultDuration is how long a user override pauses enforcement.
const DefaultDuration = 5 * time.Minute

// Window is a single suppression deadline. A later Suppress replaces the
// earlier deadline; windows never stack. The zero value is not
// suppressed. Safe for concurrent use.
type Window struct {
	deadline atomic.Int64 // unix nanoseconds, valid once set is true
	set      atomic.Bool
}

// Suppress pauses enforcement until now+d.
func (w *Window) Suppress(now time.Time, d time.Duration) {
	w.deadline.Store(now.Add(d).UnixNano())
	w.set.Store(true)
}

// IsSuppressed reports whether now is strictly before the deadline.
func (w *Window) IsSuppressed(now time.Time) bool {
	return w.set.Load() && now.UnixNano() < w.deadline.Load()
}

// Until returns the deadline, if one was ever set.
func (w *Window) Until() (time.Time, bool) {
	if !w.set.Load() {
		return time.Time{}, false
	}
	return time.Unix(0, w.deadline.Load()), true
}

// Remaining returns the time left in the window, or zero when not suppressed.
func (w *Window) Remaining(now time.Time) time.Duration {
	if !w.set.Load() {
		return 0
	}
	left := time.Duration(w.deadline.Load() - now.UnixNano())
	if left < 0 {
		return 0
	}
	return left
}
