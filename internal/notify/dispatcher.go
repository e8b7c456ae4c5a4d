// Package notify surfaces watchdog notices as desktop notifications.
package notify

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/jmylchreest/mutewatch/internal/watchdog"
)

// AppName is the application name shown on notifications.
const AppName = "mutewatch"

// DefaultMinInterval is the minimum time between notices with the same key.
const DefaultMinInterval = 5 * time.Second

// Notifier shows a notice to the user.
type Notifier interface {
	Show(n watchdog.Notice) error
}

// ActionEvent is a user response coming back from a notification.
type ActionEvent struct {
	Notice watchdog.Notice
	Action watchdog.Action
}

// Desktop is a notification backend that may report user actions.
type Desktop interface {
	Notifier
	// Actions delivers action presses. Backends without action support
	// return a channel that never fires.
	Actions() <-chan ActionEvent
	Close() error
}

// Dispatcher rate-limits notices in front of a Notifier.
type Dispatcher struct {
	mu     sync.Mutex
	logger *slog.Logger

	backend Notifier

	// Rate limiting
	lastNotifyTime map[string]time.Time
	minInterval    time.Duration

	enabled bool
	now     func() time.Time
}

// NewDispatcher creates a Dispatcher. A nil backend only logs.
func NewDispatcher(backend Notifier, logger *slog.Logger) *Dispatcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Dispatcher{
		logger:         logger,
		backend:        backend,
		lastNotifyTime: make(map[string]time.Time),
		minInterval:    DefaultMinInterval,
		enabled:        true,
		now:            time.Now,
	}
}

// SetEnabled enables or disables desktop notifications.
func (d *Dispatcher) SetEnabled(enabled bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.enabled = enabled
}

// SetMinInterval sets the minimum interval between duplicate notices.
func (d *Dispatcher) SetMinInterval(interval time.Duration) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.minInterval = interval
}

// Dispatch shows n unless it is rate-limited. Suppression notices are
// only logged. It reports whether the backend was called.
func (d *Dispatcher) Dispatch(n watchdog.Notice) bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	if n.Kind == watchdog.KindSuppressed {
		d.logger.Info("suppression active", "until", n.Until, "notice", n.ID)
		return false
	}

	if !d.enabled || d.backend == nil {
		d.logger.Debug("desktop notification skipped", "notice", n.ID, "enabled", d.enabled)
		return false
	}

	key := noticeKey(n)
	if last, ok := d.lastNotifyTime[key]; ok {
		if d.now().Sub(last) < d.minInterval {
			d.logger.Debug("desktop notification rate-limited", "key", key, "notice", n.ID)
			return false
		}
	}
	d.lastNotifyTime[key] = d.now()

	d.logger.Debug("sending desktop notification", "key", key, "notice", n.ID)
	if err := d.backend.Show(n); err != nil {
		d.logger.Warn("failed to show desktop notification", "notice", n.ID, "error", err)
	}
	return true
}

// Pump dispatches notices until ctx is done.
func (d *Dispatcher) Pump(ctx context.Context, notices <-chan watchdog.Notice) {
	for {
		select {
		case <-ctx.Done():
			return
		case n := <-notices:
			d.Dispatch(n)
		}
	}
}

func noticeKey(n watchdog.Notice) string {
	if n.Muted {
		return string(n.Kind) + ":ok"
	}
	return string(n.Kind) + ":failed"
}

// discard is a Desktop that shows nothing.
type discard struct{}

func (discard) Show(watchdog.Notice) error   { return nil }
func (discard) Actions() <-chan ActionEvent { return nil }
func (discard) Close() error                { return nil }

// Discard returns a Desktop that drops every notice.
func Discard() Desktop { return discard{} }
