// Package watchdog runs the poll loop that mutes output while media plays
// through the speakers.
package watchdog

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/jmylchreest/mutewatch/internal/suppress"
)

// Default loop timings.
const (
	DefaultPoll       = time.Second
	DefaultCooldown   = 5 * time.Second
	DefaultSuppressed = 10 * time.Second
	DefaultBackoff    = 2 * time.Second

	defaultNoticeBuffer = 8
)

// ErrAlreadyRunning is returned by a second call to Run.
var ErrAlreadyRunning = errors.New("watchdog already running")

// State is the loop lifecycle state.
type State int32

const (
	StateActive State = iota
	StateStopped
)

func (s State) String() string {
	switch s {
	case StateActive:
		return "active"
	case StateStopped:
		return "stopped"
	default:
		return fmt.Sprintf("State(%d)", int32(s))
	}
}

// VolumeProbe reports whether output is audible.
type VolumeProbe interface {
	Audible(ctx context.Context) bool
	Level(ctx context.Context) (float64, bool)
}

// MediaProbe reports whether a media producer is active.
type MediaProbe interface {
	Active(ctx context.Context) bool
}

// Actuator changes the system mute state.
type Actuator interface {
	Mute(ctx context.Context) error
	Unmute(ctx context.Context, restoreLevel float64) error
}

// Config wires a Loop. Zero durations take the defaults.
type Config struct {
	Volume   VolumeProbe
	Media    MediaProbe
	Actuator Actuator
	Window   *suppress.Window

	Poll        time.Duration
	Cooldown    time.Duration
	Suppressed  time.Duration
	Backoff     time.Duration
	SuppressFor time.Duration

	// NoticeBuffer is the notices channel capacity.
	NoticeBuffer int
	// Now is the clock; nil uses time.Now.
	Now    func() time.Time
	Logger *slog.Logger
}

// Status is a snapshot for display.
type Status struct {
	State           State
	Suppressed      bool
	SuppressedUntil time.Time
	LastNotice      *Notice
	MuteCount       int64
	Iterations      int64
}

// Loop is the watchdog. Once stopped it never restarts.
type Loop struct {
	cfg    Config
	logger *slog.Logger
	window *suppress.Window

	state    atomic.Int32
	started  atomic.Bool
	stopCh   chan struct{}
	stopOnce sync.Once
	notices  chan Notice

	muteCount  atomic.Int64
	iterations atomic.Int64

	mu   sync.Mutex
	last *Notice
}

// New creates a Loop.
func New(cfg Config) *Loop {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.Window == nil {
		cfg.Window = &suppress.Window{}
	}
	if cfg.Poll <= 0 {
		cfg.Poll = DefaultPoll
	}
	if cfg.Cooldown <= 0 {
		cfg.Cooldown = DefaultCooldown
	}
	if cfg.Suppressed <= 0 {
		cfg.Suppressed = DefaultSuppressed
	}
	if cfg.Backoff <= 0 {
		cfg.Backoff = DefaultBackoff
	}
	if cfg.SuppressFor <= 0 {
		cfg.SuppressFor = suppress.DefaultDuration
	}
	if cfg.NoticeBuffer <= 0 {
		cfg.NoticeBuffer = defaultNoticeBuffer
	}

	return &Loop{
		cfg:     cfg,
		logger:  cfg.Logger,
		window:  cfg.Window,
		stopCh:  make(chan struct{}),
		notices: make(chan Notice, cfg.NoticeBuffer),
	}
}

// Notices delivers notices to the presentation layer. The channel is never
// closed; select on it together with a done signal.
func (l *Loop) Notices() <-chan Notice {
	return l.notices
}

// Done is closed when the loop is stopped.
func (l *Loop) Done() <-chan struct{} {
	return l.stopCh
}

// State returns the lifecycle state.
func (l *Loop) State() State {
	return State(l.state.Load())
}

// Run polls until ctx is cancelled or Stop is called. It returns nil on a
// normal stop.
func (l *Loop) Run(ctx context.Context) error {
	if !l.started.CompareAndSwap(false, true) {
		return ErrAlreadyRunning
	}
	defer l.Stop()

	l.logger.Info("watchdog started",
		"poll", l.cfg.Poll,
		"cooldown", l.cfg.Cooldown,
		"suppressed", l.cfg.Suppressed,
		"backoff", l.cfg.Backoff,
	)

	for !l.stopped(ctx) {
		d, err := l.iterate(ctx)
		if err != nil {
			l.logger.Error("watchdog iteration failed", "error", err)
			d = l.cfg.Backoff
		}
		if !l.sleep(ctx, d) {
			break
		}
	}

	l.logger.Info("watchdog stopped", "mutes", l.muteCount.Load())
	return nil
}

// Stop ends the loop. It is safe to call more than once and from any
// goroutine.
func (l *Loop) Stop() {
	l.stopOnce.Do(func() {
		l.state.Store(int32(StateStopped))
		close(l.stopCh)
	})
}

func (l *Loop) stopped(ctx context.Context) bool {
	return l.State() == StateStopped || ctx.Err() != nil
}

// sleep waits for d, returning false if woken by stop or cancellation.
func (l *Loop) sleep(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return true
	case <-l.stopCh:
		return false
	case <-ctx.Done():
		return false
	}
}

// iterate runs one check and returns how long to sleep before the next.
func (l *Loop) iterate(ctx context.Context) (next time.Duration, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("iteration panicked: %v", r)
		}
	}()
	l.iterations.Add(1)

	if l.window.IsSuppressed(l.cfg.Now()) {
		return l.cfg.Suppressed, nil
	}

	if !l.cfg.Volume.Audible(ctx) || !l.cfg.Media.Active(ctx) {
		return l.cfg.Poll, nil
	}

	// the probes may have taken a while
	if l.stopped(ctx) {
		return 0, nil
	}
	if l.window.IsSuppressed(l.cfg.Now()) {
		return l.cfg.Suppressed, nil
	}

	level, _ := l.cfg.Volume.Level(ctx)
	muteErr := l.cfg.Actuator.Mute(ctx)
	if muteErr != nil {
		l.logger.Warn("failed to mute output", "error", muteErr)
	} else {
		l.muteCount.Add(1)
		l.logger.Info("muted output", "restore_level", level)
	}

	n, err := NewNotice(KindMuted, l.cfg.Now())
	if err != nil {
		return 0, err
	}
	n.RestoreLevel = level
	n.Muted = muteErr == nil
	if n.Muted {
		n.Actions = []Action{ActionAcknowledge, ActionCancelMute}
	} else {
		n.Actions = []Action{ActionAcknowledge}
	}
	l.publish(n)

	return l.cfg.Cooldown, nil
}

// Override is the user's "cancel mute": restore output and pause
// enforcement. Suppression starts even if the unmute fails.
func (l *Loop) Override(ctx context.Context, n Notice) error {
	unmuteErr := l.cfg.Actuator.Unmute(ctx, n.RestoreLevel)
	if unmuteErr != nil {
		l.logger.Warn("failed to restore output", "notice", n.ID, "error", unmuteErr)
	}

	now := l.cfg.Now()
	l.window.Suppress(now, l.cfg.SuppressFor)
	until, _ := l.window.Until()
	l.logger.Info("mute cancelled, suppression active", "notice", n.ID, "until", until)

	s, err := NewNotice(KindSuppressed, now)
	if err != nil {
		return errors.Join(unmuteErr, err)
	}
	s.RestoreLevel = n.RestoreLevel
	s.Until = until
	l.publish(s)

	return unmuteErr
}

// publish hands a notice to the presentation layer without blocking.
func (l *Loop) publish(n Notice) {
	l.mu.Lock()
	l.last = &n
	l.mu.Unlock()

	select {
	case l.notices <- n:
	default:
		l.logger.Warn("notice dropped, presenter not keeping up", "notice", n.ID, "kind", n.Kind)
	}
}

// Status returns a snapshot of the loop.
func (l *Loop) Status() Status {
	until, _ := l.window.Until()
	st := Status{
		State:      l.State(),
		Suppressed: l.window.IsSuppressed(l.cfg.Now()),
		MuteCount:  l.muteCount.Load(),
		Iterations: l.iterations.Load(),
	}
	if st.Suppressed {
		st.SuppressedUntil = until
	}

	l.mu.Lock()
	if l.last != nil {
		n := *l.last
		st.LastNotice = &n
	}
	l.mu.Unlock()
	return st
}
