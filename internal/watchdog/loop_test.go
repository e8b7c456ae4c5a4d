package watchdog

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jmylchreest/mutewatch/internal/suppress"
)

type fakeVolume struct {
	audible atomic.Bool
	level   float64
	calls   atomic.Int64
	panics  atomic.Int64 // panic on this many calls before answering
}

func (f *fakeVolume) Audible(ctx context.Context) bool {
	f.calls.Add(1)
	if f.panics.Load() > 0 {
		f.panics.Add(-1)
		panic("probe blew up")
	}
	return f.audible.Load()
}

func (f *fakeVolume) Level(ctx context.Context) (float64, bool) {
	return f.level, f.level > 0
}

type fakeMedia struct {
	active atomic.Bool
	calls  atomic.Int64
	during func() // runs inside Active, before it answers
}

func (f *fakeMedia) Active(ctx context.Context) bool {
	f.calls.Add(1)
	if f.during != nil {
		f.during()
	}
	return f.active.Load()
}

type fakeActuator struct {
	mu        sync.Mutex
	mutes     int
	unmutes   []float64
	muteErr   error
	unmuteErr error
}

func (f *fakeActuator) Mute(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.mutes++
	return f.muteErr
}

func (f *fakeActuator) Unmute(ctx context.Context, level float64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.unmutes = append(f.unmutes, level)
	return f.unmuteErr
}

func (f *fakeActuator) muteCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.mutes
}

type harness struct {
	vol    *fakeVolume
	media  *fakeMedia
	act    *fakeActuator
	window *suppress.Window
	loop   *Loop
	done   chan error
	cancel context.CancelFunc
}

func newHarness(t *testing.T, mutate func(*Config)) *harness {
	t.Helper()
	h := &harness{
		vol:    &fakeVolume{level: 0.5},
		media:  &fakeMedia{},
		act:    &fakeActuator{},
		window: &suppress.Window{},
	}
	cfg := Config{
		Volume:     h.vol,
		Media:      h.media,
		Actuator:   h.act,
		Window:     h.window,
		Poll:       5 * time.Millisecond,
		Cooldown:   time.Second,
		Suppressed: 5 * time.Millisecond,
		Backoff:    5 * time.Millisecond,
	}
	if mutate != nil {
		mutate(&cfg)
	}
	h.loop = New(cfg)
	return h
}

func (h *harness) start(t *testing.T) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	h.cancel = cancel
	h.done = make(chan error, 1)
	go func() { h.done <- h.loop.Run(ctx) }()
	t.Cleanup(func() {
		cancel()
		h.loop.Stop()
	})
}

func (h *harness) wait(t *testing.T) error {
	t.Helper()
	select {
	case err := <-h.done:
		return err
	case <-time.After(2 * time.Second):
		t.Fatal("loop did not exit in time")
		return nil
	}
}

func TestLoop_MutesOnceWithinCooldown(t *testing.T) {
	h := newHarness(t, nil)
	h.vol.audible.Store(true)
	h.media.active.Store(true)

	h.start(t)
	time.Sleep(150 * time.Millisecond)
	h.loop.Stop()
	require.NoError(t, h.wait(t))

	assert.Equal(t, 1, h.act.muteCount())
	assert.Equal(t, int64(1), h.loop.Status().MuteCount)

	select {
	case n := <-h.loop.Notices():
		assert.Equal(t, KindMuted, n.Kind)
		assert.True(t, n.Muted)
		assert.NotEmpty(t, n.ID)
		assert.InDelta(t, 0.5, n.RestoreLevel, 1e-9)
		assert.True(t, n.HasAction(ActionCancelMute))
	default:
		t.Fatal("expected a notice")
	}
}

func TestLoop_NoMuteWhileSuppressed(t *testing.T) {
	h := newHarness(t, nil)
	h.vol.audible.Store(true)
	h.media.active.Store(true)
	h.window.Suppress(time.Now(), time.Hour)

	h.start(t)
	time.Sleep(100 * time.Millisecond)
	h.loop.Stop()
	require.NoError(t, h.wait(t))

	assert.Zero(t, h.act.muteCount())
	assert.Zero(t, h.vol.calls.Load(), "probes do not run while suppressed")
	assert.Greater(t, h.loop.Status().Iterations, int64(1))
}

func TestLoop_SilentSkipsMediaProbe(t *testing.T) {
	h := newHarness(t, nil)
	h.media.active.Store(true)

	h.start(t)
	require.Eventually(t, func() bool { return h.vol.calls.Load() >= 3 }, time.Second, 5*time.Millisecond)
	h.loop.Stop()
	require.NoError(t, h.wait(t))

	assert.Zero(t, h.media.calls.Load())
	assert.Zero(t, h.act.muteCount())
}

func TestLoop_MediaInactiveNoMute(t *testing.T) {
	h := newHarness(t, nil)
	h.vol.audible.Store(true)

	h.start(t)
	require.Eventually(t, func() bool { return h.media.calls.Load() >= 3 }, time.Second, 5*time.Millisecond)
	h.loop.Stop()
	require.NoError(t, h.wait(t))

	assert.Zero(t, h.act.muteCount())
}

func TestLoop_StopIsPrompt(t *testing.T) {
	h := newHarness(t, func(c *Config) { c.Poll = time.Hour })

	h.start(t)
	require.Eventually(t, func() bool { return h.vol.calls.Load() == 1 }, time.Second, time.Millisecond)

	start := time.Now()
	h.loop.Stop()
	require.NoError(t, h.wait(t))
	assert.Less(t, time.Since(start), 500*time.Millisecond)
	assert.Equal(t, StateStopped, h.loop.State())

	calls := h.vol.calls.Load()
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, calls, h.vol.calls.Load(), "no probe after stop")
}

func TestLoop_ContextCancelStops(t *testing.T) {
	h := newHarness(t, func(c *Config) { c.Poll = time.Hour })

	h.start(t)
	require.Eventually(t, func() bool { return h.vol.calls.Load() == 1 }, time.Second, time.Millisecond)
	h.cancel()
	require.NoError(t, h.wait(t))
	assert.Equal(t, StateStopped, h.loop.State())
}

func TestLoop_StoppedIsTerminal(t *testing.T) {
	h := newHarness(t, nil)
	h.loop.Stop()
	h.loop.Stop()

	h.start(t)
	require.NoError(t, h.wait(t))
	assert.Zero(t, h.vol.calls.Load())
	assert.ErrorIs(t, h.loop.Run(context.Background()), ErrAlreadyRunning)
}

func TestLoop_RecoversFromPanic(t *testing.T) {
	h := newHarness(t, nil)
	h.vol.panics.Store(2)
	h.vol.audible.Store(true)
	h.media.active.Store(true)

	h.start(t)
	require.Eventually(t, func() bool { return h.act.muteCount() == 1 }, time.Second, 5*time.Millisecond)
	h.loop.Stop()
	require.NoError(t, h.wait(t))

	assert.GreaterOrEqual(t, h.vol.calls.Load(), int64(3))
}

func TestLoop_MuteFailureStillNotifies(t *testing.T) {
	h := newHarness(t, nil)
	h.vol.audible.Store(true)
	h.media.active.Store(true)
	h.act.muteErr = errors.New("all mute strategies failed")

	h.start(t)
	var n Notice
	select {
	case n = <-h.loop.Notices():
	case <-time.After(time.Second):
		t.Fatal("expected a notice")
	}
	h.loop.Stop()
	require.NoError(t, h.wait(t))

	assert.False(t, n.Muted)
	assert.False(t, n.HasAction(ActionCancelMute))
	assert.Zero(t, h.loop.Status().MuteCount)
}

func TestLoop_NoticeSendNeverBlocks(t *testing.T) {
	h := newHarness(t, func(c *Config) {
		c.Cooldown = time.Millisecond
		c.NoticeBuffer = 1
	})
	h.vol.audible.Store(true)
	h.media.active.Store(true)

	h.start(t)
	require.Eventually(t, func() bool { return h.act.muteCount() >= 5 }, time.Second, time.Millisecond)
	h.loop.Stop()
	require.NoError(t, h.wait(t))

	assert.Len(t, h.loop.Notices(), 1)
}

func TestLoop_Override(t *testing.T) {
	now := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	h := newHarness(t, func(c *Config) {
		c.Now = func() time.Time { return now }
	})

	muted, err := NewNotice(KindMuted, now)
	require.NoError(t, err)
	muted.RestoreLevel = 0.42

	require.NoError(t, h.loop.Override(context.Background(), muted))

	assert.Equal(t, []float64{0.42}, h.act.unmutes)
	assert.True(t, h.window.IsSuppressed(now.Add(4*time.Minute)))
	assert.False(t, h.window.IsSuppressed(now.Add(5*time.Minute)))

	st := h.loop.Status()
	assert.True(t, st.Suppressed)
	assert.True(t, st.SuppressedUntil.Equal(now.Add(5*time.Minute)))
	require.NotNil(t, st.LastNotice)
	assert.Equal(t, KindSuppressed, st.LastNotice.Kind)

	n := <-h.loop.Notices()
	assert.Equal(t, KindSuppressed, n.Kind)
	assert.True(t, n.Until.Equal(now.Add(5*time.Minute)))
}

func TestLoop_OverrideSuppressesEvenIfUnmuteFails(t *testing.T) {
	h := newHarness(t, nil)
	h.act.unmuteErr = errors.New("endpoint gone")

	err := h.loop.Override(context.Background(), Notice{ID: "x"})
	assert.Error(t, err)
	assert.True(t, h.window.IsSuppressed(time.Now()))
}

func TestLoop_OverridePausesEnforcement(t *testing.T) {
	h := newHarness(t, func(c *Config) { c.Cooldown = 30 * time.Millisecond })
	h.vol.audible.Store(true)
	h.media.active.Store(true)

	h.start(t)
	var n Notice
	select {
	case n = <-h.loop.Notices():
	case <-time.After(time.Second):
		t.Fatal("expected a notice")
	}
	require.NoError(t, h.loop.Override(context.Background(), n))
	mutes := h.act.muteCount()

	time.Sleep(100 * time.Millisecond)
	h.loop.Stop()
	require.NoError(t, h.wait(t))

	assert.Equal(t, mutes, h.act.muteCount())
}

func TestLoop_NoMuteWhenSuppressedDuringProbes(t *testing.T) {
	h := newHarness(t, nil)
	h.vol.audible.Store(true)
	h.media.active.Store(true)
	// the user cancels a mute while the media probe is still running
	h.media.during = func() { h.window.Suppress(time.Now(), time.Hour) }

	h.start(t)
	require.Eventually(t, func() bool { return h.loop.Status().Iterations >= 3 }, time.Second, time.Millisecond)
	h.loop.Stop()
	require.NoError(t, h.wait(t))

	assert.Equal(t, int64(1), h.media.calls.Load())
	assert.Zero(t, h.act.muteCount())
	assert.Empty(t, h.loop.Notices())
}

func TestNotice_Text(t *testing.T) {
	n := Notice{Kind: KindMuted, Muted: true}
	assert.Equal(t, "Speaker output muted", n.Summary())
	assert.NotEmpty(t, n.Body())

	s := Notice{Kind: KindSuppressed, Until: time.Date(2024, 1, 1, 9, 30, 0, 0, time.UTC)}
	assert.Equal(t, "Mute cancelled", s.Summary())
	assert.Contains(t, s.Body(), "09:30:00")
}

func TestState_String(t *testing.T) {
	assert.Equal(t, "active", StateActive.String())
	assert.Equal(t, "stopped", StateStopped.String())
}
