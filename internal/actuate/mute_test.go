package actuate

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jmylchreest/mutewatch/internal/platform"
	"github.com/jmylchreest/mutewatch/internal/platform/fake"
)

var errDenied = errors.New("access denied")

func newActuator(s *fake.System, script []string) *Actuator {
	return New(Config{
		Endpoint: s,
		Sessions: s,
		Keys:     s,
		Runner:   s,
		Script:   script,
	})
}

func TestMute_Endpoint(t *testing.T) {
	s := &fake.System{State: platform.VolumeState{Level: 0.5}}
	a := newActuator(s, nil)

	require.NoError(t, a.Mute(context.Background()))
	c := s.Snapshot()
	assert.True(t, c.State.Muted)
	assert.Equal(t, 0, c.KeyPresses)
}

func TestMute_Idempotent(t *testing.T) {
	s := &fake.System{State: platform.VolumeState{Level: 0.5, Muted: true}}
	a := newActuator(s, nil)

	require.NoError(t, a.Mute(context.Background()))
	require.NoError(t, a.Mute(context.Background()))
	assert.True(t, s.Snapshot().State.Muted)
}

func TestMute_FallsBackToSessions(t *testing.T) {
	s := &fake.System{
		SetMuteErr: errDenied,
		SessionsV: []platform.Session{
			{ProcessName: "a.exe"},
			{ProcessName: "b.exe"},
		},
	}
	a := newActuator(s, nil)
	require.NoError(t, a.Mute(context.Background()))

	sessions, _ := s.Sessions(context.Background())
	for _, sess := range sessions {
		assert.True(t, sess.Muted, sess.ProcessName)
	}
	assert.Equal(t, 0, s.Snapshot().KeyPresses)
}

func TestMute_NoSessionsFallsToKeystroke(t *testing.T) {
	s := &fake.System{SetMuteErr: errDenied}
	a := newActuator(s, nil)

	require.NoError(t, a.Mute(context.Background()))
	assert.Equal(t, 1, s.Snapshot().KeyPresses)
}

func TestMute_Script(t *testing.T) {
	s := &fake.System{
		SetMuteErr:  errDenied,
		SessionMute: errDenied,
		KeyErr:      platform.ErrUnsupported,
	}
	a := newActuator(s, []string{"sendkeys", "173"})

	require.NoError(t, a.Mute(context.Background()))
	assert.Equal(t, []string{"sendkeys", "173"}, s.LastArgv)
}

func TestMute_AllFail(t *testing.T) {
	s := &fake.System{
		SetMuteErr:  errDenied,
		SessionMute: errDenied,
		KeyErr:      platform.ErrUnsupported,
		RunErr:      errors.New("powershell missing"),
	}
	a := newActuator(s, []string{"sendkeys"})

	err := a.Mute(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrActuationFailed)
	assert.ErrorIs(t, err, errDenied)
	assert.ErrorIs(t, err, platform.ErrUnsupported)
	assert.Contains(t, err.Error(), "script: powershell missing")
}

func TestMute_NoStrategies(t *testing.T) {
	err := New(Config{}).Mute(context.Background())
	assert.ErrorIs(t, err, ErrActuationFailed)
}

func TestMute_CancelledContext(t *testing.T) {
	s := &fake.System{}
	a := newActuator(s, nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := a.Mute(ctx)
	assert.ErrorIs(t, err, ErrActuationFailed)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 0, s.Snapshot().SetMuteCalls)
}

func TestUnmute_RestoresLevel(t *testing.T) {
	s := &fake.System{State: platform.VolumeState{Level: 0.0, Muted: true}}
	a := newActuator(s, nil)

	require.NoError(t, a.Unmute(context.Background(), 0.42))
	c := s.Snapshot()
	assert.False(t, c.State.Muted)
	assert.InDelta(t, 0.42, c.State.Level, 1e-9)
	assert.Equal(t, 1, c.SetLevelCalls)
}

func TestUnmute_ZeroLevelOnlyClearsMute(t *testing.T) {
	s := &fake.System{State: platform.VolumeState{Level: 0.3, Muted: true}}
	a := newActuator(s, nil)

	require.NoError(t, a.Unmute(context.Background(), 0))
	c := s.Snapshot()
	assert.False(t, c.State.Muted)
	assert.InDelta(t, 0.3, c.State.Level, 1e-9)
	assert.Equal(t, 0, c.SetLevelCalls)
}

func TestUnmute_LevelFailureKeepsEndpointUnmute(t *testing.T) {
	s := &fake.System{
		State:       platform.VolumeState{Muted: true},
		SetLevelErr: errDenied,
		SessionsV:   []platform.Session{{ProcessName: "a.exe", Muted: true}},
	}
	a := newActuator(s, nil)

	require.NoError(t, a.Unmute(context.Background(), 0.5))
	c := s.Snapshot()
	assert.False(t, c.State.Muted)
	sessions, _ := s.Sessions(context.Background())
	assert.True(t, sessions[0].Muted, "sessions are left alone once the endpoint is unmuted")
}

func TestUnmute_LevelFailureNeverTogglesMuteBack(t *testing.T) {
	s := &fake.System{
		State:       platform.VolumeState{Muted: true},
		SetLevelErr: errDenied,
	}
	a := newActuator(s, []string{"sendkeys"})

	require.NoError(t, a.Unmute(context.Background(), 0.6))
	c := s.Snapshot()
	assert.False(t, c.State.Muted)
	assert.Zero(t, c.KeyPresses)
	assert.Zero(t, c.RunCalls)
}

func TestStrategies(t *testing.T) {
	a := newActuator(&fake.System{}, []string{"x"})
	assert.Equal(t, []string{"endpoint", "sessions", "keystroke", "script"}, a.Strategies())

	noScript := newActuator(&fake.System{}, nil)
	assert.Equal(t, []string{"endpoint", "sessions", "keystroke"}, noScript.Strategies())
}
