// Package fake provides in-memory implementations of the platform ports
// for tests.
package fake

import (
	"context"
	"sync"

	"github.com/jmylchreest/mutewatch/internal/platform"
)

// System is a scriptable audio system. The zero value has every
// capability succeed with silent, empty readings. Set the *Err fields to
// make a capability fail.
type System struct {
	mu sync.Mutex

	State     platform.VolumeState
	SessionsV []platform.Session
	ProcsV    []platform.Process
	WaveWord  uint32
	Play      int
	CmdOutput []byte

	VolumeErr     error
	SetMuteErr    error
	SetLevelErr   error
	SessionsErr   error
	SessionMute   error
	ProcsErr      error
	WaveErr       error
	PlayErr       error
	KeyErr        error
	RunErr        error
	PanicOnVolume bool

	VolumeCalls   int
	SetMuteCalls  int
	SetLevelCalls int
	SessionCalls  int
	ProcCalls     int
	KeyPresses    int
	RunCalls      int
	LastArgv      []string
}

// Bindings exposes the fake as a full set of ports.
func (s *System) Bindings() platform.Bindings {
	return platform.Bindings{
		Endpoint: s,
		Sessions: s,
		Procs:    s,
		Mixer:    s,
		Player:   s,
		Keys:     s,
		Runner:   s,
		StopKey:  s,
	}
}

func (s *System) Volume(ctx context.Context) (platform.VolumeState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.VolumeCalls++
	if s.PanicOnVolume {
		panic("endpoint vanished")
	}
	if s.VolumeErr != nil {
		return platform.VolumeState{}, s.VolumeErr
	}
	return s.State, nil
}

func (s *System) SetMute(ctx context.Context, muted bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.SetMuteCalls++
	if s.SetMuteErr != nil {
		return s.SetMuteErr
	}
	s.State.Muted = muted
	return nil
}

func (s *System) SetLevel(ctx context.Context, level float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.SetLevelCalls++
	if s.SetLevelErr != nil {
		return s.SetLevelErr
	}
	s.State.Level = level
	return nil
}

func (s *System) Sessions(ctx context.Context) ([]platform.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.SessionCalls++
	if s.SessionsErr != nil {
		return nil, s.SessionsErr
	}
	out := make([]platform.Session, len(s.SessionsV))
	copy(out, s.SessionsV)
	return out, nil
}

func (s *System) SetSessionMute(ctx context.Context, muted bool) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.SessionMute != nil {
		return 0, s.SessionMute
	}
	for i := range s.SessionsV {
		s.SessionsV[i].Muted = muted
	}
	return len(s.SessionsV), nil
}

func (s *System) Processes(ctx context.Context) ([]platform.Process, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ProcCalls++
	if s.ProcsErr != nil {
		return nil, s.ProcsErr
	}
	out := make([]platform.Process, len(s.ProcsV))
	copy(out, s.ProcsV)
	return out, nil
}

func (s *System) WaveVolume(ctx context.Context) (uint32, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.WaveErr != nil {
		return 0, s.WaveErr
	}
	return s.WaveWord, nil
}

func (s *System) PlayState(ctx context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.PlayErr != nil {
		return 0, s.PlayErr
	}
	return s.Play, nil
}

// PressMediaMute toggles the endpoint mute flag like the real key does.
func (s *System) PressMediaMute(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.KeyErr != nil {
		return s.KeyErr
	}
	s.KeyPresses++
	s.State.Muted = !s.State.Muted
	return nil
}

func (s *System) Run(ctx context.Context, argv []string) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.RunCalls++
	s.LastArgv = append([]string(nil), argv...)
	if s.RunErr != nil {
		return nil, s.RunErr
	}
	return s.CmdOutput, nil
}

func (s *System) Watch(ctx context.Context, key rune) <-chan struct{} {
	return make(chan struct{})
}

// Update runs fn with the fake locked, for changing state while it is in use.
func (s *System) Update(fn func(s *System)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	fn(s)
}

// Snapshot returns a copy of the counters and state taken under the lock.
func (s *System) Snapshot() Counters {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Counters{
		State:         s.State,
		VolumeCalls:   s.VolumeCalls,
		SetMuteCalls:  s.SetMuteCalls,
		SetLevelCalls: s.SetLevelCalls,
		SessionCalls:  s.SessionCalls,
		ProcCalls:     s.ProcCalls,
		KeyPresses:    s.KeyPresses,
		RunCalls:      s.RunCalls,
	}
}

// Counters is a point-in-time copy of a System's observable state.
type Counters struct {
	State         platform.VolumeState
	VolumeCalls   int
	SetMuteCalls  int
	SetLevelCalls int
	SessionCalls  int
	ProcCalls     int
	KeyPresses    int
	RunCalls      int
}
