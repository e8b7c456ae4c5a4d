package platform

import (
	"context"
	"errors"
	"strings"
)

// ErrUnsupported is returned by a capability that does not exist on the
// current platform or device.
var ErrUnsupported = errors.New("capability not supported on this platform")

// PlayStatePlaying is the Windows Media Player playState value for "playing".
const PlayStatePlaying = 3

// VolumeState is the master output state of the default render device.
type VolumeState struct {
	Level float64 // 0.0 to 1.0
	Muted bool
}

// Session is one audio session as reported by the session manager.
type Session struct {
	PID         uint32
	ProcessName string  // executable base name, e.g. "spotify.exe"
	Active      bool    // session state is "active" (producing audio)
	Muted       bool    // per-session mute flag
	Volume      float64 // per-session volume, 0.0 to 1.0
}

// Process is a running process.
type Process struct {
	PID  uint32
	Name string // executable base name
}

// Endpoint reads and writes the default output device.
type Endpoint interface {
	Volume(ctx context.Context) (VolumeState, error)
	SetMute(ctx context.Context, muted bool) error
	SetLevel(ctx context.Context, level float64) error
}

// SessionSource enumerates and controls audio sessions.
type SessionSource interface {
	Sessions(ctx context.Context) ([]Session, error)
	// SetSessionMute sets the mute flag on every session and returns how
	// many sessions were updated.
	SetSessionMute(ctx context.Context, muted bool) (int, error)
}

// ProcessLister lists running processes.
type ProcessLister interface {
	Processes(ctx context.Context) ([]Process, error)
}

// Mixer reads the legacy waveOut volume register. The low word holds the
// left channel and the high word the right channel, each 0..0xFFFF.
type Mixer interface {
	WaveVolume(ctx context.Context) (uint32, error)
}

// PlayerAutomation queries a media player automation object.
type PlayerAutomation interface {
	PlayState(ctx context.Context) (int, error)
}

// KeySender injects the hardware media-mute key. The key toggles mute.
type KeySender interface {
	PressMediaMute(ctx context.Context) error
}

// CommandRunner runs an external command and returns its stdout.
type CommandRunner interface {
	Run(ctx context.Context, argv []string) ([]byte, error)
}

// StopKey reports presses of a key regardless of which window has focus.
type StopKey interface {
	Watch(ctx context.Context, key rune) <-chan struct{}
}

// Bindings bundles every capability for wiring.
type Bindings struct {
	Endpoint Endpoint
	Sessions SessionSource
	Procs    ProcessLister
	Mixer    Mixer
	Player   PlayerAutomation
	Keys     KeySender
	Runner   CommandRunner
	StopKey  StopKey
}

// BaseName normalizes an executable path or name for catalog lookups.
func BaseName(name string) string {
	name = strings.TrimSpace(name)
	if i := strings.LastIndexAny(name, `\/`); i >= 0 {
		name = name[i+1:]
	}
	return name
}
