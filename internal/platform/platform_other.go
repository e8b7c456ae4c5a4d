//go:build !windows

package platform

import (
	"context"
	"os/exec"
	"time"
)

// Native returns bindings for platforms without native audio support.
// Every capability except the command runner reports ErrUnsupported, so
// the probe chains fall through to their fail-safe defaults.
func Native(commandTimeout time.Duration) Bindings {
	u := unsupported{}
	return Bindings{
		Endpoint: u,
		Sessions: u,
		Procs:    u,
		Mixer:    u,
		Player:   u,
		Keys:     u,
		Runner:   NewExecRunner(commandTimeout),
		StopKey:  u,
	}
}

func hideWindow(cmd *exec.Cmd) {}

type unsupported struct{}

func (unsupported) Volume(context.Context) (VolumeState, error) {
	return VolumeState{}, ErrUnsupported
}

func (unsupported) SetMute(context.Context, bool) error { return ErrUnsupported }

func (unsupported) SetLevel(context.Context, float64) error { return ErrUnsupported }

func (unsupported) Sessions(context.Context) ([]Session, error) { return nil, ErrUnsupported }

func (unsupported) SetSessionMute(context.Context, bool) (int, error) { return 0, ErrUnsupported }

func (unsupported) Processes(context.Context) ([]Process, error) { return nil, ErrUnsupported }

func (unsupported) WaveVolume(context.Context) (uint32, error) { return 0, ErrUnsupported }

func (unsupported) PlayState(context.Context) (int, error) { return 0, ErrUnsupported }

func (unsupported) PressMediaMute(context.Context) error { return ErrUnsupported }

// Watch never fires; the terminal UI and signals provide the stop path.
func (unsupported) Watch(ctx context.Context, key rune) <-chan struct{} {
	return make(chan struct{})
}
