// Package actuate mutes and unmutes system output through an ordered set
// of fallbacks.
package actuate

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jmylchreest/mutewatch/internal/platform"
)

// ErrActuationFailed is returned when every strategy failed.
var ErrActuationFailed = errors.New("all mute strategies failed")

// Config wires an Actuator.
type Config struct {
	Endpoint platform.Endpoint
	Sessions platform.SessionSource
	Keys     platform.KeySender
	Runner   platform.CommandRunner
	Script   []string      // scripted keystroke command; empty disables it
	Timeout  time.Duration // bound on the script
	Logger   *slog.Logger
}

// Actuator changes the system mute state.
type Actuator struct {
	cfg    Config
	logger *slog.Logger
}

type step struct {
	name string
	fn   func(ctx context.Context) error
}

// New creates an Actuator. Ports left nil are skipped.
func New(cfg Config) *Actuator {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = platform.DefaultCommandTimeout
	}
	return &Actuator{cfg: cfg, logger: cfg.Logger}
}

// Mute silences output. It returns nil on the first strategy that
// succeeds; muting an already muted endpoint succeeds.
func (a *Actuator) Mute(ctx context.Context) error {
	return a.run(ctx, "mute", a.steps(true, 0))
}

// Unmute restores output. A restoreLevel above zero is also written to
// the endpoint master volume.
func (a *Actuator) Unmute(ctx context.Context, restoreLevel float64) error {
	return a.run(ctx, "unmute", a.steps(false, restoreLevel))
}

// Strategies returns the step names in evaluation order.
func (a *Actuator) Strategies() []string {
	steps := a.steps(true, 0)
	names := make([]string, len(steps))
	for i, s := range steps {
		names[i] = s.name
	}
	return names
}

func (a *Actuator) steps(mute bool, restoreLevel float64) []step {
	var steps []step

	if ep := a.cfg.Endpoint; ep != nil {
		steps = append(steps, step{"endpoint", func(ctx context.Context) error {
			if err := ep.SetMute(ctx, mute); err != nil {
				return err
			}
			// The endpoint is unmuted at this point. Falling through would
			// reach the keystroke toggle and mute it again.
			if !mute && restoreLevel > 0 {
				if err := ep.SetLevel(ctx, restoreLevel); err != nil {
					a.logger.Warn("failed to restore volume level", "level", restoreLevel, "error", err)
				}
			}
			return nil
		}})
	}

	if ss := a.cfg.Sessions; ss != nil {
		steps = append(steps, step{"sessions", func(ctx context.Context) error {
			n, err := ss.SetSessionMute(ctx, mute)
			if err != nil {
				return err
			}
			if n == 0 {
				return errors.New("no sessions updated")
			}
			return nil
		}})
	}

	if ks := a.cfg.Keys; ks != nil {
		steps = append(steps, step{"keystroke", ks.PressMediaMute})
	}

	if r := a.cfg.Runner; r != nil && len(a.cfg.Script) > 0 {
		steps = append(steps, step{"script", func(ctx context.Context) error {
			ctx, cancel := context.WithTimeout(ctx, a.cfg.Timeout)
			defer cancel()
			_, err := r.Run(ctx, a.cfg.Script)
			return err
		}})
	}

	return steps
}

func (a *Actuator) run(ctx context.Context, op string, steps []step) error {
	var errs []error
	for _, s := range steps {
		if err := ctx.Err(); err != nil {
			errs = append(errs, err)
			break
		}
		err := a.try(ctx, s)
		if err == nil {
			a.logger.Debug("actuation succeeded", "op", op, "strategy", s.name)
			return nil
		}
		a.logger.Debug("actuation strategy failed", "op", op, "strategy", s.name, "error", err)
		errs = append(errs, fmt.Errorf("%s: %w", s.name, err))
	}
	return fmt.Errorf("%s: %w", op, errors.Join(append([]error{ErrActuationFailed}, errs...)...))
}

func (a *Actuator) try(ctx context.Context, s step) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return s.fn(ctx)
}
