// Package probe answers the two questions the watchdog asks on every
// poll: is the system audible, and is a media producer running.
package probe

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"strconv"
	"time"

	"github.com/jmylchreest/mutewatch/internal/platform"
	"github.com/jmylchreest/mutewatch/internal/strategy"
)

// Thresholds are the per-strategy audibility cutoffs. Each is a strict
// lower bound: a reading must exceed it to count as audible.
type Thresholds struct {
	Endpoint float64 // master scalar, 0..1
	Session  float64 // per-session volume, 0..1
	Command  float64 // percent, 0..100
	Mixer    float64 // averaged channel level, 0..1
}

// DefaultThresholds returns the stock cutoffs.
func DefaultThresholds() Thresholds {
	return Thresholds{
		Endpoint: 0.01,
		Session:  0.0,
		Command:  1.0,
		Mixer:    0.20,
	}
}

// VolumeConfig wires a Volume probe.
type VolumeConfig struct {
	Endpoint   platform.Endpoint
	Sessions   platform.SessionSource
	Runner     platform.CommandRunner
	Mixer      platform.Mixer
	Command    []string      // external volume query; empty disables it
	Timeout    time.Duration // bound on the external command
	Thresholds Thresholds
	Logger     *slog.Logger
}

// Volume decides whether system output is audible.
type Volume struct {
	endpoint platform.Endpoint
	chain    *strategy.Chain
}

// NewVolume builds the volume probe. Strategies whose port is nil are
// left out of the chain.
func NewVolume(cfg VolumeConfig) *Volume {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = platform.DefaultCommandTimeout
	}
	th := cfg.Thresholds

	var ss []strategy.Strategy
	if cfg.Endpoint != nil {
		ss = append(ss, strategy.Func{ID: "endpoint", Fn: func(ctx context.Context) (bool, error) {
			st, err := cfg.Endpoint.Volume(ctx)
			if err != nil {
				return false, err
			}
			return st.Level > th.Endpoint && !st.Muted, nil
		}})
	}
	if cfg.Sessions != nil {
		ss = append(ss, strategy.Func{ID: "sessions", Fn: func(ctx context.Context) (bool, error) {
			sessions, err := cfg.Sessions.Sessions(ctx)
			if err != nil {
				return false, err
			}
			for _, s := range sessions {
				if s.Active && !s.Muted && s.Volume > th.Session {
					return true, nil
				}
			}
			return false, nil
		}})
	}
	if cfg.Runner != nil {
		ss = append(ss, strategy.Func{ID: "command", Fn: func(ctx context.Context) (bool, error) {
			if len(cfg.Command) == 0 {
				return false, fmt.Errorf("%w: no volume command configured", strategy.ErrInconclusive)
			}
			ctx, cancel := context.WithTimeout(ctx, cfg.Timeout)
			defer cancel()

			out, err := cfg.Runner.Run(ctx, cfg.Command)
			if err != nil {
				return false, err
			}
			pct, err := ParsePercent(out)
			if err != nil {
				return false, err
			}
			return pct > th.Command, nil
		}})
	}
	if cfg.Mixer != nil {
		ss = append(ss, strategy.Func{ID: "mixer", Fn: func(ctx context.Context) (bool, error) {
			word, err := cfg.Mixer.WaveVolume(ctx)
			if err != nil {
				return false, err
			}
			return MixerLevel(word) > th.Mixer, nil
		}})
	}

	return &Volume{
		endpoint: cfg.Endpoint,
		chain:    strategy.NewChain("volume", ss, strategy.WithLogger(cfg.Logger)),
	}
}

// Audible reports whether output is audible. It is false when no
// strategy could decide.
func (v *Volume) Audible(ctx context.Context) bool {
	return v.chain.Run(ctx)
}

// Explain runs every strategy and reports each outcome.
func (v *Volume) Explain(ctx context.Context) ([]strategy.Outcome, bool) {
	return v.chain.Explain(ctx)
}

// Strategies returns the strategy names in evaluation order.
func (v *Volume) Strategies() []string {
	return v.chain.Strategies()
}

// Level reads the master scalar from the endpoint. ok is false when the
// endpoint cannot be read.
func (v *Volume) Level(ctx context.Context) (level float64, ok bool) {
	if v.endpoint == nil {
		return 0, false
	}
	st, err := v.endpoint.Volume(ctx)
	if err != nil {
		return 0, false
	}
	return st.Level, true
}

var numberPattern = regexp.MustCompile(`-?\d+(?:\.\d+)?`)

// ParsePercent extracts the first number from command output, so "42%",
// "Volume: 42.5" and "42\r\n" all parse.
func ParsePercent(out []byte) (float64, error) {
	m := numberPattern.Find(out)
	if m == nil {
		return 0, fmt.Errorf("%w: no number in command output %q", strategy.ErrInconclusive, truncate(out, 64))
	}
	v, err := strconv.ParseFloat(string(m), 64)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", strategy.ErrInconclusive, err)
	}
	return v, nil
}

// MixerLevel averages the left (low word) and right (high word) channels
// of a packed waveOut volume into 0..1.
func MixerLevel(word uint32) float64 {
	left := float64(word & 0xFFFF)
	right := float64(word >> 16)
	return (left + right) / 2 / 0xFFFF
}

func truncate(b []byte, n int) string {
	if len(b) <= n {
		return string(b)
	}
	return string(b[:n]) + "..."
}
