package watchdog

import (
	"crypto/rand"
	"fmt"
	"slices"
	"time"

	"github.com/oklog/ulid/v2"
)

// Kind classifies a notice.
type Kind string

const (
	// KindMuted is raised when the loop muted (or tried to mute) output.
	KindMuted Kind = "muted"
	// KindSuppressed is raised when the user cancelled a mute.
	KindSuppressed Kind = "suppressed"
)

// Action is a user response to a notice.
type Action string

const (
	ActionAcknowledge Action = "acknowledge"
	ActionCancelMute  Action = "cancel-mute"
)

// Notice is what the loop hands to the presentation layer.
type Notice struct {
	ID           string    `json:"id"`
	Kind         Kind      `json:"kind"`
	At           time.Time `json:"at"`
	RestoreLevel float64   `json:"restore_level,omitempty"`
	Muted        bool      `json:"muted"`
	Until        time.Time `json:"until,omitzero"`
	Actions      []Action  `json:"actions,omitempty"`
}

// NewNotice creates a notice with a fresh ULID.
func NewNotice(kind Kind, at time.Time) (Notice, error) {
	id, err := ulid.New(ulid.Timestamp(at), rand.Reader)
	if err != nil {
		return Notice{}, fmt.Errorf("failed to generate ULID: %w", err)
	}
	return Notice{ID: id.String(), Kind: kind, At: at}, nil
}

// Summary is a one-line title for the notice.
func (n Notice) Summary() string {
	switch n.Kind {
	case KindSuppressed:
		return "Mute cancelled"
	default:
		if n.Muted {
			return "Speaker output muted"
		}
		return "Speaker output detected"
	}
}

// Body describes what happened.
func (n Notice) Body() string {
	switch n.Kind {
	case KindSuppressed:
		return fmt.Sprintf("Volume restored. Muting is paused until %s.", n.Until.Format("15:04:05"))
	default:
		if n.Muted {
			return "Media was playing through the speakers, so output was muted."
		}
		return "Media is playing through the speakers, but muting failed."
	}
}

// HasAction reports whether a is offered on this notice.
func (n Notice) HasAction(a Action) bool {
	return slices.Contains(n.Actions, a)
}
