//go:build windows

package notify

import (
	"log/slog"

	"github.com/gen2brain/beeep"

	"github.com/jmylchreest/mutewatch/internal/watchdog"
)

// toast shows Windows toast notifications. Toasts carry no actions; the
// terminal UI owns the cancel prompt.
type toast struct {
	logger *slog.Logger
}

// NewDesktop returns the Windows toast backend.
func NewDesktop(logger *slog.Logger) (Desktop, error) {
	if logger == nil {
		logger = slog.Default()
	}
	return &toast{logger: logger}, nil
}

func (t *toast) Show(n watchdog.Notice) error {
	return beeep.Notify(n.Summary(), n.Body(), "")
}

func (t *toast) Actions() <-chan ActionEvent { return nil }

func (t *toast) Close() error { return nil }
