package platform

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"time"
)

// DefaultCommandTimeout bounds an external command when the caller's
// context carries no deadline.
const DefaultCommandTimeout = 3 * time.Second

// ExecRunner runs commands with os/exec.
type ExecRunner struct {
	Timeout time.Duration
}

// NewExecRunner creates an ExecRunner. A zero timeout uses DefaultCommandTimeout.
func NewExecRunner(timeout time.Duration) *ExecRunner {
	if timeout <= 0 {
		timeout = DefaultCommandTimeout
	}
	return &ExecRunner{Timeout: timeout}
}

// Run executes argv and returns stdout. A hung process is killed when the
// timeout elapses.
func (r *ExecRunner) Run(ctx context.Context, argv []string) ([]byte, error) {
	if len(argv) == 0 || argv[0] == "" {
		return nil, errors.New("empty command")
	}

	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.Timeout)
		defer cancel()
	}

	cmd := exec.CommandContext(ctx, argv[0], argv[1:]...)
	hideWindow(cmd)

	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	out, err := cmd.Output()
	if err != nil {
		if ctx.Err() != nil {
			return nil, fmt.Errorf("command %q timed out: %w", argv[0], ctx.Err())
		}
		if stderr.Len() > 0 {
			return nil, fmt.Errorf("command %q failed: %w: %s", argv[0], err, bytes.TrimSpace(stderr.Bytes()))
		}
		return nil, fmt.Errorf("command %q failed: %w", argv[0], err)
	}
	return out, nil
}
