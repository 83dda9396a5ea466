// Package runner invokes the external tools the switcher orchestrates (git
// and uv). Everything is synchronous: a call blocks until the child exits or
// the configured timeout fires.
package runner

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os/exec"
	"strings"
	"time"

	"github.com/gcubed-code/buildswitch/internal/log"
)

// maxCapturedBytes caps the amount of child output retained for diagnostics.
const maxCapturedBytes = 64 * 1024

// Result carries the captured output of a finished command.
type Result struct {
	Stdout string
	Stderr string
}

// Runner executes an external command in dir (empty means inherit the current
// directory) and returns its captured output. A non-zero exit status is
// returned as an error alongside whatever output was produced.
type Runner interface {
	Run(ctx context.Context, dir, name string, args ...string) (Result, error)
}

type execRunner struct {
	timeout time.Duration
	logger  *slog.Logger
}

// New returns a Runner backed by os/exec. timeout bounds each invocation;
// zero leaves commands unbounded.
func New(timeout time.Duration) Runner {
	return &execRunner{
		timeout: timeout,
		logger:  log.WithComponent("runner"),
	}
}

func (r *execRunner) Run(ctx context.Context, dir, name string, args ...string) (Result, error) {
	if r.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.timeout)
		defer cancel()
	}

	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Dir = dir

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	r.logger.Debug("running command", "name", name, "args", strings.Join(args, " "), "dir", dir)

	err := cmd.Run()
	res := Result{
		Stdout: truncate(stdout.String()),
		Stderr: truncate(stderr.String()),
	}

	if err != nil {
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return res, fmt.Errorf("%s timed out after %v: %w", name, r.timeout, context.DeadlineExceeded)
		}
		return res, fmt.Errorf("run %s: %w", name, err)
	}
	return res, nil
}

func truncate(s string) string {
	if len(s) <= maxCapturedBytes {
		return s
	}
	return s[:maxCapturedBytes] + "... (truncated)"
}
