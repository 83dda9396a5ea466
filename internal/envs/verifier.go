package envs

import (
	"context"
	"log/slog"
	"os"

	"github.com/gcubed-code/buildswitch/internal/config"
	"github.com/gcubed-code/buildswitch/internal/log"
	"github.com/gcubed-code/buildswitch/internal/runner"
)

// Verifier decides whether an environment directory is usable: its
// interpreter exists and the marker package is installed. Validity is
// re-checked on every call, never cached.
type Verifier struct {
	cfg    *config.Config
	run    runner.Runner
	logger *slog.Logger
}

// NewVerifier creates a Verifier using the given command runner.
func NewVerifier(cfg *config.Config, run runner.Runner) *Verifier {
	return &Verifier{
		cfg:    cfg,
		run:    run,
		logger: log.WithComponent("verify"),
	}
}

// Verify reports whether envPath holds a complete environment.
//
// A missing directory or interpreter is an expected not-yet-provisioned state
// and returns (false, nil). A missing marker-package configuration is fatal
// and returns an error. A failed package inspection returns (false, nil)
// without touching the directory: the environment may be valid for other
// reasons, and destructive action needs a positive signal, not a failed
// lookup.
func (v *Verifier) Verify(ctx context.Context, envPath string) (bool, error) {
	if envPath == "" {
		return false, nil
	}

	python := Interpreter(envPath)
	if _, err := os.Stat(python); err != nil {
		v.logger.Info("virtual environment not found", "path", envPath)
		return false, nil
	}

	if v.cfg.PackageName == "" {
		// Treating "can't check" as "not installed" would invite
		// recreation of a possibly-valid environment.
		return false, config.NewConfigurationError(config.EnvPackageName,
			"cannot verify environment without the marker package name")
	}

	res, err := v.run.Run(ctx, "", v.cfg.UVBin, "pip", "show", "-p", python, v.cfg.PackageName)
	if err != nil {
		v.logger.Warn("marker package not found in environment",
			"package", v.cfg.PackageName, "path", envPath, "error", err, "stderr", res.Stderr)
		return false, nil
	}

	return true, nil
}
