// Package switcher is the top-level state machine: try to verify the
// environment for a build tag, provision it when that fails, then notify the
// editor which interpreter to use.
package switcher

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/gcubed-code/buildswitch/internal/config"
	"github.com/gcubed-code/buildswitch/internal/console"
	"github.com/gcubed-code/buildswitch/internal/envs"
	"github.com/gcubed-code/buildswitch/internal/lock"
	"github.com/gcubed-code/buildswitch/internal/log"
)

// Verifier reports whether an environment directory is usable.
type Verifier interface {
	Verify(ctx context.Context, envPath string) (bool, error)
}

// Provisioner builds the environment for a build tag.
type Provisioner interface {
	Provision(ctx context.Context, buildTag string) error
}

// Notifier tells the editor extension which interpreter to use.
type Notifier interface {
	Notify(ctx context.Context, buildTag string) bool
}

// Switcher wires verifier, provisioner and notifier into the
// activate-or-provision contract.
type Switcher struct {
	cfg         *config.Config
	verifier    Verifier
	provisioner Provisioner
	notifier    Notifier
	logger      *slog.Logger

	// out receives user-facing banners; disabled is the kill-switch probe.
	// Both are injectable for tests.
	out      io.Writer
	disabled func(feature string) bool
}

// New creates a Switcher.
func New(cfg *config.Config, v Verifier, p Provisioner, n Notifier) *Switcher {
	return &Switcher{
		cfg:         cfg,
		verifier:    v,
		provisioner: p,
		notifier:    n,
		logger:      log.WithComponent("switcher"),
		out:         os.Stdout,
		disabled:    config.IsFeatureDisabled,
	}
}

// ActivateOrProvision ensures a valid environment exists for buildTag and
// notifies the editor. The boolean is the overall outcome; the error return
// carries only fatal configuration problems that must terminate the process.
//
// When build switching is administratively disabled the call succeeds without
// side effects: the caller proceeds on the assumption that its ambient
// environment is already correct.
func (s *Switcher) ActivateOrProvision(ctx context.Context, buildTag string) (bool, error) {
	if s.disabled(config.FeatureAutoBuildSwitcher) {
		fmt.Fprintln(s.out, console.Warning(
			"WARNING: Automatic G-Cubed Code build switching disabled.",
			"Skipping virtual environment activation."))
		return true, nil
	}

	name := envs.Name(s.cfg.VenvPrefix, buildTag)
	envPath := envs.Path(s.cfg.RootDir, name)
	logger := s.logger.With("build_tag", buildTag, "env", name)

	envLock, err := lock.Acquire(s.cfg.LockDir, name)
	if err != nil {
		logger.Error("could not lock environment", "error", err)
		return false, nil
	}
	defer envLock.Release()

	logger.Info("verifying environment")
	ok, err := s.verifier.Verify(ctx, envPath)
	if err != nil {
		return false, err
	}

	if !ok {
		logger.Info("environment missing or incomplete, provisioning")
		if err := s.provisioner.Provision(ctx, buildTag); err != nil {
			var cfgErr *config.ConfigurationError
			if errors.As(err, &cfgErr) {
				return false, err
			}
			logger.Error("provisioning failed", "error", err)
			return false, nil
		}

		// Provisioning reporting success is not enough: the result must
		// meet the same usability bar as a pre-existing environment.
		ok, err = s.verifier.Verify(ctx, envPath)
		if err != nil {
			return false, err
		}
		if !ok {
			logger.Error("provisioning completed but the environment failed verification")
			return false, nil
		}
	}

	// A verified environment gets its traceback formatter reconciled with
	// the current setting, whether it was just provisioned or already there.
	logger.Debug("configuring traceback formatter", "enabled", s.cfg.RichTracebacks)
	if err := envs.ConfigureTracebacks(envPath, s.cfg.RichTracebacks); err != nil {
		logger.Warn("could not configure traceback formatter", "error", err)
	}

	return s.notifier.Notify(ctx, buildTag), nil
}

// InterpreterPath resolves the interpreter a successful activation points at.
// Process-level environment switching is the caller's responsibility; this
// core only reports the path.
func (s *Switcher) InterpreterPath(buildTag string) string {
	name := envs.Name(s.cfg.VenvPrefix, buildTag)
	return envs.Interpreter(envs.Path(s.cfg.RootDir, name))
}
