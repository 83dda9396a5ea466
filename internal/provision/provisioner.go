package provision

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/gcubed-code/buildswitch/internal/config"
	"github.com/gcubed-code/buildswitch/internal/envs"
	"github.com/gcubed-code/buildswitch/internal/journal"
	"github.com/gcubed-code/buildswitch/internal/log"
	"github.com/gcubed-code/buildswitch/internal/runner"
)

// staleWorkspaceAge is how long a leftover temp workspace from a crashed run
// may linger before the next attempt sweeps it.
const staleWorkspaceAge = time.Hour

// Provisioner constructs a virtual environment for a build tag from a tagged
// clone of the prerequisites repository. One linear state machine with
// compensating rollback: validate tag, create environment, discover
// artifacts, install, compensate on failure.
type Provisioner struct {
	cfg     *config.Config
	run     runner.Runner
	journal *journal.Journal // nil disables attempt recording
	logger  *slog.Logger
}

// New creates a Provisioner. jnl may be nil.
func New(cfg *config.Config, run runner.Runner, jnl *journal.Journal) *Provisioner {
	return &Provisioner{
		cfg:     cfg,
		run:     run,
		journal: jnl,
		logger:  log.WithComponent("provision"),
	}
}

// Provision builds the environment for buildTag. On any failure after the
// environment directory was created, the directory is removed entirely; a
// half-installed environment must never be left on disk. The temp workspace
// is removed on every exit path.
func (p *Provisioner) Provision(ctx context.Context, buildTag string) error {
	logger := p.logger.With("build_tag", buildTag)
	name := envs.Name(p.cfg.VenvPrefix, buildTag)
	envPath := envs.Path(p.cfg.RootDir, name)

	attemptID := p.beginAttempt(ctx, logger, buildTag, name)

	p.sweepStaleWorkspaces(logger)

	// A uuid suffix keeps a crashed run's leftovers from ever colliding
	// with a live attempt.
	wsName := fmt.Sprintf("%stmp-%s", p.cfg.VenvPrefix, uuid.NewString()[:8])
	wsPath := filepath.Join(p.cfg.RootDir, wsName)
	defer func() {
		logger.Info("cleaning up temporary files", "workspace", wsPath)
		if err := os.RemoveAll(wsPath); err != nil {
			logger.Warn("failed to remove temp workspace", "path", wsPath, "error", err)
		}
	}()

	// Validating the tag before creating the environment avoids leaving an
	// empty, misleadingly-named environment directory for a nonexistent tag.
	logger.Info("validating build tag against the prerequisites repository")
	res, err := p.run.Run(ctx, p.cfg.RootDir, p.cfg.GitBin,
		"clone", "--depth", "1", "--single-branch", "--branch", buildTag,
		p.cfg.PrerequisitesRepo, wsName)
	if err != nil {
		logger.Error("build tag does not exist in the prerequisites repository",
			"error", err, "stderr", res.Stderr)
		err = fmt.Errorf("build tag %q does not exist in the prerequisites repository: %w", buildTag, err)
		p.completeAttempt(ctx, logger, attemptID, journal.StatusFailed, err, "")
		return err
	}

	manifest, err := p.build(ctx, logger, name, envPath, wsName, wsPath)
	if err != nil {
		if removeErr := os.RemoveAll(envPath); removeErr != nil {
			logger.Warn("failed to remove partial environment", "path", envPath, "error", removeErr)
		} else {
			logger.Info("cleaning up failed virtual environment", "path", envPath)
		}
		p.completeAttempt(ctx, logger, attemptID, journal.StatusFailed, err, "")
		return err
	}

	p.completeAttempt(ctx, logger, attemptID, journal.StatusSucceeded, nil, manifest)
	logger.Info("virtual environment provisioned", "path", envPath)
	return nil
}

// build runs the create/discover/install states. Any error here triggers
// environment rollback in Provision.
func (p *Provisioner) build(ctx context.Context, logger *slog.Logger, name, envPath, wsName, wsPath string) (string, error) {
	logger.Info("creating virtual environment", "name", name)
	res, err := p.run.Run(ctx, p.cfg.RootDir, p.cfg.UVBin, "venv", "--system-site-packages", name)
	if err != nil {
		logger.Error("failed to create virtual environment", "error", err, "stderr", res.Stderr)
		return "", fmt.Errorf("create virtual environment %s: %w", name, err)
	}

	set, err := discoverArtifacts(wsPath)
	if err != nil {
		return "", err
	}

	manifest := ""
	if set.Empty() {
		logger.Info("prerequisites clone contains no installable artifacts")
	} else {
		if manifest, err = manifestHash(set); err != nil {
			return "", err
		}
		logger.Debug("artifact manifest computed",
			"wheels", len(set.Wheels), "requirements", len(set.Requirements), "manifest", manifest)
	}

	python := envs.Interpreter(envPath)
	if err := p.install(ctx, logger, set.Wheels, python, wsName, false); err != nil {
		return "", err
	}
	if err := p.install(ctx, logger, set.Requirements, python, wsName, true); err != nil {
		return "", err
	}

	return manifest, nil
}

// install feeds each file to the installer, wheels directly and requirements
// via -r, targeting the new environment's interpreter. The first failure
// aborts the remaining files.
func (p *Provisioner) install(ctx context.Context, logger *slog.Logger, files []string, python, wsName string, asRequirements bool) error {
	if len(files) == 0 {
		return nil
	}

	kind := "wheel"
	if asRequirements {
		kind = "requirements"
	}
	logger.Info("installing "+kind+" files", "count", len(files))

	for _, path := range files {
		fileName := filepath.Base(path)
		args := []string{"pip", "install"}
		if asRequirements {
			args = append(args, "-r")
		}
		args = append(args, "-p", python, "./"+filepath.Join(wsName, fileName))

		res, err := p.run.Run(ctx, p.cfg.RootDir, p.cfg.UVBin, args...)
		if err != nil {
			logger.Error("failed to install "+kind+" file",
				"file", fileName, "error", err, "stderr", res.Stderr)
			return fmt.Errorf("install %s: %w", fileName, err)
		}
	}
	return nil
}

// sweepStaleWorkspaces removes temp workspaces a crashed run left behind.
// Best effort only.
func (p *Provisioner) sweepStaleWorkspaces(logger *slog.Logger) {
	entries, err := os.ReadDir(p.cfg.RootDir)
	if err != nil {
		return
	}

	prefix := p.cfg.VenvPrefix + "tmp-"
	cutoff := time.Now().Add(-staleWorkspaceAge)

	for _, entry := range entries {
		if !entry.IsDir() || !strings.HasPrefix(entry.Name(), prefix) {
			continue
		}
		info, err := entry.Info()
		if err != nil || info.ModTime().After(cutoff) {
			continue
		}
		path := filepath.Join(p.cfg.RootDir, entry.Name())
		if err := os.RemoveAll(path); err != nil {
			logger.Warn("failed to remove stale temp workspace", "path", path, "error", err)
			continue
		}
		logger.Info("removed stale temp workspace", "path", path)
	}
}

func (p *Provisioner) beginAttempt(ctx context.Context, logger *slog.Logger, buildTag, envName string) string {
	if p.journal == nil {
		return ""
	}
	id, err := p.journal.Begin(ctx, buildTag, envName)
	if err != nil {
		logger.Warn("journal unavailable, attempt will not be recorded", "error", err)
		return ""
	}
	return id
}

func (p *Provisioner) completeAttempt(ctx context.Context, logger *slog.Logger, id, status string, attemptErr error, manifest string) {
	if p.journal == nil || id == "" {
		return
	}
	errMsg := ""
	if attemptErr != nil {
		errMsg = attemptErr.Error()
	}
	if err := p.journal.Complete(ctx, id, status, errMsg, manifest); err != nil {
		logger.Warn("failed to record attempt outcome", "error", err)
	}
}
