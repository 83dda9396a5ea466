// Package doctor validates the build switcher's environment before it is
// needed in anger: external tools, configuration, and the extension socket.
package doctor

import (
	"context"
	"fmt"
	"os"
	"os/exec"

	"github.com/gcubed-code/buildswitch/internal/config"
	"github.com/gcubed-code/buildswitch/internal/journal"
)

// Result holds the outcome of a validation run.
type Result struct {
	Valid    bool    `json:"valid"`
	Errors   []Issue `json:"errors,omitempty"`
	Warnings []Issue `json:"warnings,omitempty"`
}

// Issue describes a single validation error or warning.
type Issue struct {
	Category string `json:"category"`
	Message  string `json:"message"`
}

// Doctor runs preflight checks against a loaded configuration.
type Doctor struct {
	cfg      *config.Config
	lookPath func(string) (string, error)
}

// New creates a Doctor.
func New(cfg *config.Config) *Doctor {
	return &Doctor{cfg: cfg, lookPath: exec.LookPath}
}

// Validate runs all checks and returns a result.
func (d *Doctor) Validate(ctx context.Context) *Result {
	r := &Result{Valid: true}

	d.checkTools(r)
	d.checkRoot(r)
	d.checkSocket(r)
	d.checkJournal(ctx, r)

	r.Valid = len(r.Errors) == 0
	return r
}

func (d *Doctor) addError(r *Result, category, msg string) {
	r.Errors = append(r.Errors, Issue{Category: category, Message: msg})
}

func (d *Doctor) addWarning(r *Result, category, msg string) {
	r.Warnings = append(r.Warnings, Issue{Category: category, Message: msg})
}

// checkTools confirms the version-control client and installer exist on PATH.
func (d *Doctor) checkTools(r *Result) {
	for _, bin := range []string{d.cfg.GitBin, d.cfg.UVBin} {
		if _, err := d.lookPath(bin); err != nil {
			d.addError(r, "tools", fmt.Sprintf("%q not found on PATH", bin))
		}
	}
}

// checkRoot confirms the environment root exists and is writable.
func (d *Doctor) checkRoot(r *Result) {
	info, err := os.Stat(d.cfg.RootDir)
	if err != nil {
		d.addError(r, "root", fmt.Sprintf("root directory %s does not exist", d.cfg.RootDir))
		return
	}
	if !info.IsDir() {
		d.addError(r, "root", fmt.Sprintf("root path %s is not a directory", d.cfg.RootDir))
		return
	}

	probe, err := os.CreateTemp(d.cfg.RootDir, ".buildswitch-probe-*")
	if err != nil {
		d.addError(r, "root", fmt.Sprintf("root directory %s is not writable: %v", d.cfg.RootDir, err))
		return
	}
	probe.Close()
	os.Remove(probe.Name())
}

// checkSocket warns when the extension socket is absent. The extension may
// simply not be running, so this is never an error.
func (d *Doctor) checkSocket(r *Result) {
	if _, err := os.Stat(d.cfg.SocketPath); err != nil {
		d.addWarning(r, "socket",
			fmt.Sprintf("extension socket %s not found; is the VS Code extension running?", d.cfg.SocketPath))
	}
}

// checkJournal confirms the provisioning journal can be opened.
func (d *Doctor) checkJournal(ctx context.Context, r *Result) {
	if d.cfg.JournalPath == "" {
		d.addWarning(r, "journal", "provisioning journal is disabled")
		return
	}
	jnl, err := journal.Open(ctx, d.cfg.JournalPath)
	if err != nil {
		d.addError(r, "journal", fmt.Sprintf("cannot open journal at %s: %v", d.cfg.JournalPath, err))
		return
	}
	_ = jnl.Close()
}
