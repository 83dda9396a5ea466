package provision

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gcubed-code/buildswitch/internal/config"
	"github.com/gcubed-code/buildswitch/internal/journal"
	"github.com/gcubed-code/buildswitch/internal/runner"
)

type call struct {
	dir  string
	name string
	args []string
}

// scriptedRunner simulates git and uv, including their on-disk side effects.
type scriptedRunner struct {
	calls  []call
	handle func(c call) (runner.Result, error)
}

func (r *scriptedRunner) Run(_ context.Context, dir, name string, args ...string) (runner.Result, error) {
	c := call{dir: dir, name: name, args: args}
	r.calls = append(r.calls, c)
	return r.handle(c)
}

func provisionConfig(root string) *config.Config {
	return &config.Config{
		RootDir:           root,
		PackageName:       "gcubed",
		PrerequisitesRepo: "git@example.com:prereqs.git",
		VenvPrefix:        "venv_gcubed_",
		GitBin:            "git",
		UVBin:             "uv",
	}
}

// simulateClone materializes a prerequisites workspace the way git clone
// would, seeded with installable artifacts.
func simulateClone(root, wsName string, files ...string) error {
	wsPath := filepath.Join(root, wsName)
	if err := os.MkdirAll(wsPath, 0o755); err != nil {
		return err
	}
	for _, f := range files {
		if err := os.WriteFile(filepath.Join(wsPath, f), []byte(f+" content"), 0o644); err != nil {
			return err
		}
	}
	return nil
}

// simulateVenv materializes the environment directory the way uv venv would.
func simulateVenv(root, name string) error {
	binDir := filepath.Join(root, name, "bin")
	if err := os.MkdirAll(binDir, 0o755); err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(binDir, "python"), []byte("#!/bin/true\n"), 0o755)
}

// tempWorkspaces lists leftover temp clone directories under root.
func tempWorkspaces(t *testing.T, root string) []string {
	t.Helper()
	entries, err := os.ReadDir(root)
	require.NoError(t, err)
	var names []string
	for _, e := range entries {
		if strings.HasPrefix(e.Name(), "venv_gcubed_tmp-") {
			names = append(names, e.Name())
		}
	}
	return names
}

func TestProvisionBadTagCreatesNothing(t *testing.T) {
	root := t.TempDir()
	run := &scriptedRunner{handle: func(c call) (runner.Result, error) {
		return runner.Result{Stderr: "fatal: Remote branch not found"}, errors.New("run git: exit status 128")
	}}

	p := New(provisionConfig(root), run, nil)
	err := p.Provision(context.Background(), "no_such_tag")

	require.Error(t, err)
	assert.Contains(t, err.Error(), "does not exist in the prerequisites repository")

	// No environment directory, no leftover workspace, and nothing beyond
	// the clone was attempted.
	_, statErr := os.Stat(filepath.Join(root, "venv_gcubed_no_such_tag"))
	assert.True(t, os.IsNotExist(statErr))
	assert.Empty(t, tempWorkspaces(t, root))
	require.Len(t, run.calls, 1)
	assert.Equal(t, "git", run.calls[0].name)
}

func TestProvisionSuccess(t *testing.T) {
	root := t.TempDir()
	cfg := provisionConfig(root)

	run := &scriptedRunner{}
	run.handle = func(c call) (runner.Result, error) {
		switch {
		case c.name == "git":
			wsName := c.args[len(c.args)-1]
			return runner.Result{}, simulateClone(root, wsName,
				"pkg_b.whl", "pkg_a.whl", "requirements.txt", "requirements-dev.txt", "README.md")
		case c.name == "uv" && c.args[0] == "venv":
			return runner.Result{}, simulateVenv(root, c.args[len(c.args)-1])
		case c.name == "uv" && c.args[0] == "pip":
			return runner.Result{}, nil
		}
		return runner.Result{}, errors.New("unexpected command: " + c.name)
	}

	p := New(cfg, run, nil)
	require.NoError(t, p.Provision(context.Background(), "adb_0001"))

	// Environment directory stands, temp workspace is gone.
	envPath := filepath.Join(root, "venv_gcubed_adb_0001")
	_, err := os.Stat(filepath.Join(envPath, "bin", "python"))
	assert.NoError(t, err)
	assert.Empty(t, tempWorkspaces(t, root))

	// Clone, venv creation, two wheels, then two requirements files.
	require.Len(t, run.calls, 6)
	assert.Equal(t, "git", run.calls[0].name)
	assert.Equal(t, []string{"venv", "--system-site-packages", "venv_gcubed_adb_0001"}, run.calls[1].args)

	var wheelTargets, reqTargets []string
	for _, c := range run.calls[2:] {
		require.Equal(t, "uv", c.name)
		require.Equal(t, "pip", c.args[0])
		require.Equal(t, root, c.dir)
		target := filepath.Base(c.args[len(c.args)-1])
		if contains(c.args, "-r") {
			reqTargets = append(reqTargets, target)
		} else {
			wheelTargets = append(wheelTargets, target)
		}
		assert.Contains(t, c.args, "-p")
		assert.Contains(t, c.args, filepath.Join(envPath, "bin", "python"))
	}
	// Wheels install first, sorted; requirements after, sorted. Non-artifact
	// files are never touched.
	assert.Equal(t, []string{"pkg_a.whl", "pkg_b.whl"}, wheelTargets)
	assert.Equal(t, []string{"requirements-dev.txt", "requirements.txt"}, reqTargets)
}

func TestProvisionEmptyArtifactSetIsValid(t *testing.T) {
	root := t.TempDir()
	run := &scriptedRunner{}
	run.handle = func(c call) (runner.Result, error) {
		switch {
		case c.name == "git":
			return runner.Result{}, simulateClone(root, c.args[len(c.args)-1], "README.md")
		case c.name == "uv" && c.args[0] == "venv":
			return runner.Result{}, simulateVenv(root, c.args[len(c.args)-1])
		}
		return runner.Result{}, errors.New("unexpected command: " + c.name)
	}

	p := New(provisionConfig(root), run, nil)
	require.NoError(t, p.Provision(context.Background(), "adb_0001"))

	// Clone and venv only; zero installs is a valid outcome.
	assert.Len(t, run.calls, 2)
	assert.Empty(t, tempWorkspaces(t, root))
}

func TestProvisionInstallFailureRollsBack(t *testing.T) {
	root := t.TempDir()
	run := &scriptedRunner{}
	run.handle = func(c call) (runner.Result, error) {
		switch {
		case c.name == "git":
			return runner.Result{}, simulateClone(root, c.args[len(c.args)-1], "pkg_a.whl")
		case c.name == "uv" && c.args[0] == "venv":
			return runner.Result{}, simulateVenv(root, c.args[len(c.args)-1])
		case c.name == "uv" && c.args[0] == "pip":
			return runner.Result{Stderr: "resolution failed"}, errors.New("run uv: exit status 1")
		}
		return runner.Result{}, errors.New("unexpected command: " + c.name)
	}

	p := New(provisionConfig(root), run, nil)
	err := p.Provision(context.Background(), "adb_0001")

	require.Error(t, err)
	assert.Contains(t, err.Error(), "install pkg_a.whl")

	// The partially-created environment must not survive, and the temp
	// workspace is removed regardless.
	_, statErr := os.Stat(filepath.Join(root, "venv_gcubed_adb_0001"))
	assert.True(t, os.IsNotExist(statErr))
	assert.Empty(t, tempWorkspaces(t, root))
}

func TestProvisionVenvCreationFailure(t *testing.T) {
	root := t.TempDir()
	run := &scriptedRunner{}
	run.handle = func(c call) (runner.Result, error) {
		switch {
		case c.name == "git":
			return runner.Result{}, simulateClone(root, c.args[len(c.args)-1])
		case c.name == "uv" && c.args[0] == "venv":
			return runner.Result{Stderr: "uv: cannot create venv"}, errors.New("run uv: exit status 2")
		}
		return runner.Result{}, errors.New("unexpected command: " + c.name)
	}

	p := New(provisionConfig(root), run, nil)
	err := p.Provision(context.Background(), "adb_0001")

	require.Error(t, err)
	assert.Contains(t, err.Error(), "create virtual environment")
	assert.Empty(t, tempWorkspaces(t, root))
}

func TestSweepStaleWorkspaces(t *testing.T) {
	root := t.TempDir()

	stale := filepath.Join(root, "venv_gcubed_tmp-dead1234")
	require.NoError(t, os.Mkdir(stale, 0o755))
	old := time.Now().Add(-2 * time.Hour)
	require.NoError(t, os.Chtimes(stale, old, old))

	fresh := filepath.Join(root, "venv_gcubed_tmp-live5678")
	require.NoError(t, os.Mkdir(fresh, 0o755))

	run := &scriptedRunner{handle: func(c call) (runner.Result, error) {
		return runner.Result{}, errors.New("run git: exit status 128")
	}}
	p := New(provisionConfig(root), run, nil)
	_ = p.Provision(context.Background(), "whatever")

	_, staleErr := os.Stat(stale)
	assert.True(t, os.IsNotExist(staleErr), "stale workspace should be swept")
	_, freshErr := os.Stat(fresh)
	assert.NoError(t, freshErr, "fresh workspace must be left alone")
}

func TestProvisionRecordsJournal(t *testing.T) {
	ctx := context.Background()
	root := t.TempDir()

	jnl, err := journal.Open(ctx, filepath.Join(t.TempDir(), "journal.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = jnl.Close() })

	run := &scriptedRunner{}
	run.handle = func(c call) (runner.Result, error) {
		switch {
		case c.name == "git":
			return runner.Result{}, simulateClone(root, c.args[len(c.args)-1], "pkg_a.whl")
		case c.name == "uv" && c.args[0] == "venv":
			return runner.Result{}, simulateVenv(root, c.args[len(c.args)-1])
		case c.name == "uv" && c.args[0] == "pip":
			return runner.Result{}, nil
		}
		return runner.Result{}, errors.New("unexpected command: " + c.name)
	}

	p := New(provisionConfig(root), run, jnl)
	require.NoError(t, p.Provision(ctx, "adb_0001"))

	attempts, err := jnl.Recent(ctx, 10)
	require.NoError(t, err)
	require.Len(t, attempts, 1)
	assert.Equal(t, journal.StatusSucceeded, attempts[0].Status)
	assert.Equal(t, "adb_0001", attempts[0].BuildTag)
	assert.NotEmpty(t, attempts[0].ManifestHash)
}

func contains(args []string, want string) bool {
	for _, a := range args {
		if a == want {
			return true
		}
	}
	return false
}
