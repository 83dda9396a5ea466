package envs

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/golang/mock/gomock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gcubed-code/buildswitch/internal/config"
	"github.com/gcubed-code/buildswitch/internal/runner"
	"github.com/gcubed-code/buildswitch/internal/runner/mocks"
)

func testConfig(root string) *config.Config {
	return &config.Config{
		RootDir:     root,
		PackageName: "gcubed",
		VenvPrefix:  "venv_gcubed_",
		UVBin:       "uv",
	}
}

// makeEnvDir lays out a minimal environment directory with an interpreter.
func makeEnvDir(t *testing.T, root, name string) string {
	t.Helper()
	envPath := filepath.Join(root, name)
	require.NoError(t, os.MkdirAll(filepath.Join(envPath, "bin"), 0o755))
	require.NoError(t, os.WriteFile(Interpreter(envPath), []byte("#!/bin/true\n"), 0o755))
	return envPath
}

func TestVerifyEmptyPath(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()
	run := mocks.NewMockRunner(ctrl) // no calls expected

	v := NewVerifier(testConfig(t.TempDir()), run)
	ok, err := v.Verify(context.Background(), "")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestVerifyMissingInterpreter(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()
	run := mocks.NewMockRunner(ctrl) // absent interpreter means no inspection

	root := t.TempDir()
	v := NewVerifier(testConfig(root), run)

	ok, err := v.Verify(context.Background(), filepath.Join(root, "venv_gcubed_missing"))
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestVerifyMarkerPackagePresent(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	root := t.TempDir()
	envPath := makeEnvDir(t, root, "venv_gcubed_adb_0001")
	python := Interpreter(envPath)

	run := mocks.NewMockRunner(ctrl)
	run.EXPECT().
		Run(gomock.Any(), "", "uv", "pip", "show", "-p", python, "gcubed").
		Return(runner.Result{Stdout: "Name: gcubed\nVersion: 1.0.0\n"}, nil)

	v := NewVerifier(testConfig(root), run)
	ok, err := v.Verify(context.Background(), envPath)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestVerifyMarkerPackageAbsentNeverDeletes(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	root := t.TempDir()
	envPath := makeEnvDir(t, root, "venv_gcubed_adb_0001")

	run := mocks.NewMockRunner(ctrl)
	run.EXPECT().
		Run(gomock.Any(), "", "uv", gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).
		Return(runner.Result{Stderr: "package not found"}, errors.New("run uv: exit status 1"))

	v := NewVerifier(testConfig(root), run)
	ok, err := v.Verify(context.Background(), envPath)
	require.NoError(t, err)
	assert.False(t, ok)

	// The environment directory must survive a failed lookup.
	_, statErr := os.Stat(envPath)
	assert.NoError(t, statErr)
}

func TestVerifyUnconfiguredMarkerPackageIsFatal(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()
	run := mocks.NewMockRunner(ctrl)

	root := t.TempDir()
	envPath := makeEnvDir(t, root, "venv_gcubed_adb_0001")

	cfg := testConfig(root)
	cfg.PackageName = ""
	v := NewVerifier(cfg, run)

	_, err := v.Verify(context.Background(), envPath)
	require.Error(t, err)

	var cfgErr *config.ConfigurationError
	assert.True(t, errors.As(err, &cfgErr))
}
