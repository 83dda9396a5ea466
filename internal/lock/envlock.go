// Package lock serializes concurrent invocations per environment. The
// original design assumed callers never race; the advisory lock makes that
// assumption enforceable instead of implicit.
package lock

import (
	"fmt"
	"os"
	"path/filepath"
	"syscall"
)

// EnvLock is an advisory lock keyed by environment name, implemented via a
// PID file + flock(2). Keep the lock alive by keeping the file descriptor
// open; the lock spans the whole activate-or-provision attempt.
type EnvLock struct {
	path string
	f    *os.File
}

// Acquire takes an exclusive non-blocking lock for envName under lockDir and
// writes the holder PID into the file. A held lock means another invocation
// is working on the same environment; callers should fail fast, not wait.
func Acquire(lockDir, envName string) (*EnvLock, error) {
	if lockDir == "" {
		return nil, fmt.Errorf("lock directory is empty")
	}
	if envName == "" {
		return nil, fmt.Errorf("environment name is empty")
	}
	if err := os.MkdirAll(lockDir, 0o755); err != nil {
		return nil, fmt.Errorf("create lock directory: %w", err)
	}

	lockPath := filepath.Join(lockDir, envName+".lock")
	f, err := os.OpenFile(lockPath, os.O_CREATE|os.O_RDWR, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open lock file: %w", err)
	}

	if err := syscall.Flock(int(f.Fd()), syscall.LOCK_EX|syscall.LOCK_NB); err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("environment %q is locked by another invocation: %w", envName, err)
	}

	if err := writePID(f); err != nil {
		_ = syscall.Flock(int(f.Fd()), syscall.LOCK_UN)
		_ = f.Close()
		return nil, err
	}

	return &EnvLock{path: lockPath, f: f}, nil
}

func writePID(f *os.File) error {
	if err := f.Truncate(0); err != nil {
		return fmt.Errorf("truncate lock file: %w", err)
	}
	if _, err := f.Seek(0, 0); err != nil {
		return fmt.Errorf("seek lock file: %w", err)
	}
	if _, err := fmt.Fprintf(f, "%d\n", os.Getpid()); err != nil {
		return fmt.Errorf("write pid: %w", err)
	}
	if err := f.Sync(); err != nil {
		return fmt.Errorf("sync lock file: %w", err)
	}
	return nil
}

// Path returns the lock file location.
func (l *EnvLock) Path() string { return l.path }

// Release unlocks and closes the lock file. Safe to call on a nil lock.
func (l *EnvLock) Release() error {
	if l == nil || l.f == nil {
		return nil
	}
	_ = syscall.Flock(int(l.f.Fd()), syscall.LOCK_UN)
	err := l.f.Close()
	l.f = nil
	return err
}
