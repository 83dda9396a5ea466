// Package envs resolves and verifies build-specific virtual environments.
package envs

import "path/filepath"

// Name derives the environment name for a build tag. Pure concatenation: the
// tag is not validated, a garbage tag yields a garbage-but-deterministic name.
func Name(prefix, buildTag string) string {
	return prefix + buildTag
}

// Path joins the configured root with an environment name. The root is
// guaranteed non-empty by config validation before any component runs.
func Path(root, name string) string {
	return filepath.Join(root, name)
}

// Interpreter returns the python binary inside an environment.
func Interpreter(envPath string) string {
	return filepath.Join(envPath, "bin", "python")
}
