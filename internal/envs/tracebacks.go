package envs

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// tracebackSnippet is the sitecustomize.py fragment that turns on the rich
// traceback formatter for every interpreter started from the environment.
const tracebackSnippet = "from rich.traceback import install\ninstall(show_locals=True)"

// ConfigureTracebacks reconciles the environment's sitecustomize.py with the
// rich-tracebacks setting: enabled appends the formatter snippet (idempotent,
// existing unrelated content is preserved), disabled strips a previously
// installed snippet and removes the file if nothing else remains.
//
// Best effort: a missing site-packages directory is not an error, the
// environment is usable either way.
func ConfigureTracebacks(envPath string, enabled bool) error {
	matches, err := filepath.Glob(filepath.Join(envPath, "lib", "python*", "site-packages"))
	if err != nil || len(matches) == 0 {
		return nil
	}
	customizeFile := filepath.Join(matches[0], "sitecustomize.py")

	if enabled {
		return installSnippet(customizeFile)
	}
	return removeSnippet(customizeFile)
}

func installSnippet(customizeFile string) error {
	existing := ""
	if data, err := os.ReadFile(customizeFile); err == nil {
		if strings.Contains(string(data), "from rich.traceback import install") {
			return nil
		}
		existing = strings.TrimSpace(string(data)) + "\n\n"
	}

	if err := os.WriteFile(customizeFile, []byte(existing+tracebackSnippet), 0o644); err != nil {
		return fmt.Errorf("write %s: %w", customizeFile, err)
	}
	return nil
}

func removeSnippet(customizeFile string) error {
	data, err := os.ReadFile(customizeFile)
	if err != nil {
		return nil
	}

	found := false
	var kept []string
	for _, line := range strings.Split(string(data), "\n") {
		if strings.Contains(line, "rich.traceback") || strings.Contains(line, "install(show_locals=True)") {
			found = true
			continue
		}
		kept = append(kept, line)
	}
	if !found {
		return nil
	}

	remainder := strings.TrimSpace(strings.Join(kept, "\n"))
	if remainder == "" {
		if err := os.Remove(customizeFile); err != nil {
			return fmt.Errorf("remove %s: %w", customizeFile, err)
		}
		return nil
	}
	if err := os.WriteFile(customizeFile, []byte(remainder), 0o644); err != nil {
		return fmt.Errorf("write %s: %w", customizeFile, err)
	}
	return nil
}
