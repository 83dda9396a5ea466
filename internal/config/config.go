// Package config builds the single explicit configuration struct that every
// component receives at construction time. Nothing else in the program reads
// the process environment directly.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"time"

	"gopkg.in/yaml.v3"
)

// Environment variables recognized as overrides. The GCUBED_* names are the
// published contract with model repositories and the VS Code extension.
const (
	EnvRoot        = "GCUBED_ROOT"
	EnvPackageName = "GCUBED_CODE_PACKAGE_NAME"
	EnvPrereqRepo  = "GCUBED_PYTHON_PREREQUISITES_REPO"
	EnvVenvPrefix  = "GCUBED_VENV_NAME_PREFIX"
	EnvSocketPath  = "GCUBED_VENV_SOCKET_PATH"
	EnvTracebacks  = "RICH_TRACEBACKS"
	EnvConfigFile  = "BUILDSWITCH_CONFIG"
)

const (
	defaultVenvPrefix     = "venv_gcubed_"
	defaultSocketPath     = "/tmp/gcubed_venv_switcher.sock"
	defaultNotifyAction   = "set-interpreter"
	defaultNotifyTimeout  = 6 * time.Second
	defaultCommandTimeout = 10 * time.Minute
)

var envVarPattern = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)\}`)

// Config holds every tunable of the build switcher. Constructed once by Load
// and passed by reference into each component.
type Config struct {
	// RootDir is the project root under which virtual environments live.
	RootDir string `yaml:"root_dir"`

	// PackageName is the marker package whose presence proves an
	// environment was provisioned completely.
	PackageName string `yaml:"package_name"`

	// PrerequisitesRepo is the URL of the tagged prerequisites repository.
	PrerequisitesRepo string `yaml:"prerequisites_repo"`

	VenvPrefix string `yaml:"venv_prefix"`

	// SocketPath is the unix socket the VS Code extension listens on.
	SocketPath    string        `yaml:"socket_path"`
	NotifyAction  string        `yaml:"notify_action"`
	NotifyTimeout time.Duration `yaml:"notify_timeout"`

	GitBin string `yaml:"git_bin"`
	UVBin  string `yaml:"uv_bin"`

	// CommandTimeout bounds every external command invocation. Zero means
	// unbounded, matching the original behaviour.
	CommandTimeout time.Duration `yaml:"command_timeout"`

	// JournalPath is the sqlite provisioning journal. Empty disables the
	// journal entirely.
	JournalPath string `yaml:"journal_path"`

	// LockDir holds the per-environment advisory lock files.
	LockDir string `yaml:"lock_dir"`

	// RichTracebacks installs the rich traceback formatter into every
	// activated environment via its sitecustomize.py. When off, a
	// previously installed formatter is removed on the next activation.
	RichTracebacks bool `yaml:"rich_tracebacks"`

	LogLevel string `yaml:"log_level"`
}

// Load builds a Config from the optional YAML file at configPath (discovered
// when empty) with process environment variables taking precedence. Missing
// required values fail fast with a *ConfigurationError.
func Load(configPath string) (*Config, error) {
	cfg := &Config{
		VenvPrefix:     defaultVenvPrefix,
		SocketPath:     defaultSocketPath,
		NotifyAction:   defaultNotifyAction,
		NotifyTimeout:  defaultNotifyTimeout,
		GitBin:         "git",
		UVBin:          "uv",
		CommandTimeout: defaultCommandTimeout,
		LogLevel:       "INFO",
	}

	path, err := resolveConfigPath(configPath)
	if err != nil {
		return nil, err
	}
	if path != "" {
		if err := loadFile(cfg, path); err != nil {
			return nil, err
		}
	}

	applyEnvOverrides(cfg)

	if err := validate(cfg); err != nil {
		return nil, err
	}

	// Bookkeeping paths default under the root so everything the switcher
	// owns stays in one place.
	stateDir := filepath.Join(cfg.RootDir, ".buildswitch")
	if cfg.JournalPath == "" {
		cfg.JournalPath = filepath.Join(stateDir, "journal.db")
	}
	if cfg.LockDir == "" {
		cfg.LockDir = filepath.Join(stateDir, "locks")
	}

	return cfg, nil
}

// resolveConfigPath returns the config file to load, or "" when running on
// environment variables and defaults alone. An explicitly requested file must
// exist; discovered locations are optional.
func resolveConfigPath(configPath string) (string, error) {
	if configPath != "" {
		if _, err := os.Stat(configPath); err != nil {
			return "", fmt.Errorf("config file not found: %s", configPath)
		}
		return configPath, nil
	}

	if p := os.Getenv(EnvConfigFile); p != "" {
		if _, err := os.Stat(p); err != nil {
			return "", fmt.Errorf("%s points at a missing file: %s", EnvConfigFile, p)
		}
		return p, nil
	}

	if homeDir, err := os.UserHomeDir(); err == nil {
		p := filepath.Join(homeDir, ".config", "buildswitch", "config.yaml")
		if _, err := os.Stat(p); err == nil {
			return p, nil
		}
	}

	p := "./buildswitch.yaml"
	if _, err := os.Stat(p); err == nil {
		return p, nil
	}

	return "", nil
}

func loadFile(cfg *Config, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	interpolated := interpolateEnv(string(data))
	if err := yaml.Unmarshal([]byte(interpolated), cfg); err != nil {
		return fmt.Errorf("failed to parse YAML in %s: %w", path, err)
	}
	return nil
}

// interpolateEnv replaces ${VAR} references with environment values.
// Unset variables interpolate to the empty string.
func interpolateEnv(s string) string {
	return envVarPattern.ReplaceAllStringFunc(s, func(match string) string {
		name := envVarPattern.FindStringSubmatch(match)[1]
		return os.Getenv(name)
	})
}

func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv(EnvRoot); v != "" {
		cfg.RootDir = v
	}
	if v := os.Getenv(EnvPackageName); v != "" {
		cfg.PackageName = v
	}
	if v := os.Getenv(EnvPrereqRepo); v != "" {
		cfg.PrerequisitesRepo = v
	}
	if v := os.Getenv(EnvVenvPrefix); v != "" {
		cfg.VenvPrefix = v
	}
	if v := os.Getenv(EnvSocketPath); v != "" {
		cfg.SocketPath = v
	}
	if v := os.Getenv(EnvTracebacks); v != "" {
		cfg.RichTracebacks = true
	}
}

func validate(cfg *Config) error {
	switch {
	case cfg.RootDir == "":
		return NewConfigurationError(EnvRoot, "project root directory is not configured")
	case cfg.PackageName == "":
		return NewConfigurationError(EnvPackageName, "marker package name is not configured")
	case cfg.PrerequisitesRepo == "":
		return NewConfigurationError(EnvPrereqRepo, "prerequisites repository URL is not configured")
	}

	if cfg.NotifyTimeout <= 0 {
		return fmt.Errorf("invalid configuration: notify_timeout must be positive")
	}
	if cfg.VenvPrefix == "" {
		return fmt.Errorf("invalid configuration: venv_prefix must not be empty")
	}
	return nil
}
