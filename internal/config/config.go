// Package config handles configuration parsing for shellmux.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/volanti/shellmux/internal/ports"
	"gopkg.in/yaml.v3"
)

// DefaultConfigPath returns the default config file path:
// $XDG_CONFIG_HOME/shellmux/config.yaml or ~/.config/shellmux/config.yaml
func DefaultConfigPath() string {
	dir := os.Getenv("XDG_CONFIG_HOME")
	if dir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return ""
		}
		dir = filepath.Join(home, ".config")
	}
	return filepath.Join(dir, "shellmux", "config.yaml")
}

// Config represents the top-level configuration.
type Config struct {
	Shell   ShellConfig   `yaml:"shell"`
	Session SessionConfig `yaml:"session"`
	Logging LoggingConfig `yaml:"logging"`
}

// ShellConfig defines how the command interpreter is started.
type ShellConfig struct {
	Path     string `yaml:"path"`      // custom shell path (overrides detection)
	Term     string `yaml:"term"`      // TERM override (default: dumb)
	SourceRC bool   `yaml:"source_rc"` // source .bashrc/.zshrc (default: false)
	Login    bool   `yaml:"login"`     // start a login shell
}

// SessionConfig defines session behavior settings.
type SessionConfig struct {
	WorkingDir     string        `yaml:"working_dir"`     // initial working directory ("" = inherit)
	DefaultTimeout time.Duration `yaml:"default_timeout"` // per-command timeout when caller passes none
	MaxSessions    int           `yaml:"max_sessions"`    // concurrent session cap
	GraceClose     time.Duration `yaml:"grace_close"`     // graceful-exit wait before killing the process group
}

// LoggingConfig defines logging settings.
type LoggingConfig struct {
	Level    string `yaml:"level"`    // "debug", "info", "warn", "error"
	Sanitize bool   `yaml:"sanitize"` // sanitize sensitive data from logs
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		Shell: ShellConfig{
			Term: "dumb",
		},
		Session: SessionConfig{
			DefaultTimeout: 30 * time.Second,
			MaxSessions:    10,
			GraceClose:     500 * time.Millisecond,
		},
		Logging: LoggingConfig{
			Level:    "info",
			Sanitize: true,
		},
	}
}

// Load loads configuration from a YAML file. An empty path falls back to
// DefaultConfigPath, so a bare invocation still picks up the user's config.
// An optional FileSystem can be passed for testing; if omitted, the real OS is used.
func Load(path string, fsys ...ports.FileSystem) (*Config, error) {
	cfg := DefaultConfig()

	if path == "" {
		path = DefaultConfigPath()
	}
	if path == "" {
		return cfg, nil
	}

	var data []byte
	var err error
	if len(fsys) > 0 && fsys[0] != nil {
		data, err = fsys[0].ReadFile(path)
	} else {
		data, err = os.ReadFile(path)
	}
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, fmt.Errorf("read config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config file: %w", err)
	}

	return cfg, nil
}

// Validate validates the configuration, filling in sane values
// for fields a partial file left zero.
func (c *Config) Validate() error {
	if c.Session.MaxSessions <= 0 {
		c.Session.MaxSessions = 10
	}
	if c.Session.DefaultTimeout <= 0 {
		c.Session.DefaultTimeout = 30 * time.Second
	}
	if c.Session.GraceClose <= 0 {
		c.Session.GraceClose = 500 * time.Millisecond
	}
	if c.Shell.Term == "" {
		c.Shell.Term = "dumb"
	}
	return nil
}

// Save writes the configuration to a YAML file.
// An optional FileSystem can be passed for testing; if omitted, the real OS is used.
func Save(cfg *Config, path string, fsys ...ports.FileSystem) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}

	if len(fsys) > 0 && fsys[0] != nil {
		return fsys[0].WriteFile(path, data, 0644)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("create config directory: %w", err)
	}
	return os.WriteFile(path, data, 0644)
}
