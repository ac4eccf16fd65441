// Package config provides configuration parsing, validation and profile
// path resolution for tdata-reader.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// DefaultProfileName is the logical profile name used when none is
// configured. It selects key_<name> and composes account directory
// names.
const DefaultProfileName = "data"

// Config is the complete tool configuration.
type Config struct {
	// WorkingDir is the host application's profile root (the directory
	// containing tdata/). Empty means resolve per platform defaults.
	WorkingDir string `yaml:"working_dir"`

	// Profile is the logical data-file name. Empty means "data".
	Profile string `yaml:"profile"`

	// Debug selects the developer default working directory (next to the
	// executable) instead of the user-data path.
	Debug bool `yaml:"debug"`

	Log     LogConfig     `yaml:"log"`
	Metrics MetricsConfig `yaml:"metrics"`
}

// LogConfig controls the structured logger.
type LogConfig struct {
	// Level is one of debug, info, warn, error.
	Level string `yaml:"level"`

	// Format is text or json.
	Format string `yaml:"format"`
}

// MetricsConfig controls the optional Prometheus endpoint.
type MetricsConfig struct {
	// Listen is an address for a /metrics listener; empty disables it.
	Listen string `yaml:"listen"`
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	return &Config{
		Profile: DefaultProfileName,
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// Load reads and validates a YAML configuration file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}
	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// ApplyDefaults fills empty fields with their defaults and normalises the
// profile name.
func (c *Config) ApplyDefaults() {
	if c.Profile == "" {
		c.Profile = DefaultProfileName
	}
	c.Profile = SanitizeProfileName(c.Profile)
	if c.Profile == "" {
		c.Profile = DefaultProfileName
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Log.Format == "" {
		c.Log.Format = "text"
	}
}

// Validate checks field values.
func (c *Config) Validate() error {
	switch c.Log.Level {
	case "debug", "info", "warn", "warning", "error":
	default:
		return fmt.Errorf("invalid log level %q", c.Log.Level)
	}
	switch c.Log.Format {
	case "text", "json":
	default:
		return fmt.Errorf("invalid log format %q", c.Log.Format)
	}
	if c.WorkingDir != "" {
		if _, err := os.Stat(c.WorkingDir); err != nil {
			return fmt.Errorf("working_dir: %w", err)
		}
	}
	return nil
}

// SanitizeProfileName reduces a profile override to the byte set the host
// application accepts: letters, digits, backslash, dash and underscore,
// lowercased. Everything else is dropped.
func SanitizeProfileName(name string) string {
	var b strings.Builder
	for i := 0; i < len(name); i++ {
		c := name[i]
		switch {
		case c >= 'A' && c <= 'Z':
			b.WriteByte(c - 'A' + 'a')
		case c >= 'a' && c <= 'z', c >= '0' && c <= '9', c == '\\', c == '-', c == '_':
			b.WriteByte(c)
		}
	}
	return b.String()
}

// ResolveWorkingDir returns the configured working directory, or resolves
// the platform default: in debug mode the executable's directory, and
// otherwise the host application's legacy dot-directory when it holds a
// settings file, falling back to the user data directory.
func (c *Config) ResolveWorkingDir() (string, error) {
	if c.WorkingDir != "" {
		return c.WorkingDir, nil
	}
	if c.Debug {
		exe, err := os.Executable()
		if err != nil {
			return "", fmt.Errorf("resolving executable path: %w", err)
		}
		return filepath.Dir(exe), nil
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("resolving home directory: %w", err)
	}

	oldPath := filepath.Join(home, ".TelegramDesktop")
	for _, suffix := range []string{"0", "1", "s"} {
		if _, err := os.Stat(filepath.Join(oldPath, "tdata", "settings"+suffix)); err == nil {
			return oldPath, nil
		}
	}

	dataHome := os.Getenv("XDG_DATA_HOME")
	if dataHome == "" {
		dataHome = filepath.Join(home, ".local", "share")
	}
	return filepath.Join(dataHome, "TelegramDesktop"), nil
}

// TDataDir resolves the tdata directory under the working directory.
func (c *Config) TDataDir() (string, error) {
	wd, err := c.ResolveWorkingDir()
	if err != nil {
		return "", err
	}
	dir := filepath.Join(wd, "tdata")
	if _, err := os.Stat(dir); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return "", fmt.Errorf("no tdata directory at %s", dir)
		}
		return "", fmt.Errorf("checking tdata directory: %w", err)
	}
	return dir, nil
}
