// Package config loads the optional YAML settings file. Command line flags
// are applied on top of the loaded values by the caller.
package config

import (
	"os"
	"path/filepath"
	"time"

	"calltrace/internal/model"

	"github.com/cockroachdb/errors"
	"github.com/cockroachdb/errors/oserror"
	"go.uber.org/zap/zapcore"
	"gopkg.in/yaml.v3"
)

// Config holds all calltrace settings.
type Config struct {
	TickInterval string `yaml:"tick_interval"` // Event loop idle tick, e.g. 250ms
	FastStep     int    `yaml:"fast_step"`     // Lines moved by ctrl+u / ctrl+d
	Follow       bool   `yaml:"follow"`        // Reload when the trace changes on disk

	Web    WebConfig     `yaml:"web"`
	Log    LoggingConfig `yaml:"log"`
	Update UpdateConfig  `yaml:"update"`
}

// WebConfig configures the read-only HTTP API.
type WebConfig struct {
	Addr string `yaml:"addr"`
}

// LoggingConfig configures the log file. Logging is off when File is empty.
type LoggingConfig struct {
	Level      string `yaml:"level"` // debug, info, warn, error
	File       string `yaml:"file"`
	MaxSizeMB  int    `yaml:"max_size_mb"` // Rotate after this many megabytes
	MaxBackups int    `yaml:"max_backups"` // Rotated files to keep, 0 keeps all
}

// UpdateConfig names the GitHub repository checked by --update.
type UpdateConfig struct {
	Owner      string `yaml:"owner"`
	Repository string `yaml:"repository"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		TickInterval: "250ms",
		FastStep:     20,
		Web:          WebConfig{Addr: ":8080"},
		Log:          LoggingConfig{Level: "info", MaxSizeMB: 10, MaxBackups: 3},
		Update: UpdateConfig{
			Owner:      "calltrace",
			Repository: "calltrace",
		},
	}
}

// DefaultPath returns $XDG_CONFIG_HOME/calltrace/config.yaml, falling back
// to the platform's user config directory.
func DefaultPath() string {
	dir := os.Getenv("XDG_CONFIG_HOME")
	if dir == "" {
		var err error
		if dir, err = os.UserConfigDir(); err != nil {
			return ""
		}
	}
	return filepath.Join(dir, "calltrace", "config.yaml")
}

// Load loads configuration from a YAML file. A missing file yields the
// defaults. The result is validated.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if oserror.IsNotExist(err) {
			return cfg, nil
		}
		return nil, model.MarkIO(err, "failed to read config %s", path)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, model.MarkFormat(err, "failed to parse config %s", path)
	}
	if err := cfg.Validate(); err != nil {
		return nil, model.MarkFormat(err, "invalid config %s", path)
	}
	return cfg, nil
}

// Validate checks value ranges and formats.
func (c *Config) Validate() error {
	d, err := time.ParseDuration(c.TickInterval)
	if err != nil {
		return errors.Wrap(err, "tick_interval")
	}
	if d <= 0 {
		return errors.Newf("tick_interval must be positive, got %s", c.TickInterval)
	}
	if c.FastStep < 1 {
		return errors.Newf("fast_step must be at least 1, got %d", c.FastStep)
	}
	if _, err := zapcore.ParseLevel(c.Log.Level); err != nil {
		return errors.Wrap(err, "log.level")
	}
	if c.Log.MaxSizeMB < 0 || c.Log.MaxBackups < 0 {
		return errors.New("log.max_size_mb and log.max_backups must not be negative")
	}
	return nil
}

// Tick returns the tick interval as a duration.
func (c *Config) Tick() time.Duration {
	d, err := time.ParseDuration(c.TickInterval)
	if err != nil || d <= 0 {
		return 250 * time.Millisecond
	}
	return d
}
