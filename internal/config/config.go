// Package config holds the app's on-disk configuration: the config dir
// layout, the OAuth client credentials, and the YAML app config.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Defaults for the app config.
const (
	DefaultDebounce     = 5 * time.Second
	DefaultCanvasWidth  = 1200
	DefaultCanvasHeight = 800
)

// Config is the user-editable app configuration.
type Config struct {
	// AutoSync enables the debounced automatic sync on note changes.
	AutoSync bool `yaml:"auto_sync"`
	// DebounceSeconds is the quiet period before an automatic sync fires.
	DebounceSeconds int `yaml:"debounce_seconds"`
	// CanvasWidth/CanvasHeight bound note placement for CLI-created notes.
	CanvasWidth  float64 `yaml:"canvas_width"`
	CanvasHeight float64 `yaml:"canvas_height"`
}

// DefaultConfig returns the config used when no file exists.
func DefaultConfig() Config {
	return Config{
		AutoSync:        true,
		DebounceSeconds: int(DefaultDebounce / time.Second),
		CanvasWidth:     DefaultCanvasWidth,
		CanvasHeight:    DefaultCanvasHeight,
	}
}

// Debounce returns the configured debounce window.
func (c Config) Debounce() time.Duration {
	if c.DebounceSeconds <= 0 {
		return DefaultDebounce
	}
	return time.Duration(c.DebounceSeconds) * time.Second
}

// ReadConfig loads config.yaml, filling defaults for absent fields. A missing
// file is not an error.
func ReadConfig() (Config, error) {
	cfg := DefaultConfig()

	path, err := ConfigPath()
	if err != nil {
		return cfg, fmt.Errorf("resolve config path: %w", err)
	}

	b, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return cfg, fmt.Errorf("read config: %w", err)
	}

	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return DefaultConfig(), fmt.Errorf("decode config: %w", err)
	}

	if cfg.CanvasWidth <= 0 {
		cfg.CanvasWidth = DefaultCanvasWidth
	}
	if cfg.CanvasHeight <= 0 {
		cfg.CanvasHeight = DefaultCanvasHeight
	}

	return cfg, nil
}

// WriteConfig persists the config atomically.
func WriteConfig(cfg Config) error {
	if _, err := EnsureDir(); err != nil {
		return fmt.Errorf("ensure config dir: %w", err)
	}

	path, err := ConfigPath()
	if err != nil {
		return fmt.Errorf("resolve config path: %w", err)
	}

	b, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("encode config: %w", err)
	}

	tmp := path + ".tmp"

	if err := os.WriteFile(tmp, b, 0o644); err != nil {
		return fmt.Errorf("write config: %w", err)
	}

	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("commit config: %w", err)
	}

	return nil
}
