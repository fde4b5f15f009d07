// Package config provides the configuration for the desk shell.
//
// Configuration is layered, higher layers overriding lower:
//
//	┌─────────────────────────────┐
//	│  4. Command Line Flags      │  ← applied by cmd/desk
//	├─────────────────────────────┤
//	│  3. Environment (DESK_*)    │
//	├─────────────────────────────┤
//	│  2. config.toml             │  ← ~/.config/desk/config.toml
//	├─────────────────────────────┤
//	│  1. Built-in Defaults       │
//	└─────────────────────────────┘
//
// Environment variables are named after the TOML keys, for example
// DESK_LOG_LEVEL, DESK_KEYMAP_TIMEOUT_MS or DESK_APPS_AUTOSTART (comma
// separated).
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/kelseyhightower/envconfig"
	"github.com/pelletier/go-toml/v2"
	"go.uber.org/zap/zapcore"

	"github.com/dshills/desk/internal/input/key"
)

// EnvPrefix is the prefix of environment overrides.
const EnvPrefix = "DESK"

// Config holds all application configuration.
type Config struct {
	Log      LogConfig     `toml:"log"`
	Keymap   KeymapConfig  `toml:"keymap"`
	Scripts  ScriptsConfig `toml:"scripts"`
	Apps     AppsConfig    `toml:"apps"`
	Platform string        `toml:"platform"`
}

// LogConfig holds logging configuration.
type LogConfig struct {
	Level       string `toml:"level"`
	Development bool   `toml:"development"`

	// File receives log output; the terminal is owned by the shell.
	File string `toml:"file"`
}

// KeymapConfig holds keybinding router configuration.
type KeymapConfig struct {
	// Path is an optional keymap file merged over the built-in keymap.
	Path string `toml:"path"`

	// TimeoutMS is the shared sequence timeout in milliseconds.
	TimeoutMS int `toml:"timeout_ms" split_words:"true"`

	// Event is "keydown" or "keyup".
	Event string `toml:"event"`

	// Watch reloads the keymap file when it changes.
	Watch bool `toml:"watch"`
}

// ScriptsConfig holds Lua scripting configuration.
type ScriptsConfig struct {
	// Dir is searched for *.lua files at startup.
	Dir string `toml:"dir"`

	// Files are loaded after Dir, in order.
	Files []string `toml:"files"`

	// TimeoutMS bounds every call into a script.
	TimeoutMS int `toml:"timeout_ms" split_words:"true"`
}

// AppsConfig holds application startup configuration.
type AppsConfig struct {
	// Autostart lists application keys opened at startup.
	Autostart []string `toml:"autostart"`
}

// Default returns the default configuration.
func Default() *Config {
	dir := DefaultDir()
	return &Config{
		Log: LogConfig{
			Level:       "info",
			Development: false,
			File:        filepath.Join(os.TempDir(), "desk.log"),
		},
		Keymap: KeymapConfig{
			Path:      filepath.Join(dir, "keymap.toml"),
			TimeoutMS: 1000,
			Event:     "keydown",
			Watch:     true,
		},
		Scripts: ScriptsConfig{
			Dir:       filepath.Join(dir, "scripts"),
			TimeoutMS: 5000,
		},
		Platform: "auto",
	}
}

// DefaultDir returns the user configuration directory.
func DefaultDir() string {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "desk")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(os.TempDir(), "desk")
	}
	return filepath.Join(home, ".config", "desk")
}

// DefaultPath returns the default config file path.
func DefaultPath() string {
	return filepath.Join(DefaultDir(), "config.toml")
}

// Load builds the configuration from defaults, the TOML file at path (if
// path is not empty) and DESK_* environment variables, then validates it.
// A missing file is reported as ErrFileNotFound.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		if err := cfg.loadFile(path); err != nil {
			return nil, err
		}
	}

	if err := envconfig.Process(EnvPrefix, cfg); err != nil {
		return nil, fmt.Errorf("loading environment: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadOptional is like Load but treats a missing file as absent.
func LoadOptional(path string) (*Config, error) {
	cfg, err := Load(path)
	if errors.Is(err, ErrFileNotFound) {
		return Load("")
	}
	return cfg, err
}

func (c *Config) loadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("%w: %s", ErrFileNotFound, path)
		}
		return fmt.Errorf("reading config file %s: %w", path, err)
	}

	dec := toml.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(c); err != nil {
		return newParseError(path, err)
	}
	return nil
}

// Validate checks every setting and reports all problems at once.
func (c *Config) Validate() error {
	var errs []error

	if _, err := zapcore.ParseLevel(c.Log.Level); err != nil {
		errs = append(errs, fmt.Errorf("%w: log.level: %v", ErrInvalidValue, err))
	}
	if c.Keymap.TimeoutMS <= 0 {
		errs = append(errs, fmt.Errorf("%w: keymap.timeout_ms must be positive, got %d", ErrInvalidValue, c.Keymap.TimeoutMS))
	}
	if _, err := key.ParseEventType(c.Keymap.Event); err != nil {
		errs = append(errs, fmt.Errorf("%w: keymap.event: %v", ErrInvalidValue, err))
	}
	if _, err := key.ParsePlatform(c.Platform); err != nil {
		errs = append(errs, fmt.Errorf("%w: platform: %v", ErrInvalidValue, err))
	}
	if c.Scripts.TimeoutMS < 0 {
		errs = append(errs, fmt.Errorf("%w: scripts.timeout_ms must not be negative", ErrInvalidValue))
	}

	return errors.Join(errs...)
}

// KeymapTimeout returns the sequence timeout.
func (c *Config) KeymapTimeout() time.Duration {
	return time.Duration(c.Keymap.TimeoutMS) * time.Millisecond
}

// ScriptTimeout returns the script call timeout; zero means unbounded.
func (c *Config) ScriptTimeout() time.Duration {
	return time.Duration(c.Scripts.TimeoutMS) * time.Millisecond
}

// EventType returns the key event type the router listens to.
func (c *Config) EventType() key.EventType {
	t, _ := key.ParseEventType(c.Keymap.Event)
	return t
}

// KeyPlatform returns the platform used for "$mod" and AltGraph.
func (c *Config) KeyPlatform() key.Platform {
	p, _ := key.ParsePlatform(c.Platform)
	return p
}

// Encode writes the configuration as TOML.
func (c *Config) Encode(w io.Writer) error {
	enc := toml.NewEncoder(w)
	enc.SetIndentTables(true)
	return enc.Encode(c)
}
