// Package config loads doubletap settings from INI or TOML files.
package config

import (
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"gopkg.in/ini.v1"
)

const (
	DefaultThresholdMs = 300
	DefaultListen      = "localhost:12000"
	DefaultMaxSessions = 256

	maxThresholdMs = math.MaxInt64 / int64(time.Millisecond)
)

// Config is the full set of file-backed settings.
type Config struct {
	Classifier ClassifierConfig `ini:"classifier" toml:"classifier"`
	Server     ServerConfig     `ini:"server" toml:"server"`
	Log        LogConfig        `ini:"log" toml:"log"`
}

// ClassifierConfig holds defaults for new classifiers.
type ClassifierConfig struct {
	ThresholdMs     int  `ini:"threshold_ms" toml:"threshold_ms"`
	SingleTap       bool `ini:"single_tap" toml:"single_tap"`
	SuppressDefault bool `ini:"suppress_default" toml:"suppress_default"`
}

// ServerConfig holds settings for `server start`.
type ServerConfig struct {
	Listen      string `ini:"listen" toml:"listen"`
	CORS        bool   `ini:"cors" toml:"cors"`
	MaxSessions int    `ini:"max_sessions" toml:"max_sessions"`
}

type LogConfig struct {
	Verbose bool `ini:"verbose" toml:"verbose"`
}

// Default returns the built-in settings.
func Default() Config {
	return Config{
		Classifier: ClassifierConfig{
			ThresholdMs:     DefaultThresholdMs,
			SuppressDefault: true,
		},
		Server: ServerConfig{
			Listen:      DefaultListen,
			MaxSessions: DefaultMaxSessions,
		},
	}
}

// Threshold returns the classifier threshold as a duration.
func (c Config) Threshold() time.Duration {
	return time.Duration(c.Classifier.ThresholdMs) * time.Millisecond
}

// Validate checks values that would make the server unusable.
func (c Config) Validate() error {
	if c.Classifier.ThresholdMs <= 0 {
		return fmt.Errorf("classifier.threshold_ms must be positive, got %d", c.Classifier.ThresholdMs)
	}
	if int64(c.Classifier.ThresholdMs) > maxThresholdMs {
		return fmt.Errorf("classifier.threshold_ms %d is out of range, max is %d", c.Classifier.ThresholdMs, maxThresholdMs)
	}
	if c.Server.MaxSessions <= 0 {
		return fmt.Errorf("server.max_sessions must be positive, got %d", c.Server.MaxSessions)
	}
	return nil
}

// Load reads the file at path on top of the defaults. A missing file is not
// an error. The format is chosen by extension: .toml for TOML, anything
// else is parsed as INI.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, fmt.Errorf("config path is empty")
	}

	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return cfg, fmt.Errorf("failed to stat config: %w", err)
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".toml":
		if _, err := toml.DecodeFile(path, &cfg); err != nil {
			return cfg, fmt.Errorf("failed to decode toml config: %w", err)
		}
	default:
		file, err := ini.Load(path)
		if err != nil {
			return cfg, fmt.Errorf("failed to load ini config: %w", err)
		}
		if err := file.MapTo(&cfg); err != nil {
			return cfg, fmt.Errorf("failed to decode ini config: %w", err)
		}
	}

	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("invalid config %s: %w", path, err)
	}
	return cfg, nil
}

// XDGConfigHome returns the XDG config home or a default fallback.
func XDGConfigHome() string {
	if v := os.Getenv("XDG_CONFIG_HOME"); v != "" {
		return v
	}
	home, err := os.UserHomeDir()
	if err != nil || home == "" {
		return "."
	}
	return filepath.Join(home, ".config")
}

// DefaultPath is where the CLI looks for a config file when --config is
// not given.
func DefaultPath() string {
	return filepath.Join(XDGConfigHome(), "doubletap", "config.ini")
}
