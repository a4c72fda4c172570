// Package config loads the graft.yaml project manifest: which target to
// serve, where the source lives, and how the dev loop around it behaves.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/aretw0/graft/pkg/domain"
	"github.com/mitchellh/mapstructure"
	"gopkg.in/yaml.v3"
)

// DefaultFile is the manifest looked up when no --config flag is given.
const DefaultFile = "graft.yaml"

// Duration wraps time.Duration with YAML support for "250ms"-style strings.
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var raw string
	if err := value.Decode(&raw); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(raw)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", raw, err)
	}
	*d = Duration(parsed)
	return nil
}

// Std returns the wrapped time.Duration.
func (d Duration) Std() time.Duration { return time.Duration(d) }

// Config is the project manifest.
type Config struct {
	Target  string        `yaml:"target"`
	Root    string        `yaml:"root"`
	Server  ServerConfig  `yaml:"server"`
	Watch   WatchConfig   `yaml:"watch"`
	Resolve ResolveConfig `yaml:"resolve"`
	Log     LogConfig     `yaml:"log"`
	Sweeps  []SweepConfig `yaml:"sweeps"`
}

// ServerConfig controls the dev HTTP server.
type ServerConfig struct {
	Addr     string `yaml:"addr"`
	Disabled bool   `yaml:"disabled"`
}

// WatchConfig controls the file watcher driving automatic reloads.
type WatchConfig struct {
	Paths    []string `yaml:"paths"`
	Ignore   []string `yaml:"ignore"`
	Debounce Duration `yaml:"debounce"`
}

// ResolveConfig controls symbol resolution.
type ResolveConfig struct {
	Timeout Duration `yaml:"timeout"`
}

// LogConfig controls diagnostic output.
type LogConfig struct {
	Level string `yaml:"level"`
}

// SweepConfig declares one registry sweep strategy. Options are decoded per
// kind into the matching typed struct.
type SweepConfig struct {
	Kind    string         `yaml:"kind"`
	Options map[string]any `yaml:"options"`
}

// RedisSweepOptions are the options for kind "redis".
type RedisSweepOptions struct {
	Addr      string `mapstructure:"addr"`
	Password  string `mapstructure:"password"`
	DB        int    `mapstructure:"db"`
	Prefix    string `mapstructure:"prefix"`
	ScanCount int64  `mapstructure:"scan_count"`
}

// RedisOptions decodes the entry's options for the redis sweep.
func (s SweepConfig) RedisOptions() (RedisSweepOptions, error) {
	opts := RedisSweepOptions{
		Addr: "localhost:6379",
	}
	if err := mapstructure.Decode(s.Options, &opts); err != nil {
		return opts, fmt.Errorf("failed to decode redis sweep options: %w", err)
	}
	return opts, nil
}

// Default returns the manifest used when no file exists.
func Default() *Config {
	return &Config{
		Root: ".",
		Server: ServerConfig{
			Addr: ":8686",
		},
		Watch: WatchConfig{
			Paths:    []string{"."},
			Ignore:   []string{".git", "vendor"},
			Debounce: Duration(250 * time.Millisecond),
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}

// Load reads and decodes a manifest file over the defaults. Unknown fields
// are rejected.
func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening config: %w", err)
	}
	defer f.Close()

	cfg := Default()
	dec := yaml.NewDecoder(f)
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}
	return cfg, nil
}

// LoadOrDefault loads path when given, falls back to graft.yaml in the
// working directory, and returns the defaults when neither exists.
func LoadOrDefault(path string) (*Config, error) {
	if path != "" {
		return Load(path)
	}
	cfg, err := Load(DefaultFile)
	if errors.Is(err, os.ErrNotExist) {
		return Default(), nil
	}
	return cfg, err
}

var sweepKinds = map[string]bool{
	"prometheus": true,
	"redis":      true,
}

var logLevels = map[string]slog.Level{
	"debug": slog.LevelDebug,
	"info":  slog.LevelInfo,
	"warn":  slog.LevelWarn,
	"error": slog.LevelError,
}

// Validate checks the manifest and reports every problem at once.
func (c *Config) Validate() error {
	var errs []error

	if c.Target != "" {
		if _, err := domain.ParseTarget(c.Target); err != nil {
			errs = append(errs, &ValidationError{Key: "target", Reason: "must be \"module.path:attribute\"", Value: c.Target})
		}
	}
	if c.Root == "" {
		errs = append(errs, &ValidationError{Key: "root", Reason: "must not be empty"})
	}
	if _, ok := logLevels[c.Log.Level]; !ok {
		errs = append(errs, &ValidationError{Key: "log.level", Reason: "must be one of debug, info, warn, error", Value: c.Log.Level})
	}
	if c.Watch.Debounce < 0 {
		errs = append(errs, &ValidationError{Key: "watch.debounce", Reason: "must not be negative", Value: c.Watch.Debounce.Std().String()})
	}
	for i, sweep := range c.Sweeps {
		if !sweepKinds[sweep.Kind] {
			errs = append(errs, &ValidationError{
				Key:    fmt.Sprintf("sweeps[%d].kind", i),
				Reason: "must be one of prometheus, redis",
				Value:  sweep.Kind,
			})
		}
	}

	if len(errs) > 0 {
		return &AggregateError{Errors: errs}
	}
	return nil
}

// LogLevel maps the configured level name onto slog.
func (c *Config) LogLevel() slog.Level {
	if level, ok := logLevels[c.Log.Level]; ok {
		return level
	}
	return slog.LevelInfo
}
