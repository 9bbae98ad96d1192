// Package config loads the optional probe configuration file
// (~/.config/probe/config.yaml) and environment overrides.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"

	"gopkg.in/yaml.v3"
)

// Defaults used when neither the file, the environment nor a flag sets a value.
const (
	DefaultImageURL   = "https://github.com/pytorch/hub/raw/master/images/dog.jpg"
	DefaultImageFile  = "dog.jpg"
	DefaultLength     = 100
	DefaultIterations = 10
	DefaultLogLevel   = "info"
	DefaultLogFormat  = "pretty"
)

// Environment variables read by ApplyEnv.
const (
	EnvCacheDir   = "PROBE_CACHE_DIR"
	EnvLogLevel   = "PROBE_LOG_LEVEL"
	EnvLogFormat  = "PROBE_LOG_FORMAT"
	EnvIterations = "PROBE_ITERATIONS"
)

// Config mirrors config.yaml. Numeric fields are pointers so a missing key
// can be told apart from zero.
type Config struct {
	CacheDir   string `yaml:"cache_dir"`
	ImageURL   string `yaml:"image_url"`
	ImageFile  string `yaml:"image_file"`
	Arch       string `yaml:"arch"`
	WeightsURL string `yaml:"weights_url"`

	Length     *int `yaml:"length"`
	Iterations *int `yaml:"iterations"`

	LogLevel  string `yaml:"log_level"`
	LogFormat string `yaml:"log_format"`
}

// Path returns the default config file location, or "" when the user config
// directory cannot be determined.
func Path() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return ""
	}
	return filepath.Join(dir, "probe", "config.yaml")
}

// Load reads the config file at path. A missing file yields a zero Config;
// a malformed one is an error.
func Load(path string) (Config, error) {
	if path == "" {
		return Config{}, nil
	}
	//nolint:gosec // G304: path is the user's own config file
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return Config{}, nil
	}
	if err != nil {
		return Config{}, fmt.Errorf("config: read %s: %w", path, err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("config: parse %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("config: %s: %w", path, err)
	}
	return cfg, nil
}

// ApplyEnv overrides fields from the environment. lookup is usually os.LookupEnv.
func (c *Config) ApplyEnv(lookup func(string) (string, bool)) error {
	if v, ok := lookup(EnvCacheDir); ok && v != "" {
		c.CacheDir = v
	}
	if v, ok := lookup(EnvLogLevel); ok && v != "" {
		c.LogLevel = v
	}
	if v, ok := lookup(EnvLogFormat); ok && v != "" {
		c.LogFormat = v
	}
	if v, ok := lookup(EnvIterations); ok && v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("config: %s: %w", EnvIterations, err)
		}
		c.Iterations = &n
	}
	return c.Validate()
}

// Validate rejects values no procedure can run with.
func (c Config) Validate() error {
	if c.Length != nil && *c.Length <= 0 {
		return fmt.Errorf("length must be positive, got %d", *c.Length)
	}
	if c.Iterations != nil && *c.Iterations <= 0 {
		return fmt.Errorf("iterations must be positive, got %d", *c.Iterations)
	}
	return nil
}

// ResolvedCacheDir returns CacheDir, falling back to the user cache directory.
func (c Config) ResolvedCacheDir() (string, error) {
	if c.CacheDir != "" {
		return c.CacheDir, nil
	}
	dir, err := os.UserCacheDir()
	if err != nil {
		return "", fmt.Errorf("config: no cache directory: %w", err)
	}
	return filepath.Join(dir, "probe"), nil
}

// Or returns v when set, otherwise def.
func Or[T comparable](v T, def T) T {
	var zero T
	if v == zero {
		return def
	}
	return v
}

// IntOr dereferences p, or returns def when p is nil.
func IntOr(p *int, def int) int {
	if p == nil {
		return def
	}
	return *p
}
