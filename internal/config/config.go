// Package config loads the cfstore configuration file.
package config

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/roach88/cfstore/internal/manifest"
	"github.com/roach88/cfstore/internal/model"
)

// DatabaseConfig holds catalog database configuration
type DatabaseConfig struct {
	Path string `yaml:"path"`
}

// RegistryConfig holds content-addressed registry configuration
type RegistryConfig struct {
	HashAlgorithm string `yaml:"hash_algorithm"`
}

// IngestConfig holds ingestion configuration
type IngestConfig struct {
	// FragmentRoot is prefixed to fragment paths when their sizes are
	// read from disk. Empty disables size lookup.
	FragmentRoot string `yaml:"fragment_root"`
}

// QuarkConfig holds quarking configuration
type QuarkConfig struct {
	Verify bool `yaml:"verify"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Config represents the complete cfstore configuration
type Config struct {
	Database DatabaseConfig `yaml:"database"`
	Registry RegistryConfig `yaml:"registry"`
	Ingest   IngestConfig   `yaml:"ingest"`
	Quark    QuarkConfig    `yaml:"quark"`
	Logging  LoggingConfig  `yaml:"logging"`
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	return &Config{
		Database: DatabaseConfig{Path: "cfstore.db"},
		Registry: RegistryConfig{HashAlgorithm: model.HashMD5},
		Logging:  LoggingConfig{Level: "info", Format: "text"},
	}
}

// Load reads a YAML configuration file over the defaults.
func Load(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.Database.Path == "" {
		return fmt.Errorf("database.path is required")
	}
	if _, err := model.NewHasher(c.Registry.HashAlgorithm); err != nil {
		return fmt.Errorf("registry.hash_algorithm: %w", err)
	}
	if _, err := parseLevel(c.Logging.Level); err != nil {
		return fmt.Errorf("logging.level: %w", err)
	}
	switch c.Logging.Format {
	case "", "text", "json":
	default:
		return fmt.Errorf("logging.format must be text or json, got %q", c.Logging.Format)
	}
	return nil
}

// Logger builds the slog logger described by the logging section. verbose
// forces debug level.
func (c *Config) Logger(w io.Writer, verbose bool) *slog.Logger {
	level, err := parseLevel(c.Logging.Level)
	if err != nil {
		level = slog.LevelInfo
	}
	if verbose {
		level = slog.LevelDebug
	}
	opts := &slog.HandlerOptions{Level: level}
	if c.Logging.Format == "json" {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

// FragmentSize returns the fragment size lookup for the manifest builder,
// or nil when no fragment root is configured.
func (c *Config) FragmentSize() manifest.SizeFunc {
	root := c.Ingest.FragmentRoot
	if root == "" {
		return nil
	}
	return func(path string) (int64, error) {
		fi, err := os.Stat(filepath.Join(root, path))
		if err != nil {
			return 0, fmt.Errorf("fragment size: %w", err)
		}
		return fi.Size(), nil
	}
}

func parseLevel(s string) (slog.Level, error) {
	var level slog.Level
	if s == "" {
		return slog.LevelInfo, nil
	}
	if err := level.UnmarshalText([]byte(strings.ToUpper(s))); err != nil {
		return slog.LevelInfo, err
	}
	return level, nil
}
