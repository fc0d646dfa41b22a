// Package config provides configuration loading and management for retina-gmp.
// It handles loading configuration from YAML files, INI parameter files and
// the environment, and provides default values.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/justkk/Diabetic-retinopathy/internal/detection"
	"github.com/justkk/Diabetic-retinopathy/internal/imaging"
	"github.com/justkk/Diabetic-retinopathy/internal/motion"
)

// Config represents the application configuration loaded from YAML
type Config struct {
	// GMP holds the parameters of a single motion pattern.
	GMP GMPConfig `yaml:"gmp"`

	// Aggregate holds the parameters of the interference/variance maps.
	Aggregate AggregateConfig `yaml:"aggregate"`

	// Mask holds the fundus mask parameters.
	Mask detection.MaskOptions `yaml:"mask"`

	// Server holds the tool server parameters.
	Server ServerConfig `yaml:"server"`

	// Log holds the logging parameters.
	Log LogConfig `yaml:"log"`
}

// GMPConfig holds the parameters of a single motion pattern.
type GMPConfig struct {
	Coalesce motion.Coalesce       `yaml:"coalesce"`
	Angles   motion.AngleRange     `yaml:"angles"`
	PivotRow int                   `yaml:"pivot_row"`
	PivotCol int                   `yaml:"pivot_col"`
	Channel  imaging.Channel       `yaml:"channel"`
	Rotation imaging.RotateOptions `yaml:"rotation"`
}

// Pivot returns the configured pivot; (-1, -1) is the image centre.
func (g GMPConfig) Pivot() motion.Pivot {
	return motion.Pivot{Row: g.PivotRow, Col: g.PivotCol}
}

// AggregateConfig holds the parameters of the interference/variance maps.
type AggregateConfig struct {
	NumPivots int               `yaml:"num_pivots"`
	Coalesce  motion.Coalesce   `yaml:"coalesce"`
	Angles    motion.AngleRange `yaml:"angles"`

	// Seed makes pivot sampling reproducible. Zero draws a fresh seed per run.
	Seed uint64 `yaml:"seed"`

	// Workers is the number of patterns computed at once.
	Workers int `yaml:"workers"`

	Variance motion.VarianceMode `yaml:"variance"`

	// ApplyMask restricts the maps to the fundus mask.
	ApplyMask bool `yaml:"apply_mask"`
}

// ServerConfig holds the tool server parameters.
type ServerConfig struct {
	// CacheSize is the number of decoded images kept in memory.
	CacheSize int `yaml:"cache_size"`
}

// LogConfig holds the logging parameters.
type LogConfig struct {
	// Level is one of debug, info, warn, error.
	Level string `yaml:"level"`
}

// DefaultConfig returns a configuration with default values
func DefaultConfig() *Config {
	cfg := &Config{}

	cfg.GMP.Coalesce = motion.Max
	cfg.GMP.Angles = motion.AngleRange{Min: -5, Step: 1, Max: 6}
	cfg.GMP.PivotRow, cfg.GMP.PivotCol = motion.CenterPivot.Row, motion.CenterPivot.Col
	cfg.GMP.Channel = imaging.DefaultChannel
	cfg.GMP.Rotation = imaging.DefaultRotateOptions()

	cfg.Aggregate.NumPivots = 100
	cfg.Aggregate.Coalesce = motion.Max
	cfg.Aggregate.Angles = motion.AngleRange{Min: -5, Step: 1, Max: 5}
	cfg.Aggregate.Workers = runtime.NumCPU() // Use all available cores by default
	cfg.Aggregate.Variance = motion.VarianceOnline

	cfg.Mask = detection.DefaultMaskOptions()
	cfg.Server.CacheSize = imaging.DefaultCacheSize
	cfg.Log.Level = "info"

	return cfg
}

// LoadConfig loads configuration from a YAML file
// If the file doesn't exist, it returns the default configuration
func LoadConfig(configPath string) (*Config, error) {
	cfg := DefaultConfig()

	if configPath == "" {
		return cfg, nil
	}
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		return cfg, nil
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("error reading config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("error parsing config file: %w", err)
	}

	return cfg, nil
}

// SaveConfig saves the configuration to a YAML file
func SaveConfig(cfg *Config, configPath string) error {
	dir := filepath.Dir(configPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("error creating config directory: %w", err)
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("error marshaling config: %w", err)
	}

	if err := os.WriteFile(configPath, data, 0644); err != nil {
		return fmt.Errorf("error writing config file: %w", err)
	}

	return nil
}

// Validate checks every parameter that would otherwise only fail once an
// image is being processed.
func (c *Config) Validate() error {
	if err := c.GMP.Coalesce.Validate(); err != nil {
		return fmt.Errorf("gmp: %w", err)
	}
	if err := c.GMP.Angles.Validate(); err != nil {
		return fmt.Errorf("gmp: %w", err)
	}
	if !c.GMP.Channel.Valid() {
		return fmt.Errorf("gmp: %w: channel %d", imaging.ErrShapeMismatch, int(c.GMP.Channel))
	}
	if err := c.GMP.Rotation.Validate(); err != nil {
		return fmt.Errorf("gmp: %w: %v", motion.ErrInvalidParameter, err)
	}
	if (c.GMP.PivotRow == motion.CenterPivot.Row) != (c.GMP.PivotCol == motion.CenterPivot.Col) {
		return fmt.Errorf("gmp: %w: pivot_row and pivot_col must both be %d for the centre, got (%d,%d)",
			motion.ErrInvalidParameter, motion.CenterPivot.Row, c.GMP.PivotRow, c.GMP.PivotCol)
	}
	if c.Aggregate.NumPivots < 1 || c.Aggregate.NumPivots > motion.MaxPivots {
		return fmt.Errorf("aggregate: %w: num_pivots must be in [1, %d], got %d", motion.ErrInvalidParameter, motion.MaxPivots, c.Aggregate.NumPivots)
	}
	if err := c.Aggregate.Coalesce.Validate(); err != nil {
		return fmt.Errorf("aggregate: %w", err)
	}
	if err := c.Aggregate.Angles.Validate(); err != nil {
		return fmt.Errorf("aggregate: %w", err)
	}
	if !c.Mask.Channel.Valid() {
		return fmt.Errorf("mask: %w: channel %d", imaging.ErrShapeMismatch, int(c.Mask.Channel))
	}
	if _, err := ParseLevel(c.Log.Level); err != nil {
		return fmt.Errorf("log: %w", err)
	}
	return nil
}

// GeneratorOptions returns the motion options for single patterns.
func (c *Config) GeneratorOptions(logger *slog.Logger) motion.Options {
	return motion.Options{
		Channel:  c.GMP.Channel,
		Rotation: c.GMP.Rotation,
		Logger:   logger,
	}
}

// AggregateOptions returns the motion options for aggregation. A non-zero
// seed installs a deterministic random source.
func (c *Config) AggregateOptions(logger *slog.Logger) motion.AggregateOptions {
	opts := motion.AggregateOptions{
		Options:  c.GeneratorOptions(logger),
		Workers:  c.Aggregate.Workers,
		Variance: c.Aggregate.Variance,
	}
	if c.Aggregate.Seed != 0 {
		opts.Rand = motion.NewRand(c.Aggregate.Seed)
	}
	return opts
}

// ParseLevel maps debug, info, warn or error (any case) to a slog level.
// The empty string is info.
func ParseLevel(s string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug, nil
	case "info", "":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	}
	return slog.LevelInfo, fmt.Errorf("unknown log level %q", s)
}
