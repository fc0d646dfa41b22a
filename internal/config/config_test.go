package config

import (
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/spf13/viper"

	"github.com/justkk/Diabetic-retinopathy/internal/detection"
	"github.com/justkk/Diabetic-retinopathy/internal/imaging"
	"github.com/justkk/Diabetic-retinopathy/internal/motion"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.GMP.Coalesce != motion.Max {
		t.Errorf("GMP.Coalesce: got %v, want MAX", cfg.GMP.Coalesce)
	}
	if got := cfg.GMP.Angles.Count(); got != 11 {
		t.Errorf("GMP angle count: got %d, want 11", got)
	}
	if got := cfg.Aggregate.Angles.Count(); got != 10 {
		t.Errorf("Aggregate angle count: got %d, want 10", got)
	}
	if !cfg.GMP.Pivot().IsCenter() {
		t.Errorf("GMP pivot: got %v, want centre", cfg.GMP.Pivot())
	}
	if cfg.Aggregate.NumPivots != 100 {
		t.Errorf("NumPivots: got %d, want 100", cfg.Aggregate.NumPivots)
	}
	if cfg.Aggregate.Workers != runtime.NumCPU() {
		t.Errorf("Workers: got %d, want %d", cfg.Aggregate.Workers, runtime.NumCPU())
	}
	if cfg.Mask.Threshold != detection.AutoThreshold {
		t.Errorf("Mask.Threshold: got %d, want auto", cfg.Mask.Threshold)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("default config does not validate: %v", err)
	}
}

func TestLoadConfig_Missing(t *testing.T) {
	cfg, err := LoadConfig(filepath.Join(t.TempDir(), "absent.yaml"))
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}
	if cfg.Aggregate.NumPivots != 100 {
		t.Errorf("expected defaults, got NumPivots %d", cfg.Aggregate.NumPivots)
	}
}

func TestLoadConfig_PartialFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "run.yaml")
	data := []byte(`gmp:
  coalesce: mean
  angles:
    min: -10
    step: 2
    max: 10
  channel: red
  rotation:
    interpolation: nearest
aggregate:
  num_pivots: 25
  seed: 1234
  variance: stack
`)
	if err := os.WriteFile(path, data, 0644); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}
	if cfg.GMP.Coalesce != motion.Mean {
		t.Errorf("GMP.Coalesce: got %v, want MEAN", cfg.GMP.Coalesce)
	}
	if cfg.GMP.Angles != (motion.AngleRange{Min: -10, Step: 2, Max: 10}) {
		t.Errorf("GMP.Angles: got %v", cfg.GMP.Angles)
	}
	if cfg.GMP.Channel != imaging.Red {
		t.Errorf("GMP.Channel: got %v, want red", cfg.GMP.Channel)
	}
	if cfg.GMP.Rotation.Interpolation != imaging.Nearest {
		t.Errorf("Interpolation: got %v, want nearest", cfg.GMP.Rotation.Interpolation)
	}
	if cfg.Aggregate.NumPivots != 25 || cfg.Aggregate.Seed != 1234 || cfg.Aggregate.Variance != motion.VarianceStack {
		t.Errorf("Aggregate: got %+v", cfg.Aggregate)
	}
	// Untouched sections keep their defaults.
	if cfg.Aggregate.Coalesce != motion.Max || cfg.Server.CacheSize != imaging.DefaultCacheSize {
		t.Errorf("defaults lost: coalesce %v, cache %d", cfg.Aggregate.Coalesce, cfg.Server.CacheSize)
	}
}

func TestLoadConfig_Invalid(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.yaml")
	if err := os.WriteFile(path, []byte("gmp:\n  coalesce: median\n"), 0644); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}
	if _, err := LoadConfig(path); err == nil {
		t.Error("LoadConfig should fail for an unknown coalesce policy")
	}
}

func TestSaveConfig_RoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "run.yaml")
	cfg := DefaultConfig()
	cfg.GMP.Coalesce = motion.Min
	cfg.Aggregate.Seed = 99
	cfg.Mask.Channel = imaging.Luma

	if err := SaveConfig(cfg, path); err != nil {
		t.Fatalf("SaveConfig failed: %v", err)
	}
	back, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}
	if back.GMP.Coalesce != motion.Min || back.Aggregate.Seed != 99 || back.Mask.Channel != imaging.Luma {
		t.Errorf("round trip lost values: %+v", back)
	}
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name   string
		modify func(*Config)
		want   error
	}{
		{"zero pivots", func(c *Config) { c.Aggregate.NumPivots = 0 }, motion.ErrInvalidParameter},
		{"too many pivots", func(c *Config) { c.Aggregate.NumPivots = motion.MaxPivots + 1 }, motion.ErrInvalidParameter},
		{"half centre pivot", func(c *Config) { c.GMP.PivotRow = 5 }, motion.ErrInvalidParameter},
		{"zero step", func(c *Config) { c.GMP.Angles.Step = 0 }, motion.ErrInvalidParameter},
		{"bad policy", func(c *Config) { c.Aggregate.Coalesce = 0 }, motion.ErrInvalidParameter},
		{"bad channel", func(c *Config) { c.GMP.Channel = 6 }, imaging.ErrShapeMismatch},
		{"bad mask channel", func(c *Config) { c.Mask.Channel = -1 }, imaging.ErrShapeMismatch},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.modify(cfg)
			if err := cfg.Validate(); !errors.Is(err, tt.want) {
				t.Errorf("got %v, want %v", err, tt.want)
			}
		})
	}

	cfg := DefaultConfig()
	cfg.Log.Level = "chatty"
	if err := cfg.Validate(); err == nil {
		t.Error("expected an error for an unknown log level")
	}
}

func TestConfig_AggregateOptions(t *testing.T) {
	cfg := DefaultConfig()
	cfg.GMP.Channel = imaging.Blue
	cfg.Aggregate.Workers = 3

	opts := cfg.AggregateOptions(nil)
	if opts.Channel != imaging.Blue || opts.Workers != 3 {
		t.Errorf("got channel %v workers %d", opts.Channel, opts.Workers)
	}
	if opts.Rand != nil {
		t.Error("zero seed should leave the random source unset")
	}

	cfg.Aggregate.Seed = 5
	a, b := cfg.AggregateOptions(nil).Rand, cfg.AggregateOptions(nil).Rand
	for i := 0; i < 10; i++ {
		if x, y := a.IntN(1000), b.IntN(1000); x != y {
			t.Fatalf("draw %d: seeded sources differ (%d vs %d)", i, x, y)
		}
	}
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"INFO", slog.LevelInfo},
		{"", slog.LevelInfo},
		{"warning", slog.LevelWarn},
		{"error", slog.LevelError},
	}

	for _, tt := range tests {
		got, err := ParseLevel(tt.in)
		if err != nil || got != tt.want {
			t.Errorf("ParseLevel(%q): got %v, %v; want %v", tt.in, got, err, tt.want)
		}
	}
}

func TestConfig_Set(t *testing.T) {
	cfg := DefaultConfig()
	if err := cfg.Set("aggregate.num_pivots", "12"); err != nil {
		t.Fatalf("Set failed: %v", err)
	}
	if cfg.Aggregate.NumPivots != 12 {
		t.Errorf("NumPivots: got %d, want 12", cfg.Aggregate.NumPivots)
	}
	if err := cfg.Set("gmp.rotation.fill", "0.5"); err != nil || cfg.GMP.Rotation.Fill != 0.5 {
		t.Errorf("fill: got %v, %v", cfg.GMP.Rotation.Fill, err)
	}
	if err := cfg.Set("aggregate.num_pivots", "many"); err == nil {
		t.Error("expected a parse error")
	}
	if err := cfg.Set("no.such.key", "1"); err == nil {
		t.Error("expected an unknown key error")
	}
}

func TestLoad_Viper(t *testing.T) {
	path := filepath.Join(t.TempDir(), "run.yaml")
	if err := os.WriteFile(path, []byte("aggregate:\n  num_pivots: 40\n  workers: 2\n"), 0644); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}

	v := viper.New()
	v.Set("config", path)
	v.Set("aggregate.workers", 6)
	v.Set("gmp.coalesce", "min")

	cfg, err := Load(v)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Aggregate.NumPivots != 40 {
		t.Errorf("file value lost: NumPivots %d, want 40", cfg.Aggregate.NumPivots)
	}
	if cfg.Aggregate.Workers != 6 {
		t.Errorf("override lost: Workers %d, want 6", cfg.Aggregate.Workers)
	}
	if cfg.GMP.Coalesce != motion.Min {
		t.Errorf("override lost: Coalesce %v, want MIN", cfg.GMP.Coalesce)
	}
	if cfg.Aggregate.Coalesce != motion.Max {
		t.Errorf("default lost: aggregate Coalesce %v, want MAX", cfg.Aggregate.Coalesce)
	}
}
