package config

import (
	"fmt"
	"sort"
	"strconv"

	"github.com/spf13/viper"

	"github.com/justkk/Diabetic-retinopathy/internal/imaging"
	"github.com/justkk/Diabetic-retinopathy/internal/motion"
)

// setter parses a string value into one field of a Config.
type setter func(cfg *Config, value string) error

// settings maps dotted keys (the YAML path of each field) to their setters.
// The same keys are used for viper (flags and RETINA_GMP_* environment
// variables) and as the targets of INI keys.
var settings = map[string]setter{
	"gmp.coalesce":               parseInto(motion.ParseCoalesce, func(c *Config) *motion.Coalesce { return &c.GMP.Coalesce }),
	"gmp.angles.min":             floatInto(func(c *Config) *float64 { return &c.GMP.Angles.Min }),
	"gmp.angles.step":            floatInto(func(c *Config) *float64 { return &c.GMP.Angles.Step }),
	"gmp.angles.max":             floatInto(func(c *Config) *float64 { return &c.GMP.Angles.Max }),
	"gmp.pivot_row":              intInto(func(c *Config) *int { return &c.GMP.PivotRow }),
	"gmp.pivot_col":              intInto(func(c *Config) *int { return &c.GMP.PivotCol }),
	"gmp.channel":                parseInto(imaging.ParseChannel, func(c *Config) *imaging.Channel { return &c.GMP.Channel }),
	"gmp.rotation.interpolation": parseInto(imaging.ParseInterpolation, func(c *Config) *imaging.Interpolation { return &c.GMP.Rotation.Interpolation }),
	"gmp.rotation.fill":          floatInto(func(c *Config) *float64 { return &c.GMP.Rotation.Fill }),

	"aggregate.num_pivots":  intInto(func(c *Config) *int { return &c.Aggregate.NumPivots }),
	"aggregate.coalesce":    parseInto(motion.ParseCoalesce, func(c *Config) *motion.Coalesce { return &c.Aggregate.Coalesce }),
	"aggregate.angles.min":  floatInto(func(c *Config) *float64 { return &c.Aggregate.Angles.Min }),
	"aggregate.angles.step": floatInto(func(c *Config) *float64 { return &c.Aggregate.Angles.Step }),
	"aggregate.angles.max":  floatInto(func(c *Config) *float64 { return &c.Aggregate.Angles.Max }),
	"aggregate.seed":        uintInto(func(c *Config) *uint64 { return &c.Aggregate.Seed }),
	"aggregate.workers":     intInto(func(c *Config) *int { return &c.Aggregate.Workers }),
	"aggregate.variance":    parseInto(motion.ParseVarianceMode, func(c *Config) *motion.VarianceMode { return &c.Aggregate.Variance }),
	"aggregate.apply_mask":  boolInto(func(c *Config) *bool { return &c.Aggregate.ApplyMask }),

	"mask.channel":   parseInto(imaging.ParseChannel, func(c *Config) *imaging.Channel { return &c.Mask.Channel }),
	"mask.threshold": intInto(func(c *Config) *int { return &c.Mask.Threshold }),

	"server.cache_size": intInto(func(c *Config) *int { return &c.Server.CacheSize }),
	"log.level": func(c *Config, v string) error {
		if _, err := ParseLevel(v); err != nil {
			return err
		}
		c.Log.Level = v
		return nil
	},
}

// Keys returns every settable dotted key in sorted order.
func Keys() []string {
	keys := make([]string, 0, len(settings))
	for k := range settings {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Set assigns the string value to the field named by a dotted key.
func (c *Config) Set(key, value string) error {
	set, ok := settings[key]
	if !ok {
		return fmt.Errorf("unknown configuration key %q", key)
	}
	if err := set(c, value); err != nil {
		return fmt.Errorf("%s: %w", key, err)
	}
	return nil
}

// Load builds a Config from a viper instance: defaults, then the YAML file
// named by the "config" key, then every key viper has a value for (bound
// flags and RETINA_GMP_* environment variables).
func Load(v *viper.Viper) (*Config, error) {
	cfg, err := LoadConfig(v.GetString("config"))
	if err != nil {
		return nil, err
	}
	for _, key := range Keys() {
		if !v.IsSet(key) {
			continue
		}
		if err := cfg.Set(key, v.GetString(key)); err != nil {
			return nil, err
		}
	}
	return cfg, nil
}

func parseInto[T any](parse func(string) (T, error), field func(*Config) *T) setter {
	return func(c *Config, v string) error {
		parsed, err := parse(v)
		if err != nil {
			return err
		}
		*field(c) = parsed
		return nil
	}
}

func floatInto(field func(*Config) *float64) setter {
	return parseInto(func(s string) (float64, error) { return strconv.ParseFloat(s, 64) }, field)
}

func intInto(field func(*Config) *int) setter {
	return parseInto(strconv.Atoi, field)
}

func uintInto(field func(*Config) *uint64) setter {
	return parseInto(func(s string) (uint64, error) { return strconv.ParseUint(s, 10, 64) }, field)
}

func boolInto(field func(*Config) *bool) setter {
	return parseInto(strconv.ParseBool, field)
}
