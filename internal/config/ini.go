package config

import (
	"fmt"
	"sort"
	"strings"

	"gopkg.in/ini.v1"
)

// Sections is a parsed INI parameter file: section name to key/value pairs.
type Sections map[string]map[string]string

// ParseINI reads an INI parameter file.
//
// Keys of the DEFAULT section (and keys before the first section header) are
// merged into every named section, with the section's own value winning. The
// default section itself is not part of the result. Key names are lowercased;
// section names keep their case.
func ParseINI(path string) (Sections, error) {
	file, err := ini.Load(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read parameter file: %w", err)
	}

	defaults := keyValues(file.Section(ini.DefaultSection))
	out := make(Sections)
	for _, sec := range file.Sections() {
		if sec.Name() == ini.DefaultSection {
			continue
		}
		merged := make(map[string]string, len(defaults))
		for k, v := range defaults {
			merged[k] = v
		}
		for k, v := range keyValues(sec) {
			merged[k] = v
		}
		out[sec.Name()] = merged
	}
	return out, nil
}

func keyValues(sec *ini.Section) map[string]string {
	kv := make(map[string]string)
	for _, key := range sec.Keys() {
		kv[strings.ToLower(key.Name())] = key.String()
	}
	return kv
}

// Names returns the section names in sorted order.
func (s Sections) Names() []string {
	names := make([]string, 0, len(s))
	for name := range s {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// iniKeys maps the flat keys of a parameter file section to the configuration
// fields they set. A key such as coalesce describes the experiment as a whole
// and sets both the single-pattern and the aggregation field.
var iniKeys = map[string][]string{
	"coalesce":      {"gmp.coalesce", "aggregate.coalesce"},
	"angle_min":     {"gmp.angles.min", "aggregate.angles.min"},
	"angle_step":    {"gmp.angles.step", "aggregate.angles.step"},
	"angle_max":     {"gmp.angles.max", "aggregate.angles.max"},
	"pivot_row":     {"gmp.pivot_row"},
	"pivot_col":     {"gmp.pivot_col"},
	"channel":       {"gmp.channel", "mask.channel"},
	"interpolation": {"gmp.rotation.interpolation"},
	"fill":          {"gmp.rotation.fill"},
	"num_pivots":    {"aggregate.num_pivots"},
	"seed":          {"aggregate.seed"},
	"workers":       {"aggregate.workers"},
	"variance":      {"aggregate.variance"},
	"apply_mask":    {"aggregate.apply_mask"},
	"threshold":     {"mask.threshold"},
	"cache_size":    {"server.cache_size"},
	"log_level":     {"log.level"},
}

// Apply overlays the recognised keys of one section onto cfg. Keys that do not
// name a parameter (paths, dataset names) are returned sorted rather than
// treated as errors.
func (s Sections) Apply(cfg *Config, section string) ([]string, error) {
	kv, ok := s[section]
	if !ok {
		return nil, fmt.Errorf("no section %q in parameter file", section)
	}

	var ignored []string
	for key, value := range kv {
		targets, ok := iniKeys[key]
		if !ok {
			ignored = append(ignored, key)
			continue
		}
		for _, target := range targets {
			if err := cfg.Set(target, value); err != nil {
				return nil, fmt.Errorf("section %q: %w", section, err)
			}
		}
	}
	sort.Strings(ignored)
	return ignored, nil
}
