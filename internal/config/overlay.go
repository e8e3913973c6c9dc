package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// SchedulerOverlay is the optional YAML file applied on top of the env
// config at scheduler startup. It is read once; the query catalog itself
// stays read-only at runtime.
type SchedulerOverlay struct {
	ActivePools []string        `yaml:"active_pools"`
	ActivePairs []string        `yaml:"active_pairs"`
	Queries     map[string]bool `yaml:"queries"` // key -> enabled
}

// LoadSchedulerOverlay parses the overlay at path. An empty path returns
// an empty overlay.
func LoadSchedulerOverlay(path string) (*SchedulerOverlay, error) {
	overlay := &SchedulerOverlay{}
	if path == "" {
		return overlay, nil
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read scheduler overlay: %w", err)
	}
	if err := yaml.Unmarshal(raw, overlay); err != nil {
		return nil, fmt.Errorf("parse scheduler overlay: %w", err)
	}
	return overlay, nil
}

// Apply merges the overlay into cfg. Overlay pools/pairs replace the env
// values when set.
func (o *SchedulerOverlay) Apply(cfg *Config) {
	if len(o.ActivePools) > 0 {
		cfg.ActivePools = o.ActivePools
	}
	if len(o.ActivePairs) > 0 {
		cfg.ActivePairs = o.ActivePairs
	}
}
