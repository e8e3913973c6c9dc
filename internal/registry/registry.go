// Package registry is the static catalog of external analytics queries.
// It is the single source of truth for priorities, scopes, TTLs and cost
// classes; the catalog is read-only at runtime.
package registry

import (
	"fmt"
	"sort"
)

// Scope determines how a descriptor is expanded into concrete query items.
type Scope string

const (
	ScopeGlobal   Scope = "global"
	ScopePool     Scope = "pool"
	ScopePair     Scope = "pair"
	ScopeWindowed Scope = "windowed"
)

// Priority classes, processed in ascending order.
//
// P0 = gating (required for decisions)
// P1 = shaping (improves decisions)
// P2 = risk (protects capital)
// P3 = offline (analytics/backtesting)
type Priority string

const (
	P0 Priority = "P0"
	P1 Priority = "P1"
	P2 Priority = "P2"
	P3 Priority = "P3"
)

// Cost classes order items within a priority class and feed the per-tick
// expensive budget.
type Cost string

const (
	CostCheap     Cost = "cheap"
	CostMedium    Cost = "medium"
	CostExpensive Cost = "expensive"
)

// Descriptor is one catalog entry, keyed by a stable method name.
type Descriptor struct {
	Key            string
	Method         string
	Scope          Scope
	Priority       Priority
	Cost           Cost
	TTLSeconds     int
	MaxAgeSeconds  int
	EnabledDefault bool
	DependsOn      []string
	Description    string
}

// Windows is the enumerated window vocabulary for windowed-scope queries.
// Keys for windowed queries never carry raw timestamps.
var Windows = []string{"1h", "6h", "24h"}

// Registry holds the descriptor catalog plus any enable overrides applied
// at construction. It is immutable afterwards.
type Registry struct {
	descriptors map[string]Descriptor
}

// New builds a registry from the built-in catalog. Overrides toggles the
// enabled flag per key; unknown override keys are rejected so that a typo
// in an overlay file is caught at startup rather than silently ignored.
func New(overrides map[string]bool) (*Registry, error) {
	descs := make(map[string]Descriptor, len(catalog))
	for _, d := range catalog {
		descs[d.Key] = d
	}
	for key, enabled := range overrides {
		d, ok := descs[key]
		if !ok {
			return nil, fmt.Errorf("registry override for unknown query %q", key)
		}
		d.EnabledDefault = enabled
		descs[key] = d
	}
	return &Registry{descriptors: descs}, nil
}

// MustNew is New without overrides, for callers that use the stock catalog.
func MustNew() *Registry {
	r, err := New(nil)
	if err != nil {
		panic(err)
	}
	return r
}

// Get returns the descriptor for key, if known.
func (r *Registry) Get(key string) (Descriptor, bool) {
	d, ok := r.descriptors[key]
	return d, ok
}

// Enabled returns all enabled descriptors sorted by key.
func (r *Registry) Enabled() []Descriptor {
	out := make([]Descriptor, 0, len(r.descriptors))
	for _, d := range r.descriptors {
		if d.EnabledDefault {
			out = append(out, d)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out
}

// Len returns the catalog size.
func (r *Registry) Len() int { return len(r.descriptors) }

// CostRank orders cost classes ascending: cheap < medium < expensive.
func CostRank(c Cost) int {
	switch c {
	case CostCheap:
		return 0
	case CostMedium:
		return 1
	default:
		return 2
	}
}

// PriorityRank orders priority classes ascending: P0 first.
func PriorityRank(p Priority) int {
	switch p {
	case P0:
		return 0
	case P1:
		return 1
	case P2:
		return 2
	default:
		return 3
	}
}
