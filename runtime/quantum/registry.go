package quantum

import (
	"fmt"
	"sort"
	"sync"

	"github.com/lithammer/fuzzysearch/fuzzy"
)

// Factory builds a device from a validated spec.
type Factory func(spec DeviceSpec) (*Device, error)

// Registry maps device names to factories.
type Registry struct {
	mu        sync.Mutex
	factories map[string]Factory
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{factories: make(map[string]Factory)}
}

// Register installs a factory under the given name, replacing any previous
// one.
func (r *Registry) Register(name string, f Factory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.factories[name] = f
}

// Names returns the registered device names, sorted.
func (r *Registry) Names() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	names := make([]string, 0, len(r.factories))
	for name := range r.factories {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// New builds a device for the spec. Unknown names come back with a fuzzy
// "did you mean" suggestion when a close registered name exists.
func (r *Registry) New(spec DeviceSpec) (*Device, error) {
	if err := spec.Validate(); err != nil {
		return nil, err
	}

	r.mu.Lock()
	factory, ok := r.factories[spec.Name]
	r.mu.Unlock()
	if !ok {
		if suggestion := findClosestMatch(spec.Name, r.Names()); suggestion != "" {
			return nil, fmt.Errorf("unknown device '%s'\nDid you mean '%s'?", spec.Name, suggestion)
		}
		return nil, fmt.Errorf("unknown device '%s'", spec.Name)
	}
	return factory(spec)
}

// findClosestMatch finds the closest registered name using fuzzy matching.
func findClosestMatch(target string, candidates []string) string {
	if len(candidates) == 0 {
		return ""
	}
	ranks := fuzzy.RankFindFold(target, candidates)
	if len(ranks) > 0 {
		return ranks[0].Target
	}
	return ""
}

// defaultRegistry carries the built-in simulators.
var defaultRegistry = func() *Registry {
	r := NewRegistry()
	r.Register("lightning.qubit", func(spec DeviceSpec) (*Device, error) {
		return newDevice(spec, false), nil
	})
	r.Register("null.qubit", func(spec DeviceSpec) (*Device, error) {
		return newDevice(spec, true), nil
	})
	return r
}()

// DefaultRegistry returns the process-wide registry of built-in devices.
func DefaultRegistry() *Registry { return defaultRegistry }

// NewDevice builds a device from the default registry.
func NewDevice(spec DeviceSpec) (*Device, error) {
	return defaultRegistry.New(spec)
}
