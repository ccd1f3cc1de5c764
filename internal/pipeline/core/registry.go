package core

import (
	"sort"

	"github.com/jmylchreest/bunker/internal/pipeline/params"
)

// StageFactory builds a Stage from a parameter bag, consuming whatever keys
// it needs; unconsumed keys remain on bag for the stage to use as it sees
// fit (e.g. encode's codec-specific options).
type StageFactory func(bag *params.Bag) (Stage, error)

// Registry maps stage names to the factory that builds them. Two instances
// of the same name built from different parameter bags are distinct Stage
// instances; the registry does not deduplicate or cache.
type Registry struct {
	factories map[string]StageFactory
}

// NewRegistry returns an empty Registry.
func NewRegistry() *Registry {
	return &Registry{factories: make(map[string]StageFactory)}
}

// Register associates name with factory, overwriting any prior registration.
func (r *Registry) Register(name string, factory StageFactory) {
	r.factories[name] = factory
}

// Create builds a stage instance named name from bag, or returns an
// UnknownStageError listing every known name, sorted.
func (r *Registry) Create(name string, bag *params.Bag) (Stage, error) {
	factory, ok := r.factories[name]
	if !ok {
		return nil, &UnknownStageError{Name: name, Known: r.Known()}
	}
	return factory(bag)
}

// Known returns every registered stage name, sorted.
func (r *Registry) Known() []string {
	names := make([]string, 0, len(r.factories))
	for name := range r.factories {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
