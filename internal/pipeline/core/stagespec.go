package core

import "github.com/jmylchreest/bunker/internal/pipeline/params"

// StageSpec is the declarative description of one stage in a recipe: a
// stage name and an optional mapping of parameter name to dynamic value.
// A StageSpec is immutable once a recipe has been loaded; building it into
// a live Stage happens once, at recipe-build time, via BuildStages.
type StageSpec struct {
	Name       string
	Parameters map[string]any
}

// BuildStages resolves each StageSpec against registry, in order, parsing
// every stage's parameters up front so that stage instances never fail
// with a parameter error at run time (except data-dependent failures, such
// as an ICC profile path that turns out to be unreadable).
func BuildStages(registry *Registry, specs []StageSpec) ([]Stage, error) {
	stages := make([]Stage, 0, len(specs))
	for _, spec := range specs {
		bag := params.NewBag(spec.Parameters)
		stage, err := registry.Create(spec.Name, bag)
		if err != nil {
			return nil, err
		}
		stages = append(stages, stage)
	}
	return stages, nil
}
