// Package recipe loads a pipeline recipe from disk. Parsing a full YAML
// recipe DSL (presets, includes, lockfiles) is out of scope here; this is
// a minimal embedded-JSON reader that still gives the CLI a real way to
// drive the core engine end to end.
package recipe

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/jmylchreest/bunker/internal/pipeline"
)

// File is the on-disk shape of a recipe: an ordered list of stages, the
// output directory/filename template, and optional quality gates.
type File struct {
	Stages []StageSpec   `json:"stages"`
	Output OutputSpec    `json:"output"`
	Gates  []QualityGate `json:"quality_gates,omitempty"`
}

// StageSpec mirrors pipeline.StageSpec in a JSON-friendly shape.
type StageSpec struct {
	Name       string         `json:"name"`
	Parameters map[string]any `json:"parameters,omitempty"`
}

// OutputSpec mirrors pipeline.OutputSpec.
type OutputSpec struct {
	Directory string `json:"directory"`
	Structure string `json:"structure"`
}

// QualityGate mirrors pipeline.QualityGate with pointer thresholds so an
// absent key and an explicit zero are distinguishable.
type QualityGate struct {
	Label   string   `json:"label,omitempty"`
	MinSSIM *float64 `json:"min_ssim,omitempty"`
	MinPSNR *float64 `json:"min_psnr,omitempty"`
	MaxMSE  *float64 `json:"max_mse,omitempty"`
}

// Load reads and parses a recipe file at path.
func Load(path string) (*File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading recipe %q: %w", path, err)
	}

	var file File
	if err := json.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parsing recipe %q: %w", path, err)
	}
	if len(file.Stages) == 0 {
		return nil, fmt.Errorf("recipe %q declares no stages", path)
	}
	return &file, nil
}

// StageSpecs converts the recipe's stages to the core pipeline's StageSpec
// type.
func (f *File) StageSpecs() []pipeline.StageSpec {
	specs := make([]pipeline.StageSpec, len(f.Stages))
	for i, s := range f.Stages {
		specs[i] = pipeline.StageSpec{Name: s.Name, Parameters: s.Parameters}
	}
	return specs
}

// PipelineOutputSpec converts the recipe's output block to the core
// pipeline's OutputSpec type.
func (f *File) PipelineOutputSpec() pipeline.OutputSpec {
	return pipeline.OutputSpec{Directory: f.Output.Directory, Structure: f.Output.Structure}
}

// QualityGates converts the recipe's quality gates to the core pipeline's
// QualityGate type, preserving declared order.
func (f *File) QualityGates() []pipeline.QualityGate {
	gates := make([]pipeline.QualityGate, len(f.Gates))
	for i, g := range f.Gates {
		gates[i] = pipeline.QualityGate{
			Label:   g.Label,
			MinSSIM: g.MinSSIM,
			MinPSNR: g.MinPSNR,
			MaxMSE:  g.MaxMSE,
		}
	}
	return gates
}
