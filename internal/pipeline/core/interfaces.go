// Package core provides the pipeline execution engine: the stage contract
// and registry, the artifact data-flow model, and the executor that drives
// a linear stage chain per input with device negotiation and quality gates.
package core

import (
	"context"

	"github.com/jmylchreest/bunker/internal/devicesched"
)

// Stage is a named, parameterized unit of transformation applied to an
// artifact. Implementations hold already-parsed typed parameters: the
// registry performs parameter parsing at build time, so a constructed Stage
// only fails at run time for data-dependent reasons (e.g. an ICC profile
// file that can't be read).
type Stage interface {
	// Name returns the stage's stable, declared name (e.g. "resize").
	Name() string

	// SupportsDevice reports whether the stage can run on d.
	SupportsDevice(d devicesched.Device) bool

	// Run executes the stage against artifact, with pctx carrying the
	// pipeline's output spec and device carrying the negotiated effective
	// device for this invocation.
	Run(ctx context.Context, artifact *Artifact, pctx *PipelineContext, device devicesched.Device) error
}

// OutputSpec is the directory and filename template an encode/video_encode
// stage resolves its output path against.
type OutputSpec struct {
	// Directory is the output directory; created (idempotently) as needed.
	Directory string

	// Structure is the filename template, e.g. "{stem}.{ext}". Supports
	// {stem}, {ext}, and any string metadata key, substituted left to
	// right, single pass; unknown placeholders are left literal.
	Structure string
}

// PipelineContext is the immutable per-run bundle passed to every stage.
type PipelineContext struct {
	Output OutputSpec
}

// NewPipelineContext builds a PipelineContext for the given output spec.
func NewPipelineContext(output OutputSpec) *PipelineContext {
	return &PipelineContext{Output: output}
}

// ProgressEvent is reported to an ExecuteWithProgress callback before each
// stage of each input runs.
type ProgressEvent struct {
	InputIndex  int
	TotalInputs int
	StageIndex  int
	TotalStages int
	StageName   string
}

// ProgressFunc is the callback signature for ExecuteWithProgress.
type ProgressFunc func(ProgressEvent)

// QualityGate is an optional label plus a subset of quality thresholds.
// Gates are evaluated in declared order; the first violated gate fails the
// artifact.
type QualityGate struct {
	Label   string
	MinSSIM *float64
	MinPSNR *float64
	MaxMSE  *float64
}

// Result is the per-input outcome the executor emits.
type Result struct {
	InputPath  string
	OutputPath string
	Metadata   map[string]any
}
