// Package pipeline provides the top-level wiring for the stage registry:
// the default set of built-in stages (decode/annotate/resize/encode for
// images, video_decode/video_encode for video) plus convenience re-exports
// of the core package's public types.
//
// Sub-packages:
//   - core: Stage contract, Artifact, Registry, Executor
//   - quality, metrics: quality-gate metrics and executor instrumentation
//   - stages/image, stages/video: the built-in stage implementations
//
// CPU/GPU device selection lives in the separate internal/devicesched package.
package pipeline

import (
	"github.com/jmylchreest/bunker/internal/pipeline/core"
	imagestage "github.com/jmylchreest/bunker/internal/pipeline/stages/image"
	videostage "github.com/jmylchreest/bunker/internal/pipeline/stages/video"
)

// Re-export core types for convenience.
type (
	// Stage is a single step in the pipeline.
	Stage = core.Stage

	// Artifact is the per-input mutable data carrier.
	Artifact = core.Artifact

	// Result is the outcome of executing one input through the chain.
	Result = core.Result

	// OutputSpec is the output directory/filename template.
	OutputSpec = core.OutputSpec

	// PipelineContext is the immutable per-run bundle passed to every stage.
	PipelineContext = core.PipelineContext

	// QualityGate is an optional label plus a subset of quality thresholds.
	QualityGate = core.QualityGate

	// Registry maps stage names to their factories.
	Registry = core.Registry

	// Executor drives a stage chain over a batch of inputs.
	Executor = core.Executor

	// ProgressEvent is reported before each stage of each input runs.
	ProgressEvent = core.ProgressEvent

	// ProgressFunc is the ExecuteWithProgress callback signature.
	ProgressFunc = core.ProgressFunc

	// StageSpec is the declarative, recipe-level description of a stage.
	StageSpec = core.StageSpec
)

// NewExecutor builds an Executor; see core.NewExecutor.
var NewExecutor = core.NewExecutor

// BuildStages resolves a recipe's []StageSpec into live Stage instances
// against registry; see core.BuildStages.
var BuildStages = core.BuildStages

// NewDefaultRegistry returns a Registry with every built-in stage
// registered under its declared name: decode, annotate, resize, encode,
// video_decode, video_encode.
func NewDefaultRegistry() *Registry {
	registry := core.NewRegistry()
	registry.Register("decode", imagestage.NewDecode)
	registry.Register("annotate", imagestage.NewAnnotate)
	registry.Register("resize", imagestage.NewResize)
	registry.Register("encode", imagestage.NewEncode)
	registry.Register("video_decode", videostage.NewDecode)
	registry.Register("video_encode", videostage.NewEncode)
	return registry
}
