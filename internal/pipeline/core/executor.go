package core

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"path/filepath"
	"time"

	"github.com/jmylchreest/bunker/internal/devicesched"
	"github.com/jmylchreest/bunker/internal/pipeline/metrics"
	"github.com/jmylchreest/bunker/internal/pipeline/quality"
)

// Executor drives a fixed, ordered stage chain over a batch of inputs,
// negotiating device placement per stage and evaluating quality gates once
// per input after the chain completes.
type Executor struct {
	stages    []Stage
	output    OutputSpec
	gates     []QualityGate
	scheduler *devicesched.Scheduler
	collector *metrics.Collector
	logger    *slog.Logger
}

// NewExecutor builds an Executor from an already-constructed stage chain.
func NewExecutor(stages []Stage, output OutputSpec, gates []QualityGate, scheduler *devicesched.Scheduler, logger *slog.Logger) *Executor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Executor{
		stages:    stages,
		output:    output,
		gates:     gates,
		scheduler: scheduler,
		collector: metrics.NewCollector(),
		logger:    logger,
	}
}

// Metrics returns the executor's metrics collector. The collector is shared,
// not copied: callers wanting a point-in-time view should call
// Snapshot() on it.
func (e *Executor) Metrics() *metrics.Collector {
	return e.collector
}

// Execute runs every input through the stage chain in order, producing one
// Result per input. The batch aborts at the first input whose stage chain
// or quality gates fail.
func (e *Executor) Execute(inputs []string) ([]Result, error) {
	return e.ExecuteWithProgress(inputs, nil)
}

// ExecuteWithProgress is identical to Execute, but invokes progress before
// each stage of each input runs.
func (e *Executor) ExecuteWithProgress(inputs []string, progress ProgressFunc) ([]Result, error) {
	e.collector.Reset()
	started := time.Now()
	defer func() {
		e.collector.RecordTotalDuration(time.Since(started))
	}()

	pctx := NewPipelineContext(e.output)
	results := make([]Result, 0, len(inputs))

	for inputIndex, inputPath := range inputs {
		artifact, err := NewArtifact(inputPath)
		if err != nil {
			return nil, fmt.Errorf("loading %q: %w", inputPath, err)
		}

		for stageIndex, stage := range e.stages {
			if progress != nil {
				progress(ProgressEvent{
					InputIndex:  inputIndex,
					TotalInputs: len(inputs),
					StageIndex:  stageIndex,
					TotalStages: len(e.stages),
					StageName:   stage.Name(),
				})
			}

			device, err := e.negotiateDevice(stage)
			if err != nil {
				return nil, err
			}

			timer := e.collector.StartStage(stage.Name())
			err = stage.Run(context.Background(), artifact, pctx, device)
			timer.Stop()
			if err != nil {
				return nil, NewStageError(stage.Name(), err)
			}

			e.logger.Debug("stage completed",
				slog.String("input", inputPath),
				slog.String("stage", stage.Name()),
				slog.String("device", string(device)),
			)
		}

		if err := e.evaluateQualityGates(artifact); err != nil {
			return nil, err
		}

		results = append(results, e.composeResult(artifact))
	}

	return results, nil
}

// negotiateDevice asks the scheduler for stage's requested device, then
// falls back from GPU to CPU if stage does not support the requested one:
// a CPU-only stage under a GPU policy silently runs on CPU, while a
// GPU-only stage under cpu_only fails outright.
func (e *Executor) negotiateDevice(stage Stage) (devicesched.Device, error) {
	requested := e.scheduler.SelectDevice(stage.Name())
	if stage.SupportsDevice(requested) {
		return requested, nil
	}

	if requested == devicesched.DeviceGPU && stage.SupportsDevice(devicesched.DeviceCPU) {
		return devicesched.DeviceCPU, nil
	}

	return "", NewStageError(stage.Name(), &DeviceError{StageName: stage.Name(), Device: string(requested)})
}

// evaluateQualityGates implements §4.F-gates exactly: skipped entirely if no
// gates are configured; requires the artifact's original decoded image;
// skipped (with quality.status=skipped) if the output stage recorded
// decode_supported=false; otherwise computes metrics once and checks every
// gate in declared order, aborting on the first violation.
func (e *Executor) evaluateQualityGates(artifact *Artifact) error {
	if len(e.gates) == 0 {
		return nil
	}

	original := artifact.OriginalImage()
	if original == nil {
		return &InvariantError{Message: "quality gates configured but no original decoded image is available"}
	}

	if supported, ok := artifact.GetMetadata("output.decode_supported"); ok {
		if b, isBool := supported.(bool); isBool && !b {
			artifact.SetMetadata("quality.status", "skipped")
			return nil
		}
	}

	if artifact.CurrentImage == nil {
		return &InvariantError{Message: "quality gates require a current decoded image"}
	}

	m, err := quality.Compute(original, artifact.CurrentImage)
	if err != nil {
		return NewStageError("quality_gate", err)
	}

	for _, gate := range e.gates {
		if gate.MinSSIM != nil && m.SSIM < *gate.MinSSIM {
			e.collector.RecordQualityFailure()
			return &QualityGateFailure{Label: gate.Label, Metric: "ssim", Threshold: *gate.MinSSIM, Observed: m.SSIM, Comparand: "<"}
		}
		if gate.MinPSNR != nil && m.PSNR < *gate.MinPSNR {
			e.collector.RecordQualityFailure()
			return &QualityGateFailure{Label: gate.Label, Metric: "psnr", Threshold: *gate.MinPSNR, Observed: m.PSNR, Comparand: "<"}
		}
		if gate.MaxMSE != nil && m.MSE > *gate.MaxMSE {
			e.collector.RecordQualityFailure()
			return &QualityGateFailure{Label: gate.Label, Metric: "mse", Threshold: *gate.MaxMSE, Observed: m.MSE, Comparand: ">"}
		}
	}

	e.collector.RecordQualityPass()
	artifact.SetMetadata("quality.status", "passed")
	artifact.SetMetadata("quality.mse", metricValue(m.MSE))
	artifact.SetMetadata("quality.psnr", metricValue(m.PSNR))
	artifact.SetMetadata("quality.ssim", metricValue(m.SSIM))
	return nil
}

// metricValue returns v as a float64, or its string representation if v is
// not finite (e.g. PSNR's +Inf for a perfect match).
func metricValue(v float64) any {
	if math.IsInf(v, 0) || math.IsNaN(v) {
		return fmt.Sprintf("%v", v)
	}
	return v
}

// composeResult builds the final Result for artifact: the output path comes
// from metadata["output_path"] if an encode stage set one, else it defaults
// to output_dir/stem.
func (e *Executor) composeResult(artifact *Artifact) Result {
	outputPath := filepath.Join(e.output.Directory, artifact.Stem)
	if v, ok := artifact.GetMetadata("output_path"); ok {
		if s, isString := v.(string); isString && s != "" {
			outputPath = s
		}
	}
	return Result{
		InputPath:  artifact.InputPath,
		OutputPath: outputPath,
		Metadata:   artifact.Metadata,
	}
}
