package core

import (
	"errors"
	"fmt"
)

// Pipeline-level sentinel errors.
var (
	// ErrMissingOriginalImage indicates a quality gate ran without a
	// decoded reference image.
	ErrMissingOriginalImage = errors.New("quality gates require the artifact's original decoded image")

	// ErrMissingCurrentImage indicates a stage that requires a current
	// decoded image (resize, encode) ran without one.
	ErrMissingCurrentImage = errors.New("stage requires a current decoded image")

	// ErrNoFramesDecoded indicates video_decode produced no frames by
	// either demux or Annex-B fallback.
	ErrNoFramesDecoded = errors.New("no frames decoded from input")
)

// StageError wraps an error with the stage that produced it.
type StageError struct {
	StageName string
	Err       error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("stage %q: %v", e.StageName, e.Err)
}

func (e *StageError) Unwrap() error {
	return e.Err
}

// NewStageError wraps err with the name of the stage that produced it.
func NewStageError(stageName string, err error) *StageError {
	return &StageError{StageName: stageName, Err: err}
}

// DeviceError indicates a stage does not support the requested device after
// fallback negotiation.
type DeviceError struct {
	StageName string
	Device    string
}

func (e *DeviceError) Error() string {
	return fmt.Sprintf("stage %q does not support device %q", e.StageName, e.Device)
}

// QualityGateFailure describes the first violated quality gate.
type QualityGateFailure struct {
	Label     string
	Metric    string
	Threshold float64
	Observed  float64
	Comparand string // "<" or ">"
}

func (e *QualityGateFailure) Error() string {
	label := e.Label
	if label == "" {
		label = "(unlabeled)"
	}
	return fmt.Sprintf("Quality gate %q failed: %s %v %s %v", label, e.Metric, e.Observed, e.Comparand, e.Threshold)
}

// UnknownStageError is returned by Registry.Create for an unregistered
// stage name; Known lists every registered stage name, sorted.
type UnknownStageError struct {
	Name  string
	Known []string
}

func (e *UnknownStageError) Error() string {
	return fmt.Sprintf("unknown stage %q (known stages: %v)", e.Name, e.Known)
}

// InvariantError indicates a prerequisite the caller was supposed to
// guarantee (e.g. a recipe with encode but no decode) did not hold.
type InvariantError struct {
	Message string
}

func (e *InvariantError) Error() string {
	return "invariant violated: " + e.Message
}
