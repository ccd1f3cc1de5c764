package image

import (
	"bytes"
	"context"
	"fmt"
	"image"

	"github.com/jmylchreest/bunker/internal/devicesched"
	"github.com/jmylchreest/bunker/internal/pipeline/core"
	"github.com/jmylchreest/bunker/internal/pipeline/params"
)

// DecodeStage decodes an artifact's raw bytes into an image, seeding both
// the original and current image slots with the same decoded value.
type DecodeStage struct {
	formatHint string
}

var _ core.Stage = (*DecodeStage)(nil)

// NewDecode builds a decode stage, consuming an optional "format" hint.
func NewDecode(bag *params.Bag) (core.Stage, error) {
	return &DecodeStage{formatHint: bag.TakeStringDefault("format", "")}, nil
}

func (s *DecodeStage) Name() string { return "decode" }

func (s *DecodeStage) SupportsDevice(d devicesched.Device) bool {
	return d == devicesched.DeviceCPU
}

func (s *DecodeStage) Run(_ context.Context, artifact *core.Artifact, _ *core.PipelineContext, _ devicesched.Device) error {
	label, err := inferFormat(s.formatHint, artifact)
	if err != nil {
		return err
	}

	decoded, _, err := image.Decode(bytes.NewReader(artifact.Data))
	if err != nil {
		return fmt.Errorf("failed to decode image as %s: %w", label, err)
	}

	artifact.SetOriginalImage(decoded)
	artifact.SetImage(decoded)
	artifact.SetFormat(string(label))
	recordDimensions(artifact, "image", decoded)
	return nil
}
