package image

import (
	"context"

	"github.com/jmylchreest/bunker/internal/devicesched"
	"github.com/jmylchreest/bunker/internal/pipeline/core"
	"github.com/jmylchreest/bunker/internal/pipeline/params"
)

// AnnotateStage writes one arbitrary key/value pair into the artifact's
// metadata. It exists to let a recipe stamp constant facts (a batch label,
// a source tag) without a dedicated stage.
type AnnotateStage struct {
	key   string
	value any
}

var _ core.Stage = (*AnnotateStage)(nil)

// NewAnnotate builds an annotate stage. "key" is required; "value" defaults
// to the string "true" when absent.
func NewAnnotate(bag *params.Bag) (core.Stage, error) {
	key, err := bag.RequireString("annotate", "key")
	if err != nil {
		return nil, err
	}
	var value any = "true"
	if v, ok := bag.Take("value"); ok {
		value = v.Raw()
	}
	return &AnnotateStage{key: key, value: value}, nil
}

func (s *AnnotateStage) Name() string { return "annotate" }

func (s *AnnotateStage) SupportsDevice(d devicesched.Device) bool {
	return d == devicesched.DeviceCPU
}

func (s *AnnotateStage) Run(_ context.Context, artifact *core.Artifact, _ *core.PipelineContext, _ devicesched.Device) error {
	artifact.SetMetadata(s.key, s.value)
	return nil
}
