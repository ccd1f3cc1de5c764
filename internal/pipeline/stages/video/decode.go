// Package video implements the video_decode and video_encode stages named
// in the spec's §4.K.
package video

import (
	"context"
	"fmt"

	"github.com/jmylchreest/bunker/internal/devicesched"
	"github.com/jmylchreest/bunker/internal/pipeline/core"
	"github.com/jmylchreest/bunker/internal/pipeline/params"
	"github.com/jmylchreest/bunker/internal/video"
	"github.com/jmylchreest/bunker/internal/video/container"
	"github.com/jmylchreest/bunker/internal/video/h264"
)

// DecodeStage populates the artifact's media streams, first trying an
// ISO-BMFF demux and falling back to raw Annex-B parsing when the demux
// finds no video frames (e.g. the input is a bare elementary stream).
type DecodeStage struct{}

var _ core.Stage = (*DecodeStage)(nil)

// NewDecode builds a video_decode stage; it takes no parameters.
func NewDecode(_ *params.Bag) (core.Stage, error) {
	return &DecodeStage{}, nil
}

func (s *DecodeStage) Name() string { return "video_decode" }

func (s *DecodeStage) SupportsDevice(d devicesched.Device) bool {
	return d == devicesched.DeviceCPU
}

func (s *DecodeStage) Run(_ context.Context, artifact *core.Artifact, _ *core.PipelineContext, _ devicesched.Device) error {
	streams, err := container.Demux(artifact.Data)
	if err != nil {
		streams = video.MediaStreams{}
	}

	if streams.Video == nil || len(streams.Video.Frames) == 0 {
		if err := h264.DecodeAnnexB(artifact.Data, &streams); err != nil {
			return fmt.Errorf("failed to decode H.264 Annex B stream: %w", err)
		}
	}

	if streams.Video == nil {
		return core.ErrNoFramesDecoded
	}

	artifact.SetMetadata("video.frame_count", len(streams.Video.Frames))
	if len(streams.Video.Frames) > 0 {
		first := streams.Video.Frames[0]
		artifact.SetMetadata("video.width", first.Width)
		artifact.SetMetadata("video.height", first.Height)
	}
	artifact.SetMetadata("video.codec", string(streams.Video.Codec))
	artifact.Streams = &streams
	return nil
}
