package video

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jmylchreest/bunker/internal/devicesched"
	"github.com/jmylchreest/bunker/internal/pipeline/core"
	"github.com/jmylchreest/bunker/internal/pipeline/params"
)

func TestDecodeStage_FallsBackToAnnexBWhenDemuxFindsNoVideo(t *testing.T) {
	stage, err := NewDecode(params.NewBag(nil))
	require.NoError(t, err)
	assert.Equal(t, "video_decode", stage.Name())

	annexB := []byte{
		0x00, 0x00, 0x01, 0x67, 0xAA, 0xBB, // SPS
		0x00, 0x00, 0x01, 0x65, 0xCC, 0xDD, 0x00, // IDR slice
	}
	artifact := &core.Artifact{Data: annexB, Metadata: map[string]any{}}
	require.NoError(t, stage.Run(context.Background(), artifact, nil, devicesched.DeviceCPU))

	require.NotNil(t, artifact.Streams)
	require.NotNil(t, artifact.Streams.Video)
	assert.Equal(t, 1, artifact.Metadata["video.frame_count"])
	assert.Equal(t, "H264", artifact.Metadata["video.codec"])
}

func TestDecodeStage_NoDecodableFramesIsError(t *testing.T) {
	stage, err := NewDecode(params.NewBag(nil))
	require.NoError(t, err)

	artifact := &core.Artifact{Data: []byte("not a media file"), Metadata: map[string]any{}}
	err = stage.Run(context.Background(), artifact, nil, devicesched.DeviceCPU)
	assert.Error(t, err)
}
