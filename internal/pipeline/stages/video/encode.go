package video

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/jmylchreest/bunker/internal/devicesched"
	"github.com/jmylchreest/bunker/internal/pipeline/core"
	"github.com/jmylchreest/bunker/internal/pipeline/params"
)

// EncodeStage writes the artifact's current byte buffer to disk unchanged
// (passthrough): this module has no video transcoder, so video_encode only
// persists whatever bytes video_decode (or the original input) produced.
type EncodeStage struct {
	format    string
	extension string
}

var _ core.Stage = (*EncodeStage)(nil)

// NewEncode builds a video_encode stage, consuming "format" (default "mp4")
// and "extension" (default derived from format).
func NewEncode(bag *params.Bag) (core.Stage, error) {
	format := bag.TakeStringDefault("format", "mp4")
	extension := bag.TakeStringDefault("extension", defaultExtension(format))
	return &EncodeStage{format: format, extension: extension}, nil
}

func (s *EncodeStage) Name() string { return "video_encode" }

func (s *EncodeStage) SupportsDevice(d devicesched.Device) bool {
	return d == devicesched.DeviceCPU
}

func (s *EncodeStage) Run(_ context.Context, artifact *core.Artifact, pctx *core.PipelineContext, _ devicesched.Device) error {
	if artifact.Streams == nil || artifact.Streams.Video == nil {
		return fmt.Errorf("video_encode requires a decoded video stream")
	}
	frameCount := len(artifact.Streams.Video.Frames)

	resolved := resolveOutputPath(pctx.Output, artifact, s.extension)
	if dir := filepath.Dir(resolved); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create output directory %q: %w", dir, err)
		}
	}
	buffer := artifact.Data
	if err := os.WriteFile(resolved, buffer, 0o644); err != nil {
		return fmt.Errorf("failed to write encoded video %q: %w", resolved, err)
	}

	artifact.ReplaceData(buffer)
	artifact.SetMetadata("video.output_path", resolved)
	artifact.SetMetadata("video.output.format", s.format)
	artifact.SetMetadata("video.output.size_bytes", len(buffer))
	artifact.SetMetadata("video.output.frame_count", frameCount)
	return nil
}

func resolveOutputPath(spec core.OutputSpec, artifact *core.Artifact, extension string) string {
	name := spec.Structure
	name = strings.ReplaceAll(name, "{stem}", artifact.Stem)
	name = strings.ReplaceAll(name, "{ext}", extension)
	for key, value := range artifact.Metadata {
		if s, ok := value.(string); ok {
			name = strings.ReplaceAll(name, "{"+key+"}", s)
		}
	}
	return filepath.Join(spec.Directory, name)
}

func defaultExtension(format string) string {
	switch strings.ToLower(format) {
	case "mp4":
		return "mp4"
	case "annexb", "h264":
		return "h264"
	default:
		return strings.ToLower(format)
	}
}
