package core

import (
	"image"
	"os"
	"path/filepath"
	"strings"

	"github.com/jmylchreest/bunker/internal/video"
)

// Artifact is the per-input mutable carrier threaded through a pipeline's
// stage chain: raw bytes -> decoded image -> transformed image -> encoded
// bytes -> persisted path, plus an optional video-stream side channel.
//
// The executor owns an Artifact for the lifetime of one input; each stage
// borrows it mutably and exclusively, since execution is strictly serial.
// It must not be mutated concurrently.
type Artifact struct {
	// InputPath is the source file path this artifact was loaded from.
	InputPath string

	// Stem is InputPath's file name without its extension.
	Stem string

	// Data is the artifact's current raw byte buffer: the loaded input
	// bytes until an encode stage replaces them with freshly encoded bytes.
	Data []byte

	// Format is an optional format label (e.g. "png", "jpeg"), set by a
	// decode or encode stage.
	Format string

	// originalImage is set once by the first decoder stage and never
	// overwritten afterward; it is the quality gates' reference image.
	originalImage image.Image

	// CurrentImage is the artifact's in-flight decoded image. Stages such as
	// resize replace it freely; it is nil until a decode stage runs, and may
	// become nil again if an encode stage's round-trip re-decode fails.
	CurrentImage image.Image

	// Streams holds any media streams extracted by a video stage.
	Streams *video.MediaStreams

	// Metadata is the artifact's string-keyed dynamic value bag. Stage
	// output written here by stage i is visible to stage i+1.
	Metadata map[string]any
}

// NewArtifact loads path's bytes into a freshly seeded Artifact: Metadata
// starts with "input_path" and "stem".
func NewArtifact(path string) (*Artifact, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	stem := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	a := &Artifact{
		InputPath: path,
		Stem:      stem,
		Data:      data,
		Metadata:  make(map[string]any),
	}
	a.Metadata["input_path"] = path
	a.Metadata["stem"] = stem
	return a, nil
}

// SetFormat sets the artifact's format label.
func (a *Artifact) SetFormat(format string) {
	a.Format = format
}

// ReplaceData replaces the artifact's raw byte buffer.
func (a *Artifact) ReplaceData(data []byte) {
	a.Data = data
}

// SetImage replaces the current decoded image.
func (a *Artifact) SetImage(img image.Image) {
	a.CurrentImage = img
}

// SetOriginalImage sets the artifact's original decoded image. A no-op once
// the original has already been set once: the invariant is "set once by a
// decoder, never overwritten."
func (a *Artifact) SetOriginalImage(img image.Image) {
	if a.originalImage == nil {
		a.originalImage = img
	}
}

// OriginalImage returns the artifact's original decoded image, or nil if no
// decoder has run yet.
func (a *Artifact) OriginalImage() image.Image {
	return a.originalImage
}

// SetMetadata inserts a metadata key/value pair.
func (a *Artifact) SetMetadata(key string, value any) {
	a.Metadata[key] = value
}

// GetMetadata retrieves a metadata value.
func (a *Artifact) GetMetadata(key string) (any, bool) {
	v, ok := a.Metadata[key]
	return v, ok
}
