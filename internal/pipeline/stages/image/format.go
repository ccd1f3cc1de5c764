// Package image implements the four image stages named in the spec's
// §4.G: decode, annotate, resize, and encode.
package image

import (
	"bytes"
	"fmt"
	"image"
	"path/filepath"
	"strings"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"

	"github.com/jmylchreest/bunker/internal/pipeline/core"
)

// formatLabel is a normalized, lowercase image format name ("jpeg", "png",
// "webp", "avif", "gif", "bmp", "tiff", ...), always without a leading dot.
type formatLabel string

// extensionFor returns the canonical file extension for a format label.
// Most labels are their own extension; "jpeg" is the one exception.
func extensionFor(label formatLabel) string {
	if label == "jpeg" {
		return "jpg"
	}
	return string(label)
}

// normalizeLabel lowercases s and strips a leading dot, so ".PNG", "png",
// and "Png" all normalize to the same label.
func normalizeLabel(s string) formatLabel {
	return formatLabel(strings.ToLower(strings.TrimPrefix(s, ".")))
}

// inferFormat resolves the format label to use for a decode or encode
// operation, trying hint, then the artifact's existing format, then the
// input path's extension, then byte sniffing, in that order.
func inferFormat(hint string, artifact *core.Artifact) (formatLabel, error) {
	if hint != "" {
		return normalizeLabel(hint), nil
	}
	if artifact.Format != "" {
		return normalizeLabel(artifact.Format), nil
	}
	if ext := filepath.Ext(artifact.InputPath); ext != "" {
		return normalizeLabel(ext), nil
	}
	_, sniffed, err := image.DecodeConfig(bytes.NewReader(artifact.Data))
	if err != nil {
		return "", fmt.Errorf("unable to infer image format from input data: %w", err)
	}
	return normalizeLabel(sniffed), nil
}

// recordDimensions writes {prefix}.width and {prefix}.height from img's
// bounds into artifact's metadata.
func recordDimensions(artifact *core.Artifact, prefix string, img image.Image) {
	b := img.Bounds()
	artifact.SetMetadata(prefix+".width", b.Dx())
	artifact.SetMetadata(prefix+".height", b.Dy())
}
