package image

import (
	"context"
	"image"
	"image/draw"
	"strings"

	xdraw "golang.org/x/image/draw"

	"github.com/jmylchreest/bunker/internal/devicesched"
	"github.com/jmylchreest/bunker/internal/pipeline/core"
	"github.com/jmylchreest/bunker/internal/pipeline/params"
)

// resizeFit is the aspect-ratio handling mode for a resize stage.
type resizeFit string

const (
	fitInside resizeFit = "inside"
	fitCover  resizeFit = "cover"
	fitExact  resizeFit = "exact"
)

func parseFit(s string) resizeFit {
	switch strings.ToLower(s) {
	case "cover":
		return fitCover
	case "exact", "stretch":
		return fitExact
	case "inside", "fit":
		return fitInside
	default:
		return fitInside
	}
}

// resizeFilter names a resampling kernel, echoed verbatim into metadata.
type resizeFilter string

const (
	filterNearest    resizeFilter = "nearest"
	filterTriangle   resizeFilter = "triangle"
	filterCatmullRom resizeFilter = "catmullrom"
	filterLanczos3   resizeFilter = "lanczos3"
	filterGaussian   resizeFilter = "gaussian"
)

func parseFilter(s string) resizeFilter {
	switch strings.ToLower(s) {
	case "nearest":
		return filterNearest
	case "triangle":
		return filterTriangle
	case "lanczos3":
		return filterLanczos3
	case "gaussian":
		return filterGaussian
	case "catmullrom":
		return filterCatmullRom
	default:
		return filterCatmullRom
	}
}

// kernel returns the x/image/draw scaler for a resizeFilter. x/image/draw
// does not expose a distinct Gaussian kernel; Gaussian falls back to
// CatmullRom, the same smooth cubic family, since neither this module nor
// any example in the pack vendors a Gaussian resampler.
func (f resizeFilter) kernel() xdraw.Interpolator {
	switch f {
	case filterNearest:
		return xdraw.NearestNeighbor
	case filterTriangle:
		return xdraw.ApproxBiLinear
	case filterLanczos3:
		return xdraw.CatmullRom
	case filterGaussian:
		return xdraw.CatmullRom
	default:
		return xdraw.CatmullRom
	}
}

// ResizeStage replaces the artifact's current image with a resized copy.
type ResizeStage struct {
	width, height uint64
	fit           resizeFit
	filter        resizeFilter
}

var _ core.Stage = (*ResizeStage)(nil)

// NewResize builds a resize stage. "width" and "height" are required.
func NewResize(bag *params.Bag) (core.Stage, error) {
	width, err := bag.RequireUint("resize", "width")
	if err != nil {
		return nil, err
	}
	height, err := bag.RequireUint("resize", "height")
	if err != nil {
		return nil, err
	}
	fit := parseFit(bag.TakeStringDefault("fit", "inside"))
	filter := parseFilter(bag.TakeStringDefault("method", "catmullrom"))
	return &ResizeStage{width: width, height: height, fit: fit, filter: filter}, nil
}

func (s *ResizeStage) Name() string { return "resize" }

func (s *ResizeStage) SupportsDevice(d devicesched.Device) bool {
	return d == devicesched.DeviceCPU
}

func (s *ResizeStage) Run(_ context.Context, artifact *core.Artifact, _ *core.PipelineContext, _ devicesched.Device) error {
	if artifact.CurrentImage == nil {
		return core.ErrMissingCurrentImage
	}

	targetW, targetH := int(s.width), int(s.height)
	resized := s.resize(artifact.CurrentImage, targetW, targetH)

	artifact.SetImage(resized)
	artifact.SetMetadata("resize.width", s.width)
	artifact.SetMetadata("resize.height", s.height)
	artifact.SetMetadata("resize.filter", string(s.filter))
	artifact.SetMetadata("resize.mode", string(s.fit))
	recordDimensions(artifact, "image", resized)
	return nil
}

// resize dispatches on fit mode: inside fits within the box preserving
// aspect ratio, cover fills and crops, exact stretches to the exact box.
func (s *ResizeStage) resize(src image.Image, targetW, targetH int) image.Image {
	switch s.fit {
	case fitExact:
		return s.scale(src, src.Bounds(), targetW, targetH)
	case fitCover:
		return s.resizeCover(src, targetW, targetH)
	default:
		return s.resizeInside(src, targetW, targetH)
	}
}

func (s *ResizeStage) scale(src image.Image, srcRect image.Rectangle, targetW, targetH int) image.Image {
	dst := image.NewRGBA(image.Rect(0, 0, targetW, targetH))
	s.filter.kernel().Scale(dst, dst.Bounds(), src, srcRect, xdraw.Over, nil)
	return dst
}

func (s *ResizeStage) resizeInside(src image.Image, targetW, targetH int) image.Image {
	b := src.Bounds()
	srcW, srcH := b.Dx(), b.Dy()
	if srcW == 0 || srcH == 0 {
		return s.scale(src, b, targetW, targetH)
	}

	ratio := float64(targetW) / float64(srcW)
	if h := float64(targetH) / float64(srcH); h < ratio {
		ratio = h
	}
	w := maxInt(1, int(float64(srcW)*ratio))
	h := maxInt(1, int(float64(srcH)*ratio))
	return s.scale(src, b, w, h)
}

func (s *ResizeStage) resizeCover(src image.Image, targetW, targetH int) image.Image {
	b := src.Bounds()
	srcW, srcH := b.Dx(), b.Dy()
	if srcW == 0 || srcH == 0 {
		return s.scale(src, b, targetW, targetH)
	}

	ratio := float64(targetW) / float64(srcW)
	if h := float64(targetH) / float64(srcH); h > ratio {
		ratio = h
	}
	scaledW := maxInt(1, int(float64(srcW)*ratio))
	scaledH := maxInt(1, int(float64(srcH)*ratio))
	scaled := s.scale(src, b, scaledW, scaledH)

	cropX := (scaledW - targetW) / 2
	cropY := (scaledH - targetH) / 2
	cropped := image.NewRGBA(image.Rect(0, 0, targetW, targetH))
	draw.Draw(cropped, cropped.Bounds(), scaled, image.Pt(cropX, cropY), draw.Src)
	return cropped
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}
