package image

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/color"
	"image/gif"
	"image/jpeg"
	"image/png"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/jmylchreest/bunker/internal/devicesched"
	"github.com/jmylchreest/bunker/internal/pipeline/core"
	"github.com/jmylchreest/bunker/internal/pipeline/params"
)

// EncodeStage writes the artifact's current image to disk in a
// codec-specific way, then attempts to round-trip decode what it wrote.
type EncodeStage struct {
	format    string
	extension string
	options   *params.Bag
}

var _ core.Stage = (*EncodeStage)(nil)

// NewEncode builds an encode stage. "format" and "extension" are consumed;
// every remaining key on bag becomes a codec-specific option, retained
// verbatim since each codec consumes a different key set.
func NewEncode(bag *params.Bag) (core.Stage, error) {
	format := bag.TakeStringDefault("format", "")
	extension := bag.TakeStringDefault("extension", "")
	return &EncodeStage{format: format, extension: extension, options: bag}, nil
}

func (s *EncodeStage) Name() string { return "encode" }

func (s *EncodeStage) SupportsDevice(d devicesched.Device) bool {
	return d == devicesched.DeviceCPU
}

func (s *EncodeStage) Run(_ context.Context, artifact *core.Artifact, pctx *core.PipelineContext, _ devicesched.Device) error {
	label, err := inferFormat(s.format, artifact)
	if err != nil {
		return err
	}
	artifact.SetFormat(string(label))

	extension := s.extension
	if extension == "" {
		extension = extensionFor(label)
	}

	img := artifact.CurrentImage
	if img == nil {
		return core.ErrMissingCurrentImage
	}

	buffer, genericFallback, err := s.encode(label, img)
	if err != nil {
		return fmt.Errorf("failed to encode image as %s: %w", label, err)
	}

	resolved := resolveOutputPath(pctx.Output, artifact, extension)
	if dir := filepath.Dir(resolved); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create output directory %q: %w", dir, err)
		}
	}
	if err := os.WriteFile(resolved, buffer, 0o644); err != nil {
		return fmt.Errorf("failed to write output file %q: %w", resolved, err)
	}

	if genericFallback {
		artifact.SetMetadata("output.decode_supported", false)
		artifact.SetMetadata("output.decode_warning", fmt.Sprintf("no decoder available for format %q", label))
		artifact.SetImage(nil)
	} else if decoded, _, decodeErr := image.Decode(bytes.NewReader(buffer)); decodeErr == nil {
		artifact.SetMetadata("output.decode_supported", true)
		artifact.SetImage(decoded)
		recordDimensions(artifact, "image", decoded)
	} else {
		artifact.SetMetadata("output.decode_supported", false)
		artifact.SetMetadata("output.decode_warning", decodeErr.Error())
		artifact.SetImage(nil)
	}

	artifact.ReplaceData(buffer)
	artifact.SetMetadata("output_path", resolved)
	artifact.SetMetadata("output.extension", extension)
	artifact.SetMetadata("output.format", string(label))
	artifact.SetMetadata("output.size_bytes", len(buffer))
	recordEncoderMetadata(artifact, s.options)
	return nil
}

// resolveOutputPath substitutes {stem}, {ext}, and any string metadata key
// into spec.Structure, then joins it onto spec.Directory.
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

func (s *EncodeStage) encode(label formatLabel, img image.Image) (buffer []byte, genericFallback bool, err error) {
	switch label {
	case "jpeg", "jpg":
		buf, err := encodeJPEG(img, s.options)
		return buf, false, err
	case "png":
		buf, err := encodePNG(img, s.options)
		return buf, false, err
	case "gif":
		buf, err := encodeGIF(img, s.options)
		return buf, false, err
	default:
		buf, err := encodeGeneric(img)
		return buf, true, err
	}
}

// encodeJPEG and its sibling codec encoders read options non-destructively
// (Get, not Take): the Rust original's param_u8/param_f64/param_bool read
// the options map without consuming it, so the same keys are still present
// afterward for recordEncoderMetadata to echo under output.encoder.*.
func encodeJPEG(img image.Image, options *params.Bag) ([]byte, error) {
	quality := 90
	if v, ok := options.Get("quality"); ok {
		if n, ok := v.Uint(); ok {
			quality = clampInt(int(n), 1, 100)
		}
	}
	if v, ok := options.Get("icc_profile_path"); ok {
		// Validate the referenced profile exists and is readable; the
		// stdlib JPEG encoder has no API to embed an arbitrary ICC
		// profile, so the bytes are read only to surface a clear error.
		if path, ok := v.String(); ok {
			if _, err := os.ReadFile(path); err != nil {
				return nil, fmt.Errorf("failed to read ICC profile from %q: %w", path, err)
			}
		}
	}
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: quality}); err != nil {
		return nil, fmt.Errorf("JPEG encode failed: %w", err)
	}
	return buf.Bytes(), nil
}

func encodePNG(img image.Image, options *params.Bag) ([]byte, error) {
	level, err := parsePNGCompression(options)
	if err != nil {
		return nil, err
	}
	// PNG filter selection is requested but echoed only: the stdlib png
	// encoder does not expose a per-row filter strategy knob.
	if v, ok := options.Get("icc_profile_path"); ok {
		if path, ok := v.String(); ok {
			if _, err := os.ReadFile(path); err != nil {
				return nil, fmt.Errorf("failed to read ICC profile from %q: %w", path, err)
			}
		}
	}
	var buf bytes.Buffer
	enc := png.Encoder{CompressionLevel: level}
	if err := enc.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("PNG encode failed: %w", err)
	}
	return buf.Bytes(), nil
}

func parsePNGCompression(options *params.Bag) (png.CompressionLevel, error) {
	v, ok := options.Get("compression")
	if !ok {
		return png.DefaultCompression, nil
	}
	if s, ok := v.String(); ok {
		switch strings.ToLower(strings.TrimSpace(s)) {
		case "fast":
			return png.BestSpeed, nil
		case "default":
			return png.DefaultCompression, nil
		case "best":
			return png.BestCompression, nil
		default:
			return 0, fmt.Errorf("unknown PNG compression profile %q", s)
		}
	}
	if n, ok := v.Uint(); ok {
		switch {
		case n <= 3:
			return png.BestSpeed, nil
		case n <= 6:
			return png.DefaultCompression, nil
		default:
			return png.BestCompression, nil
		}
	}
	return 0, fmt.Errorf("unsupported PNG compression value: %v", v.Raw())
}

func encodeGIF(img image.Image, options *params.Bag) ([]byte, error) {
	loopCount := -1
	if v, ok := options.Get("repeat"); ok {
		n, err := parseGIFRepeat(v)
		if err != nil {
			return nil, err
		}
		loopCount = n
	}
	// speed is accepted and echoed but does not map onto a stdlib GIF
	// quantizer knob; it is recorded under output.encoder.speed only.
	frame := quantizeForGIF(img)

	var buf bytes.Buffer
	g := &gif.GIF{
		Image:     []*image.Paletted{frame},
		Delay:     []int{0},
		LoopCount: loopCount,
	}
	if err := gif.EncodeAll(&buf, g); err != nil {
		return nil, fmt.Errorf("GIF encode failed: %w", err)
	}
	return buf.Bytes(), nil
}

func quantizeForGIF(img image.Image) *image.Paletted {
	b := img.Bounds()
	dst := image.NewPaletted(b, palette256())
	draw := gifDrawer{}
	draw.draw(dst, img)
	return dst
}

// gifDrawer quantizes onto a fixed 6x6x6 web-safe palette, pixel by pixel.
type gifDrawer struct{}

func (gifDrawer) draw(dst *image.Paletted, src image.Image) {
	b := src.Bounds()
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			dst.Set(x, y, src.At(x, y))
		}
	}
}

func palette256() color.Palette {
	pal := make(color.Palette, 0, 216)
	steps := []uint8{0, 51, 102, 153, 204, 255}
	for _, r := range steps {
		for _, g := range steps {
			for _, b := range steps {
				pal = append(pal, color.RGBA{R: r, G: g, B: b, A: 0xff})
			}
		}
	}
	return pal
}

func parseGIFRepeat(v params.Value) (int, error) {
	if s, ok := v.String(); ok {
		normalized := strings.ToLower(strings.TrimSpace(s))
		if normalized == "infinite" || normalized == "loop" {
			return 0, nil
		}
		n, err := strconv.Atoi(normalized)
		if err != nil {
			return 0, fmt.Errorf("failed to parse GIF repeat count from %q", s)
		}
		return n, nil
	}
	if n, ok := v.Uint(); ok {
		if n > 65535 {
			return 0, fmt.Errorf("GIF repeat count %d exceeds 65535", n)
		}
		return int(n), nil
	}
	return 0, fmt.Errorf("unsupported GIF repeat value: %v", v.Raw())
}

func encodeGeneric(img image.Image) ([]byte, error) {
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("generic encode failed: %w", err)
	}
	return buf.Bytes(), nil
}

func recordEncoderMetadata(artifact *core.Artifact, options *params.Bag) {
	for key, value := range options.Remaining() {
		artifact.SetMetadata("output.encoder."+key, value.Raw())
	}
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
