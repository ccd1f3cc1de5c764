package core_test

import (
	"bytes"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jmylchreest/bunker/internal/devicesched"
	"github.com/jmylchreest/bunker/internal/pipeline/core"
	"github.com/jmylchreest/bunker/internal/pipeline/params"
	imagestage "github.com/jmylchreest/bunker/internal/pipeline/stages/image"
)

func writeTestPNG(t *testing.T, dir, name string, w, h int) string {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.RGBA{R: uint8(x), G: uint8(y), B: 100, A: 255})
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))

	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, buf.Bytes(), 0o644))
	return path
}

func buildDecodeResizeEncodeChain(t *testing.T) []core.Stage {
	t.Helper()
	decode, err := imagestage.NewDecode(params.NewBag(nil))
	require.NoError(t, err)
	resize, err := imagestage.NewResize(params.NewBag(map[string]any{"width": float64(4), "height": float64(4)}))
	require.NoError(t, err)
	encode, err := imagestage.NewEncode(params.NewBag(map[string]any{"format": "png"}))
	require.NoError(t, err)
	return []core.Stage{decode, resize, encode}
}

func TestExecutor_DecodeResizeEncodeRoundTrip(t *testing.T) {
	inputDir := t.TempDir()
	outputDir := t.TempDir()
	input := writeTestPNG(t, inputDir, "photo.png", 8, 8)

	stages := buildDecodeResizeEncodeChain(t)
	scheduler := devicesched.New(devicesched.PolicyCPUOnly, nil)
	output := core.OutputSpec{Directory: outputDir, Structure: "{stem}.{ext}"}
	executor := core.NewExecutor(stages, output, nil, scheduler, nil)

	results, err := executor.Execute([]string{input})
	require.NoError(t, err)
	require.Len(t, results, 1)

	outPath := filepath.Join(outputDir, "photo.png")
	assert.Equal(t, outPath, results[0].OutputPath)
	assert.FileExists(t, outPath)
	assert.Equal(t, 4, results[0].Metadata["image.width"])
	assert.Equal(t, 4, results[0].Metadata["image.height"])

	snap := executor.Metrics().Snapshot()
	assert.Equal(t, uint64(1), snap.Stages["decode"].Calls)
	assert.Equal(t, uint64(1), snap.Stages["resize"].Calls)
	assert.Equal(t, uint64(1), snap.Stages["encode"].Calls)
}

func TestExecutor_StrictQualityGatePassesOnLosslessPNG(t *testing.T) {
	inputDir := t.TempDir()
	outputDir := t.TempDir()
	input := writeTestPNG(t, inputDir, "photo.png", 6, 6)

	decode, err := imagestage.NewDecode(params.NewBag(nil))
	require.NoError(t, err)
	encode, err := imagestage.NewEncode(params.NewBag(map[string]any{"format": "png"}))
	require.NoError(t, err)

	minSSIM := 0.99
	gates := []core.QualityGate{{Label: "strict", MinSSIM: &minSSIM}}
	scheduler := devicesched.New(devicesched.PolicyCPUOnly, nil)
	output := core.OutputSpec{Directory: outputDir, Structure: "{stem}.{ext}"}
	executor := core.NewExecutor([]core.Stage{decode, encode}, output, gates, scheduler, nil)

	results, err := executor.Execute([]string{input})
	require.NoError(t, err)
	assert.Equal(t, "passed", results[0].Metadata["quality.status"])

	snap := executor.Metrics().Snapshot()
	assert.Equal(t, uint64(1), snap.QualityPasses)
}

func TestExecutor_StrictQualityGateFailsOnLossyPath(t *testing.T) {
	inputDir := t.TempDir()
	outputDir := t.TempDir()
	input := writeTestPNG(t, inputDir, "photo.png", 6, 6)

	decode, err := imagestage.NewDecode(params.NewBag(nil))
	require.NoError(t, err)
	encode, err := imagestage.NewEncode(params.NewBag(map[string]any{"format": "jpeg", "quality": float64(1)}))
	require.NoError(t, err)

	minSSIM := 0.999999
	gates := []core.QualityGate{{Label: "strict", MinSSIM: &minSSIM}}
	scheduler := devicesched.New(devicesched.PolicyCPUOnly, nil)
	output := core.OutputSpec{Directory: outputDir, Structure: "{stem}.{ext}"}
	executor := core.NewExecutor([]core.Stage{decode, encode}, output, gates, scheduler, nil)

	_, err = executor.Execute([]string{input})
	require.Error(t, err)

	var gateErr *core.QualityGateFailure
	assert.ErrorAs(t, err, &gateErr)
}

func TestExecutor_MaxMSEGatePassesWhenObservedEqualsThreshold(t *testing.T) {
	// Boundary case: MSE exactly equal to the configured max_mse must pass,
	// not fail — the gate only fails strictly above the threshold.
	inputDir := t.TempDir()
	outputDir := t.TempDir()
	input := writeTestPNG(t, inputDir, "photo.png", 6, 6)

	decode, err := imagestage.NewDecode(params.NewBag(nil))
	require.NoError(t, err)
	encode, err := imagestage.NewEncode(params.NewBag(map[string]any{"format": "png"}))
	require.NoError(t, err)

	maxMSE := 0.0 // a lossless PNG round trip observes exactly 0.0 MSE
	gates := []core.QualityGate{{Label: "strict", MaxMSE: &maxMSE}}
	scheduler := devicesched.New(devicesched.PolicyCPUOnly, nil)
	output := core.OutputSpec{Directory: outputDir, Structure: "{stem}.{ext}"}
	executor := core.NewExecutor([]core.Stage{decode, encode}, output, gates, scheduler, nil)

	results, err := executor.Execute([]string{input})
	require.NoError(t, err)
	assert.Equal(t, "passed", results[0].Metadata["quality.status"])
	assert.Equal(t, 0.0, results[0].Metadata["quality.mse"])

	snap := executor.Metrics().Snapshot()
	assert.Equal(t, uint64(1), snap.QualityPasses)
}

func TestExecutor_MaxMSEGateFailsAboveThreshold(t *testing.T) {
	inputDir := t.TempDir()
	outputDir := t.TempDir()
	input := writeTestPNG(t, inputDir, "photo.png", 6, 6)

	decode, err := imagestage.NewDecode(params.NewBag(nil))
	require.NoError(t, err)
	encode, err := imagestage.NewEncode(params.NewBag(map[string]any{"format": "jpeg", "quality": float64(1)}))
	require.NoError(t, err)

	maxMSE := 0.0 // any lossy JPEG re-encode observes MSE > 0
	gates := []core.QualityGate{{Label: "strict", MaxMSE: &maxMSE}}
	scheduler := devicesched.New(devicesched.PolicyCPUOnly, nil)
	output := core.OutputSpec{Directory: outputDir, Structure: "{stem}.{ext}"}
	executor := core.NewExecutor([]core.Stage{decode, encode}, output, gates, scheduler, nil)

	_, err = executor.Execute([]string{input})
	require.Error(t, err)

	var gateErr *core.QualityGateFailure
	require.ErrorAs(t, err, &gateErr)
	assert.Equal(t, "mse", gateErr.Metric)
	assert.Equal(t, ">", gateErr.Comparand)
}

func TestExecutor_DeviceFallbackToCPU(t *testing.T) {
	inputDir := t.TempDir()
	outputDir := t.TempDir()
	input := writeTestPNG(t, inputDir, "photo.png", 4, 4)

	stages := buildDecodeResizeEncodeChain(t)
	t.Setenv("BUNKER_FORCE_GPU", "1")
	scheduler := devicesched.New(devicesched.PolicyGPUPreferred, nil)
	output := core.OutputSpec{Directory: outputDir, Structure: "{stem}.{ext}"}
	executor := core.NewExecutor(stages, output, nil, scheduler, nil)

	_, err := executor.Execute([]string{input})
	require.NoError(t, err)
}

func TestExecutor_EncoderOptionEchoedInMetadata(t *testing.T) {
	inputDir := t.TempDir()
	outputDir := t.TempDir()
	input := writeTestPNG(t, inputDir, "photo.png", 4, 4)

	decode, err := imagestage.NewDecode(params.NewBag(nil))
	require.NoError(t, err)
	encode, err := imagestage.NewEncode(params.NewBag(map[string]any{"format": "jpeg", "quality": float64(55)}))
	require.NoError(t, err)

	scheduler := devicesched.New(devicesched.PolicyCPUOnly, nil)
	output := core.OutputSpec{Directory: outputDir, Structure: "{stem}.{ext}"}
	executor := core.NewExecutor([]core.Stage{decode, encode}, output, nil, scheduler, nil)

	results, err := executor.Execute([]string{input})
	require.NoError(t, err)
	assert.Equal(t, float64(55), results[0].Metadata["output.encoder.quality"])
}
