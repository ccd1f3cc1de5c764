package recipe

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeRecipe(t *testing.T, content string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "recipe.json")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoad_Basic(t *testing.T) {
	path := writeRecipe(t, `{
		"stages": [
			{"name": "decode"},
			{"name": "resize", "parameters": {"width": 800, "height": 600}},
			{"name": "encode", "parameters": {"format": "jpeg", "quality": 90}}
		],
		"output": {"directory": "./out", "structure": "{stem}.{ext}"}
	}`)

	file, err := Load(path)
	require.NoError(t, err)
	require.Len(t, file.Stages, 3)
	assert.Equal(t, "resize", file.Stages[1].Name)
	assert.Equal(t, "./out", file.Output.Directory)

	specs := file.StageSpecs()
	require.Len(t, specs, 3)
	assert.Equal(t, "decode", specs[0].Name)

	output := file.PipelineOutputSpec()
	assert.Equal(t, "{stem}.{ext}", output.Structure)
}

func TestLoad_WithQualityGates(t *testing.T) {
	path := writeRecipe(t, `{
		"stages": [{"name": "decode"}],
		"output": {"directory": ".", "structure": "{stem}.{ext}"},
		"quality_gates": [{"label": "strict", "min_ssim": 0.95}]
	}`)

	file, err := Load(path)
	require.NoError(t, err)
	gates := file.QualityGates()
	require.Len(t, gates, 1)
	require.NotNil(t, gates[0].MinSSIM)
	assert.InDelta(t, 0.95, *gates[0].MinSSIM, 0.0001)
}

func TestLoad_NoStagesRejected(t *testing.T) {
	path := writeRecipe(t, `{"stages": [], "output": {"directory": ".", "structure": "{stem}.{ext}"}}`)

	_, err := Load(path)
	assert.Error(t, err)
}

func TestLoad_InvalidJSON(t *testing.T) {
	path := writeRecipe(t, `{not valid json`)

	_, err := Load(path)
	assert.Error(t, err)
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load("/nonexistent/recipe.json")
	assert.Error(t, err)
}
