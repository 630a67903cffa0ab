package utils

import (
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadProjectConfig(t *testing.T) {
	doc := []byte(`
files:
  - main.cm
  - lib.cm
max_passes: 3
disabled_passes: [constant-fold]
page_size: 4096
`)
	pc, err := LoadProjectConfig(doc)
	require.NoError(t, err)
	assert.Equal(t, []string{"main.cm", "lib.cm"}, pc.Files)
	assert.Equal(t, 3, pc.MaxPasses)
	assert.Equal(t, []string{"constant-fold"}, pc.DisabledPasses)
	assert.Equal(t, uint32(4096), pc.PageSize)
}

func TestLoadProjectConfigRejectsMalformedYAML(t *testing.T) {
	_, err := LoadProjectConfig([]byte("files: [unterminated"))
	require.Error(t, err)
}

func TestProjectConfigFallsBackToDefaults(t *testing.T) {
	pc, err := LoadProjectConfig([]byte(`files: [main.cm]`))
	require.NoError(t, err)
	c := pc.Config()
	assert.Equal(t, DefaultConfig().MaxPasses, c.MaxPasses)
	assert.Equal(t, DefaultConfig().PageSize, c.PageSize)
}

func TestProjectConfigEnvironmentOverridesManifest(t *testing.T) {
	pc, err := LoadProjectConfig([]byte(`
files: [main.cm]
max_passes: 3
`))
	require.NoError(t, err)

	t.Setenv("CAIRO_M_MAX_PASSES", "9")
	os.Unsetenv("CAIRO_M_DISABLE_PASSES")
	os.Unsetenv("CAIRO_M_PAGE_SIZE")

	c := pc.Config()
	assert.Equal(t, 9, c.MaxPasses)
}

func TestConfigValidate(t *testing.T) {
	c := DefaultConfig()
	require.NoError(t, c.Validate())

	bad := c.Clone().WithMemorySize(10).WithPageSize(3)
	assert.Error(t, bad.Validate())
}

func TestConfigDisabledSet(t *testing.T) {
	c := DefaultConfig().WithDisabledPasses([]string{"a", "b"})
	set := c.DisabledSet()
	assert.True(t, set["a"])
	assert.True(t, set["b"])
	assert.False(t, set["c"])
}
