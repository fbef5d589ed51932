package framevk

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	vk "github.com/vulkan-go/vulkan"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "framevk.toml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0644))
	return path
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, vk.PresentModeMailbox, cfg.PresentMode())
	assert.Equal(t, vk.SampleCount4Bit, cfg.SampleCount())
	assert.Equal(t, DefaultFramesInFlight, cfg.framesInFlight())
}

func TestLoadConfigOverridesDefaults(t *testing.T) {
	path := writeConfig(t, `
app_name = "cube"
enable_validation = true
present_mode = "FIFO"
msaa_samples = 1
frames_in_flight = 3
texture = "assets/crate.png"
`)
	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, "cube", cfg.AppName)
	assert.True(t, cfg.EnableValidation)
	assert.Equal(t, vk.PresentModeFifo, cfg.PresentMode())
	assert.Equal(t, vk.SampleCount1Bit, cfg.SampleCount())
	assert.Equal(t, 3, cfg.framesInFlight())
	assert.Equal(t, "assets/crate.png", cfg.Texture)
	// Untouched keys keep their defaults.
	assert.Equal(t, 1280, cfg.Width)
	assert.Equal(t, "shaders", cfg.Shaders)
}

func TestLoadConfigErrors(t *testing.T) {
	_, err := LoadConfig(filepath.Join(t.TempDir(), "missing.toml"))
	assert.Error(t, err)

	_, err = LoadConfig(writeConfig(t, `present_mode = [`))
	assert.ErrorIs(t, err, ErrConfig)

	_, err = LoadConfig(writeConfig(t, `present_mode = "vsync"`))
	assert.ErrorIs(t, err, ErrConfig)

	_, err = LoadConfig(writeConfig(t, `msaa_samples = 3`))
	assert.ErrorIs(t, err, ErrConfig)

	_, err = LoadConfig(writeConfig(t, `frames_in_flight = 0`))
	assert.ErrorIs(t, err, ErrConfig)

	_, err = LoadConfig(writeConfig(t, "width = 0\nheight = 10"))
	assert.ErrorIs(t, err, ErrConfig)
}

func TestErrorClassesAreExclusive(t *testing.T) {
	classes := []error{ErrConfig, ErrCreate, ErrInvalidArgument}
	errs := []error{
		configErrorf("no device"),
		invalidArgumentf("bad layout"),
		createError(os.ErrClosed, "create fence"),
		createError(configErrorf("no memory type"), "allocate"),
	}
	for _, err := range errs {
		matches := 0
		for _, class := range classes {
			if errors.Is(err, class) {
				matches++
			}
		}
		assert.Equal(t, 1, matches, err.Error())
	}
	assert.ErrorIs(t, errs[2], os.ErrClosed)
	assert.ErrorIs(t, errs[3], ErrConfig)
	assert.Nil(t, createError(nil, "noop"))
}
