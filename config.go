package framevk

import (
	"os"
	"strings"

	"github.com/pelletier/go-toml/v2"
	"github.com/pkg/errors"
	vk "github.com/vulkan-go/vulkan"
)

const DefaultFramesInFlight = 2

// Config carries the startup toggles of the renderer. It is passed down
// explicitly and read once; nothing here is consulted after startup.
type Config struct {
	AppName              string `toml:"app_name"`
	EnableValidation     bool   `toml:"enable_validation"`
	PreferredPresentMode string `toml:"present_mode"`
	MSAASamples          int    `toml:"msaa_samples"`
	FramesInFlight       int    `toml:"frames_in_flight"`
	Width                int    `toml:"width"`
	Height               int    `toml:"height"`
	Shaders              string `toml:"shaders"`
	Texture              string `toml:"texture"`
	LogDir               string `toml:"log_dir"`
}

var presentModes = map[string]vk.PresentMode{
	"mailbox":      vk.PresentModeMailbox,
	"fifo":         vk.PresentModeFifo,
	"fifo_relaxed": vk.PresentModeFifoRelaxed,
	"immediate":    vk.PresentModeImmediate,
}

var sampleCounts = map[int]vk.SampleCountFlagBits{
	1:  vk.SampleCount1Bit,
	2:  vk.SampleCount2Bit,
	4:  vk.SampleCount4Bit,
	8:  vk.SampleCount8Bit,
	16: vk.SampleCount16Bit,
	32: vk.SampleCount32Bit,
	64: vk.SampleCount64Bit,
}

func DefaultConfig() Config {
	return Config{
		AppName:              "framevk",
		PreferredPresentMode: "mailbox",
		MSAASamples:          4,
		FramesInFlight:       DefaultFramesInFlight,
		Width:                1280,
		Height:               720,
		Shaders:              "shaders",
	}
}

// LoadConfig reads a TOML file over the defaults. Keys absent from the file
// keep their default value.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, errors.Wrapf(err, "read config %s", path)
	}
	if err := toml.Unmarshal(data, &cfg); err != nil {
		return cfg, configErrorf("parse config %s: %v", path, err)
	}
	return cfg, cfg.Validate()
}

func (c Config) Validate() error {
	if _, ok := presentModes[strings.ToLower(c.PreferredPresentMode)]; !ok {
		return configErrorf("unknown present mode %q", c.PreferredPresentMode)
	}
	if _, ok := sampleCounts[c.MSAASamples]; !ok {
		return configErrorf("msaa_samples must be a power of two up to 64, got %d", c.MSAASamples)
	}
	if c.FramesInFlight < 1 {
		return configErrorf("frames_in_flight must be at least 1, got %d", c.FramesInFlight)
	}
	if c.Width <= 0 || c.Height <= 0 {
		return configErrorf("window size %dx%d is not positive", c.Width, c.Height)
	}
	return nil
}

// PresentMode maps the configured name to a present mode, defaulting to FIFO
// which every surface supports.
func (c Config) PresentMode() vk.PresentMode {
	if mode, ok := presentModes[strings.ToLower(c.PreferredPresentMode)]; ok {
		return mode
	}
	return vk.PresentModeFifo
}

func (c Config) SampleCount() vk.SampleCountFlagBits {
	if samples, ok := sampleCounts[c.MSAASamples]; ok {
		return samples
	}
	return vk.SampleCount1Bit
}

func (c Config) framesInFlight() int {
	if c.FramesInFlight < 1 {
		return DefaultFramesInFlight
	}
	return c.FramesInFlight
}
