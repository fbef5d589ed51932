//go:build vulkan

package main

import (
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/andewx/framevk"
	"github.com/andewx/framevk/glfwdisplay"
	"github.com/andewx/framevk/scene"
	"github.com/andewx/framevk/vkdriver"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestRenderFrames needs a Vulkan driver, a display and the compiled shaders
// in ../../shaders.
func TestRenderFrames(t *testing.T) {
	runtime.LockOSThread()
	defer runtime.UnlockOSThread()

	cfg := framevk.DefaultConfig()
	cfg.Width, cfg.Height = 500, 500
	cfg.PreferredPresentMode = "fifo"
	cfg.Shaders = filepath.Join("..", "..", "shaders")
	if _, err := os.Stat(filepath.Join(cfg.Shaders, "vert.spv")); err != nil {
		t.Skip("shaders not compiled")
	}

	require.NoError(t, glfwdisplay.Init())
	defer glfwdisplay.Terminate()

	events := framevk.NewEventQueue()
	display, err := glfwdisplay.New(cfg.Width, cfg.Height, "framevk test", events)
	require.NoError(t, err)
	defer display.Destroy()

	logs := framevk.NewLogs(os.Stderr)
	platform, err := vkdriver.NewPlatform(vkdriver.Options{
		AppName:            cfg.AppName,
		InstanceExtensions: display.RequiredInstanceExtensions(),
		Surface:            display.CreateSurface,
		Logs:               logs,
	})
	require.NoError(t, err)
	defer platform.Destroy()

	samples := min(cfg.MSAASamples, platform.MaxSamples())
	sc := scene.New()
	renderer, err := framevk.NewRenderer(platform, display, cfg, framevk.RendererOptions{
		RenderPass: platform.RenderPass,
		Source:     sc,
		Handler:    sc,
		Events:     events,
		Logs:       logs,
		Samples:    samples,
	})
	require.NoError(t, err)
	require.NoError(t, setupScene(platform, renderer, cfg, samples))

	engine := renderer.Engine()
	frames := 2*engine.FramesInFlight() + 1
	for i := 0; i < frames; i++ {
		display.PollEvents()
		require.NoError(t, engine.DrawFrame())
	}
	require.NoError(t, engine.WaitIdle())
	assert.Positive(t, engine.Stats().Presented)
	assert.Equal(t, uint64(frames), engine.Stats().FenceWaits)
	require.NoError(t, renderer.Destroy())
	assert.Zero(t, renderer.Arena().Live("scene"))
}
