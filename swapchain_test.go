package framevk

import (
	"testing"

	"github.com/andewx/framevk/gpu"
	"github.com/andewx/framevk/gpu/gputest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	vk "github.com/vulkan-go/vulkan"
)

func TestChooseImageCount(t *testing.T) {
	tests := []struct {
		min, max, want uint32
	}{
		{2, 3, 3},
		{2, 0, 3},
		{3, 3, 3},
		{1, 1, 1},
		{2, 8, 3},
	}
	for _, tt := range tests {
		got := ChooseImageCount(gpu.SurfaceCapabilities{MinImageCount: tt.min, MaxImageCount: tt.max})
		assert.Equal(t, tt.want, got, "min=%d max=%d", tt.min, tt.max)
	}
}

func TestChooseSurfaceFormat(t *testing.T) {
	unorm := gpu.SurfaceFormat{Format: vk.FormatB8g8r8a8Unorm, ColorSpace: vk.ColorSpaceSrgbNonlinear}

	got, err := ChooseSurfaceFormat([]gpu.SurfaceFormat{unorm, PreferredSurfaceFormat}, PreferredSurfaceFormat)
	require.NoError(t, err)
	assert.Equal(t, PreferredSurfaceFormat, got)

	got, err = ChooseSurfaceFormat([]gpu.SurfaceFormat{unorm}, PreferredSurfaceFormat)
	require.NoError(t, err)
	assert.Equal(t, unorm, got)

	_, err = ChooseSurfaceFormat(nil, PreferredSurfaceFormat)
	assert.ErrorIs(t, err, ErrConfig)
}

func TestChoosePresentMode(t *testing.T) {
	got, err := ChoosePresentMode([]vk.PresentMode{vk.PresentModeFifo, vk.PresentModeMailbox}, vk.PresentModeMailbox)
	require.NoError(t, err)
	assert.Equal(t, vk.PresentModeMailbox, got)

	got, err = ChoosePresentMode([]vk.PresentMode{vk.PresentModeImmediate, vk.PresentModeFifo}, vk.PresentModeMailbox)
	require.NoError(t, err)
	assert.Equal(t, vk.PresentModeFifo, got)

	_, err = ChoosePresentMode(nil, vk.PresentModeMailbox)
	assert.ErrorIs(t, err, ErrConfig)
}

func TestChooseExtent(t *testing.T) {
	caps := gpu.SurfaceCapabilities{
		CurrentExtent:  gpu.Extent{Width: 640, Height: 480},
		MinImageExtent: gpu.Extent{Width: 1, Height: 1},
		MaxImageExtent: gpu.Extent{Width: 4096, Height: 4096},
	}
	assert.Equal(t, gpu.Extent{Width: 640, Height: 480}, ChooseExtent(caps, 800, 600))

	caps.CurrentExtent = gpu.Extent{Width: vk.MaxUint32, Height: vk.MaxUint32}
	assert.Equal(t, gpu.Extent{Width: 800, Height: 600}, ChooseExtent(caps, 800, 600))
	assert.Equal(t, gpu.Extent{Width: 4096, Height: 10}, ChooseExtent(caps, 5000, 10))
	assert.Equal(t, gpu.Extent{Width: 1, Height: 1}, ChooseExtent(caps, -3, 0))
}

func newSurfaces(t *testing.T, drv *gputest.Driver, win *gputest.Window, samples vk.SampleCountFlagBits) *SurfaceManager {
	t.Helper()
	queues, err := NewQueues(drv)
	require.NoError(t, err)
	return NewSurfaceManager(drv, win, queues, SurfaceOptions{
		PresentMode: vk.PresentModeMailbox,
		Samples:     samples,
		RenderPass:  drv.RenderPass,
		Logs:        quietLogs(),
	})
}

func TestCreateSwapchainSet(t *testing.T) {
	for _, samples := range []vk.SampleCountFlagBits{vk.SampleCount1Bit, vk.SampleCount4Bit} {
		drv := gputest.NewDriver()
		m := newSurfaces(t, drv, gputest.NewWindow([2]int{800, 600}), samples)
		require.NoError(t, m.CreateSwapchainSet())

		set := m.Current()
		require.NotNil(t, set)
		assert.Equal(t, SwapchainReady, m.State())
		assert.Equal(t, PreferredSurfaceFormat, set.Format)
		assert.Equal(t, vk.PresentModeMailbox, set.PresentMode)
		assert.Equal(t, gpu.Extent{Width: 800, Height: 600}, set.Extent)
		assert.Len(t, set.Images, 3)
		assert.Len(t, set.Views, len(set.Images))
		assert.Len(t, set.Framebuffers, len(set.Images))
		assert.Equal(t, vk.FormatD32Sfloat, set.Depth.Format)
		if samples == vk.SampleCount1Bit {
			assert.Nil(t, set.Color)
			assert.Equal(t, 2, set.Attachments())
		} else {
			require.NotNil(t, set.Color)
			assert.Equal(t, samples, set.Color.Samples)
			assert.Equal(t, 3, set.Attachments())
		}
		assert.Equal(t, uint32(3), drv.Swapchains[0].MinImageCount)
		assert.Equal(t, vk.SharingModeExclusive, drv.Swapchains[0].SharingMode)

		assert.ErrorIs(t, m.CreateSwapchainSet(), ErrInvalidArgument)
		require.NoError(t, m.DestroySwapchainSet())
		assert.Equal(t, SwapchainUninitialized, m.State())
		assert.Nil(t, m.Current())
		for _, kind := range []gpu.Kind{gpu.KindSwapchain, gpu.KindImage, gpu.KindImageView, gpu.KindFramebuffer, gpu.KindMemory} {
			assert.Zero(t, drv.Live(kind), kind.String())
		}
		assert.Empty(t, drv.Violations)
	}
}

func TestDepthFormatFallback(t *testing.T) {
	drv := gputest.NewDriver()
	attachment := vk.FormatFeatureFlags(vk.FormatFeatureDepthStencilAttachmentBit)
	drv.Features = map[vk.Format]vk.FormatFeatureFlags{vk.FormatD24UnormS8Uint: attachment}
	m := newSurfaces(t, drv, gputest.NewWindow(), vk.SampleCount1Bit)
	require.NoError(t, m.CreateSwapchainSet())
	assert.Equal(t, vk.FormatD24UnormS8Uint, m.Current().Depth.Format)

	drv2 := gputest.NewDriver()
	drv2.Features = map[vk.Format]vk.FormatFeatureFlags{}
	m2 := newSurfaces(t, drv2, gputest.NewWindow(), vk.SampleCount1Bit)
	assert.ErrorIs(t, m2.CreateSwapchainSet(), ErrConfig)
	assert.Zero(t, drv2.Live(gpu.KindSwapchain))
}

func TestRebuildReplacesEverything(t *testing.T) {
	drv := gputest.NewDriver()
	win := gputest.NewWindow([2]int{800, 600})
	m := newSurfaces(t, drv, win, vk.SampleCount4Bit)
	require.NoError(t, m.CreateSwapchainSet())
	old := *m.Current()
	oldDepth, oldColor := old.Depth.Image, old.Color.Image
	live := m.arena.Live(swapchainOwner)

	win.Resize(1280, 720)
	require.NoError(t, m.Rebuild())

	set := m.Current()
	require.NotNil(t, set)
	assert.Equal(t, uint64(2), set.Generation)
	assert.Equal(t, gpu.Extent{Width: 1280, Height: 720}, set.Extent)
	assert.Len(t, set.Views, len(set.Images))
	assert.Len(t, set.Framebuffers, len(set.Images))
	assert.Equal(t, live, m.arena.Live(swapchainOwner))
	assert.Equal(t, old.RenderPass, set.RenderPass)
	assert.Equal(t, 1, drv.RenderPasses)

	assert.False(t, drv.IsLive(gpu.KindSwapchain, gpu.Handle(old.Swapchain)))
	for i := range old.Images {
		assert.False(t, drv.IsLive(gpu.KindImage, gpu.Handle(old.Images[i])))
		assert.False(t, drv.IsLive(gpu.KindImageView, gpu.Handle(old.Views[i])))
		assert.False(t, drv.IsLive(gpu.KindFramebuffer, gpu.Handle(old.Framebuffers[i])))
		assert.NotContains(t, set.Framebuffers, old.Framebuffers[i])
	}
	assert.False(t, drv.IsLive(gpu.KindImage, gpu.Handle(oldDepth)))
	assert.False(t, drv.IsLive(gpu.KindImage, gpu.Handle(oldColor)))
	assert.Equal(t, 1, drv.Live(gpu.KindSwapchain))
	assert.Equal(t, len(set.Framebuffers), drv.Live(gpu.KindFramebuffer))
	assert.Empty(t, drv.Violations)
}

func TestCreateWaitsForNonZeroSize(t *testing.T) {
	drv := gputest.NewDriver()
	win := gputest.NewWindow([2]int{0, 0}, [2]int{0, 600}, [2]int{800, 600})
	status := &StatusNotifier{}
	var seen []Status
	status.Subscribe(func(s Status) { seen = append(seen, s) })

	queues, err := NewQueues(drv)
	require.NoError(t, err)
	m := NewSurfaceManager(drv, win, queues, SurfaceOptions{
		RenderPass: drv.RenderPass,
		Status:     status,
		Logs:       quietLogs(),
	})
	win.OnWait = func() {
		if win.WaitCalls == 1 {
			assert.Equal(t, []Status{StatusIdle}, seen, "idle is delivered while waiting")
		}
	}
	require.NoError(t, m.CreateSwapchainSet())

	assert.Equal(t, 2, win.WaitCalls)
	require.Len(t, drv.Swapchains, 1)
	assert.Equal(t, gpu.Extent{Width: 800, Height: 600}, drv.Swapchains[0].Extent)
	assert.Equal(t, StatusRunning, status.Status())
	status.Notify()
	assert.Equal(t, []Status{StatusIdle, StatusRunning}, seen)
	assert.Empty(t, drv.Violations)
}

func TestCreateWaitsForNonZeroSurfaceExtent(t *testing.T) {
	drv := gputest.NewDriver()
	drv.Support.Capabilities.CurrentExtent = gpu.Extent{}
	win := gputest.NewWindow([2]int{800, 600})
	win.OnWait = func() {
		drv.Support.Capabilities.CurrentExtent = gpu.Extent{Width: 640, Height: 480}
	}
	m := newSurfaces(t, drv, win, vk.SampleCount1Bit)
	require.NoError(t, m.CreateSwapchainSet())

	assert.Equal(t, 1, win.WaitCalls)
	require.Len(t, drv.Swapchains, 1)
	assert.Equal(t, gpu.Extent{Width: 640, Height: 480}, drv.Swapchains[0].Extent)
	assert.Empty(t, drv.Violations)
}

func TestRebuildIsNotReentrant(t *testing.T) {
	drv := gputest.NewDriver()
	win := gputest.NewWindow([2]int{800, 600})
	m := newSurfaces(t, drv, win, vk.SampleCount1Bit)
	require.NoError(t, m.CreateSwapchainSet())

	var nested error
	win.Resize(0, 0)
	win.Sizes = append(win.Sizes, [2]int{800, 600})
	win.OnWait = func() {
		assert.Equal(t, SwapchainRebuilding, m.State())
		assert.Nil(t, m.Current())
		nested = m.Rebuild()
	}
	require.NoError(t, m.Rebuild())
	assert.ErrorIs(t, nested, ErrInvalidArgument)
	assert.Equal(t, SwapchainReady, m.State())
	assert.Equal(t, 1, drv.Live(gpu.KindSwapchain))
}

func TestCreateFailureReleasesPartialSet(t *testing.T) {
	drv := gputest.NewDriver()
	drv.FailOn("CreateFramebuffer", gputest.ErrInjected)
	m := newSurfaces(t, drv, gputest.NewWindow(), vk.SampleCount4Bit)

	err := m.CreateSwapchainSet()
	assert.ErrorIs(t, err, ErrCreate)
	assert.Equal(t, SwapchainUninitialized, m.State())
	assert.Zero(t, m.arena.Live(swapchainOwner))
	for _, kind := range []gpu.Kind{gpu.KindSwapchain, gpu.KindImage, gpu.KindImageView, gpu.KindMemory} {
		assert.Zero(t, drv.Live(kind), kind.String())
	}

	drv.FailOn("CreateFramebuffer", nil)
	require.NoError(t, m.CreateSwapchainSet())
	assert.Empty(t, drv.Violations)
}
