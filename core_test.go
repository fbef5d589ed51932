package framevk

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/andewx/framevk/gpu"
	"github.com/andewx/framevk/gpu/gputest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	vk "github.com/vulkan-go/vulkan"
)

func newTestRenderer(t *testing.T, drv *gputest.Driver, win *gputest.Window, logs *Logs) *Renderer {
	t.Helper()
	if logs == nil {
		logs = quietLogs()
	}
	r, err := NewRenderer(drv, win, DefaultConfig(), RendererOptions{
		RenderPass: drv.RenderPass,
		Source:     &counterSource{},
		Logs:       logs,
	})
	require.NoError(t, err)

	vertices, err := r.Uploader().UploadBuffer(pattern(8*24), vk.BufferUsageFlags(vk.BufferUsageVertexBufferBit), 0)
	require.NoError(t, err)
	require.NoError(t, vertices.Track(r.Arena(), "scene"))
	indices, err := r.Uploader().UploadBuffer(pattern(4*36), vk.BufferUsageFlags(vk.BufferUsageIndexBufferBit), 0)
	require.NoError(t, err)
	require.NoError(t, indices.Track(r.Arena(), "scene"))

	pipeline, layout := drv.Pipeline()
	sets, err := drv.AllocateDescriptorSets(drv.DescriptorSetLayout(), r.Engine().FramesInFlight())
	require.NoError(t, err)
	for i, set := range sets {
		buf, size := r.Engine().UniformBuffer(i)
		drv.WriteBufferDescriptor(set, 0, buf, size)
	}
	require.NoError(t, r.Engine().SetDrawConfig(DrawConfig{
		Pipeline:       pipeline,
		Layout:         layout,
		VertexBuffer:   vertices.Buffer,
		IndexBuffer:    indices.Buffer,
		IndexCount:     36,
		DescriptorSets: sets,
	}))
	return r
}

func TestRendererRunAndDestroy(t *testing.T) {
	drv := gputest.NewDriver()
	drv.Lazy = true
	win := gputest.NewWindow([2]int{1280, 720})
	r := newTestRenderer(t, drv, win, nil)

	set := r.Surfaces().Current()
	require.NotNil(t, set)
	require.NotNil(t, set.Color, "4x MSAA by default")
	assert.Equal(t, set.RenderPass, r.RenderPass())

	frames := 0
	err := r.Run(context.Background(), func() bool {
		frames++
		return frames > 6
	})
	require.NoError(t, err)
	assert.Equal(t, 6, drv.Presents)
	assert.Equal(t, 6, win.PollCalls)
	assert.Zero(t, drv.Pending(), "Run leaves the device idle")

	require.NoError(t, r.Destroy())
	for _, kind := range []gpu.Kind{
		gpu.KindBuffer, gpu.KindMemory, gpu.KindImage, gpu.KindImageView, gpu.KindFramebuffer,
		gpu.KindSwapchain, gpu.KindFence, gpu.KindSemaphore, gpu.KindCommandPool, gpu.KindCommandBuffer,
	} {
		assert.Zero(t, drv.Live(kind), kind.String())
	}
	assert.Empty(t, drv.Violations)
	assertNoRecordInFlight(t, drv.Timeline)
}

func TestRendererRunStopsOnCancel(t *testing.T) {
	drv := gputest.NewDriver()
	r := newTestRenderer(t, drv, gputest.NewWindow(), nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	require.NoError(t, r.Run(ctx, nil))
	assert.Zero(t, drv.Presents)
	require.NoError(t, r.Destroy())
}

func TestRendererRunReportsFrameErrors(t *testing.T) {
	drv := gputest.NewDriver()
	var out bytes.Buffer
	r := newTestRenderer(t, drv, gputest.NewWindow(), NewLogs(&out))
	drv.FailOn("QueuePresent", gputest.ErrInjected)

	err := r.Run(context.Background(), nil)
	assert.ErrorIs(t, err, ErrCreate)
	assert.Contains(t, err.Error(), "present frame")
	assert.NotContains(t, out.String(), "ERROR: ", "the caller logs fatal errors")
}

func TestRendererReportsIdleWhileMinimized(t *testing.T) {
	drv := gputest.NewDriver()
	win := gputest.NewWindow([2]int{1280, 720})
	r := newTestRenderer(t, drv, win, nil)
	var seen []Status
	r.Status().Subscribe(func(s Status) { seen = append(seen, s) })

	frames := 0
	err := r.Run(context.Background(), func() bool {
		frames++
		if frames == 2 {
			win.Sizes = [][2]int{{0, 0}, {0, 0}, {800, 600}}
			r.Engine().Events().Push(Resized{})
		}
		return frames > 3
	})
	require.NoError(t, err)

	assert.Equal(t, []Status{StatusIdle, StatusRunning}, seen)
	assert.Equal(t, 2, win.WaitCalls)
	assert.Equal(t, uint64(1), r.Engine().Stats().Rebuilds)
	assert.Equal(t, gpu.Extent{Width: 800, Height: 600}, r.Surfaces().Current().Extent)
	require.NoError(t, r.Destroy())
}

func TestNewRendererRejectsBadConfig(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MSAASamples = 5
	_, err := NewRenderer(gputest.NewDriver(), gputest.NewWindow(), cfg, RendererOptions{})
	assert.ErrorIs(t, err, ErrConfig)
}

func TestNewRendererSampleOverride(t *testing.T) {
	drv := gputest.NewDriver()
	r, err := NewRenderer(drv, gputest.NewWindow(), DefaultConfig(), RendererOptions{
		RenderPass: drv.RenderPass,
		Logs:       quietLogs(),
		Samples:    1,
	})
	require.NoError(t, err)
	assert.Nil(t, r.Surfaces().Current().Color)
	require.NoError(t, r.Destroy())
}

func TestNewFileLogs(t *testing.T) {
	dir := t.TempDir()
	logs, err := NewFileLogs(dir)
	require.NoError(t, err)
	logs.Info.Print("hello")
	logs.Warn.Print("careful")
	logs.Close()

	info, err := os.ReadFile(filepath.Join(dir, "info_log.txt"))
	require.NoError(t, err)
	assert.Contains(t, string(info), "INFO: ")
	assert.Contains(t, string(info), "hello")
	warn, err := os.ReadFile(filepath.Join(dir, "warn_log.txt"))
	require.NoError(t, err)
	assert.Contains(t, string(warn), "careful")

	_, err = NewFileLogs(filepath.Join(dir, "missing"))
	assert.Error(t, err)
}
