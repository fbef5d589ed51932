package framevk

import (
	"encoding/binary"
	"io"
	"testing"

	"github.com/andewx/framevk/gpu"
	"github.com/andewx/framevk/gpu/gputest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	vk "github.com/vulkan-go/vulkan"
)

const testUniformSize = 64

// counterSource stamps every uniform block with a frame counter so no two
// frames write the same bytes.
type counterSource struct {
	frames uint64
}

func (s *counterSource) UniformSize() int { return testUniformSize }

func (s *counterSource) FrameData(extent gpu.Extent) []byte {
	s.frames++
	data := make([]byte, testUniformSize)
	binary.LittleEndian.PutUint64(data, s.frames)
	binary.LittleEndian.PutUint32(data[8:], extent.Width)
	binary.LittleEndian.PutUint32(data[12:], extent.Height)
	return data
}

type recordingHandler struct {
	events []Event
}

func (h *recordingHandler) HandleEvent(ev Event) {
	h.events = append(h.events, ev)
}

func quietLogs() *Logs {
	return NewLogs(io.Discard)
}

type fixture struct {
	drv      *gputest.Driver
	win      *gputest.Window
	queues   *Queues
	surfaces *SurfaceManager
	engine   *Engine
	source   *counterSource
	handler  *recordingHandler
}

type fixtureOptions struct {
	frames  int
	samples vk.SampleCountFlagBits
	lazy    bool
	window  *gputest.Window
}

func newFixture(t *testing.T, opts fixtureOptions) *fixture {
	t.Helper()
	f := &fixture{
		drv:     gputest.NewDriver(),
		win:     opts.window,
		source:  &counterSource{},
		handler: &recordingHandler{},
	}
	if f.win == nil {
		f.win = gputest.NewWindow([2]int{800, 600})
	}
	f.drv.Lazy = opts.lazy

	var err error
	f.queues, err = NewQueues(f.drv)
	require.NoError(t, err)

	f.surfaces = NewSurfaceManager(f.drv, f.win, f.queues, SurfaceOptions{
		PresentMode: vk.PresentModeMailbox,
		Samples:     opts.samples,
		RenderPass:  f.drv.RenderPass,
		Logs:        quietLogs(),
	})
	require.NoError(t, f.surfaces.CreateSwapchainSet())

	f.engine, err = NewEngine(f.drv, f.surfaces, f.queues, EngineOptions{
		FramesInFlight: opts.frames,
		Handler:        f.handler,
		Source:         f.source,
		Logs:           quietLogs(),
	})
	require.NoError(t, err)

	pipeline, layout := f.drv.Pipeline()
	sets, err := f.drv.AllocateDescriptorSets(f.drv.DescriptorSetLayout(), f.engine.FramesInFlight())
	require.NoError(t, err)
	for i, set := range sets {
		buf, size := f.engine.UniformBuffer(i)
		f.drv.WriteBufferDescriptor(set, 0, buf, size)
	}
	require.NoError(t, f.engine.SetDrawConfig(DrawConfig{
		Pipeline:       pipeline,
		Layout:         layout,
		IndexCount:     36,
		DescriptorSets: sets,
	}))
	return f
}

func (f *fixture) drawFrames(t *testing.T, n int) {
	t.Helper()
	for i := 0; i < n; i++ {
		require.NoError(t, f.engine.DrawFrame(), "frame %d", i)
	}
}

func (f *fixture) destroy(t *testing.T) {
	t.Helper()
	f.engine.Destroy()
	require.NoError(t, f.surfaces.DestroySwapchainSet())
	assert.Empty(t, f.drv.Violations)
}

// assertNoRecordInFlight checks that no command buffer was recorded between
// its submission and its completion.
func assertNoRecordInFlight(t *testing.T, timeline []gputest.Event) {
	t.Helper()
	inFlight := make(map[gpu.CommandBuffer]bool)
	for _, ev := range timeline {
		switch ev.Kind {
		case gputest.GPUBegin:
			inFlight[ev.Command] = true
		case gputest.GPUEnd:
			delete(inFlight, ev.Command)
		case gputest.CPURecord:
			assert.False(t, inFlight[ev.Command], "command buffer %d recorded at %d while in flight", ev.Command, ev.Time)
		}
	}
}
