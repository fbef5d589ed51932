package framevk

import (
	"testing"

	"github.com/andewx/framevk/gpu"
	"github.com/andewx/framevk/gpu/gputest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	vk "github.com/vulkan-go/vulkan"
)

func TestDrawFiveFrames(t *testing.T) {
	f := newFixture(t, fixtureOptions{frames: 2})
	f0, f1 := f.engine.SlotFence(0), f.engine.SlotFence(1)

	f.drawFrames(t, 5)

	assert.Equal(t, 5, f.drv.Records)
	assert.Equal(t, 5, f.drv.Submits[f.queues.Graphics])
	assert.Equal(t, 5, f.drv.Presents)
	assert.Equal(t, []gpu.Fence{f0, f1, f0, f1, f0}, f.drv.FenceWaits)
	assert.Equal(t, uint64(5), f.engine.Stats().Presented)
	assert.Zero(t, f.engine.Stats().Rebuilds)
	assert.Len(t, f.drv.Swapchains, 1)
	f.destroy(t)
}

func TestCursorCycles(t *testing.T) {
	for _, k := range []int{1, 2, 3} {
		f := newFixture(t, fixtureOptions{frames: k})
		n := 2*k + 1
		f.drawFrames(t, n)

		if k == 1 {
			assert.Equal(t, 0, f.engine.CurrentFrame())
		} else {
			assert.Equal(t, 1, f.engine.CurrentFrame(), "k=%d", k)
		}
		waits := make(map[gpu.Fence]int)
		for _, fence := range f.drv.FenceWaits {
			waits[fence]++
		}
		for slot := 0; slot < k; slot++ {
			want := n / k
			if slot < n%k {
				want++
			}
			assert.Equal(t, want, waits[f.engine.SlotFence(slot)], "k=%d slot=%d", k, slot)
		}
		f.destroy(t)
	}
}

func TestSlotSafetyWithDeferredCompletion(t *testing.T) {
	f := newFixture(t, fixtureOptions{frames: 2, lazy: true, samples: vk.SampleCount4Bit})

	for i := 0; i < 12; i++ {
		require.NoError(t, f.engine.DrawFrame())
		assert.LessOrEqual(t, f.drv.Pending(), 2, "frame %d", i)
	}
	assert.Empty(t, f.drv.Violations)
	assertNoRecordInFlight(t, f.drv.Timeline)

	sets := f.engine.draw.DescriptorSets
	for slot := 0; slot < 2; slot++ {
		assert.Equal(t, []gpu.DescriptorSet{sets[slot]}, f.drv.BoundSets(f.engine.slots[slot].cmd))
	}
	f.destroy(t)
}

func TestFakeCatchesUniformWriteInFlight(t *testing.T) {
	f := newFixture(t, fixtureOptions{frames: 2, lazy: true})
	require.NoError(t, f.engine.DrawFrame())
	require.Equal(t, 1, f.drv.Pending())

	stomp := make([]byte, testUniformSize)
	for i := range stomp {
		stomp[i] = 0xff
	}
	require.NoError(t, f.engine.slots[0].uniform.Write(stomp))
	require.NoError(t, f.drv.DeviceWaitIdle())

	require.Len(t, f.drv.Violations, 1)
	assert.Contains(t, f.drv.Violations[0], "written by the CPU")
}

func TestAcquireOutOfDateAbortsFrame(t *testing.T) {
	f := newFixture(t, fixtureOptions{frames: 2})
	f.drv.AcquireStatus = []gpu.Status{gpu.StatusOutOfDate}

	require.NoError(t, f.engine.DrawFrame())
	stats := f.engine.Stats()
	assert.Equal(t, uint64(1), stats.Aborted)
	assert.Equal(t, uint64(1), stats.Rebuilds)
	assert.Zero(t, stats.Presented)
	assert.Zero(t, f.drv.Records)
	assert.Zero(t, f.drv.Presents)
	assert.Equal(t, 0, f.engine.CurrentFrame())
	assert.Len(t, f.drv.Swapchains, 2)

	// The fence was never reset, so the retry does not block.
	f.drawFrames(t, 1)
	assert.Equal(t, 1, f.drv.Presents)
	assert.Equal(t, 1, f.engine.CurrentFrame())
	f.destroy(t)
}

func TestPresentOutOfDateRebuildsAfterAdvancing(t *testing.T) {
	f := newFixture(t, fixtureOptions{frames: 2})
	f.drv.PresentStatus = []gpu.Status{gpu.StatusOutOfDate}

	f.drawFrames(t, 1)
	assert.Equal(t, 1, f.drv.Presents)
	assert.Equal(t, 1, f.engine.CurrentFrame())
	assert.Equal(t, uint64(1), f.engine.Stats().Rebuilds)
	assert.Equal(t, uint64(2), f.surfaces.Current().Generation)

	f.drawFrames(t, 3)
	assert.Equal(t, uint64(1), f.engine.Stats().Rebuilds)
	f.destroy(t)
}

func TestSuboptimalAcquirePresentsThenRebuilds(t *testing.T) {
	f := newFixture(t, fixtureOptions{frames: 2})
	f.drv.AcquireStatus = []gpu.Status{gpu.StatusSuboptimal}

	f.drawFrames(t, 1)
	assert.Equal(t, 1, f.drv.Presents)
	assert.Equal(t, uint64(1), f.engine.Stats().Rebuilds)
	assert.Zero(t, f.engine.Stats().Aborted)
	f.destroy(t)
}

func TestResizeEventRebuilds(t *testing.T) {
	f := newFixture(t, fixtureOptions{frames: 2})
	f.win.Sizes = [][2]int{{0, 0}, {1024, 768}}
	f.engine.Events().Push(Resized{Width: 1024, Height: 768})
	f.engine.Events().Push(PointerMoved{X: 3, Y: 4})

	f.drawFrames(t, 1)
	assert.Equal(t, uint64(1), f.engine.Stats().Rebuilds)
	assert.Equal(t, 1, f.win.WaitCalls)
	assert.Equal(t, gpu.Extent{Width: 1024, Height: 768}, f.surfaces.Current().Extent)
	assert.Equal(t, []Event{Resized{Width: 1024, Height: 768}, PointerMoved{X: 3, Y: 4}}, f.handler.events)

	f.drawFrames(t, 2)
	assert.Equal(t, uint64(1), f.engine.Stats().Rebuilds)
	f.destroy(t)
}

func TestDrawFrameRequiresDrawConfig(t *testing.T) {
	drv := gputest.NewDriver()
	queues, err := NewQueues(drv)
	require.NoError(t, err)
	surfaces := NewSurfaceManager(drv, gputest.NewWindow(), queues, SurfaceOptions{RenderPass: drv.RenderPass, Logs: quietLogs()})
	require.NoError(t, surfaces.CreateSwapchainSet())
	engine, err := NewEngine(drv, surfaces, queues, EngineOptions{Logs: quietLogs()})
	require.NoError(t, err)

	assert.Equal(t, DefaultFramesInFlight, engine.FramesInFlight())
	assert.ErrorIs(t, engine.DrawFrame(), ErrInvalidArgument)
	assert.ErrorIs(t, engine.SetDrawConfig(DrawConfig{DescriptorSets: make([]gpu.DescriptorSet, 3)}), ErrInvalidArgument)
	buf, size := engine.UniformBuffer(0)
	assert.Zero(t, buf)
	assert.Zero(t, size)
	engine.Destroy()
}

func TestDrawFrameSubmitFailure(t *testing.T) {
	f := newFixture(t, fixtureOptions{frames: 2})
	f.drv.FailOn("QueueSubmit", gputest.ErrInjected)

	err := f.engine.DrawFrame()
	assert.ErrorIs(t, err, ErrCreate)
	assert.ErrorIs(t, err, gputest.ErrInjected)
	assert.Zero(t, f.drv.Presents)
}

func TestEngineDestroyReleasesSlots(t *testing.T) {
	f := newFixture(t, fixtureOptions{frames: 3, lazy: true})
	f.drawFrames(t, 4)
	f.destroy(t)

	for _, kind := range []gpu.Kind{gpu.KindFence, gpu.KindSemaphore, gpu.KindCommandBuffer, gpu.KindBuffer, gpu.KindMemory} {
		assert.Zero(t, f.drv.Live(kind), kind.String())
	}
	assert.Zero(t, f.drv.Pending())
}
