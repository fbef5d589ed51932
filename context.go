package framevk

import (
	"github.com/andewx/framevk/gpu"
	vk "github.com/vulkan-go/vulkan"
)

// frameSlot holds the objects one frame in flight uses. The CPU may touch the
// command buffer and uniform memory only after fence has signaled.
type frameSlot struct {
	fence          gpu.Fence
	imageAcquired  gpu.Semaphore
	renderFinished gpu.Semaphore
	cmd            gpu.CommandBuffer
	uniform        *BufferResource
}

// FrameStats counts engine activity since creation.
type FrameStats struct {
	Presented  uint64
	Rebuilds   uint64
	FenceWaits uint64
	Aborted    uint64
}

// Engine drives the per frame loop. It keeps up to K frames in flight and
// throttles the CPU on the oldest one.
type Engine struct {
	drv      gpu.Driver
	surfaces *SurfaceManager
	queues   *Queues
	events   *EventQueue
	handler  EventHandler
	source   FrameSource
	status   *StatusNotifier
	log      *Logs

	fences   *FenceManager
	commands *CommandBufferManager
	slots    []*frameSlot
	current  int
	resized  bool

	draw  *DrawConfig
	clear ClearValues
	stats FrameStats
}

// EngineOptions configures NewEngine. Nil Events and Status get private defaults.
type EngineOptions struct {
	FramesInFlight int
	Events         *EventQueue
	Handler        EventHandler
	Source         FrameSource
	Status         *StatusNotifier
	Clear          *ClearValues
	Logs           *Logs
}

// NewEngine allocates K frame slots: a signaled fence, two semaphores, a
// primary command buffer from a resettable pool and a mapped uniform buffer
// each. Slots live until Destroy; swapchain rebuilds do not touch them.
func NewEngine(drv gpu.Driver, surfaces *SurfaceManager, queues *Queues, opts EngineOptions) (*Engine, error) {
	k := opts.FramesInFlight
	if k < 1 {
		k = DefaultFramesInFlight
	}
	e := &Engine{
		drv:      drv,
		surfaces: surfaces,
		queues:   queues,
		events:   opts.Events,
		handler:  opts.Handler,
		source:   opts.Source,
		status:   opts.Status,
		log:      opts.Logs.orDefault(),
		fences:   NewFenceManager(drv),
		clear:    DefaultClearValues,
	}
	if e.events == nil {
		e.events = NewEventQueue()
	}
	if e.status == nil {
		e.status = &StatusNotifier{}
	}
	if opts.Clear != nil {
		e.clear = *opts.Clear
	}

	var err error
	e.commands, err = NewCommandBufferManager(drv, queues.Families.Graphics(), queues.Graphics, vk.CommandPoolCreateResetCommandBufferBit)
	if err != nil {
		return nil, err
	}
	cmds, err := e.commands.NewCommandBuffers(k)
	if err != nil {
		e.Destroy()
		return nil, err
	}
	for i := 0; i < k; i++ {
		slot := &frameSlot{cmd: cmds[i]}
		e.slots = append(e.slots, slot)
		if slot.fence, err = e.fences.NewFence(true); err != nil {
			e.Destroy()
			return nil, err
		}
		if slot.imageAcquired, err = drv.CreateSemaphore(); err != nil {
			e.Destroy()
			return nil, createError(err, "create image acquired semaphore")
		}
		if slot.renderFinished, err = drv.CreateSemaphore(); err != nil {
			e.Destroy()
			return nil, createError(err, "create render finished semaphore")
		}
		if e.source != nil && e.source.UniformSize() > 0 {
			slot.uniform, err = NewMappedBuffer(drv, uint64(e.source.UniformSize()), vk.BufferUsageFlags(vk.BufferUsageUniformBufferBit))
			if err != nil {
				e.Destroy()
				return nil, err
			}
		}
	}
	return e, nil
}

// FramesInFlight is K, the number of frame slots.
func (e *Engine) FramesInFlight() int { return len(e.slots) }

// CurrentFrame is the slot the next DrawFrame uses.
func (e *Engine) CurrentFrame() int { return e.current }

func (e *Engine) Stats() FrameStats { return e.stats }

func (e *Engine) Events() *EventQueue { return e.events }

// UniformBuffer returns slot i's uniform buffer so descriptor sets can point
// at it. It is zero when the engine has no FrameSource.
func (e *Engine) UniformBuffer(i int) (gpu.Buffer, uint64) {
	if i < 0 || i >= len(e.slots) || e.slots[i].uniform == nil {
		return 0, 0
	}
	u := e.slots[i].uniform
	return u.Buffer, u.Size
}

// SlotFence exposes slot i's fence for diagnostics.
func (e *Engine) SlotFence(i int) gpu.Fence {
	return e.slots[i].fence
}

// SetDrawConfig installs the scene state recorded each frame. It needs one
// descriptor set per slot, or none at all.
func (e *Engine) SetDrawConfig(cfg DrawConfig) error {
	if n := len(cfg.DescriptorSets); n != 0 && n != len(e.slots) {
		return invalidArgumentf("%d descriptor sets for %d frames in flight", n, len(e.slots))
	}
	if cfg.IndexType == 0 {
		cfg.IndexType = vk.IndexTypeUint32
	}
	e.draw = &cfg
	return nil
}

// drainEvents consumes the resize notifications and forwards the rest.
func (e *Engine) drainEvents() {
	for _, ev := range e.events.Drain() {
		if _, ok := ev.(Resized); ok {
			e.resized = true
		}
		if e.handler != nil {
			e.handler.HandleEvent(ev)
		}
	}
}

// DrawFrame renders and presents one frame in the current slot.
func (e *Engine) DrawFrame() error {
	if e.draw == nil {
		return invalidArgumentf("draw frame without a draw config")
	}
	e.drainEvents()

	slot := e.slots[e.current]
	e.stats.FenceWaits++
	if err := e.fences.Wait(slot.fence); err != nil {
		return err
	}

	set := e.surfaces.Current()
	if set == nil {
		return invalidArgumentf("draw frame with swapchain %s", e.surfaces.State())
	}
	index, status, err := e.drv.AcquireNextImage(set.Swapchain, vk.MaxUint64, slot.imageAcquired)
	if err != nil {
		return createError(err, "acquire next image")
	}
	rebuild := false
	switch status {
	case gpu.StatusOutOfDate:
		e.stats.Aborted++
		return e.rebuild("acquire out of date")
	case gpu.StatusSuboptimal:
		rebuild = true
	}
	if int(index) >= len(set.Framebuffers) {
		return invalidArgumentf("acquired image %d of %d", index, len(set.Framebuffers))
	}

	if err := e.fences.Reset(slot.fence); err != nil {
		return err
	}

	if e.source != nil && slot.uniform != nil {
		if err := slot.uniform.Write(e.source.FrameData(set.Extent)); err != nil {
			return err
		}
	}

	if err := e.record(slot, set, index); err != nil {
		return err
	}

	err = e.drv.QueueSubmit(e.queues.Graphics, gpu.SubmitInfo{
		Wait:       []gpu.Semaphore{slot.imageAcquired},
		WaitStages: []vk.PipelineStageFlags{vk.PipelineStageFlags(vk.PipelineStageColorAttachmentOutputBit)},
		Commands:   []gpu.CommandBuffer{slot.cmd},
		Signal:     []gpu.Semaphore{slot.renderFinished},
	}, slot.fence)
	if err != nil {
		return createError(err, "submit frame")
	}

	status, err = e.drv.QueuePresent(e.queues.Present, gpu.PresentInfo{
		Wait:       []gpu.Semaphore{slot.renderFinished},
		Swapchain:  set.Swapchain,
		ImageIndex: index,
	})
	if err != nil {
		return createError(err, "present frame")
	}
	e.stats.Presented++
	e.current = (e.current + 1) % len(e.slots)

	switch {
	case status == gpu.StatusOutOfDate:
		return e.rebuild("present out of date")
	case status == gpu.StatusSuboptimal || rebuild:
		return e.rebuild("suboptimal surface")
	case e.resized:
		return e.rebuild("window resized")
	}
	return nil
}

func (e *Engine) rebuild(reason string) error {
	e.resized = false
	e.log.Info.Printf("rebuilding swapchain: %s", reason)
	if err := e.surfaces.Rebuild(); err != nil {
		return err
	}
	e.stats.Rebuilds++
	return nil
}

// record fills the slot's command buffer from scratch. The pool resets the
// buffer implicitly on begin.
func (e *Engine) record(slot *frameSlot, set *SwapchainSet, index uint32) error {
	cmd := slot.cmd
	if err := e.drv.BeginCommandBuffer(cmd, 0); err != nil {
		return createError(err, "begin frame command buffer")
	}
	e.drv.CmdBeginRenderPass(cmd, gpu.RenderPassBegin{
		RenderPass:   set.RenderPass,
		Framebuffer:  set.Framebuffers[index],
		Extent:       set.Extent,
		ClearColor:   e.clear.Color,
		ClearDepth:   e.clear.Depth,
		ClearStencil: e.clear.Stencil,
		Attachments:  set.Attachments(),
	})
	e.drv.CmdBindPipeline(cmd, e.draw.Pipeline)
	e.drv.CmdSetViewport(cmd, set.Extent)
	e.drv.CmdSetScissor(cmd, set.Extent)
	e.drv.CmdBindVertexBuffer(cmd, e.draw.VertexBuffer)
	e.drv.CmdBindIndexBuffer(cmd, e.draw.IndexBuffer, e.draw.IndexType)
	if len(e.draw.DescriptorSets) > 0 {
		e.drv.CmdBindDescriptorSet(cmd, e.draw.Layout, e.draw.DescriptorSets[e.current])
	}
	e.drv.CmdDrawIndexed(cmd, e.draw.IndexCount)
	e.drv.CmdEndRenderPass(cmd)
	if err := e.drv.EndCommandBuffer(cmd); err != nil {
		return createError(err, "end frame command buffer")
	}
	return nil
}

// WaitIdle blocks until the GPU has finished all submitted work. Call it
// before destroying anything a frame may reference.
func (e *Engine) WaitIdle() error {
	if err := e.drv.DeviceWaitIdle(); err != nil {
		return createError(err, "wait for device idle")
	}
	return nil
}

// Destroy waits for the device and releases every slot.
func (e *Engine) Destroy() {
	if err := e.WaitIdle(); err != nil {
		e.log.Error.Print(err)
	}
	for _, slot := range e.slots {
		if slot.imageAcquired != 0 {
			e.drv.DestroySemaphore(slot.imageAcquired)
		}
		if slot.renderFinished != 0 {
			e.drv.DestroySemaphore(slot.renderFinished)
		}
		if slot.uniform != nil {
			slot.uniform.Destroy()
		}
	}
	e.slots = nil
	e.fences.Destroy()
	if e.commands != nil {
		e.commands.Destroy()
	}
}
