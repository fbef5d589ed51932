package framevk

import (
	"github.com/andewx/framevk/gpu"
	vk "github.com/vulkan-go/vulkan"
)

// FenceManager owns the per slot fences. Fences are created signaled so the
// first wait on every slot returns at once.
// The manager is not thread-safe; a single thread drives the frame loop.
type FenceManager struct {
	drv    gpu.Driver
	fences []gpu.Fence
}

func NewFenceManager(drv gpu.Driver) *FenceManager {
	return &FenceManager{drv: drv}
}

func (f *FenceManager) NewFence(signaled bool) (gpu.Fence, error) {
	fence, err := f.drv.CreateFence(signaled)
	if err != nil {
		return 0, createError(err, "create fence")
	}
	f.fences = append(f.fences, fence)
	return fence, nil
}

// Wait blocks until the GPU signals the fence. The timeout is unbounded; a
// GPU that never signals is unrecoverable.
func (f *FenceManager) Wait(fence gpu.Fence) error {
	if err := f.drv.WaitForFence(fence, vk.MaxUint64); err != nil {
		return createError(err, "wait for fence")
	}
	return nil
}

// Reset returns a signaled fence to the unsignaled state. Callers reset only
// after a successful Wait so no signal is lost.
func (f *FenceManager) Reset(fence gpu.Fence) error {
	if err := f.drv.ResetFence(fence); err != nil {
		return createError(err, "reset fence")
	}
	return nil
}

func (f *FenceManager) Destroy() {
	for _, fence := range f.fences {
		f.drv.DestroyFence(fence)
	}
	f.fences = nil
}

// CommandBufferManager allocates command buffers from one pool bound to a
// queue family.
// The manager is not thread-safe and for recording in multiple threads, multiple per-thread managers
// should be used.
type CommandBufferManager struct {
	drv     gpu.Driver
	pool    gpu.CommandPool
	queue   gpu.Queue
	buffers []gpu.CommandBuffer
}

// NewCommandBufferManager creates the pool. Pass ResetCommandBufferBit for
// buffers that are re-recorded every frame and TransientBit for one-shot
// work such as uploads.
func NewCommandBufferManager(drv gpu.Driver, family uint32, queue gpu.Queue, flags vk.CommandPoolCreateFlagBits) (*CommandBufferManager, error) {
	pool, err := drv.CreateCommandPool(family, vk.CommandPoolCreateFlags(flags))
	if err != nil {
		return nil, createError(err, "create command pool")
	}
	return &CommandBufferManager{
		drv:   drv,
		pool:  pool,
		queue: queue,
	}, nil
}

// NewCommandBuffers allocates count primary command buffers owned by the
// manager until Destroy.
func (c *CommandBufferManager) NewCommandBuffers(count int) ([]gpu.CommandBuffer, error) {
	cmds, err := c.drv.AllocateCommandBuffers(c.pool, count)
	if err != nil {
		return nil, createError(err, "allocate command buffers")
	}
	c.buffers = append(c.buffers, cmds...)
	return cmds, nil
}

// RunOnce records fn into a fresh one-shot command buffer, submits it and
// blocks until the queue drains. The buffer is freed before returning.
func (c *CommandBufferManager) RunOnce(fn func(cmd gpu.CommandBuffer) error) error {
	cmds, err := c.drv.AllocateCommandBuffers(c.pool, 1)
	if err != nil {
		return createError(err, "allocate one-shot command buffer")
	}
	defer c.drv.FreeCommandBuffers(c.pool, cmds)
	cmd := cmds[0]

	if err := c.drv.BeginCommandBuffer(cmd, vk.CommandBufferUsageFlags(vk.CommandBufferUsageOneTimeSubmitBit)); err != nil {
		return createError(err, "begin one-shot command buffer")
	}
	if err := fn(cmd); err != nil {
		c.drv.EndCommandBuffer(cmd)
		return err
	}
	if err := c.drv.EndCommandBuffer(cmd); err != nil {
		return createError(err, "end one-shot command buffer")
	}
	if err := c.drv.QueueSubmit(c.queue, gpu.SubmitInfo{Commands: cmds}, 0); err != nil {
		return createError(err, "submit one-shot command buffer")
	}
	if err := c.drv.QueueWaitIdle(c.queue); err != nil {
		return createError(err, "wait for one-shot command buffer")
	}
	return nil
}

func (c *CommandBufferManager) Destroy() {
	if len(c.buffers) > 0 {
		c.drv.FreeCommandBuffers(c.pool, c.buffers)
		c.buffers = nil
	}
	if c.pool != 0 {
		c.drv.DestroyCommandPool(c.pool)
		c.pool = 0
	}
}
