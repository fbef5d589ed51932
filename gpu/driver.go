package gpu

import vk "github.com/vulkan-go/vulkan"

// MemoryDriver creates and binds resources and their memory.
type MemoryDriver interface {
	MemoryTypes() []MemoryType
	FormatFeatures(format vk.Format, tiling vk.ImageTiling) vk.FormatFeatureFlags

	CreateBuffer(info BufferInfo) (Buffer, MemoryRequirements, error)
	DestroyBuffer(buf Buffer)
	CreateImage(info ImageInfo) (Image, MemoryRequirements, error)
	DestroyImage(img Image)
	CreateImageView(info ViewInfo) (ImageView, error)
	DestroyImageView(view ImageView)

	AllocateMemory(size uint64, typeIndex uint32) (Memory, error)
	FreeMemory(mem Memory)
	BindBufferMemory(buf Buffer, mem Memory) error
	BindImageMemory(img Image, mem Memory) error

	// MapMemory returns a slice aliasing the mapped range. It stays valid
	// until UnmapMemory.
	MapMemory(mem Memory, offset, size uint64) ([]byte, error)
	UnmapMemory(mem Memory)
}

// CommandDriver owns command pools and records into command buffers.
type CommandDriver interface {
	CreateCommandPool(family uint32, flags vk.CommandPoolCreateFlags) (CommandPool, error)
	DestroyCommandPool(pool CommandPool)
	AllocateCommandBuffers(pool CommandPool, count int) ([]CommandBuffer, error)
	FreeCommandBuffers(pool CommandPool, cmds []CommandBuffer)

	BeginCommandBuffer(cmd CommandBuffer, usage vk.CommandBufferUsageFlags) error
	EndCommandBuffer(cmd CommandBuffer) error

	CmdCopyBuffer(cmd CommandBuffer, src, dst Buffer, size uint64)
	CmdCopyBufferToImage(cmd CommandBuffer, src Buffer, dst Image, extent Extent)
	CmdPipelineBarrier(cmd CommandBuffer, barrier ImageBarrier)
	CmdBlitImage(cmd CommandBuffer, blit Blit)
	CmdBeginRenderPass(cmd CommandBuffer, begin RenderPassBegin)
	CmdEndRenderPass(cmd CommandBuffer)
	CmdBindPipeline(cmd CommandBuffer, pipeline Pipeline)
	CmdSetViewport(cmd CommandBuffer, extent Extent)
	CmdSetScissor(cmd CommandBuffer, extent Extent)
	CmdBindVertexBuffer(cmd CommandBuffer, buf Buffer)
	CmdBindIndexBuffer(cmd CommandBuffer, buf Buffer, indexType vk.IndexType)
	CmdBindDescriptorSet(cmd CommandBuffer, layout PipelineLayout, set DescriptorSet)
	CmdDrawIndexed(cmd CommandBuffer, indexCount uint32)
}

// SyncDriver covers queue submission and the CPU visible waits.
type SyncDriver interface {
	CreateFence(signaled bool) (Fence, error)
	DestroyFence(fence Fence)
	WaitForFence(fence Fence, timeout uint64) error
	ResetFence(fence Fence) error
	CreateSemaphore() (Semaphore, error)
	DestroySemaphore(sem Semaphore)

	QueueSubmit(queue Queue, info SubmitInfo, fence Fence) error
	QueueWaitIdle(queue Queue) error
	DeviceWaitIdle() error
}

// SurfaceDriver manages the presentation chain of the driver's surface.
type SurfaceDriver interface {
	SurfaceSupport() (SurfaceSupport, error)
	CreateSwapchain(info SwapchainInfo) (Swapchain, error)
	DestroySwapchain(sc Swapchain)
	SwapchainImages(sc Swapchain) ([]Image, error)
	AcquireNextImage(sc Swapchain, timeout uint64, signal Semaphore) (uint32, Status, error)
	QueuePresent(queue Queue, info PresentInfo) (Status, error)
	CreateFramebuffer(info FramebufferInfo) (Framebuffer, error)
	DestroyFramebuffer(fb Framebuffer)
}

// DescriptorDriver allocates descriptor sets and points them at resources.
type DescriptorDriver interface {
	AllocateDescriptorSets(layout DescriptorSetLayout, count int) ([]DescriptorSet, error)
	WriteBufferDescriptor(set DescriptorSet, binding uint32, buf Buffer, size uint64)
	WriteImageDescriptor(set DescriptorSet, binding uint32, view ImageView, sampler Sampler)
}

// Driver is a logical device bound to one presentation surface.
type Driver interface {
	MemoryDriver
	CommandDriver
	SyncDriver
	SurfaceDriver
	DescriptorDriver

	QueueFamilies() []QueueFamily
	Queue(family uint32) Queue
}
