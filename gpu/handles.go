// Package gpu defines the device seam the frame engine is written against.
//
// Handles are opaque integers owned by a Driver. The Vulkan backend maps them
// onto vulkan-go objects; the gputest package maps them onto an in-memory
// model of a GPU. Plain values (layouts, access masks, formats, usage bits)
// use the vulkan-go enum types directly.
package gpu

import "fmt"

// Handle is an opaque reference to a driver-owned object. Zero is never a
// valid handle.
type Handle uint64

const NullHandle Handle = 0

type (
	Buffer              Handle
	Memory              Handle
	Image               Handle
	ImageView           Handle
	Sampler             Handle
	Framebuffer         Handle
	RenderPass          Handle
	Pipeline            Handle
	PipelineLayout      Handle
	DescriptorSetLayout Handle
	DescriptorSet       Handle
	CommandPool         Handle
	CommandBuffer       Handle
	Fence               Handle
	Semaphore           Handle
	Swapchain           Handle
	Queue               Handle
)

// Kind names the object class of a handle. It keys ownership tables and
// diagnostics.
type Kind uint8

const (
	KindBuffer Kind = iota + 1
	KindMemory
	KindImage
	KindImageView
	KindSampler
	KindFramebuffer
	KindRenderPass
	KindPipeline
	KindPipelineLayout
	KindDescriptorSetLayout
	KindDescriptorSet
	KindCommandPool
	KindCommandBuffer
	KindFence
	KindSemaphore
	KindSwapchain
	KindQueue
)

var kindNames = map[Kind]string{
	KindBuffer:              "buffer",
	KindMemory:              "memory",
	KindImage:               "image",
	KindImageView:           "image view",
	KindSampler:             "sampler",
	KindFramebuffer:         "framebuffer",
	KindRenderPass:          "render pass",
	KindPipeline:            "pipeline",
	KindPipelineLayout:      "pipeline layout",
	KindDescriptorSetLayout: "descriptor set layout",
	KindDescriptorSet:       "descriptor set",
	KindCommandPool:         "command pool",
	KindCommandBuffer:       "command buffer",
	KindFence:               "fence",
	KindSemaphore:           "semaphore",
	KindSwapchain:           "swapchain",
	KindQueue:               "queue",
}

func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("kind(%d)", uint8(k))
}
