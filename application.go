package framevk

import (
	"github.com/andewx/framevk/gpu"
	vk "github.com/vulkan-go/vulkan"
)

// Window is the platform surface host. The renderer only asks it for the
// current framebuffer size and lets it pump platform events.
type Window interface {
	// FramebufferSize reports the drawable size in pixels. Either value is
	// zero while the window is minimized.
	FramebufferSize() (width, height int)
	// WaitEvents blocks until at least one platform event arrives.
	WaitEvents()
	PollEvents()
	ShouldClose() bool
}

// FrameSource supplies the per frame uniform block.
type FrameSource interface {
	UniformSize() int
	// FrameData returns the uniform bytes for a frame rendered at extent.
	// The result is copied before FrameData is called again.
	FrameData(extent gpu.Extent) []byte
}

// EventHandler receives every drained event the engine does not consume
// itself.
type EventHandler interface {
	HandleEvent(ev Event)
}

// DrawConfig is the scene state recorded into every frame. DescriptorSets
// holds one set per frame slot.
type DrawConfig struct {
	Pipeline       gpu.Pipeline
	Layout         gpu.PipelineLayout
	VertexBuffer   gpu.Buffer
	IndexBuffer    gpu.Buffer
	IndexType      vk.IndexType
	IndexCount     uint32
	DescriptorSets []gpu.DescriptorSet
}

// ClearValues are applied at the start of every render pass.
type ClearValues struct {
	Color   [4]float32
	Depth   float32
	Stencil uint32
}

var DefaultClearValues = ClearValues{
	Color: [4]float32{0.3, 0.3, 0.3, 1},
	Depth: 1,
}

// RenderPassProvider builds a render pass compatible with the swapchain
// attachments. The provider owns the returned render pass.
type RenderPassProvider func(color, depth vk.Format, samples vk.SampleCountFlagBits) (gpu.RenderPass, error)
