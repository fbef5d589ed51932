package gpu

import vk "github.com/vulkan-go/vulkan"

// Status is the non-error outcome of acquire and present.
type Status int

const (
	StatusSuccess Status = iota
	StatusSuboptimal
	StatusOutOfDate
)

func (s Status) String() string {
	switch s {
	case StatusSuccess:
		return "success"
	case StatusSuboptimal:
		return "suboptimal"
	case StatusOutOfDate:
		return "out of date"
	}
	return "unknown"
}

// Extent is a two dimensional size in pixels.
type Extent struct {
	Width, Height uint32
}

func (e Extent) Empty() bool {
	return e.Width == 0 || e.Height == 0
}

type QueueFamily struct {
	Index          uint32
	Flags          vk.QueueFlags
	Count          uint32
	PresentSupport bool
}

type MemoryType struct {
	PropertyFlags vk.MemoryPropertyFlags
	HeapIndex     uint32
}

type MemoryRequirements struct {
	Size      uint64
	Alignment uint64
	TypeBits  uint32
}

type BufferInfo struct {
	Size          uint64
	Usage         vk.BufferUsageFlags
	SharingMode   vk.SharingMode
	QueueFamilies []uint32
}

type ImageInfo struct {
	Width, Height uint32
	MipLevels     uint32
	Format        vk.Format
	Samples       vk.SampleCountFlagBits
	Tiling        vk.ImageTiling
	Usage         vk.ImageUsageFlags
}

type ViewInfo struct {
	Image     Image
	Format    vk.Format
	Aspect    vk.ImageAspectFlags
	MipLevels uint32
}

// ImageBarrier is a single image memory barrier over a mip range.
type ImageBarrier struct {
	Image        Image
	OldLayout    vk.ImageLayout
	NewLayout    vk.ImageLayout
	SrcAccess    vk.AccessFlags
	DstAccess    vk.AccessFlags
	SrcStage     vk.PipelineStageFlags
	DstStage     vk.PipelineStageFlags
	Aspect       vk.ImageAspectFlags
	BaseMipLevel uint32
	LevelCount   uint32
}

// Blit copies SrcLevel onto DstLevel of the same image, scaling between the
// two extents.
type Blit struct {
	Image     Image
	SrcLevel  uint32
	SrcExtent Extent
	DstLevel  uint32
	DstExtent Extent
	Filter    vk.Filter
}

type RenderPassBegin struct {
	RenderPass   RenderPass
	Framebuffer  Framebuffer
	Extent       Extent
	ClearColor   [4]float32
	ClearDepth   float32
	ClearStencil uint32
	// Attachments counts the clear values the render pass consumes.
	Attachments int
}

type SubmitInfo struct {
	Wait       []Semaphore
	WaitStages []vk.PipelineStageFlags
	Commands   []CommandBuffer
	Signal     []Semaphore
}

type PresentInfo struct {
	Wait       []Semaphore
	Swapchain  Swapchain
	ImageIndex uint32
}

type SurfaceFormat struct {
	Format     vk.Format
	ColorSpace vk.ColorSpace
}

type SurfaceCapabilities struct {
	MinImageCount    uint32
	MaxImageCount    uint32
	CurrentExtent    Extent
	MinImageExtent   Extent
	MaxImageExtent   Extent
	CurrentTransform vk.SurfaceTransformFlagBits
	CompositeAlpha   vk.CompositeAlphaFlagBits
}

type SurfaceSupport struct {
	Capabilities SurfaceCapabilities
	Formats      []SurfaceFormat
	PresentModes []vk.PresentMode
}

type SwapchainInfo struct {
	MinImageCount  uint32
	Format         SurfaceFormat
	Extent         Extent
	PresentMode    vk.PresentMode
	SharingMode    vk.SharingMode
	QueueFamilies  []uint32
	PreTransform   vk.SurfaceTransformFlagBits
	CompositeAlpha vk.CompositeAlphaFlagBits
	OldSwapchain   Swapchain
}

type FramebufferInfo struct {
	RenderPass  RenderPass
	Attachments []ImageView
	Extent      Extent
}
