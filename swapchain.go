package framevk

import (
	"github.com/andewx/framevk/gpu"
	vk "github.com/vulkan-go/vulkan"
)

const swapchainOwner = "swapchain"

type SwapchainState int

const (
	SwapchainUninitialized SwapchainState = iota
	SwapchainReady
	SwapchainRebuilding
)

func (s SwapchainState) String() string {
	switch s {
	case SwapchainUninitialized:
		return "uninitialized"
	case SwapchainReady:
		return "ready"
	case SwapchainRebuilding:
		return "rebuilding"
	}
	return "unknown"
}

//Presentable images of one swapchain generation together with everything sized to them. Images,
//Views and Framebuffers are index aligned.
type SwapchainSet struct {
	Swapchain    gpu.Swapchain
	Format       gpu.SurfaceFormat
	PresentMode  vk.PresentMode
	Extent       gpu.Extent
	Images       []gpu.Image
	Views        []gpu.ImageView
	Framebuffers []gpu.Framebuffer
	Color        *ImageResource
	Depth        *ImageResource
	RenderPass   gpu.RenderPass
	Samples      vk.SampleCountFlagBits
	Generation   uint64
}

//Number of attachments, and so clear values, in each framebuffer.
func (s *SwapchainSet) Attachments() int {
	if s.Color != nil {
		return 3
	}
	return 2
}

//Owns the swapchain set and rebuilds it when the surface changes. Teardown is always complete
//before the next set is created.
type SurfaceManager struct {
	drv        gpu.Driver
	win        Window
	queues     *Queues
	arena      *Arena
	renderPass RenderPassProvider
	status     *StatusNotifier
	log        *Logs

	presentMode vk.PresentMode
	samples     vk.SampleCountFlagBits
	preferred   gpu.SurfaceFormat

	state      SwapchainState
	set        *SwapchainSet
	generation uint64
	passes     map[renderPassKey]gpu.RenderPass
}

type renderPassKey struct {
	color, depth vk.Format
	samples      vk.SampleCountFlagBits
}

var PreferredSurfaceFormat = gpu.SurfaceFormat{
	Format:     vk.FormatB8g8r8a8Srgb,
	ColorSpace: vk.ColorSpaceSrgbNonlinear,
}

var depthCandidates = []vk.Format{
	vk.FormatD32Sfloat,
	vk.FormatD32SfloatS8Uint,
	vk.FormatD24UnormS8Uint,
}

// SurfaceOptions configures NewSurfaceManager.
type SurfaceOptions struct {
	PresentMode vk.PresentMode
	Samples     vk.SampleCountFlagBits
	RenderPass  RenderPassProvider
	Status      *StatusNotifier
	Arena       *Arena
	Logs        *Logs
}

func NewSurfaceManager(drv gpu.Driver, win Window, queues *Queues, opts SurfaceOptions) *SurfaceManager {
	m := &SurfaceManager{
		drv:         drv,
		win:         win,
		queues:      queues,
		arena:       opts.Arena,
		renderPass:  opts.RenderPass,
		status:      opts.Status,
		log:         opts.Logs.orDefault(),
		presentMode: opts.PresentMode,
		samples:     opts.Samples,
		preferred:   PreferredSurfaceFormat,
		passes:      make(map[renderPassKey]gpu.RenderPass),
	}
	if m.arena == nil {
		m.arena = NewArena()
	}
	if m.status == nil {
		m.status = &StatusNotifier{}
	}
	if m.samples == 0 {
		m.samples = vk.SampleCount1Bit
	}
	return m
}

func (m *SurfaceManager) State() SwapchainState { return m.state }

//Current set, nil unless the manager is Ready.
func (m *SurfaceManager) Current() *SwapchainSet {
	if m.state != SwapchainReady {
		return nil
	}
	return m.set
}

//Image count policy: one more than the minimum, clamped to the maximum when the surface declares one.
func ChooseImageCount(caps gpu.SurfaceCapabilities) uint32 {
	count := caps.MinImageCount + 1
	if count < caps.MinImageCount {
		count = caps.MinImageCount
	}
	if caps.MaxImageCount > 0 && count > caps.MaxImageCount {
		count = caps.MaxImageCount
	}
	return count
}

//Preferred format when listed, otherwise the first supported entry.
func ChooseSurfaceFormat(formats []gpu.SurfaceFormat, preferred gpu.SurfaceFormat) (gpu.SurfaceFormat, error) {
	if len(formats) == 0 {
		return gpu.SurfaceFormat{}, configErrorf("surface reports no formats")
	}
	for _, f := range formats {
		if f == preferred {
			return f, nil
		}
	}
	return formats[0], nil
}

//Preferred mode when listed, otherwise FIFO which every surface must support.
func ChoosePresentMode(modes []vk.PresentMode, preferred vk.PresentMode) (vk.PresentMode, error) {
	if len(modes) == 0 {
		return 0, configErrorf("surface reports no present modes")
	}
	for _, mode := range modes {
		if mode == preferred {
			return mode, nil
		}
	}
	return vk.PresentModeFifo, nil
}

//Current extent unless the surface leaves it undefined, in which case the framebuffer size is
//clamped into the supported range.
func ChooseExtent(caps gpu.SurfaceCapabilities, width, height int) gpu.Extent {
	if caps.CurrentExtent.Width != vk.MaxUint32 {
		return caps.CurrentExtent
	}
	return gpu.Extent{
		Width:  clampDim(width, caps.MinImageExtent.Width, caps.MaxImageExtent.Width),
		Height: clampDim(height, caps.MinImageExtent.Height, caps.MaxImageExtent.Height),
	}
}

func clampDim(v int, lo, hi uint32) uint32 {
	if v < 0 {
		v = 0
	}
	out := uint32(v)
	if out < lo {
		out = lo
	}
	if hi > 0 && out > hi {
		out = hi
	}
	return out
}

//Blocks on platform events until the framebuffer has a non-zero size, reporting idle meanwhile.
func (m *SurfaceManager) waitForSize() (int, int) {
	w, h := m.win.FramebufferSize()
	for w <= 0 || h <= 0 {
		m.status.Set(StatusIdle)
		m.status.Notify()
		m.win.WaitEvents()
		w, h = m.win.FramebufferSize()
	}
	return w, h
}

//First depth candidate usable as an optimal tiling depth attachment.
func (m *SurfaceManager) depthFormat() (vk.Format, error) {
	for _, format := range depthCandidates {
		features := m.drv.FormatFeatures(format, vk.ImageTilingOptimal)
		if features&vk.FormatFeatureFlags(vk.FormatFeatureDepthStencilAttachmentBit) != 0 {
			return format, nil
		}
	}
	return vk.FormatUndefined, configErrorf("no supported depth format")
}

func (m *SurfaceManager) CreateSwapchainSet() error {
	if m.state == SwapchainReady {
		return invalidArgumentf("swapchain set already created")
	}
	if err := m.create(); err != nil {
		m.arena.ReleaseOwner(swapchainOwner)
		m.set = nil
		if m.state != SwapchainRebuilding {
			m.state = SwapchainUninitialized
		}
		return err
	}
	m.state = SwapchainReady
	m.status.Set(StatusRunning)
	return nil
}

func (m *SurfaceManager) create() error {
	var (
		support gpu.SurfaceSupport
		extent  gpu.Extent
		err     error
	)
	for {
		w, h := m.waitForSize()
		support, err = m.drv.SurfaceSupport()
		if err != nil {
			return createError(err, "query surface support")
		}
		extent = ChooseExtent(support.Capabilities, w, h)
		if !extent.Empty() {
			break
		}
		m.status.Set(StatusIdle)
		m.status.Notify()
		m.win.WaitEvents()
	}

	format, err := ChooseSurfaceFormat(support.Formats, m.preferred)
	if err != nil {
		return err
	}
	mode, err := ChoosePresentMode(support.PresentModes, m.presentMode)
	if err != nil {
		return err
	}
	depthFormat, err := m.depthFormat()
	if err != nil {
		return err
	}

	sharing, families := m.queues.Families.SharingFor(RoleGraphics, RolePresent)
	sc, err := m.drv.CreateSwapchain(gpu.SwapchainInfo{
		MinImageCount:  ChooseImageCount(support.Capabilities),
		Format:         format,
		Extent:         extent,
		PresentMode:    mode,
		SharingMode:    sharing,
		QueueFamilies:  families,
		PreTransform:   support.Capabilities.CurrentTransform,
		CompositeAlpha: support.Capabilities.CompositeAlpha,
	})
	if err != nil {
		return createError(err, "create swapchain")
	}
	set := &SwapchainSet{
		Swapchain:   sc,
		Format:      format,
		PresentMode: mode,
		Extent:      extent,
		Samples:     m.samples,
	}
	m.set = set
	if err := m.arena.Track(swapchainOwner, gpu.KindSwapchain, gpu.Handle(sc), func() { m.drv.DestroySwapchain(sc) }); err != nil {
		m.drv.DestroySwapchain(sc)
		return err
	}

	set.Images, err = m.drv.SwapchainImages(sc)
	if err != nil {
		return createError(err, "get swapchain images")
	}
	for _, img := range set.Images {
		// Swapchain images are released with their swapchain.
		if err := m.arena.Track(swapchainOwner, gpu.KindImage, gpu.Handle(img), nil,
			ParentOf(gpu.KindSwapchain, gpu.Handle(sc))); err != nil {
			return err
		}
	}

	if m.samples != vk.SampleCount1Bit {
		set.Color, err = newImage(m.drv, gpu.ImageInfo{
			Width:   extent.Width,
			Height:  extent.Height,
			Format:  format.Format,
			Samples: m.samples,
			Tiling:  vk.ImageTilingOptimal,
			Usage:   vk.ImageUsageFlags(vk.ImageUsageTransientAttachmentBit | vk.ImageUsageColorAttachmentBit),
		}, vk.ImageAspectFlags(vk.ImageAspectColorBit), deviceLocal)
		if err != nil {
			return err
		}
		if err := set.Color.Track(m.arena, swapchainOwner); err != nil {
			return err
		}
	}
	set.Depth, err = newImage(m.drv, gpu.ImageInfo{
		Width:   extent.Width,
		Height:  extent.Height,
		Format:  depthFormat,
		Samples: m.samples,
		Tiling:  vk.ImageTilingOptimal,
		Usage:   vk.ImageUsageFlags(vk.ImageUsageDepthStencilAttachmentBit),
	}, vk.ImageAspectFlags(vk.ImageAspectDepthBit), deviceLocal)
	if err != nil {
		return err
	}
	if err := set.Depth.Track(m.arena, swapchainOwner); err != nil {
		return err
	}

	set.Views = make([]gpu.ImageView, 0, len(set.Images))
	for _, img := range set.Images {
		view, err := m.drv.CreateImageView(gpu.ViewInfo{
			Image:     img,
			Format:    format.Format,
			Aspect:    vk.ImageAspectFlags(vk.ImageAspectColorBit),
			MipLevels: 1,
		})
		if err != nil {
			return createError(err, "create swapchain image view")
		}
		set.Views = append(set.Views, view)
		if err := m.arena.Track(swapchainOwner, gpu.KindImageView, gpu.Handle(view), func() { m.drv.DestroyImageView(view) },
			ParentOf(gpu.KindImage, gpu.Handle(img))); err != nil {
			return err
		}
	}

	set.RenderPass, err = m.renderPassFor(format.Format, depthFormat)
	if err != nil {
		return err
	}

	set.Framebuffers = make([]gpu.Framebuffer, 0, len(set.Views))
	for _, view := range set.Views {
		attachments := []gpu.ImageView{view, set.Depth.View}
		if set.Color != nil {
			attachments = []gpu.ImageView{set.Color.View, set.Depth.View, view}
		}
		fb, err := m.drv.CreateFramebuffer(gpu.FramebufferInfo{
			RenderPass:  set.RenderPass,
			Attachments: attachments,
			Extent:      extent,
		})
		if err != nil {
			return createError(err, "create framebuffer")
		}
		set.Framebuffers = append(set.Framebuffers, fb)
		parents := make([]Parent, 0, len(attachments))
		for _, a := range attachments {
			parents = append(parents, ParentOf(gpu.KindImageView, gpu.Handle(a)))
		}
		if err := m.arena.Track(swapchainOwner, gpu.KindFramebuffer, gpu.Handle(fb), func() { m.drv.DestroyFramebuffer(fb) },
			parents...); err != nil {
			return err
		}
	}

	m.generation++
	set.Generation = m.generation
	m.log.Info.Printf("swapchain generation %d: %d images %dx%d format %d present mode %d",
		set.Generation, len(set.Images), extent.Width, extent.Height, format.Format, mode)
	return nil
}

func (m *SurfaceManager) renderPassFor(color, depth vk.Format) (gpu.RenderPass, error) {
	if m.renderPass == nil {
		return 0, invalidArgumentf("no render pass provider")
	}
	key := renderPassKey{color, depth, m.samples}
	if rp, ok := m.passes[key]; ok {
		return rp, nil
	}
	rp, err := m.renderPass(color, depth, m.samples)
	if err != nil {
		return 0, createError(err, "create render pass")
	}
	m.passes[key] = rp
	return rp, nil
}

//Releases the whole set: framebuffers, views, depth and color targets, then the swapchain.
func (m *SurfaceManager) DestroySwapchainSet() error {
	if m.state == SwapchainUninitialized {
		return nil
	}
	err := m.arena.ReleaseOwner(swapchainOwner)
	m.set = nil
	if m.state != SwapchainRebuilding {
		m.state = SwapchainUninitialized
	}
	return err
}

//Tears the set down and builds a new one for the current surface size. Blocks while the window
//has no area and waits for the device to go idle before destroying anything.
func (m *SurfaceManager) Rebuild() error {
	if m.state == SwapchainRebuilding {
		return invalidArgumentf("swapchain rebuild is not re-entrant")
	}
	m.state = SwapchainRebuilding
	m.waitForSize()
	if err := m.drv.DeviceWaitIdle(); err != nil {
		m.state = SwapchainUninitialized
		return createError(err, "wait for device idle")
	}
	if err := m.DestroySwapchainSet(); err != nil {
		m.state = SwapchainUninitialized
		return err
	}
	if err := m.CreateSwapchainSet(); err != nil {
		m.state = SwapchainUninitialized
		return err
	}
	return nil
}
