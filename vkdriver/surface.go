package vkdriver

import (
	"github.com/andewx/framevk/gpu"
	"github.com/pkg/errors"
	vk "github.com/vulkan-go/vulkan"
)

func extentOf(e vk.Extent2D) gpu.Extent {
	e.Deref()
	return gpu.Extent{Width: e.Width, Height: e.Height}
}

func (p *Platform) SurfaceSupport() (support gpu.SurfaceSupport, err error) {
	defer checkErr(&err)

	var caps vk.SurfaceCapabilities
	ret := vk.GetPhysicalDeviceSurfaceCapabilities(p.gpu, p.surface, &caps)
	orPanic(NewError(ret))
	caps.Deref()
	support.Capabilities = gpu.SurfaceCapabilities{
		MinImageCount:    caps.MinImageCount,
		MaxImageCount:    caps.MaxImageCount,
		CurrentExtent:    extentOf(caps.CurrentExtent),
		MinImageExtent:   extentOf(caps.MinImageExtent),
		MaxImageExtent:   extentOf(caps.MaxImageExtent),
		CurrentTransform: caps.CurrentTransform,
		CompositeAlpha:   compositeAlpha(caps.SupportedCompositeAlpha),
	}

	var formatCount uint32
	ret = vk.GetPhysicalDeviceSurfaceFormats(p.gpu, p.surface, &formatCount, nil)
	orPanic(NewError(ret))
	formats := make([]vk.SurfaceFormat, formatCount)
	ret = vk.GetPhysicalDeviceSurfaceFormats(p.gpu, p.surface, &formatCount, formats)
	orPanic(NewError(ret))
	for _, f := range formats {
		f.Deref()
		support.Formats = append(support.Formats, gpu.SurfaceFormat{
			Format:     f.Format,
			ColorSpace: f.ColorSpace,
		})
	}

	var modeCount uint32
	ret = vk.GetPhysicalDeviceSurfacePresentModes(p.gpu, p.surface, &modeCount, nil)
	orPanic(NewError(ret))
	support.PresentModes = make([]vk.PresentMode, modeCount)
	ret = vk.GetPhysicalDeviceSurfacePresentModes(p.gpu, p.surface, &modeCount, support.PresentModes)
	orPanic(NewError(ret))
	return support, nil
}

// compositeAlpha picks opaque when the surface allows it, else the first
// supported mode.
func compositeAlpha(supported vk.CompositeAlphaFlags) vk.CompositeAlphaFlagBits {
	modes := []vk.CompositeAlphaFlagBits{
		vk.CompositeAlphaOpaqueBit,
		vk.CompositeAlphaPreMultipliedBit,
		vk.CompositeAlphaPostMultipliedBit,
		vk.CompositeAlphaInheritBit,
	}
	for _, mode := range modes {
		if supported&vk.CompositeAlphaFlags(mode) != 0 {
			return mode
		}
	}
	return vk.CompositeAlphaOpaqueBit
}

func (p *Platform) CreateSwapchain(info gpu.SwapchainInfo) (gpu.Swapchain, error) {
	old := vk.NullSwapchain
	if info.OldSwapchain != 0 {
		obj, err := p.swapchains.get(info.OldSwapchain)
		if err != nil {
			return 0, err
		}
		old = obj.swapchain
	}
	var swapchain vk.Swapchain
	ret := vk.CreateSwapchain(p.device, &vk.SwapchainCreateInfo{
		SType:                 vk.StructureTypeSwapchainCreateInfo,
		Surface:               p.surface,
		MinImageCount:         info.MinImageCount,
		ImageFormat:           info.Format.Format,
		ImageColorSpace:       info.Format.ColorSpace,
		ImageExtent:           extent2D(info.Extent),
		ImageArrayLayers:      1,
		ImageUsage:            vk.ImageUsageFlags(vk.ImageUsageColorAttachmentBit),
		ImageSharingMode:      info.SharingMode,
		QueueFamilyIndexCount: uint32(len(info.QueueFamilies)),
		PQueueFamilyIndices:   info.QueueFamilies,
		PreTransform:          info.PreTransform,
		CompositeAlpha:        info.CompositeAlpha,
		PresentMode:           info.PresentMode,
		Clipped:               vk.True,
		OldSwapchain:          old,
	}, nil, &swapchain)
	if err := resultError(ret, "create swapchain"); err != nil {
		return 0, err
	}
	return p.swapchains.put(swapchainObject{swapchain: swapchain}), nil
}

// DestroySwapchain destroys the swapchain and forgets its images.
func (p *Platform) DestroySwapchain(sc gpu.Swapchain) {
	obj, ok := p.swapchains.take(sc)
	if !ok {
		return
	}
	for _, img := range obj.images {
		delete(p.images.items, img)
	}
	vk.DestroySwapchain(p.device, obj.swapchain, nil)
}

// SwapchainImages returns the same handles on every call for a swapchain.
func (p *Platform) SwapchainImages(sc gpu.Swapchain) ([]gpu.Image, error) {
	obj, err := p.swapchains.get(sc)
	if err != nil {
		return nil, err
	}
	if obj.images != nil {
		return obj.images, nil
	}
	var count uint32
	ret := vk.GetSwapchainImages(p.device, obj.swapchain, &count, nil)
	if err := resultError(ret, "get swapchain images"); err != nil {
		return nil, err
	}
	images := make([]vk.Image, count)
	ret = vk.GetSwapchainImages(p.device, obj.swapchain, &count, images)
	if err := resultError(ret, "get swapchain images"); err != nil {
		return nil, err
	}
	for _, img := range images {
		obj.images = append(obj.images, p.images.put(imageObject{image: img, swapchain: sc}))
	}
	p.swapchains.items[sc] = obj
	return obj.images, nil
}

func presentStatus(ret vk.Result) (gpu.Status, error) {
	switch ret {
	case vk.Success:
		return gpu.StatusSuccess, nil
	case vk.Suboptimal:
		return gpu.StatusSuboptimal, nil
	case vk.ErrorOutOfDate:
		return gpu.StatusOutOfDate, nil
	}
	return gpu.StatusSuccess, NewError(ret)
}

func (p *Platform) AcquireNextImage(sc gpu.Swapchain, timeout uint64, signal gpu.Semaphore) (uint32, gpu.Status, error) {
	obj, err := p.swapchains.get(sc)
	if err != nil {
		return 0, gpu.StatusSuccess, err
	}
	var index uint32
	ret := vk.AcquireNextImage(p.device, obj.swapchain, timeout, p.semaphores.must(signal), vk.NullFence, &index)
	status, err := presentStatus(ret)
	if err != nil {
		return 0, status, errors.Wrap(err, "acquire next image")
	}
	return index, status, nil
}

func (p *Platform) QueuePresent(queue gpu.Queue, info gpu.PresentInfo) (gpu.Status, error) {
	q, err := p.queues.get(queue)
	if err != nil {
		return gpu.StatusSuccess, err
	}
	obj, err := p.swapchains.get(info.Swapchain)
	if err != nil {
		return gpu.StatusSuccess, err
	}
	ret := vk.QueuePresent(q, &vk.PresentInfo{
		SType:              vk.StructureTypePresentInfo,
		WaitSemaphoreCount: uint32(len(info.Wait)),
		PWaitSemaphores:    p.semaphoreList(info.Wait),
		SwapchainCount:     1,
		PSwapchains:        []vk.Swapchain{obj.swapchain},
		PImageIndices:      []uint32{info.ImageIndex},
	})
	status, err := presentStatus(ret)
	if err != nil {
		return status, errors.Wrap(err, "queue present")
	}
	return status, nil
}

func (p *Platform) CreateFramebuffer(info gpu.FramebufferInfo) (gpu.Framebuffer, error) {
	pass, err := p.renderPasses.get(info.RenderPass)
	if err != nil {
		return 0, err
	}
	attachments := make([]vk.ImageView, len(info.Attachments))
	for i, view := range info.Attachments {
		if attachments[i], err = p.views.get(view); err != nil {
			return 0, err
		}
	}
	var fb vk.Framebuffer
	ret := vk.CreateFramebuffer(p.device, &vk.FramebufferCreateInfo{
		SType:           vk.StructureTypeFramebufferCreateInfo,
		RenderPass:      pass,
		AttachmentCount: uint32(len(attachments)),
		PAttachments:    attachments,
		Width:           info.Extent.Width,
		Height:          info.Extent.Height,
		Layers:          1,
	}, nil, &fb)
	if err := resultError(ret, "create framebuffer"); err != nil {
		return 0, err
	}
	return p.framebuffers.put(fb), nil
}

func (p *Platform) DestroyFramebuffer(fb gpu.Framebuffer) {
	if f, ok := p.framebuffers.take(fb); ok {
		vk.DestroyFramebuffer(p.device, f, nil)
	}
}
