package vkdriver

import (
	"unsafe"

	"github.com/andewx/framevk/gpu"
	"github.com/pkg/errors"
	vk "github.com/vulkan-go/vulkan"
)

func (p *Platform) MemoryTypes() []gpu.MemoryType {
	return p.memoryTypes
}

func (p *Platform) FormatFeatures(format vk.Format, tiling vk.ImageTiling) vk.FormatFeatureFlags {
	var props vk.FormatProperties
	vk.GetPhysicalDeviceFormatProperties(p.gpu, format, &props)
	props.Deref()
	if tiling == vk.ImageTilingLinear {
		return props.LinearTilingFeatures
	}
	return props.OptimalTilingFeatures
}

func requirements(reqs vk.MemoryRequirements) gpu.MemoryRequirements {
	reqs.Deref()
	return gpu.MemoryRequirements{
		Size:      uint64(reqs.Size),
		Alignment: uint64(reqs.Alignment),
		TypeBits:  reqs.MemoryTypeBits,
	}
}

func (p *Platform) CreateBuffer(info gpu.BufferInfo) (gpu.Buffer, gpu.MemoryRequirements, error) {
	var buffer vk.Buffer
	ret := vk.CreateBuffer(p.device, &vk.BufferCreateInfo{
		SType:                 vk.StructureTypeBufferCreateInfo,
		Size:                  vk.DeviceSize(info.Size),
		Usage:                 info.Usage,
		SharingMode:           info.SharingMode,
		QueueFamilyIndexCount: uint32(len(info.QueueFamilies)),
		PQueueFamilyIndices:   info.QueueFamilies,
	}, nil, &buffer)
	if err := resultError(ret, "create buffer"); err != nil {
		return 0, gpu.MemoryRequirements{}, err
	}
	var reqs vk.MemoryRequirements
	vk.GetBufferMemoryRequirements(p.device, buffer, &reqs)
	return p.buffers.put(buffer), requirements(reqs), nil
}

func (p *Platform) DestroyBuffer(buf gpu.Buffer) {
	if b, ok := p.buffers.take(buf); ok {
		vk.DestroyBuffer(p.device, b, nil)
	}
}

func (p *Platform) CreateImage(info gpu.ImageInfo) (gpu.Image, gpu.MemoryRequirements, error) {
	samples := info.Samples
	if samples == 0 {
		samples = vk.SampleCount1Bit
	}
	levels := info.MipLevels
	if levels == 0 {
		levels = 1
	}
	var image vk.Image
	ret := vk.CreateImage(p.device, &vk.ImageCreateInfo{
		SType:     vk.StructureTypeImageCreateInfo,
		ImageType: vk.ImageType2d,
		Format:    info.Format,
		Extent: vk.Extent3D{
			Width:  info.Width,
			Height: info.Height,
			Depth:  1,
		},
		MipLevels:     levels,
		ArrayLayers:   1,
		Samples:       samples,
		Tiling:        info.Tiling,
		Usage:         info.Usage,
		SharingMode:   vk.SharingModeExclusive,
		InitialLayout: vk.ImageLayoutUndefined,
	}, nil, &image)
	if err := resultError(ret, "create image"); err != nil {
		return 0, gpu.MemoryRequirements{}, err
	}
	var reqs vk.MemoryRequirements
	vk.GetImageMemoryRequirements(p.device, image, &reqs)
	return p.images.put(imageObject{image: image}), requirements(reqs), nil
}

func (p *Platform) DestroyImage(img gpu.Image) {
	obj, ok := p.images.items[img]
	if !ok || obj.swapchain != 0 {
		return
	}
	delete(p.images.items, img)
	vk.DestroyImage(p.device, obj.image, nil)
}

func (p *Platform) CreateImageView(info gpu.ViewInfo) (gpu.ImageView, error) {
	img, err := p.images.get(info.Image)
	if err != nil {
		return 0, err
	}
	levels := info.MipLevels
	if levels == 0 {
		levels = 1
	}
	aspect := info.Aspect
	if aspect == 0 {
		aspect = vk.ImageAspectFlags(vk.ImageAspectColorBit)
	}
	var view vk.ImageView
	ret := vk.CreateImageView(p.device, &vk.ImageViewCreateInfo{
		SType:    vk.StructureTypeImageViewCreateInfo,
		Image:    img.image,
		ViewType: vk.ImageViewType2d,
		Format:   info.Format,
		Components: vk.ComponentMapping{
			R: vk.ComponentSwizzleIdentity,
			G: vk.ComponentSwizzleIdentity,
			B: vk.ComponentSwizzleIdentity,
			A: vk.ComponentSwizzleIdentity,
		},
		SubresourceRange: vk.ImageSubresourceRange{
			AspectMask:     aspect,
			BaseMipLevel:   0,
			LevelCount:     levels,
			BaseArrayLayer: 0,
			LayerCount:     1,
		},
	}, nil, &view)
	if err := resultError(ret, "create image view"); err != nil {
		return 0, err
	}
	return p.views.put(view), nil
}

func (p *Platform) DestroyImageView(view gpu.ImageView) {
	if v, ok := p.views.take(view); ok {
		vk.DestroyImageView(p.device, v, nil)
	}
}

func (p *Platform) AllocateMemory(size uint64, typeIndex uint32) (gpu.Memory, error) {
	var memory vk.DeviceMemory
	ret := vk.AllocateMemory(p.device, &vk.MemoryAllocateInfo{
		SType:           vk.StructureTypeMemoryAllocateInfo,
		AllocationSize:  vk.DeviceSize(size),
		MemoryTypeIndex: typeIndex,
	}, nil, &memory)
	if err := resultError(ret, "allocate memory"); err != nil {
		return 0, err
	}
	return p.memory.put(memory), nil
}

func (p *Platform) FreeMemory(mem gpu.Memory) {
	if m, ok := p.memory.take(mem); ok {
		vk.FreeMemory(p.device, m, nil)
	}
}

func (p *Platform) BindBufferMemory(buf gpu.Buffer, mem gpu.Memory) error {
	b, err := p.buffers.get(buf)
	if err != nil {
		return err
	}
	m, err := p.memory.get(mem)
	if err != nil {
		return err
	}
	return resultError(vk.BindBufferMemory(p.device, b, m, 0), "bind buffer memory")
}

func (p *Platform) BindImageMemory(img gpu.Image, mem gpu.Memory) error {
	i, err := p.images.get(img)
	if err != nil {
		return err
	}
	m, err := p.memory.get(mem)
	if err != nil {
		return err
	}
	return resultError(vk.BindImageMemory(p.device, i.image, m, 0), "bind image memory")
}

func (p *Platform) MapMemory(mem gpu.Memory, offset, size uint64) ([]byte, error) {
	m, err := p.memory.get(mem)
	if err != nil {
		return nil, err
	}
	if size == 0 {
		return nil, errors.New("map of zero bytes")
	}
	var data unsafe.Pointer
	ret := vk.MapMemory(p.device, m, vk.DeviceSize(offset), vk.DeviceSize(size), 0, &data)
	if err := resultError(ret, "map memory"); err != nil {
		return nil, err
	}
	return unsafe.Slice((*byte)(data), size), nil
}

func (p *Platform) UnmapMemory(mem gpu.Memory) {
	if m, ok := p.memory.items[mem]; ok {
		vk.UnmapMemory(p.device, m)
	}
}
