package framevk

import (
	"math/bits"

	"github.com/andewx/framevk/gpu"
	vk "github.com/vulkan-go/vulkan"
)

//GPU image with its memory and a single view over every mip level.
type ImageResource struct {
	Image     gpu.Image
	Memory    gpu.Memory
	View      gpu.ImageView
	Format    vk.Format
	Extent    gpu.Extent
	MipLevels uint32
	Samples   vk.SampleCountFlagBits

	drv gpu.Driver
}

//Parameters of an image upload. Pixels are tightly packed rows of level 0.
type ImageDesc struct {
	Width, Height uint32
	Format        vk.Format
	Mipmaps       bool
}

//Mip chain length for an image of the given size: floor(log2(max(w, h))) + 1.
func MipLevels(width, height uint32) uint32 {
	size := width
	if height > size {
		size = height
	}
	if size == 0 {
		return 1
	}
	return uint32(bits.Len32(size))
}

func bytesPerPixel(format vk.Format) int {
	switch format {
	case vk.FormatR8Unorm, vk.FormatR8Srgb:
		return 1
	case vk.FormatR8g8Unorm:
		return 2
	case vk.FormatR8g8b8a8Unorm, vk.FormatR8g8b8a8Srgb, vk.FormatB8g8r8a8Unorm, vk.FormatB8g8r8a8Srgb:
		return 4
	case vk.FormatR16g16b16a16Sfloat:
		return 8
	case vk.FormatR32g32b32a32Sfloat:
		return 16
	}
	return 0
}

//Creates an image, binds memory and creates a view over all its levels.
func newImage(drv gpu.Driver, info gpu.ImageInfo, aspect vk.ImageAspectFlags, props vk.MemoryPropertyFlags) (*ImageResource, error) {
	if info.Width == 0 || info.Height == 0 {
		return nil, invalidArgumentf("zero sized image %dx%d", info.Width, info.Height)
	}
	if info.MipLevels == 0 {
		info.MipLevels = 1
	}
	if info.Samples == 0 {
		info.Samples = vk.SampleCount1Bit
	}
	img, reqs, err := drv.CreateImage(info)
	if err != nil {
		return nil, createError(err, "create image")
	}
	res := &ImageResource{
		Image:     img,
		Format:    info.Format,
		Extent:    gpu.Extent{Width: info.Width, Height: info.Height},
		MipLevels: info.MipLevels,
		Samples:   info.Samples,
		drv:       drv,
	}
	typeIndex, err := FindMemoryType(drv.MemoryTypes(), reqs.TypeBits, props)
	if err != nil {
		res.Destroy()
		return nil, err
	}
	res.Memory, err = drv.AllocateMemory(reqs.Size, typeIndex)
	if err != nil {
		res.Destroy()
		return nil, createError(err, "allocate image memory")
	}
	if err := drv.BindImageMemory(img, res.Memory); err != nil {
		res.Destroy()
		return nil, createError(err, "bind image memory")
	}
	res.View, err = drv.CreateImageView(gpu.ViewInfo{
		Image:     img,
		Format:    info.Format,
		Aspect:    aspect,
		MipLevels: info.MipLevels,
	})
	if err != nil {
		res.Destroy()
		return nil, createError(err, "create image view")
	}
	return res, nil
}

//Track hands the image to the arena: memory, then the image on it, then the view on the image.
func (r *ImageResource) Track(arena *Arena, owner string) error {
	memory := ParentOf(gpu.KindMemory, gpu.Handle(r.Memory))
	image := ParentOf(gpu.KindImage, gpu.Handle(r.Image))
	if err := arena.Track(owner, gpu.KindMemory, gpu.Handle(r.Memory), r.freeMemory); err != nil {
		return err
	}
	if err := arena.Track(owner, gpu.KindImage, gpu.Handle(r.Image), r.destroyImage, memory); err != nil {
		return err
	}
	return arena.Track(owner, gpu.KindImageView, gpu.Handle(r.View), r.destroyView, image)
}

//Destroys the view, the image and the memory in that order.
func (r *ImageResource) Destroy() {
	r.destroyView()
	r.destroyImage()
	r.freeMemory()
}

func (r *ImageResource) destroyView() {
	if r.View != 0 {
		r.drv.DestroyImageView(r.View)
		r.View = 0
	}
}

func (r *ImageResource) destroyImage() {
	if r.Image != 0 {
		r.drv.DestroyImage(r.Image)
		r.Image = 0
	}
}

func (r *ImageResource) freeMemory() {
	if r.Memory != 0 {
		r.drv.FreeMemory(r.Memory)
		r.Memory = 0
	}
}

// UploadImage copies level 0 pixels into a new sampled image. The image goes
// Undefined -> TransferDst, receives the copy, optionally gets its mip chain
// generated by blits, and finally moves to ShaderReadOnly.
func (u *Uploader) UploadImage(pixels []byte, desc ImageDesc) (*ImageResource, error) {
	bpp := bytesPerPixel(desc.Format)
	if bpp == 0 {
		return nil, invalidArgumentf("unsupported texture format %d", desc.Format)
	}
	if want := int(desc.Width) * int(desc.Height) * bpp; want == 0 || len(pixels) != want {
		return nil, invalidArgumentf("image %dx%d needs %d bytes, got %d", desc.Width, desc.Height, want, len(pixels))
	}
	levels := uint32(1)
	if desc.Mipmaps {
		levels = MipLevels(desc.Width, desc.Height)
		features := u.drv.FormatFeatures(desc.Format, vk.ImageTilingOptimal)
		if features&vk.FormatFeatureFlags(vk.FormatFeatureSampledImageFilterLinearBit) == 0 {
			return nil, configErrorf("format %d does not support linear blits", desc.Format)
		}
	}

	stage, err := u.newStaging(pixels)
	if err != nil {
		return nil, err
	}
	defer stage.release()

	usage := vk.ImageUsageTransferDstBit | vk.ImageUsageSampledBit
	if levels > 1 {
		usage |= vk.ImageUsageTransferSrcBit
	}
	img, err := newImage(u.drv, gpu.ImageInfo{
		Width:     desc.Width,
		Height:    desc.Height,
		MipLevels: levels,
		Format:    desc.Format,
		Samples:   vk.SampleCount1Bit,
		Tiling:    vk.ImageTilingOptimal,
		Usage:     vk.ImageUsageFlags(usage),
	}, vk.ImageAspectFlags(vk.ImageAspectColorBit), deviceLocal)
	if err != nil {
		return nil, err
	}

	// Blits and fragment stage barriers need a graphics capable family.
	err = u.graphics.RunOnce(func(cmd gpu.CommandBuffer) error {
		if err := recordTransition(u.drv, cmd, img.Image, vk.ImageLayoutUndefined, vk.ImageLayoutTransferDstOptimal, levels); err != nil {
			return err
		}
		u.drv.CmdCopyBufferToImage(cmd, stage.res.Buffer, img.Image, img.Extent)
		recordMipmaps(u.drv, cmd, img.Image, img.Extent, levels)
		return recordTransition(u.drv, cmd, img.Image, vk.ImageLayoutTransferDstOptimal, vk.ImageLayoutShaderReadOnlyOptimal, levels)
	})
	if err != nil {
		img.Destroy()
		return nil, err
	}
	u.log.Info.Printf("uploaded %dx%d image %d with %d mip levels", desc.Width, desc.Height, img.Image, levels)
	return img, nil
}

// recordMipmaps fills levels 1..n-1 by blitting each level from the one above
// it. Every level is left in TransferDst for the final transition.
func recordMipmaps(drv gpu.Driver, cmd gpu.CommandBuffer, img gpu.Image, extent gpu.Extent, levels uint32) {
	src := extent
	for level := uint32(1); level < levels; level++ {
		dst := gpu.Extent{Width: half(src.Width), Height: half(src.Height)}

		drv.CmdPipelineBarrier(cmd, mipBarrier(img, level-1,
			vk.ImageLayoutTransferDstOptimal, vk.ImageLayoutTransferSrcOptimal,
			vk.AccessTransferWriteBit, vk.AccessTransferReadBit))
		drv.CmdBlitImage(cmd, gpu.Blit{
			Image:     img,
			SrcLevel:  level - 1,
			SrcExtent: src,
			DstLevel:  level,
			DstExtent: dst,
			Filter:    vk.FilterLinear,
		})
		drv.CmdPipelineBarrier(cmd, mipBarrier(img, level-1,
			vk.ImageLayoutTransferSrcOptimal, vk.ImageLayoutTransferDstOptimal,
			vk.AccessTransferReadBit, vk.AccessTransferWriteBit))

		src = dst
	}
}

func half(v uint32) uint32 {
	if v > 1 {
		return v / 2
	}
	return 1
}

func mipBarrier(img gpu.Image, level uint32, oldLayout, newLayout vk.ImageLayout, src, dst vk.AccessFlagBits) gpu.ImageBarrier {
	return gpu.ImageBarrier{
		Image:        img,
		OldLayout:    oldLayout,
		NewLayout:    newLayout,
		SrcAccess:    vk.AccessFlags(src),
		DstAccess:    vk.AccessFlags(dst),
		SrcStage:     vk.PipelineStageFlags(vk.PipelineStageTransferBit),
		DstStage:     vk.PipelineStageFlags(vk.PipelineStageTransferBit),
		Aspect:       vk.ImageAspectFlags(vk.ImageAspectColorBit),
		BaseMipLevel: level,
		LevelCount:   1,
	}
}
