package vkdriver

import (
	"github.com/andewx/framevk/gpu"
	vk "github.com/vulkan-go/vulkan"
)

func (p *Platform) CreateCommandPool(family uint32, flags vk.CommandPoolCreateFlags) (gpu.CommandPool, error) {
	var pool vk.CommandPool
	ret := vk.CreateCommandPool(p.device, &vk.CommandPoolCreateInfo{
		SType:            vk.StructureTypeCommandPoolCreateInfo,
		Flags:            flags,
		QueueFamilyIndex: family,
	}, nil, &pool)
	if err := resultError(ret, "create command pool"); err != nil {
		return 0, err
	}
	return p.pools.put(pool), nil
}

// DestroyCommandPool also forgets the command buffers allocated from it.
func (p *Platform) DestroyCommandPool(pool gpu.CommandPool) {
	vkPool, ok := p.pools.take(pool)
	if !ok {
		return
	}
	for h, obj := range p.commands.items {
		if obj.pool == pool {
			delete(p.commands.items, h)
		}
	}
	vk.DestroyCommandPool(p.device, vkPool, nil)
}

func (p *Platform) AllocateCommandBuffers(pool gpu.CommandPool, count int) ([]gpu.CommandBuffer, error) {
	vkPool, err := p.pools.get(pool)
	if err != nil {
		return nil, err
	}
	cmds := make([]vk.CommandBuffer, count)
	ret := vk.AllocateCommandBuffers(p.device, &vk.CommandBufferAllocateInfo{
		SType:              vk.StructureTypeCommandBufferAllocateInfo,
		CommandPool:        vkPool,
		Level:              vk.CommandBufferLevelPrimary,
		CommandBufferCount: uint32(count),
	}, cmds)
	if err := resultError(ret, "allocate command buffers"); err != nil {
		return nil, err
	}
	out := make([]gpu.CommandBuffer, count)
	for i, cmd := range cmds {
		out[i] = p.commands.put(commandObject{cmd: cmd, pool: pool})
	}
	return out, nil
}

func (p *Platform) FreeCommandBuffers(pool gpu.CommandPool, cmds []gpu.CommandBuffer) {
	vkPool, ok := p.pools.items[pool]
	if !ok {
		return
	}
	var list []vk.CommandBuffer
	for _, h := range cmds {
		if obj, ok := p.commands.take(h); ok {
			list = append(list, obj.cmd)
		}
	}
	if len(list) > 0 {
		vk.FreeCommandBuffers(p.device, vkPool, uint32(len(list)), list)
	}
}

func (p *Platform) BeginCommandBuffer(cmd gpu.CommandBuffer, usage vk.CommandBufferUsageFlags) error {
	obj, err := p.commands.get(cmd)
	if err != nil {
		return err
	}
	ret := vk.BeginCommandBuffer(obj.cmd, &vk.CommandBufferBeginInfo{
		SType: vk.StructureTypeCommandBufferBeginInfo,
		Flags: usage,
	})
	return resultError(ret, "begin command buffer")
}

func (p *Platform) EndCommandBuffer(cmd gpu.CommandBuffer) error {
	obj, err := p.commands.get(cmd)
	if err != nil {
		return err
	}
	return resultError(vk.EndCommandBuffer(obj.cmd), "end command buffer")
}

func (p *Platform) cmd(h gpu.CommandBuffer) vk.CommandBuffer {
	return p.commands.must(h).cmd
}

func (p *Platform) CmdCopyBuffer(cmd gpu.CommandBuffer, src, dst gpu.Buffer, size uint64) {
	vk.CmdCopyBuffer(p.cmd(cmd), p.buffers.must(src), p.buffers.must(dst), 1, []vk.BufferCopy{{
		SrcOffset: 0,
		DstOffset: 0,
		Size:      vk.DeviceSize(size),
	}})
}

func colorLayers(level uint32) vk.ImageSubresourceLayers {
	return vk.ImageSubresourceLayers{
		AspectMask:     vk.ImageAspectFlags(vk.ImageAspectColorBit),
		MipLevel:       level,
		BaseArrayLayer: 0,
		LayerCount:     1,
	}
}

func (p *Platform) CmdCopyBufferToImage(cmd gpu.CommandBuffer, src gpu.Buffer, dst gpu.Image, extent gpu.Extent) {
	region := vk.BufferImageCopy{
		BufferOffset:      0,
		BufferRowLength:   0,
		BufferImageHeight: 0,
		ImageSubresource:  colorLayers(0),
		ImageOffset:       vk.Offset3D{},
		ImageExtent: vk.Extent3D{
			Width:  extent.Width,
			Height: extent.Height,
			Depth:  1,
		},
	}
	vk.CmdCopyBufferToImage(p.cmd(cmd), p.buffers.must(src), p.images.must(dst).image,
		vk.ImageLayoutTransferDstOptimal, 1, []vk.BufferImageCopy{region})
}

func (p *Platform) CmdPipelineBarrier(cmd gpu.CommandBuffer, b gpu.ImageBarrier) {
	aspect := b.Aspect
	if aspect == 0 {
		aspect = vk.ImageAspectFlags(vk.ImageAspectColorBit)
	}
	levels := b.LevelCount
	if levels == 0 {
		levels = 1
	}
	barrier := vk.ImageMemoryBarrier{
		SType:               vk.StructureTypeImageMemoryBarrier,
		SrcAccessMask:       b.SrcAccess,
		DstAccessMask:       b.DstAccess,
		OldLayout:           b.OldLayout,
		NewLayout:           b.NewLayout,
		SrcQueueFamilyIndex: vk.QueueFamilyIgnored,
		DstQueueFamilyIndex: vk.QueueFamilyIgnored,
		Image:               p.images.must(b.Image).image,
		SubresourceRange: vk.ImageSubresourceRange{
			AspectMask:     aspect,
			BaseMipLevel:   b.BaseMipLevel,
			LevelCount:     levels,
			BaseArrayLayer: 0,
			LayerCount:     1,
		},
	}
	vk.CmdPipelineBarrier(p.cmd(cmd), b.SrcStage, b.DstStage, 0,
		0, nil, 0, nil, 1, []vk.ImageMemoryBarrier{barrier})
}

func corner(e gpu.Extent) vk.Offset3D {
	return vk.Offset3D{X: int32(e.Width), Y: int32(e.Height), Z: 1}
}

func (p *Platform) CmdBlitImage(cmd gpu.CommandBuffer, b gpu.Blit) {
	image := p.images.must(b.Image).image
	blit := vk.ImageBlit{
		SrcSubresource: colorLayers(b.SrcLevel),
		SrcOffsets:     [2]vk.Offset3D{{}, corner(b.SrcExtent)},
		DstSubresource: colorLayers(b.DstLevel),
		DstOffsets:     [2]vk.Offset3D{{}, corner(b.DstExtent)},
	}
	vk.CmdBlitImage(p.cmd(cmd), image, vk.ImageLayoutTransferSrcOptimal,
		image, vk.ImageLayoutTransferDstOptimal, 1, []vk.ImageBlit{blit}, b.Filter)
}

// clearValues lays out one clear value per attachment: color first, depth
// second, and color again for any resolve attachment.
func clearValues(begin gpu.RenderPassBegin) []vk.ClearValue {
	values := make([]vk.ClearValue, begin.Attachments)
	for i := range values {
		if i == 1 {
			values[i] = vk.NewClearDepthStencil(begin.ClearDepth, begin.ClearStencil)
			continue
		}
		values[i] = vk.NewClearValue(begin.ClearColor[:])
	}
	return values
}

func extent2D(e gpu.Extent) vk.Extent2D {
	return vk.Extent2D{Width: e.Width, Height: e.Height}
}

func (p *Platform) CmdBeginRenderPass(cmd gpu.CommandBuffer, begin gpu.RenderPassBegin) {
	values := clearValues(begin)
	vk.CmdBeginRenderPass(p.cmd(cmd), &vk.RenderPassBeginInfo{
		SType:       vk.StructureTypeRenderPassBeginInfo,
		RenderPass:  p.renderPasses.must(begin.RenderPass),
		Framebuffer: p.framebuffers.must(begin.Framebuffer),
		RenderArea: vk.Rect2D{
			Offset: vk.Offset2D{X: 0, Y: 0},
			Extent: extent2D(begin.Extent),
		},
		ClearValueCount: uint32(len(values)),
		PClearValues:    values,
	}, vk.SubpassContentsInline)
}

func (p *Platform) CmdEndRenderPass(cmd gpu.CommandBuffer) {
	vk.CmdEndRenderPass(p.cmd(cmd))
}

func (p *Platform) CmdBindPipeline(cmd gpu.CommandBuffer, pipeline gpu.Pipeline) {
	vk.CmdBindPipeline(p.cmd(cmd), vk.PipelineBindPointGraphics, p.pipelines.must(pipeline))
}

func (p *Platform) CmdSetViewport(cmd gpu.CommandBuffer, extent gpu.Extent) {
	vk.CmdSetViewport(p.cmd(cmd), 0, 1, []vk.Viewport{{
		X:        0,
		Y:        0,
		Width:    float32(extent.Width),
		Height:   float32(extent.Height),
		MinDepth: 0.0,
		MaxDepth: 1.0,
	}})
}

func (p *Platform) CmdSetScissor(cmd gpu.CommandBuffer, extent gpu.Extent) {
	vk.CmdSetScissor(p.cmd(cmd), 0, 1, []vk.Rect2D{{
		Offset: vk.Offset2D{X: 0, Y: 0},
		Extent: extent2D(extent),
	}})
}

func (p *Platform) CmdBindVertexBuffer(cmd gpu.CommandBuffer, buf gpu.Buffer) {
	vk.CmdBindVertexBuffers(p.cmd(cmd), 0, 1, []vk.Buffer{p.buffers.must(buf)}, []vk.DeviceSize{0})
}

func (p *Platform) CmdBindIndexBuffer(cmd gpu.CommandBuffer, buf gpu.Buffer, indexType vk.IndexType) {
	vk.CmdBindIndexBuffer(p.cmd(cmd), p.buffers.must(buf), 0, indexType)
}

func (p *Platform) CmdBindDescriptorSet(cmd gpu.CommandBuffer, layout gpu.PipelineLayout, set gpu.DescriptorSet) {
	vk.CmdBindDescriptorSets(p.cmd(cmd), vk.PipelineBindPointGraphics, p.layouts.must(layout),
		0, 1, []vk.DescriptorSet{p.sets.must(set)}, 0, nil)
}

func (p *Platform) CmdDrawIndexed(cmd gpu.CommandBuffer, indexCount uint32) {
	vk.CmdDrawIndexed(p.cmd(cmd), indexCount, 1, 0, 0, 0)
}
