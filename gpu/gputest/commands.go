package gputest

import (
	"github.com/andewx/framevk/gpu"
	"github.com/pkg/errors"
	vk "github.com/vulkan-go/vulkan"
)

func (d *Driver) CreateCommandPool(family uint32, flags vk.CommandPoolCreateFlags) (gpu.CommandPool, error) {
	if err := d.injected("CreateCommandPool"); err != nil {
		return 0, err
	}
	if int(family) >= len(d.Families) {
		d.violate("command pool for unknown family %d", family)
	}
	pool := gpu.CommandPool(d.alloc(gpu.KindCommandPool))
	d.pools[pool] = flags
	return pool, nil
}

func (d *Driver) DestroyCommandPool(pool gpu.CommandPool) {
	for h, cb := range d.cmds {
		if cb.pool != pool {
			continue
		}
		if cb.pending > 0 {
			d.violate("command pool %d destroyed while command buffer %d is pending", pool, h)
		}
		d.free(gpu.KindCommandBuffer, gpu.Handle(h))
		delete(d.cmds, h)
	}
	if d.free(gpu.KindCommandPool, gpu.Handle(pool)) {
		delete(d.pools, pool)
	}
}

func (d *Driver) AllocateCommandBuffers(pool gpu.CommandPool, count int) ([]gpu.CommandBuffer, error) {
	if err := d.injected("AllocateCommandBuffers"); err != nil {
		return nil, err
	}
	if !d.use(gpu.KindCommandPool, gpu.Handle(pool), "AllocateCommandBuffers") {
		return nil, errors.New("allocate from invalid pool")
	}
	out := make([]gpu.CommandBuffer, count)
	for i := range out {
		out[i] = gpu.CommandBuffer(d.alloc(gpu.KindCommandBuffer))
		d.cmds[out[i]] = &commandBuffer{pool: pool}
	}
	return out, nil
}

func (d *Driver) FreeCommandBuffers(pool gpu.CommandPool, cmds []gpu.CommandBuffer) {
	for _, h := range cmds {
		if cb, ok := d.cmds[h]; ok && cb.pending > 0 {
			d.violate("command buffer %d freed while pending", h)
		}
		if d.free(gpu.KindCommandBuffer, gpu.Handle(h)) {
			delete(d.cmds, h)
		}
	}
}

func (d *Driver) BeginCommandBuffer(h gpu.CommandBuffer, usage vk.CommandBufferUsageFlags) error {
	if err := d.injected("BeginCommandBuffer"); err != nil {
		return err
	}
	if !d.use(gpu.KindCommandBuffer, gpu.Handle(h), "BeginCommandBuffer") {
		return errors.New("begin of invalid command buffer")
	}
	cb := d.cmds[h]
	if cb.pending > 0 {
		d.violate("command buffer %d recorded while pending", h)
	}
	resettable := d.pools[cb.pool]&vk.CommandPoolCreateFlags(vk.CommandPoolCreateResetCommandBufferBit) != 0
	if cb.state != cmdInitial && !resettable {
		d.violate("command buffer %d re-recorded from a pool without the reset flag", h)
	}
	cb.state = cmdRecording
	cb.ops = nil
	cb.sets = nil
	d.Records++
	d.Timeline = append(d.Timeline, Event{Time: d.tick(), Kind: CPURecord, Command: h})
	return nil
}

func (d *Driver) EndCommandBuffer(h gpu.CommandBuffer) error {
	if err := d.injected("EndCommandBuffer"); err != nil {
		return err
	}
	cb := d.recording(h, "EndCommandBuffer")
	if cb == nil {
		return errors.New("end of a command buffer that is not recording")
	}
	cb.state = cmdExecutable
	return nil
}

// recording returns the command buffer when it is live and recording.
func (d *Driver) recording(h gpu.CommandBuffer, op string) *commandBuffer {
	if !d.use(gpu.KindCommandBuffer, gpu.Handle(h), op) {
		return nil
	}
	cb := d.cmds[h]
	if cb.state != cmdRecording {
		d.violate("%s on command buffer %d outside recording", op, h)
		return nil
	}
	return cb
}

func (d *Driver) memoryOf(buf gpu.Buffer) []byte {
	b, ok := d.buffers[buf]
	if !ok {
		return nil
	}
	if m, ok := d.memories[b.mem]; ok {
		return m.data
	}
	return nil
}

func (d *Driver) CmdCopyBuffer(h gpu.CommandBuffer, src, dst gpu.Buffer, size uint64) {
	cb := d.recording(h, "CmdCopyBuffer")
	if cb == nil {
		return
	}
	for _, c := range []struct {
		buf  gpu.Buffer
		bit  vk.BufferUsageFlagBits
		name string
	}{{src, vk.BufferUsageTransferSrcBit, "source"}, {dst, vk.BufferUsageTransferDstBit, "destination"}} {
		if !d.use(gpu.KindBuffer, gpu.Handle(c.buf), "CmdCopyBuffer") {
			return
		}
		b := d.buffers[c.buf]
		if b.usage&vk.BufferUsageFlags(c.bit) == 0 {
			d.violate("copy %s buffer %d lacks transfer usage", c.name, c.buf)
		}
		if size > b.size {
			d.violate("copy of %d bytes overruns %s buffer %d of %d", size, c.name, c.buf, b.size)
		}
	}
	cb.ops = append(cb.ops, func() {
		from, to := d.memoryOf(src), d.memoryOf(dst)
		if uint64(len(from)) < size || uint64(len(to)) < size {
			d.violate("copy between released buffers %d and %d", src, dst)
			return
		}
		copy(to[:size], from[:size])
	})
}

func (d *Driver) CmdCopyBufferToImage(h gpu.CommandBuffer, src gpu.Buffer, dst gpu.Image, extent gpu.Extent) {
	cb := d.recording(h, "CmdCopyBufferToImage")
	if cb == nil {
		return
	}
	if !d.use(gpu.KindBuffer, gpu.Handle(src), "CmdCopyBufferToImage") || !d.use(gpu.KindImage, gpu.Handle(dst), "CmdCopyBufferToImage") {
		return
	}
	cb.ops = append(cb.ops, func() {
		img, ok := d.images[dst]
		if !ok {
			d.violate("copy into released image %d", dst)
			return
		}
		if img.layouts[0] != vk.ImageLayoutTransferDstOptimal {
			d.violate("copy into image %d level 0 in layout %d", dst, img.layouts[0])
		}
		img.data = append([]byte(nil), d.memoryOf(src)...)
	})
}

func (d *Driver) CmdPipelineBarrier(h gpu.CommandBuffer, b gpu.ImageBarrier) {
	cb := d.recording(h, "CmdPipelineBarrier")
	if cb == nil || !d.use(gpu.KindImage, gpu.Handle(b.Image), "CmdPipelineBarrier") {
		return
	}
	if b.SrcStage == 0 || b.DstStage == 0 {
		d.violate("barrier on image %d with an empty stage mask", b.Image)
	}
	cb.ops = append(cb.ops, func() {
		img, ok := d.images[b.Image]
		if !ok {
			d.violate("barrier on released image %d", b.Image)
			return
		}
		end := b.BaseMipLevel + b.LevelCount
		if int(end) > len(img.layouts) || b.LevelCount == 0 {
			d.violate("barrier levels %d+%d outside image %d", b.BaseMipLevel, b.LevelCount, b.Image)
			return
		}
		for level := b.BaseMipLevel; level < end; level++ {
			if b.OldLayout != vk.ImageLayoutUndefined && img.layouts[level] != b.OldLayout {
				d.violate("barrier expects image %d level %d in layout %d, found %d",
					b.Image, level, b.OldLayout, img.layouts[level])
			}
			img.layouts[level] = b.NewLayout
		}
	})
}

func (d *Driver) CmdBlitImage(h gpu.CommandBuffer, blit gpu.Blit) {
	cb := d.recording(h, "CmdBlitImage")
	if cb == nil || !d.use(gpu.KindImage, gpu.Handle(blit.Image), "CmdBlitImage") {
		return
	}
	if blit.DstExtent.Empty() || blit.SrcExtent.Empty() {
		d.violate("blit with empty extent on image %d", blit.Image)
	}
	cb.ops = append(cb.ops, func() {
		img, ok := d.images[blit.Image]
		if !ok {
			d.violate("blit on released image %d", blit.Image)
			return
		}
		if int(blit.DstLevel) >= len(img.layouts) || int(blit.SrcLevel) >= len(img.layouts) {
			d.violate("blit %d->%d on image %d with %d levels", blit.SrcLevel, blit.DstLevel, blit.Image, len(img.layouts))
			return
		}
		if img.layouts[blit.SrcLevel] != vk.ImageLayoutTransferSrcOptimal {
			d.violate("blit source level %d of image %d in layout %d", blit.SrcLevel, blit.Image, img.layouts[blit.SrcLevel])
		}
		if img.layouts[blit.DstLevel] != vk.ImageLayoutTransferDstOptimal {
			d.violate("blit destination level %d of image %d in layout %d", blit.DstLevel, blit.Image, img.layouts[blit.DstLevel])
		}
	})
}

func (d *Driver) CmdBeginRenderPass(h gpu.CommandBuffer, begin gpu.RenderPassBegin) {
	cb := d.recording(h, "CmdBeginRenderPass")
	if cb == nil {
		return
	}
	d.use(gpu.KindRenderPass, gpu.Handle(begin.RenderPass), "CmdBeginRenderPass")
	if d.use(gpu.KindFramebuffer, gpu.Handle(begin.Framebuffer), "CmdBeginRenderPass") {
		if n := d.fbs[begin.Framebuffer]; n != begin.Attachments {
			d.violate("%d clear values for framebuffer %d with %d attachments", begin.Attachments, begin.Framebuffer, n)
		}
	}
	if begin.Extent.Empty() {
		d.violate("render pass begun with an empty render area")
	}
}

func (d *Driver) CmdEndRenderPass(h gpu.CommandBuffer) {
	d.recording(h, "CmdEndRenderPass")
}

func (d *Driver) CmdBindPipeline(h gpu.CommandBuffer, pipeline gpu.Pipeline) {
	if d.recording(h, "CmdBindPipeline") != nil && pipeline != 0 {
		d.use(gpu.KindPipeline, gpu.Handle(pipeline), "CmdBindPipeline")
	}
}

func (d *Driver) CmdSetViewport(h gpu.CommandBuffer, extent gpu.Extent) {
	d.recording(h, "CmdSetViewport")
}

func (d *Driver) CmdSetScissor(h gpu.CommandBuffer, extent gpu.Extent) {
	d.recording(h, "CmdSetScissor")
}

func (d *Driver) CmdBindVertexBuffer(h gpu.CommandBuffer, buf gpu.Buffer) {
	if d.recording(h, "CmdBindVertexBuffer") != nil && buf != 0 {
		d.use(gpu.KindBuffer, gpu.Handle(buf), "CmdBindVertexBuffer")
	}
}

func (d *Driver) CmdBindIndexBuffer(h gpu.CommandBuffer, buf gpu.Buffer, indexType vk.IndexType) {
	if d.recording(h, "CmdBindIndexBuffer") != nil && buf != 0 {
		d.use(gpu.KindBuffer, gpu.Handle(buf), "CmdBindIndexBuffer")
	}
}

func (d *Driver) CmdBindDescriptorSet(h gpu.CommandBuffer, layout gpu.PipelineLayout, set gpu.DescriptorSet) {
	cb := d.recording(h, "CmdBindDescriptorSet")
	if cb == nil {
		return
	}
	if !d.use(gpu.KindDescriptorSet, gpu.Handle(set), "CmdBindDescriptorSet") {
		return
	}
	cb.sets = append(cb.sets, set)
}

func (d *Driver) CmdDrawIndexed(h gpu.CommandBuffer, indexCount uint32) {
	d.recording(h, "CmdDrawIndexed")
}

// BoundSets returns the descriptor sets recorded into a command buffer.
func (d *Driver) BoundSets(h gpu.CommandBuffer) []gpu.DescriptorSet {
	if cb, ok := d.cmds[h]; ok {
		return append([]gpu.DescriptorSet(nil), cb.sets...)
	}
	return nil
}
