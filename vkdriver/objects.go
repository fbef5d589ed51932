package vkdriver

import (
	"github.com/andewx/framevk/gpu"
	"github.com/pkg/errors"
	vk "github.com/vulkan-go/vulkan"
)

// table maps driver handles onto Vulkan objects of one kind. Handle values
// come from a counter shared by every table of a Platform, so a value is
// never reused within a session.
type table[H ~uint64, V any] struct {
	kind  gpu.Kind
	next  *uint64
	items map[H]V
}

func newTable[H ~uint64, V any](kind gpu.Kind, next *uint64) table[H, V] {
	return table[H, V]{kind: kind, next: next, items: make(map[H]V)}
}

func (t *table[H, V]) put(v V) H {
	*t.next++
	h := H(*t.next)
	t.items[h] = v
	return h
}

func (t *table[H, V]) get(h H) (V, error) {
	v, ok := t.items[h]
	if !ok {
		return v, errors.Errorf("unknown %s %d", t.kind, uint64(h))
	}
	return v, nil
}

// must is get for recording paths where the handle came from this driver.
// An unknown handle yields the zero object, which the validation layers
// report.
func (t *table[H, V]) must(h H) V {
	return t.items[h]
}

func (t *table[H, V]) take(h H) (V, bool) {
	v, ok := t.items[h]
	delete(t.items, h)
	return v, ok
}

type imageObject struct {
	image vk.Image
	// Swapchain images belong to their swapchain and are never destroyed
	// directly.
	swapchain gpu.Swapchain
}

type commandObject struct {
	cmd  vk.CommandBuffer
	pool gpu.CommandPool
}

type swapchainObject struct {
	swapchain vk.Swapchain
	images    []gpu.Image
}

type objects struct {
	next uint64

	buffers      table[gpu.Buffer, vk.Buffer]
	memory       table[gpu.Memory, vk.DeviceMemory]
	images       table[gpu.Image, imageObject]
	views        table[gpu.ImageView, vk.ImageView]
	samplers     table[gpu.Sampler, vk.Sampler]
	framebuffers table[gpu.Framebuffer, vk.Framebuffer]
	renderPasses table[gpu.RenderPass, vk.RenderPass]
	pipelines    table[gpu.Pipeline, vk.Pipeline]
	layouts      table[gpu.PipelineLayout, vk.PipelineLayout]
	setLayouts   table[gpu.DescriptorSetLayout, vk.DescriptorSetLayout]
	sets         table[gpu.DescriptorSet, vk.DescriptorSet]
	pools        table[gpu.CommandPool, vk.CommandPool]
	commands     table[gpu.CommandBuffer, commandObject]
	fences       table[gpu.Fence, vk.Fence]
	semaphores   table[gpu.Semaphore, vk.Semaphore]
	swapchains   table[gpu.Swapchain, swapchainObject]
	queues       table[gpu.Queue, vk.Queue]
}

func newObjects() *objects {
	o := &objects{}
	o.buffers = newTable[gpu.Buffer, vk.Buffer](gpu.KindBuffer, &o.next)
	o.memory = newTable[gpu.Memory, vk.DeviceMemory](gpu.KindMemory, &o.next)
	o.images = newTable[gpu.Image, imageObject](gpu.KindImage, &o.next)
	o.views = newTable[gpu.ImageView, vk.ImageView](gpu.KindImageView, &o.next)
	o.samplers = newTable[gpu.Sampler, vk.Sampler](gpu.KindSampler, &o.next)
	o.framebuffers = newTable[gpu.Framebuffer, vk.Framebuffer](gpu.KindFramebuffer, &o.next)
	o.renderPasses = newTable[gpu.RenderPass, vk.RenderPass](gpu.KindRenderPass, &o.next)
	o.pipelines = newTable[gpu.Pipeline, vk.Pipeline](gpu.KindPipeline, &o.next)
	o.layouts = newTable[gpu.PipelineLayout, vk.PipelineLayout](gpu.KindPipelineLayout, &o.next)
	o.setLayouts = newTable[gpu.DescriptorSetLayout, vk.DescriptorSetLayout](gpu.KindDescriptorSetLayout, &o.next)
	o.sets = newTable[gpu.DescriptorSet, vk.DescriptorSet](gpu.KindDescriptorSet, &o.next)
	o.pools = newTable[gpu.CommandPool, vk.CommandPool](gpu.KindCommandPool, &o.next)
	o.commands = newTable[gpu.CommandBuffer, commandObject](gpu.KindCommandBuffer, &o.next)
	o.fences = newTable[gpu.Fence, vk.Fence](gpu.KindFence, &o.next)
	o.semaphores = newTable[gpu.Semaphore, vk.Semaphore](gpu.KindSemaphore, &o.next)
	o.swapchains = newTable[gpu.Swapchain, swapchainObject](gpu.KindSwapchain, &o.next)
	o.queues = newTable[gpu.Queue, vk.Queue](gpu.KindQueue, &o.next)
	return o
}

func (o *objects) semaphoreList(handles []gpu.Semaphore) []vk.Semaphore {
	out := make([]vk.Semaphore, len(handles))
	for i, h := range handles {
		out[i] = o.semaphores.must(h)
	}
	return out
}

func (o *objects) commandList(handles []gpu.CommandBuffer) []vk.CommandBuffer {
	out := make([]vk.CommandBuffer, len(handles))
	for i, h := range handles {
		out[i] = o.commands.must(h).cmd
	}
	return out
}

// fence maps the null handle to the null fence.
func (o *objects) fence(h gpu.Fence) vk.Fence {
	if h == 0 {
		return vk.NullFence
	}
	return o.fences.must(h)
}
