// Package gputest provides an in-memory GPU for exercising code written
// against gpu.Driver without a device.
//
// The fake keeps real bytes behind every memory allocation, executes copies
// and blits when a submission completes, tracks image layouts per mip level
// and validates the synchronization rules a Vulkan validation layer would:
// fences reset while in flight, command buffers re-recorded while pending,
// semaphores waited without a signal, uniform memory modified while the GPU
// reads it. Rule breaks are collected in Violations rather than failing the
// call, so tests can assert on the complete list.
package gputest

import (
	"bytes"
	"fmt"

	"github.com/andewx/framevk/gpu"
	"github.com/pkg/errors"
	vk "github.com/vulkan-go/vulkan"
)

// ErrInjected is returned by operations configured with FailOn.
var ErrInjected = errors.New("injected failure")

type memory struct {
	data      []byte
	typeIndex uint32
	mapped    bool
}

type buffer struct {
	size  uint64
	usage vk.BufferUsageFlags
	mem   gpu.Memory
}

type image struct {
	info      gpu.ImageInfo
	mem       gpu.Memory
	layouts   []vk.ImageLayout
	data      []byte
	swapchain gpu.Swapchain
}

type cmdState int

const (
	cmdInitial cmdState = iota
	cmdRecording
	cmdExecutable
)

type commandBuffer struct {
	pool    gpu.CommandPool
	state   cmdState
	ops     []func()
	sets    []gpu.DescriptorSet
	pending int
}

type submission struct {
	queue     gpu.Queue
	cmds      []gpu.CommandBuffer
	fence     gpu.Fence
	snapshots map[gpu.Memory][]byte
	begin     uint64
}

type swapchain struct {
	info     gpu.SwapchainInfo
	images   []gpu.Image
	next     uint32
	acquired map[uint32]bool
}

// EventKind classifies timeline entries.
type EventKind string

const (
	CPURecord EventKind = "cpu-record"
	GPUBegin  EventKind = "gpu-begin"
	GPUEnd    EventKind = "gpu-end"
)

// Event is one timeline entry. Time is a logical clock advanced by every
// driver call.
type Event struct {
	Time    uint64
	Kind    EventKind
	Command gpu.CommandBuffer
}

// Driver is the fake device. The exported fields configure it and may be
// changed between calls; the counters record what the code under test did.
type Driver struct {
	Families []gpu.QueueFamily
	Types    []gpu.MemoryType
	Support  gpu.SurfaceSupport
	// Features reports optimal tiling features per format. Formats absent
	// from a non-nil map report none; a nil map reports every feature.
	Features map[vk.Format]vk.FormatFeatureFlags
	// Lazy holds submissions until their fence is waited on or the queue
	// or device goes idle. Otherwise every submission completes at once.
	Lazy bool
	// AcquireStatus and PresentStatus are consumed one per call; an empty
	// script reports success.
	AcquireStatus []gpu.Status
	PresentStatus []gpu.Status

	Records    int
	Submits    map[gpu.Queue]int
	Presents   int
	FenceWaits []gpu.Fence
	WaitIdles  map[gpu.Queue]int
	Swapchains []gpu.SwapchainInfo
	Violations []string
	Timeline   []Event

	// RenderPasses counts calls of the RenderPass provider.
	RenderPasses int

	clock  uint64
	next   gpu.Handle
	fail   map[string]error
	live   map[gpu.Handle]gpu.Kind
	dead   map[gpu.Handle]gpu.Kind
	queues map[uint32]gpu.Queue

	memories   map[gpu.Memory]*memory
	buffers    map[gpu.Buffer]*buffer
	images     map[gpu.Image]*image
	views      map[gpu.ImageView]gpu.Image
	cmds       map[gpu.CommandBuffer]*commandBuffer
	fences     map[gpu.Fence]bool
	semaphores map[gpu.Semaphore]int
	swapchains map[gpu.Swapchain]*swapchain
	pools      map[gpu.CommandPool]vk.CommandPoolCreateFlags
	fbs        map[gpu.Framebuffer]int
	setBuffers map[gpu.DescriptorSet]map[uint32]gpu.Buffer
	pending    []*submission
}

// NewDriver returns a fake with one universal queue family, memory that is
// both device local and host visible, and an 800x600 capable surface whose
// current extent is left to the window.
func NewDriver() *Driver {
	return &Driver{
		Families: []gpu.QueueFamily{{
			Index:          0,
			Flags:          vk.QueueFlags(vk.QueueGraphicsBit | vk.QueueComputeBit | vk.QueueTransferBit),
			Count:          1,
			PresentSupport: true,
		}},
		Types: []gpu.MemoryType{
			{PropertyFlags: vk.MemoryPropertyFlags(vk.MemoryPropertyDeviceLocalBit | vk.MemoryPropertyHostVisibleBit | vk.MemoryPropertyHostCoherentBit)},
			{PropertyFlags: vk.MemoryPropertyFlags(vk.MemoryPropertyHostVisibleBit | vk.MemoryPropertyHostCoherentBit)},
		},
		Support: gpu.SurfaceSupport{
			Capabilities: gpu.SurfaceCapabilities{
				MinImageCount:    2,
				MaxImageCount:    3,
				CurrentExtent:    gpu.Extent{Width: vk.MaxUint32, Height: vk.MaxUint32},
				MinImageExtent:   gpu.Extent{Width: 1, Height: 1},
				MaxImageExtent:   gpu.Extent{Width: 4096, Height: 4096},
				CurrentTransform: vk.SurfaceTransformIdentityBit,
				CompositeAlpha:   vk.CompositeAlphaOpaqueBit,
			},
			Formats: []gpu.SurfaceFormat{
				{Format: vk.FormatB8g8r8a8Unorm, ColorSpace: vk.ColorSpaceSrgbNonlinear},
				{Format: vk.FormatB8g8r8a8Srgb, ColorSpace: vk.ColorSpaceSrgbNonlinear},
			},
			PresentModes: []vk.PresentMode{vk.PresentModeFifo, vk.PresentModeMailbox},
		},
		Submits:    make(map[gpu.Queue]int),
		WaitIdles:  make(map[gpu.Queue]int),
		fail:       make(map[string]error),
		live:       make(map[gpu.Handle]gpu.Kind),
		dead:       make(map[gpu.Handle]gpu.Kind),
		queues:     make(map[uint32]gpu.Queue),
		memories:   make(map[gpu.Memory]*memory),
		buffers:    make(map[gpu.Buffer]*buffer),
		images:     make(map[gpu.Image]*image),
		views:      make(map[gpu.ImageView]gpu.Image),
		cmds:       make(map[gpu.CommandBuffer]*commandBuffer),
		fences:     make(map[gpu.Fence]bool),
		semaphores: make(map[gpu.Semaphore]int),
		swapchains: make(map[gpu.Swapchain]*swapchain),
		pools:      make(map[gpu.CommandPool]vk.CommandPoolCreateFlags),
		fbs:        make(map[gpu.Framebuffer]int),
		setBuffers: make(map[gpu.DescriptorSet]map[uint32]gpu.Buffer),
	}
}

// FailOn makes every later call of the named driver method return err.
// A nil err clears the injection.
func (d *Driver) FailOn(method string, err error) {
	if err == nil {
		delete(d.fail, method)
		return
	}
	d.fail[method] = err
}

func (d *Driver) injected(method string) error {
	if err, ok := d.fail[method]; ok {
		return errors.Wrap(err, method)
	}
	return nil
}

func (d *Driver) tick() uint64 {
	d.clock++
	return d.clock
}

func (d *Driver) violate(format string, args ...interface{}) {
	d.Violations = append(d.Violations, fmt.Sprintf(format, args...))
}

func (d *Driver) alloc(kind gpu.Kind) gpu.Handle {
	d.next++
	d.live[d.next] = kind
	return d.next
}

func (d *Driver) free(kind gpu.Kind, h gpu.Handle) bool {
	if got, ok := d.live[h]; !ok || got != kind {
		if _, wasDead := d.dead[h]; wasDead {
			d.violate("double destroy of %s %d", kind, h)
		} else {
			d.violate("destroy of unknown %s %d", kind, h)
		}
		return false
	}
	delete(d.live, h)
	d.dead[h] = kind
	return true
}

// use reports whether h is a live handle of kind, recording a violation
// otherwise.
func (d *Driver) use(kind gpu.Kind, h gpu.Handle, op string) bool {
	if got, ok := d.live[h]; ok && got == kind {
		return true
	}
	if _, ok := d.dead[h]; ok {
		d.violate("%s uses destroyed %s %d", op, kind, h)
	} else {
		d.violate("%s uses unknown %s %d", op, kind, h)
	}
	return false
}

// Live counts live handles of a kind.
func (d *Driver) Live(kind gpu.Kind) int {
	n := 0
	for _, k := range d.live {
		if k == kind {
			n++
		}
	}
	return n
}

// IsLive reports whether h is a live handle of kind.
func (d *Driver) IsLive(kind gpu.Kind, h gpu.Handle) bool {
	k, ok := d.live[h]
	return ok && k == kind
}

// Pending counts submissions the fake GPU has not completed.
func (d *Driver) Pending() int {
	return len(d.pending)
}

// BufferContents returns a copy of the bytes behind a buffer.
func (d *Driver) BufferContents(buf gpu.Buffer) []byte {
	b, ok := d.buffers[buf]
	if !ok {
		return nil
	}
	m, ok := d.memories[b.mem]
	if !ok {
		return nil
	}
	return append([]byte(nil), m.data[:b.size]...)
}

// ImageContents returns a copy of level 0 of an image.
func (d *Driver) ImageContents(img gpu.Image) []byte {
	if i, ok := d.images[img]; ok {
		return append([]byte(nil), i.data...)
	}
	return nil
}

// ImageLayouts returns the current layout of every mip level.
func (d *Driver) ImageLayouts(img gpu.Image) []vk.ImageLayout {
	if i, ok := d.images[img]; ok {
		return append([]vk.ImageLayout(nil), i.layouts...)
	}
	return nil
}

func (d *Driver) QueueFamilies() []gpu.QueueFamily {
	return append([]gpu.QueueFamily(nil), d.Families...)
}

func (d *Driver) Queue(family uint32) gpu.Queue {
	if q, ok := d.queues[family]; ok {
		return q
	}
	q := gpu.Queue(d.alloc(gpu.KindQueue))
	d.queues[family] = q
	return q
}

func (d *Driver) MemoryTypes() []gpu.MemoryType {
	return append([]gpu.MemoryType(nil), d.Types...)
}

func (d *Driver) FormatFeatures(format vk.Format, tiling vk.ImageTiling) vk.FormatFeatureFlags {
	if d.Features == nil {
		return vk.FormatFeatureFlags(^uint32(0))
	}
	return d.Features[format]
}

func (d *Driver) typeBits() uint32 {
	return uint32(1)<<uint(len(d.Types)) - 1
}

func (d *Driver) CreateBuffer(info gpu.BufferInfo) (gpu.Buffer, gpu.MemoryRequirements, error) {
	if err := d.injected("CreateBuffer"); err != nil {
		return 0, gpu.MemoryRequirements{}, err
	}
	if info.Size == 0 {
		d.violate("zero sized buffer")
	}
	if info.SharingMode == vk.SharingModeConcurrent && len(info.QueueFamilies) < 2 {
		d.violate("concurrent buffer with %d queue families", len(info.QueueFamilies))
	}
	buf := gpu.Buffer(d.alloc(gpu.KindBuffer))
	d.buffers[buf] = &buffer{size: info.Size, usage: info.Usage}
	return buf, gpu.MemoryRequirements{Size: info.Size, Alignment: 1, TypeBits: d.typeBits()}, nil
}

func (d *Driver) DestroyBuffer(buf gpu.Buffer) {
	if d.free(gpu.KindBuffer, gpu.Handle(buf)) {
		delete(d.buffers, buf)
	}
}

func (d *Driver) CreateImage(info gpu.ImageInfo) (gpu.Image, gpu.MemoryRequirements, error) {
	if err := d.injected("CreateImage"); err != nil {
		return 0, gpu.MemoryRequirements{}, err
	}
	if info.Width == 0 || info.Height == 0 || info.MipLevels == 0 {
		d.violate("degenerate image %dx%d with %d levels", info.Width, info.Height, info.MipLevels)
	}
	img := gpu.Image(d.alloc(gpu.KindImage))
	layouts := make([]vk.ImageLayout, info.MipLevels)
	for i := range layouts {
		layouts[i] = vk.ImageLayoutUndefined
	}
	d.images[img] = &image{info: info, layouts: layouts}
	size := uint64(info.Width) * uint64(info.Height) * 4
	return img, gpu.MemoryRequirements{Size: size, Alignment: 1, TypeBits: d.typeBits()}, nil
}

func (d *Driver) DestroyImage(img gpu.Image) {
	if i, ok := d.images[img]; ok && i.swapchain != 0 {
		d.violate("destroy of swapchain image %d", img)
		return
	}
	for view, target := range d.views {
		if target == img {
			d.violate("image %d destroyed before its view %d", img, view)
		}
	}
	if d.free(gpu.KindImage, gpu.Handle(img)) {
		delete(d.images, img)
	}
}

func (d *Driver) CreateImageView(info gpu.ViewInfo) (gpu.ImageView, error) {
	if err := d.injected("CreateImageView"); err != nil {
		return 0, err
	}
	d.use(gpu.KindImage, gpu.Handle(info.Image), "CreateImageView")
	view := gpu.ImageView(d.alloc(gpu.KindImageView))
	d.views[view] = info.Image
	return view, nil
}

func (d *Driver) DestroyImageView(view gpu.ImageView) {
	if d.free(gpu.KindImageView, gpu.Handle(view)) {
		delete(d.views, view)
	}
}

func (d *Driver) AllocateMemory(size uint64, typeIndex uint32) (gpu.Memory, error) {
	if err := d.injected("AllocateMemory"); err != nil {
		return 0, err
	}
	if int(typeIndex) >= len(d.Types) {
		d.violate("allocation from unknown memory type %d", typeIndex)
	}
	mem := gpu.Memory(d.alloc(gpu.KindMemory))
	d.memories[mem] = &memory{data: make([]byte, size), typeIndex: typeIndex}
	return mem, nil
}

func (d *Driver) FreeMemory(mem gpu.Memory) {
	for h, b := range d.buffers {
		if b.mem == mem {
			d.violate("memory %d freed before buffer %d", mem, h)
		}
	}
	for h, i := range d.images {
		if i.mem == mem {
			d.violate("memory %d freed before image %d", mem, h)
		}
	}
	if d.free(gpu.KindMemory, gpu.Handle(mem)) {
		delete(d.memories, mem)
	}
}

func (d *Driver) BindBufferMemory(buf gpu.Buffer, mem gpu.Memory) error {
	if err := d.injected("BindBufferMemory"); err != nil {
		return err
	}
	if !d.use(gpu.KindBuffer, gpu.Handle(buf), "BindBufferMemory") || !d.use(gpu.KindMemory, gpu.Handle(mem), "BindBufferMemory") {
		return errors.New("bind of invalid handle")
	}
	d.buffers[buf].mem = mem
	return nil
}

func (d *Driver) BindImageMemory(img gpu.Image, mem gpu.Memory) error {
	if err := d.injected("BindImageMemory"); err != nil {
		return err
	}
	if !d.use(gpu.KindImage, gpu.Handle(img), "BindImageMemory") || !d.use(gpu.KindMemory, gpu.Handle(mem), "BindImageMemory") {
		return errors.New("bind of invalid handle")
	}
	d.images[img].mem = mem
	return nil
}

func (d *Driver) MapMemory(mem gpu.Memory, offset, size uint64) ([]byte, error) {
	if err := d.injected("MapMemory"); err != nil {
		return nil, err
	}
	m, ok := d.memories[mem]
	if !ok {
		d.use(gpu.KindMemory, gpu.Handle(mem), "MapMemory")
		return nil, errors.New("map of invalid memory")
	}
	flags := d.Types[m.typeIndex].PropertyFlags
	if flags&vk.MemoryPropertyFlags(vk.MemoryPropertyHostVisibleBit) == 0 {
		return nil, errors.Errorf("memory type %d is not host visible", m.typeIndex)
	}
	if m.mapped {
		d.violate("memory %d mapped twice", mem)
	}
	if offset+size > uint64(len(m.data)) {
		return nil, errors.Errorf("map range %d+%d exceeds %d", offset, size, len(m.data))
	}
	m.mapped = true
	return m.data[offset : offset+size : offset+size], nil
}

func (d *Driver) UnmapMemory(mem gpu.Memory) {
	m, ok := d.memories[mem]
	if !ok || !m.mapped {
		d.violate("unmap of unmapped memory %d", mem)
		return
	}
	m.mapped = false
}

// snapshot copies the memory of every buffer the command buffers read
// through descriptor sets.
func (d *Driver) snapshot(cmds []gpu.CommandBuffer) map[gpu.Memory][]byte {
	out := make(map[gpu.Memory][]byte)
	for _, h := range cmds {
		cb, ok := d.cmds[h]
		if !ok {
			continue
		}
		for _, set := range cb.sets {
			for _, buf := range d.setBuffers[set] {
				b, ok := d.buffers[buf]
				if !ok {
					continue
				}
				if m, ok := d.memories[b.mem]; ok {
					out[b.mem] = append([]byte(nil), m.data...)
				}
			}
		}
	}
	return out
}

func (d *Driver) complete(s *submission) {
	for mem, before := range s.snapshots {
		if m, ok := d.memories[mem]; ok && !bytes.Equal(m.data, before) {
			d.violate("memory %d written by the CPU while submission %d was in flight", mem, s.begin)
		}
	}
	for _, h := range s.cmds {
		cb, ok := d.cmds[h]
		if !ok {
			continue
		}
		for _, op := range cb.ops {
			op()
		}
		cb.pending--
		d.Timeline = append(d.Timeline, Event{Time: d.tick(), Kind: GPUEnd, Command: h})
	}
	if s.fence != 0 {
		d.fences[s.fence] = true
	}
}

// drain completes pending submissions in order until stop returns true for
// the one just completed.
func (d *Driver) drain(stop func(*submission) bool) {
	for len(d.pending) > 0 {
		s := d.pending[0]
		d.pending = d.pending[1:]
		d.complete(s)
		if stop != nil && stop(s) {
			return
		}
	}
}
