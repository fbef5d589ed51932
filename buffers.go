package framevk

import (
	"github.com/andewx/framevk/gpu"
	vk "github.com/vulkan-go/vulkan"
)

const (
	hostVisible = vk.MemoryPropertyFlags(vk.MemoryPropertyHostVisibleBit | vk.MemoryPropertyHostCoherentBit)
	deviceLocal = vk.MemoryPropertyFlags(vk.MemoryPropertyDeviceLocalBit)
)

//GPU buffer paired with its backing allocation. Mapped is set only for persistently mapped
//host visible buffers.
type BufferResource struct {
	Buffer gpu.Buffer
	Memory gpu.Memory
	Size   uint64
	Usage  vk.BufferUsageFlags
	Mapped []byte

	drv gpu.Driver
}

//First memory type allowed by filter whose property flags contain props.
func FindMemoryType(types []gpu.MemoryType, filter uint32, props vk.MemoryPropertyFlags) (uint32, error) {
	for i, t := range types {
		if i >= 32 {
			break
		}
		if filter&(1<<uint(i)) != 0 && t.PropertyFlags&props == props {
			return uint32(i), nil
		}
	}
	return 0, configErrorf("no memory type for filter %#x with properties %#x", filter, uint32(props))
}

//Creates a buffer and binds fresh memory to it. Partial objects are destroyed on failure.
func newBuffer(drv gpu.Driver, info gpu.BufferInfo, props vk.MemoryPropertyFlags) (*BufferResource, error) {
	if info.Size == 0 {
		return nil, invalidArgumentf("zero sized buffer")
	}
	buf, reqs, err := drv.CreateBuffer(info)
	if err != nil {
		return nil, createError(err, "create buffer")
	}
	typeIndex, err := FindMemoryType(drv.MemoryTypes(), reqs.TypeBits, props)
	if err != nil {
		drv.DestroyBuffer(buf)
		return nil, err
	}
	mem, err := drv.AllocateMemory(reqs.Size, typeIndex)
	if err != nil {
		drv.DestroyBuffer(buf)
		return nil, createError(err, "allocate buffer memory")
	}
	if err := drv.BindBufferMemory(buf, mem); err != nil {
		drv.DestroyBuffer(buf)
		drv.FreeMemory(mem)
		return nil, createError(err, "bind buffer memory")
	}
	return &BufferResource{
		Buffer: buf,
		Memory: mem,
		Size:   info.Size,
		Usage:  info.Usage,
		drv:    drv,
	}, nil
}

//Host visible buffer that stays mapped for its whole life. Used for per frame uniforms.
func NewMappedBuffer(drv gpu.Driver, size uint64, usage vk.BufferUsageFlags) (*BufferResource, error) {
	res, err := newBuffer(drv, gpu.BufferInfo{
		Size:        size,
		Usage:       usage,
		SharingMode: vk.SharingModeExclusive,
	}, hostVisible)
	if err != nil {
		return nil, err
	}
	mapped, err := drv.MapMemory(res.Memory, 0, size)
	if err != nil {
		res.Destroy()
		return nil, createError(err, "map buffer memory")
	}
	res.Mapped = mapped
	return res, nil
}

//Writes data at the start of a mapped buffer.
func (b *BufferResource) Write(data []byte) error {
	if b.Mapped == nil {
		return invalidArgumentf("write to unmapped buffer %d", b.Buffer)
	}
	if uint64(len(data)) > b.Size {
		return invalidArgumentf("write of %d bytes into %d byte buffer", len(data), b.Size)
	}
	copy(b.Mapped, data)
	return nil
}

//Track hands the buffer and its memory to the arena. The buffer is a dependent of its memory.
func (b *BufferResource) Track(arena *Arena, owner string) error {
	if err := arena.Track(owner, gpu.KindMemory, gpu.Handle(b.Memory), b.freeMemory); err != nil {
		return err
	}
	return arena.Track(owner, gpu.KindBuffer, gpu.Handle(b.Buffer), b.destroyBuffer,
		ParentOf(gpu.KindMemory, gpu.Handle(b.Memory)))
}

//Destroys the handle, then the memory behind it.
func (b *BufferResource) Destroy() {
	b.destroyBuffer()
	b.freeMemory()
}

func (b *BufferResource) destroyBuffer() {
	if b.Buffer != 0 {
		b.drv.DestroyBuffer(b.Buffer)
		b.Buffer = 0
	}
}

func (b *BufferResource) freeMemory() {
	if b.Memory == 0 {
		return
	}
	if b.Mapped != nil {
		b.drv.UnmapMemory(b.Memory)
		b.Mapped = nil
	}
	b.drv.FreeMemory(b.Memory)
	b.Memory = 0
}
