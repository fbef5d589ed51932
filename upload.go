package framevk

import (
	"github.com/andewx/framevk/gpu"
	vk "github.com/vulkan-go/vulkan"
)

// Uploader moves CPU data into device local resources through a staging
// buffer. Every call blocks until the GPU has finished the copy; uploads run
// before the frame loop starts, never inside it.
type Uploader struct {
	drv      gpu.Driver
	queues   *Queues
	transfer *CommandBufferManager
	graphics *CommandBufferManager
	log      *Logs
}

func NewUploader(drv gpu.Driver, queues *Queues, logs *Logs) (*Uploader, error) {
	transfer, err := NewCommandBufferManager(drv, queues.Families.Transfer(), queues.Transfer, vk.CommandPoolCreateTransientBit)
	if err != nil {
		return nil, err
	}
	graphics, err := NewCommandBufferManager(drv, queues.Families.Graphics(), queues.Graphics, vk.CommandPoolCreateTransientBit)
	if err != nil {
		transfer.Destroy()
		return nil, err
	}
	return &Uploader{
		drv:      drv,
		queues:   queues,
		transfer: transfer,
		graphics: graphics,
		log:      logs.orDefault(),
	}, nil
}

// staging is a host visible copy source. It is destroyed exactly once, after
// the copy that drains it has completed.
type staging struct {
	res *BufferResource
}

func (u *Uploader) newStaging(data []byte) (*staging, error) {
	res, err := newBuffer(u.drv, gpu.BufferInfo{
		Size:        uint64(len(data)),
		Usage:       vk.BufferUsageFlags(vk.BufferUsageTransferSrcBit),
		SharingMode: vk.SharingModeExclusive,
	}, hostVisible)
	if err != nil {
		return nil, err
	}
	mapped, err := u.drv.MapMemory(res.Memory, 0, res.Size)
	if err != nil {
		res.Destroy()
		return nil, createError(err, "map staging memory")
	}
	copy(mapped, data)
	u.drv.UnmapMemory(res.Memory)
	return &staging{res: res}, nil
}

func (s *staging) release() {
	if s.res != nil {
		s.res.Destroy()
		s.res = nil
	}
}

// UploadBuffer copies data into a new buffer with usage|TransferDst backed by
// memory with props. A zero props value selects device local memory.
func (u *Uploader) UploadBuffer(data []byte, usage vk.BufferUsageFlags, props vk.MemoryPropertyFlags) (*BufferResource, error) {
	if len(data) == 0 {
		return nil, invalidArgumentf("upload of empty buffer")
	}
	if props == 0 {
		props = deviceLocal
	}

	stage, err := u.newStaging(data)
	if err != nil {
		return nil, err
	}
	defer stage.release()

	sharing, families := u.queues.Families.SharingFor(RoleTransfer, RoleGraphics)
	dst, err := newBuffer(u.drv, gpu.BufferInfo{
		Size:          uint64(len(data)),
		Usage:         usage | vk.BufferUsageFlags(vk.BufferUsageTransferDstBit),
		SharingMode:   sharing,
		QueueFamilies: families,
	}, props)
	if err != nil {
		return nil, err
	}

	err = u.transfer.RunOnce(func(cmd gpu.CommandBuffer) error {
		u.drv.CmdCopyBuffer(cmd, stage.res.Buffer, dst.Buffer, dst.Size)
		return nil
	})
	if err != nil {
		dst.Destroy()
		return nil, err
	}
	u.log.Info.Printf("uploaded %d bytes into buffer %d", len(data), dst.Buffer)
	return dst, nil
}

func (u *Uploader) Destroy() {
	u.transfer.Destroy()
	u.graphics.Destroy()
}
