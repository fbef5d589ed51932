package vkdriver

import (
	"github.com/andewx/framevk/gpu"
	"github.com/pkg/errors"
	vk "github.com/vulkan-go/vulkan"
)

func (p *Platform) CreateFence(signaled bool) (gpu.Fence, error) {
	var flags vk.FenceCreateFlags
	if signaled {
		flags = vk.FenceCreateFlags(vk.FenceCreateSignaledBit)
	}
	var fence vk.Fence
	ret := vk.CreateFence(p.device, &vk.FenceCreateInfo{
		SType: vk.StructureTypeFenceCreateInfo,
		Flags: flags,
	}, nil, &fence)
	if err := resultError(ret, "create fence"); err != nil {
		return 0, err
	}
	return p.fences.put(fence), nil
}

func (p *Platform) DestroyFence(fence gpu.Fence) {
	if f, ok := p.fences.take(fence); ok {
		vk.DestroyFence(p.device, f, nil)
	}
}

func (p *Platform) WaitForFence(fence gpu.Fence, timeout uint64) error {
	f, err := p.fences.get(fence)
	if err != nil {
		return err
	}
	ret := vk.WaitForFences(p.device, 1, []vk.Fence{f}, vk.True, timeout)
	if ret == vk.Timeout {
		return errors.Errorf("fence %d not signaled after %dns", fence, timeout)
	}
	return resultError(ret, "wait for fence")
}

func (p *Platform) ResetFence(fence gpu.Fence) error {
	f, err := p.fences.get(fence)
	if err != nil {
		return err
	}
	return resultError(vk.ResetFences(p.device, 1, []vk.Fence{f}), "reset fence")
}

func (p *Platform) CreateSemaphore() (gpu.Semaphore, error) {
	var sem vk.Semaphore
	ret := vk.CreateSemaphore(p.device, &vk.SemaphoreCreateInfo{
		SType: vk.StructureTypeSemaphoreCreateInfo,
	}, nil, &sem)
	if err := resultError(ret, "create semaphore"); err != nil {
		return 0, err
	}
	return p.semaphores.put(sem), nil
}

func (p *Platform) DestroySemaphore(sem gpu.Semaphore) {
	if s, ok := p.semaphores.take(sem); ok {
		vk.DestroySemaphore(p.device, s, nil)
	}
}

func (p *Platform) QueueSubmit(queue gpu.Queue, info gpu.SubmitInfo, fence gpu.Fence) error {
	q, err := p.queues.get(queue)
	if err != nil {
		return err
	}
	submit := vk.SubmitInfo{
		SType:                vk.StructureTypeSubmitInfo,
		WaitSemaphoreCount:   uint32(len(info.Wait)),
		PWaitSemaphores:      p.semaphoreList(info.Wait),
		PWaitDstStageMask:    info.WaitStages,
		CommandBufferCount:   uint32(len(info.Commands)),
		PCommandBuffers:      p.commandList(info.Commands),
		SignalSemaphoreCount: uint32(len(info.Signal)),
		PSignalSemaphores:    p.semaphoreList(info.Signal),
	}
	ret := vk.QueueSubmit(q, 1, []vk.SubmitInfo{submit}, p.fence(fence))
	return resultError(ret, "queue submit")
}

func (p *Platform) QueueWaitIdle(queue gpu.Queue) error {
	q, err := p.queues.get(queue)
	if err != nil {
		return err
	}
	return resultError(vk.QueueWaitIdle(q), "queue wait idle")
}

func (p *Platform) DeviceWaitIdle() error {
	return resultError(vk.DeviceWaitIdle(p.device), "device wait idle")
}
