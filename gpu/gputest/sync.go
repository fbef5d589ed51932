package gputest

import (
	"github.com/andewx/framevk/gpu"
	"github.com/pkg/errors"
	vk "github.com/vulkan-go/vulkan"
)

func (d *Driver) CreateFence(signaled bool) (gpu.Fence, error) {
	if err := d.injected("CreateFence"); err != nil {
		return 0, err
	}
	fence := gpu.Fence(d.alloc(gpu.KindFence))
	d.fences[fence] = signaled
	return fence, nil
}

func (d *Driver) DestroyFence(fence gpu.Fence) {
	if d.fencePending(fence) {
		d.violate("fence %d destroyed while its submission is pending", fence)
	}
	if d.free(gpu.KindFence, gpu.Handle(fence)) {
		delete(d.fences, fence)
	}
}

func (d *Driver) fencePending(fence gpu.Fence) bool {
	for _, s := range d.pending {
		if s.fence == fence {
			return true
		}
	}
	return false
}

// Signaled reports the fence state without waiting.
func (d *Driver) Signaled(fence gpu.Fence) bool {
	return d.fences[fence]
}

// WaitForFence completes pending work in submission order until the fence
// signals. A fence no submission will ever signal fails instead of hanging.
func (d *Driver) WaitForFence(fence gpu.Fence, timeout uint64) error {
	if err := d.injected("WaitForFence"); err != nil {
		return err
	}
	if !d.use(gpu.KindFence, gpu.Handle(fence), "WaitForFence") {
		return errors.New("wait on invalid fence")
	}
	d.FenceWaits = append(d.FenceWaits, fence)
	if !d.fences[fence] {
		d.drain(func(s *submission) bool { return s.fence == fence })
	}
	if !d.fences[fence] {
		return errors.Errorf("fence %d is never signaled", fence)
	}
	return nil
}

func (d *Driver) ResetFence(fence gpu.Fence) error {
	if err := d.injected("ResetFence"); err != nil {
		return err
	}
	if !d.use(gpu.KindFence, gpu.Handle(fence), "ResetFence") {
		return errors.New("reset of invalid fence")
	}
	if d.fencePending(fence) {
		d.violate("fence %d reset while its submission is pending", fence)
	}
	d.fences[fence] = false
	return nil
}

func (d *Driver) CreateSemaphore() (gpu.Semaphore, error) {
	if err := d.injected("CreateSemaphore"); err != nil {
		return 0, err
	}
	sem := gpu.Semaphore(d.alloc(gpu.KindSemaphore))
	d.semaphores[sem] = 0
	return sem, nil
}

func (d *Driver) DestroySemaphore(sem gpu.Semaphore) {
	if d.free(gpu.KindSemaphore, gpu.Handle(sem)) {
		delete(d.semaphores, sem)
	}
}

func (d *Driver) signal(sem gpu.Semaphore, op string) {
	if !d.use(gpu.KindSemaphore, gpu.Handle(sem), op) {
		return
	}
	if d.semaphores[sem] > 0 {
		d.violate("%s signals semaphore %d which already has a pending signal", op, sem)
	}
	d.semaphores[sem]++
}

func (d *Driver) wait(sem gpu.Semaphore, op string) {
	if !d.use(gpu.KindSemaphore, gpu.Handle(sem), op) {
		return
	}
	if d.semaphores[sem] == 0 {
		d.violate("%s waits on semaphore %d with no signal pending", op, sem)
		return
	}
	d.semaphores[sem]--
}

func (d *Driver) QueueSubmit(queue gpu.Queue, info gpu.SubmitInfo, fence gpu.Fence) error {
	if err := d.injected("QueueSubmit"); err != nil {
		return err
	}
	d.use(gpu.KindQueue, gpu.Handle(queue), "QueueSubmit")
	if len(info.Wait) != len(info.WaitStages) {
		d.violate("submit with %d wait semaphores and %d stages", len(info.Wait), len(info.WaitStages))
	}
	for _, sem := range info.Wait {
		d.wait(sem, "QueueSubmit")
	}
	for _, h := range info.Commands {
		if !d.use(gpu.KindCommandBuffer, gpu.Handle(h), "QueueSubmit") {
			continue
		}
		cb := d.cmds[h]
		if cb.state != cmdExecutable {
			d.violate("submit of command buffer %d that is not executable", h)
		}
		if cb.pending > 0 {
			d.violate("submit of command buffer %d that is already pending", h)
		}
		cb.pending++
	}
	for _, sem := range info.Signal {
		d.signal(sem, "QueueSubmit")
	}
	if fence != 0 {
		if d.use(gpu.KindFence, gpu.Handle(fence), "QueueSubmit") && (d.fences[fence] || d.fencePending(fence)) {
			d.violate("submit with fence %d that is not reset", fence)
		}
	}
	d.Submits[queue]++
	s := &submission{
		queue:     queue,
		cmds:      append([]gpu.CommandBuffer(nil), info.Commands...),
		fence:     fence,
		snapshots: d.snapshot(info.Commands),
		begin:     d.tick(),
	}
	for _, h := range info.Commands {
		d.Timeline = append(d.Timeline, Event{Time: s.begin, Kind: GPUBegin, Command: h})
	}
	d.pending = append(d.pending, s)
	if !d.Lazy {
		d.drain(nil)
	}
	return nil
}

func (d *Driver) QueueWaitIdle(queue gpu.Queue) error {
	if err := d.injected("QueueWaitIdle"); err != nil {
		return err
	}
	d.WaitIdles[queue]++
	var rest []*submission
	for _, s := range d.pending {
		if s.queue == queue {
			d.complete(s)
		} else {
			rest = append(rest, s)
		}
	}
	d.pending = rest
	return nil
}

func (d *Driver) DeviceWaitIdle() error {
	if err := d.injected("DeviceWaitIdle"); err != nil {
		return err
	}
	d.drain(nil)
	return nil
}

func (d *Driver) SurfaceSupport() (gpu.SurfaceSupport, error) {
	if err := d.injected("SurfaceSupport"); err != nil {
		return gpu.SurfaceSupport{}, err
	}
	return d.Support, nil
}

func (d *Driver) CreateSwapchain(info gpu.SwapchainInfo) (gpu.Swapchain, error) {
	if err := d.injected("CreateSwapchain"); err != nil {
		return 0, err
	}
	if info.Extent.Empty() {
		d.violate("swapchain created with extent %dx%d", info.Extent.Width, info.Extent.Height)
		return 0, errors.New("zero sized swapchain")
	}
	caps := d.Support.Capabilities
	if info.MinImageCount < caps.MinImageCount || (caps.MaxImageCount > 0 && info.MinImageCount > caps.MaxImageCount) {
		d.violate("swapchain image count %d outside [%d, %d]", info.MinImageCount, caps.MinImageCount, caps.MaxImageCount)
	}
	if info.OldSwapchain != 0 {
		d.use(gpu.KindSwapchain, gpu.Handle(info.OldSwapchain), "CreateSwapchain")
	}
	d.Swapchains = append(d.Swapchains, info)

	sc := gpu.Swapchain(d.alloc(gpu.KindSwapchain))
	count := info.MinImageCount
	if count == 0 {
		count = 1
	}
	chain := &swapchain{info: info, acquired: make(map[uint32]bool)}
	for i := uint32(0); i < count; i++ {
		img := gpu.Image(d.alloc(gpu.KindImage))
		d.images[img] = &image{
			info: gpu.ImageInfo{
				Width:     info.Extent.Width,
				Height:    info.Extent.Height,
				MipLevels: 1,
				Format:    info.Format.Format,
				Samples:   vk.SampleCount1Bit,
			},
			layouts:   []vk.ImageLayout{vk.ImageLayoutUndefined},
			swapchain: sc,
		}
		chain.images = append(chain.images, img)
	}
	d.swapchains[sc] = chain
	return sc, nil
}

func (d *Driver) DestroySwapchain(sc gpu.Swapchain) {
	chain, ok := d.swapchains[sc]
	if !d.free(gpu.KindSwapchain, gpu.Handle(sc)) || !ok {
		return
	}
	for _, img := range chain.images {
		for view, target := range d.views {
			if target == img {
				d.violate("swapchain %d destroyed before view %d of its image %d", sc, view, img)
			}
		}
		delete(d.images, img)
		delete(d.live, gpu.Handle(img))
		d.dead[gpu.Handle(img)] = gpu.KindImage
	}
	delete(d.swapchains, sc)
}

func (d *Driver) SwapchainImages(sc gpu.Swapchain) ([]gpu.Image, error) {
	if err := d.injected("SwapchainImages"); err != nil {
		return nil, err
	}
	chain, ok := d.swapchains[sc]
	if !ok {
		d.use(gpu.KindSwapchain, gpu.Handle(sc), "SwapchainImages")
		return nil, errors.New("images of invalid swapchain")
	}
	return append([]gpu.Image(nil), chain.images...), nil
}

func nextStatus(script *[]gpu.Status) gpu.Status {
	if len(*script) == 0 {
		return gpu.StatusSuccess
	}
	st := (*script)[0]
	*script = (*script)[1:]
	return st
}

// AcquireNextImage hands out images round robin. An out of date result
// signals nothing.
func (d *Driver) AcquireNextImage(sc gpu.Swapchain, timeout uint64, signal gpu.Semaphore) (uint32, gpu.Status, error) {
	if err := d.injected("AcquireNextImage"); err != nil {
		return 0, gpu.StatusSuccess, err
	}
	chain, ok := d.swapchains[sc]
	if !ok {
		d.use(gpu.KindSwapchain, gpu.Handle(sc), "AcquireNextImage")
		return 0, gpu.StatusSuccess, errors.New("acquire from invalid swapchain")
	}
	status := nextStatus(&d.AcquireStatus)
	if status == gpu.StatusOutOfDate {
		return 0, status, nil
	}
	d.signal(signal, "AcquireNextImage")
	index := chain.next
	chain.next = (chain.next + 1) % uint32(len(chain.images))
	chain.acquired[index] = true
	return index, status, nil
}

func (d *Driver) QueuePresent(queue gpu.Queue, info gpu.PresentInfo) (gpu.Status, error) {
	if err := d.injected("QueuePresent"); err != nil {
		return gpu.StatusSuccess, err
	}
	d.use(gpu.KindQueue, gpu.Handle(queue), "QueuePresent")
	for _, sem := range info.Wait {
		d.wait(sem, "QueuePresent")
	}
	chain, ok := d.swapchains[info.Swapchain]
	if !ok {
		d.use(gpu.KindSwapchain, gpu.Handle(info.Swapchain), "QueuePresent")
		return gpu.StatusSuccess, errors.New("present to invalid swapchain")
	}
	if !chain.acquired[info.ImageIndex] {
		d.violate("present of image %d that was not acquired", info.ImageIndex)
	}
	delete(chain.acquired, info.ImageIndex)
	d.Presents++
	return nextStatus(&d.PresentStatus), nil
}

func (d *Driver) CreateFramebuffer(info gpu.FramebufferInfo) (gpu.Framebuffer, error) {
	if err := d.injected("CreateFramebuffer"); err != nil {
		return 0, err
	}
	d.use(gpu.KindRenderPass, gpu.Handle(info.RenderPass), "CreateFramebuffer")
	for _, view := range info.Attachments {
		if !d.use(gpu.KindImageView, gpu.Handle(view), "CreateFramebuffer") {
			continue
		}
		img := d.images[d.views[view]]
		if img != nil && (img.info.Width != info.Extent.Width || img.info.Height != info.Extent.Height) {
			d.violate("framebuffer %dx%d with attachment %d of %dx%d",
				info.Extent.Width, info.Extent.Height, view, img.info.Width, img.info.Height)
		}
	}
	fb := gpu.Framebuffer(d.alloc(gpu.KindFramebuffer))
	d.fbs[fb] = len(info.Attachments)
	return fb, nil
}

func (d *Driver) DestroyFramebuffer(fb gpu.Framebuffer) {
	if d.free(gpu.KindFramebuffer, gpu.Handle(fb)) {
		delete(d.fbs, fb)
	}
}

func (d *Driver) AllocateDescriptorSets(layout gpu.DescriptorSetLayout, count int) ([]gpu.DescriptorSet, error) {
	if err := d.injected("AllocateDescriptorSets"); err != nil {
		return nil, err
	}
	d.use(gpu.KindDescriptorSetLayout, gpu.Handle(layout), "AllocateDescriptorSets")
	out := make([]gpu.DescriptorSet, count)
	for i := range out {
		out[i] = gpu.DescriptorSet(d.alloc(gpu.KindDescriptorSet))
		d.setBuffers[out[i]] = make(map[uint32]gpu.Buffer)
	}
	return out, nil
}

func (d *Driver) WriteBufferDescriptor(set gpu.DescriptorSet, binding uint32, buf gpu.Buffer, size uint64) {
	if !d.use(gpu.KindDescriptorSet, gpu.Handle(set), "WriteBufferDescriptor") || !d.use(gpu.KindBuffer, gpu.Handle(buf), "WriteBufferDescriptor") {
		return
	}
	d.setBuffers[set][binding] = buf
}

func (d *Driver) WriteImageDescriptor(set gpu.DescriptorSet, binding uint32, view gpu.ImageView, sampler gpu.Sampler) {
	d.use(gpu.KindDescriptorSet, gpu.Handle(set), "WriteImageDescriptor")
	d.use(gpu.KindImageView, gpu.Handle(view), "WriteImageDescriptor")
}

// RenderPass creates a render pass handle. Its signature matches the
// provider the surface manager expects.
func (d *Driver) RenderPass(color, depth vk.Format, samples vk.SampleCountFlagBits) (gpu.RenderPass, error) {
	if err := d.injected("RenderPass"); err != nil {
		return 0, err
	}
	d.RenderPasses++
	return gpu.RenderPass(d.alloc(gpu.KindRenderPass)), nil
}

// Pipeline creates a pipeline and its layout for recording draws.
func (d *Driver) Pipeline() (gpu.Pipeline, gpu.PipelineLayout) {
	return gpu.Pipeline(d.alloc(gpu.KindPipeline)), gpu.PipelineLayout(d.alloc(gpu.KindPipelineLayout))
}

func (d *Driver) DescriptorSetLayout() gpu.DescriptorSetLayout {
	return gpu.DescriptorSetLayout(d.alloc(gpu.KindDescriptorSetLayout))
}
