// Package vkdriver implements gpu.Driver on top of vulkan-go. A Platform owns
// the instance, the chosen physical device, the logical device and the
// window surface, and maps every driver handle onto its Vulkan object.
package vkdriver

import (
	"io"
	"math/bits"
	"strings"
	"unsafe"

	"github.com/andewx/framevk"
	"github.com/andewx/framevk/gpu"
	"github.com/pkg/errors"
	vk "github.com/vulkan-go/vulkan"
)

// Options configures instance and device creation.
type Options struct {
	AppName string
	// Validation enables the Khronos validation layer and the debug report
	// callback when they are installed.
	Validation bool
	// InstanceExtensions lists what the window system needs, typically
	// glfwdisplay.RequiredInstanceExtensions.
	InstanceExtensions []string
	// Surface creates the presentation surface once the instance exists.
	Surface func(instance vk.Instance) (vk.Surface, error)
	// MaxDescriptorSets sizes the descriptor pool. Zero means 16.
	MaxDescriptorSets int
	Logs              *framevk.Logs
}

// Platform is a logical device bound to one window surface.
type Platform struct {
	*objects

	log *framevk.Logs

	instance      vk.Instance
	gpu           vk.PhysicalDevice
	device        vk.Device
	surface       vk.Surface
	debugCallback vk.DebugReportCallback

	properties       vk.PhysicalDeviceProperties
	limits           vk.PhysicalDeviceLimits
	memoryProperties vk.PhysicalDeviceMemoryProperties
	memoryTypes      []gpu.MemoryType
	families         []gpu.QueueFamily
	familySet        framevk.QueueFamilySet
	familyQueues     map[uint32]gpu.Queue

	maxSets        int
	descriptorPool vk.DescriptorPool
	shaderModules  []vk.ShaderModule
}

var _ gpu.Driver = (*Platform)(nil)

// NewPlatform creates the instance, the surface and a logical device on the
// best suitable GPU. Loader initialization (vk.SetGetInstanceProcAddr and
// vk.Init) must already have happened.
func NewPlatform(opts Options) (p *Platform, err error) {
	if opts.Surface == nil {
		return nil, errors.New("vulkan: a surface constructor is required")
	}
	p = &Platform{
		objects:      newObjects(),
		log:          opts.Logs,
		familyQueues: make(map[uint32]gpu.Queue),
		maxSets:      opts.MaxDescriptorSets,
	}
	if p.log == nil {
		p.log = framevk.NewLogs(io.Discard)
	}
	if p.maxSets <= 0 {
		p.maxSets = 16
	}
	defer func() {
		if err != nil {
			p.Destroy()
			p = nil
		}
	}()

	if err = p.createInstance(opts); err != nil {
		return p, err
	}
	if p.surface, err = opts.Surface(p.instance); err != nil {
		return p, errors.Wrap(err, "create window surface")
	}
	if p.surface == vk.NullSurface {
		return p, errors.New("vulkan: surface required but not provided")
	}
	if err = p.pickPhysicalDevice(); err != nil {
		return p, err
	}
	if err = p.createDevice(opts.Validation); err != nil {
		return p, err
	}
	return p, nil
}

func (p *Platform) createInstance(opts Options) error {
	available, err := InstanceExtensions()
	if err != nil {
		return errors.Wrap(err, "enumerate instance extensions")
	}
	wanted := append([]string{}, opts.InstanceExtensions...)
	var layers []string
	if opts.Validation {
		wanted = append(wanted, debugReportExtension)
		actualLayers, err := ValidationLayers()
		if err != nil {
			return errors.Wrap(err, "enumerate validation layers")
		}
		var missing []string
		layers, missing = checkExisting(actualLayers, []string{validationLayer})
		if len(missing) > 0 {
			p.log.Warn.Printf("vulkan: validation layer %s is not installed", strings.Join(missing, ", "))
		}
	}
	extensions, missing := checkExisting(available, wanted)
	for _, name := range missing {
		if name != debugReportExtension {
			return framevk.ConfigErrorf("missing required instance extension %s", name)
		}
	}
	p.log.Info.Printf("vulkan: enabling %d instance extensions", len(extensions))

	appName := opts.AppName
	if appName == "" {
		appName = "framevk"
	}
	var instance vk.Instance
	ret := vk.CreateInstance(&vk.InstanceCreateInfo{
		SType: vk.StructureTypeInstanceCreateInfo,
		PApplicationInfo: &vk.ApplicationInfo{
			SType:              vk.StructureTypeApplicationInfo,
			ApiVersion:         uint32(vk.MakeVersion(1, 1, 0)),
			ApplicationVersion: uint32(vk.MakeVersion(1, 0, 0)),
			PApplicationName:   safeString(appName),
			PEngineName:        safeString("framevk"),
		},
		EnabledExtensionCount:   uint32(len(extensions)),
		PpEnabledExtensionNames: extensions,
		EnabledLayerCount:       uint32(len(layers)),
		PpEnabledLayerNames:     layers,
	}, nil, &instance)
	if err := resultError(ret, "create instance"); err != nil {
		return err
	}
	p.instance = instance
	if err := vk.InitInstance(instance); err != nil {
		return errors.Wrap(err, "init instance")
	}

	if opts.Validation && len(missing) == 0 {
		ret := vk.CreateDebugReportCallback(instance, &vk.DebugReportCallbackCreateInfo{
			SType:       vk.StructureTypeDebugReportCallbackCreateInfo,
			Flags:       vk.DebugReportFlags(vk.DebugReportErrorBit | vk.DebugReportWarningBit | vk.DebugReportPerformanceWarningBit),
			PfnCallback: p.debugReport,
		}, nil, &p.debugCallback)
		if err := resultError(ret, "create debug report callback"); err != nil {
			return err
		}
		p.log.Info.Print("vulkan: debug report callback enabled")
	}
	return nil
}

func (p *Platform) debugReport(flags vk.DebugReportFlags, objectType vk.DebugReportObjectType,
	object uint64, location uint, messageCode int32, pLayerPrefix string,
	pMessage string, pUserData unsafe.Pointer) vk.Bool32 {

	switch {
	case flags&vk.DebugReportFlags(vk.DebugReportErrorBit) != 0:
		p.log.Error.Printf("[%s] Code %d : %s", pLayerPrefix, messageCode, pMessage)
	case flags&vk.DebugReportFlags(vk.DebugReportWarningBit) != 0:
		p.log.Warn.Printf("[%s] Code %d : %s", pLayerPrefix, messageCode, pMessage)
	case flags&vk.DebugReportFlags(vk.DebugReportPerformanceWarningBit) != 0:
		p.log.Warn.Printf("PERFORMANCE [%s] Code %d : %s", pLayerPrefix, messageCode, pMessage)
	default:
		p.log.Info.Printf("[%s] Code %d : %s", pLayerPrefix, messageCode, pMessage)
	}
	return vk.Bool32(vk.False)
}

// candidate is one enumerated physical device and what the ranking needs
// to know about it.
type candidate struct {
	gpu        vk.PhysicalDevice
	name       string
	deviceType vk.PhysicalDeviceType
	families   []gpu.QueueFamily
	set        framevk.QueueFamilySet
	reason     string
}

func (c candidate) suitable() bool { return c.reason == "" }

// pickCandidate prefers the first suitable discrete GPU, else the first
// suitable device of any type.
func pickCandidate(candidates []candidate) (int, error) {
	first := -1
	for i, c := range candidates {
		if !c.suitable() {
			continue
		}
		if c.deviceType == vk.PhysicalDeviceTypeDiscreteGpu {
			return i, nil
		}
		if first < 0 {
			first = i
		}
	}
	if first < 0 {
		return -1, framevk.ConfigErrorf("no suitable physical device")
	}
	return first, nil
}

func (p *Platform) pickPhysicalDevice() (err error) {
	defer checkErr(&err)

	var count uint32
	ret := vk.EnumeratePhysicalDevices(p.instance, &count, nil)
	orPanic(NewError(ret))
	if count == 0 {
		return framevk.ConfigErrorf("no suitable physical device: no GPU devices found")
	}
	gpus := make([]vk.PhysicalDevice, count)
	ret = vk.EnumeratePhysicalDevices(p.instance, &count, gpus)
	orPanic(NewError(ret))

	candidates := make([]candidate, len(gpus))
	for i, dev := range gpus {
		candidates[i] = p.inspect(dev)
		if !candidates[i].suitable() {
			p.log.Info.Printf("vulkan: skipping %s: %s", candidates[i].name, candidates[i].reason)
		}
	}
	index, err := pickCandidate(candidates)
	if err != nil {
		return err
	}
	chosen := candidates[index]
	p.gpu = chosen.gpu
	p.families = chosen.families
	p.familySet = chosen.set

	vk.GetPhysicalDeviceProperties(p.gpu, &p.properties)
	p.properties.Deref()
	p.limits = p.properties.Limits
	p.limits.Deref()
	vk.GetPhysicalDeviceMemoryProperties(p.gpu, &p.memoryProperties)
	p.memoryProperties.Deref()
	for i := uint32(0); i < p.memoryProperties.MemoryTypeCount; i++ {
		t := p.memoryProperties.MemoryTypes[i]
		t.Deref()
		p.memoryTypes = append(p.memoryTypes, gpu.MemoryType{
			PropertyFlags: t.PropertyFlags,
			HeapIndex:     t.HeapIndex,
		})
	}
	p.log.Info.Printf("vulkan: using %s (%s), max samples %d", chosen.name, deviceTypeName(chosen.deviceType), p.MaxSamples())
	return nil
}

// inspect gathers the queue families of dev and checks it against the
// renderer's needs.
func (p *Platform) inspect(dev vk.PhysicalDevice) candidate {
	var props vk.PhysicalDeviceProperties
	vk.GetPhysicalDeviceProperties(dev, &props)
	props.Deref()
	c := candidate{
		gpu:        dev,
		name:       vk.ToString(props.DeviceName[:]),
		deviceType: props.DeviceType,
	}

	var count uint32
	vk.GetPhysicalDeviceQueueFamilyProperties(dev, &count, nil)
	list := make([]vk.QueueFamilyProperties, count)
	vk.GetPhysicalDeviceQueueFamilyProperties(dev, &count, list)
	for i := range list {
		list[i].Deref()
		var present vk.Bool32
		vk.GetPhysicalDeviceSurfaceSupport(dev, uint32(i), p.surface, &present)
		c.families = append(c.families, gpu.QueueFamily{
			Index:          uint32(i),
			Flags:          list[i].QueueFlags,
			Count:          list[i].QueueCount,
			PresentSupport: present.B(),
		})
	}
	set, err := framevk.FindQueueFamilies(c.families)
	if err != nil {
		c.reason = err.Error()
		return c
	}
	c.set = set

	extensions, err := DeviceExtensions(dev)
	if err != nil {
		c.reason = err.Error()
		return c
	}
	if _, missing := checkExisting(extensions, []string{swapchainExtension}); len(missing) > 0 {
		c.reason = "missing " + swapchainExtension
		return c
	}

	var formatCount, modeCount uint32
	vk.GetPhysicalDeviceSurfaceFormats(dev, p.surface, &formatCount, nil)
	vk.GetPhysicalDeviceSurfacePresentModes(dev, p.surface, &modeCount, nil)
	if formatCount == 0 || modeCount == 0 {
		c.reason = "no surface format or present mode"
		return c
	}

	var features vk.PhysicalDeviceFeatures
	vk.GetPhysicalDeviceFeatures(dev, &features)
	features.Deref()
	if features.SamplerAnisotropy != vk.True {
		c.reason = "no sampler anisotropy"
	}
	return c
}

func deviceTypeName(t vk.PhysicalDeviceType) string {
	switch t {
	case vk.PhysicalDeviceTypeDiscreteGpu:
		return "discrete"
	case vk.PhysicalDeviceTypeIntegratedGpu:
		return "integrated"
	case vk.PhysicalDeviceTypeVirtualGpu:
		return "virtual"
	case vk.PhysicalDeviceTypeCpu:
		return "cpu"
	}
	return "other"
}

func (p *Platform) createDevice(validation bool) error {
	var queueInfos []vk.DeviceQueueCreateInfo
	for _, family := range p.familySet.Unique() {
		queueInfos = append(queueInfos, vk.DeviceQueueCreateInfo{
			SType:            vk.StructureTypeDeviceQueueCreateInfo,
			QueueFamilyIndex: family,
			QueueCount:       1,
			PQueuePriorities: []float32{1.0},
		})
	}
	extensions := []string{safeString(swapchainExtension)}
	var layers []string
	if validation {
		if actual, err := ValidationLayers(); err == nil {
			layers, _ = checkExisting(actual, []string{validationLayer})
		}
	}

	var device vk.Device
	ret := vk.CreateDevice(p.gpu, &vk.DeviceCreateInfo{
		SType:                   vk.StructureTypeDeviceCreateInfo,
		QueueCreateInfoCount:    uint32(len(queueInfos)),
		PQueueCreateInfos:       queueInfos,
		EnabledExtensionCount:   uint32(len(extensions)),
		PpEnabledExtensionNames: extensions,
		EnabledLayerCount:       uint32(len(layers)),
		PpEnabledLayerNames:     layers,
		PEnabledFeatures: []vk.PhysicalDeviceFeatures{{
			SamplerAnisotropy: vk.True,
		}},
	}, nil, &device)
	if err := resultError(ret, "create device"); err != nil {
		return err
	}
	p.device = device

	for _, family := range p.familySet.Unique() {
		var queue vk.Queue
		vk.GetDeviceQueue(p.device, family, 0, &queue)
		p.familyQueues[family] = p.queues.put(queue)
	}
	return nil
}

func (p *Platform) QueueFamilies() []gpu.QueueFamily {
	return p.families
}

// Queue returns the first queue of a family the device was created with.
func (p *Platform) Queue(family uint32) gpu.Queue {
	return p.familyQueues[family]
}

func (p *Platform) Instance() vk.Instance             { return p.instance }
func (p *Platform) Device() vk.Device                 { return p.device }
func (p *Platform) PhysicalDevice() vk.PhysicalDevice { return p.gpu }
func (p *Platform) Surface() vk.Surface               { return p.surface }

// MaxSamples is the highest sample count usable for both color and depth
// framebuffer attachments.
func (p *Platform) MaxSamples() int {
	return maxSampleCount(vk.SampleCountFlags(p.limits.FramebufferColorSampleCounts) &
		vk.SampleCountFlags(p.limits.FramebufferDepthSampleCounts))
}

func maxSampleCount(counts vk.SampleCountFlags) int {
	if counts == 0 {
		return 1
	}
	return 1 << (bits.Len32(uint32(counts)) - 1)
}

// MaxAnisotropy is the device limit used for texture samplers.
func (p *Platform) MaxAnisotropy() float32 {
	return p.limits.MaxSamplerAnisotropy
}

// Destroy releases what the platform itself created: shader modules, the
// descriptor pool, render passes, then surface, device, debug callback and
// instance. Resources handed out through gpu.Driver must already be gone.
func (p *Platform) Destroy() {
	if p.device != nil {
		vk.DeviceWaitIdle(p.device)
		for _, module := range p.shaderModules {
			vk.DestroyShaderModule(p.device, module, nil)
		}
		p.shaderModules = nil
		if p.descriptorPool != vk.DescriptorPool(vk.NullHandle) {
			vk.DestroyDescriptorPool(p.device, p.descriptorPool, nil)
			p.descriptorPool = vk.DescriptorPool(vk.NullHandle)
		}
		for h, pass := range p.renderPasses.items {
			vk.DestroyRenderPass(p.device, pass, nil)
			delete(p.renderPasses.items, h)
		}
	}
	if p.surface != vk.NullSurface {
		vk.DestroySurface(p.instance, p.surface, nil)
		p.surface = vk.NullSurface
	}
	if p.device != nil {
		vk.DestroyDevice(p.device, nil)
		p.device = nil
	}
	if p.debugCallback != vk.NullDebugReportCallback {
		vk.DestroyDebugReportCallback(p.instance, p.debugCallback, nil)
		p.debugCallback = vk.NullDebugReportCallback
	}
	if p.instance != nil {
		vk.DestroyInstance(p.instance, nil)
		p.instance = nil
	}
}
