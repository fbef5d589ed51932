package vkdriver

import (
	"github.com/andewx/framevk/gpu"
	vk "github.com/vulkan-go/vulkan"
)

// DescriptorBinding describes one binding slot of a set layout.
type DescriptorBinding struct {
	Binding uint32
	Type    vk.DescriptorType
	Stages  vk.ShaderStageFlags
}

func (p *Platform) CreateDescriptorSetLayout(bindings ...DescriptorBinding) (gpu.DescriptorSetLayout, error) {
	list := make([]vk.DescriptorSetLayoutBinding, len(bindings))
	for i, b := range bindings {
		list[i] = vk.DescriptorSetLayoutBinding{
			Binding:         b.Binding,
			DescriptorType:  b.Type,
			DescriptorCount: 1,
			StageFlags:      b.Stages,
		}
	}
	var layout vk.DescriptorSetLayout
	ret := vk.CreateDescriptorSetLayout(p.device, &vk.DescriptorSetLayoutCreateInfo{
		SType:        vk.StructureTypeDescriptorSetLayoutCreateInfo,
		BindingCount: uint32(len(list)),
		PBindings:    list,
	}, nil, &layout)
	if err := resultError(ret, "create descriptor set layout"); err != nil {
		return 0, err
	}
	return p.setLayouts.put(layout), nil
}

func (p *Platform) DestroyDescriptorSetLayout(layout gpu.DescriptorSetLayout) {
	if l, ok := p.setLayouts.take(layout); ok {
		vk.DestroyDescriptorSetLayout(p.device, l, nil)
	}
}

// descriptors creates the shared pool on first use. It holds MaxDescriptorSets
// sets of one uniform buffer and one combined image sampler each. Sets are
// released with the pool in Destroy.
func (p *Platform) descriptors() (vk.DescriptorPool, error) {
	if p.descriptorPool != vk.DescriptorPool(vk.NullHandle) {
		return p.descriptorPool, nil
	}
	count := uint32(p.maxSets)
	var pool vk.DescriptorPool
	ret := vk.CreateDescriptorPool(p.device, &vk.DescriptorPoolCreateInfo{
		SType:         vk.StructureTypeDescriptorPoolCreateInfo,
		MaxSets:       count,
		PoolSizeCount: 2,
		PPoolSizes: []vk.DescriptorPoolSize{
			{Type: vk.DescriptorTypeUniformBuffer, DescriptorCount: count},
			{Type: vk.DescriptorTypeCombinedImageSampler, DescriptorCount: count},
		},
	}, nil, &pool)
	if err := resultError(ret, "create descriptor pool"); err != nil {
		return pool, err
	}
	p.descriptorPool = pool
	return pool, nil
}

func (p *Platform) AllocateDescriptorSets(layout gpu.DescriptorSetLayout, count int) ([]gpu.DescriptorSet, error) {
	l, err := p.setLayouts.get(layout)
	if err != nil {
		return nil, err
	}
	pool, err := p.descriptors()
	if err != nil {
		return nil, err
	}
	layouts := make([]vk.DescriptorSetLayout, count)
	for i := range layouts {
		layouts[i] = l
	}
	sets := make([]vk.DescriptorSet, count)
	ret := vk.AllocateDescriptorSets(p.device, &vk.DescriptorSetAllocateInfo{
		SType:              vk.StructureTypeDescriptorSetAllocateInfo,
		DescriptorPool:     pool,
		DescriptorSetCount: uint32(count),
		PSetLayouts:        layouts,
	}, &sets[0])
	if err := resultError(ret, "allocate descriptor sets"); err != nil {
		return nil, err
	}
	out := make([]gpu.DescriptorSet, count)
	for i, set := range sets {
		out[i] = p.sets.put(set)
	}
	return out, nil
}

func (p *Platform) WriteBufferDescriptor(set gpu.DescriptorSet, binding uint32, buf gpu.Buffer, size uint64) {
	write := vk.WriteDescriptorSet{
		SType:           vk.StructureTypeWriteDescriptorSet,
		DstSet:          p.sets.must(set),
		DstBinding:      binding,
		DstArrayElement: 0,
		DescriptorCount: 1,
		DescriptorType:  vk.DescriptorTypeUniformBuffer,
		PBufferInfo: []vk.DescriptorBufferInfo{{
			Buffer: p.buffers.must(buf),
			Offset: 0,
			Range:  vk.DeviceSize(size),
		}},
	}
	vk.UpdateDescriptorSets(p.device, 1, []vk.WriteDescriptorSet{write}, 0, nil)
}

func (p *Platform) WriteImageDescriptor(set gpu.DescriptorSet, binding uint32, view gpu.ImageView, sampler gpu.Sampler) {
	write := vk.WriteDescriptorSet{
		SType:           vk.StructureTypeWriteDescriptorSet,
		DstSet:          p.sets.must(set),
		DstBinding:      binding,
		DstArrayElement: 0,
		DescriptorCount: 1,
		DescriptorType:  vk.DescriptorTypeCombinedImageSampler,
		PImageInfo: []vk.DescriptorImageInfo{{
			Sampler:     p.samplers.must(sampler),
			ImageView:   p.views.must(view),
			ImageLayout: vk.ImageLayoutShaderReadOnlyOptimal,
		}},
	}
	vk.UpdateDescriptorSets(p.device, 1, []vk.WriteDescriptorSet{write}, 0, nil)
}

// CreateSampler builds a repeating, trilinear, anisotropic sampler that can
// reach every level of a texture with mipLevels levels.
func (p *Platform) CreateSampler(mipLevels uint32) (gpu.Sampler, error) {
	var sampler vk.Sampler
	ret := vk.CreateSampler(p.device, &vk.SamplerCreateInfo{
		SType:                   vk.StructureTypeSamplerCreateInfo,
		MagFilter:               vk.FilterLinear,
		MinFilter:               vk.FilterLinear,
		MipmapMode:              vk.SamplerMipmapModeLinear,
		AddressModeU:            vk.SamplerAddressModeRepeat,
		AddressModeV:            vk.SamplerAddressModeRepeat,
		AddressModeW:            vk.SamplerAddressModeRepeat,
		MipLodBias:              0.0,
		AnisotropyEnable:        vk.True,
		MaxAnisotropy:           p.MaxAnisotropy(),
		CompareEnable:           vk.False,
		CompareOp:               vk.CompareOpAlways,
		MinLod:                  0.0,
		MaxLod:                  float32(mipLevels),
		BorderColor:             vk.BorderColorIntOpaqueBlack,
		UnnormalizedCoordinates: vk.False,
	}, nil, &sampler)
	if err := resultError(ret, "create sampler"); err != nil {
		return 0, err
	}
	return p.samplers.put(sampler), nil
}

func (p *Platform) DestroySampler(sampler gpu.Sampler) {
	if s, ok := p.samplers.take(sampler); ok {
		vk.DestroySampler(p.device, s, nil)
	}
}
