package vkdriver

import (
	"github.com/andewx/framevk/gpu"
	vk "github.com/vulkan-go/vulkan"
)

// VertexAttribute places one shader input inside a vertex.
type VertexAttribute struct {
	Location uint32
	Format   vk.Format
	Offset   uint32
}

// PipelineDesc is everything the graphics pipeline varies on. Viewport and
// scissor are dynamic so the pipeline survives swapchain rebuilds.
type PipelineDesc struct {
	RenderPass   gpu.RenderPass
	SetLayouts   []gpu.DescriptorSetLayout
	Vertex       vk.ShaderModule
	Fragment     vk.ShaderModule
	Samples      vk.SampleCountFlagBits
	VertexStride uint32
	Attributes   []VertexAttribute
}

// PipelineBuilder holds the fixed function state of a triangle list pipeline
// with depth testing and back face culling.
type PipelineBuilder struct {
	shaderStages         []vk.PipelineShaderStageCreateInfo
	vertexBindings       []vk.VertexInputBindingDescription
	vertexAttributes     []vk.VertexInputAttributeDescription
	inputAssembly        vk.PipelineInputAssemblyStateCreateInfo
	rasterizer           vk.PipelineRasterizationStateCreateInfo
	multisampling        vk.PipelineMultisampleStateCreateInfo
	colorBlendAttachment vk.PipelineColorBlendAttachmentState
	depthStencil         vk.PipelineDepthStencilStateCreateInfo
	dynamicStates        []vk.DynamicState
}

func NewPipelineBuilder(desc PipelineDesc) *PipelineBuilder {
	pb := &PipelineBuilder{}

	pb.shaderStages = []vk.PipelineShaderStageCreateInfo{
		{
			SType:  vk.StructureTypePipelineShaderStageCreateInfo,
			Stage:  vk.ShaderStageVertexBit,
			Module: desc.Vertex,
			PName:  safeString("main"),
		},
		{
			SType:  vk.StructureTypePipelineShaderStageCreateInfo,
			Stage:  vk.ShaderStageFragmentBit,
			Module: desc.Fragment,
			PName:  safeString("main"),
		},
	}

	if desc.VertexStride > 0 {
		pb.vertexBindings = []vk.VertexInputBindingDescription{{
			Binding:   0,
			Stride:    desc.VertexStride,
			InputRate: vk.VertexInputRateVertex,
		}}
	}
	for _, attr := range desc.Attributes {
		pb.vertexAttributes = append(pb.vertexAttributes, vk.VertexInputAttributeDescription{
			Location: attr.Location,
			Binding:  0,
			Format:   attr.Format,
			Offset:   attr.Offset,
		})
	}

	pb.inputAssembly = vk.PipelineInputAssemblyStateCreateInfo{
		SType:                  vk.StructureTypePipelineInputAssemblyStateCreateInfo,
		Topology:               vk.PrimitiveTopologyTriangleList,
		PrimitiveRestartEnable: vk.False,
	}

	pb.rasterizer = vk.PipelineRasterizationStateCreateInfo{
		SType:                   vk.StructureTypePipelineRasterizationStateCreateInfo,
		DepthClampEnable:        vk.False,
		RasterizerDiscardEnable: vk.False,
		PolygonMode:             vk.PolygonModeFill,
		CullMode:                vk.CullModeFlags(vk.CullModeBackBit),
		FrontFace:               vk.FrontFaceCounterClockwise,
		DepthBiasEnable:         vk.False,
		LineWidth:               1.0,
	}

	samples := desc.Samples
	if samples == 0 {
		samples = vk.SampleCount1Bit
	}
	pb.multisampling = vk.PipelineMultisampleStateCreateInfo{
		SType:                 vk.StructureTypePipelineMultisampleStateCreateInfo,
		RasterizationSamples:  samples,
		SampleShadingEnable:   vk.False,
		MinSampleShading:      1.0,
		AlphaToCoverageEnable: vk.False,
		AlphaToOneEnable:      vk.False,
	}

	pb.colorBlendAttachment = vk.PipelineColorBlendAttachmentState{
		ColorWriteMask: vk.ColorComponentFlags(vk.ColorComponentRBit | vk.ColorComponentGBit |
			vk.ColorComponentBBit | vk.ColorComponentABit),
		BlendEnable: vk.False,
	}

	pb.depthStencil = vk.PipelineDepthStencilStateCreateInfo{
		SType:                 vk.StructureTypePipelineDepthStencilStateCreateInfo,
		DepthTestEnable:       vk.True,
		DepthWriteEnable:      vk.True,
		DepthCompareOp:        vk.CompareOpLess,
		DepthBoundsTestEnable: vk.False,
		StencilTestEnable:     vk.False,
		MinDepthBounds:        0.0,
		MaxDepthBounds:        1.0,
	}

	pb.dynamicStates = []vk.DynamicState{vk.DynamicStateViewport, vk.DynamicStateScissor}
	return pb
}

// Build creates the pipeline layout and the pipeline against a render pass
// of this platform.
func (pb *PipelineBuilder) Build(p *Platform, desc PipelineDesc) (gpu.Pipeline, gpu.PipelineLayout, error) {
	pass, err := p.renderPasses.get(desc.RenderPass)
	if err != nil {
		return 0, 0, err
	}
	setLayouts := make([]vk.DescriptorSetLayout, len(desc.SetLayouts))
	for i, h := range desc.SetLayouts {
		if setLayouts[i], err = p.setLayouts.get(h); err != nil {
			return 0, 0, err
		}
	}

	var layout vk.PipelineLayout
	ret := vk.CreatePipelineLayout(p.device, &vk.PipelineLayoutCreateInfo{
		SType:          vk.StructureTypePipelineLayoutCreateInfo,
		SetLayoutCount: uint32(len(setLayouts)),
		PSetLayouts:    setLayouts,
	}, nil, &layout)
	if err := resultError(ret, "create pipeline layout"); err != nil {
		return 0, 0, err
	}

	vertexInput := vk.PipelineVertexInputStateCreateInfo{
		SType:                           vk.StructureTypePipelineVertexInputStateCreateInfo,
		VertexBindingDescriptionCount:   uint32(len(pb.vertexBindings)),
		PVertexBindingDescriptions:      pb.vertexBindings,
		VertexAttributeDescriptionCount: uint32(len(pb.vertexAttributes)),
		PVertexAttributeDescriptions:    pb.vertexAttributes,
	}
	viewport := vk.PipelineViewportStateCreateInfo{
		SType:         vk.StructureTypePipelineViewportStateCreateInfo,
		ViewportCount: 1,
		ScissorCount:  1,
	}
	blend := vk.PipelineColorBlendStateCreateInfo{
		SType:           vk.StructureTypePipelineColorBlendStateCreateInfo,
		LogicOpEnable:   vk.False,
		LogicOp:         vk.LogicOpCopy,
		AttachmentCount: 1,
		PAttachments:    []vk.PipelineColorBlendAttachmentState{pb.colorBlendAttachment},
	}
	dynamic := vk.PipelineDynamicStateCreateInfo{
		SType:             vk.StructureTypePipelineDynamicStateCreateInfo,
		DynamicStateCount: uint32(len(pb.dynamicStates)),
		PDynamicStates:    pb.dynamicStates,
	}

	info := vk.GraphicsPipelineCreateInfo{
		SType:               vk.StructureTypeGraphicsPipelineCreateInfo,
		StageCount:          uint32(len(pb.shaderStages)),
		PStages:             pb.shaderStages,
		PVertexInputState:   &vertexInput,
		PInputAssemblyState: &pb.inputAssembly,
		PViewportState:      &viewport,
		PRasterizationState: &pb.rasterizer,
		PMultisampleState:   &pb.multisampling,
		PDepthStencilState:  &pb.depthStencil,
		PColorBlendState:    &blend,
		PDynamicState:       &dynamic,
		Layout:              layout,
		RenderPass:          pass,
		Subpass:             0,
	}
	pipelines := make([]vk.Pipeline, 1)
	ret = vk.CreateGraphicsPipelines(p.device, vk.PipelineCache(vk.NullHandle), 1,
		[]vk.GraphicsPipelineCreateInfo{info}, nil, pipelines)
	if err := resultError(ret, "create graphics pipeline"); err != nil {
		vk.DestroyPipelineLayout(p.device, layout, nil)
		return 0, 0, err
	}
	return p.pipelines.put(pipelines[0]), p.layouts.put(layout), nil
}

// CreatePipeline builds the default pipeline for desc.
func (p *Platform) CreatePipeline(desc PipelineDesc) (gpu.Pipeline, gpu.PipelineLayout, error) {
	return NewPipelineBuilder(desc).Build(p, desc)
}

func (p *Platform) DestroyPipeline(pipeline gpu.Pipeline) {
	if pl, ok := p.pipelines.take(pipeline); ok {
		vk.DestroyPipeline(p.device, pl, nil)
	}
}

func (p *Platform) DestroyPipelineLayout(layout gpu.PipelineLayout) {
	if l, ok := p.layouts.take(layout); ok {
		vk.DestroyPipelineLayout(p.device, l, nil)
	}
}
