package main

import (
	"path/filepath"

	"github.com/andewx/framevk"
	"github.com/andewx/framevk/assets"
	"github.com/andewx/framevk/gpu"
	"github.com/andewx/framevk/vkdriver"
	vk "github.com/vulkan-go/vulkan"
)

const sceneOwner = "scene"

// setupScene uploads the cube and its texture, builds the descriptor sets
// and the pipeline, and hands the draw state to the engine. Everything it
// creates is owned by the renderer's arena.
func setupScene(p *vkdriver.Platform, r *framevk.Renderer, cfg framevk.Config, samples int) error {
	up, arena, engine := r.Uploader(), r.Arena(), r.Engine()
	mesh := assets.Cube()

	vertices, err := up.UploadBuffer(mesh.VertexBytes(), vk.BufferUsageFlags(vk.BufferUsageVertexBufferBit), 0)
	if err != nil {
		return err
	}
	if err := vertices.Track(arena, sceneOwner); err != nil {
		return err
	}
	indices, err := up.UploadBuffer(mesh.IndexBytes(), vk.BufferUsageFlags(vk.BufferUsageIndexBufferBit), 0)
	if err != nil {
		return err
	}
	if err := indices.Track(arena, sceneOwner); err != nil {
		return err
	}

	tex := assets.Checkerboard(256, 8)
	if cfg.Texture != "" {
		if tex, err = assets.LoadTexture(cfg.Texture); err != nil {
			return err
		}
	}
	image, err := up.UploadImage(tex.Pixels, framevk.ImageDesc{
		Width:   tex.Width,
		Height:  tex.Height,
		Format:  vk.FormatR8g8b8a8Srgb,
		Mipmaps: true,
	})
	if err != nil {
		return err
	}
	if err := image.Track(arena, sceneOwner); err != nil {
		return err
	}

	sampler, err := p.CreateSampler(image.MipLevels)
	if err != nil {
		return err
	}
	if err := arena.Track(sceneOwner, gpu.KindSampler, gpu.Handle(sampler), func() { p.DestroySampler(sampler) }); err != nil {
		return err
	}

	setLayout, err := p.CreateDescriptorSetLayout(
		vkdriver.DescriptorBinding{
			Binding: 0,
			Type:    vk.DescriptorTypeUniformBuffer,
			Stages:  vk.ShaderStageFlags(vk.ShaderStageVertexBit | vk.ShaderStageFragmentBit),
		},
		vkdriver.DescriptorBinding{
			Binding: 1,
			Type:    vk.DescriptorTypeCombinedImageSampler,
			Stages:  vk.ShaderStageFlags(vk.ShaderStageFragmentBit),
		},
	)
	if err != nil {
		return err
	}
	if err := arena.Track(sceneOwner, gpu.KindDescriptorSetLayout, gpu.Handle(setLayout), func() { p.DestroyDescriptorSetLayout(setLayout) }); err != nil {
		return err
	}

	sets, err := p.AllocateDescriptorSets(setLayout, engine.FramesInFlight())
	if err != nil {
		return err
	}
	for i, set := range sets {
		ubo, size := engine.UniformBuffer(i)
		p.WriteBufferDescriptor(set, 0, ubo, size)
		p.WriteImageDescriptor(set, 1, image.View, sampler)
	}

	vert, err := p.LoadShaderFile(filepath.Join(cfg.Shaders, "vert.spv"))
	if err != nil {
		return err
	}
	defer p.DestroyShaderModule(vert)
	frag, err := p.LoadShaderFile(filepath.Join(cfg.Shaders, "frag.spv"))
	if err != nil {
		return err
	}
	defer p.DestroyShaderModule(frag)

	msaa := cfg
	msaa.MSAASamples = samples
	pipeline, layout, err := p.CreatePipeline(vkdriver.PipelineDesc{
		RenderPass:   r.RenderPass(),
		SetLayouts:   []gpu.DescriptorSetLayout{setLayout},
		Vertex:       vert,
		Fragment:     frag,
		Samples:      msaa.SampleCount(),
		VertexStride: assets.VertexStride,
		Attributes:   assets.VertexAttributes(),
	})
	if err != nil {
		return err
	}
	layoutParent := framevk.ParentOf(gpu.KindPipelineLayout, gpu.Handle(layout))
	if err := arena.Track(sceneOwner, gpu.KindPipelineLayout, gpu.Handle(layout), func() { p.DestroyPipelineLayout(layout) },
		framevk.ParentOf(gpu.KindDescriptorSetLayout, gpu.Handle(setLayout))); err != nil {
		return err
	}
	if err := arena.Track(sceneOwner, gpu.KindPipeline, gpu.Handle(pipeline), func() { p.DestroyPipeline(pipeline) }, layoutParent); err != nil {
		return err
	}

	return engine.SetDrawConfig(framevk.DrawConfig{
		Pipeline:       pipeline,
		Layout:         layout,
		VertexBuffer:   vertices.Buffer,
		IndexBuffer:    indices.Buffer,
		IndexType:      mesh.IndexType(),
		IndexCount:     uint32(len(mesh.Indices)),
		DescriptorSets: sets,
	})
}
