package raster

import (
	"github.com/ibd1279/vks-examples/hybrid-raytracer/internal/gpu"
	"github.com/ibd1279/vks-examples/hybrid-raytracer/internal/resource"
	"github.com/ibd1279/vks-examples/hybrid-raytracer/internal/scene"
	"github.com/ibd1279/vks-examples/hybrid-raytracer/internal/shader"
	"github.com/ibd1279/vks-examples/hybrid-raytracer/log"
	"github.com/pkg/errors"
)

var logger = log.New("raster")

// Shader file names, relative to the shader directory.
const (
	VertexShader   = "Graphics.vert.spv"
	FragmentShader = "Graphics.frag.spv"
)

// Descriptor bindings of the graphics pipeline.
const (
	BindingUniform uint32 = iota
	BindingMaterials
	BindingPreviousDepth
)

// Pipeline is the graphics pipeline with one descriptor set per frame slot.
type Pipeline struct {
	dev       gpu.Device
	group     resource.Group
	Wireframe bool

	SetLayout gpu.DescriptorSetLayout
	Pool      gpu.DescriptorPool
	Layout    gpu.PipelineLayout
	Handle    gpu.Pipeline
	Sets      []gpu.DescriptorSet
}

// NewPipeline builds the pipeline for rp at extent. Shader modules are only
// needed during creation and are released before returning.
func NewPipeline(dev gpu.Device, shaders shader.Source, rp *RenderPass, extent gpu.Extent2D, slots int, wireframe bool) (p *Pipeline, err error) {
	p = &Pipeline{dev: dev, Wireframe: wireframe}
	defer func() {
		if err != nil {
			p.group.Release()
			p = nil
		}
	}()

	bindings := []gpu.DescriptorBinding{
		{Binding: BindingUniform, Type: gpu.DescriptorUniformBuffer, Count: 1, Stages: gpu.ShaderStageVertex | gpu.ShaderStageFragment},
		{Binding: BindingMaterials, Type: gpu.DescriptorStorageBuffer, Count: 1, Stages: gpu.ShaderStageFragment},
		{Binding: BindingPreviousDepth, Type: gpu.DescriptorCombinedImageSampler, Count: 1, Stages: gpu.ShaderStageFragment},
	}
	if p.SetLayout, err = dev.CreateDescriptorSetLayout(bindings); err != nil {
		return p, errors.Wrap(err, "create graphics descriptor set layout")
	}
	resource.Track(&p.group, p.SetLayout, dev.DestroyDescriptorSetLayout)

	if p.Pool, err = dev.CreateDescriptorPool(uint32(slots), resource.PoolSizes(bindings, slots)); err != nil {
		return p, errors.Wrap(err, "create graphics descriptor pool")
	}
	resource.Track(&p.group, p.Pool, dev.DestroyDescriptorPool)

	if p.Sets, err = dev.AllocateDescriptorSets(p.Pool, resource.Layouts(p.SetLayout, slots)); err != nil {
		return p, errors.Wrap(err, "allocate graphics descriptor sets")
	}

	if p.Layout, err = dev.CreatePipelineLayout([]gpu.DescriptorSetLayout{p.SetLayout}); err != nil {
		return p, errors.Wrap(err, "create graphics pipeline layout")
	}
	resource.Track(&p.group, p.Layout, dev.DestroyPipelineLayout)

	var modules resource.Group
	defer modules.Release()
	vert, err := shaders.Load(VertexShader)
	if err != nil {
		return p, err
	}
	resource.Track(&modules, vert, dev.DestroyShaderModule)
	frag, err := shaders.Load(FragmentShader)
	if err != nil {
		return p, err
	}
	resource.Track(&modules, frag, dev.DestroyShaderModule)

	p.Handle, err = dev.CreateGraphicsPipeline(gpu.GraphicsPipelineCreateInfo{
		Layout:               p.Layout,
		RenderPass:           rp.Handle,
		VertexShader:         vert,
		FragmentShader:       frag,
		VertexInput:          scene.VertexInput(),
		Extent:               extent,
		Wireframe:            wireframe,
		DepthTest:            true,
		ColorAttachmentCount: 2,
	})
	if err != nil {
		return p, errors.Wrap(err, "create graphics pipeline")
	}
	resource.Track(&p.group, p.Handle, dev.DestroyPipeline)

	logger.Debugf("created graphics pipeline (wireframe %t, %d sets)", wireframe, slots)
	return p, nil
}

// SetBindings is what one slot's descriptor set points at.
type SetBindings struct {
	Uniform       *resource.Buffer
	Materials     *resource.Buffer
	PreviousDepth *resource.ImageView
	Sampler       gpu.Sampler
}

// UpdateSet rewrites the descriptor set of slot.
func (p *Pipeline) UpdateSet(slot int, b SetBindings) {
	set := p.Sets[slot]
	p.dev.UpdateDescriptorSets([]gpu.DescriptorWrite{
		{
			Set:     set,
			Binding: BindingUniform,
			Type:    gpu.DescriptorUniformBuffer,
			Buffer:  &gpu.DescriptorBufferInfo{Buffer: b.Uniform.Handle, Range: gpu.WholeSize},
		},
		{
			Set:     set,
			Binding: BindingMaterials,
			Type:    gpu.DescriptorStorageBuffer,
			Buffer:  &gpu.DescriptorBufferInfo{Buffer: b.Materials.Handle, Range: gpu.WholeSize},
		},
		{
			Set:     set,
			Binding: BindingPreviousDepth,
			Type:    gpu.DescriptorCombinedImageSampler,
			Image: &gpu.DescriptorImageInfo{
				Sampler: b.Sampler,
				View:    b.PreviousDepth.Handle,
				Layout:  gpu.LayoutGeneral,
			},
		},
	})
}

// Destroy releases the pipeline, its layouts and its descriptor pool. The
// descriptor sets go with the pool.
func (p *Pipeline) Destroy() {
	if p == nil {
		return
	}
	p.group.Release()
	p.Sets = nil
	p.Handle, p.Layout, p.Pool, p.SetLayout = 0, 0, 0, 0
}
