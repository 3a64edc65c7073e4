// Package raytrace implements the hardware ray traced render path: the ray
// tracing pipeline, its shader binding table and the per-frame recording.
package raytrace

import (
	"github.com/ibd1279/vks-examples/hybrid-raytracer/internal/gpu"
	"github.com/ibd1279/vks-examples/hybrid-raytracer/internal/resource"
	"github.com/ibd1279/vks-examples/hybrid-raytracer/internal/shader"
	"github.com/ibd1279/vks-examples/hybrid-raytracer/log"
	"github.com/pkg/errors"
)

var logger = log.New("raytrace")

// Shader file names, relative to the shader directory.
const (
	RaygenShader                 = "RayTracing.rgen.spv"
	MissShader                   = "RayTracing.rmiss.spv"
	ClosestHitShader             = "RayTracing.rchit.spv"
	ProceduralClosestHitShader   = "RayTracing.Procedural.rchit.spv"
	ProceduralIntersectionShader = "RayTracing.Procedural.rint.spv"
)

// Descriptor bindings of the ray tracing pipeline.
const (
	BindingTopLevel uint32 = iota
	BindingAccumulation
	BindingOutput
	BindingUniform
	BindingVertices
	BindingIndices
	BindingMaterials
	BindingOffsets
	BindingAABBs
	BindingPreviousColor
	BindingMotionVectors
)

// Shader group indices. The hit groups are selected per instance.
const (
	GroupRaygen = iota
	GroupMiss
	GroupTrianglesHit
	GroupProceduralHit
	groupCount
)

// MaxRecursionDepth bounds trace calls from hit shaders.
const MaxRecursionDepth = 1

func bindings() []gpu.DescriptorBinding {
	const (
		rgen = gpu.ShaderStageRaygen
		miss = gpu.ShaderStageMiss
		chit = gpu.ShaderStageClosestHit
		rint = gpu.ShaderStageIntersection
	)
	return []gpu.DescriptorBinding{
		{Binding: BindingTopLevel, Type: gpu.DescriptorAccelerationStructure, Count: 1, Stages: rgen | chit},
		{Binding: BindingAccumulation, Type: gpu.DescriptorStorageImage, Count: 1, Stages: rgen},
		{Binding: BindingOutput, Type: gpu.DescriptorStorageImage, Count: 1, Stages: rgen},
		{Binding: BindingUniform, Type: gpu.DescriptorUniformBuffer, Count: 1, Stages: rgen | miss | chit},
		{Binding: BindingVertices, Type: gpu.DescriptorStorageBuffer, Count: 1, Stages: chit},
		{Binding: BindingIndices, Type: gpu.DescriptorStorageBuffer, Count: 1, Stages: chit},
		{Binding: BindingMaterials, Type: gpu.DescriptorStorageBuffer, Count: 1, Stages: chit | rint},
		{Binding: BindingOffsets, Type: gpu.DescriptorStorageBuffer, Count: 1, Stages: chit},
		{Binding: BindingAABBs, Type: gpu.DescriptorStorageBuffer, Count: 1, Stages: chit | rint},
		{Binding: BindingPreviousColor, Type: gpu.DescriptorCombinedImageSampler, Count: 1, Stages: rgen},
		{Binding: BindingMotionVectors, Type: gpu.DescriptorCombinedImageSampler, Count: 1, Stages: rgen},
	}
}

// Pipeline is the ray tracing pipeline with one descriptor set per slot.
type Pipeline struct {
	dev   gpu.Device
	group resource.Group

	SetLayout gpu.DescriptorSetLayout
	Pool      gpu.DescriptorPool
	Layout    gpu.PipelineLayout
	Handle    gpu.Pipeline
	Sets      []gpu.DescriptorSet
}

func NewPipeline(dev gpu.Device, shaders shader.Source, slots int) (p *Pipeline, err error) {
	p = &Pipeline{dev: dev}
	defer func() {
		if err != nil {
			p.group.Release()
			p = nil
		}
	}()

	layout := bindings()
	if p.SetLayout, err = dev.CreateDescriptorSetLayout(layout); err != nil {
		return p, errors.Wrap(err, "create ray tracing descriptor set layout")
	}
	resource.Track(&p.group, p.SetLayout, dev.DestroyDescriptorSetLayout)
	if p.Pool, err = dev.CreateDescriptorPool(uint32(slots), resource.PoolSizes(layout, slots)); err != nil {
		return p, errors.Wrap(err, "create ray tracing descriptor pool")
	}
	resource.Track(&p.group, p.Pool, dev.DestroyDescriptorPool)
	if p.Sets, err = dev.AllocateDescriptorSets(p.Pool, resource.Layouts(p.SetLayout, slots)); err != nil {
		return p, errors.Wrap(err, "allocate ray tracing descriptor sets")
	}
	if p.Layout, err = dev.CreatePipelineLayout([]gpu.DescriptorSetLayout{p.SetLayout}); err != nil {
		return p, errors.Wrap(err, "create ray tracing pipeline layout")
	}
	resource.Track(&p.group, p.Layout, dev.DestroyPipelineLayout)

	var modules resource.Group
	defer modules.Release()
	files := []struct {
		name  string
		stage gpu.ShaderStage
	}{
		{RaygenShader, gpu.ShaderStageRaygen},
		{MissShader, gpu.ShaderStageMiss},
		{ClosestHitShader, gpu.ShaderStageClosestHit},
		{ProceduralClosestHitShader, gpu.ShaderStageClosestHit},
		{ProceduralIntersectionShader, gpu.ShaderStageIntersection},
	}
	stages := make([]gpu.ShaderStageInfo, len(files))
	for i, f := range files {
		module, err := shaders.Load(f.name)
		if err != nil {
			return p, err
		}
		resource.Track(&modules, module, dev.DestroyShaderModule)
		stages[i] = gpu.ShaderStageInfo{Stage: f.stage, Module: module}
	}

	general := func(stage uint32) gpu.ShaderGroup {
		return gpu.ShaderGroup{Type: gpu.ShaderGroupGeneral, General: stage,
			ClosestHit: gpu.ShaderUnused, AnyHit: gpu.ShaderUnused, Intersection: gpu.ShaderUnused}
	}
	groups := []gpu.ShaderGroup{
		GroupRaygen: general(0),
		GroupMiss:   general(1),
		GroupTrianglesHit: {Type: gpu.ShaderGroupTrianglesHit, General: gpu.ShaderUnused,
			ClosestHit: 2, AnyHit: gpu.ShaderUnused, Intersection: gpu.ShaderUnused},
		GroupProceduralHit: {Type: gpu.ShaderGroupProceduralHit, General: gpu.ShaderUnused,
			ClosestHit: 3, AnyHit: gpu.ShaderUnused, Intersection: 4},
	}

	p.Handle, err = dev.CreateRayTracingPipeline(gpu.RayTracingPipelineCreateInfo{
		Layout:            p.Layout,
		Stages:            stages,
		Groups:            groups,
		MaxRecursionDepth: MaxRecursionDepth,
	})
	if err != nil {
		return p, errors.Wrap(err, "create ray tracing pipeline")
	}
	resource.Track(&p.group, p.Handle, dev.DestroyPipeline)
	logger.Debugf("created ray tracing pipeline with %d groups", len(groups))
	return p, nil
}

// SetBindings is what one slot's descriptor set points at.
type SetBindings struct {
	TopLevel      gpu.AccelerationStructure
	Accumulation  *resource.ImageView
	Output        *resource.ImageView
	Uniform       *resource.Buffer
	Vertices      *resource.Buffer
	Indices       *resource.Buffer
	Materials     *resource.Buffer
	Offsets       *resource.Buffer
	AABBs         *resource.Buffer
	PreviousColor *resource.ImageView
	MotionVectors *resource.ImageView
	Sampler       gpu.Sampler
}

// UpdateSet rewrites the descriptor set of slot. The slot must not be in
// flight.
func (p *Pipeline) UpdateSet(slot int, b SetBindings) {
	set := p.Sets[slot]
	storage := func(binding uint32, view *resource.ImageView) gpu.DescriptorWrite {
		return gpu.DescriptorWrite{Set: set, Binding: binding, Type: gpu.DescriptorStorageImage,
			Image: &gpu.DescriptorImageInfo{View: view.Handle, Layout: gpu.LayoutGeneral}}
	}
	buffer := func(binding uint32, typ gpu.DescriptorType, buf *resource.Buffer) gpu.DescriptorWrite {
		return gpu.DescriptorWrite{Set: set, Binding: binding, Type: typ,
			Buffer: &gpu.DescriptorBufferInfo{Buffer: buf.Handle, Range: gpu.WholeSize}}
	}
	sampled := func(binding uint32, view *resource.ImageView, layout gpu.ImageLayout) gpu.DescriptorWrite {
		return gpu.DescriptorWrite{Set: set, Binding: binding, Type: gpu.DescriptorCombinedImageSampler,
			Image: &gpu.DescriptorImageInfo{Sampler: b.Sampler, View: view.Handle, Layout: layout}}
	}
	p.dev.UpdateDescriptorSets([]gpu.DescriptorWrite{
		{Set: set, Binding: BindingTopLevel, Type: gpu.DescriptorAccelerationStructure, AccelerationStructure: b.TopLevel},
		storage(BindingAccumulation, b.Accumulation),
		storage(BindingOutput, b.Output),
		buffer(BindingUniform, gpu.DescriptorUniformBuffer, b.Uniform),
		buffer(BindingVertices, gpu.DescriptorStorageBuffer, b.Vertices),
		buffer(BindingIndices, gpu.DescriptorStorageBuffer, b.Indices),
		buffer(BindingMaterials, gpu.DescriptorStorageBuffer, b.Materials),
		buffer(BindingOffsets, gpu.DescriptorStorageBuffer, b.Offsets),
		buffer(BindingAABBs, gpu.DescriptorStorageBuffer, b.AABBs),
		sampled(BindingPreviousColor, b.PreviousColor, gpu.LayoutGeneral),
		sampled(BindingMotionVectors, b.MotionVectors, gpu.LayoutShaderReadOnlyOptimal),
	})
}

func (p *Pipeline) Destroy() {
	if p == nil {
		return
	}
	p.group.Release()
	p.Sets = nil
	p.Handle, p.Layout, p.Pool, p.SetLayout = 0, 0, 0, 0
}
