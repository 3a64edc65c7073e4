// Package postfx runs the depth-aware filter between the ray traced output
// and presentation.
package postfx

import (
	"github.com/ibd1279/vks-examples/hybrid-raytracer/internal/gpu"
	"github.com/ibd1279/vks-examples/hybrid-raytracer/internal/resource"
	"github.com/ibd1279/vks-examples/hybrid-raytracer/internal/shader"
	"github.com/ibd1279/vks-examples/hybrid-raytracer/log"
	"github.com/pkg/errors"
)

var logger = log.New("postfx")

// OutputFormat is the format of the filtered image. Storage images cannot be
// sRGB, so the result is written linearly and copied into the swap chain.
const OutputFormat = gpu.FormatR8G8B8A8Unorm

const (
	BindingColor uint32 = iota
	BindingDepth
	BindingOutput
)

// Entry points of the built-in shader.
const (
	EntryRGBA = "main"
	EntryBGRA = "main_bgra"
)

// Images are the views the stage reads and writes. All of them must be in
// the GENERAL layout while the stage runs.
type Images struct {
	Color  *resource.ImageView
	Depth  *resource.ImageView
	Output *resource.ImageView
}

// Stage is one compute pipeline with one descriptor set. It lives for one
// swap-chain generation.
type Stage struct {
	dev   gpu.Device
	group resource.Group

	Entry     string
	SetLayout gpu.DescriptorSetLayout
	Pool      gpu.DescriptorPool
	Layout    gpu.PipelineLayout
	Handle    gpu.Pipeline
	Set       gpu.DescriptorSet
}

// New builds the stage. With override empty the embedded shader is compiled
// and its entry point picked to match presentFormat's channel order;
// otherwise override names a SPIR-V file with a "main" entry point.
func New(dev gpu.Device, shaders shader.Compiler, override string, presentFormat gpu.Format, images Images) (s *Stage, err error) {
	s = &Stage{dev: dev, Entry: EntryFor(presentFormat)}
	defer func() {
		if err != nil {
			s.group.Release()
			s = nil
		}
	}()

	bindings := []gpu.DescriptorBinding{
		{Binding: BindingColor, Type: gpu.DescriptorSampledImage, Count: 1, Stages: gpu.ShaderStageCompute},
		{Binding: BindingDepth, Type: gpu.DescriptorSampledImage, Count: 1, Stages: gpu.ShaderStageCompute},
		{Binding: BindingOutput, Type: gpu.DescriptorStorageImage, Count: 1, Stages: gpu.ShaderStageCompute},
	}
	if s.SetLayout, err = dev.CreateDescriptorSetLayout(bindings); err != nil {
		return s, errors.Wrap(err, "create post-processing descriptor set layout")
	}
	resource.Track(&s.group, s.SetLayout, dev.DestroyDescriptorSetLayout)
	if s.Pool, err = dev.CreateDescriptorPool(1, resource.PoolSizes(bindings, 1)); err != nil {
		return s, errors.Wrap(err, "create post-processing descriptor pool")
	}
	resource.Track(&s.group, s.Pool, dev.DestroyDescriptorPool)
	if s.Layout, err = dev.CreatePipelineLayout([]gpu.DescriptorSetLayout{s.SetLayout}); err != nil {
		return s, errors.Wrap(err, "create post-processing pipeline layout")
	}
	resource.Track(&s.group, s.Layout, dev.DestroyPipelineLayout)

	var module gpu.ShaderModule
	if override != "" {
		s.Entry = EntryRGBA
		module, err = shaders.Load(override)
	} else {
		module, err = shaders.LoadSource("postprocess.wgsl", shader.PostProcessSource())
	}
	if err != nil {
		return s, err
	}
	defer dev.DestroyShaderModule(module)

	s.Handle, err = dev.CreateComputePipeline(gpu.ComputePipelineCreateInfo{
		Layout: s.Layout,
		Shader: module,
		Entry:  s.Entry,
	})
	if err != nil {
		return s, errors.Wrap(err, "create post-processing pipeline")
	}
	resource.Track(&s.group, s.Handle, dev.DestroyPipeline)

	if err = s.Bind(images); err != nil {
		return s, err
	}
	logger.Debugf("created post-processing stage (entry %s)", s.Entry)
	return s, nil
}

// EntryFor picks the entry point writing channels in format's byte order.
func EntryFor(format gpu.Format) string {
	if format.Unorm() == gpu.FormatB8G8R8A8Unorm {
		return EntryBGRA
	}
	return EntryRGBA
}

// Bind resets the pool and writes a fresh descriptor set for images. It must
// not be called while a frame using the stage is in flight.
func (s *Stage) Bind(images Images) error {
	if err := s.dev.ResetDescriptorPool(s.Pool); err != nil {
		return errors.Wrap(err, "reset post-processing descriptor pool")
	}
	sets, err := s.dev.AllocateDescriptorSets(s.Pool, []gpu.DescriptorSetLayout{s.SetLayout})
	if err != nil {
		return errors.Wrap(err, "allocate post-processing descriptor set")
	}
	s.Set = sets[0]
	image := func(binding uint32, typ gpu.DescriptorType, view *resource.ImageView) gpu.DescriptorWrite {
		return gpu.DescriptorWrite{Set: s.Set, Binding: binding, Type: typ,
			Image: &gpu.DescriptorImageInfo{View: view.Handle, Layout: gpu.LayoutGeneral}}
	}
	s.dev.UpdateDescriptorSets([]gpu.DescriptorWrite{
		image(BindingColor, gpu.DescriptorSampledImage, images.Color),
		image(BindingDepth, gpu.DescriptorSampledImage, images.Depth),
		image(BindingOutput, gpu.DescriptorStorageImage, images.Output),
	})
	return nil
}

// Record dispatches one invocation per pixel of extent.
func (s *Stage) Record(rec gpu.Recorder, extent gpu.Extent2D) {
	rec.BindPipeline(gpu.BindPointCompute, s.Handle)
	rec.BindDescriptorSets(gpu.BindPointCompute, s.Layout, []gpu.DescriptorSet{s.Set})
	rec.Dispatch(extent.Width, extent.Height, 1)
}

// Destroy releases the stage. The descriptor set goes with the pool.
func (s *Stage) Destroy() {
	if s == nil {
		return
	}
	s.group.Release()
	s.Set = 0
}
