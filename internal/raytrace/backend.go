package raytrace

import (
	"github.com/ibd1279/vks-examples/hybrid-raytracer/internal/accel"
	"github.com/ibd1279/vks-examples/hybrid-raytracer/internal/app"
	"github.com/ibd1279/vks-examples/hybrid-raytracer/internal/gpu"
	"github.com/ibd1279/vks-examples/hybrid-raytracer/internal/postfx"
	"github.com/ibd1279/vks-examples/hybrid-raytracer/internal/resource"
	"github.com/ibd1279/vks-examples/hybrid-raytracer/internal/scene"
	"github.com/pkg/errors"
)

// AccumulationFormat holds the running radiance sum.
const AccumulationFormat = gpu.FormatR32G32B32A32Sfloat

// Backend renders the raster G-buffer, traces rays over it, filters the
// result and copies it into the swap image. With ray tracing toggled off it
// behaves like the raster backend.
type Backend struct {
	dev        gpu.Device
	scene      *scene.Scene
	structures *accel.Structures

	// Per swap-chain generation.
	group        resource.Group
	accumulation *resource.Image
	output       *resource.Image
	postOutput   *resource.Image
	views        postfx.Images
	accumView    *resource.ImageView
	pipeline     *Pipeline
	sbt          *ShaderBindingTable
	post         *postfx.Stage
}

func NewBackend() *Backend { return &Backend{} }

func (b *Backend) OnDeviceSetup(req *gpu.DeviceRequirements) {
	req.AddExtensions(gpu.ExtDeferredHostOperations, gpu.ExtAccelerationStructure, gpu.ExtRayTracingPipeline)
	req.Features |= gpu.FeatureBufferDeviceAddress | gpu.FeatureRuntimeDescriptorArray |
		gpu.FeatureNonUniformImageIndexing | gpu.FeatureAccelerationStructure | gpu.FeatureRayTracingPipeline
}

// OnDeviceReady builds the acceleration structures. The scene is static, so
// this happens once per device.
func (b *Backend) OnDeviceReady(ctx *app.DeviceContext) (err error) {
	b.dev, b.scene = ctx.Device, ctx.Scene
	if b.structures, err = accel.Build(ctx.Device, ctx.Pool, ctx.Scene); err != nil {
		return errors.Wrap(err, "build acceleration structures")
	}
	return nil
}

// OnSwapChainReady creates the output images, then the pipeline, its shader
// binding table and the post-processing stage.
func (b *Backend) OnSwapChainReady(ctx *app.SwapChainContext) (err error) {
	if !ctx.RayTraced {
		return nil
	}
	defer func() {
		if err != nil {
			b.OnSwapChainTeardown()
		}
	}()

	dev, extent := ctx.Device, ctx.SwapChain.Extent
	image := func(name string, format gpu.Format, usage gpu.ImageUsage) (*resource.Image, *resource.ImageView, error) {
		img, err := resource.NewImage(dev, gpu.ImageCreateInfo{Extent: extent, Format: format, Usage: usage})
		if err != nil {
			return nil, nil, errors.Wrapf(err, "create %s image", name)
		}
		resource.Track(&b.group, img, (*resource.Image).Destroy)
		img.SetName(name)
		view, err := img.CreateView()
		if err != nil {
			return nil, nil, err
		}
		resource.Track(&b.group, view, (*resource.ImageView).Destroy)
		return img, view, nil
	}
	if b.accumulation, b.accumView, err = image("accumulation", AccumulationFormat, gpu.ImageUsageStorage); err != nil {
		return err
	}
	if b.output, b.views.Color, err = image("output", postfx.OutputFormat, gpu.ImageUsageStorage|gpu.ImageUsageSampled); err != nil {
		return err
	}
	b.postOutput, b.views.Output, err = image("post-processed output", postfx.OutputFormat,
		gpu.ImageUsageStorage|gpu.ImageUsageTransferSrc)
	if err != nil {
		return err
	}
	b.views.Depth = ctx.Depth.View

	if b.pipeline, err = NewPipeline(dev, ctx.Shaders, ctx.Slots); err != nil {
		return err
	}
	resource.Track(&b.group, b.pipeline, (*Pipeline).Destroy)
	if b.sbt, err = NewShaderBindingTable(dev, b.pipeline); err != nil {
		return err
	}
	resource.Track(&b.group, b.sbt, (*ShaderBindingTable).Destroy)
	if b.post, err = postfx.New(dev, ctx.Shaders, ctx.PostShader, ctx.SwapChain.Format, b.views); err != nil {
		return err
	}
	resource.Track(&b.group, b.post, (*postfx.Stage).Destroy)
	logger.Debugf("ray traced path ready at %dx%d", extent.Width, extent.Height)
	return nil
}

// RecordFrame records the raster pass and, when ray tracing is enabled, the
// trace, the post-processing dispatch and the copy into the swap image.
func (b *Backend) RecordFrame(rec gpu.Recorder, f *app.Frame) error {
	f.Rasterize(rec)
	if b.pipeline == nil {
		return nil
	}

	b.pipeline.UpdateSet(f.Slot.Index, SetBindings{
		TopLevel:      b.structures.Top,
		Accumulation:  b.accumView,
		Output:        b.views.Color,
		Uniform:       f.Slot.Uniform.Buffer,
		Vertices:      b.scene.VertexBuffer(),
		Indices:       b.scene.IndexBuffer(),
		Materials:     b.scene.MaterialBuffer(),
		Offsets:       b.scene.OffsetBuffer(),
		AABBs:         b.scene.AABBBuffer(),
		PreviousColor: f.PreviousColor,
		MotionVectors: f.MotionVectors,
		Sampler:       f.Sampler,
	})

	b.accumulation.Discard(rec, gpu.LayoutGeneral)
	b.output.Discard(rec, gpu.LayoutGeneral)
	b.postOutput.Discard(rec, gpu.LayoutGeneral)

	rec.BindPipeline(gpu.BindPointRayTracing, b.pipeline.Handle)
	rec.BindDescriptorSets(gpu.BindPointRayTracing, b.pipeline.Layout, []gpu.DescriptorSet{b.pipeline.Sets[f.Slot.Index]})
	rec.TraceRays(b.sbt.Raygen, b.sbt.Miss, b.sbt.Hit, b.sbt.Callable, f.Extent.Width, f.Extent.Height, 1)

	// Trace writes must land before the filter reads them.
	b.output.Transition(rec, gpu.LayoutGeneral)
	depth := f.Depth.Image
	depth.Transition(rec, gpu.LayoutGeneral)
	b.post.Record(rec, f.Extent)
	depth.Transition(rec, gpu.LayoutDepthStencilAttachmentOptimal)

	b.postOutput.Transition(rec, gpu.LayoutTransferSrcOptimal)
	f.Color.Discard(rec, gpu.LayoutTransferDstOptimal)
	resource.CopyImage(rec, b.postOutput, f.Color)
	f.Color.Transition(rec, gpu.LayoutPresentSrc)
	return nil
}

func (b *Backend) OnSwapChainTeardown() {
	b.group.Release()
	b.accumulation, b.output, b.postOutput = nil, nil, nil
	b.views, b.accumView = postfx.Images{}, nil
	b.pipeline, b.sbt, b.post = nil, nil, nil
}

func (b *Backend) OnDeviceTeardown() {
	b.structures.Destroy()
	b.structures = nil
}
