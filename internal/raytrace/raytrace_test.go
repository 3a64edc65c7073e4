package raytrace

import (
	"errors"
	"testing"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/ibd1279/vks-examples/hybrid-raytracer/internal/app"
	"github.com/ibd1279/vks-examples/hybrid-raytracer/internal/frame"
	"github.com/ibd1279/vks-examples/hybrid-raytracer/internal/gpu"
	"github.com/ibd1279/vks-examples/hybrid-raytracer/internal/gpu/gputest"
	"github.com/ibd1279/vks-examples/hybrid-raytracer/internal/resource"
	"github.com/ibd1279/vks-examples/hybrid-raytracer/internal/scene"
	"github.com/ibd1279/vks-examples/hybrid-raytracer/internal/swapchain"
)

var errFake = errors.New("fake failure")

type fakeShaders struct {
	dev    gpu.Device
	loaded []string
}

func (f *fakeShaders) Load(name string) (gpu.ShaderModule, error) {
	f.loaded = append(f.loaded, name)
	return f.dev.CreateShaderModule([]uint32{0x07230203})
}

func (f *fakeShaders) LoadSource(name, wgsl string) (gpu.ShaderModule, error) {
	f.loaded = append(f.loaded, name)
	return f.dev.CreateShaderModule([]uint32{0x07230203})
}

func TestLayout(t *testing.T) {
	specs := []struct {
		props gpu.RayTracingProperties
		exp   Layout
	}{
		{
			gpu.RayTracingProperties{ShaderGroupHandleSize: 32, ShaderGroupHandleAlignment: 32, ShaderGroupBaseAlignment: 64},
			Layout{HandleSize: 32, RecordStride: 32, RaygenSize: 64, MissOffset: 64, MissSize: 64, HitOffset: 128, HitSize: 64},
		},
		{
			gpu.RayTracingProperties{ShaderGroupHandleSize: 32, ShaderGroupHandleAlignment: 64, ShaderGroupBaseAlignment: 64},
			Layout{HandleSize: 32, RecordStride: 64, RaygenSize: 64, MissOffset: 64, MissSize: 64, HitOffset: 128, HitSize: 128},
		},
		{
			gpu.RayTracingProperties{ShaderGroupHandleSize: 16, ShaderGroupHandleAlignment: 16, ShaderGroupBaseAlignment: 16},
			Layout{HandleSize: 16, RecordStride: 16, RaygenSize: 16, MissOffset: 16, MissSize: 16, HitOffset: 32, HitSize: 32},
		},
	}
	for index, spec := range specs {
		if got := NewLayout(spec.props); got != spec.exp {
			t.Fatalf("[spec %d] expected %+v; got %+v", index, spec.exp, got)
		}
	}
	if size := NewLayout(specs[0].props).Size(); size != 192 {
		t.Fatalf("expected a 192 byte table; got %d", size)
	}
}

func TestShaderBindingTableRecords(t *testing.T) {
	dev := gputest.NewDevice()
	shaders := &fakeShaders{dev: dev}
	p, err := NewPipeline(dev, shaders, 2)
	if err != nil {
		t.Fatal(err)
	}
	if len(p.Sets) != 2 || dev.Live("shader module") != 0 {
		t.Fatalf("expected two sets and released modules; got %d sets, %d modules", len(p.Sets), dev.Live("shader module"))
	}
	sbt, err := NewShaderBindingTable(dev, p)
	if err != nil {
		t.Fatal(err)
	}

	data := dev.Memory[sbt.buffer.Memory]
	specs := []struct {
		offset int
		group  byte
	}{
		{0, GroupRaygen + 1},
		{64, GroupMiss + 1},
		{128, GroupTrianglesHit + 1},
		{160, GroupProceduralHit + 1},
	}
	for index, spec := range specs {
		if data[spec.offset] != spec.group || data[spec.offset+31] != spec.group {
			t.Fatalf("[spec %d] expected group %d handle at %d; got %d", index, spec.group-1, spec.offset, data[spec.offset])
		}
	}
	addr := sbt.buffer.Address()
	if sbt.Raygen.Stride != sbt.Raygen.Size || sbt.Miss.DeviceAddress != addr+64 || sbt.Hit.DeviceAddress != addr+128 {
		t.Fatalf("unexpected regions %+v %+v %+v", sbt.Raygen, sbt.Miss, sbt.Hit)
	}
	if sbt.Callable != (gpu.StridedRegion{}) {
		t.Fatalf("expected an empty callable region; got %+v", sbt.Callable)
	}

	sbt.Destroy()
	p.Destroy()
	if leaks := dev.Leaks(); len(leaks) != 0 {
		t.Fatalf("expected no leaks; got %v", leaks)
	}
}

// harness is a device with an uploaded scene, built structures and one
// swap-chain generation prepared the way the orchestrator does it.
type harness struct {
	dev     *gputest.Device
	pool    *resource.CommandPool
	sc      *scene.Scene
	swap    *swapchain.SwapChain
	depth   *swapchain.DepthBuffer
	slots   *frame.Set
	history []*resource.Image
	views   []*resource.ImageView
	backend *Backend
	ctx     *app.SwapChainContext
}

func newHarness(t *testing.T) *harness {
	h := &harness{dev: gputest.NewDevice(), backend: NewBackend()}
	var err error
	if h.pool, err = resource.NewCommandPool(h.dev); err != nil {
		t.Fatal(err)
	}
	box := scene.NewBox("box", mgl32.Vec3{}, mgl32.Vec3{1, 1, 1}, 0)
	ball := scene.NewSphere("ball", mgl32.Vec3{0, 2, 0}, 0.5, 0)
	h.sc = scene.New("test", []scene.Model{box, ball}, nil, scene.Camera{})
	if err = h.sc.Upload(h.dev, h.pool); err != nil {
		t.Fatal(err)
	}

	var req gpu.DeviceRequirements
	h.backend.OnDeviceSetup(&req)
	if !req.HasExtension(gpu.ExtRayTracingPipeline) || !req.Features.Has(gpu.FeatureAccelerationStructure|gpu.FeatureBufferDeviceAddress) {
		t.Fatalf("unexpected requirements %+v", req)
	}
	devCtx := &app.DeviceContext{Device: h.dev, Pool: h.pool, Scene: h.sc, Shaders: &fakeShaders{dev: h.dev}}
	if err = h.backend.OnDeviceReady(devCtx); err != nil {
		t.Fatal(err)
	}

	if h.swap, err = swapchain.New(h.dev, h.dev.Extent, gpu.PresentModeFifo); err != nil {
		t.Fatal(err)
	}
	if h.depth, err = swapchain.NewDepthBuffer(h.dev, h.swap.Extent); err != nil {
		t.Fatal(err)
	}
	if h.slots, err = frame.NewSet(h.dev, h.pool, h.swap.Len()); err != nil {
		t.Fatal(err)
	}
	h.ctx = &app.SwapChainContext{
		DeviceContext: devCtx,
		SwapChain:     h.swap,
		Depth:         h.depth,
		Slots:         h.slots.Len(),
		RayTraced:     true,
	}
	return h
}

// view creates an image the size of the swap chain and one view of it.
func (h *harness) view(t *testing.T, format gpu.Format) *resource.ImageView {
	img, err := resource.NewImage(h.dev, gpu.ImageCreateInfo{Extent: h.swap.Extent, Format: format})
	if err != nil {
		t.Fatal(err)
	}
	v, err := img.CreateView()
	if err != nil {
		t.Fatal(err)
	}
	h.history = append(h.history, img)
	h.views = append(h.views, v)
	return v
}

func (h *harness) close(t *testing.T) {
	h.backend.OnSwapChainTeardown()
	for i := range h.views {
		h.views[i].Destroy()
		h.history[i].Destroy()
	}
	h.slots.FreeCommandBuffers()
	h.slots.Destroy()
	h.depth.Destroy()
	h.swap.Destroy()
	h.backend.OnDeviceTeardown()
	h.sc.Destroy()
	h.pool.Destroy()
	if leaks := h.dev.Leaks(); len(leaks) != 0 {
		t.Fatalf("expected no leaks; got %v", leaks)
	}
	if len(h.dev.Violations) != 0 {
		t.Fatalf("unexpected violations %v", h.dev.Violations)
	}
}

func (h *harness) record(t *testing.T) ([]gputest.Command, *app.Frame, *int) {
	rasterized := new(int)
	f := &app.Frame{
		Slot:          h.slots.Current(),
		Extent:        h.swap.Extent,
		Color:         h.swap.Image(0),
		Depth:         h.depth,
		PreviousColor: h.view(t, h.swap.Format),
		PreviousDepth: h.view(t, swapchain.DepthFormat),
		MotionVectors: h.view(t, gpu.FormatR32G32Sfloat),
		RasterPass: func(rec gpu.Recorder) {
			*rasterized++
			h.swap.Image(0).Assume(gpu.LayoutPresentSrc)
			h.depth.Image.Assume(gpu.LayoutDepthStencilAttachmentOptimal)
		},
	}
	commands := h.slots.Commands()
	rec, err := commands.Begin(0, false)
	if err != nil {
		t.Fatal(err)
	}
	if err := h.backend.RecordFrame(rec, f); err != nil {
		t.Fatal(err)
	}
	if err := commands.End(0); err != nil {
		t.Fatal(err)
	}
	return h.dev.CommandsOf(commands.Handles[0]), f, rasterized
}

func TestRecordFrameOrder(t *testing.T) {
	h := newHarness(t)
	if err := h.backend.OnSwapChainReady(h.ctx); err != nil {
		t.Fatal(err)
	}
	cmds, f, rasterized := h.record(t)
	if *rasterized != 1 {
		t.Fatalf("expected the raster pass once; got %d", *rasterized)
	}

	trace := gputest.Index(cmds, "trace rays", 0)
	dispatch := gputest.Index(cmds, "dispatch", 0)
	copied := gputest.Index(cmds, "copy image", 0)
	if trace < 0 || !(trace < dispatch && dispatch < copied) {
		t.Fatalf("expected trace, post-process, copy; got %v", gputest.Names(cmds))
	}
	args := cmds[trace].Args.(gputest.TraceRaysArgs)
	if args.Width != 800 || args.Height != 600 || args.Depth != 1 || args.Raygen.Size == 0 || args.Callable.Size != 0 {
		t.Fatalf("unexpected trace arguments %+v", args)
	}
	bind := cmds[trace-2].Args.(gputest.BindPipelineArgs)
	if bind.BindPoint != gpu.BindPointRayTracing || bind.Pipeline != h.backend.pipeline.Handle {
		t.Fatalf("expected the ray tracing pipeline bound before tracing; got %+v", bind)
	}

	// The first three barriers move the outputs from UNDEFINED to GENERAL.
	for i := 0; i < 3; i++ {
		b := cmds[i].Args.(gputest.BarrierArgs).Images[0]
		if b.OldLayout != gpu.LayoutUndefined || b.NewLayout != gpu.LayoutGeneral {
			t.Fatalf("[barrier %d] expected UNDEFINED to GENERAL; got %s to %s", i, b.OldLayout, b.NewLayout)
		}
	}
	depthIn := cmds[dispatch-3].Args.(gputest.BarrierArgs).Images[0]
	depthOut := cmds[dispatch+1].Args.(gputest.BarrierArgs).Images[0]
	if depthIn.Image != h.depth.Image.Handle || depthIn.NewLayout != gpu.LayoutGeneral ||
		depthOut.OldLayout != gpu.LayoutGeneral || depthOut.NewLayout != gpu.LayoutDepthStencilAttachmentOptimal {
		t.Fatalf("expected depth to be GENERAL only around the dispatch; got %+v / %+v", depthIn, depthOut)
	}

	c := cmds[copied].Args.(gputest.CopyImageArgs)
	if c.Src != h.backend.postOutput.Handle || c.Dst != f.Color.Handle ||
		c.SrcLayout != gpu.LayoutTransferSrcOptimal || c.DstLayout != gpu.LayoutTransferDstOptimal {
		t.Fatalf("unexpected copy %+v", c)
	}
	last := cmds[len(cmds)-1].Args.(gputest.BarrierArgs).Images[0]
	if last.Image != f.Color.Handle || last.NewLayout != gpu.LayoutPresentSrc {
		t.Fatalf("expected the swap image to end presentable; got %+v", last)
	}
	if h.depth.Image.Layout() != gpu.LayoutDepthStencilAttachmentOptimal {
		t.Fatalf("expected depth back in attachment layout; got %s", h.depth.Image.Layout())
	}
	h.close(t)
}

func TestRasterOnlyWhenDisabled(t *testing.T) {
	h := newHarness(t)
	h.ctx.RayTraced = false
	if err := h.backend.OnSwapChainReady(h.ctx); err != nil {
		t.Fatal(err)
	}
	if h.dev.Live("pipeline") != 0 {
		t.Fatal("expected no ray tracing pipeline")
	}
	cmds, _, rasterized := h.record(t)
	if *rasterized != 1 || len(cmds) != 0 {
		t.Fatalf("expected only the raster pass; got %v", gputest.Names(cmds))
	}
	h.close(t)
}

func TestSwapChainReadyFailureReleases(t *testing.T) {
	specs := []string{"image", "pipeline", "descriptor pool", "buffer"}
	for index, spec := range specs {
		h := newHarness(t)
		before := len(h.dev.Leaks())
		h.dev.Fail[spec] = errFake
		if err := h.backend.OnSwapChainReady(h.ctx); err == nil {
			t.Fatalf("[spec %d] expected failure", index)
		}
		delete(h.dev.Fail, spec)
		if got := len(h.dev.Leaks()); got != before {
			t.Fatalf("[spec %d] expected %d live objects; got %v", index, before, h.dev.Leaks())
		}
		if h.backend.pipeline != nil {
			t.Fatalf("[spec %d] expected the generation reset", index)
		}
		h.close(t)
	}
}
