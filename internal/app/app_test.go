package app

import (
	"testing"
	"testing/fstest"
	"time"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/ibd1279/vks-examples/hybrid-raytracer/internal/frame"
	"github.com/ibd1279/vks-examples/hybrid-raytracer/internal/gpu"
	"github.com/ibd1279/vks-examples/hybrid-raytracer/internal/gpu/gputest"
	"github.com/ibd1279/vks-examples/hybrid-raytracer/internal/input"
	"github.com/ibd1279/vks-examples/hybrid-raytracer/internal/raster"
	"github.com/ibd1279/vks-examples/hybrid-raytracer/internal/scene"
	"github.com/pkg/errors"
)

func shaderFiles() fstest.MapFS {
	spv := &fstest.MapFile{Data: []byte{0x03, 0x02, 0x23, 0x07, 0x00, 0x05, 0x01, 0x00}}
	return fstest.MapFS{raster.VertexShader: spv, raster.FragmentShader: spv}
}

func testScene() *scene.Scene {
	box := scene.NewBox("box", mgl32.Vec3{}, mgl32.Vec3{1, 1, 1}, 0)
	return scene.New("test", []scene.Model{box, box}, nil, scene.Camera{Position: mgl32.Vec3{0, 1, 5}, Yaw: -90, FieldOfView: 45})
}

// fixedCamera reports whatever model-view the test sets.
type fixedCamera struct {
	modelView mgl32.Mat4
}

func (c *fixedCamera) ModelView() mgl32.Mat4 { return c.modelView }
func (c *fixedCamera) Projection(extent gpu.Extent2D) mgl32.Mat4 { return mgl32.Ident4() }
func (c *fixedCamera) Lens() (float32, float32) { return 0, 10 }

type fixture struct {
	inst   *gputest.Instance
	dev    *gputest.Device
	window *gputest.Window
	app    *Application
}

func newFixture(t *testing.T, opts Options, extents ...gpu.Extent2D) *fixture {
	inst := gputest.NewInstance()
	f := &fixture{inst: inst, dev: inst.Device, window: gputest.NewWindow(extents...)}
	f.app = New(inst, f.window, testScene(), shaderFiles(), nil, opts)
	if err := f.app.SetPhysicalDevice(inst.Devices[0]); err != nil {
		t.Fatal(err)
	}
	return f
}

func (f *fixture) draw(t *testing.T, n int) {
	for i := 0; i < n; i++ {
		if err := f.app.DrawFrame(); err != nil {
			t.Fatalf("frame %d: %v", i, err)
		}
	}
}

func (f *fixture) close(t *testing.T) {
	f.app.Close()
	if leaks := f.dev.Leaks(); len(leaks) != 0 {
		t.Fatalf("expected no leaks after close; got %v", leaks)
	}
	if !f.dev.Destroyed {
		t.Fatal("expected the device destroyed")
	}
	if len(f.dev.Violations) != 0 {
		t.Fatalf("unexpected violations %v", f.dev.Violations)
	}
}

func TestSetPhysicalDevice(t *testing.T) {
	f := newFixture(t, DefaultOptions())
	if f.app.State() != SwapChainReady {
		t.Fatalf("expected %s; got %s", SwapChainReady, f.app.State())
	}
	req := f.inst.Requirements
	if !req.HasExtension(gpu.ExtSwapchain) || !req.Features.Has(gpu.FeatureFillModeNonSolid) {
		t.Fatalf("unexpected device requirements %+v", req)
	}
	if err := f.app.SetPhysicalDevice(f.inst.Devices[0]); err != ErrDeviceAlreadySet {
		t.Fatalf("expected ErrDeviceAlreadySet; got %v", err)
	}
	if f.inst.Created != 1 {
		t.Fatalf("expected one device; got %d", f.inst.Created)
	}
	if got := f.dev.Live("fence"); got != 3 {
		t.Fatalf("expected one fence per swap image; got %d", got)
	}
	f.close(t)
}

func TestDeviceNotSet(t *testing.T) {
	a := New(gputest.NewInstance(), gputest.NewWindow(), testScene(), shaderFiles(), nil, DefaultOptions())
	if err := a.CreateSwapChain(); err != ErrDeviceNotSet {
		t.Fatalf("expected ErrDeviceNotSet from CreateSwapChain; got %v", err)
	}
	if err := a.Run(); err != ErrDeviceNotSet {
		t.Fatalf("expected ErrDeviceNotSet from Run; got %v", err)
	}
	if err := a.DrawFrame(); errors.Cause(err) != ErrInvalidState {
		t.Fatalf("expected ErrInvalidState from DrawFrame; got %v", err)
	}
}

func TestMissingExtensionFailsCleanly(t *testing.T) {
	inst := gputest.NewInstance()
	pd := inst.Devices[0]
	pd.Extensions = nil
	a := New(inst, gputest.NewWindow(), testScene(), shaderFiles(), nil, DefaultOptions())
	if err := a.SetPhysicalDevice(pd); err == nil {
		t.Fatal("expected a device without VK_KHR_swapchain to be rejected")
	}
	if inst.Created != 0 {
		t.Fatal("expected no logical device")
	}
}

func TestFenceWaitedBeforeReuse(t *testing.T) {
	f := newFixture(t, DefaultOptions())
	f.draw(t, 10)
	if len(f.dev.Violations) != 0 {
		t.Fatalf("unexpected violations %v", f.dev.Violations)
	}
	if got := f.app.Stats().Frames; got != 10 {
		t.Fatalf("expected 10 frames; got %d", got)
	}
	// The first three frames find their fences signaled at creation; every
	// later frame must wait for the submission three frames back.
	if f.dev.PendingFences() > 3 {
		t.Fatalf("expected at most three frames in flight; got %d", f.dev.PendingFences())
	}
	f.close(t)
}

func TestRecreateRestoresCounts(t *testing.T) {
	kinds := []string{"framebuffer", "fence", "semaphore", "pipeline", "image", "image view", "buffer", "sampler", "render pass"}
	f := newFixture(t, DefaultOptions())
	before := map[string]int{}
	for _, kind := range kinds {
		before[kind] = f.dev.Live(kind)
	}

	f.dev.WaitIdle()
	f.app.DeleteSwapChain()
	if f.dev.Live("framebuffer") != 0 || f.dev.Live("pipeline") != 0 || f.dev.Live("swapchain") != 0 {
		t.Fatalf("expected the generation released; got %v", f.dev.Leaks())
	}
	if f.app.State() != DeviceBound {
		t.Fatalf("expected %s; got %s", DeviceBound, f.app.State())
	}
	if err := f.app.CreateSwapChain(); err != nil {
		t.Fatal(err)
	}
	for _, kind := range kinds {
		if got := f.dev.Live(kind); got != before[kind] {
			t.Fatalf("expected %d live %s; got %d", before[kind], kind, got)
		}
	}
	f.close(t)
}

func TestCreateSwapChainFailureReleases(t *testing.T) {
	specs := []string{"framebuffer", "pipeline", "render pass", "sampler", "semaphore"}
	for index, spec := range specs {
		f := newFixture(t, DefaultOptions())
		f.dev.WaitIdle()
		f.app.DeleteSwapChain()
		before := len(f.dev.Leaks())

		f.dev.Fail[spec] = errors.New("fake failure")
		if err := f.app.CreateSwapChain(); err == nil {
			t.Fatalf("[spec %d] expected failure", index)
		}
		if got := len(f.dev.Leaks()); got != before {
			t.Fatalf("[spec %d] expected %d live objects; got %v", index, before, f.dev.Leaks())
		}
		delete(f.dev.Fail, spec)
		f.close(t)
	}
}

func TestCreateSwapChainWaitsWhileMinimized(t *testing.T) {
	f := newFixture(t, DefaultOptions(), gpu.Extent2D{}, gpu.Extent2D{}, gpu.Extent2D{Width: 800, Height: 600})
	if f.window.Waits != 2 {
		t.Fatalf("expected two event waits; got %d", f.window.Waits)
	}
	if f.dev.CallCount("create swapchain") != 1 {
		t.Fatal("expected one swap chain")
	}
	f.close(t)
}

func TestFirstFrameViewsAreValid(t *testing.T) {
	f := newFixture(t, DefaultOptions())
	g := f.app.chain
	for name, slot := range map[string]interface{ IsBlank() bool }{"color": g.prevColor, "depth": g.prevDepth} {
		if !slot.IsBlank() {
			t.Fatalf("expected the %s slot blank before the first frame", name)
		}
	}
	if g.prevColor.Current().Handle == 0 || g.prevDepth.Current().Handle == 0 {
		t.Fatal("expected non-null previous-frame views before the first frame")
	}

	f.draw(t, 1)
	if g.prevColor.IsBlank() || g.prevDepth.IsBlank() {
		t.Fatal("expected the first copy to install steady-state views")
	}
	f.close(t)
}

func TestPresentOutOfDateRecreates(t *testing.T) {
	specs := []gpu.Result{gpu.ErrorOutOfDate, gpu.Suboptimal}
	for index, spec := range specs {
		f := newFixture(t, DefaultOptions())
		f.dev.PresentResults = []gpu.Result{spec}
		f.draw(t, 1)

		if got := f.dev.CallCount("present"); got != 1 {
			t.Fatalf("[spec %d] expected a single present; got %d", index, got)
		}
		present := f.dev.CallIndex("present", 0)
		idle := f.dev.LastCallIndex("wait idle")
		destroy := f.dev.CallIndex("destroy swapchain", 0)
		create := f.dev.LastCallIndex("create swapchain")
		if !(present < idle && idle < destroy && destroy < create) {
			t.Fatalf("[spec %d] expected present, wait idle, delete, create; got %d %d %d %d", index, present, idle, destroy, create)
		}
		if f.app.Stats().Recreations != 1 {
			t.Fatalf("[spec %d] expected one recreation; got %d", index, f.app.Stats().Recreations)
		}
		f.draw(t, 2)
		f.close(t)
	}
}

func TestAcquireOutOfDateDropsFrame(t *testing.T) {
	f := newFixture(t, DefaultOptions())
	f.dev.AcquireResults = []gpu.Result{gpu.ErrorOutOfDate}
	f.draw(t, 1)
	for _, s := range f.dev.Submissions {
		if len(s.Info.WaitSemaphores) != 0 {
			t.Fatal("expected the frame dropped before submission")
		}
	}
	if f.dev.CallCount("present") != 0 {
		t.Fatal("expected no present")
	}
	if f.app.Stats().Recreations != 1 {
		t.Fatalf("expected one recreation; got %d", f.app.Stats().Recreations)
	}

	f.dev.AcquireResults = []gpu.Result{gpu.ErrorSurfaceLost}
	err := f.app.DrawFrame()
	if re, ok := errors.Cause(err).(*gpu.ResultError); !ok || re.Result != gpu.ErrorSurfaceLost {
		t.Fatalf("expected a surface-lost result error; got %v", err)
	}
	f.close(t)
}

func TestResizeRecreates(t *testing.T) {
	f := newFixture(t, DefaultOptions())
	f.draw(t, 1)
	f.window.SetResized()
	f.draw(t, 1)
	if f.app.Stats().Recreations != 1 || f.dev.CallCount("present") != 2 {
		t.Fatalf("expected one recreation after two presents; got %+v", f.app.Stats())
	}
	f.close(t)
}

func TestResizeDuringAcquireRecreatesOnce(t *testing.T) {
	f := newFixture(t, DefaultOptions())
	f.window.SetResized()
	f.dev.AcquireResults = []gpu.Result{gpu.ErrorOutOfDate}
	f.draw(t, 2)
	if got := f.app.Stats().Recreations; got != 1 {
		t.Fatalf("expected one recreation for one resize; got %d", got)
	}
	if got := f.dev.CallCount("present"); got != 1 {
		t.Fatalf("expected the second frame presented; got %d presents", got)
	}
	f.close(t)
}

func TestTogglesRecreate(t *testing.T) {
	f := newFixture(t, DefaultOptions())
	f.app.SetWireFrame(true)
	f.draw(t, 1)
	if !f.app.chain.pipeline.Wireframe || f.dev.CallCount("present") != 0 {
		t.Fatal("expected the wireframe toggle to rebuild the pipeline and drop the frame")
	}
	f.app.SetRayTraced(false)
	f.draw(t, 2)
	if f.app.chain.rayTraced || f.app.Stats().Recreations != 2 {
		t.Fatalf("expected the ray-trace toggle to recreate; got %+v", f.app.Stats())
	}
	f.close(t)
}

func TestUniformCarriesPreviousTransforms(t *testing.T) {
	t1 := mgl32.Translate3D(1, 0, 0)
	t2 := mgl32.Translate3D(0, 2, 0)
	camera := &fixedCamera{modelView: t1}
	opts := DefaultOptions()
	opts.Camera = camera
	f := newFixture(t, opts)

	read := func(slot int) frame.UniformBufferObject {
		var ubo frame.UniformBufferObject
		mem := f.app.chain.slots.Slots[slot].Uniform.Buffer.Memory
		if err := ubo.UnmarshalBinary(f.dev.Memory[mem]); err != nil {
			t.Fatal(err)
		}
		return ubo
	}

	f.draw(t, 1)
	first := read(0)
	if first.LastModelView != t1 || first.HasPreviousFrame != 0 {
		t.Fatalf("expected zero motion and no previous frame; got %+v", first)
	}
	camera.modelView = t2
	f.draw(t, 1)
	second := read(1)
	if second.ModelView != t2 || second.LastModelView != t1 {
		t.Fatalf("expected the previous model-view to be T1; got %v", second.LastModelView)
	}
	if second.HasPreviousFrame != 1 || second.TotalSamples != opts.Samples {
		t.Fatalf("expected a previous frame and reset accumulation; got %+v", second)
	}
	f.draw(t, 1)
	if third := read(2); third.TotalSamples != 2*opts.Samples || third.LastModelView != t2 {
		t.Fatalf("expected accumulation with a still camera; got %+v", third)
	}
	f.close(t)
}

func TestCopyModes(t *testing.T) {
	specs := []struct {
		mode          CopyMode
		inFrameCopies int
	}{
		{CopyInFrame, 2},
		{CopyOneShot, 0},
	}
	for index, spec := range specs {
		opts := DefaultOptions()
		opts.CopyMode = spec.mode
		f := newFixture(t, opts)
		f.draw(t, 1)

		frameAt := -1
		for i, s := range f.dev.Submissions {
			if gputest.Count(s.Commands, "begin render pass") > 0 {
				frameAt = i
			}
		}
		if frameAt < 0 {
			t.Fatalf("[spec %d] no frame submission", index)
		}
		cmds := f.dev.Submissions[frameAt].Commands
		if got := gputest.Count(cmds, "copy image"); got != spec.inFrameCopies {
			t.Fatalf("[spec %d] expected %d copies in the frame; got %d", index, spec.inFrameCopies, got)
		}
		if spec.mode == CopyInFrame {
			if gputest.Index(cmds, "copy image", 0) < gputest.Index(cmds, "end render pass", 0) {
				t.Fatalf("[spec %d] expected the copy after rendering", index)
			}
		} else {
			if frameAt+1 >= len(f.dev.Submissions) {
				t.Fatalf("[spec %d] expected a copy submission after the frame", index)
			}
			next := f.dev.Submissions[frameAt+1]
			if gputest.Count(next.Commands, "copy image") != 2 || len(next.Info.WaitSemaphores) != 0 {
				t.Fatalf("[spec %d] expected an unsynchronized copy submission; got %v", index, gputest.Names(next.Commands))
			}
		}
		f.close(t)
	}
}

func TestFenceTimeoutIsDeviceLost(t *testing.T) {
	opts := DefaultOptions()
	opts.FenceTimeout = time.Millisecond
	f := newFixture(t, opts)
	f.dev.FenceResults = []gpu.Result{gpu.Timeout}
	if err := f.app.DrawFrame(); errors.Cause(err) != ErrDeviceLost {
		t.Fatalf("expected ErrDeviceLost; got %v", err)
	}
	f.close(t)
}

func TestRun(t *testing.T) {
	opts := DefaultOptions()
	opts.Input = input.Keys{}
	f := newFixture(t, opts)
	f.window.CloseAfter = 4
	if err := f.app.Run(); err != nil {
		t.Fatal(err)
	}
	if f.app.Stats().Frames != 4 || f.window.Handler == nil {
		t.Fatalf("expected four frames with callbacks installed; got %+v", f.app.Stats())
	}
	if f.dev.PendingFences() != 0 {
		t.Fatal("expected Run to wait idle")
	}
	f.close(t)
}

func TestParseCopyMode(t *testing.T) {
	specs := []struct {
		name   string
		exp    CopyMode
		expErr bool
	}{
		{"", CopyInFrame, false},
		{"in-frame", CopyInFrame, false},
		{"One-Shot", CopyOneShot, false},
		{"later", CopyInFrame, true},
	}
	for index, spec := range specs {
		got, err := ParseCopyMode(spec.name)
		if (err != nil) != spec.expErr || got != spec.exp {
			t.Fatalf("[spec %d] expected %s (error %t); got %s, %v", index, spec.exp, spec.expErr, got, err)
		}
	}
}
