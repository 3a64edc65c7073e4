package raster

import (
	"errors"
	"testing"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/ibd1279/vks-examples/hybrid-raytracer/internal/gpu"
	"github.com/ibd1279/vks-examples/hybrid-raytracer/internal/gpu/gputest"
	"github.com/ibd1279/vks-examples/hybrid-raytracer/internal/resource"
	"github.com/ibd1279/vks-examples/hybrid-raytracer/internal/scene"
)

var errFake = errors.New("fake failure")

type fakeShaders struct {
	dev    gpu.Device
	loaded []string
	fail   string
}

func (f *fakeShaders) Load(name string) (gpu.ShaderModule, error) {
	if name == f.fail {
		return 0, errFake
	}
	f.loaded = append(f.loaded, name)
	return f.dev.CreateShaderModule([]uint32{0x07230203})
}

func TestRenderPassInfo(t *testing.T) {
	specs := []struct {
		clear        bool
		load         gpu.LoadOp
		colorInitial gpu.ImageLayout
		depthInitial gpu.ImageLayout
	}{
		{true, gpu.LoadOpClear, gpu.LayoutUndefined, gpu.LayoutUndefined},
		{false, gpu.LoadOpLoad, gpu.LayoutPresentSrc, gpu.LayoutDepthStencilAttachmentOptimal},
	}
	for index, spec := range specs {
		info := RenderPassInfo(gpu.FormatB8G8R8A8Srgb, gpu.FormatD32Sfloat, spec.clear)
		color := info.Attachments[ColorAttachment]
		depth := info.Attachments[DepthAttachment]
		motion := info.Attachments[MotionVectorAttachment]
		if color.LoadOp != spec.load || depth.LoadOp != spec.load {
			t.Fatalf("[spec %d] expected load op %d; got %d/%d", index, spec.load, color.LoadOp, depth.LoadOp)
		}
		if color.InitialLayout != spec.colorInitial || depth.InitialLayout != spec.depthInitial {
			t.Fatalf("[spec %d] expected initial layouts %s/%s; got %s/%s", index,
				spec.colorInitial, spec.depthInitial, color.InitialLayout, depth.InitialLayout)
		}
		if color.FinalLayout != gpu.LayoutPresentSrc {
			t.Fatalf("[spec %d] expected color to end in PRESENT_SRC; got %s", index, color.FinalLayout)
		}
		if depth.StoreOp != gpu.StoreOpStore {
			t.Fatalf("[spec %d] expected depth to be stored", index)
		}
		if motion.LoadOp != gpu.LoadOpClear || motion.Format != MotionVectorFormat ||
			motion.FinalLayout != gpu.LayoutShaderReadOnlyOptimal {
			t.Fatalf("[spec %d] unexpected motion vector attachment %+v", index, motion)
		}
		if len(info.ColorAttachments) != 2 || info.DepthAttachment == nil {
			t.Fatalf("[spec %d] expected two color references and a depth reference", index)
		}
	}
}

func TestPipelineLifecycle(t *testing.T) {
	dev := gputest.NewDevice()
	shaders := &fakeShaders{dev: dev}
	rp, err := NewRenderPass(dev, gpu.FormatB8G8R8A8Srgb, gpu.FormatD32Sfloat, true)
	if err != nil {
		t.Fatal(err)
	}
	p, err := NewPipeline(dev, shaders, rp, dev.Extent, 3, true)
	if err != nil {
		t.Fatal(err)
	}
	if len(p.Sets) != 3 || !p.Wireframe {
		t.Fatalf("expected 3 sets in wireframe mode; got %d/%t", len(p.Sets), p.Wireframe)
	}
	if len(shaders.loaded) != 2 || shaders.loaded[0] != VertexShader || shaders.loaded[1] != FragmentShader {
		t.Fatalf("unexpected shaders loaded %v", shaders.loaded)
	}
	if n := dev.Live("shader module"); n != 0 {
		t.Fatalf("expected shader modules released after creation; got %d", n)
	}
	p.Destroy()
	p.Destroy()
	rp.Destroy()
	if leaks := dev.Leaks(); len(leaks) != 0 {
		t.Fatalf("expected no leaks; got %v", leaks)
	}
	if len(dev.Violations) != 0 {
		t.Fatalf("unexpected violations %v", dev.Violations)
	}
}

func TestPipelineFailureReleases(t *testing.T) {
	specs := []struct {
		fail   string
		shader string
	}{
		{"pipeline", ""},
		{"pipeline layout", ""},
		{"descriptor set", ""},
		{"", FragmentShader},
	}
	for index, spec := range specs {
		dev := gputest.NewDevice()
		rp, _ := NewRenderPass(dev, gpu.FormatB8G8R8A8Srgb, gpu.FormatD32Sfloat, true)
		if spec.fail != "" {
			dev.Fail[spec.fail] = errFake
		}
		if _, err := NewPipeline(dev, &fakeShaders{dev: dev, fail: spec.shader}, rp, dev.Extent, 2, false); err == nil {
			t.Fatalf("[spec %d] expected failure", index)
		}
		rp.Destroy()
		if leaks := dev.Leaks(); len(leaks) != 0 {
			t.Fatalf("[spec %d] expected no leaks; got %v", index, leaks)
		}
	}
}

func TestRecordDrawsEveryModel(t *testing.T) {
	dev := gputest.NewDevice()
	pool, _ := resource.NewCommandPool(dev)
	box := scene.NewBox("box", mgl32.Vec3{}, mgl32.Vec3{1, 1, 1}, 0)
	empty := scene.Model{Name: "empty"}
	sc := scene.New("test", []scene.Model{box, empty, box}, nil, scene.Camera{})
	if err := sc.Upload(dev, pool); err != nil {
		t.Fatal(err)
	}

	rp, _ := NewRenderPass(dev, gpu.FormatB8G8R8A8Srgb, gpu.FormatD32Sfloat, true)
	p, err := NewPipeline(dev, &fakeShaders{dev: dev}, rp, dev.Extent, 2, false)
	if err != nil {
		t.Fatal(err)
	}

	newImage := func(format gpu.Format) *resource.Image {
		img, err := resource.NewImage(dev, gpu.ImageCreateInfo{Extent: dev.Extent, Format: format})
		if err != nil {
			t.Fatal(err)
		}
		return img
	}
	target := Target{
		Framebuffer: 99,
		Extent:      dev.Extent,
		Color:       newImage(gpu.FormatB8G8R8A8Srgb),
		Depth:       newImage(gpu.FormatD32Sfloat),
		Motion:      newImage(MotionVectorFormat),
	}

	buffers, _ := pool.Allocate(1)
	rec, _ := buffers.Begin(0, true)
	Record(rec, rp, p, 1, target, sc)
	buffers.End(0)
	cmds := dev.CommandsOf(buffers.Handles[0])

	if n := gputest.Count(cmds, "draw indexed"); n != 2 {
		t.Fatalf("expected 2 draws; got %d (%v)", n, gputest.Names(cmds))
	}
	specs := []gputest.DrawIndexedArgs{
		{IndexCount: 36, InstanceCount: 1, FirstIndex: 0, VertexOffset: 0},
		{IndexCount: 36, InstanceCount: 1, FirstIndex: 36, VertexOffset: 24},
	}
	for index, spec := range specs {
		got := cmds[gputest.Index(cmds, "draw indexed", index)].Args.(gputest.DrawIndexedArgs)
		if got != spec {
			t.Fatalf("[spec %d] expected %+v; got %+v", index, spec, got)
		}
	}
	if gputest.Count(cmds, "bind vertex buffer") != 1 || gputest.Count(cmds, "bind index buffer") != 1 {
		t.Fatal("expected geometry buffers bound once")
	}
	sets := cmds[gputest.Index(cmds, "bind descriptor sets", 0)].Args.(gputest.BindSetsArgs)
	if sets.Sets[0] != p.Sets[1] {
		t.Fatalf("expected slot 1 descriptor set; got %v", sets.Sets)
	}
	if target.Color.Layout() != gpu.LayoutPresentSrc || target.Motion.Layout() != gpu.LayoutShaderReadOnlyOptimal {
		t.Fatalf("expected final layouts tracked; got %s/%s", target.Color.Layout(), target.Motion.Layout())
	}

	buffers.Free()
	target.Color.Destroy()
	target.Depth.Destroy()
	target.Motion.Destroy()
	p.Destroy()
	rp.Destroy()
	sc.Destroy()
	pool.Destroy()
	if leaks := dev.Leaks(); len(leaks) != 0 {
		t.Fatalf("expected no leaks; got %v", leaks)
	}
}

func TestFramebuffersPerImage(t *testing.T) {
	dev := gputest.NewDevice()
	rp, _ := NewRenderPass(dev, gpu.FormatB8G8R8A8Srgb, gpu.FormatD32Sfloat, true)
	var images []*resource.Image
	var views []*resource.ImageView
	for i := 0; i < 4; i++ {
		img, _ := resource.NewImage(dev, gpu.ImageCreateInfo{Extent: dev.Extent, Format: gpu.FormatB8G8R8A8Srgb})
		view, _ := img.CreateView()
		images = append(images, img)
		views = append(views, view)
	}
	fbs, err := NewFramebuffers(dev, rp, views[:2], views[2], views[3], dev.Extent)
	if err != nil {
		t.Fatal(err)
	}
	if fbs.Len() != 2 || dev.Live("framebuffer") != 2 {
		t.Fatalf("expected 2 framebuffers; got %d", fbs.Len())
	}
	fbs.Destroy()

	dev.Fail["framebuffer"] = errFake
	if _, err := NewFramebuffers(dev, rp, views[:2], views[2], views[3], dev.Extent); err == nil {
		t.Fatal("expected failure")
	}
	for i := range images {
		views[i].Destroy()
		images[i].Destroy()
	}
	rp.Destroy()
	if leaks := dev.Leaks(); len(leaks) != 0 {
		t.Fatalf("expected no leaks; got %v", leaks)
	}
}
