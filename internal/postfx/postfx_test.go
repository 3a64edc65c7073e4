package postfx

import (
	"errors"
	"testing"

	"github.com/ibd1279/vks-examples/hybrid-raytracer/internal/gpu"
	"github.com/ibd1279/vks-examples/hybrid-raytracer/internal/gpu/gputest"
	"github.com/ibd1279/vks-examples/hybrid-raytracer/internal/resource"
)

var errFake = errors.New("fake failure")

type fakeCompiler struct {
	dev     gpu.Device
	files   []string
	sources []string
}

func (f *fakeCompiler) Load(name string) (gpu.ShaderModule, error) {
	f.files = append(f.files, name)
	return f.dev.CreateShaderModule([]uint32{0x07230203})
}

func (f *fakeCompiler) LoadSource(name, wgsl string) (gpu.ShaderModule, error) {
	if wgsl == "" {
		return 0, errFake
	}
	f.sources = append(f.sources, name)
	return f.dev.CreateShaderModule([]uint32{0x07230203})
}

func images(t *testing.T, dev *gputest.Device) (Images, func()) {
	var g resource.Group
	view := func(format gpu.Format) *resource.ImageView {
		img, err := resource.NewImage(dev, gpu.ImageCreateInfo{Extent: dev.Extent, Format: format})
		if err != nil {
			t.Fatal(err)
		}
		v, err := img.CreateView()
		if err != nil {
			t.Fatal(err)
		}
		resource.Track(&g, img, (*resource.Image).Destroy)
		resource.Track(&g, v, (*resource.ImageView).Destroy)
		return v
	}
	return Images{
		Color:  view(OutputFormat),
		Depth:  view(gpu.FormatD32Sfloat),
		Output: view(OutputFormat),
	}, g.Release
}

func TestEntryFor(t *testing.T) {
	specs := []struct {
		format gpu.Format
		exp    string
	}{
		{gpu.FormatB8G8R8A8Srgb, EntryBGRA},
		{gpu.FormatB8G8R8A8Unorm, EntryBGRA},
		{gpu.FormatR8G8B8A8Srgb, EntryRGBA},
		{gpu.FormatR8G8B8A8Unorm, EntryRGBA},
	}
	for index, spec := range specs {
		if got := EntryFor(spec.format); got != spec.exp {
			t.Fatalf("[spec %d] expected %s; got %s", index, spec.exp, got)
		}
	}
}

func TestStageLifecycle(t *testing.T) {
	specs := []struct {
		override string
		entry    string
		files    int
		sources  int
	}{
		{"", EntryBGRA, 0, 1},
		{"custom.spv", EntryRGBA, 1, 0},
	}
	for index, spec := range specs {
		dev := gputest.NewDevice()
		imgs, release := images(t, dev)
		shaders := &fakeCompiler{dev: dev}

		s, err := New(dev, shaders, spec.override, gpu.FormatB8G8R8A8Srgb, imgs)
		if err != nil {
			t.Fatalf("[spec %d] %v", index, err)
		}
		if s.Entry != spec.entry || len(shaders.files) != spec.files || len(shaders.sources) != spec.sources {
			t.Fatalf("[spec %d] unexpected entry %s or shader loads %v/%v", index, s.Entry, shaders.files, shaders.sources)
		}
		if dev.Live("shader module") != 0 {
			t.Fatalf("[spec %d] expected the shader module released", index)
		}
		if dev.CallCount("reset descriptor pool") != 1 {
			t.Fatalf("[spec %d] expected the pool reset before allocation", index)
		}

		buffers, _ := resource.NewCommandPool(dev)
		cb, _ := buffers.Allocate(1)
		rec, _ := cb.Begin(0, true)
		s.Record(rec, dev.Extent)
		cb.End(0)
		cmds := dev.CommandsOf(cb.Handles[0])
		d := cmds[gputest.Index(cmds, "dispatch", 0)].Args.(gputest.DispatchArgs)
		if d.X != 800 || d.Y != 600 || d.Z != 1 {
			t.Fatalf("[spec %d] expected one invocation per pixel; got %+v", index, d)
		}

		cb.Free()
		buffers.Destroy()
		s.Destroy()
		s.Destroy()
		release()
		if leaks := dev.Leaks(); len(leaks) != 0 {
			t.Fatalf("[spec %d] expected no leaks; got %v", index, leaks)
		}
		if len(dev.Violations) != 0 {
			t.Fatalf("[spec %d] unexpected violations %v", index, dev.Violations)
		}
	}
}

func TestStageFailureReleases(t *testing.T) {
	specs := []string{"pipeline", "pipeline layout", "descriptor set", "descriptor pool"}
	for index, spec := range specs {
		dev := gputest.NewDevice()
		imgs, release := images(t, dev)
		dev.Fail[spec] = errFake
		if _, err := New(dev, &fakeCompiler{dev: dev}, "", gpu.FormatB8G8R8A8Srgb, imgs); err == nil {
			t.Fatalf("[spec %d] expected failure", index)
		}
		release()
		if leaks := dev.Leaks(); len(leaks) != 0 {
			t.Fatalf("[spec %d] expected no leaks; got %v", index, leaks)
		}
	}
}
