package swapchain

import (
	"math"
	"testing"

	"github.com/ibd1279/vks-examples/hybrid-raytracer/internal/gpu"
	"github.com/ibd1279/vks-examples/hybrid-raytracer/internal/gpu/gputest"
)

func TestChooseExtent(t *testing.T) {
	caps := gpu.SurfaceCapabilities{
		MinImageExtent: gpu.Extent2D{Width: 16, Height: 16},
		MaxImageExtent: gpu.Extent2D{Width: 1024, Height: 768},
	}
	specs := []struct {
		current     gpu.Extent2D
		framebuffer gpu.Extent2D
		exp         gpu.Extent2D
	}{
		{gpu.Extent2D{Width: 640, Height: 480}, gpu.Extent2D{Width: 1, Height: 1}, gpu.Extent2D{Width: 640, Height: 480}},
		{gpu.Extent2D{Width: math.MaxUint32, Height: math.MaxUint32}, gpu.Extent2D{Width: 800, Height: 600}, gpu.Extent2D{Width: 800, Height: 600}},
		{gpu.Extent2D{Width: math.MaxUint32, Height: math.MaxUint32}, gpu.Extent2D{Width: 4000, Height: 2}, gpu.Extent2D{Width: 1024, Height: 16}},
	}

	for index, spec := range specs {
		caps.CurrentExtent = spec.current
		if got := ChooseExtent(caps, spec.framebuffer); got != spec.exp {
			t.Fatalf("[spec %d] expected %v; got %v", index, spec.exp, got)
		}
	}
}

func TestChooseModesAndCounts(t *testing.T) {
	if got := ChoosePresentMode([]gpu.PresentMode{gpu.PresentModeFifo, gpu.PresentModeMailbox}, gpu.PresentModeMailbox); got != gpu.PresentModeMailbox {
		t.Fatalf("expected mailbox; got %s", got)
	}
	if got := ChoosePresentMode([]gpu.PresentMode{gpu.PresentModeFifo}, gpu.PresentModeImmediate); got != gpu.PresentModeFifo {
		t.Fatalf("expected fifo fallback; got %s", got)
	}

	specs := []struct {
		min, max, exp uint32
	}{
		{2, 3, 3},
		{3, 3, 3},
		{2, 0, 3},
	}
	for index, spec := range specs {
		got := ChooseImageCount(gpu.SurfaceCapabilities{MinImageCount: spec.min, MaxImageCount: spec.max})
		if got != spec.exp {
			t.Fatalf("[spec %d] expected %d images; got %d", index, spec.exp, got)
		}
	}

	f := ChooseFormat([]gpu.SurfaceFormat{
		{Format: gpu.FormatR8G8B8A8Unorm},
		{Format: gpu.FormatB8G8R8A8Srgb, ColorSpace: gpu.ColorSpaceSrgbNonlinear},
	})
	if f.Format != gpu.FormatB8G8R8A8Srgb {
		t.Fatalf("expected sRGB BGRA; got %d", f.Format)
	}
}

func TestSwapChainLifecycle(t *testing.T) {
	dev := gputest.NewDevice()
	sc, err := New(dev, gpu.Extent2D{Width: 800, Height: 600}, gpu.PresentModeMailbox)
	if err != nil {
		t.Fatal(err)
	}
	if sc.Len() != 3 || len(sc.Views()) != 3 {
		t.Fatalf("expected 3 images with views; got %d", sc.Len())
	}
	if sc.Image(0).Managed() {
		t.Fatal("expected swapchain images to be unmanaged")
	}
	depth, err := NewDepthBuffer(dev, sc.Extent)
	if err != nil {
		t.Fatal(err)
	}

	depth.Destroy()
	sc.Destroy()
	if leaks := dev.Leaks(); len(leaks) != 0 {
		t.Fatalf("expected no leaks; got %v", leaks)
	}
	if len(dev.Violations) != 0 {
		t.Fatalf("unexpected violations: %v", dev.Violations)
	}
}
