// Package swapchain owns the presentable images of the window surface and
// the depth buffer that shares their extent.
package swapchain

import (
	"math"

	"github.com/ibd1279/vks-examples/hybrid-raytracer/internal/gpu"
	"github.com/ibd1279/vks-examples/hybrid-raytracer/internal/resource"
	"github.com/ibd1279/vks-examples/hybrid-raytracer/log"
	"github.com/pkg/errors"
)

var logger = log.New("swapchain")

// SwapChain images, views, format, extent and present mode are fixed at
// creation. Any surface change requires a new SwapChain.
type SwapChain struct {
	dev         gpu.Device
	Handle      gpu.Swapchain
	Format      gpu.Format
	ColorSpace  gpu.ColorSpace
	Extent      gpu.Extent2D
	PresentMode gpu.PresentMode

	images []*resource.Image
	views  []*resource.ImageView
}

// New creates a swap chain for framebuffer, the window size in pixels used
// when the surface leaves the extent to the application.
func New(dev gpu.Device, framebuffer gpu.Extent2D, preferred gpu.PresentMode) (*SwapChain, error) {
	support, err := dev.SurfaceSupport()
	if err != nil {
		return nil, errors.Wrap(err, "query surface support")
	}
	if len(support.Formats) == 0 || len(support.PresentModes) == 0 {
		return nil, errors.New("swapchain: surface reports no formats or present modes")
	}

	format := ChooseFormat(support.Formats)
	sc := &SwapChain{
		dev:         dev,
		Format:      format.Format,
		ColorSpace:  format.ColorSpace,
		Extent:      ChooseExtent(support.Capabilities, framebuffer),
		PresentMode: ChoosePresentMode(support.PresentModes, preferred),
	}
	if sc.Extent.IsZero() {
		return nil, errors.New("swapchain: surface extent is zero")
	}

	sc.Handle, err = dev.CreateSwapchain(gpu.SwapchainCreateInfo{
		MinImageCount: ChooseImageCount(support.Capabilities),
		Format:        sc.Format,
		ColorSpace:    sc.ColorSpace,
		Extent:        sc.Extent,
		Usage:         gpu.ImageUsageColorAttachment | gpu.ImageUsageTransferSrc | gpu.ImageUsageTransferDst,
		PresentMode:   sc.PresentMode,
		PreTransform:  support.Capabilities.CurrentTransform,
	})
	if err != nil {
		return nil, errors.Wrap(err, "create swapchain")
	}

	handles, err := dev.SwapchainImages(sc.Handle)
	if err != nil {
		sc.Destroy()
		return nil, errors.Wrap(err, "get swapchain images")
	}
	for _, h := range handles {
		img := resource.WrapImage(dev, h, sc.Extent, sc.Format)
		view, err := img.CreateView()
		if err != nil {
			sc.Destroy()
			return nil, err
		}
		sc.images = append(sc.images, img)
		sc.views = append(sc.views, view)
	}

	logger.Debugf("created %dx%d swapchain with %d images (%s)",
		sc.Extent.Width, sc.Extent.Height, len(sc.images), sc.PresentMode)
	return sc, nil
}

func (sc *SwapChain) Len() int { return len(sc.images) }
func (sc *SwapChain) Image(i uint32) *resource.Image { return sc.images[i] }
func (sc *SwapChain) View(i uint32) *resource.ImageView { return sc.views[i] }
func (sc *SwapChain) Views() []*resource.ImageView { return sc.views }

// Destroy releases the image views and the swap chain. The images belong to
// the swap chain and go with it.
func (sc *SwapChain) Destroy() {
	if sc == nil {
		return
	}
	for _, v := range sc.views {
		v.Destroy()
	}
	sc.views, sc.images = nil, nil
	if sc.Handle != 0 {
		sc.dev.DestroySwapchain(sc.Handle)
		sc.Handle = 0
	}
}

// ChooseFormat prefers 8-bit BGRA sRGB, falling back to the first format.
func ChooseFormat(formats []gpu.SurfaceFormat) gpu.SurfaceFormat {
	selected := formats[0]
	for _, f := range formats {
		if f.Format == gpu.FormatB8G8R8A8Srgb && f.ColorSpace == gpu.ColorSpaceSrgbNonlinear {
			selected = f
		}
	}
	return selected
}

// ChoosePresentMode returns preferred when the surface supports it. FIFO is
// always available and is the fallback.
func ChoosePresentMode(modes []gpu.PresentMode, preferred gpu.PresentMode) gpu.PresentMode {
	for _, m := range modes {
		if m == preferred {
			return m
		}
	}
	return gpu.PresentModeFifo
}

// ChooseExtent uses the surface's current extent unless the surface leaves it
// to the application, in which case framebuffer is clamped to the limits.
func ChooseExtent(caps gpu.SurfaceCapabilities, framebuffer gpu.Extent2D) gpu.Extent2D {
	if caps.CurrentExtent.Width != math.MaxUint32 {
		return caps.CurrentExtent
	}
	return gpu.Extent2D{
		Width:  clamp(framebuffer.Width, caps.MinImageExtent.Width, caps.MaxImageExtent.Width),
		Height: clamp(framebuffer.Height, caps.MinImageExtent.Height, caps.MaxImageExtent.Height),
	}
}

// ChooseImageCount asks for one image more than the minimum, within limits.
func ChooseImageCount(caps gpu.SurfaceCapabilities) uint32 {
	count := caps.MinImageCount + 1
	if caps.MaxImageCount > 0 && count > caps.MaxImageCount {
		count = caps.MaxImageCount
	}
	return count
}

func clamp(v, lo, hi uint32) uint32 {
	if v < lo {
		return lo
	} else if v > hi {
		return hi
	}
	return v
}
