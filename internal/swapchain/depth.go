package swapchain

import (
	"github.com/ibd1279/vks-examples/hybrid-raytracer/internal/gpu"
	"github.com/ibd1279/vks-examples/hybrid-raytracer/internal/resource"
)

// DepthFormat is the depth attachment format of every render path.
const DepthFormat = gpu.FormatD32Sfloat

// DepthBuffer is the depth attachment shared by all framebuffers. It is also
// sampled by post-processing and copied into the previous-depth image.
type DepthBuffer struct {
	Image *resource.Image
	View  *resource.ImageView
}

func NewDepthBuffer(dev gpu.Device, extent gpu.Extent2D) (*DepthBuffer, error) {
	img, err := resource.NewImage(dev, gpu.ImageCreateInfo{
		Extent: extent,
		Format: DepthFormat,
		Usage: gpu.ImageUsageDepthStencilAttachment | gpu.ImageUsageSampled |
			gpu.ImageUsageTransferSrc,
	})
	if err != nil {
		return nil, err
	}
	view, err := img.CreateView()
	if err != nil {
		img.Destroy()
		return nil, err
	}
	img.SetName("depth buffer")
	return &DepthBuffer{Image: img, View: view}, nil
}

func (d *DepthBuffer) Destroy() {
	if d == nil {
		return
	}
	d.View.Destroy()
	d.Image.Destroy()
}
