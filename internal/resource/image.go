package resource

import (
	"github.com/ibd1279/vks-examples/hybrid-raytracer/internal/gpu"
	"github.com/pkg/errors"
)

// Image is a GPU image together with its memory and its last transitioned
// layout. Swap-chain images are wrapped unmanaged: Destroy leaves them alone.
type Image struct {
	dev     gpu.Device
	Handle  gpu.Image
	Memory  gpu.Memory
	Extent  gpu.Extent2D
	Format  gpu.Format
	Aspect  gpu.ImageAspect
	layout  gpu.ImageLayout
	managed bool
}

// NewImage allocates a device image. The image starts in the UNDEFINED layout.
func NewImage(dev gpu.Device, info gpu.ImageCreateInfo) (*Image, error) {
	if info.Memory == 0 {
		info.Memory = gpu.MemoryDeviceLocal
	}
	handle, mem, err := dev.CreateImage(info)
	if err != nil {
		return nil, errors.Wrapf(err, "create %dx%d image", info.Extent.Width, info.Extent.Height)
	}
	aspect := gpu.AspectColor
	if info.Format.IsDepth() {
		aspect = gpu.AspectDepth
	}
	return &Image{
		dev:     dev,
		Handle:  handle,
		Memory:  mem,
		Extent:  info.Extent,
		Format:  info.Format,
		Aspect:  aspect,
		layout:  gpu.LayoutUndefined,
		managed: true,
	}, nil
}

// WrapImage references an image owned by someone else, such as the
// presentation engine.
func WrapImage(dev gpu.Device, handle gpu.Image, extent gpu.Extent2D, format gpu.Format) *Image {
	return &Image{
		dev:    dev,
		Handle: handle,
		Extent: extent,
		Format: format,
		Aspect: gpu.AspectColor,
		layout: gpu.LayoutUndefined,
	}
}

func (img *Image) Layout() gpu.ImageLayout { return img.layout }
func (img *Image) Managed() bool { return img.managed }

// Assume records a layout change performed implicitly, for instance by a
// render pass final layout, without recording a barrier.
func (img *Image) Assume(layout gpu.ImageLayout) { img.layout = layout }

// Transition records a barrier from the tracked layout to layout.
func (img *Image) Transition(rec gpu.Recorder, layout gpu.ImageLayout) {
	img.transition(rec, img.layout, layout)
}

// Discard transitions from UNDEFINED, dropping the current contents.
func (img *Image) Discard(rec gpu.Recorder, layout gpu.ImageLayout) {
	img.transition(rec, gpu.LayoutUndefined, layout)
}

func (img *Image) transition(rec gpu.Recorder, from, to gpu.ImageLayout) {
	barrier, src, dst := LayoutBarrier(img.Handle, img.Aspect, from, to)
	rec.PipelineBarrier(src, dst, nil, []gpu.ImageBarrier{barrier})
	img.layout = to
}

// Clear zero-fills the image and leaves it in layout.
func (img *Image) Clear(rec gpu.Recorder, layout gpu.ImageLayout) {
	img.Discard(rec, gpu.LayoutTransferDstOptimal)
	if img.Aspect == gpu.AspectDepth {
		rec.ClearDepthImage(img.Handle, gpu.LayoutTransferDstOptimal, 0)
	} else {
		rec.ClearColorImage(img.Handle, gpu.LayoutTransferDstOptimal, [4]float32{})
	}
	img.Transition(rec, layout)
}

// CreateView creates a 2D view over the whole image.
func (img *Image) CreateView() (*ImageView, error) {
	handle, err := img.dev.CreateImageView(gpu.ImageViewCreateInfo{
		Image:  img.Handle,
		Format: img.Format,
		Aspect: img.Aspect,
	})
	if err != nil {
		return nil, errors.Wrap(err, "create image view")
	}
	return &ImageView{dev: img.dev, Handle: handle, Image: img}, nil
}

// SetName attaches a debug name to the image and its memory.
func (img *Image) SetName(name string) {
	img.dev.SetObjectName(gpu.ObjectImage, uint64(img.Handle), name)
	if img.Memory != 0 {
		img.dev.SetObjectName(gpu.ObjectDeviceMemory, uint64(img.Memory), name+" memory")
	}
}

// Destroy releases a managed image. Unmanaged images are left untouched.
func (img *Image) Destroy() {
	if img == nil || !img.managed || img.Handle == 0 {
		return
	}
	img.dev.DestroyImage(img.Handle)
	img.dev.FreeMemory(img.Memory)
	img.Handle, img.Memory = 0, 0
}

// CopyImage records a full-extent copy between two images that must already
// be in TRANSFER_SRC and TRANSFER_DST respectively.
func CopyImage(rec gpu.Recorder, src, dst *Image) {
	rec.CopyImage(src.Handle, src.layout, dst.Handle, dst.layout, gpu.ImageCopy{
		SrcAspect: src.Aspect,
		DstAspect: dst.Aspect,
		Extent:    src.Extent,
	})
}

type ImageView struct {
	dev    gpu.Device
	Handle gpu.ImageView
	Image  *Image
}

func (v *ImageView) Destroy() {
	if v == nil || v.Handle == 0 {
		return
	}
	v.dev.DestroyImageView(v.Handle)
	v.Handle = 0
}
