package raster

import (
	"github.com/ibd1279/vks-examples/hybrid-raytracer/internal/gpu"
	"github.com/ibd1279/vks-examples/hybrid-raytracer/internal/resource"
	"github.com/pkg/errors"
)

// Framebuffers holds one framebuffer per swap-chain image. Depth and motion
// vector attachments are shared.
type Framebuffers struct {
	dev     gpu.Device
	Handles []gpu.Framebuffer
}

func NewFramebuffers(dev gpu.Device, rp *RenderPass, colors []*resource.ImageView, depth, motion *resource.ImageView, extent gpu.Extent2D) (*Framebuffers, error) {
	fbs := &Framebuffers{dev: dev}
	for i, color := range colors {
		attachments := make([]gpu.ImageView, 3)
		attachments[ColorAttachment] = color.Handle
		attachments[DepthAttachment] = depth.Handle
		attachments[MotionVectorAttachment] = motion.Handle
		handle, err := dev.CreateFramebuffer(gpu.FramebufferCreateInfo{
			RenderPass:  rp.Handle,
			Attachments: attachments,
			Extent:      extent,
		})
		if err != nil {
			fbs.Destroy()
			return nil, errors.Wrapf(err, "create framebuffer %d", i)
		}
		fbs.Handles = append(fbs.Handles, handle)
	}
	return fbs, nil
}

func (f *Framebuffers) Len() int { return len(f.Handles) }

func (f *Framebuffers) Destroy() {
	if f == nil {
		return
	}
	for _, h := range f.Handles {
		f.dev.DestroyFramebuffer(h)
	}
	f.Handles = nil
}
