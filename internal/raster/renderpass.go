// Package raster implements the rasterized render path: a single subpass
// writing color, motion vectors and depth.
package raster

import (
	"github.com/ibd1279/vks-examples/hybrid-raytracer/internal/gpu"
	"github.com/pkg/errors"
)

// MotionVectorFormat holds the per-pixel screen-space displacement.
const MotionVectorFormat = gpu.FormatR32G32Sfloat

// Attachment indices inside the render pass and its framebuffers.
const (
	ColorAttachment uint32 = iota
	DepthAttachment
	MotionVectorAttachment
)

type RenderPass struct {
	dev    gpu.Device
	Handle gpu.RenderPass
	Clear  bool
}

// NewRenderPass creates the three-attachment pass. With clear unset the
// color and depth attachments keep their previous contents, which requires
// them to enter the pass in PRESENT_SRC and DEPTH_ATTACHMENT_OPTIMAL.
func NewRenderPass(dev gpu.Device, colorFormat, depthFormat gpu.Format, clear bool) (*RenderPass, error) {
	handle, err := dev.CreateRenderPass(RenderPassInfo(colorFormat, depthFormat, clear))
	if err != nil {
		return nil, errors.Wrap(err, "create render pass")
	}
	return &RenderPass{dev: dev, Handle: handle, Clear: clear}, nil
}

// RenderPassInfo describes the pass created by NewRenderPass.
func RenderPassInfo(colorFormat, depthFormat gpu.Format, clear bool) gpu.RenderPassCreateInfo {
	load := gpu.LoadOpLoad
	colorInitial := gpu.LayoutPresentSrc
	depthInitial := gpu.LayoutDepthStencilAttachmentOptimal
	if clear {
		load = gpu.LoadOpClear
		colorInitial = gpu.LayoutUndefined
		depthInitial = gpu.LayoutUndefined
	}
	return gpu.RenderPassCreateInfo{
		Attachments: []gpu.AttachmentDescription{
			ColorAttachment: {
				Format:        colorFormat,
				LoadOp:        load,
				StoreOp:       gpu.StoreOpStore,
				InitialLayout: colorInitial,
				FinalLayout:   gpu.LayoutPresentSrc,
			},
			// Depth is stored: post-processing samples it and the next
			// frame reads a copy of it.
			DepthAttachment: {
				Format:        depthFormat,
				LoadOp:        load,
				StoreOp:       gpu.StoreOpStore,
				InitialLayout: depthInitial,
				FinalLayout:   gpu.LayoutDepthStencilAttachmentOptimal,
			},
			MotionVectorAttachment: {
				Format:        MotionVectorFormat,
				LoadOp:        gpu.LoadOpClear,
				StoreOp:       gpu.StoreOpStore,
				InitialLayout: gpu.LayoutUndefined,
				FinalLayout:   gpu.LayoutShaderReadOnlyOptimal,
			},
		},
		ColorAttachments: []gpu.AttachmentReference{
			{Attachment: ColorAttachment, Layout: gpu.LayoutColorAttachmentOptimal},
			{Attachment: MotionVectorAttachment, Layout: gpu.LayoutColorAttachmentOptimal},
		},
		DepthAttachment: &gpu.AttachmentReference{
			Attachment: DepthAttachment,
			Layout:     gpu.LayoutDepthStencilAttachmentOptimal,
		},
		Dependency: gpu.SubpassDependency{
			SrcStage:  gpu.StageColorAttachmentOutput,
			DstStage:  gpu.StageColorAttachmentOutput,
			SrcAccess: gpu.AccessNone,
			DstAccess: gpu.AccessColorAttachmentRead | gpu.AccessColorAttachmentWrite,
		},
	}
}

// ClearValues returns one clear value per attachment.
func ClearValues() []gpu.ClearValue {
	return []gpu.ClearValue{
		ColorAttachment:        {Color: [4]float32{0, 0, 0, 1}},
		DepthAttachment:        {Depth: 1},
		MotionVectorAttachment: {Color: [4]float32{0, 0, 0, 0}},
	}
}

func (rp *RenderPass) Destroy() {
	if rp == nil || rp.Handle == 0 {
		return
	}
	rp.dev.DestroyRenderPass(rp.Handle)
	rp.Handle = 0
}
