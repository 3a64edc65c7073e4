package raster

import (
	"github.com/ibd1279/vks-examples/hybrid-raytracer/internal/gpu"
	"github.com/ibd1279/vks-examples/hybrid-raytracer/internal/resource"
	"github.com/ibd1279/vks-examples/hybrid-raytracer/internal/scene"
)

// Geometry is the packed scene drawn by the raster pass.
type Geometry interface {
	Models() []scene.Model
	VertexBuffer() *resource.Buffer
	IndexBuffer() *resource.Buffer
}

// Target is the framebuffer of one swap-chain image and the images bound to
// its attachments.
type Target struct {
	Framebuffer gpu.Framebuffer
	Extent      gpu.Extent2D
	Color       *resource.Image
	Depth       *resource.Image
	Motion      *resource.Image
}

// Record draws geometry into target using the descriptor set of slot. Every
// model is one indexed draw; vertex and index offsets accumulate across
// models in buffer order.
func Record(rec gpu.Recorder, rp *RenderPass, p *Pipeline, slot int, target Target, geometry Geometry) {
	rec.BeginRenderPass(gpu.RenderPassBegin{
		RenderPass:  rp.Handle,
		Framebuffer: target.Framebuffer,
		Extent:      target.Extent,
		ClearValues: ClearValues(),
	})
	rec.BindPipeline(gpu.BindPointGraphics, p.Handle)
	rec.BindDescriptorSets(gpu.BindPointGraphics, p.Layout, []gpu.DescriptorSet{p.Sets[slot]})
	rec.BindVertexBuffer(geometry.VertexBuffer().Handle, 0)
	rec.BindIndexBuffer(geometry.IndexBuffer().Handle, 0)

	var vertexOffset, indexOffset uint32
	for _, m := range geometry.Models() {
		if m.IndexCount() > 0 {
			rec.DrawIndexed(m.IndexCount(), 1, indexOffset, int32(vertexOffset), 0)
		}
		vertexOffset += m.VertexCount()
		indexOffset += m.IndexCount()
	}
	rec.EndRenderPass()

	target.Color.Assume(gpu.LayoutPresentSrc)
	target.Depth.Assume(gpu.LayoutDepthStencilAttachmentOptimal)
	target.Motion.Assume(gpu.LayoutShaderReadOnlyOptimal)
}
