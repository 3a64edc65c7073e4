package vulkan

import (
	"github.com/ibd1279/vks"
	"github.com/ibd1279/vks-examples/hybrid-raytracer/internal/gpu"
)

var _ gpu.Recorder = (*recorder)(nil)

// recorder appends to one command buffer between Begin and End.
type recorder struct {
	cmd vks.CommandBufferFacade
}

func (r *recorder) PipelineBarrier(src, dst gpu.PipelineStage, memory []gpu.MemoryBarrier, images []gpu.ImageBarrier) {
	arp := vks.NewAutoReleaser()
	defer arp.Release()

	memoryBarriers := make([]vks.MemoryBarrier, len(memory))
	for k, m := range memory {
		memoryBarriers[k] = vks.MemoryBarrier{}.
			WithDefaultSType().
			WithSrcAccessMask(vks.AccessFlags(m.SrcAccess)).
			WithDstAccessMask(vks.AccessFlags(m.DstAccess))
	}
	imageBarriers := make([]vks.ImageMemoryBarrier, len(images))
	for k, b := range images {
		imageBarriers[k] = vks.ImageMemoryBarrier{}.
			WithDefaultSType().
			WithSrcAccessMask(vks.AccessFlags(b.SrcAccess)).
			WithDstAccessMask(vks.AccessFlags(b.DstAccess)).
			WithOldLayout(vks.ImageLayout(b.OldLayout)).
			WithNewLayout(vks.ImageLayout(b.NewLayout)).
			WithSrcQueueFamilyIndex(vks.VK_QUEUE_FAMILY_IGNORED).
			WithDstQueueFamilyIndex(vks.VK_QUEUE_FAMILY_IGNORED).
			WithImage(to[vks.Image](uint64(b.Image))).
			WithSubresourceRange(subresourceRange(b.Range))
	}
	r.cmd.CmdPipelineBarrier(
		vks.PipelineStageFlags(src),
		vks.PipelineStageFlags(dst),
		0,
		uint32(len(memoryBarriers)),
		vks.MemoryBarrierCSlice(arp, memoryBarriers...),
		0,
		nil,
		uint32(len(imageBarriers)),
		vks.ImageMemoryBarrierCSlice(arp, imageBarriers...),
	)
}

func (r *recorder) CopyImage(src gpu.Image, srcLayout gpu.ImageLayout, dst gpu.Image, dstLayout gpu.ImageLayout, region gpu.ImageCopy) {
	arp := vks.NewAutoReleaser()
	defer arp.Release()

	regions := vks.ImageCopyCSlice(arp,
		vks.ImageCopy{}.
			WithSrcSubresource(vks.ImageSubresourceLayers{}.
				WithAspectMask(vks.ImageAspectFlags(region.SrcAspect)).
				WithLayerCount(1)).
			WithDstSubresource(vks.ImageSubresourceLayers{}.
				WithAspectMask(vks.ImageAspectFlags(region.DstAspect)).
				WithLayerCount(1)).
			WithExtent(vks.Extent3D{}.
				WithWidth(region.Extent.Width).
				WithHeight(region.Extent.Height).
				WithDepth(1)),
	)
	r.cmd.CmdCopyImage(
		to[vks.Image](uint64(src)), vks.ImageLayout(srcLayout),
		to[vks.Image](uint64(dst)), vks.ImageLayout(dstLayout),
		1, regions,
	)
}

func (r *recorder) CopyBuffer(src, dst gpu.Buffer, size uint64) {
	arp := vks.NewAutoReleaser()
	defer arp.Release()

	regions := vks.BufferCopyCSlice(arp, vks.BufferCopy{}.WithSize(vks.DeviceSize(size)))
	r.cmd.CmdCopyBuffer(to[vks.Buffer](uint64(src)), to[vks.Buffer](uint64(dst)), 1, regions)
}

func (r *recorder) ClearColorImage(img gpu.Image, layout gpu.ImageLayout, color [4]float32) {
	arp := vks.NewAutoReleaser()
	defer arp.Release()

	value := vks.MakeClearColorValueFloat32(color[0], color[1], color[2], color[3])
	ranges := vks.ImageSubresourceRangeCSlice(arp, subresourceRange(gpu.WholeImage(gpu.AspectColor)))
	r.cmd.CmdClearColorImage(to[vks.Image](uint64(img)), vks.ImageLayout(layout), &value, 1, ranges)
}

func (r *recorder) ClearDepthImage(img gpu.Image, layout gpu.ImageLayout, depth float32) {
	arp := vks.NewAutoReleaser()
	defer arp.Release()

	value := vks.ClearDepthStencilValue{}.WithDepth(depth)
	ranges := vks.ImageSubresourceRangeCSlice(arp, subresourceRange(gpu.WholeImage(gpu.AspectDepth)))
	r.cmd.CmdClearDepthStencilImage(to[vks.Image](uint64(img)), vks.ImageLayout(layout), &value, 1, ranges)
}

func (r *recorder) BeginRenderPass(info gpu.RenderPassBegin) {
	arp := vks.NewAutoReleaser()
	defer arp.Release()

	clearValues := make([]vks.ClearValue, len(info.ClearValues))
	for k, c := range info.ClearValues {
		if c.Depth != 0 || c.Stencil != 0 {
			clearValues[k] = union[vks.ClearValue](vks.ClearDepthStencilValue{}.
				WithDepth(c.Depth).
				WithStencil(c.Stencil))
			continue
		}
		clearValues[k] = vks.MakeClearColorValueFloat32(c.Color[0], c.Color[1], c.Color[2], c.Color[3]).AsClearValue()
	}

	renderPassBeginInfo := vks.CPtr(arp, &vks.RenderPassBeginInfo{},
		vks.SetDefaultSType,
		func(in *vks.RenderPassBeginInfo) {
			in.SetRenderPass(to[vks.RenderPass](uint64(info.RenderPass)))
			in.SetFramebuffer(to[vks.Framebuffer](uint64(info.Framebuffer)))
			in.SetRenderArea(vks.Rect2D{}.WithExtent(extent2D(info.Extent)))
			in.SetPClearValues(clearValues)
		},
	)
	r.cmd.CmdBeginRenderPass(renderPassBeginInfo, vks.VK_SUBPASS_CONTENTS_INLINE)
}

func (r *recorder) EndRenderPass() { r.cmd.CmdEndRenderPass() }

func (r *recorder) BindPipeline(bp gpu.PipelineBindPoint, p gpu.Pipeline) {
	r.cmd.CmdBindPipeline(vks.PipelineBindPoint(bp), to[vks.Pipeline](uint64(p)))
}

func (r *recorder) BindDescriptorSets(bp gpu.PipelineBindPoint, layout gpu.PipelineLayout, sets []gpu.DescriptorSet) {
	r.cmd.CmdBindDescriptorSets(
		vks.PipelineBindPoint(bp),
		to[vks.PipelineLayout](uint64(layout)),
		0,
		uint32(len(sets)),
		toSlice[vks.DescriptorSet](sets),
		0,
		nil,
	)
}

func (r *recorder) BindVertexBuffer(b gpu.Buffer, offset uint64) {
	r.cmd.CmdBindVertexBuffers(0, 1,
		[]vks.Buffer{to[vks.Buffer](uint64(b))},
		[]vks.DeviceSize{vks.DeviceSize(offset)},
	)
}

func (r *recorder) BindIndexBuffer(b gpu.Buffer, offset uint64) {
	r.cmd.CmdBindIndexBuffer(to[vks.Buffer](uint64(b)), vks.DeviceSize(offset), vks.VK_INDEX_TYPE_UINT32)
}

func (r *recorder) DrawIndexed(indexCount, instanceCount, firstIndex uint32, vertexOffset int32, firstInstance uint32) {
	r.cmd.CmdDrawIndexed(indexCount, instanceCount, firstIndex, vertexOffset, firstInstance)
}

func (r *recorder) Dispatch(x, y, z uint32) { r.cmd.CmdDispatch(x, y, z) }

func stridedRegion(s gpu.StridedRegion) vks.StridedDeviceAddressRegionKHR {
	return vks.StridedDeviceAddressRegionKHR{}.
		WithDeviceAddress(vks.DeviceAddress(s.DeviceAddress)).
		WithStride(vks.DeviceSize(s.Stride)).
		WithSize(vks.DeviceSize(s.Size))
}

func (r *recorder) TraceRays(raygen, miss, hit, callable gpu.StridedRegion, width, height, depth uint32) {
	arp := vks.NewAutoReleaser()
	defer arp.Release()

	regions := vks.StridedDeviceAddressRegionKHRCSlice(arp,
		stridedRegion(raygen),
		stridedRegion(miss),
		stridedRegion(hit),
		stridedRegion(callable),
	)
	r.cmd.CmdTraceRaysKHR(&regions[0], &regions[1], &regions[2], &regions[3], width, height, depth)
}

// BuildAccelerationStructure records a single device-side build.
func (r *recorder) BuildAccelerationStructure(info gpu.AccelerationBuildInfo) {
	arp := vks.NewAutoReleaser()
	defer arp.Release()

	in := convertBuild(info)
	buildInfos := vks.AccelerationStructureBuildGeometryInfoKHRCSlice(arp,
		in.info.WithPGeometries(vks.AccelerationStructureGeometryKHRCSlice(arp, in.geometries...)))
	ranges := vks.AccelerationStructureBuildRangeInfoKHRCSlice(arp, in.ranges...)
	r.cmd.CmdBuildAccelerationStructuresKHR(1, buildInfos,
		[]*vks.AccelerationStructureBuildRangeInfoKHR{&ranges[0]})
}
