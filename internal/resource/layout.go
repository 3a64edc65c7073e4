package resource

import "github.com/ibd1279/vks-examples/hybrid-raytracer/internal/gpu"

// layoutUsage returns the access mask and pipeline stages that touch an
// image while it sits in layout.
func layoutUsage(layout gpu.ImageLayout) (gpu.Access, gpu.PipelineStage) {
	switch layout {
	case gpu.LayoutUndefined:
		return gpu.AccessNone, gpu.StageTopOfPipe
	case gpu.LayoutGeneral:
		return gpu.AccessShaderRead | gpu.AccessShaderWrite | gpu.AccessTransferRead | gpu.AccessTransferWrite,
			gpu.StageAllCommands
	case gpu.LayoutColorAttachmentOptimal:
		return gpu.AccessColorAttachmentRead | gpu.AccessColorAttachmentWrite, gpu.StageColorAttachmentOutput
	case gpu.LayoutDepthStencilAttachmentOptimal:
		return gpu.AccessDepthStencilAttachmentRead | gpu.AccessDepthStencilAttachmentWrite,
			gpu.StageEarlyFragmentTests | gpu.StageLateFragmentTests
	case gpu.LayoutDepthStencilReadOnlyOptimal, gpu.LayoutShaderReadOnlyOptimal:
		return gpu.AccessShaderRead, gpu.StageFragmentShader | gpu.StageComputeShader | gpu.StageRayTracingShader
	case gpu.LayoutTransferSrcOptimal:
		return gpu.AccessTransferRead, gpu.StageTransfer
	case gpu.LayoutTransferDstOptimal:
		return gpu.AccessTransferWrite, gpu.StageTransfer
	case gpu.LayoutPresentSrc:
		return gpu.AccessNone, gpu.StageBottomOfPipe
	}
	return gpu.AccessMemoryRead | gpu.AccessMemoryWrite, gpu.StageAllCommands
}

// LayoutBarrier builds the barrier moving img from one layout to another.
func LayoutBarrier(img gpu.Image, aspect gpu.ImageAspect, from, to gpu.ImageLayout) (gpu.ImageBarrier, gpu.PipelineStage, gpu.PipelineStage) {
	srcAccess, srcStage := layoutUsage(from)
	dstAccess, dstStage := layoutUsage(to)
	if to == gpu.LayoutPresentSrc {
		dstStage = gpu.StageBottomOfPipe
	}
	return gpu.ImageBarrier{
		Image:     img,
		Range:     gpu.WholeImage(aspect),
		SrcAccess: srcAccess,
		DstAccess: dstAccess,
		OldLayout: from,
		NewLayout: to,
	}, srcStage, dstStage
}
