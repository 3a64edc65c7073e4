package gputest

import "github.com/ibd1279/vks-examples/hybrid-raytracer/internal/gpu"

// Arguments stored with recorded commands.
type (
	BarrierArgs struct {
		Src, Dst gpu.PipelineStage
		Memory   []gpu.MemoryBarrier
		Images   []gpu.ImageBarrier
	}
	CopyImageArgs struct {
		Src, Dst             gpu.Image
		SrcLayout, DstLayout gpu.ImageLayout
		Region               gpu.ImageCopy
	}
	CopyBufferArgs struct {
		Src, Dst gpu.Buffer
		Size     uint64
	}
	ClearArgs struct {
		Image  gpu.Image
		Layout gpu.ImageLayout
	}
	BindPipelineArgs struct {
		BindPoint gpu.PipelineBindPoint
		Pipeline  gpu.Pipeline
	}
	BindSetsArgs struct {
		BindPoint gpu.PipelineBindPoint
		Layout    gpu.PipelineLayout
		Sets      []gpu.DescriptorSet
	}
	BindBufferArgs struct {
		Buffer gpu.Buffer
		Offset uint64
	}
	DrawIndexedArgs struct {
		IndexCount, InstanceCount, FirstIndex uint32
		VertexOffset                          int32
		FirstInstance                         uint32
	}
	DispatchArgs struct {
		X, Y, Z uint32
	}
	TraceRaysArgs struct {
		Raygen, Miss, Hit, Callable gpu.StridedRegion
		Width, Height, Depth        uint32
	}
)

type recorder struct {
	dev *Device
	cb  gpu.CommandBuffer
}

func (r *recorder) add(name string, args interface{}) {
	if _, open := r.dev.recording[r.cb]; !open {
		r.dev.violate("%s recorded into command buffer %d outside Begin/End", name, r.cb)
		return
	}
	r.dev.recording[r.cb] = append(r.dev.recording[r.cb], Command{Name: name, Args: args})
}

func (r *recorder) PipelineBarrier(src, dst gpu.PipelineStage, memory []gpu.MemoryBarrier, images []gpu.ImageBarrier) {
	r.add("barrier", BarrierArgs{Src: src, Dst: dst, Memory: memory, Images: images})
}

func (r *recorder) CopyImage(src gpu.Image, srcLayout gpu.ImageLayout, dst gpu.Image, dstLayout gpu.ImageLayout, region gpu.ImageCopy) {
	r.add("copy image", CopyImageArgs{Src: src, Dst: dst, SrcLayout: srcLayout, DstLayout: dstLayout, Region: region})
}

func (r *recorder) CopyBuffer(src, dst gpu.Buffer, size uint64) {
	r.add("copy buffer", CopyBufferArgs{Src: src, Dst: dst, Size: size})
}

func (r *recorder) ClearColorImage(img gpu.Image, layout gpu.ImageLayout, color [4]float32) {
	r.add("clear color", ClearArgs{Image: img, Layout: layout})
}

func (r *recorder) ClearDepthImage(img gpu.Image, layout gpu.ImageLayout, depth float32) {
	r.add("clear depth", ClearArgs{Image: img, Layout: layout})
}

func (r *recorder) BeginRenderPass(info gpu.RenderPassBegin) { r.add("begin render pass", info) }

func (r *recorder) EndRenderPass() { r.add("end render pass", nil) }

func (r *recorder) BindPipeline(bp gpu.PipelineBindPoint, p gpu.Pipeline) {
	r.add("bind pipeline", BindPipelineArgs{BindPoint: bp, Pipeline: p})
}

func (r *recorder) BindDescriptorSets(bp gpu.PipelineBindPoint, layout gpu.PipelineLayout, sets []gpu.DescriptorSet) {
	r.add("bind descriptor sets", BindSetsArgs{BindPoint: bp, Layout: layout, Sets: sets})
}

func (r *recorder) BindVertexBuffer(b gpu.Buffer, offset uint64) {
	r.add("bind vertex buffer", BindBufferArgs{Buffer: b, Offset: offset})
}

func (r *recorder) BindIndexBuffer(b gpu.Buffer, offset uint64) {
	r.add("bind index buffer", BindBufferArgs{Buffer: b, Offset: offset})
}

func (r *recorder) DrawIndexed(indexCount, instanceCount, firstIndex uint32, vertexOffset int32, firstInstance uint32) {
	r.add("draw indexed", DrawIndexedArgs{
		IndexCount:    indexCount,
		InstanceCount: instanceCount,
		FirstIndex:    firstIndex,
		VertexOffset:  vertexOffset,
		FirstInstance: firstInstance,
	})
}

func (r *recorder) Dispatch(x, y, z uint32) { r.add("dispatch", DispatchArgs{X: x, Y: y, Z: z}) }

func (r *recorder) TraceRays(raygen, miss, hit, callable gpu.StridedRegion, width, height, depth uint32) {
	r.add("trace rays", TraceRaysArgs{
		Raygen: raygen, Miss: miss, Hit: hit, Callable: callable,
		Width: width, Height: height, Depth: depth,
	})
}

func (r *recorder) BuildAccelerationStructure(info gpu.AccelerationBuildInfo) {
	r.add("build acceleration structure", info)
}

// Names returns the command names of cmds in order.
func Names(cmds []Command) []string {
	out := make([]string, len(cmds))
	for i, c := range cmds {
		out[i] = c.Name
	}
	return out
}

// Index returns the position of the n-th (0-based) command called name, or -1.
func Index(cmds []Command, name string, n int) int {
	for i, c := range cmds {
		if c.Name == name {
			if n == 0 {
				return i
			}
			n--
		}
	}
	return -1
}

// Count counts commands called name.
func Count(cmds []Command, name string) int {
	count := 0
	for _, c := range cmds {
		if c.Name == name {
			count++
		}
	}
	return count
}
