package raytrace

import (
	"github.com/ibd1279/vks-examples/hybrid-raytracer/internal/gpu"
	"github.com/ibd1279/vks-examples/hybrid-raytracer/internal/resource"
	"github.com/pkg/errors"
)

// ShaderBindingTable holds one record per shader group, laid out in three
// regions: ray generation, miss and hit groups. It is rebuilt whenever the
// pipeline is.
type ShaderBindingTable struct {
	buffer *resource.Buffer

	Raygen   gpu.StridedRegion
	Miss     gpu.StridedRegion
	Hit      gpu.StridedRegion
	Callable gpu.StridedRegion
}

// Layout computes the region strides and sizes. Offsets are relative to the
// start of the table.
type Layout struct {
	HandleSize   uint64
	RecordStride uint64
	RaygenOffset uint64
	RaygenSize   uint64
	MissOffset   uint64
	MissSize     uint64
	HitOffset    uint64
	HitSize      uint64
}

// NewLayout places one raygen, one miss and two hit records. Each record is
// the handle size rounded up to the handle alignment; each region starts on
// the base alignment. The raygen region's stride must equal its size.
func NewLayout(props gpu.RayTracingProperties) Layout {
	base := uint64(props.ShaderGroupBaseAlignment)
	l := Layout{HandleSize: uint64(props.ShaderGroupHandleSize)}
	l.RecordStride = align(l.HandleSize, uint64(props.ShaderGroupHandleAlignment))
	l.RaygenSize = align(l.RecordStride, base)
	l.MissOffset = l.RaygenSize
	l.MissSize = align(l.RecordStride, base)
	l.HitOffset = l.MissOffset + l.MissSize
	l.HitSize = align(2*l.RecordStride, base)
	return l
}

func (l Layout) Size() uint64 { return l.HitOffset + l.HitSize }

func NewShaderBindingTable(dev gpu.Device, p *Pipeline) (*ShaderBindingTable, error) {
	props := dev.RayTracingProperties()
	l := NewLayout(props)
	handleSize := int(l.HandleSize)
	handles, err := dev.ShaderGroupHandles(p.Handle, groupCount, groupCount*handleSize)
	if err != nil {
		return nil, errors.Wrap(err, "get shader group handles")
	}

	data := make([]byte, l.Size())
	handle := func(group int) []byte { return handles[group*handleSize : (group+1)*handleSize] }
	copy(data[l.RaygenOffset:], handle(GroupRaygen))
	copy(data[l.MissOffset:], handle(GroupMiss))
	copy(data[l.HitOffset:], handle(GroupTrianglesHit))
	copy(data[l.HitOffset+l.RecordStride:], handle(GroupProceduralHit))

	buffer, err := resource.NewHostBuffer(dev,
		gpu.BufferUsageShaderBindingTable|gpu.BufferUsageShaderDeviceAddress, data)
	if err != nil {
		return nil, errors.Wrap(err, "create shader binding table")
	}
	buffer.SetName("shader binding table")

	addr := buffer.Address()
	return &ShaderBindingTable{
		buffer: buffer,
		Raygen: gpu.StridedRegion{DeviceAddress: addr + l.RaygenOffset, Stride: l.RaygenSize, Size: l.RaygenSize},
		Miss:   gpu.StridedRegion{DeviceAddress: addr + l.MissOffset, Stride: l.RecordStride, Size: l.MissSize},
		Hit:    gpu.StridedRegion{DeviceAddress: addr + l.HitOffset, Stride: l.RecordStride, Size: l.HitSize},
	}, nil
}

func (t *ShaderBindingTable) Destroy() {
	if t == nil {
		return
	}
	t.buffer.Destroy()
}

func align(v, a uint64) uint64 {
	if a == 0 {
		return v
	}
	return (v + a - 1) / a * a
}
