// Package accel builds the bottom and top level acceleration structures of
// a scene.
package accel

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"time"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/ibd1279/vks-examples/hybrid-raytracer/internal/gpu"
	"github.com/ibd1279/vks-examples/hybrid-raytracer/internal/resource"
	"github.com/ibd1279/vks-examples/hybrid-raytracer/internal/scene"
	"github.com/ibd1279/vks-examples/hybrid-raytracer/log"
	"github.com/pkg/errors"
)

var logger = log.New("accel")

// Hit group indices selected by each instance.
const (
	HitGroupTriangles  = 0
	HitGroupProcedural = 1
)

// InstanceSize is the size of one VkAccelerationStructureInstanceKHR.
const InstanceSize = 64

// Acceleration structures must start on 256 byte boundaries in their buffer.
const resultAlignment = 256

// Geometry is the uploaded scene the structures are built from.
type Geometry interface {
	Models() []scene.Model
	VertexBuffer() *resource.Buffer
	IndexBuffer() *resource.Buffer
	AABBBuffer() *resource.Buffer
}

// Offsets are the running byte offsets into the geometry buffers.
type Offsets struct {
	Vertex uint64
	Index  uint64
	AABB   uint64
}

// BottomLevel describes one bottom-level build per model and returns the
// offsets past the last model.
func BottomLevel(geometry Geometry) ([]gpu.AccelerationBuildInfo, Offsets) {
	vertices := geometry.VertexBuffer().Address()
	indices := geometry.IndexBuffer().Address()
	boxes := geometry.AABBBuffer().Address()

	var off Offsets
	var infos []gpu.AccelerationBuildInfo
	for _, m := range geometry.Models() {
		var g gpu.AccelerationGeometry
		if m.Procedural {
			g = gpu.AccelerationGeometry{
				Type:           gpu.GeometryAABBs,
				Opaque:         true,
				AABBData:       boxes + off.AABB,
				AABBStride:     scene.AABBSize,
				PrimitiveCount: 1,
			}
			off.AABB += scene.AABBSize
		} else {
			g = gpu.AccelerationGeometry{
				Type:           gpu.GeometryTriangles,
				Opaque:         true,
				VertexData:     vertices + off.Vertex,
				VertexStride:   scene.VertexSize,
				VertexFormat:   gpu.FormatR32G32B32Sfloat,
				MaxVertex:      m.VertexCount(),
				IndexData:      indices + off.Index,
				PrimitiveCount: m.IndexCount() / 3,
			}
		}
		off.Vertex += uint64(m.VertexCount()) * scene.VertexSize
		off.Index += uint64(m.IndexCount()) * scene.IndexSize
		infos = append(infos, gpu.AccelerationBuildInfo{
			Type:            gpu.AccelerationBottomLevel,
			Geometries:      []gpu.AccelerationGeometry{g},
			PreferFastTrace: true,
		})
	}
	return infos, off
}

// Instance is one top-level reference to a bottom-level structure.
type Instance struct {
	Transform   mgl32.Mat4
	CustomIndex uint32
	Mask        uint8
	HitGroup    uint32
	Flags       uint8
	Reference   uint64
}

// MarshalBinary packs the instance as VkAccelerationStructureInstanceKHR: a
// row-major 3x4 transform followed by two 24/8 bit-packed words and the
// bottom-level device address.
func (in Instance) MarshalBinary() ([]byte, error) {
	var rows [12]float32
	for r := 0; r < 3; r++ {
		for c := 0; c < 4; c++ {
			rows[r*4+c] = in.Transform.At(r, c)
		}
	}
	buf := bytes.NewBuffer(make([]byte, 0, InstanceSize))
	for _, field := range []interface{}{
		rows,
		in.CustomIndex&0xFFFFFF | uint32(in.Mask)<<24,
		in.HitGroup&0xFFFFFF | uint32(in.Flags)<<24,
		in.Reference,
	} {
		if err := binary.Write(buf, binary.LittleEndian, field); err != nil {
			return nil, errors.Wrap(err, "accel: pack instance")
		}
	}
	return buf.Bytes(), nil
}

// Structures owns every acceleration structure of a scene and the buffers
// backing them.
type Structures struct {
	dev    gpu.Device
	group  resource.Group
	Bottom []gpu.AccelerationStructure
	Top    gpu.AccelerationStructure
}

// Build creates and builds the structures for geometry. All builds are
// recorded into one single-time command buffer from pool: the bottom-level
// builds, a memory barrier, then the top-level build. Scratch memory is
// released once the submission has completed.
func Build(dev gpu.Device, pool *resource.CommandPool, geometry Geometry) (s *Structures, err error) {
	start := time.Now()
	s = &Structures{dev: dev}
	defer func() {
		if err != nil {
			s.Destroy()
			s = nil
		}
	}()
	var scratch resource.Group
	defer scratch.Release()

	props := dev.RayTracingProperties()
	bottom, _ := BottomLevel(geometry)
	if len(bottom) == 0 {
		return s, errors.New("accel: scene has no models")
	}

	var total gpu.BuildSizes
	resultOffsets := make([]uint64, len(bottom))
	scratchOffsets := make([]uint64, len(bottom))
	sizes := make([]gpu.BuildSizes, len(bottom))
	for i, info := range bottom {
		sizes[i] = dev.AccelerationStructureBuildSizes(info)
		total.AccelerationStructureSize = align(total.AccelerationStructureSize, resultAlignment)
		total.BuildScratchSize = align(total.BuildScratchSize, uint64(props.MinScratchOffsetAlignment))
		resultOffsets[i] = total.AccelerationStructureSize
		scratchOffsets[i] = total.BuildScratchSize
		total = total.Add(sizes[i])
	}

	bottomBuffer, err := s.buffer(total.AccelerationStructureSize, gpu.BufferUsageAccelerationStructureStorage, "BLAS")
	if err != nil {
		return s, err
	}
	bottomScratch, err := scratchBuffer(dev, &scratch, total.BuildScratchSize, "BLAS scratch")
	if err != nil {
		return s, err
	}
	for i := range bottom {
		as, err := dev.CreateAccelerationStructure(gpu.AccelerationStructureCreateInfo{
			Type:   gpu.AccelerationBottomLevel,
			Buffer: bottomBuffer.Handle,
			Offset: resultOffsets[i],
			Size:   sizes[i].AccelerationStructureSize,
		})
		if err != nil {
			return s, errors.Wrapf(err, "create BLAS #%d", i)
		}
		resource.Track(&s.group, as, dev.DestroyAccelerationStructure)
		dev.SetObjectName(gpu.ObjectAccelerationStructure, uint64(as), fmt.Sprintf("BLAS #%d", i))
		s.Bottom = append(s.Bottom, as)
		bottom[i].Destination = as
		bottom[i].ScratchAddress = bottomScratch.Address() + scratchOffsets[i]
	}

	instances, err := s.instances(pool, geometry.Models())
	if err != nil {
		return s, err
	}
	top := gpu.AccelerationBuildInfo{
		Type: gpu.AccelerationTopLevel,
		Geometries: []gpu.AccelerationGeometry{{
			Type:           gpu.GeometryInstances,
			Opaque:         true,
			InstanceData:   instances.Address(),
			PrimitiveCount: uint32(len(s.Bottom)),
		}},
		PreferFastTrace: true,
	}
	topSizes := dev.AccelerationStructureBuildSizes(top)
	topBuffer, err := s.buffer(topSizes.AccelerationStructureSize, gpu.BufferUsageAccelerationStructureStorage, "TLAS")
	if err != nil {
		return s, err
	}
	topScratch, err := scratchBuffer(dev, &scratch, topSizes.BuildScratchSize, "TLAS scratch")
	if err != nil {
		return s, err
	}
	s.Top, err = dev.CreateAccelerationStructure(gpu.AccelerationStructureCreateInfo{
		Type:   gpu.AccelerationTopLevel,
		Buffer: topBuffer.Handle,
		Size:   topSizes.AccelerationStructureSize,
	})
	if err != nil {
		return s, errors.Wrap(err, "create TLAS")
	}
	resource.Track(&s.group, s.Top, dev.DestroyAccelerationStructure)
	dev.SetObjectName(gpu.ObjectAccelerationStructure, uint64(s.Top), "TLAS")
	top.Destination = s.Top
	top.ScratchAddress = topScratch.Address()

	err = pool.SingleTime(func(rec gpu.Recorder) error {
		for _, info := range bottom {
			rec.BuildAccelerationStructure(info)
		}
		MemoryBarrier(rec)
		rec.BuildAccelerationStructure(top)
		return nil
	})
	if err != nil {
		return s, errors.Wrap(err, "build acceleration structures")
	}

	logger.Infof("built %d bottom level structures and 1 top level structure in %s",
		len(s.Bottom), time.Since(start))
	return s, nil
}

// MemoryBarrier makes finished builds visible to subsequent builds.
func MemoryBarrier(rec gpu.Recorder) {
	rec.PipelineBarrier(gpu.StageAccelerationStructureBuild, gpu.StageAccelerationStructureBuild,
		[]gpu.MemoryBarrier{{
			SrcAccess: gpu.AccessAccelerationStructureWrite | gpu.AccessAccelerationStructureRead,
			DstAccess: gpu.AccessAccelerationStructureWrite | gpu.AccessAccelerationStructureRead,
		}}, nil)
}

func (s *Structures) buffer(size uint64, usage gpu.BufferUsage, name string) (*resource.Buffer, error) {
	b, err := resource.NewBuffer(s.dev, gpu.BufferCreateInfo{
		Size:          size,
		Usage:         usage | gpu.BufferUsageShaderDeviceAddress,
		Memory:        gpu.MemoryDeviceLocal,
		DeviceAddress: true,
	})
	if err != nil {
		return nil, errors.Wrapf(err, "allocate %s buffer", name)
	}
	resource.Track(&s.group, b, (*resource.Buffer).Destroy)
	b.SetName(name + " buffer")
	return b, nil
}

func scratchBuffer(dev gpu.Device, g *resource.Group, size uint64, name string) (*resource.Buffer, error) {
	b, err := resource.NewBuffer(dev, gpu.BufferCreateInfo{
		Size: size,
		Usage: gpu.BufferUsageAccelerationStructureStorage | gpu.BufferUsageStorageBuffer |
			gpu.BufferUsageShaderDeviceAddress,
		Memory:        gpu.MemoryDeviceLocal,
		DeviceAddress: true,
	})
	if err != nil {
		return nil, errors.Wrapf(err, "allocate %s buffer", name)
	}
	resource.Track(g, b, (*resource.Buffer).Destroy)
	b.SetName(name + " buffer")
	return b, nil
}

// instances uploads one identity-transformed instance per bottom-level
// structure. The instance index doubles as the model index in shaders.
func (s *Structures) instances(pool *resource.CommandPool, models []scene.Model) (*resource.Buffer, error) {
	data := make([]byte, 0, InstanceSize*len(models))
	for i, m := range models {
		in := Instance{
			Transform:   mgl32.Ident4(),
			CustomIndex: uint32(i),
			Mask:        0xFF,
			HitGroup:    HitGroupTriangles,
			Reference:   s.dev.AccelerationStructureAddress(s.Bottom[i]),
		}
		if m.Procedural {
			in.HitGroup = HitGroupProcedural
		}
		packed, err := in.MarshalBinary()
		if err != nil {
			return nil, err
		}
		data = append(data, packed...)
	}
	b, err := resource.NewDeviceBuffer(s.dev, pool,
		gpu.BufferUsageAccelerationStructureInput|gpu.BufferUsageShaderDeviceAddress, data)
	if err != nil {
		return nil, errors.Wrap(err, "upload TLAS instances")
	}
	resource.Track(&s.group, b, (*resource.Buffer).Destroy)
	b.SetName("TLAS instances")
	return b, nil
}

func align(v, a uint64) uint64 {
	if a == 0 {
		return v
	}
	return (v + a - 1) / a * a
}

// Destroy releases the structures before the buffers backing them.
func (s *Structures) Destroy() {
	if s == nil {
		return
	}
	s.group.Release()
	s.Bottom = nil
	s.Top = 0
}
