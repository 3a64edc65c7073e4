package vulkan

import (
	"github.com/ibd1279/vks"
	"github.com/ibd1279/vks-examples/hybrid-raytracer/internal/gpu"
)

// buildInput is a converted build description. Callers copy geometries into
// C memory and attach them to info before use.
type buildInput struct {
	info       vks.AccelerationStructureBuildGeometryInfoKHR
	geometries []vks.AccelerationStructureGeometryKHR
	ranges     []vks.AccelerationStructureBuildRangeInfoKHR
	counts     []uint32
}

func convertBuild(info gpu.AccelerationBuildInfo) buildInput {
	geometries := make([]vks.AccelerationStructureGeometryKHR, len(info.Geometries))
	ranges := make([]vks.AccelerationStructureBuildRangeInfoKHR, len(info.Geometries))
	counts := make([]uint32, len(info.Geometries))

	for k, g := range info.Geometries {
		var data vks.AccelerationStructureGeometryDataKHR
		switch g.Type {
		case gpu.GeometryTriangles:
			data = union[vks.AccelerationStructureGeometryDataKHR](vks.AccelerationStructureGeometryTrianglesDataKHR{}.
				WithDefaultSType().
				WithVertexFormat(vks.Format(g.VertexFormat)).
				WithVertexData(union[vks.DeviceOrHostAddressConstKHR](vks.DeviceAddress(g.VertexData))).
				WithVertexStride(vks.DeviceSize(g.VertexStride)).
				WithMaxVertex(g.MaxVertex).
				WithIndexType(vks.VK_INDEX_TYPE_UINT32).
				WithIndexData(union[vks.DeviceOrHostAddressConstKHR](vks.DeviceAddress(g.IndexData))))
		case gpu.GeometryAABBs:
			data = union[vks.AccelerationStructureGeometryDataKHR](vks.AccelerationStructureGeometryAabbsDataKHR{}.
				WithDefaultSType().
				WithData(union[vks.DeviceOrHostAddressConstKHR](vks.DeviceAddress(g.AABBData))).
				WithStride(vks.DeviceSize(g.AABBStride)))
		case gpu.GeometryInstances:
			data = union[vks.AccelerationStructureGeometryDataKHR](vks.AccelerationStructureGeometryInstancesDataKHR{}.
				WithDefaultSType().
				WithArrayOfPointers(vks.VK_FALSE).
				WithData(union[vks.DeviceOrHostAddressConstKHR](vks.DeviceAddress(g.InstanceData))))
		}

		var flags vks.GeometryFlagsKHR
		if g.Opaque {
			flags = vks.GeometryFlagsKHR(vks.VK_GEOMETRY_OPAQUE_BIT_KHR)
		}
		geometries[k] = vks.AccelerationStructureGeometryKHR{}.
			WithDefaultSType().
			WithGeometryType(vks.GeometryTypeKHR(g.Type)).
			WithGeometry(data).
			WithFlags(flags)
		ranges[k] = vks.AccelerationStructureBuildRangeInfoKHR{}.
			WithPrimitiveCount(g.PrimitiveCount).
			WithPrimitiveOffset(g.PrimitiveOffset).
			WithFirstVertex(g.FirstVertex)
		counts[k] = g.PrimitiveCount
	}

	buildFlags := vks.BuildAccelerationStructureFlagsKHR(vks.VK_BUILD_ACCELERATION_STRUCTURE_PREFER_FAST_BUILD_BIT_KHR)
	if info.PreferFastTrace {
		buildFlags = vks.BuildAccelerationStructureFlagsKHR(vks.VK_BUILD_ACCELERATION_STRUCTURE_PREFER_FAST_TRACE_BIT_KHR)
	}
	build := vks.AccelerationStructureBuildGeometryInfoKHR{}.
		WithDefaultSType().
		WithType(vks.AccelerationStructureTypeKHR(info.Type)).
		WithFlags(buildFlags).
		WithMode(vks.VK_BUILD_ACCELERATION_STRUCTURE_MODE_BUILD_KHR).
		WithDstAccelerationStructure(to[vks.AccelerationStructureKHR](uint64(info.Destination))).
		WithScratchData(union[vks.DeviceOrHostAddressKHR](vks.DeviceAddress(info.ScratchAddress)))
	return buildInput{info: build, geometries: geometries, ranges: ranges, counts: counts}
}

func (d *Device) AccelerationStructureBuildSizes(info gpu.AccelerationBuildInfo) gpu.BuildSizes {
	arp := vks.NewAutoReleaser()
	defer arp.Release()

	in := convertBuild(info)
	buildInfo := vks.AccelerationStructureBuildGeometryInfoKHRCSlice(arp,
		in.info.WithPGeometries(vks.AccelerationStructureGeometryKHRCSlice(arp, in.geometries...)))
	sizes := vks.CPtr(arp, &vks.AccelerationStructureBuildSizesInfoKHR{},
		vks.SetDefaultSType,
	)
	d.device.GetAccelerationStructureBuildSizesKHR(
		vks.VK_ACCELERATION_STRUCTURE_BUILD_TYPE_DEVICE_KHR,
		&buildInfo[0],
		in.counts,
		sizes,
	)
	return gpu.BuildSizes{
		AccelerationStructureSize: uint64(sizes.AccelerationStructureSize()),
		BuildScratchSize:          uint64(sizes.BuildScratchSize()),
		UpdateScratchSize:         uint64(sizes.UpdateScratchSize()),
	}
}

func (d *Device) CreateAccelerationStructure(info gpu.AccelerationStructureCreateInfo) (gpu.AccelerationStructure, error) {
	arp := vks.NewAutoReleaser()
	defer arp.Release()

	createInfo := vks.CPtr(arp, &vks.AccelerationStructureCreateInfoKHR{},
		vks.SetDefaultSType,
		func(in *vks.AccelerationStructureCreateInfoKHR) {
			in.SetType(vks.AccelerationStructureTypeKHR(info.Type))
			in.SetBuffer(to[vks.Buffer](uint64(info.Buffer)))
			in.SetOffset(vks.DeviceSize(info.Offset))
			in.SetSize(vks.DeviceSize(info.Size))
		},
	)
	var as vks.AccelerationStructureKHR
	if err := check(d.device.CreateAccelerationStructureKHR(createInfo, nil, &as), "create acceleration structure"); err != nil {
		return 0, err
	}
	return gpu.AccelerationStructure(from(as)), nil
}

func (d *Device) DestroyAccelerationStructure(as gpu.AccelerationStructure) {
	d.device.DestroyAccelerationStructureKHR(to[vks.AccelerationStructureKHR](uint64(as)), nil)
}

func (d *Device) AccelerationStructureAddress(as gpu.AccelerationStructure) uint64 {
	arp := vks.NewAutoReleaser()
	defer arp.Release()

	info := vks.CPtr(arp, &vks.AccelerationStructureDeviceAddressInfoKHR{},
		vks.SetDefaultSType,
		func(in *vks.AccelerationStructureDeviceAddressInfoKHR) {
			in.SetAccelerationStructure(to[vks.AccelerationStructureKHR](uint64(as)))
		},
	)
	return uint64(d.device.GetAccelerationStructureDeviceAddressKHR(info))
}
