package vulkan

import (
	"unsafe"

	"github.com/ibd1279/vks"
	"github.com/ibd1279/vks-examples/hybrid-raytracer/internal/gpu"
	"github.com/ibd1279/vks-examples/hybrid-raytracer/internal/resource"
	"github.com/pkg/errors"
)

// memoryType finds a memory type allowed by typeBits that has every flag in
// want.
func (d *Device) memoryType(typeBits uint32, want gpu.MemoryProperty) resource.Option[uint32] {
	types := d.memory.MemoryTypes()
	for i := uint32(0); i < d.memory.MemoryTypeCount(); i++ {
		flags := gpu.MemoryProperty(types[i].PropertyFlags())
		if typeBits&(1<<i) != 0 && flags&want == want {
			return resource.Some(i)
		}
	}
	return resource.None[uint32]()
}

func (d *Device) allocate(reqs vks.MemoryRequirements, want gpu.MemoryProperty, deviceAddress bool) (vks.DeviceMemory, error) {
	arp := vks.NewAutoReleaser()
	defer arp.Release()

	typeIndex := d.memoryType(reqs.MemoryTypeBits(), want)
	if !typeIndex.IsSet() {
		return vks.NullDeviceMemory, errors.Errorf("vulkan: no memory type with properties %#x", uint32(want))
	}
	flagsInfo := vks.CPtr(arp, &vks.MemoryAllocateFlagsInfo{},
		vks.SetDefaultSType,
		func(in *vks.MemoryAllocateFlagsInfo) {
			in.SetFlags(vks.MemoryAllocateFlags(vks.VK_MEMORY_ALLOCATE_DEVICE_ADDRESS_BIT))
		},
	)
	allocInfo := vks.CPtr(arp, &vks.MemoryAllocateInfo{},
		vks.SetDefaultSType,
		func(in *vks.MemoryAllocateInfo) {
			in.SetAllocationSize(reqs.Size())
			in.SetMemoryTypeIndex(typeIndex.Get())
		},
	)
	if deviceAddress {
		vks.SetPNext[*vks.MemoryAllocateInfo](flagsInfo)(allocInfo)
	}

	var memory vks.DeviceMemory
	if err := check(d.device.AllocateMemory(allocInfo, nil, &memory), "allocate memory"); err != nil {
		return vks.NullDeviceMemory, err
	}
	return memory, nil
}

func (d *Device) CreateImage(info gpu.ImageCreateInfo) (gpu.Image, gpu.Memory, error) {
	arp := vks.NewAutoReleaser()
	defer arp.Release()

	if info.Extent.IsZero() {
		return 0, 0, errors.New("vulkan: image with zero extent")
	}
	imageCreateInfo := vks.CPtr(arp, &vks.ImageCreateInfo{},
		vks.SetDefaultSType,
		func(in *vks.ImageCreateInfo) {
			in.SetImageType(vks.VK_IMAGE_TYPE_2D)
			in.SetFormat(vks.Format(info.Format))
			in.SetExtent(vks.Extent3D{}.
				WithWidth(info.Extent.Width).
				WithHeight(info.Extent.Height).
				WithDepth(1))
			in.SetMipLevels(1)
			in.SetArrayLayers(1)
			in.SetSamples(vks.VK_SAMPLE_COUNT_1_BIT)
			in.SetTiling(vks.ImageTiling(info.Tiling))
			in.SetUsage(vks.ImageUsageFlags(info.Usage))
			in.SetSharingMode(vks.VK_SHARING_MODE_EXCLUSIVE)
			in.SetInitialLayout(vks.VK_IMAGE_LAYOUT_UNDEFINED)
		},
	)
	var image vks.Image
	if err := check(d.device.CreateImage(imageCreateInfo, nil, &image), "create image"); err != nil {
		return 0, 0, err
	}

	var reqs vks.MemoryRequirements
	d.device.GetImageMemoryRequirements(image, &reqs)
	want := info.Memory
	if want == 0 {
		want = gpu.MemoryDeviceLocal
	}
	memory, err := d.allocate(reqs, want, false)
	if err != nil {
		d.device.DestroyImage(image, nil)
		return 0, 0, errors.Wrap(err, "image memory")
	}
	if err := check(d.device.BindImageMemory(image, memory, 0), "bind image memory"); err != nil {
		d.device.DestroyImage(image, nil)
		d.device.FreeMemory(memory, nil)
		return 0, 0, err
	}
	return gpu.Image(from(image)), gpu.Memory(from(memory)), nil
}

func (d *Device) DestroyImage(img gpu.Image) { d.device.DestroyImage(to[vks.Image](uint64(img)), nil) }

func (d *Device) CreateImageView(info gpu.ImageViewCreateInfo) (gpu.ImageView, error) {
	arp := vks.NewAutoReleaser()
	defer arp.Release()

	imgViewCreateInfo := vks.CPtr(arp, &vks.ImageViewCreateInfo{},
		vks.SetDefaultSType,
		func(in *vks.ImageViewCreateInfo) {
			in.SetImage(to[vks.Image](uint64(info.Image)))
			in.SetViewType(vks.VK_IMAGE_VIEW_TYPE_2D)
			in.SetFormat(vks.Format(info.Format))
			in.SetSubresourceRange(subresourceRange(gpu.WholeImage(info.Aspect)))
		},
	)
	var view vks.ImageView
	if err := check(d.device.CreateImageView(imgViewCreateInfo, nil, &view), "create image view"); err != nil {
		return 0, err
	}
	return gpu.ImageView(from(view)), nil
}

func (d *Device) DestroyImageView(view gpu.ImageView) {
	d.device.DestroyImageView(to[vks.ImageView](uint64(view)), nil)
}

func (d *Device) CreateSampler(info gpu.SamplerCreateInfo) (gpu.Sampler, error) {
	arp := vks.NewAutoReleaser()
	defer arp.Release()

	filter := vks.VK_FILTER_NEAREST
	if info.Linear {
		filter = vks.VK_FILTER_LINEAR
	}
	address := vks.VK_SAMPLER_ADDRESS_MODE_REPEAT
	if info.ClampToEdge {
		address = vks.VK_SAMPLER_ADDRESS_MODE_CLAMP_TO_EDGE
	}
	samplerCreateInfo := vks.CPtr(arp, &vks.SamplerCreateInfo{},
		vks.SetDefaultSType,
		func(in *vks.SamplerCreateInfo) {
			in.SetMagFilter(filter)
			in.SetMinFilter(filter)
			in.SetMipmapMode(vks.VK_SAMPLER_MIPMAP_MODE_LINEAR)
			in.SetAddressModeU(address)
			in.SetAddressModeV(address)
			in.SetAddressModeW(address)
			in.SetAnisotropyEnable(bool32(info.Anisotropy > 1))
			in.SetMaxAnisotropy(info.Anisotropy)
			in.SetBorderColor(vks.VK_BORDER_COLOR_INT_OPAQUE_BLACK)
			in.SetUnnormalizedCoordinates(vks.VK_FALSE)
			in.SetCompareEnable(vks.VK_FALSE)
		},
	)
	var sampler vks.Sampler
	if err := check(d.device.CreateSampler(samplerCreateInfo, nil, &sampler), "create sampler"); err != nil {
		return 0, err
	}
	return gpu.Sampler(from(sampler)), nil
}

func (d *Device) DestroySampler(s gpu.Sampler) { d.device.DestroySampler(to[vks.Sampler](uint64(s)), nil) }

func (d *Device) CreateBuffer(info gpu.BufferCreateInfo) (gpu.Buffer, gpu.Memory, error) {
	arp := vks.NewAutoReleaser()
	defer arp.Release()

	usage := info.Usage
	if info.DeviceAddress {
		usage |= gpu.BufferUsageShaderDeviceAddress
	}
	bufferCreateInfo := vks.CPtr(arp, &vks.BufferCreateInfo{},
		vks.SetDefaultSType,
		func(in *vks.BufferCreateInfo) {
			in.SetSize(vks.DeviceSize(info.Size))
			in.SetUsage(vks.BufferUsageFlags(usage))
			in.SetSharingMode(vks.VK_SHARING_MODE_EXCLUSIVE)
		},
	)
	var buffer vks.Buffer
	if err := check(d.device.CreateBuffer(bufferCreateInfo, nil, &buffer), "create buffer"); err != nil {
		return 0, 0, err
	}

	var reqs vks.MemoryRequirements
	d.device.GetBufferMemoryRequirements(buffer, &reqs)
	want := info.Memory
	if want == 0 {
		want = gpu.MemoryDeviceLocal
	}
	memory, err := d.allocate(reqs, want, info.DeviceAddress)
	if err != nil {
		d.device.DestroyBuffer(buffer, nil)
		return 0, 0, errors.Wrap(err, "buffer memory")
	}
	if err := check(d.device.BindBufferMemory(buffer, memory, 0), "bind buffer memory"); err != nil {
		d.device.DestroyBuffer(buffer, nil)
		d.device.FreeMemory(memory, nil)
		return 0, 0, err
	}
	return gpu.Buffer(from(buffer)), gpu.Memory(from(memory)), nil
}

func (d *Device) DestroyBuffer(b gpu.Buffer) { d.device.DestroyBuffer(to[vks.Buffer](uint64(b)), nil) }

func (d *Device) BufferDeviceAddress(b gpu.Buffer) uint64 {
	arp := vks.NewAutoReleaser()
	defer arp.Release()

	info := vks.CPtr(arp, &vks.BufferDeviceAddressInfo{},
		vks.SetDefaultSType,
		func(in *vks.BufferDeviceAddressInfo) {
			in.SetBuffer(to[vks.Buffer](uint64(b)))
		},
	)
	return uint64(d.device.GetBufferDeviceAddress(info))
}

// WriteMemory copies data into host-visible, host-coherent memory.
func (d *Device) WriteMemory(mem gpu.Memory, offset uint64, data []byte) error {
	if len(data) == 0 {
		return nil
	}
	memory := to[vks.DeviceMemory](uint64(mem))
	var mapped unsafe.Pointer
	result := d.device.MapMemory(memory, vks.DeviceSize(offset), vks.DeviceSize(len(data)), 0, &mapped)
	if err := check(result, "map memory"); err != nil {
		return err
	}
	copy(unsafe.Slice((*byte)(mapped), len(data)), data)
	d.device.UnmapMemory(memory)
	return nil
}

func (d *Device) FreeMemory(mem gpu.Memory) {
	if mem == 0 {
		return
	}
	d.device.FreeMemory(to[vks.DeviceMemory](uint64(mem)), nil)
}

func (d *Device) CreateShaderModule(code []uint32) (gpu.ShaderModule, error) {
	arp := vks.NewAutoReleaser()
	defer arp.Release()

	createInfo := vks.CPtr(arp, &vks.ShaderModuleCreateInfo{},
		vks.SetDefaultSType,
		func(in *vks.ShaderModuleCreateInfo) {
			in.SetCodeSize(uint64(len(code) * 4))
			in.SetPCode(code)
		},
	)
	var module vks.ShaderModule
	if err := check(d.device.CreateShaderModule(createInfo, nil, &module), "create shader module"); err != nil {
		return 0, err
	}
	return gpu.ShaderModule(from(module)), nil
}

func (d *Device) DestroyShaderModule(m gpu.ShaderModule) {
	d.device.DestroyShaderModule(to[vks.ShaderModule](uint64(m)), nil)
}
