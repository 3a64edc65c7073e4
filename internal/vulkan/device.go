package vulkan

import (
	"math"

	"github.com/ibd1279/vks"
	"github.com/ibd1279/vks-examples/hybrid-raytracer/internal/gpu"
	"github.com/ibd1279/vks-examples/hybrid-raytracer/internal/resource"
	"github.com/pkg/errors"
)

var _ gpu.Device = (*Device)(nil)

// Device implements gpu.Device over one logical device with a graphics and a
// present queue.
type Device struct {
	instance *Instance
	physical vks.PhysicalDeviceFacade
	device   vks.DeviceFacade

	graphicQueueIndex uint32
	presentQueueIndex uint32
	graphicQueue      vks.QueueFacade
	presentQueue      vks.QueueFacade

	memory     vks.PhysicalDeviceMemoryProperties
	rayTracing gpu.RayTracingProperties

	pools   map[gpu.CommandPool]vks.CommandPoolFacade
	buffers map[gpu.CommandBuffer]commandBuffer
}

type commandBuffer struct {
	pool   gpu.CommandPool
	facade vks.CommandBufferFacade
}

func newDevice(inst *Instance, phyDev vks.PhysicalDeviceFacade, req gpu.DeviceRequirements) (*Device, error) {
	arp := vks.NewAutoReleaser()
	defer arp.Release()

	graphics, present, err := selectQueueFamilies(phyDev, inst.surface)
	if err != nil {
		return nil, err
	}

	familyIndices := []uint32{graphics, present}
	familyPriority := [][]float32{{1.0}, {1.0}}
	if graphics == present {
		familyIndices = familyIndices[:1]
		familyPriority = familyPriority[:1]
	}
	queueCreateInfos := make([]vks.DeviceQueueCreateInfo, len(familyIndices))
	for k, idx := range familyIndices {
		queueCreateInfos[k] = vks.DeviceQueueCreateInfo{}.
			WithDefaultSType().
			WithQueueFamilyIndex(idx).
			WithPQueuePriorities(familyPriority[k])
	}
	queueCreateInfos = vks.DeviceQueueCreateInfoCSlice(arp, queueCreateInfos...)

	// The feature structs chain onto DeviceCreateInfo and live in arp.
	enableFeatures := func(want gpu.Features) *vks.PhysicalDeviceFeatures2 {
		rayTracing := vks.CPtr(arp, &vks.PhysicalDeviceRayTracingPipelineFeaturesKHR{},
			vks.SetDefaultSType,
			func(in *vks.PhysicalDeviceRayTracingPipelineFeaturesKHR) {
				in.SetRayTracingPipeline(bool32(want.Has(gpu.FeatureRayTracingPipeline)))
			},
		)
		accel := vks.CPtr(arp, &vks.PhysicalDeviceAccelerationStructureFeaturesKHR{},
			vks.SetDefaultSType,
			vks.SetPNext[*vks.PhysicalDeviceAccelerationStructureFeaturesKHR](rayTracing),
			func(in *vks.PhysicalDeviceAccelerationStructureFeaturesKHR) {
				in.SetAccelerationStructure(bool32(want.Has(gpu.FeatureAccelerationStructure)))
			},
		)
		vulkan12 := vks.CPtr(arp, &vks.PhysicalDeviceVulkan12Features{},
			vks.SetDefaultSType,
			vks.SetPNext[*vks.PhysicalDeviceVulkan12Features](accel),
			func(in *vks.PhysicalDeviceVulkan12Features) {
				in.SetBufferDeviceAddress(bool32(want.Has(gpu.FeatureBufferDeviceAddress)))
				in.SetRuntimeDescriptorArray(bool32(want.Has(gpu.FeatureRuntimeDescriptorArray)))
				in.SetShaderSampledImageArrayNonUniformIndexing(bool32(want.Has(gpu.FeatureNonUniformImageIndexing)))
			},
		)
		return vks.CPtr(arp, &vks.PhysicalDeviceFeatures2{},
			vks.SetDefaultSType,
			vks.SetPNext[*vks.PhysicalDeviceFeatures2](vulkan12),
			func(in *vks.PhysicalDeviceFeatures2) {
				in.SetFeatures(vks.PhysicalDeviceFeatures{}.
					WithFillModeNonSolid(bool32(want.Has(gpu.FeatureFillModeNonSolid))).
					WithSamplerAnisotropy(bool32(want.Has(gpu.FeatureSamplerAnisotropy))))
			},
		)
	}

	features := enableFeatures(req.Features)
	deviceCreateInfo := vks.CPtr(arp, &vks.DeviceCreateInfo{},
		vks.SetDefaultSType,
		vks.SetDeviceExtensions(arp, req.Extensions),
		vks.SetPNext[*vks.DeviceCreateInfo](features),
		func(in *vks.DeviceCreateInfo) {
			in.SetPQueueCreateInfos(queueCreateInfos)
		},
	)

	var handle vks.Device
	if err := check(phyDev.CreateDevice(deviceCreateInfo, nil, &handle), "create device"); err != nil {
		return nil, err
	}

	d := &Device{
		instance:          inst,
		physical:          phyDev,
		device:            phyDev.MakeDeviceFacade(handle),
		graphicQueueIndex: graphics,
		presentQueueIndex: present,
		pools:             make(map[gpu.CommandPool]vks.CommandPoolFacade),
		buffers:           make(map[gpu.CommandBuffer]commandBuffer),
	}
	var queue vks.Queue
	d.device.GetDeviceQueue(graphics, 0, &queue)
	d.graphicQueue = d.device.MakeQueueFacade(queue)
	d.device.GetDeviceQueue(present, 0, &queue)
	d.presentQueue = d.device.MakeQueueFacade(queue)

	phyDev.GetPhysicalDeviceMemoryProperties(&d.memory)
	if req.HasExtension(gpu.ExtRayTracingPipeline) {
		d.rayTracing = rayTracingProperties(phyDev)
	}
	logger.Debugf("device created with graphics queue %d and present queue %d", graphics, present)
	return d, nil
}

// selectQueueFamilies returns the first family with graphics support and the
// first with present support, preferring one family for both.
func selectQueueFamilies(phyDev vks.PhysicalDeviceFacade, surface vks.SurfaceKHR) (uint32, uint32, error) {
	var count uint32
	phyDev.GetPhysicalDeviceQueueFamilyProperties2(&count, nil)
	queueFamProps := make([]vks.QueueFamilyProperties2, count)
	for k, v := range queueFamProps {
		queueFamProps[k] = v.WithDefaultSType()
	}
	phyDev.GetPhysicalDeviceQueueFamilyProperties2(&count, queueFamProps)

	var grfxIndex, prntIndex resource.Option[uint32]
	for k, v := range queueFamProps {
		index := uint32(k)
		graphics := v.QueueFamilyProperties().QueueFlags()&vks.QueueFlags(vks.VK_QUEUE_GRAPHICS_BIT) != 0

		var presentSupport vks.Bool32
		phyDev.GetPhysicalDeviceSurfaceSupportKHR(index, surface, &presentSupport)
		present := presentSupport.IsTrue()

		if graphics && present {
			return index, index, nil
		}
		if graphics && !grfxIndex.IsSet() {
			grfxIndex = resource.Some(index)
		}
		if present && !prntIndex.IsSet() {
			prntIndex = resource.Some(index)
		}
	}
	if !grfxIndex.IsSet() {
		return 0, 0, errors.New("vulkan: no graphics queue family")
	}
	if !prntIndex.IsSet() {
		return 0, 0, errors.New("vulkan: no presentation queue family")
	}
	return grfxIndex.Get(), prntIndex.Get(), nil
}

func rayTracingProperties(phyDev vks.PhysicalDeviceFacade) gpu.RayTracingProperties {
	arp := vks.NewAutoReleaser()
	defer arp.Release()

	accelProps := vks.CPtr(arp, &vks.PhysicalDeviceAccelerationStructurePropertiesKHR{},
		vks.SetDefaultSType,
	)
	pipelineProps := vks.CPtr(arp, &vks.PhysicalDeviceRayTracingPipelinePropertiesKHR{},
		vks.SetDefaultSType,
		vks.SetPNext[*vks.PhysicalDeviceRayTracingPipelinePropertiesKHR](accelProps),
	)
	props := vks.CPtr(arp, &vks.PhysicalDeviceProperties2{},
		vks.SetDefaultSType,
		vks.SetPNext[*vks.PhysicalDeviceProperties2](pipelineProps),
	)
	phyDev.GetPhysicalDeviceProperties2(props)
	return gpu.RayTracingProperties{
		ShaderGroupHandleSize:      pipelineProps.ShaderGroupHandleSize(),
		ShaderGroupBaseAlignment:   pipelineProps.ShaderGroupBaseAlignment(),
		ShaderGroupHandleAlignment: pipelineProps.ShaderGroupHandleAlignment(),
		MaxRayRecursionDepth:       pipelineProps.MaxRayRecursionDepth(),
		MinScratchOffsetAlignment:  accelProps.MinAccelerationStructureScratchOffsetAlignment(),
	}
}

func (d *Device) Destroy() {
	if d.device.H == vks.NullDevice {
		return
	}
	d.device.DestroyDevice(nil)
	d.device.H = vks.NullDevice
	logger.Debug("device destroyed")
}

func (d *Device) WaitIdle() error { return check(d.device.DeviceWaitIdle(), "wait for device idle") }

func (d *Device) RayTracingProperties() gpu.RayTracingProperties { return d.rayTracing }

// SetObjectName labels an object for validation messages and capture tools.
// It is a no-op unless the instance enabled debug utils.
func (d *Device) SetObjectName(kind gpu.ObjectType, handle uint64, name string) {
	if !d.instance.names {
		return
	}
	arp := vks.NewAutoReleaser()
	defer arp.Release()

	info := vks.CPtr(arp, &vks.DebugUtilsObjectNameInfoEXT{},
		vks.SetDefaultSType,
		func(in *vks.DebugUtilsObjectNameInfoEXT) {
			in.SetObjectType(vks.ObjectType(kind))
			in.SetObjectHandle(handle)
			in.SetPObjectName(vks.NewCStr(arp, name))
		},
	)
	if result := d.device.SetDebugUtilsObjectNameEXT(info); result.IsError() {
		logger.Warningf("name %q: %v", name, result.AsErr())
	}
}

func (d *Device) SurfaceSupport() (gpu.SurfaceSupport, error) {
	surface := d.instance.surface
	var capabilities vks.SurfaceCapabilitiesKHR
	result := d.physical.GetPhysicalDeviceSurfaceCapabilitiesKHR(surface, &capabilities)
	if err := check(result, "query surface capabilities"); err != nil {
		return gpu.SurfaceSupport{}, err
	}

	var count uint32
	d.physical.GetPhysicalDeviceSurfaceFormatsKHR(surface, &count, nil)
	formats := make([]vks.SurfaceFormatKHR, count)
	d.physical.GetPhysicalDeviceSurfaceFormatsKHR(surface, &count, formats)

	d.physical.GetPhysicalDeviceSurfacePresentModesKHR(surface, &count, nil)
	presentModes := make([]vks.PresentModeKHR, count)
	d.physical.GetPhysicalDeviceSurfacePresentModesKHR(surface, &count, presentModes)

	support := gpu.SurfaceSupport{
		Capabilities: gpu.SurfaceCapabilities{
			MinImageCount: capabilities.MinImageCount(),
			MaxImageCount: capabilities.MaxImageCount(),
			CurrentExtent: gpu.Extent2D{
				Width:  capabilities.CurrentExtent().Width(),
				Height: capabilities.CurrentExtent().Height(),
			},
			MinImageExtent: gpu.Extent2D{
				Width:  capabilities.MinImageExtent().Width(),
				Height: capabilities.MinImageExtent().Height(),
			},
			MaxImageExtent: gpu.Extent2D{
				Width:  capabilities.MaxImageExtent().Width(),
				Height: capabilities.MaxImageExtent().Height(),
			},
			CurrentTransform: uint32(capabilities.CurrentTransform()),
		},
	}
	for _, f := range formats {
		support.Formats = append(support.Formats, gpu.SurfaceFormat{
			Format:     gpu.Format(f.Format()),
			ColorSpace: gpu.ColorSpace(f.ColorSpace()),
		})
	}
	for _, m := range presentModes {
		support.PresentModes = append(support.PresentModes, gpu.PresentMode(m))
	}
	if len(support.Formats) == 0 || len(support.PresentModes) == 0 {
		return support, errors.New("vulkan: surface has no formats or present modes")
	}
	return support, nil
}

func (d *Device) CreateSwapchain(info gpu.SwapchainCreateInfo) (gpu.Swapchain, error) {
	arp := vks.NewAutoReleaser()
	defer arp.Release()

	queueFamilyIndices := []uint32{d.graphicQueueIndex, d.presentQueueIndex}
	shareMode := vks.VK_SHARING_MODE_CONCURRENT
	if d.graphicQueueIndex == d.presentQueueIndex {
		queueFamilyIndices = queueFamilyIndices[:1]
		shareMode = vks.VK_SHARING_MODE_EXCLUSIVE
	}

	swapchainCreateInfo := vks.CPtr(arp, &vks.SwapchainCreateInfoKHR{},
		vks.SetDefaultSType,
		func(in *vks.SwapchainCreateInfoKHR) {
			in.SetSurface(d.instance.surface)
			in.SetMinImageCount(info.MinImageCount)
			in.SetImageFormat(vks.Format(info.Format))
			in.SetImageColorSpace(vks.ColorSpaceKHR(info.ColorSpace))
			in.SetImageExtent(extent2D(info.Extent))
			in.SetImageArrayLayers(1)
			in.SetImageUsage(vks.ImageUsageFlags(info.Usage))
			in.SetImageSharingMode(shareMode)
			in.SetQueueFamilyIndexCount(uint32(len(queueFamilyIndices)))
			in.SetPQueueFamilyIndices(queueFamilyIndices)
			in.SetPreTransform(vks.SurfaceTransformFlagBitsKHR(info.PreTransform))
			in.SetCompositeAlpha(vks.VK_COMPOSITE_ALPHA_OPAQUE_BIT_KHR)
			in.SetPresentMode(vks.PresentModeKHR(info.PresentMode))
			in.SetClipped(vks.VK_TRUE)
			in.SetOldSwapchain(to[vks.SwapchainKHR](uint64(info.OldSwapchain)))
		},
	)

	var swapchain vks.SwapchainKHR
	if err := check(d.device.CreateSwapchainKHR(swapchainCreateInfo, nil, &swapchain), "create swap chain"); err != nil {
		return 0, err
	}
	return gpu.Swapchain(from(swapchain)), nil
}

func (d *Device) SwapchainImages(sc gpu.Swapchain) ([]gpu.Image, error) {
	swapchain := to[vks.SwapchainKHR](uint64(sc))
	var count uint32
	if err := check(d.device.GetSwapchainImagesKHR(swapchain, &count, nil), "get swap chain images"); err != nil {
		return nil, err
	}
	images := make([]vks.Image, count)
	if err := check(d.device.GetSwapchainImagesKHR(swapchain, &count, images), "get swap chain images"); err != nil {
		return nil, err
	}
	return fromSlice[gpu.Image](images), nil
}

func (d *Device) DestroySwapchain(sc gpu.Swapchain) {
	d.device.DestroySwapchainKHR(to[vks.SwapchainKHR](uint64(sc)), nil)
}

func (d *Device) AcquireNextImage(sc gpu.Swapchain, timeout uint64, signal gpu.Semaphore) (uint32, gpu.Result) {
	var imageIndex uint32
	result := d.device.AcquireNextImageKHR(
		to[vks.SwapchainKHR](uint64(sc)),
		timeout,
		to[vks.Semaphore](uint64(signal)),
		vks.NullFence,
		&imageIndex,
	)
	return imageIndex, gpu.Result(result)
}

func (d *Device) Submit(info gpu.SubmitInfo, fence gpu.Fence) error {
	arp := vks.NewAutoReleaser()
	defer arp.Release()

	stages := make([]vks.PipelineStageFlags, len(info.WaitStages))
	for k, s := range info.WaitStages {
		stages[k] = vks.PipelineStageFlags(s)
	}
	submitInfos := vks.SubmitInfoCSlice(arp,
		vks.SubmitInfo{}.
			WithDefaultSType().
			WithPWaitSemaphores(toSlice[vks.Semaphore](info.WaitSemaphores)).
			WithWaitSemaphoreCount(uint32(len(info.WaitSemaphores))).
			WithPWaitDstStageMask(stages).
			WithPCommandBuffers(toSlice[vks.CommandBuffer](info.CommandBuffers)).
			WithCommandBufferCount(uint32(len(info.CommandBuffers))).
			WithPSignalSemaphores(toSlice[vks.Semaphore](info.SignalSemaphores)).
			WithSignalSemaphoreCount(uint32(len(info.SignalSemaphores))),
	)
	result := d.graphicQueue.QueueSubmit(1, submitInfos, to[vks.Fence](uint64(fence)))
	return check(result, "submit to graphics queue")
}

func (d *Device) Present(info gpu.PresentInfo) gpu.Result {
	arp := vks.NewAutoReleaser()
	defer arp.Release()

	presentInfo := vks.CPtr(arp, &vks.PresentInfoKHR{},
		vks.SetDefaultSType,
		func(in *vks.PresentInfoKHR) {
			in.SetPWaitSemaphores(toSlice[vks.Semaphore](info.WaitSemaphores))
			in.SetWaitSemaphoreCount(uint32(len(info.WaitSemaphores)))
			in.SetPSwapchains([]vks.SwapchainKHR{to[vks.SwapchainKHR](uint64(info.Swapchain))})
			in.SetPImageIndices([]uint32{info.ImageIndex})
		},
	)
	return gpu.Result(d.presentQueue.QueuePresentKHR(presentInfo))
}

func (d *Device) CreateCommandPool(resettable bool) (gpu.CommandPool, error) {
	arp := vks.NewAutoReleaser()
	defer arp.Release()

	poolCreateInfo := vks.CPtr(arp, &vks.CommandPoolCreateInfo{},
		vks.SetDefaultSType,
		func(in *vks.CommandPoolCreateInfo) {
			in.SetQueueFamilyIndex(d.graphicQueueIndex)
			if resettable {
				in.SetFlags(vks.CommandPoolCreateFlags(vks.VK_COMMAND_POOL_CREATE_RESET_COMMAND_BUFFER_BIT))
			}
		},
	)
	var commandPool vks.CommandPool
	if err := check(d.device.CreateCommandPool(poolCreateInfo, nil, &commandPool), "create command pool"); err != nil {
		return 0, err
	}
	pool := gpu.CommandPool(from(commandPool))
	d.pools[pool] = d.device.MakeCommandPoolFacade(commandPool)
	return pool, nil
}

func (d *Device) DestroyCommandPool(pool gpu.CommandPool) {
	facade, ok := d.pools[pool]
	if !ok {
		return
	}
	for cb, buffer := range d.buffers {
		if buffer.pool == pool {
			delete(d.buffers, cb)
		}
	}
	d.device.DestroyCommandPool(facade.H, nil)
	delete(d.pools, pool)
}

func (d *Device) AllocateCommandBuffers(pool gpu.CommandPool, count int) ([]gpu.CommandBuffer, error) {
	arp := vks.NewAutoReleaser()
	defer arp.Release()

	facade, ok := d.pools[pool]
	if !ok {
		return nil, errors.New("vulkan: unknown command pool")
	}
	bufferAllocInfo := vks.CPtr(arp, &vks.CommandBufferAllocateInfo{},
		vks.SetDefaultSType,
		func(in *vks.CommandBufferAllocateInfo) {
			in.SetCommandPool(facade.H)
			in.SetLevel(vks.VK_COMMAND_BUFFER_LEVEL_PRIMARY)
			in.SetCommandBufferCount(uint32(count))
		},
	)
	cmdBuffers := make([]vks.CommandBuffer, count)
	if err := check(d.device.AllocateCommandBuffers(bufferAllocInfo, cmdBuffers), "allocate command buffers"); err != nil {
		return nil, err
	}
	out := fromSlice[gpu.CommandBuffer](cmdBuffers)
	for k, cb := range out {
		d.buffers[cb] = commandBuffer{pool: pool, facade: facade.MakeCommandBufferFacade(cmdBuffers[k])}
	}
	return out, nil
}

func (d *Device) FreeCommandBuffers(pool gpu.CommandPool, buffers []gpu.CommandBuffer) {
	facade, ok := d.pools[pool]
	if !ok || len(buffers) == 0 {
		return
	}
	d.device.FreeCommandBuffers(facade.H, uint32(len(buffers)), toSlice[vks.CommandBuffer](buffers))
	for _, cb := range buffers {
		delete(d.buffers, cb)
	}
}

func (d *Device) BeginCommandBuffer(cb gpu.CommandBuffer, oneTime bool) (gpu.Recorder, error) {
	arp := vks.NewAutoReleaser()
	defer arp.Release()

	buffer, ok := d.buffers[cb]
	if !ok {
		return nil, errors.New("vulkan: unknown command buffer")
	}
	beginInfo := vks.CPtr(arp, &vks.CommandBufferBeginInfo{},
		vks.SetDefaultSType,
		func(in *vks.CommandBufferBeginInfo) {
			if oneTime {
				in.SetFlags(vks.CommandBufferUsageFlags(vks.VK_COMMAND_BUFFER_USAGE_ONE_TIME_SUBMIT_BIT))
			}
		},
	)
	if err := check(buffer.facade.BeginCommandBuffer(beginInfo), "begin command buffer"); err != nil {
		return nil, err
	}
	return &recorder{cmd: buffer.facade}, nil
}

func (d *Device) EndCommandBuffer(cb gpu.CommandBuffer) error {
	buffer, ok := d.buffers[cb]
	if !ok {
		return errors.New("vulkan: unknown command buffer")
	}
	return check(buffer.facade.EndCommandBuffer(), "end command buffer")
}

func (d *Device) CreateFence(signaled bool) (gpu.Fence, error) {
	arp := vks.NewAutoReleaser()
	defer arp.Release()

	fenceCreateInfo := vks.CPtr(arp, &vks.FenceCreateInfo{},
		vks.SetDefaultSType,
		func(in *vks.FenceCreateInfo) {
			if signaled {
				in.SetFlags(vks.FenceCreateFlags(vks.VK_FENCE_CREATE_SIGNALED_BIT))
			}
		},
	)
	var fence vks.Fence
	if err := check(d.device.CreateFence(fenceCreateInfo, nil, &fence), "create fence"); err != nil {
		return 0, err
	}
	return gpu.Fence(from(fence)), nil
}

func (d *Device) WaitForFence(fence gpu.Fence, timeout uint64) gpu.Result {
	if timeout == gpu.NoTimeout {
		timeout = math.MaxUint64
	}
	fences := []vks.Fence{to[vks.Fence](uint64(fence))}
	return gpu.Result(d.device.WaitForFences(1, fences, vks.VK_TRUE, timeout))
}

func (d *Device) ResetFence(fence gpu.Fence) error {
	fences := []vks.Fence{to[vks.Fence](uint64(fence))}
	return check(d.device.ResetFences(1, fences), "reset fence")
}

func (d *Device) DestroyFence(fence gpu.Fence) {
	d.device.DestroyFence(to[vks.Fence](uint64(fence)), nil)
}

func (d *Device) CreateSemaphore() (gpu.Semaphore, error) {
	arp := vks.NewAutoReleaser()
	defer arp.Release()

	semaphoreCreateInfo := vks.CPtr(arp, &vks.SemaphoreCreateInfo{},
		vks.SetDefaultSType,
	)
	var sem vks.Semaphore
	if err := check(d.device.CreateSemaphore(semaphoreCreateInfo, nil, &sem), "create semaphore"); err != nil {
		return 0, err
	}
	return gpu.Semaphore(from(sem)), nil
}

func (d *Device) DestroySemaphore(sem gpu.Semaphore) {
	d.device.DestroySemaphore(to[vks.Semaphore](uint64(sem)), nil)
}
