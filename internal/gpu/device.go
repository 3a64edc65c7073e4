package gpu

// NoTimeout is the unbounded wait passed to fence waits and image acquisition.
const NoTimeout = ^uint64(0)

type ExtensionProperties struct {
	Name        string
	SpecVersion uint32
}

type LayerProperties struct {
	Name                  string
	Description           string
	SpecVersion           uint32
	ImplementationVersion uint32
}

// PhysicalDevice is the read-only view of an enumerated GPU used for device selection.
type PhysicalDevice struct {
	Handle     uint64
	Name       string
	Type       string
	APIVersion string
	Extensions []string
}

// Supports reports whether every named extension is exposed by the device.
func (pd PhysicalDevice) Supports(extensions ...string) bool {
	for _, want := range extensions {
		found := false
		for _, have := range pd.Extensions {
			if have == want {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}

// Instance is the API entry point: capability queries and logical device creation.
type Instance interface {
	Extensions() []ExtensionProperties
	Layers() []LayerProperties
	PhysicalDevices() []PhysicalDevice
	CreateDevice(pd PhysicalDevice, req DeviceRequirements) (Device, error)
}

// Device is the logical GPU connection. It is owned by exactly one orchestrator;
// every other component borrows it and must never call Destroy.
type Device interface {
	// Destroy releases the logical device. All child objects must be gone.
	Destroy()
	WaitIdle() error
	RayTracingProperties() RayTracingProperties
	SetObjectName(kind ObjectType, handle uint64, name string)

	SurfaceSupport() (SurfaceSupport, error)
	CreateSwapchain(info SwapchainCreateInfo) (Swapchain, error)
	SwapchainImages(sc Swapchain) ([]Image, error)
	DestroySwapchain(sc Swapchain)
	AcquireNextImage(sc Swapchain, timeout uint64, signal Semaphore) (uint32, Result)

	// Submit queues work on the graphics queue; Present uses the present queue.
	Submit(info SubmitInfo, fence Fence) error
	Present(info PresentInfo) Result

	CreateCommandPool(resettable bool) (CommandPool, error)
	DestroyCommandPool(pool CommandPool)
	AllocateCommandBuffers(pool CommandPool, count int) ([]CommandBuffer, error)
	FreeCommandBuffers(pool CommandPool, buffers []CommandBuffer)
	BeginCommandBuffer(cb CommandBuffer, oneTime bool) (Recorder, error)
	EndCommandBuffer(cb CommandBuffer) error

	CreateFence(signaled bool) (Fence, error)
	WaitForFence(fence Fence, timeout uint64) Result
	ResetFence(fence Fence) error
	DestroyFence(fence Fence)
	CreateSemaphore() (Semaphore, error)
	DestroySemaphore(sem Semaphore)

	CreateImage(info ImageCreateInfo) (Image, Memory, error)
	DestroyImage(img Image)
	CreateImageView(info ImageViewCreateInfo) (ImageView, error)
	DestroyImageView(view ImageView)
	CreateSampler(info SamplerCreateInfo) (Sampler, error)
	DestroySampler(s Sampler)

	CreateBuffer(info BufferCreateInfo) (Buffer, Memory, error)
	DestroyBuffer(b Buffer)
	BufferDeviceAddress(b Buffer) uint64
	WriteMemory(mem Memory, offset uint64, data []byte) error
	FreeMemory(mem Memory)

	CreateShaderModule(code []uint32) (ShaderModule, error)
	DestroyShaderModule(m ShaderModule)

	CreateRenderPass(info RenderPassCreateInfo) (RenderPass, error)
	DestroyRenderPass(rp RenderPass)
	CreateFramebuffer(info FramebufferCreateInfo) (Framebuffer, error)
	DestroyFramebuffer(fb Framebuffer)

	CreateDescriptorSetLayout(bindings []DescriptorBinding) (DescriptorSetLayout, error)
	DestroyDescriptorSetLayout(layout DescriptorSetLayout)
	CreateDescriptorPool(maxSets uint32, sizes []DescriptorPoolSize) (DescriptorPool, error)
	ResetDescriptorPool(pool DescriptorPool) error
	DestroyDescriptorPool(pool DescriptorPool)
	AllocateDescriptorSets(pool DescriptorPool, layouts []DescriptorSetLayout) ([]DescriptorSet, error)
	UpdateDescriptorSets(writes []DescriptorWrite)

	CreatePipelineLayout(layouts []DescriptorSetLayout) (PipelineLayout, error)
	DestroyPipelineLayout(layout PipelineLayout)
	CreateGraphicsPipeline(info GraphicsPipelineCreateInfo) (Pipeline, error)
	CreateComputePipeline(info ComputePipelineCreateInfo) (Pipeline, error)
	CreateRayTracingPipeline(info RayTracingPipelineCreateInfo) (Pipeline, error)
	DestroyPipeline(p Pipeline)
	ShaderGroupHandles(p Pipeline, groupCount uint32, dataSize int) ([]byte, error)

	AccelerationStructureBuildSizes(info AccelerationBuildInfo) BuildSizes
	CreateAccelerationStructure(info AccelerationStructureCreateInfo) (AccelerationStructure, error)
	DestroyAccelerationStructure(as AccelerationStructure)
	AccelerationStructureAddress(as AccelerationStructure) uint64
}

// Recorder appends commands to a command buffer between Begin and End.
type Recorder interface {
	PipelineBarrier(src, dst PipelineStage, memory []MemoryBarrier, images []ImageBarrier)
	CopyImage(src Image, srcLayout ImageLayout, dst Image, dstLayout ImageLayout, region ImageCopy)
	CopyBuffer(src, dst Buffer, size uint64)
	ClearColorImage(img Image, layout ImageLayout, color [4]float32)
	ClearDepthImage(img Image, layout ImageLayout, depth float32)

	BeginRenderPass(info RenderPassBegin)
	EndRenderPass()
	BindPipeline(bp PipelineBindPoint, p Pipeline)
	BindDescriptorSets(bp PipelineBindPoint, layout PipelineLayout, sets []DescriptorSet)
	BindVertexBuffer(b Buffer, offset uint64)
	BindIndexBuffer(b Buffer, offset uint64)
	DrawIndexed(indexCount, instanceCount, firstIndex uint32, vertexOffset int32, firstInstance uint32)
	Dispatch(x, y, z uint32)

	TraceRays(raygen, miss, hit, callable StridedRegion, width, height, depth uint32)
	BuildAccelerationStructure(info AccelerationBuildInfo)
}
