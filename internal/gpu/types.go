package gpu

// Opaque object handles. Zero is the null handle for every type.
type (
	Image                 uint64
	ImageView             uint64
	Memory                uint64
	Buffer                uint64
	Sampler               uint64
	Fence                 uint64
	Semaphore             uint64
	CommandPool           uint64
	CommandBuffer         uint64
	RenderPass            uint64
	Framebuffer           uint64
	Pipeline              uint64
	PipelineLayout        uint64
	DescriptorSetLayout   uint64
	DescriptorPool        uint64
	DescriptorSet         uint64
	ShaderModule          uint64
	AccelerationStructure uint64
	Swapchain             uint64
)

// ImageLayout mirrors VkImageLayout.
type ImageLayout uint32

const (
	LayoutUndefined                     ImageLayout = 0
	LayoutGeneral                       ImageLayout = 1
	LayoutColorAttachmentOptimal        ImageLayout = 2
	LayoutDepthStencilAttachmentOptimal ImageLayout = 3
	LayoutDepthStencilReadOnlyOptimal   ImageLayout = 4
	LayoutShaderReadOnlyOptimal         ImageLayout = 5
	LayoutTransferSrcOptimal            ImageLayout = 6
	LayoutTransferDstOptimal            ImageLayout = 7
	LayoutPreinitialized                ImageLayout = 8
	LayoutPresentSrc                    ImageLayout = 1000001002
)

var layoutNames = map[ImageLayout]string{
	LayoutUndefined:                     "UNDEFINED",
	LayoutGeneral:                       "GENERAL",
	LayoutColorAttachmentOptimal:        "COLOR_ATTACHMENT_OPTIMAL",
	LayoutDepthStencilAttachmentOptimal: "DEPTH_STENCIL_ATTACHMENT_OPTIMAL",
	LayoutDepthStencilReadOnlyOptimal:   "DEPTH_STENCIL_READ_ONLY_OPTIMAL",
	LayoutShaderReadOnlyOptimal:         "SHADER_READ_ONLY_OPTIMAL",
	LayoutTransferSrcOptimal:            "TRANSFER_SRC_OPTIMAL",
	LayoutTransferDstOptimal:            "TRANSFER_DST_OPTIMAL",
	LayoutPreinitialized:                "PREINITIALIZED",
	LayoutPresentSrc:                    "PRESENT_SRC_KHR",
}

func (l ImageLayout) String() string {
	if name, ok := layoutNames[l]; ok {
		return name
	}
	return "UNKNOWN_LAYOUT"
}

// Format mirrors the subset of VkFormat used by the renderer.
type Format uint32

const (
	FormatUndefined          Format = 0
	FormatR8G8B8A8Unorm      Format = 37
	FormatR8G8B8A8Srgb       Format = 43
	FormatB8G8R8A8Unorm      Format = 44
	FormatB8G8R8A8Srgb       Format = 50
	FormatR32G32Sfloat       Format = 103
	FormatR32G32B32Sfloat    Format = 106
	FormatR32G32B32A32Sfloat Format = 109
	FormatR32Sint            Format = 99
	FormatD32Sfloat          Format = 126
)

// Unorm returns the linear variant of an sRGB format, which shares its texel size
// and can therefore be the source or target of an image copy.
func (f Format) Unorm() Format {
	switch f {
	case FormatB8G8R8A8Srgb:
		return FormatB8G8R8A8Unorm
	case FormatR8G8B8A8Srgb:
		return FormatR8G8B8A8Unorm
	}
	return f
}

// IsDepth reports whether f is a depth format.
func (f Format) IsDepth() bool { return f == FormatD32Sfloat }

type ColorSpace uint32

const ColorSpaceSrgbNonlinear ColorSpace = 0

// PresentMode mirrors VkPresentModeKHR.
type PresentMode uint32

const (
	PresentModeImmediate   PresentMode = 0
	PresentModeMailbox     PresentMode = 1
	PresentModeFifo        PresentMode = 2
	PresentModeFifoRelaxed PresentMode = 3
)

func (m PresentMode) String() string {
	switch m {
	case PresentModeImmediate:
		return "immediate"
	case PresentModeMailbox:
		return "mailbox"
	case PresentModeFifo:
		return "fifo"
	case PresentModeFifoRelaxed:
		return "fifo-relaxed"
	}
	return "unknown"
}

type ImageUsage uint32

const (
	ImageUsageTransferSrc            ImageUsage = 0x01
	ImageUsageTransferDst            ImageUsage = 0x02
	ImageUsageSampled                ImageUsage = 0x04
	ImageUsageStorage                ImageUsage = 0x08
	ImageUsageColorAttachment        ImageUsage = 0x10
	ImageUsageDepthStencilAttachment ImageUsage = 0x20
)

type BufferUsage uint32

const (
	BufferUsageTransferSrc                  BufferUsage = 0x00000001
	BufferUsageTransferDst                  BufferUsage = 0x00000002
	BufferUsageUniformBuffer                BufferUsage = 0x00000010
	BufferUsageStorageBuffer                BufferUsage = 0x00000020
	BufferUsageIndexBuffer                  BufferUsage = 0x00000040
	BufferUsageVertexBuffer                 BufferUsage = 0x00000080
	BufferUsageShaderBindingTable           BufferUsage = 0x00000400
	BufferUsageShaderDeviceAddress          BufferUsage = 0x00020000
	BufferUsageAccelerationStructureInput   BufferUsage = 0x00080000
	BufferUsageAccelerationStructureStorage BufferUsage = 0x00100000
)

type MemoryProperty uint32

const (
	MemoryDeviceLocal  MemoryProperty = 0x1
	MemoryHostVisible  MemoryProperty = 0x2
	MemoryHostCoherent MemoryProperty = 0x4
)

type ImageAspect uint32

const (
	AspectColor   ImageAspect = 0x1
	AspectDepth   ImageAspect = 0x2
	AspectStencil ImageAspect = 0x4
)

type ImageTiling uint32

const (
	TilingOptimal ImageTiling = 0
	TilingLinear  ImageTiling = 1
)

// Access mirrors VkAccessFlags.
type Access uint32

const (
	AccessNone                        Access = 0
	AccessIndirectCommandRead         Access = 0x00000001
	AccessIndexRead                   Access = 0x00000002
	AccessVertexAttributeRead         Access = 0x00000004
	AccessUniformRead                 Access = 0x00000008
	AccessInputAttachmentRead         Access = 0x00000010
	AccessShaderRead                  Access = 0x00000020
	AccessShaderWrite                 Access = 0x00000040
	AccessColorAttachmentRead         Access = 0x00000080
	AccessColorAttachmentWrite        Access = 0x00000100
	AccessDepthStencilAttachmentRead  Access = 0x00000200
	AccessDepthStencilAttachmentWrite Access = 0x00000400
	AccessTransferRead                Access = 0x00000800
	AccessTransferWrite               Access = 0x00001000
	AccessHostRead                    Access = 0x00002000
	AccessHostWrite                   Access = 0x00004000
	AccessMemoryRead                  Access = 0x00008000
	AccessMemoryWrite                 Access = 0x00010000
	AccessAccelerationStructureRead   Access = 0x00200000
	AccessAccelerationStructureWrite  Access = 0x00400000
)

// PipelineStage mirrors VkPipelineStageFlags.
type PipelineStage uint32

const (
	StageTopOfPipe                  PipelineStage = 0x00000001
	StageDrawIndirect               PipelineStage = 0x00000002
	StageVertexInput                PipelineStage = 0x00000004
	StageVertexShader               PipelineStage = 0x00000008
	StageFragmentShader             PipelineStage = 0x00000080
	StageEarlyFragmentTests         PipelineStage = 0x00000100
	StageLateFragmentTests          PipelineStage = 0x00000200
	StageColorAttachmentOutput      PipelineStage = 0x00000400
	StageComputeShader              PipelineStage = 0x00000800
	StageTransfer                   PipelineStage = 0x00001000
	StageBottomOfPipe               PipelineStage = 0x00002000
	StageHost                       PipelineStage = 0x00004000
	StageAllGraphics                PipelineStage = 0x00008000
	StageAllCommands                PipelineStage = 0x00010000
	StageRayTracingShader           PipelineStage = 0x00200000
	StageAccelerationStructureBuild PipelineStage = 0x02000000
)

// ShaderStage mirrors VkShaderStageFlags.
type ShaderStage uint32

const (
	ShaderStageVertex       ShaderStage = 0x0001
	ShaderStageFragment     ShaderStage = 0x0010
	ShaderStageCompute      ShaderStage = 0x0020
	ShaderStageRaygen       ShaderStage = 0x0100
	ShaderStageAnyHit       ShaderStage = 0x0200
	ShaderStageClosestHit   ShaderStage = 0x0400
	ShaderStageMiss         ShaderStage = 0x0800
	ShaderStageIntersection ShaderStage = 0x1000
	ShaderStageCallable     ShaderStage = 0x2000
)

type DescriptorType uint32

const (
	DescriptorSampler               DescriptorType = 0
	DescriptorCombinedImageSampler  DescriptorType = 1
	DescriptorSampledImage          DescriptorType = 2
	DescriptorStorageImage          DescriptorType = 3
	DescriptorUniformBuffer         DescriptorType = 6
	DescriptorStorageBuffer         DescriptorType = 7
	DescriptorAccelerationStructure DescriptorType = 1000150000
)

type PipelineBindPoint uint32

const (
	BindPointGraphics   PipelineBindPoint = 0
	BindPointCompute    PipelineBindPoint = 1
	BindPointRayTracing PipelineBindPoint = 1000165000
)

type LoadOp uint32

const (
	LoadOpLoad     LoadOp = 0
	LoadOpClear    LoadOp = 1
	LoadOpDontCare LoadOp = 2
)

type StoreOp uint32

const (
	StoreOpStore    StoreOp = 0
	StoreOpDontCare StoreOp = 1
)

type AccelerationStructureType uint32

const (
	AccelerationTopLevel    AccelerationStructureType = 0
	AccelerationBottomLevel AccelerationStructureType = 1
)

type GeometryType uint32

const (
	GeometryTriangles GeometryType = 0
	GeometryAABBs     GeometryType = 1
	GeometryInstances GeometryType = 2
)

// ObjectType mirrors the VkObjectType values used for debug names.
type ObjectType uint32

const (
	ObjectDeviceMemory          ObjectType = 8
	ObjectBuffer                ObjectType = 9
	ObjectImage                 ObjectType = 10
	ObjectImageView             ObjectType = 14
	ObjectAccelerationStructure ObjectType = 1000150000
)

// Extent2D is a width/height pair in pixels.
type Extent2D struct {
	Width  uint32
	Height uint32
}

// IsZero reports whether the extent covers no pixels.
func (e Extent2D) IsZero() bool { return e.Width == 0 || e.Height == 0 }

// SubresourceRange selects a single mip level and array layer of the given aspect.
type SubresourceRange struct {
	Aspect         ImageAspect
	BaseMipLevel   uint32
	LevelCount     uint32
	BaseArrayLayer uint32
	LayerCount     uint32
}

// WholeImage returns the range covering mip 0, layer 0 of aspect.
func WholeImage(aspect ImageAspect) SubresourceRange {
	return SubresourceRange{Aspect: aspect, LevelCount: 1, LayerCount: 1}
}

type ImageBarrier struct {
	Image     Image
	Range     SubresourceRange
	SrcAccess Access
	DstAccess Access
	OldLayout ImageLayout
	NewLayout ImageLayout
}

type MemoryBarrier struct {
	SrcAccess Access
	DstAccess Access
}

type ImageCopy struct {
	SrcAspect ImageAspect
	DstAspect ImageAspect
	Extent    Extent2D
}

type ClearValue struct {
	Color   [4]float32
	Depth   float32
	Stencil uint32
}

type RenderPassBegin struct {
	RenderPass  RenderPass
	Framebuffer Framebuffer
	Extent      Extent2D
	ClearValues []ClearValue
}

// StridedRegion addresses one region of a shader binding table.
type StridedRegion struct {
	DeviceAddress uint64
	Stride        uint64
	Size          uint64
}

type SubmitInfo struct {
	WaitSemaphores   []Semaphore
	WaitStages       []PipelineStage
	CommandBuffers   []CommandBuffer
	SignalSemaphores []Semaphore
}

type PresentInfo struct {
	WaitSemaphores []Semaphore
	Swapchain      Swapchain
	ImageIndex     uint32
}

type SurfaceCapabilities struct {
	MinImageCount    uint32
	MaxImageCount    uint32
	CurrentExtent    Extent2D
	MinImageExtent   Extent2D
	MaxImageExtent   Extent2D
	CurrentTransform uint32
}

type SurfaceFormat struct {
	Format     Format
	ColorSpace ColorSpace
}

type SurfaceSupport struct {
	Capabilities SurfaceCapabilities
	Formats      []SurfaceFormat
	PresentModes []PresentMode
}

type SwapchainCreateInfo struct {
	MinImageCount uint32
	Format        Format
	ColorSpace    ColorSpace
	Extent        Extent2D
	Usage         ImageUsage
	PresentMode   PresentMode
	PreTransform  uint32
	OldSwapchain  Swapchain
}

type ImageCreateInfo struct {
	Extent Extent2D
	Format Format
	Tiling ImageTiling
	Usage  ImageUsage
	Memory MemoryProperty
}

type ImageViewCreateInfo struct {
	Image  Image
	Format Format
	Aspect ImageAspect
}

type SamplerCreateInfo struct {
	Linear      bool
	ClampToEdge bool
	Anisotropy  float32
}

type BufferCreateInfo struct {
	Size          uint64
	Usage         BufferUsage
	Memory        MemoryProperty
	DeviceAddress bool
}

type AttachmentDescription struct {
	Format        Format
	LoadOp        LoadOp
	StoreOp       StoreOp
	InitialLayout ImageLayout
	FinalLayout   ImageLayout
}

type AttachmentReference struct {
	Attachment uint32
	Layout     ImageLayout
}

type SubpassDependency struct {
	SrcStage  PipelineStage
	DstStage  PipelineStage
	SrcAccess Access
	DstAccess Access
}

type RenderPassCreateInfo struct {
	Attachments      []AttachmentDescription
	ColorAttachments []AttachmentReference
	DepthAttachment  *AttachmentReference
	Dependency       SubpassDependency
}

type FramebufferCreateInfo struct {
	RenderPass  RenderPass
	Attachments []ImageView
	Extent      Extent2D
}

type DescriptorBinding struct {
	Binding uint32
	Type    DescriptorType
	Count   uint32
	Stages  ShaderStage
}

type DescriptorPoolSize struct {
	Type  DescriptorType
	Count uint32
}

type DescriptorImageInfo struct {
	Sampler Sampler
	View    ImageView
	Layout  ImageLayout
}

type DescriptorBufferInfo struct {
	Buffer Buffer
	Offset uint64
	Range  uint64
}

// WholeSize mirrors VK_WHOLE_SIZE.
const WholeSize = ^uint64(0)

// DescriptorWrite updates one binding of a set. Exactly one of Image, Buffer or
// AccelerationStructure is used, selected by Type.
type DescriptorWrite struct {
	Set                   DescriptorSet
	Binding               uint32
	Type                  DescriptorType
	Image                 *DescriptorImageInfo
	Buffer                *DescriptorBufferInfo
	AccelerationStructure AccelerationStructure
}

type VertexAttribute struct {
	Location uint32
	Format   Format
	Offset   uint32
}

type VertexInput struct {
	Stride     uint32
	Attributes []VertexAttribute
}

type GraphicsPipelineCreateInfo struct {
	Layout               PipelineLayout
	RenderPass           RenderPass
	VertexShader         ShaderModule
	FragmentShader       ShaderModule
	VertexInput          VertexInput
	Extent               Extent2D
	Wireframe            bool
	DepthTest            bool
	ColorAttachmentCount uint32
}

type ComputePipelineCreateInfo struct {
	Layout PipelineLayout
	Shader ShaderModule
	Entry  string
}

type ShaderStageInfo struct {
	Stage  ShaderStage
	Module ShaderModule
}

type ShaderGroupType uint32

const (
	ShaderGroupGeneral       ShaderGroupType = 0
	ShaderGroupTrianglesHit  ShaderGroupType = 1
	ShaderGroupProceduralHit ShaderGroupType = 2
)

// ShaderUnused mirrors VK_SHADER_UNUSED_KHR.
const ShaderUnused = ^uint32(0)

type ShaderGroup struct {
	Type         ShaderGroupType
	General      uint32
	ClosestHit   uint32
	AnyHit       uint32
	Intersection uint32
}

type RayTracingPipelineCreateInfo struct {
	Layout            PipelineLayout
	Stages            []ShaderStageInfo
	Groups            []ShaderGroup
	MaxRecursionDepth uint32
}

type RayTracingProperties struct {
	ShaderGroupHandleSize      uint32
	ShaderGroupBaseAlignment   uint32
	ShaderGroupHandleAlignment uint32
	MaxRayRecursionDepth       uint32
	MinScratchOffsetAlignment  uint32
}

// AccelerationGeometry describes one geometry of a build. Device addresses
// are absolute; the Offset fields are applied by the driver.
type AccelerationGeometry struct {
	Type   GeometryType
	Opaque bool

	VertexData   uint64
	VertexStride uint64
	VertexFormat Format
	MaxVertex    uint32
	IndexData    uint64

	AABBData   uint64
	AABBStride uint64

	InstanceData uint64

	PrimitiveCount  uint32
	PrimitiveOffset uint32
	FirstVertex     uint32
}

type AccelerationBuildInfo struct {
	Type            AccelerationStructureType
	Geometries      []AccelerationGeometry
	PreferFastTrace bool
	Destination     AccelerationStructure
	ScratchAddress  uint64
}

type BuildSizes struct {
	AccelerationStructureSize uint64
	BuildScratchSize          uint64
	UpdateScratchSize         uint64
}

// Add accumulates other into s.
func (s BuildSizes) Add(other BuildSizes) BuildSizes {
	s.AccelerationStructureSize += other.AccelerationStructureSize
	s.BuildScratchSize += other.BuildScratchSize
	s.UpdateScratchSize += other.UpdateScratchSize
	return s
}

type AccelerationStructureCreateInfo struct {
	Type   AccelerationStructureType
	Buffer Buffer
	Offset uint64
	Size   uint64
}
