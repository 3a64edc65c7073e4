package vulkan

import (
	"unsafe"

	"github.com/ibd1279/vks"
	"github.com/ibd1279/vks-examples/hybrid-raytracer/internal/gpu"
	"github.com/pkg/errors"
)

func (d *Device) CreateRenderPass(info gpu.RenderPassCreateInfo) (gpu.RenderPass, error) {
	arp := vks.NewAutoReleaser()
	defer arp.Release()

	descriptions := make([]vks.AttachmentDescription, len(info.Attachments))
	for k, a := range info.Attachments {
		descriptions[k] = vks.AttachmentDescription{}.
			WithFormat(vks.Format(a.Format)).
			WithSamples(vks.VK_SAMPLE_COUNT_1_BIT).
			WithLoadOp(vks.AttachmentLoadOp(a.LoadOp)).
			WithStoreOp(vks.AttachmentStoreOp(a.StoreOp)).
			WithStencilLoadOp(vks.VK_ATTACHMENT_LOAD_OP_DONT_CARE).
			WithStencilStoreOp(vks.VK_ATTACHMENT_STORE_OP_DONT_CARE).
			WithInitialLayout(vks.ImageLayout(a.InitialLayout)).
			WithFinalLayout(vks.ImageLayout(a.FinalLayout))
	}
	attachments := vks.AttachmentDescriptionCSlice(arp, descriptions...)

	references := make([]vks.AttachmentReference, len(info.ColorAttachments))
	for k, r := range info.ColorAttachments {
		references[k] = vks.AttachmentReference{}.
			WithAttachment(r.Attachment).
			WithLayout(vks.ImageLayout(r.Layout))
	}
	colorAttachments := vks.AttachmentReferenceCSlice(arp, references...)

	subpass := vks.SubpassDescription{}.
		WithPipelineBindPoint(vks.VK_PIPELINE_BIND_POINT_GRAPHICS).
		WithPColorAttachments(colorAttachments)
	if info.DepthAttachment != nil {
		depthAttachment := vks.CPtr(arp, &vks.AttachmentReference{},
			func(in *vks.AttachmentReference) {
				in.SetAttachment(info.DepthAttachment.Attachment)
				in.SetLayout(vks.ImageLayout(info.DepthAttachment.Layout))
			},
		)
		subpass = subpass.WithPDepthStencilAttachment(depthAttachment)
	}
	subpasses := vks.SubpassDescriptionCSlice(arp, subpass)

	dep := info.Dependency
	dependencies := vks.SubpassDependencyCSlice(arp,
		vks.SubpassDependency{}.
			WithSrcSubpass(vks.VK_SUBPASS_EXTERNAL).
			WithSrcStageMask(vks.PipelineStageFlags(dep.SrcStage)).
			WithDstStageMask(vks.PipelineStageFlags(dep.DstStage)).
			WithSrcAccessMask(vks.AccessFlags(dep.SrcAccess)).
			WithDstAccessMask(vks.AccessFlags(dep.DstAccess)),
	)

	renderPassCreateInfo := vks.CPtr(arp, &vks.RenderPassCreateInfo{},
		vks.SetDefaultSType,
		func(in *vks.RenderPassCreateInfo) {
			in.SetPAttachments(attachments)
			in.SetPSubpasses(subpasses)
			in.SetPDependencies(dependencies)
		},
	)
	var renderPass vks.RenderPass
	if err := check(d.device.CreateRenderPass(renderPassCreateInfo, nil, &renderPass), "create render pass"); err != nil {
		return 0, err
	}
	return gpu.RenderPass(from(renderPass)), nil
}

func (d *Device) DestroyRenderPass(rp gpu.RenderPass) {
	d.device.DestroyRenderPass(to[vks.RenderPass](uint64(rp)), nil)
}

func (d *Device) CreateFramebuffer(info gpu.FramebufferCreateInfo) (gpu.Framebuffer, error) {
	arp := vks.NewAutoReleaser()
	defer arp.Release()

	bufferCreateInfo := vks.CPtr(arp, &vks.FramebufferCreateInfo{},
		vks.SetDefaultSType,
		func(in *vks.FramebufferCreateInfo) {
			in.SetRenderPass(to[vks.RenderPass](uint64(info.RenderPass)))
			in.SetPAttachments(toSlice[vks.ImageView](info.Attachments))
			in.SetWidth(info.Extent.Width)
			in.SetHeight(info.Extent.Height)
			in.SetLayers(1)
		},
	)
	var framebuffer vks.Framebuffer
	if err := check(d.device.CreateFramebuffer(bufferCreateInfo, nil, &framebuffer), "create framebuffer"); err != nil {
		return 0, err
	}
	return gpu.Framebuffer(from(framebuffer)), nil
}

func (d *Device) DestroyFramebuffer(fb gpu.Framebuffer) {
	d.device.DestroyFramebuffer(to[vks.Framebuffer](uint64(fb)), nil)
}

func (d *Device) CreateDescriptorSetLayout(bindings []gpu.DescriptorBinding) (gpu.DescriptorSetLayout, error) {
	arp := vks.NewAutoReleaser()
	defer arp.Release()

	vkBindings := make([]vks.DescriptorSetLayoutBinding, len(bindings))
	for k, b := range bindings {
		vkBindings[k] = vks.DescriptorSetLayoutBinding{}.
			WithBinding(b.Binding).
			WithDescriptorType(vks.DescriptorType(b.Type)).
			WithDescriptorCount(b.Count).
			WithStageFlags(vks.ShaderStageFlags(b.Stages))
	}
	layoutBindings := vks.DescriptorSetLayoutBindingCSlice(arp, vkBindings...)
	createInfo := vks.CPtr(arp, &vks.DescriptorSetLayoutCreateInfo{},
		vks.SetDefaultSType,
		func(in *vks.DescriptorSetLayoutCreateInfo) {
			in.SetPBindings(layoutBindings)
		},
	)
	var layout vks.DescriptorSetLayout
	if err := check(d.device.CreateDescriptorSetLayout(createInfo, nil, &layout), "create descriptor set layout"); err != nil {
		return 0, err
	}
	return gpu.DescriptorSetLayout(from(layout)), nil
}

func (d *Device) DestroyDescriptorSetLayout(layout gpu.DescriptorSetLayout) {
	d.device.DestroyDescriptorSetLayout(to[vks.DescriptorSetLayout](uint64(layout)), nil)
}

func (d *Device) CreateDescriptorPool(maxSets uint32, sizes []gpu.DescriptorPoolSize) (gpu.DescriptorPool, error) {
	arp := vks.NewAutoReleaser()
	defer arp.Release()

	vkSizes := make([]vks.DescriptorPoolSize, len(sizes))
	for k, s := range sizes {
		vkSizes[k] = vks.DescriptorPoolSize{}.
			WithType(vks.DescriptorType(s.Type)).
			WithDescriptorCount(s.Count)
	}
	poolSizes := vks.DescriptorPoolSizeCSlice(arp, vkSizes...)
	createInfo := vks.CPtr(arp, &vks.DescriptorPoolCreateInfo{},
		vks.SetDefaultSType,
		func(in *vks.DescriptorPoolCreateInfo) {
			in.SetMaxSets(maxSets)
			in.SetPPoolSizes(poolSizes)
		},
	)
	var pool vks.DescriptorPool
	if err := check(d.device.CreateDescriptorPool(createInfo, nil, &pool), "create descriptor pool"); err != nil {
		return 0, err
	}
	return gpu.DescriptorPool(from(pool)), nil
}

func (d *Device) ResetDescriptorPool(pool gpu.DescriptorPool) error {
	return check(d.device.ResetDescriptorPool(to[vks.DescriptorPool](uint64(pool)), 0), "reset descriptor pool")
}

func (d *Device) DestroyDescriptorPool(pool gpu.DescriptorPool) {
	d.device.DestroyDescriptorPool(to[vks.DescriptorPool](uint64(pool)), nil)
}

func (d *Device) AllocateDescriptorSets(pool gpu.DescriptorPool, layouts []gpu.DescriptorSetLayout) ([]gpu.DescriptorSet, error) {
	arp := vks.NewAutoReleaser()
	defer arp.Release()

	allocInfo := vks.CPtr(arp, &vks.DescriptorSetAllocateInfo{},
		vks.SetDefaultSType,
		func(in *vks.DescriptorSetAllocateInfo) {
			in.SetDescriptorPool(to[vks.DescriptorPool](uint64(pool)))
			in.SetPSetLayouts(toSlice[vks.DescriptorSetLayout](layouts))
		},
	)
	sets := make([]vks.DescriptorSet, len(layouts))
	if err := check(d.device.AllocateDescriptorSets(allocInfo, sets), "allocate descriptor sets"); err != nil {
		return nil, err
	}
	return fromSlice[gpu.DescriptorSet](sets), nil
}

// UpdateDescriptorSets applies every write in one call. Acceleration
// structure writes chain their handle through pNext.
func (d *Device) UpdateDescriptorSets(writes []gpu.DescriptorWrite) {
	arp := vks.NewAutoReleaser()
	defer arp.Release()

	vkWrites := make([]vks.WriteDescriptorSet, len(writes))
	for k, w := range writes {
		write := vks.WriteDescriptorSet{}.
			WithDefaultSType().
			WithDstSet(to[vks.DescriptorSet](uint64(w.Set))).
			WithDstBinding(w.Binding).
			WithDescriptorType(vks.DescriptorType(w.Type)).
			WithDescriptorCount(1)
		switch {
		case w.Type == gpu.DescriptorAccelerationStructure:
			structures := []vks.AccelerationStructureKHR{to[vks.AccelerationStructureKHR](uint64(w.AccelerationStructure))}
			next := vks.CPtr(arp, &vks.WriteDescriptorSetAccelerationStructureKHR{},
				vks.SetDefaultSType,
				func(in *vks.WriteDescriptorSetAccelerationStructureKHR) {
					in.SetPAccelerationStructures(structures)
				},
			)
			write = write.WithPNext(unsafe.Pointer(next))
		case w.Image != nil:
			write = write.WithPImageInfo(vks.DescriptorImageInfoCSlice(arp,
				vks.DescriptorImageInfo{}.
					WithSampler(to[vks.Sampler](uint64(w.Image.Sampler))).
					WithImageView(to[vks.ImageView](uint64(w.Image.View))).
					WithImageLayout(vks.ImageLayout(w.Image.Layout)),
			))
		case w.Buffer != nil:
			write = write.WithPBufferInfo(vks.DescriptorBufferInfoCSlice(arp,
				vks.DescriptorBufferInfo{}.
					WithBuffer(to[vks.Buffer](uint64(w.Buffer.Buffer))).
					WithOffset(vks.DeviceSize(w.Buffer.Offset)).
					WithRange(vks.DeviceSize(w.Buffer.Range)),
			))
		}
		vkWrites[k] = write
	}
	vkWrites = vks.WriteDescriptorSetCSlice(arp, vkWrites...)
	d.device.UpdateDescriptorSets(uint32(len(vkWrites)), vkWrites, 0, nil)
}

func (d *Device) CreatePipelineLayout(layouts []gpu.DescriptorSetLayout) (gpu.PipelineLayout, error) {
	arp := vks.NewAutoReleaser()
	defer arp.Release()

	layoutInfo := vks.CPtr(arp, &vks.PipelineLayoutCreateInfo{},
		vks.SetDefaultSType,
		func(in *vks.PipelineLayoutCreateInfo) {
			in.SetPSetLayouts(toSlice[vks.DescriptorSetLayout](layouts))
		},
	)
	var layout vks.PipelineLayout
	if err := check(d.device.CreatePipelineLayout(layoutInfo, nil, &layout), "create pipeline layout"); err != nil {
		return 0, err
	}
	return gpu.PipelineLayout(from(layout)), nil
}

func (d *Device) DestroyPipelineLayout(layout gpu.PipelineLayout) {
	d.device.DestroyPipelineLayout(to[vks.PipelineLayout](uint64(layout)), nil)
}

func (d *Device) CreateGraphicsPipeline(info gpu.GraphicsPipelineCreateInfo) (gpu.Pipeline, error) {
	arp := vks.NewAutoReleaser()
	defer arp.Release()

	name := vks.NewCStr(arp, "main")
	stages := vks.PipelineShaderStageCreateInfoCSlice(arp,
		vks.PipelineShaderStageCreateInfo{}.
			WithDefaultSType().
			WithStage(vks.VK_SHADER_STAGE_VERTEX_BIT).
			WithModule(to[vks.ShaderModule](uint64(info.VertexShader))).
			WithPName(name),
		vks.PipelineShaderStageCreateInfo{}.
			WithDefaultSType().
			WithStage(vks.VK_SHADER_STAGE_FRAGMENT_BIT).
			WithModule(to[vks.ShaderModule](uint64(info.FragmentShader))).
			WithPName(name),
	)

	bindings := vks.VertexInputBindingDescriptionCSlice(arp,
		vks.VertexInputBindingDescription{}.
			WithBinding(0).
			WithStride(info.VertexInput.Stride).
			WithInputRate(vks.VK_VERTEX_INPUT_RATE_VERTEX),
	)
	attributes := make([]vks.VertexInputAttributeDescription, len(info.VertexInput.Attributes))
	for k, a := range info.VertexInput.Attributes {
		attributes[k] = vks.VertexInputAttributeDescription{}.
			WithBinding(0).
			WithLocation(a.Location).
			WithFormat(vks.Format(a.Format)).
			WithOffset(a.Offset)
	}
	vertexAttributes := vks.VertexInputAttributeDescriptionCSlice(arp, attributes...)
	vertexInputState := vks.CPtr(arp, &vks.PipelineVertexInputStateCreateInfo{},
		vks.SetDefaultSType,
		func(in *vks.PipelineVertexInputStateCreateInfo) {
			in.SetPVertexBindingDescriptions(bindings)
			in.SetPVertexAttributeDescriptions(vertexAttributes)
		},
	)

	inputAssemblyState := vks.CPtr(arp, &vks.PipelineInputAssemblyStateCreateInfo{},
		vks.SetDefaultSType,
		func(in *vks.PipelineInputAssemblyStateCreateInfo) {
			in.SetTopology(vks.VK_PRIMITIVE_TOPOLOGY_TRIANGLE_LIST)
			in.SetPrimitiveRestartEnable(vks.VK_FALSE)
		},
	)

	viewports := vks.ViewportCSlice(arp,
		vks.Viewport{}.
			WithWidth(float32(info.Extent.Width)).
			WithHeight(float32(info.Extent.Height)).
			WithMaxDepth(1.0),
	)
	scissors := vks.Rect2DCSlice(arp,
		vks.Rect2D{}.
			WithExtent(extent2D(info.Extent)),
	)
	viewportState := vks.CPtr(arp, &vks.PipelineViewportStateCreateInfo{},
		vks.SetDefaultSType,
		func(in *vks.PipelineViewportStateCreateInfo) {
			in.SetPViewports(viewports)
			in.SetPScissors(scissors)
		},
	)

	polygonMode := vks.VK_POLYGON_MODE_FILL
	if info.Wireframe {
		polygonMode = vks.VK_POLYGON_MODE_LINE
	}
	rasterizationState := vks.CPtr(arp, &vks.PipelineRasterizationStateCreateInfo{},
		vks.SetDefaultSType,
		func(in *vks.PipelineRasterizationStateCreateInfo) {
			in.SetDepthClampEnable(vks.VK_FALSE)
			in.SetRasterizerDiscardEnable(vks.VK_FALSE)
			in.SetPolygonMode(polygonMode)
			in.SetLineWidth(1.0)
			in.SetCullMode(vks.CullModeFlags(vks.VK_CULL_MODE_BACK_BIT))
			in.SetFrontFace(vks.VK_FRONT_FACE_COUNTER_CLOCKWISE)
			in.SetDepthBiasEnable(vks.VK_FALSE)
		},
	)

	multisampleState := vks.CPtr(arp, &vks.PipelineMultisampleStateCreateInfo{},
		vks.SetDefaultSType,
		func(in *vks.PipelineMultisampleStateCreateInfo) {
			in.SetSampleShadingEnable(vks.VK_FALSE)
			in.SetRasterizationSamples(vks.VK_SAMPLE_COUNT_1_BIT)
		},
	)

	depthStencilState := vks.CPtr(arp, &vks.PipelineDepthStencilStateCreateInfo{},
		vks.SetDefaultSType,
		func(in *vks.PipelineDepthStencilStateCreateInfo) {
			in.SetDepthTestEnable(bool32(info.DepthTest))
			in.SetDepthWriteEnable(bool32(info.DepthTest))
			in.SetDepthCompareOp(vks.VK_COMPARE_OP_LESS)
			in.SetDepthBoundsTestEnable(vks.VK_FALSE)
			in.SetStencilTestEnable(vks.VK_FALSE)
		},
	)

	count := info.ColorAttachmentCount
	if count == 0 {
		count = 1
	}
	blendStates := make([]vks.PipelineColorBlendAttachmentState, count)
	for k := range blendStates {
		blendStates[k] = vks.PipelineColorBlendAttachmentState{}.
			WithColorWriteMask(vks.ColorComponentFlags(vks.VK_COLOR_COMPONENT_R_BIT | vks.VK_COLOR_COMPONENT_G_BIT | vks.VK_COLOR_COMPONENT_B_BIT | vks.VK_COLOR_COMPONENT_A_BIT)).
			WithBlendEnable(vks.VK_FALSE)
	}
	colorBlendAttachmentState := vks.PipelineColorBlendAttachmentStateCSlice(arp, blendStates...)
	colorBlendState := vks.CPtr(arp, &vks.PipelineColorBlendStateCreateInfo{},
		vks.SetDefaultSType,
		func(in *vks.PipelineColorBlendStateCreateInfo) {
			in.SetLogicOpEnable(vks.VK_FALSE)
			in.SetLogicOp(vks.VK_LOGIC_OP_COPY)
			in.SetPAttachments(colorBlendAttachmentState)
		},
	)

	pipelineCreateInfos := vks.GraphicsPipelineCreateInfoCSlice(arp,
		vks.GraphicsPipelineCreateInfo{}.
			WithDefaultSType().
			WithPStages(stages).
			WithPVertexInputState(vertexInputState).
			WithPInputAssemblyState(inputAssemblyState).
			WithPViewportState(viewportState).
			WithPRasterizationState(rasterizationState).
			WithPMultisampleState(multisampleState).
			WithPDepthStencilState(depthStencilState).
			WithPColorBlendState(colorBlendState).
			WithLayout(to[vks.PipelineLayout](uint64(info.Layout))).
			WithRenderPass(to[vks.RenderPass](uint64(info.RenderPass))),
	)

	pipelines := make([]vks.Pipeline, len(pipelineCreateInfos))
	result := d.device.CreateGraphicsPipelines(
		vks.NullPipelineCache,
		uint32(len(pipelineCreateInfos)),
		pipelineCreateInfos,
		nil,
		pipelines)
	if err := check(result, "create graphics pipeline"); err != nil {
		return 0, err
	}
	return gpu.Pipeline(from(pipelines[0])), nil
}

func (d *Device) CreateComputePipeline(info gpu.ComputePipelineCreateInfo) (gpu.Pipeline, error) {
	arp := vks.NewAutoReleaser()
	defer arp.Release()

	entry := info.Entry
	if entry == "" {
		entry = "main"
	}
	stage := vks.PipelineShaderStageCreateInfo{}.
		WithDefaultSType().
		WithStage(vks.VK_SHADER_STAGE_COMPUTE_BIT).
		WithModule(to[vks.ShaderModule](uint64(info.Shader))).
		WithPName(vks.NewCStr(arp, entry))
	pipelineCreateInfos := vks.ComputePipelineCreateInfoCSlice(arp,
		vks.ComputePipelineCreateInfo{}.
			WithDefaultSType().
			WithStage(stage).
			WithLayout(to[vks.PipelineLayout](uint64(info.Layout))),
	)

	pipelines := make([]vks.Pipeline, 1)
	result := d.device.CreateComputePipelines(vks.NullPipelineCache, 1, pipelineCreateInfos, nil, pipelines)
	if err := check(result, "create compute pipeline"); err != nil {
		return 0, err
	}
	return gpu.Pipeline(from(pipelines[0])), nil
}

func (d *Device) CreateRayTracingPipeline(info gpu.RayTracingPipelineCreateInfo) (gpu.Pipeline, error) {
	arp := vks.NewAutoReleaser()
	defer arp.Release()

	if info.MaxRecursionDepth > d.rayTracing.MaxRayRecursionDepth {
		return 0, errors.Errorf("vulkan: recursion depth %d exceeds device limit %d",
			info.MaxRecursionDepth, d.rayTracing.MaxRayRecursionDepth)
	}

	name := vks.NewCStr(arp, "main")
	stageInfos := make([]vks.PipelineShaderStageCreateInfo, len(info.Stages))
	for k, s := range info.Stages {
		stageInfos[k] = vks.PipelineShaderStageCreateInfo{}.
			WithDefaultSType().
			WithStage(vks.ShaderStageFlagBits(s.Stage)).
			WithModule(to[vks.ShaderModule](uint64(s.Module))).
			WithPName(name)
	}
	stages := vks.PipelineShaderStageCreateInfoCSlice(arp, stageInfos...)

	groupInfos := make([]vks.RayTracingShaderGroupCreateInfoKHR, len(info.Groups))
	for k, g := range info.Groups {
		groupInfos[k] = vks.RayTracingShaderGroupCreateInfoKHR{}.
			WithDefaultSType().
			WithType(vks.RayTracingShaderGroupTypeKHR(g.Type)).
			WithGeneralShader(g.General).
			WithClosestHitShader(g.ClosestHit).
			WithAnyHitShader(g.AnyHit).
			WithIntersectionShader(g.Intersection)
	}
	groups := vks.RayTracingShaderGroupCreateInfoKHRCSlice(arp, groupInfos...)

	pipelineCreateInfos := vks.RayTracingPipelineCreateInfoKHRCSlice(arp,
		vks.RayTracingPipelineCreateInfoKHR{}.
			WithDefaultSType().
			WithPStages(stages).
			WithPGroups(groups).
			WithMaxPipelineRayRecursionDepth(info.MaxRecursionDepth).
			WithLayout(to[vks.PipelineLayout](uint64(info.Layout))),
	)

	pipelines := make([]vks.Pipeline, 1)
	result := d.device.CreateRayTracingPipelinesKHR(
		vks.NullDeferredOperationKHR,
		vks.NullPipelineCache,
		1,
		pipelineCreateInfos,
		nil,
		pipelines)
	if err := check(result, "create ray tracing pipeline"); err != nil {
		return 0, err
	}
	return gpu.Pipeline(from(pipelines[0])), nil
}

func (d *Device) DestroyPipeline(p gpu.Pipeline) {
	d.device.DestroyPipeline(to[vks.Pipeline](uint64(p)), nil)
}

// ShaderGroupHandles reads the opaque handles of the first groupCount groups.
func (d *Device) ShaderGroupHandles(p gpu.Pipeline, groupCount uint32, dataSize int) ([]byte, error) {
	data := make([]byte, dataSize)
	if dataSize == 0 {
		return data, nil
	}
	result := d.device.GetRayTracingShaderGroupHandlesKHR(
		to[vks.Pipeline](uint64(p)),
		0,
		groupCount,
		uintptr(dataSize),
		unsafe.Pointer(&data[0]),
	)
	if err := check(result, "get shader group handles"); err != nil {
		return nil, err
	}
	return data, nil
}
