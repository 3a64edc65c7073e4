// Package gputest provides a recording in-memory implementation of the gpu
// interfaces. Work submitted to the fake device completes when its fence is
// waited on or when the device is waited idle.
package gputest

import (
	"fmt"
	"sort"

	"github.com/ibd1279/vks-examples/hybrid-raytracer/internal/gpu"
	"github.com/pkg/errors"
)

// Call is one device-level call in issue order.
type Call struct {
	Op     string
	Handle uint64
}

// Command is one recorded command.
type Command struct {
	Name string
	Args interface{}
}

// Submission is one graphics queue submission with the commands it carried.
type Submission struct {
	Info     gpu.SubmitInfo
	Fence    gpu.Fence
	Commands []Command
}

type fenceState struct {
	signaled bool
	pending  bool
}

// Device is a fake gpu.Device.
type Device struct {
	// Extent reported as the surface's current extent.
	Extent gpu.Extent2D

	// Surface capabilities and formats; defaults are filled by NewDevice.
	Surface gpu.SurfaceSupport

	Properties gpu.RayTracingProperties

	// Queued results for AcquireNextImage and Present; Success once drained.
	AcquireResults []gpu.Result
	PresentResults []gpu.Result

	// Queued results for WaitForFence; Success once drained.
	FenceResults []gpu.Result

	// Fail makes the named operation return an error.
	Fail map[string]error

	Calls       []Call
	Submissions []Submission
	Presents    []gpu.PresentInfo
	Violations  []string
	Memory      map[gpu.Memory][]byte
	Names       map[uint64]string
	Destroyed   bool

	next        uint64
	live        map[uint64]string
	fences      map[gpu.Fence]*fenceState
	lastFence   map[gpu.CommandBuffer]gpu.Fence
	recording   map[gpu.CommandBuffer][]Command
	ended       map[gpu.CommandBuffer][]Command
	imageCursor uint32
	images      map[gpu.Swapchain][]gpu.Image
}

// NewDevice returns a fake device with an 800x600 surface and typical
// ray-tracing properties.
func NewDevice() *Device {
	return &Device{
		Extent: gpu.Extent2D{Width: 800, Height: 600},
		Surface: gpu.SurfaceSupport{
			Capabilities: gpu.SurfaceCapabilities{
				MinImageCount:  2,
				MaxImageCount:  3,
				CurrentExtent:  gpu.Extent2D{Width: 800, Height: 600},
				MinImageExtent: gpu.Extent2D{Width: 1, Height: 1},
				MaxImageExtent: gpu.Extent2D{Width: 4096, Height: 4096},
			},
			Formats: []gpu.SurfaceFormat{
				{Format: gpu.FormatB8G8R8A8Unorm, ColorSpace: gpu.ColorSpaceSrgbNonlinear},
				{Format: gpu.FormatB8G8R8A8Srgb, ColorSpace: gpu.ColorSpaceSrgbNonlinear},
			},
			PresentModes: []gpu.PresentMode{gpu.PresentModeFifo, gpu.PresentModeMailbox},
		},
		Properties: gpu.RayTracingProperties{
			ShaderGroupHandleSize:      32,
			ShaderGroupBaseAlignment:   64,
			ShaderGroupHandleAlignment: 32,
			MaxRayRecursionDepth:       31,
			MinScratchOffsetAlignment:  128,
		},
		Fail:      make(map[string]error),
		Memory:    make(map[gpu.Memory][]byte),
		Names:     make(map[uint64]string),
		live:      make(map[uint64]string),
		fences:    make(map[gpu.Fence]*fenceState),
		lastFence: make(map[gpu.CommandBuffer]gpu.Fence),
		recording: make(map[gpu.CommandBuffer][]Command),
		ended:     make(map[gpu.CommandBuffer][]Command),
		images:    make(map[gpu.Swapchain][]gpu.Image),
	}
}

func (d *Device) call(op string, handle uint64) {
	d.Calls = append(d.Calls, Call{Op: op, Handle: handle})
}

func (d *Device) violate(format string, args ...interface{}) {
	d.Violations = append(d.Violations, fmt.Sprintf(format, args...))
}

func (d *Device) create(kind string) (uint64, error) {
	if err := d.Fail[kind]; err != nil {
		return 0, err
	}
	d.next++
	d.live[d.next] = kind
	d.call("create "+kind, d.next)
	return d.next, nil
}

func (d *Device) destroy(kind string, handle uint64) {
	d.call("destroy "+kind, handle)
	if handle == 0 {
		return
	}
	got, ok := d.live[handle]
	if !ok {
		d.violate("destroy of unknown or already destroyed %s %d", kind, handle)
		return
	}
	if got != kind {
		d.violate("destroy %s called on %s %d", kind, got, handle)
	}
	delete(d.live, handle)
}

// Live returns the number of live objects of the given kind.
func (d *Device) Live(kind string) int {
	count := 0
	for _, k := range d.live {
		if k == kind {
			count++
		}
	}
	return count
}

// Leaks lists every live object as "kind#handle", sorted.
func (d *Device) Leaks() []string {
	var out []string
	for h, k := range d.live {
		out = append(out, fmt.Sprintf("%s#%d", k, h))
	}
	sort.Strings(out)
	return out
}

// CallCount counts calls with the given op name.
func (d *Device) CallCount(op string) int {
	count := 0
	for _, c := range d.Calls {
		if c.Op == op {
			count++
		}
	}
	return count
}

// CallIndex returns the position of the n-th (0-based) call with op, or -1.
func (d *Device) CallIndex(op string, n int) int {
	for i, c := range d.Calls {
		if c.Op == op {
			if n == 0 {
				return i
			}
			n--
		}
	}
	return -1
}

// LastCallIndex returns the position of the last call with op, or -1.
func (d *Device) LastCallIndex(op string) int {
	for i := len(d.Calls) - 1; i >= 0; i-- {
		if d.Calls[i].Op == op {
			return i
		}
	}
	return -1
}

// CommandsOf returns the commands most recently ended on cb.
func (d *Device) CommandsOf(cb gpu.CommandBuffer) []Command {
	return d.ended[cb]
}

// PendingFences counts submitted fences that have not completed yet.
func (d *Device) PendingFences() int {
	count := 0
	for _, f := range d.fences {
		if f.pending {
			count++
		}
	}
	return count
}

func (d *Device) Destroy() {
	d.call("destroy device", 0)
	d.Destroyed = true
}

func (d *Device) WaitIdle() error {
	d.call("wait idle", 0)
	for _, f := range d.fences {
		if f.pending {
			f.pending = false
			f.signaled = true
		}
	}
	return nil
}

func (d *Device) RayTracingProperties() gpu.RayTracingProperties { return d.Properties }

func (d *Device) SetObjectName(kind gpu.ObjectType, handle uint64, name string) {
	d.Names[handle] = name
}

func (d *Device) SurfaceSupport() (gpu.SurfaceSupport, error) {
	s := d.Surface
	s.Capabilities.CurrentExtent = d.Extent
	return s, nil
}

func (d *Device) CreateSwapchain(info gpu.SwapchainCreateInfo) (gpu.Swapchain, error) {
	if info.Extent.IsZero() {
		d.violate("swapchain created with zero extent")
	}
	h, err := d.create("swapchain")
	if err != nil {
		return 0, err
	}
	sc := gpu.Swapchain(h)
	images := make([]gpu.Image, info.MinImageCount)
	for i := range images {
		d.next++
		images[i] = gpu.Image(d.next)
	}
	d.images[sc] = images
	d.imageCursor = 0
	return sc, nil
}

func (d *Device) SwapchainImages(sc gpu.Swapchain) ([]gpu.Image, error) {
	return append([]gpu.Image(nil), d.images[sc]...), nil
}

func (d *Device) DestroySwapchain(sc gpu.Swapchain) {
	delete(d.images, sc)
	d.destroy("swapchain", uint64(sc))
}

func (d *Device) AcquireNextImage(sc gpu.Swapchain, timeout uint64, signal gpu.Semaphore) (uint32, gpu.Result) {
	d.call("acquire", uint64(sc))
	if len(d.AcquireResults) > 0 {
		r := d.AcquireResults[0]
		d.AcquireResults = d.AcquireResults[1:]
		if r != gpu.Success && r != gpu.Suboptimal {
			return 0, r
		}
		if r == gpu.Suboptimal {
			return d.nextImage(sc), r
		}
	}
	return d.nextImage(sc), gpu.Success
}

func (d *Device) nextImage(sc gpu.Swapchain) uint32 {
	n := uint32(len(d.images[sc]))
	if n == 0 {
		return 0
	}
	index := d.imageCursor % n
	d.imageCursor++
	return index
}

func (d *Device) Submit(info gpu.SubmitInfo, fence gpu.Fence) error {
	d.call("submit", uint64(fence))
	if err := d.Fail["submit"]; err != nil {
		return err
	}
	var cmds []Command
	for _, cb := range info.CommandBuffers {
		if _, open := d.recording[cb]; open {
			d.violate("command buffer %d submitted while recording", cb)
		}
		cmds = append(cmds, d.ended[cb]...)
		if fence != 0 {
			d.lastFence[cb] = fence
		}
	}
	if fence != 0 {
		f, ok := d.fences[fence]
		if !ok {
			d.violate("submit with unknown fence %d", fence)
		} else {
			if f.signaled || f.pending {
				d.violate("submit with fence %d that was not reset", fence)
			}
			f.pending = true
			f.signaled = false
		}
	}
	d.Submissions = append(d.Submissions, Submission{Info: info, Fence: fence, Commands: cmds})
	return nil
}

func (d *Device) Present(info gpu.PresentInfo) gpu.Result {
	d.call("present", uint64(info.Swapchain))
	d.Presents = append(d.Presents, info)
	if len(d.PresentResults) > 0 {
		r := d.PresentResults[0]
		d.PresentResults = d.PresentResults[1:]
		return r
	}
	return gpu.Success
}

func (d *Device) CreateCommandPool(resettable bool) (gpu.CommandPool, error) {
	h, err := d.create("command pool")
	return gpu.CommandPool(h), err
}

func (d *Device) DestroyCommandPool(pool gpu.CommandPool) {
	d.destroy("command pool", uint64(pool))
}

func (d *Device) AllocateCommandBuffers(pool gpu.CommandPool, count int) ([]gpu.CommandBuffer, error) {
	out := make([]gpu.CommandBuffer, count)
	for i := range out {
		h, err := d.create("command buffer")
		if err != nil {
			return nil, err
		}
		out[i] = gpu.CommandBuffer(h)
	}
	return out, nil
}

func (d *Device) FreeCommandBuffers(pool gpu.CommandPool, buffers []gpu.CommandBuffer) {
	for _, cb := range buffers {
		if f := d.lastFence[cb]; f != 0 && d.fences[f] != nil && d.fences[f].pending {
			d.violate("command buffer %d freed while its submission is pending", cb)
		}
		delete(d.lastFence, cb)
		delete(d.ended, cb)
		d.destroy("command buffer", uint64(cb))
	}
}

func (d *Device) BeginCommandBuffer(cb gpu.CommandBuffer, oneTime bool) (gpu.Recorder, error) {
	d.call("begin", uint64(cb))
	if f := d.lastFence[cb]; f != 0 {
		if st := d.fences[f]; st != nil && st.pending {
			d.violate("command buffer %d re-recorded before fence %d signaled", cb, f)
		}
	}
	d.recording[cb] = []Command{}
	return &recorder{dev: d, cb: cb}, nil
}

func (d *Device) EndCommandBuffer(cb gpu.CommandBuffer) error {
	d.call("end", uint64(cb))
	cmds, ok := d.recording[cb]
	if !ok {
		return errors.Errorf("command buffer %d is not recording", cb)
	}
	delete(d.recording, cb)
	d.ended[cb] = cmds
	return nil
}

func (d *Device) CreateFence(signaled bool) (gpu.Fence, error) {
	h, err := d.create("fence")
	if err != nil {
		return 0, err
	}
	d.fences[gpu.Fence(h)] = &fenceState{signaled: signaled}
	return gpu.Fence(h), nil
}

func (d *Device) WaitForFence(fence gpu.Fence, timeout uint64) gpu.Result {
	d.call("wait fence", uint64(fence))
	if len(d.FenceResults) > 0 {
		r := d.FenceResults[0]
		d.FenceResults = d.FenceResults[1:]
		if r != gpu.Success {
			return r
		}
	}
	f, ok := d.fences[fence]
	if !ok {
		d.violate("wait on unknown fence %d", fence)
		return gpu.ErrorUnknown
	}
	if !f.pending && !f.signaled {
		d.violate("wait on fence %d that will never signal", fence)
	}
	f.pending = false
	f.signaled = true
	return gpu.Success
}

func (d *Device) ResetFence(fence gpu.Fence) error {
	d.call("reset fence", uint64(fence))
	f, ok := d.fences[fence]
	if !ok {
		return errors.Errorf("unknown fence %d", fence)
	}
	if f.pending {
		d.violate("fence %d reset while pending", fence)
	}
	f.signaled = false
	return nil
}

func (d *Device) DestroyFence(fence gpu.Fence) {
	if f := d.fences[fence]; f != nil && f.pending {
		d.violate("fence %d destroyed while pending", fence)
	}
	delete(d.fences, fence)
	d.destroy("fence", uint64(fence))
}

func (d *Device) CreateSemaphore() (gpu.Semaphore, error) {
	h, err := d.create("semaphore")
	return gpu.Semaphore(h), err
}

func (d *Device) DestroySemaphore(sem gpu.Semaphore) { d.destroy("semaphore", uint64(sem)) }

func (d *Device) CreateImage(info gpu.ImageCreateInfo) (gpu.Image, gpu.Memory, error) {
	if info.Extent.IsZero() {
		d.violate("image created with zero extent")
	}
	img, err := d.create("image")
	if err != nil {
		return 0, 0, err
	}
	mem, err := d.create("memory")
	if err != nil {
		return 0, 0, err
	}
	return gpu.Image(img), gpu.Memory(mem), nil
}

func (d *Device) DestroyImage(img gpu.Image) { d.destroy("image", uint64(img)) }

func (d *Device) CreateImageView(info gpu.ImageViewCreateInfo) (gpu.ImageView, error) {
	if info.Image == 0 {
		d.violate("image view created for null image")
	}
	h, err := d.create("image view")
	return gpu.ImageView(h), err
}

func (d *Device) DestroyImageView(view gpu.ImageView) { d.destroy("image view", uint64(view)) }

func (d *Device) CreateSampler(info gpu.SamplerCreateInfo) (gpu.Sampler, error) {
	h, err := d.create("sampler")
	return gpu.Sampler(h), err
}

func (d *Device) DestroySampler(s gpu.Sampler) { d.destroy("sampler", uint64(s)) }

func (d *Device) CreateBuffer(info gpu.BufferCreateInfo) (gpu.Buffer, gpu.Memory, error) {
	if info.Size == 0 {
		d.violate("buffer created with zero size")
	}
	b, err := d.create("buffer")
	if err != nil {
		return 0, 0, err
	}
	mem, err := d.create("memory")
	if err != nil {
		return 0, 0, err
	}
	return gpu.Buffer(b), gpu.Memory(mem), nil
}

func (d *Device) DestroyBuffer(b gpu.Buffer) { d.destroy("buffer", uint64(b)) }

func (d *Device) BufferDeviceAddress(b gpu.Buffer) uint64 { return uint64(b) << 20 }

func (d *Device) WriteMemory(mem gpu.Memory, offset uint64, data []byte) error {
	d.call("write memory", uint64(mem))
	if err := d.Fail["write memory"]; err != nil {
		return err
	}
	buf := d.Memory[mem]
	if need := int(offset) + len(data); len(buf) < need {
		grown := make([]byte, need)
		copy(grown, buf)
		buf = grown
	}
	copy(buf[offset:], data)
	d.Memory[mem] = buf
	return nil
}

func (d *Device) FreeMemory(mem gpu.Memory) {
	delete(d.Memory, mem)
	d.destroy("memory", uint64(mem))
}

func (d *Device) CreateShaderModule(code []uint32) (gpu.ShaderModule, error) {
	h, err := d.create("shader module")
	return gpu.ShaderModule(h), err
}

func (d *Device) DestroyShaderModule(m gpu.ShaderModule) { d.destroy("shader module", uint64(m)) }

func (d *Device) CreateRenderPass(info gpu.RenderPassCreateInfo) (gpu.RenderPass, error) {
	h, err := d.create("render pass")
	return gpu.RenderPass(h), err
}

func (d *Device) DestroyRenderPass(rp gpu.RenderPass) { d.destroy("render pass", uint64(rp)) }

func (d *Device) CreateFramebuffer(info gpu.FramebufferCreateInfo) (gpu.Framebuffer, error) {
	for _, v := range info.Attachments {
		if _, ok := d.live[uint64(v)]; !ok {
			d.violate("framebuffer references dead image view %d", v)
		}
	}
	h, err := d.create("framebuffer")
	return gpu.Framebuffer(h), err
}

func (d *Device) DestroyFramebuffer(fb gpu.Framebuffer) { d.destroy("framebuffer", uint64(fb)) }

func (d *Device) CreateDescriptorSetLayout(bindings []gpu.DescriptorBinding) (gpu.DescriptorSetLayout, error) {
	h, err := d.create("descriptor set layout")
	return gpu.DescriptorSetLayout(h), err
}

func (d *Device) DestroyDescriptorSetLayout(layout gpu.DescriptorSetLayout) {
	d.destroy("descriptor set layout", uint64(layout))
}

func (d *Device) CreateDescriptorPool(maxSets uint32, sizes []gpu.DescriptorPoolSize) (gpu.DescriptorPool, error) {
	h, err := d.create("descriptor pool")
	return gpu.DescriptorPool(h), err
}

func (d *Device) ResetDescriptorPool(pool gpu.DescriptorPool) error {
	d.call("reset descriptor pool", uint64(pool))
	return nil
}

func (d *Device) DestroyDescriptorPool(pool gpu.DescriptorPool) {
	d.destroy("descriptor pool", uint64(pool))
}

func (d *Device) AllocateDescriptorSets(pool gpu.DescriptorPool, layouts []gpu.DescriptorSetLayout) ([]gpu.DescriptorSet, error) {
	if err := d.Fail["descriptor set"]; err != nil {
		return nil, err
	}
	out := make([]gpu.DescriptorSet, len(layouts))
	for i := range out {
		d.next++
		out[i] = gpu.DescriptorSet(d.next)
	}
	return out, nil
}

func (d *Device) UpdateDescriptorSets(writes []gpu.DescriptorWrite) {
	d.call("update descriptor sets", uint64(len(writes)))
	for _, w := range writes {
		if w.Image != nil && w.Image.View != 0 {
			if _, ok := d.live[uint64(w.Image.View)]; !ok {
				d.violate("descriptor write references dead image view %d", w.Image.View)
			}
		}
	}
}

func (d *Device) CreatePipelineLayout(layouts []gpu.DescriptorSetLayout) (gpu.PipelineLayout, error) {
	h, err := d.create("pipeline layout")
	return gpu.PipelineLayout(h), err
}

func (d *Device) DestroyPipelineLayout(layout gpu.PipelineLayout) {
	d.destroy("pipeline layout", uint64(layout))
}

func (d *Device) CreateGraphicsPipeline(info gpu.GraphicsPipelineCreateInfo) (gpu.Pipeline, error) {
	h, err := d.create("pipeline")
	return gpu.Pipeline(h), err
}

func (d *Device) CreateComputePipeline(info gpu.ComputePipelineCreateInfo) (gpu.Pipeline, error) {
	h, err := d.create("pipeline")
	return gpu.Pipeline(h), err
}

func (d *Device) CreateRayTracingPipeline(info gpu.RayTracingPipelineCreateInfo) (gpu.Pipeline, error) {
	h, err := d.create("pipeline")
	return gpu.Pipeline(h), err
}

func (d *Device) DestroyPipeline(p gpu.Pipeline) { d.destroy("pipeline", uint64(p)) }

func (d *Device) ShaderGroupHandles(p gpu.Pipeline, groupCount uint32, dataSize int) ([]byte, error) {
	data := make([]byte, dataSize)
	size := int(d.Properties.ShaderGroupHandleSize)
	for g := 0; g < int(groupCount); g++ {
		for i := 0; i < size && g*size+i < dataSize; i++ {
			data[g*size+i] = byte(g + 1)
		}
	}
	return data, nil
}

// AccelerationStructureBuildSizes derives sizes from the primitive count so
// tests can predict buffer offsets.
func (d *Device) AccelerationStructureBuildSizes(info gpu.AccelerationBuildInfo) gpu.BuildSizes {
	var primitives uint64
	for _, g := range info.Geometries {
		primitives += uint64(g.PrimitiveCount)
	}
	return gpu.BuildSizes{
		AccelerationStructureSize: 1024 + 256*primitives,
		BuildScratchSize:          512 + 128*primitives,
		UpdateScratchSize:         256,
	}
}

func (d *Device) CreateAccelerationStructure(info gpu.AccelerationStructureCreateInfo) (gpu.AccelerationStructure, error) {
	h, err := d.create("acceleration structure")
	return gpu.AccelerationStructure(h), err
}

func (d *Device) DestroyAccelerationStructure(as gpu.AccelerationStructure) {
	d.destroy("acceleration structure", uint64(as))
}

func (d *Device) AccelerationStructureAddress(as gpu.AccelerationStructure) uint64 {
	return 0xA0000000 + uint64(as)
}
