package app

import (
	"github.com/ibd1279/vks-examples/hybrid-raytracer/internal/frame"
	"github.com/ibd1279/vks-examples/hybrid-raytracer/internal/gpu"
	"github.com/ibd1279/vks-examples/hybrid-raytracer/internal/input"
	"github.com/ibd1279/vks-examples/hybrid-raytracer/internal/resource"
	"github.com/ibd1279/vks-examples/hybrid-raytracer/internal/scene"
	"github.com/ibd1279/vks-examples/hybrid-raytracer/internal/shader"
	"github.com/ibd1279/vks-examples/hybrid-raytracer/internal/swapchain"
)

// Window is the windowing system seen by the orchestrator.
type Window interface {
	IsMinimized() bool
	WaitForEvents()
	PollEvents()
	ShouldClose() bool
	FramebufferExtent() gpu.Extent2D
	// Resized reports and clears the framebuffer-resized flag.
	Resized() bool
	SetCallbacks(h input.Handler)
}

// DeviceContext is what a backend borrows once the device exists. None of it
// may be destroyed by the backend.
type DeviceContext struct {
	Device  gpu.Device
	Pool    *resource.CommandPool
	Scene   *scene.Scene
	Shaders shader.Compiler
}

// SwapChainContext describes one swap-chain generation.
type SwapChainContext struct {
	*DeviceContext
	SwapChain  *swapchain.SwapChain
	Depth      *swapchain.DepthBuffer
	Slots      int
	RayTraced  bool
	PostShader string
}

// Frame is one frame being recorded.
type Frame struct {
	Slot          *frame.Slot
	ImageIndex    uint32
	Extent        gpu.Extent2D
	Color         *resource.Image
	Depth         *swapchain.DepthBuffer
	PreviousColor *resource.ImageView
	PreviousDepth *resource.ImageView
	MotionVectors *resource.ImageView
	Sampler       gpu.Sampler

	// RasterPass records the raster pass into the swap image, the shared
	// depth buffer and the motion vector attachment.
	RasterPass func(rec gpu.Recorder)
}

func (f *Frame) Rasterize(rec gpu.Recorder) {
	if f.RasterPass != nil {
		f.RasterPass(rec)
	}
}

// RenderBackend is the render path plugged into the orchestrator. Hooks are
// called in order: OnDeviceSetup, OnDeviceReady, then for every swap-chain
// generation OnSwapChainReady, RecordFrame per frame, OnSwapChainTeardown,
// and finally OnDeviceTeardown.
type RenderBackend interface {
	OnDeviceSetup(req *gpu.DeviceRequirements)
	OnDeviceReady(ctx *DeviceContext) error
	OnSwapChainReady(ctx *SwapChainContext) error
	RecordFrame(rec gpu.Recorder, f *Frame) error
	// OnSwapChainTeardown must tolerate a partially built generation.
	OnSwapChainTeardown()
	OnDeviceTeardown()
}

// RasterBackend draws the scene with the graphics pipeline only.
type RasterBackend struct{}

func (RasterBackend) OnDeviceSetup(req *gpu.DeviceRequirements) {}
func (RasterBackend) OnDeviceReady(ctx *DeviceContext) error { return nil }
func (RasterBackend) OnSwapChainReady(ctx *SwapChainContext) error { return nil }
func (RasterBackend) OnSwapChainTeardown() {}
func (RasterBackend) OnDeviceTeardown() {}

func (RasterBackend) RecordFrame(rec gpu.Recorder, f *Frame) error {
	f.Rasterize(rec)
	return nil
}
