// Package app is the frame orchestrator: it owns the device, rebuilds every
// swap-chain dependent resource when the surface changes and drives the
// per-frame acquire, record, submit and present cycle.
package app

import (
	"io/fs"
	"time"

	"github.com/ibd1279/vks-examples/hybrid-raytracer/internal/frame"
	"github.com/ibd1279/vks-examples/hybrid-raytracer/internal/gpu"
	"github.com/ibd1279/vks-examples/hybrid-raytracer/internal/raster"
	"github.com/ibd1279/vks-examples/hybrid-raytracer/internal/resource"
	"github.com/ibd1279/vks-examples/hybrid-raytracer/internal/scene"
	"github.com/ibd1279/vks-examples/hybrid-raytracer/internal/shader"
	"github.com/ibd1279/vks-examples/hybrid-raytracer/internal/swapchain"
	"github.com/ibd1279/vks-examples/hybrid-raytracer/log"
	"github.com/pkg/errors"
)

var logger = log.New("app")

// generation holds everything created for one swap chain.
type generation struct {
	wireframe bool
	rayTraced bool

	swap  *swapchain.SwapChain
	slots *frame.Set
	depth *swapchain.DepthBuffer

	saveColor    *resource.Image
	saveDepth    *resource.Image
	prevColor    *resource.ViewSlot
	prevDepth    *resource.ViewSlot
	motion       *resource.Image
	motionView   *resource.ImageView
	sampler      gpu.Sampler
	renderPass   *raster.RenderPass
	pipeline     *raster.Pipeline
	framebuffers *raster.Framebuffers
}

type Application struct {
	instance gpu.Instance
	window   Window
	scene    *scene.Scene
	files    fs.FS
	backend  RenderBackend
	opts     Options
	state    State

	device  gpu.Device
	pool    *resource.CommandPool
	shaders shader.Compiler
	ctx     *DeviceContext
	chain   *generation

	wireframe bool
	rayTraced bool

	camera       Camera
	transforms   frame.TransformCache
	totalSamples uint32
	lastFrame    time.Time
	stats        Stats
}

// New prepares an application. Shader files are read from shaders; nothing
// touches the GPU until SetPhysicalDevice.
func New(instance gpu.Instance, window Window, sc *scene.Scene, shaders fs.FS, backend RenderBackend, opts Options) *Application {
	if backend == nil {
		backend = RasterBackend{}
	}
	camera := opts.Camera
	if camera == nil {
		camera = &sc.Camera
	}
	return &Application{
		instance:  instance,
		window:    window,
		scene:     sc,
		files:     shaders,
		backend:   backend,
		opts:      opts,
		wireframe: opts.Wireframe,
		rayTraced: opts.RayTraced,
		camera:    camera,
	}
}

func (a *Application) State() State { return a.state }
func (a *Application) Stats() Stats { return a.stats }
func (a *Application) Device() gpu.Device { return a.device }

func (a *Application) Extensions() []gpu.ExtensionProperties { return a.instance.Extensions() }
func (a *Application) Layers() []gpu.LayerProperties { return a.instance.Layers() }
func (a *Application) PhysicalDevices() []gpu.PhysicalDevice { return a.instance.PhysicalDevices() }

// SetWireFrame and SetRayTraced take effect on the next frame through a swap
// chain recreation.
func (a *Application) SetWireFrame(on bool) { a.wireframe = on }
func (a *Application) WireFrame() bool { return a.wireframe }
func (a *Application) SetRayTraced(on bool) { a.rayTraced = on }
func (a *Application) RayTraced() bool { return a.rayTraced }

// SetPhysicalDevice creates the logical device on pd, uploads the scene and
// builds the first swap chain.
func (a *Application) SetPhysicalDevice(pd gpu.PhysicalDevice) (err error) {
	if a.device != nil {
		return ErrDeviceAlreadySet
	}

	req := gpu.DeviceRequirements{Features: gpu.FeatureFillModeNonSolid | gpu.FeatureSamplerAnisotropy}
	req.AddExtensions(gpu.ExtSwapchain)
	if pd.Supports(gpu.ExtPortabilitySubset) {
		req.AddExtensions(gpu.ExtPortabilitySubset)
	}
	a.backend.OnDeviceSetup(&req)
	for _, ext := range req.Extensions {
		if !pd.Supports(ext) {
			return errors.Errorf("app: device %q does not support %s", pd.Name, ext)
		}
	}

	dev, err := a.instance.CreateDevice(pd, req)
	if err != nil {
		return errors.Wrap(err, "create logical device")
	}
	a.device = dev
	a.state = DeviceBound
	defer func() {
		if err != nil {
			a.Close()
		}
	}()
	logger.Infof("using device %q (%s, Vulkan %s)", pd.Name, pd.Type, pd.APIVersion)

	if a.pool, err = resource.NewCommandPool(dev); err != nil {
		return err
	}
	a.shaders = shader.NewLoader(dev, a.files)
	if err = a.scene.Upload(dev, a.pool); err != nil {
		return errors.Wrap(err, "upload scene")
	}
	a.ctx = &DeviceContext{Device: dev, Pool: a.pool, Scene: a.scene, Shaders: a.shaders}
	if err = a.backend.OnDeviceReady(a.ctx); err != nil {
		return err
	}
	return a.CreateSwapChain()
}

// CreateSwapChain builds a swap-chain generation. It blocks while the window
// is minimized. On failure everything created so far is released.
func (a *Application) CreateSwapChain() (err error) {
	if a.device == nil {
		return ErrDeviceNotSet
	}
	if a.chain != nil {
		return errors.Wrap(ErrInvalidState, "swap chain already exists")
	}
	for a.window.IsMinimized() {
		a.window.WaitForEvents()
	}

	dev := a.device
	g := &generation{wireframe: a.wireframe, rayTraced: a.rayTraced}
	defer func() {
		if err != nil {
			a.teardown(g)
		}
	}()

	if g.swap, err = swapchain.New(dev, a.window.FramebufferExtent(), a.opts.PresentMode); err != nil {
		return errors.Wrap(err, "create swap chain")
	}
	extent := g.swap.Extent
	if g.slots, err = frame.NewSet(dev, a.pool, g.swap.Len()); err != nil {
		return errors.Wrap(err, "create frame slots")
	}
	if g.depth, err = swapchain.NewDepthBuffer(dev, extent); err != nil {
		return errors.Wrap(err, "create depth buffer")
	}
	if err = a.createPersistentImages(g); err != nil {
		return errors.Wrap(err, "create persistent images")
	}
	if g.sampler, err = dev.CreateSampler(gpu.SamplerCreateInfo{Linear: true, ClampToEdge: true, Anisotropy: 1}); err != nil {
		return errors.Wrap(err, "create sampler")
	}

	if g.renderPass, err = raster.NewRenderPass(dev, g.swap.Format, swapchain.DepthFormat, true); err != nil {
		return err
	}
	if g.pipeline, err = raster.NewPipeline(dev, a.shaders, g.renderPass, extent, g.slots.Len(), g.wireframe); err != nil {
		return err
	}
	if g.framebuffers, err = raster.NewFramebuffers(dev, g.renderPass, g.swap.Views(), g.depth.View, g.motionView, extent); err != nil {
		return err
	}

	ctx := &SwapChainContext{
		DeviceContext: a.ctx,
		SwapChain:     g.swap,
		Depth:         g.depth,
		Slots:         g.slots.Len(),
		RayTraced:     g.rayTraced,
		PostShader:    a.opts.PostShader,
	}
	if err = a.backend.OnSwapChainReady(ctx); err != nil {
		return errors.Wrap(err, "prepare render backend")
	}

	a.chain = g
	a.state = SwapChainReady
	logger.Debugf("swap chain ready: %dx%d, %d slots, wireframe %t, ray traced %t",
		extent.Width, extent.Height, g.slots.Len(), g.wireframe, g.rayTraced)
	return nil
}

// createPersistentImages allocates the images carried from one frame to the
// next and clears them, so that the first frame reads zeros.
func (a *Application) createPersistentImages(g *generation) (err error) {
	dev, extent := a.device, g.swap.Extent
	const saved = gpu.ImageUsageTransferDst | gpu.ImageUsageTransferSrc | gpu.ImageUsageSampled
	if g.saveColor, err = resource.NewImage(dev, gpu.ImageCreateInfo{Extent: extent, Format: g.swap.Format, Usage: saved}); err != nil {
		return err
	}
	g.saveColor.SetName("previous color")
	if g.saveDepth, err = resource.NewImage(dev, gpu.ImageCreateInfo{Extent: extent, Format: swapchain.DepthFormat, Usage: saved}); err != nil {
		return err
	}
	g.saveDepth.SetName("previous depth")
	g.motion, err = resource.NewImage(dev, gpu.ImageCreateInfo{
		Extent: extent,
		Format: raster.MotionVectorFormat,
		Usage:  gpu.ImageUsageColorAttachment | gpu.ImageUsageSampled,
	})
	if err != nil {
		return err
	}
	g.motion.SetName("motion vectors")
	if g.motionView, err = g.motion.CreateView(); err != nil {
		return err
	}

	return a.pool.SingleTime(func(rec gpu.Recorder) error {
		g.saveColor.Clear(rec, gpu.LayoutGeneral)
		g.saveDepth.Clear(rec, gpu.LayoutGeneral)
		var err error
		if g.prevColor, err = resource.NewViewSlot(dev, rec, g.swap.Format, gpu.ImageUsageSampled, gpu.LayoutGeneral); err != nil {
			return err
		}
		g.prevDepth, err = resource.NewViewSlot(dev, rec, swapchain.DepthFormat, gpu.ImageUsageSampled, gpu.LayoutGeneral)
		return err
	})
}

// DeleteSwapChain releases the current generation. The caller must make sure
// the device is idle.
func (a *Application) DeleteSwapChain() {
	if a.chain == nil {
		return
	}
	a.teardown(a.chain)
	a.chain = nil
	a.state = DeviceBound
}

func (a *Application) teardown(g *generation) {
	a.backend.OnSwapChainTeardown()
	g.slots.FreeCommandBuffers()
	g.framebuffers.Destroy()
	g.pipeline.Destroy()
	g.renderPass.Destroy()
	g.slots.Destroy()
	g.depth.Destroy()
	g.swap.Destroy()

	g.prevColor.Destroy()
	g.prevDepth.Destroy()
	g.saveColor.Destroy()
	g.saveDepth.Destroy()
	g.motionView.Destroy()
	g.motion.Destroy()
	if g.sampler != 0 {
		a.device.DestroySampler(g.sampler)
		g.sampler = 0
	}
}

func (a *Application) recreateSwapChain() error {
	a.state = Recreating
	if err := a.device.WaitIdle(); err != nil {
		return errors.Wrap(err, "wait for device idle")
	}
	a.DeleteSwapChain()
	if err := a.CreateSwapChain(); err != nil {
		return errors.Wrap(err, "recreate swap chain")
	}
	// The new swap chain already matches the framebuffer.
	a.window.Resized()
	a.stats.Recreations++
	a.state = Running
	logger.Noticef("recreated swap chain (%dx%d)", a.chain.swap.Extent.Width, a.chain.swap.Extent.Height)
	return nil
}

// Run draws frames until the window asks to close.
func (a *Application) Run() error {
	if a.device == nil {
		return ErrDeviceNotSet
	}
	if a.chain == nil {
		return errors.Wrap(ErrInvalidState, "no swap chain")
	}
	if a.opts.Input != nil {
		a.window.SetCallbacks(a.opts.Input)
	}
	for !a.window.ShouldClose() {
		a.window.PollEvents()
		if err := a.DrawFrame(); err != nil {
			return err
		}
	}
	return errors.Wrap(a.device.WaitIdle(), "wait for device idle")
}

// Close tears everything down in reverse order of creation. The device goes
// last.
func (a *Application) Close() {
	if a.device == nil {
		return
	}
	if err := a.device.WaitIdle(); err != nil {
		logger.Warningf("wait idle on close: %v", err)
	}
	a.DeleteSwapChain()
	a.backend.OnDeviceTeardown()
	a.scene.Destroy()
	a.pool.Destroy()
	a.pool = nil
	a.device.Destroy()
	a.device = nil
	a.ctx = nil
	a.state = Uninitialized
	logger.Debug("closed")
}
