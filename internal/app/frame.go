package app

import (
	"time"

	"github.com/ibd1279/vks-examples/hybrid-raytracer/internal/frame"
	"github.com/ibd1279/vks-examples/hybrid-raytracer/internal/gpu"
	"github.com/ibd1279/vks-examples/hybrid-raytracer/internal/raster"
	"github.com/ibd1279/vks-examples/hybrid-raytracer/internal/resource"
	"github.com/pkg/errors"
)

// DrawFrame renders and presents one frame. Out-of-date surfaces and mode
// toggles are not errors: the frame is dropped and the swap chain rebuilt.
func (a *Application) DrawFrame() error {
	if a.chain == nil {
		return errors.Wrap(ErrInvalidState, "no swap chain")
	}
	start := time.Now()
	a.state = Running
	g := a.chain
	slot := g.slots.Current()

	if err := a.waitSlot(slot); err != nil {
		return err
	}
	slot.ReleaseRetired()
	a.animate(start)

	if g.wireframe != a.wireframe || g.rayTraced != a.rayTraced {
		return a.recreateSwapChain()
	}
	imageIndex, result := a.device.AcquireNextImage(g.swap.Handle, gpu.NoTimeout, slot.ImageAvailable.Handle)
	if result.NeedsRecreate() {
		return a.recreateSwapChain()
	}
	if !result.IsSuccess() {
		return &gpu.ResultError{Op: "acquire next image", Result: result}
	}

	if err := a.record(g, slot, imageIndex); err != nil {
		return err
	}
	if err := a.updateUniforms(g, slot); err != nil {
		return err
	}

	if err := slot.InFlight.Reset(); err != nil {
		return errors.Wrap(err, "reset frame fence")
	}
	err := a.device.Submit(gpu.SubmitInfo{
		WaitSemaphores:   []gpu.Semaphore{slot.ImageAvailable.Handle},
		WaitStages:       []gpu.PipelineStage{gpu.StageColorAttachmentOutput},
		CommandBuffers:   []gpu.CommandBuffer{slot.Command},
		SignalSemaphores: []gpu.Semaphore{slot.RenderFinished.Handle},
	}, slot.InFlight.Handle)
	if err != nil {
		return errors.Wrap(err, "submit frame")
	}
	if a.opts.CopyMode == CopyOneShot {
		err = a.pool.SingleTime(func(rec gpu.Recorder) error {
			a.copyPrevious(rec, g, imageIndex)
			return nil
		})
		if err != nil {
			return errors.Wrap(err, "copy previous frame")
		}
	}
	if err := a.refreshViews(g, slot); err != nil {
		return err
	}

	result = a.device.Present(gpu.PresentInfo{
		WaitSemaphores: []gpu.Semaphore{slot.RenderFinished.Handle},
		Swapchain:      g.swap.Handle,
		ImageIndex:     imageIndex,
	})
	resized := a.window.Resized()
	if result.NeedsRecreate() || resized {
		if err := a.recreateSwapChain(); err != nil {
			return err
		}
	} else if !result.IsSuccess() {
		return &gpu.ResultError{Op: "present", Result: result}
	} else {
		g.slots.Advance()
	}

	a.stats.Frames++
	a.stats.LastFrame = time.Since(start)
	a.stats.Total += a.stats.LastFrame
	return nil
}

func (a *Application) waitSlot(slot *frame.Slot) error {
	timeout := gpu.NoTimeout
	if a.opts.FenceTimeout > 0 {
		timeout = uint64(a.opts.FenceTimeout.Nanoseconds())
	}
	switch result := slot.InFlight.Wait(timeout); {
	case result == gpu.Timeout:
		return errors.Wrapf(ErrDeviceLost, "slot %d after %s", slot.Index, a.opts.FenceTimeout)
	case !result.IsSuccess():
		return &gpu.ResultError{Op: "wait for frame fence", Result: result}
	}
	return nil
}

func (a *Application) animate(now time.Time) {
	animator, ok := a.camera.(Animator)
	if !ok {
		return
	}
	var dt float32
	if !a.lastFrame.IsZero() {
		dt = float32(now.Sub(a.lastFrame).Seconds())
	}
	a.lastFrame = now
	animator.Update(dt)
}

// record fills the slot command buffer. Descriptor sets of the slot are
// rewritten first; the fence wait guarantees the GPU no longer reads them.
func (a *Application) record(g *generation, slot *frame.Slot, imageIndex uint32) error {
	color := g.swap.Image(imageIndex)
	g.pipeline.UpdateSet(slot.Index, raster.SetBindings{
		Uniform:       slot.Uniform.Buffer,
		Materials:     a.scene.MaterialBuffer(),
		PreviousDepth: g.prevDepth.Current(),
		Sampler:       g.sampler,
	})

	commands := g.slots.Commands()
	rec, err := commands.Begin(slot.Index, false)
	if err != nil {
		return errors.Wrap(err, "begin frame commands")
	}
	f := &Frame{
		Slot:          slot,
		ImageIndex:    imageIndex,
		Extent:        g.swap.Extent,
		Color:         color,
		Depth:         g.depth,
		PreviousColor: g.prevColor.Current(),
		PreviousDepth: g.prevDepth.Current(),
		MotionVectors: g.motionView,
		Sampler:       g.sampler,
	}
	f.RasterPass = func(rec gpu.Recorder) {
		target := raster.Target{
			Framebuffer: g.framebuffers.Handles[imageIndex],
			Extent:      g.swap.Extent,
			Color:       color,
			Depth:       g.depth.Image,
			Motion:      g.motion,
		}
		raster.Record(rec, g.renderPass, g.pipeline, slot.Index, target, a.scene)
	}
	if err := a.backend.RecordFrame(rec, f); err != nil {
		commands.End(slot.Index)
		return errors.Wrap(err, "record frame")
	}
	if a.opts.CopyMode == CopyInFrame {
		a.copyPrevious(rec, g, imageIndex)
	}
	return errors.Wrap(commands.End(slot.Index), "end frame commands")
}

// copyPrevious saves the presented color and the depth buffer for the next
// frame. Both sources are returned to the layouts the render pass expects.
func (a *Application) copyPrevious(rec gpu.Recorder, g *generation, imageIndex uint32) {
	color := g.swap.Image(imageIndex)
	color.Assume(gpu.LayoutPresentSrc)
	color.Transition(rec, gpu.LayoutTransferSrcOptimal)
	g.saveColor.Transition(rec, gpu.LayoutTransferDstOptimal)
	resource.CopyImage(rec, color, g.saveColor)
	color.Transition(rec, gpu.LayoutPresentSrc)
	g.saveColor.Transition(rec, gpu.LayoutGeneral)

	depth := g.depth.Image
	depth.Assume(gpu.LayoutDepthStencilAttachmentOptimal)
	depth.Transition(rec, gpu.LayoutTransferSrcOptimal)
	g.saveDepth.Transition(rec, gpu.LayoutTransferDstOptimal)
	resource.CopyImage(rec, depth, g.saveDepth)
	depth.Transition(rec, gpu.LayoutDepthStencilAttachmentOptimal)
	g.saveDepth.Transition(rec, gpu.LayoutGeneral)
}

// updateUniforms writes the slot's uniform buffer. The previous-frame
// transforms are taken from the cache before it is advanced, and sample
// accumulation restarts whenever the camera moved.
func (a *Application) updateUniforms(g *generation, slot *frame.Slot) error {
	ubo := frame.UniformBufferObject{
		ModelView:  a.camera.ModelView(),
		Projection: a.camera.Projection(g.swap.Extent),
	}
	ubo.ModelViewInverse = ubo.ModelView.Inv()
	ubo.ProjectionInverse = ubo.Projection.Inv()
	ubo.Aperture, ubo.FocusDistance = a.camera.Lens()

	if mv, proj, ok := a.transforms.Previous(); !ok || mv != ubo.ModelView || proj != ubo.Projection {
		a.totalSamples = 0
	}
	a.transforms.Advance(&ubo)
	a.totalSamples += a.opts.Samples

	ubo.Samples = a.opts.Samples
	ubo.TotalSamples = a.totalSamples
	ubo.Bounces = a.opts.Bounces
	ubo.FrameCount = uint32(a.stats.Frames)
	ubo.RandomSeed = ubo.FrameCount + 1
	if !g.prevColor.IsBlank() {
		ubo.HasPreviousFrame = 1
	}
	return errors.Wrap(slot.Uniform.SetValue(&ubo), "update uniform buffer")
}

// refreshViews points the previous-frame bindings at fresh views of the
// saved images. The replaced views may still be bound by frames in flight,
// so they are retired into the slot and destroyed after its next fence wait.
func (a *Application) refreshViews(g *generation, slot *frame.Slot) error {
	color, err := g.saveColor.CreateView()
	if err != nil {
		return errors.Wrap(err, "create previous color view")
	}
	depth, err := g.saveDepth.CreateView()
	if err != nil {
		color.Destroy()
		return errors.Wrap(err, "create previous depth view")
	}
	slot.Retire(g.prevColor.Swap(color))
	slot.Retire(g.prevDepth.Swap(depth))
	return nil
}
