package resource

import (
	"github.com/ibd1279/vks-examples/hybrid-raytracer/internal/gpu"
	"github.com/pkg/errors"
)

// CommandPool allocates command buffers for the graphics queue.
type CommandPool struct {
	dev    gpu.Device
	Handle gpu.CommandPool
}

func NewCommandPool(dev gpu.Device) (*CommandPool, error) {
	handle, err := dev.CreateCommandPool(true)
	if err != nil {
		return nil, errors.Wrap(err, "create command pool")
	}
	return &CommandPool{dev: dev, Handle: handle}, nil
}

func (p *CommandPool) Device() gpu.Device { return p.dev }

// Allocate returns count primary command buffers.
func (p *CommandPool) Allocate(count int) (*CommandBuffers, error) {
	handles, err := p.dev.AllocateCommandBuffers(p.Handle, count)
	if err != nil {
		return nil, errors.Wrapf(err, "allocate %d command buffers", count)
	}
	return &CommandBuffers{pool: p, Handles: handles}, nil
}

// SingleTime records fn into a fresh command buffer, submits it to the
// graphics queue and blocks on a private fence until it completes.
func (p *CommandPool) SingleTime(fn func(rec gpu.Recorder) error) error {
	buffers, err := p.Allocate(1)
	if err != nil {
		return err
	}
	defer buffers.Free()

	rec, err := buffers.Begin(0, true)
	if err != nil {
		return err
	}
	if err := fn(rec); err != nil {
		p.dev.EndCommandBuffer(buffers.Handles[0])
		return err
	}
	if err := buffers.End(0); err != nil {
		return err
	}

	fence, err := NewFence(p.dev, false)
	if err != nil {
		return err
	}
	defer fence.Destroy()

	if err := p.dev.Submit(gpu.SubmitInfo{CommandBuffers: buffers.Handles}, fence.Handle); err != nil {
		return errors.Wrap(err, "submit single-time commands")
	}
	return gpu.Check(fence.Wait(gpu.NoTimeout), "wait for single-time commands")
}

func (p *CommandPool) Destroy() {
	if p == nil || p.Handle == 0 {
		return
	}
	p.dev.DestroyCommandPool(p.Handle)
	p.Handle = 0
}

// CommandBuffers is a batch of command buffers allocated together.
type CommandBuffers struct {
	pool    *CommandPool
	Handles []gpu.CommandBuffer
}

func (c *CommandBuffers) Len() int { return len(c.Handles) }

func (c *CommandBuffers) Begin(i int, oneTime bool) (gpu.Recorder, error) {
	rec, err := c.pool.dev.BeginCommandBuffer(c.Handles[i], oneTime)
	if err != nil {
		return nil, errors.Wrapf(err, "begin command buffer %d", i)
	}
	return rec, nil
}

func (c *CommandBuffers) End(i int) error {
	return errors.Wrapf(c.pool.dev.EndCommandBuffer(c.Handles[i]), "end command buffer %d", i)
}

func (c *CommandBuffers) Free() {
	if c == nil || len(c.Handles) == 0 {
		return
	}
	c.pool.dev.FreeCommandBuffers(c.pool.Handle, c.Handles)
	c.Handles = nil
}
