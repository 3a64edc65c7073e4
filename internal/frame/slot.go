// Package frame holds the per frame-in-flight resources: one slot per
// swap-chain image, each with its own semaphores, fence, uniform buffer and
// command buffer.
package frame

import (
	"github.com/ibd1279/vks-examples/hybrid-raytracer/internal/gpu"
	"github.com/ibd1279/vks-examples/hybrid-raytracer/internal/resource"
	"github.com/pkg/errors"
)

// Slot is one frame-in-flight. Its command buffer may only be re-recorded
// after InFlight has been waited.
type Slot struct {
	Index          int
	ImageAvailable *resource.Semaphore
	RenderFinished *resource.Semaphore
	InFlight       *resource.Fence
	Uniform        *UniformBuffer
	Command        gpu.CommandBuffer

	retired []*resource.ImageView
}

// Retire defers the destruction of v until the slot's fence was next waited.
func (s *Slot) Retire(v *resource.ImageView) {
	if v != nil {
		s.retired = append(s.retired, v)
	}
}

// ReleaseRetired destroys every view retired by the previous use of the slot.
func (s *Slot) ReleaseRetired() {
	for _, v := range s.retired {
		v.Destroy()
	}
	s.retired = s.retired[:0]
}

func (s *Slot) destroy() {
	s.ReleaseRetired()
	s.Uniform.Destroy()
	s.InFlight.Destroy()
	s.RenderFinished.Destroy()
	s.ImageAvailable.Destroy()
}

// Set is the ring of slots for one swap-chain generation.
type Set struct {
	Slots    []*Slot
	commands *resource.CommandBuffers
	current  int
}

// NewSet creates count slots. Fences start signaled so the first wait on
// every slot returns immediately.
func NewSet(dev gpu.Device, pool *resource.CommandPool, count int) (set *Set, err error) {
	set = &Set{}
	defer func() {
		if err != nil {
			set.FreeCommandBuffers()
			set.Destroy()
			set = nil
		}
	}()

	if set.commands, err = pool.Allocate(count); err != nil {
		return set, err
	}
	for i := 0; i < count; i++ {
		slot := &Slot{Index: i, Command: set.commands.Handles[i]}
		set.Slots = append(set.Slots, slot)
		if slot.ImageAvailable, err = resource.NewSemaphore(dev); err != nil {
			return set, errors.Wrapf(err, "slot %d", i)
		}
		if slot.RenderFinished, err = resource.NewSemaphore(dev); err != nil {
			return set, errors.Wrapf(err, "slot %d", i)
		}
		if slot.InFlight, err = resource.NewFence(dev, true); err != nil {
			return set, errors.Wrapf(err, "slot %d", i)
		}
		if slot.Uniform, err = NewUniformBuffer(dev); err != nil {
			return set, errors.Wrapf(err, "slot %d", i)
		}
	}
	return set, nil
}

func (s *Set) Len() int { return len(s.Slots) }

func (s *Set) Current() *Slot { return s.Slots[s.current] }

// Advance moves to the next slot, wrapping around.
func (s *Set) Advance() { s.current = (s.current + 1) % len(s.Slots) }

// Commands exposes the slot command buffers for Begin/End.
func (s *Set) Commands() *resource.CommandBuffers { return s.commands }

// FreeCommandBuffers releases the slot command buffers. It runs before the
// framebuffers and pipelines they reference are destroyed.
func (s *Set) FreeCommandBuffers() {
	if s == nil || s.commands == nil {
		return
	}
	s.commands.Free()
	for _, slot := range s.Slots {
		slot.Command = 0
	}
}

// Destroy releases every slot. Command buffers must already be freed.
func (s *Set) Destroy() {
	if s == nil {
		return
	}
	for _, slot := range s.Slots {
		slot.destroy()
	}
	s.Slots = nil
}
