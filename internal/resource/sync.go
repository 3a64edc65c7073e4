package resource

import (
	"github.com/ibd1279/vks-examples/hybrid-raytracer/internal/gpu"
	"github.com/pkg/errors"
)

type Fence struct {
	dev    gpu.Device
	Handle gpu.Fence
}

func NewFence(dev gpu.Device, signaled bool) (*Fence, error) {
	handle, err := dev.CreateFence(signaled)
	if err != nil {
		return nil, errors.Wrap(err, "create fence")
	}
	return &Fence{dev: dev, Handle: handle}, nil
}

// Wait blocks until the fence signals or timeout nanoseconds pass.
func (f *Fence) Wait(timeout uint64) gpu.Result { return f.dev.WaitForFence(f.Handle, timeout) }
func (f *Fence) Reset() error { return f.dev.ResetFence(f.Handle) }

func (f *Fence) Destroy() {
	if f == nil || f.Handle == 0 {
		return
	}
	f.dev.DestroyFence(f.Handle)
	f.Handle = 0
}

type Semaphore struct {
	dev    gpu.Device
	Handle gpu.Semaphore
}

func NewSemaphore(dev gpu.Device) (*Semaphore, error) {
	handle, err := dev.CreateSemaphore()
	if err != nil {
		return nil, errors.Wrap(err, "create semaphore")
	}
	return &Semaphore{dev: dev, Handle: handle}, nil
}

func (s *Semaphore) Destroy() {
	if s == nil || s.Handle == 0 {
		return
	}
	s.dev.DestroySemaphore(s.Handle)
	s.Handle = 0
}
