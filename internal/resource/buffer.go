package resource

import (
	"github.com/ibd1279/vks-examples/hybrid-raytracer/internal/gpu"
	"github.com/pkg/errors"
)

type Buffer struct {
	dev     gpu.Device
	Handle  gpu.Buffer
	Memory  gpu.Memory
	Size    uint64
	address uint64
}

// NewBuffer allocates a buffer. Buffers created with DeviceAddress set cache
// their device address.
func NewBuffer(dev gpu.Device, info gpu.BufferCreateInfo) (*Buffer, error) {
	handle, mem, err := dev.CreateBuffer(info)
	if err != nil {
		return nil, errors.Wrapf(err, "create %d byte buffer", info.Size)
	}
	b := &Buffer{dev: dev, Handle: handle, Memory: mem, Size: info.Size}
	if info.DeviceAddress {
		b.address = dev.BufferDeviceAddress(handle)
	}
	return b, nil
}

// NewHostBuffer allocates a host visible, coherent buffer filled with data.
func NewHostBuffer(dev gpu.Device, usage gpu.BufferUsage, data []byte) (*Buffer, error) {
	b, err := NewBuffer(dev, gpu.BufferCreateInfo{
		Size:          uint64(len(data)),
		Usage:         usage,
		Memory:        gpu.MemoryHostVisible | gpu.MemoryHostCoherent,
		DeviceAddress: usage&gpu.BufferUsageShaderDeviceAddress != 0,
	})
	if err != nil {
		return nil, err
	}
	if err := b.Write(0, data); err != nil {
		b.Destroy()
		return nil, err
	}
	return b, nil
}

// NewDeviceBuffer uploads data into device local memory through a staging
// buffer and a single-time command buffer from pool.
func NewDeviceBuffer(dev gpu.Device, pool *CommandPool, usage gpu.BufferUsage, data []byte) (*Buffer, error) {
	staging, err := NewHostBuffer(dev, gpu.BufferUsageTransferSrc, data)
	if err != nil {
		return nil, errors.Wrap(err, "staging")
	}
	defer staging.Destroy()

	b, err := NewBuffer(dev, gpu.BufferCreateInfo{
		Size:          uint64(len(data)),
		Usage:         usage | gpu.BufferUsageTransferDst,
		Memory:        gpu.MemoryDeviceLocal,
		DeviceAddress: usage&gpu.BufferUsageShaderDeviceAddress != 0,
	})
	if err != nil {
		return nil, err
	}
	err = pool.SingleTime(func(rec gpu.Recorder) error {
		rec.CopyBuffer(staging.Handle, b.Handle, b.Size)
		return nil
	})
	if err != nil {
		b.Destroy()
		return nil, errors.Wrap(err, "upload buffer")
	}
	return b, nil
}

func (b *Buffer) Write(offset uint64, data []byte) error {
	if offset+uint64(len(data)) > b.Size {
		return errors.Errorf("write of %d bytes at %d overflows %d byte buffer", len(data), offset, b.Size)
	}
	return b.dev.WriteMemory(b.Memory, offset, data)
}

// Address returns the device address; zero unless requested at creation.
func (b *Buffer) Address() uint64 { return b.address }

func (b *Buffer) SetName(name string) {
	b.dev.SetObjectName(gpu.ObjectBuffer, uint64(b.Handle), name)
	b.dev.SetObjectName(gpu.ObjectDeviceMemory, uint64(b.Memory), name+" memory")
}

func (b *Buffer) Destroy() {
	if b == nil || b.Handle == 0 {
		return
	}
	b.dev.DestroyBuffer(b.Handle)
	b.dev.FreeMemory(b.Memory)
	b.Handle, b.Memory = 0, 0
}
