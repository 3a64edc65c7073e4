package frame

import (
	"bytes"
	"encoding/binary"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/ibd1279/vks-examples/hybrid-raytracer/internal/gpu"
	"github.com/ibd1279/vks-examples/hybrid-raytracer/internal/resource"
	"github.com/pkg/errors"
)

// UniformBufferObject is the per-frame shader constant block. Field order
// and sizes follow the std140 layout declared by the shaders.
type UniformBufferObject struct {
	ModelView         mgl32.Mat4
	Projection        mgl32.Mat4
	ModelViewInverse  mgl32.Mat4
	ProjectionInverse mgl32.Mat4

	// Transforms of the previous presented frame, for motion vectors and
	// reprojection.
	LastModelView  mgl32.Mat4
	LastProjection mgl32.Mat4

	Aperture         float32
	FocusDistance    float32
	TotalSamples     uint32
	Samples          uint32
	Bounces          uint32
	RandomSeed       uint32
	FrameCount       uint32
	HasPreviousFrame uint32
}

// UniformBufferSize is the encoded size of UniformBufferObject.
const UniformBufferSize = 6*64 + 8*4

func (u *UniformBufferObject) MarshalBinary() ([]byte, error) {
	var buf bytes.Buffer
	buf.Grow(UniformBufferSize)
	if err := binary.Write(&buf, binary.LittleEndian, u); err != nil {
		return nil, errors.Wrap(err, "encode uniform buffer")
	}
	return buf.Bytes(), nil
}

func (u *UniformBufferObject) UnmarshalBinary(data []byte) error {
	if len(data) < UniformBufferSize {
		return errors.Errorf("uniform buffer: need %d bytes; got %d", UniformBufferSize, len(data))
	}
	return binary.Read(bytes.NewReader(data), binary.LittleEndian, u)
}

// UniformBuffer is a host visible buffer holding one UniformBufferObject.
type UniformBuffer struct {
	Buffer *resource.Buffer
}

func NewUniformBuffer(dev gpu.Device) (*UniformBuffer, error) {
	b, err := resource.NewBuffer(dev, gpu.BufferCreateInfo{
		Size:   UniformBufferSize,
		Usage:  gpu.BufferUsageUniformBuffer,
		Memory: gpu.MemoryHostVisible | gpu.MemoryHostCoherent,
	})
	if err != nil {
		return nil, errors.Wrap(err, "create uniform buffer")
	}
	return &UniformBuffer{Buffer: b}, nil
}

func (u *UniformBuffer) SetValue(ubo *UniformBufferObject) error {
	data, err := ubo.MarshalBinary()
	if err != nil {
		return err
	}
	return u.Buffer.Write(0, data)
}

func (u *UniformBuffer) Destroy() {
	if u != nil {
		u.Buffer.Destroy()
	}
}

// TransformCache remembers the previous frame's camera transforms. It is a
// one-deep register: each Advance hands out the last stored pair and keeps
// the new one.
type TransformCache struct {
	modelView  mgl32.Mat4
	projection mgl32.Mat4
	set        bool
}

// Advance fills the last-frame fields of ubo and then stores ubo's current
// transforms. On the very first frame the current transforms are used, which
// yields zero motion.
func (c *TransformCache) Advance(ubo *UniformBufferObject) {
	if !c.set {
		c.modelView, c.projection, c.set = ubo.ModelView, ubo.Projection, true
	}
	ubo.LastModelView = c.modelView
	ubo.LastProjection = c.projection
	c.modelView = ubo.ModelView
	c.projection = ubo.Projection
}

// Previous returns the stored transforms and whether any frame was recorded.
func (c *TransformCache) Previous() (modelView, projection mgl32.Mat4, ok bool) {
	return c.modelView, c.projection, c.set
}
