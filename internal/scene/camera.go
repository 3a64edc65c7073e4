package scene

import (
	"math"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/ibd1279/vks-examples/hybrid-raytracer/internal/gpu"
	"github.com/ibd1279/vks-examples/hybrid-raytracer/internal/input"
)

var worldUp = mgl32.Vec3{0, 1, 0}

// Camera is a first-person camera. Yaw and Pitch are in degrees.
type Camera struct {
	Position      mgl32.Vec3
	Yaw           float32
	Pitch         float32
	FieldOfView   float32
	Aperture      float32
	FocusDistance float32
	Near, Far     float32
}

func (c *Camera) Forward() mgl32.Vec3 {
	yaw, pitch := float64(mgl32.DegToRad(c.Yaw)), float64(mgl32.DegToRad(c.Pitch))
	return mgl32.Vec3{
		float32(math.Cos(pitch) * math.Cos(yaw)),
		float32(math.Sin(pitch)),
		float32(math.Cos(pitch) * math.Sin(yaw)),
	}.Normalize()
}

func (c *Camera) Right() mgl32.Vec3 { return c.Forward().Cross(worldUp).Normalize() }

func (c *Camera) ModelView() mgl32.Mat4 {
	return mgl32.LookAtV(c.Position, c.Position.Add(c.Forward()), worldUp)
}

// Projection returns a Vulkan clip-space perspective matrix (Y down).
func (c *Camera) Projection(extent gpu.Extent2D) mgl32.Mat4 {
	aspect := float32(1)
	if extent.Height > 0 {
		aspect = float32(extent.Width) / float32(extent.Height)
	}
	near, far := c.Near, c.Far
	if near <= 0 {
		near = 0.1
	}
	if far <= near {
		far = 10000
	}
	p := mgl32.Perspective(mgl32.DegToRad(c.FieldOfView), aspect, near, far)
	p[5] *= -1
	return p
}

func (c *Camera) Lens() (aperture, focusDistance float32) { return c.Aperture, c.FocusDistance }

// Controller moves a Camera from keyboard (WASD, Q/E, shift) and mouse look
// while the right button is held. It exposes the camera it drives.
type Controller struct {
	*Camera
	Speed       float32
	Sensitivity float32

	keys       map[input.Key]bool
	looking    bool
	haveCursor bool
	lastX      float64
	lastY      float64
	dirty      bool
}

func NewController(camera *Camera) *Controller {
	return &Controller{Camera: camera, Speed: 5, Sensitivity: 0.1, keys: make(map[input.Key]bool)}
}

func (c *Controller) OnKey(key input.Key, action input.Action) {
	switch action {
	case input.Press:
		c.keys[key] = true
	case input.Release:
		delete(c.keys, key)
	}
}

func (c *Controller) OnCursorPosition(x, y float64) {
	if c.looking && c.haveCursor {
		c.Camera.Yaw += float32(x-c.lastX) * c.Sensitivity
		c.Camera.Pitch -= float32(y-c.lastY) * c.Sensitivity
		c.Camera.Pitch = mgl32.Clamp(c.Camera.Pitch, -89, 89)
		c.dirty = true
	}
	c.lastX, c.lastY, c.haveCursor = x, y, true
}

func (c *Controller) OnMouseButton(button input.MouseButton, action input.Action) {
	if button == input.MouseRight {
		c.looking = action != input.Release
	}
}

func (c *Controller) OnScroll(dx, dy float64) {
	c.Camera.FieldOfView = mgl32.Clamp(c.Camera.FieldOfView-float32(dy), 1, 90)
	c.dirty = true
}

// Update applies held keys for dt seconds and reports whether the camera
// changed since the last call.
func (c *Controller) Update(dt float32) bool {
	step := c.Speed * dt
	if c.keys[input.KeyLeftShift] {
		step *= 4
	}
	var move mgl32.Vec3
	forward, right := c.Camera.Forward(), c.Camera.Right()
	if c.keys[input.KeyW] {
		move = move.Add(forward)
	}
	if c.keys[input.KeyS] {
		move = move.Sub(forward)
	}
	if c.keys[input.KeyD] {
		move = move.Add(right)
	}
	if c.keys[input.KeyA] {
		move = move.Sub(right)
	}
	if c.keys[input.KeyE] {
		move = move.Add(worldUp)
	}
	if c.keys[input.KeyQ] {
		move = move.Sub(worldUp)
	}
	if move.Len() > 0 {
		c.Camera.Position = c.Camera.Position.Add(move.Normalize().Mul(step))
		c.dirty = true
	}
	moved := c.dirty
	c.dirty = false
	return moved
}
