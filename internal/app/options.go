package app

import (
	"strings"
	"time"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/ibd1279/vks-examples/hybrid-raytracer/internal/gpu"
	"github.com/ibd1279/vks-examples/hybrid-raytracer/internal/input"
	"github.com/pkg/errors"
)

var (
	ErrDeviceAlreadySet = errors.New("app: physical device already set")
	ErrDeviceNotSet     = errors.New("app: physical device not set")
	ErrInvalidState     = errors.New("app: invalid state")
	ErrDeviceLost       = errors.New("app: device lost waiting for a frame fence")
)

// State is the lifecycle stage of an Application.
type State int

const (
	Uninitialized State = iota
	DeviceBound
	SwapChainReady
	Running
	Recreating
)

func (s State) String() string {
	switch s {
	case Uninitialized:
		return "uninitialized"
	case DeviceBound:
		return "device-bound"
	case SwapChainReady:
		return "swapchain-ready"
	case Running:
		return "running"
	case Recreating:
		return "recreating"
	}
	return "unknown"
}

// CopyMode selects how the presented color and depth are saved for the next
// frame.
type CopyMode int

const (
	// CopyInFrame records the copy at the end of the frame's own command
	// buffer, ordered after rendering by pipeline barriers.
	CopyInFrame CopyMode = iota
	// CopyOneShot records the copy into a separate single-time command
	// buffer submitted right after the frame. It relies on submission order
	// on the graphics queue.
	CopyOneShot
)

func (m CopyMode) String() string {
	if m == CopyOneShot {
		return "one-shot"
	}
	return "in-frame"
}

func ParseCopyMode(name string) (CopyMode, error) {
	switch strings.ToLower(name) {
	case "in-frame", "":
		return CopyInFrame, nil
	case "one-shot":
		return CopyOneShot, nil
	}
	return CopyInFrame, errors.Errorf("app: unknown copy mode %q", name)
}

// Camera supplies the per-frame view transforms.
type Camera interface {
	ModelView() mgl32.Mat4
	Projection(extent gpu.Extent2D) mgl32.Mat4
	Lens() (aperture, focusDistance float32)
}

// Animator is implemented by cameras that move between frames.
type Animator interface {
	Update(dt float32) bool
}

type Options struct {
	PresentMode gpu.PresentMode
	Wireframe   bool
	RayTraced   bool
	CopyMode    CopyMode

	// FenceTimeout bounds the wait on a slot fence. Zero waits forever.
	FenceTimeout time.Duration

	// PostShader names a SPIR-V file replacing the built-in post-processing
	// shader.
	PostShader string

	Samples uint32
	Bounces uint32

	// Camera defaults to the scene camera.
	Camera Camera
	Input  input.Handler
}

func DefaultOptions() Options {
	return Options{
		PresentMode: gpu.PresentModeMailbox,
		RayTraced:   true,
		Samples:     8,
		Bounces:     16,
	}
}

// Stats summarizes the frames drawn so far.
type Stats struct {
	Frames      uint64
	Recreations uint64
	LastFrame   time.Duration
	Total       time.Duration
}

// AverageFrame is the mean DrawFrame duration.
func (s Stats) AverageFrame() time.Duration {
	if s.Frames == 0 {
		return 0
	}
	return s.Total / time.Duration(s.Frames)
}
