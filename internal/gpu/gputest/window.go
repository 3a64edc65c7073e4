package gputest

import (
	"github.com/ibd1279/vks-examples/hybrid-raytracer/internal/gpu"
	"github.com/ibd1279/vks-examples/hybrid-raytracer/internal/input"
)

// Window is a scripted window. Each WaitForEvents moves to the next extent;
// the last one sticks.
type Window struct {
	Extents []gpu.Extent2D

	// CloseAfter makes ShouldClose report true after that many polls.
	CloseAfter int
	// ResizeOn sets the resized flag on the given poll numbers.
	ResizeOn map[int]bool

	Handler input.Handler
	Polls   int
	Waits   int
	resized bool
}

func NewWindow(extents ...gpu.Extent2D) *Window {
	if len(extents) == 0 {
		extents = []gpu.Extent2D{{Width: 800, Height: 600}}
	}
	return &Window{Extents: extents, ResizeOn: make(map[int]bool)}
}

func (w *Window) current() gpu.Extent2D { return w.Extents[0] }

func (w *Window) IsMinimized() bool { return w.current().IsZero() }

func (w *Window) WaitForEvents() {
	w.Waits++
	if len(w.Extents) > 1 {
		w.Extents = w.Extents[1:]
	}
}

func (w *Window) PollEvents() {
	w.Polls++
	if w.ResizeOn[w.Polls] {
		w.resized = true
	}
}

func (w *Window) ShouldClose() bool { return w.Polls >= w.CloseAfter }

func (w *Window) FramebufferExtent() gpu.Extent2D { return w.current() }

func (w *Window) Resized() bool {
	r := w.resized
	w.resized = false
	return r
}

// SetResized raises the resized flag as a framebuffer-size callback would.
func (w *Window) SetResized() { w.resized = true }

func (w *Window) SetCallbacks(h input.Handler) { w.Handler = h }
