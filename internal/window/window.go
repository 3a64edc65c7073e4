// Package window wraps a GLFW window without a client API, for Vulkan
// presentation.
package window

import (
	"github.com/go-gl/glfw/v3.3/glfw"
	"github.com/ibd1279/vks-examples/hybrid-raytracer/internal/gpu"
	"github.com/ibd1279/vks-examples/hybrid-raytracer/internal/input"
	"github.com/ibd1279/vks-examples/hybrid-raytracer/log"
	"github.com/pkg/errors"
)

var logger = log.New("window")

// Init starts GLFW. It must run on the main thread, which main locks.
func Init() error {
	return errors.Wrap(glfw.Init(), "initialize glfw")
}

func Terminate() { glfw.Terminate() }

// Window implements app.Window.
type Window struct {
	win     *glfw.Window
	handler input.Handler
	resized bool
}

func New(width, height int, title string) (*Window, error) {
	glfw.WindowHint(glfw.ClientAPI, glfw.NoAPI)
	win, err := glfw.CreateWindow(width, height, title, nil, nil)
	if err != nil {
		return nil, errors.Wrap(err, "create window")
	}
	w := &Window{win: win}

	win.SetFramebufferSizeCallback(func(_ *glfw.Window, width, height int) {
		logger.Debugf("framebuffer resized to %dx%d", width, height)
		w.resized = true
	})
	win.SetKeyCallback(func(_ *glfw.Window, key glfw.Key, _ int, action glfw.Action, _ glfw.ModifierKey) {
		if w.handler != nil {
			w.handler.OnKey(input.Key(key), input.Action(action))
		}
	})
	win.SetCursorPosCallback(func(_ *glfw.Window, x, y float64) {
		if w.handler != nil {
			w.handler.OnCursorPosition(x, y)
		}
	})
	win.SetMouseButtonCallback(func(_ *glfw.Window, button glfw.MouseButton, action glfw.Action, _ glfw.ModifierKey) {
		if w.handler != nil {
			w.handler.OnMouseButton(input.MouseButton(button), input.Action(action))
		}
	})
	win.SetScrollCallback(func(_ *glfw.Window, dx, dy float64) {
		if w.handler != nil {
			w.handler.OnScroll(dx, dy)
		}
	})
	return w, nil
}

// Native exposes the GLFW window for surface creation.
func (w *Window) Native() *glfw.Window { return w.win }

func (w *Window) FramebufferExtent() gpu.Extent2D {
	width, height := w.win.GetFramebufferSize()
	return gpu.Extent2D{Width: uint32(width), Height: uint32(height)}
}

func (w *Window) IsMinimized() bool { return w.FramebufferExtent().IsZero() }

func (w *Window) WaitForEvents() { glfw.WaitEvents() }

func (w *Window) PollEvents() { glfw.PollEvents() }

func (w *Window) ShouldClose() bool { return w.win.ShouldClose() }

// Close asks the run loop to stop after the current frame.
func (w *Window) Close() { w.win.SetShouldClose(true) }

func (w *Window) Resized() bool {
	r := w.resized
	w.resized = false
	return r
}

func (w *Window) SetCallbacks(h input.Handler) { w.handler = h }

// CaptureCursor hides and locks the cursor for mouse look.
func (w *Window) CaptureCursor(capture bool) {
	mode := glfw.CursorNormal
	if capture {
		mode = glfw.CursorDisabled
	}
	w.win.SetInputMode(glfw.CursorMode, mode)
}

func (w *Window) Destroy() {
	if w.win != nil {
		w.win.Destroy()
		w.win = nil
	}
}
