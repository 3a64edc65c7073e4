// Package input defines the window events passed through the renderer
// untouched. Key and button values match GLFW's.
package input

type Key int

const (
	KeySpace     Key = 32
	KeyA         Key = 65
	KeyD         Key = 68
	KeyE         Key = 69
	KeyQ         Key = 81
	KeyR         Key = 82
	KeyS         Key = 83
	KeyW         Key = 87
	KeyEscape    Key = 256
	KeyF1        Key = 290
	KeyF2        Key = 291
	KeyLeftShift Key = 340
)

type Action int

const (
	Release Action = 0
	Press   Action = 1
	Repeat  Action = 2
)

type MouseButton int

const (
	MouseLeft  MouseButton = 0
	MouseRight MouseButton = 1
)

// Handler receives raw window events.
type Handler interface {
	OnKey(key Key, action Action)
	OnCursorPosition(x, y float64)
	OnMouseButton(button MouseButton, action Action)
	OnScroll(dx, dy float64)
}

// Chain forwards every event to each handler in order.
type Chain []Handler

func (c Chain) OnKey(key Key, action Action) {
	for _, h := range c {
		h.OnKey(key, action)
	}
}

func (c Chain) OnCursorPosition(x, y float64) {
	for _, h := range c {
		h.OnCursorPosition(x, y)
	}
}

func (c Chain) OnMouseButton(button MouseButton, action Action) {
	for _, h := range c {
		h.OnMouseButton(button, action)
	}
}

func (c Chain) OnScroll(dx, dy float64) {
	for _, h := range c {
		h.OnScroll(dx, dy)
	}
}

// Keys maps key presses to callbacks and ignores every other event.
type Keys map[Key]func()

func (k Keys) OnKey(key Key, action Action) {
	if action != Press {
		return
	}
	if fn, ok := k[key]; ok {
		fn()
	}
}

func (Keys) OnCursorPosition(x, y float64) {}
func (Keys) OnMouseButton(button MouseButton, action Action) {}
func (Keys) OnScroll(dx, dy float64) {}
