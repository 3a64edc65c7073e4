package resource

import "github.com/ibd1279/vks-examples/hybrid-raytracer/internal/gpu"

// ViewSlot is a shader binding that always resolves to a valid view. Until
// the first Swap it resolves to a view of a zero-filled 1x1 placeholder image
// owned by the slot.
type ViewSlot struct {
	blankImage *Image
	blank      *ImageView
	view       Option[*ImageView]
}

// NewViewSlot allocates the placeholder and records its clear into rec. The
// placeholder ends in layout.
func NewViewSlot(dev gpu.Device, rec gpu.Recorder, format gpu.Format, usage gpu.ImageUsage, layout gpu.ImageLayout) (*ViewSlot, error) {
	img, err := NewImage(dev, gpu.ImageCreateInfo{
		Extent: gpu.Extent2D{Width: 1, Height: 1},
		Format: format,
		Usage:  usage | gpu.ImageUsageTransferDst,
	})
	if err != nil {
		return nil, err
	}
	view, err := img.CreateView()
	if err != nil {
		img.Destroy()
		return nil, err
	}
	img.Clear(rec, layout)
	return &ViewSlot{blankImage: img, blank: view}, nil
}

// Current returns the steady-state view, or the placeholder before the first
// Swap.
func (s *ViewSlot) Current() *ImageView {
	return s.view.Or(s.blank)
}

func (s *ViewSlot) IsBlank() bool { return !s.view.IsSet() }

// Swap installs next as the steady-state view and returns the view it
// replaced. The placeholder is never returned; it stays owned by the slot.
func (s *ViewSlot) Swap(next *ImageView) *ImageView {
	prev := s.view
	s.view = Some(next)
	if !prev.IsSet() {
		return nil
	}
	return prev.Get()
}

// Destroy releases the steady-state view and the placeholder.
func (s *ViewSlot) Destroy() {
	if s == nil {
		return
	}
	if s.view.IsSet() {
		s.view.Get().Destroy()
		s.view = None[*ImageView]()
	}
	s.blank.Destroy()
	s.blankImage.Destroy()
}
