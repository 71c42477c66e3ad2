package store

import (
	"image/color"

	"github.com/menta2k/image-annotator/pkg/geometry"
	"github.com/menta2k/image-annotator/pkg/types"
)

// DrawMode reports whether freehand drawing is active.
func (s *Store) DrawMode() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.drawMode
}

// SetDrawMode toggles freehand drawing.
func (s *Store) SetDrawMode(on bool) {
	s.update(func() Change {
		s.drawMode = on
		return ChangeView
	})
}

// ActiveColor returns the color for new strokes.
func (s *Store) ActiveColor() color.NRGBA {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.activeColor
}

// SetActiveColor picks the color for new strokes.
func (s *Store) SetActiveColor(c color.NRGBA) {
	s.update(func() Change {
		s.activeColor = c
		return ChangeView
	})
}

// Is3D reports whether the 3D presentation is enabled.
func (s *Store) Is3D() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.is3D
}

// SetIs3D toggles the 3D presentation.
func (s *Store) SetIs3D(on bool) {
	s.update(func() Change {
		s.is3D = on
		return ChangeView
	})
}

// RevealOnHover reports whether only the hovered box is shown.
func (s *Store) RevealOnHover() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.revealOnHover
}

// SetRevealOnHover toggles hover-reveal.
func (s *Store) SetRevealOnHover(on bool) {
	s.update(func() Change {
		s.revealOnHover = on
		return ChangeView
	})
}

// Hover returns whether the pointer has entered the media and the hovered
// box index, or -1.
func (s *Store) Hover() (bool, int) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.hoverEntered, s.hovered
}

// SetHoverEntered records pointer enter/leave.
func (s *Store) SetHoverEntered(entered bool) {
	s.update(func() Change {
		if s.hoverEntered == entered {
			return 0
		}
		s.hoverEntered = entered
		if !entered {
			s.hovered = -1
		}
		return ChangeView
	})
}

// HoverAt hit-tests the box results of the current mode at a normalized
// pointer position and records the result.
func (s *Store) HoverAt(p types.Vec2) int {
	idx := -1
	s.update(func() Change {
		var boxes []types.NormalizedBox
		switch s.mode {
		case types.BoundingBoxes2D:
			boxes = s.boxes
		case types.SegmentationMasks:
			boxes = make([]types.NormalizedBox, len(s.masks))
			for i, m := range s.masks {
				boxes[i] = m.NormalizedBox
			}
		}
		if i, ok := geometry.HitTest(boxes, p); ok {
			idx = i
		}
		s.hoverEntered = true
		if s.hovered == idx {
			return 0
		}
		s.hovered = idx
		return ChangeView
	})
	return idx
}

// SetContainerSize updates the viewport size and recomputes the display rect.
func (s *Store) SetContainerSize(size types.Size) {
	s.update(func() Change {
		if s.container == size {
			return 0
		}
		s.container = size
		return s.refitLocked()
	})
}

// SetMediaSize updates the intrinsic media size and recomputes the display rect.
func (s *Store) SetMediaSize(size types.Size) {
	s.update(func() Change {
		return s.setMediaLocked(size)
	})
}

func (s *Store) setMediaLocked(size types.Size) Change {
	if s.media == size {
		return 0
	}
	s.media = size
	return s.refitLocked()
}

func (s *Store) refitLocked() Change {
	rect, err := geometry.Fit(s.container, s.media)
	if err != nil {
		rect = types.DisplayRect{}
	}
	s.rect = rect
	return ChangeLayout
}

// Layout returns the container size, media size and display rect together.
func (s *Store) Layout() (container, media types.Size, rect types.DisplayRect) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.container, s.media, s.rect
}

// DisplayRect returns the fitted media rectangle.
func (s *Store) DisplayRect() types.DisplayRect {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.rect
}
