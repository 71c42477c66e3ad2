package store

import (
	"image/color"

	"github.com/menta2k/image-annotator/pkg/types"
)

// StrokeColors is the freehand palette.
var StrokeColors = []color.NRGBA{
	{0, 0, 0, 255},
	{255, 255, 255, 255},
	{213, 40, 40, 255},
	{250, 123, 23, 255},
	{240, 186, 17, 255},
	{8, 161, 72, 255},
	{26, 115, 232, 255},
	{161, 66, 244, 255},
}

// BeginStroke opens a new stroke at p. Any open stroke is committed first.
func (s *Store) BeginStroke(p types.Vec2, c color.NRGBA) {
	s.update(func() Change {
		s.strokes = append(s.strokes, types.Stroke{Points: []types.Vec2{p}, Color: c})
		s.strokeOpen = true
		s.imageSent = false
		return ChangeStrokes | ChangeView
	})
}

// ExtendStroke appends p to the open stroke. It is a no-op without one.
func (s *Store) ExtendStroke(p types.Vec2) {
	s.update(func() Change {
		if !s.strokeOpen || len(s.strokes) == 0 {
			return 0
		}
		last := &s.strokes[len(s.strokes)-1]
		last.Points = append(last.Points, p)
		return ChangeStrokes
	})
}

// EndStroke commits the open stroke.
func (s *Store) EndStroke() {
	s.mu.Lock()
	s.strokeOpen = false
	s.mu.Unlock()
}

// StrokeOpen reports whether a stroke is being drawn.
func (s *Store) StrokeOpen() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.strokeOpen
}

// Strokes returns a deep copy of all strokes.
func (s *Store) Strokes() []types.Stroke {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]types.Stroke, len(s.strokes))
	for i, st := range s.strokes {
		out[i] = types.Stroke{Points: append([]types.Vec2(nil), st.Points...), Color: st.Color}
	}
	return out
}
