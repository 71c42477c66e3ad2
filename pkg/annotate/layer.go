// Package annotate captures freehand strokes from pointer input and turns
// them into filled outlines.
package annotate

import (
	"image/color"
	"sync"

	"github.com/menta2k/image-annotator/pkg/geometry"
	"github.com/menta2k/image-annotator/pkg/types"
)

// Surface is the state the layer reads and writes.
type Surface interface {
	Layout() (container, media types.Size, rect types.DisplayRect)
	DrawMode() bool
	ActiveColor() color.NRGBA
	BeginStroke(p types.Vec2, c color.NRGBA)
	ExtendStroke(p types.Vec2)
	EndStroke()
	HoverAt(p types.Vec2) int
	SetHoverEntered(entered bool)
}

// Layer turns pointer events on the media container into strokes or hover
// updates. Screen positions are relative to the container's top-left corner.
type Layer struct {
	surface Surface

	mu        sync.Mutex
	capturing bool
	pointerID int
}

// NewLayer creates a layer bound to surface.
func NewLayer(surface Surface) *Layer {
	return &Layer{surface: surface}
}

func (l *Layer) normalize(screen types.Vec2) (types.Vec2, bool) {
	container, _, rect := l.surface.Layout()
	if rect.Width <= 0 || rect.Height <= 0 {
		return types.Vec2{}, false
	}
	return geometry.ScreenToNormalized(screen, geometry.Origin(container, rect), rect), true
}

func inside(p types.Vec2) bool {
	return p.X >= 0 && p.X <= 1 && p.Y >= 0 && p.Y <= 1
}

// PointerDown starts a stroke when drawing is enabled and the pointer is on
// the media. It reports whether the pointer was captured.
func (l *Layer) PointerDown(id int, screen types.Vec2) bool {
	if !l.surface.DrawMode() {
		return false
	}
	p, ok := l.normalize(screen)
	if !ok || !inside(p) {
		return false
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	if l.capturing {
		return false
	}
	l.capturing = true
	l.pointerID = id
	l.surface.BeginStroke(p, l.surface.ActiveColor())
	return true
}

// PointerMove extends the captured stroke, including positions outside the
// media, or updates hover when nothing is captured.
func (l *Layer) PointerMove(id int, screen types.Vec2) {
	p, ok := l.normalize(screen)
	if !ok {
		return
	}

	l.mu.Lock()
	capturing := l.capturing && l.pointerID == id
	l.mu.Unlock()

	if capturing {
		l.surface.ExtendStroke(p)
		return
	}
	if !l.surface.DrawMode() && inside(p) {
		l.surface.HoverAt(p)
	}
}

// PointerUp commits the captured stroke.
func (l *Layer) PointerUp(id int) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if !l.capturing || l.pointerID != id {
		return
	}
	l.capturing = false
	l.surface.EndStroke()
}

// PointerLeave clears hover. A captured stroke keeps receiving moves.
func (l *Layer) PointerLeave() {
	l.surface.SetHoverEntered(false)
}

// Capturing reports whether a stroke is in progress.
func (l *Layer) Capturing() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.capturing
}
