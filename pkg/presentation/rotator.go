// Package presentation drives the optional tilted "3D" view of the media
// container. It never affects coordinate math: overlays are positioned in
// the untransformed display rect and the transform is applied on top.
package presentation

import (
	"context"
	"fmt"
	"math"
	"strconv"
	"sync"
	"time"
)

// Tuning constants for the tilt animation.
const (
	MaxTilt     = 15.0
	Easing      = 0.1
	SnapEpsilon = 0.005
	Scale       = 0.85
	Perspective = 1200
	// IdleEpsilon is the rotation below which a disabled view renders no transform.
	IdleEpsilon = 0.01
	FrameRate   = 60
)

// Rotation is a tilt in degrees around the vertical (X) and horizontal (Y) axes.
type Rotation struct {
	X float64
	Y float64
}

// Transform is the styling applied to the media container for one frame.
type Transform struct {
	Rotation Rotation
	// Active is false when no transform should be applied at all.
	Active bool
	// Shadow is set while the 3D view is enabled.
	Shadow bool
}

// CSS renders the transform as a CSS transform value.
func (t Transform) CSS() string {
	if !t.Active {
		return "none"
	}
	return fmt.Sprintf("perspective(%dpx) rotateY(%sdeg) rotateX(%sdeg) scale(%g) translateZ(0px)",
		Perspective, degrees(t.Rotation.X), degrees(-t.Rotation.Y), Scale)
}

func degrees(v float64) string {
	s := strconv.FormatFloat(v, 'f', 2, 64)
	if s == "-0.00" {
		return "0.00"
	}
	return s
}

// Sink receives a transform every frame.
type Sink interface {
	ApplyTransform(Transform)
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(Transform)

// ApplyTransform calls f.
func (f SinkFunc) ApplyTransform(t Transform) { f(t) }

// Rotator eases the current rotation toward a pointer-driven target.
type Rotator struct {
	mu      sync.Mutex
	enabled bool
	target  Rotation
	current Rotation
}

// NewRotator creates a disabled rotator at rest.
func NewRotator() *Rotator {
	return &Rotator{}
}

// SetEnabled toggles the 3D view. Disabling eases back to flat.
func (r *Rotator) SetEnabled(on bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.enabled = on
	if !on {
		r.target = Rotation{}
	}
}

// Enabled reports whether the 3D view is on.
func (r *Rotator) Enabled() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.enabled
}

// PointerMove sets the target from a pointer position within a viewport.
// Ignored while disabled.
func (r *Rotator) PointerMove(x, y, viewportW, viewportH float64) {
	if viewportW <= 0 || viewportH <= 0 {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.enabled {
		return
	}
	halfW, halfH := viewportW/2, viewportH/2
	r.target = Rotation{
		X: clamp((x-halfW)/halfW*MaxTilt, -MaxTilt, MaxTilt),
		Y: clamp((y-halfH)/halfH*MaxTilt, -MaxTilt, MaxTilt),
	}
}

// Target returns the current target rotation.
func (r *Rotator) Target() Rotation {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.target
}

// Step advances the animation by one frame and returns the transform to apply.
func (r *Rotator) Step() Transform {
	r.mu.Lock()
	defer r.mu.Unlock()

	if !r.enabled {
		r.target = Rotation{}
	}
	r.current = ease(r.current, r.target)

	active := r.enabled || math.Abs(r.current.X) > IdleEpsilon || math.Abs(r.current.Y) > IdleEpsilon
	return Transform{Rotation: r.current, Active: active, Shadow: r.enabled}
}

// Run calls Step once per frame and forwards the result to sink until ctx
// is cancelled.
func (r *Rotator) Run(ctx context.Context, sink Sink) {
	ticker := time.NewTicker(time.Second / FrameRate)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			sink.ApplyTransform(r.Step())
		}
	}
}

// ease snaps only once both axes are within SnapEpsilon of the target.
func ease(current, target Rotation) Rotation {
	dx, dy := target.X-current.X, target.Y-current.Y
	if math.Abs(dx) < SnapEpsilon && math.Abs(dy) < SnapEpsilon {
		return target
	}
	return Rotation{X: current.X + dx*Easing, Y: current.Y + dy*Easing}
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
