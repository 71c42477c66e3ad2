package presentation

import (
	"context"
	"math"
	"testing"
	"time"
)

func TestPointerMoveTarget(t *testing.T) {
	r := NewRotator()
	r.PointerMove(1000, 0, 1000, 1000)
	if r.Target() != (Rotation{}) {
		t.Error("Disabled rotator should ignore pointer")
	}

	r.SetEnabled(true)
	r.PointerMove(750, 250, 1000, 1000)
	if got := r.Target(); got.X != 7.5 || got.Y != -7.5 {
		t.Errorf("Expected (7.5,-7.5), got %+v", got)
	}

	r.PointerMove(5000, -5000, 1000, 1000)
	if got := r.Target(); got.X != MaxTilt || got.Y != -MaxTilt {
		t.Errorf("Expected target clamped to ±%v, got %+v", MaxTilt, got)
	}
}

func TestStepEasesAndSnaps(t *testing.T) {
	r := NewRotator()
	r.SetEnabled(true)
	r.PointerMove(1000, 500, 1000, 1000) // target (15, 0)

	tr := r.Step()
	if math.Abs(tr.Rotation.X-1.5) > 1e-9 {
		t.Errorf("Expected first step to 1.5, got %v", tr.Rotation.X)
	}
	if !tr.Active || !tr.Shadow {
		t.Error("Expected active transform with shadow while enabled")
	}

	for i := 0; i < 200; i++ {
		tr = r.Step()
	}
	if tr.Rotation.X != 15 {
		t.Errorf("Expected rotation to snap to 15, got %v", tr.Rotation.X)
	}
}

func TestDisableReturnsToFlat(t *testing.T) {
	r := NewRotator()
	r.SetEnabled(true)
	r.PointerMove(0, 0, 1000, 1000)
	for i := 0; i < 10; i++ {
		r.Step()
	}

	r.SetEnabled(false)
	tr := r.Step()
	if !tr.Active || tr.Shadow {
		t.Errorf("Expected transform still active while easing out, got %+v", tr)
	}

	for i := 0; i < 200; i++ {
		tr = r.Step()
	}
	if tr.Active || tr.CSS() != "none" {
		t.Errorf("Expected no transform at rest, got %+v (%s)", tr, tr.CSS())
	}
	if tr.Rotation != (Rotation{}) {
		t.Errorf("Expected zero rotation, got %+v", tr.Rotation)
	}
}

func TestTransformCSS(t *testing.T) {
	tr := Transform{Rotation: Rotation{X: 5, Y: 2.5}, Active: true}
	want := "perspective(1200px) rotateY(5.00deg) rotateX(-2.50deg) scale(0.85) translateZ(0px)"
	if got := tr.CSS(); got != want {
		t.Errorf("Expected %q, got %q", want, got)
	}

	tr = Transform{Rotation: Rotation{X: 1.23456, Y: 0.001}, Active: true}
	want = "perspective(1200px) rotateY(1.23deg) rotateX(0.00deg) scale(0.85) translateZ(0px)"
	if got := tr.CSS(); got != want {
		t.Errorf("Expected %q, got %q", want, got)
	}
}

func TestStepSnapsOnlyWhenBothAxesSettle(t *testing.T) {
	r := NewRotator()
	r.SetEnabled(true)
	r.current = Rotation{X: 14.999, Y: 0}
	r.target = Rotation{X: 15, Y: 10}

	tr := r.Step()
	if tr.Rotation.X == 15 {
		t.Errorf("Expected X to keep easing while Y is far off, got %v", tr.Rotation.X)
	}
	if math.Abs(tr.Rotation.Y-1) > 1e-9 {
		t.Errorf("Expected Y to ease to 1, got %v", tr.Rotation.Y)
	}

	r.current = Rotation{X: 14.999, Y: 9.999}
	tr = r.Step()
	if tr.Rotation != (Rotation{X: 15, Y: 10}) {
		t.Errorf("Expected snap to target, got %+v", tr.Rotation)
	}
}

func TestRunDeliversFrames(t *testing.T) {
	r := NewRotator()
	r.SetEnabled(true)
	frames := make(chan Transform, 1)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go r.Run(ctx, SinkFunc(func(tr Transform) {
		select {
		case frames <- tr:
		default:
		}
	}))

	select {
	case tr := <-frames:
		if !tr.Shadow {
			t.Error("Expected enabled frame")
		}
	case <-time.After(time.Second):
		t.Fatal("No frame delivered")
	}
}
