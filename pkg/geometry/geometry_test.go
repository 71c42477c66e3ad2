package geometry

import (
	"errors"
	"image"
	"math"
	"testing"

	"github.com/menta2k/image-annotator/pkg/types"
)

const eps = 1e-9

func near(a, b float64) bool {
	return math.Abs(a-b) < eps
}

func TestFit(t *testing.T) {
	tests := []struct {
		name      string
		container types.Size
		media     types.Size
		want      types.DisplayRect
	}{
		{"letterbox", types.Size{Width: 1000, Height: 500}, types.Size{Width: 1920, Height: 1080}, types.DisplayRect{Width: 888.8888888888889, Height: 500}},
		{"pillarbox", types.Size{Width: 800, Height: 800}, types.Size{Width: 1920, Height: 1080}, types.DisplayRect{Width: 800, Height: 450}},
		{"exact", types.Size{Width: 640, Height: 480}, types.Size{Width: 320, Height: 240}, types.DisplayRect{Width: 640, Height: 480}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Fit(tt.container, tt.media)
			if err != nil {
				t.Fatalf("Fit returned error: %v", err)
			}
			if !near(got.Width, tt.want.Width) || !near(got.Height, tt.want.Height) {
				t.Errorf("Expected %+v, got %+v", tt.want, got)
			}
			if got.Width > tt.container.Width+eps || got.Height > tt.container.Height+eps {
				t.Errorf("Rect %+v exceeds container %+v", got, tt.container)
			}
			if !near(got.Width/got.Height, tt.media.AspectRatio()) {
				t.Errorf("Aspect ratio not preserved: %f vs %f", got.Width/got.Height, tt.media.AspectRatio())
			}
		})
	}
}

func TestFitRejectsZeroSize(t *testing.T) {
	if _, err := Fit(types.Size{}, types.Size{Width: 1, Height: 1}); !errors.Is(err, ErrInvalidSize) {
		t.Errorf("Expected ErrInvalidSize, got %v", err)
	}
	if _, err := Fit(types.Size{Width: 10, Height: 10}, types.Size{Width: 0, Height: 5}); !errors.Is(err, ErrInvalidSize) {
		t.Errorf("Expected ErrInvalidSize, got %v", err)
	}
}

func TestOrigin(t *testing.T) {
	container := types.Size{Width: 1000, Height: 500}
	rect := types.DisplayRect{Width: 800, Height: 500}
	got := Origin(container, rect)
	if got.X != 100 || got.Y != 0 {
		t.Errorf("Expected (100,0), got %+v", got)
	}
}

func TestScreenNormalizedRoundTrip(t *testing.T) {
	rect := types.DisplayRect{Width: 400, Height: 300}
	origin := types.Vec2{X: 50, Y: 20}

	screen := types.Vec2{X: 250, Y: 170}
	n := ScreenToNormalized(screen, origin, rect)
	if !near(n.X, 0.5) || !near(n.Y, 0.5) {
		t.Errorf("Expected (0.5,0.5), got %+v", n)
	}

	back := NormalizedToScreen(n, origin, rect)
	if !near(back.X, screen.X) || !near(back.Y, screen.Y) {
		t.Errorf("Round trip mismatch: %+v vs %+v", back, screen)
	}
}

func TestScreenToNormalizedOutside(t *testing.T) {
	rect := types.DisplayRect{Width: 100, Height: 100}
	n := ScreenToNormalized(types.Vec2{X: -10, Y: 150}, types.Vec2{}, rect)
	if !near(n.X, -0.1) || !near(n.Y, 1.5) {
		t.Errorf("Out-of-range coordinates should pass through, got %+v", n)
	}
}

func TestPixelRect(t *testing.T) {
	box := types.NormalizedBox{X: 0.1, Y: 0.2, Width: 0.5, Height: 0.5}
	got := PixelRect(box, 200, 100)
	want := image.Rect(20, 20, 120, 70)
	if got != want {
		t.Errorf("Expected %v, got %v", want, got)
	}

	clamped := PixelRect(types.NormalizedBox{X: 0.9, Y: 0.9, Width: 0.5, Height: 0.5}, 100, 100)
	if clamped != image.Rect(90, 90, 100, 100) {
		t.Errorf("Expected clamped rect, got %v", clamped)
	}
}

func TestBoxPercent(t *testing.T) {
	p := BoxPercent(types.NormalizedBox{X: 0.25, Y: 0.5, Width: 0.1, Height: 0.2})
	if !near(p.Left, 25) || !near(p.Top, 50) || !near(p.Width, 10) || !near(p.Height, 20) {
		t.Errorf("Unexpected percent rect: %+v", p)
	}
}

func TestHitTestSmallestWins(t *testing.T) {
	boxes := []types.NormalizedBox{
		{X: 0, Y: 0, Width: 1, Height: 1, Label: "large"},
		{X: 0.4, Y: 0.4, Width: 0.2, Height: 0.2, Label: "small"},
		{X: 0.3, Y: 0.3, Width: 0.5, Height: 0.5, Label: "medium"},
	}

	idx, ok := HitTest(boxes, types.Vec2{X: 0.5, Y: 0.5})
	if !ok || boxes[idx].Label != "small" {
		t.Errorf("Expected small box, got %d (%v)", idx, ok)
	}

	idx, ok = HitTest(boxes, types.Vec2{X: 0.35, Y: 0.35})
	if !ok || boxes[idx].Label != "medium" {
		t.Errorf("Expected medium box, got %d (%v)", idx, ok)
	}
}

func TestHitTestStrictBoundaries(t *testing.T) {
	boxes := []types.NormalizedBox{{X: 0.2, Y: 0.2, Width: 0.2, Height: 0.2}}
	if _, ok := HitTest(boxes, types.Vec2{X: 0.2, Y: 0.3}); ok {
		t.Error("Pointer on the edge should not hit")
	}
	if _, ok := HitTest(nil, types.Vec2{X: 0.5, Y: 0.5}); ok {
		t.Error("Empty box list should not hit")
	}
}
