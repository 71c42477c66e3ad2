// Package geometry maps between container, display rect, media pixel and
// normalized [0,1] coordinate spaces. The display rect is the media fitted
// into its container and centered there.
package geometry

import (
	"errors"
	"image"
	"math"
	"sort"

	"github.com/menta2k/image-annotator/pkg/types"
)

// ErrInvalidSize is returned when a container or media size is not strictly positive.
var ErrInvalidSize = errors.New("geometry: dimensions must be positive")

// Fit computes the largest rectangle with the media's aspect ratio that fits
// inside the container.
func Fit(container, media types.Size) (types.DisplayRect, error) {
	if !container.Valid() || !media.Valid() {
		return types.DisplayRect{}, ErrInvalidSize
	}

	mediaAR := media.AspectRatio()
	containerAR := container.AspectRatio()

	if mediaAR < containerAR {
		// Pillarbox: height-bound
		return types.DisplayRect{Width: container.Height * mediaAR, Height: container.Height}, nil
	}
	// Letterbox: width-bound
	return types.DisplayRect{Width: container.Width, Height: container.Width / mediaAR}, nil
}

// Origin returns the top-left corner of the rect when centered in container.
func Origin(container types.Size, rect types.DisplayRect) types.Vec2 {
	return types.Vec2{
		X: (container.Width - rect.Width) / 2,
		Y: (container.Height - rect.Height) / 2,
	}
}

// ScreenToNormalized maps a screen position to media-normalized coordinates.
// origin is the rect's top-left corner in the same space as screen.
// Results outside [0,1] are returned as-is.
func ScreenToNormalized(screen, origin types.Vec2, rect types.DisplayRect) types.Vec2 {
	return types.Vec2{
		X: (screen.X - origin.X) / rect.Width,
		Y: (screen.Y - origin.Y) / rect.Height,
	}
}

// NormalizedToScreen is the inverse of ScreenToNormalized.
func NormalizedToScreen(p, origin types.Vec2, rect types.DisplayRect) types.Vec2 {
	return types.Vec2{
		X: origin.X + p.X*rect.Width,
		Y: origin.Y + p.Y*rect.Height,
	}
}

// ToRectSpace maps a normalized point into the display rect's own pixel space.
func ToRectSpace(p types.Vec2, rect types.DisplayRect) types.Vec2 {
	return types.Vec2{X: p.X * rect.Width, Y: p.Y * rect.Height}
}

// BoxPixels projects a normalized box onto a raster of the given size
// without clamping.
func BoxPixels(box types.NormalizedBox, width, height int) image.Rectangle {
	x0 := int(math.Round(box.X * float64(width)))
	y0 := int(math.Round(box.Y * float64(height)))
	x1 := int(math.Round((box.X + box.Width) * float64(width)))
	y1 := int(math.Round((box.Y + box.Height) * float64(height)))
	return image.Rect(x0, y0, x1, y1)
}

// PixelRect is BoxPixels clamped to the raster bounds.
func PixelRect(box types.NormalizedBox, width, height int) image.Rectangle {
	return BoxPixels(box, width, height).Intersect(image.Rect(0, 0, width, height))
}

// Percent is a box expressed as percentages of the display rect, the form
// overlay renderers use for absolute positioning.
type Percent struct {
	Left   float64
	Top    float64
	Width  float64
	Height float64
}

// BoxPercent converts a normalized box to percentage offsets.
func BoxPercent(box types.NormalizedBox) Percent {
	return Percent{
		Left:   box.X * 100,
		Top:    box.Y * 100,
		Width:  box.Width * 100,
		Height: box.Height * 100,
	}
}

// HitTest returns the index of the smallest-area box that strictly contains
// the pointer. The pointer is given in normalized coordinates.
func HitTest(boxes []types.NormalizedBox, pointer types.Vec2) (int, bool) {
	order := make([]int, len(boxes))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool {
		return boxes[order[a]].Area() < boxes[order[b]].Area()
	})

	for _, i := range order {
		if boxes[i].Contains(pointer) {
			return i, true
		}
	}
	return -1, false
}
