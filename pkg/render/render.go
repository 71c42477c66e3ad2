// Package render draws the media with its detection overlays into the
// letterboxed display rectangle, producing a still image.
package render

import (
	"image"
	"image/color"

	"github.com/disintegration/imaging"

	"github.com/menta2k/image-annotator/pkg/annotate"
	"github.com/menta2k/image-annotator/pkg/compositor"
	"github.com/menta2k/image-annotator/pkg/geometry"
	"github.com/menta2k/image-annotator/pkg/processing"
	"github.com/menta2k/image-annotator/pkg/store"
	"github.com/menta2k/image-annotator/pkg/types"
)

// Accent is the overlay color for boxes, points and label backgrounds.
var Accent = color.NRGBA{0, 243, 255, 255}

var (
	labelText = color.NRGBA{0, 0, 0, 255}
	white     = color.NRGBA{255, 255, 255, 255}
)

// PointRadius is the marker radius in pixels.
const PointRadius = 6

// Scene is everything drawn on top of the media.
type Scene struct {
	Mode    types.DetectionMode
	Boxes   []types.NormalizedBox
	Masks   []types.MaskEntry
	Points  []types.NormalizedPoint
	Strokes []types.Stroke

	// Hovered is the hit-tested box index or -1.
	Hovered       int
	HoverEntered  bool
	RevealOnHover bool
}

// SceneFromStore snapshots the store.
func SceneFromStore(st *store.Store) Scene {
	entered, hovered := st.Hover()
	return Scene{
		Mode:          st.Mode(),
		Boxes:         st.BoundingBoxes(),
		Masks:         st.Masks(),
		Points:        st.Points(),
		Strokes:       st.Strokes(),
		Hovered:       hovered,
		HoverEntered:  entered,
		RevealOnHover: st.RevealOnHover(),
	}
}

// Options controls overlay styling.
type Options struct {
	Mask       compositor.Options
	StrokeSize float64
	// Font draws labels. nil uses the built-in ASCII face.
	Font       *processing.LabelFont
}

// DefaultOptions returns the standard styling.
func DefaultOptions() Options {
	return Options{Mask: compositor.DefaultOptions(), StrokeSize: annotate.DefaultSize}
}

// Render fits base into container and draws the scene over it. The result
// has the size of the display rect.
func Render(base image.Image, container types.Size, scene Scene, opts Options) (*image.NRGBA, error) {
	rect, err := geometry.Fit(container, processing.ImageSize(base))
	if err != nil {
		return nil, err
	}
	w, h := int(rect.Width+0.5), int(rect.Height+0.5)
	if w < 1 || h < 1 {
		return nil, geometry.ErrInvalidSize
	}
	return Overlay(imaging.Resize(base, w, h, imaging.Lanczos), scene, opts), nil
}

// Overlay draws the scene onto a copy of img at img's own size.
func Overlay(img image.Image, scene Scene, opts Options) *image.NRGBA {
	out := imaging.Clone(img)
	w, h := out.Bounds().Dx(), out.Bounds().Dy()
	stroke := processing.StrokeWidth(w, h)
	label := opts.Font
	if label == nil {
		label = processing.DefaultLabelFont()
	}
	hidden := func(i int) bool {
		return scene.RevealOnHover && scene.HoverEntered && i != scene.Hovered
	}

	switch scene.Mode {
	case types.BoundingBoxes2D:
		for i, b := range scene.Boxes {
			if hidden(i) {
				continue
			}
			r := geometry.PixelRect(b, w, h)
			processing.DrawRect(out, r, Accent, stroke)
			if b.Label != "" {
				label.Draw(out, r.Min.X, r.Min.Y, b.Label, labelText, Accent)
			}
		}

	case types.SegmentationMasks:
		visible := make([]types.MaskEntry, 0, len(scene.Masks))
		for i, m := range scene.Masks {
			if hidden(i) {
				// Keep palette indices stable
				m.Mask = nil
			}
			visible = append(visible, m)
		}
		out = compositor.Composite(out, visible, opts.Mask)
		for i, m := range scene.Masks {
			if hidden(i) || m.Label == "" {
				continue
			}
			r := geometry.PixelRect(m.NormalizedBox, w, h)
			label.Draw(out, r.Min.X, r.Max.Y-label.Height(), m.Label, labelText, Accent)
		}

	case types.Points:
		for _, p := range scene.Points {
			c := geometry.ToRectSpace(p.Point, types.DisplayRect{Width: float64(w), Height: float64(h)})
			x, y := int(c.X), int(c.Y)
			processing.FillCircle(out, x, y, PointRadius+1, white)
			processing.FillCircle(out, x, y, PointRadius, Accent)
			if p.Label != "" {
				label.Draw(out, x, y-PointRadius-label.Height()-4, p.Label, labelText, Accent)
			}
		}
	}

	annotate.Rasterize(out, scene.Strokes, opts.StrokeSize)
	return out
}
