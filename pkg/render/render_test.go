package render

import (
	"image"
	"image/color"
	"testing"

	"golang.org/x/image/font/gofont/goregular"

	"github.com/menta2k/image-annotator/pkg/processing"
	"github.com/menta2k/image-annotator/pkg/store"
	"github.com/menta2k/image-annotator/pkg/types"
)

func createTestImage(width, height int) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			img.SetNRGBA(x, y, color.NRGBA{40, 40, 40, 255})
		}
	}
	return img
}

func TestRenderFitsDisplayRect(t *testing.T) {
	out, err := Render(createTestImage(1920, 1080), types.Size{Width: 1000, Height: 500}, Scene{Hovered: -1}, DefaultOptions())
	if err != nil {
		t.Fatalf("Render failed: %v", err)
	}
	if out.Bounds().Dx() != 889 || out.Bounds().Dy() != 500 {
		t.Errorf("Expected 889x500, got %v", out.Bounds())
	}

	if _, err := Render(createTestImage(10, 10), types.Size{}, Scene{}, DefaultOptions()); err == nil {
		t.Error("Expected error for empty container")
	}
}

func TestOverlayBoxes(t *testing.T) {
	scene := Scene{
		Mode:    types.BoundingBoxes2D,
		Boxes:   []types.NormalizedBox{{X: 0.1, Y: 0.1, Width: 0.5, Height: 0.5}},
		Hovered: -1,
	}
	out := Overlay(createTestImage(100, 100), scene, DefaultOptions())
	if out.NRGBAAt(10, 40) != Accent {
		t.Errorf("Expected box edge at left side, got %v", out.NRGBAAt(10, 40))
	}
	if out.NRGBAAt(35, 45) == Accent {
		t.Error("Expected box interior to stay clear")
	}
}

func TestOverlayCustomFont(t *testing.T) {
	scene := Scene{
		Mode:    types.BoundingBoxes2D,
		Boxes:   []types.NormalizedBox{{X: 0.1, Y: 0.1, Width: 0.5, Height: 0.5, Label: "cat"}},
		Hovered: -1,
	}
	out := Overlay(createTestImage(200, 200), scene, DefaultOptions())
	if out.NRGBAAt(25, 48) == Accent {
		t.Error("Expected the built-in label to end above y=48")
	}

	face, err := processing.ParseLabelFont(goregular.TTF, 24)
	if err != nil {
		t.Fatalf("ParseLabelFont failed: %v", err)
	}
	opts := DefaultOptions()
	opts.Font = face
	out = Overlay(createTestImage(200, 200), scene, opts)
	if out.NRGBAAt(25, 48) != Accent {
		t.Errorf("Expected the taller label background at (25,48), got %v", out.NRGBAAt(25, 48))
	}
}

func TestOverlayRevealOnHover(t *testing.T) {
	scene := Scene{
		Mode: types.BoundingBoxes2D,
		Boxes: []types.NormalizedBox{
			{X: 0.1, Y: 0.1, Width: 0.2, Height: 0.2},
			{X: 0.6, Y: 0.6, Width: 0.2, Height: 0.2},
		},
		Hovered:       1,
		HoverEntered:  true,
		RevealOnHover: true,
	}
	out := Overlay(createTestImage(100, 100), scene, DefaultOptions())
	if out.NRGBAAt(10, 25) == Accent {
		t.Error("Expected non-hovered box hidden")
	}
	if out.NRGBAAt(60, 70) != Accent {
		t.Error("Expected hovered box drawn")
	}
}

func TestOverlayOnlyCurrentMode(t *testing.T) {
	scene := Scene{
		Mode:    types.Points,
		Boxes:   []types.NormalizedBox{{X: 0.1, Y: 0.1, Width: 0.5, Height: 0.5}},
		Points:  []types.NormalizedPoint{{Point: types.Vec2{X: 0.8, Y: 0.8}}},
		Hovered: -1,
	}
	out := Overlay(createTestImage(100, 100), scene, DefaultOptions())
	if out.NRGBAAt(10, 40) == Accent {
		t.Error("Boxes must not render in points mode")
	}
	if out.NRGBAAt(80, 80) != Accent {
		t.Errorf("Expected point marker, got %v", out.NRGBAAt(80, 80))
	}
}

func TestOverlayMasksAndStrokes(t *testing.T) {
	mask := image.NewGray(image.Rect(0, 0, 1, 1))
	mask.SetGray(0, 0, color.Gray{Y: 255})
	scene := Scene{
		Mode:    types.SegmentationMasks,
		Masks:   []types.MaskEntry{{NormalizedBox: types.NormalizedBox{Width: 0.5, Height: 0.5}, Mask: mask}},
		Strokes: []types.Stroke{{Points: []types.Vec2{{X: 0.7, Y: 0.9}, {X: 0.95, Y: 0.9}}, Color: store.StrokeColors[6]}},
		Hovered: -1,
	}
	base := createTestImage(100, 100)
	out := Overlay(base, scene, DefaultOptions())
	if out.NRGBAAt(25, 10) == base.NRGBAAt(25, 10) {
		t.Error("Expected mask tint inside the box")
	}
	if out.NRGBAAt(75, 25) != base.NRGBAAt(75, 25) {
		t.Error("Expected no tint outside the box")
	}
	if out.NRGBAAt(80, 90) != store.StrokeColors[6] {
		t.Errorf("Expected stroke pixel, got %v", out.NRGBAAt(80, 90))
	}
}

func TestSceneFromStore(t *testing.T) {
	st := store.New()
	st.SetMode(types.Points)
	st.SetPoints([]types.NormalizedPoint{{Label: "a"}})
	st.SetRevealOnHover(true)

	scene := SceneFromStore(st)
	if scene.Mode != types.Points || len(scene.Points) != 1 || !scene.RevealOnHover || scene.Hovered != -1 {
		t.Errorf("Unexpected scene: %+v", scene)
	}
}
