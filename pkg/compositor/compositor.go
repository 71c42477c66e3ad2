// Package compositor turns decoded segmentation masks into tinted overlays
// and blends them onto a raster.
package compositor

import (
	"image"
	"image/color"
	"math"

	"github.com/disintegration/imaging"
	xdraw "golang.org/x/image/draw"

	"github.com/menta2k/image-annotator/pkg/geometry"
	"github.com/menta2k/image-annotator/pkg/types"
)

// Palette is the segmentation color cycle.
var Palette = []color.NRGBA{
	{0xE6, 0x19, 0x4B, 0xFF},
	{0x3C, 0x89, 0xD0, 0xFF},
	{0x3C, 0xB4, 0x4B, 0xFF},
	{0xFF, 0xE1, 0x19, 0xFF},
	{0x91, 0x1E, 0xB4, 0xFF},
	{0x42, 0xD4, 0xF4, 0xFF},
	{0xF5, 0x82, 0x31, 0xFF},
	{0xF0, 0x32, 0xE6, 0xFF},
	{0xBF, 0xEF, 0x45, 0xFF},
	{0x46, 0x99, 0x90, 0xFF},
}

// Defaults for Options.
const (
	DefaultAlphaScale = 0.6
	DefaultOpacity    = 0.8
)

// Options controls tint strength.
type Options struct {
	// AlphaScale multiplies the mask's red channel to produce pixel alpha.
	AlphaScale float64
	// Opacity applies to the whole tinted mask when blended.
	Opacity float64
}

// DefaultOptions returns the standard tint settings.
func DefaultOptions() Options {
	return Options{AlphaScale: DefaultAlphaScale, Opacity: DefaultOpacity}
}

// ColorFor returns the palette color for the i-th mask.
func ColorFor(i int) color.NRGBA {
	n := len(Palette)
	return Palette[((i%n)+n)%n]
}

// Recolor produces an NRGBA raster the size of mask where every pixel has
// the given color and an alpha of red*alphaScale.
func Recolor(mask image.Image, c color.NRGBA, alphaScale float64) *image.NRGBA {
	b := mask.Bounds()
	out := image.NewNRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	for y := 0; y < b.Dy(); y++ {
		for x := 0; x < b.Dx(); x++ {
			px := color.NRGBAModel.Convert(mask.At(b.Min.X+x, b.Min.Y+y)).(color.NRGBA)
			i := out.PixOffset(x, y)
			out.Pix[i+0] = c.R
			out.Pix[i+1] = c.G
			out.Pix[i+2] = c.B
			out.Pix[i+3] = clampByte(float64(px.R) * alphaScale)
		}
	}
	return out
}

// Tint recolors mask using the palette color for index.
func Tint(mask image.Image, index int, opts Options) *image.NRGBA {
	return Recolor(mask, ColorFor(index), opts.AlphaScale)
}

// Composite blends every mask onto dst, stretched to its box. Masks are drawn
// in slice order so earlier entries end up underneath. dst is not modified.
func Composite(dst image.Image, masks []types.MaskEntry, opts Options) *image.NRGBA {
	out := imaging.Clone(dst)
	w, h := out.Bounds().Dx(), out.Bounds().Dy()

	for i, m := range masks {
		if m.Mask == nil {
			continue
		}
		full := geometry.BoxPixels(m.NormalizedBox, w, h)
		r := geometry.PixelRect(m.NormalizedBox, w, h)
		if r.Empty() || full.Empty() {
			continue
		}

		tinted := Tint(m.Mask, i, opts)

		// Stretch over the full box, then keep the part inside the raster
		scaled := image.NewNRGBA(image.Rect(0, 0, full.Dx(), full.Dy()))
		xdraw.NearestNeighbor.Scale(scaled, scaled.Bounds(), tinted, tinted.Bounds(), xdraw.Src, nil)
		visible := imaging.Crop(scaled, r.Sub(full.Min))

		out = imaging.Overlay(out, visible, r.Min, opts.Opacity)
	}
	return out
}

func clampByte(v float64) uint8 {
	v = math.RoundToEven(v)
	if v < 0 {
		return 0
	}
	if v > 255 {
		return 255
	}
	return uint8(v)
}
