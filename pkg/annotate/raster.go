package annotate

import (
	"fmt"
	"html"
	"image"
	"image/draw"
	"strings"

	"golang.org/x/image/vector"

	"github.com/menta2k/image-annotator/pkg/types"
)

// Rasterize fills every stroke onto dst, scaling normalized points to the
// destination bounds. Later strokes paint over earlier ones.
func Rasterize(dst draw.Image, strokes []types.Stroke, size float64) {
	b := dst.Bounds()
	w, h := b.Dx(), b.Dy()
	if w == 0 || h == 0 {
		return
	}

	z := vector.NewRasterizer(w, h)
	for _, s := range strokes {
		px := make([]types.Vec2, len(s.Points))
		for i, p := range s.Points {
			px[i] = types.Vec2{X: p.X * float64(w), Y: p.Y * float64(h)}
		}
		outline := Outline(px, size)
		if len(outline) < 3 {
			continue
		}

		z.Reset(w, h)
		z.MoveTo(float32(outline[0].X), float32(outline[0].Y))
		for _, p := range outline[1:] {
			z.LineTo(float32(p.X), float32(p.Y))
		}
		z.ClosePath()
		z.Draw(dst, b, image.NewUniform(s.Color), image.Point{})
	}
}

// SVGPaths returns one path per stroke in display rect space, for renderers
// that draw vector overlays.
func SVGPaths(strokes []types.Stroke, rect types.DisplayRect, size float64) []string {
	out := make([]string, 0, len(strokes))
	for _, s := range strokes {
		px := make([]types.Vec2, len(s.Points))
		for i, p := range s.Points {
			px[i] = types.Vec2{X: p.X * rect.Width, Y: p.Y * rect.Height}
		}
		out = append(out, SVGPath(Outline(px, size)))
	}
	return out
}

// SVG renders the strokes as a standalone SVG document sized to rect.
// Strokes with too few points for an outline are left out.
func SVG(strokes []types.Stroke, rect types.DisplayRect, size float64) string {
	var b strings.Builder
	fmt.Fprintf(&b, `<svg xmlns="http://www.w3.org/2000/svg" width="%.0f" height="%.0f" viewBox="0 0 %.0f %.0f">`,
		rect.Width, rect.Height, rect.Width, rect.Height)
	b.WriteByte('\n')
	for i, d := range SVGPaths(strokes, rect, size) {
		if d == "" {
			continue
		}
		fmt.Fprintf(&b, "  <path d=\"%s\" fill=\"%s\"/>\n", html.EscapeString(d), strokes[i].CSSColor())
	}
	b.WriteString("</svg>\n")
	return b.String()
}
