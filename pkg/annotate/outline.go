package annotate

import (
	"fmt"
	"math"
	"strings"

	"github.com/menta2k/image-annotator/pkg/types"
)

// DefaultSize is the stroke diameter in pixels.
const DefaultSize = 8

const capSegments = 8

// Outline returns the closed polygon around a polyline drawn with a round pen
// of the given diameter. Width is constant along the stroke.
func Outline(points []types.Vec2, size float64) []types.Vec2 {
	pts := dedupe(points)
	r := size / 2
	if len(pts) == 0 || r <= 0 {
		return nil
	}
	if len(pts) == 1 {
		return circle(pts[0], r, capSegments*2)
	}

	n := len(pts)
	left := make([]types.Vec2, n)
	right := make([]types.Vec2, n)
	angles := make([]float64, n)
	for i := range pts {
		prev, next := pts[max(i-1, 0)], pts[min(i+1, n-1)]
		angle := math.Atan2(next.Y-prev.Y, next.X-prev.X)
		angles[i] = angle
		left[i] = polar(pts[i], r, angle+math.Pi/2)
		right[i] = polar(pts[i], r, angle-math.Pi/2)
	}

	out := make([]types.Vec2, 0, 2*n+2*capSegments)
	out = append(out, left...)
	out = append(out, arc(pts[n-1], r, angles[n-1]+math.Pi/2)...)
	for i := n - 1; i >= 0; i-- {
		out = append(out, right[i])
	}
	out = append(out, arc(pts[0], r, angles[0]-math.Pi/2)...)
	return out
}

// arc returns the points strictly between from and from-π on a circle.
func arc(c types.Vec2, r, from float64) []types.Vec2 {
	out := make([]types.Vec2, 0, capSegments-1)
	for i := 1; i < capSegments; i++ {
		out = append(out, polar(c, r, from-math.Pi*float64(i)/capSegments))
	}
	return out
}

func circle(c types.Vec2, r float64, segments int) []types.Vec2 {
	out := make([]types.Vec2, segments)
	for i := range out {
		out[i] = polar(c, r, 2*math.Pi*float64(i)/float64(segments))
	}
	return out
}

func polar(c types.Vec2, r, angle float64) types.Vec2 {
	return types.Vec2{X: c.X + r*math.Cos(angle), Y: c.Y + r*math.Sin(angle)}
}

func dedupe(points []types.Vec2) []types.Vec2 {
	out := make([]types.Vec2, 0, len(points))
	for _, p := range points {
		if len(out) > 0 {
			last := out[len(out)-1]
			if math.Abs(last.X-p.X) < 1e-9 && math.Abs(last.Y-p.Y) < 1e-9 {
				continue
			}
		}
		out = append(out, p)
	}
	return out
}

// SVGPath renders a closed outline as an SVG path using quadratic curves
// through the midpoints of consecutive points. Fewer than 4 points yield "".
func SVGPath(outline []types.Vec2) string {
	if len(outline) < 4 {
		return ""
	}
	a, b, c := outline[0], outline[1], outline[2]

	var sb strings.Builder
	fmt.Fprintf(&sb, "M%.2f,%.2f Q%.2f,%.2f %.2f,%.2f T",
		a.X, a.Y, b.X, b.Y, (b.X+c.X)/2, (b.Y+c.Y)/2)
	for i := 2; i < len(outline)-1; i++ {
		a, b = outline[i], outline[i+1]
		fmt.Fprintf(&sb, "%.2f,%.2f ", (a.X+b.X)/2, (a.Y+b.Y)/2)
	}
	sb.WriteString("Z")
	return sb.String()
}
