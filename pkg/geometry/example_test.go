package geometry_test

import (
	"fmt"

	"github.com/menta2k/image-annotator/pkg/geometry"
	"github.com/menta2k/image-annotator/pkg/types"
)

func ExampleFit() {
	container := types.Size{Width: 1000, Height: 1000}
	rect, _ := geometry.Fit(container, types.Size{Width: 1920, Height: 1080})
	origin := geometry.Origin(container, rect)
	p := geometry.ScreenToNormalized(types.Vec2{X: 500, Y: 500}, origin, rect)
	fmt.Printf("%.0fx%.2f at (%.0f,%.2f) center=(%.1f,%.1f)\n", rect.Width, rect.Height, origin.X, origin.Y, p.X, p.Y)
	// Output: 1000x562.50 at (0,218.75) center=(0.5,0.5)
}
