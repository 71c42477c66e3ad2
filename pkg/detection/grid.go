package detection

import "github.com/menta2k/image-annotator/pkg/types"

// GridSize is the integer grid the model reports coordinates on.
const GridSize = 1000.0

// BoxFromGrid converts a [ymin, xmin, ymax, xmax] box on the model grid to a
// normalized box. Values are not clamped.
func BoxFromGrid(box [4]float64, label string) types.NormalizedBox {
	ymin, xmin, ymax, xmax := box[0], box[1], box[2], box[3]
	return types.NormalizedBox{
		X:      xmin / GridSize,
		Y:      ymin / GridSize,
		Width:  (xmax - xmin) / GridSize,
		Height: (ymax - ymin) / GridSize,
		Label:  label,
	}
}

// PointFromGrid converts a [y, x] point on the model grid to a normalized point.
func PointFromGrid(point [2]float64, label string) types.NormalizedPoint {
	return types.NormalizedPoint{
		Point: types.Vec2{X: point[1] / GridSize, Y: point[0] / GridSize},
		Label: label,
	}
}
