package types

import (
	"fmt"
	"image"
	"image/color"
	"strings"
)

// Size is a width/height pair in CSS pixels or image pixels.
type Size struct {
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// Valid reports whether both dimensions are strictly positive.
func (s Size) Valid() bool {
	return s.Width > 0 && s.Height > 0
}

// AspectRatio returns width/height.
func (s Size) AspectRatio() float64 {
	return s.Width / s.Height
}

// DisplayRect is the on-screen rectangle the media occupies after letterbox fitting.
// It is always centered inside its container.
type DisplayRect struct {
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// Vec2 is a 2D point. Normalized points are in [0,1] relative to the media.
type Vec2 struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// NormalizedBox represents a labelled box with coordinates in [0,1] range
type NormalizedBox struct {
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
	Label  string  `json:"label"`
}

// Area returns the normalized area of the box.
func (b NormalizedBox) Area() float64 {
	return b.Width * b.Height
}

// Contains reports whether p lies strictly inside the box.
func (b NormalizedBox) Contains(p Vec2) bool {
	return p.X > b.X && p.X < b.X+b.Width && p.Y > b.Y && p.Y < b.Y+b.Height
}

// NormalizedPoint is a labelled point result.
type NormalizedPoint struct {
	Point Vec2   `json:"point"`
	Label string `json:"label"`
}

// MaskEntry is a segmentation result: a box plus the decoded mask raster
// that is stretched to cover it.
type MaskEntry struct {
	NormalizedBox
	Mask image.Image `json:"-"`
}

// Stroke is a freehand polyline in normalized coordinates.
type Stroke struct {
	Points []Vec2      `json:"points"`
	Color  color.NRGBA `json:"-"`
}

// CSSColor renders the stroke color as an rgb() string.
func (s Stroke) CSSColor() string {
	return fmt.Sprintf("rgb(%d, %d, %d)", s.Color.R, s.Color.G, s.Color.B)
}

// DetectionMode selects which kind of results the model is asked for.
type DetectionMode int

const (
	BoundingBoxes2D DetectionMode = iota
	SegmentationMasks
	Points
)

// String returns the user-facing mode name.
func (m DetectionMode) String() string {
	switch m {
	case BoundingBoxes2D:
		return "2D bounding boxes"
	case SegmentationMasks:
		return "Segmentation masks"
	case Points:
		return "Points"
	default:
		return fmt.Sprintf("DetectionMode(%d)", int(m))
	}
}

// ParseDetectionMode accepts the user-facing names plus short aliases.
func ParseDetectionMode(s string) (DetectionMode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "2d", "boxes", "2d bounding boxes", "bbox":
		return BoundingBoxes2D, nil
	case "masks", "segmentation", "segmentation masks":
		return SegmentationMasks, nil
	case "points", "point":
		return Points, nil
	}
	return 0, fmt.Errorf("unknown detection mode %q", s)
}

// Models offered to the user.
const (
	ModelGeminiFlash     = "gemini-2.5-flash"
	ModelRoboticsPreview = "gemini-robotics-er-1.5-preview"
)

// AvailableModels lists the selectable model identifiers.
var AvailableModels = []string{ModelGeminiFlash, ModelRoboticsPreview}

// RequestConfig holds the parameters that shape a model request.
type RequestConfig struct {
	Model           string  `json:"model"`
	Temperature     float64 `json:"temperature"`
	ThinkingEnabled bool    `json:"thinking_enabled"`
	InstructionText string  `json:"instruction_text"`
}

// ImagePart is an encoded image attached to a request.
type ImagePart struct {
	Data     []byte `json:"-"`
	MIMEType string `json:"mime_type"`
}

// GenerationConfig is the backend-neutral generation configuration.
type GenerationConfig struct {
	Temperature      float64 `json:"temperature"`
	ResponseMIMEType string  `json:"response_mime_type"`
	// ThinkingBudget is nil when the backend default applies.
	ThinkingBudget *int `json:"thinking_budget,omitempty"`
}

// ModelRequest is a single image+instruction request to a vision model.
type ModelRequest struct {
	Model       string           `json:"model"`
	Image       ImagePart        `json:"image"`
	Instruction string           `json:"instruction"`
	Config      GenerationConfig `json:"config"`
}

// ModelResponse carries the raw text returned by the model.
type ModelResponse struct {
	Text string `json:"text"`
}
