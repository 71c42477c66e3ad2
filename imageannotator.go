// Package imageannotator sends an image with a natural-language instruction
// to a vision-language model and draws the structured answer back onto the
// image as bounding boxes, segmentation masks or labeled points.
//
// Basic usage:
//
//	package main
//
//	import (
//		"context"
//		"log"
//		"os"
//
//		imageannotator "github.com/menta2k/image-annotator"
//		"github.com/menta2k/image-annotator/pkg/gemini"
//		"github.com/menta2k/image-annotator/pkg/types"
//	)
//
//	func main() {
//		ctx := context.Background()
//		c, err := gemini.NewClient(ctx, gemini.Options{APIKey: os.Getenv("GEMINI_API_KEY")})
//		if err != nil {
//			log.Fatal(err)
//		}
//
//		annotator := imageannotator.New(c, types.ModelGeminiFlash)
//		annotator.SetTarget(types.BoundingBoxes2D, "cars")
//
//		img, err := annotator.LoadImage("street.jpg")
//		if err != nil {
//			log.Fatal(err)
//		}
//		res, err := annotator.Detect(ctx, img, types.BoundingBoxes2D)
//		if err != nil {
//			log.Fatal(err)
//		}
//		if err := annotator.SaveImage(annotator.Render(img, res), "street_boxes.png"); err != nil {
//			log.Fatal(err)
//		}
//	}
//
// The package consists of these main parts:
//
// 1. Geometry (pkg/geometry): letterbox fit and coordinate conversion
// 2. Detection (pkg/detection): instruction templates and response parsing
// 3. Store (pkg/store): application state with change subscriptions
// 4. Orchestrator (pkg/orchestrator): single-flight sends and the live loop
// 5. Render (pkg/render): masks, boxes, points and strokes drawn onto the image
//
// Model backends live in pkg/gemini, pkg/ollama and pkg/llamacpp. The
// interactive application container is pkg/session.
package imageannotator

import (
	"context"
	"fmt"
	"image"
	"os"

	"github.com/menta2k/image-annotator/internal/utils"
	"github.com/menta2k/image-annotator/pkg/client"
	"github.com/menta2k/image-annotator/pkg/detection"
	"github.com/menta2k/image-annotator/pkg/processing"
	"github.com/menta2k/image-annotator/pkg/render"
	"github.com/menta2k/image-annotator/pkg/types"
)

// Version of the image annotator library
const Version = "1.0.0"

// DefaultMaxDim is the long side of still images sent to the model.
const DefaultMaxDim = 640

// Annotator provides a high-level interface for one-shot detection
type Annotator struct {
	detector  *detection.Detector
	processor *processing.Processor
	prompts   detection.Prompts
	config    types.RequestConfig
	maxDim    int
	render    render.Options
}

// New creates an Annotator for model on c with default settings
func New(c client.VisionClient, model string) *Annotator {
	return &Annotator{
		detector:  detection.NewDetector(c),
		processor: processing.NewProcessor(),
		prompts:   detection.NewPrompts(),
		config:    types.RequestConfig{Model: model, Temperature: 0.5},
		maxDim:    DefaultMaxDim,
		render:    render.DefaultOptions(),
	}
}

// SetTarget sets the editable target phrase of mode's instruction
func (a *Annotator) SetTarget(mode types.DetectionMode, target string) {
	a.prompts = a.prompts.WithTarget(mode, target)
}

// SetTemperature sets the sampling temperature
func (a *Annotator) SetTemperature(t float64) {
	a.config.Temperature = t
}

// SetThinking enables the model's thinking budget
func (a *Annotator) SetThinking(enabled bool) {
	a.config.ThinkingEnabled = enabled
}

// SetRenderOptions replaces the overlay styling
func (a *Annotator) SetRenderOptions(opts render.Options) {
	a.render = opts
}

// Instruction returns the instruction text sent for mode
func (a *Annotator) Instruction(mode types.DetectionMode) string {
	return a.prompts.Instruction(mode)
}

// LoadImage loads an image from a file path or URL
func (a *Annotator) LoadImage(source string) (image.Image, error) {
	return a.processor.LoadImageSmart(source)
}

// Detect sends img to the model and parses the answer for mode
func (a *Annotator) Detect(ctx context.Context, img image.Image, mode types.DetectionMode) (*detection.Result, error) {
	part, err := a.processor.PrepareImageForModel(img, processing.FormatPNG, a.maxDim, 0)
	if err != nil {
		return nil, fmt.Errorf("failed to prepare image: %w", err)
	}
	cfg := a.config
	cfg.InstructionText = a.prompts.Instruction(mode)
	return a.detector.DetectImage(ctx, cfg, part, mode)
}

// Render draws res over img at img's own size
func (a *Annotator) Render(img image.Image, res *detection.Result) *image.NRGBA {
	scene := render.Scene{Hovered: -1}
	if res != nil {
		scene.Mode = res.Mode
		scene.Boxes = res.Boxes
		scene.Masks = res.Masks
		scene.Points = res.Points
	}
	return render.Overlay(img, scene, a.render)
}

// SaveImage saves an image, picking the format from the file extension
func (a *Annotator) SaveImage(img image.Image, path string) error {
	format := utils.GetFileExtension(path)
	if format == "" {
		format = "png"
	}
	return a.processor.SaveImage(img, path, format, 90, false)
}

// ProcessImageFile is a convenience function that loads, detects, renders and
// saves the overlay and the model JSON into outputDir
func (a *Annotator) ProcessImageFile(ctx context.Context, inputPath, outputDir string, mode types.DetectionMode) (*detection.Result, error) {
	img, err := a.LoadImage(inputPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load image: %w", err)
	}

	res, err := a.Detect(ctx, img, mode)
	if err != nil {
		return nil, fmt.Errorf("detection failed: %w", err)
	}

	if err := utils.EnsureDir(outputDir); err != nil {
		return nil, fmt.Errorf("failed to create output directory: %w", err)
	}

	suffix := "_" + modeSlug(mode)
	overlayPath := utils.GenerateOutputFilename(inputPath, outputDir, "", suffix, "png")
	if err := a.SaveImage(a.Render(img, res), overlayPath); err != nil {
		return nil, fmt.Errorf("failed to save overlay: %w", err)
	}

	jsonPath := utils.GenerateOutputFilename(inputPath, outputDir, "", suffix, "json")
	if err := os.WriteFile(jsonPath, []byte(res.Pretty), 0o644); err != nil {
		return nil, fmt.Errorf("failed to save model output: %w", err)
	}

	return res, nil
}

// GetVersion returns the library version
func GetVersion() string {
	return Version
}

func modeSlug(mode types.DetectionMode) string {
	switch mode {
	case types.SegmentationMasks:
		return "masks"
	case types.Points:
		return "points"
	default:
		return "boxes"
	}
}
