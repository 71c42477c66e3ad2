package detection

import (
	"context"
	"fmt"

	"github.com/menta2k/image-annotator/pkg/client"
	"github.com/menta2k/image-annotator/pkg/types"
)

// ResponseMIMEType is requested from every backend.
const ResponseMIMEType = "application/json"

// Detector handles detection requests using vision models
type Detector struct {
	client client.VisionClient
}

// NewDetector creates a new detector with a vision client
func NewDetector(client client.VisionClient) *Detector {
	return &Detector{client: client}
}

// BuildRequest assembles a model request from the request config and an
// already encoded image. Thinking is disabled with a zero budget unless enabled.
func BuildRequest(cfg types.RequestConfig, img types.ImagePart) types.ModelRequest {
	gen := types.GenerationConfig{
		Temperature:      cfg.Temperature,
		ResponseMIMEType: ResponseMIMEType,
	}
	if !cfg.ThinkingEnabled {
		zero := 0
		gen.ThinkingBudget = &zero
	}
	return types.ModelRequest{
		Model:       cfg.Model,
		Image:       img,
		Instruction: cfg.InstructionText,
		Config:      gen,
	}
}

// Detect sends req and parses the response for mode.
// The raw response text is returned even when parsing fails.
func (d *Detector) Detect(ctx context.Context, req types.ModelRequest, mode types.DetectionMode) (*Result, string, error) {
	resp, err := d.client.Generate(ctx, req)
	if err != nil {
		return nil, "", err
	}

	res, err := Parse(mode, resp.Text)
	if err != nil {
		return nil, resp.Text, err
	}
	return res, resp.Text, nil
}

// DetectImage is a convenience wrapper building the request from cfg.
func (d *Detector) DetectImage(ctx context.Context, cfg types.RequestConfig, img types.ImagePart, mode types.DetectionMode) (*Result, error) {
	if cfg.Model == "" {
		return nil, fmt.Errorf("model is required")
	}
	res, _, err := d.Detect(ctx, BuildRequest(cfg, img), mode)
	return res, err
}
