package gemini

import (
	"context"
	"errors"
	"fmt"

	"google.golang.org/genai"

	"github.com/menta2k/image-annotator/pkg/client"
	"github.com/menta2k/image-annotator/pkg/types"
)

// Client calls the Gemini API generateContent endpoint.
type Client struct {
	client *genai.Client
}

// Options configures the client. BaseURL is only needed for proxies and tests.
type Options struct {
	APIKey  string
	BaseURL string
}

// NewClient creates a Gemini API client.
func NewClient(ctx context.Context, opts Options) (*Client, error) {
	if opts.APIKey == "" {
		return nil, errors.New("gemini: API key is required")
	}
	cfg := &genai.ClientConfig{
		APIKey:  opts.APIKey,
		Backend: genai.BackendGeminiAPI,
	}
	if opts.BaseURL != "" {
		cfg.HTTPOptions = genai.HTTPOptions{BaseURL: opts.BaseURL}
	}

	c, err := genai.NewClient(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("gemini: create client: %w", err)
	}
	return &Client{client: c}, nil
}

// Generate sends the inline image followed by the instruction text.
func (c *Client) Generate(ctx context.Context, req types.ModelRequest) (types.ModelResponse, error) {
	cfg := &genai.GenerateContentConfig{
		Temperature:      genai.Ptr(float32(req.Config.Temperature)),
		ResponseMIMEType: req.Config.ResponseMIMEType,
	}
	if req.Config.ThinkingBudget != nil {
		cfg.ThinkingConfig = &genai.ThinkingConfig{
			ThinkingBudget: genai.Ptr(int32(*req.Config.ThinkingBudget)),
		}
	}

	contents := []*genai.Content{
		genai.NewContentFromParts([]*genai.Part{
			genai.NewPartFromBytes(req.Image.Data, req.Image.MIMEType),
			genai.NewPartFromText(req.Instruction),
		}, genai.RoleUser),
	}

	resp, err := c.client.Models.GenerateContent(ctx, req.Model, contents, cfg)
	if err != nil {
		// APIError text carries the HTTP code and RESOURCE_EXHAUSTED status
		if client.IsRateLimited(err) {
			return types.ModelResponse{}, fmt.Errorf("gemini generate: %w: %v", client.ErrRateLimited, err)
		}
		return types.ModelResponse{}, fmt.Errorf("gemini generate: %w", err)
	}
	return types.ModelResponse{Text: resp.Text()}, nil
}
