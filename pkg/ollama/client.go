package ollama

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/ollama/ollama/api"

	"github.com/menta2k/image-annotator/pkg/client"
	"github.com/menta2k/image-annotator/pkg/types"
)

// DefaultTimeout bounds a request when the context has no deadline.
const DefaultTimeout = 300 * time.Second

// Client wraps the Ollama API client
type Client struct {
	client *api.Client
}

// NewClient creates a new Ollama client
func NewClient(ollamaURL string) (*Client, error) {
	parsedURL, err := url.Parse(ollamaURL)
	if err != nil {
		return nil, fmt.Errorf("invalid URL: %w", err)
	}
	if parsedURL.Scheme == "" || parsedURL.Host == "" {
		return nil, fmt.Errorf("invalid URL: %q needs scheme and host", ollamaURL)
	}

	// Drop any path like /api/chat
	baseURL := &url.URL{
		Scheme: parsedURL.Scheme,
		Host:   parsedURL.Host,
	}

	// Create client with the specified URL, ignoring environment
	return &Client{client: api.NewClient(baseURL, http.DefaultClient)}, nil
}

// Generate sends the image and instruction as one chat message and returns
// the assistant content.
func (c *Client) Generate(ctx context.Context, req types.ModelRequest) (types.ModelResponse, error) {
	if _, hasDeadline := ctx.Deadline(); !hasDeadline {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, DefaultTimeout)
		defer cancel()
	}

	streamFalse := false
	chat := &api.ChatRequest{
		Model: req.Model,
		Messages: []api.Message{
			{
				Role:    "user",
				Content: req.Instruction,
				Images:  []api.ImageData{api.ImageData(req.Image.Data)},
			},
		},
		Stream: &streamFalse,
		Options: map[string]any{
			"temperature": req.Config.Temperature,
		},
	}
	if req.Config.ResponseMIMEType == "application/json" {
		chat.Format = json.RawMessage(`"json"`)
	}

	var content string
	err := c.client.Chat(ctx, chat, func(resp api.ChatResponse) error {
		content += resp.Message.Content
		return nil
	})
	if err != nil {
		var statusErr api.StatusError
		if errors.As(err, &statusErr) && statusErr.StatusCode == http.StatusTooManyRequests {
			return types.ModelResponse{}, fmt.Errorf("ollama chat error: %w: %v", client.ErrRateLimited, err)
		}
		return types.ModelResponse{}, fmt.Errorf("ollama chat error: %w", err)
	}

	if content == "" {
		return types.ModelResponse{}, fmt.Errorf("empty response from ollama")
	}
	return types.ModelResponse{Text: content}, nil
}
