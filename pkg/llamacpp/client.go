package llamacpp

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"

	"github.com/menta2k/image-annotator/pkg/client"
	"github.com/menta2k/image-annotator/pkg/processing"
	"github.com/menta2k/image-annotator/pkg/types"
)

// DefaultURL is where llama-server listens by default.
const DefaultURL = "http://localhost:8080"

// Client talks to any OpenAI-compatible chat completions server
// (llama.cpp server, vLLM, OpenAI itself).
type Client struct {
	client openai.Client
}

// NewClient creates a client for serverURL. apiKey may be empty for local servers.
func NewClient(serverURL, apiKey string) (*Client, error) {
	if serverURL == "" {
		serverURL = DefaultURL
	}
	serverURL = strings.TrimSuffix(serverURL, "/")
	if !strings.HasSuffix(serverURL, "/v1") {
		serverURL += "/v1"
	}
	if apiKey == "" {
		apiKey = "sk-no-key-required"
	}

	opts := []option.RequestOption{
		option.WithAPIKey(apiKey),
		option.WithBaseURL(serverURL + "/"),
		option.WithHTTPClient(&http.Client{Timeout: 5 * time.Minute}),
		// Rate limits are surfaced to the caller, which owns the backoff
		option.WithMaxRetries(0),
	}
	return &Client{client: openai.NewClient(opts...)}, nil
}

// Generate sends the image and instruction as one user message.
// No response format is set: the instruction asks for a JSON list, and
// JSON mode would force an object.
func (c *Client) Generate(ctx context.Context, req types.ModelRequest) (types.ModelResponse, error) {
	content := []openai.ChatCompletionContentPartUnionParam{
		openai.ImageContentPart(openai.ChatCompletionContentPartImageImageURLParam{
			URL: processing.EncodeDataURL(req.Image.Data, req.Image.MIMEType),
		}),
		openai.TextContentPart(req.Instruction),
	}

	params := openai.ChatCompletionNewParams{
		Model: openai.ChatModel(req.Model),
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.UserMessage(content),
		},
		Temperature: openai.Float(req.Config.Temperature),
	}

	resp, err := c.client.Chat.Completions.New(ctx, params)
	if err != nil {
		var apiErr *openai.Error
		if errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusTooManyRequests {
			return types.ModelResponse{}, fmt.Errorf("llamacpp chat: %w: %v", client.ErrRateLimited, err)
		}
		return types.ModelResponse{}, fmt.Errorf("llamacpp chat: %w", err)
	}

	if len(resp.Choices) == 0 {
		return types.ModelResponse{}, fmt.Errorf("no choices in response")
	}
	return types.ModelResponse{Text: resp.Choices[0].Message.Content}, nil
}
