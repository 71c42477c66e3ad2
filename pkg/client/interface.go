package client

import (
	"context"
	"errors"
	"strings"

	"github.com/menta2k/image-annotator/pkg/types"
)

// VisionClient sends one image plus instruction to a vision model.
type VisionClient interface {
	Generate(ctx context.Context, req types.ModelRequest) (types.ModelResponse, error)
}

// ErrRateLimited marks quota or rate-limit failures from any backend.
var ErrRateLimited = errors.New("rate limited")

// IsRateLimited reports whether err is a rate-limit failure. Backends that do
// not wrap ErrRateLimited are classified by their error text.
func IsRateLimited(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrRateLimited) {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "429") || strings.Contains(msg, "RESOURCE_EXHAUSTED")
}

// Func adapts a function to VisionClient.
type Func func(ctx context.Context, req types.ModelRequest) (types.ModelResponse, error)

// Generate calls f.
func (f Func) Generate(ctx context.Context, req types.ModelRequest) (types.ModelResponse, error) {
	return f(ctx, req)
}
