// Package orchestrator sends the current image or camera frame to the vision
// model, parses the reply into the store and paces live-mode requests.
package orchestrator

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"image"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/menta2k/image-annotator/pkg/annotate"
	"github.com/menta2k/image-annotator/pkg/client"
	"github.com/menta2k/image-annotator/pkg/detection"
	"github.com/menta2k/image-annotator/pkg/processing"
	"github.com/menta2k/image-annotator/pkg/store"
	"github.com/menta2k/image-annotator/pkg/types"
)

var (
	// ErrBusy is returned when a request is already in flight.
	ErrBusy = errors.New("orchestrator: request already in flight")
	// ErrNoImage is returned when there is no image or frame to send.
	ErrNoImage = errors.New("orchestrator: no image available")
	// ErrStaleResponse is returned when the image changed while the request was in flight.
	ErrStaleResponse = errors.New("orchestrator: response belongs to a previous image")
)

// RateLimitNotice is shown once per rate-limited static send.
const RateLimitNotice = "API Quota Exceeded (429). Retrying automatically in live mode."

// RedactedImage replaces inline image data in the request diagnostics.
const RedactedImage = "<BASE64_IMAGE_DATA_REDACTED>"

// FrameSource supplies the current live camera frame.
type FrameSource interface {
	Frame() (image.Image, bool)
}

// Notifier shows a blocking user notice.
type Notifier interface {
	Notify(msg string)
}

// NotifierFunc adapts a function to Notifier.
type NotifierFunc func(msg string)

// Notify calls f.
func (f NotifierFunc) Notify(msg string) { f(msg) }

// Options controls image preparation.
type Options struct {
	LiveMaxDim      int
	LiveJPEGQuality int
	StaticMaxDim    int
	StrokeSize      float64
	// Timeout bounds a single model call. Zero means no limit beyond ctx.
	Timeout         time.Duration
}

// DefaultOptions returns the standard encode settings.
func DefaultOptions() Options {
	return Options{
		LiveMaxDim:      320,
		LiveJPEGQuality: 50,
		StaticMaxDim:    640,
		StrokeSize:      annotate.DefaultSize,
	}
}

// Orchestrator runs one request at a time against a VisionClient.
type Orchestrator struct {
	store     *store.Store
	detector  *detection.Detector
	processor *processing.Processor
	logger    *slog.Logger
	opts      Options
	now       func() time.Time

	mu       sync.Mutex
	frames   FrameSource
	notifier Notifier

	loading     atomic.Bool
	rateLimited atomic.Bool
}

// New creates an orchestrator writing results into st.
func New(st *store.Store, c client.VisionClient, logger *slog.Logger, opts Options) *Orchestrator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Orchestrator{
		store:     st,
		detector:  detection.NewDetector(c),
		processor: processing.NewProcessor(),
		logger:    logger,
		opts:      opts,
		now:       time.Now,
	}
}

// SetFrameSource sets the live frame source. nil detaches it.
func (o *Orchestrator) SetFrameSource(f FrameSource) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.frames = f
}

// SetNotifier sets the receiver of user notices.
func (o *Orchestrator) SetNotifier(n Notifier) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.notifier = n
}

// Loading reports whether a request is in flight.
func (o *Orchestrator) Loading() bool {
	return o.loading.Load()
}

// RateLimited reports whether the last completed request hit a rate limit.
func (o *Orchestrator) RateLimited() bool {
	return o.rateLimited.Load()
}

// Send runs one request for the current mode. It returns ErrBusy without side
// effects when another request is in flight.
func (o *Orchestrator) Send(ctx context.Context) error {
	if !o.loading.CompareAndSwap(false, true) {
		return ErrBusy
	}
	defer o.loading.Store(false)

	live := o.store.LiveMode()
	mode := o.store.Mode()
	cfg := o.store.RequestConfig()
	epoch := o.store.Epoch()
	logger := o.logger.With("request_id", uuid.NewString(), "live", live, "mode", mode.String())

	img, err := o.resolveImage(live)
	if err != nil {
		return err
	}

	if !live {
		o.store.ClearDiagnostics()
	}
	start := o.now()
	defer func() {
		elapsed := o.now().Sub(start)
		if !live {
			o.store.SetResponseTime(fmt.Sprintf("%.2fs", elapsed.Seconds()))
		}
		logger.Debug("orchestrator.done", "elapsed", elapsed)
	}()

	part, err := o.encode(img, live)
	if err != nil {
		logger.Error("orchestrator.encode", "error", err)
		if !live {
			o.store.SetResponseJSON(errorJSON(err))
		}
		return err
	}

	req := detection.BuildRequest(cfg, part)
	if !live {
		o.store.SetRequestJSON(redactedRequest(req))
	}
	o.store.SetHoverEntered(false)

	logger.Info("orchestrator.send", "model", req.Model, "bytes", len(part.Data), "mime", part.MIMEType)
	callCtx := ctx
	if o.opts.Timeout > 0 {
		var cancel context.CancelFunc
		callCtx, cancel = context.WithTimeout(ctx, o.opts.Timeout)
		defer cancel()
	}
	res, raw, err := o.detector.Detect(callCtx, req, mode)

	if err != nil && client.IsRateLimited(err) {
		o.rateLimited.Store(true)
	}
	if o.store.Epoch() != epoch {
		logger.Warn("orchestrator.stale", "epoch", epoch)
		return ErrStaleResponse
	}
	if err != nil {
		return o.fail(logger, live, raw, err)
	}

	o.store.ApplyResult(res)
	if !live {
		pretty := res.Pretty
		if pretty == "" {
			pretty = raw
		}
		o.store.SetResponseJSON(pretty)
		o.store.SetImageSent(true)
	}
	o.rateLimited.Store(false)
	logger.Info("orchestrator.result", "entries", res.Len())
	return nil
}

func (o *Orchestrator) fail(logger *slog.Logger, live bool, raw string, err error) error {
	switch {
	case client.IsRateLimited(err):
		logger.Warn("orchestrator.rate_limited", "error", err)
		if !live {
			o.notify(RateLimitNotice)
		}
	case errors.Is(err, detection.ErrParse):
		logger.Error("orchestrator.parse", "error", err)
		if !live {
			o.store.SetResponseJSON(raw)
		}
	default:
		logger.Error("orchestrator.request", "error", err)
		if !live {
			o.store.SetResponseJSON(errorJSON(err))
		}
	}
	return err
}

func (o *Orchestrator) notify(msg string) {
	o.mu.Lock()
	n := o.notifier
	o.mu.Unlock()
	if n != nil {
		n.Notify(msg)
	}
}

func (o *Orchestrator) resolveImage(live bool) (image.Image, error) {
	if live {
		o.mu.Lock()
		frames := o.frames
		o.mu.Unlock()
		if frames == nil {
			return nil, ErrNoImage
		}
		frame, ok := frames.Frame()
		if !ok || frame == nil || frame.Bounds().Empty() {
			return nil, ErrNoImage
		}
		return frame, nil
	}

	img := o.store.Image()
	if img == nil {
		return nil, ErrNoImage
	}
	return img, nil
}

// encode downscales the image. Live frames go out as JPEG. Still images go
// out as PNG with any strokes burned in.
func (o *Orchestrator) encode(img image.Image, live bool) (types.ImagePart, error) {
	if live {
		return o.processor.PrepareImageForModel(img, processing.FormatJPEG, o.opts.LiveMaxDim, o.opts.LiveJPEGQuality)
	}

	scaled := o.processor.ScaleToMax(img, o.opts.StaticMaxDim)
	if strokes := o.store.Strokes(); len(strokes) > 0 {
		annotate.Rasterize(scaled, strokes, o.opts.StrokeSize)
	}
	data, mime, err := o.processor.Encode(scaled, processing.FormatPNG, 0)
	if err != nil {
		return types.ImagePart{}, fmt.Errorf("failed to encode image: %w", err)
	}
	return types.ImagePart{Data: data, MIMEType: mime}, nil
}

type displayPayload struct {
	Model    string `json:"model"`
	Contents struct {
		Parts []displayPart `json:"parts"`
	} `json:"contents"`
	Config displayConfig `json:"config"`
}

type displayPart struct {
	InlineData *displayInline `json:"inlineData,omitempty"`
	Text       string         `json:"text,omitempty"`
}

type displayInline struct {
	Data     string `json:"data"`
	MIMEType string `json:"mimeType"`
}

type displayConfig struct {
	Temperature      float64          `json:"temperature"`
	ResponseMIMEType string           `json:"responseMimeType"`
	ThinkingConfig   *displayThinking `json:"thinkingConfig,omitempty"`
}

type displayThinking struct {
	ThinkingBudget int `json:"thinkingBudget"`
}

func redactedRequest(req types.ModelRequest) string {
	var p displayPayload
	p.Model = req.Model
	p.Contents.Parts = []displayPart{
		{InlineData: &displayInline{Data: RedactedImage, MIMEType: req.Image.MIMEType}},
		{Text: req.Instruction},
	}
	p.Config = displayConfig{
		Temperature:      req.Config.Temperature,
		ResponseMIMEType: req.Config.ResponseMIMEType,
	}
	if req.Config.ThinkingBudget != nil {
		p.Config.ThinkingConfig = &displayThinking{ThinkingBudget: *req.Config.ThinkingBudget}
	}
	return indentJSON(p)
}

func errorJSON(err error) string {
	return indentJSON(struct {
		Error   string `json:"error"`
		Details string `json:"details"`
	}{"Error", err.Error()})
}

func indentJSON(v any) string {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return ""
	}
	return string(bytes.TrimRight(buf.Bytes(), "\n"))
}
