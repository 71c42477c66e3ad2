// Package session wires the store, orchestrator, live loop, annotation layer
// and 3D rotator into one application container, and owns media acquisition.
package session

import (
	"context"
	"errors"
	"fmt"
	"image"
	"log/slog"
	"math/rand/v2"
	"strings"
	"sync"
	"time"

	"github.com/menta2k/image-annotator/pkg/annotate"
	"github.com/menta2k/image-annotator/pkg/client"
	"github.com/menta2k/image-annotator/pkg/orchestrator"
	"github.com/menta2k/image-annotator/pkg/presentation"
	"github.com/menta2k/image-annotator/pkg/processing"
	"github.com/menta2k/image-annotator/pkg/store"
)

// DefaultDemoInterval is the demo-image rotation period.
const DefaultDemoInterval = 10 * time.Second

// ErrNoCamera is returned when a camera is needed but no opener is configured.
var ErrNoCamera = errors.New("no camera available")

// Camera is an opened capture device.
type Camera interface {
	Frame() (image.Image, bool)
	Snapshot() (image.Image, error)
	Close() error
}

// CameraOpener opens a new camera acquisition.
type CameraOpener func() (Camera, error)

// Options configures an App.
type Options struct {
	Orchestrator orchestrator.Options
	LiveInterval time.Duration
	LiveBackoff  time.Duration
	DemoInterval time.Duration
	DemoImages   []image.Image

	// Wait and Rand are replaceable for tests.
	Wait orchestrator.WaitFunc
	Rand func(n int) int
}

// App is the application state container.
type App struct {
	Store        *store.Store
	Orchestrator *orchestrator.Orchestrator
	Live         *orchestrator.LiveLoop
	Layer        *annotate.Layer
	Rotator      *presentation.Rotator

	logger     *slog.Logger
	processor  *processing.Processor
	openCamera CameraOpener

	demoImages   []image.Image
	demoInterval time.Duration
	wait         orchestrator.WaitFunc
	rand         func(n int) int

	mu       sync.Mutex
	camera   Camera
	demoIdx  int
	cancel   context.CancelFunc
	demoDone chan struct{}
}

// New creates an App around c. openCamera may be nil when no camera exists.
func New(c client.VisionClient, logger *slog.Logger, openCamera CameraOpener, opts Options) *App {
	if logger == nil {
		logger = slog.Default()
	}
	if opts.Wait == nil {
		opts.Wait = orchestrator.Sleep
	}
	if opts.Rand == nil {
		opts.Rand = rand.IntN
	}
	if opts.DemoInterval <= 0 {
		opts.DemoInterval = DefaultDemoInterval
	}

	st := store.New()
	orch := orchestrator.New(st, c, logger, opts.Orchestrator)
	return &App{
		Store:        st,
		Orchestrator: orch,
		Live:         orchestrator.NewLiveLoop(orch, opts.LiveInterval, opts.LiveBackoff, opts.Wait),
		Layer:        annotate.NewLayer(st),
		Rotator:      presentation.NewRotator(),
		logger:       logger,
		processor:    processing.NewProcessor(),
		openCamera:   openCamera,
		demoImages:   opts.DemoImages,
		demoInterval: opts.DemoInterval,
		wait:         opts.Wait,
		rand:         opts.Rand,
		demoIdx:      -1,
	}
}

// Start shows the first demo image when nothing else is loaded, then starts
// the live loop and the demo rotation. Both stop with ctx or Close.
func (a *App) Start(ctx context.Context) {
	a.mu.Lock()
	if a.cancel != nil {
		a.mu.Unlock()
		return
	}
	ctx, cancel := context.WithCancel(ctx)
	a.cancel = cancel
	a.demoDone = make(chan struct{})
	var first image.Image
	if len(a.demoImages) > 0 && a.Store.Image() == nil && !a.Store.LiveMode() {
		a.demoIdx = 0
		first = a.demoImages[0]
	}
	a.mu.Unlock()

	// Subscribers run inside AcquireImage and may call back into App.
	if first != nil {
		a.Store.AcquireImage(first, false)
	}

	a.Live.Start(ctx)
	go a.runDemo(ctx)
}

// Send runs one detection request against the current input.
func (a *App) Send(ctx context.Context) error {
	return a.Orchestrator.Send(ctx)
}

// Upload decodes raw image bytes, or a data URL, and installs them as the
// user's image. Live mode is turned off.
func (a *App) Upload(data []byte) error {
	var (
		img image.Image
		err error
	)
	if strings.HasPrefix(string(data), "data:") {
		img, err = a.processor.DecodeImageDataURL(string(data))
	} else {
		img, err = a.processor.DecodeImage(data)
	}
	if err != nil {
		return fmt.Errorf("upload: %w", err)
	}
	return a.UploadImage(img)
}

// UploadImage installs img as the user's image. Live mode is turned off.
func (a *App) UploadImage(img image.Image) error {
	if img == nil || img.Bounds().Empty() {
		return errors.New("upload: empty image")
	}
	if err := a.SetLive(false); err != nil {
		a.logger.Warn("session.camera_close", "error", err)
	}
	epoch := a.Store.AcquireImage(img, true)
	a.logger.Info("session.upload", "epoch", epoch, "width", img.Bounds().Dx(), "height", img.Bounds().Dy())
	return nil
}

// Snapshot opens a camera, grabs a single frame and installs it as the
// user's image. The camera is always released.
func (a *App) Snapshot() (err error) {
	if a.openCamera == nil {
		return ErrNoCamera
	}
	cam, err := a.openCamera()
	if err != nil {
		return fmt.Errorf("snapshot: open camera: %w", err)
	}
	defer func() {
		if cerr := cam.Close(); cerr != nil && err == nil {
			err = fmt.Errorf("snapshot: close camera: %w", cerr)
		}
	}()

	img, err := cam.Snapshot()
	if err != nil {
		return fmt.Errorf("snapshot: %w", err)
	}
	epoch := a.Store.AcquireImage(img, true)
	a.logger.Info("session.snapshot", "epoch", epoch)
	return nil
}

// SetLive turns live mode on or off. Turning it on opens the camera before
// the loop starts sending; turning it off releases the camera.
func (a *App) SetLive(enable bool) error {
	if !enable {
		a.Store.SetLiveMode(false)
		a.Orchestrator.SetFrameSource(nil)
		return a.releaseCamera()
	}

	if a.Store.LiveMode() {
		return nil
	}
	if a.openCamera == nil {
		return ErrNoCamera
	}
	cam, err := a.openCamera()
	if err != nil {
		return fmt.Errorf("live: open camera: %w", err)
	}

	a.mu.Lock()
	prev := a.camera
	a.camera = cam
	a.mu.Unlock()
	if prev != nil {
		prev.Close()
	}

	a.Orchestrator.SetFrameSource(&liveSource{cam: cam, store: a.Store})
	a.Store.SetLiveMode(true)
	a.logger.Info("session.live", "enabled", true)
	return nil
}

func (a *App) releaseCamera() error {
	a.mu.Lock()
	cam := a.camera
	a.camera = nil
	a.mu.Unlock()
	if cam == nil {
		return nil
	}
	a.logger.Info("session.live", "enabled", false)
	return cam.Close()
}

// Set3D toggles the 3D view.
func (a *App) Set3D(on bool) {
	a.Rotator.SetEnabled(on)
	a.Store.SetIs3D(on)
}

// Reset clears results, strokes and diagnostics for the current image.
func (a *App) Reset() {
	a.Store.Reset()
}

// RotateDemo swaps in a random demo image, avoiding an immediate repeat.
// It does nothing while a user image is loaded or live mode is on.
func (a *App) RotateDemo() bool {
	a.mu.Lock()
	n := len(a.demoImages)
	if n == 0 || a.Store.Uploaded() || a.Store.LiveMode() {
		a.mu.Unlock()
		return false
	}
	next := a.rand(n)
	if next == a.demoIdx && n > 1 {
		next = (next + 1) % n
	}
	a.demoIdx = next
	img := a.demoImages[next]
	a.mu.Unlock()

	a.Store.AcquireImage(img, false)
	return true
}

// DemoIndex returns the index of the demo image on display, or -1.
func (a *App) DemoIndex() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.demoIdx
}

func (a *App) runDemo(ctx context.Context) {
	defer close(a.demoDone)
	if len(a.demoImages) == 0 {
		return
	}
	for {
		if err := a.wait(ctx, a.demoInterval); err != nil {
			return
		}
		if a.RotateDemo() {
			a.logger.Debug("session.demo", "index", a.DemoIndex())
		}
	}
}

// Close stops background work and releases the camera.
func (a *App) Close() error {
	a.mu.Lock()
	cancel, done := a.cancel, a.demoDone
	a.cancel = nil
	a.mu.Unlock()

	a.Live.Stop()
	if cancel != nil {
		cancel()
		<-done
	}
	a.Orchestrator.SetFrameSource(nil)
	return a.releaseCamera()
}

// liveSource feeds camera frames to the orchestrator and keeps the store's
// media size in step with the stream.
type liveSource struct {
	cam   Camera
	store *store.Store
}

func (s *liveSource) Frame() (image.Image, bool) {
	img, ok := s.cam.Frame()
	if !ok || img == nil {
		return nil, false
	}
	s.store.SetMediaSize(processing.ImageSize(img))
	return img, true
}

var _ orchestrator.FrameSource = (*liveSource)(nil)
var _ annotate.Surface = (*store.Store)(nil)
