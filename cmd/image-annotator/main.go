package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"image"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"

	"github.com/menta2k/image-annotator/internal/camera"
	"github.com/menta2k/image-annotator/internal/config"
	"github.com/menta2k/image-annotator/internal/utils"
	"github.com/menta2k/image-annotator/pkg/annotate"
	"github.com/menta2k/image-annotator/pkg/client"
	"github.com/menta2k/image-annotator/pkg/compositor"
	"github.com/menta2k/image-annotator/pkg/detection"
	"github.com/menta2k/image-annotator/pkg/gemini"
	"github.com/menta2k/image-annotator/pkg/llamacpp"
	"github.com/menta2k/image-annotator/pkg/ollama"
	"github.com/menta2k/image-annotator/pkg/orchestrator"
	"github.com/menta2k/image-annotator/pkg/processing"
	"github.com/menta2k/image-annotator/pkg/render"
	"github.com/menta2k/image-annotator/pkg/session"
	"github.com/menta2k/image-annotator/pkg/store"
	"github.com/menta2k/image-annotator/pkg/types"
)

func main() {
	var configPath, in, mode, target, model, backend, url, strokesPath, outDir, ext, container string
	var temperature float64
	var thinking, live, demo bool

	flag.StringVar(&configPath, "config", "", "config file (default ~/.config/image-annotator/config.json if present)")
	flag.StringVar(&in, "in", "", "input image path or URL (jpg/png/webp)")
	flag.StringVar(&mode, "mode", "", "detection mode: boxes|masks|points")
	flag.StringVar(&target, "target", "", "what to detect, e.g. \"cars\"")
	flag.StringVar(&model, "model", "", "model name")
	flag.StringVar(&backend, "backend", "", "backend to use: gemini, ollama or llamacpp")
	flag.StringVar(&url, "url", "", "server URL for ollama/llamacpp, base URL override for gemini")
	flag.Float64Var(&temperature, "temperature", -1, "sampling temperature (0-2)")
	flag.BoolVar(&thinking, "thinking", false, "enable the model's thinking budget")
	flag.BoolVar(&live, "live", false, "run the live camera loop until interrupted")
	flag.BoolVar(&demo, "demo", false, "rotate through the configured demo images until interrupted")
	flag.StringVar(&strokesPath, "strokes", "", "JSON file with freehand strokes to burn into the image")
	flag.StringVar(&outDir, "out", "", "output directory")
	flag.StringVar(&ext, "ext", "", "overlay format: png|jpg|webp")
	flag.StringVar(&container, "container", "", "viewport size WxH to letterbox the overlay into, e.g. 1280x720")
	flag.Parse()

	cfg, err := loadConfig(configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	flag.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "mode":
			cfg.Detection.Mode = mode
		case "target":
			cfg.Detection.Target = target
		case "model":
			cfg.Model.Name = model
		case "backend":
			cfg.Model.Backend = backend
		case "url":
			cfg.Model.URL = url
		case "temperature":
			cfg.Model.Temperature = temperature
		case "thinking":
			cfg.Model.Thinking = thinking
		case "out":
			cfg.Render.OutputDir = outDir
		case "ext":
			cfg.Render.Format = ext
		}
	})

	if err := cfg.LoadEnv(); err != nil {
		log.Fatalf("Failed to load environment: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("Invalid config: %v", err)
	}
	if in == "" && !live && !demo {
		log.Fatalf("usage: %s -in input.jpg|URL [-mode boxes|masks|points] [-target text] [-backend gemini|ollama|llamacpp] [-out dir] [-ext png|jpg|webp] | -live | -demo", filepath.Base(os.Args[0]))
	}

	logger := cfg.NewLogger()
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	visionClient, err := newVisionClient(ctx, cfg)
	if err != nil {
		log.Fatalf("Failed to create %s client: %v", cfg.Model.Backend, err)
	}

	processor := processing.NewProcessor()
	demoImages, err := loadDemoImages(processor, cfg.Demo.Images)
	if err != nil {
		log.Fatalf("Failed to load demo images: %v", err)
	}

	cameraIndex := cfg.Live.CameraIndex
	app := session.New(visionClient, logger, func() (session.Camera, error) {
		c, err := camera.Open(cameraIndex)
		if err != nil {
			return nil, err
		}
		return c, nil
	}, session.Options{
		Orchestrator: orchestrator.Options{
			LiveMaxDim:      cfg.Live.MaxDim,
			LiveJPEGQuality: cfg.Live.JPEGQuality,
			StaticMaxDim:    cfg.Static.MaxDim,
			StrokeSize:      cfg.Render.StrokeSize,
			Timeout:         cfg.Model.Timeout.Duration,
		},
		LiveInterval: cfg.Live.Interval.Duration,
		LiveBackoff:  cfg.Live.Backoff.Duration,
		DemoInterval: cfg.Demo.Interval.Duration,
		DemoImages:   demoImages,
	})
	defer app.Close()

	app.Orchestrator.SetNotifier(orchestrator.NotifierFunc(func(msg string) {
		logger.Warn("notice", "message", msg)
	}))
	applyConfig(app.Store, cfg)

	if container != "" {
		size, err := parseSize(container)
		if err != nil {
			log.Fatalf("Invalid -container: %v", err)
		}
		app.Store.SetContainerSize(size)
	}

	opts := render.Options{
		Mask:       compositor.Options{AlphaScale: cfg.Render.MaskAlpha, Opacity: cfg.Render.MaskOpacity},
		StrokeSize: cfg.Render.StrokeSize,
	}
	if cfg.Render.Font != "" {
		face, err := processing.LoadLabelFont(cfg.Render.Font, cfg.Render.FontSize)
		if err != nil {
			log.Fatalf("Failed to load label font: %v", err)
		}
		opts.Font = face
	}

	switch {
	case live:
		runLive(ctx, app, logger)
	case demo:
		runDemo(ctx, app, cfg, opts, logger)
	default:
		runStatic(ctx, app, cfg, opts, processor, in, strokesPath)
	}
}

func loadConfig(path string) (*config.Config, error) {
	if path == "" {
		path = config.GetConfigPath()
		if !utils.FileExists(path) {
			return config.Default(), nil
		}
	}
	return config.LoadFromFile(path)
}

func newVisionClient(ctx context.Context, cfg *config.Config) (client.VisionClient, error) {
	switch cfg.Model.Backend {
	case config.BackendOllama:
		url := cfg.Model.URL
		if url == "" {
			url = "http://localhost:11434/api/chat"
		}
		return ollama.NewClient(url)
	case config.BackendLlamaCpp:
		return llamacpp.NewClient(cfg.Model.URL, cfg.APIKey)
	default:
		return gemini.NewClient(ctx, gemini.Options{APIKey: cfg.APIKey, BaseURL: cfg.Model.URL})
	}
}

func applyConfig(st *store.Store, cfg *config.Config) {
	for name, parts := range cfg.Detection.PromptParts {
		if m, err := types.ParseDetectionMode(name); err == nil {
			st.SetPromptParts(m, detection.PromptParts(parts))
		}
	}
	st.SetMode(cfg.DetectionMode())
	if cfg.Detection.Target != "" {
		st.SetTarget(cfg.Detection.Target)
	}
	st.SetModel(cfg.Model.Name)
	st.SetTemperature(cfg.Model.Temperature)
	st.SetThinking(cfg.Model.Thinking)
	if i := cfg.Render.StrokeColor; i >= 0 && i < len(store.StrokeColors) {
		st.SetActiveColor(store.StrokeColors[i])
	}
}

func runStatic(ctx context.Context, app *session.App, cfg *config.Config, opts render.Options, processor *processing.Processor, in, strokesPath string) {
	img, err := processor.LoadImageSmart(in)
	if err != nil {
		log.Fatalf("Failed to load image: %v", err)
	}
	if err := app.UploadImage(img); err != nil {
		log.Fatal(err)
	}
	if strokesPath != "" {
		if err := loadStrokes(app.Store, strokesPath); err != nil {
			log.Fatalf("Failed to load strokes: %v", err)
		}
	}

	sendErr := app.Send(ctx)
	diag := app.Store.Diagnostics()

	if err := utils.EnsureDir(cfg.Render.OutputDir); err != nil {
		log.Fatal(err)
	}
	if strokesPath != "" {
		b := img.Bounds()
		rect := types.DisplayRect{Width: float64(b.Dx()), Height: float64(b.Dy())}
		writeText(filepath.Join(cfg.Render.OutputDir, "strokes.svg"), annotate.SVG(app.Store.Strokes(), rect, cfg.Render.StrokeSize))
	}
	writeText(filepath.Join(cfg.Render.OutputDir, "model_request.json"), diag.RequestJSON)
	writeText(filepath.Join(cfg.Render.OutputDir, "model_output.json"), diag.ResponseJSON)

	if sendErr != nil {
		log.Fatalf("Detection failed after %s: %v", diag.ResponseTime, sendErr)
	}

	out, err := renderStore(app.Store, img, opts)
	if err != nil {
		log.Fatalf("Render failed: %v", err)
	}
	path := utils.GenerateOutputFilename(in, cfg.Render.OutputDir, "", "_annotated", cfg.Render.Format)
	if err := processor.SaveImage(out, path, cfg.Render.Format, cfg.Render.Quality, false); err != nil {
		log.Fatalf("Failed to save overlay: %v", err)
	}

	var size int64
	if info, err := os.Stat(path); err == nil {
		size = info.Size()
	}
	log.Printf("mode=%s results=%d time=%s wrote %s (%s)",
		app.Store.Mode(), resultCount(app.Store), diag.ResponseTime, path, utils.FormatFileSize(size))
}

func runLive(ctx context.Context, app *session.App, logger *slog.Logger) {
	unsubscribe := app.Store.Subscribe(store.ChangeResults, func(store.Change) {
		logger.Info("live.results", "mode", app.Store.Mode().String(), "count", resultCount(app.Store), "labels", resultLabels(app.Store))
	})
	defer unsubscribe()

	app.Start(ctx)
	if err := app.SetLive(true); err != nil {
		log.Fatalf("Failed to start live mode: %v", err)
	}
	<-ctx.Done()
	if err := app.SetLive(false); err != nil {
		logger.Warn("live.camera_close", "error", err)
	}
}

func runDemo(ctx context.Context, app *session.App, cfg *config.Config, opts render.Options, logger *slog.Logger) {
	if len(cfg.Demo.Images) == 0 {
		log.Fatal("No demo images configured (demo.images)")
	}
	if err := utils.EnsureDir(cfg.Render.OutputDir); err != nil {
		log.Fatal(err)
	}

	swapped := make(chan struct{}, 1)
	unsubscribe := app.Store.Subscribe(store.ChangeMedia, func(store.Change) {
		select {
		case swapped <- struct{}{}:
		default:
		}
	})
	defer unsubscribe()

	app.Start(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-swapped:
		}

		img := app.Store.Image()
		if img == nil {
			continue
		}
		if err := app.Send(ctx); err != nil {
			if !errors.Is(err, orchestrator.ErrStaleResponse) {
				logger.Warn("demo.send", "error", err)
			}
			continue
		}
		out, err := renderStore(app.Store, img, opts)
		if err != nil {
			logger.Warn("demo.render", "error", err)
			continue
		}
		path := filepath.Join(cfg.Render.OutputDir, fmt.Sprintf("demo_%03d.%s", app.Store.Epoch(), strings.ToLower(cfg.Render.Format)))
		if err := processing.NewProcessor().SaveImage(out, path, cfg.Render.Format, cfg.Render.Quality, false); err != nil {
			logger.Warn("demo.save", "path", path, "error", err)
			continue
		}
		logger.Info("demo.wrote", "path", path, "count", resultCount(app.Store))
	}
}

// renderStore draws the store's scene over img, letterboxed into the
// container when one is set.
func renderStore(st *store.Store, img image.Image, opts render.Options) (*image.NRGBA, error) {
	scene := render.SceneFromStore(st)
	container, _, _ := st.Layout()
	if container.Valid() {
		return render.Render(img, container, scene, opts)
	}
	return render.Overlay(img, scene, opts), nil
}

func resultCount(st *store.Store) int {
	switch st.Mode() {
	case types.SegmentationMasks:
		return len(st.Masks())
	case types.Points:
		return len(st.Points())
	default:
		return len(st.BoundingBoxes())
	}
}

func resultLabels(st *store.Store) []string {
	var labels []string
	switch st.Mode() {
	case types.SegmentationMasks:
		for _, m := range st.Masks() {
			labels = append(labels, m.Label)
		}
	case types.Points:
		for _, p := range st.Points() {
			labels = append(labels, p.Label)
		}
	default:
		for _, b := range st.BoundingBoxes() {
			labels = append(labels, b.Label)
		}
	}
	return labels
}

// strokeFile is the on-disk stroke format: normalized [x, y] pairs and a
// palette index.
type strokeFile struct {
	Color  int          `json:"color"`
	Points [][2]float64 `json:"points"`
}

func loadStrokes(st *store.Store, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	var strokes []strokeFile
	if err := json.Unmarshal(data, &strokes); err != nil {
		return fmt.Errorf("failed to parse %s: %w", path, err)
	}
	for i, s := range strokes {
		if len(s.Points) == 0 {
			continue
		}
		if s.Color < 0 || s.Color >= len(store.StrokeColors) {
			return fmt.Errorf("stroke %d: color index %d out of range", i, s.Color)
		}
		st.BeginStroke(types.Vec2{X: s.Points[0][0], Y: s.Points[0][1]}, store.StrokeColors[s.Color])
		for _, p := range s.Points[1:] {
			st.ExtendStroke(types.Vec2{X: p[0], Y: p[1]})
		}
		st.EndStroke()
	}
	return nil
}

func loadDemoImages(processor *processing.Processor, sources []string) ([]image.Image, error) {
	var paths []string
	for _, src := range sources {
		if utils.DirExists(src) {
			files, err := utils.ListImageFiles(src)
			if err != nil {
				return nil, err
			}
			paths = append(paths, files...)
			continue
		}
		paths = append(paths, src)
	}

	images := make([]image.Image, 0, len(paths))
	for _, p := range paths {
		img, err := processor.LoadImageSmart(p)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", p, err)
		}
		images = append(images, img)
	}
	return images, nil
}

func parseSize(s string) (types.Size, error) {
	w, h, ok := strings.Cut(strings.ToLower(s), "x")
	if !ok {
		return types.Size{}, fmt.Errorf("expected WxH, got %q", s)
	}
	width, err := strconv.Atoi(w)
	if err != nil {
		return types.Size{}, err
	}
	height, err := strconv.Atoi(h)
	if err != nil {
		return types.Size{}, err
	}
	size := types.Size{Width: float64(width), Height: float64(height)}
	if !size.Valid() {
		return types.Size{}, fmt.Errorf("size must be positive, got %q", s)
	}
	return size, nil
}

func writeText(path, text string) {
	if text == "" {
		return
	}
	if err := os.WriteFile(path, []byte(text), 0o644); err != nil {
		log.Printf("write %s failed: %v", path, err)
	}
}
