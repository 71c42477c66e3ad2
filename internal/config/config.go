package config

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/menta2k/image-annotator/pkg/types"
)

// Supported model backends.
const (
	BackendGemini   = "gemini"
	BackendOllama   = "ollama"
	BackendLlamaCpp = "llamacpp"
)

// Config holds the application configuration
type Config struct {
	Model     ModelConfig     `json:"model"`
	Detection DetectionConfig `json:"detection"`
	Live      LiveConfig      `json:"live"`
	Static    StaticConfig    `json:"static"`
	Render    RenderConfig    `json:"render"`
	Demo      DemoConfig      `json:"demo"`
	Log       LogConfig       `json:"log"`

	// APIKey is never written to disk. It comes from the environment.
	APIKey string `json:"-"`
}

// ModelConfig selects and tunes the model backend
type ModelConfig struct {
	Backend     string   `json:"backend"`
	Name        string   `json:"name"`
	URL         string   `json:"url,omitempty"`
	Temperature float64  `json:"temperature"`
	Thinking    bool     `json:"thinking"`
	Timeout     Duration `json:"timeout"`
}

// DetectionConfig holds the initial detection mode and instruction overrides
type DetectionConfig struct {
	Mode   string `json:"mode"`
	Target string `json:"target"`
	// PromptParts overrides the [prefix, target, suffix] template per mode name.
	PromptParts map[string][3]string `json:"prompt_parts,omitempty"`
}

// LiveConfig holds live capture settings
type LiveConfig struct {
	Interval    Duration `json:"interval"`
	Backoff     Duration `json:"backoff"`
	MaxDim      int      `json:"max_dim"`
	JPEGQuality int      `json:"jpeg_quality"`
	CameraIndex int      `json:"camera_index"`
}

// StaticConfig holds still-image send settings
type StaticConfig struct {
	MaxDim int `json:"max_dim"`
}

// RenderConfig holds overlay rendering settings
type RenderConfig struct {
	MaskAlpha   float64 `json:"mask_alpha"`
	MaskOpacity float64 `json:"mask_opacity"`
	StrokeSize  float64 `json:"stroke_size"`
	StrokeColor int     `json:"stroke_color"`
	Font        string  `json:"font,omitempty"`
	FontSize    float64 `json:"font_size"`
	Format      string  `json:"format"`
	Quality     int     `json:"quality"`
	OutputDir   string  `json:"output_dir"`
}

// DemoConfig holds demo image rotation settings
type DemoConfig struct {
	Interval Duration `json:"interval"`
	Images   []string `json:"images,omitempty"`
}

// LogConfig holds logging settings
type LogConfig struct {
	Level string `json:"level"`
}

// Duration is a time.Duration that marshals as a string like "6s".
type Duration struct {
	time.Duration
}

// MarshalJSON implements json.Marshaler.
func (d Duration) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.String())
}

// UnmarshalJSON accepts a duration string or a number of seconds.
func (d *Duration) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err == nil {
		v, err := time.ParseDuration(s)
		if err != nil {
			return err
		}
		d.Duration = v
		return nil
	}
	var secs float64
	if err := json.Unmarshal(b, &secs); err != nil {
		return fmt.Errorf("duration must be a string or seconds: %w", err)
	}
	d.Duration = time.Duration(secs * float64(time.Second))
	return nil
}

// Default returns a configuration with default values
func Default() *Config {
	return &Config{
		Model: ModelConfig{
			Backend:     BackendGemini,
			Name:        types.ModelGeminiFlash,
			Temperature: 0.5,
			Timeout:     Duration{2 * time.Minute},
		},
		Detection: DetectionConfig{
			Mode:   "boxes",
			Target: "",
		},
		Live: LiveConfig{
			Interval:    Duration{6 * time.Second},
			Backoff:     Duration{20 * time.Second},
			MaxDim:      320,
			JPEGQuality: 50,
		},
		Static: StaticConfig{
			MaxDim: 640,
		},
		Render: RenderConfig{
			MaskAlpha:   0.6,
			MaskOpacity: 0.8,
			StrokeSize:  8,
			StrokeColor: 2,
			FontSize:    13,
			Format:      "png",
			Quality:     90,
			OutputDir:   "./output",
		},
		Demo: DemoConfig{
			Interval: Duration{10 * time.Second},
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}

// LoadFromFile loads configuration from a JSON file on top of the defaults
func LoadFromFile(filename string) (*Config, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	config := Default()
	if err := json.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	return config, nil
}

// SaveToFile saves configuration to a JSON file
func (c *Config) SaveToFile(filename string) error {
	dir := filepath.Dir(filename)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(filename, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// LoadEnv loads an optional .env file and reads the API credential for the
// configured backend. A missing .env file is not an error.
func (c *Config) LoadEnv(files ...string) error {
	if err := godotenv.Load(files...); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to load env file: %w", err)
	}

	switch c.Model.Backend {
	case BackendLlamaCpp:
		c.APIKey = os.Getenv("OPENAI_API_KEY")
	default:
		c.APIKey = firstEnv("GEMINI_API_KEY", "API_KEY")
	}
	if url := os.Getenv("OLLAMA_HOST"); url != "" && c.Model.Backend == BackendOllama && c.Model.URL == "" {
		c.Model.URL = url
	}
	return nil
}

func firstEnv(keys ...string) string {
	for _, k := range keys {
		if v := os.Getenv(k); v != "" {
			return v
		}
	}
	return ""
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	switch c.Model.Backend {
	case BackendGemini, BackendOllama, BackendLlamaCpp:
	default:
		return fmt.Errorf("model.backend must be one of gemini, ollama, llamacpp")
	}

	if c.Model.Name == "" {
		return fmt.Errorf("model.name cannot be empty")
	}

	if c.Model.Backend == BackendGemini && !slices.Contains(types.AvailableModels, c.Model.Name) {
		return fmt.Errorf("model.name must be one of %s for the gemini backend", strings.Join(types.AvailableModels, ", "))
	}

	if c.Model.Timeout.Duration <= 0 {
		return fmt.Errorf("model.timeout must be positive")
	}

	if c.Model.Temperature < 0 || c.Model.Temperature > 2 {
		return fmt.Errorf("model.temperature must be between 0 and 2")
	}

	if _, err := types.ParseDetectionMode(c.Detection.Mode); err != nil {
		return fmt.Errorf("detection.mode: %w", err)
	}

	for name := range c.Detection.PromptParts {
		if _, err := types.ParseDetectionMode(name); err != nil {
			return fmt.Errorf("detection.prompt_parts: %w", err)
		}
	}

	if c.Live.Interval.Duration <= 0 || c.Live.Backoff.Duration < c.Live.Interval.Duration {
		return fmt.Errorf("live.interval must be positive and live.backoff at least live.interval")
	}

	if c.Live.MaxDim < 1 || c.Static.MaxDim < 1 {
		return fmt.Errorf("live.max_dim and static.max_dim must be positive")
	}

	if c.Live.JPEGQuality < 1 || c.Live.JPEGQuality > 100 {
		return fmt.Errorf("live.jpeg_quality must be between 1 and 100")
	}

	if c.Render.MaskAlpha < 0 || c.Render.MaskAlpha > 1 || c.Render.MaskOpacity < 0 || c.Render.MaskOpacity > 1 {
		return fmt.Errorf("render.mask_alpha and render.mask_opacity must be between 0 and 1")
	}

	if c.Render.StrokeSize <= 0 {
		return fmt.Errorf("render.stroke_size must be positive")
	}

	if c.Render.FontSize <= 0 {
		return fmt.Errorf("render.font_size must be positive")
	}

	if c.Demo.Interval.Duration <= 0 {
		return fmt.Errorf("demo.interval must be positive")
	}

	return nil
}

// DetectionMode returns the parsed initial mode. Call after Validate.
func (c *Config) DetectionMode() types.DetectionMode {
	mode, _ := types.ParseDetectionMode(c.Detection.Mode)
	return mode
}

// NewLogger builds the JSON logger for the configured level.
func (c *Config) NewLogger() *slog.Logger {
	var level slog.Level
	switch strings.ToLower(c.Log.Level) {
	case "debug":
		level = slog.LevelDebug
	case "warn", "warning":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}
	return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: level}))
}

// GetConfigPath returns the default configuration file path
func GetConfigPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "./config.json"
	}
	return filepath.Join(home, ".config", "image-annotator", "config.json")
}
