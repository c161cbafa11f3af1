package config

import (
	"encoding/json"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Backend names accepted by Config.Backend.
const (
	BackendHTTP = "http"
	BackendWS   = "ws"
	BackendDemo = "demo"
)

// Config holds runtime configuration for the detection client.
// Fields may be loaded from a JSON file, then overridden by the environment
// (.env file and VISION_* variables) and finally by command-line flags.
type Config struct {
	Debug bool `json:"debug"`

	// Detector backend
	Backend     string `json:"backend"`
	DetectorURL string `json:"detector_url"`
	Weight      string `json:"weight"`

	// Sampling loop
	SampleIntervalMs int `json:"sample_interval_ms"` // minimum gap between two submissions
	RequestTimeoutMs int `json:"request_timeout_ms"`
	BackoffMaxMs     int `json:"backoff_max_ms"` // 0 disables failure backoff
	TickIntervalMs   int `json:"tick_interval_ms"`

	// Weights polling at startup
	WeightsPollAttempts   int `json:"weights_poll_attempts"`
	WeightsPollIntervalMs int `json:"weights_poll_interval_ms"`

	// Media
	CameraDevice   string  `json:"camera_device"` // numeric device id or "screen"
	PlaybackFPS    float64 `json:"playback_fps"`
	JPEGQuality    int     `json:"jpeg_quality"`
	MaxUploadBytes int64   `json:"max_upload_bytes"`

	// Preview container
	PreviewW int  `json:"preview_w"`
	PreviewH int  `json:"preview_h"`
	DarkMode bool `json:"dark_mode"`

	// Demo backend
	DemoDelayMinMs int    `json:"demo_delay_min_ms"`
	DemoDelayMaxMs int    `json:"demo_delay_max_ms"`
	DemoWeightsDB  string `json:"demo_weights_db"`
}

// DefaultConfig returns a Config populated with standard defaults.
func DefaultConfig() *Config {
	return &Config{
		Debug:                 false,
		Backend:               BackendHTTP,
		DetectorURL:           "http://localhost:8000",
		Weight:                "",
		SampleIntervalMs:      500,
		RequestTimeoutMs:      10000,
		BackoffMaxMs:          8000,
		TickIntervalMs:        16,
		WeightsPollAttempts:   10,
		WeightsPollIntervalMs: 1500,
		CameraDevice:          "0",
		PlaybackFPS:           30,
		JPEGQuality:           80,
		MaxUploadBytes:        500 << 20,
		PreviewW:              960,
		PreviewH:              540,
		DemoDelayMinMs:        1000,
		DemoDelayMaxMs:        2000,
		DemoWeightsDB:         ":memory:",
	}
}

// Validate clamps/normalizes values to safe ranges.
func (c *Config) Validate() error {
	switch c.Backend {
	case BackendHTTP, BackendWS, BackendDemo:
	default:
		c.Backend = BackendHTTP
	}
	c.DetectorURL = strings.TrimRight(strings.TrimSpace(c.DetectorURL), "/")
	if c.DetectorURL == "" {
		c.DetectorURL = "http://localhost:8000"
	}
	if c.SampleIntervalMs < 50 {
		c.SampleIntervalMs = 500
	}
	if c.RequestTimeoutMs <= 0 {
		c.RequestTimeoutMs = 10000
	}
	if c.BackoffMaxMs < 0 {
		c.BackoffMaxMs = 0
	}
	if c.BackoffMaxMs > 0 && c.BackoffMaxMs < c.SampleIntervalMs {
		c.BackoffMaxMs = c.SampleIntervalMs
	}
	if c.TickIntervalMs <= 0 || c.TickIntervalMs > 1000 {
		c.TickIntervalMs = 16
	}
	if c.WeightsPollAttempts <= 0 {
		c.WeightsPollAttempts = 10
	}
	if c.WeightsPollIntervalMs <= 0 {
		c.WeightsPollIntervalMs = 1500
	}
	if strings.TrimSpace(c.CameraDevice) == "" {
		c.CameraDevice = "0"
	}
	if c.PlaybackFPS <= 0 || c.PlaybackFPS > 120 {
		c.PlaybackFPS = 30
	}
	if c.JPEGQuality < 1 || c.JPEGQuality > 100 {
		c.JPEGQuality = 80
	}
	if c.MaxUploadBytes <= 0 {
		c.MaxUploadBytes = 500 << 20
	}
	if c.PreviewW < 160 {
		c.PreviewW = 960
	}
	if c.PreviewH < 90 {
		c.PreviewH = 540
	}
	if c.DemoDelayMinMs < 0 {
		c.DemoDelayMinMs = 0
	}
	if c.DemoDelayMaxMs < c.DemoDelayMinMs {
		c.DemoDelayMaxMs = c.DemoDelayMinMs
	}
	if c.DemoWeightsDB == "" {
		c.DemoWeightsDB = ":memory:"
	}
	return nil
}

// SampleInterval is the throttle window of the sampling loop.
func (c *Config) SampleInterval() time.Duration { return ms(c.SampleIntervalMs) }

// RequestTimeout bounds a single detection call.
func (c *Config) RequestTimeout() time.Duration { return ms(c.RequestTimeoutMs) }

// BackoffMax caps the delay after consecutive detection failures.
func (c *Config) BackoffMax() time.Duration { return ms(c.BackoffMaxMs) }

// TickInterval is the period of the UI refresh tick.
func (c *Config) TickInterval() time.Duration { return ms(c.TickIntervalMs) }

// WeightsPollInterval is the delay between two startup weight list requests.
func (c *Config) WeightsPollInterval() time.Duration { return ms(c.WeightsPollIntervalMs) }

// DemoDelay returns the artificial latency range of the demo backend.
func (c *Config) DemoDelay() (min, max time.Duration) {
	return ms(c.DemoDelayMinMs), ms(c.DemoDelayMaxMs)
}

func ms(v int) time.Duration { return time.Duration(v) * time.Millisecond }

// Load attempts to read configuration from the given JSON file path. If the file does not
// exist it returns DefaultConfig(). On JSON error it returns defaults with the error.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()
	if path == "" {
		return cfg, nil
	}
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return cfg, err
	}
	defer f.Close()
	dec := json.NewDecoder(f)
	if err := dec.Decode(cfg); err != nil {
		return DefaultConfig(), err
	}
	_ = cfg.Validate()
	return cfg, nil
}

// ApplyEnv loads envFile (if present) into the process environment and
// overrides fields from VISION_* variables. A missing env file is not an error.
func (c *Config) ApplyEnv(envFile string) error {
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil && !os.IsNotExist(err) {
			return err
		}
	}
	if v := getEnv("VISION_BACKEND"); v != "" {
		c.Backend = strings.ToLower(v)
	}
	if v := getEnv("VISION_DETECTOR_URL"); v != "" {
		c.DetectorURL = v
	}
	if v := getEnv("VISION_WEIGHT"); v != "" {
		c.Weight = v
	}
	if v := getEnv("VISION_CAMERA_DEVICE"); v != "" {
		c.CameraDevice = v
	}
	if v := getEnv("VISION_DEMO_WEIGHTS_DB"); v != "" {
		c.DemoWeightsDB = v
	}
	if v, ok := getEnvAsInt("VISION_SAMPLE_INTERVAL_MS"); ok {
		c.SampleIntervalMs = v
	}
	if v, ok := getEnvAsInt("VISION_REQUEST_TIMEOUT_MS"); ok {
		c.RequestTimeoutMs = v
	}
	if v, ok := getEnvAsBool("VISION_DEBUG"); ok {
		c.Debug = v
	}
	return c.Validate()
}

func getEnv(key string) string { return strings.TrimSpace(os.Getenv(key)) }

func getEnvAsInt(key string) (int, bool) {
	if value := getEnv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i, true
		}
	}
	return 0, false
}

func getEnvAsBool(key string) (bool, bool) {
	if value := getEnv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b, true
		}
	}
	return false, false
}

// Save writes the configuration to the given path in JSON format.
func (c *Config) Save(path string) error {
	_ = c.Validate()
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")
	return enc.Encode(c)
}
