// Package config loads the FaceWatch configuration from environment
// variables layered over embedded YAML defaults.
package config

import (
	_ "embed"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

//go:embed defaults.yaml
var defaultsYAML []byte

type Config struct {
	Pipeline Pipeline
	Gallery  Gallery
	Alerting Alerting
	Detector DetectorConfig
	Database DatabaseConfig
	SMTP     SMTPConfig
	Twilio   TwilioConfig
}

// Pipeline holds the tunables of the frame-processing stage.
type Pipeline struct {
	FramesDir  string // watched directory written by the capture process
	MatchedDir string // annotated match images are stored under <MatchedDir>/<subject>

	MatchThreshold      float64       `yaml:"match_threshold"`      // strict upper bound for a match (Euclidean)
	ResizeWidth         int           `yaml:"resize_width"`         // downscale frames wider than this
	BlurThreshold       float64       `yaml:"blur_threshold"`       // variance-of-Laplacian below this means blurry
	BrightnessThreshold float64       `yaml:"brightness_threshold"` // mean luma below this means too dark
	BrightnessBoost     int           `yaml:"brightness_boost"`     // additive luma boost for dark frames
	TimeWindow          time.Duration `yaml:"time_window"`          // frames older than this are dropped
	PollInterval        time.Duration `yaml:"poll_interval"`
	Workers             int           `yaml:"workers"`
}

type Gallery struct {
	RefreshInterval time.Duration `yaml:"refresh_interval"`
}

type Alerting struct {
	ThrottleWindow   time.Duration `yaml:"throttle_window"`
	RecordInterval   time.Duration `yaml:"record_interval"`
	DispatchInterval time.Duration `yaml:"dispatch_interval"`
}

type DetectorConfig struct {
	URL string // face detection sidecar, defaults to http://localhost:8000
	Dim int    // system-wide embedding dimensionality, defaults to 128
}

type DatabaseConfig struct {
	URL          string // PostgreSQL connection URL
	MaxOpenConns int    // Maximum open connections (default 25)
	MaxIdleConns int    // Maximum idle connections (default 5)
}

type SMTPConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
}

// TwilioConfig configures the SMS and voice gateway.
type TwilioConfig struct {
	BaseURL    string // override for testing; defaults to https://api.twilio.com
	AccountSID string
	AuthToken  string
	From       string // E.164 sender number
}

type yamlDefaults struct {
	Pipeline Pipeline `yaml:"pipeline"`
	Gallery  Gallery  `yaml:"gallery"`
	Alerting Alerting `yaml:"alerting"`
}

// envInt reads an environment variable and parses it as a positive integer.
// Returns the default value if the env var is unset, empty, or invalid.
func envInt(key string, defaultVal int) int {
	s := os.Getenv(key)
	if s == "" {
		return defaultVal
	}
	if n, err := strconv.Atoi(s); err == nil && n > 0 {
		return n
	}
	return defaultVal
}

// envFloat reads an environment variable and parses it as a float.
func envFloat(key string, defaultVal float64) float64 {
	s := os.Getenv(key)
	if s == "" {
		return defaultVal
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil && f > 0 {
		return f
	}
	return defaultVal
}

// envDuration reads an environment variable and parses it as a Go duration.
func envDuration(key string, defaultVal time.Duration) time.Duration {
	s := os.Getenv(key)
	if s == "" {
		return defaultVal
	}
	if d, err := time.ParseDuration(s); err == nil && d > 0 {
		return d
	}
	return defaultVal
}

func envString(key, defaultVal string) string {
	if s := os.Getenv(key); s != "" {
		return s
	}
	return defaultVal
}

func Load() *Config {
	var defs yamlDefaults
	if err := yaml.Unmarshal(defaultsYAML, &defs); err != nil {
		// Embedded file, cannot fail outside of a build error.
		panic("failed to unmarshal embedded defaults.yaml: " + err.Error())
	}

	return &Config{
		Pipeline: Pipeline{
			FramesDir:           os.Getenv("FRAMES_DIR"),
			MatchedDir:          envString("MATCHED_DIR", "matched_faces"),
			MatchThreshold:      envFloat("MATCH_THRESHOLD", defs.Pipeline.MatchThreshold),
			ResizeWidth:         envInt("RESIZE_WIDTH", defs.Pipeline.ResizeWidth),
			BlurThreshold:       envFloat("BLUR_THRESHOLD", defs.Pipeline.BlurThreshold),
			BrightnessThreshold: envFloat("BRIGHTNESS_THRESHOLD", defs.Pipeline.BrightnessThreshold),
			BrightnessBoost:     envInt("BRIGHTNESS_BOOST", defs.Pipeline.BrightnessBoost),
			TimeWindow:          envDuration("TIME_WINDOW", defs.Pipeline.TimeWindow),
			PollInterval:        envDuration("POLL_INTERVAL", defs.Pipeline.PollInterval),
			Workers:             envInt("WORKERS", defs.Pipeline.Workers),
		},
		Gallery: Gallery{
			RefreshInterval: envDuration("GALLERY_REFRESH_INTERVAL", defs.Gallery.RefreshInterval),
		},
		Alerting: Alerting{
			ThrottleWindow:   envDuration("ALERT_THROTTLE_WINDOW", defs.Alerting.ThrottleWindow),
			RecordInterval:   envDuration("ALERT_RECORD_INTERVAL", defs.Alerting.RecordInterval),
			DispatchInterval: envDuration("ALERT_DISPATCH_INTERVAL", defs.Alerting.DispatchInterval),
		},
		Detector: DetectorConfig{
			URL: envString("DETECTOR_URL", "http://localhost:8000"),
			Dim: envInt("EMBEDDING_DIM", 128),
		},
		Database: DatabaseConfig{
			URL:          os.Getenv("DATABASE_URL"),
			MaxOpenConns: envInt("DATABASE_MAX_OPEN_CONNS", 25),
			MaxIdleConns: envInt("DATABASE_MAX_IDLE_CONNS", 5),
		},
		SMTP: SMTPConfig{
			Host:     os.Getenv("SMTP_HOST"),
			Port:     envInt("SMTP_PORT", 587),
			Username: os.Getenv("SMTP_USERNAME"),
			Password: os.Getenv("SMTP_PASSWORD"),
			From:     os.Getenv("SMTP_FROM"),
		},
		Twilio: TwilioConfig{
			BaseURL:    envString("TWILIO_BASE_URL", "https://api.twilio.com"),
			AccountSID: os.Getenv("TWILIO_ACCOUNT_SID"),
			AuthToken:  os.Getenv("TWILIO_AUTH_TOKEN"),
			From:       os.Getenv("TWILIO_FROM"),
		},
	}
}
