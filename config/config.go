package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// RenderMode selects how captions are burned into the video.
type RenderMode string

const (
	// RenderModeSubtitles burns an SRT track through the subtitles filter
	// with a force_style override.
	RenderModeSubtitles RenderMode = "subtitles"
	// RenderModeDrawtext draws each caption with a per-caption drawtext
	// filter built from the overlay style arguments.
	RenderModeDrawtext RenderMode = "drawtext"
)

type Config struct {
	// Server settings
	ServerPort      string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration
	Debug           bool

	// Application paths
	LogDir      string
	FastTempDir string // optional override for the scratch root
	FontDir     string

	// External tools
	FFmpegPath  string
	FFprobePath string
	WhisperPath string
	YTDLPPath   string
	ModelDir    string

	// Upload limits
	MaxUploadBytes int64

	// Per-phase tool budgets
	ProbeTimeout      time.Duration
	ExtractTimeout    time.Duration
	TranscribeTimeout time.Duration
	RenderTimeout     time.Duration
	DownloadTimeout   time.Duration

	// Transcription defaults
	DefaultLanguage string
	RenderMode      RenderMode

	// CORS configuration
	CORS CORSConfig

	// Rate limiting
	RateLimit RateLimitConfig
}

type CORSConfig struct {
	Enabled        bool
	AllowedOrigins []string
	AllowedMethods []string
	AllowedHeaders []string
}

type RateLimitConfig struct {
	Enabled           bool
	RequestsPerSecond float64
	Burst             int
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	cfg := &Config{
		ServerPort:      getEnv("SERVER_PORT", "8000"),
		ReadTimeout:     getEnvAsDuration("READ_TIMEOUT", 15*time.Minute),
		WriteTimeout:    getEnvAsDuration("WRITE_TIMEOUT", 15*time.Minute),
		IdleTimeout:     getEnvAsDuration("IDLE_TIMEOUT", 60*time.Second),
		ShutdownTimeout: getEnvAsDuration("SHUTDOWN_TIMEOUT", 30*time.Second),
		Debug:           getEnvAsBool("DEBUG", false),

		LogDir:      getEnv("LOG_DIR", "./logs"),
		FastTempDir: getEnv("FAST_TEMP", ""),
		FontDir:     getEnv("FONT_DIR", "/usr/share/fonts/truetype"),

		FFmpegPath:  getEnv("FFMPEG_PATH", "ffmpeg"),
		FFprobePath: getEnv("FFPROBE_PATH", "ffprobe"),
		WhisperPath: getEnv("WHISPER_PATH", "whisper.cpp"),
		YTDLPPath:   getEnv("YTDLP_PATH", "yt-dlp"),
		ModelDir:    getEnv("MODEL_DIR", "./models"),

		MaxUploadBytes: getEnvAsInt64("MAX_UPLOAD_BYTES", 500*1024*1024),

		ProbeTimeout:      getEnvAsDuration("PROBE_TIMEOUT", 5*time.Second),
		ExtractTimeout:    getEnvAsDuration("EXTRACT_TIMEOUT", 5*time.Minute),
		TranscribeTimeout: getEnvAsDuration("TRANSCRIBE_TIMEOUT", 30*time.Minute),
		RenderTimeout:     getEnvAsDuration("RENDER_TIMEOUT", 10*time.Minute),
		DownloadTimeout:   getEnvAsDuration("DOWNLOAD_TIMEOUT", 15*time.Minute),

		DefaultLanguage: getEnv("DEFAULT_LANGUAGE", "pt"),
		RenderMode:      RenderMode(getEnv("RENDER_MODE", string(RenderModeSubtitles))),

		CORS: CORSConfig{
			Enabled:        getEnvAsBool("CORS_ENABLED", true),
			AllowedOrigins: getEnvAsStringSlice("CORS_ALLOWED_ORIGINS", []string{"*"}),
			AllowedMethods: getEnvAsStringSlice("CORS_ALLOWED_METHODS", []string{"GET", "POST", "OPTIONS"}),
			AllowedHeaders: getEnvAsStringSlice("CORS_ALLOWED_HEADERS", []string{"Content-Type"}),
		},

		RateLimit: RateLimitConfig{
			Enabled:           getEnvAsBool("RATE_LIMIT_ENABLED", true),
			RequestsPerSecond: getEnvAsFloat("RATE_LIMIT_RPS", 5),
			Burst:             getEnvAsInt("RATE_LIMIT_BURST", 10),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) Validate() error {
	if err := os.MkdirAll(c.LogDir, 0o755); err != nil {
		return fmt.Errorf("failed to create log directory: %w", err)
	}
	if c.MaxUploadBytes <= 0 {
		return fmt.Errorf("max upload size must be positive")
	}
	if c.ReadTimeout <= 0 || c.WriteTimeout <= 0 {
		return fmt.Errorf("server timeouts must be positive")
	}
	switch c.RenderMode {
	case RenderModeSubtitles, RenderModeDrawtext:
	default:
		return fmt.Errorf("unknown render mode: %s", c.RenderMode)
	}
	return nil
}

// Helper functions for reading environment variables
func getEnv(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value, exists := os.LookupEnv(key); exists {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvAsInt64(key string, defaultValue int64) int64 {
	if value, exists := os.LookupEnv(key); exists {
		if intVal, err := strconv.ParseInt(value, 10, 64); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	if value, exists := os.LookupEnv(key); exists {
		if floatVal, err := strconv.ParseFloat(value, 64); err == nil {
			return floatVal
		}
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value, exists := os.LookupEnv(key); exists {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value, exists := os.LookupEnv(key); exists {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}

func getEnvAsStringSlice(key string, defaultValue []string) []string {
	if value, exists := os.LookupEnv(key); exists {
		if value = strings.TrimSpace(value); value != "" {
			return strings.Split(value, ",")
		}
	}
	return defaultValue
}
