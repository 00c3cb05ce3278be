package config

import (
	"path/filepath"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("LOG_DIR", filepath.Join(t.TempDir(), "logs"))

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.ServerPort != "8000" {
		t.Errorf("ServerPort = %q, want 8000", cfg.ServerPort)
	}
	if cfg.MaxUploadBytes != 500*1024*1024 {
		t.Errorf("MaxUploadBytes = %d, want 500MB", cfg.MaxUploadBytes)
	}
	if cfg.DefaultLanguage != "pt" {
		t.Errorf("DefaultLanguage = %q, want pt", cfg.DefaultLanguage)
	}
	if cfg.RenderMode != RenderModeSubtitles {
		t.Errorf("RenderMode = %q, want subtitles", cfg.RenderMode)
	}
	if cfg.TranscribeTimeout != 30*time.Minute {
		t.Errorf("TranscribeTimeout = %v, want 30m", cfg.TranscribeTimeout)
	}
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("LOG_DIR", filepath.Join(t.TempDir(), "logs"))
	t.Setenv("SERVER_PORT", "9090")
	t.Setenv("MAX_UPLOAD_BYTES", "1048576")
	t.Setenv("RENDER_MODE", "drawtext")
	t.Setenv("EXTRACT_TIMEOUT", "90s")
	t.Setenv("CORS_ALLOWED_ORIGINS", "https://a.example,https://b.example")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.ServerPort != "9090" {
		t.Errorf("ServerPort = %q", cfg.ServerPort)
	}
	if cfg.MaxUploadBytes != 1048576 {
		t.Errorf("MaxUploadBytes = %d", cfg.MaxUploadBytes)
	}
	if cfg.RenderMode != RenderModeDrawtext {
		t.Errorf("RenderMode = %q", cfg.RenderMode)
	}
	if cfg.ExtractTimeout != 90*time.Second {
		t.Errorf("ExtractTimeout = %v", cfg.ExtractTimeout)
	}
	if len(cfg.CORS.AllowedOrigins) != 2 {
		t.Errorf("AllowedOrigins = %v", cfg.CORS.AllowedOrigins)
	}
}

func TestLoadRejectsUnknownRenderMode(t *testing.T) {
	t.Setenv("LOG_DIR", filepath.Join(t.TempDir(), "logs"))
	t.Setenv("RENDER_MODE", "hologram")

	if _, err := Load(); err == nil {
		t.Error("expected error for unknown render mode")
	}
}

func TestLoadRejectsBadLimits(t *testing.T) {
	t.Setenv("LOG_DIR", filepath.Join(t.TempDir(), "logs"))
	t.Setenv("MAX_UPLOAD_BYTES", "-1")

	if _, err := Load(); err == nil {
		t.Error("expected error for negative upload limit")
	}
}

func TestGetEnvHelpersIgnoreMalformedValues(t *testing.T) {
	t.Setenv("SOME_INT", "not-a-number")
	if got := getEnvAsInt("SOME_INT", 7); got != 7 {
		t.Errorf("getEnvAsInt fallback = %d, want 7", got)
	}

	t.Setenv("SOME_DURATION", "eleven minutes")
	if got := getEnvAsDuration("SOME_DURATION", time.Minute); got != time.Minute {
		t.Errorf("getEnvAsDuration fallback = %v, want 1m", got)
	}

	t.Setenv("SOME_BOOL", "yep")
	if got := getEnvAsBool("SOME_BOOL", true); got != true {
		t.Errorf("getEnvAsBool fallback = %v, want true", got)
	}
}
