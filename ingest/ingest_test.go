package ingest

import (
	"context"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/sirupsen/logrus"

	"vidscribe/errors"
	"vidscribe/executor"
)

func testRunner() *executor.Runner {
	log := logrus.New()
	log.SetOutput(io.Discard)
	return executor.NewRunner(1, log)
}

func TestValidateExtension(t *testing.T) {
	tests := []struct {
		filename string
		wantExt  string
		wantErr  bool
	}{
		{"movie.mp4", ".mp4", false},
		{"MOVIE.MKV", ".mkv", false},
		{"clip.webm", ".webm", false},
		{"notes.txt", "", true},
		{"script.sh", "", true},
		{"noextension", "", true},
		{"", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.filename, func(t *testing.T) {
			ext, err := ValidateExtension(tt.filename)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ValidateExtension(%q) error = %v, wantErr %v", tt.filename, err, tt.wantErr)
			}
			if ext != tt.wantExt {
				t.Errorf("ValidateExtension(%q) = %q, want %q", tt.filename, ext, tt.wantExt)
			}
			if err != nil && errors.Code(err) != http.StatusBadRequest {
				t.Errorf("expected 400, got %d", errors.Code(err))
			}
		})
	}
}

func TestSaveStream(t *testing.T) {
	dst := filepath.Join(t.TempDir(), "upload.mp4")
	payload := strings.Repeat("a", 100*1024)

	n, err := SaveStream(strings.NewReader(payload), dst, 1024*1024)
	if err != nil {
		t.Fatalf("SaveStream: %v", err)
	}
	if n != int64(len(payload)) {
		t.Errorf("saved %d bytes, want %d", n, len(payload))
	}
	data, err := os.ReadFile(dst)
	if err != nil {
		t.Fatalf("read saved file: %v", err)
	}
	if len(data) != len(payload) {
		t.Errorf("file holds %d bytes, want %d", len(data), len(payload))
	}
}

func TestSaveStreamOverLimit(t *testing.T) {
	dst := filepath.Join(t.TempDir(), "upload.mp4")
	payload := strings.Repeat("a", 64*1024)

	_, err := SaveStream(strings.NewReader(payload), dst, 32*1024)
	if err == nil {
		t.Fatal("expected error for oversized upload")
	}
	if errors.Code(err) != http.StatusRequestEntityTooLarge {
		t.Errorf("expected 413, got %d", errors.Code(err))
	}
	if _, statErr := os.Stat(dst); !os.IsNotExist(statErr) {
		t.Error("partial file was not deleted")
	}
}

func TestSaveStreamExactLimit(t *testing.T) {
	dst := filepath.Join(t.TempDir(), "upload.mp4")
	payload := strings.Repeat("a", 32*1024)

	if _, err := SaveStream(strings.NewReader(payload), dst, 32*1024); err != nil {
		t.Fatalf("upload at exactly the limit should succeed: %v", err)
	}
}

func TestHasAudioTrackMissingProbeKeepsToolError(t *testing.T) {
	err := HasAudioTrack(context.Background(), testRunner(),
		"/nonexistent/ffprobe-xyz", "/tmp/video.mp4", time.Second)
	if err == nil {
		t.Fatal("expected error with missing ffprobe")
	}
	if errors.Code(err) != http.StatusInternalServerError {
		t.Errorf("missing ffprobe code = %d, want 500", errors.Code(err))
	}
}

func TestHasAudioTrackProbeExitFailureIsBadInput(t *testing.T) {
	// "false" exits nonzero regardless of arguments, standing in for a
	// probe that rejected the container.
	err := HasAudioTrack(context.Background(), testRunner(),
		"false", "/tmp/video.mp4", time.Second)
	if err == nil {
		t.Fatal("expected error for failed probe")
	}
	if errors.Code(err) != http.StatusBadRequest {
		t.Errorf("failed probe code = %d, want 400", errors.Code(err))
	}
}

func TestHasAudioTrackEmptyOutputIsBadInput(t *testing.T) {
	// "true" exits zero with no output, the shape of a container that
	// has no audio stream.
	err := HasAudioTrack(context.Background(), testRunner(),
		"true", "/tmp/video.mp4", time.Second)
	if err == nil {
		t.Fatal("expected error for silent probe output")
	}
	if errors.Code(err) != http.StatusBadRequest {
		t.Errorf("empty probe output code = %d, want 400", errors.Code(err))
	}
}
