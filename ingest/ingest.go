// Package ingest validates and persists inbound uploads: size-bounded
// streamed saves, container extension allow-listing, and audio track
// probing.
package ingest

import (
	"context"
	stderrors "errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	pkgerrors "github.com/pkg/errors"

	"vidscribe/errors"
	"vidscribe/executor"
)

const chunkSize = 16 * 1024

// allowedExtensions is the video container allow-list.
var allowedExtensions = map[string]struct{}{
	".mp4":  {},
	".avi":  {},
	".mov":  {},
	".mkv":  {},
	".webm": {},
	".flv":  {},
	".wmv":  {},
	".m4v":  {},
}

// ValidateExtension checks the filename against the allow-list and
// returns the lowercase extension.
func ValidateExtension(filename string) (string, error) {
	const op = "ingest.ValidateExtension"

	if filename == "" {
		return "", errors.InvalidInput(op, nil, "No filename provided.")
	}
	ext := strings.ToLower(filepath.Ext(filename))
	if ext == "" {
		return "", errors.InvalidInput(op, nil, "Filename has no extension.")
	}
	if _, ok := allowedExtensions[ext]; !ok {
		return "", errors.InvalidInput(op, nil, fmt.Sprintf("Unsupported file format: %s", ext))
	}
	return ext, nil
}

// SaveStream copies the upload to dst in bounded chunks. The instant the
// cumulative size exceeds maxBytes the partial file is deleted and the
// save fails with the configured limit in the error.
func SaveStream(r io.Reader, dst string, maxBytes int64) (int64, error) {
	const op = "ingest.SaveStream"

	f, err := os.Create(dst)
	if err != nil {
		return 0, errors.Internal(op, pkgerrors.Wrap(err, "create upload file"), "Failed to save file.")
	}

	var total int64
	buf := make([]byte, chunkSize)
	for {
		n, readErr := r.Read(buf)
		if n > 0 {
			total += int64(n)
			if total > maxBytes {
				_ = f.Close()
				_ = os.Remove(dst)
				return 0, errors.PayloadTooLarge(op, maxBytes)
			}
			if _, writeErr := f.Write(buf[:n]); writeErr != nil {
				_ = f.Close()
				_ = os.Remove(dst)
				return 0, errors.Internal(op, pkgerrors.Wrap(writeErr, "write upload chunk"), "Failed to save file.")
			}
		}
		if readErr == io.EOF {
			break
		}
		if readErr != nil {
			_ = f.Close()
			_ = os.Remove(dst)
			return 0, errors.Internal(op, pkgerrors.Wrap(readErr, "read upload stream"), "Failed to read upload.")
		}
	}

	if err := f.Close(); err != nil {
		_ = os.Remove(dst)
		return 0, errors.Internal(op, pkgerrors.Wrap(err, "close upload file"), "Failed to save file.")
	}
	return total, nil
}

// HasAudioTrack probes the container and fails when no audio stream is
// reported. Run before audio extraction so a video-only upload is a 400,
// not an ffmpeg failure.
func HasAudioTrack(ctx context.Context, runner *executor.Runner, ffprobe, path string, timeout time.Duration) error {
	const op = "ingest.HasAudioTrack"

	argv := []string{
		ffprobe, "-v", "error",
		"-select_streams", "a:0",
		"-show_entries", "stream=codec_type",
		"-of", "default=noprint_wrappers=1:nokey=1",
		path,
	}
	result, err := runner.Run(ctx, argv, timeout)
	if err != nil {
		// Only a nonzero probe exit means the file itself is bad. A
		// missing or timed-out ffprobe keeps its own classification.
		var exitErr *exec.ExitError
		if stderrors.As(err, &exitErr) {
			return errors.InvalidInput(op, err, "The file has no valid audio track or is not a supported video.")
		}
		return err
	}
	if strings.TrimSpace(result.Stdout) == "" {
		return errors.InvalidInput(op, nil, "The file has no valid audio track or is not a supported video.")
	}
	return nil
}
