// Package youtube wraps yt-dlp for metadata lookup and video download.
package youtube

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	pkgerrors "github.com/pkg/errors"

	"vidscribe/errors"
	"vidscribe/executor"
)

// allowed hosts for inbound URLs. Everything else is rejected before
// yt-dlp ever sees it.
var allowedHosts = map[string]bool{
	"youtube.com":     true,
	"www.youtube.com": true,
	"m.youtube.com":   true,
	"youtu.be":        true,
}

// formatSelectors maps the public quality names onto yt-dlp format
// expressions.
var formatSelectors = map[string]string{
	"best":  "bestvideo[ext=mp4]+bestaudio[ext=m4a]/best[ext=mp4]/best",
	"720p":  "bestvideo[height<=720][ext=mp4]+bestaudio[ext=m4a]/best[height<=720][ext=mp4]/best",
	"480p":  "bestvideo[height<=480][ext=mp4]+bestaudio[ext=m4a]/best[height<=480][ext=mp4]/best",
	"audio": "bestaudio[ext=m4a]/bestaudio",
}

// Metadata is the subset of video attributes the frontend shows before
// a download.
type Metadata struct {
	Title             string  `json:"title"`
	Thumbnail         string  `json:"thumbnail"`
	Duration          float64 `json:"duration"`
	DurationFormatted string  `json:"duration_formatted"`
	Author            string  `json:"author"`
}

// Download is a finished fetch: the file on disk plus its metadata.
type Download struct {
	Path  string
	Title string
	Size  int64
}

// Client shells out to yt-dlp through the bounded runner.
type Client struct {
	bin     string
	runner  *executor.Runner
	timeout time.Duration
}

func NewClient(bin string, runner *executor.Runner, timeout time.Duration) *Client {
	return &Client{bin: bin, runner: runner, timeout: timeout}
}

// ValidateURL accepts only YouTube watch URLs.
func ValidateURL(raw string) error {
	const op = "youtube.ValidateURL"

	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil || u.Scheme == "" || u.Host == "" {
		return errors.InvalidInput(op, err, "Invalid URL.")
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return errors.InvalidInput(op, nil, "Invalid URL.")
	}
	if !allowedHosts[strings.ToLower(u.Host)] {
		return errors.InvalidInput(op, nil, "Only YouTube URLs are supported.")
	}
	return nil
}

// FetchMetadata resolves the video's title, thumbnail, duration and
// uploader without downloading anything.
func (c *Client) FetchMetadata(ctx context.Context, rawURL string) (*Metadata, error) {
	const op = "youtube.Client.FetchMetadata"

	if err := ValidateURL(rawURL); err != nil {
		return nil, err
	}

	argv := []string{c.bin, "--dump-json", "--no-playlist", "--no-warnings", rawURL}
	res, err := c.runner.Run(ctx, argv, c.timeout)
	if err != nil {
		return nil, upstreamFromToolError(op, err, "Failed to fetch video metadata.")
	}

	meta, err := parseMetadata([]byte(res.Stdout))
	if err != nil {
		return nil, errors.Upstream(op,
			pkgerrors.Wrap(err, "parse yt-dlp output"),
			"Video host returned unreadable metadata.", 0)
	}
	return meta, nil
}

// parseMetadata maps the yt-dlp dump onto the public metadata shape. The
// tool reports the channel under "uploader"; the API exposes it as
// "author" with a human-readable duration alongside the raw seconds.
func parseMetadata(data []byte) (*Metadata, error) {
	var raw struct {
		Title     string  `json:"title"`
		Thumbnail string  `json:"thumbnail"`
		Duration  float64 `json:"duration"`
		Uploader  string  `json:"uploader"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, err
	}
	return &Metadata{
		Title:             raw.Title,
		Thumbnail:         raw.Thumbnail,
		Duration:          raw.Duration,
		DurationFormatted: formatDuration(raw.Duration),
		Author:            raw.Uploader,
	}, nil
}

// formatDuration renders seconds as M:SS, or H:MM:SS past an hour.
func formatDuration(seconds float64) string {
	total := int(seconds)
	if total < 0 {
		total = 0
	}
	h := total / 3600
	m := (total % 3600) / 60
	s := total % 60
	if h > 0 {
		return fmt.Sprintf("%d:%02d:%02d", h, m, s)
	}
	return fmt.Sprintf("%d:%02d", m, s)
}

// FetchVideo downloads the video into destDir at the requested quality
// and returns the resulting file.
func (c *Client) FetchVideo(ctx context.Context, rawURL, quality, destDir string) (*Download, error) {
	const op = "youtube.Client.FetchVideo"

	if err := ValidateURL(rawURL); err != nil {
		return nil, err
	}

	selector, ok := formatSelectors[quality]
	if !ok {
		return nil, errors.InvalidInput(op, nil, fmt.Sprintf("Invalid quality: %s", quality))
	}

	outTemplate := filepath.Join(destDir, "%(title)s.%(ext)s")
	argv := []string{
		c.bin,
		"-f", selector,
		"--no-playlist",
		"--no-warnings",
		"--merge-output-format", "mp4",
		"-o", outTemplate,
		"--print", "after_move:filepath",
		rawURL,
	}
	res, err := c.runner.Run(ctx, argv, c.timeout)
	if err != nil {
		return nil, upstreamFromToolError(op, err, "Failed to download video.")
	}

	path := lastNonEmptyLine(res.Stdout)
	if path == "" {
		return nil, errors.Upstream(op, nil, "Download finished but produced no file.", 0)
	}
	info, err := os.Stat(path)
	if err != nil {
		return nil, errors.Upstream(op,
			pkgerrors.Wrap(err, "stat downloaded file"),
			"Download finished but produced no file.", 0)
	}

	title := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	return &Download{Path: path, Title: title, Size: info.Size()}, nil
}

// upstreamFromToolError keeps timeouts at 408 and recodes tool failures
// as bad-gateway: the fault sits with the video host, not this server.
func upstreamFromToolError(op string, err error, message string) error {
	if errors.Code(err) == http.StatusRequestTimeout {
		return err
	}
	return errors.Upstream(op, err, message, 0)
}

func lastNonEmptyLine(s string) string {
	lines := strings.Split(strings.TrimSpace(s), "\n")
	for i := len(lines) - 1; i >= 0; i-- {
		if line := strings.TrimSpace(lines[i]); line != "" {
			return line
		}
	}
	return ""
}
