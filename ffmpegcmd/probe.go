package ffmpegcmd

import (
	"bytes"
	"context"
	"encoding/json"
	"os/exec"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// Capabilities is the definite capability set resolved from tool output.
type Capabilities struct {
	CUDA  bool // hardware decode available
	NVENC bool // hevc_nvenc encoder available
	X265  bool // libx265 encoder available
}

// Prober answers capability and media questions through short, bounded
// tool invocations. Capabilities are probed once per process; probe
// failures are swallowed and degrade to the software path.
type Prober struct {
	ffmpeg  string
	ffprobe string
	timeout time.Duration
	log     *logrus.Logger

	once sync.Once
	caps Capabilities
}

func NewProber(ffmpeg, ffprobe string, timeout time.Duration, log *logrus.Logger) *Prober {
	return &Prober{
		ffmpeg:  ffmpeg,
		ffprobe: ffprobe,
		timeout: timeout,
		log:     log,
	}
}

// Capabilities resolves the cached capability set.
func (p *Prober) Capabilities() Capabilities {
	p.once.Do(func() {
		if out, err := p.run(p.ffmpeg, "-hwaccels"); err == nil {
			p.caps.CUDA = strings.Contains(out, "cuda")
		}
		if out, err := p.run(p.ffmpeg, "-encoders"); err == nil {
			p.caps.NVENC = strings.Contains(out, "hevc_nvenc")
			p.caps.X265 = strings.Contains(out, "libx265")
		}
		p.log.WithFields(logrus.Fields{
			"cuda":  p.caps.CUDA,
			"nvenc": p.caps.NVENC,
			"x265":  p.caps.X265,
		}).Info("Encoder capabilities probed")
	})
	return p.caps
}

// SelectEncoder picks the render encoder in priority order: hardware
// NVENC, software HEVC, then the universal software fallback.
func (p *Prober) SelectEncoder() string {
	caps := p.Capabilities()
	switch {
	case caps.NVENC:
		return "hevc_nvenc"
	case caps.X265:
		return "libx265"
	default:
		return "libx264"
	}
}

// Resolution reports the first video stream's dimensions. Best-effort:
// a failed probe returns ok=false and rendering proceeds without the
// resolution clamp.
func (p *Prober) Resolution(ctx context.Context, path string) (width, height int, ok bool) {
	out, err := p.runCtx(ctx, p.ffprobe,
		"-v", "error",
		"-select_streams", "v:0",
		"-show_entries", "stream=width,height",
		"-of", "json",
		path,
	)
	if err != nil {
		p.log.WithError(err).Warn("Could not detect video resolution")
		return 0, 0, false
	}

	var info struct {
		Streams []struct {
			Width  int `json:"width"`
			Height int `json:"height"`
		} `json:"streams"`
	}
	if err := json.Unmarshal([]byte(out), &info); err != nil || len(info.Streams) == 0 {
		return 0, 0, false
	}
	s := info.Streams[0]
	if s.Width <= 0 || s.Height <= 0 {
		return 0, 0, false
	}
	return s.Width, s.Height, true
}

// Duration reports the container duration in seconds, best-effort.
func (p *Prober) Duration(ctx context.Context, path string) (float64, bool) {
	out, err := p.runCtx(ctx, p.ffprobe,
		"-v", "error",
		"-show_entries", "format=duration",
		"-of", "default=noprint_wrappers=1:nokey=1",
		path,
	)
	if err != nil {
		return 0, false
	}
	seconds, err := strconv.ParseFloat(strings.TrimSpace(out), 64)
	if err != nil {
		return 0, false
	}
	return seconds, true
}

func (p *Prober) run(name string, args ...string) (string, error) {
	return p.runCtx(context.Background(), name, args...)
}

func (p *Prober) runCtx(ctx context.Context, name string, args ...string) (string, error) {
	probeCtx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	cmd := exec.CommandContext(probeCtx, name, args...)
	var stdout bytes.Buffer
	cmd.Stdout = &stdout
	if err := cmd.Run(); err != nil {
		return "", err
	}
	return stdout.String(), nil
}
