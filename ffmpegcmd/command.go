// Package ffmpegcmd synthesizes ffmpeg invocations for audio extraction
// and styled rendering, and probes tool capabilities once per process.
// Builders are pure; nothing here executes the final commands.
package ffmpegcmd

import (
	"fmt"
	"strings"
)

// ExtractAudioArgs builds the audio extraction command: mono, 16 kHz,
// signed 16-bit PCM, always. A CUDA decode hint is prefixed only when
// the capability probe confirmed it.
func ExtractAudioArgs(ffmpeg, input, output string, cuda bool) []string {
	argv := []string{ffmpeg, "-hide_banner", "-loglevel", "error", "-nostdin", "-threads", "0"}
	if cuda {
		argv = append(argv, "-hwaccel", "cuda")
	}
	argv = append(argv,
		"-i", input,
		"-vn",
		"-acodec", "pcm_s16le",
		"-ar", "16000",
		"-ac", "1",
		"-y", output,
	)
	return argv
}

// RenderArgs builds the styled render command: constant-rate-factor fast
// preset, audio stream copied, fast-start placement for streaming
// playback. When the source resolution was detected it is reapplied to
// counter scaling introduced by the filter chain.
func RenderArgs(ffmpeg, input, output, videoFilter, encoder string, width, height int) []string {
	argv := []string{
		ffmpeg, "-y",
		"-i", input,
		"-vf", videoFilter,
		"-c:a", "copy",
		"-c:v", encoder,
		"-preset", "ultrafast",
		"-crf", "28",
		"-movflags", "+faststart",
		"-bufsize", "4M",
		"-maxrate", "8M",
		"-sc_threshold", "0",
	}
	if width > 0 && height > 0 {
		argv = append(argv, "-s", fmt.Sprintf("%dx%d", width, height))
	}
	return append(argv, output)
}

// SubtitleFilter builds the subtitles filter expression with an escaped
// path and the force_style override.
func SubtitleFilter(srtPath, forceStyle string) string {
	return fmt.Sprintf("subtitles='%s':force_style='%s'", escapeFilterPath(srtPath), forceStyle)
}

// escapeFilterPath escapes filter-language special characters in file
// paths. Backslashes go first so the colon escapes survive.
func escapeFilterPath(p string) string {
	p = strings.ReplaceAll(p, `\`, `\\`)
	p = strings.ReplaceAll(p, ":", `\:`)
	p = strings.ReplaceAll(p, "'", `\'`)
	return p
}
