package ffmpegcmd

import (
	"reflect"
	"strings"
	"testing"
)

func TestExtractAudioArgs(t *testing.T) {
	got := ExtractAudioArgs("ffmpeg", "/in/video.mp4", "/out/audio.wav", false)
	want := []string{
		"ffmpeg", "-hide_banner", "-loglevel", "error", "-nostdin", "-threads", "0",
		"-i", "/in/video.mp4",
		"-vn",
		"-acodec", "pcm_s16le",
		"-ar", "16000",
		"-ac", "1",
		"-y", "/out/audio.wav",
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("ExtractAudioArgs = %v, want %v", got, want)
	}
}

func TestExtractAudioArgsCUDA(t *testing.T) {
	got := ExtractAudioArgs("ffmpeg", "in.mp4", "out.wav", true)
	joined := strings.Join(got, " ")
	if !strings.Contains(joined, "-hwaccel cuda") {
		t.Errorf("expected cuda hint in %v", got)
	}
	if strings.Index(joined, "-hwaccel cuda") > strings.Index(joined, "-i in.mp4") {
		t.Error("hwaccel must precede the input")
	}
}

func TestRenderArgs(t *testing.T) {
	got := RenderArgs("ffmpeg", "in.mp4", "out.mp4", "subtitles='x.srt'", "libx264", 1920, 1080)
	joined := strings.Join(got, " ")

	for _, fragment := range []string{
		"-vf subtitles='x.srt'",
		"-c:a copy",
		"-c:v libx264",
		"-preset ultrafast",
		"-crf 28",
		"-movflags +faststart",
		"-s 1920x1080",
	} {
		if !strings.Contains(joined, fragment) {
			t.Errorf("RenderArgs missing %q in %q", fragment, joined)
		}
	}
	if got[len(got)-1] != "out.mp4" {
		t.Errorf("output must be the final argument, got %q", got[len(got)-1])
	}
}

func TestRenderArgsUnknownResolution(t *testing.T) {
	got := strings.Join(RenderArgs("ffmpeg", "in.mp4", "out.mp4", "null", "libx264", 0, 0), " ")
	if strings.Contains(got, "-s ") {
		t.Errorf("unexpected -s flag without a detected resolution: %q", got)
	}
}

func TestSubtitleFilter(t *testing.T) {
	got := SubtitleFilter(`/tmp/job's:dir/subs.srt`, "Fontsize=16")
	want := `subtitles='/tmp/job\'s\:dir/subs.srt':force_style='Fontsize=16'`
	if got != want {
		t.Errorf("SubtitleFilter = %q, want %q", got, want)
	}
}

func TestSelectEncoderPriority(t *testing.T) {
	tests := []struct {
		name string
		caps Capabilities
		want string
	}{
		{"nvenc first", Capabilities{NVENC: true, X265: true}, "hevc_nvenc"},
		{"x265 next", Capabilities{X265: true}, "libx265"},
		{"x264 fallback", Capabilities{}, "libx264"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := &Prober{}
			p.once.Do(func() {}) // pin the probed capabilities
			p.caps = tt.caps
			if got := p.SelectEncoder(); got != tt.want {
				t.Errorf("SelectEncoder() = %q, want %q", got, tt.want)
			}
		})
	}
}
