package whisper

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	pkgerrors "github.com/pkg/errors"

	"vidscribe/errors"
	"vidscribe/executor"
	"vidscribe/models"
)

// Params are the decoding knobs passed through to whisper.cpp.
type Params struct {
	BeamSize int
	Threads  int
	Language string
}

// Result is one finished transcription.
type Result struct {
	Captions []models.Caption
	Language string
}

// Transcriber shells out to whisper.cpp through the bounded runner and
// parses its JSON transcript.
type Transcriber struct {
	bin     string
	runner  *executor.Runner
	timeout time.Duration
}

func NewTranscriber(bin string, runner *executor.Runner, timeout time.Duration) *Transcriber {
	return &Transcriber{bin: bin, runner: runner, timeout: timeout}
}

// Transcribe runs the model against the extracted audio. workDir holds
// the JSON transcript artifact and must outlive the call.
func (t *Transcriber) Transcribe(ctx context.Context, m *Model, audioPath, workDir string, p Params) (Result, error) {
	const op = "Transcriber.Transcribe"

	outPrefix := filepath.Join(workDir, "transcript")
	argv := []string{
		t.bin,
		"-m", m.Path,
		"-f", audioPath,
		"-oj",
		"-of", outPrefix,
		"-bs", strconv.Itoa(p.BeamSize),
		"-t", strconv.Itoa(p.Threads),
	}
	if lang := normalizeLanguage(p.Language); lang != "" {
		argv = append(argv, "-l", lang)
	}

	if _, err := t.runner.Run(ctx, argv, t.timeout); err != nil {
		return Result{}, err
	}

	data, err := os.ReadFile(outPrefix + ".json")
	if err != nil {
		return Result{}, errors.Internal(op,
			pkgerrors.Wrap(err, "read transcript"),
			"Transcription finished but produced no transcript.")
	}
	return parseTranscript(data, p.Language)
}

// transcriptJSON mirrors the whisper.cpp -oj output shape.
type transcriptJSON struct {
	Result struct {
		Language string `json:"language"`
	} `json:"result"`
	Transcription []struct {
		Offsets struct {
			From int64 `json:"from"`
			To   int64 `json:"to"`
		} `json:"offsets"`
		Text string `json:"text"`
	} `json:"transcription"`
}

func parseTranscript(data []byte, fallbackLanguage string) (Result, error) {
	const op = "whisper.parseTranscript"

	var raw transcriptJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return Result{}, errors.Internal(op, err, "Transcript output could not be parsed.")
	}

	captions := make([]models.Caption, 0, len(raw.Transcription))
	for _, seg := range raw.Transcription {
		text := strings.TrimSpace(seg.Text)
		if text == "" {
			continue
		}
		captions = append(captions, models.Caption{
			ID:    len(captions) + 1,
			Start: float64(seg.Offsets.From) / 1000,
			End:   float64(seg.Offsets.To) / 1000,
			Text:  text,
		})
	}

	language := raw.Result.Language
	if language == "" {
		language = fallbackLanguage
	}
	return Result{Captions: captions, Language: language}, nil
}

// normalizeLanguage maps "auto" and empty to no CLI override.
func normalizeLanguage(raw string) string {
	lang := strings.TrimSpace(raw)
	if lang == "" || strings.EqualFold(lang, "auto") {
		return ""
	}
	return lang
}
