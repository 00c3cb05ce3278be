// Package pipeline sequences the transcribe and render operations:
// scratch acquisition, ingestion, command synthesis, tool execution,
// and progress publication at every phase boundary. Cleanup runs on
// every exit path; an operation either returns a complete result or a
// typed error, never both halves.
package pipeline

import (
	"context"
	"io"
	"math"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"vidscribe/config"
	"vidscribe/errors"
	"vidscribe/executor"
	"vidscribe/ffmpegcmd"
	"vidscribe/hardware"
	"vidscribe/ingest"
	"vidscribe/models"
	"vidscribe/progress"
	"vidscribe/scratch"
	"vidscribe/style"
	"vidscribe/subtitles"
	"vidscribe/validation"
	"vidscribe/whisper"
)

type Pipeline struct {
	cfg         *config.Config
	log         *logrus.Logger
	hw          hardware.Profile
	tracker     *progress.Tracker
	runner      *executor.Runner
	scratch     *scratch.Manager
	prober      *ffmpegcmd.Prober
	translator  *style.Translator
	cache       *whisper.Cache
	transcriber *whisper.Transcriber
}

func New(
	cfg *config.Config,
	log *logrus.Logger,
	hw hardware.Profile,
	tracker *progress.Tracker,
	runner *executor.Runner,
	scratchMgr *scratch.Manager,
	prober *ffmpegcmd.Prober,
	translator *style.Translator,
	cache *whisper.Cache,
	transcriber *whisper.Transcriber,
) *Pipeline {
	return &Pipeline{
		cfg:         cfg,
		log:         log,
		hw:          hw,
		tracker:     tracker,
		runner:      runner,
		scratch:     scratchMgr,
		prober:      prober,
		translator:  translator,
		cache:       cache,
		transcriber: transcriber,
	}
}

// TranscribeRequest is one inbound transcription job.
type TranscribeRequest struct {
	File      io.Reader
	Filename  string
	Model     string
	Language  string
	SessionID string
}

// Transcribe runs the full transcription pipeline. Validation happens
// before any file I/O; every phase boundary publishes progress; the
// scratch directory is released on all paths.
func (p *Pipeline) Transcribe(ctx context.Context, req TranscribeRequest) (*models.TranscribeResponse, error) {
	ext, err := ingest.ValidateExtension(req.Filename)
	if err != nil {
		return nil, err
	}

	model := req.Model
	if model == "" {
		model = p.hw.DefaultModel
	}
	if err := validation.ValidateModel(model); err != nil {
		return nil, err
	}

	lang := validation.NormalizeLanguage(req.Language, p.cfg.DefaultLanguage)
	session := orGeneratedSession(req.SessionID)
	log := p.log.WithFields(logrus.Fields{"session": session, "model": model})

	dir, err := p.scratch.AcquireDir("transcribe-")
	if err != nil {
		return nil, p.fail(session, log, err)
	}
	defer func() {
		if err := dir.Release(); err != nil {
			log.WithError(err).Warn("Failed to release scratch directory")
		}
	}()

	p.tracker.Publish(session, "Saving file...", 2)
	videoPath := filepath.Join(dir.Path(), "video"+ext)
	size, err := ingest.SaveStream(req.File, videoPath, p.cfg.MaxUploadBytes)
	if err != nil {
		return nil, p.fail(session, log, err)
	}

	if err := ingest.HasAudioTrack(ctx, p.runner, p.cfg.FFprobePath, videoPath, p.cfg.ProbeTimeout); err != nil {
		return nil, p.fail(session, log, err)
	}

	p.tracker.Publish(session, "Extracting audio...", 3)
	audioPath := filepath.Join(dir.Path(), "audio.wav")
	cuda := p.hw.HasAccel && p.prober.Capabilities().CUDA
	extractArgs := ffmpegcmd.ExtractAudioArgs(p.cfg.FFmpegPath, videoPath, audioPath, cuda)
	if _, err := p.runner.Run(ctx, extractArgs, p.cfg.ExtractTimeout); err != nil {
		return nil, p.fail(session, log, err)
	}

	p.tracker.Publish(session, "Loading model...", 5)
	m, err := p.cache.Get(model)
	if err != nil {
		return nil, p.fail(session, log, err)
	}

	p.tracker.Publish(session, "Transcribing...", 6)
	result, err := p.transcriber.Transcribe(ctx, m, audioPath, dir.Path(), whisper.Params{
		BeamSize: p.hw.Decode.BeamSize,
		Threads:  p.hw.Decode.Threads,
		Language: lang,
	})
	if err != nil {
		return nil, p.fail(session, log, err)
	}

	duration, ok := p.prober.Duration(ctx, audioPath)
	if !ok && len(result.Captions) > 0 {
		duration = result.Captions[len(result.Captions)-1].End
	}

	p.tracker.Publish(session, "Completed", progress.StepComplete)
	log.WithFields(logrus.Fields{
		"captions": len(result.Captions),
		"duration": duration,
	}).Info("Transcription completed")

	return &models.TranscribeResponse{
		Captions:   result.Captions,
		Language:   result.Language,
		Duration:   duration,
		FileSizeMB: math.Round(float64(size)/(1024*1024)*100) / 100,
		SessionID:  session,
	}, nil
}

// RenderRequest is one inbound subtitle-burn job.
type RenderRequest struct {
	File         io.Reader
	Filename     string
	CaptionsJSON []byte
	StyleJSON    []byte
	SessionID    string
}

// RenderResult is the finished artifact. The caller owns it exclusively
// and must invoke Release once streamed (or on its own failure path).
type RenderResult struct {
	Path      string
	Size      int64
	Filename  string
	SessionID string
	Release   func()
}

// Render burns the supplied captions into the video and hands the
// artifact to the caller for streaming.
func (p *Pipeline) Render(ctx context.Context, req RenderRequest) (*RenderResult, error) {
	const op = "Pipeline.Render"

	ext, err := ingest.ValidateExtension(req.Filename)
	if err != nil {
		return nil, err
	}

	captions, err := models.ParseCaptionList(req.CaptionsJSON)
	if err != nil {
		return nil, errors.InvalidInput(op, err, "Invalid captions JSON.")
	}

	session := orGeneratedSession(req.SessionID)
	log := p.log.WithField("session", session)

	dir, err := p.scratch.AcquireDir("render-")
	if err != nil {
		return nil, p.fail(session, log, err)
	}
	defer func() {
		if err := dir.Release(); err != nil {
			log.WithError(err).Warn("Failed to release scratch directory")
		}
	}()

	out, err := p.scratch.AcquireFile("render-out-", ".mp4")
	if err != nil {
		return nil, p.fail(session, log, err)
	}
	// The artifact outlives this call on success; release it here only
	// when a later phase fails.
	succeeded := false
	defer func() {
		if !succeeded {
			_ = out.Release()
		}
	}()

	p.tracker.Publish(session, "Saving file...", 2)
	videoPath := filepath.Join(dir.Path(), "video"+ext)
	if _, err := ingest.SaveStream(req.File, videoPath, p.cfg.MaxUploadBytes); err != nil {
		return nil, p.fail(session, log, err)
	}

	p.tracker.Publish(session, "Probing video...", 3)
	width, height, _ := p.prober.Resolution(ctx, videoPath)

	p.tracker.Publish(session, "Building subtitles...", 4)
	spec := style.ParseSpec(req.StyleJSON)
	srtPath := filepath.Join(dir.Path(), "subtitles.srt")
	if err := subtitles.WriteSRTFile(srtPath, captions); err != nil {
		return nil, p.fail(session, log, errors.Internal(op, err, "Failed to build subtitles."))
	}
	videoFilter := p.buildVideoFilter(captions, spec, srtPath)

	p.tracker.Publish(session, "Rendering video...", 7)
	encoder := p.prober.SelectEncoder()
	renderArgs := ffmpegcmd.RenderArgs(p.cfg.FFmpegPath, videoPath, out.Path(), videoFilter, encoder, width, height)
	log.WithFields(logrus.Fields{"encoder": encoder, "filter": videoFilter}).Debug("Render command built")
	if _, err := p.runner.Run(ctx, renderArgs, p.cfg.RenderTimeout); err != nil {
		return nil, p.fail(session, log, err)
	}

	info, err := os.Stat(out.Path())
	if err != nil || info.Size() == 0 {
		return nil, p.fail(session, log, errors.Internal(op, err, "Rendered file was not created."))
	}

	p.tracker.Publish(session, "Streaming result...", 9)
	succeeded = true
	return &RenderResult{
		Path:      out.Path(),
		Size:      info.Size(),
		Filename:  downloadFilename(req.Filename),
		SessionID: session,
		Release:   func() { _ = out.Release() },
	}, nil
}

// buildVideoFilter picks the configured render representation. The
// drawtext mode degrades to the subtitles filter when no caption
// produces a drawable filter.
func (p *Pipeline) buildVideoFilter(captions []models.Caption, spec style.Spec, srtPath string) string {
	if p.cfg.RenderMode == config.RenderModeDrawtext {
		if chain := subtitles.DrawtextFilters(captions, p.translator.OverlayArgs(spec)); chain != "" {
			return chain
		}
	}
	return ffmpegcmd.SubtitleFilter(srtPath, p.translator.SubtitleOverride(spec))
}

// fail publishes the error state for the session and passes the error
// through unchanged.
func (p *Pipeline) fail(session string, log *logrus.Entry, err error) error {
	p.tracker.Publish(session, "Error", progress.StepError)
	log.WithError(err).Error("Pipeline phase failed")
	return err
}

func orGeneratedSession(sessionID string) string {
	if strings.TrimSpace(sessionID) != "" {
		return sessionID
	}
	return uuid.New().String()
}

var unsafeFilename = regexp.MustCompile(`[<>:"/\\|?*]`)

// downloadFilename derives the attachment name from the upload's stem.
func downloadFilename(uploadName string) string {
	stem := strings.TrimSuffix(filepath.Base(uploadName), filepath.Ext(uploadName))
	return unsafeFilename.ReplaceAllString("legendado_"+stem+".mp4", "_")
}
