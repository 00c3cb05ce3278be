// Package handlers binds the HTTP surface to the pipeline. Handlers
// stay thin: decode the request, call the pipeline, encode the result.
// Errors propagate to the central error handler.
package handlers

import (
	"bufio"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"io"
	"mime/multipart"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/sirupsen/logrus"
	"github.com/valyala/fasthttp"

	"vidscribe/config"
	apperrors "vidscribe/errors"
	"vidscribe/hardware"
	"vidscribe/models"
	"vidscribe/pipeline"
	"vidscribe/progress"
	"vidscribe/scratch"
	"vidscribe/validation"
	"vidscribe/whisper"
	"vidscribe/youtube"
)

const statusPollInterval = 500 * time.Millisecond

type Handler struct {
	cfg      *config.Config
	log      *logrus.Logger
	hw       hardware.Profile
	pipeline *pipeline.Pipeline
	tracker  *progress.Tracker
	youtube  *youtube.Client
	scratch  *scratch.Manager
}

func New(
	cfg *config.Config,
	log *logrus.Logger,
	hw hardware.Profile,
	pl *pipeline.Pipeline,
	tracker *progress.Tracker,
	yt *youtube.Client,
	scratchMgr *scratch.Manager,
) *Handler {
	return &Handler{
		cfg:      cfg,
		log:      log,
		hw:       hw,
		pipeline: pl,
		tracker:  tracker,
		youtube:  yt,
		scratch:  scratchMgr,
	}
}

// Health reports liveness.
func (h *Handler) Health(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{"status": "ok"})
}

// Models lists the model catalog plus the hardware-derived defaults.
func (h *Handler) Models(c *fiber.Ctx) error {
	return c.JSON(models.ModelsResponse{
		Models:      whisper.Models,
		Default:     h.hw.DefaultModel,
		Recommended: hardware.Recommended(h.hw.Tier),
	})
}

// Languages lists the supported transcription languages.
func (h *Handler) Languages(c *fiber.Ctx) error {
	return c.JSON(models.LanguagesResponse{
		Languages: validation.Languages,
		Default:   h.cfg.DefaultLanguage,
	})
}

// Transcribe accepts a multipart video upload and returns its captions.
func (h *Handler) Transcribe(c *fiber.Ctx) error {
	const op = "Handler.Transcribe"

	fileHeader, err := c.FormFile("file")
	if err != nil {
		return apperrors.InvalidInput(op, err, "No file uploaded.")
	}
	f, err := fileHeader.Open()
	if err != nil {
		return apperrors.InvalidInput(op, err, "Uploaded file could not be read.")
	}
	defer f.Close()

	resp, err := h.pipeline.Transcribe(c.Context(), pipeline.TranscribeRequest{
		File:      f,
		Filename:  fileHeader.Filename,
		Model:     c.FormValue("model"),
		Language:  c.FormValue("language"),
		SessionID: c.FormValue("session_id"),
	})
	if err != nil {
		return err
	}
	return c.JSON(resp)
}

// Render accepts a video plus captions and streams back the subtitled
// MP4. The artifact is deleted once the stream finishes, success or not.
func (h *Handler) Render(c *fiber.Ctx) error {
	const op = "Handler.Render"

	fileHeader, err := c.FormFile("file")
	if err != nil {
		return apperrors.InvalidInput(op, err, "No file uploaded.")
	}
	f, err := fileHeader.Open()
	if err != nil {
		return apperrors.InvalidInput(op, err, "Uploaded file could not be read.")
	}
	defer f.Close()

	captionsJSON, err := readCaptions(c)
	if err != nil {
		return err
	}

	result, err := h.pipeline.Render(c.Context(), pipeline.RenderRequest{
		File:         f,
		Filename:     fileHeader.Filename,
		CaptionsJSON: captionsJSON,
		StyleJSON:    []byte(c.FormValue("style")),
		SessionID:    c.FormValue("session_id"),
	})
	if err != nil {
		return err
	}

	c.Set(fiber.HeaderContentType, "video/mp4")
	c.Set(fiber.HeaderContentDisposition, fmt.Sprintf("attachment; filename=%q", result.Filename))

	session := result.SessionID
	return sendFile(c, result.Path, result.Size, func(complete bool) {
		result.Release()
		if complete {
			h.tracker.Publish(session, "Completed", progress.StepComplete)
			return
		}
		h.log.WithField("session", session).Warn("Client disconnected during streaming")
		h.tracker.Publish(session, "Error", progress.StepError)
	})
}

// readCaptions takes captions either as an uploaded JSON file or as an
// inline form field.
func readCaptions(c *fiber.Ctx) ([]byte, error) {
	const op = "handlers.readCaptions"

	if header, err := c.FormFile("captions"); err == nil {
		if err := validation.ValidateCaptionsFilename(header.Filename); err != nil {
			return nil, err
		}
		return readMultipartFile(header)
	}
	if v := c.FormValue("captions"); v != "" {
		return []byte(v), nil
	}
	return nil, apperrors.InvalidInput(op, nil, "No captions provided.")
}

func readMultipartFile(header *multipart.FileHeader) ([]byte, error) {
	const op = "handlers.readMultipartFile"

	f, err := header.Open()
	if err != nil {
		return nil, apperrors.InvalidInput(op, err, "Captions file could not be read.")
	}
	defer f.Close()

	data, err := io.ReadAll(f)
	if err != nil {
		return nil, apperrors.InvalidInput(op, err, "Captions file could not be read.")
	}
	return data, nil
}

// fileStream feeds one file into the response body and reports, on
// close, whether the whole file went out. The fixed length lets the
// server emit a real Content-Length for the attachment.
type fileStream struct {
	f      *os.File
	size   int64
	sent   int64
	onDone func(complete bool)
}

func (s *fileStream) Read(p []byte) (int, error) {
	n, err := s.f.Read(p)
	s.sent += int64(n)
	return n, err
}

func (s *fileStream) Close() error {
	err := s.f.Close()
	s.onDone(s.sent >= s.size)
	return err
}

// sendFile streams path as a fixed-length body. onDone runs exactly once
// when the stream closes (or the open fails) with the completion
// outcome; cleanup belongs there.
func sendFile(c *fiber.Ctx, path string, size int64, onDone func(complete bool)) error {
	const op = "handlers.sendFile"

	src, err := os.Open(path)
	if err != nil {
		onDone(false)
		return apperrors.Internal(op, err, "Failed to open streamed file.")
	}
	c.Context().SetBodyStream(&fileStream{f: src, size: size, onDone: onDone}, int(size))
	return nil
}

// StatusStream serves server-sent events for one session. Each state
// change emits one event; a terminal state ends the stream and drains
// the session.
func (h *Handler) StatusStream(c *fiber.Ctx) error {
	const op = "Handler.StatusStream"

	session := c.Query("session_id")
	if session == "" {
		return apperrors.InvalidInput(op, nil, "No session_id provided.")
	}

	c.Set(fiber.HeaderContentType, "text/event-stream")
	c.Set(fiber.HeaderCacheControl, "no-cache")
	c.Set(fiber.HeaderConnection, "keep-alive")

	c.Context().SetBodyStreamWriter(fasthttp.StreamWriter(func(w *bufio.Writer) {
		ticker := time.NewTicker(statusPollInterval)
		defer ticker.Stop()

		var last progress.Status
		sent := false
		lastWrite := time.Now()

		for range ticker.C {
			status, ok := h.tracker.Poll(session)
			if ok && (!sent || status != last) {
				payload, err := json.Marshal(status)
				if err != nil {
					return
				}
				if _, err := fmt.Fprintf(w, "data: %s\n\n", payload); err != nil {
					return
				}
				if err := w.Flush(); err != nil {
					return
				}
				last, sent, lastWrite = status, true, time.Now()
			}
			if ok && status.Terminal() {
				h.tracker.DrainIfTerminal(session)
				return
			}
			// Comment frames double as disconnect probes for idle
			// sessions.
			if time.Since(lastWrite) >= 15*time.Second {
				if _, err := io.WriteString(w, ": ping\n\n"); err != nil {
					return
				}
				if err := w.Flush(); err != nil {
					return
				}
				lastWrite = time.Now()
			}
		}
	}))
	return nil
}

type youtubeRequest struct {
	URL     string `json:"url"`
	Quality string `json:"quality"`
}

// YouTubeMetadata resolves title, thumbnail, duration and uploader for a
// YouTube URL.
func (h *Handler) YouTubeMetadata(c *fiber.Ctx) error {
	const op = "Handler.YouTubeMetadata"

	var req youtubeRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.InvalidInput(op, err, "Invalid request body.")
	}
	meta, err := h.youtube.FetchMetadata(c.Context(), req.URL)
	if err != nil {
		return err
	}
	return c.JSON(meta)
}

// DownloadYouTube fetches a YouTube video at the requested quality and
// streams it back.
func (h *Handler) DownloadYouTube(c *fiber.Ctx) error {
	const op = "Handler.DownloadYouTube"

	var req youtubeRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.InvalidInput(op, err, "Invalid request body.")
	}
	quality := req.Quality
	if quality == "" {
		quality = "best"
	}

	dir, err := h.scratch.AcquireDir("download-")
	if err != nil {
		return apperrors.Internal(op, err, "Failed to allocate temporary storage.")
	}

	dl, err := h.youtube.FetchVideo(c.Context(), req.URL, quality, dir.Path())
	if err != nil {
		_ = dir.Release()
		return err
	}

	c.Set(fiber.HeaderContentType, "video/mp4")
	c.Set(fiber.HeaderContentDisposition, fmt.Sprintf("attachment; filename=%q", attachmentName(dl.Title, dl.Path)))

	return sendFile(c, dl.Path, dl.Size, func(complete bool) {
		if !complete {
			h.log.Warn("Client disconnected during download streaming")
		}
		_ = dir.Release()
	})
}

var unsafeFilename = regexp.MustCompile(`[<>:"/\\|?*]`)

func attachmentName(title, path string) string {
	ext := filepath.Ext(path)
	if ext == "" {
		ext = ".mp4"
	}
	name := strings.TrimSpace(title)
	if name == "" {
		name = "video"
	}
	return unsafeFilename.ReplaceAllString(name+ext, "_")
}

// ErrorHandler is the central fiber error handler. Typed errors keep
// their status and public message; everything else collapses to 500.
func ErrorHandler(log *logrus.Logger) fiber.ErrorHandler {
	return func(c *fiber.Ctx, err error) error {
		var appErr *apperrors.AppError
		if stderrors.As(err, &appErr) {
			entry := log.WithFields(logrus.Fields{
				"op":     appErr.Op,
				"code":   appErr.Code,
				"path":   c.Path(),
				"method": c.Method(),
			})
			if appErr.Err != nil {
				entry = entry.WithError(appErr.Err)
			}
			if appErr.Code >= fiber.StatusInternalServerError {
				entry.Error(appErr.Message)
			} else {
				entry.Warn(appErr.Message)
			}
			return c.Status(appErr.Code).JSON(fiber.Map{"error": appErr.Message})
		}

		var fiberErr *fiber.Error
		if stderrors.As(err, &fiberErr) {
			return c.Status(fiberErr.Code).JSON(fiber.Map{"error": fiberErr.Message})
		}

		log.WithError(err).WithField("path", c.Path()).Error("Unhandled error")
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Internal server error",
		})
	}
}
