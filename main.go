package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	fiberLogger "github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"vidscribe/config"
	"vidscribe/executor"
	"vidscribe/ffmpegcmd"
	"vidscribe/handlers"
	"vidscribe/hardware"
	"vidscribe/logger"
	"vidscribe/middleware"
	"vidscribe/pipeline"
	"vidscribe/progress"
	"vidscribe/scratch"
	"vidscribe/style"
	"vidscribe/whisper"
	"vidscribe/youtube"
)

func main() {
	if err := newRootCommand().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	var envFile string

	root := &cobra.Command{
		Use:           "vidscribe",
		Short:         "Video transcription and subtitle burn-in service",
		SilenceUsage:  true,
		SilenceErrors: false,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(envFile)
		},
	}
	root.PersistentFlags().StringVar(&envFile, "env-file", "", "path to a .env file to load before reading the environment")

	serve := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(envFile)
		},
	}
	root.AddCommand(serve)
	return root
}

func runServe(envFile string) error {
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil {
			return fmt.Errorf("load env file: %w", err)
		}
	} else {
		_ = godotenv.Load()
	}

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load configuration: %w", err)
	}

	appLog, err := logger.New(cfg.LogDir, cfg.Debug)
	if err != nil {
		return fmt.Errorf("initialize logger: %w", err)
	}

	hw := hardware.Detect()
	appLog.WithFields(logrus.Fields{
		"tier":          hw.Tier,
		"memory_gb":     fmt.Sprintf("%.1f", hw.MemoryGB),
		"cores":         hw.Cores,
		"accelerator":   hw.HasAccel,
		"default_model": hw.DefaultModel,
		"max_workers":   hw.MaxWorkers,
	}).Info("Hardware profile detected")

	tracker := progress.NewTracker()
	runner := executor.NewRunner(hw.MaxWorkers, appLog)
	scratchMgr := scratch.NewManager(cfg.FastTempDir)
	prober := ffmpegcmd.NewProber(cfg.FFmpegPath, cfg.FFprobePath, cfg.ProbeTimeout, appLog)
	translator := style.NewTranslator(cfg.FontDir)
	cache := whisper.NewCache(cfg.ModelDir)
	transcriber := whisper.NewTranscriber(cfg.WhisperPath, runner, cfg.TranscribeTimeout)
	pl := pipeline.New(cfg, appLog, hw, tracker, runner, scratchMgr, prober, translator, cache, transcriber)
	yt := youtube.NewClient(cfg.YTDLPPath, runner, cfg.DownloadTimeout)
	h := handlers.New(cfg, appLog, hw, pl, tracker, yt, scratchMgr)

	app := fiber.New(fiber.Config{
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  cfg.IdleTimeout,
		ErrorHandler: handlers.ErrorHandler(appLog),
		// Uploads stream through the multipart reader instead of
		// buffering in memory. The limit leaves headroom over the
		// payload cap so the pipeline's own check produces the 413.
		StreamRequestBody:     true,
		BodyLimit:             int(cfg.MaxUploadBytes) + 10*1024*1024,
		DisableStartupMessage: !cfg.Debug,
		AppName:               "vidscribe",
	})

	setupMiddleware(app, cfg)
	setupRoutes(app, h)

	shutdownChan := make(chan os.Signal, 1)
	signal.Notify(shutdownChan, os.Interrupt, syscall.SIGTERM)

	go func() {
		<-shutdownChan
		appLog.Info("Shutting down server...")

		ctx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()

		if err := app.ShutdownWithContext(ctx); err != nil {
			appLog.WithError(err).Error("Server shutdown error")
		}
	}()

	serverAddr := ":" + cfg.ServerPort
	appLog.WithField("addr", serverAddr).Info("Server starting")
	if err := app.Listen(serverAddr); err != nil {
		log.Printf("Server error: %v", err)
		return err
	}
	return nil
}

func setupMiddleware(app *fiber.App, cfg *config.Config) {
	app.Use(recover.New(recover.Config{
		EnableStackTrace: cfg.Debug,
	}))

	app.Use(requestid.New(requestid.Config{
		Header: "X-Request-ID",
		Generator: func() string {
			return uuid.New().String()
		},
	}))

	app.Use(fiberLogger.New(fiberLogger.Config{
		Format: "${time} | ${status} | ${latency} | ${ip} | ${method} ${path}\n",
	}))

	if cfg.CORS.Enabled {
		app.Use(cors.New(cors.Config{
			AllowOrigins: strings.Join(cfg.CORS.AllowedOrigins, ","),
			AllowMethods: strings.Join(cfg.CORS.AllowedMethods, ","),
			AllowHeaders: strings.Join(cfg.CORS.AllowedHeaders, ","),
		}))
	}

	if cfg.RateLimit.Enabled {
		app.Use(middleware.NewRateLimiter(cfg.RateLimit).Handler())
	}
}

func setupRoutes(app *fiber.App, h *handlers.Handler) {
	app.Get("/health", h.Health)
	app.Get("/api/health", h.Health)

	app.Get("/api/models", h.Models)
	app.Get("/api/languages", h.Languages)
	app.Post("/api/transcribe", h.Transcribe)
	app.Post("/api/render", h.Render)
	app.Get("/api/transcribe-status", h.StatusStream)
	app.Post("/api/youtube-metadata", h.YouTubeMetadata)
	app.Post("/api/download_youtube", h.DownloadYouTube)
}
