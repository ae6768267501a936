package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dgnsrekt/docspeak-go/internal/api"
	"github.com/dgnsrekt/docspeak-go/internal/artifact"
	"github.com/dgnsrekt/docspeak-go/internal/audio"
	"github.com/dgnsrekt/docspeak-go/internal/config"
	"github.com/dgnsrekt/docspeak-go/internal/logging"
	"github.com/dgnsrekt/docspeak-go/internal/metrics"
	"github.com/dgnsrekt/docspeak-go/internal/pipeline"
	"github.com/dgnsrekt/docspeak-go/internal/tts"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		// Use stderr before logger is initialized
		os.Stderr.WriteString("failed to load config: " + err.Error() + "\n")
		os.Exit(1)
	}

	logger := logging.New(cfg.LogLevel, cfg.LogFormat)
	logger.Info("starting docspeak", "version", "0.1.0")

	logger.Info("configuration loaded",
		"log_level", cfg.LogLevel,
		"log_format", cfg.LogFormat,
		"http_port", cfg.HTTPPort,
		"max_upload_bytes", cfg.MaxUploadBytes,
		"max_text_chars", cfg.MaxTextChars,
		"strict_mime", cfg.StrictMIME,
		"storage_dir", cfg.StorageDir,
		"artifact_ttl", cfg.ArtifactTTL,
		"tts_engine", cfg.TTSEngine,
		"audio_format", cfg.AudioFormat,
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		sig := <-sigCh
		logger.Info("received shutdown signal", "signal", sig.String())
		cancel()
	}()

	m := metrics.New()

	store, err := artifact.NewStore(cfg.StorageDir, logger)
	if err != nil {
		logger.Error("failed to open artifact store", "error", err)
		os.Exit(1)
	}

	janitor := artifact.NewJanitor(store, cfg.ArtifactTTL, cfg.SweepInterval, logger)
	janitor.OnSweep(m.Swept)
	janitor.Start()
	defer janitor.Stop()

	ttsRegistry, err := newRegistry(cfg, logger)
	if err != nil {
		logger.Error("failed to initialize TTS engines", "engine", cfg.TTSEngine, "error", err)
		os.Exit(1)
	}
	logger.Info("TTS engines registered",
		"engines", ttsRegistry.List(),
		"default", cfg.TTSEngine,
		"languages", tts.Languages,
	)

	synth := tts.NewSynthesizer(ttsRegistry, cfg.SynthesisTimeout, logger)

	opts := []pipeline.Option{pipeline.WithMetrics(m)}
	if cfg.AudioFormat == pipeline.OutputMP3 {
		audioConv, err := audio.NewConverter()
		if err != nil {
			logger.Warn("ffmpeg not available, audio will be delivered in the engine's format", "error", err)
		} else {
			opts = append(opts, pipeline.WithTranscoder(audioConv))
		}
	}

	p := pipeline.New(pipeline.Config{
		Limits: pipeline.Limits{
			MaxUploadBytes: cfg.MaxUploadBytes,
			MaxTextChars:   cfg.MaxTextChars,
		},
		StrictMIME: cfg.StrictMIME,
		Output:     cfg.AudioFormat,
	}, store, synth, logger, opts...)

	server := api.New(cfg, logger, p, m)

	go func() {
		if err := server.Start(); err != nil {
			logger.Error("HTTP server error", "error", err)
			cancel()
		}
	}()

	<-ctx.Done()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("failed to shutdown HTTP server", "error", err)
	}

	logger.Info("shutdown complete")
}

// newRegistry registers Google and, when a model is configured, Piper, and
// makes the configured engine the default.
func newRegistry(cfg *config.Config, logger *slog.Logger) (*tts.Registry, error) {
	registry := tts.NewRegistry()

	google, err := tts.NewGoogleEngine(tts.GoogleConfig{
		Endpoint: cfg.GoogleTTSURL,
		TLD:      cfg.GoogleTTSTLD,
	}, logger)
	if err != nil {
		return nil, err
	}
	if err := registry.Register(google); err != nil {
		return nil, err
	}

	if cfg.PiperModelEN != "" {
		piper, err := tts.NewPiperEngine(tts.PiperConfig{
			BinaryPath: cfg.PiperPath,
			Models:     cfg.PiperModels(),
			ExtraArgs:  cfg.PiperExtraArgs,
		}, logger)
		switch {
		case err == nil:
			if err := registry.Register(piper); err != nil {
				return nil, err
			}
			if langs := piper.Languages(); len(langs) < len(tts.Languages) {
				logger.Warn("Piper lacks a voice for some languages, those requests will fail",
					"voices", langs,
					"languages", tts.Languages,
				)
			}
		case cfg.TTSEngine == "piper":
			return nil, err
		default:
			logger.Warn("Piper configured but unavailable", "error", err)
		}
	}

	if err := registry.SetDefault(cfg.TTSEngine); err != nil {
		return nil, err
	}
	return registry, nil
}
