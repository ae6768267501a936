package tts

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os/exec"

	"github.com/dgnsrekt/docspeak-go/internal/wav"
	"github.com/mattn/go-shellwords"
)

var (
	// ErrPiperNotFound is returned when the piper binary is not found.
	ErrPiperNotFound = errors.New("piper binary not found")
	// ErrNoModelSpecified is returned when no model covers the default language.
	ErrNoModelSpecified = errors.New("no piper model specified")
)

// PiperConfig holds configuration for the Piper TTS engine.
type PiperConfig struct {
	// BinaryPath is the path to the piper executable.
	BinaryPath string
	// Models maps a language code to its ONNX voice model.
	Models map[string]string
	// ExtraArgs is appended to every invocation, shell-quoted
	// (e.g. "--length_scale 1.1 --speaker 3").
	ExtraArgs string
}

// PiperEngine implements the Engine interface using local Piper TTS.
type PiperEngine struct {
	binary string
	models map[string]string
	extra  []string
	logger *slog.Logger
}

// NewPiperEngine creates a new Piper TTS engine.
func NewPiperEngine(cfg PiperConfig, logger *slog.Logger) (*PiperEngine, error) {
	if cfg.BinaryPath == "" {
		cfg.BinaryPath = "piper"
	}

	if _, err := exec.LookPath(cfg.BinaryPath); err != nil {
		return nil, fmt.Errorf("%w: %s", ErrPiperNotFound, cfg.BinaryPath)
	}

	models := make(map[string]string, len(cfg.Models))
	for lang, model := range cfg.Models {
		if model != "" {
			models[lang] = model
		}
	}
	if models[DefaultLanguage] == "" {
		return nil, fmt.Errorf("%w for %q", ErrNoModelSpecified, DefaultLanguage)
	}

	extra, err := shellwords.Parse(cfg.ExtraArgs)
	if err != nil {
		return nil, fmt.Errorf("parse piper extra args: %w", err)
	}

	return &PiperEngine{
		binary: cfg.BinaryPath,
		models: models,
		extra:  extra,
		logger: logger,
	}, nil
}

// Name returns the engine identifier.
func (p *PiperEngine) Name() string {
	return "piper"
}

// modelFor picks the voice model for lang. Codes outside Languages use the
// default language's model; a supported language without a model fails.
func (p *PiperEngine) modelFor(lang string) (string, string, error) {
	if !IsSupported(lang) {
		lang = DefaultLanguage
	}
	model, ok := p.models[lang]
	if !ok {
		return "", "", fmt.Errorf("%w: no piper model for language %q", ErrSynthesisFailed, lang)
	}
	return model, lang, nil
}

// Languages returns the supported languages this engine has a model for.
func (p *PiperEngine) Languages() []string {
	var langs []string
	for _, lang := range Languages {
		if _, ok := p.models[lang]; ok {
			langs = append(langs, lang)
		}
	}
	return langs
}

// Synthesize converts text to WAV audio using Piper.
func (p *PiperEngine) Synthesize(ctx context.Context, req SynthesizeRequest) (*AudioResult, error) {
	if req.Text == "" {
		return nil, ErrEmptyText
	}

	model, lang, err := p.modelFor(req.Language)
	if err != nil {
		p.logger.Warn("piper cannot speak requested language", "language", req.Language)
		return nil, err
	}

	args := append([]string{"--model", model, "--output-raw"}, p.extra...)

	p.logger.Debug("running piper",
		"binary", p.binary,
		"model", model,
		"language", lang,
		"text_length", len(req.Text),
	)

	cmd := exec.CommandContext(ctx, p.binary, args...)
	cmd.Stdin = bytes.NewReader([]byte(req.Text))

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		p.logger.Error("piper failed",
			"error", err,
			"stderr", stderr.String(),
		)
		return nil, fmt.Errorf("%w: %v", ErrSynthesisFailed, err)
	}

	raw := stdout.Bytes()
	if len(raw) == 0 {
		return nil, fmt.Errorf("%w: no audio output", ErrSynthesisFailed)
	}

	p.logger.Debug("piper synthesis complete", "output_bytes", len(raw))

	// --output-raw is 16-bit mono PCM at the model's rate
	return &AudioResult{
		Data:       wav.WrapRawPCM(raw, wav.PiperSampleRate, wav.PiperChannels, wav.PiperBitsPerSample),
		Format:     FormatWAV,
		Language:   lang,
		SampleRate: wav.PiperSampleRate,
		Channels:   wav.PiperChannels,
	}, nil
}
