// Package pipeline converts an uploaded document into a one-shot audio
// artifact: sniff, size check, extract, validate, synthesize, store.
package pipeline

import (
	"context"
	"errors"
	"log/slog"
	"time"
	"unicode/utf8"

	"github.com/dgnsrekt/docspeak-go/internal/artifact"
	"github.com/dgnsrekt/docspeak-go/internal/document"
	"github.com/dgnsrekt/docspeak-go/internal/metrics"
	"github.com/dgnsrekt/docspeak-go/internal/tts"
)

// Output formats.
const (
	OutputNative = "native"
	OutputMP3    = "mp3"
)

// Synthesizer speaks text in the language resolved from an interface locale.
type Synthesizer interface {
	Synthesize(ctx context.Context, text, locale string) (*tts.AudioResult, error)
}

// Transcoder re-encodes WAV audio as MP3.
type Transcoder interface {
	ToMP3(ctx context.Context, wav []byte) ([]byte, error)
}

// Config holds the settings a conversion runs with.
type Config struct {
	Limits Limits
	// StrictMIME makes a contradicting declared content type a rejection.
	StrictMIME bool
	// Output is OutputNative (keep the engine's format) or OutputMP3.
	Output string
}

// UploadRequest is one document to convert.
type UploadRequest struct {
	Data        []byte
	Filename    string
	ContentType string
	// Language is the caller's interface locale, resolved by the synthesizer.
	Language string
}

// Result describes the stored audio.
type Result struct {
	ID          string
	ContentType string
	Language    string
	Kind        document.Kind
	Size        int64
	TextChars   int
}

// Pipeline runs conversions. It is safe for concurrent use; runs share only
// the artifact store's directory.
type Pipeline struct {
	cfg        Config
	validator  *Validator
	store      *artifact.Store
	synth      Synthesizer
	transcoder Transcoder
	metrics    *metrics.Metrics
	logger     *slog.Logger
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithTranscoder enables MP3 output for engines that produce WAV.
func WithTranscoder(t Transcoder) Option {
	return func(p *Pipeline) { p.transcoder = t }
}

// WithMetrics records conversion outcomes and stage timings.
func WithMetrics(m *metrics.Metrics) Option {
	return func(p *Pipeline) { p.metrics = m }
}

// New creates a pipeline.
func New(cfg Config, store *artifact.Store, synth Synthesizer, logger *slog.Logger, opts ...Option) *Pipeline {
	if cfg.Output == "" {
		cfg.Output = OutputNative
	}
	p := &Pipeline{
		cfg:       cfg,
		validator: NewValidator(cfg.Limits),
		store:     store,
		synth:     synth,
		logger:    logger,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Limits returns the effective ceilings.
func (p *Pipeline) Limits() Limits {
	return p.validator.Limits()
}

// Convert runs the whole pipeline for one upload. Any failure is returned as
// an *Error and stops the run; the materialized upload is always removed.
func (p *Pipeline) Convert(ctx context.Context, req UploadRequest) (*Result, error) {
	logger := p.logger.With("filename", req.Filename)

	kind, err := document.Sniff(req.Filename, req.ContentType, p.cfg.StrictMIME)
	if err != nil {
		return nil, p.fail(logger, kind, err)
	}
	logger = logger.With("kind", kind.String())

	if err := p.validator.CheckUpload(int64(len(req.Data))); err != nil {
		return nil, p.fail(logger, kind, err)
	}

	extractor, err := document.ExtractorFor(kind, logger)
	if err != nil {
		return nil, p.fail(logger, kind, err)
	}

	var text string
	start := time.Now()
	err = p.store.WithInput(ctx, req.Data, kind.Extension(), func(path string) error {
		var err error
		text, err = extractor.Extract(ctx, path)
		return err
	})
	p.observe(metrics.StageExtract, start)
	if err != nil {
		return nil, p.fail(logger, kind, err)
	}

	if err := p.validator.CheckText(text); err != nil {
		return nil, p.fail(logger, kind, err)
	}
	chars := utf8.RuneCountInString(text)
	logger.Debug("text extracted", "chars", chars)

	start = time.Now()
	audio, err := p.synth.Synthesize(ctx, text, req.Language)
	p.observe(metrics.StageSynthesize, start)
	if err != nil {
		return nil, p.fail(logger, kind, err)
	}
	logger.Debug("speech synthesized",
		"language", audio.Language,
		"content_type", audio.ContentType(),
		"bytes", len(audio.Data),
	)

	payload, format, err := p.encode(ctx, audio)
	if err != nil {
		return nil, p.fail(logger, kind, err)
	}

	start = time.Now()
	ref, err := p.store.SaveAudio(payload, format)
	p.observe(metrics.StageStore, start)
	if err != nil {
		return nil, p.fail(logger, kind, err)
	}

	if p.metrics != nil {
		p.metrics.Conversion(kind.String(), "ok")
	}
	logger.Info("conversion complete",
		"id", ref.ID,
		"language", audio.Language,
		"chars", chars,
		"bytes", ref.Size,
	)

	return &Result{
		ID:          ref.ID,
		ContentType: ref.ContentType,
		Language:    audio.Language,
		Kind:        kind,
		Size:        ref.Size,
		TextChars:   chars,
	}, nil
}

// encode applies the configured output format.
func (p *Pipeline) encode(ctx context.Context, audio *tts.AudioResult) ([]byte, string, error) {
	if p.cfg.Output != OutputMP3 || audio.Format == tts.FormatMP3 {
		return audio.Data, audio.Format, nil
	}
	if p.transcoder == nil {
		p.logger.Warn("mp3 output requested but no transcoder available, keeping engine format",
			"format", audio.Format)
		return audio.Data, audio.Format, nil
	}

	start := time.Now()
	mp3, err := p.transcoder.ToMP3(ctx, audio.Data)
	p.observe(metrics.StageTranscode, start)
	if err != nil {
		return nil, "", errors.Join(tts.ErrSynthesisFailed, err)
	}
	return mp3, tts.FormatMP3, nil
}

// Fetch claims an artifact for one-shot delivery. The caller must Close the
// delivery after sending it, which deletes the file.
func (p *Pipeline) Fetch(id string) (*artifact.Delivery, error) {
	delivery, err := p.store.Claim(id)
	if err != nil {
		perr := classify(err)
		if perr.Code == CodeInternal {
			p.logger.Error("artifact claim failed", "id", id, "error", err)
		}
		return nil, perr
	}
	return delivery, nil
}

// Stat reports an artifact's metadata without consuming its delivery.
func (p *Pipeline) Stat(id string) (artifact.Ref, time.Time, error) {
	ref, modTime, err := p.store.Stat(id)
	if err != nil {
		return artifact.Ref{}, time.Time{}, classify(err)
	}
	return ref, modTime, nil
}

func (p *Pipeline) fail(logger *slog.Logger, kind document.Kind, err error) *Error {
	perr := classify(err)

	level := slog.LevelInfo
	if perr.Code == CodeInternal || perr.Code == CodeSynthesisFailed {
		level = slog.LevelError
	}
	logger.Log(context.Background(), level, "conversion failed", "code", perr.Code, "error", err)

	if p.metrics != nil {
		label := ""
		if kind != 0 {
			label = kind.String()
		}
		p.metrics.Conversion(label, string(perr.Code))
	}
	return perr
}

func (p *Pipeline) observe(stage string, start time.Time) {
	if p.metrics != nil {
		p.metrics.StageDuration(stage, start)
	}
}
