package tts

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"
)

// DefaultTimeout bounds one synthesis call when none is configured.
const DefaultTimeout = 60 * time.Second

// ErrSynthesisFailed is returned when TTS synthesis fails.
var ErrSynthesisFailed = errors.New("TTS synthesis failed")

// Synthesizer turns text and an interface locale into audio using the
// registry's default engine.
type Synthesizer struct {
	registry *Registry
	timeout  time.Duration
	logger   *slog.Logger
}

// NewSynthesizer creates a synthesizer. A non-positive timeout means
// DefaultTimeout.
func NewSynthesizer(registry *Registry, timeout time.Duration, logger *slog.Logger) *Synthesizer {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Synthesizer{
		registry: registry,
		timeout:  timeout,
		logger:   logger,
	}
}

// Synthesize resolves locale to a supported language and speaks text with it.
// Every failure, including a timeout, wraps ErrSynthesisFailed. Nothing is
// retried.
func (s *Synthesizer) Synthesize(ctx context.Context, text, locale string) (*AudioResult, error) {
	engine, err := s.registry.Default()
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrSynthesisFailed, err)
	}

	lang := ResolveLanguage(locale)
	if lang != locale {
		s.logger.Debug("language resolved", "requested", locale, "language", lang)
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	start := time.Now()
	result, err := engine.Synthesize(ctx, SynthesizeRequest{Text: text, Language: lang})
	if err != nil {
		s.logger.Warn("synthesis failed",
			"engine", engine.Name(),
			"language", lang,
			"elapsed", time.Since(start),
			"error", err,
		)
		if errors.Is(err, ErrSynthesisFailed) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %s: %w", ErrSynthesisFailed, engine.Name(), err)
	}
	if result == nil || len(result.Data) == 0 {
		return nil, fmt.Errorf("%w: %s returned no audio", ErrSynthesisFailed, engine.Name())
	}

	if result.Language == "" {
		result.Language = lang
	}

	s.logger.Info("synthesis complete",
		"engine", engine.Name(),
		"language", result.Language,
		"format", result.Format,
		"bytes", len(result.Data),
		"elapsed", time.Since(start),
	)

	return result, nil
}
