package tts

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/dgnsrekt/docspeak-go/internal/logging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestSynthesizer(t *testing.T, engine Engine, timeout time.Duration) *Synthesizer {
	t.Helper()
	reg := NewRegistry()
	require.NoError(t, reg.Register(engine))
	return NewSynthesizer(reg, timeout, logging.Discard())
}

func TestSynthesizer_ResolvesLanguage(t *testing.T) {
	engine := &mockEngine{name: "mock"}
	synth := newTestSynthesizer(t, engine, time.Second)

	tests := map[string]string{
		"es":    "es",
		"es-AR": "es",
		"en":    "en",
		"fr":    "en",
		"":      "en",
	}
	for locale, want := range tests {
		result, err := synth.Synthesize(context.Background(), "texto", locale)
		require.NoError(t, err, "locale %q", locale)
		assert.Equal(t, want, engine.last().Language, "locale %q", locale)
		assert.Equal(t, want, result.Language, "locale %q", locale)
		assert.Equal(t, "texto", engine.last().Text)
	}
}

func TestSynthesizer_WrapsEngineErrors(t *testing.T) {
	boom := errors.New("boom")
	synth := newTestSynthesizer(t, &mockEngine{name: "mock", err: boom}, time.Second)

	_, err := synth.Synthesize(context.Background(), "hello", "en")
	assert.ErrorIs(t, err, ErrSynthesisFailed)
	assert.ErrorIs(t, err, boom)
}

func TestSynthesizer_EmptyAudioFails(t *testing.T) {
	synth := newTestSynthesizer(t, &mockEngine{name: "mock", data: []byte{}}, time.Second)

	_, err := synth.Synthesize(context.Background(), "hello", "en")
	assert.ErrorIs(t, err, ErrSynthesisFailed)
}

func TestSynthesizer_NoEngine(t *testing.T) {
	synth := NewSynthesizer(NewRegistry(), 0, logging.Discard())
	assert.Equal(t, DefaultTimeout, synth.timeout)

	_, err := synth.Synthesize(context.Background(), "hello", "en")
	assert.ErrorIs(t, err, ErrSynthesisFailed)
	assert.ErrorIs(t, err, ErrEngineNotFound)
}

type slowEngine struct{}

func (slowEngine) Name() string { return "slow" }

func (slowEngine) Synthesize(ctx context.Context, req SynthesizeRequest) (*AudioResult, error) {
	<-ctx.Done()
	return nil, ctx.Err()
}

func TestSynthesizer_Timeout(t *testing.T) {
	synth := newTestSynthesizer(t, slowEngine{}, 20*time.Millisecond)

	start := time.Now()
	_, err := synth.Synthesize(context.Background(), "hello", "en")
	assert.ErrorIs(t, err, ErrSynthesisFailed)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Less(t, time.Since(start), 5*time.Second)
}
