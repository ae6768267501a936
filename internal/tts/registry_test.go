package tts

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// mockEngine records requests and returns canned audio.
type mockEngine struct {
	name string
	data []byte
	err  error

	mu       sync.Mutex
	requests []SynthesizeRequest
}

func (m *mockEngine) Name() string {
	return m.name
}

func (m *mockEngine) Synthesize(ctx context.Context, req SynthesizeRequest) (*AudioResult, error) {
	m.mu.Lock()
	m.requests = append(m.requests, req)
	m.mu.Unlock()

	if m.err != nil {
		return nil, m.err
	}
	data := m.data
	if data == nil {
		data = []byte("mock audio")
	}
	return &AudioResult{Data: data, Format: FormatMP3}, nil
}

func (m *mockEngine) last() SynthesizeRequest {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.requests[len(m.requests)-1]
}

func TestRegistry_Register(t *testing.T) {
	reg := NewRegistry()
	require.NoError(t, reg.Register(&mockEngine{name: "test"}))

	assert.Equal(t, []string{"test"}, reg.List())
}

func TestRegistry_RegisterDuplicate(t *testing.T) {
	reg := NewRegistry()
	engine := &mockEngine{name: "test"}

	require.NoError(t, reg.Register(engine))
	assert.ErrorIs(t, reg.Register(engine), ErrEngineExists)
}

func TestRegistry_Default(t *testing.T) {
	reg := NewRegistry()

	_, err := reg.Default()
	assert.ErrorIs(t, err, ErrEngineNotFound)

	require.NoError(t, reg.Register(&mockEngine{name: "first"}))
	require.NoError(t, reg.Register(&mockEngine{name: "second"}))

	def, err := reg.Default()
	require.NoError(t, err)
	assert.Equal(t, "first", def.Name())
}

func TestRegistry_SetDefault(t *testing.T) {
	reg := NewRegistry()
	require.NoError(t, reg.Register(&mockEngine{name: "first"}))
	require.NoError(t, reg.Register(&mockEngine{name: "second"}))

	require.NoError(t, reg.SetDefault("second"))

	def, err := reg.Default()
	require.NoError(t, err)
	assert.Equal(t, "second", def.Name())

	assert.ErrorIs(t, reg.SetDefault("nonexistent"), ErrEngineNotFound)
}

func TestRegistry_List(t *testing.T) {
	reg := NewRegistry()
	assert.Empty(t, reg.List())

	for _, name := range []string{"gamma", "alpha", "beta"} {
		require.NoError(t, reg.Register(&mockEngine{name: name}))
	}

	assert.Equal(t, []string{"alpha", "beta", "gamma"}, reg.List())
}
