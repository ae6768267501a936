package tts

import (
	"errors"
	"fmt"
	"slices"
	"sync"
)

var (
	// ErrEngineNotFound is returned when an engine is not registered.
	ErrEngineNotFound = errors.New("TTS engine not found")
	// ErrEngineExists is returned when trying to register a duplicate engine.
	ErrEngineExists = errors.New("TTS engine already registered")
)

// Registry holds the configured engines and the one used by default.
type Registry struct {
	mu      sync.RWMutex
	engines map[string]Engine
	def     string
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		engines: make(map[string]Engine),
	}
}

// Register adds an engine. The first registered engine becomes the default.
func (r *Registry) Register(engine Engine) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	name := engine.Name()
	if _, exists := r.engines[name]; exists {
		return fmt.Errorf("%w: %s", ErrEngineExists, name)
	}

	r.engines[name] = engine
	if r.def == "" {
		r.def = name
	}

	return nil
}

// Default returns the default engine.
func (r *Registry) Default() (Engine, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if r.def == "" {
		return nil, ErrEngineNotFound
	}

	return r.engines[r.def], nil
}

// SetDefault selects the default engine by name.
func (r *Registry) SetDefault(name string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.engines[name]; !exists {
		return fmt.Errorf("%w: %s", ErrEngineNotFound, name)
	}

	r.def = name
	return nil
}

// List returns the registered engine names in sorted order.
func (r *Registry) List() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.engines))
	for name := range r.engines {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}
