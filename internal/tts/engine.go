package tts

import (
	"context"
)

// Audio formats produced by engines.
const (
	FormatMP3 = "mp3"
	FormatWAV = "wav"
)

// SynthesizeRequest contains parameters for TTS synthesis.
type SynthesizeRequest struct {
	Text string
	// Language is a supported base language code, see ResolveLanguage.
	Language string
}

// AudioResult represents synthesized audio output.
type AudioResult struct {
	// Data contains the encoded audio bytes.
	Data []byte
	// Format is the container format, FormatMP3 or FormatWAV.
	Format string
	// Language is the language the audio was spoken in.
	Language string
	// SampleRate is the audio sample rate in Hz, 0 when the engine doesn't report it.
	SampleRate int
	// Channels is the number of audio channels, 0 when unknown.
	Channels int
}

// ContentType returns the MIME type matching Format.
func (a *AudioResult) ContentType() string {
	return ContentTypeFor(a.Format)
}

// ContentTypeFor maps an audio format to its MIME type.
func ContentTypeFor(format string) string {
	switch format {
	case FormatMP3:
		return "audio/mpeg"
	case FormatWAV:
		return "audio/wav"
	default:
		return "application/octet-stream"
	}
}

// Engine is the interface for text-to-speech synthesis.
type Engine interface {
	// Synthesize converts text to audio in one continuous payload.
	Synthesize(ctx context.Context, req SynthesizeRequest) (*AudioResult, error)
	// Name returns the engine identifier.
	Name() string
}
