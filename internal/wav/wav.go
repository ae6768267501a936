// Package wav builds and inspects canonical 44-byte-header PCM WAV files.
package wav

import (
	"encoding/binary"
	"errors"
	"fmt"
	"time"
)

const (
	// HeaderSize is the size of a canonical WAV header in bytes.
	HeaderSize = 44

	// FormatPCM is the audio format code for uncompressed PCM.
	FormatPCM = 1
)

// Piper's --output-raw stream: 16-bit mono at 22050 Hz.
const (
	PiperSampleRate    = 22050
	PiperChannels      = 1
	PiperBitsPerSample = 16
)

// ErrInvalidHeader is returned by ReadHeader for anything that isn't a
// canonical PCM WAV file.
var ErrInvalidHeader = errors.New("invalid wav header")

// Header describes a PCM WAV file.
type Header struct {
	SampleRate    int
	Channels      int
	BitsPerSample int
	// DataSize is the length of the PCM payload in bytes.
	DataSize int
}

// Duration is the playing time of the PCM payload.
func (h Header) Duration() time.Duration {
	bytesPerSecond := h.SampleRate * h.Channels * h.BitsPerSample / 8
	if bytesPerSecond == 0 {
		return 0
	}
	return time.Duration(h.DataSize) * time.Second / time.Duration(bytesPerSecond)
}

// WrapRawPCM prepends a WAV header to raw little-endian PCM samples.
func WrapRawPCM(pcm []byte, sampleRate, channels, bitsPerSample int) []byte {
	le := binary.LittleEndian
	out := make([]byte, HeaderSize, HeaderSize+len(pcm))

	copy(out[0:4], "RIFF")
	le.PutUint32(out[4:8], uint32(36+len(pcm)))
	copy(out[8:12], "WAVE")

	copy(out[12:16], "fmt ")
	le.PutUint32(out[16:20], 16)
	le.PutUint16(out[20:22], FormatPCM)
	le.PutUint16(out[22:24], uint16(channels))
	le.PutUint32(out[24:28], uint32(sampleRate))
	le.PutUint32(out[28:32], uint32(sampleRate*channels*bitsPerSample/8))
	le.PutUint16(out[32:34], uint16(channels*bitsPerSample/8))
	le.PutUint16(out[34:36], uint16(bitsPerSample))

	copy(out[36:40], "data")
	le.PutUint32(out[40:44], uint32(len(pcm)))

	return append(out, pcm...)
}

// ReadHeader parses the header written by WrapRawPCM. A data size larger
// than the bytes present is clamped, since streamed WAVs often carry a
// placeholder length.
func ReadHeader(data []byte) (Header, error) {
	if len(data) < HeaderSize {
		return Header{}, fmt.Errorf("%w: %d bytes", ErrInvalidHeader, len(data))
	}
	if string(data[0:4]) != "RIFF" || string(data[8:12]) != "WAVE" ||
		string(data[12:16]) != "fmt " || string(data[36:40]) != "data" {
		return Header{}, fmt.Errorf("%w: bad chunk ids", ErrInvalidHeader)
	}

	le := binary.LittleEndian
	if format := le.Uint16(data[20:22]); format != FormatPCM {
		return Header{}, fmt.Errorf("%w: format %d is not PCM", ErrInvalidHeader, format)
	}

	h := Header{
		Channels:      int(le.Uint16(data[22:24])),
		SampleRate:    int(le.Uint32(data[24:28])),
		BitsPerSample: int(le.Uint16(data[34:36])),
		DataSize:      int(le.Uint32(data[40:44])),
	}
	if h.Channels == 0 || h.SampleRate == 0 || h.BitsPerSample == 0 {
		return Header{}, fmt.Errorf("%w: zero sample layout", ErrInvalidHeader)
	}
	if available := len(data) - HeaderSize; h.DataSize > available {
		h.DataSize = available
	}
	return h, nil
}

// Silence returns a WAV file holding numSamples zeroed samples per channel.
func Silence(numSamples, sampleRate, channels, bitsPerSample int) []byte {
	pcm := make([]byte, numSamples*channels*bitsPerSample/8)
	return WrapRawPCM(pcm, sampleRate, channels, bitsPerSample)
}
