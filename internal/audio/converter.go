// Package audio transcodes synthesized speech with ffmpeg.
package audio

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strconv"

	"github.com/dgnsrekt/docspeak-go/internal/wav"
)

// DefaultMP3Quality is the LAME VBR quality (0 best, 9 smallest) used for speech.
const DefaultMP3Quality = 5

var (
	// ErrFFmpegNotFound is returned when ffmpeg is not installed.
	ErrFFmpegNotFound = errors.New("ffmpeg not found in PATH")
	// ErrConversionFailed is returned when ffmpeg conversion fails.
	ErrConversionFailed = errors.New("audio conversion failed")
)

// Converter turns WAV speech into MP3.
type Converter struct {
	ffmpegPath string
	quality    int
}

// NewConverter creates a converter using the ffmpeg found in PATH.
func NewConverter() (*Converter, error) {
	path, err := exec.LookPath("ffmpeg")
	if err != nil {
		return nil, ErrFFmpegNotFound
	}
	return NewConverterWithPath(path), nil
}

// NewConverterWithPath creates a converter with a specific ffmpeg path.
func NewConverterWithPath(path string) *Converter {
	return &Converter{ffmpegPath: path, quality: DefaultMP3Quality}
}

// ToMP3 encodes a PCM WAV file as MP3.
func (c *Converter) ToMP3(ctx context.Context, wavData []byte) ([]byte, error) {
	if len(wavData) == 0 {
		return nil, fmt.Errorf("%w: empty input", ErrConversionFailed)
	}
	if _, err := wav.ReadHeader(wavData); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrConversionFailed, err)
	}

	args := []string{
		"-f", "wav",
		"-i", "pipe:0",
		"-codec:a", "libmp3lame",
		"-q:a", strconv.Itoa(c.quality),
		"-f", "mp3",
		"-loglevel", "error",
		"pipe:1",
	}

	cmd := exec.CommandContext(ctx, c.ffmpegPath, args...)
	cmd.Stdin = bytes.NewReader(wavData)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("%w: %s", ErrConversionFailed, stderr.String())
	}
	if stdout.Len() == 0 {
		return nil, fmt.Errorf("%w: no output", ErrConversionFailed)
	}

	return stdout.Bytes(), nil
}
