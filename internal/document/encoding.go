package document

import (
	"bytes"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/saintfish/chardet"
	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/htmlindex"
	"golang.org/x/text/encoding/ianaindex"
	"golang.org/x/text/encoding/unicode"
)

// MinConfidence is the lowest detector confidence (0-100) that is trusted.
const MinConfidence = 10

const (
	labelUTF8        = "utf-8"
	labelUTF16LE     = "utf-16le"
	labelUTF16BE     = "utf-16be"
	labelWindows1252 = "windows-1252"
)

// utf16Confidence is reported for UTF-16 recognized by its NUL byte pattern.
const utf16Confidence = 90

// utf16SampleSize bounds how many bytes sniffUTF16 inspects.
const utf16SampleSize = 4096

// Encoding is the outcome of encoding detection for a plain text buffer.
type Encoding struct {
	// Label is the normalized charset name that will be used to decode.
	Label string
	// Confidence is the detector's score, 0 when the fallback was used.
	Confidence int
	// Fallback is true when detection was not trusted.
	Fallback bool

	enc encoding.Encoding
}

// ResolveEncoding guesses the character encoding of raw. It never fails:
// when the detector is unsure the result falls back to UTF-8 for valid UTF-8
// input and Windows-1252 otherwise.
func ResolveEncoding(raw []byte) Encoding {
	if len(raw) == 0 {
		return fallbackEncoding(raw)
	}
	if label, ok := sniffUTF16(raw); ok {
		return Encoding{Label: label, Confidence: utf16Confidence, enc: lookupEncoding(label)}
	}

	result, err := chardet.NewTextDetector().DetectBest(raw)
	if err == nil && result != nil && result.Confidence >= MinConfidence {
		label := normalizeLabel(result.Charset)
		if label == labelUTF8 && !utf8.Valid(raw) {
			return fallbackEncoding(raw)
		}
		if enc := lookupEncoding(label); enc != nil {
			return Encoding{Label: label, Confidence: result.Confidence, enc: enc}
		}
	}

	return fallbackEncoding(raw)
}

// sniffUTF16 recognizes BOM-less UTF-16 from mostly-Latin text, where one
// byte of nearly every code unit is zero. Input starting with a BOM is left
// to the detector.
func sniffUTF16(raw []byte) (string, bool) {
	if len(raw) < 8 || bytes.HasPrefix(raw, []byte{0xFF, 0xFE}) || bytes.HasPrefix(raw, []byte{0xFE, 0xFF}) {
		return "", false
	}

	sample := raw[:min(len(raw), utf16SampleSize)]
	pairs := len(sample) / 2

	var evenZeros, oddZeros int
	for i := range pairs {
		if sample[2*i] == 0 {
			evenZeros++
		}
		if sample[2*i+1] == 0 {
			oddZeros++
		}
	}

	// at least 70% of units carry a zero on one side and almost none on the other
	high := pairs * 7 / 10
	low := pairs / 20
	switch {
	case oddZeros >= high && evenZeros <= low && oddZeros > 0:
		return labelUTF16LE, true
	case evenZeros >= high && oddZeros <= low && evenZeros > 0:
		return labelUTF16BE, true
	}
	return "", false
}

func fallbackEncoding(raw []byte) Encoding {
	if utf8.Valid(raw) {
		return Encoding{Label: labelUTF8, Fallback: true, enc: unicode.UTF8}
	}
	return Encoding{Label: labelWindows1252, Fallback: true, enc: charmap.Windows1252}
}

// Decode converts raw to a UTF-8 string using the resolved encoding.
// A leading byte order mark is dropped.
func (e Encoding) Decode(raw []byte) (string, error) {
	enc := e.enc
	if enc == nil {
		enc = lookupEncoding(e.Label)
	}
	if enc == nil {
		return "", fmt.Errorf("%w: no decoder for %q", ErrDecodingFailed, e.Label)
	}

	if e.Label == labelUTF8 && !utf8.Valid(raw) {
		return "", fmt.Errorf("%w: invalid utf-8", ErrDecodingFailed)
	}

	decoded, err := enc.NewDecoder().Bytes(raw)
	if err != nil {
		return "", fmt.Errorf("%w: %s: %v", ErrDecodingFailed, e.Label, err)
	}

	return strings.TrimPrefix(string(decoded), "\ufeff"), nil
}

// normalizeLabel maps detector charset names to names the x/text indexes know.
func normalizeLabel(charset string) string {
	label := strings.ToLower(strings.TrimSpace(charset))
	switch label {
	case "gb-18030":
		return "gb18030"
	case "utf8":
		return labelUTF8
	}
	return label
}

func lookupEncoding(label string) encoding.Encoding {
	if label == "" {
		return nil
	}
	if enc, err := htmlindex.Get(label); err == nil && enc != nil {
		return enc
	}
	if enc, err := ianaindex.IANA.Encoding(label); err == nil && enc != nil {
		return enc
	}
	return nil
}
