package pipeline

import (
	"errors"
	"fmt"
	"strings"

	"github.com/dgnsrekt/docspeak-go/internal/artifact"
	"github.com/dgnsrekt/docspeak-go/internal/document"
	"github.com/dgnsrekt/docspeak-go/internal/tts"
)

// Code is the machine-readable kind of a pipeline failure.
type Code string

// Failure codes.
const (
	CodeUnsupportedFormat Code = "unsupported_format"
	CodeFileTooLarge      Code = "file_too_large"
	CodeExtractionFailed  Code = "extraction_failed"
	CodeDecodingFailed    Code = "decoding_failed"
	CodeTextTooLong       Code = "text_too_long"
	CodeNoTextFound       Code = "no_text_found"
	CodeSynthesisFailed   Code = "synthesis_failed"
	CodeArtifactNotFound  Code = "artifact_not_found"
	CodeInternal          Code = "internal"
)

var (
	// ErrFileTooLarge is returned when an upload exceeds the size ceiling.
	ErrFileTooLarge = errors.New("file too large")
	// ErrTextTooLong is returned when extracted text exceeds the character ceiling.
	ErrTextTooLong = errors.New("text too long")
	// ErrNoTextFound is returned when extraction yields only whitespace.
	ErrNoTextFound = errors.New("no text found")
)

// Error is a classified pipeline failure. Message is safe to show to the
// caller; Err holds the internal cause for logs.
type Error struct {
	Code    Code
	Message string
	// Limit is the ceiling that was exceeded, for CodeFileTooLarge and
	// CodeTextTooLong.
	Limit int64
	Err   error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return e.Message
	}
	return e.Message + ": " + e.Err.Error()
}

func (e *Error) Unwrap() error {
	return e.Err
}

// CodeOf returns the code of a pipeline error, CodeInternal for anything else.
func CodeOf(err error) Code {
	var perr *Error
	if errors.As(err, &perr) {
		return perr.Code
	}
	return CodeInternal
}

func newError(code Code, err error) *Error {
	return &Error{Code: code, Message: messages[code], Err: err}
}

var messages = map[Code]string{
	CodeUnsupportedFormat: "unsupported file format, allowed formats: " + strings.Join(document.SupportedExtensions(), ", "),
	CodeExtractionFailed:  "could not extract text from the document",
	CodeDecodingFailed:    "could not decode the text file",
	CodeNoTextFound:       "no text found in the document",
	CodeSynthesisFailed:   "speech synthesis failed",
	CodeArtifactNotFound:  "audio file not found",
	CodeInternal:          "internal error",
}

func fileTooLarge(limit int64, size int64) *Error {
	return &Error{
		Code:    CodeFileTooLarge,
		Message: fmt.Sprintf("file exceeds the maximum upload size of %d bytes", limit),
		Limit:   limit,
		Err:     fmt.Errorf("%w: %d bytes", ErrFileTooLarge, size),
	}
}

func textTooLong(limit, chars int) *Error {
	return &Error{
		Code:    CodeTextTooLong,
		Message: fmt.Sprintf("text exceeds the maximum length of %d characters", limit),
		Limit:   int64(limit),
		Err:     fmt.Errorf("%w: %d characters", ErrTextTooLong, chars),
	}
}

// classify maps an error from a pipeline stage to its code.
func classify(err error) *Error {
	var perr *Error
	switch {
	case errors.As(err, &perr):
		return perr
	case errors.Is(err, document.ErrUnsupportedFormat):
		return newError(CodeUnsupportedFormat, err)
	case errors.Is(err, document.ErrDecodingFailed):
		return newError(CodeDecodingFailed, err)
	case errors.Is(err, document.ErrExtractionFailed):
		return newError(CodeExtractionFailed, err)
	case errors.Is(err, tts.ErrSynthesisFailed):
		return newError(CodeSynthesisFailed, err)
	case errors.Is(err, artifact.ErrArtifactNotFound):
		return newError(CodeArtifactNotFound, err)
	default:
		return newError(CodeInternal, err)
	}
}
