package pipeline

import (
	"strings"
	"unicode/utf8"
)

// Default ceilings.
const (
	DefaultMaxUploadBytes int64 = 10 * 1024 * 1024
	DefaultMaxTextChars         = 5000
)

// Limits are the size ceilings a conversion is held to.
type Limits struct {
	MaxUploadBytes int64
	MaxTextChars   int
}

// DefaultLimits returns the default ceilings.
func DefaultLimits() Limits {
	return Limits{
		MaxUploadBytes: DefaultMaxUploadBytes,
		MaxTextChars:   DefaultMaxTextChars,
	}
}

// Validator enforces Limits. It holds no other state.
type Validator struct {
	limits Limits
}

// NewValidator creates a validator. Zero or negative limits take their
// defaults.
func NewValidator(limits Limits) *Validator {
	if limits.MaxUploadBytes <= 0 {
		limits.MaxUploadBytes = DefaultMaxUploadBytes
	}
	if limits.MaxTextChars <= 0 {
		limits.MaxTextChars = DefaultMaxTextChars
	}
	return &Validator{limits: limits}
}

// Limits returns the effective ceilings.
func (v *Validator) Limits() Limits {
	return v.limits
}

// CheckUpload rejects uploads larger than MaxUploadBytes.
func (v *Validator) CheckUpload(size int64) error {
	if size > v.limits.MaxUploadBytes {
		return fileTooLarge(v.limits.MaxUploadBytes, size)
	}
	return nil
}

// CheckText rejects text over MaxTextChars characters, then blank text.
// Exactly MaxTextChars is accepted.
func (v *Validator) CheckText(text string) error {
	if n := utf8.RuneCountInString(text); n > v.limits.MaxTextChars {
		return textTooLong(v.limits.MaxTextChars, n)
	}
	if strings.TrimSpace(text) == "" {
		return newError(CodeNoTextFound, ErrNoTextFound)
	}
	return nil
}
