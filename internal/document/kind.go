// Package document classifies uploaded documents and extracts their text.
package document

import (
	"errors"
	"fmt"
	"mime"
	"strings"
)

var (
	// ErrUnsupportedFormat is returned when the file extension is missing or not allowed.
	ErrUnsupportedFormat = errors.New("unsupported document format")
	// ErrExtractionFailed is returned when a PDF or Word document cannot be parsed.
	ErrExtractionFailed = errors.New("text extraction failed")
	// ErrDecodingFailed is returned when plain text cannot be decoded.
	ErrDecodingFailed = errors.New("text decoding failed")
)

// Kind identifies a supported document type.
type Kind int

const (
	// KindPDF is a PDF document.
	KindPDF Kind = iota + 1
	// KindPlainText is a plain text file in any detectable encoding.
	KindPlainText
	// KindWord is an Office Open XML word processing document (.docx).
	KindWord
)

type kindInfo struct {
	ext   string
	mimes []string
}

var kinds = map[Kind]kindInfo{
	KindPDF:       {ext: "pdf", mimes: []string{"application/pdf", "application/x-pdf"}},
	KindPlainText: {ext: "txt", mimes: []string{"text/plain"}},
	KindWord: {ext: "docx", mimes: []string{
		"application/vnd.openxmlformats-officedocument.wordprocessingml.document",
	}},
}

// genericMIME types carry no information and are never treated as a mismatch.
var genericMIME = map[string]bool{
	"":                         true,
	"application/octet-stream": true,
	"binary/octet-stream":      true,
}

// String returns the canonical extension of the kind.
func (k Kind) String() string {
	if info, ok := kinds[k]; ok {
		return info.ext
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

// Extension returns the canonical file extension without a dot.
func (k Kind) Extension() string {
	return kinds[k].ext
}

// AcceptsMIME reports whether a declared content type is consistent with the kind.
func (k Kind) AcceptsMIME(contentType string) bool {
	mediaType := contentType
	if parsed, _, err := mime.ParseMediaType(contentType); err == nil {
		mediaType = parsed
	}
	mediaType = strings.ToLower(strings.TrimSpace(mediaType))

	if genericMIME[mediaType] {
		return true
	}
	for _, m := range kinds[k].mimes {
		if m == mediaType {
			return true
		}
	}
	return false
}

// SupportedExtensions lists the allowed upload extensions.
func SupportedExtensions() []string {
	return []string{"pdf", "txt", "docx"}
}

// Sniff classifies a document from its file name. The extension after the
// final dot decides the kind; the content is never read.
//
// contentType is the client-declared MIME type. When strictMIME is false it is
// ignored. When true, a declared type that contradicts the extension rejects
// the upload as well.
func Sniff(filename, contentType string, strictMIME bool) (Kind, error) {
	dot := strings.LastIndex(filename, ".")
	if dot < 0 || dot == len(filename)-1 {
		return 0, fmt.Errorf("%w: %q has no extension", ErrUnsupportedFormat, filename)
	}

	ext := strings.ToLower(filename[dot+1:])

	var kind Kind
	for k, info := range kinds {
		if info.ext == ext {
			kind = k
			break
		}
	}
	if kind == 0 {
		return 0, fmt.Errorf("%w: .%s", ErrUnsupportedFormat, ext)
	}

	if strictMIME && !kind.AcceptsMIME(contentType) {
		return 0, fmt.Errorf("%w: content type %q does not match .%s", ErrUnsupportedFormat, contentType, ext)
	}

	return kind, nil
}
