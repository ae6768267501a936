package document

import (
	"context"
	"fmt"
	"log/slog"
)

// Extractor turns a document on disk into a single Unicode string.
// An empty result is valid; emptiness is judged by the caller.
type Extractor interface {
	Extract(ctx context.Context, path string) (string, error)
}

// ExtractorFor returns the extractor for a sniffed kind.
func ExtractorFor(kind Kind, logger *slog.Logger) (Extractor, error) {
	switch kind {
	case KindPDF:
		return &pdfExtractor{logger: logger}, nil
	case KindWord:
		return &wordExtractor{logger: logger}, nil
	case KindPlainText:
		return &textExtractor{logger: logger}, nil
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedFormat, kind)
	}
}
