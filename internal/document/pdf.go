package document

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/ledongthuc/pdf"
)

type pdfExtractor struct {
	logger *slog.Logger
}

// Extract concatenates the text of every page in page order, with no
// separator. Pages without text are skipped; a document in which every page
// fails to parse is an extraction failure.
func (e *pdfExtractor) Extract(ctx context.Context, path string) (text string, err error) {
	// The parser panics on some malformed inputs.
	defer func() {
		if r := recover(); r != nil {
			e.logger.Debug("pdf parser panic", "path", path, "panic", r)
			text = ""
			err = fmt.Errorf("%w: malformed pdf", ErrExtractionFailed)
		}
	}()

	f, reader, err := pdf.Open(path)
	if err != nil {
		e.logger.Debug("pdf open failed", "path", path, "error", err)
		return "", fmt.Errorf("%w: malformed pdf", ErrExtractionFailed)
	}
	defer f.Close()

	var (
		sb     strings.Builder
		failed int
	)
	pages := reader.NumPage()
	for i := 1; i <= pages; i++ {
		if err := ctx.Err(); err != nil {
			return "", err
		}

		page := reader.Page(i)
		if page.V.IsNull() {
			continue
		}

		pageText, err := page.GetPlainText(nil)
		if err != nil {
			e.logger.Debug("pdf page has no extractable text", "page", i, "error", err)
			failed++
			continue
		}
		sb.WriteString(pageText)
	}

	if pages > 0 && failed == pages {
		return "", fmt.Errorf("%w: no readable page in %d", ErrExtractionFailed, pages)
	}

	e.logger.Debug("pdf extracted", "pages", pages, "chars", sb.Len())

	return sb.String(), nil
}
