package document

import (
	"context"
	"fmt"
	"log/slog"
	"os"
)

type textExtractor struct {
	logger *slog.Logger
}

// Extract reads the file, detects its encoding and decodes it.
func (e *textExtractor) Extract(ctx context.Context, path string) (string, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("read text upload: %w", err)
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}

	enc := ResolveEncoding(raw)
	e.logger.Debug("text encoding resolved",
		"label", enc.Label,
		"confidence", enc.Confidence,
		"fallback", enc.Fallback,
		"bytes", len(raw),
	)

	return enc.Decode(raw)
}
