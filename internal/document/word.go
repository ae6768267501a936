package document

import (
	"archive/zip"
	"context"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
)

const (
	wordDocumentPart = "word/document.xml"
	wordMLNamespace  = "http://schemas.openxmlformats.org/wordprocessingml/2006/main"
)

type wordExtractor struct {
	logger *slog.Logger
}

// Extract returns the body paragraphs of a .docx joined by newlines.
// Paragraphs nested in tables, text boxes or other containers are not part of
// the body sequence and are skipped.
func (e *wordExtractor) Extract(ctx context.Context, path string) (string, error) {
	archive, err := zip.OpenReader(path)
	if err != nil {
		e.logger.Debug("docx is not a zip archive", "path", path, "error", err)
		return "", fmt.Errorf("%w: malformed docx", ErrExtractionFailed)
	}
	defer archive.Close()

	var part *zip.File
	for _, f := range archive.File {
		if f.Name == wordDocumentPart {
			part = f
			break
		}
	}
	if part == nil {
		return "", fmt.Errorf("%w: missing %s", ErrExtractionFailed, wordDocumentPart)
	}

	rc, err := part.Open()
	if err != nil {
		e.logger.Debug("docx part open failed", "error", err)
		return "", fmt.Errorf("%w: malformed docx", ErrExtractionFailed)
	}
	defer rc.Close()

	paragraphs, err := readBodyParagraphs(ctx, rc)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return "", ctxErr
		}
		e.logger.Debug("docx xml parse failed", "error", err)
		return "", fmt.Errorf("%w: malformed docx", ErrExtractionFailed)
	}

	e.logger.Debug("docx extracted", "paragraphs", len(paragraphs))

	return strings.Join(paragraphs, "\n"), nil
}

// readBodyParagraphs walks document.xml and collects the text of every w:p
// that is a direct child of w:body.
func readBodyParagraphs(ctx context.Context, r io.Reader) ([]string, error) {
	decoder := xml.NewDecoder(r)

	var (
		stack      []string
		paragraphs []string
		current    strings.Builder
		inPara     bool
		inText     bool
		nested     int
	)

	parent := func() string {
		if len(stack) == 0 {
			return ""
		}
		return stack[len(stack)-1]
	}

	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		tok, err := decoder.Token()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, err
		}

		switch t := tok.(type) {
		case xml.StartElement:
			name := localName(t.Name)
			switch {
			case name == "p" && parent() == "body":
				inPara = true
				current.Reset()
			case name == "p" && inPara:
				// text box content anchored inside a run
				nested++
			case inPara && nested == 0 && parent() == "r":
				switch name {
				case "t":
					inText = true
				case "tab":
					current.WriteByte('\t')
				case "br", "cr":
					current.WriteByte('\n')
				}
			}
			stack = append(stack, name)

		case xml.EndElement:
			if len(stack) == 0 {
				return nil, errors.New("unbalanced document.xml")
			}
			name := stack[len(stack)-1]
			stack = stack[:len(stack)-1]

			switch {
			case name == "t":
				inText = false
			case name == "p" && nested > 0:
				nested--
			case name == "p" && inPara && parent() == "body":
				paragraphs = append(paragraphs, current.String())
				inPara = false
			}

		case xml.CharData:
			if inPara && inText && nested == 0 {
				current.Write(t)
			}
		}
	}

	if len(stack) != 0 {
		return nil, errors.New("truncated document.xml")
	}

	return paragraphs, nil
}

// localName drops the namespace when it is WordprocessingML so that
// prefixed and default-namespace documents behave the same.
func localName(n xml.Name) string {
	if n.Space == "" || n.Space == wordMLNamespace {
		return n.Local
	}
	return n.Space + ":" + n.Local
}
