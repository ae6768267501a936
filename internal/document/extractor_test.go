package document

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/dgnsrekt/docspeak-go/internal/document/doctest"
	"github.com/dgnsrekt/docspeak-go/internal/logging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/text/encoding/unicode"
)

func writeTemp(t *testing.T, name string, data []byte) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, data, 0o600))
	return path
}

func extract(t *testing.T, kind Kind, name string, data []byte) (string, error) {
	t.Helper()
	extractor, err := ExtractorFor(kind, logging.Discard())
	require.NoError(t, err)
	return extractor.Extract(context.Background(), writeTemp(t, name, data))
}

func TestExtractorFor_UnknownKind(t *testing.T) {
	_, err := ExtractorFor(Kind(99), logging.Discard())
	assert.ErrorIs(t, err, ErrUnsupportedFormat)
}

func TestPDFExtractor_PagesConcatenatedInOrder(t *testing.T) {
	text, err := extract(t, KindPDF, "doc.pdf", doctest.PDF("First page.", "", "Second page."))
	require.NoError(t, err)

	first := strings.Index(text, "First page.")
	second := strings.Index(text, "Second page.")
	require.GreaterOrEqual(t, first, 0, "got %q", text)
	require.Greater(t, second, first, "got %q", text)
}

func TestPDFExtractor_NoTextPages(t *testing.T) {
	text, err := extract(t, KindPDF, "blank.pdf", doctest.PDF("", ""))
	require.NoError(t, err)
	assert.Empty(t, text)
}

func TestPDFExtractor_Malformed(t *testing.T) {
	_, err := extract(t, KindPDF, "bad.pdf", []byte("this is not a pdf at all"))
	assert.ErrorIs(t, err, ErrExtractionFailed)
}

func TestPDFExtractor_Truncated(t *testing.T) {
	full := doctest.PDF("Hello")
	_, err := extract(t, KindPDF, "cut.pdf", full[:len(full)/2])
	assert.ErrorIs(t, err, ErrExtractionFailed)
}

func TestPDFExtractor_AllPagesUnreadable(t *testing.T) {
	broken := "BT\n/F1 12 Tf\nTj\nET"

	_, err := extract(t, KindPDF, "broken.pdf", doctest.PDFWithStreams(broken, broken))
	assert.ErrorIs(t, err, ErrExtractionFailed)
}

func TestPDFExtractor_SkipsUnreadablePage(t *testing.T) {
	good := "BT\n/F1 12 Tf\n72 712 Td\n(Readable) Tj\nET"
	broken := "BT\n/F1 12 Tf\nTj\nET"

	text, err := extract(t, KindPDF, "mixed.pdf", doctest.PDFWithStreams(broken, good))
	require.NoError(t, err)
	assert.Contains(t, text, "Readable")
}

func TestWordExtractor_JoinsParagraphs(t *testing.T) {
	text, err := extract(t, KindWord, "doc.docx", doctest.DOCX("Hola mundo.", "", "Adiós & <bye>"))
	require.NoError(t, err)
	assert.Equal(t, "Hola mundo.\n\nAdiós & <bye>", text)
}

func TestWordExtractor_RunsTabsAndBreaks(t *testing.T) {
	body := `<w:p>` +
		`<w:pPr><w:tabs><w:tab w:val="left" w:pos="720"/></w:tabs></w:pPr>` +
		`<w:r><w:t>one</w:t></w:r><w:r><w:tab/><w:t>two</w:t><w:br/><w:t>three</w:t></w:r>` +
		`</w:p>` +
		`<w:tbl><w:tr><w:tc><w:p><w:r><w:t>in table</w:t></w:r></w:p></w:tc></w:tr></w:tbl>` +
		`<w:p><w:r><w:t>last</w:t></w:r></w:p>`

	text, err := extract(t, KindWord, "doc.docx", doctest.DOCXWithBody(body))
	require.NoError(t, err)
	assert.Equal(t, "one\ttwo\nthree\nlast", text)
}

func TestWordExtractor_ZeroParagraphs(t *testing.T) {
	text, err := extract(t, KindWord, "empty.docx", doctest.DOCX())
	require.NoError(t, err)
	assert.Empty(t, text)
}

func TestWordExtractor_Malformed(t *testing.T) {
	tests := map[string][]byte{
		"not a zip":      []byte("PK but not really"),
		"missing part":   doctest.Zip(map[string]string{"readme.txt": "hi"}),
		"broken xml":     doctest.Zip(map[string]string{"word/document.xml": "<w:document><w:body><w:p>"}),
		"mismatched xml": doctest.Zip(map[string]string{"word/document.xml": "<a><b></a>"}),
	}

	for name, data := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := extract(t, KindWord, "bad.docx", data)
			assert.ErrorIs(t, err, ErrExtractionFailed)
		})
	}
}

func TestTextExtractor_UTF8(t *testing.T) {
	text, err := extract(t, KindPlainText, "a.txt", []byte("Hello, señor. ¿Qué tal? Adiós."))
	require.NoError(t, err)
	assert.Equal(t, "Hello, señor. ¿Qué tal? Adiós.", text)
}

func TestTextExtractor_Empty(t *testing.T) {
	text, err := extract(t, KindPlainText, "a.txt", nil)
	require.NoError(t, err)
	assert.Empty(t, text)
}

func TestTextExtractor_SameTextAcrossEncodings(t *testing.T) {
	const logical = "Mañana será otro día. El niño comió pingüino en el café de la esquina."

	utf8Bytes := []byte(logical)
	utf16Bytes := encodeUTF16LE(logical)
	bareUTF16Bytes := encodeUTF16(logical, unicode.LittleEndian)

	fromUTF8, err := extract(t, KindPlainText, "utf8.txt", utf8Bytes)
	require.NoError(t, err)
	fromUTF16, err := extract(t, KindPlainText, "utf16.txt", utf16Bytes)
	require.NoError(t, err)

	fromBareUTF16, err := extract(t, KindPlainText, "utf16-nobom.txt", bareUTF16Bytes)
	require.NoError(t, err)

	assert.Equal(t, logical, fromUTF8)
	assert.Equal(t, fromUTF8, fromUTF16)
	assert.Equal(t, fromUTF8, fromBareUTF16)
	assert.Equal(t, utf8.RuneCountInString(logical), utf8.RuneCountInString(fromBareUTF16))
}
