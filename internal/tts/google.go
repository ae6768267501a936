package tts

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"unicode"
	"unicode/utf8"
)

const (
	// MaxTokenChars is the longest text the translate endpoint accepts per request.
	MaxTokenChars = 100

	// maxChunkBytes bounds a single audio response.
	maxChunkBytes = 8 << 20

	googleUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0 Safari/537.36"
)

// tokenDelimiters are the characters text is split after when it is too long
// for one request.
const tokenDelimiters = "?!？！.,¡()[]¿…‥،;:—。，、：\n"

// ErrEmptyText is returned when there is nothing to speak.
var ErrEmptyText = errors.New("empty text")

// GoogleConfig holds configuration for the Google Translate TTS engine.
type GoogleConfig struct {
	// Endpoint overrides the translate_tts URL.
	Endpoint string
	// TLD selects the Google domain when Endpoint is empty (default "com").
	TLD string
	// HTTPClient is used for requests. Defaults to a client without timeout;
	// callers bound requests through the context.
	HTTPClient *http.Client
}

// GoogleEngine speaks text through the Google Translate TTS endpoint. It
// returns MP3 audio.
type GoogleEngine struct {
	endpoint string
	client   *http.Client
	logger   *slog.Logger
}

// NewGoogleEngine creates a new Google Translate TTS engine.
func NewGoogleEngine(cfg GoogleConfig, logger *slog.Logger) (*GoogleEngine, error) {
	endpoint := cfg.Endpoint
	if endpoint == "" {
		tld := cfg.TLD
		if tld == "" {
			tld = "com"
		}
		endpoint = "https://translate.google." + tld + "/translate_tts"
	}

	u, err := url.Parse(endpoint)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("invalid google tts endpoint %q", endpoint)
	}

	client := cfg.HTTPClient
	if client == nil {
		client = &http.Client{}
	}

	return &GoogleEngine{
		endpoint: endpoint,
		client:   client,
		logger:   logger,
	}, nil
}

// Name returns the engine identifier.
func (g *GoogleEngine) Name() string {
	return "google"
}

// Synthesize fetches speech for every token of the text in order and joins
// the MP3 streams into one payload.
func (g *GoogleEngine) Synthesize(ctx context.Context, req SynthesizeRequest) (*AudioResult, error) {
	tokens := splitTokens(req.Text, MaxTokenChars)
	if len(tokens) == 0 {
		return nil, ErrEmptyText
	}

	lang := req.Language
	if lang == "" {
		lang = DefaultLanguage
	}

	g.logger.Debug("requesting google tts",
		"language", lang,
		"tokens", len(tokens),
		"text_length", utf8.RuneCountInString(req.Text),
	)

	var audio []byte
	for i, token := range tokens {
		chunk, err := g.fetch(ctx, token, lang, i, len(tokens))
		if err != nil {
			return nil, err
		}
		audio = append(audio, chunk...)
	}

	g.logger.Debug("google tts complete", "output_bytes", len(audio))

	return &AudioResult{
		Data:     audio,
		Format:   FormatMP3,
		Language: lang,
	}, nil
}

func (g *GoogleEngine) fetch(ctx context.Context, token, lang string, idx, total int) ([]byte, error) {
	q := url.Values{}
	q.Set("ie", "UTF-8")
	q.Set("client", "tw-ob")
	q.Set("tl", lang)
	q.Set("q", token)
	q.Set("total", strconv.Itoa(total))
	q.Set("idx", strconv.Itoa(idx))
	q.Set("textlen", strconv.Itoa(utf8.RuneCountInString(token)))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, g.endpoint+"?"+q.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("User-Agent", googleUserAgent)
	req.Header.Set("Referer", "http://translate.google.com/")

	resp, err := g.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: request token %d: %w", ErrSynthesisFailed, idx, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("%w: token %d: status %d: %s", ErrSynthesisFailed, idx, resp.StatusCode, strings.TrimSpace(string(body)))
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxChunkBytes))
	if err != nil {
		return nil, fmt.Errorf("%w: read token %d: %w", ErrSynthesisFailed, idx, err)
	}
	if len(data) == 0 {
		return nil, fmt.Errorf("%w: token %d: empty audio", ErrSynthesisFailed, idx)
	}

	return data, nil
}

// splitTokens breaks text into pieces of at most limit characters. Text that
// already fits is returned whole. Longer text is split after punctuation,
// neighbouring pieces are merged back while they fit, and pieces still too
// long are cut at the last space before the limit.
func splitTokens(text string, limit int) []string {
	text = strings.TrimSpace(text)
	if !speakable(text) {
		return nil
	}
	if utf8.RuneCountInString(text) <= limit {
		return []string{text}
	}

	var pieces []string
	runes := []rune(text)
	start := 0
	for i, r := range runes {
		if !strings.ContainsRune(tokenDelimiters, r) {
			continue
		}
		// keep decimals like 1.5 and 1,000 together
		if (r == '.' || r == ',') && i > 0 && i+1 < len(runes) &&
			unicode.IsDigit(runes[i-1]) && unicode.IsDigit(runes[i+1]) {
			continue
		}
		pieces = append(pieces, string(runes[start:i+1]))
		start = i + 1
	}
	if start < len(runes) {
		pieces = append(pieces, string(runes[start:]))
	}

	var tokens []string
	var current string
	for _, piece := range pieces {
		piece = strings.TrimSpace(piece)
		if piece == "" {
			continue
		}
		joined := piece
		if current != "" {
			joined = current + " " + piece
		}
		if utf8.RuneCountInString(joined) <= limit {
			current = joined
			continue
		}
		if current != "" {
			tokens = append(tokens, current)
		}
		parts := minimize(piece, limit)
		tokens = append(tokens, parts[:len(parts)-1]...)
		current = parts[len(parts)-1]
	}
	if current != "" {
		tokens = append(tokens, current)
	}

	out := tokens[:0]
	for _, token := range tokens {
		if speakable(token) {
			out = append(out, token)
		}
	}
	return out
}

// minimize cuts s into pieces of at most limit characters, preferring the
// last space before the limit.
func minimize(s string, limit int) []string {
	var parts []string
	runes := []rune(strings.TrimSpace(s))
	for len(runes) > limit {
		cut := limit
		for i := limit; i > 0; i-- {
			if unicode.IsSpace(runes[i]) {
				cut = i
				break
			}
		}
		if part := strings.TrimSpace(string(runes[:cut])); part != "" {
			parts = append(parts, part)
		}
		runes = []rune(strings.TrimSpace(string(runes[cut:])))
	}
	if len(runes) > 0 {
		parts = append(parts, string(runes))
	}
	return parts
}

func speakable(s string) bool {
	return strings.IndexFunc(s, func(r rune) bool {
		return unicode.IsLetter(r) || unicode.IsDigit(r)
	}) >= 0
}
