// Package client uploads documents to a docspeak server and saves the
// resulting audio.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
)

// ConvertResponse is the server's answer to a successful upload.
type ConvertResponse struct {
	AudioURL    string `json:"audio_url"`
	ID          string `json:"id"`
	Language    string `json:"language"`
	ContentType string `json:"content_type"`
}

// APIError is a non-2xx answer from the server.
type APIError struct {
	Status  int
	Code    string `json:"code"`
	Message string `json:"error"`
}

func (e *APIError) Error() string {
	if e.Code == "" {
		return fmt.Sprintf("server returned %d: %s", e.Status, e.Message)
	}
	return fmt.Sprintf("server returned %d (%s): %s", e.Status, e.Code, e.Message)
}

// Client talks to a docspeak server.
type Client struct {
	cfg        *Config
	logger     *slog.Logger
	httpClient *http.Client
}

// NewClient creates a new upload client.
func NewClient(cfg *Config, logger *slog.Logger) *Client {
	return &Client{
		cfg:    cfg,
		logger: logger,
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
		},
	}
}

// Upload sends the document at path to /v1/convert.
func (c *Client) Upload(ctx context.Context, path string) (*ConvertResponse, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read document: %w", err)
	}

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	if c.cfg.Language != "" {
		if err := mw.WriteField("language", c.cfg.Language); err != nil {
			return nil, fmt.Errorf("failed to build form: %w", err)
		}
	}
	part, err := mw.CreateFormFile("file", filepath.Base(path))
	if err != nil {
		return nil, fmt.Errorf("failed to build form: %w", err)
	}
	if _, err := part.Write(data); err != nil {
		return nil, fmt.Errorf("failed to build form: %w", err)
	}
	if err := mw.Close(); err != nil {
		return nil, fmt.Errorf("failed to build form: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint("/v1/convert"), &body)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set("Accept", "application/json")

	c.logger.Debug("uploading document", "path", path, "bytes", len(data), "language", c.cfg.Language)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, readAPIError(resp)
	}

	var out ConvertResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}
	if out.AudioURL == "" {
		return nil, errors.New("response has no audio_url")
	}

	return &out, nil
}

// Download fetches audioURL, relative to the server URL, into w. The server
// deletes the file after this call, so it can succeed at most once.
func (c *Client) Download(ctx context.Context, audioURL string, w io.Writer) (int64, error) {
	target, err := c.resolve(audioURL)
	if err != nil {
		return 0, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return 0, readAPIError(resp)
	}

	n, err := io.Copy(w, resp.Body)
	if err != nil {
		return n, fmt.Errorf("failed to read audio: %w", err)
	}
	return n, nil
}

// Convert uploads the document at in and writes the audio to out. When out
// is empty the audio lands next to the input with the matching extension.
// It returns the path written.
func (c *Client) Convert(ctx context.Context, in, out string) (string, error) {
	res, err := c.Upload(ctx, in)
	if err != nil {
		return "", err
	}

	if out == "" {
		out = strings.TrimSuffix(in, filepath.Ext(in)) + ExtensionFor(res.ContentType)
	}

	f, err := os.Create(out)
	if err != nil {
		return "", fmt.Errorf("failed to create output: %w", err)
	}

	n, err := c.Download(ctx, res.AudioURL, f)
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		os.Remove(out)
		return "", err
	}

	c.logger.Info("audio saved",
		"input", in,
		"output", out,
		"bytes", n,
		"language", res.Language,
		"content_type", res.ContentType,
	)
	return out, nil
}

// ExtensionFor maps an audio content type to a file extension.
func ExtensionFor(contentType string) string {
	switch strings.ToLower(strings.TrimSpace(strings.Split(contentType, ";")[0])) {
	case "audio/mpeg", "audio/mp3":
		return ".mp3"
	case "audio/wav", "audio/x-wav", "audio/wave":
		return ".wav"
	default:
		return ".bin"
	}
}

func (c *Client) endpoint(path string) string {
	return strings.TrimSuffix(c.cfg.ServerURL, "/") + path
}

func (c *Client) resolve(ref string) (string, error) {
	base, err := url.Parse(strings.TrimSuffix(c.cfg.ServerURL, "/") + "/")
	if err != nil {
		return "", fmt.Errorf("invalid server URL: %w", err)
	}
	u, err := url.Parse(ref)
	if err != nil {
		return "", fmt.Errorf("invalid audio URL %q: %w", ref, err)
	}
	return base.ResolveReference(u).String(), nil
}

func readAPIError(resp *http.Response) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	apiErr := &APIError{Status: resp.StatusCode}
	if err := json.Unmarshal(body, apiErr); err != nil || apiErr.Message == "" {
		apiErr.Message = strings.TrimSpace(string(body))
	}
	return apiErr
}
