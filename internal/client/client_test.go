package client

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/dgnsrekt/docspeak-go/internal/logging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeServer mimics the convert/audio flow with a one-shot audio store.
type fakeServer struct {
	mu       sync.Mutex
	audio    map[string][]byte
	uploads  []string
	language string
}

func (f *fakeServer) handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /v1/convert", func(w http.ResponseWriter, r *http.Request) {
		file, header, err := r.FormFile("file")
		if err != nil {
			w.WriteHeader(http.StatusBadRequest)
			json.NewEncoder(w).Encode(map[string]string{"error": "no file uploaded", "code": "bad_request"})
			return
		}
		defer file.Close()
		data, _ := io.ReadAll(file)

		if filepath.Ext(header.Filename) == ".png" {
			w.WriteHeader(http.StatusBadRequest)
			json.NewEncoder(w).Encode(map[string]string{"error": "unsupported file format", "code": "unsupported_format"})
			return
		}

		f.mu.Lock()
		f.uploads = append(f.uploads, header.Filename)
		f.language = r.FormValue("language")
		f.audio["abc.mp3"] = append([]byte("audio:"), data...)
		f.mu.Unlock()

		json.NewEncoder(w).Encode(ConvertResponse{
			AudioURL:    "/v1/audio/abc.mp3",
			ID:          "abc.mp3",
			Language:    "es",
			ContentType: "audio/mpeg",
		})
	})
	mux.HandleFunc("GET /v1/audio/{id}", func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		data, ok := f.audio[r.PathValue("id")]
		delete(f.audio, r.PathValue("id"))
		f.mu.Unlock()
		if !ok {
			w.WriteHeader(http.StatusNotFound)
			json.NewEncoder(w).Encode(map[string]string{"error": "audio file not found", "code": "artifact_not_found"})
			return
		}
		w.Header().Set("Content-Type", "audio/mpeg")
		w.Write(data)
	})
	return mux
}

func (f *fakeServer) seen() ([]string, string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.uploads...), f.language
}

func newTestClient(t *testing.T, language string) (*Client, *fakeServer) {
	t.Helper()
	fake := &fakeServer{audio: make(map[string][]byte)}
	srv := httptest.NewServer(fake.handler())
	t.Cleanup(srv.Close)

	cfg := &Config{ServerURL: srv.URL + "/", Language: language, Timeout: 5 * time.Second}
	return NewClient(cfg, logging.Discard()), fake
}

func writeDoc(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestConvert_WritesAudioNextToInput(t *testing.T) {
	c, fake := newTestClient(t, "es")
	in := writeDoc(t, "notes.txt", "hola")

	out, err := c.Convert(context.Background(), in, "")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(filepath.Dir(in), "notes.mp3"), out)

	data, err := os.ReadFile(out)
	require.NoError(t, err)
	assert.Equal(t, "audio:hola", string(data))

	uploads, language := fake.seen()
	assert.Equal(t, []string{"notes.txt"}, uploads)
	assert.Equal(t, "es", language)
}

func TestConvert_ExplicitOutput(t *testing.T) {
	c, _ := newTestClient(t, "")
	in := writeDoc(t, "notes.txt", "hello")
	out := filepath.Join(t.TempDir(), "speech.mp3")

	got, err := c.Convert(context.Background(), in, out)
	require.NoError(t, err)
	assert.Equal(t, out, got)
	assert.FileExists(t, out)
}

func TestUpload_APIError(t *testing.T) {
	c, _ := newTestClient(t, "")
	in := writeDoc(t, "image.png", "png")

	_, err := c.Upload(context.Background(), in)

	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusBadRequest, apiErr.Status)
	assert.Equal(t, "unsupported_format", apiErr.Code)
	assert.Contains(t, apiErr.Error(), "unsupported file format")
}

func TestUpload_MissingFile(t *testing.T) {
	c, _ := newTestClient(t, "")

	_, err := c.Upload(context.Background(), filepath.Join(t.TempDir(), "missing.txt"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestDownload_OnlyOnce(t *testing.T) {
	c, _ := newTestClient(t, "")
	in := writeDoc(t, "a.txt", "once")

	res, err := c.Upload(context.Background(), in)
	require.NoError(t, err)

	var first bytes.Buffer
	n, err := c.Download(context.Background(), res.AudioURL, &first)
	require.NoError(t, err)
	assert.EqualValues(t, len("audio:once"), n)

	_, err = c.Download(context.Background(), res.AudioURL, io.Discard)
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusNotFound, apiErr.Status)
	assert.Equal(t, "audio file not found", apiErr.Message)
}

func TestConvert_FailedDownloadLeavesNoFile(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost {
			json.NewEncoder(w).Encode(ConvertResponse{AudioURL: "/v1/audio/gone.mp3", ContentType: "audio/mpeg"})
			return
		}
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	t.Cleanup(srv.Close)

	c := NewClient(&Config{ServerURL: srv.URL, Timeout: 5 * time.Second}, logging.Discard())
	in := writeDoc(t, "a.txt", "x")

	_, err := c.Convert(context.Background(), in, "")

	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, "boom", apiErr.Message)
	assert.NoFileExists(t, filepath.Join(filepath.Dir(in), "a.mp3"))
}

func TestExtensionFor(t *testing.T) {
	assert.Equal(t, ".mp3", ExtensionFor("audio/mpeg"))
	assert.Equal(t, ".wav", ExtensionFor("audio/wav; codecs=1"))
	assert.Equal(t, ".bin", ExtensionFor("application/json"))
}
