package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/dgnsrekt/docspeak-go/internal/metrics"
	"github.com/dgnsrekt/docspeak-go/internal/pipeline"
	"github.com/dgnsrekt/docspeak-go/internal/tts"
)

const (
	// langCookie stores the interface locale chosen via /v1/language.
	langCookie = "lang"

	codeBadRequest = "bad_request"

	// maxFormMemory is how much of a multipart body is kept in memory
	// before spilling to temporary files.
	maxFormMemory = 32 << 20
)

// ConvertResponse represents the response body for /v1/convert.
type ConvertResponse struct {
	AudioURL    string `json:"audio_url"`
	ID          string `json:"id"`
	Language    string `json:"language"`
	ContentType string `json:"content_type"`
}

// LanguageResponse represents the response body for /v1/language/{lang}.
type LanguageResponse struct {
	Success  bool   `json:"success"`
	Language string `json:"language,omitempty"`
}

// ErrorResponse represents an error response.
type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code,omitempty"`
}

// HealthResponse represents the response body for /v1/healthz.
type HealthResponse struct {
	Status string `json:"status"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg, code string) {
	writeJSON(w, status, ErrorResponse{Error: msg, Code: code})
}

// statusFor maps a pipeline failure code to an HTTP status.
func statusFor(code pipeline.Code) int {
	switch code {
	case pipeline.CodeUnsupportedFormat,
		pipeline.CodeExtractionFailed,
		pipeline.CodeDecodingFailed,
		pipeline.CodeTextTooLong,
		pipeline.CodeNoTextFound:
		return http.StatusBadRequest
	case pipeline.CodeFileTooLarge:
		return http.StatusRequestEntityTooLarge
	case pipeline.CodeSynthesisFailed:
		return http.StatusBadGateway
	case pipeline.CodeArtifactNotFound:
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) writePipelineError(w http.ResponseWriter, err error) {
	var perr *pipeline.Error
	if !errors.As(err, &perr) {
		s.logger.Error("unclassified pipeline error", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error", string(pipeline.CodeInternal))
		return
	}
	writeError(w, statusFor(perr.Code), perr.Message, string(perr.Code))
}

func (s *Server) fileTooLargeMessage() string {
	return fmt.Sprintf("file exceeds the maximum upload size of %d bytes", s.converter.Limits().MaxUploadBytes)
}

// handleHealthz handles GET /v1/healthz requests.
func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, HealthResponse{Status: "ok"})
}

// handleConvert handles POST /v1/convert requests.
func (s *Server) handleConvert(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(maxFormMemory); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			s.logger.Warn("upload exceeds body cap", "limit", maxErr.Limit)
			writeError(w, http.StatusRequestEntityTooLarge, s.fileTooLargeMessage(), string(pipeline.CodeFileTooLarge))
			return
		}
		s.logger.Warn("failed to parse upload form", "error", err)
		writeError(w, http.StatusBadRequest, "invalid multipart form", codeBadRequest)
		return
	}
	defer r.MultipartForm.RemoveAll()

	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, "no file uploaded", codeBadRequest)
		return
	}
	defer file.Close()

	if header.Filename == "" {
		writeError(w, http.StatusBadRequest, "no file selected", codeBadRequest)
		return
	}

	data, err := io.ReadAll(file)
	if err != nil {
		s.logger.Error("failed to read upload", "error", err)
		writeError(w, http.StatusBadRequest, "failed to read upload", codeBadRequest)
		return
	}

	result, err := s.converter.Convert(r.Context(), pipeline.UploadRequest{
		Data:        data,
		Filename:    header.Filename,
		ContentType: header.Header.Get("Content-Type"),
		Language:    s.requestLocale(r),
	})
	if err != nil {
		s.writePipelineError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, ConvertResponse{
		AudioURL:    "/v1/audio/" + result.ID,
		ID:          result.ID,
		Language:    result.Language,
		ContentType: result.ContentType,
	})
}

// requestLocale picks the interface locale for a conversion: the form
// field, then the language cookie, then Accept-Language, then the default.
func (s *Server) requestLocale(r *http.Request) string {
	if lang := strings.TrimSpace(r.FormValue("language")); lang != "" {
		return lang
	}
	if c, err := r.Cookie(langCookie); err == nil && c.Value != "" {
		return c.Value
	}
	if lang, ok := tts.MatchAcceptLanguage(r.Header.Get("Accept-Language")); ok {
		return lang
	}
	return tts.DefaultLanguage
}

// handleAudio handles GET /v1/audio/{id}. The artifact is deleted once the
// response has been sent, whether or not the client read all of it.
func (s *Server) handleAudio(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	delivery, err := s.converter.Fetch(id)
	if err != nil {
		if pipeline.CodeOf(err) == pipeline.CodeArtifactNotFound {
			s.recordDelivery(metrics.DeliveryNotFound)
		}
		s.writePipelineError(w, err)
		return
	}
	defer func() {
		if err := delivery.Close(); err != nil {
			s.logger.Warn("failed to remove delivered artifact", "id", id, "error", err)
		}
	}()

	writeAudioHeaders(w, delivery.ID, delivery.ContentType, delivery.Size, delivery.ModTime)
	w.WriteHeader(http.StatusOK)

	n, err := io.Copy(w, delivery)
	if err != nil {
		s.recordDelivery(metrics.DeliveryAborted)
		s.logger.Warn("audio delivery interrupted", "id", id, "sent", n, "error", err)
		return
	}

	s.recordDelivery(metrics.DeliveryServed)
	s.logger.Debug("audio delivered", "id", id, "bytes", n)
}

// handleAudioHead handles HEAD /v1/audio/{id}. The artifact stays available.
func (s *Server) handleAudioHead(w http.ResponseWriter, r *http.Request) {
	ref, modTime, err := s.converter.Stat(r.PathValue("id"))
	if err != nil {
		s.writePipelineError(w, err)
		return
	}
	writeAudioHeaders(w, ref.ID, ref.ContentType, ref.Size, modTime)
	w.WriteHeader(http.StatusOK)
}

func writeAudioHeaders(w http.ResponseWriter, id, contentType string, size int64, modTime time.Time) {
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", id))
	w.Header().Set("Content-Length", fmt.Sprint(size))
	w.Header().Set("Cache-Control", "no-store")
	w.Header().Set("Last-Modified", modTime.UTC().Format(http.TimeFormat))
}

// handleLanguage handles POST /v1/language/{lang}.
func (s *Server) handleLanguage(w http.ResponseWriter, r *http.Request) {
	lang := strings.ToLower(r.PathValue("lang"))
	if !tts.IsSupported(lang) {
		writeJSON(w, http.StatusBadRequest, LanguageResponse{Success: false})
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     langCookie,
		Value:    lang,
		Path:     "/",
		MaxAge:   int((365 * 24 * time.Hour).Seconds()),
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
	writeJSON(w, http.StatusOK, LanguageResponse{Success: true, Language: lang})
}

func (s *Server) recordDelivery(outcome string) {
	if s.metrics != nil {
		s.metrics.Delivery(outcome)
	}
}
