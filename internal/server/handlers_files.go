package server

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/jonathan/evidentia/internal/scenarios"
)

// maxUploadBytes bounds one uploaded file.
const maxUploadBytes = 100 << 20

var unsafeNameChars = regexp.MustCompile(`[^a-zA-Z0-9.-]`)

// uploadKey names a stored upload "<unix ms>-<sanitized name>".
func uploadKey(now time.Time, filename string) string {
	return fmt.Sprintf("%d-%s", now.UnixMilli(), unsafeNameChars.ReplaceAllString(filepath.Base(filename), "_"))
}

// originalName strips the timestamp prefix from an upload key.
func originalName(key string) string {
	if i := strings.IndexByte(key, '-'); i > 0 {
		return key[i+1:]
	}
	return key
}

// handleUpload stores a multipart "file" under the upload dir and returns
// its key for a later analyze request.
func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)
	file, header, err := r.FormFile("file")
	if err != nil {
		s.errorResponse(w, http.StatusBadRequest, "No file provided")
		return
	}
	defer file.Close()

	kind := r.FormValue("type")
	if kind == "" {
		kind = "file"
	}

	if err := os.MkdirAll(s.uploadDir, 0o755); err != nil {
		s.log.WithFields(logFields(r)).WithError(err).Error("Upload error")
		s.errorResponse(w, http.StatusInternalServerError, "Upload failed")
		return
	}
	key := uploadKey(time.Now(), header.Filename)
	dst, err := os.Create(filepath.Join(s.uploadDir, key))
	if err != nil {
		s.log.WithFields(logFields(r)).WithError(err).Error("Upload error")
		s.errorResponse(w, http.StatusInternalServerError, "Upload failed")
		return
	}
	_, err = io.Copy(dst, file)
	if cerr := dst.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		_ = os.Remove(dst.Name())
		s.log.WithFields(logFields(r)).WithError(err).Error("Upload error")
		s.errorResponse(w, http.StatusInternalServerError, "Upload failed")
		return
	}

	s.jsonResponse(w, http.StatusOK, map[string]any{
		"ok":       true,
		"key":      key,
		"filename": header.Filename,
		"type":     kind,
	})
}

// FetchRequest is the body of /api/fetch.
type FetchRequest struct {
	URL string `json:"url" validate:"required,url"`
}

// handleFetch returns the readable text of a page.
func (s *Server) handleFetch(w http.ResponseWriter, r *http.Request) {
	var req FetchRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRequestBytes)).Decode(&req); err != nil {
		s.errorResponse(w, http.StatusBadRequest, "URL required")
		return
	}
	if err := s.validate.Struct(req); err != nil {
		s.errorResponse(w, http.StatusBadRequest, "URL required")
		return
	}

	res, err := s.fetcher.Fetch(r.Context(), req.URL)
	if err != nil {
		s.log.WithFields(logFields(r)).WithError(err).Error("Fetch error")
		s.errorResponse(w, http.StatusInternalServerError, "Failed to fetch URL")
		return
	}
	text := res.Text
	if strings.TrimSpace(text) == "" {
		text = "[Could not extract main content]"
	}
	s.jsonResponse(w, http.StatusOK, map[string]any{
		"ok":   true,
		"url":  req.URL,
		"text": text,
	})
}

// handleScenarios lists demo scenarios and adversarial templates.
func (s *Server) handleScenarios(w http.ResponseWriter, _ *http.Request) {
	catalog, err := scenarios.Load()
	if err != nil {
		s.log.WithError(err).Error("failed to load scenarios")
		s.errorResponse(w, http.StatusInternalServerError, "Failed to load scenarios")
		return
	}
	s.jsonResponse(w, http.StatusOK, map[string]any{
		"scenarios": catalog.Scenarios,
		"templates": catalog.Templates,
	})
}
