package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/jonathan/evidentia/internal/pipeline"
	"github.com/jonathan/evidentia/internal/store"
	"github.com/jonathan/evidentia/internal/types"
)

// maxRequestBytes bounds JSON request bodies.
const maxRequestBytes = 5 << 20

// AnalyzeInput is one evidence item in an analyze request. UploadKey refers
// to a file previously stored through POST /api/upload.
type AnalyzeInput struct {
	types.EvidenceInput
	UploadKey string `json:"uploadKey,omitempty"`
}

// AnalyzeRequest represents the request body for /api/analyze
type AnalyzeRequest struct {
	Inputs     []AnalyzeInput `json:"inputs"`
	Mode       string         `json:"mode,omitempty"`
	ScenarioID string         `json:"scenarioId,omitempty"`
}

// AnalyzeResponse is returned by /api/analyze and sent as the SSE report event.
type AnalyzeResponse struct {
	OK          bool               `json:"ok"`
	ID          string             `json:"id,omitempty"`
	ShareID     string             `json:"shareId,omitempty"`
	RunID       string             `json:"runId"`
	Report      *types.TruthReport `json:"report"`
	Source      types.ReportSource `json:"source"`
	ReportError *types.ReportError `json:"reportError"`
}

// handleAnalyze runs the full analysis synchronously.
func (s *Server) handleAnalyze(w http.ResponseWriter, r *http.Request) {
	req, inputs, cleanup, err := s.decodeAnalyze(w, r)
	if err != nil {
		s.analyzeError(w, err)
		return
	}
	defer cleanup()

	resp, err := s.analyze(r.Context(), req, inputs, nil)
	if err != nil {
		s.analyzeError(w, err)
		return
	}
	s.jsonResponse(w, http.StatusOK, resp)
}

// handleAnalyzeStream runs the analysis and streams stage progress as SSE.
func (s *Server) handleAnalyzeStream(w http.ResponseWriter, r *http.Request) {
	req, inputs, cleanup, err := s.decodeAnalyze(w, r)
	if err != nil {
		s.analyzeError(w, err)
		return
	}
	defer cleanup()

	sse, err := NewSSEWriter(w)
	if err != nil {
		s.errorResponse(w, http.StatusInternalServerError, err.Error())
		return
	}

	onProgress := func(event pipeline.ProgressEvent) {
		if err := sse.WriteEvent("step", event); err != nil {
			s.log.WithError(err).Warn("Error writing SSE event")
		}
	}
	resp, err := s.analyze(r.Context(), req, inputs, onProgress)
	if err != nil {
		s.log.WithError(err).Error("streaming analysis failed")
		if HTTPStatus(err) == http.StatusGatewayTimeout {
			sse.WriteError("Analysis timed out")
			return
		}
		sse.WriteError("Analysis failed")
		return
	}

	if err := sse.WriteEvent("report", resp); err != nil {
		s.log.WithError(err).Warn("Error writing SSE report")
		return
	}
	sse.WriteComplete(resp.RunID, "completed")
}

// decodeAnalyze parses and validates an analyze request. The returned cleanup
// removes uploaded files referenced by the request and must always be called
// once err is nil.
func (s *Server) decodeAnalyze(w http.ResponseWriter, r *http.Request) (*AnalyzeRequest, []types.EvidenceInput, func(), error) {
	var req AnalyzeRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRequestBytes)).Decode(&req); err != nil {
		return nil, nil, nil, &ErrValidation{Field: "body", Message: "invalid JSON: " + err.Error()}
	}
	if len(req.Inputs) == 0 {
		return nil, nil, nil, pipeline.ErrNoEvidence
	}
	if _, err := pipeline.ParseMode(req.Mode); err != nil {
		return nil, nil, nil, err
	}

	inputs, uploaded, err := s.resolveInputs(req.Inputs)
	if err != nil {
		return nil, nil, nil, err
	}
	cleanup := func() {
		for _, p := range uploaded {
			if err := os.Remove(p); err != nil && !errors.Is(err, os.ErrNotExist) {
				s.log.WithError(err).WithField("path", p).Warn("failed to remove upload")
			}
		}
	}
	return &req, inputs, cleanup, nil
}

// resolveInputs maps upload keys to files under the upload dir and validates
// every item.
func (s *Server) resolveInputs(items []AnalyzeInput) ([]types.EvidenceInput, []string, error) {
	inputs := make([]types.EvidenceInput, len(items))
	var uploaded []string
	for i, item := range items {
		in := item.EvidenceInput
		if item.UploadKey != "" && in.Type != types.EvidenceText && in.Type != types.EvidenceLink {
			path, err := s.uploadPath(item.UploadKey)
			if err != nil {
				return nil, nil, err
			}
			in.LocationRef = path
			if in.Filename == "" {
				in.Filename = originalName(item.UploadKey)
			}
			uploaded = append(uploaded, path)
		}
		if err := in.Validate(i); err != nil {
			return nil, nil, err
		}
		inputs[i] = in
	}
	return inputs, uploaded, nil
}

// uploadPath resolves a key from /api/upload. Keys are bare file names.
func (s *Server) uploadPath(key string) (string, error) {
	if key != filepath.Base(key) || key == "." || key == ".." || strings.ContainsAny(key, `/\`) {
		return "", &ErrValidation{Field: "uploadKey", Message: "invalid upload key"}
	}
	return filepath.Join(s.uploadDir, key), nil
}

// analyze runs the pipeline and persists the report when a store is configured.
func (s *Server) analyze(ctx context.Context, req *AnalyzeRequest, inputs []types.EvidenceInput, onProgress pipeline.ProgressCallback) (*AnalyzeResponse, error) {
	mode, err := pipeline.ParseMode(req.Mode)
	if err != nil {
		return nil, err
	}
	res, err := s.runner.RunAnalysis(ctx, inputs, pipeline.Options{
		Mode:       mode,
		ScenarioID: req.ScenarioID,
		OnProgress: onProgress,
	})
	if err != nil {
		return nil, err
	}

	resp := &AnalyzeResponse{
		OK:          true,
		RunID:       res.RunID,
		Report:      res.Report,
		Source:      res.Source,
		ReportError: res.Error,
	}
	if s.store != nil {
		rec, err := store.NewStoredReport(res.Report, string(mode))
		if err == nil {
			err = s.store.Save(ctx, rec)
		}
		if err != nil {
			s.log.WithError(err).WithField("run_id", res.RunID).Warn("failed to store report")
		} else {
			resp.ID = rec.ID.String()
			resp.ShareID = rec.ShareID
		}
	}
	return resp, nil
}

// analyzeError maps client errors to their message and hides everything else.
func (s *Server) analyzeError(w http.ResponseWriter, err error) {
	status := HTTPStatus(err)
	switch status {
	case http.StatusInternalServerError:
		s.log.WithError(err).Error("Analyze error")
		s.errorResponse(w, status, "Analysis failed")
		return
	case http.StatusGatewayTimeout:
		s.log.WithError(err).Warn("Analyze timed out")
		s.errorResponse(w, status, "Analysis timed out")
		return
	}
	if errors.Is(err, pipeline.ErrNoEvidence) {
		s.errorResponse(w, status, "At least one evidence input required")
		return
	}
	s.errorResponse(w, status, err.Error())
}

// handleStatus reports which backends are configured. It never returns secrets.
func (s *Server) handleStatus(w http.ResponseWriter, _ *http.Request) {
	configured := func(ok bool) string {
		if ok {
			return "configured"
		}
		return "not_configured"
	}
	s.jsonResponse(w, http.StatusOK, map[string]any{
		"model":  configured(s.runner.HasModel()),
		"search": configured(s.runner.HasSearch()),
		"debug":  s.status,
	})
}

// handleReport returns a stored report by id or share id.
func (s *Server) handleReport(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if s.store == nil {
		s.errorResponse(w, http.StatusNotFound, "Report not found")
		return
	}

	rec, err := s.store.Get(r.Context(), id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			s.errorResponse(w, http.StatusNotFound, "Report not found")
			return
		}
		s.log.WithError(err).WithField("id", id).Error("failed to load report")
		s.errorResponse(w, http.StatusInternalServerError, "Failed to load report")
		return
	}
	s.jsonResponse(w, http.StatusOK, rec)
}

// AdversarialRequest is the body of /api/adversarial/generate.
type AdversarialRequest struct {
	Template string `json:"template" validate:"required"`
}

func (s *Server) handleAdversarial(w http.ResponseWriter, r *http.Request) {
	var req AdversarialRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRequestBytes)).Decode(&req); err != nil {
		s.errorResponse(w, http.StatusBadRequest, "Invalid request body: "+err.Error())
		return
	}
	if err := s.validate.Struct(req); err != nil {
		s.errorResponse(w, http.StatusBadRequest, "template required")
		return
	}

	out, err := s.runner.GenerateAdversarial(r.Context(), req.Template)
	if err != nil {
		if HTTPStatus(err) == http.StatusBadRequest {
			s.errorResponse(w, http.StatusBadRequest, "template required")
			return
		}
		s.log.WithError(err).Error("Adversarial generate error")
		s.errorResponse(w, http.StatusInternalServerError, "Generation failed")
		return
	}
	s.jsonResponse(w, http.StatusOK, out)
}

// logFields is shared context for request-scoped warnings.
func logFields(r *http.Request) logrus.Fields {
	return logrus.Fields{"path": r.URL.Path, "remote_addr": r.RemoteAddr}
}
