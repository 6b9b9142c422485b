package server

import (
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/docent-ai/docent/pkg/config"
	"github.com/docent-ai/docent/pkg/rag"
)

// normalizeBackend maps the legacy "langchain" name onto the framework
// backend. Admin clients predating the rename keep working.
func normalizeBackend(name string) string {
	if name == "langchain" {
		return config.BackendFramework
	}
	return name
}

// backendFromRequest resolves the {backend} URL segment. Unknown names
// get a 404 with the usual failure body.
func (s *Server) backendFromRequest(w http.ResponseWriter, r *http.Request) (rag.Backend, bool) {
	name := normalizeBackend(chi.URLParam(r, "backend"))
	backend, ok := s.ingestor.Backend(name)
	if !ok {
		writeJSON(w, http.StatusNotFound, map[string]interface{}{
			"success": false,
			"message": fmt.Sprintf("Unknown backend: %s", name),
		})
		return nil, false
	}
	return backend, true
}

type ingestTextRequest struct {
	Text   string `json:"text"`
	Source string `json:"source"`
}

type previewRequest struct {
	Query   string   `json:"query"`
	Sources []string `json:"sources"`
	// TopK nil means the configured default; an explicit 0 stays 0.
	TopK *int `json:"top_k"`
}

type backendStatsResponse struct {
	Enabled bool `json:"enabled"`
	rag.BackendStats
}

func (s *Server) handleRAGStats(w http.ResponseWriter, r *http.Request) {
	manual, framework := s.ingestor.Backends()[0], s.ingestor.Backends()[1]

	manualStats, err := manual.Stats(r.Context())
	if err != nil {
		writeFailure(w, fmt.Sprintf("Failed to read manual stats: %v", err))
		return
	}
	frameworkStats, err := framework.Stats(r.Context())
	if err != nil {
		writeFailure(w, fmt.Sprintf("Failed to read framework stats: %v", err))
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"enabled":   s.cfg.RAG.IsEnabled(),
		"manual":    manualStats,
		"framework": frameworkStats,
	})
}

func (s *Server) handleBackendStats(w http.ResponseWriter, r *http.Request) {
	backend, ok := s.backendFromRequest(w, r)
	if !ok {
		return
	}

	stats, err := backend.Stats(r.Context())
	if err != nil {
		writeFailure(w, fmt.Sprintf("Failed to read stats: %v", err))
		return
	}

	writeJSON(w, http.StatusOK, backendStatsResponse{
		Enabled:      s.cfg.RAG.IsEnabled(),
		BackendStats: stats,
	})
}

// ragEnabled gates ingestion endpoints when RAG is switched off.
func (s *Server) ragEnabled(w http.ResponseWriter) bool {
	if s.cfg.RAG.IsEnabled() {
		return true
	}
	writeFailure(w, "RAG is disabled")
	return false
}

// handleIngestText writes the text into both backends. Best-effort:
// one backend failing is reported but does not fail the request.
func (s *Server) handleIngestText(w http.ResponseWriter, r *http.Request) {
	if !s.ragEnabled(w) {
		return
	}

	var req ingestTextRequest
	if err := decodeJSON(r, &req); err != nil {
		writeFailure(w, "Invalid request body")
		return
	}
	if strings.TrimSpace(req.Text) == "" {
		writeFailure(w, "No text provided")
		return
	}
	if req.Source == "" {
		req.Source = "uploaded"
	}

	res := s.ingestor.IngestText(r.Context(), req.Text, req.Source)
	writeJSON(w, http.StatusOK, unifiedIngestBody(res, req.Source, false))
}

func (s *Server) handleIngestFile(w http.ResponseWriter, r *http.Request) {
	if !s.ragEnabled(w) {
		return
	}

	filename, data, ok := readUpload(w, r)
	if !ok {
		return
	}

	slog.Info("File upload received", "filename", filename, "bytes", len(data))

	res := s.ingestor.IngestFile(r.Context(), filename, data)
	writeJSON(w, http.StatusOK, unifiedIngestBody(res, filename, true))
}

// unifiedIngestBody renders the per-backend outcome of a unified
// ingestion. fromFile switches on the empty-document check files get.
func unifiedIngestBody(res rag.IngestResult, source string, fromFile bool) map[string]interface{} {
	body := map[string]interface{}{
		"added_chunks":           res.ManualChunks,
		"added_chunks_framework": res.FrameworkChunks,
		"source":                 source,
	}
	if res.ManualErr != nil {
		body["manual_error"] = res.ManualErr.Error()
	}
	if res.FrameworkErr != nil {
		body["framework_error"] = res.FrameworkErr.Error()
	}

	switch {
	case res.ManualErr != nil && res.FrameworkErr != nil:
		body["success"] = false
		body["message"] = res.ManualErr.Error()
	case fromFile && res.ManualChunks <= 0 && res.FrameworkChunks <= 0:
		body["success"] = false
		body["message"] = "No chunks indexed (file may be empty or unsupported)"
	default:
		body["success"] = true
	}
	return body
}

func (s *Server) handleBackendIngestText(w http.ResponseWriter, r *http.Request) {
	backend, ok := s.backendFromRequest(w, r)
	if !ok {
		return
	}
	if !s.ragEnabled(w) {
		return
	}

	var req ingestTextRequest
	if err := decodeJSON(r, &req); err != nil {
		writeFailure(w, "Invalid request body")
		return
	}
	if strings.TrimSpace(req.Text) == "" {
		writeFailure(w, "No text provided")
		return
	}
	if req.Source == "" {
		req.Source = "uploaded"
	}

	added, err := backend.IngestText(r.Context(), req.Text, req.Source)
	if err != nil {
		writeFailure(w, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"success":      true,
		"added_chunks": added,
		"system":       backend.Name(),
	})
}

func (s *Server) handleBackendIngestFile(w http.ResponseWriter, r *http.Request) {
	backend, ok := s.backendFromRequest(w, r)
	if !ok {
		return
	}
	if !s.ragEnabled(w) {
		return
	}

	filename, data, ok := readUpload(w, r)
	if !ok {
		return
	}

	slog.Info("File upload received", "backend", backend.Name(), "filename", filename, "bytes", len(data))

	added, err := backend.IngestFile(r.Context(), filename, data)
	if err != nil {
		writeFailure(w, err.Error())
		return
	}
	if added <= 0 {
		writeFailure(w, "No chunks indexed (file may be empty)")
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"success":      true,
		"added_chunks": added,
		"source":       filename,
		"system":       backend.Name(),
	})
}

// handlePreview retrieves context via the current default backend
// without generating anything.
func (s *Server) handlePreview(w http.ResponseWriter, r *http.Request) {
	backend, _ := s.ingestor.Backend(s.orch.DefaultBackend())
	s.preview(w, r, backend)
}

func (s *Server) handleBackendPreview(w http.ResponseWriter, r *http.Request) {
	backend, ok := s.backendFromRequest(w, r)
	if !ok {
		return
	}
	s.preview(w, r, backend)
}

func (s *Server) preview(w http.ResponseWriter, r *http.Request, backend rag.Backend) {
	var req previewRequest
	if err := decodeJSON(r, &req); err != nil {
		writeFailure(w, "Invalid request body")
		return
	}
	if strings.TrimSpace(req.Query) == "" {
		writeFailure(w, "No query provided")
		return
	}

	topK := s.cfg.RAG.TopK
	if req.TopK != nil {
		topK = *req.TopK
	}

	contextBlock, _, err := backend.BuildContext(r.Context(), req.Query, topK, req.Sources)
	if err != nil {
		writeFailure(w, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"success":         true,
		"sources":         req.Sources,
		"top_k":           topK,
		"context_preview": truncateRunes(contextBlock, 1000),
		"context_chars":   len([]rune(contextBlock)),
		"system":          backend.Name(),
	})
}

func (s *Server) handleReset(w http.ResponseWriter, r *http.Request) {
	for _, backend := range s.ingestor.Backends() {
		if err := backend.Reset(r.Context()); err != nil {
			writeFailure(w, fmt.Sprintf("Failed to reset %s backend: %v", backend.Name(), err))
			return
		}
	}

	slog.Info("RAG indexes reset")
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"message": "RAG indexes reset",
	})
}

func (s *Server) handleBackendReset(w http.ResponseWriter, r *http.Request) {
	backend, ok := s.backendFromRequest(w, r)
	if !ok {
		return
	}

	if err := backend.Reset(r.Context()); err != nil {
		writeFailure(w, fmt.Sprintf("Failed to reset: %v", err))
		return
	}

	slog.Info("RAG index reset", "backend", backend.Name())
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"system":  backend.Name(),
		"message": "RAG index reset",
	})
}

// readUpload pulls the multipart "file" field out of the request.
func readUpload(w http.ResponseWriter, r *http.Request) (string, []byte, bool) {
	file, header, err := r.FormFile("file")
	if err != nil {
		writeFailure(w, "No file provided")
		return "", nil, false
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		writeFailure(w, fmt.Sprintf("Failed to read upload: %v", err))
		return "", nil, false
	}

	filename := header.Filename
	if filename == "" {
		filename = "uploaded"
	}
	return filename, data, true
}

func truncateRunes(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n])
}
