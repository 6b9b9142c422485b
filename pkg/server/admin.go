package server

import (
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/docent-ai/docent/pkg/config"
	"github.com/docent-ai/docent/pkg/llms"
)

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":           "healthy",
		"llm_base_url":     s.cfg.LLM.BaseURL,
		"generation_model": s.orch.CurrentModel(),
		"timeout_seconds":  s.cfg.LLM.TimeoutSeconds,
		"rag_enabled":      s.cfg.RAG.IsEnabled(),
		"embedding_model":  s.cfg.LLM.EmbeddingModel,
	})
}

// handleListModels merges the curated catalog with live availability.
// An unreachable runtime degrades to the catalog-only answer rather
// than failing the request.
func (s *Server) handleListModels(w http.ResponseWriter, r *http.Request) {
	installed, err := s.llm.ListModels(r.Context())
	if err != nil {
		slog.Warn("Model listing degraded to catalog only", "error", err)
		installed = nil
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"current_model":    s.orch.CurrentModel(),
		"available_models": llms.MergeAvailability(llms.Catalog(), installed),
	})
}

func (s *Server) handleLoadModel(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Model string `json:"model"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeFailure(w, "Invalid request body")
		return
	}

	if !catalogHas(req.Model) {
		writeFailure(w, "Invalid model. Available models: "+strings.Join(catalogNames(), ", "))
		return
	}

	if err := s.llm.Pull(r.Context(), req.Model); err != nil {
		slog.Error("Model pull failed", "model", req.Model, "error", err)
		writeFailure(w, fmt.Sprintf("Failed to load model: %v", err))
		return
	}

	s.orch.SetModel(req.Model)

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"success":       true,
		"message":       fmt.Sprintf("Model %s loaded successfully", req.Model),
		"current_model": req.Model,
	})
}

func (s *Server) handleCurrentSystem(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"current_system":    s.orch.DefaultBackend(),
		"available_systems": []string{config.BackendManual, config.BackendFramework},
	})
}

func (s *Server) handleSwitchSystem(w http.ResponseWriter, r *http.Request) {
	var req struct {
		System string `json:"system"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeFailure(w, "Invalid request body")
		return
	}
	if req.System == "" {
		req.System = config.BackendManual
	}

	system := normalizeBackend(req.System)
	if err := s.orch.SetDefaultBackend(system); err != nil {
		writeFailure(w, fmt.Sprintf("Invalid system. Choose '%s' or '%s'", config.BackendManual, config.BackendFramework))
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"success":        true,
		"current_system": system,
		"message":        fmt.Sprintf("Switched to %s system", system),
	})
}

func catalogHas(name string) bool {
	for _, m := range llms.Catalog() {
		if m.Name == name {
			return true
		}
	}
	return false
}

func catalogNames() []string {
	catalog := llms.Catalog()
	names := make([]string, len(catalog))
	for i, m := range catalog {
		names[i] = m.Name
	}
	return names
}
