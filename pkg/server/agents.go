package server

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/docent-ai/docent/pkg/agent"
)

func (s *Server) handleAgentInfo(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"name":        "Agent1",
		"description": "ReAct agent with reasoning and tool use",
		"model":       s.agent.Model(),
		"capabilities": []string{
			"Tool use",
			"Reasoning (ReAct pattern)",
			"Multi-step planning",
			"Conversation memory",
		},
		"tools":          s.agent.ToolInfos(),
		"max_iterations": s.agent.MaxSteps(),
	})
}

func (s *Server) handleAgentTools(w http.ResponseWriter, r *http.Request) {
	infos := s.agent.ToolInfos()
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"tools": infos,
		"count": len(infos),
	})
}

func (s *Server) handleAgentQuery(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Message      string `json:"message"`
		ResetHistory bool   `json:"reset_history"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeAgentFailure(w, "Invalid request body")
		return
	}
	if strings.TrimSpace(req.Message) == "" {
		writeAgentFailure(w, "No message provided")
		return
	}

	if req.ResetHistory {
		s.agent.Reset()
	}

	result, err := s.agent.Run(r.Context(), req.Message)
	if err != nil {
		var blocked *agent.BlockedError
		if !errors.As(err, &blocked) {
			slog.Error("Agent query failed", "error", err)
		}
		writeAgentFailure(w, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, struct {
		Success bool `json:"success"`
		*agent.RunResult
	}{true, result})
}

func (s *Server) handleAgentReset(w http.ResponseWriter, r *http.Request) {
	s.agent.Reset()
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"message": "Agent1 conversation history reset",
	})
}

// writeAgentFailure mirrors writeFailure but keys the text under
// "error", which is what agent clients expect.
func writeAgentFailure(w http.ResponseWriter, message string) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"success": false,
		"error":   message,
	})
}
