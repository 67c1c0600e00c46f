package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/nerrad567/thingview-core/internal/assist"
)

// queryRequest is the body of POST /devices/{id}/query.
type queryRequest struct {
	Query string `json:"query"`
}

// handleQuery answers a natural-language question about a device.
func (s *Server) handleQuery(w http.ResponseWriter, r *http.Request) {
	if s.assist == nil {
		writeServiceUnavailable(w, "assistant is not configured")
		return
	}

	id := chi.URLParam(r, "id")

	var req queryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}
	if strings.TrimSpace(req.Query) == "" {
		writeBadRequest(w, "query is required")
		return
	}

	answer, err := s.assist.Route(r.Context(), id, req.Query)
	if err != nil {
		if errors.Is(err, assist.ErrNoAnswer) {
			writeServiceUnavailable(w, "no answer available for this query")
			return
		}
		s.logger.Error("query routing failed", "device_id", id, "error", err)
		writeInternalError(w, "failed to answer query")
		return
	}

	writeJSON(w, http.StatusOK, answer)
}

// handleAnalyze runs a model-backed analysis of a device's recent behaviour.
func (s *Server) handleAnalyze(w http.ResponseWriter, r *http.Request) {
	if s.assist == nil {
		writeServiceUnavailable(w, "assistant is not configured")
		return
	}

	id := chi.URLParam(r, "id")

	insight, err := s.assist.Analyze(r.Context(), id)
	if err != nil {
		if errors.Is(err, assist.ErrModelUnavailable) {
			writeServiceUnavailable(w, "analysis model is not available")
			return
		}
		s.logger.Error("device analysis failed", "device_id", id, "error", err)
		writeInternalError(w, "failed to analyze device")
		return
	}

	writeJSON(w, http.StatusOK, insight)
}

// handleListInsights returns stored analysis results, newest first.
func (s *Server) handleListInsights(w http.ResponseWriter, _ *http.Request) {
	if s.assist == nil {
		writeJSON(w, http.StatusOK, map[string]any{"insights": []any{}, "count": 0})
		return
	}
	insights := s.assist.Insights().List()
	writeJSON(w, http.StatusOK, map[string]any{"insights": insights, "count": len(insights)})
}
