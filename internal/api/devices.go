package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/nerrad567/thingview-core/internal/command"
)

// deviceSummary is one row in the device list response.
type deviceSummary struct {
	DeviceID    string `json:"device_id"`
	Liveness    string `json:"liveness"`
	IsSynthetic bool   `json:"is_synthetic"`
}

// handleListDevices returns all tracked devices with their liveness.
func (s *Server) handleListDevices(w http.ResponseWriter, _ *http.Request) {
	ids := s.engine.Devices()
	devices := make([]deviceSummary, 0, len(ids))
	for _, id := range ids {
		st := s.engine.GetDeviceState(id)
		devices = append(devices, deviceSummary{
			DeviceID:    id,
			Liveness:    string(st.Liveness),
			IsSynthetic: st.IsSynthetic,
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{"devices": devices, "count": len(devices)})
}

// handleGetDeviceState returns the reconciled state for a device.
//
// Unknown devices still produce a response: the engine fabricates or
// returns an empty view rather than failing, so client dashboards never
// go blank.
func (s *Server) handleGetDeviceState(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	writeJSON(w, http.StatusOK, s.engine.GetDeviceState(id))
}

// handleDeviceHistory returns recent persisted observations for a device.
//
// Query parameters:
//   - limit: maximum rows to return (default 20, capped at 200)
func (s *Server) handleDeviceHistory(w http.ResponseWriter, r *http.Request) {
	if s.history == nil {
		writeServiceUnavailable(w, "telemetry history is not configured")
		return
	}

	id := chi.URLParam(r, "id")
	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 0 {
			writeBadRequest(w, "limit must be a non-negative integer")
			return
		}
		limit = parsed
	}

	observations, err := s.history.Recent(r.Context(), id, limit)
	if err != nil {
		s.logger.Error("history query failed", "device_id", id, "error", err)
		writeInternalError(w, "failed to query history")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"observations": observations, "count": len(observations)})
}

// handleDeviceAlerts returns recent alerts for a device, newest first.
func (s *Server) handleDeviceAlerts(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if s.alerts == nil {
		writeJSON(w, http.StatusOK, map[string]any{"alerts": []any{}, "count": 0})
		return
	}
	alerts := s.alerts.List(id)
	writeJSON(w, http.StatusOK, map[string]any{"alerts": alerts, "count": len(alerts)})
}

// commandRequest is the body of POST /devices/{id}/commands.
//
// Relay form: {"relay": 2, "state": true}
// Generic form: {"command": "reboot", "params": {...}}
type commandRequest struct {
	Relay   *int           `json:"relay,omitempty"`
	State   *bool          `json:"state,omitempty"`
	Command string         `json:"command,omitempty"`
	Params  map[string]any `json:"params,omitempty"`
}

// handleDispatchCommand publishes a command to a device.
//
// Dispatch is fire and forget: a 202 response means the broker accepted
// the payload, not that the device acted on it.
func (s *Server) handleDispatchCommand(w http.ResponseWriter, r *http.Request) {
	if s.dispatcher == nil {
		writeServiceUnavailable(w, "command dispatch is not configured")
		return
	}

	id := chi.URLParam(r, "id")

	var req commandRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}

	var (
		pending *command.PendingCommand
		err     error
	)
	switch {
	case req.Relay != nil:
		if req.State == nil {
			writeBadRequest(w, "relay commands require a state field")
			return
		}
		pending, err = s.dispatcher.DispatchRelay(id, *req.Relay, *req.State)
	case req.Command != "":
		var params any
		if req.Params != nil {
			params = req.Params
		}
		pending, err = s.dispatcher.Dispatch(id, command.KindGeneric, req.Command, params)
	default:
		writeBadRequest(w, "body must contain either a relay or a command field")
		return
	}

	if err != nil {
		if errors.Is(err, command.ErrInvalidCommand) {
			writeBadRequest(w, err.Error())
			return
		}
		s.logger.Error("command dispatch failed", "device_id", id, "error", err)
		writeServiceUnavailable(w, "failed to publish command")
		return
	}

	writeJSON(w, http.StatusAccepted, pending)
}
