package api

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/yasrizalhakim/SISEOA/internal/listener"
)

// handleHealth reports process liveness and store connectivity.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	online := s.health == nil || s.health.Online()
	status := "ok"
	if !online {
		status = "degraded"
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"status":        status,
		"stores_online": online,
		"version":       s.version,
		"devices":       len(s.directory.ListDevices()),
	})
}

// triggerRequest is the optional body for POST /triggers/{action}.
type triggerRequest struct {
	DeviceID string `json:"device_id"`
}

// handleTrigger fires the same one-shot maintenance actions the MQTT
// trigger topic accepts.
func (s *Server) handleTrigger(w http.ResponseWriter, r *http.Request) {
	action := chi.URLParam(r, "action")

	var req triggerRequest
	if r.Body != nil {
		//nolint:errcheck // An empty or absent body is fine for most triggers
		json.NewDecoder(r.Body).Decode(&req)
	}

	switch action {
	case listener.TriggerRegenerateRules:
		s.miner.Trigger()
		writeJSON(w, http.StatusAccepted, map[string]any{"action": action})
	case listener.TriggerClearHistory:
		if req.DeviceID == "" {
			writeBadRequest(w, "device_id is required")
			return
		}
		if err := s.history.DeleteForDevice(r.Context(), req.DeviceID); err != nil {
			writeInternalError(w, "failed to clear history")
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"action": action, "device_id": req.DeviceID})
	case listener.TriggerRefreshTopology:
		if err := s.directory.Load(r.Context()); err != nil {
			writeInternalError(w, "failed to refresh topology")
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"action": action})
	default:
		writeNotFound(w, "unknown trigger action")
	}
}
