package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/yasrizalhakim/SISEOA/internal/rules"
)

// handleListRules returns every stored rule.
func (s *Server) handleListRules(w http.ResponseWriter, r *http.Request) {
	list, err := s.rules.List(r.Context())
	if err != nil {
		writeInternalError(w, "failed to list rules")
		return
	}
	if list == nil {
		list = []*rules.Rule{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"rules": list, "count": len(list)})
}

// handleGetRule returns a single device's rule.
func (s *Server) handleGetRule(w http.ResponseWriter, r *http.Request) {
	deviceID := chi.URLParam(r, "deviceID")
	rule, err := s.rules.Get(r.Context(), deviceID)
	if err != nil {
		if errors.Is(err, rules.ErrRuleNotFound) {
			writeNotFound(w, "no rule for device")
			return
		}
		writeInternalError(w, "failed to read rule")
		return
	}
	writeJSON(w, http.StatusOK, rule)
}

// ruleUpdateRequest is the body for PATCH /rules/{deviceID}. Enabling a
// mined rule is the only mutation the API offers; schedules themselves
// come from the miner or the remote clients.
type ruleUpdateRequest struct {
	Enabled *bool `json:"enabled"`
}

// handleUpdateRule flips a rule's enabled flag.
func (s *Server) handleUpdateRule(w http.ResponseWriter, r *http.Request) {
	deviceID := chi.URLParam(r, "deviceID")

	var req ruleUpdateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid request body")
		return
	}
	if req.Enabled == nil {
		writeBadRequest(w, "enabled field is required")
		return
	}

	if err := s.rules.SetEnabled(r.Context(), deviceID, *req.Enabled); err != nil {
		if errors.Is(err, rules.ErrRuleNotFound) {
			writeNotFound(w, "no rule for device")
			return
		}
		writeInternalError(w, "failed to update rule")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"device_id": deviceID, "enabled": *req.Enabled})
}
