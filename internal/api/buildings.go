package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/yasrizalhakim/SISEOA/internal/automation"
	"github.com/yasrizalhakim/SISEOA/internal/topology"
)

// buildingView is a building plus its live automation state.
type buildingView struct {
	topology.Building
	ActiveMode    string   `json:"active_mode"`
	LockedDevices []string `json:"locked_devices"`
}

// handleListBuildings returns every building with its automation state.
func (s *Server) handleListBuildings(w http.ResponseWriter, r *http.Request) {
	buildings := s.directory.ListBuildings()
	views := make([]buildingView, 0, len(buildings))
	for _, b := range buildings {
		locked := s.machine.LockedDevices(b.ID)
		if locked == nil {
			locked = []string{}
		}
		views = append(views, buildingView{
			Building:      b,
			ActiveMode:    string(s.machine.ModeOf(b.ID)),
			LockedDevices: locked,
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{"buildings": views, "count": len(views)})
}

// modeRequest is the body for PUT /buildings/{id}/mode.
type modeRequest struct {
	Mode string `json:"mode"`
}

// handleSetBuildingMode applies an automation mode to a building.
func (s *Server) handleSetBuildingMode(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if s.health != nil && !s.health.Online() {
		writeUnavailable(w, "backing stores offline")
		return
	}

	var req modeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid request body")
		return
	}
	mode, err := automation.ParseMode(req.Mode)
	if err != nil {
		writeBadRequest(w, "unknown mode")
		return
	}

	if err := s.machine.Apply(r.Context(), id, mode); err != nil {
		if errors.Is(err, topology.ErrBuildingNotFound) || errors.Is(err, automation.ErrUnknownBuilding) {
			writeNotFound(w, "building not found")
			return
		}
		s.logger.Error("mode apply failed", "building", id, "mode", mode, "error", err)
		writeInternalError(w, "failed to apply mode")
		return
	}

	locked := s.machine.LockedDevices(id)
	if locked == nil {
		locked = []string{}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"building_id":    id,
		"active_mode":    string(mode),
		"locked_devices": locked,
	})
}
