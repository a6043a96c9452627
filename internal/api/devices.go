package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/yasrizalhakim/SISEOA/internal/actuator"
	"github.com/yasrizalhakim/SISEOA/internal/automation"
	"github.com/yasrizalhakim/SISEOA/internal/energy"
	"github.com/yasrizalhakim/SISEOA/internal/event"
	"github.com/yasrizalhakim/SISEOA/internal/topology"
)

// defaultUsageDays bounds the usage history returned without a date filter.
const defaultUsageDays = 30

// deviceView is the merged read model for a device: topology attributes
// plus live automation state.
type deviceView struct {
	topology.Device
	BuildingID string `json:"building_id,omitempty"`
	Status     string `json:"status"`
	Online     bool   `json:"online"`
	Locked     bool   `json:"locked"`
}

func (s *Server) deviceView(dev topology.Device) deviceView {
	view := deviceView{
		Device: dev,
		Status: s.actuator.Status(dev.ID),
		Online: s.actuator.IsOnline(dev.ID),
		Locked: s.machine.IsLocked(dev.ID),
	}
	if buildingID, err := s.directory.ResolveBuilding(dev.ID); err == nil {
		view.BuildingID = buildingID
	}
	if view.Status == "" {
		view.Status = event.ActionOff
	}
	return view
}

// handleListDevices returns every known device with its live state.
func (s *Server) handleListDevices(w http.ResponseWriter, r *http.Request) {
	devices := s.directory.ListDevices()
	views := make([]deviceView, 0, len(devices))
	for _, dev := range devices {
		views = append(views, s.deviceView(dev))
	}
	writeJSON(w, http.StatusOK, map[string]any{"devices": views, "count": len(views)})
}

// handleGetDevice returns one device with its live state.
func (s *Server) handleGetDevice(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	dev, err := s.directory.GetDevice(id)
	if err != nil {
		writeNotFound(w, "device not found")
		return
	}
	writeJSON(w, http.StatusOK, s.deviceView(*dev))
}

// switchRequest is the body for PUT /devices/{id}/switch.
type switchRequest struct {
	Action string `json:"action"`
}

// handleSwitchDevice drives a device ON or OFF through the normal
// authorization path. Requests are refused while the stores are offline.
func (s *Server) handleSwitchDevice(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if s.health != nil && !s.health.Online() {
		writeUnavailable(w, "backing stores offline")
		return
	}

	var req switchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid request body")
		return
	}
	if !event.ValidAction(req.Action) {
		writeBadRequest(w, "action must be ON or OFF")
		return
	}

	err := s.actuator.Switch(r.Context(), id, req.Action, event.SourceAPI)
	switch {
	case err == nil:
		writeJSON(w, http.StatusOK, map[string]any{
			"device_id": id,
			"action":    req.Action,
			"status":    s.actuator.Status(id),
		})
	case errors.Is(err, topology.ErrDeviceNotFound):
		writeNotFound(w, "device not found")
	case errors.Is(err, automation.ErrBlocked):
		writeConflict(w, "device is locked by the active building mode")
	case errors.Is(err, actuator.ErrDeviceOffline):
		writeConflict(w, "device controller is offline")
	default:
		s.logger.Error("switch failed", "device", id, "action", req.Action, "error", err)
		writeInternalError(w, "failed to switch device")
	}
}

// handleDeviceUsage returns daily energy records for a device.
//
// Query parameters:
//   - date: a single day (2006-01-02); without it, the most recent days
//   - days: history length when no date is given (default 30)
func (s *Server) handleDeviceUsage(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if _, err := s.directory.GetDevice(id); err != nil {
		writeNotFound(w, "device not found")
		return
	}

	if date := r.URL.Query().Get("date"); date != "" {
		if _, err := time.Parse(energy.DayFormat, date); err != nil {
			writeBadRequest(w, "date must be formatted 2006-01-02")
			return
		}
		kwh, err := s.usage.GetDay(r.Context(), id, date)
		if err != nil && !errors.Is(err, energy.ErrNoUsage) {
			writeInternalError(w, "failed to read usage")
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"device_id": id, "day": date, "kwh": kwh})
		return
	}

	limit := defaultUsageDays
	if daysStr := r.URL.Query().Get("days"); daysStr != "" {
		days, err := strconv.Atoi(daysStr)
		if err != nil || days < 1 {
			writeBadRequest(w, "days must be a positive integer")
			return
		}
		limit = days
	}
	records, err := s.usage.ListDays(r.Context(), id, limit)
	if err != nil {
		writeInternalError(w, "failed to read usage")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"device_id": id,
		"usage":     records,
		"count":     len(records),
	})
}
