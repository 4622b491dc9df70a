package api

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/factory-monitor/monitor-server/internal/models"
	"github.com/factory-monitor/monitor-server/internal/storage"
)

// HandleHealth reports process and store health.
func (s *RESTServer) HandleHealth(w http.ResponseWriter, r *http.Request) {
	status := "ok"
	code := http.StatusOK
	if err := s.store.Ping(r.Context()); err != nil {
		status = "degraded"
		code = http.StatusServiceUnavailable
	}

	s.respondJSON(w, code, map[string]interface{}{
		"status":  status,
		"name":    s.config.Server.Name,
		"version": s.config.Server.Version,
	})
}

// HandleListDevices lists registered devices.
func (s *RESTServer) HandleListDevices(w http.ResponseWriter, r *http.Request) {
	limit := intParam(r, "limit", 50)
	offset := intParam(r, "offset", 0)

	devices, total, err := s.store.ListDevices(r.Context(), limit, offset)
	if err != nil {
		s.respondError(w, http.StatusInternalServerError, "failed to list devices")
		return
	}

	s.respondJSON(w, http.StatusOK, map[string]interface{}{
		"total":   total,
		"devices": devices,
	})
}

// HandleGetDevice returns one device from the registry.
func (s *RESTServer) HandleGetDevice(w http.ResponseWriter, r *http.Request) {
	device, err := s.store.GetDevice(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			s.respondError(w, http.StatusNotFound, "device not found")
			return
		}
		s.respondError(w, http.StatusInternalServerError, "failed to load device")
		return
	}

	s.respondJSON(w, http.StatusOK, device)
}

// HandleGetDeviceStatistics returns the latest statistics snapshot for a
// device.
func (s *RESTServer) HandleGetDeviceStatistics(w http.ResponseWriter, r *http.Request) {
	deviceID := chi.URLParam(r, "id")

	snapshot, err := s.store.LatestStatisticsSnapshot(r.Context(), deviceID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			s.respondError(w, http.StatusNotFound, "no statistics found for device "+deviceID)
			return
		}
		s.respondError(w, http.StatusInternalServerError, "failed to load statistics")
		return
	}

	s.respondJSON(w, http.StatusOK, snapshot)
}

// HandleQueryLogs runs the same filtered read the MQTT query engine uses.
func (s *RESTServer) HandleQueryLogs(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	filters := storage.LogFilters{
		DeviceID: q.Get("device_id"),
		LogLevel: q.Get("log_level"),
		LogCode:  q.Get("log_code"),
		Severity: q.Get("severity"),
		Limit:    intParam(r, "limit", 0),
	}

	if q.Get("start") != "" && q.Get("end") != "" {
		start, errStart := strconv.ParseInt(q.Get("start"), 10, 64)
		end, errEnd := strconv.ParseInt(q.Get("end"), 10, 64)
		if errStart != nil || errEnd != nil {
			s.respondError(w, http.StatusBadRequest, "invalid time range")
			return
		}
		filters.TimeRange = &models.TimeRange{Start: start, End: end}
	}

	entries, err := s.store.QueryLogs(r.Context(), filters)
	if err != nil {
		s.respondError(w, http.StatusInternalServerError, "query failed")
		return
	}

	s.respondJSON(w, http.StatusOK, map[string]interface{}{
		"count": len(entries),
		"data":  entries,
	})
}

func intParam(r *http.Request, name string, fallback int) int {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return fallback
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return v
}
