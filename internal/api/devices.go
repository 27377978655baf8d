package api

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/nerrad567/govee-bridge/internal/platform"
)

const (
	// maxQueryParamLen caps path and query values accepted by handlers.
	maxQueryParamLen = 128

	maxHistoryLimit = 200
)

// handleListDevices returns every sensor bound since startup.
func (s *Server) handleListDevices(w http.ResponseWriter, r *http.Request) {
	devices, err := s.source.Devices(r.Context())
	if err != nil {
		s.writeSourceError(w, err, "failed to list devices")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"devices": devices,
		"count":   len(devices),
	})
}

// handleGetDevice returns one sensor by accessory ID.
func (s *Server) handleGetDevice(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if id == "" || len(id) > maxQueryParamLen {
		writeBadRequest(w, "invalid device ID")
		return
	}

	state, err := s.source.Device(r.Context(), id)
	if err != nil {
		if errors.Is(err, platform.ErrDeviceNotFound) {
			writeNotFound(w, "device not found")
			return
		}
		s.writeSourceError(w, err, "failed to get device")
		return
	}

	writeJSON(w, http.StatusOK, state)
}

// handleGetDeviceHistory returns stored states for a device, newest first.
// History outlives restarts, so a device that has not been heard from since
// startup can still have entries.
func (s *Server) handleGetDeviceHistory(w http.ResponseWriter, r *http.Request) {
	if s.history == nil {
		writeError(w, http.StatusServiceUnavailable, ErrCodeUnavailable, "history is not enabled")
		return
	}

	id := chi.URLParam(r, "id")
	if id == "" || len(id) > maxQueryParamLen {
		writeBadRequest(w, "invalid device ID")
		return
	}

	limit, err := parseHistoryLimit(r.URL.Query().Get("limit"))
	if err != nil {
		writeBadRequest(w, err.Error())
		return
	}

	entries, err := s.history.History(r.Context(), id, limit)
	if err != nil {
		s.logger.Error("failed to query reading history", "accessory_id", id, "error", err)
		writeInternalError(w, "failed to query history")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"accessory_id": id,
		"entries":      entries,
		"count":        len(entries),
	})
}

// handleScanner returns the scan scheduler snapshot.
func (s *Server) handleScanner(w http.ResponseWriter, r *http.Request) {
	snap, err := s.source.Scanner(r.Context())
	if err != nil {
		s.writeSourceError(w, err, "failed to read scanner state")
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

// writeSourceError maps platform read failures onto HTTP responses.
func (s *Server) writeSourceError(w http.ResponseWriter, err error, message string) {
	if errors.Is(err, platform.ErrLoopStopped) {
		writeError(w, http.StatusServiceUnavailable, ErrCodeUnavailable, "platform is not running")
		return
	}
	s.logger.Error(message, "error", err)
	writeInternalError(w, message)
}

// parseHistoryLimit parses the optional limit query parameter.
// An empty value returns 0 so the repository default applies.
func parseHistoryLimit(raw string) (int, error) {
	if raw == "" {
		return 0, nil
	}
	limit, err := strconv.Atoi(raw)
	if err != nil || limit < 1 {
		return 0, fmt.Errorf("limit must be a positive integer")
	}
	if limit > maxHistoryLimit {
		limit = maxHistoryLimit
	}
	return limit, nil
}
