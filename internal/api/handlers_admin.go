package api

import (
	"net/http"

	"github.com/beaconwatch/beacon/internal/timeutil"
	"github.com/beaconwatch/beacon/internal/validate"
)

func (s *Server) handleGetSettings(w http.ResponseWriter, r *http.Request) {
	settings, err := s.store.GetSettings(r.Context())
	if err != nil {
		writeStoreError(w, s.log.Error, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"settings": settings})
}

func (s *Server) handlePatchSettings(w http.ResponseWriter, r *http.Request) {
	var req map[string]string
	if !readJSON(w, r, &req) {
		return
	}
	if len(req) == 0 {
		writeInvalid(w, "no settings provided")
		return
	}
	for k, v := range req {
		if k == "" {
			writeInvalid(w, "empty setting key")
			return
		}
		if err := s.store.SetSetting(r.Context(), k, validate.SanitizeText(v)); err != nil {
			writeStoreError(w, s.log.Error, err)
			return
		}
	}
	settings, err := s.store.GetSettings(r.Context())
	if err != nil {
		writeStoreError(w, s.log.Error, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"settings": settings})
}

// handleTriggerTick lets an external scheduler drive the minute tick.
// Lease contention is a normal outcome, not an error.
func (s *Server) handleTriggerTick(w http.ResponseWriter, r *http.Request) {
	ran := s.scheduler.RunTick(r.Context())
	writeJSON(w, http.StatusOK, map[string]any{"ran": ran})
}

// handleTriggerRollup rolls up the previous UTC day, or the day given
// by day_start_at.
func (s *Server) handleTriggerRollup(w http.ResponseWriter, r *http.Request) {
	dayStart, err := queryInt64(r, "day_start_at", 0)
	if err != nil || (dayStart != 0 && dayStart%timeutil.Day != 0) {
		writeInvalid(w, "day_start_at must be a UTC midnight timestamp")
		return
	}

	if dayStart == 0 {
		err = s.rollups.Run(r.Context())
	} else {
		err = s.rollups.RunDay(r.Context(), dayStart)
	}
	if err != nil {
		writeStoreError(w, s.log.Error, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}
