package api

import (
	"net/http"

	"github.com/beaconwatch/beacon/internal/storage"
	"github.com/beaconwatch/beacon/internal/validate"
)

type incidentRequest struct {
	Title      string  `json:"title"`
	Status     string  `json:"status"`
	Impact     string  `json:"impact"`
	Message    string  `json:"message"`
	StartedAt  *int64  `json:"started_at"`
	MonitorIDs []int64 `json:"monitor_ids"`
}

func (s *Server) handleListIncidents(w http.ResponseWriter, r *http.Request) {
	resolvedOnly := r.URL.Query().Get("resolved_only") == "true"
	cursor, err := queryInt64(r, "cursor", 0)
	if err != nil {
		writeInvalid(w, err.Error())
		return
	}
	limit, err := queryInt64(r, "limit", 20)
	if err != nil || limit < 1 || limit > 100 {
		writeInvalid(w, "limit must be in [1, 100]")
		return
	}

	incidents, err := s.store.ListIncidents(r.Context(), resolvedOnly, cursor, int(limit))
	if err != nil {
		writeStoreError(w, s.log.Error, err)
		return
	}
	if incidents == nil {
		incidents = []*storage.Incident{}
	}

	resp := map[string]any{"incidents": incidents}
	if len(incidents) == int(limit) {
		resp["next_cursor"] = incidents[len(incidents)-1].ID
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleCreateIncident(w http.ResponseWriter, r *http.Request) {
	var req incidentRequest
	if !readJSON(w, r, &req) {
		return
	}

	now := s.now()
	inc := &storage.Incident{
		Title:      validate.SanitizeText(req.Title),
		Status:     req.Status,
		Impact:     req.Impact,
		Message:    validate.SanitizeText(req.Message),
		StartedAt:  now,
		CreatedAt:  now,
		MonitorIDs: req.MonitorIDs,
	}
	if req.StartedAt != nil {
		inc.StartedAt = *req.StartedAt
	}
	if inc.Status == "" {
		inc.Status = storage.IncidentInvestigating
	}
	if inc.Impact == "" {
		inc.Impact = storage.ImpactNone
	}

	if err := validate.Incident(inc); err != nil {
		writeInvalid(w, err.Error())
		return
	}
	if err := s.store.CreateIncident(r.Context(), inc); err != nil {
		writeStoreError(w, s.log.Error, err)
		return
	}
	s.log.Info("incident created", "incident_id", inc.ID, "impact", inc.Impact)
	writeJSON(w, http.StatusCreated, inc)
}

func (s *Server) handleGetIncident(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeInvalid(w, err.Error())
		return
	}
	inc, err := s.store.GetIncident(r.Context(), id)
	if err != nil {
		writeStoreError(w, s.log.Error, err)
		return
	}
	writeJSON(w, http.StatusOK, inc)
}

func (s *Server) handleAddIncidentUpdate(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeInvalid(w, err.Error())
		return
	}

	var req struct {
		Status  string `json:"status"`
		Message string `json:"message"`
	}
	if !readJSON(w, r, &req) {
		return
	}

	u := &storage.IncidentUpdate{
		IncidentID: id,
		Status:     req.Status,
		Message:    validate.SanitizeText(req.Message),
		CreatedAt:  s.now(),
	}
	if err := validate.IncidentUpdate(u); err != nil {
		writeInvalid(w, err.Error())
		return
	}
	if err := s.store.AddIncidentUpdate(r.Context(), u); err != nil {
		writeStoreError(w, s.log.Error, err)
		return
	}
	writeJSON(w, http.StatusCreated, u)
}

// handleResolveIncident is idempotent: re-resolving returns the
// original resolved_at.
func (s *Server) handleResolveIncident(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeInvalid(w, err.Error())
		return
	}
	resolvedAt, already, err := s.store.ResolveIncident(r.Context(), id, s.now())
	if err != nil {
		writeStoreError(w, s.log.Error, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"incident_id":      id,
		"resolved_at":      resolvedAt,
		"already_resolved": already,
	})
}

func (s *Server) handleDeleteIncident(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeInvalid(w, err.Error())
		return
	}
	if err := s.store.DeleteIncident(r.Context(), id); err != nil {
		writeStoreError(w, s.log.Error, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
