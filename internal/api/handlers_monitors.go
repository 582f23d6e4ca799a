package api

import (
	"errors"
	"net/http"

	"github.com/beaconwatch/beacon/internal/probe"
	"github.com/beaconwatch/beacon/internal/storage"
	"github.com/beaconwatch/beacon/internal/validate"
)

// monitorRequest uses pointers so PATCH can distinguish absent fields
// from zero values.
type monitorRequest struct {
	Name                     *string           `json:"name"`
	Type                     *string           `json:"type"`
	Target                   *string           `json:"target"`
	IntervalSec              *int              `json:"interval_sec"`
	TimeoutMs                *int              `json:"timeout_ms"`
	IsActive                 *bool             `json:"is_active"`
	HTTPMethod               *string           `json:"http_method"`
	HTTPHeaders              map[string]string `json:"http_headers"`
	HTTPBody                 *string           `json:"http_body"`
	ExpectedStatus           []int             `json:"expected_status"`
	ResponseKeyword          *string           `json:"response_keyword"`
	ResponseForbiddenKeyword *string           `json:"response_forbidden_keyword"`
}

func (req *monitorRequest) apply(m *storage.Monitor) {
	if req.Name != nil {
		m.Name = validate.SanitizeText(*req.Name)
	}
	if req.Type != nil {
		m.Type = *req.Type
	}
	if req.Target != nil {
		m.Target = *req.Target
	}
	if req.IntervalSec != nil {
		m.IntervalSec = *req.IntervalSec
	}
	if req.TimeoutMs != nil {
		m.TimeoutMs = *req.TimeoutMs
	}
	if req.IsActive != nil {
		m.IsActive = *req.IsActive
	}
	if req.HTTPMethod != nil {
		m.HTTPMethod = *req.HTTPMethod
	}
	if req.HTTPHeaders != nil {
		m.HTTPHeaders = req.HTTPHeaders
	}
	if req.HTTPBody != nil {
		m.HTTPBody = *req.HTTPBody
	}
	if req.ExpectedStatus != nil {
		m.ExpectedStatus = req.ExpectedStatus
	}
	if req.ResponseKeyword != nil {
		m.ResponseKeyword = *req.ResponseKeyword
	}
	if req.ResponseForbiddenKeyword != nil {
		m.ResponseForbiddenKeyword = *req.ResponseForbiddenKeyword
	}
}

func (s *Server) handleListMonitors(w http.ResponseWriter, r *http.Request) {
	monitors, err := s.store.ListMonitors(r.Context())
	if err != nil {
		writeStoreError(w, s.log.Error, err)
		return
	}
	if monitors == nil {
		monitors = []*storage.Monitor{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"monitors": monitors})
}

func (s *Server) handleCreateMonitor(w http.ResponseWriter, r *http.Request) {
	var req monitorRequest
	if !readJSON(w, r, &req) {
		return
	}

	now := s.now()
	m := &storage.Monitor{
		IntervalSec: 60,
		TimeoutMs:   5000,
		IsActive:    true,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	req.apply(m)

	if err := validate.Monitor(m); err != nil {
		writeInvalid(w, err.Error())
		return
	}
	if err := s.store.CreateMonitor(r.Context(), m); err != nil {
		writeStoreError(w, s.log.Error, err)
		return
	}
	s.log.Info("monitor created", "monitor_id", m.ID, "type", m.Type)
	writeJSON(w, http.StatusCreated, m)
}

func (s *Server) handleGetMonitor(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeInvalid(w, err.Error())
		return
	}
	m, err := s.store.GetMonitor(r.Context(), id)
	if err != nil {
		writeStoreError(w, s.log.Error, err)
		return
	}
	state, err := s.store.GetMonitorState(r.Context(), id)
	if err != nil && !errors.Is(err, storage.ErrNotFound) {
		writeStoreError(w, s.log.Error, err)
		return
	}
	writeJSON(w, http.StatusOK, &storage.MonitorWithState{Monitor: *m, State: state})
}

func (s *Server) handleUpdateMonitor(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeInvalid(w, err.Error())
		return
	}
	m, err := s.store.GetMonitor(r.Context(), id)
	if err != nil {
		writeStoreError(w, s.log.Error, err)
		return
	}

	var req monitorRequest
	if !readJSON(w, r, &req) {
		return
	}
	req.apply(m)
	m.UpdatedAt = s.now()

	if err := validate.Monitor(m); err != nil {
		writeInvalid(w, err.Error())
		return
	}
	if err := s.store.UpdateMonitor(r.Context(), m); err != nil {
		writeStoreError(w, s.log.Error, err)
		return
	}
	writeJSON(w, http.StatusOK, m)
}

func (s *Server) handleDeleteMonitor(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeInvalid(w, err.Error())
		return
	}
	if err := s.store.DeleteMonitor(r.Context(), id); err != nil {
		writeStoreError(w, s.log.Error, err)
		return
	}
	s.log.Info("monitor deleted", "monitor_id", id)
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handlePauseMonitor(w http.ResponseWriter, r *http.Request) {
	s.setPaused(w, r, true)
}

func (s *Server) handleResumeMonitor(w http.ResponseWriter, r *http.Request) {
	s.setPaused(w, r, false)
}

func (s *Server) setPaused(w http.ResponseWriter, r *http.Request, paused bool) {
	id, err := pathID(r)
	if err != nil {
		writeInvalid(w, err.Error())
		return
	}
	if err := s.store.SetMonitorPaused(r.Context(), id, paused, s.now()); err != nil {
		writeStoreError(w, s.log.Error, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"monitor_id": id, "paused": paused})
}

// handleTestMonitor runs the probe once, synchronously, without
// persisting anything.
func (s *Server) handleTestMonitor(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeInvalid(w, err.Error())
		return
	}
	m, err := s.store.GetMonitor(r.Context(), id)
	if err != nil {
		writeStoreError(w, s.log.Error, err)
		return
	}

	var out probe.Outcome
	switch m.Type {
	case "http":
		check := probe.HTTPCheck{
			URL:              m.Target,
			Method:           m.HTTPMethod,
			Headers:          m.HTTPHeaders,
			Body:             m.HTTPBody,
			TimeoutMs:        m.TimeoutMs,
			ExpectedStatus:   m.ExpectedStatus,
			Keyword:          m.ResponseKeyword,
			ForbiddenKeyword: m.ResponseForbiddenKeyword,
			AllowPrivate:     s.scheduler.AllowPrivate,
		}
		out = check.Run(r.Context())
	case "tcp":
		check := probe.TCPCheck{Target: m.Target, TimeoutMs: m.TimeoutMs, AllowPrivate: s.scheduler.AllowPrivate}
		out = check.Run(r.Context())
	default:
		writeInvalid(w, "unsupported monitor type")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"monitor_id":  m.ID,
		"status":      out.Status,
		"latency_ms":  out.LatencyMs,
		"http_status": out.HTTPStatus,
		"error":       out.Error,
	})
}
