package api

import (
	"net/http"

	"github.com/beaconwatch/beacon/internal/storage"
	"github.com/beaconwatch/beacon/internal/validate"
)

type maintenanceRequest struct {
	Title      *string `json:"title"`
	Message    *string `json:"message"`
	StartsAt   *int64  `json:"starts_at"`
	EndsAt     *int64  `json:"ends_at"`
	MonitorIDs []int64 `json:"monitor_ids"`
}

func (req *maintenanceRequest) apply(mw *storage.MaintenanceWindow) {
	if req.Title != nil {
		mw.Title = validate.SanitizeText(*req.Title)
	}
	if req.Message != nil {
		mw.Message = validate.SanitizeText(*req.Message)
	}
	if req.StartsAt != nil {
		mw.StartsAt = *req.StartsAt
	}
	if req.EndsAt != nil {
		mw.EndsAt = *req.EndsAt
	}
	if req.MonitorIDs != nil {
		mw.MonitorIDs = req.MonitorIDs
	}
}

func (s *Server) handleListMaintenance(w http.ResponseWriter, r *http.Request) {
	windows, err := s.store.ListMaintenanceWindows(r.Context())
	if err != nil {
		writeStoreError(w, s.log.Error, err)
		return
	}
	if windows == nil {
		windows = []*storage.MaintenanceWindow{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"maintenance_windows": windows})
}

func (s *Server) handleCreateMaintenance(w http.ResponseWriter, r *http.Request) {
	var req maintenanceRequest
	if !readJSON(w, r, &req) {
		return
	}

	mw := &storage.MaintenanceWindow{CreatedAt: s.now()}
	req.apply(mw)

	if err := validate.MaintenanceWindow(mw); err != nil {
		writeInvalid(w, err.Error())
		return
	}
	if err := s.store.CreateMaintenanceWindow(r.Context(), mw); err != nil {
		writeStoreError(w, s.log.Error, err)
		return
	}
	s.log.Info("maintenance window created", "maintenance_id", mw.ID)
	writeJSON(w, http.StatusCreated, mw)
}

func (s *Server) handleGetMaintenance(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeInvalid(w, err.Error())
		return
	}
	mw, err := s.store.GetMaintenanceWindow(r.Context(), id)
	if err != nil {
		writeStoreError(w, s.log.Error, err)
		return
	}
	writeJSON(w, http.StatusOK, mw)
}

func (s *Server) handleUpdateMaintenance(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeInvalid(w, err.Error())
		return
	}
	mw, err := s.store.GetMaintenanceWindow(r.Context(), id)
	if err != nil {
		writeStoreError(w, s.log.Error, err)
		return
	}

	var req maintenanceRequest
	if !readJSON(w, r, &req) {
		return
	}
	req.apply(mw)

	if err := validate.MaintenanceWindow(mw); err != nil {
		writeInvalid(w, err.Error())
		return
	}
	if err := s.store.UpdateMaintenanceWindow(r.Context(), mw); err != nil {
		writeStoreError(w, s.log.Error, err)
		return
	}
	writeJSON(w, http.StatusOK, mw)
}

func (s *Server) handleDeleteMaintenance(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeInvalid(w, err.Error())
		return
	}
	if err := s.store.DeleteMaintenanceWindow(r.Context(), id); err != nil {
		writeStoreError(w, s.log.Error, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
