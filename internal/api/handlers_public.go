package api

import (
	"fmt"
	"net/http"

	"github.com/beaconwatch/beacon/internal/storage"
	"github.com/beaconwatch/beacon/internal/timeutil"
)

// handlePublicStatus serves the cached snapshot, or a live build on a
// miss. The Cache-Control header shrinks with snapshot age so clients
// never hold the payload past its freshness bound.
func (s *Server) handlePublicStatus(w http.ResponseWriter, r *http.Request) {
	res, err := s.snapshot.Get(r.Context())
	if err != nil {
		writeStoreError(w, s.log.Error, err)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", res.CacheControl)
	w.Header().Set("Age", fmt.Sprintf("%d", res.Age))
	w.WriteHeader(http.StatusOK)
	w.Write(res.Body)
}

func (s *Server) handlePublicIncidents(w http.ResponseWriter, r *http.Request) {
	s.handleListIncidents(w, r)
}

func (s *Server) handlePublicMaintenance(w http.ResponseWriter, r *http.Request) {
	now := s.now()
	active, err := s.store.ListActiveMaintenanceWindows(r.Context(), now, 10)
	if err != nil {
		writeStoreError(w, s.log.Error, err)
		return
	}
	upcoming, err := s.store.ListUpcomingMaintenanceWindows(r.Context(), now, 10)
	if err != nil {
		writeStoreError(w, s.log.Error, err)
		return
	}
	if active == nil {
		active = []*storage.MaintenanceWindow{}
	}
	if upcoming == nil {
		upcoming = []*storage.MaintenanceWindow{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"active": active, "upcoming": upcoming})
}

func (s *Server) handleMonitorLatency(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeInvalid(w, err.Error())
		return
	}
	if tok := queryRange(r, "24h"); tok != "24h" {
		writeInvalid(w, "latency supports range=24h only")
		return
	}
	report, err := s.analytics.BuildMonitorDay(r.Context(), id)
	if err != nil {
		writeStoreError(w, s.log.Error, err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}

func (s *Server) handleMonitorUptime(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeInvalid(w, err.Error())
		return
	}

	switch tok := queryRange(r, "24h"); tok {
	case "24h":
		report, err := s.analytics.BuildMonitorDay(r.Context(), id)
		if err != nil {
			writeStoreError(w, s.log.Error, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"monitor":        report.Monitor,
			"range":          report.Range,
			"range_start_at": report.RangeStartAt,
			"range_end_at":   report.RangeEndAt,
			"total_sec":      report.TotalSec,
			"downtime_sec":   report.DowntimeSec,
			"unknown_sec":    report.UnknownSec,
			"uptime_sec":     report.UptimeSec,
			"uptime_pct":     report.UptimePct,
		})
	case "7d", "30d":
		report, err := s.analytics.BuildMonitorRange(r.Context(), id, tok)
		if err != nil {
			writeStoreError(w, s.log.Error, err)
			return
		}
		writeJSON(w, http.StatusOK, report)
	default:
		writeInvalid(w, "range must be 24h, 7d or 30d")
	}
}

func (s *Server) handlePublicUptimeSummary(w http.ResponseWriter, r *http.Request) {
	tok := queryRange(r, "30d")
	if tok != "30d" && tok != "90d" {
		writeInvalid(w, "range must be 30d or 90d")
		return
	}
	summary, err := s.analytics.BuildUptimeSummary(r.Context(), tok)
	if err != nil {
		writeStoreError(w, s.log.Error, err)
		return
	}
	writeJSON(w, http.StatusOK, summary)
}

func (s *Server) handleMonitorDayContext(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeInvalid(w, err.Error())
		return
	}
	dayStart, err := queryInt64(r, "day_start_at", 0)
	if err != nil || dayStart <= 0 || dayStart%timeutil.Day != 0 {
		writeInvalid(w, "day_start_at must be a UTC midnight timestamp")
		return
	}
	dc, err := s.analytics.BuildDayContext(r.Context(), id, dayStart)
	if err != nil {
		writeStoreError(w, s.log.Error, err)
		return
	}
	writeJSON(w, http.StatusOK, dc)
}
