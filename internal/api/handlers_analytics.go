package api

import (
	"net/http"
)

func (s *Server) handleAnalyticsOverview(w http.ResponseWriter, r *http.Request) {
	tok := queryRange(r, "24h")
	if tok != "24h" && tok != "7d" {
		writeInvalid(w, "range must be 24h or 7d")
		return
	}
	ov, err := s.analytics.BuildOverview(r.Context(), tok)
	if err != nil {
		writeStoreError(w, s.log.Error, err)
		return
	}
	writeJSON(w, http.StatusOK, ov)
}

func (s *Server) handleAnalyticsMonitor(w http.ResponseWriter, r *http.Request) {
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
		writeJSON(w, http.StatusOK, report)
	case "7d", "30d", "90d":
		report, err := s.analytics.BuildMonitorRange(r.Context(), id, tok)
		if err != nil {
			writeStoreError(w, s.log.Error, err)
			return
		}
		writeJSON(w, http.StatusOK, report)
	default:
		writeInvalid(w, "range must be 24h, 7d, 30d or 90d")
	}
}

func (s *Server) handleAnalyticsOutages(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeInvalid(w, err.Error())
		return
	}
	cursor, err := queryInt64(r, "cursor", 0)
	if err != nil {
		writeInvalid(w, err.Error())
		return
	}
	limit, err := queryInt64(r, "limit", 20)
	if err != nil {
		writeInvalid(w, err.Error())
		return
	}

	page, err := s.analytics.ListOutages(r.Context(), id, queryRange(r, "7d"), cursor, int(limit))
	if err != nil {
		writeInvalid(w, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, page)
}
