// Package api wires the public and admin HTTP surfaces.
package api

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/beaconwatch/beacon/internal/analytics"
	"github.com/beaconwatch/beacon/internal/config"
	"github.com/beaconwatch/beacon/internal/metrics"
	"github.com/beaconwatch/beacon/internal/monitor"
	"github.com/beaconwatch/beacon/internal/notify"
	"github.com/beaconwatch/beacon/internal/rollup"
	"github.com/beaconwatch/beacon/internal/status"
	"github.com/beaconwatch/beacon/internal/storage"
)

// Server bundles handler dependencies.
type Server struct {
	store      storage.Store
	log        *slog.Logger
	metrics    *metrics.Metrics
	scheduler  *monitor.Scheduler
	rollups    *rollup.Runner
	snapshot   *status.Service
	analytics  *analytics.Service
	dispatcher *notify.Dispatcher
	adminToken string
	rateCfg    config.RateLimit
	now        func() int64
}

func NewServer(store storage.Store, log *slog.Logger, m *metrics.Metrics,
	sched *monitor.Scheduler, rollups *rollup.Runner, snap *status.Service,
	an *analytics.Service, disp *notify.Dispatcher, adminToken string,
	rateCfg config.RateLimit) *Server {
	return &Server{
		store:      store,
		log:        log,
		metrics:    m,
		scheduler:  sched,
		rollups:    rollups,
		snapshot:   snap,
		analytics:  an,
		dispatcher: disp,
		adminToken: adminToken,
		rateCfg:    rateCfg,
		now:        func() int64 { return time.Now().Unix() },
	}
}

// Routes builds the router.
func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()

	r.Use(recovery(s.log))
	r.Use(requestID)
	r.Use(logRequests(s.log))
	r.Use(countRequests(s.metrics))
	r.Use(secureHeaders)
	r.Use(bodyLimit)

	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusNotFound, codeNotFound, "route not found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusMethodNotAllowed, codeInvalidArgument, "method not allowed")
	})

	r.Get("/healthz", s.handleHealthz)

	r.Route("/public", func(r chi.Router) {
		r.Use(rateLimit(newIPLimiter(s.rateCfg.RPS, s.rateCfg.Burst)))
		r.Get("/status", s.handlePublicStatus)
		r.Get("/incidents", s.handlePublicIncidents)
		r.Get("/maintenance-windows", s.handlePublicMaintenance)
		r.Get("/analytics/uptime", s.handlePublicUptimeSummary)
		r.Route("/monitors/{id}", func(r chi.Router) {
			r.Get("/latency", s.handleMonitorLatency)
			r.Get("/uptime", s.handleMonitorUptime)
			r.Get("/day-context", s.handleMonitorDayContext)
		})
	})

	r.Route("/admin", func(r chi.Router) {
		r.Use(adminAuth(s.adminToken))

		r.Get("/metrics", s.metrics.Handler().ServeHTTP)

		r.Route("/monitors", func(r chi.Router) {
			r.Get("/", s.handleListMonitors)
			r.Post("/", s.handleCreateMonitor)
			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", s.handleGetMonitor)
				r.Patch("/", s.handleUpdateMonitor)
				r.Delete("/", s.handleDeleteMonitor)
				r.Post("/pause", s.handlePauseMonitor)
				r.Post("/resume", s.handleResumeMonitor)
				r.Post("/test", s.handleTestMonitor)
			})
		})

		r.Route("/notification-channels", func(r chi.Router) {
			r.Get("/", s.handleListChannels)
			r.Post("/", s.handleCreateChannel)
			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", s.handleGetChannel)
				r.Patch("/", s.handleUpdateChannel)
				r.Delete("/", s.handleDeleteChannel)
				r.Post("/test", s.handleTestChannel)
			})
		})

		r.Route("/incidents", func(r chi.Router) {
			r.Get("/", s.handleListIncidents)
			r.Post("/", s.handleCreateIncident)
			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", s.handleGetIncident)
				r.Delete("/", s.handleDeleteIncident)
				r.Post("/updates", s.handleAddIncidentUpdate)
				r.Patch("/resolve", s.handleResolveIncident)
			})
		})

		r.Route("/maintenance-windows", func(r chi.Router) {
			r.Get("/", s.handleListMaintenance)
			r.Post("/", s.handleCreateMaintenance)
			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", s.handleGetMaintenance)
				r.Patch("/", s.handleUpdateMaintenance)
				r.Delete("/", s.handleDeleteMaintenance)
			})
		})

		r.Route("/analytics", func(r chi.Router) {
			r.Get("/overview", s.handleAnalyticsOverview)
			r.Get("/monitors/{id}", s.handleAnalyticsMonitor)
			r.Get("/monitors/{id}/outages", s.handleAnalyticsOutages)
		})

		r.Route("/settings", func(r chi.Router) {
			r.Get("/", s.handleGetSettings)
			r.Patch("/", s.handlePatchSettings)
		})

		r.Route("/triggers", func(r chi.Router) {
			r.Post("/tick", s.handleTriggerTick)
			r.Post("/rollup", s.handleTriggerRollup)
		})
	})

	return r
}

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	if _, err := s.store.GetSettings(r.Context()); err != nil {
		writeError(w, http.StatusServiceUnavailable, codeInternal, "database unavailable")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
