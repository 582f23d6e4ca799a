package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the process instrumentation. All collectors live on a
// private registry so tests can build isolated instances.
type Metrics struct {
	registry *prometheus.Registry

	ChecksTotal        *prometheus.CounterVec
	CheckDuration      prometheus.Histogram
	TicksTotal         prometheus.Counter
	TicksSkipped       prometheus.Counter
	TransitionsTotal   *prometheus.CounterVec
	NotificationsTotal *prometheus.CounterVec
	SnapshotRefreshes  *prometheus.CounterVec
	RollupRunsTotal    prometheus.Counter
	HTTPRequests       *prometheus.CounterVec
}

func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector())
	reg.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	m := &Metrics{
		registry: reg,
		ChecksTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "beacon_checks_total",
			Help: "Probe checks executed, by resulting status.",
		}, []string{"status"}),
		CheckDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "beacon_check_duration_seconds",
			Help:    "Wall time of a single probe.",
			Buckets: prometheus.DefBuckets,
		}),
		TicksTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "beacon_scheduler_ticks_total",
			Help: "Scheduler ticks that acquired the lease and ran.",
		}),
		TicksSkipped: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "beacon_scheduler_ticks_skipped_total",
			Help: "Scheduler ticks skipped because the lease was held.",
		}),
		TransitionsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "beacon_state_transitions_total",
			Help: "Monitor state transitions, by event type.",
		}, []string{"event"}),
		NotificationsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "beacon_notifications_total",
			Help: "Webhook delivery attempts, by final status.",
		}, []string{"status"}),
		SnapshotRefreshes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "beacon_snapshot_refreshes_total",
			Help: "Public snapshot rebuilds, by result.",
		}, []string{"result"}),
		RollupRunsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "beacon_rollup_runs_total",
			Help: "Daily rollup runs that acquired the lease.",
		}),
		HTTPRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "beacon_http_requests_total",
			Help: "API requests, by route pattern and status class.",
		}, []string{"route", "class"}),
	}

	reg.MustRegister(m.ChecksTotal, m.CheckDuration, m.TicksTotal, m.TicksSkipped,
		m.TransitionsTotal, m.NotificationsTotal, m.SnapshotRefreshes,
		m.RollupRunsTotal, m.HTTPRequests)

	return m
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
