// Package monitor runs the check pipeline: selecting due monitors,
// probing them, advancing their state machines, and emitting
// transition events.
package monitor

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/beaconwatch/beacon/internal/metrics"
	"github.com/beaconwatch/beacon/internal/notify"
	"github.com/beaconwatch/beacon/internal/probe"
	"github.com/beaconwatch/beacon/internal/storage"
	"github.com/beaconwatch/beacon/internal/timeutil"
)

const (
	tickLockName = "scheduler:tick"
	tickLeaseSec = 55
)

// SnapshotRefresher rebuilds the cached public payload after a tick.
type SnapshotRefresher interface {
	Refresh(ctx context.Context) error
}

// Scheduler drives one check cycle per tick. Ticks are leased through
// the locks table so concurrent processes sharing a database do not
// double-probe.
type Scheduler struct {
	store      storage.Store
	dispatcher *notify.Dispatcher
	snapshot   SnapshotRefresher
	log        *slog.Logger
	metrics    *metrics.Metrics
	thresholds Thresholds
	workers    int
	now        func() time.Time

	// AllowPrivate disables the probe private-network guard. Local
	// development only.
	AllowPrivate bool
}

func NewScheduler(store storage.Store, d *notify.Dispatcher, snap SnapshotRefresher,
	log *slog.Logger, m *metrics.Metrics, th Thresholds, workers int) *Scheduler {
	if workers < 1 {
		workers = 5
	}
	return &Scheduler{
		store:      store,
		dispatcher: d,
		snapshot:   snap,
		log:        log,
		metrics:    m,
		thresholds: th,
		workers:    workers,
		now:        time.Now,
	}
}

// Run ticks once a minute until the context is canceled.
func (s *Scheduler) Run(ctx context.Context) {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()

	s.RunTick(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.RunTick(ctx)
		}
	}
}

// RunTick performs one cycle. Returns false when the lease was held
// elsewhere and the tick was skipped.
func (s *Scheduler) RunTick(ctx context.Context) bool {
	now := s.now().Unix()
	checkedAt := timeutil.FloorMinute(now)

	acquired, err := s.store.AcquireLock(ctx, tickLockName, now, tickLeaseSec)
	if err != nil {
		s.log.Error("scheduler: acquire lease", "error", err)
		return false
	}
	if !acquired {
		s.metrics.TicksSkipped.Inc()
		return false
	}
	s.metrics.TicksTotal.Inc()

	due, err := s.store.ListDueMonitors(ctx, checkedAt)
	if err != nil {
		s.log.Error("scheduler: select due monitors", "error", err)
		return true
	}
	if len(due) == 0 {
		s.refreshSnapshot(ctx)
		return true
	}

	inMaintenance, err := s.store.ActiveMaintenanceMonitorIDs(ctx, now)
	if err != nil {
		s.log.Error("scheduler: maintenance set", "error", err)
		inMaintenance = map[int64]bool{}
	}

	channels, err := s.store.ListActiveChannels(ctx)
	if err != nil {
		s.log.Error("scheduler: active channels", "error", err)
	}

	s.log.Info("scheduler: tick", "checked_at", checkedAt, "due", len(due))

	sem := make(chan struct{}, s.workers)
	var wg sync.WaitGroup
	for _, mw := range due {
		wg.Add(1)
		sem <- struct{}{}
		go func(mw *storage.MonitorWithState) {
			defer wg.Done()
			defer func() { <-sem }()
			s.checkOne(ctx, mw, checkedAt, channels, inMaintenance[mw.ID])
		}(mw)
	}
	wg.Wait()

	s.refreshSnapshot(ctx)
	return true
}

// checkOne probes a single monitor and persists the result. Failures
// are logged; sibling probes are unaffected.
func (s *Scheduler) checkOne(ctx context.Context, mw *storage.MonitorWithState, checkedAt int64,
	channels []*storage.NotificationChannel, inMaintenance bool) {

	start := time.Now()
	out := s.runProbe(ctx, &mw.Monitor)
	s.metrics.CheckDuration.Observe(time.Since(start).Seconds())
	s.metrics.ChecksTotal.WithLabelValues(out.Status).Inc()

	next, action, changed := Advance(mw.State, mw.ID, out, checkedAt, s.thresholds)

	batch := &storage.CheckBatch{
		Check: storage.CheckResult{
			MonitorID:  mw.ID,
			CheckedAt:  checkedAt,
			Status:     out.Status,
			LatencyMs:  out.LatencyMs,
			HTTPStatus: out.HTTPStatus,
			Error:      out.Error,
			Attempt:    out.Attempts,
		},
		State:  next,
		Action: action,
	}
	if err := s.store.ApplyCheck(ctx, batch); err != nil {
		s.log.Error("scheduler: persist check", "monitor_id", mw.ID, "error", err)
		return
	}

	if !changed || inMaintenance || len(channels) == 0 {
		return
	}

	prevStatus := ""
	if mw.State != nil {
		prevStatus = mw.State.Status
	}
	eventType := EventTypeFor(prevStatus, next.Status)
	if eventType == "" {
		return
	}
	s.metrics.TransitionsTotal.WithLabelValues(eventType).Inc()
	s.log.Info("scheduler: state transition",
		"monitor_id", mw.ID, "event", eventType, "from", prevStatus, "to", next.Status)

	key := EventKey(mw.ID, eventType, checkedAt)
	payload := notify.BuildPayload(eventType, &mw.Monitor, &batch.Check, next.Status)
	go s.dispatcher.Dispatch(context.WithoutCancel(ctx), channels, key, payload)
}

func (s *Scheduler) runProbe(ctx context.Context, m *storage.Monitor) probe.Outcome {
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
			AllowPrivate:     s.AllowPrivate,
		}
		return check.Run(ctx)
	case "tcp":
		check := probe.TCPCheck{Target: m.Target, TimeoutMs: m.TimeoutMs, AllowPrivate: s.AllowPrivate}
		return check.Run(ctx)
	}
	return probe.Outcome{Status: probe.StatusUnknown, Error: "unsupported monitor type " + m.Type, Attempts: 1}
}

func (s *Scheduler) refreshSnapshot(ctx context.Context) {
	if s.snapshot == nil {
		return
	}
	if err := s.snapshot.Refresh(ctx); err != nil {
		s.metrics.SnapshotRefreshes.WithLabelValues("error").Inc()
		s.log.Warn("scheduler: snapshot refresh", "error", err)
		return
	}
	s.metrics.SnapshotRefreshes.WithLabelValues("ok").Inc()
}
