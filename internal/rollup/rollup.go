// Package rollup reduces a UTC day of checks and outages into
// per-monitor summary rows with latency percentiles and histograms.
package rollup

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/beaconwatch/beacon/internal/interval"
	"github.com/beaconwatch/beacon/internal/metrics"
	"github.com/beaconwatch/beacon/internal/storage"
	"github.com/beaconwatch/beacon/internal/timeutil"
)

const (
	leaseSec  = 600
	batchSize = 50
)

// Runner computes daily rollups. Each day's run is leased so repeated
// or overlapping triggers are harmless.
type Runner struct {
	store   storage.Store
	log     *slog.Logger
	metrics *metrics.Metrics
	now     func() time.Time
}

func NewRunner(store storage.Store, log *slog.Logger, m *metrics.Metrics) *Runner {
	return &Runner{store: store, log: log, metrics: m, now: time.Now}
}

// Run rolls up the previous UTC day.
func (r *Runner) Run(ctx context.Context) error {
	return r.RunDay(ctx, timeutil.PrevDayStart(r.now().Unix()))
}

// RunDay rolls up one UTC day. Returns nil without work when another
// process holds the day's lease.
func (r *Runner) RunDay(ctx context.Context, dayStart int64) error {
	dayEnd := dayStart + timeutil.Day
	lockName := fmt.Sprintf("analytics:daily-rollup:%d", dayStart)

	acquired, err := r.store.AcquireLock(ctx, lockName, r.now().Unix(), leaseSec)
	if err != nil {
		return fmt.Errorf("acquire rollup lease: %w", err)
	}
	if !acquired {
		r.log.Info("rollup: lease held, skipping", "day_start_at", dayStart)
		return nil
	}
	r.metrics.RollupRunsTotal.Inc()

	monitors, err := r.store.ListMonitorsCreatedBefore(ctx, dayEnd)
	if err != nil {
		return fmt.Errorf("list monitors: %w", err)
	}

	var pending []*storage.DailyRollup
	var written int
	for _, m := range monitors {
		row, err := r.computeMonitorDay(ctx, m, dayStart, dayEnd)
		if err != nil {
			r.log.Error("rollup: compute", "monitor_id", m.ID, "day_start_at", dayStart, "error", err)
			continue
		}
		if row == nil {
			continue
		}
		pending = append(pending, row)
		if len(pending) >= batchSize {
			if err := r.store.UpsertRollups(ctx, pending); err != nil {
				return fmt.Errorf("flush rollups: %w", err)
			}
			written += len(pending)
			pending = pending[:0]
		}
	}
	if len(pending) > 0 {
		if err := r.store.UpsertRollups(ctx, pending); err != nil {
			return fmt.Errorf("flush rollups: %w", err)
		}
		written += len(pending)
	}

	r.log.Info("rollup: day complete", "day_start_at", dayStart, "rows", written)
	return nil
}

// computeMonitorDay produces one rollup row, or nil when the monitor
// did not exist during the day.
func (r *Runner) computeMonitorDay(ctx context.Context, m *storage.Monitor, dayStart, dayEnd int64) (*storage.DailyRollup, error) {
	rangeStart := dayStart
	if m.CreatedAt > rangeStart {
		rangeStart = m.CreatedAt
	}
	if rangeStart >= dayEnd {
		return nil, nil
	}
	bounds := interval.Interval{Start: rangeStart, End: dayEnd}

	outages, err := r.store.ListOutagesOverlapping(ctx, m.ID, rangeStart, dayEnd)
	if err != nil {
		return nil, fmt.Errorf("outages: %w", err)
	}
	downtime := DowntimeIntervals(outages, bounds)
	downtimeSec := interval.Sum(downtime)

	intervalSec := int64(m.IntervalSec)
	checks, err := r.store.ListChecksInRange(ctx, m.ID, rangeStart-2*intervalSec, dayEnd)
	if err != nil {
		return nil, fmt.Errorf("checks: %w", err)
	}

	obs := make([]interval.Check, 0, len(checks))
	for _, c := range checks {
		obs = append(obs, interval.Check{At: c.CheckedAt, Unknown: c.Status == storage.StatusUnknown})
	}
	unknown := interval.BuildUnknown(rangeStart, dayEnd, intervalSec, obs)
	unknownSec := interval.Sum(unknown) - interval.Overlap(unknown, downtime)
	if unknownSec < 0 {
		unknownSec = 0
	}

	totalSec := dayEnd - rangeStart
	unavailableSec := downtimeSec + unknownSec
	if unavailableSec > totalSec {
		unavailableSec = totalSec
	}

	row := &storage.DailyRollup{
		MonitorID:   m.ID,
		DayStartAt:  dayStart,
		TotalSec:    totalSec,
		DowntimeSec: downtimeSec,
		UnknownSec:  unknownSec,
		UptimeSec:   totalSec - unavailableSec,
	}

	hist := NewHistogram()
	var latencies []int64
	var latencySum int64
	for _, c := range checks {
		if c.CheckedAt < rangeStart {
			continue
		}
		row.ChecksTotal++
		switch c.Status {
		case storage.StatusUp:
			row.ChecksUp++
			if c.LatencyMs != nil {
				latencies = append(latencies, *c.LatencyMs)
				latencySum += *c.LatencyMs
				Observe(hist, *c.LatencyMs)
			}
		case storage.StatusDown:
			row.ChecksDown++
		case storage.StatusMaintenance:
			row.ChecksMaintenance++
		default:
			row.ChecksUnknown++
		}
	}
	row.LatencyHistogram = hist

	if n := int64(len(latencies)); n > 0 {
		avg := (latencySum + n/2) / n
		row.AvgLatencyMs = &avg
		row.P50LatencyMs = Percentile(latencies, 0.50)
		row.P95LatencyMs = Percentile(latencies, 0.95)
	}

	return row, nil
}

// DowntimeIntervals clips outages to bounds and merges them. An
// ongoing outage extends to the end of the bounds.
func DowntimeIntervals(outages []*storage.Outage, bounds interval.Interval) []interval.Interval {
	ivs := make([]interval.Interval, 0, len(outages))
	for _, o := range outages {
		end := bounds.End
		if o.EndedAt != nil {
			end = *o.EndedAt
		}
		if iv, ok := interval.Clip(interval.Interval{Start: o.StartedAt, End: end}, bounds); ok {
			ivs = append(ivs, iv)
		}
	}
	return interval.Merge(ivs)
}
