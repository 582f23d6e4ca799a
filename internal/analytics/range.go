package analytics

import (
	"context"
	"errors"
	"fmt"

	"github.com/beaconwatch/beacon/internal/rollup"
	"github.com/beaconwatch/beacon/internal/storage"
	"github.com/beaconwatch/beacon/internal/timeutil"
)

// DaySummary is one day of a multi-day report. Days without a rollup
// row are synthesized as fully unknown so charts stay continuous.
type DaySummary struct {
	DayStartAt   int64  `json:"day_start_at"`
	TotalSec     int64  `json:"total_sec"`
	DowntimeSec  int64  `json:"downtime_sec"`
	UnknownSec   int64  `json:"unknown_sec"`
	UptimeSec    int64  `json:"uptime_sec"`
	ChecksTotal  int64  `json:"checks_total"`
	ChecksUp     int64  `json:"checks_up"`
	AvgLatencyMs *int64 `json:"avg_latency_ms"`
}

// MonitorRange is the rollup-backed multi-day report for one monitor.
type MonitorRange struct {
	Monitor      *storage.Monitor `json:"monitor"`
	Range        string           `json:"range"`
	RangeStartAt int64            `json:"range_start_at"`
	RangeEndAt   int64            `json:"range_end_at"`
	TotalSec     int64            `json:"total_sec"`
	DowntimeSec  int64            `json:"downtime_sec"`
	UnknownSec   int64            `json:"unknown_sec"`
	UptimeSec    int64            `json:"uptime_sec"`
	UptimePct    float64          `json:"uptime_pct"`
	AvgLatencyMs *int64           `json:"avg_latency_ms"`
	P50LatencyMs *int64           `json:"p50_latency_ms"`
	P95LatencyMs *int64           `json:"p95_latency_ms"`
	Days         []DaySummary     `json:"days"`
}

// BuildMonitorRange reads a day-aligned window of rollups for one
// monitor. Valid tokens are 7d, 30d and 90d.
func (s *Service) BuildMonitorRange(ctx context.Context, monitorID int64, rangeToken string) (*MonitorRange, error) {
	width, err := timeutil.RangeSeconds(rangeToken)
	if err != nil || rangeToken == "24h" {
		return nil, fmt.Errorf("invalid rollup range %q", rangeToken)
	}

	m, err := s.store.GetMonitor(ctx, monitorID)
	if err != nil {
		return nil, err
	}

	toDay := timeutil.DayStart(s.now().Unix())
	fromDay := toDay - width

	rows, err := s.store.ListRollups(ctx, monitorID, fromDay, toDay)
	if err != nil {
		return nil, fmt.Errorf("rollups: %w", err)
	}
	byDay := make(map[int64]*storage.DailyRollup, len(rows))
	for _, r := range rows {
		byDay[r.DayStartAt] = r
	}

	report := &MonitorRange{
		Monitor:      m,
		Range:        rangeToken,
		RangeStartAt: fromDay,
		RangeEndAt:   toDay,
	}

	hist := rollup.NewHistogram()
	var latencyWeighted, latencyChecks int64
	for day := fromDay; day < toDay; day += timeutil.Day {
		r, ok := byDay[day]
		if !ok {
			// Missing day: fully unknown.
			report.Days = append(report.Days, DaySummary{
				DayStartAt: day,
				TotalSec:   timeutil.Day,
				UnknownSec: timeutil.Day,
			})
			report.TotalSec += timeutil.Day
			report.UnknownSec += timeutil.Day
			continue
		}
		report.Days = append(report.Days, DaySummary{
			DayStartAt:   r.DayStartAt,
			TotalSec:     r.TotalSec,
			DowntimeSec:  r.DowntimeSec,
			UnknownSec:   r.UnknownSec,
			UptimeSec:    r.UptimeSec,
			ChecksTotal:  r.ChecksTotal,
			ChecksUp:     r.ChecksUp,
			AvgLatencyMs: r.AvgLatencyMs,
		})
		report.TotalSec += r.TotalSec
		report.DowntimeSec += r.DowntimeSec
		report.UnknownSec += r.UnknownSec
		report.UptimeSec += r.UptimeSec
		if len(r.LatencyHistogram) > 0 {
			if err := rollup.MergeHistograms(hist, r.LatencyHistogram); err != nil {
				return nil, fmt.Errorf("day %d: %w", r.DayStartAt, err)
			}
		}
		if r.AvgLatencyMs != nil && r.ChecksUp > 0 {
			latencyWeighted += *r.AvgLatencyMs * r.ChecksUp
			latencyChecks += r.ChecksUp
		}
	}

	report.UptimePct = pct(report.UptimeSec, report.TotalSec)
	if latencyChecks > 0 {
		avg := (latencyWeighted + latencyChecks/2) / latencyChecks
		report.AvgLatencyMs = &avg
	}
	report.P50LatencyMs = rollup.PercentileFromHistogram(hist, 0.50)
	report.P95LatencyMs = rollup.PercentileFromHistogram(hist, 0.95)

	return report, nil
}

// MonitorUptime is the per-monitor slice of the fleet uptime summary.
type MonitorUptime struct {
	MonitorID   int64   `json:"monitor_id"`
	Name        string  `json:"name"`
	TotalSec    int64   `json:"total_sec"`
	DowntimeSec int64   `json:"downtime_sec"`
	UnknownSec  int64   `json:"unknown_sec"`
	UptimeSec   int64   `json:"uptime_sec"`
	UptimePct   float64 `json:"uptime_pct"`
}

// UptimeSummary is the fleet-wide rollup summary for 30d or 90d.
type UptimeSummary struct {
	Range        string          `json:"range"`
	RangeStartAt int64           `json:"range_start_at"`
	RangeEndAt   int64           `json:"range_end_at"`
	UptimePct    float64         `json:"uptime_pct"`
	Monitors     []MonitorUptime `json:"monitors"`
}

// BuildUptimeSummary aggregates rollups for every active monitor.
func (s *Service) BuildUptimeSummary(ctx context.Context, rangeToken string) (*UptimeSummary, error) {
	width, err := timeutil.RangeSeconds(rangeToken)
	if err != nil || (rangeToken != "30d" && rangeToken != "90d") {
		return nil, fmt.Errorf("invalid summary range %q", rangeToken)
	}

	toDay := timeutil.DayStart(s.now().Unix())
	fromDay := toDay - width

	monitors, err := s.store.ListActiveMonitorsWithState(ctx)
	if err != nil {
		return nil, fmt.Errorf("list monitors: %w", err)
	}
	rollups, err := s.store.ListAllRollups(ctx, fromDay, toDay)
	if err != nil {
		return nil, fmt.Errorf("rollups: %w", err)
	}

	summary := &UptimeSummary{
		Range:        rangeToken,
		RangeStartAt: fromDay,
		RangeEndAt:   toDay,
		Monitors:     []MonitorUptime{},
	}
	var totalSec, uptimeSec int64
	for _, m := range monitors {
		mu := MonitorUptime{MonitorID: m.ID, Name: m.Name}
		for _, r := range rollups[m.ID] {
			mu.TotalSec += r.TotalSec
			mu.DowntimeSec += r.DowntimeSec
			mu.UnknownSec += r.UnknownSec
			mu.UptimeSec += r.UptimeSec
		}
		mu.UptimePct = pct(mu.UptimeSec, mu.TotalSec)
		totalSec += mu.TotalSec
		uptimeSec += mu.UptimeSec
		summary.Monitors = append(summary.Monitors, mu)
	}
	summary.UptimePct = pct(uptimeSec, totalSec)

	return summary, nil
}

// OutagePage is one keyset page of a monitor's outage history.
type OutagePage struct {
	Outages    []*storage.Outage `json:"outages"`
	NextCursor *int64            `json:"next_cursor"`
}

// ListOutages pages a monitor's outages newest first within the range.
func (s *Service) ListOutages(ctx context.Context, monitorID int64, rangeToken string, beforeID int64, limit int) (*OutagePage, error) {
	width, err := timeutil.RangeSeconds(rangeToken)
	if err != nil {
		return nil, err
	}
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	rangeEnd := timeutil.FloorMinute(s.now().Unix())
	rangeStart := rangeEnd - width

	outages, err := s.store.ListMonitorOutagesPage(ctx, monitorID, rangeStart, rangeEnd, beforeID, limit)
	if err != nil {
		return nil, fmt.Errorf("outage page: %w", err)
	}

	page := &OutagePage{Outages: outages}
	if page.Outages == nil {
		page.Outages = []*storage.Outage{}
	}
	if len(outages) == limit {
		last := outages[len(outages)-1].ID
		page.NextCursor = &last
	}
	return page, nil
}

// DayContext is the raw material behind one rollup day, used by the
// status page drill-down.
type DayContext struct {
	MonitorID  int64                  `json:"monitor_id"`
	DayStartAt int64                  `json:"day_start_at"`
	Rollup     *storage.DailyRollup   `json:"rollup"`
	Outages    []*storage.Outage      `json:"outages"`
	Checks     []*storage.CheckResult `json:"checks"`
}

// BuildDayContext returns the rollup row plus the outages and checks
// for one UTC day of one monitor.
func (s *Service) BuildDayContext(ctx context.Context, monitorID, dayStart int64) (*DayContext, error) {
	if _, err := s.store.GetMonitor(ctx, monitorID); err != nil {
		return nil, err
	}
	dayEnd := dayStart + timeutil.Day

	dc := &DayContext{MonitorID: monitorID, DayStartAt: dayStart}

	r, err := s.store.GetRollup(ctx, monitorID, dayStart)
	if err == nil {
		dc.Rollup = r
	} else if !errors.Is(err, storage.ErrNotFound) {
		return nil, fmt.Errorf("rollup: %w", err)
	}

	dc.Outages, err = s.store.ListOutagesOverlapping(ctx, monitorID, dayStart, dayEnd)
	if err != nil {
		return nil, fmt.Errorf("outages: %w", err)
	}
	dc.Checks, err = s.store.ListChecksInRange(ctx, monitorID, dayStart, dayEnd)
	if err != nil {
		return nil, fmt.Errorf("checks: %w", err)
	}
	if dc.Outages == nil {
		dc.Outages = []*storage.Outage{}
	}
	if dc.Checks == nil {
		dc.Checks = []*storage.CheckResult{}
	}
	return dc, nil
}
