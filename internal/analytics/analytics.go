// Package analytics computes availability and latency aggregates, live
// for the 24h window and from daily rollups for longer ranges.
package analytics

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/beaconwatch/beacon/internal/interval"
	"github.com/beaconwatch/beacon/internal/rollup"
	"github.com/beaconwatch/beacon/internal/storage"
	"github.com/beaconwatch/beacon/internal/timeutil"
)

// Service answers analytics queries against the store.
type Service struct {
	store storage.Store
	now   func() time.Time
}

func NewService(store storage.Store) *Service {
	return &Service{store: store, now: time.Now}
}

// Overview is the fleet-wide availability summary.
type Overview struct {
	Range        string  `json:"range"`
	RangeStartAt int64   `json:"range_start_at"`
	RangeEndAt   int64   `json:"range_end_at"`
	TotalSec     int64   `json:"total_sec"`
	DowntimeSec  int64   `json:"downtime_sec"`
	UptimeSec    int64   `json:"uptime_sec"`
	UptimePct    float64 `json:"uptime_pct"`
	Monitors     struct {
		Total int `json:"total"`
	} `json:"monitors"`
	Alerts struct {
		Count int64 `json:"count"`
	} `json:"alerts"`
	Outages struct {
		LongestSec int64  `json:"longest_sec"`
		MTTRSec    *int64 `json:"mttr_sec"`
	} `json:"outages"`
}

// BuildOverview aggregates downtime across all active monitors for a
// 24h or 7d window.
func (s *Service) BuildOverview(ctx context.Context, rangeToken string) (*Overview, error) {
	width, err := timeutil.RangeSeconds(rangeToken)
	if err != nil {
		return nil, err
	}
	now := s.now().Unix()
	rangeEnd := timeutil.FloorMinute(now)
	if rangeToken != "24h" {
		rangeEnd = timeutil.DayStart(now)
	}
	rangeStart := rangeEnd - width

	monitors, err := s.store.ListActiveMonitorsWithState(ctx)
	if err != nil {
		return nil, fmt.Errorf("list monitors: %w", err)
	}
	allOutages, err := s.store.ListAllOutagesOverlapping(ctx, rangeStart, rangeEnd)
	if err != nil {
		return nil, fmt.Errorf("list outages: %w", err)
	}

	ov := &Overview{Range: rangeToken, RangeStartAt: rangeStart, RangeEndAt: rangeEnd}
	ov.Monitors.Total = len(monitors)

	for _, m := range monitors {
		start := rangeStart
		if m.CreatedAt > start {
			start = m.CreatedAt
		}
		if start >= rangeEnd {
			continue
		}
		bounds := interval.Interval{Start: start, End: rangeEnd}
		ov.TotalSec += bounds.Width()
		ov.DowntimeSec += interval.Sum(rollup.DowntimeIntervals(allOutages[m.ID], bounds))
	}
	ov.UptimeSec = ov.TotalSec - ov.DowntimeSec
	ov.UptimePct = pct(ov.UptimeSec, ov.TotalSec)

	ov.Alerts.Count, err = s.store.CountOutagesStarted(ctx, rangeStart, rangeEnd)
	if err != nil {
		return nil, fmt.Errorf("count outages: %w", err)
	}

	resolved, err := s.store.ListOutagesResolvedIn(ctx, rangeStart, rangeEnd)
	if err != nil {
		return nil, fmt.Errorf("resolved outages: %w", err)
	}
	if len(resolved) > 0 {
		var total int64
		for _, o := range resolved {
			d := *o.EndedAt - o.StartedAt
			total += d
			if d > ov.Outages.LongestSec {
				ov.Outages.LongestSec = d
			}
		}
		mttr := total / int64(len(resolved))
		ov.Outages.MTTRSec = &mttr
	}

	return ov, nil
}

// Point is one check row projected for chart rendering.
type Point struct {
	CheckedAt int64  `json:"checked_at"`
	Status    string `json:"status"`
	LatencyMs *int64 `json:"latency_ms"`
}

// MonitorDay is the live 24h report for one monitor.
type MonitorDay struct {
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
	Points       []Point          `json:"points"`
}

// BuildMonitorDay computes the trailing 24h live from raw checks.
func (s *Service) BuildMonitorDay(ctx context.Context, monitorID int64) (*MonitorDay, error) {
	m, err := s.store.GetMonitor(ctx, monitorID)
	if err != nil {
		return nil, err
	}

	rangeEnd := timeutil.FloorMinute(s.now().Unix())
	rangeStart := rangeEnd - 24*timeutil.Hour
	if m.CreatedAt > rangeStart {
		rangeStart = m.CreatedAt
	}
	report := &MonitorDay{
		Monitor:      m,
		Range:        "24h",
		RangeStartAt: rangeStart,
		RangeEndAt:   rangeEnd,
		Points:       []Point{},
	}
	if rangeStart >= rangeEnd {
		return report, nil
	}
	bounds := interval.Interval{Start: rangeStart, End: rangeEnd}

	outages, err := s.store.ListOutagesOverlapping(ctx, monitorID, rangeStart, rangeEnd)
	if err != nil {
		return nil, fmt.Errorf("outages: %w", err)
	}
	downtime := rollup.DowntimeIntervals(outages, bounds)

	intervalSec := int64(m.IntervalSec)
	checks, err := s.store.ListChecksInRange(ctx, monitorID, rangeStart-2*intervalSec, rangeEnd)
	if err != nil {
		return nil, fmt.Errorf("checks: %w", err)
	}

	obs := make([]interval.Check, 0, len(checks))
	var latencies []int64
	var latencySum int64
	for _, c := range checks {
		obs = append(obs, interval.Check{At: c.CheckedAt, Unknown: c.Status == storage.StatusUnknown})
		if c.CheckedAt < rangeStart {
			continue
		}
		report.Points = append(report.Points, Point{CheckedAt: c.CheckedAt, Status: c.Status, LatencyMs: c.LatencyMs})
		if c.Status == storage.StatusUp && c.LatencyMs != nil {
			latencies = append(latencies, *c.LatencyMs)
			latencySum += *c.LatencyMs
		}
	}

	unknown := interval.BuildUnknown(rangeStart, rangeEnd, intervalSec, obs)
	unknownSec := interval.Sum(unknown) - interval.Overlap(unknown, downtime)
	if unknownSec < 0 {
		unknownSec = 0
	}

	report.TotalSec = bounds.Width()
	report.DowntimeSec = interval.Sum(downtime)
	report.UnknownSec = unknownSec
	unavailable := report.DowntimeSec + unknownSec
	if unavailable > report.TotalSec {
		unavailable = report.TotalSec
	}
	report.UptimeSec = report.TotalSec - unavailable
	report.UptimePct = pct(report.UptimeSec, report.TotalSec)

	if n := int64(len(latencies)); n > 0 {
		avg := (latencySum + n/2) / n
		report.AvgLatencyMs = &avg
		report.P50LatencyMs = rollup.Percentile(latencies, 0.50)
		report.P95LatencyMs = rollup.Percentile(latencies, 0.95)
	}

	return report, nil
}

func pct(part, total int64) float64 {
	if total <= 0 {
		return 0
	}
	return math.Round(float64(part)/float64(total)*100*100) / 100
}
