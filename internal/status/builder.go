// Package status composes the public status payload and its cached
// snapshot lifecycle.
package status

import (
	"context"
	"fmt"
	"time"

	"github.com/beaconwatch/beacon/internal/storage"
	"github.com/beaconwatch/beacon/internal/timeutil"
)

const (
	heartbeatLimit       = 60
	heartbeatLookbackSec = 7 * timeutil.Day
)

// MonitorStatus is one monitor as displayed publicly. The raw target
// is intentionally not exposed.
type MonitorStatus struct {
	ID            int64               `json:"id"`
	Name          string              `json:"name"`
	Type          string              `json:"type"`
	Status        string              `json:"status"`
	IsStale       bool                `json:"is_stale"`
	LastCheckedAt *int64              `json:"last_checked_at"`
	LastChangedAt *int64              `json:"last_changed_at"`
	LastLatencyMs *int64              `json:"last_latency_ms"`
	Heartbeats    []storage.Heartbeat `json:"heartbeats"`
}

// Banner summarizes the page-level condition.
type Banner struct {
	Source      string                     `json:"source"`
	Status      string                     `json:"status"`
	DownRatio   *float64                   `json:"down_ratio,omitempty"`
	Incident    *storage.Incident          `json:"incident,omitempty"`
	Maintenance *storage.MaintenanceWindow `json:"maintenance,omitempty"`
}

// Response is the full public status payload.
type Response struct {
	GeneratedAt         int64                        `json:"generated_at"`
	OverallStatus       string                       `json:"overall_status"`
	Counts              map[string]int               `json:"counts"`
	Banner              Banner                       `json:"banner"`
	Monitors            []*MonitorStatus             `json:"monitors"`
	ActiveIncidents     []*storage.Incident          `json:"active_incidents"`
	ActiveMaintenance   []*storage.MaintenanceWindow `json:"active_maintenance"`
	UpcomingMaintenance []*storage.MaintenanceWindow `json:"upcoming_maintenance"`
}

// Builder assembles Response payloads from live data.
type Builder struct {
	store storage.Store
	now   func() time.Time
}

func NewBuilder(store storage.Store) *Builder {
	return &Builder{store: store, now: time.Now}
}

// Build composes the payload at the current minute boundary.
func (b *Builder) Build(ctx context.Context) (*Response, error) {
	now := b.now().Unix()
	rangeEnd := timeutil.FloorMinute(now)

	monitors, err := b.store.ListActiveMonitorsWithState(ctx)
	if err != nil {
		return nil, fmt.Errorf("list monitors: %w", err)
	}
	inMaintenance, err := b.store.ActiveMaintenanceMonitorIDs(ctx, now)
	if err != nil {
		return nil, fmt.Errorf("maintenance set: %w", err)
	}
	heartbeats, err := b.store.ListHeartbeats(ctx, rangeEnd-heartbeatLookbackSec, heartbeatLimit)
	if err != nil {
		return nil, fmt.Errorf("heartbeats: %w", err)
	}
	incidents, err := b.store.ListUnresolvedIncidents(ctx, 5)
	if err != nil {
		return nil, fmt.Errorf("incidents: %w", err)
	}
	activeMaint, err := b.store.ListActiveMaintenanceWindows(ctx, now, 3)
	if err != nil {
		return nil, fmt.Errorf("active maintenance: %w", err)
	}
	upcomingMaint, err := b.store.ListUpcomingMaintenanceWindows(ctx, now, 5)
	if err != nil {
		return nil, fmt.Errorf("upcoming maintenance: %w", err)
	}

	counts := map[string]int{}
	out := make([]*MonitorStatus, 0, len(monitors))
	for _, mw := range monitors {
		ms := projectMonitor(mw, inMaintenance[mw.ID], now)
		if hb, ok := heartbeats[mw.ID]; ok {
			ms.Heartbeats = hb
		} else {
			ms.Heartbeats = []storage.Heartbeat{}
		}
		counts[ms.Status]++
		out = append(out, ms)
	}

	resp := &Response{
		GeneratedAt:         now,
		OverallStatus:       overallStatus(counts),
		Counts:              counts,
		Monitors:            out,
		ActiveIncidents:     incidents,
		ActiveMaintenance:   activeMaint,
		UpcomingMaintenance: upcomingMaint,
	}
	resp.Banner = deriveBanner(incidents, activeMaint, counts, len(out))
	return resp, nil
}

// projectMonitor applies the display rules: maintenance wins, then
// staleness folds to unknown, then the stored state.
func projectMonitor(mw *storage.MonitorWithState, inMaintenance bool, now int64) *MonitorStatus {
	ms := &MonitorStatus{ID: mw.ID, Name: mw.Name, Type: mw.Type}

	stateStatus := storage.StatusUnknown
	if mw.State != nil {
		stateStatus = storage.CoerceStatus(mw.State.Status)
		ms.LastCheckedAt = mw.State.LastCheckedAt
		ms.LastChangedAt = mw.State.LastChangedAt
		ms.LastLatencyMs = mw.State.LastLatencyMs
	}

	exempt := inMaintenance || stateStatus == storage.StatusPaused || stateStatus == storage.StatusMaintenance
	if !exempt {
		ms.IsStale = ms.LastCheckedAt == nil || now-*ms.LastCheckedAt > 2*int64(mw.IntervalSec)
	}

	switch {
	case inMaintenance:
		ms.Status = storage.StatusMaintenance
	case ms.IsStale:
		ms.Status = storage.StatusUnknown
	default:
		ms.Status = stateStatus
	}
	if ms.IsStale {
		ms.LastLatencyMs = nil
	}
	return ms
}

// overallStatus folds per-status counts by severity.
func overallStatus(counts map[string]int) string {
	switch {
	case counts[storage.StatusDown] > 0:
		return storage.StatusDown
	case counts[storage.StatusUnknown] > 0:
		return storage.StatusUnknown
	case counts[storage.StatusMaintenance] > 0:
		return storage.StatusMaintenance
	case counts[storage.StatusUp] > 0:
		return storage.StatusUp
	case counts[storage.StatusPaused] > 0:
		return storage.StatusPaused
	}
	return storage.StatusUnknown
}
