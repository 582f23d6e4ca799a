package analytics

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/beaconwatch/beacon/internal/storage"
	"github.com/beaconwatch/beacon/internal/timeutil"
)

const day = timeutil.Day

func newTestService(t *testing.T) (*Service, storage.Store) {
	t.Helper()
	store, err := storage.NewSQLiteStore(filepath.Join(t.TempDir(), "beacon.db"), 2)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { store.Close() })
	return NewService(store), store
}

func serviceAt(s *Service, unix int64) {
	s.now = func() time.Time { return time.Unix(unix, 0) }
}

func addMonitor(t *testing.T, store storage.Store, name string, createdAt int64) *storage.Monitor {
	t.Helper()
	m := &storage.Monitor{
		Name: name, Type: "http", Target: "https://example.com",
		IntervalSec: 60, TimeoutMs: 5000, IsActive: true,
		CreatedAt: createdAt, UpdatedAt: createdAt,
	}
	if err := store.CreateMonitor(context.Background(), m); err != nil {
		t.Fatal(err)
	}
	return m
}

func applyCheck(t *testing.T, store storage.Store, monitorID, at int64, status string, latency *int64, action storage.OutageAction) {
	t.Helper()
	err := store.ApplyCheck(context.Background(), &storage.CheckBatch{
		Check:  storage.CheckResult{MonitorID: monitorID, CheckedAt: at, Status: status, LatencyMs: latency, Attempt: 1},
		State:  storage.MonitorState{MonitorID: monitorID, Status: status, LastCheckedAt: &at},
		Action: action,
	})
	if err != nil {
		t.Fatal(err)
	}
}

func lat(v int64) *int64 { return &v }

func TestBuildOverview(t *testing.T) {
	svc, store := newTestService(t)
	ctx := context.Background()

	// Two monitors alive for the whole window, one 10-minute outage.
	m1 := addMonitor(t, store, "api", 0)
	addMonitor(t, store, "web", 0)

	base := int64(10 * day)
	applyCheck(t, store, m1.ID, base+600, storage.StatusDown, nil, storage.OutageOpen)
	applyCheck(t, store, m1.ID, base+1200, storage.StatusUp, lat(10), storage.OutageClose)

	serviceAt(svc, base+24*timeutil.Hour)
	ov, err := svc.BuildOverview(ctx, "24h")
	if err != nil {
		t.Fatal(err)
	}

	if ov.Monitors.Total != 2 {
		t.Errorf("monitors = %d, want 2", ov.Monitors.Total)
	}
	if ov.TotalSec != 2*24*timeutil.Hour {
		t.Errorf("total_sec = %d", ov.TotalSec)
	}
	if ov.DowntimeSec != 600 {
		t.Errorf("downtime_sec = %d, want 600", ov.DowntimeSec)
	}
	if ov.Alerts.Count != 1 {
		t.Errorf("alerts = %d, want 1", ov.Alerts.Count)
	}
	if ov.Outages.LongestSec != 600 {
		t.Errorf("longest = %d, want 600", ov.Outages.LongestSec)
	}
	if ov.Outages.MTTRSec == nil || *ov.Outages.MTTRSec != 600 {
		t.Errorf("mttr = %v, want 600", ov.Outages.MTTRSec)
	}
	if ov.UptimeSec != ov.TotalSec-600 {
		t.Errorf("uptime_sec = %d", ov.UptimeSec)
	}
}

func TestBuildOverviewRejectsBadRange(t *testing.T) {
	svc, _ := newTestService(t)
	if _, err := svc.BuildOverview(context.Background(), "12h"); err == nil {
		t.Error("accepted an invalid range token")
	}
}

func TestBuildMonitorDay(t *testing.T) {
	svc, store := newTestService(t)
	ctx := context.Background()

	base := int64(10 * day)
	m := addMonitor(t, store, "api", base)
	applyCheck(t, store, m.ID, base, storage.StatusUp, lat(10), storage.OutageNone)
	applyCheck(t, store, m.ID, base+60, storage.StatusUp, lat(30), storage.OutageNone)
	applyCheck(t, store, m.ID, base+120, storage.StatusDown, nil, storage.OutageOpen)
	applyCheck(t, store, m.ID, base+180, storage.StatusUp, lat(20), storage.OutageClose)

	serviceAt(svc, base+600)
	report, err := svc.BuildMonitorDay(ctx, m.ID)
	if err != nil {
		t.Fatal(err)
	}

	// Creation time truncates the 24h window.
	if report.RangeStartAt != base || report.RangeEndAt != base+600 {
		t.Errorf("range = [%d, %d)", report.RangeStartAt, report.RangeEndAt)
	}
	if report.TotalSec != 600 {
		t.Errorf("total_sec = %d, want 600", report.TotalSec)
	}
	if report.DowntimeSec != 60 {
		t.Errorf("downtime_sec = %d, want 60", report.DowntimeSec)
	}
	// Coverage runs to base+300; the remaining 300s are unknown.
	if report.UnknownSec != 300 {
		t.Errorf("unknown_sec = %d, want 300", report.UnknownSec)
	}
	if report.UptimeSec != 240 {
		t.Errorf("uptime_sec = %d, want 240", report.UptimeSec)
	}
	if len(report.Points) != 4 {
		t.Errorf("points = %d, want 4", len(report.Points))
	}
	if report.AvgLatencyMs == nil || *report.AvgLatencyMs != 20 {
		t.Errorf("avg = %v, want 20", report.AvgLatencyMs)
	}
	if report.P50LatencyMs == nil || *report.P50LatencyMs != 20 {
		t.Errorf("p50 = %v, want 20", report.P50LatencyMs)
	}
}

func TestBuildMonitorDayUnknownMonitor(t *testing.T) {
	svc, _ := newTestService(t)
	serviceAt(svc, 10*day)
	if _, err := svc.BuildMonitorDay(context.Background(), 99); err != storage.ErrNotFound {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}

func TestBuildMonitorRangeSynthesizesMissingDays(t *testing.T) {
	svc, store := newTestService(t)
	ctx := context.Background()
	m := addMonitor(t, store, "api", 0)

	// Rollups exist for only one of the seven days.
	avg := int64(40)
	row := &storage.DailyRollup{
		MonitorID: m.ID, DayStartAt: 8 * day,
		TotalSec: day, DowntimeSec: 100, UnknownSec: 200, UptimeSec: day - 300,
		ChecksTotal: 1440, ChecksUp: 1400, AvgLatencyMs: &avg,
	}
	if err := store.UpsertRollups(ctx, []*storage.DailyRollup{row}); err != nil {
		t.Fatal(err)
	}

	serviceAt(svc, 10*day+3600)
	report, err := svc.BuildMonitorRange(ctx, m.ID, "7d")
	if err != nil {
		t.Fatal(err)
	}

	if len(report.Days) != 7 {
		t.Fatalf("days = %d, want 7", len(report.Days))
	}
	for _, d := range report.Days {
		if d.DayStartAt == 8*day {
			if d.DowntimeSec != 100 || d.UnknownSec != 200 {
				t.Errorf("rollup day = %+v", d)
			}
			continue
		}
		if d.TotalSec != day || d.UnknownSec != day || d.UptimeSec != 0 {
			t.Errorf("missing day %d = %+v, want fully unknown", d.DayStartAt, d)
		}
	}
	if report.TotalSec != 7*day {
		t.Errorf("total_sec = %d, want %d", report.TotalSec, 7*day)
	}
	if report.UnknownSec != 6*day+200 {
		t.Errorf("unknown_sec = %d", report.UnknownSec)
	}
	if report.AvgLatencyMs == nil || *report.AvgLatencyMs != 40 {
		t.Errorf("avg = %v, want 40", report.AvgLatencyMs)
	}
}

func TestBuildMonitorRangeRejects24h(t *testing.T) {
	svc, store := newTestService(t)
	m := addMonitor(t, store, "api", 0)
	if _, err := svc.BuildMonitorRange(context.Background(), m.ID, "24h"); err == nil {
		t.Error("accepted 24h for a rollup range")
	}
}

func TestBuildUptimeSummary(t *testing.T) {
	svc, store := newTestService(t)
	ctx := context.Background()
	m := addMonitor(t, store, "api", 0)

	rows := []*storage.DailyRollup{
		{MonitorID: m.ID, DayStartAt: 8 * day, TotalSec: day, UptimeSec: day},
		{MonitorID: m.ID, DayStartAt: 9 * day, TotalSec: day, DowntimeSec: day / 2, UptimeSec: day / 2},
	}
	if err := store.UpsertRollups(ctx, rows); err != nil {
		t.Fatal(err)
	}

	serviceAt(svc, 10*day)
	summary, err := svc.BuildUptimeSummary(ctx, "30d")
	if err != nil {
		t.Fatal(err)
	}
	if len(summary.Monitors) != 1 {
		t.Fatalf("monitors = %d, want 1", len(summary.Monitors))
	}
	mu := summary.Monitors[0]
	if mu.TotalSec != 2*day || mu.UptimeSec != day+day/2 {
		t.Errorf("monitor uptime = %+v", mu)
	}
	if mu.UptimePct != 75 {
		t.Errorf("uptime_pct = %v, want 75", mu.UptimePct)
	}

	if _, err := svc.BuildUptimeSummary(ctx, "7d"); err == nil {
		t.Error("accepted 7d for the uptime summary")
	}
}

func TestListOutagesPaging(t *testing.T) {
	svc, store := newTestService(t)
	ctx := context.Background()

	base := int64(10 * day)
	m := addMonitor(t, store, "api", 0)
	for i := int64(0); i < 3; i++ {
		applyCheck(t, store, m.ID, base+i*600, storage.StatusDown, nil, storage.OutageOpen)
		applyCheck(t, store, m.ID, base+i*600+60, storage.StatusUp, lat(10), storage.OutageClose)
	}

	serviceAt(svc, base+3600)
	page, err := svc.ListOutages(ctx, m.ID, "24h", 0, 2)
	if err != nil {
		t.Fatal(err)
	}
	if len(page.Outages) != 2 {
		t.Fatalf("outages = %d, want 2", len(page.Outages))
	}
	// Newest first.
	if page.Outages[0].StartedAt <= page.Outages[1].StartedAt {
		t.Error("page not ordered newest first")
	}
	if page.NextCursor == nil {
		t.Fatal("missing next_cursor on a full page")
	}

	rest, err := svc.ListOutages(ctx, m.ID, "24h", *page.NextCursor, 2)
	if err != nil {
		t.Fatal(err)
	}
	if len(rest.Outages) != 1 {
		t.Fatalf("second page = %d, want 1", len(rest.Outages))
	}
	if rest.NextCursor != nil {
		t.Error("short page still reports a cursor")
	}
}

func TestBuildDayContext(t *testing.T) {
	svc, store := newTestService(t)
	ctx := context.Background()

	m := addMonitor(t, store, "api", 0)
	applyCheck(t, store, m.ID, 8*day+60, storage.StatusUp, lat(10), storage.OutageNone)

	serviceAt(svc, 10*day)
	dc, err := svc.BuildDayContext(ctx, m.ID, 8*day)
	if err != nil {
		t.Fatal(err)
	}
	if dc.Rollup != nil {
		t.Error("unexpected rollup row")
	}
	if len(dc.Checks) != 1 {
		t.Errorf("checks = %d, want 1", len(dc.Checks))
	}
	if dc.Outages == nil {
		t.Error("outages should be an empty slice, not nil")
	}
}
