package rollup

import (
	"context"
	"log/slog"
	"path/filepath"
	"reflect"
	"testing"
	"time"

	"github.com/beaconwatch/beacon/internal/interval"
	"github.com/beaconwatch/beacon/internal/metrics"
	"github.com/beaconwatch/beacon/internal/storage"
	"github.com/beaconwatch/beacon/internal/timeutil"
)

const day = timeutil.Day

func newTestRunner(t *testing.T) (*Runner, storage.Store) {
	t.Helper()
	store, err := storage.NewSQLiteStore(filepath.Join(t.TempDir(), "beacon.db"), 2)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { store.Close() })
	return NewRunner(store, slog.New(slog.DiscardHandler), metrics.New()), store
}

func createMonitor(t *testing.T, store storage.Store, createdAt int64) *storage.Monitor {
	t.Helper()
	m := &storage.Monitor{
		Name: "api", Type: "http", Target: "https://example.com/health",
		IntervalSec: 60, TimeoutMs: 5000, IsActive: true,
		CreatedAt: createdAt, UpdatedAt: createdAt,
	}
	if err := store.CreateMonitor(context.Background(), m); err != nil {
		t.Fatal(err)
	}
	return m
}

func applyCheck(t *testing.T, store storage.Store, monitorID, at int64, status string, latency *int64, errMsg string, action storage.OutageAction) {
	t.Helper()
	err := store.ApplyCheck(context.Background(), &storage.CheckBatch{
		Check: storage.CheckResult{
			MonitorID: monitorID, CheckedAt: at, Status: status,
			LatencyMs: latency, Error: errMsg, Attempt: 1,
		},
		State: storage.MonitorState{
			MonitorID: monitorID, Status: status, LastCheckedAt: &at, LastError: errMsg,
		},
		Action: action,
	})
	if err != nil {
		t.Fatal(err)
	}
}

func lat(v int64) *int64 { return &v }

func TestRunDay(t *testing.T) {
	runner, store := newTestRunner(t)
	ctx := context.Background()
	m := createMonitor(t, store, 0)

	// Four up checks, a two-check outage, and a recovery at the start of
	// the day. The rest of the day has no coverage.
	applyCheck(t, store, m.ID, day, storage.StatusUp, lat(10), "", storage.OutageNone)
	applyCheck(t, store, m.ID, day+60, storage.StatusUp, lat(20), "", storage.OutageNone)
	applyCheck(t, store, m.ID, day+120, storage.StatusUp, lat(30), "", storage.OutageNone)
	applyCheck(t, store, m.ID, day+180, storage.StatusUp, lat(40), "", storage.OutageNone)
	applyCheck(t, store, m.ID, day+240, storage.StatusDown, nil, "status 500", storage.OutageOpen)
	applyCheck(t, store, m.ID, day+300, storage.StatusDown, nil, "status 500", storage.OutageUpdate)
	applyCheck(t, store, m.ID, day+360, storage.StatusUp, nil, "", storage.OutageClose)

	if err := runner.RunDay(ctx, day); err != nil {
		t.Fatal(err)
	}

	row, err := store.GetRollup(ctx, m.ID, day)
	if err != nil {
		t.Fatal(err)
	}

	if row.TotalSec != day {
		t.Errorf("total_sec = %d, want %d", row.TotalSec, day)
	}
	if row.DowntimeSec != 120 {
		t.Errorf("downtime_sec = %d, want 120", row.DowntimeSec)
	}
	// Known coverage ends 2*interval after the last check, at day+480.
	wantUnknown := int64(day - 480)
	if row.UnknownSec != wantUnknown {
		t.Errorf("unknown_sec = %d, want %d", row.UnknownSec, wantUnknown)
	}
	if row.UptimeSec != day-120-wantUnknown {
		t.Errorf("uptime_sec = %d, want %d", row.UptimeSec, day-120-wantUnknown)
	}
	if row.UptimeSec+row.DowntimeSec+row.UnknownSec != row.TotalSec {
		t.Error("second accounting does not sum to total")
	}

	if row.ChecksTotal != 7 || row.ChecksUp != 5 || row.ChecksDown != 2 {
		t.Errorf("check counts = %d/%d/%d", row.ChecksTotal, row.ChecksUp, row.ChecksDown)
	}

	if row.AvgLatencyMs == nil || *row.AvgLatencyMs != 25 {
		t.Errorf("avg latency = %v, want 25", row.AvgLatencyMs)
	}
	if row.P50LatencyMs == nil || *row.P50LatencyMs != 20 {
		t.Errorf("p50 = %v, want 20", row.P50LatencyMs)
	}
	if row.P95LatencyMs == nil || *row.P95LatencyMs != 40 {
		t.Errorf("p95 = %v, want 40", row.P95LatencyMs)
	}

	wantHist := NewHistogram()
	for _, v := range []int64{10, 20, 30, 40} {
		Observe(wantHist, v)
	}
	if !reflect.DeepEqual(row.LatencyHistogram, wantHist) {
		t.Errorf("histogram = %v, want %v", row.LatencyHistogram, wantHist)
	}
}

func TestRunDayIdempotent(t *testing.T) {
	runner, store := newTestRunner(t)
	ctx := context.Background()
	m := createMonitor(t, store, 0)
	applyCheck(t, store, m.ID, day, storage.StatusUp, lat(15), "", storage.OutageNone)

	if err := runner.RunDay(ctx, day); err != nil {
		t.Fatal(err)
	}
	first, err := store.GetRollup(ctx, m.ID, day)
	if err != nil {
		t.Fatal(err)
	}

	// Re-running after the lease expires rewrites the identical row.
	runner.now = func() time.Time { return time.Now().Add(time.Hour) }
	if err := runner.RunDay(ctx, day); err != nil {
		t.Fatal(err)
	}
	second, err := store.GetRollup(ctx, m.ID, day)
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(first, second) {
		t.Errorf("re-run changed the row: %+v vs %+v", first, second)
	}
}

func TestRunDayLeaseSkip(t *testing.T) {
	runner, store := newTestRunner(t)
	ctx := context.Background()
	m := createMonitor(t, store, 0)
	applyCheck(t, store, m.ID, day, storage.StatusUp, lat(15), "", storage.OutageNone)

	// Pre-hold the day's lease: the run returns nil without writing.
	now := runner.now().Unix()
	if _, err := store.AcquireLock(ctx, "analytics:daily-rollup:86400", now, 600); err != nil {
		t.Fatal(err)
	}
	if err := runner.RunDay(ctx, day); err != nil {
		t.Fatal(err)
	}
	if _, err := store.GetRollup(ctx, m.ID, day); err != storage.ErrNotFound {
		t.Fatalf("rollup err = %v, want ErrNotFound", err)
	}
}

func TestRunDaySkipsUnbornMonitor(t *testing.T) {
	runner, store := newTestRunner(t)
	ctx := context.Background()
	m := createMonitor(t, store, 3*day)

	if err := runner.RunDay(ctx, day); err != nil {
		t.Fatal(err)
	}
	if _, err := store.GetRollup(ctx, m.ID, day); err != storage.ErrNotFound {
		t.Fatalf("rollup err = %v, want ErrNotFound", err)
	}
}

func TestRunDayMidDayCreation(t *testing.T) {
	runner, store := newTestRunner(t)
	ctx := context.Background()
	createdAt := int64(day + 43200) // noon
	m := createMonitor(t, store, createdAt)

	if err := runner.RunDay(ctx, day); err != nil {
		t.Fatal(err)
	}
	row, err := store.GetRollup(ctx, m.ID, day)
	if err != nil {
		t.Fatal(err)
	}
	if row.TotalSec != 43200 {
		t.Errorf("total_sec = %d, want 43200", row.TotalSec)
	}
	// No checks at all: the whole existence window is unknown.
	if row.UnknownSec != 43200 || row.UptimeSec != 0 {
		t.Errorf("unknown/uptime = %d/%d, want 43200/0", row.UnknownSec, row.UptimeSec)
	}
}

func TestDowntimeIntervals(t *testing.T) {
	end := int64(200)
	bounds := interval.Interval{Start: 100, End: 300}
	outages := []*storage.Outage{
		{StartedAt: 50, EndedAt: &end},  // clipped to [100, 200)
		{StartedAt: 250, EndedAt: nil},  // ongoing, extends to bounds end
		{StartedAt: 400, EndedAt: nil},  // outside bounds entirely
	}
	got := DowntimeIntervals(outages, bounds)
	want := []interval.Interval{{Start: 100, End: 200}, {Start: 250, End: 300}}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("intervals = %v, want %v", got, want)
	}
}
