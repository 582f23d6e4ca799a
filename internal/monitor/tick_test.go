package monitor

import (
	"context"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/beaconwatch/beacon/internal/metrics"
	"github.com/beaconwatch/beacon/internal/notify"
	"github.com/beaconwatch/beacon/internal/secrets"
	"github.com/beaconwatch/beacon/internal/storage"
)

type tickFixture struct {
	store     storage.Store
	scheduler *Scheduler
	target    *atomic.Int64 // status code served by the probe target
	received  *atomic.Int64 // webhook requests seen
}

func newTickFixture(t *testing.T) *tickFixture {
	t.Helper()
	ctx := context.Background()

	store, err := storage.NewSQLiteStore(filepath.Join(t.TempDir(), "beacon.db"), 2)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { store.Close() })

	var targetStatus atomic.Int64
	targetStatus.Store(200)
	target := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(int(targetStatus.Load()))
	}))
	t.Cleanup(target.Close)

	var received atomic.Int64
	hook := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		received.Add(1)
	}))
	t.Cleanup(hook.Close)

	mon := &storage.Monitor{
		Name: "api", Type: "http", Target: target.URL,
		IntervalSec: 60, TimeoutMs: 2000, IsActive: true,
		CreatedAt: 1, UpdatedAt: 1,
	}
	if err := store.CreateMonitor(ctx, mon); err != nil {
		t.Fatal(err)
	}

	ch := &storage.NotificationChannel{
		Name: "ops", Type: "webhook",
		Config:   storage.ChannelConfig{URL: hook.URL},
		IsActive: true, CreatedAt: 1,
	}
	if err := store.CreateNotificationChannel(ctx, ch); err != nil {
		t.Fatal(err)
	}

	log := slog.New(slog.DiscardHandler)
	m := metrics.New()
	dispatcher := notify.NewDispatcher(store, secrets.NewResolver(nil), log, m)
	dispatcher.AllowPrivate = true

	scheduler := NewScheduler(store, dispatcher, nil, log, m, Thresholds{}, 2)
	scheduler.AllowPrivate = true

	return &tickFixture{store: store, scheduler: scheduler, target: &targetStatus, received: &received}
}

func (f *tickFixture) tickAt(t *testing.T, unix int64) bool {
	t.Helper()
	f.scheduler.now = func() time.Time { return time.Unix(unix, 0) }
	return f.scheduler.RunTick(context.Background())
}

// waitDeliveries polls until the event has n finalized delivery rows.
func (f *tickFixture) waitDeliveries(t *testing.T, eventKey string, n int) []*storage.NotificationDelivery {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		rows, err := f.store.ListDeliveries(context.Background(), eventKey)
		if err != nil {
			t.Fatal(err)
		}
		done := 0
		for _, d := range rows {
			if d.Status != storage.DeliveryPending {
				done++
			}
		}
		if done >= n {
			return rows
		}
		time.Sleep(20 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %d deliveries of %s", n, eventKey)
	return nil
}

func TestTickOutageLifecycle(t *testing.T) {
	f := newTickFixture(t)
	ctx := context.Background()

	// Target failing on the first observed tick: outage opens and the
	// down event goes out.
	f.target.Store(500)
	if !f.tickAt(t, 60) {
		t.Fatal("first tick did not run")
	}

	state, err := f.store.GetMonitorState(ctx, 1)
	if err != nil {
		t.Fatal(err)
	}
	if state.Status != storage.StatusDown {
		t.Fatalf("status = %q, want down", state.Status)
	}
	if state.LastError != "status 500" {
		t.Errorf("last_error = %q", state.LastError)
	}

	outages, err := f.store.ListOutagesOverlapping(ctx, 1, 0, 1000)
	if err != nil {
		t.Fatal(err)
	}
	if len(outages) != 1 || outages[0].EndedAt != nil {
		t.Fatalf("outages = %+v, want one ongoing", outages)
	}
	if outages[0].StartedAt != 60 {
		t.Errorf("started_at = %d, want 60", outages[0].StartedAt)
	}

	downKey := EventKey(1, EventDown, 60)
	rows := f.waitDeliveries(t, downKey, 1)
	if rows[0].Status != storage.DeliverySuccess {
		t.Errorf("down delivery status = %q", rows[0].Status)
	}

	// Recovery on the next tick closes the outage and emits the up event.
	f.target.Store(200)
	if !f.tickAt(t, 120) {
		t.Fatal("second tick did not run")
	}

	state, err = f.store.GetMonitorState(ctx, 1)
	if err != nil {
		t.Fatal(err)
	}
	if state.Status != storage.StatusUp {
		t.Fatalf("status = %q, want up", state.Status)
	}
	if state.LastError != "" {
		t.Errorf("last_error = %q, want cleared", state.LastError)
	}

	outages, err = f.store.ListOutagesOverlapping(ctx, 1, 0, 1000)
	if err != nil {
		t.Fatal(err)
	}
	if len(outages) != 1 || outages[0].EndedAt == nil || *outages[0].EndedAt != 120 {
		t.Fatalf("outages = %+v, want one closed at 120", outages)
	}

	f.waitDeliveries(t, EventKey(1, EventUp, 120), 1)
	if got := f.received.Load(); got != 2 {
		t.Errorf("webhook requests = %d, want 2", got)
	}
}

func TestTickMaintenanceSuppressesNotifications(t *testing.T) {
	f := newTickFixture(t)
	ctx := context.Background()

	mw := &storage.MaintenanceWindow{
		Title: "db upgrade", StartsAt: 0, EndsAt: 10000,
		CreatedAt: 1, MonitorIDs: []int64{1},
	}
	if err := f.store.CreateMaintenanceWindow(ctx, mw); err != nil {
		t.Fatal(err)
	}

	f.target.Store(500)
	if !f.tickAt(t, 60) {
		t.Fatal("tick did not run")
	}

	// Outage accounting still happens under maintenance.
	outages, err := f.store.ListOutagesOverlapping(ctx, 1, 0, 1000)
	if err != nil {
		t.Fatal(err)
	}
	if len(outages) != 1 {
		t.Fatalf("outages = %d, want 1", len(outages))
	}

	// Nothing is delivered. The dispatch path is skipped before the
	// goroutine spawns, so a short settle is enough to catch a leak.
	time.Sleep(100 * time.Millisecond)
	rows, err := f.store.ListDeliveries(ctx, EventKey(1, EventDown, 60))
	if err != nil {
		t.Fatal(err)
	}
	if len(rows) != 0 {
		t.Errorf("deliveries = %d, want 0", len(rows))
	}
	if got := f.received.Load(); got != 0 {
		t.Errorf("webhook requests = %d, want 0", got)
	}
}

func TestTickLeaseSkip(t *testing.T) {
	f := newTickFixture(t)

	if !f.tickAt(t, 60) {
		t.Fatal("first tick did not run")
	}
	// Same wall clock: the 55s lease is still held.
	if f.tickAt(t, 90) {
		t.Error("second tick ran inside the lease window")
	}
	// Past expiry the lease is reacquired.
	if !f.tickAt(t, 120) {
		t.Error("tick after lease expiry did not run")
	}
}

func TestTickPausedMonitorNotProbed(t *testing.T) {
	f := newTickFixture(t)
	ctx := context.Background()

	if err := f.store.SetMonitorPaused(ctx, 1, true, 30); err != nil {
		t.Fatal(err)
	}

	f.target.Store(500)
	if !f.tickAt(t, 60) {
		t.Fatal("tick did not run")
	}

	checks, err := f.store.ListChecksInRange(ctx, 1, 0, 1000)
	if err != nil {
		t.Fatal(err)
	}
	if len(checks) != 0 {
		t.Errorf("checks = %d, want 0 for paused monitor", len(checks))
	}
}
