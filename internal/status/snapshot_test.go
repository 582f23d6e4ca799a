package status

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"path/filepath"
	"testing"
	"time"

	"github.com/beaconwatch/beacon/internal/storage"
)

func newTestService(t *testing.T) (*Service, storage.Store) {
	t.Helper()
	store, err := storage.NewSQLiteStore(filepath.Join(t.TempDir(), "beacon.db"), 2)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { store.Close() })

	builder := NewBuilder(store)
	builderAt(builder, 1000)
	svc := NewService(store, builder, slog.New(slog.DiscardHandler), 60, 30)
	return svc, store
}

func serviceAt(s *Service, unix int64) {
	s.now = func() time.Time { return time.Unix(unix, 0) }
}

func TestGetServesFreshSnapshot(t *testing.T) {
	svc, store := newTestService(t)
	ctx := context.Background()

	body := []byte(`{"overall_status":"up"}`)
	err := store.PutSnapshot(ctx, &storage.Snapshot{
		Key: "status", GeneratedAt: 995, Body: body, UpdatedAt: 995,
	})
	if err != nil {
		t.Fatal(err)
	}

	serviceAt(svc, 1000)
	res, err := svc.Get(ctx)
	if err != nil {
		t.Fatal(err)
	}

	if !bytes.Equal(res.Body, body) {
		t.Error("did not serve the stored snapshot body")
	}
	if res.Age != 5 {
		t.Errorf("age = %d, want 5", res.Age)
	}
	want := "public, max-age=30, stale-while-revalidate=25, stale-if-error=25"
	if res.CacheControl != want {
		t.Errorf("cache-control = %q, want %q", res.CacheControl, want)
	}
}

func TestGetBuildsLiveOnMiss(t *testing.T) {
	svc, _ := newTestService(t)
	serviceAt(svc, 1000)

	res, err := svc.Get(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if res.Age != 0 {
		t.Errorf("age = %d, want 0", res.Age)
	}

	var resp Response
	if err := json.Unmarshal(res.Body, &resp); err != nil {
		t.Fatalf("body is not a status payload: %v", err)
	}
	if resp.GeneratedAt != 1000 {
		t.Errorf("generated_at = %d, want 1000", resp.GeneratedAt)
	}
}

func TestGetRebuildsExpiredSnapshot(t *testing.T) {
	svc, store := newTestService(t)
	ctx := context.Background()

	err := store.PutSnapshot(ctx, &storage.Snapshot{
		Key: "status", GeneratedAt: 100, Body: []byte(`{"old":true}`), UpdatedAt: 100,
	})
	if err != nil {
		t.Fatal(err)
	}

	// Age 900 is far past maxAge: the stale body must not be served.
	serviceAt(svc, 1000)
	res, err := svc.Get(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if bytes.Contains(res.Body, []byte(`"old"`)) {
		t.Error("served the expired snapshot")
	}
	if res.Age != 0 {
		t.Errorf("age = %d, want 0", res.Age)
	}
}

func TestRefreshPersistsSnapshot(t *testing.T) {
	svc, store := newTestService(t)
	ctx := context.Background()
	serviceAt(svc, 1000)

	if err := svc.Refresh(ctx); err != nil {
		t.Fatal(err)
	}

	snap, err := store.GetSnapshot(ctx, "status")
	if err != nil {
		t.Fatal(err)
	}
	if snap.GeneratedAt != 1000 {
		t.Errorf("generated_at = %d, want 1000", snap.GeneratedAt)
	}
	var resp Response
	if err := json.Unmarshal(snap.Body, &resp); err != nil {
		t.Fatalf("stored body is not a status payload: %v", err)
	}
}

func TestBackgroundRefreshCoalesces(t *testing.T) {
	svc, store := newTestService(t)
	ctx := context.Background()
	serviceAt(svc, 1000)

	err := store.PutSnapshot(ctx, &storage.Snapshot{
		Key: "status", GeneratedAt: 100, Body: []byte(`{"old":true}`), UpdatedAt: 100,
	})
	if err != nil {
		t.Fatal(err)
	}

	// While a rebuild is in flight, further triggers return without
	// rebuilding.
	svc.refreshing.Store(true)
	svc.backgroundRefresh()
	snap, err := store.GetSnapshot(ctx, "status")
	if err != nil {
		t.Fatal(err)
	}
	if snap.GeneratedAt != 100 {
		t.Errorf("generated_at = %d, snapshot rebuilt under held guard", snap.GeneratedAt)
	}

	svc.refreshing.Store(false)
	svc.backgroundRefresh()
	snap, err = store.GetSnapshot(ctx, "status")
	if err != nil {
		t.Fatal(err)
	}
	if snap.GeneratedAt != 1000 {
		t.Errorf("generated_at = %d, want 1000 after refresh", snap.GeneratedAt)
	}
	if svc.refreshing.Load() {
		t.Error("guard not released after refresh")
	}
}

func TestCacheControlClamps(t *testing.T) {
	svc, _ := newTestService(t)

	cases := []struct {
		age  int64
		want string
	}{
		{0, "public, max-age=30, stale-while-revalidate=30, stale-if-error=30"},
		{40, "public, max-age=20, stale-while-revalidate=0, stale-if-error=0"},
		{60, "public, max-age=0, stale-while-revalidate=0, stale-if-error=0"},
	}
	for _, tc := range cases {
		if got := svc.cacheControl(tc.age); got != tc.want {
			t.Errorf("cacheControl(%d) = %q, want %q", tc.age, got, tc.want)
		}
	}
}
