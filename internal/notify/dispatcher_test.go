package notify

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/beaconwatch/beacon/internal/metrics"
	"github.com/beaconwatch/beacon/internal/secrets"
	"github.com/beaconwatch/beacon/internal/storage"
)

func newTestDispatcher(t *testing.T, static map[string]string) (*Dispatcher, storage.Store) {
	t.Helper()
	store, err := storage.NewSQLiteStore(filepath.Join(t.TempDir(), "beacon.db"), 2)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { store.Close() })

	d := NewDispatcher(store, secrets.NewResolver(static), slog.New(slog.DiscardHandler), metrics.New())
	d.AllowPrivate = true
	return d, store
}

func testChannel(t *testing.T, store storage.Store, cfg storage.ChannelConfig) *storage.NotificationChannel {
	t.Helper()
	ch := &storage.NotificationChannel{
		Name: "ops", Type: "webhook", Config: cfg, IsActive: true, CreatedAt: 1,
	}
	if err := store.CreateNotificationChannel(context.Background(), ch); err != nil {
		t.Fatal(err)
	}
	return ch
}

func testPayload() *Payload {
	m := &storage.Monitor{ID: 1, Name: "api", Type: "http", Target: "https://example.com"}
	check := &storage.CheckResult{MonitorID: 1, CheckedAt: 60, Status: storage.StatusDown, Error: "status 500"}
	return BuildPayload("monitor.down", m, check, storage.StatusDown)
}

func TestDispatchDeliversOnce(t *testing.T) {
	ctx := context.Background()
	var hits int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits++
		var p Payload
		if err := json.NewDecoder(r.Body).Decode(&p); err != nil {
			t.Errorf("decode payload: %v", err)
		}
		if p.Event != "monitor.down" || p.Monitor.ID != 1 {
			t.Errorf("payload = %+v", p)
		}
		if r.Header.Get("Content-Type") != "application/json" {
			t.Errorf("content-type = %q", r.Header.Get("Content-Type"))
		}
	}))
	defer srv.Close()

	d, store := newTestDispatcher(t, nil)
	ch := testChannel(t, store, storage.ChannelConfig{URL: srv.URL})

	channels := []*storage.NotificationChannel{ch}
	d.Dispatch(ctx, channels, "monitor:1:down:60", testPayload())

	// Replaying the same event key is a no-op.
	d.Dispatch(ctx, channels, "monitor:1:down:60", testPayload())

	if hits != 1 {
		t.Fatalf("webhook hits = %d, want 1", hits)
	}

	rows, err := store.ListDeliveries(ctx, "monitor:1:down:60")
	if err != nil {
		t.Fatal(err)
	}
	if len(rows) != 1 {
		t.Fatalf("deliveries = %d, want 1", len(rows))
	}
	if rows[0].Status != storage.DeliverySuccess {
		t.Errorf("status = %q", rows[0].Status)
	}
	if rows[0].HTTPStatus == nil || *rows[0].HTTPStatus != 200 {
		t.Errorf("http_status = %v", rows[0].HTTPStatus)
	}
}

func TestDispatchSignsBody(t *testing.T) {
	const secret = "hook-secret"
	var gotSig string
	var gotBody []byte
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotSig = r.Header.Get("X-Signature")
		gotBody, _ = io.ReadAll(r.Body)
	}))
	defer srv.Close()

	d, store := newTestDispatcher(t, map[string]string{"ops-hook": secret})
	ch := testChannel(t, store, storage.ChannelConfig{
		URL:     srv.URL,
		Signing: &storage.SigningConfig{Enabled: true, SecretRef: "ops-hook"},
	})

	d.Dispatch(context.Background(), []*storage.NotificationChannel{ch}, "monitor:1:down:60", testPayload())

	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(gotBody)
	want := "sha256=" + hex.EncodeToString(mac.Sum(nil))
	if gotSig != want {
		t.Errorf("X-Signature = %q, want %q", gotSig, want)
	}
}

func TestDispatchRecordsFailure(t *testing.T) {
	ctx := context.Background()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	d, store := newTestDispatcher(t, nil)
	ch := testChannel(t, store, storage.ChannelConfig{URL: srv.URL})

	d.Dispatch(ctx, []*storage.NotificationChannel{ch}, "monitor:1:down:60", testPayload())

	rows, err := store.ListDeliveries(ctx, "monitor:1:down:60")
	if err != nil {
		t.Fatal(err)
	}
	if len(rows) != 1 {
		t.Fatalf("deliveries = %d, want 1", len(rows))
	}
	if rows[0].Status != storage.DeliveryFailed {
		t.Errorf("status = %q, want failed", rows[0].Status)
	}
	if rows[0].HTTPStatus == nil || *rows[0].HTTPStatus != 502 {
		t.Errorf("http_status = %v, want 502", rows[0].HTTPStatus)
	}
	if rows[0].Error != "webhook responded 502" {
		t.Errorf("error = %q", rows[0].Error)
	}
}

func TestDispatchMissingSigningSecretFails(t *testing.T) {
	ctx := context.Background()
	var hits int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits++
	}))
	defer srv.Close()

	d, store := newTestDispatcher(t, nil)
	ch := testChannel(t, store, storage.ChannelConfig{
		URL:     srv.URL,
		Signing: &storage.SigningConfig{Enabled: true, SecretRef: "nope"},
	})

	d.Dispatch(ctx, []*storage.NotificationChannel{ch}, "monitor:1:down:60", testPayload())

	if hits != 0 {
		t.Errorf("webhook hits = %d, want 0 without a resolvable secret", hits)
	}
	rows, err := store.ListDeliveries(ctx, "monitor:1:down:60")
	if err != nil {
		t.Fatal(err)
	}
	if len(rows) != 1 || rows[0].Status != storage.DeliveryFailed {
		t.Fatalf("deliveries = %+v, want one failed row", rows)
	}
}

func TestDispatchCustomHeadersAndMethod(t *testing.T) {
	var gotMethod, gotHeader string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotMethod = r.Method
		gotHeader = r.Header.Get("X-Team")
	}))
	defer srv.Close()

	d, store := newTestDispatcher(t, nil)
	ch := testChannel(t, store, storage.ChannelConfig{
		URL:     srv.URL,
		Method:  http.MethodPut,
		Headers: map[string]string{"X-Team": "sre"},
	})

	d.Dispatch(context.Background(), []*storage.NotificationChannel{ch}, "monitor:1:up:120", testPayload())

	if gotMethod != http.MethodPut {
		t.Errorf("method = %q, want PUT", gotMethod)
	}
	if gotHeader != "sre" {
		t.Errorf("X-Team = %q, want sre", gotHeader)
	}
}
