// Package notify delivers state-transition events to webhook channels
// with at-most-once semantics per (event, channel).
package notify

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/beaconwatch/beacon/internal/metrics"
	"github.com/beaconwatch/beacon/internal/safenet"
	"github.com/beaconwatch/beacon/internal/secrets"
	"github.com/beaconwatch/beacon/internal/storage"
)

const defaultTimeoutMs = 5000

// Dispatcher sends event payloads to active channels. A delivery row
// is claimed before the outbound request; the unique (event_key,
// channel_id) constraint makes replays of the same event a no-op.
type Dispatcher struct {
	store   storage.Store
	secrets *secrets.Resolver
	log     *slog.Logger
	metrics *metrics.Metrics
	now     func() int64

	// AllowPrivate disables the private-network guard on outbound
	// webhook requests. Local development only.
	AllowPrivate bool
}

func NewDispatcher(store storage.Store, res *secrets.Resolver, log *slog.Logger, m *metrics.Metrics) *Dispatcher {
	return &Dispatcher{
		store:   store,
		secrets: res,
		log:     log,
		metrics: m,
		now:     func() int64 { return time.Now().Unix() },
	}
}

// Dispatch fans the payload out to every channel. Errors are recorded
// on the delivery rows and logged; nothing propagates to the caller.
func (d *Dispatcher) Dispatch(ctx context.Context, channels []*storage.NotificationChannel, eventKey string, p *Payload) {
	body, err := json.Marshal(p)
	if err != nil {
		d.log.Error("notify: marshal payload", "event_key", eventKey, "error", err)
		return
	}

	for _, ch := range channels {
		claimed, err := d.store.InsertDeliveryPlaceholder(ctx, eventKey, ch.ID, d.now())
		if err != nil {
			d.log.Error("notify: claim delivery", "event_key", eventKey, "channel_id", ch.ID, "error", err)
			continue
		}
		if !claimed {
			continue
		}

		httpStatus, sendErr := d.send(ctx, ch, body)
		status := storage.DeliverySuccess
		errMsg := ""
		if sendErr != nil {
			status = storage.DeliveryFailed
			errMsg = sendErr.Error()
			d.log.Warn("notify: delivery failed",
				"event_key", eventKey, "channel_id", ch.ID, "error", sendErr)
		}
		d.metrics.NotificationsTotal.WithLabelValues(status).Inc()

		if err := d.store.FinalizeDelivery(ctx, eventKey, ch.ID, status, httpStatus, errMsg); err != nil {
			d.log.Error("notify: finalize delivery",
				"event_key", eventKey, "channel_id", ch.ID, "error", err)
		}
	}
}

// send performs one webhook request. A response status >= 400 counts
// as a failed delivery.
func (d *Dispatcher) send(ctx context.Context, ch *storage.NotificationChannel, body []byte) (*int, error) {
	cfg := ch.Config
	if cfg.URL == "" {
		return nil, fmt.Errorf("channel %d has no url", ch.ID)
	}

	method := cfg.Method
	if method == "" {
		method = http.MethodPost
	}
	timeoutMs := cfg.TimeoutMs
	if timeoutMs <= 0 {
		timeoutMs = defaultTimeoutMs
	}

	reqCtx, cancel := context.WithTimeout(ctx, time.Duration(timeoutMs)*time.Millisecond)
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, method, cfg.URL, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", "beacon-notify/1.0")
	for k, v := range cfg.Headers {
		req.Header.Set(k, v)
	}

	if cfg.Signing != nil && cfg.Signing.Enabled {
		secret, err := d.secrets.Resolve(cfg.Signing.SecretRef)
		if err != nil {
			return nil, fmt.Errorf("signing secret: %w", err)
		}
		mac := hmac.New(sha256.New, []byte(secret))
		mac.Write(body)
		req.Header.Set("X-Signature", "sha256="+hex.EncodeToString(mac.Sum(nil)))
	}

	client := &http.Client{
		Transport: &http.Transport{
			DialContext: (&net.Dialer{
				Timeout: time.Duration(timeoutMs) * time.Millisecond,
				Control: safenet.MaybeDialControl(d.AllowPrivate),
			}).DialContext,
			DisableKeepAlives: true,
		},
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))

	status := resp.StatusCode
	if status >= 400 {
		return &status, fmt.Errorf("webhook responded %d", status)
	}
	return &status, nil
}
