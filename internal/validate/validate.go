// Package validate rejects invalid write-API input before anything
// touches the store. String domains are closed sets; out-of-set values
// are errors, not coercions, at the write boundary.
package validate

import (
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/beaconwatch/beacon/internal/safenet"
	"github.com/beaconwatch/beacon/internal/storage"
)

const (
	MinIntervalSec = 60
	MinTimeoutMs   = 1000
)

var monitorTypes = map[string]bool{"http": true, "tcp": true}

var httpMethods = map[string]bool{
	http.MethodGet: true, http.MethodHead: true, http.MethodPost: true,
	http.MethodPut: true, http.MethodPatch: true, http.MethodDelete: true,
	http.MethodOptions: true,
}

var incidentStatuses = map[string]bool{
	storage.IncidentInvestigating: true,
	storage.IncidentIdentified:    true,
	storage.IncidentMonitoring:    true,
	storage.IncidentResolved:      true,
}

var incidentImpacts = map[string]bool{
	storage.ImpactNone:     true,
	storage.ImpactMinor:    true,
	storage.ImpactMajor:    true,
	storage.ImpactCritical: true,
}

// Monitor checks a monitor for create or update.
func Monitor(m *storage.Monitor) error {
	if strings.TrimSpace(m.Name) == "" {
		return fmt.Errorf("name is required")
	}
	if !monitorTypes[m.Type] {
		return fmt.Errorf("type must be http or tcp")
	}
	if m.IntervalSec < MinIntervalSec {
		return fmt.Errorf("interval_sec must be at least %d", MinIntervalSec)
	}
	if m.TimeoutMs < MinTimeoutMs {
		return fmt.Errorf("timeout_ms must be at least %d", MinTimeoutMs)
	}

	switch m.Type {
	case "http":
		if err := httpTarget(m.Target); err != nil {
			return err
		}
		if m.HTTPMethod != "" && !httpMethods[strings.ToUpper(m.HTTPMethod)] {
			return fmt.Errorf("invalid http_method %q", m.HTTPMethod)
		}
		for _, s := range m.ExpectedStatus {
			if s < 100 || s > 599 {
				return fmt.Errorf("expected_status %d out of range [100, 599]", s)
			}
		}
	case "tcp":
		if m.HTTPMethod != "" || len(m.HTTPHeaders) > 0 || m.HTTPBody != "" ||
			len(m.ExpectedStatus) > 0 || m.ResponseKeyword != "" || m.ResponseForbiddenKeyword != "" {
			return fmt.Errorf("http fields are not allowed on tcp monitors")
		}
		if _, _, err := safenet.SplitHostPort(m.Target); err != nil {
			return err
		}
	}
	return nil
}

func httpTarget(target string) error {
	u, err := url.Parse(target)
	if err != nil {
		return fmt.Errorf("invalid target url: %v", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("target scheme must be http or https")
	}
	port := 80
	if u.Scheme == "https" {
		port = 443
	}
	if p := u.Port(); p != "" {
		port, err = strconv.Atoi(p)
		if err != nil {
			return fmt.Errorf("invalid target port %q", p)
		}
	}
	return safenet.ValidateHostPort(u.Hostname(), port)
}

// Incident checks an incident create. The resolved status is not
// allowed at creation; incidents resolve through their own endpoint.
func Incident(inc *storage.Incident) error {
	if strings.TrimSpace(inc.Title) == "" {
		return fmt.Errorf("title is required")
	}
	if !incidentStatuses[inc.Status] {
		return fmt.Errorf("invalid status %q", inc.Status)
	}
	if inc.Status == storage.IncidentResolved {
		return fmt.Errorf("incidents cannot be created as resolved")
	}
	if !incidentImpacts[inc.Impact] {
		return fmt.Errorf("invalid impact %q", inc.Impact)
	}
	if len(inc.MonitorIDs) == 0 {
		return fmt.Errorf("at least one monitor link is required")
	}
	return nil
}

// IncidentUpdate checks an appended progress note.
func IncidentUpdate(u *storage.IncidentUpdate) error {
	if strings.TrimSpace(u.Message) == "" {
		return fmt.Errorf("message is required")
	}
	if u.Status != "" && !incidentStatuses[u.Status] {
		return fmt.Errorf("invalid status %q", u.Status)
	}
	return nil
}

// MaintenanceWindow checks a window for create or update.
func MaintenanceWindow(mw *storage.MaintenanceWindow) error {
	if strings.TrimSpace(mw.Title) == "" {
		return fmt.Errorf("title is required")
	}
	if mw.StartsAt >= mw.EndsAt {
		return fmt.Errorf("starts_at must be before ends_at")
	}
	if len(mw.MonitorIDs) == 0 {
		return fmt.Errorf("at least one monitor link is required")
	}
	return nil
}

// Channel checks a notification channel for create or update.
func Channel(ch *storage.NotificationChannel) error {
	if strings.TrimSpace(ch.Name) == "" {
		return fmt.Errorf("name is required")
	}
	if ch.Type != "webhook" {
		return fmt.Errorf("type must be webhook")
	}
	cfg := ch.Config
	u, err := url.Parse(cfg.URL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Hostname() == "" {
		return fmt.Errorf("config.url must be an http(s) url")
	}
	if err := safenet.ValidateHost(u.Hostname()); err != nil {
		return err
	}
	if cfg.Method != "" && !httpMethods[strings.ToUpper(cfg.Method)] {
		return fmt.Errorf("invalid config.method %q", cfg.Method)
	}
	if cfg.TimeoutMs < 0 {
		return fmt.Errorf("config.timeout_ms must not be negative")
	}
	if cfg.PayloadType != "" && cfg.PayloadType != "json" {
		return fmt.Errorf("config.payload_type must be json")
	}
	if cfg.Signing != nil && cfg.Signing.Enabled && cfg.Signing.SecretRef == "" {
		return fmt.Errorf("config.signing.secret_ref is required when signing is enabled")
	}
	return nil
}
