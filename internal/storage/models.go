package storage

// Monitor status domain. Values outside the domain coerce to "unknown".
const (
	StatusUp          = "up"
	StatusDown        = "down"
	StatusMaintenance = "maintenance"
	StatusPaused      = "paused"
	StatusUnknown     = "unknown"
)

// Incident status and impact domains.
const (
	IncidentInvestigating = "investigating"
	IncidentIdentified    = "identified"
	IncidentMonitoring    = "monitoring"
	IncidentResolved      = "resolved"

	ImpactNone     = "none"
	ImpactMinor    = "minor"
	ImpactMajor    = "major"
	ImpactCritical = "critical"
)

// Delivery statuses. A placeholder row is inserted as "pending" before
// the outbound request and finalized afterwards; the unique
// (event_key, channel_id) index is the dedup key.
const (
	DeliveryPending = "pending"
	DeliverySuccess = "success"
	DeliveryFailed  = "failed"
)

// CoerceStatus folds any out-of-domain status string to "unknown".
func CoerceStatus(s string) string {
	switch s {
	case StatusUp, StatusDown, StatusMaintenance, StatusPaused, StatusUnknown:
		return s
	}
	return StatusUnknown
}

// Monitor is an operator-configured probe target. HTTP-only fields are
// empty when Type is "tcp".
type Monitor struct {
	ID                       int64             `json:"id"`
	Name                     string            `json:"name"`
	Type                     string            `json:"type"`
	Target                   string            `json:"target"`
	IntervalSec              int               `json:"interval_sec"`
	TimeoutMs                int               `json:"timeout_ms"`
	IsActive                 bool              `json:"is_active"`
	CreatedAt                int64             `json:"created_at"`
	UpdatedAt                int64             `json:"updated_at"`
	HTTPMethod               string            `json:"http_method,omitempty"`
	HTTPHeaders              map[string]string `json:"http_headers,omitempty"`
	HTTPBody                 string            `json:"http_body,omitempty"`
	ExpectedStatus           []int             `json:"expected_status,omitempty"`
	ResponseKeyword          string            `json:"response_keyword,omitempty"`
	ResponseForbiddenKeyword string            `json:"response_forbidden_keyword,omitempty"`
}

// MonitorState is the scheduler-maintained runtime state, one row per
// monitor after its first check.
type MonitorState struct {
	MonitorID            int64  `json:"monitor_id"`
	Status               string `json:"status"`
	LastCheckedAt        *int64 `json:"last_checked_at"`
	LastChangedAt        *int64 `json:"last_changed_at"`
	LastLatencyMs        *int64 `json:"last_latency_ms"`
	LastError            string `json:"last_error,omitempty"`
	ConsecutiveFailures  int    `json:"consecutive_failures"`
	ConsecutiveSuccesses int    `json:"consecutive_successes"`
}

// MonitorWithState pairs a monitor with its state row, which is nil
// before the first check.
type MonitorWithState struct {
	Monitor
	State *MonitorState `json:"state"`
}

// CheckResult is one appended probe observation. Location is retained
// for forward compatibility and is always null today.
type CheckResult struct {
	ID         int64   `json:"id"`
	MonitorID  int64   `json:"monitor_id"`
	CheckedAt  int64   `json:"checked_at"`
	Status     string  `json:"status"`
	LatencyMs  *int64  `json:"latency_ms"`
	HTTPStatus *int    `json:"http_status"`
	Error      string  `json:"error,omitempty"`
	Attempt    int     `json:"attempt"`
	Location   *string `json:"location"`
}

// Outage is a contiguous down interval. EndedAt nil means ongoing; at
// most one ongoing outage exists per monitor.
type Outage struct {
	ID           int64  `json:"id"`
	MonitorID    int64  `json:"monitor_id"`
	StartedAt    int64  `json:"started_at"`
	EndedAt      *int64 `json:"ended_at"`
	InitialError string `json:"initial_error,omitempty"`
	LastError    string `json:"last_error,omitempty"`
}

// Incident is an operator-authored disruption narrative.
type Incident struct {
	ID         int64            `json:"id"`
	Title      string           `json:"title"`
	Status     string           `json:"status"`
	Impact     string           `json:"impact"`
	Message    string           `json:"message,omitempty"`
	StartedAt  int64            `json:"started_at"`
	ResolvedAt *int64           `json:"resolved_at"`
	CreatedAt  int64            `json:"created_at"`
	MonitorIDs []int64          `json:"monitor_ids"`
	Updates    []IncidentUpdate `json:"updates,omitempty"`
}

// IncidentUpdate is an append-only progress note; Status is empty when
// the update does not move the incident status.
type IncidentUpdate struct {
	ID         int64  `json:"id"`
	IncidentID int64  `json:"incident_id"`
	Status     string `json:"status,omitempty"`
	Message    string `json:"message"`
	CreatedAt  int64  `json:"created_at"`
}

// MaintenanceWindow suppresses alerts for its linked monitors while
// active and annotates the public status page.
type MaintenanceWindow struct {
	ID         int64   `json:"id"`
	Title      string  `json:"title"`
	Message    string  `json:"message,omitempty"`
	StartsAt   int64   `json:"starts_at"`
	EndsAt     int64   `json:"ends_at"`
	CreatedAt  int64   `json:"created_at"`
	MonitorIDs []int64 `json:"monitor_ids"`
}

// SigningConfig enables HMAC-SHA256 signing of webhook bodies. The
// secret itself lives in the host secret store, referenced by name.
type SigningConfig struct {
	Enabled   bool   `json:"enabled"`
	SecretRef string `json:"secret_ref,omitempty"`
}

// ChannelConfig is the parsed webhook channel configuration.
type ChannelConfig struct {
	URL         string            `json:"url"`
	Method      string            `json:"method,omitempty"`
	Headers     map[string]string `json:"headers,omitempty"`
	TimeoutMs   int               `json:"timeout_ms,omitempty"`
	PayloadType string            `json:"payload_type,omitempty"`
	Signing     *SigningConfig    `json:"signing,omitempty"`
}

// NotificationChannel is a webhook destination for state-transition events.
type NotificationChannel struct {
	ID        int64         `json:"id"`
	Name      string        `json:"name"`
	Type      string        `json:"type"`
	Config    ChannelConfig `json:"config"`
	IsActive  bool          `json:"is_active"`
	CreatedAt int64         `json:"created_at"`
}

// NotificationDelivery records one attempted webhook delivery.
type NotificationDelivery struct {
	ID         int64  `json:"id"`
	EventKey   string `json:"event_key"`
	ChannelID  int64  `json:"channel_id"`
	Status     string `json:"status"`
	HTTPStatus *int   `json:"http_status"`
	Error      string `json:"error,omitempty"`
	CreatedAt  int64  `json:"created_at"`
}

// DailyRollup summarizes one monitor's UTC day. Histograms share a
// fixed bucket boundary set and merge by element-wise sum.
type DailyRollup struct {
	MonitorID         int64   `json:"monitor_id"`
	DayStartAt        int64   `json:"day_start_at"`
	TotalSec          int64   `json:"total_sec"`
	DowntimeSec       int64   `json:"downtime_sec"`
	UnknownSec        int64   `json:"unknown_sec"`
	UptimeSec         int64   `json:"uptime_sec"`
	ChecksTotal       int64   `json:"checks_total"`
	ChecksUp          int64   `json:"checks_up"`
	ChecksDown        int64   `json:"checks_down"`
	ChecksUnknown     int64   `json:"checks_unknown"`
	ChecksMaintenance int64   `json:"checks_maintenance"`
	AvgLatencyMs      *int64  `json:"avg_latency_ms"`
	P50LatencyMs      *int64  `json:"p50_latency_ms"`
	P95LatencyMs      *int64  `json:"p95_latency_ms"`
	LatencyHistogram  []int64 `json:"latency_histogram"`
}

// Heartbeat is a recent check projected into the public payload.
type Heartbeat struct {
	CheckedAt int64  `json:"checked_at"`
	Status    string `json:"status"`
	LatencyMs *int64 `json:"latency_ms"`
}

// Snapshot is a cached public payload keyed by logical name.
type Snapshot struct {
	Key         string `json:"key"`
	GeneratedAt int64  `json:"generated_at"`
	Body        []byte `json:"-"`
	UpdatedAt   int64  `json:"updated_at"`
}

// OutageAction tells ApplyCheck what to do with the monitor's outage
// record alongside the check and state writes.
type OutageAction string

const (
	OutageNone   OutageAction = "none"
	OutageOpen   OutageAction = "open"
	OutageClose  OutageAction = "close"
	OutageUpdate OutageAction = "update"
)

// CheckBatch is the atomic persistence unit for one completed check.
type CheckBatch struct {
	Check  CheckResult
	State  MonitorState
	Action OutageAction
}
