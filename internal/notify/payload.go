package notify

import (
	"github.com/google/uuid"

	"github.com/beaconwatch/beacon/internal/storage"
)

// MonitorInfo identifies the monitor a notification is about.
type MonitorInfo struct {
	ID     int64  `json:"id"`
	Name   string `json:"name"`
	Type   string `json:"type"`
	Target string `json:"target"`
}

// StateInfo is the observed state carried in the payload.
type StateInfo struct {
	Status     string  `json:"status"`
	LatencyMs  *int64  `json:"latency_ms"`
	HTTPStatus *int    `json:"http_status"`
	Error      string  `json:"error"`
	Location   *string `json:"location"`
}

// Payload is the webhook body for a state-transition event.
type Payload struct {
	Event     string      `json:"event"`
	EventID   string      `json:"event_id"`
	Timestamp int64       `json:"timestamp"`
	Monitor   MonitorInfo `json:"monitor"`
	State     StateInfo   `json:"state"`
}

// BuildPayload assembles the webhook body for one transition.
func BuildPayload(event string, m *storage.Monitor, check *storage.CheckResult, status string) *Payload {
	return &Payload{
		Event:     event,
		EventID:   uuid.NewString(),
		Timestamp: check.CheckedAt,
		Monitor: MonitorInfo{
			ID:     m.ID,
			Name:   m.Name,
			Type:   m.Type,
			Target: m.Target,
		},
		State: StateInfo{
			Status:     status,
			LatencyMs:  check.LatencyMs,
			HTTPStatus: check.HTTPStatus,
			Error:      check.Error,
			Location:   check.Location,
		},
	}
}
