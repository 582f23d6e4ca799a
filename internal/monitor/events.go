package monitor

import (
	"fmt"

	"github.com/beaconwatch/beacon/internal/storage"
)

// Event types emitted on state transitions.
const (
	EventDown = "monitor.down"
	EventUp   = "monitor.up"
)

// EventTypeFor maps a state transition to an event type, or "" when
// the transition does not notify.
func EventTypeFor(prevStatus, nextStatus string) string {
	switch {
	case nextStatus == storage.StatusDown &&
		(prevStatus == "" || prevStatus == storage.StatusUp || prevStatus == storage.StatusUnknown):
		return EventDown
	case nextStatus == storage.StatusUp && prevStatus == storage.StatusDown:
		return EventUp
	}
	return ""
}

// EventKey builds the dedup key for one transition. Two ticks that
// observe the same transition at the same normalized time produce the
// same key.
func EventKey(monitorID int64, eventType string, checkedAt int64) string {
	suffix := "down"
	if eventType == EventUp {
		suffix = "up"
	}
	return fmt.Sprintf("monitor:%d:%s:%d", monitorID, suffix, checkedAt)
}
