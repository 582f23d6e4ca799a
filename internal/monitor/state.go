package monitor

import (
	"github.com/beaconwatch/beacon/internal/probe"
	"github.com/beaconwatch/beacon/internal/storage"
)

// Thresholds are the flap-dampening knobs: a monitor flips to down
// after F consecutive failures and recovers after S consecutive
// successes. Both default to 1, so a single observation flips state.
type Thresholds struct {
	Failure int
	Success int
}

func (t Thresholds) normalized() Thresholds {
	if t.Failure < 1 {
		t.Failure = 1
	}
	if t.Success < 1 {
		t.Success = 1
	}
	return t
}

// Advance computes the next monitor state from the previous state (nil
// before the first check) and one probe outcome. It returns the next
// state row, the outage action to apply alongside it, and whether the
// public status changed.
func Advance(prev *storage.MonitorState, monitorID int64, out probe.Outcome, checkedAt int64, th Thresholds) (storage.MonitorState, storage.OutageAction, bool) {
	th = th.normalized()

	next := storage.MonitorState{MonitorID: monitorID}
	prevStatus := ""
	if prev != nil {
		prevStatus = prev.Status
		next.ConsecutiveFailures = prev.ConsecutiveFailures
		next.ConsecutiveSuccesses = prev.ConsecutiveSuccesses
		next.LastChangedAt = prev.LastChangedAt
		next.LastError = prev.LastError
	}

	next.LastCheckedAt = &checkedAt
	next.LastLatencyMs = out.LatencyMs

	action := storage.OutageNone
	changed := false

	switch out.Status {
	case probe.StatusDown:
		next.ConsecutiveFailures++
		next.ConsecutiveSuccesses = 0
		next.LastError = out.Error
		wasUpish := prevStatus == "" || prevStatus == storage.StatusUp || prevStatus == storage.StatusUnknown
		switch {
		case wasUpish && next.ConsecutiveFailures >= th.Failure:
			next.Status = storage.StatusDown
			changed = true
			action = storage.OutageOpen
		case prevStatus == storage.StatusDown:
			next.Status = storage.StatusDown
			action = storage.OutageUpdate
		default:
			next.Status = prevStatus
			if next.Status == "" {
				next.Status = storage.StatusUnknown
			}
		}

	case probe.StatusUp:
		next.ConsecutiveSuccesses++
		next.ConsecutiveFailures = 0
		next.Status = storage.StatusUp
		// last_error survives up to up, clears on recovery
		if prevStatus != storage.StatusUp {
			next.LastError = ""
		}
		if prevStatus == storage.StatusDown && next.ConsecutiveSuccesses >= th.Success {
			changed = true
			action = storage.OutageClose
		} else {
			changed = prevStatus != storage.StatusUp
		}

	default:
		next.Status = storage.StatusUnknown
		next.LastError = out.Error
		changed = prevStatus != storage.StatusUnknown
	}

	if changed {
		next.LastChangedAt = &checkedAt
	}

	return next, action, changed
}
