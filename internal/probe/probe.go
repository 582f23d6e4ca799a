// Package probe runs single HTTP or TCP availability checks under a
// timeout and classifies the result. Probe failures are data, not
// errors: every failure mode is folded into the returned Outcome.
package probe

import (
	"context"
	"errors"
	"net"
	"strings"
)

// Check statuses. "unknown" is reserved for configuration errors
// discovered at probe time, e.g. an invalid HTTP method.
const (
	StatusUp      = "up"
	StatusDown    = "down"
	StatusUnknown = "unknown"
)

// Outcome is the classified result of one probe execution.
type Outcome struct {
	Status     string
	LatencyMs  *int64
	HTTPStatus *int
	Error      string
	Attempts   int
}

func down(reason string) Outcome {
	return Outcome{Status: StatusDown, Error: reason, Attempts: 1}
}

func unknown(reason string) Outcome {
	return Outcome{Status: StatusUnknown, Error: reason, Attempts: 1}
}

// classifyNetErr maps transport-level failures to short stable reasons
// so operators see "timeout" rather than a wrapped error chain.
func classifyNetErr(err error) string {
	if errors.Is(err, context.DeadlineExceeded) {
		return "timeout"
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return "timeout"
	}
	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return "dns error: " + dnsErr.Err
	}
	msg := err.Error()
	switch {
	case strings.Contains(msg, "connection refused"):
		return "connection refused"
	case strings.Contains(msg, "connection reset"):
		return "connection reset"
	case strings.Contains(msg, "certificate"), strings.Contains(msg, "tls:"):
		return "tls error"
	case strings.Contains(msg, "blocked:"):
		return "target blocked"
	}
	return msg
}
