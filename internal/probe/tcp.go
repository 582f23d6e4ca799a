package probe

import (
	"context"
	"net"
	"time"

	"github.com/beaconwatch/beacon/internal/safenet"
)

// TCPCheck describes one TCP connect probe against a "host:port" or
// "[v6addr]:port" target.
type TCPCheck struct {
	Target       string
	TimeoutMs    int
	AllowPrivate bool
}

// Run dials the target under the timeout. A successful connect is "up".
func (c *TCPCheck) Run(ctx context.Context) Outcome {
	if !c.AllowPrivate {
		if _, _, err := safenet.SplitHostPort(c.Target); err != nil {
			return unknown(err.Error())
		}
	}

	timeout := time.Duration(c.TimeoutMs) * time.Millisecond
	dialer := net.Dialer{Timeout: timeout, Control: safenet.MaybeDialControl(c.AllowPrivate)}

	start := time.Now()
	conn, err := dialer.DialContext(ctx, "tcp", c.Target)
	if err != nil {
		return down(classifyNetErr(err))
	}
	elapsed := time.Since(start).Milliseconds()
	conn.Close()

	return Outcome{Status: StatusUp, LatencyMs: &elapsed, Attempts: 1}
}
