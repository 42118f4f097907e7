package network

import (
	"fmt"
	"time"
)

// Latency splits a ping round trip into time spent on the server and time
// spent on the wire.
type Latency struct {
	Total      time.Duration
	Processing time.Duration
	Network    time.Duration
}

// Decompose measures a pong received at now. Total is now minus the echoed
// client timestamp, Processing is serverSentAt minus serverReceivedAt, and
// Network is the remainder.
func Decompose(now time.Time, p Pong) (Latency, error) {
	sent, err := p.Timestamp.Float64()
	if err != nil {
		return Latency{}, fmt.Errorf("pong timestamp %q: %w", p.Timestamp, err)
	}
	nowMs := float64(now.UnixNano()) / float64(time.Millisecond)
	total := time.Duration((nowMs - sent) * float64(time.Millisecond))
	processing := time.Duration(p.ServerSentAt-p.ServerReceivedAt) * time.Millisecond
	return Latency{
		Total:      total,
		Processing: processing,
		Network:    total - processing,
	}, nil
}
