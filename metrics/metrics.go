package metrics

import "time"

// Metric names
const (
	PaymentAttempts = "payment_attempts"
	SettlementCalls = "settlement_calls"
	StageDuration   = "stage_duration"
)

// Recorder receives counters and latencies. Labels not known to an
// implementation are ignored.
type Recorder interface {
	IncCounter(name string, labels map[string]string)
	ObserveLatency(name string, duration time.Duration, labels map[string]string)
}

// OrNoop returns r, or a NoopRecorder when r is nil
func OrNoop(r Recorder) Recorder {
	if r == nil {
		return NoopRecorder{}
	}
	return r
}
