package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

type PrometheusRecorder struct {
	attempts    *prometheus.CounterVec
	settlements *prometheus.CounterVec
	stages      *prometheus.HistogramVec
}

// NewPrometheusRecorder registers the payment collectors on reg.
// Pass prometheus.DefaultRegisterer to expose them on the default handler.
func NewPrometheusRecorder(reg prometheus.Registerer) (*PrometheusRecorder, error) {
	attempts := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "x402",
			Name:      "payment_attempts_total",
			Help:      "Payment attempts by settlement dialect and outcome",
		},
		[]string{"dialect", "outcome"},
	)

	settlements := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "x402",
			Name:      "settlement_calls_total",
			Help:      "Settlement endpoint calls by phase and outcome",
		},
		[]string{"phase", "outcome"},
	)

	stages := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "x402",
			Name:      "stage_duration_seconds",
			Help:      "Time spent in each payment stage",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"stage"},
	)

	for _, c := range []prometheus.Collector{attempts, settlements, stages} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}

	return &PrometheusRecorder{
		attempts:    attempts,
		settlements: settlements,
		stages:      stages,
	}, nil
}

func (p *PrometheusRecorder) IncCounter(name string, labels map[string]string) {
	switch name {
	case PaymentAttempts:
		p.attempts.With(prometheus.Labels{
			"dialect": labels["dialect"],
			"outcome": labels["outcome"],
		}).Inc()
	case SettlementCalls:
		p.settlements.With(prometheus.Labels{
			"phase":   labels["phase"],
			"outcome": labels["outcome"],
		}).Inc()
	}
}

func (p *PrometheusRecorder) ObserveLatency(name string, d time.Duration, labels map[string]string) {
	if name != StageDuration {
		return
	}
	p.stages.With(prometheus.Labels{
		"stage": labels["stage"],
	}).Observe(d.Seconds())
}
