package scheduler

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "ajo"

// Metrics are the payout scheduler's prometheus collectors.
type Metrics struct {
	Runs          *prometheus.CounterVec
	RunDuration   prometheus.Histogram
	Payouts       *prometheus.CounterVec
	Retries       prometheus.Counter
	Escalations   prometheus.Counter
	PendingRetry  prometheus.Gauge
	PayoutLatency prometheus.Histogram
}

// NewMetrics creates the collectors and registers them with reg. A nil reg skips registration.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		Runs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "scheduler",
			Name:      "runs_total",
			Help:      "Scheduler runs by job and status",
		}, []string{"job", "status"}),
		RunDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "scheduler",
			Name:      "run_duration_seconds",
			Help:      "Duration of daily payout runs",
			Buckets:   prometheus.ExponentialBuckets(0.05, 2, 12),
		}),
		Payouts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "scheduler",
			Name:      "payouts_total",
			Help:      "Payout attempts by result",
		}, []string{"result"}),
		Retries: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "scheduler",
			Name:      "retries_total",
			Help:      "Payout retry attempts",
		}),
		Escalations: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "scheduler",
			Name:      "escalations_total",
			Help:      "Payouts escalated after exhausting retries",
		}),
		PendingRetry: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "scheduler",
			Name:      "pending_retries",
			Help:      "Groups waiting for a payout retry",
		}),
		PayoutLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "scheduler",
			Name:      "payout_duration_seconds",
			Help:      "Duration of a single group payout attempt",
			Buckets:   prometheus.DefBuckets,
		}),
	}
	if reg != nil {
		reg.MustRegister(m.Runs, m.RunDuration, m.Payouts, m.Retries, m.Escalations, m.PendingRetry, m.PayoutLatency)
	}
	return m
}
