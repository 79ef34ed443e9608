// Package telemetry exposes prometheus instrumentation for the publish
// verification pipeline.
package telemetry

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the verification counters served on /metrics.
type Metrics struct {
	PublishesTotal       prometheus.Counter
	VerificationsTotal   prometheus.Counter
	StageFailures        *prometheus.CounterVec
	VerificationDuration prometheus.Histogram
}

// NewMetrics registers the verification metrics on reg. Passing nil uses
// the default registerer.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)
	return &Metrics{
		PublishesTotal: factory.NewCounter(prometheus.CounterOpts{
			Name: "optipress_publishes_total",
			Help: "Publish actions accepted by the API.",
		}),
		VerificationsTotal: factory.NewCounter(prometheus.CounterOpts{
			Name: "optipress_verifications_total",
			Help: "Post-publish verification runs started.",
		}),
		StageFailures: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "optipress_verification_stage_failures_total",
			Help: "Verification stages that degraded to an unknown result.",
		}, []string{"stage"}),
		VerificationDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "optipress_verification_duration_seconds",
			Help:    "Wall time of a full verification run.",
			Buckets: prometheus.DefBuckets,
		}),
	}
}
