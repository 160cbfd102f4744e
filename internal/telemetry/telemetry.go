// Package telemetry provides Prometheus collectors for the frame loop.
package telemetry

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "frame_classifier"

// Tick outcomes
const (
	OutcomeSkipped   = "skipped"
	OutcomeTrained   = "trained"
	OutcomePredicted = "predicted"
	OutcomeIdle      = "idle"
	OutcomeRejected  = "rejected"
	OutcomeError     = "error"
)

// LoopMetrics holds the loop's collectors. A nil *LoopMetrics records nothing.
type LoopMetrics struct {
	ticks           *prometheus.CounterVec
	examplesAdded   *prometheus.CounterVec
	transitions     *prometheus.CounterVec
	predictDuration prometheus.Histogram
	storeSize       prometheus.Gauge
}

// NewLoopMetrics registers the loop's collectors with reg. A nil reg returns nil.
func NewLoopMetrics(reg prometheus.Registerer) *LoopMetrics {
	if reg == nil {
		return nil
	}
	factory := promauto.With(reg)

	return &LoopMetrics{
		// Labels: outcome (skipped, trained, predicted, idle, rejected, error)
		ticks: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "loop",
				Name:      "ticks_total",
				Help:      "Total number of completed ticks by outcome",
			},
			[]string{"outcome"},
		),
		examplesAdded: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "store",
				Name:      "examples_added_total",
				Help:      "Total number of training examples accepted, by class",
			},
			[]string{"class"},
		),
		transitions: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "tracker",
				Name:      "transitions_total",
				Help:      "Total number of transition events fired, by class",
			},
			[]string{"class"},
		),
		predictDuration: factory.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "classifier",
				Name:      "predict_duration_seconds",
				Help:      "Duration of nearest-neighbor predictions in seconds",
				Buckets:   []float64{0.0001, 0.0005, 0.001, 0.0025, 0.005, 0.01, 0.025, 0.05, 0.1},
			},
		),
		storeSize: factory.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Subsystem: "store",
				Name:      "examples",
				Help:      "Current number of stored training examples",
			},
		),
	}
}

// RecordTick counts a tick with the given outcome
func (m *LoopMetrics) RecordTick(outcome string) {
	if m == nil {
		return
	}
	m.ticks.WithLabelValues(outcome).Inc()
}

// RecordExample counts an accepted example and updates the store size
func (m *LoopMetrics) RecordExample(class, total int) {
	if m == nil {
		return
	}
	m.examplesAdded.WithLabelValues(strconv.Itoa(class)).Inc()
	m.storeSize.Set(float64(total))
}

// RecordTransition counts a fired transition
func (m *LoopMetrics) RecordTransition(class int) {
	if m == nil {
		return
	}
	m.transitions.WithLabelValues(strconv.Itoa(class)).Inc()
}

// RecordPredict observes a prediction's duration
func (m *LoopMetrics) RecordPredict(d time.Duration) {
	if m == nil {
		return
	}
	m.predictDuration.Observe(d.Seconds())
}

// SetStoreSize sets the stored example gauge
func (m *LoopMetrics) SetStoreSize(total int) {
	if m == nil {
		return
	}
	m.storeSize.Set(float64(total))
}
