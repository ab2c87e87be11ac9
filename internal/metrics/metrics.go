// Package metrics holds the prometheus collectors for drop runs.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "cnftdrop"

const (
	StatusSucceeded = "succeeded"
	StatusFailed    = "failed"
)

// Batch instruments the mint loop. A nil *Batch records nothing.
type Batch struct {
	submissions *prometheus.CounterVec
	latency     prometheus.Histogram
	pacing      prometheus.Counter
	runs        *prometheus.CounterVec
}

func NewBatch(reg prometheus.Registerer) *Batch {
	b := &Batch{
		submissions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "batch",
				Name:      "submissions_total",
				Help:      "Mint submissions by outcome.",
			},
			[]string{"status"},
		),
		latency: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "batch",
				Name:      "submission_duration_seconds",
				Help:      "Time from sending a mint to its confirmation or failure.",
				Buckets:   []float64{0.5, 1, 2, 5, 10, 20, 30, 60, 90},
			},
		),
		pacing: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "batch",
				Name:      "pacing_wait_seconds_total",
				Help:      "Time spent waiting between submissions.",
			},
		),
		runs: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "run",
				Name:      "finished_total",
				Help:      "Finished runs by final state.",
			},
			[]string{"state"},
		),
	}
	if reg != nil {
		reg.MustRegister(b.submissions, b.latency, b.pacing, b.runs)
	}
	return b
}

func (b *Batch) ObserveSubmission(status string, elapsed time.Duration) {
	if b == nil {
		return
	}
	b.submissions.WithLabelValues(status).Inc()
	b.latency.Observe(elapsed.Seconds())
}

func (b *Batch) AddPacing(wait time.Duration) {
	if b == nil {
		return
	}
	b.pacing.Add(wait.Seconds())
}

func (b *Batch) RunFinished(state string) {
	if b == nil {
		return
	}
	b.runs.WithLabelValues(state).Inc()
}

// Handler serves the collectors registered with g in the text exposition
// format.
func Handler(g prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(g, promhttp.HandlerOpts{})
}
