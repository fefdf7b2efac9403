// Package prompush implements a Prometheus Pushgateway backend for the
// metrics package. Metrics are collected in a private registry and pushed
// once a run finishes; nothing is exposed for scraping.
package prompush

import (
	"fmt"

	"github.com/leapstack-labs/etlite/internal/metrics"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/push"
)

// DefaultJob is the Pushgateway job used when none is configured.
const DefaultJob = "etlite"

// Backend is a Prometheus Pushgateway metrics backend.
type Backend struct {
	gatewayURL string
	jobName    string
	reg        *prometheus.Registry

	stepCounter  *prometheus.CounterVec
	stepDuration *prometheus.SummaryVec
	checkCounter *prometheus.CounterVec
	rowsCounter  *prometheus.CounterVec
}

// NewBackend constructs a backend pushing to gatewayURL under jobName.
func NewBackend(jobName, gatewayURL string) (*Backend, error) {
	if gatewayURL == "" {
		return nil, fmt.Errorf("prompush: gateway URL is required")
	}
	if jobName == "" {
		jobName = DefaultJob
	}

	b := &Backend{
		gatewayURL: gatewayURL,
		jobName:    jobName,
		reg:        prometheus.NewRegistry(),
		stepCounter: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: metrics.StepTotal,
			Help: "Step executions by step file and status.",
		}, []string{"step", "status"}),
		stepDuration: prometheus.NewSummaryVec(prometheus.SummaryOpts{
			Name:       metrics.StepDuration,
			Help:       "Step duration in seconds by step file and status.",
			Objectives: map[float64]float64{0.5: 0.05, 0.9: 0.01, 0.99: 0.001},
		}, []string{"step", "status"}),
		checkCounter: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: metrics.CheckTotal,
			Help: "Test and invariant outcomes by category, kind and status.",
		}, []string{"category", "kind", "status"}),
		rowsCounter: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: metrics.RowsLoadedTotal,
			Help: "Rows in step targets after loading.",
		}, []string{"step"}),
	}

	for _, c := range []prometheus.Collector{b.stepCounter, b.stepDuration, b.checkCounter, b.rowsCounter} {
		if err := b.reg.Register(c); err != nil {
			return nil, fmt.Errorf("prompush: register collector: %w", err)
		}
	}
	return b, nil
}

// IncCounter implements metrics.Backend. Unknown names are ignored.
func (b *Backend) IncCounter(name string, delta float64, labels metrics.Labels) {
	switch name {
	case metrics.StepTotal:
		b.stepCounter.WithLabelValues(labels["step"], labels["status"]).Add(delta)
	case metrics.CheckTotal:
		b.checkCounter.WithLabelValues(labels["category"], labels["kind"], labels["status"]).Add(delta)
	case metrics.RowsLoadedTotal:
		b.rowsCounter.WithLabelValues(labels["step"]).Add(delta)
	}
}

// ObserveDuration implements metrics.Backend.
func (b *Backend) ObserveDuration(name string, seconds float64, labels metrics.Labels) {
	if name != metrics.StepDuration {
		return
	}
	b.stepDuration.WithLabelValues(labels["step"], labels["status"]).Observe(seconds)
}

// Flush pushes the registry to the Pushgateway.
func (b *Backend) Flush() error {
	if err := push.New(b.gatewayURL, b.jobName).Gatherer(b.reg).Push(); err != nil {
		return fmt.Errorf("prompush: push to %s: %w", b.gatewayURL, err)
	}
	return nil
}
