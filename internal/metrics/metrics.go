// Package metrics records operational metrics of pipeline runs behind a
// small backend interface. The default backend discards everything, so
// recording is always safe; concrete systems live in subpackages.
package metrics

import "time"

// Metric names understood by backends.
const (
	StepTotal       = "etlite_step_total"
	StepDuration    = "etlite_step_duration_seconds"
	CheckTotal      = "etlite_check_total"
	RowsLoadedTotal = "etlite_rows_loaded_total"
)

// Labels are string key/value pairs attached to a metric.
type Labels map[string]string

// Backend is implemented by metrics systems.
type Backend interface {
	// IncCounter increments a counter by delta.
	IncCounter(name string, delta float64, labels Labels)
	// ObserveDuration records a duration in seconds.
	ObserveDuration(name string, seconds float64, labels Labels)
	// Flush pushes collected metrics, if the backend needs it.
	Flush() error
}

// Nop discards all metrics.
type Nop struct{}

// IncCounter implements Backend.
func (Nop) IncCounter(string, float64, Labels) {}

// ObserveDuration implements Backend.
func (Nop) ObserveDuration(string, float64, Labels) {}

// Flush implements Backend.
func (Nop) Flush() error { return nil }

// OrNop returns b, or Nop when b is nil.
func OrNop(b Backend) Backend {
	if b == nil {
		return Nop{}
	}
	return b
}

// RecordStep counts a step execution and observes its duration.
func RecordStep(b Backend, step string, err error, d time.Duration) {
	lbls := Labels{"step": step, "status": status(err == nil)}
	b.IncCounter(StepTotal, 1, lbls)
	b.ObserveDuration(StepDuration, d.Seconds(), lbls)
}

// RecordCheck counts the outcome of a test or invariant.
func RecordCheck(b Backend, category, kind string, passed bool) {
	b.IncCounter(CheckTotal, 1, Labels{"category": category, "kind": kind, "status": status(passed)})
}

// RecordRows counts rows in a step's target after loading.
func RecordRows(b Backend, step string, rows int64) {
	if rows <= 0 {
		return
	}
	b.IncCounter(RowsLoadedTotal, float64(rows), Labels{"step": step})
}

func status(ok bool) string {
	if ok {
		return "success"
	}
	return "failure"
}
