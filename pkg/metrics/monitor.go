package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Timer measures elapsed time since creation.
type Timer struct {
	start time.Time
}

// NewTimer starts a new timer.
func NewTimer() *Timer {
	return &Timer{start: time.Now()}
}

// Duration returns the elapsed time since the timer started.
func (t *Timer) Duration() time.Duration {
	return time.Since(t.start)
}

// ObserveDuration records the elapsed time into the given histogram.
func (t *Timer) ObserveDuration(histogram prometheus.Histogram) {
	histogram.Observe(t.Duration().Seconds())
}

// PerformanceMonitor wraps core operations with latency tracking. It is pure
// instrumentation: no behavioral effect on the wrapped operation.
type PerformanceMonitor struct{}

// NewPerformanceMonitor creates a monitor feeding the OperationDuration
// histogram.
func NewPerformanceMonitor() *PerformanceMonitor {
	return &PerformanceMonitor{}
}

// TimeOperation starts timing the named operation and returns the function
// that stops the clock and records the observation:
//
//	defer monitor.TimeOperation("schedule_jobs")()
func (m *PerformanceMonitor) TimeOperation(name string) func() {
	timer := NewTimer()
	return func() {
		OperationDuration.WithLabelValues(name).Observe(timer.Duration().Seconds())
	}
}
