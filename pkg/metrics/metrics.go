// Package metrics counts change outcomes and step latencies, and exports
// them as a node-exporter textfile.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Recorder holds the netchange metrics on a private registry, so each
// run starts from zero and tests do not collide.
//
// A nil *Recorder is valid and records nothing.
type Recorder struct {
	registry *prometheus.Registry

	// DeviceOutcomes counts finished device attempts.
	// Labels: operation, role, result
	DeviceOutcomes *prometheus.CounterVec

	// StepDuration measures each orchestration step in seconds.
	// Labels: operation, step, status (success|error)
	StepDuration *prometheus.HistogramVec

	// LastRun is the unix time the last run finished.
	LastRun prometheus.Gauge
}

// NewRecorder creates and registers all metrics.
func NewRecorder() *Recorder {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)
	return &Recorder{
		registry: reg,
		DeviceOutcomes: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "netchange_device_outcomes_total",
				Help: "Finished device attempts by operation, role and result",
			},
			[]string{"operation", "role", "result"},
		),
		StepDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "netchange_step_duration_seconds",
				Help:    "Duration of orchestration steps in seconds",
				Buckets: []float64{0.05, 0.1, 0.5, 1, 2, 5, 10, 30, 60},
			},
			[]string{"operation", "step", "status"},
		),
		LastRun: factory.NewGauge(prometheus.GaugeOpts{
			Name: "netchange_last_run_timestamp_seconds",
			Help: "Unix time the last run finished",
		}),
	}
}

// ObserveStep records one step duration.
func (r *Recorder) ObserveStep(operation, step string, d time.Duration, err error) {
	if r == nil {
		return
	}
	status := "success"
	if err != nil {
		status = "error"
	}
	r.StepDuration.WithLabelValues(operation, step, status).Observe(d.Seconds())
}

// DeviceDone counts one finished device attempt.
func (r *Recorder) DeviceDone(operation, role, result string) {
	if r == nil {
		return
	}
	r.DeviceOutcomes.WithLabelValues(operation, role, result).Inc()
}

// RunDone stamps the end of a run.
func (r *Recorder) RunDone(at time.Time) {
	if r == nil {
		return
	}
	r.LastRun.Set(float64(at.Unix()))
}

// Gatherer exposes the registry.
func (r *Recorder) Gatherer() prometheus.Gatherer {
	return r.registry
}

// WriteTextfile writes all metrics atomically in the text exposition
// format, for the node-exporter textfile collector.
func (r *Recorder) WriteTextfile(path string) error {
	if r == nil || path == "" {
		return nil
	}
	return prometheus.WriteToTextfile(path, r.registry)
}
