package metrics

import (
	"errors"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/raphaelgruber/fileconv/internal/converter"
)

// Exporter turns converter events into Prometheus metrics. fileconv is a
// short-lived CLI, so metrics are written to a file for the node exporter's
// textfile collector instead of being scraped.
type Exporter struct {
	registry *prometheus.Registry

	started  prometheus.Counter
	finished *prometheus.CounterVec
	rejected *prometheus.CounterVec
	duration *prometheus.HistogramVec
	active   prometheus.Gauge
}

// NewExporter creates an exporter with its own registry.
func NewExporter() *Exporter {
	e := &Exporter{
		registry: prometheus.NewRegistry(),
		started: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "fileconv_conversions_started_total",
			Help: "Conversions dispatched to an external tool.",
		}),
		finished: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "fileconv_conversions_finished_total",
			Help: "Conversions that reached a terminal status.",
		}, []string{"status"}),
		rejected: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "fileconv_submissions_rejected_total",
			Help: "Submissions rejected before queuing.",
		}, []string{"reason"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "fileconv_conversion_duration_seconds",
			Help:    "Time from dispatch to terminal status.",
			Buckets: []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60, 120},
		}, []string{"status"}),
		active: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "fileconv_conversions_active",
			Help: "Conversions currently running or awaiting output.",
		}),
	}
	e.registry.MustRegister(e.started, e.finished, e.rejected, e.duration, e.active)
	return e
}

// Registry exposes the underlying registry.
func (e *Exporter) Registry() *prometheus.Registry {
	return e.registry
}

// Emit implements converter.Sink.
func (e *Exporter) Emit(ev converter.Event) {
	switch ev.Kind {
	case converter.EventStarted:
		e.started.Inc()
		e.active.Inc()
	case converter.EventError:
		e.rejected.WithLabelValues(rejectReason(ev.Err)).Inc()
	case converter.EventFinished:
		status := string(ev.Status)
		e.finished.WithLabelValues(status).Inc()
		// Requests cancelled while queued were never dispatched.
		if ev.JobID != "" {
			e.active.Dec()
			e.duration.WithLabelValues(status).Observe(ev.Duration.Seconds())
		}
	}
}

// WriteTextfile writes all metrics to path in the text exposition format.
func (e *Exporter) WriteTextfile(path string) error {
	if err := prometheus.WriteToTextfile(path, e.registry); err != nil {
		return fmt.Errorf("write metrics file: %w", err)
	}
	return nil
}

func rejectReason(err error) string {
	switch {
	case errors.Is(err, converter.ErrInputMissing):
		return "input_missing"
	case errors.Is(err, converter.ErrUnsupportedRoute):
		return "unsupported"
	case errors.Is(err, converter.ErrAlreadyInProgress):
		return "already_in_progress"
	default:
		return "other"
	}
}
