// Package metrics registers the server's Prometheus collectors: an
// in-flight request gauge, a request-duration histogram labelled by BSP
// method, and a counter of Cargo subprocess exit statuses. None of this is required by
// the BSP protocol itself; it mirrors the way the teacher's components
// track batches/tasks/failures as atomics feeding a metrics surface.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Collectors bundles the server's metrics and the registry they live in,
// so callers can wire the registry into an HTTP handler without reaching
// into package-level globals.
type Collectors struct {
	Registry *prometheus.Registry

	RequestsInFlight prometheus.Gauge
	RequestDuration  *prometheus.HistogramVec
	CargoExitStatus  *prometheus.CounterVec
}

// New builds a fresh Collectors with every metric registered.
func New() *Collectors {
	reg := prometheus.NewRegistry()

	c := &Collectors{
		Registry: reg,
		RequestsInFlight: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "cargo_bsp",
			Name:      "requests_in_flight",
			Help:      "Number of BSP requests currently being served.",
		}),
		RequestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "cargo_bsp",
			Name:      "request_duration_seconds",
			Help:      "Time from request received to response sent, by BSP method.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method"}),
		CargoExitStatus: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "cargo_bsp",
			Name:      "cargo_exit_status_total",
			Help:      "Count of Cargo subprocess completions by request kind and success.",
		}, []string{"kind", "success"}),
	}

	reg.MustRegister(c.RequestsInFlight, c.RequestDuration, c.CargoExitStatus)
	return c
}

// ObserveRequest records one request's end-to-end duration under method.
func (c *Collectors) ObserveRequest(method string, start time.Time) {
	c.RequestDuration.WithLabelValues(method).Observe(time.Since(start).Seconds())
}

// ObserveCargoExit records one Cargo subprocess completion.
func (c *Collectors) ObserveCargoExit(kind string, success bool) {
	label := "false"
	if success {
		label = "true"
	}
	c.CargoExitStatus.WithLabelValues(kind, label).Inc()
}
