package service

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Drop reasons reported on geonotify_transitions_dropped_total.
const (
	dropUnknown   = "unknown_geofence"
	dropStorage   = "storage_error"
	dropDebounced = "debounced"
	dropNoAlert   = "no_alert_channel"
)

// Metrics holds the manager's Prometheus collectors on a private registry.
type Metrics struct {
	registry *prometheus.Registry

	TransitionsReceived  *prometheus.CounterVec
	TransitionsDelivered *prometheus.CounterVec
	TransitionsDropped   *prometheus.CounterVec
	AlertsRaised         prometheus.Counter
	DeliveryFailures     prometheus.Counter
	RegistrationFailures prometheus.Counter
	Operations           *prometheus.CounterVec
}

func NewMetrics() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		TransitionsReceived: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "geonotify_transitions_received_total",
			Help: "Enter/exit callbacks received from the monitoring platform.",
		}, []string{"kind"}),
		TransitionsDelivered: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "geonotify_transitions_delivered_total",
			Help: "Transitions accepted by the debounce policy and handed to the bridge.",
		}, []string{"kind"}),
		TransitionsDropped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "geonotify_transitions_dropped_total",
			Help: "Transitions dropped before delivery, by reason.",
		}, []string{"reason"}),
		AlertsRaised: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "geonotify_alerts_raised_total",
			Help: "Local alerts raised for delivered transitions.",
		}),
		DeliveryFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "geonotify_delivery_failures_total",
			Help: "Bridge publish failures.",
		}),
		RegistrationFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "geonotify_registration_failures_total",
			Help: "Region registrations rejected by the monitoring platform.",
		}),
		Operations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "geonotify_operations_total",
			Help: "Manager operations by name and result.",
		}, []string{"op", "result"}),
	}

	m.registry.MustRegister(
		m.TransitionsReceived,
		m.TransitionsDelivered,
		m.TransitionsDropped,
		m.AlertsRaised,
		m.DeliveryFailures,
		m.RegistrationFailures,
		m.Operations,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *Metrics) observe(op string, err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	m.Operations.WithLabelValues(op, result).Inc()
}
