// Package metrics provides Prometheus metrics for the server watcher.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "factwatch"

// Metrics holds the collectors of a single watcher. All methods are safe
// to call on a nil *Metrics, which records nothing.
type Metrics struct {
	lines        prometheus.Counter
	decodeErrors prometheus.Counter
	events       *prometheus.CounterVec
	deliveries   *prometheus.CounterVec
	serverUp     prometheus.Gauge
}

// New creates the collectors and registers them with reg.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		lines: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "pump",
			Name:      "lines_total",
			Help:      "Lines read from the server output",
		}),
		decodeErrors: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "pump",
			Name:      "decode_errors_total",
			Help:      "Lines that were not valid UTF-8",
		}),
		events: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "pump",
			Name:      "events_total",
			Help:      "Player events detected in the server output",
		}, []string{"kind"}),
		deliveries: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "notify",
			Name:      "deliveries_total",
			Help:      "Webhook deliveries by result",
		}, []string{"result"}),
		serverUp: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "supervisor",
			Name:      "server_up",
			Help:      "Whether the supervised server process is running",
		}),
	}
}

func (m *Metrics) ObserveLine() {
	if m == nil {
		return
	}
	m.lines.Inc()
}

func (m *Metrics) ObserveDecodeError() {
	if m == nil {
		return
	}
	m.decodeErrors.Inc()
}

func (m *Metrics) ObserveEvent(kind string) {
	if m == nil {
		return
	}
	m.events.WithLabelValues(kind).Inc()
}

func (m *Metrics) ObserveDelivery(err error) {
	if m == nil {
		return
	}

	result := "success"
	if err != nil {
		result = "failure"
	}

	m.deliveries.WithLabelValues(result).Inc()
}

func (m *Metrics) SetServerUp(up bool) {
	if m == nil {
		return
	}

	if up {
		m.serverUp.Set(1)
	} else {
		m.serverUp.Set(0)
	}
}
