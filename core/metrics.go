package core

import (
	"errors"

	"github.com/prometheus/client_golang/prometheus"
)

const metricsNamespace = "hellonode"

type metrics struct {
	routedTotal    *prometheus.CounterVec
	droppedTotal   *prometheus.CounterVec
	workersStarted prometheus.Counter
}

func newMetrics(reg prometheus.Registerer) *metrics {
	m := &metrics{
		routedTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "messages_routed_total",
			Help:      "Messages handed to a worker mailbox, by the transport type of the hop.",
		}, []string{"transport"}),
		droppedTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "messages_dropped_total",
			Help:      "Messages that could not be delivered, by reason.",
		}, []string{"reason"}),
		workersStarted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "workers_started_total",
			Help:      "Workers started on the node.",
		}),
	}

	m.routedTotal = registerOrExisting(reg, m.routedTotal).(*prometheus.CounterVec)
	m.droppedTotal = registerOrExisting(reg, m.droppedTotal).(*prometheus.CounterVec)
	m.workersStarted = registerOrExisting(reg, m.workersStarted).(prometheus.Counter)
	return m
}

// registerOrExisting registers c, or returns the collector that is already
// registered under the same name so that nodes can share a registry.
func registerOrExisting(reg prometheus.Registerer, c prometheus.Collector) prometheus.Collector {
	if err := reg.Register(c); err != nil {
		var are prometheus.AlreadyRegisteredError
		if errors.As(err, &are) {
			return are.ExistingCollector
		}
		panic(err)
	}
	return c
}

func (m *metrics) routed(t TransportType) {
	m.routedTotal.WithLabelValues(t.String()).Inc()
}

func (m *metrics) dropped(reason string) {
	m.droppedTotal.WithLabelValues(reason).Inc()
}
