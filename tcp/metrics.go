package tcp

import (
	"errors"

	"github.com/prometheus/client_golang/prometheus"
)

type metrics struct {
	connections prometheus.Gauge
	framesTotal *prometheus.CounterVec
}

func newMetrics(reg prometheus.Registerer) *metrics {
	m := &metrics{
		connections: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "hellonode",
			Subsystem: "tcp",
			Name:      "connections",
			Help:      "Open TCP connections.",
		}),
		framesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "hellonode",
			Subsystem: "tcp",
			Name:      "frames_total",
			Help:      "Frames read from or written to TCP connections.",
		}, []string{"direction"}),
	}
	m.connections = register(reg, m.connections).(prometheus.Gauge)
	m.framesTotal = register(reg, m.framesTotal).(*prometheus.CounterVec)
	return m
}

func register(reg prometheus.Registerer, c prometheus.Collector) prometheus.Collector {
	if err := reg.Register(c); err != nil {
		var are prometheus.AlreadyRegisteredError
		if errors.As(err, &are) {
			return are.ExistingCollector
		}
		panic(err)
	}
	return c
}

func (m *metrics) frames(direction string) {
	m.framesTotal.WithLabelValues(direction).Inc()
}
