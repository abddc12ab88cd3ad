package storage

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics counts adapter traffic per backend.
type Metrics struct {
	Reads    *prometheus.CounterVec
	Writes   *prometheus.CounterVec
	Degraded prometheus.Gauge
}

// NewMetrics creates the storage collectors and registers them with reg.
// A nil reg leaves them unregistered, which is what tests want.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		Reads: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "physioledger",
			Subsystem: "storage",
			Name:      "reads_total",
			Help:      "Adapter reads by backend and result (hit, miss, error).",
		}, []string{"backend", "result"}),
		Writes: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "physioledger",
			Subsystem: "storage",
			Name:      "writes_total",
			Help:      "Adapter writes and deletes by backend and result (ok, error).",
		}, []string{"backend", "result"}),
		Degraded: f.NewGauge(prometheus.GaugeOpts{
			Namespace: "physioledger",
			Subsystem: "storage",
			Name:      "degraded",
			Help:      "1 while the secondary backend is rejecting writes.",
		}),
	}
}

func (m *Metrics) read(backend, result string) {
	if m != nil {
		m.Reads.WithLabelValues(backend, result).Inc()
	}
}

func (m *Metrics) write(backend string, err error) {
	if m == nil {
		return
	}
	result := "ok"
	if err != nil {
		result = "error"
	}
	m.Writes.WithLabelValues(backend, result).Inc()
}

func (m *Metrics) degraded(on bool) {
	if m == nil {
		return
	}
	if on {
		m.Degraded.Set(1)
	} else {
		m.Degraded.Set(0)
	}
}
