package ops

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

// Metrics collects register counters. It satisfies the sync engine and
// coordination observer interfaces.
type Metrics struct {
	registry       *prometheus.Registry
	syncAttempts   *prometheus.CounterVec
	syncBacklog    prometheus.Gauge
	discoveryScans *prometheus.CounterVec
	peersFound     prometheus.Gauge
	bridgeDegraded prometheus.Gauge
	degradedTotal  prometheus.Counter
}

func NewMetrics() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		syncAttempts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "lanpos",
			Subsystem: "sync",
			Name:      "attempts_total",
			Help:      "Commerce platform submissions by outcome.",
		}, []string{"outcome"}),
		syncBacklog: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "lanpos",
			Subsystem: "sync",
			Name:      "backlog",
			Help:      "Orders paid but not yet synced.",
		}),
		discoveryScans: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "lanpos",
			Subsystem: "discovery",
			Name:      "scans_total",
			Help:      "Subnet scans by result.",
		}, []string{"result"}),
		peersFound: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "lanpos",
			Subsystem: "discovery",
			Name:      "peers_found",
			Help:      "Registers found by the last scan.",
		}),
		bridgeDegraded: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "lanpos",
			Subsystem: "bridge",
			Name:      "degraded",
			Help:      "1 while the server register is unreachable.",
		}),
		degradedTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "lanpos",
			Subsystem: "bridge",
			Name:      "degraded_transitions_total",
			Help:      "Times the bridge lost its server.",
		}),
	}
	m.registry.MustRegister(
		m.syncAttempts, m.syncBacklog,
		m.discoveryScans, m.peersFound,
		m.bridgeDegraded, m.degradedTotal,
		collectors.NewGoCollector(),
	)
	return m
}

func (m *Metrics) Registry() *prometheus.Registry { return m.registry }

func (m *Metrics) SyncAttempt(outcome string) {
	m.syncAttempts.WithLabelValues(outcome).Inc()
}

func (m *Metrics) SyncBacklog(n int) {
	m.syncBacklog.Set(float64(n))
}

func (m *Metrics) DiscoveryScan(found int, err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	m.discoveryScans.WithLabelValues(result).Inc()
	m.peersFound.Set(float64(found))
}

func (m *Metrics) BridgeDegraded(degraded bool) {
	if degraded {
		m.bridgeDegraded.Set(1)
		m.degradedTotal.Inc()
		return
	}
	m.bridgeDegraded.Set(0)
}
