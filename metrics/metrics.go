// Package metrics exposes the core's counters and gauges through
// github.com/prometheus/client_golang.
package metrics

import "github.com/prometheus/client_golang/prometheus"

// Metrics groups every Prometheus collector this core registers.
type Metrics struct {
	ConnectionsActive prometheus.Gauge
	ConnectionsTotal  prometheus.Counter
	Disconnects       *prometheus.CounterVec
	Blocks            *prometheus.CounterVec

	DatagramsIn  prometheus.Counter
	DatagramsOut prometheus.Counter
	BytesIn      prometheus.Counter
	BytesOut     prometheus.Counter
	Retransmits  prometheus.Counter

	RTT prometheus.Histogram
}

// New constructs and registers every collector against reg.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		ConnectionsActive: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "raknet", Name: "connections_active",
			Help: "Number of currently established connections.",
		}),
		ConnectionsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "raknet", Name: "connections_total",
			Help: "Total connections established since startup.",
		}),
		Disconnects: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "raknet", Name: "disconnects_total",
			Help: "Disconnects by reason.",
		}, []string{"reason"}),
		Blocks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "raknet", Name: "blocks_total",
			Help: "Address blocks by reason.",
		}, []string{"reason"}),
		DatagramsIn: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "raknet", Name: "datagrams_in_total",
			Help: "Datagrams received.",
		}),
		DatagramsOut: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "raknet", Name: "datagrams_out_total",
			Help: "Datagrams sent.",
		}),
		BytesIn: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "raknet", Name: "bytes_in_total",
			Help: "Bytes received.",
		}),
		BytesOut: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "raknet", Name: "bytes_out_total",
			Help: "Bytes sent.",
		}),
		Retransmits: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "raknet", Name: "retransmits_total",
			Help: "Datagrams retransmitted after a NACK.",
		}),
		RTT: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "raknet", Name: "rtt_seconds",
			Help:    "Measured round-trip time per connection sample.",
			Buckets: prometheus.ExponentialBuckets(0.001, 2, 14),
		}),
	}

	reg.MustRegister(
		m.ConnectionsActive, m.ConnectionsTotal, m.Disconnects, m.Blocks,
		m.DatagramsIn, m.DatagramsOut, m.BytesIn, m.BytesOut, m.Retransmits, m.RTT,
	)
	return m
}
