// Package metrics exposes the pipeline's Statistics snapshot as
// Prometheus instruments, grounded on the teacher's
// internal/gateway/metrics constructor shape.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/aetherflow/quantumcore/internal/quantum/reliability"
)

// Metrics wraps the counters and histograms a quantumcore endpoint exposes
// on its /metrics surface.
type Metrics struct {
	packetsSent       prometheus.Counter
	packetsReceived   prometheus.Counter
	packetsDropped    prometheus.Counter
	packetsOutOfOrder prometheus.Counter
	packetsDuplicated prometheus.Counter
	packetsStale      prometheus.Counter
	packetsResent     prometheus.Counter

	resendTimeout prometheus.Histogram
	smoothedRtt   prometheus.Histogram
}

// New registers a Metrics instance on reg, namespaced under
// "quantumcore". Callers typically pass prometheus.NewRegistry() or
// prometheus.DefaultRegisterer.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		packetsSent: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "quantumcore", Name: "packets_sent_total",
			Help: "Total packets handed to the transport for sending.",
		}),
		packetsReceived: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "quantumcore", Name: "packets_received_total",
			Help: "Total inbound packets classified by the ack engine.",
		}),
		packetsDropped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "quantumcore", Name: "packets_dropped_total",
			Help: "Total gap slots implied by a jump in the high-water mark.",
		}),
		packetsOutOfOrder: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "quantumcore", Name: "packets_out_of_order_total",
			Help: "Total packets that arrived behind the current high-water mark but filled a gap.",
		}),
		packetsDuplicated: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "quantumcore", Name: "packets_duplicated_total",
			Help: "Total packets already accounted for by the ack mask.",
		}),
		packetsStale: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "quantumcore", Name: "packets_stale_total",
			Help: "Total packets dropped for falling outside the receive window.",
		}),
		packetsResent: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "quantumcore", Name: "packets_resent_total",
			Help: "Total packets retransmitted after their resend timeout elapsed.",
		}),
		resendTimeout: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "quantumcore", Name: "resend_timeout_ms",
			Help:    "Current adaptive resend timeout, in milliseconds.",
			Buckets: prometheus.LinearBuckets(0, 20, 15),
		}),
		smoothedRtt: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "quantumcore", Name: "smoothed_rtt_ms",
			Help:    "Smoothed round-trip time estimate, in milliseconds.",
			Buckets: prometheus.LinearBuckets(0, 20, 15),
		}),
	}

	reg.MustRegister(
		m.packetsSent, m.packetsReceived, m.packetsDropped, m.packetsOutOfOrder,
		m.packetsDuplicated, m.packetsStale, m.packetsResent,
		m.resendTimeout, m.smoothedRtt,
	)

	return m
}

// Observe samples a pipeline Statistics snapshot and an RTT estimate
// into the registered instruments. Counters are set from cumulative
// totals via Add of the delta against the last observed snapshot.
func (m *Metrics) Observe(prev, cur reliability.Statistics, rtt reliability.RTTInfo) {
	m.packetsSent.Add(float64(cur.PacketsSent - prev.PacketsSent))
	m.packetsReceived.Add(float64(cur.PacketsReceived - prev.PacketsReceived))
	m.packetsDropped.Add(float64(cur.PacketsDropped - prev.PacketsDropped))
	m.packetsOutOfOrder.Add(float64(cur.PacketsOutOfOrder - prev.PacketsOutOfOrder))
	m.packetsDuplicated.Add(float64(cur.PacketsDuplicated - prev.PacketsDuplicated))
	m.packetsStale.Add(float64(cur.PacketsStale - prev.PacketsStale))
	m.packetsResent.Add(float64(cur.PacketsResent - prev.PacketsResent))

	m.resendTimeout.Observe(float64(rtt.ResendTimeout))
	m.smoothedRtt.Observe(rtt.SmoothedRtt)
}
