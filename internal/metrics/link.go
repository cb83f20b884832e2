// Package metrics exposes Prometheus instrumentation for the telemetry link.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "phoenixrec"

// Failure reasons reported by ObserveFailure.
const (
	ReasonEncode    = "encode"
	ReasonDecode    = "decode"
	ReasonTransport = "transport"
	ReasonProtocol  = "protocol"
	ReasonReplay    = "replay"
	ReasonHandshake = "handshake"
)

// Link counts traffic for one end of the collector/producer link. All
// methods are safe to call on a nil *Link.
type Link struct {
	frames    prometheus.Counter
	entries   prometheus.Counter
	bytes     prometheus.Counter
	failures  *prometheus.CounterVec
	pending   prometheus.Gauge
	connected prometheus.Gauge
	sessions  prometheus.Counter
}

// NewLink registers link metrics labelled with role ("collector" or
// "producer") on reg.
func NewLink(reg prometheus.Registerer, role string) (*Link, error) {
	labels := prometheus.Labels{"role": role}
	l := &Link{
		frames: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace:   namespace,
			Subsystem:   "link",
			Name:        "frames_total",
			Help:        "Data frames carried over the link.",
			ConstLabels: labels,
		}),
		entries: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace:   namespace,
			Subsystem:   "link",
			Name:        "entries_total",
			Help:        "Entries carried over the link.",
			ConstLabels: labels,
		}),
		bytes: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace:   namespace,
			Subsystem:   "link",
			Name:        "bytes_total",
			Help:        "Framed bytes carried over the link, headers included.",
			ConstLabels: labels,
		}),
		failures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace:   namespace,
			Subsystem:   "link",
			Name:        "failures_total",
			Help:        "Link failures by reason.",
			ConstLabels: labels,
		}, []string{"reason"}),
		pending: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace:   namespace,
			Subsystem:   "link",
			Name:        "pending_entries",
			Help:        "Entries waiting to be sent.",
			ConstLabels: labels,
		}),
		connected: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace:   namespace,
			Subsystem:   "link",
			Name:        "connected",
			Help:        "Whether a peer session is currently open.",
			ConstLabels: labels,
		}),
		sessions: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace:   namespace,
			Subsystem:   "link",
			Name:        "sessions_total",
			Help:        "Peer sessions that completed the handshake.",
			ConstLabels: labels,
		}),
	}

	if reg != nil {
		for _, c := range []prometheus.Collector{l.frames, l.entries, l.bytes, l.failures, l.pending, l.connected, l.sessions} {
			if err := reg.Register(c); err != nil {
				return nil, err
			}
		}
	}
	return l, nil
}

// ObserveFrame records one data frame of frameBytes carrying n entries.
func (l *Link) ObserveFrame(n, frameBytes int) {
	if l == nil {
		return
	}
	l.frames.Inc()
	l.entries.Add(float64(n))
	l.bytes.Add(float64(frameBytes))
}

// ObserveFailure increments the failure counter for reason.
func (l *Link) ObserveFailure(reason string) {
	if l == nil {
		return
	}
	l.failures.WithLabelValues(reason).Inc()
}

// SetPending reports the current queue depth.
func (l *Link) SetPending(n int) {
	if l == nil {
		return
	}
	l.pending.Set(float64(n))
}

// SetConnected toggles the connected gauge. A transition to connected
// also counts a session.
func (l *Link) SetConnected(connected bool) {
	if l == nil {
		return
	}
	if connected {
		l.connected.Set(1)
		l.sessions.Inc()
		return
	}
	l.connected.Set(0)
}
