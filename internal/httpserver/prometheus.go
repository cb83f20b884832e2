package httpserver

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/skobkin/phoenixrec/internal/store"
)

const metricsNamespace = "phoenixrec"

type storeMetricsCollector struct {
	store   *store.Store
	metrics []storeMetric
}

type storeMetric struct {
	desc      *prometheus.Desc
	valueType prometheus.ValueType
	extract   func(st *store.Store) (float64, bool)
}

func newStoreMetricsCollector(st *store.Store) prometheus.Collector {
	if st == nil {
		return nil
	}

	desc := func(name, help string) *prometheus.Desc {
		return prometheus.NewDesc(
			prometheus.BuildFQName(metricsNamespace, "session", name),
			help,
			nil,
			nil,
		)
	}

	return &storeMetricsCollector{
		store: st,
		metrics: []storeMetric{
			{
				desc:      desc("entries", "Entries held by the session store."),
				valueType: prometheus.GaugeValue,
				extract: func(st *store.Store) (float64, bool) {
					return float64(st.Len()), true
				},
			},
			{
				desc:      desc("comments", "Comment entries held by the session store."),
				valueType: prometheus.GaugeValue,
				extract: func(st *store.Store) (float64, bool) {
					comments := 0
					for _, e := range st.Entries() {
						if e.IsComment() {
							comments++
						}
					}
					return float64(comments), true
				},
			},
			{
				desc:      desc("elapsed_seconds", "Elapsed robot time of the finished session."),
				valueType: prometheus.GaugeValue,
				extract: func(st *store.Store) (float64, bool) {
					elapsed, ok := st.Elapsed()
					if !ok {
						return 0, false
					}
					return elapsed.Seconds(), true
				},
			},
			{
				desc:      desc("start_timestamp_seconds", "Unix timestamp of the first record."),
				valueType: prometheus.GaugeValue,
				extract: func(st *store.Store) (float64, bool) {
					start := st.StartTime()
					if start.IsZero() {
						return 0, false
					}
					return float64(start.Unix()), true
				},
			},
			{
				desc:      desc("right_distance_total", "Accumulated right wheel distance."),
				valueType: prometheus.GaugeValue,
				extract: func(st *store.Store) (float64, bool) {
					right, _ := st.Totals()
					return float64(right), true
				},
			},
			{
				desc:      desc("left_distance_total", "Accumulated left wheel distance."),
				valueType: prometheus.GaugeValue,
				extract: func(st *store.Store) (float64, bool) {
					_, left := st.Totals()
					return float64(left), true
				},
			},
		},
	}
}

func (c *storeMetricsCollector) Describe(ch chan<- *prometheus.Desc) {
	for _, metric := range c.metrics {
		ch <- metric.desc
	}
}

func (c *storeMetricsCollector) Collect(ch chan<- prometheus.Metric) {
	for _, metric := range c.metrics {
		value, ok := metric.extract(c.store)
		if !ok {
			continue
		}
		ch <- prometheus.MustNewConstMetric(metric.desc, metric.valueType, value)
	}
}

func (s *Server) registerPrometheus(mux *http.ServeMux, registry *prometheus.Registry) {
	collectors := []prometheus.Collector{
		prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Namespace: metricsNamespace,
			Subsystem: "ws",
			Name:      "active_connections",
			Help:      "Current number of active WebSocket clients.",
		}, func() float64 {
			return float64(s.wsActive.Load())
		}),
		prometheus.NewCounterFunc(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: "ws",
			Name:      "connections_total",
			Help:      "Total WebSocket connections accepted since start.",
		}, func() float64 {
			return float64(s.wsTotal.Load())
		}),
		prometheus.NewCounterFunc(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: "ws",
			Name:      "rejected_total",
			Help:      "Total WebSocket connection attempts rejected due to capacity.",
		}, func() float64 {
			return float64(s.wsRejected.Load())
		}),
		prometheus.NewCounterFunc(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: "ws",
			Name:      "messages_sent_total",
			Help:      "Total WebSocket messages sent to clients.",
		}, func() float64 {
			return float64(s.wsSent.Load())
		}),
		prometheus.NewCounterFunc(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: "ws",
			Name:      "messages_dropped_total",
			Help:      "Total WebSocket messages dropped due to backpressure.",
		}, func() float64 {
			return float64(s.wsDropped.Load())
		}),
	}

	if storeCollector := newStoreMetricsCollector(s.store); storeCollector != nil {
		collectors = append(collectors, storeCollector)
	}

	for _, collector := range collectors {
		if err := registry.Register(collector); err != nil {
			s.logger.Warn("failed to register collector", "err", err)
		}
	}

	mux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
}
