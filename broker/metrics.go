package broker

import (
	"github.com/prometheus/client_golang/prometheus"
)

// metrics exposes broker internals as Prometheus collectors, mirroring
// ap.configd/metrics.go's pattern of surfacing live broker state rather than
// just request counters.
type metrics struct {
	requests      *prometheus.CounterVec
	notifyLatency prometheus.Histogram
	watcherCount  prometheus.GaugeFunc
	providerCount prometheus.GaugeFunc
}

func newMetrics(reg prometheus.Registerer, watchers *watchRegistry, providers *provideRegistry) *metrics {
	m := &metrics{
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "apteryx_broker_requests_total",
			Help: "Number of requests processed by the broker, by operation.",
		}, []string{"op"}),
		notifyLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "apteryx_broker_notify_seconds",
			Help:    "Time spent delivering a SET's watcher notification batch.",
			Buckets: prometheus.DefBuckets,
		}),
		watcherCount: prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Name: "apteryx_broker_watcher_patterns",
			Help: "Number of distinct watcher patterns currently registered.",
		}, func() float64 {
			watchers.mu.Lock()
			defer watchers.mu.Unlock()
			return float64(len(watchers.rows))
		}),
		providerCount: prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Name: "apteryx_broker_provider_paths",
			Help: "Number of distinct provider paths currently registered.",
		}, func() float64 {
			providers.mu.Lock()
			defer providers.mu.Unlock()
			return float64(len(providers.rows))
		}),
	}

	reg.MustRegister(m.requests, m.notifyLatency, m.watcherCount, m.providerCount)
	return m
}
