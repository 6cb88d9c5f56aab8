package telemetry

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/searchktools/iris-restful/core/pools"
)

// Metrics is the fixed set of collectors the worker pool and slide cache
// report through (§6.3's observability surface). ResponsesTotal is
// registered and exported, but nothing in the server increments it. It replaces
// core/pool_stats.go's hand-rolled atomic counters with real Prometheus
// types so an operator gets histograms and label dimensions for free.
type Metrics struct {
	registry *prometheus.Registry

	CacheHits       prometheus.Counter
	CacheMisses     prometheus.Counter
	CacheOpenErrors prometheus.Counter
	QueueDepth      prometheus.Gauge
	TaskDuration    prometheus.Histogram
	ResponsesTotal  *prometheus.CounterVec
}

// NewMetrics registers a fresh set of collectors on a private registry
// (not the global default one, so tests can create as many as they like
// without a "duplicate metrics collector registration" panic).
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	m := &Metrics{
		registry: reg,
		CacheHits: factory.NewCounter(prometheus.CounterOpts{
			Name: "iris_slidecache_hits_total",
			Help: "Number of slide cache lookups served from an already-open handle.",
		}),
		CacheMisses: factory.NewCounter(prometheus.CounterOpts{
			Name: "iris_slidecache_misses_total",
			Help: "Number of slide cache lookups that opened a new slide file.",
		}),
		CacheOpenErrors: factory.NewCounter(prometheus.CounterOpts{
			Name: "iris_slidecache_open_errors_total",
			Help: "Number of slide opens that failed (missing or malformed file).",
		}),
		QueueDepth: factory.NewGauge(prometheus.GaugeOpts{
			Name: "iris_worker_queue_depth",
			Help: "Approximate number of tasks submitted but not yet completed.",
		}),
		TaskDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "iris_worker_task_duration_seconds",
			Help:    "Time spent running one worker-pool task.",
			Buckets: prometheus.DefBuckets,
		}),
		ResponsesTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "iris_responses_total",
			Help: "Number of responses served, by status code.",
		}, []string{"status"}),
	}
	m.registerBufferPoolGauge()
	return m
}

// registerBufferPoolGauge exposes core/pools' global response-buffer
// pool's reuse rate, sampled live on every scrape rather than pushed.
func (m *Metrics) registerBufferPoolGauge() {
	promauto.With(m.registry).NewGaugeFunc(prometheus.GaugeOpts{
		Name: "iris_response_buffer_pool_hit_rate",
		Help: "Fraction of response buffer acquisitions served from the pool rather than freshly allocated.",
	}, func() float64 {
		return pools.GetBufferStats().HitRate
	})
}

// Handler returns the /debug/metrics exposition handler for this
// collector set.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// IncCacheHit, IncCacheMiss, and IncCacheOpenError implement
// core/slidecache.MetricsSink.
func (m *Metrics) IncCacheHit()       { m.CacheHits.Inc() }
func (m *Metrics) IncCacheMiss()      { m.CacheMisses.Inc() }
func (m *Metrics) IncCacheOpenError() { m.CacheOpenErrors.Inc() }

// ObserveTaskDuration implements core/pools.MetricsSink.
func (m *Metrics) ObserveTaskDuration(seconds float64) { m.TaskDuration.Observe(seconds) }
func (m *Metrics) SetQueueDepth(n float64)              { m.QueueDepth.Set(n) }
