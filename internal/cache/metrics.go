package cache

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the Prometheus collectors shared by every cache.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	// Bounded caches
	Hits        *prometheus.CounterVec
	Misses      *prometheus.CounterVec
	Evictions   *prometheus.CounterVec
	Expirations *prometheus.CounterVec
	Entries     *prometheus.GaugeVec

	// Durable caches
	Writes         *prometheus.CounterVec
	CleanupRemoved *prometheus.CounterVec

	// Lifecycle
	CleanupRuns          prometheus.Counter
	PreloadHints         prometheus.Counter
	ResourceObservations *prometheus.CounterVec
}

// NewMetrics creates the cache collectors and registers them with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		Hits: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "offlinekit_cache_hits_total",
			Help: "Bounded cache lookups that returned a live entry",
		}, []string{"cache"}),
		Misses: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "offlinekit_cache_misses_total",
			Help: "Bounded cache lookups that found nothing usable",
		}, []string{"cache"}),
		Evictions: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "offlinekit_cache_evictions_total",
			Help: "Entries evicted to respect the entry bound",
		}, []string{"cache"}),
		Expirations: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "offlinekit_cache_expirations_total",
			Help: "Entries dropped because their TTL elapsed",
		}, []string{"cache"}),
		Entries: factory.NewGaugeVec(prometheus.GaugeOpts{
			Name: "offlinekit_cache_entries",
			Help: "Live entries per bounded cache",
		}, []string{"cache"}),
		Writes: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "offlinekit_durable_writes_total",
			Help: "Durable cache writes by result",
		}, []string{"cache", "result"}),
		CleanupRemoved: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "offlinekit_durable_cleanup_removed_total",
			Help: "Expired or corrupt durable items removed by cleanup",
		}, []string{"cache"}),
		CleanupRuns: factory.NewCounter(prometheus.CounterOpts{
			Name: "offlinekit_cleanup_runs_total",
			Help: "Durable sweeps performed by the lifecycle controller",
		}),
		PreloadHints: factory.NewCounter(prometheus.CounterOpts{
			Name: "offlinekit_preload_hints_total",
			Help: "Preload hints injected after a successful existence check",
		}),
		ResourceObservations: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "offlinekit_resource_observations_total",
			Help: "Observed resource timings classified as cache hit or network",
		}, []string{"source"}),
	}
}

func (m *Metrics) hit(cache string) {
	if m != nil {
		m.Hits.WithLabelValues(cache).Inc()
	}
}

func (m *Metrics) miss(cache string) {
	if m != nil {
		m.Misses.WithLabelValues(cache).Inc()
	}
}

func (m *Metrics) evict(cache string) {
	if m != nil {
		m.Evictions.WithLabelValues(cache).Inc()
	}
}

func (m *Metrics) expire(cache string, n int) {
	if m != nil && n > 0 {
		m.Expirations.WithLabelValues(cache).Add(float64(n))
	}
}

func (m *Metrics) entries(cache string, n int) {
	if m != nil {
		m.Entries.WithLabelValues(cache).Set(float64(n))
	}
}

func (m *Metrics) write(cache string, ok bool) {
	if m == nil {
		return
	}
	result := "ok"
	if !ok {
		result = "failed"
	}
	m.Writes.WithLabelValues(cache, result).Inc()
}

func (m *Metrics) cleaned(cache string, n int) {
	if m != nil && n > 0 {
		m.CleanupRemoved.WithLabelValues(cache).Add(float64(n))
	}
}

func (m *Metrics) cleanupRun() {
	if m != nil {
		m.CleanupRuns.Inc()
	}
}

func (m *Metrics) hint() {
	if m != nil {
		m.PreloadHints.Inc()
	}
}

func (m *Metrics) observed(hit bool) {
	if m == nil {
		return
	}
	source := "network"
	if hit {
		source = "cache"
	}
	m.ResourceObservations.WithLabelValues(source).Inc()
}
