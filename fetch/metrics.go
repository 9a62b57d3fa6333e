package fetch

import "github.com/prometheus/client_golang/prometheus"

// Metrics counts what the Fetcher does.
type Metrics struct {
	Hits               prometheus.Counter
	Misses             prometheus.Counter
	Downloads          *prometheus.CounterVec // by result: ok, error
	CacheWriteFailures prometheus.Counter
	Skipped            prometheus.Counter
	ParseSeconds       prometheus.Histogram
}

// NewMetrics makes the counters and registers them with reg, unless
// reg is nil.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		Hits: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "molcache_cache_hits_total",
			Help: "Structures found in the cache.",
		}),
		Misses: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "molcache_cache_misses_total",
			Help: "Structures not in the cache.",
		}),
		Downloads: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "molcache_downloads_total",
			Help: "Downloads by result.",
		}, []string{"result"}),
		CacheWriteFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "molcache_cache_write_failures_total",
			Help: "Downloads the cache would not take, handed straight to the caller.",
		}),
		Skipped: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "molcache_parse_skipped_lines_total",
			Help: "Malformed lines skipped while parsing.",
		}),
		ParseSeconds: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "molcache_parse_seconds",
			Help:    "Time to parse one structure.",
			Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5},
		}),
	}
	if reg != nil {
		reg.MustRegister(m.Hits, m.Misses, m.Downloads, m.CacheWriteFailures, m.Skipped, m.ParseSeconds)
	}
	return m
}
