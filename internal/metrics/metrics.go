// Package metrics holds the Prometheus collectors for schema updates and
// the accessor cache. A nil *Collector is valid and records nothing.
package metrics

import (
	"net/http"
	"time"

	"github.com/syssam/strata"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Fetch results.
const (
	FetchChanged   = "changed"
	FetchUnchanged = "unchanged"
	FetchFailed    = "failed"
	FetchDiscarded = "discarded"
)

// Collector holds all metrics of one schema instance.
type Collector struct {
	registry *prometheus.Registry

	Fetches       *prometheus.CounterVec
	FetchDuration prometheus.Histogram
	SchemaVersion *prometheus.GaugeVec
	LastChange    prometheus.Gauge
}

// New returns a collector registered with its own registry.
func New(namespace string) *Collector {
	registry := prometheus.NewRegistry()

	fetches := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "schema_fetches_total",
			Help:      "Total number of schema fetches by result",
		},
		[]string{"result"},
	)

	fetchDuration := prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "schema_fetch_duration_seconds",
			Help:      "Schema fetch duration in seconds",
			Buckets:   prometheus.DefBuckets,
		},
	)

	schemaVersion := prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "schema_version_info",
			Help:      "Version of the schema currently served, as a label",
		},
		[]string{"version"},
	)

	lastChange := prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "schema_last_change_timestamp_seconds",
			Help:      "Unix time of the last schema version change",
		},
	)

	registry.MustRegister(fetches, fetchDuration, schemaVersion, lastChange)

	return &Collector{
		registry:      registry,
		Fetches:       fetches,
		FetchDuration: fetchDuration,
		SchemaVersion: schemaVersion,
		LastChange:    lastChange,
	}
}

// Registry returns the registry the collector's metrics are registered with.
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

// ObserveFetch records one fetch.
func (c *Collector) ObserveFetch(result string, d time.Duration) {
	if c == nil {
		return
	}
	c.Fetches.WithLabelValues(result).Inc()
	c.FetchDuration.Observe(d.Seconds())
}

// SetVersion records the version now being served.
func (c *Collector) SetVersion(version string, at time.Time) {
	if c == nil {
		return
	}
	c.SchemaVersion.Reset()
	c.SchemaVersion.WithLabelValues(version).Set(1)
	c.LastChange.Set(float64(at.Unix()))
}

// RegisterCache exports the statistics of cache.
func (c *Collector) RegisterCache(namespace string, cache *strata.Cache) error {
	stats := cache.Stats()
	collectors := []prometheus.Collector{
		prometheus.NewCounterFunc(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cache_hits_total",
			Help:      "Total number of accessor cache hits",
		}, func() float64 { return float64(stats.Hits.Load()) }),
		prometheus.NewCounterFunc(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cache_misses_total",
			Help:      "Total number of accessor cache misses",
		}, func() float64 { return float64(stats.Misses.Load()) }),
		prometheus.NewCounterFunc(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cache_clears_total",
			Help:      "Total number of accessor cache clears",
		}, func() float64 { return float64(stats.Clears.Load()) }),
		prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "cache_entries",
			Help:      "Number of cached accessor results",
		}, func() float64 { return float64(cache.Len()) }),
	}
	for _, col := range collectors {
		if err := c.registry.Register(col); err != nil {
			return err
		}
	}
	return nil
}

// Handler serves the registry in the Prometheus exposition format.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}
