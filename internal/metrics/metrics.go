// Package metrics holds the service's Prometheus collectors.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	ResultOK       = "ok"
	ResultError    = "error"
	ResultNotFound = "not_found"
	ResultCacheHit = "cache_hit"
)

var (
	// CatalogLookups counts game metadata lookups by outcome.
	CatalogLookups = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gamevault_catalog_lookups_total",
			Help: "Total number of catalog game lookups",
		},
		[]string{"result"},
	)

	CatalogLookupDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "gamevault_catalog_lookup_duration_seconds",
			Help:    "Catalog lookup duration in seconds, retries included",
			Buckets: []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		},
	)

	// CollectionMutations counts aggregator mutations by operation and outcome.
	CollectionMutations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gamevault_collection_mutations_total",
			Help: "Total number of collection mutations",
		},
		[]string{"op", "result"},
	)

	MutationErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gamevault_mutation_errors_total",
			Help: "Mutation failures delivered to the error reporter",
		},
		[]string{"op"},
	)

	ActiveSessions = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "gamevault_active_sessions",
			Help: "Number of live per-user collection aggregators",
		},
	)
)

// ObserveMutation records the outcome of one mutation.
func ObserveMutation(op string, err error) {
	result := ResultOK
	if err != nil {
		result = ResultError
	}
	CollectionMutations.WithLabelValues(op, result).Inc()
}
