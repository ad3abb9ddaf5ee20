package retrieval

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// searchesTotal counts searches per store and outcome.
	// Labels: store, status (success, no_results, error)
	searchesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "storefrontd",
			Subsystem: "retrieval",
			Name:      "searches_total",
			Help:      "Total number of retrieval searches by store and outcome",
		},
		[]string{"store", "status"},
	)

	// searchDuration tracks end-to-end search latency, translation and
	// query embedding included.
	searchDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "storefrontd",
			Subsystem: "retrieval",
			Name:      "search_duration_seconds",
			Help:      "Duration of retrieval searches in seconds",
			Buckets:   prometheus.DefBuckets,
		},
	)
)
