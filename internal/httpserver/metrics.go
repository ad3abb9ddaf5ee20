package httpserver

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	webhooksTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "storefrontd",
			Subsystem: "http",
			Name:      "webhook_updates_total",
			Help:      "Webhook updates dispatched to store engines, labeled by store and outcome.",
		},
		[]string{"store", "outcome"},
	)

	requestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "storefrontd",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request latency by method and route.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"method", "route"},
	)
)
