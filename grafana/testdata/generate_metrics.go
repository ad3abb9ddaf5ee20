// Package testdata provides utilities for generating sample metrics data
// to test Grafana dashboards without pointing them at a real daemon.
package main

import (
	"context"
	"fmt"
	"log"
	"math/rand"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metric names and labels mirror internal/httpserver/metrics.go.
var (
	webhooksTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "storefrontd_http_webhook_updates_total",
			Help: "Webhook updates dispatched to store engines, labeled by store and outcome.",
		},
		[]string{"store", "outcome"},
	)
	requestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "storefrontd_http_request_duration_seconds",
			Help:    "HTTP request latency by method and route.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route"},
	)
)

var (
	stores = []string{"acme-pets", "beta-books", "gamma-garden"}
	routes = []string{"/webhook/:slug", "/health", "/admin/stores", "/admin/:slug/stats"}
)

func init() {
	prometheus.MustRegister(
		webhooksTotal,
		requestDuration,
	)
}

func main() {
	port := os.Getenv("PORT")
	if port == "" {
		port = "9091"
	}

	// Generate initial sample data
	generateSampleData()

	// Start background goroutine to continuously generate data
	ctx, cancel := context.WithCancel(context.Background())
	go generateContinuousData(ctx)

	// Serve metrics
	http.Handle("/metrics", promhttp.Handler())

	server := &http.Server{
		Addr:    ":" + port,
		Handler: nil,
	}

	// Graceful shutdown
	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		<-sigChan
		cancel()
		server.Shutdown(context.Background())
	}()

	fmt.Printf("Sample metrics server running on http://localhost:%s/metrics\n", port)
	fmt.Println("Press Ctrl+C to stop")
	fmt.Println("\nTo use with Prometheus, add this to prometheus.yml:")
	fmt.Printf("  - job_name: 'storefrontd-test'\n    static_configs:\n      - targets: ['localhost:%s']\n", port)

	if err := server.ListenAndServe(); err != http.ErrServerClosed {
		log.Fatal(err)
	}
}

func generateSampleData() {
	for _, store := range stores {
		// Seed a plausible history: mostly successful updates
		for i := 0; i < rand.Intn(200)+50; i++ {
			webhooksTotal.WithLabelValues(store, "ok").Inc()
		}
		for i := 0; i < rand.Intn(10); i++ {
			webhooksTotal.WithLabelValues(store, "error").Inc()
		}
	}

	for _, route := range routes {
		for i := 0; i < rand.Intn(100)+20; i++ {
			requestDuration.WithLabelValues("GET", route).Observe(rand.Float64() * 0.3)
		}
		for i := 0; i < rand.Intn(50)+10; i++ {
			requestDuration.WithLabelValues("POST", route).Observe(rand.Float64() * 1.5)
		}
	}
}

func generateContinuousData(ctx context.Context) {
	ticker := time.NewTicker(2 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			store := stores[rand.Intn(len(stores))]

			if rand.Float64() > 0.1 {
				webhooksTotal.WithLabelValues(store, "ok").Inc()
				requestDuration.WithLabelValues("POST", "/webhook/:slug").Observe(rand.Float64() * 1.2)
			} else {
				webhooksTotal.WithLabelValues(store, "error").Inc()
				requestDuration.WithLabelValues("POST", "/webhook/:slug").Observe(rand.Float64() * 3.0)
			}

			// Health probes and the occasional dashboard poll
			requestDuration.WithLabelValues("GET", "/health").Observe(rand.Float64() * 0.02)
			if rand.Float64() > 0.5 {
				requestDuration.WithLabelValues("GET", "/admin/stores").Observe(rand.Float64() * 0.1)
			}
		}
	}
}
