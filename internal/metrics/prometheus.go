// SPDX-License-Identifier: MIT

// Package metrics records request, cache, and worker telemetry. Everything
// is exported twice: as Prometheus series for scraping and as a resettable
// JSON snapshot served on the admin surface.
package metrics

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	requestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "hlsgate_requests_total",
		Help: "Total proxy requests by method",
	}, []string{"method"})

	responsesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "hlsgate_responses_total",
		Help: "Total proxy responses by status code",
	}, []string{"status"})

	requestDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "hlsgate_request_duration_seconds",
		Help:    "End-to-end proxy request latency",
		Buckets: []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
	})

	responseBytes = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "hlsgate_response_size_bytes",
		Help:    "Proxy response body sizes",
		Buckets: prometheus.ExponentialBuckets(1024, 4, 10),
	})

	requestsInFlight = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "hlsgate_requests_in_flight",
		Help: "Proxy requests currently being served",
	})

	cacheOps = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "hlsgate_cache_operations_total",
		Help: "Response cache operations by result",
	}, []string{"result"})

	workerTasks = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "hlsgate_worker_tasks_total",
		Help: "Decompression worker task outcomes",
	}, []string{"result"})

	workerQueueDepth = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "hlsgate_worker_queue_depth",
		Help: "Current decompression queue depth",
	})

	upstreamCancellations = promauto.NewCounter(prometheus.CounterOpts{
		Name: "hlsgate_upstream_cancellations_total",
		Help: "Upstream fetches aborted by timeout or client disconnect",
	})
)

func statusLabel(code int) string {
	return strconv.Itoa(code)
}
