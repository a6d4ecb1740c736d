// SPDX-License-Identifier: MIT

package metrics

import (
	"strconv"
	"sync"
	"sync/atomic"
	"time"
)

// histogram is a fixed-bucket histogram guarded by the registry mutex.
type histogram struct {
	bounds []float64 // upper bounds, ascending
	counts []int64   // len(bounds)+1; last bucket is overflow
	sum    float64
	total  int64
}

func newHistogram(bounds []float64) *histogram {
	return &histogram{bounds: bounds, counts: make([]int64, len(bounds)+1)}
}

func (h *histogram) observe(v float64) {
	h.sum += v
	h.total++
	for i, b := range h.bounds {
		if v <= b {
			h.counts[i]++
			return
		}
	}
	h.counts[len(h.bounds)]++
}

func (h *histogram) reset() {
	h.counts = make([]int64, len(h.bounds)+1)
	h.sum = 0
	h.total = 0
}

// HistogramSnapshot is the JSON form of a histogram.
type HistogramSnapshot struct {
	Buckets map[string]int64 `json:"buckets"`
	Count   int64            `json:"count"`
	Mean    float64          `json:"mean"`
}

func (h *histogram) snapshot(unit string) HistogramSnapshot {
	buckets := make(map[string]int64, len(h.counts))
	for i, b := range h.bounds {
		buckets[formatBound(b, unit)] = h.counts[i]
	}
	buckets["+Inf"] = h.counts[len(h.bounds)]
	s := HistogramSnapshot{Buckets: buckets, Count: h.total}
	if h.total > 0 {
		s.Mean = h.sum / float64(h.total)
	}
	return s
}

func formatBound(b float64, unit string) string {
	return "le_" + strconv.FormatFloat(b, 'f', -1, 64) + unit
}

// Registry accumulates the JSON snapshot counters. All methods also feed
// the Prometheus series, so callers only touch one API.
type Registry struct {
	startedAt time.Time

	requests      atomic.Int64
	responses     atomic.Int64
	cacheHits     atomic.Int64
	cacheMisses   atomic.Int64
	workerOK      atomic.Int64
	workerFailed  atomic.Int64
	cancellations atomic.Int64
	inFlight      atomic.Int64
	queueDepth    atomic.Int64

	mu        sync.Mutex
	latencyMS *histogram
	bodyBytes *histogram
	resetAt   time.Time
}

// Snapshot is the JSON document served on /metrics.
type Snapshot struct {
	Requests      int64             `json:"requests"`
	Responses     int64             `json:"responses"`
	CacheHits     int64             `json:"cacheHits"`
	CacheMisses   int64             `json:"cacheMisses"`
	WorkerSuccess int64             `json:"workerSuccesses"`
	WorkerFailure int64             `json:"workerFailures"`
	Cancellations int64             `json:"cancellations"`
	InFlight      int64             `json:"inFlight"`
	QueueDepth    int64             `json:"queueDepth"`
	LatencyMS     HistogramSnapshot `json:"latencyMs"`
	BodyBytes     HistogramSnapshot `json:"bodyBytes"`
	Since         time.Time         `json:"since"`
}

// NewRegistry creates a snapshot registry.
func NewRegistry() *Registry {
	now := time.Now()
	return &Registry{
		startedAt: now,
		resetAt:   now,
		latencyMS: newHistogram([]float64{10, 50, 100, 250, 500, 1000, 2500, 5000, 10000}),
		bodyBytes: newHistogram([]float64{1 << 10, 16 << 10, 64 << 10, 256 << 10, 1 << 20, 4 << 20, 16 << 20, 64 << 20}),
	}
}

// RecordRequest counts an accepted exchange and marks it in flight.
func (r *Registry) RecordRequest(method string) {
	r.requests.Add(1)
	r.inFlight.Add(1)
	requestsTotal.WithLabelValues(method).Inc()
	requestsInFlight.Inc()
}

// RecordResponse counts a terminal response with its latency and body size.
func (r *Registry) RecordResponse(status int, bodyBytes int64, elapsed time.Duration) {
	r.responses.Add(1)
	r.inFlight.Add(-1)
	responsesTotal.WithLabelValues(statusLabel(status)).Inc()
	requestsInFlight.Dec()
	requestDuration.Observe(elapsed.Seconds())
	responseBytes.Observe(float64(bodyBytes))

	r.mu.Lock()
	r.latencyMS.observe(float64(elapsed.Milliseconds()))
	r.bodyBytes.observe(float64(bodyBytes))
	r.mu.Unlock()
}

// RecordCache counts a cache lookup outcome.
func (r *Registry) RecordCache(hit bool) {
	if hit {
		r.cacheHits.Add(1)
		cacheOps.WithLabelValues("hit").Inc()
		return
	}
	r.cacheMisses.Add(1)
	cacheOps.WithLabelValues("miss").Inc()
}

// RecordWorker counts a worker task outcome.
func (r *Registry) RecordWorker(ok bool) {
	if ok {
		r.workerOK.Add(1)
		workerTasks.WithLabelValues("success").Inc()
		return
	}
	r.workerFailed.Add(1)
	workerTasks.WithLabelValues("failure").Inc()
}

// RecordCancellation counts an aborted upstream exchange.
func (r *Registry) RecordCancellation() {
	r.cancellations.Add(1)
	upstreamCancellations.Inc()
}

// SetQueueDepth publishes the current worker queue depth.
func (r *Registry) SetQueueDepth(depth int) {
	r.queueDepth.Store(int64(depth))
	workerQueueDepth.Set(float64(depth))
}

// Snapshot returns the current counters.
func (r *Registry) Snapshot() Snapshot {
	r.mu.Lock()
	lat := r.latencyMS.snapshot("ms")
	body := r.bodyBytes.snapshot("b")
	since := r.resetAt
	r.mu.Unlock()

	return Snapshot{
		Requests:      r.requests.Load(),
		Responses:     r.responses.Load(),
		CacheHits:     r.cacheHits.Load(),
		CacheMisses:   r.cacheMisses.Load(),
		WorkerSuccess: r.workerOK.Load(),
		WorkerFailure: r.workerFailed.Load(),
		Cancellations: r.cancellations.Load(),
		InFlight:      r.inFlight.Load(),
		QueueDepth:    r.queueDepth.Load(),
		LatencyMS:     lat,
		BodyBytes:     body,
		Since:         since,
	}
}

// Reset zeroes the snapshot counters. Prometheus series are monotone and
// deliberately unaffected.
func (r *Registry) Reset() {
	r.requests.Store(0)
	r.responses.Store(0)
	r.cacheHits.Store(0)
	r.cacheMisses.Store(0)
	r.workerOK.Store(0)
	r.workerFailed.Store(0)
	r.cancellations.Store(0)

	r.mu.Lock()
	r.latencyMS.reset()
	r.bodyBytes.reset()
	r.resetAt = time.Now()
	r.mu.Unlock()
}

// Uptime reports time since process start.
func (r *Registry) Uptime() time.Duration {
	return time.Since(r.startedAt)
}
