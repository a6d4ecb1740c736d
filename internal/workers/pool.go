// SPDX-License-Identifier: MIT

// Package workers offloads CPU-heavy decompression from the request path.
// The pool is an optimization, not a correctness boundary: every call site
// must tolerate a synchronous decode when the pool is saturated or stopped.
package workers

import (
	"errors"
	"sync"
	"sync/atomic"

	"github.com/hlsgate/hlsgate/internal/compress"
	"github.com/rs/zerolog"
)

// Pool submission errors. Callers fall back to inline decode on either.
var (
	ErrQueueFull = errors.New("worker queue is full")
	ErrStopped   = errors.New("worker pool is stopped")
)

type task struct {
	data     []byte
	encoding string
	result   chan result
}

type result struct {
	data []byte
	err  error
}

// Pool is a bounded set of decompression workers with a bounded FIFO queue.
type Pool struct {
	queue chan task
	wg    sync.WaitGroup
	// mu orders enqueues against Shutdown closing the queue.
	mu        sync.RWMutex
	logger    zerolog.Logger
	minBytes  int
	workers   int
	stopped   atomic.Bool
	successes atomic.Int64
	failures  atomic.Int64
	inline    atomic.Int64
	highWater atomic.Int64
}

// Stats is a point-in-time snapshot of pool telemetry.
type Stats struct {
	Workers        int   `json:"workers"`
	QueueLength    int   `json:"queueLength"`
	QueueCapacity  int   `json:"queueCapacity"`
	QueueHighWater int64 `json:"queueHighWater"`
	Successes      int64 `json:"successes"`
	Failures       int64 `json:"failures"`
	InlineDecodes  int64 `json:"inlineDecodes"`
}

// New starts a pool with the given worker count, queue capacity, and inline
// threshold in bytes.
func New(workers, queueSize, minBytes int, logger zerolog.Logger) *Pool {
	if workers < 1 {
		workers = 1
	}
	if queueSize < 1 {
		queueSize = workers * 2
	}
	p := &Pool{
		queue:    make(chan task, queueSize),
		logger:   logger,
		minBytes: minBytes,
		workers:  workers,
	}
	p.wg.Add(workers)
	for i := 0; i < workers; i++ {
		go p.worker()
	}
	logger.Info().
		Int("workers", workers).
		Int("queue_size", queueSize).
		Int("min_bytes", minBytes).
		Msg("worker pool started")
	return p
}

func (p *Pool) worker() {
	defer p.wg.Done()
	for t := range p.queue {
		out, err := compress.Decompress(t.data, t.encoding)
		if err != nil {
			p.failures.Add(1)
		} else {
			p.successes.Add(1)
		}
		t.result <- result{data: out, err: err}
	}
}

// Decompress decodes data, offloading to a worker when the input is large
// enough and the queue has room. Small inputs and saturation degrade to an
// inline decode; the caller cannot tell the difference.
func (p *Pool) Decompress(data []byte, encoding string) ([]byte, error) {
	if len(data) < p.minBytes || p.stopped.Load() {
		p.inline.Add(1)
		return compress.Decompress(data, encoding)
	}

	out, err := p.submit(data, encoding)
	if errors.Is(err, ErrQueueFull) || errors.Is(err, ErrStopped) {
		p.logger.Debug().Err(err).Int("bytes", len(data)).Msg("degrading to inline decode")
		p.inline.Add(1)
		return compress.Decompress(data, encoding)
	}
	return out, err
}

// submit enqueues a task without blocking and waits for its completion.
func (p *Pool) submit(data []byte, encoding string) ([]byte, error) {
	t := task{data: data, encoding: encoding, result: make(chan result, 1)}

	p.mu.RLock()
	if p.stopped.Load() {
		p.mu.RUnlock()
		return nil, ErrStopped
	}
	select {
	case p.queue <- t:
	default:
		p.mu.RUnlock()
		return nil, ErrQueueFull
	}
	if depth := int64(len(p.queue)); depth > p.highWater.Load() {
		p.highWater.Store(depth)
	}
	p.mu.RUnlock()

	r := <-t.result
	return r.data, r.err
}

// Stats returns current pool telemetry.
func (p *Pool) Stats() Stats {
	return Stats{
		Workers:        p.workers,
		QueueLength:    len(p.queue),
		QueueCapacity:  cap(p.queue),
		QueueHighWater: p.highWater.Load(),
		Successes:      p.successes.Load(),
		Failures:       p.failures.Load(),
		InlineDecodes:  p.inline.Load(),
	}
}

// Shutdown rejects new submissions, drains queued tasks, and waits for the
// workers to exit.
func (p *Pool) Shutdown() {
	if p.stopped.Swap(true) {
		return
	}
	p.mu.Lock()
	close(p.queue)
	p.mu.Unlock()
	p.wg.Wait()
	p.logger.Info().
		Int64("successes", p.successes.Load()).
		Int64("failures", p.failures.Load()).
		Msg("worker pool stopped")
}
