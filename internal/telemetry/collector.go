package telemetry

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/rs/zerolog"
)

// Collector fans records out to exporters through a bounded queue. Submit
// never blocks: a full queue drops the record and bumps the drop counter.
type Collector struct {
	queue     chan *Record
	exporters []Exporter
	logger    zerolog.Logger

	workers int
	wg      sync.WaitGroup
	dropped atomic.Int64

	mu     sync.RWMutex
	closed bool
}

// NewCollector builds a collector. Call Start before submitting.
func NewCollector(queueSize, workers int, logger zerolog.Logger, exporters ...Exporter) *Collector {
	return &Collector{
		queue:     make(chan *Record, queueSize),
		exporters: exporters,
		logger:    logger.With().Str("component", "telemetry").Logger(),
		workers:   workers,
	}
}

// Start launches the worker pool.
func (c *Collector) Start() {
	for i := 0; i < c.workers; i++ {
		c.wg.Add(1)
		go c.worker(i)
	}
}

func (c *Collector) worker(id int) {
	defer c.wg.Done()
	tag := fmt.Sprintf("telemetry-worker-%d", id)
	for rec := range c.queue {
		// Exactly one worker owns a record, so tagging here is race-free.
		rec.ThreadID = tag
		for _, e := range c.exporters {
			// Failures are logged and counted inside the exporter wrapper;
			// one sink failing must not stop delivery to the others.
			_ = e.Export(context.Background(), rec)
		}
	}
}

// Submit enqueues a record. Returns false when the record was dropped,
// either because the queue is full or the collector is shut down.
func (c *Collector) Submit(rec *Record) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if c.closed {
		c.dropped.Add(1)
		return false
	}

	select {
	case c.queue <- rec:
		return true
	default:
		n := c.dropped.Add(1)
		c.logger.Warn().
			Str("request_id", rec.RequestID).
			Int64("dropped_total", n).
			Msg("telemetry queue full, record dropped")
		return false
	}
}

// Dropped returns the number of records dropped since startup.
func (c *Collector) Dropped() int64 {
	return c.dropped.Load()
}

// Shutdown stops intake, drains the queue, and waits for the workers. The
// context bounds the drain; records still queued when it expires are lost.
func (c *Collector) Shutdown(ctx context.Context) error {
	c.mu.Lock()
	if !c.closed {
		c.closed = true
		close(c.queue)
	}
	c.mu.Unlock()

	finished := make(chan struct{})
	go func() {
		c.wg.Wait()
		close(finished)
	}()

	select {
	case <-finished:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
