package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"
	"time"

	"github.com/roman-kulish/flight-log-analysis/internal/flight"
	"github.com/roman-kulish/flight-log-analysis/internal/mavlink"
	"github.com/roman-kulish/flight-log-analysis/internal/storage"
)

// Concurrent ingests a flight log through a bounded three-stage pipeline:
// one producer decodes and feeds a bounded message channel, N workers route
// and batch on private accumulators, a single writer owns the store handle
// and commits one transaction per batch.
//
// Backpressure is blocking channel sends: nothing is ever dropped on a full
// queue. Batches from different workers are written in arbitrary order;
// nothing downstream may assume FIFO delivery — reads go through the
// (session, time) index.
//
// Shutdown is a strict three-phase handshake: the producer closes the
// message channel, the coordinator joins all workers (bounded), then closes
// the batch channel and joins the writer (bounded). The writer can only see
// its channel close after every worker drained its final partial batches,
// so none are lost. A join timeout cancels the shared context and moves on:
// forward progress over perfect cleanup.
type Concurrent struct {
	store    storage.TelemetryStore
	sessions storage.SessionStore
	opts     options
	logger   *slog.Logger
}

// NewConcurrent creates a concurrent ingestion coordinator.
func NewConcurrent(store storage.TelemetryStore, sessions storage.SessionStore, opts ...Option) *Concurrent {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}

	return &Concurrent{
		store:    store,
		sessions: sessions,
		opts:     o,
		logger:   o.logger.With(slog.String("pipeline", "concurrent")),
	}
}

type workerStats struct {
	routed    int64
	dropped   int64
	fieldErrs int64
}

type writerStats struct {
	written int64
	failed  int64
}

// Run ingests the log at path under the given session identifier. The
// session metadata row is finalized exactly once on every exit path.
func (p *Concurrent) Run(ctx context.Context, sessionID, path string) (*Summary, error) {
	if err := createSession(ctx, p.sessions, sessionID, path); err != nil {
		return nil, err
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	messages := make(chan *mavlink.Message, p.opts.messageQueueSize)
	batches := make(chan flight.Batch, p.opts.batchQueueSize)

	// Producer: owns the decoder and the metadata collector. Closing the
	// message channel is its end-of-stream signal to every worker.
	collector := flight.NewMetadataCollector()
	produceErr := make(chan error, 1)
	go func() {
		defer close(messages)
		produceErr <- p.produce(ctx, path, collector, messages)
	}()

	// Workers: private accumulators, no shared mutable state; full batches
	// are handed off by value, ownership transfers on send.
	stats := make(chan workerStats, p.opts.workers)
	var wg sync.WaitGroup
	for i := 0; i < p.opts.workers; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			stats <- p.work(ctx, sessionID, id, messages, batches)
		}(i)
	}

	// Writer: the only goroutine touching the analytical store.
	writerDone := make(chan writerStats, 1)
	go func() {
		writerDone <- p.write(ctx, batches)
	}()

	runErr := <-produceErr

	workersDone := make(chan struct{})
	go func() {
		wg.Wait()
		close(workersDone)
	}()
	p.join(workersDone, p.opts.workerJoinTimeout, cancel, "workers")

	close(batches)

	var ws writerStats
	select {
	case ws = <-writerDone:
	case <-time.After(p.opts.writerJoinTimeout):
		p.logger.Warn("writer did not finish in time, cancelling")
		cancel()
		ws = <-writerDone
	}

	meta := collector.Finalize()
	s := summaryFromMetadata(meta)
	s.RecordsWritten = ws.written
	s.FailedBatches = ws.failed
	close(stats)
	for st := range stats {
		s.ConversionErrors += st.fieldErrs
		s.DroppedMessages += st.dropped
	}

	if runErr != nil {
		runErr = fmt.Errorf("scanning %s: %w", filepath.Base(path), runErr)
	}

	finalizeSession(ctx, p.sessions, sessionID, meta, runErr, p.logger)
	return s, runErr
}

func (p *Concurrent) produce(ctx context.Context, path string, collector *flight.MetadataCollector, messages chan<- *mavlink.Message) error {
	dec, err := p.opts.open(path)
	if err != nil {
		return err
	}
	defer dec.Close()

	return drainDecoder(ctx, dec, func(msg *mavlink.Message) error {
		collector.Observe(msg)

		select {
		case messages <- msg:
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}
	})
}

func (p *Concurrent) work(ctx context.Context, sessionID string, id int, messages <-chan *mavlink.Message, batches chan<- flight.Batch) workerStats {
	logger := p.logger.With(slog.Int("worker", id))
	acc := flight.NewAccumulator(sessionID)

	for msg := range messages {
		if !acc.RouteAndAdd(msg) {
			continue
		}

		if acc.Pending() < p.opts.batchSize {
			continue
		}
		for _, batch := range acc.DrainFull(p.opts.batchSize) {
			if !sendBatch(ctx, batches, batch) {
				logger.Warn("shutdown before batch handoff, records lost",
					slog.String("channel", string(batch.Channel)),
					slog.Int("records", len(batch.Records)))
			}
		}
	}

	// End of stream: hand off the final partial batches before exiting.
	for _, batch := range acc.DrainAll() {
		if !sendBatch(ctx, batches, batch) {
			logger.Warn("shutdown before final batch handoff, records lost",
				slog.String("channel", string(batch.Channel)),
				slog.Int("records", len(batch.Records)))
		}
	}

	return workerStats{
		routed:    acc.Routed(),
		dropped:   acc.Dropped(),
		fieldErrs: acc.FieldErrors(),
	}
}

// sendBatch blocks until the writer accepts the batch; a full batch queue
// stalls the worker rather than dropping records. Only a cancelled context
// abandons the handoff.
func sendBatch(ctx context.Context, batches chan<- flight.Batch, batch flight.Batch) bool {
	select {
	case batches <- batch:
		return true
	case <-ctx.Done():
		return false
	}
}

func (p *Concurrent) write(ctx context.Context, batches <-chan flight.Batch) writerStats {
	var stats writerStats

	for batch := range batches {
		if err := p.store.StoreBatch(ctx, batch); err != nil {
			// Rolled back as a unit; the writer keeps going with the next
			// batch.
			p.logger.Error("storing batch",
				slog.String("channel", string(batch.Channel)),
				slog.Int("records", len(batch.Records)),
				slog.String("error", err.Error()))
			stats.failed++
			continue
		}
		stats.written += int64(len(batch.Records))
	}

	return stats
}

func (p *Concurrent) join(done <-chan struct{}, timeout time.Duration, cancel context.CancelFunc, who string) {
	select {
	case <-done:
	case <-time.After(timeout):
		p.logger.Warn(fmt.Sprintf("%s did not finish in time, cancelling", who))
		cancel()
		<-done
	}
}
