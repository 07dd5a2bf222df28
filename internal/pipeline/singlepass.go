package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/roman-kulish/flight-log-analysis/internal/flight"
	"github.com/roman-kulish/flight-log-analysis/internal/mavlink"
	"github.com/roman-kulish/flight-log-analysis/internal/storage"
)

// SinglePass ingests a flight log in one synchronous scan: decode, route,
// accumulate and flush full batches inline. Store writes block the scan
// loop; batching amortizes their cost, nothing overlaps them.
type SinglePass struct {
	store    storage.TelemetryStore
	sessions storage.SessionStore
	opts     options
	logger   *slog.Logger
}

// NewSinglePass creates a single-pass ingestion coordinator.
func NewSinglePass(store storage.TelemetryStore, sessions storage.SessionStore, opts ...Option) *SinglePass {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}

	return &SinglePass{
		store:    store,
		sessions: sessions,
		opts:     o,
		logger:   o.logger.With(slog.String("pipeline", "single-pass")),
	}
}

// Run ingests the log at path under the given session identifier. The
// session metadata row is finalized exactly once on every exit path; the
// returned summary is valid on failure too and reflects whatever was
// committed before the error.
func (p *SinglePass) Run(ctx context.Context, sessionID, path string) (*Summary, error) {
	if err := createSession(ctx, p.sessions, sessionID, path); err != nil {
		return nil, err
	}

	collector := flight.NewMetadataCollector()
	acc := flight.NewAccumulator(sessionID)

	summary, runErr := p.scan(ctx, sessionID, path, collector, acc)

	meta := collector.Finalize()
	s := summaryFromMetadata(meta)
	s.RecordsWritten = summary.RecordsWritten
	s.FailedBatches = summary.FailedBatches
	s.ConversionErrors = acc.FieldErrors()
	s.DroppedMessages = acc.Dropped()

	finalizeSession(ctx, p.sessions, sessionID, meta, runErr, p.logger)
	return s, runErr
}

func (p *SinglePass) scan(ctx context.Context, sessionID, path string, collector *flight.MetadataCollector, acc *flight.Accumulator) (*Summary, error) {
	var s Summary

	dec, err := p.opts.open(path)
	if err != nil {
		return &s, err
	}
	defer dec.Close()

	scanErr := drainDecoder(ctx, dec, func(msg *mavlink.Message) error {
		collector.Observe(msg)
		if !acc.RouteAndAdd(msg) {
			return nil
		}

		for _, batch := range acc.DrainFull(p.opts.batchSize) {
			p.writeBatch(ctx, batch, &s)
		}
		return nil
	})

	// Best-effort final flush: on a scan failure whatever was accumulated
	// is still attempted, matching the concurrent pipeline's drain.
	for _, batch := range acc.DrainAll() {
		p.writeBatch(ctx, batch, &s)
	}

	if scanErr != nil {
		return &s, fmt.Errorf("scanning %s: %w", filepath.Base(path), scanErr)
	}
	return &s, nil
}

// writeBatch commits one batch in its own transaction. A failed batch is
// logged and dropped; the scan continues. Both coordinators share this
// rollback-and-continue policy.
func (p *SinglePass) writeBatch(ctx context.Context, batch flight.Batch, s *Summary) {
	if err := p.store.StoreBatch(ctx, batch); err != nil {
		p.logger.Error("storing batch",
			slog.String("channel", string(batch.Channel)),
			slog.Int("records", len(batch.Records)),
			slog.String("error", err.Error()))
		s.FailedBatches++
		return
	}
	s.RecordsWritten += int64(len(batch.Records))
}

func createSession(ctx context.Context, sessions storage.SessionStore, sessionID, path string) error {
	var size int64
	if stat, err := os.Stat(path); err == nil {
		size = stat.Size()
	}

	if err := sessions.CreateSession(ctx, sessionID, filepath.Base(path), size); err != nil {
		return fmt.Errorf("creating session: %w", err)
	}
	return nil
}

// finalizeSession persists the session outcome. It runs detached from the
// scan context so a cancelled ingestion still records its metadata.
func finalizeSession(ctx context.Context, sessions storage.SessionStore, sessionID string, meta *flight.Metadata, runErr error, logger *slog.Logger) {
	ctx = context.WithoutCancel(ctx)

	var err error
	if runErr != nil {
		err = sessions.FailSession(ctx, sessionID, runErr.Error(), meta)
	} else {
		err = sessions.CompleteSession(ctx, sessionID, meta)
	}
	if err != nil {
		logger.Error("finalizing session", slog.String("session", sessionID), slog.String("error", err.Error()))
	}
}
