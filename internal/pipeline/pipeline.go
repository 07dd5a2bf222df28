// Package pipeline implements the two ingestion coordinators: a synchronous
// single-pass scanner and a concurrent producer/worker/writer pipeline with
// bounded queues. Both produce identical per-channel row counts for the same
// input; only write ordering differs.
package pipeline

import (
	"context"
	"io"
	"log/slog"
	"runtime"
	"time"

	"github.com/roman-kulish/flight-log-analysis/internal/flight"
	"github.com/roman-kulish/flight-log-analysis/internal/mavlink"
)

const (
	defaultBatchSize = 1000

	// maxWorkers bounds the concurrent pipeline's routing fan-out; the
	// writer is the bottleneck well before four workers saturate.
	maxWorkers = 4

	defaultMessageQueueSize = 20000
	defaultBatchQueueSize   = 5000

	defaultWorkerJoinTimeout = 10 * time.Second
	defaultWriterJoinTimeout = 15 * time.Second
)

// Summary is the synchronous result handed back to the caller once an
// ingestion finishes, on success and on failure alike.
type Summary struct {
	// MessageCount counts decoded messages whose type tag is in the routed
	// vocabulary.
	MessageCount          int64
	FlightDurationSeconds *float64
	VehicleType           string
	AutopilotVersion      string
	FlightModes           []string

	// RecordsWritten is the number of rows committed to the analytical
	// store. Batches lost to rolled-back transactions are excluded.
	RecordsWritten int64

	// FailedBatches counts batches whose transaction was rolled back;
	// their records are not retried.
	FailedBatches int64

	// ConversionErrors counts fields nulled by failed type coercion.
	ConversionErrors int64

	// DroppedMessages counts messages outside the known vocabulary.
	DroppedMessages int64
}

type openFunc func(string) (mavlink.Decoder, error)

type options struct {
	batchSize         int
	workers           int
	messageQueueSize  int
	batchQueueSize    int
	workerJoinTimeout time.Duration
	writerJoinTimeout time.Duration

	open   openFunc
	logger *slog.Logger
}

func defaultOptions() options {
	return options{
		batchSize:         defaultBatchSize,
		workers:           min(runtime.GOMAXPROCS(0), maxWorkers),
		messageQueueSize:  defaultMessageQueueSize,
		batchQueueSize:    defaultBatchQueueSize,
		workerJoinTimeout: defaultWorkerJoinTimeout,
		writerJoinTimeout: defaultWriterJoinTimeout,
		open:              mavlink.Open,
		logger:            discardLogger(),
	}
}

// Option configures a coordinator. Options not applicable to the
// single-pass coordinator (workers, queue sizes, join timeouts) are ignored
// by it.
type Option func(*options)

// WithBatchSize sets the number of same-channel records flushed per store
// transaction.
func WithBatchSize(size int) Option {
	return func(o *options) {
		if size > 0 {
			o.batchSize = size
		}
	}
}

// WithWorkers sets the number of routing workers in the concurrent
// coordinator.
func WithWorkers(n int) Option {
	return func(o *options) {
		if n > 0 {
			o.workers = n
		}
	}
}

// WithQueueSizes sets the capacities of the message and batch queues.
func WithQueueSizes(messages, batches int) Option {
	return func(o *options) {
		if messages > 0 {
			o.messageQueueSize = messages
		}
		if batches > 0 {
			o.batchQueueSize = batches
		}
	}
}

// WithJoinTimeouts bounds how long the concurrent coordinator waits for
// workers and for the writer during shutdown.
func WithJoinTimeouts(workers, writer time.Duration) Option {
	return func(o *options) {
		if workers > 0 {
			o.workerJoinTimeout = workers
		}
		if writer > 0 {
			o.writerJoinTimeout = writer
		}
	}
}

// WithLogger sets the logger for the coordinator.
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}

// WithOpen overrides how the coordinator opens a log file for decoding.
func WithOpen(open openFunc) Option {
	return func(o *options) {
		o.open = open
	}
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil)) // nil logger
}

func summaryFromMetadata(meta *flight.Metadata) *Summary {
	return &Summary{
		MessageCount:          meta.MessageCount,
		FlightDurationSeconds: meta.FlightDurationSeconds,
		VehicleType:           meta.VehicleType,
		AutopilotVersion:      meta.AutopilotVersion,
		FlightModes:           meta.FlightModes,
	}
}

// drainDecoder consumes a decoder until exhaustion, feeding each message to
// emit. It returns nil at clean end of stream.
func drainDecoder(ctx context.Context, dec mavlink.Decoder, emit func(*mavlink.Message) error) error {
	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		msg, err := dec.Next()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return err
		}

		if err = emit(msg); err != nil {
			return err
		}
	}
}
