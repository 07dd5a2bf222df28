package storage

import (
	"context"

	"github.com/roman-kulish/flight-log-analysis/internal/flight"
)

// TelemetryStore provides access to the analytical store holding routed
// channel records, one table per channel, rows scoped by session and
// indexed by (session, time).
//
// Batches are written atomically: a batch either lands as a whole or not at
// all. Nothing may assume FIFO delivery across batches — the concurrent
// coordinator writes batches from multiple workers in arbitrary order and
// all reads go through the (session, time) index.
type TelemetryStore interface {
	// StoreBatch writes one same-channel batch inside its own transaction.
	//
	// Parameters:
	//   - ctx: Context for cancellation and timeouts
	//   - batch: Records of a single channel, 0 < len <= batch size
	//
	// Returns error if the transaction fails; the batch is rolled back as
	// a unit.
	StoreBatch(ctx context.Context, batch flight.Batch) error

	// PositionTrack reads the session's position records ordered by
	// time_boot_ms, optionally filtered (WithTimeRange, WithFixOnly).
	PositionTrack(ctx context.Context, sessionID string, opts ...TrackOption) ([]TrackPoint, error)

	// Close releases the store handle. Indexes deferred during ingestion
	// are created here. Safe to call multiple times.
	Close() error
}

// SessionStore holds one row per ingested log: lifecycle status, summary
// metrics and the message-type inventory.
type SessionStore interface {
	// CreateSession inserts a new session row in the "processing" state.
	CreateSession(ctx context.Context, id, fileName string, fileSize int64) error

	// CompleteSession finalizes a session as "completed" with its metadata.
	CompleteSession(ctx context.Context, id string, meta *flight.Metadata) error

	// FailSession finalizes a session as "failed" with a human-readable
	// error and whatever metadata was gathered before the failure (may be
	// nil).
	FailSession(ctx context.Context, id string, errMsg string, meta *flight.Metadata) error

	// Session returns a session row by its identifier.
	Session(ctx context.Context, id string) (*SessionInfo, error)

	// Sessions returns all session rows ordered by creation time.
	Sessions(ctx context.Context) ([]*SessionInfo, error)

	// Close releases all database connections and resources. Safe to call
	// multiple times.
	Close() error
}
