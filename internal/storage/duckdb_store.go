package storage

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"sync"

	_ "github.com/duckdb/duckdb-go/v2"

	"github.com/roman-kulish/flight-log-analysis/internal/flight"
)

// DuckDBStore is the analytical store backing the five channel tables.
// DuckDB is single-writer, so one lazily opened handle serves reads and
// writes; the concurrent pipeline funnels every write through its single
// writer goroutine.
type DuckDBStore struct {
	dbPath string

	db     *sql.DB
	dbOnce sync.Once
	dbErr  error

	closeOnce sync.Once
	closeErr  error
}

// NewDuckDBStore creates a store for the DuckDB database at dbPath. The
// database and its schema are created lazily on first use.
func NewDuckDBStore(dbPath string) *DuckDBStore {
	return &DuckDBStore{dbPath: dbPath}
}

func runSQLCommand(db *sql.DB, sql string) error {
	_, err := db.Exec(sql)
	return err
}

func (s *DuckDBStore) getDB() (*sql.DB, error) {
	s.dbOnce.Do(func() {
		db, err := sql.Open("duckdb", s.dbPath)
		if err != nil {
			s.dbErr = fmt.Errorf("opening database: %w", err)
			return
		}

		if err = runSQLCommand(db, initChannelSchemaSQL); err != nil {
			_ = db.Close()
			s.dbErr = fmt.Errorf("initializing schema: %w", err)
			return
		}

		s.db = db
	})

	return s.db, s.dbErr
}

// StoreBatch writes a same-channel batch as a single transaction with one
// multi-row parameterized INSERT.
func (s *DuckDBStore) StoreBatch(ctx context.Context, batch flight.Batch) (err error) {
	if len(batch.Records) == 0 {
		return
	}

	insert, ok := channelInserts[batch.Channel]
	if !ok {
		return fmt.Errorf("unknown channel %q", batch.Channel)
	}

	db, err := s.getDB()
	if err != nil {
		return fmt.Errorf("getting connection: %w", err)
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer rollbackWithError(tx, &err)

	values := make([]any, 0, len(batch.Records)*insert.columns)

	var sb strings.Builder
	sb.WriteString(insert.insertSQL)

	for i, rec := range batch.Records {
		row, err := recordValues(rec)
		if err != nil {
			return fmt.Errorf("converting record: %w", err)
		}
		values = append(values, row...)

		if i > 0 {
			sb.WriteString(", ")
		}
		sb.WriteString(insert.placeholder)
	}

	if _, err = tx.ExecContext(ctx, sb.String(), values...); err != nil {
		return fmt.Errorf("batch inserting %s records: %w", batch.Channel, err)
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}

	return nil
}

// Close creates the deferred (session, time) indexes and releases the
// database handle.
func (s *DuckDBStore) Close() error {
	s.closeOnce.Do(func() {
		if s.db != nil {
			_ = runSQLCommand(s.db, initChannelIndexesSQL)

			s.closeErr = s.db.Close()
			s.db = nil
		}
	})

	return s.closeErr
}
