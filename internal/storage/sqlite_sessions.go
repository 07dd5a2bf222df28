package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	_ "github.com/mattn/go-sqlite3"

	"github.com/roman-kulish/flight-log-analysis/internal/flight"
)

// SqliteSessionStore holds one row per ingested log in a SQLite database.
type SqliteSessionStore struct {
	dbPath string

	writeDB     *sql.DB
	writeDBOnce sync.Once
	writeDBErr  error

	readDB     *sql.DB
	readDBOnce sync.Once
	readDBErr  error

	closeOnce sync.Once
	closeErr  error
}

// NewSqliteSessionStore creates a session metadata store backed by the
// SQLite database at dbPath. The schema is initialized lazily on first
// write.
func NewSqliteSessionStore(dbPath string) *SqliteSessionStore {
	return &SqliteSessionStore{dbPath: dbPath}
}

func (s *SqliteSessionStore) getWriteDB() (*sql.DB, error) {
	s.writeDBOnce.Do(func() {
		db, err := sql.Open("sqlite3", fmt.Sprintf("file:%s?%s", s.dbPath, "_journal_mode=WAL&_synchronous=NORMAL"))
		if err != nil {
			s.writeDBErr = fmt.Errorf("opening write connection: %w", err)
			return
		}

		if err = runSQLCommand(db, initSessionSchemaSQL); err != nil {
			_ = db.Close()
			s.writeDBErr = fmt.Errorf("initializing schema: %w", err)
			return
		}

		s.writeDB = db
	})

	return s.writeDB, s.writeDBErr
}

func (s *SqliteSessionStore) getReadDB() (*sql.DB, error) {
	s.readDBOnce.Do(func() {
		db, err := sql.Open("sqlite3", fmt.Sprintf("file:%s?%s", s.dbPath, "mode=ro"))
		if err != nil {
			s.readDBErr = fmt.Errorf("opening read connection: %w", err)
			return
		}
		s.readDB = db
	})

	return s.readDB, s.readDBErr
}

func (s *SqliteSessionStore) CreateSession(ctx context.Context, id, fileName string, fileSize int64) (err error) {
	db, err := s.getWriteDB()
	if err != nil {
		return fmt.Errorf("getting write connection: %w", err)
	}

	stmt, err := db.PrepareContext(ctx, insertSessionSQL)
	if err != nil {
		return fmt.Errorf("preparing statement: %w", err)
	}
	defer closeWithError(stmt, &err)

	if _, err = stmt.ExecContext(ctx, id, fileName, fileSize, string(StatusProcessing)); err != nil {
		return fmt.Errorf("inserting session: %w", err)
	}
	return
}

func (s *SqliteSessionStore) CompleteSession(ctx context.Context, id string, meta *flight.Metadata) error {
	return s.finalize(ctx, id, StatusCompleted, nil, meta)
}

func (s *SqliteSessionStore) FailSession(ctx context.Context, id string, errMsg string, meta *flight.Metadata) error {
	return s.finalize(ctx, id, StatusFailed, &errMsg, meta)
}

func (s *SqliteSessionStore) finalize(ctx context.Context, id string, status SessionStatus, errMsg *string, meta *flight.Metadata) (err error) {
	db, err := s.getWriteDB()
	if err != nil {
		return fmt.Errorf("getting write connection: %w", err)
	}

	var messageCount int64
	var duration sql.NullFloat64
	var vehicleType, autopilotVersion, flightModes, messageTypes sql.NullString

	if meta != nil {
		messageCount = meta.MessageCount
		duration = toNullFloat(meta.FlightDurationSeconds)

		if meta.VehicleType != "" {
			vehicleType = sql.NullString{String: meta.VehicleType, Valid: true}
		}
		if meta.AutopilotVersion != "" {
			autopilotVersion = sql.NullString{String: meta.AutopilotVersion, Valid: true}
		}

		var p string
		if p, err = marshalJSONColumn(meta.FlightModes); err != nil {
			return err
		}
		flightModes = sql.NullString{String: p, Valid: true}

		if p, err = marshalJSONColumn(meta.MessageTypes); err != nil {
			return err
		}
		messageTypes = sql.NullString{String: p, Valid: true}
	}

	stmt, err := db.PrepareContext(ctx, finalizeSessionSQL)
	if err != nil {
		return fmt.Errorf("preparing statement: %w", err)
	}
	defer closeWithError(stmt, &err)

	if _, err = stmt.ExecContext(
		ctx,
		string(status),
		toNullString(errMsg),
		messageCount,
		duration,
		vehicleType,
		autopilotVersion,
		flightModes,
		messageTypes,
		id,
	); err != nil {
		return fmt.Errorf("finalizing session: %w", err)
	}
	return
}

func (s *SqliteSessionStore) Session(ctx context.Context, id string) (session *SessionInfo, err error) {
	db, err := s.getReadDB()
	if err != nil {
		err = fmt.Errorf("getting read connection: %w", err)
		return
	}

	stmt, err := db.PrepareContext(ctx, selectSessionSQL)
	if err != nil {
		err = fmt.Errorf("preparing statement: %w", err)
		return
	}
	defer closeWithError(stmt, &err)

	session, err = scanSession(stmt.QueryRowContext(ctx, id))
	return
}

func (s *SqliteSessionStore) Sessions(ctx context.Context) (sessions []*SessionInfo, err error) {
	db, err := s.getReadDB()
	if err != nil {
		err = fmt.Errorf("getting read connection: %w", err)
		return
	}

	rows, err := db.QueryContext(ctx, selectSessionsSQL)
	if err != nil {
		err = fmt.Errorf("querying sessions: %w", err)
		return
	}
	defer closeWithError(rows, &err)

	for rows.Next() {
		var sess *SessionInfo
		if sess, err = scanSession(rows); err != nil {
			return
		}
		sessions = append(sessions, sess)
	}
	err = rows.Err()
	return
}

func scanSession(row interface{ Scan(...any) error }) (*SessionInfo, error) {
	var sess SessionInfo
	var status string
	var errMsg, vehicleType, autopilotVersion, flightModes, messageTypes sql.NullString
	var duration sql.NullFloat64
	var finishedAt sql.NullTime

	if err := row.Scan(
		&sess.ID,
		&sess.FileName,
		&sess.FileSize,
		&status,
		&errMsg,
		&sess.MessageCount,
		&duration,
		&vehicleType,
		&autopilotVersion,
		&flightModes,
		&messageTypes,
		&sess.CreatedAt,
		&finishedAt,
	); err != nil {
		return nil, fmt.Errorf("scanning session: %w", err)
	}

	sess.Status = SessionStatus(status)
	sess.FlightDurationSeconds = fromNullFloat(duration)
	sess.FinishedAt = fromNullTime(finishedAt)
	if errMsg.Valid {
		sess.Error = &errMsg.String
	}
	if vehicleType.Valid {
		sess.VehicleType = &vehicleType.String
	}
	if autopilotVersion.Valid {
		sess.AutopilotVersion = &autopilotVersion.String
	}
	if flightModes.Valid {
		if err := json.Unmarshal([]byte(flightModes.String), &sess.FlightModes); err != nil {
			return nil, fmt.Errorf("unmarshaling flight modes: %w", err)
		}
	}
	if messageTypes.Valid {
		if err := json.Unmarshal([]byte(messageTypes.String), &sess.MessageTypes); err != nil {
			return nil, fmt.Errorf("unmarshaling message types: %w", err)
		}
	}

	return &sess, nil
}

// Close releases the database connections.
func (s *SqliteSessionStore) Close() error {
	s.closeOnce.Do(func() {
		var writeErr, readErr error

		if s.writeDB != nil {
			writeErr = s.writeDB.Close()
			s.writeDB = nil
		}

		if s.readDB != nil {
			readErr = s.readDB.Close()
			s.readDB = nil
		}

		switch {
		case writeErr != nil && readErr != nil:
			s.closeErr = errors.Join(writeErr, readErr)
		case writeErr != nil:
			s.closeErr = writeErr
		case readErr != nil:
			s.closeErr = readErr
		}
	})

	return s.closeErr
}
