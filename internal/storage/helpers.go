package storage

import (
	"database/sql"
	"time"
)

func closeWithError(cl interface{ Close() error }, err *error) {
	if cErr := cl.Close(); cErr != nil && *err == nil {
		*err = cErr
	}
}

func rollbackWithError(rb interface{ Rollback() error }, err *error) {
	if cErr := rb.Rollback(); cErr != nil && *err == nil && cErr != sql.ErrTxDone {
		*err = cErr
	}
}

func deref[T any](p *T) T {
	if p == nil {
		var zero T
		return zero
	}
	return *p
}

func toNullFloat(p *float64) sql.NullFloat64 {
	return sql.NullFloat64{Float64: deref(p), Valid: p != nil}
}

func toNullInt(p *int64) sql.NullInt64 {
	return sql.NullInt64{Int64: deref(p), Valid: p != nil}
}

func toNullString(p *string) sql.NullString {
	return sql.NullString{String: deref(p), Valid: p != nil}
}

func toNullBool(p *bool) sql.NullBool {
	return sql.NullBool{Bool: deref(p), Valid: p != nil}
}

func toNullTime(p *time.Time) sql.NullTime {
	return sql.NullTime{Time: deref(p).UTC(), Valid: p != nil}
}

func fromNullFloat(n sql.NullFloat64) *float64 {
	if !n.Valid {
		return nil
	}
	return &n.Float64
}

func fromNullTime(n sql.NullTime) *time.Time {
	if !n.Valid {
		return nil
	}
	t := n.Time.UTC()
	return &t
}
