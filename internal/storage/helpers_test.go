package storage

import (
	"database/sql"
	"errors"
	"testing"
	"time"
)

func TestNullConversionRoundTrip(t *testing.T) {
	f := 1.5
	if got := fromNullFloat(toNullFloat(&f)); got == nil || *got != 1.5 {
		t.Errorf("float round trip = %v, want 1.5", got)
	}
	if got := fromNullFloat(toNullFloat(nil)); got != nil {
		t.Errorf("nil float round trip = %v, want nil", *got)
	}

	loc := time.FixedZone("AEST", 10*3600)
	ts := time.Date(2024, 6, 1, 12, 0, 0, 0, loc)
	got := fromNullTime(toNullTime(&ts))
	if got == nil || !got.Equal(ts) {
		t.Errorf("time round trip = %v, want %v", got, ts)
	}
	if got.Location() != time.UTC {
		t.Errorf("stored time location = %v, want UTC", got.Location())
	}
}

type fakeTx struct{ err error }

func (tx fakeTx) Rollback() error { return tx.err }

func TestRollbackWithError(t *testing.T) {
	// ErrTxDone means the transaction committed; not an error
	var err error
	rollbackWithError(fakeTx{err: sql.ErrTxDone}, &err)
	if err != nil {
		t.Errorf("rollbackWithError(ErrTxDone) set err = %v", err)
	}

	rollbackErr := errors.New("rollback failed")
	rollbackWithError(fakeTx{err: rollbackErr}, &err)
	if err != rollbackErr {
		t.Errorf("err = %v, want %v", err, rollbackErr)
	}

	// An earlier error is never overwritten
	first := errors.New("first")
	err = first
	rollbackWithError(fakeTx{err: rollbackErr}, &err)
	if err != first {
		t.Errorf("err = %v, want the original %v", err, first)
	}
}
