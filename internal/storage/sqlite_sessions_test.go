package storage

import (
	"context"
	"path/filepath"
	"reflect"
	"testing"

	"github.com/roman-kulish/flight-log-analysis/internal/flight"
)

func newTestSessionStore(t *testing.T) *SqliteSessionStore {
	t.Helper()

	store := NewSqliteSessionStore(filepath.Join(t.TempDir(), "sessions.db"))
	t.Cleanup(func() {
		if err := store.Close(); err != nil {
			t.Errorf("Close() failed: %v", err)
		}
	})
	return store
}

func TestSqliteSessionStore_Lifecycle(t *testing.T) {
	ctx := context.Background()
	store := newTestSessionStore(t)

	if err := store.CreateSession(ctx, "s1", "flight.bin", 2048); err != nil {
		t.Fatalf("CreateSession() failed: %v", err)
	}

	sess, err := store.Session(ctx, "s1")
	if err != nil {
		t.Fatalf("Session() failed: %v", err)
	}
	if sess.Status != StatusProcessing {
		t.Errorf("Status = %q, want %q", sess.Status, StatusProcessing)
	}
	if sess.FileName != "flight.bin" {
		t.Errorf("FileName = %q, want flight.bin", sess.FileName)
	}
	if sess.FileSize != 2048 {
		t.Errorf("FileSize = %d, want 2048", sess.FileSize)
	}
	if sess.FinishedAt != nil {
		t.Error("FinishedAt should be nil while processing")
	}
	if sess.CreatedAt.IsZero() {
		t.Error("CreatedAt is zero")
	}

	duration := 312.5
	meta := &flight.Metadata{
		MessageCount:          12345,
		FlightDurationSeconds: &duration,
		VehicleType:           "Quadrotor",
		AutopilotVersion:      "4.3.6",
		FlightModes:           []string{"STABILIZE", "AUTO", "RTL"},
		MessageTypes:          map[string]int64{"GPS": 6000, "ATT": 6345},
	}
	if err = store.CompleteSession(ctx, "s1", meta); err != nil {
		t.Fatalf("CompleteSession() failed: %v", err)
	}

	sess, err = store.Session(ctx, "s1")
	if err != nil {
		t.Fatalf("Session() after completion failed: %v", err)
	}
	if sess.Status != StatusCompleted {
		t.Errorf("Status = %q, want %q", sess.Status, StatusCompleted)
	}
	if sess.Error != nil {
		t.Errorf("Error = %v, want nil", *sess.Error)
	}
	if sess.MessageCount != 12345 {
		t.Errorf("MessageCount = %d, want 12345", sess.MessageCount)
	}
	if sess.FlightDurationSeconds == nil || *sess.FlightDurationSeconds != 312.5 {
		t.Errorf("FlightDurationSeconds = %v, want 312.5", sess.FlightDurationSeconds)
	}
	if sess.VehicleType == nil || *sess.VehicleType != "Quadrotor" {
		t.Errorf("VehicleType = %v, want Quadrotor", sess.VehicleType)
	}
	if !reflect.DeepEqual(sess.FlightModes, meta.FlightModes) {
		t.Errorf("FlightModes = %v, want %v", sess.FlightModes, meta.FlightModes)
	}
	if !reflect.DeepEqual(sess.MessageTypes, meta.MessageTypes) {
		t.Errorf("MessageTypes = %v, want %v", sess.MessageTypes, meta.MessageTypes)
	}
	if sess.FinishedAt == nil {
		t.Error("FinishedAt should be set after completion")
	}
}

func TestSqliteSessionStore_FailSession(t *testing.T) {
	ctx := context.Background()
	store := newTestSessionStore(t)

	if err := store.CreateSession(ctx, "s1", "flight.tlog", 100); err != nil {
		t.Fatalf("CreateSession() failed: %v", err)
	}

	// Partial metadata gathered before the failure is still persisted
	meta := &flight.Metadata{
		MessageCount: 42,
		MessageTypes: map[string]int64{"HEARTBEAT": 42},
	}
	if err := store.FailSession(ctx, "s1", "scanning flight.tlog: too many consecutive decode errors", meta); err != nil {
		t.Fatalf("FailSession() failed: %v", err)
	}

	sess, err := store.Session(ctx, "s1")
	if err != nil {
		t.Fatalf("Session() failed: %v", err)
	}
	if sess.Status != StatusFailed {
		t.Errorf("Status = %q, want %q", sess.Status, StatusFailed)
	}
	if sess.Error == nil || *sess.Error == "" {
		t.Error("failed session has no error message")
	}
	if sess.MessageCount != 42 {
		t.Errorf("MessageCount = %d, want 42", sess.MessageCount)
	}
}

func TestSqliteSessionStore_FailSessionNilMetadata(t *testing.T) {
	ctx := context.Background()
	store := newTestSessionStore(t)

	if err := store.CreateSession(ctx, "s1", "flight.bin", 0); err != nil {
		t.Fatalf("CreateSession() failed: %v", err)
	}
	if err := store.FailSession(ctx, "s1", "no such file", nil); err != nil {
		t.Fatalf("FailSession() with nil metadata failed: %v", err)
	}

	sess, err := store.Session(ctx, "s1")
	if err != nil {
		t.Fatalf("Session() failed: %v", err)
	}
	if sess.Status != StatusFailed {
		t.Errorf("Status = %q, want %q", sess.Status, StatusFailed)
	}
	if sess.FlightModes != nil {
		t.Errorf("FlightModes = %v, want nil", sess.FlightModes)
	}
}

func TestSqliteSessionStore_Sessions(t *testing.T) {
	ctx := context.Background()
	store := newTestSessionStore(t)

	for _, id := range []string{"s1", "s2", "s3"} {
		if err := store.CreateSession(ctx, id, id+".bin", 1); err != nil {
			t.Fatalf("CreateSession(%s) failed: %v", id, err)
		}
	}

	sessions, err := store.Sessions(ctx)
	if err != nil {
		t.Fatalf("Sessions() failed: %v", err)
	}
	if len(sessions) != 3 {
		t.Fatalf("Sessions() returned %d rows, want 3", len(sessions))
	}
}

func TestSqliteSessionStore_CloseTwice(t *testing.T) {
	store := NewSqliteSessionStore(filepath.Join(t.TempDir(), "sessions.db"))
	if err := store.CreateSession(context.Background(), "s1", "f.bin", 1); err != nil {
		t.Fatalf("CreateSession() failed: %v", err)
	}

	if err := store.Close(); err != nil {
		t.Errorf("First Close() failed: %v", err)
	}
	if err := store.Close(); err != nil {
		t.Errorf("Second Close() failed: %v", err)
	}
}
