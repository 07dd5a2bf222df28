package pipeline

import (
	"context"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/roman-kulish/flight-log-analysis/internal/flight"
	"github.com/roman-kulish/flight-log-analysis/internal/mavlink"
	"github.com/roman-kulish/flight-log-analysis/internal/storage"
)

// fakeDecoder replays a fixed message sequence, optionally failing after it
type fakeDecoder struct {
	messages []*mavlink.Message
	failWith error
	pos      int
	closed   bool
}

func (d *fakeDecoder) Next() (*mavlink.Message, error) {
	if d.pos >= len(d.messages) {
		if d.failWith != nil {
			return nil, d.failWith
		}
		return nil, io.EOF
	}
	msg := d.messages[d.pos]
	d.pos++
	return msg, nil
}

func (d *fakeDecoder) Close() error {
	d.closed = true
	return nil
}

func fakeOpen(d *fakeDecoder) openFunc {
	return func(string) (mavlink.Decoder, error) { return d, nil }
}

// fakeStore records batches; failChannel makes one channel's writes fail
type fakeStore struct {
	mu          sync.Mutex
	batches     []flight.Batch
	failChannel flight.Channel
}

func (s *fakeStore) StoreBatch(_ context.Context, batch flight.Batch) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.failChannel != "" && batch.Channel == s.failChannel {
		return errors.New("disk on fire")
	}
	s.batches = append(s.batches, batch)
	return nil
}

func (s *fakeStore) PositionTrack(context.Context, string, ...storage.TrackOption) ([]storage.TrackPoint, error) {
	return nil, nil
}

func (s *fakeStore) Close() error { return nil }

func (s *fakeStore) recordCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	var n int
	for _, b := range s.batches {
		n += len(b.Records)
	}
	return n
}

// fakeSessions tracks lifecycle transitions of a single session
type fakeSessions struct {
	mu      sync.Mutex
	created bool
	status  storage.SessionStatus
	meta    *flight.Metadata
	errMsg  string
}

func (s *fakeSessions) CreateSession(context.Context, string, string, int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.created = true
	s.status = storage.StatusProcessing
	return nil
}

func (s *fakeSessions) CompleteSession(_ context.Context, _ string, meta *flight.Metadata) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.status = storage.StatusCompleted
	s.meta = meta
	return nil
}

func (s *fakeSessions) FailSession(_ context.Context, _ string, errMsg string, meta *flight.Metadata) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.status = storage.StatusFailed
	s.meta = meta
	s.errMsg = errMsg
	return nil
}

func (s *fakeSessions) Session(context.Context, string) (*storage.SessionInfo, error) {
	return nil, nil
}

func (s *fakeSessions) Sessions(context.Context) ([]*storage.SessionInfo, error) {
	return nil, nil
}

func (s *fakeSessions) Close() error { return nil }

func testMessages() []*mavlink.Message {
	msgs := []*mavlink.Message{
		{Type: "XKQ1", TimeBootMS: 500, Fields: map[string]any{}}, // unknown, dropped
	}
	for i := 0; i < 5; i++ {
		msgs = append(msgs, &mavlink.Message{
			Type:       "GLOBAL_POSITION_INT",
			TimeBootMS: float64(1000 + i*1000),
			Fields: map[string]any{
				"lat": int64(-353632610 + i),
				"lon": int64(1491652300),
			},
		})
	}
	for i := 0; i < 3; i++ {
		msgs = append(msgs, &mavlink.Message{
			Type:       "ATTITUDE",
			TimeBootMS: float64(1500 + i*1000),
			Fields:     map[string]any{"roll": 0.1, "pitch": 0.2},
		})
	}
	return msgs
}

func TestSinglePass_Run(t *testing.T) {
	store := &fakeStore{}
	sessions := &fakeSessions{}
	dec := &fakeDecoder{messages: testMessages()}

	p := NewSinglePass(store, sessions,
		WithBatchSize(2),
		WithOpen(fakeOpen(dec)))

	summary, err := p.Run(context.Background(), "s1", "flight.bin")
	if err != nil {
		t.Fatalf("Run() failed: %v", err)
	}

	if summary.MessageCount != 8 {
		t.Errorf("MessageCount = %d, want 8", summary.MessageCount)
	}
	if summary.RecordsWritten != 8 {
		t.Errorf("RecordsWritten = %d, want 8", summary.RecordsWritten)
	}
	if summary.DroppedMessages != 1 {
		t.Errorf("DroppedMessages = %d, want 1", summary.DroppedMessages)
	}
	if summary.FailedBatches != 0 {
		t.Errorf("FailedBatches = %d, want 0", summary.FailedBatches)
	}
	if summary.FlightDurationSeconds == nil || *summary.FlightDurationSeconds != 4 {
		t.Errorf("FlightDurationSeconds = %v, want 4", summary.FlightDurationSeconds)
	}

	if !dec.closed {
		t.Error("decoder was not closed")
	}
	if sessions.status != storage.StatusCompleted {
		t.Errorf("session status = %q, want completed", sessions.status)
	}

	for _, b := range store.batches {
		if len(b.Records) == 0 || len(b.Records) > 2 {
			t.Errorf("batch size = %d, want 0 < size <= 2", len(b.Records))
		}
		for _, rec := range b.Records {
			if rec.Channel() != b.Channel {
				t.Errorf("record channel %q in %q batch", rec.Channel(), b.Channel)
			}
		}
	}
}

func TestSinglePass_DecoderFailure(t *testing.T) {
	store := &fakeStore{}
	sessions := &fakeSessions{}
	dec := &fakeDecoder{
		messages: testMessages(),
		failWith: errors.New("corrupt frame"),
	}

	p := NewSinglePass(store, sessions,
		WithBatchSize(100),
		WithOpen(fakeOpen(dec)))

	summary, err := p.Run(context.Background(), "s1", "flight.bin")
	if err == nil {
		t.Fatal("Run() succeeded on a failing decoder")
	}

	// Everything accumulated before the failure is still flushed
	if summary.RecordsWritten != 8 {
		t.Errorf("RecordsWritten = %d, want 8", summary.RecordsWritten)
	}
	if sessions.status != storage.StatusFailed {
		t.Errorf("session status = %q, want failed", sessions.status)
	}
	if sessions.errMsg == "" {
		t.Error("failed session has no error message")
	}
	if sessions.meta == nil || sessions.meta.MessageCount != 8 {
		t.Error("failed session lost its partial metadata")
	}
}

func TestSinglePass_WriteFailureContinues(t *testing.T) {
	store := &fakeStore{failChannel: flight.ChannelAttitude}
	sessions := &fakeSessions{}
	dec := &fakeDecoder{messages: testMessages()}

	p := NewSinglePass(store, sessions,
		WithBatchSize(100),
		WithOpen(fakeOpen(dec)))

	summary, err := p.Run(context.Background(), "s1", "flight.bin")
	if err != nil {
		t.Fatalf("Run() failed: %v", err)
	}

	if summary.FailedBatches != 1 {
		t.Errorf("FailedBatches = %d, want 1", summary.FailedBatches)
	}
	if summary.RecordsWritten != 5 {
		t.Errorf("RecordsWritten = %d, want 5 (positions only)", summary.RecordsWritten)
	}
	if sessions.status != storage.StatusCompleted {
		t.Errorf("session status = %q, want completed", sessions.status)
	}
}

func TestConcurrent_Run(t *testing.T) {
	store := &fakeStore{}
	sessions := &fakeSessions{}
	dec := &fakeDecoder{messages: testMessages()}

	p := NewConcurrent(store, sessions,
		WithBatchSize(2),
		WithWorkers(3),
		WithOpen(fakeOpen(dec)))

	summary, err := p.Run(context.Background(), "s1", "flight.bin")
	if err != nil {
		t.Fatalf("Run() failed: %v", err)
	}

	if summary.MessageCount != 8 {
		t.Errorf("MessageCount = %d, want 8", summary.MessageCount)
	}
	if summary.RecordsWritten != 8 {
		t.Errorf("RecordsWritten = %d, want 8", summary.RecordsWritten)
	}
	if summary.DroppedMessages != 1 {
		t.Errorf("DroppedMessages = %d, want 1", summary.DroppedMessages)
	}
	if store.recordCount() != 8 {
		t.Errorf("store received %d records, want 8", store.recordCount())
	}
	if sessions.status != storage.StatusCompleted {
		t.Errorf("session status = %q, want completed", sessions.status)
	}

	for _, b := range store.batches {
		if len(b.Records) == 0 || len(b.Records) > 2 {
			t.Errorf("batch size = %d, want 0 < size <= 2", len(b.Records))
		}
	}
}

func TestConcurrent_MatchesSinglePass(t *testing.T) {
	single := &fakeStore{}
	p1 := NewSinglePass(single, &fakeSessions{},
		WithBatchSize(3),
		WithOpen(fakeOpen(&fakeDecoder{messages: testMessages()})))

	s1, err := p1.Run(context.Background(), "s1", "flight.bin")
	if err != nil {
		t.Fatalf("single-pass Run() failed: %v", err)
	}

	concurrent := &fakeStore{}
	p2 := NewConcurrent(concurrent, &fakeSessions{},
		WithBatchSize(3),
		WithWorkers(4),
		WithOpen(fakeOpen(&fakeDecoder{messages: testMessages()})))

	s2, err := p2.Run(context.Background(), "s2", "flight.bin")
	if err != nil {
		t.Fatalf("concurrent Run() failed: %v", err)
	}

	// Batch boundaries and write order may differ, totals may not
	if s1.MessageCount != s2.MessageCount {
		t.Errorf("MessageCount: single=%d concurrent=%d", s1.MessageCount, s2.MessageCount)
	}
	if s1.RecordsWritten != s2.RecordsWritten {
		t.Errorf("RecordsWritten: single=%d concurrent=%d", s1.RecordsWritten, s2.RecordsWritten)
	}
	if s1.DroppedMessages != s2.DroppedMessages {
		t.Errorf("DroppedMessages: single=%d concurrent=%d", s1.DroppedMessages, s2.DroppedMessages)
	}
	if single.recordCount() != concurrent.recordCount() {
		t.Errorf("stored records: single=%d concurrent=%d", single.recordCount(), concurrent.recordCount())
	}
}

func TestConcurrent_DecoderFailure(t *testing.T) {
	store := &fakeStore{}
	sessions := &fakeSessions{}
	dec := &fakeDecoder{
		messages: testMessages(),
		failWith: errors.New("corrupt frame"),
	}

	p := NewConcurrent(store, sessions,
		WithBatchSize(100),
		WithWorkers(2),
		WithOpen(fakeOpen(dec)))

	summary, err := p.Run(context.Background(), "s1", "flight.bin")
	if err == nil {
		t.Fatal("Run() succeeded on a failing decoder")
	}

	if summary.RecordsWritten != 8 {
		t.Errorf("RecordsWritten = %d, want 8", summary.RecordsWritten)
	}
	if sessions.status != storage.StatusFailed {
		t.Errorf("session status = %q, want failed", sessions.status)
	}
}

// blockingStore stalls every write until the context is cancelled
type blockingStore struct {
	fakeStore
}

func (s *blockingStore) StoreBatch(ctx context.Context, _ flight.Batch) error {
	<-ctx.Done()
	return ctx.Err()
}

func TestConcurrent_ShutdownBoundedBySlowWriter(t *testing.T) {
	sessions := &fakeSessions{}
	dec := &fakeDecoder{messages: testMessages()}

	p := NewConcurrent(&blockingStore{}, sessions,
		WithBatchSize(2),
		WithWorkers(2),
		WithJoinTimeouts(100*time.Millisecond, 100*time.Millisecond),
		WithOpen(fakeOpen(dec)))

	started := time.Now()
	summary, err := p.Run(context.Background(), "s1", "flight.bin")
	if err != nil {
		t.Fatalf("Run() failed: %v", err)
	}

	// Join timeouts must bound the shutdown despite a wedged writer
	if elapsed := time.Since(started); elapsed > 5*time.Second {
		t.Errorf("Run() took %v, want bounded shutdown", elapsed)
	}
	if summary.RecordsWritten != 0 {
		t.Errorf("RecordsWritten = %d, want 0", summary.RecordsWritten)
	}
	if summary.FailedBatches == 0 {
		t.Error("FailedBatches = 0, want at least one rolled-back batch")
	}
	if sessions.status != storage.StatusCompleted {
		t.Errorf("session status = %q, want completed (decode itself succeeded)", sessions.status)
	}
}

func TestOpenFailureFailsSession(t *testing.T) {
	sessions := &fakeSessions{}
	p := NewSinglePass(&fakeStore{}, sessions,
		WithOpen(func(string) (mavlink.Decoder, error) {
			return nil, errors.New("no such file")
		}))

	if _, err := p.Run(context.Background(), "s1", "flight.bin"); err == nil {
		t.Fatal("Run() succeeded with a failing open")
	}
	if !sessions.created {
		t.Error("session row was never created")
	}
	if sessions.status != storage.StatusFailed {
		t.Errorf("session status = %q, want failed", sessions.status)
	}
}
