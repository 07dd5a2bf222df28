package flight

import (
	"github.com/roman-kulish/flight-log-analysis/internal/mavlink"
)

// Accumulator groups routed records into per-channel pending lists so that
// store writes happen in amortized batches. It is not safe for concurrent
// use; each pipeline worker owns its own accumulator.
type Accumulator struct {
	sessionID string

	pending   map[Channel][]Record
	convErrs  map[Channel]int
	routed    int64
	dropped   int64
	fieldErrs int64
}

// NewAccumulator creates an accumulator stamping every routed record with
// the given session identifier.
func NewAccumulator(sessionID string) *Accumulator {
	return &Accumulator{
		sessionID: sessionID,
		pending:   make(map[Channel][]Record, len(Channels())),
		convErrs:  make(map[Channel]int, len(Channels())),
	}
}

// RouteAndAdd classifies a raw message and appends the resulting record to
// its channel's pending list. Messages outside the known vocabulary are
// dropped and reported as false.
func (a *Accumulator) RouteAndAdd(msg *mavlink.Message) bool {
	rec, errs, ok := Route(a.sessionID, msg)
	if !ok {
		a.dropped++
		return false
	}

	ch := rec.Channel()
	a.pending[ch] = append(a.pending[ch], rec)
	a.convErrs[ch] += errs
	a.routed++
	a.fieldErrs += int64(errs)
	return true
}

// Pending returns the total number of records accumulated and not yet
// drained, across all channels.
func (a *Accumulator) Pending() int {
	var n int
	for _, records := range a.pending {
		n += len(records)
	}
	return n
}

// Routed returns the number of messages routed since creation.
func (a *Accumulator) Routed() int64 { return a.routed }

// Dropped returns the number of unknown-type messages dropped since creation.
func (a *Accumulator) Dropped() int64 { return a.dropped }

// FieldErrors returns the number of fields nulled by conversion failures
// since creation.
func (a *Accumulator) FieldErrors() int64 { return a.fieldErrs }

// DrainFull returns and clears every channel list that has reached
// batchSize. Returned batches are owned by the caller.
func (a *Accumulator) DrainFull(batchSize int) []Batch {
	var batches []Batch
	for _, ch := range Channels() {
		if len(a.pending[ch]) >= batchSize {
			batches = append(batches, a.drain(ch))
		}
	}
	return batches
}

// DrainAll returns and clears every non-empty channel list regardless of
// size. After DrainAll all five channel lists are empty.
func (a *Accumulator) DrainAll() []Batch {
	var batches []Batch
	for _, ch := range Channels() {
		if len(a.pending[ch]) > 0 {
			batches = append(batches, a.drain(ch))
		}
	}
	return batches
}

func (a *Accumulator) drain(ch Channel) Batch {
	b := Batch{
		Channel:          ch,
		Records:          a.pending[ch],
		ConversionErrors: a.convErrs[ch],
	}
	a.pending[ch] = nil
	a.convErrs[ch] = 0
	return b
}
