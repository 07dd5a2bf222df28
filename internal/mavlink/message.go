package mavlink

import (
	"time"
)

// Message is a single decoded telemetry record. It is produced once per
// frame by a Decoder and consumed immediately by the router; it is not
// retained by the decode pipeline.
type Message struct {
	// Type is the message type tag, e.g. "GPS", "ATT" for DataFlash logs
	// or "GLOBAL_POSITION_INT", "HEARTBEAT" for MAVLink telemetry logs.
	Type string

	// TimeBootMS is the device-relative timestamp in milliseconds since
	// boot. Fractional precision from microsecond sources is preserved.
	TimeBootMS float64

	// TimestampUTC is the absolute wall-clock time of the message when the
	// container records one (tlog frame prefix), nil otherwise.
	TimestampUTC *time.Time

	// Fields maps the source field names to decoded scalar values.
	Fields map[string]any
}

// Field returns the first present value among the given field names.
// Name order matters: legacy aliases for the same logical field must be
// probed in a fixed declared order so that routing is deterministic.
func (m *Message) Field(names ...string) (any, bool) {
	for _, name := range names {
		if v, ok := m.Fields[name]; ok {
			return v, true
		}
	}
	return nil, false
}
