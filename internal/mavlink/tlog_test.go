package mavlink

import (
	"encoding/binary"
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/bluenviron/gomavlib/v3/pkg/dialects/ardupilotmega"
)

func TestFlatten_GlobalPositionInt(t *testing.T) {
	d := &telemetryLogDecoder{}

	msg := d.flatten(&ardupilotmega.MessageGlobalPositionInt{
		TimeBootMs:  123456,
		Lat:         -353632610,
		Lon:         1491652300,
		Alt:         120500,
		RelativeAlt: 45200,
		Vx:          120,
		Vy:          -30,
		Vz:          5,
		Hdg:         9000,
	})

	if msg.Type != "GLOBAL_POSITION_INT" {
		t.Errorf("Type = %q, want GLOBAL_POSITION_INT", msg.Type)
	}
	if msg.TimeBootMS != 123456 {
		t.Errorf("TimeBootMS = %v, want 123456", msg.TimeBootMS)
	}
	if got := msg.Fields["lat"]; got != int64(-353632610) {
		t.Errorf("lat = %v, want -353632610", got)
	}
	if got := msg.Fields["hdg"]; got != int64(9000) {
		t.Errorf("hdg = %v, want 9000", got)
	}
}

func TestFlatten_TimeCarriedToTimelessMessages(t *testing.T) {
	d := &telemetryLogDecoder{}

	// GPS_RAW_INT carries microseconds; STATUSTEXT has no clock of its own
	// and inherits the last seen boot time.
	gps := d.flatten(&ardupilotmega.MessageGpsRawInt{TimeUsec: 1234567})
	if gps.TimeBootMS != 1234.567 {
		t.Fatalf("GPS TimeBootMS = %v, want 1234.567", gps.TimeBootMS)
	}

	text := d.flatten(&ardupilotmega.MessageStatustext{
		Severity: ardupilotmega.MAV_SEVERITY_INFO,
		Text:     "ArduCopter V4.3.6 (a1b2c3d4)",
	})
	if text.TimeBootMS != 1234.567 {
		t.Errorf("STATUSTEXT TimeBootMS = %v, want 1234.567", text.TimeBootMS)
	}
	if got := text.Fields["text"]; got != "ArduCopter V4.3.6 (a1b2c3d4)" {
		t.Errorf("text = %v", got)
	}
}

func TestFlatten_Heartbeat(t *testing.T) {
	d := &telemetryLogDecoder{}

	msg := d.flatten(&ardupilotmega.MessageHeartbeat{
		Type:       ardupilotmega.MAV_TYPE_QUADROTOR,
		Autopilot:  ardupilotmega.MAV_AUTOPILOT_ARDUPILOTMEGA,
		BaseMode:   ardupilotmega.MAV_MODE_FLAG_SAFETY_ARMED | ardupilotmega.MAV_MODE_FLAG_CUSTOM_MODE_ENABLED,
		CustomMode: 5, // LOITER
	})

	if msg.Type != "HEARTBEAT" {
		t.Fatalf("Type = %q, want HEARTBEAT", msg.Type)
	}
	if got := msg.Fields["type"]; got != int64(2) {
		t.Errorf("type = %v, want 2", got)
	}
	if got := msg.Fields["custom_mode"]; got != int64(5) {
		t.Errorf("custom_mode = %v, want 5", got)
	}
}

func TestFlatten_GroundStationHeartbeatIsUnknown(t *testing.T) {
	d := &telemetryLogDecoder{}

	msg := d.flatten(&ardupilotmega.MessageHeartbeat{
		Type:      ardupilotmega.MAV_TYPE_GCS,
		Autopilot: ardupilotmega.MAV_AUTOPILOT_INVALID,
	})

	if msg.Type != "UNKNOWN_0" {
		t.Errorf("Type = %q, want UNKNOWN_0", msg.Type)
	}
}

func TestFlatten_UnknownMessageKeepsID(t *testing.T) {
	d := &telemetryLogDecoder{}

	msg := d.flatten(&ardupilotmega.MessageParamValue{})
	if msg.Type != "UNKNOWN_22" {
		t.Errorf("Type = %q, want UNKNOWN_22", msg.Type)
	}
	if msg.Fields == nil {
		t.Error("Fields should never be nil")
	}
}

// x25 is the CRC-16/MCRF4XX checksum MAVLink frames carry.
func x25(data []byte) uint16 {
	crc := uint16(0xffff)
	for _, b := range data {
		tmp := b ^ byte(crc)
		tmp ^= tmp << 4
		crc = (crc >> 8) ^ (uint16(tmp) << 8) ^ (uint16(tmp) << 3) ^ (uint16(tmp) >> 4)
	}
	return crc
}

// v1Frame assembles a MAVLink v1 frame; the checksum covers everything
// after the magic byte plus the message's CRC extra.
func v1Frame(seq, msgID byte, payload []byte, crcExtra byte) []byte {
	buf := []byte{mavlinkMagicV1, byte(len(payload)), seq, 1, 1, msgID}
	buf = append(buf, payload...)
	crc := x25(append(append([]byte{}, buf[1:]...), crcExtra))
	return binary.LittleEndian.AppendUint16(buf, crc)
}

func TestTelemetryLogDecoder_Decode(t *testing.T) {
	// HEARTBEAT (msgid 0, CRC extra 50): custom_mode then five bytes
	payload := make([]byte, 9)
	binary.LittleEndian.PutUint32(payload, 5) // custom_mode LOITER
	payload[4] = 2                            // MAV_TYPE_QUADROTOR
	payload[5] = 3                            // MAV_AUTOPILOT_ARDUPILOTMEGA
	payload[6] = 81                           // base_mode
	payload[7] = 4                            // MAV_STATE_ACTIVE
	payload[8] = 3

	stamp := time.Date(2023, 6, 1, 10, 30, 0, 0, time.UTC)
	var rec []byte
	rec = binary.BigEndian.AppendUint64(rec, uint64(stamp.UnixMicro()))
	rec = append(rec, v1Frame(0, 0, payload, 50)...)

	path := filepath.Join(t.TempDir(), "flight.tlog")
	if err := os.WriteFile(path, rec, 0o644); err != nil {
		t.Fatalf("Failed to write log: %v", err)
	}

	dec, err := Open(path)
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	defer dec.Close()

	msg, err := dec.Next()
	if err != nil {
		t.Fatalf("Next() failed: %v", err)
	}
	if msg.Type != "HEARTBEAT" {
		t.Fatalf("Type = %q, want HEARTBEAT", msg.Type)
	}
	if got := msg.Fields["type"]; got != int64(2) {
		t.Errorf("type = %v, want 2", got)
	}
	if got := msg.Fields["custom_mode"]; got != int64(5) {
		t.Errorf("custom_mode = %v, want 5", got)
	}
	if msg.TimestampUTC == nil || !msg.TimestampUTC.Equal(stamp) {
		t.Errorf("TimestampUTC = %v, want %v", msg.TimestampUTC, stamp)
	}

	if _, err = dec.Next(); err != io.EOF {
		t.Errorf("Next() after last record = %v, want io.EOF", err)
	}
}
