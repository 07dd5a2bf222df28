package mavlink

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/bluenviron/gomavlib/v3/pkg/dialect"
	"github.com/bluenviron/gomavlib/v3/pkg/dialects/ardupilotmega"
	"github.com/bluenviron/gomavlib/v3/pkg/frame"
)

// MAVLink telemetry logs are a stream of (8-byte big-endian microsecond
// wall-clock prefix, MAVLink v1/v2 frame) pairs. Frame parsing and message
// decoding are delegated to gomavlib with the ardupilotmega dialect; this
// decoder flattens the typed dialect messages into generic field maps.
const (
	mavlinkMagicV1 = 0xFE
	mavlinkMagicV2 = 0xFD
)

type telemetryLogDecoder struct {
	f  *os.File
	r  *bufio.Reader
	fr *frame.Reader

	lastTimeMS float64
	errCount   int

	closeOnce sync.Once
	closeErr  error
}

func openTelemetryLog(path string) (Decoder, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, &DecodeError{Path: path, Err: err}
	}

	r := bufio.NewReaderSize(f, 64*1024)

	// Every record starts with an 8-byte timestamp followed by a MAVLink
	// frame magic byte.
	head, err := r.Peek(9)
	if err != nil || (head[8] != mavlinkMagicV1 && head[8] != mavlinkMagicV2) {
		_ = f.Close()
		return nil, &DecodeError{Path: path, Err: fmt.Errorf("%w: missing MAVLink frame header", ErrInvalidLog)}
	}

	dialectRW, err := dialect.NewReadWriter(ardupilotmega.Dialect)
	if err != nil {
		_ = f.Close()
		return nil, &DecodeError{Path: path, Err: fmt.Errorf("creating dialect reader: %w", err)}
	}

	fr, err := frame.NewReader(frame.ReaderConf{
		Reader:    r,
		DialectRW: dialectRW,
	})
	if err != nil {
		_ = f.Close()
		return nil, &DecodeError{Path: path, Err: fmt.Errorf("creating frame reader: %w", err)}
	}

	return &telemetryLogDecoder{f: f, r: r, fr: fr}, nil
}

func (d *telemetryLogDecoder) Next() (*Message, error) {
	var prefix [8]byte

	for {
		if _, err := io.ReadFull(d.r, prefix[:]); err != nil {
			return nil, eofOrWrap(err)
		}
		timestamp := time.UnixMicro(int64(binary.BigEndian.Uint64(prefix[:]))).UTC()

		fr, err := d.fr.Read()
		if err != nil {
			if err = d.recordError(err); err != nil {
				return nil, err
			}
			continue
		}
		d.errCount = 0

		msg := d.flatten(fr.GetMessage())
		msg.TimestampUTC = &timestamp
		return msg, nil
	}
}

func (d *telemetryLogDecoder) recordError(err error) error {
	d.errCount++
	if d.errCount >= decodeErrorsThreshold {
		return fmt.Errorf("%w: %w", ErrTooManyDecodeErrors, err)
	}
	return nil
}

// flatten converts a typed dialect message into a generic Message. Types
// outside the known vocabulary keep only their numeric ID as the tag; the
// router drops them.
func (d *telemetryLogDecoder) flatten(msg any) *Message {
	switch m := msg.(type) {
	case *ardupilotmega.MessageGlobalPositionInt:
		return d.message("GLOBAL_POSITION_INT", float64(m.TimeBootMs), map[string]any{
			"lat":          int64(m.Lat),
			"lon":          int64(m.Lon),
			"alt":          int64(m.Alt),
			"relative_alt": int64(m.RelativeAlt),
			"vx":           int64(m.Vx),
			"vy":           int64(m.Vy),
			"vz":           int64(m.Vz),
			"hdg":          int64(m.Hdg),
		})

	case *ardupilotmega.MessageGpsRawInt:
		return d.message("GPS_RAW_INT", float64(m.TimeUsec)/1000.0, map[string]any{
			"fix_type":           int64(m.FixType),
			"lat":                int64(m.Lat),
			"lon":                int64(m.Lon),
			"alt":                int64(m.Alt),
			"eph":                int64(m.Eph),
			"epv":                int64(m.Epv),
			"vel":                int64(m.Vel),
			"cog":                int64(m.Cog),
			"satellites_visible": int64(m.SatellitesVisible),
		})

	case *ardupilotmega.MessageGps2Raw:
		return d.message("GPS2_RAW", float64(m.TimeUsec)/1000.0, map[string]any{
			"fix_type":           int64(m.FixType),
			"lat":                int64(m.Lat),
			"lon":                int64(m.Lon),
			"alt":                int64(m.Alt),
			"eph":                int64(m.Eph),
			"epv":                int64(m.Epv),
			"vel":                int64(m.Vel),
			"cog":                int64(m.Cog),
			"satellites_visible": int64(m.SatellitesVisible),
			"dgps_numch":         int64(m.DgpsNumch),
			"dgps_age":           int64(m.DgpsAge),
		})

	case *ardupilotmega.MessageVfrHud:
		return d.message("VFR_HUD", d.lastTimeMS, map[string]any{
			"airspeed":    float64(m.Airspeed),
			"groundspeed": float64(m.Groundspeed),
			"heading":     int64(m.Heading),
			"throttle":    int64(m.Throttle),
			"alt":         float64(m.Alt),
			"climb":       float64(m.Climb),
		})

	case *ardupilotmega.MessageAttitude:
		return d.message("ATTITUDE", float64(m.TimeBootMs), map[string]any{
			"roll":       float64(m.Roll),
			"pitch":      float64(m.Pitch),
			"yaw":        float64(m.Yaw),
			"rollspeed":  float64(m.Rollspeed),
			"pitchspeed": float64(m.Pitchspeed),
			"yawspeed":   float64(m.Yawspeed),
		})

	case *ardupilotmega.MessageRawImu:
		return d.message("RAW_IMU", float64(m.TimeUsec)/1000.0, map[string]any{
			"xacc":  int64(m.Xacc),
			"yacc":  int64(m.Yacc),
			"zacc":  int64(m.Zacc),
			"xgyro": int64(m.Xgyro),
			"ygyro": int64(m.Ygyro),
			"zgyro": int64(m.Zgyro),
			"xmag":  int64(m.Xmag),
			"ymag":  int64(m.Ymag),
			"zmag":  int64(m.Zmag),
		})

	case *ardupilotmega.MessageScaledImu:
		return d.message("SCALED_IMU", float64(m.TimeBootMs), map[string]any{
			"xacc":  int64(m.Xacc),
			"yacc":  int64(m.Yacc),
			"zacc":  int64(m.Zacc),
			"xgyro": int64(m.Xgyro),
			"ygyro": int64(m.Ygyro),
			"zgyro": int64(m.Zgyro),
			"xmag":  int64(m.Xmag),
			"ymag":  int64(m.Ymag),
			"zmag":  int64(m.Zmag),
		})

	case *ardupilotmega.MessageStatustext:
		return d.message("STATUSTEXT", d.lastTimeMS, map[string]any{
			"severity": int64(m.Severity),
			"text":     m.Text,
		})

	case *ardupilotmega.MessageHeartbeat:
		// Ground stations and companion computers emit heartbeats too;
		// only the autopilot's describe the vehicle.
		if m.Autopilot == ardupilotmega.MAV_AUTOPILOT_INVALID {
			return d.message(fmt.Sprintf("UNKNOWN_%d", m.GetID()), d.lastTimeMS, nil)
		}
		return d.message("HEARTBEAT", d.lastTimeMS, map[string]any{
			"type":        int64(m.Type),
			"autopilot":   int64(m.Autopilot),
			"base_mode":   int64(m.BaseMode),
			"custom_mode": int64(m.CustomMode),
		})

	case *ardupilotmega.MessageSysStatus:
		return d.message("SYS_STATUS", d.lastTimeMS, map[string]any{
			"voltage_battery":   int64(m.VoltageBattery),
			"current_battery":   int64(m.CurrentBattery),
			"battery_remaining": int64(m.BatteryRemaining),
		})

	case *ardupilotmega.MessageRadioStatus:
		return d.message("RADIO_STATUS", d.lastTimeMS, map[string]any{
			"rssi":     int64(m.Rssi),
			"remrssi":  int64(m.Remrssi),
			"noise":    int64(m.Noise),
			"remnoise": int64(m.Remnoise),
		})

	case *ardupilotmega.MessageAutopilotVersion:
		return d.message("AUTOPILOT_VERSION", d.lastTimeMS, map[string]any{
			"flight_sw_version": int64(m.FlightSwVersion),
		})

	case interface{ GetID() uint32 }:
		return d.message(fmt.Sprintf("UNKNOWN_%d", m.GetID()), d.lastTimeMS, nil)

	default:
		return d.message("UNKNOWN", d.lastTimeMS, nil)
	}
}

func (d *telemetryLogDecoder) message(tag string, timeMS float64, fields map[string]any) *Message {
	if timeMS > 0 {
		d.lastTimeMS = timeMS
	}
	if fields == nil {
		fields = map[string]any{}
	}
	return &Message{
		Type:       tag,
		TimeBootMS: d.lastTimeMS,
		Fields:     fields,
	}
}

func (d *telemetryLogDecoder) Close() error {
	d.closeOnce.Do(func() {
		d.closeErr = d.f.Close()
	})
	return d.closeErr
}
