package storage

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/roman-kulish/flight-log-analysis/internal/flight"
)

// channelInsert describes the multi-row INSERT shape of one channel table.
type channelInsert struct {
	insertSQL   string
	placeholder string
	columns     int
}

var channelInserts = map[flight.Channel]channelInsert{
	flight.ChannelPosition: {
		insertSQL: `
    INSERT INTO positions (
        session_id,
        time_boot_ms,
        timestamp_utc,
        lat,
        lon,
        alt,
        relative_alt,
        vx,
        vy,
        vz,
        heading,
        eph,
        epv,
        ground_speed,
        course,
        fix_type,
        satellites_visible,
        dgps_numch,
        dgps_age
    )
    VALUES `,
		placeholder: "(?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)",
		columns:     19,
	},
	flight.ChannelAttitude: {
		insertSQL: `
    INSERT INTO attitudes (
        session_id,
        time_boot_ms,
        timestamp_utc,
        roll,
        pitch,
        yaw,
        rollspeed,
        pitchspeed,
        yawspeed
    )
    VALUES `,
		placeholder: "(?, ?, ?, ?, ?, ?, ?, ?, ?)",
		columns:     9,
	},
	flight.ChannelSensor: {
		insertSQL: `
    INSERT INTO sensors (
        session_id,
        time_boot_ms,
        timestamp_utc,
        accel_x,
        accel_y,
        accel_z,
        gyro_x,
        gyro_y,
        gyro_z,
        mag_x,
        mag_y,
        mag_z
    )
    VALUES `,
		placeholder: "(?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)",
		columns:     12,
	},
	flight.ChannelEvent: {
		insertSQL: `
    INSERT INTO events (
        session_id,
        time_boot_ms,
        timestamp_utc,
        event_type,
        description,
        severity,
        parameters
    )
    VALUES `,
		placeholder: "(?, ?, ?, ?, ?, ?, ?)",
		columns:     7,
	},
	flight.ChannelSystem: {
		insertSQL: `
    INSERT INTO systems (
        session_id,
        time_boot_ms,
        timestamp_utc,
        battery_voltage,
        battery_current,
        battery_remaining,
        battery_temperature,
        radio_rssi,
        radio_remrssi,
        radio_noise,
        radio_remnoise,
        mode,
        armed
    )
    VALUES `,
		placeholder: "(?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)",
		columns:     13,
	},
}

// recordValues maps a routed record to its table row values, in column
// order. Pointer fields map to SQL nulls, never omitted columns.
func recordValues(rec flight.Record) ([]any, error) {
	switch r := rec.(type) {
	case *flight.Position:
		return []any{
			r.SessionID,
			r.TimeBootMS,
			toNullTime(r.TimestampUTC),
			toNullFloat(r.Lat),
			toNullFloat(r.Lon),
			toNullFloat(r.Alt),
			toNullFloat(r.RelativeAlt),
			toNullFloat(r.Vx),
			toNullFloat(r.Vy),
			toNullFloat(r.Vz),
			toNullFloat(r.Heading),
			toNullFloat(r.Eph),
			toNullFloat(r.Epv),
			toNullFloat(r.GroundSpeed),
			toNullFloat(r.Course),
			toNullInt(r.FixType),
			toNullInt(r.SatellitesVisible),
			toNullInt(r.DGPSNumCh),
			toNullFloat(r.DGPSAge),
		}, nil

	case *flight.Attitude:
		return []any{
			r.SessionID,
			r.TimeBootMS,
			toNullTime(r.TimestampUTC),
			toNullFloat(r.Roll),
			toNullFloat(r.Pitch),
			toNullFloat(r.Yaw),
			toNullFloat(r.RollSpeed),
			toNullFloat(r.PitchSpeed),
			toNullFloat(r.YawSpeed),
		}, nil

	case *flight.Sensor:
		return []any{
			r.SessionID,
			r.TimeBootMS,
			toNullTime(r.TimestampUTC),
			toNullFloat(r.AccelX),
			toNullFloat(r.AccelY),
			toNullFloat(r.AccelZ),
			toNullFloat(r.GyroX),
			toNullFloat(r.GyroY),
			toNullFloat(r.GyroZ),
			toNullFloat(r.MagX),
			toNullFloat(r.MagY),
			toNullFloat(r.MagZ),
		}, nil

	case *flight.Event:
		return []any{
			r.SessionID,
			r.TimeBootMS,
			toNullTime(r.TimestampUTC),
			toNullInt(r.EventType),
			toNullString(r.Description),
			toNullInt(r.Severity),
			toNullString(r.Parameters),
		}, nil

	case *flight.System:
		return []any{
			r.SessionID,
			r.TimeBootMS,
			toNullTime(r.TimestampUTC),
			toNullFloat(r.BatteryVoltage),
			toNullFloat(r.BatteryCurrent),
			toNullInt(r.BatteryRemaining),
			toNullFloat(r.BatteryTemperature),
			toNullInt(r.RadioRSSI),
			toNullInt(r.RadioRemRSSI),
			toNullInt(r.RadioNoise),
			toNullInt(r.RadioRemNoise),
			toNullString(r.Mode),
			toNullBool(r.Armed),
		}, nil

	default:
		return nil, fmt.Errorf("unexpected record type %T", rec)
	}
}

// SessionInfo is one row of the session metadata store.
type SessionInfo struct {
	ID                    string
	FileName              string
	FileSize              int64
	Status                SessionStatus
	Error                 *string
	MessageCount          int64
	FlightDurationSeconds *float64
	VehicleType           *string
	AutopilotVersion      *string
	FlightModes           []string
	MessageTypes          map[string]int64
	CreatedAt             time.Time
	FinishedAt            *time.Time
}

const (
	StatusProcessing SessionStatus = "processing"
	StatusCompleted  SessionStatus = "completed"
	StatusFailed     SessionStatus = "failed"
)

// SessionStatus is the lifecycle state of an ingestion session.
type SessionStatus string

func marshalJSONColumn(v any) (string, error) {
	p, err := json.Marshal(v)
	if err != nil {
		return "", fmt.Errorf("marshaling column: %w", err)
	}
	return string(p), nil
}
