// Package flight defines the five semantic telemetry channels, the routing
// of decoded log messages into fixed-shape channel records, and the batch
// accumulation used by the ingestion coordinators.
package flight

import "time"

const (
	ChannelPosition Channel = "position"
	ChannelAttitude Channel = "attitude"
	ChannelSensor   Channel = "sensor"
	ChannelEvent    Channel = "event"
	ChannelSystem   Channel = "system"
)

// Channel is one of the five semantic record categories.
type Channel string

// Channels returns all channels in a fixed order.
func Channels() []Channel {
	return []Channel{ChannelPosition, ChannelAttitude, ChannelSensor, ChannelEvent, ChannelSystem}
}

// Record is a routed channel record. Every record carries the session
// identifier and a device-relative time; fields unavailable on the source
// message variant are nil, never omitted.
type Record interface {
	Channel() Channel
	Session() string
	Time() float64
}

// Position is a routed position fix (GPS, POS, GLOBAL_POSITION_INT,
// GPS_RAW_INT, GPS2_RAW, VFR_HUD sources).
type Position struct {
	SessionID    string
	TimeBootMS   float64
	TimestampUTC *time.Time

	Lat               *float64 // degrees
	Lon               *float64 // degrees
	Alt               *float64 // meters AMSL
	RelativeAlt       *float64 // meters above home
	Vx                *float64 // m/s
	Vy                *float64 // m/s
	Vz                *float64 // m/s
	Heading           *float64 // degrees
	Eph               *float64 // horizontal dilution / accuracy
	Epv               *float64 // vertical dilution / accuracy
	GroundSpeed       *float64 // m/s
	Course            *float64 // degrees
	FixType           *int64
	SatellitesVisible *int64
	DGPSNumCh         *int64
	DGPSAge           *float64 // seconds
}

func (r *Position) Channel() Channel { return ChannelPosition }
func (r *Position) Session() string  { return r.SessionID }
func (r *Position) Time() float64    { return r.TimeBootMS }

// Attitude is a routed vehicle attitude (ATT, ATTITUDE sources). Angles and
// rates are in degrees and degrees per second.
type Attitude struct {
	SessionID    string
	TimeBootMS   float64
	TimestampUTC *time.Time

	Roll       *float64
	Pitch      *float64
	Yaw        *float64
	RollSpeed  *float64
	PitchSpeed *float64
	YawSpeed   *float64
}

func (r *Attitude) Channel() Channel { return ChannelAttitude }
func (r *Attitude) Session() string  { return r.SessionID }
func (r *Attitude) Time() float64    { return r.TimeBootMS }

// Sensor is a routed inertial/magnetic sample (IMU, MAG, RAW_IMU,
// SCALED_IMU sources). Accelerations are m/s², rates rad/s, magnetic field
// milligauss.
type Sensor struct {
	SessionID    string
	TimeBootMS   float64
	TimestampUTC *time.Time

	AccelX *float64
	AccelY *float64
	AccelZ *float64
	GyroX  *float64
	GyroY  *float64
	GyroZ  *float64
	MagX   *float64
	MagY   *float64
	MagZ   *float64
}

func (r *Sensor) Channel() Channel { return ChannelSensor }
func (r *Sensor) Session() string  { return r.SessionID }
func (r *Sensor) Time() float64    { return r.TimeBootMS }

// Event is a routed autopilot event or status message (MSG, EV, ERR,
// STATUSTEXT sources).
type Event struct {
	SessionID    string
	TimeBootMS   float64
	TimestampUTC *time.Time

	EventType   *int64
	Description *string
	Severity    *int64
	Parameters  *string // JSON object with source-specific details
}

func (r *Event) Channel() Channel { return ChannelEvent }
func (r *Event) Session() string  { return r.SessionID }
func (r *Event) Time() float64    { return r.TimeBootMS }

// System is a routed power/radio/mode sample (BAT, CURR, RAD, MODE,
// HEARTBEAT, SYS_STATUS, RADIO_STATUS sources).
type System struct {
	SessionID    string
	TimeBootMS   float64
	TimestampUTC *time.Time

	BatteryVoltage     *float64 // volts
	BatteryCurrent     *float64 // amperes
	BatteryRemaining   *int64   // percent
	BatteryTemperature *float64 // degrees C
	RadioRSSI          *int64
	RadioRemRSSI       *int64
	RadioNoise         *int64
	RadioRemNoise      *int64
	Mode               *string
	Armed              *bool
}

func (r *System) Channel() Channel { return ChannelSystem }
func (r *System) Session() string  { return r.SessionID }
func (r *System) Time() float64    { return r.TimeBootMS }

// Batch is an ordered, bounded group of same-channel records handed to the
// store writer as a unit. Ownership transfers on handoff; the accumulator
// never touches a drained batch again.
type Batch struct {
	Channel Channel
	Records []Record

	// ConversionErrors counts fields nulled by failed unit conversion or
	// type coercion across the batch.
	ConversionErrors int
}
