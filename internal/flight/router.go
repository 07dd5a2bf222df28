package flight

import (
	"fmt"
	"math"

	"github.com/roman-kulish/flight-log-analysis/internal/mavlink"
)

// Unit conversion factors. Raw wire units are documented next to each route.
const (
	latLonScale = 1e-7       // 1e7-scaled integer degrees -> degrees
	mmToM       = 1e-3       // millimeters -> meters
	cmSToMS     = 1e-2       // centimeters/second -> m/s
	cdegToDeg   = 1e-2       // centidegrees -> degrees
	cvToV       = 1e-2       // centivolts -> volts
	mvToV       = 1e-3       // millivolts -> volts
	caToA       = 1e-2       // 10 mA units -> amperes
	mgToMS2     = 9.80665e-3 // milli-g -> m/s²
	mradToRad   = 1e-3       // milliradians/second -> rad/s
	msToS       = 1e-3       // milliseconds -> seconds
	radToDeg    = 180 / math.Pi
)

// Alias resolution order for fields with multiple legacy names. The first
// name present on a message wins; the order is declared once here so both
// coordinators route identically.
var (
	latAliases = []string{"Lat", "lat"}
	lonAliases = []string{"Lng", "Lon", "lon"}
)

// routes maps a message type tag to its channel record builder. Tags absent
// from this table are intentionally dropped by Route.
var routes = map[string]func(string, *fieldReader) Record{
	// DataFlash
	"GPS":  buildDataFlashGPS,
	"POS":  buildDataFlashPOS,
	"ATT":  buildDataFlashATT,
	"IMU":  buildDataFlashIMU,
	"MAG":  buildDataFlashMAG,
	"MSG":  buildDataFlashMSG,
	"EV":   buildDataFlashEV,
	"ERR":  buildDataFlashERR,
	"MODE": buildDataFlashMODE,
	"BAT":  buildDataFlashBAT,
	"CURR": buildDataFlashCURR,
	"RAD":  buildDataFlashRAD,

	// MAVLink telemetry
	"GLOBAL_POSITION_INT": buildGlobalPositionInt,
	"GPS_RAW_INT":         buildGPSRawInt,
	"GPS2_RAW":            buildGPSRawInt,
	"VFR_HUD":             buildVfrHud,
	"ATTITUDE":            buildAttitudeMsg,
	"RAW_IMU":             buildInertialMsg,
	"SCALED_IMU":          buildInertialMsg,
	"STATUSTEXT":          buildStatusText,
	"HEARTBEAT":           buildHeartbeat,
	"SYS_STATUS":          buildSysStatus,
	"RADIO_STATUS":        buildRadioStatus,
}

// Known reports whether a message type tag belongs to the routed vocabulary.
func Known(tag string) bool {
	_, ok := routes[tag]
	return ok
}

// Route classifies a decoded message into a channel record. Messages outside
// the known vocabulary return ok=false and are dropped. The returned count is
// the number of fields nulled because their value failed type coercion; a bad
// field never drops the whole record. Route holds no state: identical input
// always yields an identical record.
func Route(sessionID string, msg *mavlink.Message) (rec Record, conversionErrors int, ok bool) {
	build, ok := routes[msg.Type]
	if !ok {
		return nil, 0, false
	}

	f := fieldReader{msg: msg}
	rec = build(sessionID, &f)
	return rec, f.errs, true
}

// DataFlash builders. Scalars carrying c/C/e/E format characters arrive
// pre-scaled from the decoder; L-typed latitudes arrive as raw 1e7-scaled
// integers.

func buildDataFlashGPS(sessionID string, f *fieldReader) Record {
	return &Position{
		SessionID:         sessionID,
		TimeBootMS:        f.msg.TimeBootMS,
		TimestampUTC:      f.msg.TimestampUTC,
		Lat:               f.scaledFloat(latLonScale, latAliases...),
		Lon:               f.scaledFloat(latLonScale, lonAliases...),
		Alt:               f.float("Alt"),
		GroundSpeed:       f.float("Spd"),
		Course:            f.float("GCrs"),
		Vz:                f.float("VZ"),
		Eph:               f.float("HDop"),
		FixType:           f.integer("Status"),
		SatellitesVisible: f.integer("NSats"),
	}
}

func buildDataFlashPOS(sessionID string, f *fieldReader) Record {
	return &Position{
		SessionID:    sessionID,
		TimeBootMS:   f.msg.TimeBootMS,
		TimestampUTC: f.msg.TimestampUTC,
		Lat:          f.scaledFloat(latLonScale, latAliases...),
		Lon:          f.scaledFloat(latLonScale, lonAliases...),
		Alt:          f.float("Alt"),
		RelativeAlt:  f.float("RelHomeAlt"),
	}
}

func buildDataFlashATT(sessionID string, f *fieldReader) Record {
	return &Attitude{
		SessionID:    sessionID,
		TimeBootMS:   f.msg.TimeBootMS,
		TimestampUTC: f.msg.TimestampUTC,
		Roll:         f.float("Roll"),
		Pitch:        f.float("Pitch"),
		Yaw:          f.float("Yaw"),
	}
}

func buildDataFlashIMU(sessionID string, f *fieldReader) Record {
	return &Sensor{
		SessionID:    sessionID,
		TimeBootMS:   f.msg.TimeBootMS,
		TimestampUTC: f.msg.TimestampUTC,
		AccelX:       f.float("AccX"),
		AccelY:       f.float("AccY"),
		AccelZ:       f.float("AccZ"),
		GyroX:        f.float("GyrX"),
		GyroY:        f.float("GyrY"),
		GyroZ:        f.float("GyrZ"),
	}
}

func buildDataFlashMAG(sessionID string, f *fieldReader) Record {
	return &Sensor{
		SessionID:    sessionID,
		TimeBootMS:   f.msg.TimeBootMS,
		TimestampUTC: f.msg.TimestampUTC,
		MagX:         f.float("MagX"),
		MagY:         f.float("MagY"),
		MagZ:         f.float("MagZ"),
	}
}

func buildDataFlashMSG(sessionID string, f *fieldReader) Record {
	return &Event{
		SessionID:    sessionID,
		TimeBootMS:   f.msg.TimeBootMS,
		TimestampUTC: f.msg.TimestampUTC,
		Description:  f.str("Message"),
	}
}

func buildDataFlashEV(sessionID string, f *fieldReader) Record {
	return &Event{
		SessionID:    sessionID,
		TimeBootMS:   f.msg.TimeBootMS,
		TimestampUTC: f.msg.TimestampUTC,
		EventType:    f.integer("Id"),
	}
}

func buildDataFlashERR(sessionID string, f *fieldReader) Record {
	rec := Event{
		SessionID:    sessionID,
		TimeBootMS:   f.msg.TimeBootMS,
		TimestampUTC: f.msg.TimestampUTC,
	}

	subsys, ecode := f.integer("Subsys"), f.integer("ECode")
	if subsys != nil && ecode != nil {
		desc := fmt.Sprintf("subsystem %d error %d", *subsys, *ecode)
		params := fmt.Sprintf(`{"subsys":%d,"ecode":%d}`, *subsys, *ecode)
		rec.Description = &desc
		rec.Parameters = &params
	}
	return &rec
}

func buildDataFlashMODE(sessionID string, f *fieldReader) Record {
	rec := System{
		SessionID:    sessionID,
		TimeBootMS:   f.msg.TimeBootMS,
		TimestampUTC: f.msg.TimestampUTC,
	}

	if num := f.integer("Mode", "ModeNum"); num != nil {
		mode := modeName(-1, *num)
		rec.Mode = &mode
	}
	return &rec
}

func buildDataFlashBAT(sessionID string, f *fieldReader) Record {
	return &System{
		SessionID:          sessionID,
		TimeBootMS:         f.msg.TimeBootMS,
		TimestampUTC:       f.msg.TimestampUTC,
		BatteryVoltage:     f.float("Volt"),
		BatteryCurrent:     f.float("Curr"),
		BatteryTemperature: f.float("Temp"),
		BatteryRemaining:   f.integer("RemPct"),
	}
}

// CURR is the pre-BAT battery record; its voltage and current columns are
// raw centivolt / centiampere integers.
func buildDataFlashCURR(sessionID string, f *fieldReader) Record {
	return &System{
		SessionID:      sessionID,
		TimeBootMS:     f.msg.TimeBootMS,
		TimestampUTC:   f.msg.TimestampUTC,
		BatteryVoltage: f.scaledFloat(cvToV, "Volt"),
		BatteryCurrent: f.scaledFloat(caToA, "Curr"),
	}
}

func buildDataFlashRAD(sessionID string, f *fieldReader) Record {
	return &System{
		SessionID:     sessionID,
		TimeBootMS:    f.msg.TimeBootMS,
		TimestampUTC:  f.msg.TimestampUTC,
		RadioRSSI:     f.integer("RSSI"),
		RadioRemRSSI:  f.integer("RemRSSI"),
		RadioNoise:    f.integer("Noise"),
		RadioRemNoise: f.integer("RemNoise"),
	}
}

// MAVLink telemetry builders.

func buildGlobalPositionInt(sessionID string, f *fieldReader) Record {
	return &Position{
		SessionID:    sessionID,
		TimeBootMS:   f.msg.TimeBootMS,
		TimestampUTC: f.msg.TimestampUTC,
		Lat:          f.scaledFloat(latLonScale, latAliases...),
		Lon:          f.scaledFloat(latLonScale, lonAliases...),
		Alt:          f.scaledFloat(mmToM, "alt"),
		RelativeAlt:  f.scaledFloat(mmToM, "relative_alt"),
		Vx:           f.scaledFloat(cmSToMS, "vx"),
		Vy:           f.scaledFloat(cmSToMS, "vy"),
		Vz:           f.scaledFloat(cmSToMS, "vz"),
		Heading:      f.scaledFloatExcept(65535, cdegToDeg, "hdg"),
	}
}

func buildGPSRawInt(sessionID string, f *fieldReader) Record {
	return &Position{
		SessionID:         sessionID,
		TimeBootMS:        f.msg.TimeBootMS,
		TimestampUTC:      f.msg.TimestampUTC,
		Lat:               f.scaledFloat(latLonScale, latAliases...),
		Lon:               f.scaledFloat(latLonScale, lonAliases...),
		Alt:               f.scaledFloat(mmToM, "alt"),
		Eph:               f.scaledFloatExcept(65535, 1, "eph"),
		Epv:               f.scaledFloatExcept(65535, 1, "epv"),
		GroundSpeed:       f.scaledFloatExcept(65535, cmSToMS, "vel"),
		Course:            f.scaledFloatExcept(65535, cdegToDeg, "cog"),
		FixType:           f.integer("fix_type"),
		SatellitesVisible: f.integerExcept(255, "satellites_visible"),
		DGPSNumCh:         f.integer("dgps_numch"),
		DGPSAge:           f.scaledFloat(msToS, "dgps_age"),
	}
}

func buildVfrHud(sessionID string, f *fieldReader) Record {
	return &Position{
		SessionID:    sessionID,
		TimeBootMS:   f.msg.TimeBootMS,
		TimestampUTC: f.msg.TimestampUTC,
		Alt:          f.float("alt"),
		GroundSpeed:  f.float("groundspeed"),
		Course:       f.scaledFloat(1, "heading"),
	}
}

func buildAttitudeMsg(sessionID string, f *fieldReader) Record {
	return &Attitude{
		SessionID:    sessionID,
		TimeBootMS:   f.msg.TimeBootMS,
		TimestampUTC: f.msg.TimestampUTC,
		Roll:         f.scaledFloat(radToDeg, "roll"),
		Pitch:        f.scaledFloat(radToDeg, "pitch"),
		Yaw:          f.scaledFloat(radToDeg, "yaw"),
		RollSpeed:    f.scaledFloat(radToDeg, "rollspeed"),
		PitchSpeed:   f.scaledFloat(radToDeg, "pitchspeed"),
		YawSpeed:     f.scaledFloat(radToDeg, "yawspeed"),
	}
}

func buildInertialMsg(sessionID string, f *fieldReader) Record {
	return &Sensor{
		SessionID:    sessionID,
		TimeBootMS:   f.msg.TimeBootMS,
		TimestampUTC: f.msg.TimestampUTC,
		AccelX:       f.scaledFloat(mgToMS2, "xacc"),
		AccelY:       f.scaledFloat(mgToMS2, "yacc"),
		AccelZ:       f.scaledFloat(mgToMS2, "zacc"),
		GyroX:        f.scaledFloat(mradToRad, "xgyro"),
		GyroY:        f.scaledFloat(mradToRad, "ygyro"),
		GyroZ:        f.scaledFloat(mradToRad, "zgyro"),
		MagX:         f.scaledFloat(1, "xmag"),
		MagY:         f.scaledFloat(1, "ymag"),
		MagZ:         f.scaledFloat(1, "zmag"),
	}
}

func buildStatusText(sessionID string, f *fieldReader) Record {
	return &Event{
		SessionID:    sessionID,
		TimeBootMS:   f.msg.TimeBootMS,
		TimestampUTC: f.msg.TimestampUTC,
		Severity:     f.integer("severity"),
		Description:  f.str("text"),
	}
}

func buildHeartbeat(sessionID string, f *fieldReader) Record {
	rec := System{
		SessionID:    sessionID,
		TimeBootMS:   f.msg.TimeBootMS,
		TimestampUTC: f.msg.TimestampUTC,
	}

	mavType := f.integer("type")
	if mode := f.integer("custom_mode"); mode != nil {
		vt := int64(-1)
		if mavType != nil {
			vt = *mavType
		}
		name := modeName(vt, *mode)
		rec.Mode = &name
	}
	if base := f.integer("base_mode"); base != nil {
		armed := *base&128 != 0 // MAV_MODE_FLAG_SAFETY_ARMED
		rec.Armed = &armed
	}
	return &rec
}

func buildSysStatus(sessionID string, f *fieldReader) Record {
	return &System{
		SessionID:        sessionID,
		TimeBootMS:       f.msg.TimeBootMS,
		TimestampUTC:     f.msg.TimestampUTC,
		BatteryVoltage:   f.scaledFloatExcept(65535, mvToV, "voltage_battery"),
		BatteryCurrent:   f.scaledFloatExcept(-1, caToA, "current_battery"),
		BatteryRemaining: f.integerExcept(-1, "battery_remaining"),
	}
}

func buildRadioStatus(sessionID string, f *fieldReader) Record {
	return &System{
		SessionID:     sessionID,
		TimeBootMS:    f.msg.TimeBootMS,
		TimestampUTC:  f.msg.TimestampUTC,
		RadioRSSI:     f.integerExcept(255, "rssi"),
		RadioRemRSSI:  f.integerExcept(255, "remrssi"),
		RadioNoise:    f.integer("noise"),
		RadioRemNoise: f.integer("remnoise"),
	}
}

// fieldReader extracts typed values from a raw message, applying alias order
// and unit conversion. A field whose value has the wrong type is recorded as
// a conversion error and read as nil.
type fieldReader struct {
	msg  *mavlink.Message
	errs int
}

func (f *fieldReader) numeric(aliases ...string) (float64, bool) {
	v, ok := f.msg.Field(aliases...)
	if !ok {
		return 0, false
	}

	switch n := v.(type) {
	case float64:
		return n, true
	case int64:
		return float64(n), true
	default:
		f.errs++
		return 0, false
	}
}

func (f *fieldReader) float(aliases ...string) *float64 {
	n, ok := f.numeric(aliases...)
	if !ok {
		return nil
	}
	return &n
}

func (f *fieldReader) scaledFloat(factor float64, aliases ...string) *float64 {
	n, ok := f.numeric(aliases...)
	if !ok {
		return nil
	}
	n *= factor
	return &n
}

// scaledFloatExcept treats one raw value as "unknown" and returns nil for it,
// e.g. 65535 for an uninitialized heading.
func (f *fieldReader) scaledFloatExcept(sentinel int64, factor float64, aliases ...string) *float64 {
	n, ok := f.numeric(aliases...)
	if !ok || n == float64(sentinel) {
		return nil
	}
	n *= factor
	return &n
}

func (f *fieldReader) integer(aliases ...string) *int64 {
	v, ok := f.msg.Field(aliases...)
	if !ok {
		return nil
	}

	switch n := v.(type) {
	case int64:
		return &n
	case float64:
		i := int64(n)
		return &i
	default:
		f.errs++
		return nil
	}
}

func (f *fieldReader) integerExcept(sentinel int64, aliases ...string) *int64 {
	n := f.integer(aliases...)
	if n == nil || *n == sentinel {
		return nil
	}
	return n
}

func (f *fieldReader) str(aliases ...string) *string {
	v, ok := f.msg.Field(aliases...)
	if !ok {
		return nil
	}

	s, ok := v.(string)
	if !ok {
		f.errs++
		return nil
	}
	return &s
}
