package flight

import (
	"fmt"
	"strings"

	"github.com/roman-kulish/flight-log-analysis/internal/mavlink"
)

// Metadata summarizes one ingested log.
type Metadata struct {
	// MessageCount counts messages whose type tag is in the routed
	// vocabulary; unknown types are inventoried but not counted here.
	MessageCount int64

	FlightDurationSeconds *float64
	VehicleType           string
	AutopilotVersion      string
	FlightModes           []string

	// MessageTypes is the full inventory of type tags seen, including
	// unknown ones, with per-tag counts.
	MessageTypes map[string]int64
}

// MetadataCollector tracks session-level metadata incrementally while the
// scan runs. It observes every decoded message and finalizes exactly once.
type MetadataCollector struct {
	count     int64
	haveTime  bool
	minTimeMS float64
	maxTimeMS float64

	vehicleType      string
	autopilotVersion string
	modes            map[string]struct{}
	modeOrder        []string
	inventory        map[string]int64
}

func NewMetadataCollector() *MetadataCollector {
	return &MetadataCollector{
		modes:     make(map[string]struct{}),
		inventory: make(map[string]int64),
	}
}

// Observe updates the collector with one decoded message. It is cheap
// enough to run interleaved with the scan in both coordinators.
func (c *MetadataCollector) Observe(msg *mavlink.Message) {
	c.inventory[msg.Type]++

	if !Known(msg.Type) {
		c.observeUnrouted(msg)
		return
	}

	c.count++

	if msg.TimeBootMS > 0 {
		if !c.haveTime {
			c.minTimeMS, c.maxTimeMS = msg.TimeBootMS, msg.TimeBootMS
			c.haveTime = true
		} else {
			if msg.TimeBootMS < c.minTimeMS {
				c.minTimeMS = msg.TimeBootMS
			}
			if msg.TimeBootMS > c.maxTimeMS {
				c.maxTimeMS = msg.TimeBootMS
			}
		}
	}

	switch msg.Type {
	case "HEARTBEAT":
		if c.vehicleType == "" {
			if t, ok := msg.Fields["type"].(int64); ok {
				c.vehicleType = VehicleTypeName(t)
			}
		}
		if mode, ok := msg.Fields["custom_mode"].(int64); ok {
			t, _ := msg.Fields["type"].(int64)
			c.addMode(modeName(t, mode))
		}

	case "MODE":
		if mode, ok := firstOf(msg.Fields, "Mode", "ModeNum").(int64); ok {
			c.addMode(modeName(-1, mode))
		}

	case "MSG":
		if text, ok := msg.Fields["Message"].(string); ok {
			c.observeBanner(text)
		}

	case "STATUSTEXT":
		if text, ok := msg.Fields["text"].(string); ok {
			c.observeBanner(text)
		}
	}
}

func (c *MetadataCollector) observeUnrouted(msg *mavlink.Message) {
	// AUTOPILOT_VERSION is outside the routed vocabulary but carries the
	// firmware version encoded as major.minor.patch in the top bytes.
	if msg.Type != "AUTOPILOT_VERSION" || c.autopilotVersion != "" {
		return
	}
	if v, ok := msg.Fields["flight_sw_version"].(int64); ok && v != 0 {
		c.autopilotVersion = fmt.Sprintf("%d.%d.%d", (v>>24)&0xFF, (v>>16)&0xFF, (v>>8)&0xFF)
	}
}

// observeBanner recognizes ArduPilot boot banners such as
// "ArduCopter V4.3.6 (a1b2c3)" and extracts vehicle type and firmware
// version from them.
func (c *MetadataCollector) observeBanner(text string) {
	var vehicle string
	switch {
	case strings.HasPrefix(text, "ArduCopter"):
		vehicle = "Quadrotor"
	case strings.HasPrefix(text, "ArduPlane"):
		vehicle = "Fixed Wing"
	case strings.HasPrefix(text, "ArduRover"), strings.HasPrefix(text, "APMrover"):
		vehicle = "Ground Rover"
	case strings.HasPrefix(text, "ArduSub"):
		vehicle = "Submarine"
	default:
		return
	}

	if c.vehicleType == "" {
		c.vehicleType = vehicle
	}
	if c.autopilotVersion == "" {
		for _, token := range strings.Fields(text) {
			if len(token) > 1 && token[0] == 'V' && token[1] >= '0' && token[1] <= '9' {
				c.autopilotVersion = token[1:]
				break
			}
		}
	}
}

func (c *MetadataCollector) addMode(name string) {
	if _, ok := c.modes[name]; ok {
		return
	}
	c.modes[name] = struct{}{}
	c.modeOrder = append(c.modeOrder, name)
}

// Finalize produces the session metadata. The collector is not meant to be
// observed further after finalizing.
func (c *MetadataCollector) Finalize() *Metadata {
	m := Metadata{
		MessageCount:     c.count,
		VehicleType:      c.vehicleType,
		AutopilotVersion: c.autopilotVersion,
		FlightModes:      c.modeOrder,
		MessageTypes:     c.inventory,
	}

	if c.haveTime {
		duration := (c.maxTimeMS - c.minTimeMS) / 1000.0
		m.FlightDurationSeconds = &duration
	}
	return &m
}

func firstOf(fields map[string]any, names ...string) any {
	for _, name := range names {
		if v, ok := fields[name]; ok {
			return v
		}
	}
	return nil
}
