package app

import (
	"math"
	"time"

	"github.com/roman-kulish/flight-log-analysis/internal/storage"
)

type TrackData struct {
	LatMin, LatMax       float64
	LonMin, LonMax       float64
	AltMin, AltMax       float64
	TimeStartMS          float64
	TimeEndMS            float64
	TimestampStart       time.Time
	TimestampEnd         time.Time
	FixCount, TotalCount int
	Points               []storage.TrackPoint
}

func NewTrackData() *TrackData {
	return &TrackData{
		LatMin: math.MaxFloat64,
		LatMax: -math.MaxFloat64,
		LonMin: math.MaxFloat64,
		LonMax: -math.MaxFloat64,
		AltMin: math.MaxFloat64,
		AltMax: -math.MaxFloat64,
	}
}

func (t *TrackData) Update(p storage.TrackPoint) {
	t.TotalCount++

	if t.TotalCount == 1 || p.TimeBootMS < t.TimeStartMS {
		t.TimeStartMS = p.TimeBootMS
	}
	if p.TimeBootMS > t.TimeEndMS {
		t.TimeEndMS = p.TimeBootMS
	}

	if p.TimestampUTC != nil {
		if t.TimestampStart.IsZero() || t.TimestampStart.After(*p.TimestampUTC) {
			t.TimestampStart = *p.TimestampUTC
		}
		if t.TimestampEnd.IsZero() || t.TimestampEnd.Before(*p.TimestampUTC) {
			t.TimestampEnd = *p.TimestampUTC
		}
	}

	if p.Lat == nil || p.Lon == nil {
		return
	}
	t.FixCount++

	t.LatMin = min(t.LatMin, *p.Lat)
	t.LatMax = max(t.LatMax, *p.Lat)
	t.LonMin = min(t.LonMin, *p.Lon)
	t.LonMax = max(t.LonMax, *p.Lon)

	if alt := trackAltitude(p); alt != nil {
		t.AltMin = min(t.AltMin, *alt)
		t.AltMax = max(t.AltMax, *alt)
	}

	t.Points = append(t.Points, p)
}

// trackAltitude prefers the altitude above the home position and falls
// back to the absolute one.
func trackAltitude(p storage.TrackPoint) *float64 {
	if p.RelativeAlt != nil {
		return p.RelativeAlt
	}
	return p.Alt
}

// AltBounds returns the altitude range seen across the track, or a flat
// zero range when no sample carried an altitude.
func (t *TrackData) AltBounds() (minAlt, maxAlt float64) {
	if t.AltMin > t.AltMax {
		return 0, 0
	}
	return t.AltMin, t.AltMax
}

func (t *TrackData) DurationSeconds() float64 {
	if t.TotalCount == 0 {
		return 0
	}
	return (t.TimeEndMS - t.TimeStartMS) / 1000
}
