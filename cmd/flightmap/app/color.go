package app

import (
	"image/color"
	"math"

	"github.com/lucasb-eyer/go-colorful"
)

const (
	hueStart = 236.0
	hueEnd   = 0.0
)

var noAltitudeColor = color.Gray{Y: 0x60}

// altitudeColor maps an altitude within [minAlt, maxAlt] onto a
// blue-to-red hue ramp, low altitudes cold and high altitudes hot.
func altitudeColor(alt *float64, minAlt, maxAlt float64) color.Color {
	if alt == nil {
		return noAltitudeColor
	}
	if maxAlt <= minAlt {
		return colorful.Hsv(hueStart, 1, 0.90)
	}

	span := maxAlt - minAlt
	hPerUnit := (hueStart - hueEnd) / span

	altNormalized := *alt - minAlt
	altDegrees := altNormalized * hPerUnit

	hue := hueStart - altDegrees
	hue = math.Min(math.Max(hue, hueEnd), hueStart)

	return colorful.Hsv(hue, 1, 0.90)
}
