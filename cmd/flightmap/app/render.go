package app

import (
	"errors"
	"image"
	"image/color"
	"image/draw"
	"math"
)

const (
	defaultTrackWidth = 1024
	minTrackHeight    = 64

	// Default border sizes in pixels
	defaultTopBorder    = 40
	defaultLeftBorder   = 40
	defaultBottomBorder = 130
	defaultRightBorder  = 40
)

// BorderConfig defines the sizes of white space around the track
type BorderConfig struct {
	Top    int
	Left   int
	Bottom int // Space for information bar
	Right  int
}

// RenderConfig holds all configuration options for track visualization
type RenderConfig struct {
	Width        int // Track area width in pixels
	BorderConfig BorderConfig
}

// TrackRenderer draws a flight track as a coloured ground path, hue
// encoding altitude.
type TrackRenderer struct {
	config RenderConfig
}

func NewTrackRenderer(config RenderConfig) (*TrackRenderer, error) {
	// Set defaults for zero values
	if config.Width == 0 {
		config.Width = defaultTrackWidth
	}
	if config.BorderConfig.Top == 0 {
		config.BorderConfig.Top = defaultTopBorder
	}
	if config.BorderConfig.Left == 0 {
		config.BorderConfig.Left = defaultLeftBorder
	}
	if config.BorderConfig.Bottom == 0 {
		config.BorderConfig.Bottom = defaultBottomBorder
	}
	if config.BorderConfig.Right == 0 {
		config.BorderConfig.Right = defaultRightBorder
	}

	return &TrackRenderer{config: config}, nil
}

// Render creates an image of the flight track
func (r *TrackRenderer) Render(track *TrackData) (*image.RGBA, error) {
	if len(track.Points) == 0 {
		return nil, errors.New("track has no positions with a fix")
	}

	proj := newProjection(track, r.config.Width)

	fullWidth := proj.width + r.config.BorderConfig.Left + r.config.BorderConfig.Right
	fullHeight := proj.height + r.config.BorderConfig.Top + r.config.BorderConfig.Bottom
	img := image.NewRGBA(image.Rect(0, 0, fullWidth, fullHeight))

	// Fill with white background
	draw.Draw(img, img.Bounds(), image.White, image.Point{}, draw.Src)

	minAlt, maxAlt := track.AltBounds()
	offset := image.Pt(r.config.BorderConfig.Left, r.config.BorderConfig.Top)

	var prev image.Point
	for i, p := range track.Points {
		pt := proj.toPixel(*p.Lat, *p.Lon).Add(offset)
		c := altitudeColor(trackAltitude(p), minAlt, maxAlt)

		if i > 0 {
			drawLine(img, prev, pt, c)
		}
		drawDot(img, pt, c)
		prev = pt
	}

	// Start and end markers stand out from the path
	start := proj.toPixel(*track.Points[0].Lat, *track.Points[0].Lon).Add(offset)
	end := proj.toPixel(*track.Points[len(track.Points)-1].Lat, *track.Points[len(track.Points)-1].Lon).Add(offset)
	drawMarker(img, start, color.RGBA{G: 0xc0, A: 0xff})
	drawMarker(img, end, color.RGBA{R: 0xc0, A: 0xff})

	return img, nil
}

// projection maps geodetic coordinates onto the track area using an
// equirectangular projection centred on the track's mid latitude.
type projection struct {
	width, height  int
	latMin, lonMin float64
	scale          float64 // pixels per degree of longitude
	cosLat         float64
}

func newProjection(track *TrackData, width int) *projection {
	midLat := (track.LatMin + track.LatMax) / 2
	cosLat := math.Cos(midLat * math.Pi / 180)

	lonSpan := (track.LonMax - track.LonMin) * cosLat
	latSpan := track.LatMax - track.LatMin

	p := &projection{
		width:  width,
		latMin: track.LatMin,
		lonMin: track.LonMin,
		cosLat: cosLat,
	}

	if lonSpan <= 0 {
		// Degenerate track, e.g. hovering on the spot
		p.scale = 0
		p.height = minTrackHeight
		return p
	}

	p.scale = float64(width-1) / (track.LonMax - track.LonMin)
	p.height = int(math.Ceil(latSpan / lonSpan * float64(width)))
	p.height = max(p.height, minTrackHeight)
	return p
}

func (p *projection) toPixel(lat, lon float64) image.Point {
	x := (lon - p.lonMin) * p.scale
	// Latitude grows northwards, pixel Y grows downwards
	y := float64(p.height-1) - (lat-p.latMin)*p.scale/p.cosLat

	return image.Pt(
		int(math.Round(math.Min(x, float64(p.width-1)))),
		int(math.Round(math.Max(math.Min(y, float64(p.height-1)), 0))),
	)
}

func drawDot(img *image.RGBA, pt image.Point, c color.Color) {
	for dy := -1; dy <= 1; dy++ {
		for dx := -1; dx <= 1; dx++ {
			img.Set(pt.X+dx, pt.Y+dy, c)
		}
	}
}

func drawMarker(img *image.RGBA, pt image.Point, c color.Color) {
	for dy := -3; dy <= 3; dy++ {
		for dx := -3; dx <= 3; dx++ {
			img.Set(pt.X+dx, pt.Y+dy, c)
		}
	}
}

// drawLine draws a segment between two track samples (Bresenham)
func drawLine(img *image.RGBA, from, to image.Point, c color.Color) {
	dx := abs(to.X - from.X)
	dy := -abs(to.Y - from.Y)

	sx, sy := 1, 1
	if from.X > to.X {
		sx = -1
	}
	if from.Y > to.Y {
		sy = -1
	}

	x, y := from.X, from.Y
	e := dx + dy
	for {
		img.Set(x, y, c)
		if x == to.X && y == to.Y {
			return
		}
		if e2 := 2 * e; e2 >= dy {
			e += dy
			x += sx
		} else {
			e += dx
			y += sy
		}
	}
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
