package app

import (
	"fmt"
	"image"
	"os"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/golang/freetype"
	"golang.org/x/image/font"
)

const (
	dpi     float64 = 72
	hinting string  = "full"
	size    float64 = 14
	spacing float64 = 1.1

	legendHeight = 12
)

type Annotator struct {
	context *freetype.Context
}

func NewAnnotator(fontFile string) (*Annotator, error) {
	fontBytes, err := os.ReadFile(fontFile)
	if err != nil {
		return nil, fmt.Errorf("reading font: %w", err)
	}

	parsedFont, err := freetype.ParseFont(fontBytes)
	if err != nil {
		return nil, fmt.Errorf("parsing font: %w", err)
	}

	context := freetype.NewContext()
	context.SetDPI(dpi)
	context.SetFont(parsedFont)
	context.SetFontSize(size)
	context.SetSrc(image.Black)

	switch hinting {
	case "full":
		context.SetHinting(font.HintingFull)
	default:
		context.SetHinting(font.HintingNone)
	}

	return &Annotator{context: context}, nil
}

func (a *Annotator) Annotate(img *image.RGBA, track *TrackData) error {
	a.context.SetClip(img.Bounds())
	a.context.SetDst(img)

	ops := []struct {
		msg string
		fn  func(*image.RGBA, *TrackData) error
	}{
		{"drawing altitude legend", a.drawAltitudeLegend},
		{"drawing info", a.drawInfo},
	}
	for _, op := range ops {
		if err := op.fn(img, track); err != nil {
			return fmt.Errorf("%s: %w", op.msg, err)
		}
	}

	return nil
}

// drawAltitudeLegend draws the altitude colour ramp along the top border
// with min/max labels
func (a *Annotator) drawAltitudeLegend(img *image.RGBA, track *TrackData) error {
	minAlt, maxAlt := track.AltBounds()

	imgWidth := img.Bounds().Dx()
	left, width := imgWidth/4, imgWidth/2
	top := 8

	for x := 0; x < width; x++ {
		alt := minAlt + (maxAlt-minAlt)*float64(x)/float64(width-1)
		c := altitudeColor(&alt, minAlt, maxAlt)
		for y := top; y < top+legendHeight; y++ {
			img.Set(left+x, y, c)
		}
	}

	pt := freetype.Pt(3, top+legendHeight)
	if _, err := a.context.DrawString(a.humanMetres(minAlt), pt); err != nil {
		return err
	}

	pt = freetype.Pt(left+width+5, top+legendHeight)
	_, err := a.context.DrawString(a.humanMetres(maxAlt), pt)
	return err
}

func (a *Annotator) drawInfo(img *image.RGBA, track *TrackData) error {
	imgSize := img.Bounds().Size()
	top, left := imgSize.Y-105, 3

	duration := time.Duration(track.DurationSeconds() * float64(time.Second))
	minAlt, maxAlt := track.AltBounds()

	strings := []string{
		fmt.Sprintf("Flight start: %s", a.humanTime(track.TimestampStart)),
		fmt.Sprintf("Flight end: %s", a.humanTime(track.TimestampEnd)),
		fmt.Sprintf("Duration: %s", duration.Round(time.Second)),
		fmt.Sprintf("Altitude: %s to %s", a.humanMetres(minAlt), a.humanMetres(maxAlt)),
		fmt.Sprintf("Positions: %s (%s with fix)",
			humanize.Comma(int64(track.TotalCount)), humanize.Comma(int64(track.FixCount))),
	}

	pt := freetype.Pt(left, top)
	for _, s := range strings {
		if _, err := a.context.DrawString(s, pt); err != nil {
			return err
		}
		pt.Y += a.context.PointToFixed(size * spacing)
	}

	return nil
}

func (a *Annotator) humanMetres(m float64) string {
	fract, suffix := humanize.ComputeSI(m)
	return fmt.Sprintf("%0.1f %sm", fract, suffix)
}

func (a *Annotator) humanTime(t time.Time) string {
	if t.IsZero() {
		return "unknown"
	}
	return t.UTC().Format(time.DateTime) + " UTC"
}
