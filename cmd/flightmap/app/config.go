package app

import (
	"errors"
	"flag"
	"fmt"
	"strings"
)

const (
	ImagePNG  = "png"
	ImageJPEG = "jpeg"
)

type ImageFormat string

type Config struct {
	DBPath        string
	SessionID     string
	OutputFile    string
	Format        ImageFormat
	FontFile      string
	Width         int
	MinTimeMS     *float64
	MaxTimeMS     *float64
	FixOnly       bool
	NoAnnotations bool
}

var validImageFormats = map[ImageFormat]struct{}{
	ImagePNG:  {},
	ImageJPEG: {},
}

func NewConfig() *Config {
	return &Config{
		Format: ImagePNG,
		Width:  defaultTrackWidth,
	}
}

func NewConfigFromCLI() (*Config, error) {
	c := NewConfig()

	var imageFormat string
	var minTime, maxTime float64
	flag.StringVar(&c.DBPath, "db", "", "Path to the telemetry database file")
	flag.StringVar(&c.SessionID, "s", "", "Session ID")
	flag.StringVar(&c.OutputFile, "o", "", "Path to the output file")
	flag.StringVar(&imageFormat, "f", string(ImagePNG), "Output image format. [png, jpeg]")
	flag.StringVar(&c.FontFile, "font", "", "Path to a TrueType font used for annotations")
	flag.IntVar(&c.Width, "w", defaultTrackWidth, "Track area width in pixels")
	flag.Float64Var(&minTime, "min-time", 0, "Discard samples before this boot time (milliseconds)")
	flag.Float64Var(&maxTime, "max-time", 0, "Discard samples after this boot time (milliseconds)")
	flag.BoolVar(&c.FixOnly, "fix-only", false, "Discard samples without a GPS fix")
	flag.BoolVar(&c.NoAnnotations, "no-annotations", false, "Disable annotations such as the altitude scale and flight info")
	flag.Parse()

	imageFormat = strings.ToLower(imageFormat)

	flag.Visit(func(f *flag.Flag) {
		if f.Name == "min-time" {
			c.MinTimeMS = &minTime
		}
		if f.Name == "max-time" {
			c.MaxTimeMS = &maxTime
		}
	})

	var err error
	if c.DBPath == "" {
		err = errors.New("db path is required")
	} else if c.SessionID == "" {
		err = errors.New("session id is required")
	} else if c.OutputFile == "" {
		err = errors.New("output file is required")
	} else if c.Width <= 0 {
		err = errors.New("width must be positive")
	} else if _, ok := validImageFormats[ImageFormat(imageFormat)]; !ok {
		err = fmt.Errorf("invalid image format: %s", imageFormat)
	} else if c.FontFile == "" && !c.NoAnnotations {
		err = errors.New("font file is required unless -no-annotations is set")
	}

	if err != nil {
		flag.Usage()
		return nil, err
	}

	c.Format = ImageFormat(imageFormat)
	c.OutputFile = fmt.Sprintf("%s.%s", c.OutputFile, c.Format)
	return c, nil
}
