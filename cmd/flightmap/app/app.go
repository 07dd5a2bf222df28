package app

import (
	"context"
	"fmt"
	"image/jpeg"
	"image/png"
	"log/slog"
	"os"
	"time"

	"github.com/roman-kulish/flight-log-analysis/internal/storage"
)

func Run(ctx context.Context, config *Config, logger *slog.Logger) error {
	if _, err := os.Stat(config.DBPath); err != nil && os.IsNotExist(err) {
		return fmt.Errorf("database file '%s' does not exist: %w", config.DBPath, err)
	}

	store := storage.NewDuckDBStore(config.DBPath)
	defer store.Close()

	return renderTrack(ctx, store, config, logger)
}

func renderTrack(ctx context.Context, store *storage.DuckDBStore, config *Config, logger *slog.Logger) error {
	var opts []storage.TrackOption
	var filters []any
	if config.MinTimeMS != nil && config.MaxTimeMS != nil {
		opts = append(opts, storage.WithTimeRange(*config.MinTimeMS, *config.MaxTimeMS))

		filters = append(filters,
			slog.String("minTime", fmt.Sprintf("%0.0fms", *config.MinTimeMS)),
			slog.String("maxTime", fmt.Sprintf("%0.0fms", *config.MaxTimeMS)))
	}
	if config.FixOnly {
		opts = append(opts, storage.WithFixOnly())
		filters = append(filters, slog.Bool("fixOnly", true))
	}

	logger.Info("track query configuration", filters...)

	points, err := store.PositionTrack(ctx, config.SessionID, opts...)
	if err != nil {
		return fmt.Errorf("reading position track: %w", err)
	}

	track := NewTrackData()
	for _, p := range points {
		track.Update(p)
	}

	minAlt, maxAlt := track.AltBounds()

	logger.Info("finished reading position track",
		slog.Group("stats",
			slog.Int("positions", track.TotalCount),
			slog.Int("withFix", track.FixCount),
			slog.String("duration", (time.Duration(track.DurationSeconds())*time.Second).String()),
			slog.String("minAlt", fmt.Sprintf("%0.1fm", minAlt)),
			slog.String("maxAlt", fmt.Sprintf("%0.1fm", maxAlt)),
		))

	renderer, err := NewTrackRenderer(RenderConfig{
		Width: config.Width,
	})
	if err != nil {
		return fmt.Errorf("creating track renderer: %w", err)
	}

	logger.Info("rendering track",
		slog.Group("image",
			slog.String("destination", config.OutputFile),
			slog.String("format", string(config.Format)),
			slog.Int("width", config.Width),
		))

	img, err := renderer.Render(track)
	if err != nil {
		return fmt.Errorf("rendering track: %w", err)
	}

	if !config.NoAnnotations {
		annotator, err := NewAnnotator(config.FontFile)
		if err != nil {
			return fmt.Errorf("creating annotator: %w", err)
		}
		if err = annotator.Annotate(img, track); err != nil {
			return fmt.Errorf("annotating track: %w", err)
		}
	}

	out, err := os.Create(config.OutputFile)
	if err != nil {
		return err
	}
	defer out.Close()

	switch config.Format {
	case ImageJPEG:
		err = jpeg.Encode(out, img, &jpeg.Options{Quality: 90})
	default:
		err = png.Encode(out, img)
	}
	if err != nil {
		return fmt.Errorf("encoding image: %w", err)
	}

	return nil
}
