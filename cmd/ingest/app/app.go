package app

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/google/uuid"

	"github.com/roman-kulish/flight-log-analysis/internal/pipeline"
	"github.com/roman-kulish/flight-log-analysis/internal/storage"
)

const storageDir = "data"

func Run(ctx context.Context, config *Config, logPath string, logger *slog.Logger) error {
	stat, err := os.Stat(logPath)
	if err != nil {
		return fmt.Errorf("flight log '%s': %w", logPath, err)
	}

	telemetryPath, sessionsPath, err := storagePaths(&config.Storage)
	if err != nil {
		return fmt.Errorf("failed to resolve storage paths: %w", err)
	}

	store := storage.NewDuckDBStore(telemetryPath)
	defer store.Close()

	sessions := storage.NewSqliteSessionStore(sessionsPath)
	defer sessions.Close()

	sessionID := uuid.New().String()

	logger.Info("starting ingestion",
		slog.String("session", sessionID),
		slog.String("file", filepath.Base(logPath)),
		slog.String("size", humanize.Bytes(uint64(stat.Size()))),
		slog.String("mode", string(config.Ingest.Mode)))

	started := time.Now()
	summary, runErr := runPipeline(ctx, config, store, sessions, sessionID, logPath, logger)
	if summary != nil {
		logSummary(logger, summary, time.Since(started))
	}
	if runErr != nil {
		return fmt.Errorf("ingestion failed: %w", runErr)
	}
	return nil
}

func runPipeline(ctx context.Context, config *Config, store storage.TelemetryStore, sessions storage.SessionStore, sessionID, logPath string, logger *slog.Logger) (*pipeline.Summary, error) {
	opts := []pipeline.Option{
		pipeline.WithBatchSize(config.Ingest.BatchSize),
		pipeline.WithLogger(logger),
	}

	if config.Ingest.Mode == ModeSinglePass {
		return pipeline.NewSinglePass(store, sessions, opts...).Run(ctx, sessionID, logPath)
	}

	opts = append(opts,
		pipeline.WithWorkers(config.Ingest.Workers),
		pipeline.WithQueueSizes(config.Ingest.MessageQueueSize, config.Ingest.BatchQueueSize),
		pipeline.WithJoinTimeouts(time.Duration(config.Ingest.WorkerJoinTimeout), time.Duration(config.Ingest.WriterJoinTimeout)),
	)
	return pipeline.NewConcurrent(store, sessions, opts...).Run(ctx, sessionID, logPath)
}

func logSummary(logger *slog.Logger, s *pipeline.Summary, elapsed time.Duration) {
	duration := "unknown"
	if s.FlightDurationSeconds != nil {
		duration = (time.Duration(*s.FlightDurationSeconds * float64(time.Second))).Round(time.Second).String()
	}

	logger.Info("ingestion finished",
		slog.Group("flight",
			slog.String("duration", duration),
			slog.String("vehicle", orUnknown(s.VehicleType)),
			slog.String("firmware", orUnknown(s.AutopilotVersion)),
			slog.String("modes", strings.Join(s.FlightModes, ", ")),
		),
		slog.Group("stats",
			slog.String("messages", humanize.Comma(s.MessageCount)),
			slog.String("rowsWritten", humanize.Comma(s.RecordsWritten)),
			slog.String("dropped", humanize.Comma(s.DroppedMessages)),
			slog.Int64("failedBatches", s.FailedBatches),
			slog.Int64("conversionErrors", s.ConversionErrors),
			slog.String("elapsed", elapsed.Round(time.Millisecond).String()),
		))
}

func orUnknown(s string) string {
	if s == "" {
		return "unknown"
	}
	return s
}

func storagePaths(config *StorageConfig) (telemetryPath, sessionsPath string, err error) {
	wd, err := os.Getwd()
	if err != nil {
		return "", "", fmt.Errorf("failed to get current working directory: %w", err)
	}

	dir := filepath.Join(wd, storageDir)
	if config.DataDirectory != "" {
		dir = filepath.Join(wd, config.DataDirectory)
	}

	stat, err := os.Stat(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return "", "", fmt.Errorf("storage directory '%s' does not exist: %w", dir, err)
		}
		return "", "", err
	}
	if !stat.IsDir() {
		return "", "", fmt.Errorf("invalid storage directory '%s'", dir)
	}

	return filepath.Join(dir, config.TelemetryDB), filepath.Join(dir, config.SessionsDB), nil
}
