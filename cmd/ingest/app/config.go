package app

import (
	"fmt"
	"log/slog"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	ModeSinglePass Mode = "single"
	ModeConcurrent Mode = "concurrent"
)

// Mode selects the ingestion coordinator.
type Mode string

var validModes = map[Mode]struct{}{
	ModeSinglePass: {},
	ModeConcurrent: {},
}

// Config represents the main application configuration
type Config struct {
	Settings Settings      `yaml:"settings"`
	Ingest   IngestConfig  `yaml:"ingest"`
	Storage  StorageConfig `yaml:"storage"`
}

// Settings represents global application settings
type Settings struct {
	LogLevel string `yaml:"logLevel"`
}

// Level parses the configured log level, defaulting to info.
func (s Settings) Level() slog.Level {
	var level slog.Level
	if err := level.UnmarshalText([]byte(s.LogLevel)); err != nil {
		return slog.LevelInfo
	}
	return level
}

type TimeDuration time.Duration

func (d *TimeDuration) UnmarshalYAML(value *yaml.Node) error {
	duration, err := time.ParseDuration(value.Value)
	if err != nil {
		return fmt.Errorf("app.TimeDuration: failed to parse: %s", err)
	}

	*d = TimeDuration(duration)
	return nil
}

func (d *TimeDuration) MarshalYAML() (interface{}, error) {
	return time.Duration(*d).String(), nil
}

// IngestConfig represents ingestion pipeline settings
type IngestConfig struct {
	Mode              Mode         `yaml:"mode"`
	BatchSize         int          `yaml:"batchSize"`
	Workers           int          `yaml:"workers"`
	MessageQueueSize  int          `yaml:"messageQueueSize"`
	BatchQueueSize    int          `yaml:"batchQueueSize"`
	WorkerJoinTimeout TimeDuration `yaml:"workerJoinTimeout"`
	WriterJoinTimeout TimeDuration `yaml:"writerJoinTimeout"`
}

func (c IngestConfig) Validate() error {
	if _, ok := validModes[c.Mode]; !ok {
		return fmt.Errorf("ingest config: unknown mode '%s'", c.Mode)
	}
	// Zero falls through to the pipeline defaults.
	if c.BatchSize < 0 {
		return fmt.Errorf("ingest config: batch size must not be negative")
	}
	if c.Workers < 0 {
		return fmt.Errorf("ingest config: workers must not be negative")
	}
	return nil
}

// StorageConfig represents storage settings
type StorageConfig struct {
	DataDirectory string `yaml:"dataDirectory"`
	TelemetryDB   string `yaml:"telemetryDB"`
	SessionsDB    string `yaml:"sessionsDB"`
}

// LoadConfig reads and validates the YAML configuration at path.
func LoadConfig(path string) (*Config, error) {
	p, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading configuration: %w", err)
	}

	config := Config{
		Ingest: IngestConfig{
			Mode: ModeConcurrent,
		},
		Storage: StorageConfig{
			TelemetryDB: "telemetry.duckdb",
			SessionsDB:  "sessions.sqlite",
		},
	}
	if err = yaml.Unmarshal(p, &config); err != nil {
		return nil, fmt.Errorf("parsing configuration: %w", err)
	}

	if err = config.Ingest.Validate(); err != nil {
		return nil, err
	}
	return &config, nil
}
