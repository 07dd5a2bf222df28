package app

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("Failed to write config: %v", err)
	}
	return path
}

func TestLoadConfig(t *testing.T) {
	path := writeConfig(t, `
settings:
  logLevel: debug
ingest:
  mode: concurrent
  batchSize: 500
  workers: 2
  workerJoinTimeout: 5s
  writerJoinTimeout: 30s
storage:
  dataDirectory: flights
`)

	config, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig() failed: %v", err)
	}

	if config.Settings.Level() != slog.LevelDebug {
		t.Errorf("Level() = %v, want debug", config.Settings.Level())
	}
	if config.Ingest.Mode != ModeConcurrent {
		t.Errorf("Mode = %q, want concurrent", config.Ingest.Mode)
	}
	if config.Ingest.BatchSize != 500 {
		t.Errorf("BatchSize = %d, want 500", config.Ingest.BatchSize)
	}
	if time.Duration(config.Ingest.WorkerJoinTimeout) != 5*time.Second {
		t.Errorf("WorkerJoinTimeout = %v, want 5s", config.Ingest.WorkerJoinTimeout)
	}
	if config.Storage.DataDirectory != "flights" {
		t.Errorf("DataDirectory = %q, want flights", config.Storage.DataDirectory)
	}

	// Defaults survive a partial config
	if config.Storage.TelemetryDB != "telemetry.duckdb" {
		t.Errorf("TelemetryDB = %q, want telemetry.duckdb", config.Storage.TelemetryDB)
	}
}

func TestLoadConfig_Defaults(t *testing.T) {
	path := writeConfig(t, "settings: {}\n")

	config, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig() failed: %v", err)
	}
	if config.Ingest.Mode != ModeConcurrent {
		t.Errorf("default Mode = %q, want concurrent", config.Ingest.Mode)
	}
	if config.Settings.Level() != slog.LevelInfo {
		t.Errorf("default Level() = %v, want info", config.Settings.Level())
	}
}

func TestLoadConfig_NegativeSizes(t *testing.T) {
	tests := []struct {
		name    string
		content string
		wantErr bool
	}{
		{"negative batch size", "ingest:\n  batchSize: -1\n", true},
		{"negative workers", "ingest:\n  workers: -4\n", true},
		{"zero falls through to defaults", "ingest:\n  batchSize: 0\n  workers: 0\n", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadConfig(writeConfig(t, tt.content))
			if tt.wantErr && err == nil {
				t.Error("LoadConfig() accepted an invalid config")
			}
			if !tt.wantErr && err != nil {
				t.Errorf("LoadConfig() failed: %v", err)
			}
		})
	}
}

func TestLoadConfig_InvalidMode(t *testing.T) {
	path := writeConfig(t, "ingest:\n  mode: turbo\n")

	if _, err := LoadConfig(path); err == nil {
		t.Error("LoadConfig() accepted an unknown mode")
	}
}
