package mavlink

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
)

const (
	// decodeErrorsThreshold defines the number of consecutive undecodable
	// frames tolerated before the stream is declared corrupt.
	decodeErrorsThreshold = 5
)

var (
	// ErrInvalidLog is returned when a file is not a recognized flight log
	// container.
	ErrInvalidLog = errors.New("not a recognized flight log")

	// ErrTooManyDecodeErrors is returned when the number of consecutive
	// frame decode errors exceeds the threshold.
	ErrTooManyDecodeErrors = errors.New("too many consecutive decode errors")
)

// DecodeError reports a file that could not be opened or decoded as a
// flight log container.
type DecodeError struct {
	Path string
	Err  error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("decoding %s: %s", e.Path, e.Err.Error())
}

func (e *DecodeError) Unwrap() error { return e.Err }

// Decoder produces a lazy, finite, non-restartable sequence of decoded
// messages from a flight log. Next returns io.EOF once the stream is
// exhausted. The decoder owns the underlying file handle; Close releases
// it and is safe to call more than once.
type Decoder interface {
	Next() (*Message, error)
	Close() error
}

// Open opens a flight log at path and returns a Decoder for it. The
// container format is selected by file extension: ".bin" is an ArduPilot
// DataFlash log, ".tlog" is a MAVLink telemetry log. Open fails with a
// *DecodeError wrapping ErrInvalidLog when the extension is unknown or the
// file does not start like a valid container.
func Open(path string) (Decoder, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".bin":
		return openDataFlash(path)
	case ".tlog":
		return openTelemetryLog(path)
	default:
		return nil, &DecodeError{Path: path, Err: fmt.Errorf("%w: unsupported extension %q", ErrInvalidLog, filepath.Ext(path))}
	}
}
