package mavlink

import (
	"bufio"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"strings"
	"sync"
)

// ArduPilot DataFlash logs are a stream of self-describing binary records.
// Every record starts with a two-byte header followed by a one-byte message
// type; FMT records (type 0x80) declare the name, length, format string and
// column names of every other record type appearing in the log.
const (
	dfHead1   = 0xA3
	dfHead2   = 0x95
	dfFmtType = 0x80

	dfFmtPayloadLen = 86 // Type + Length + Name[4] + Format[16] + Columns[64]
)

// dfFieldSizes maps a DataFlash format character to its encoded size in
// bytes. Characters absent from this table make the whole record type
// undecodable and its FMT declaration is ignored.
var dfFieldSizes = map[byte]int{
	'a': 64, // int16_t[32]
	'b': 1,  // int8_t
	'B': 1,  // uint8_t
	'h': 2,  // int16_t
	'H': 2,  // uint16_t
	'i': 4,  // int32_t
	'I': 4,  // uint32_t
	'f': 4,  // float
	'd': 8,  // double
	'n': 4,  // char[4]
	'N': 16, // char[16]
	'Z': 64, // char[64]
	'c': 2,  // int16_t * 100
	'C': 2,  // uint16_t * 100
	'e': 4,  // int32_t * 100
	'E': 4,  // uint32_t * 100
	'L': 4,  // int32_t latitude/longitude, 1e7 scaled
	'M': 1,  // uint8_t flight mode
	'q': 8,  // int64_t
	'Q': 8,  // uint64_t
}

type dfFormat struct {
	name       string
	payloadLen int
	kinds      []byte
	columns    []string
}

type dataFlashDecoder struct {
	f *os.File
	r *bufio.Reader

	formats    map[byte]*dfFormat
	lastTimeMS float64
	errCount   int

	closeOnce sync.Once
	closeErr  error
}

func openDataFlash(path string) (Decoder, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, &DecodeError{Path: path, Err: err}
	}

	r := bufio.NewReaderSize(f, 64*1024)

	// A valid log starts with a record header, in practice the FMT record
	// describing FMT itself.
	head, err := r.Peek(2)
	if err != nil || head[0] != dfHead1 || head[1] != dfHead2 {
		_ = f.Close()
		return nil, &DecodeError{Path: path, Err: fmt.Errorf("%w: missing DataFlash header", ErrInvalidLog)}
	}

	d := dataFlashDecoder{
		f:       f,
		r:       r,
		formats: make(map[byte]*dfFormat),
	}

	// FMT describes every record type including itself; seed it so the
	// first record of the log can be decoded.
	d.formats[dfFmtType] = &dfFormat{
		name:       "FMT",
		payloadLen: dfFmtPayloadLen,
		kinds:      []byte{'B', 'B', 'n', 'N', 'Z'},
		columns:    []string{"Type", "Length", "Name", "Format", "Columns"},
	}

	return &d, nil
}

func (d *dataFlashDecoder) Next() (*Message, error) {
	for {
		if err := d.sync(); err != nil {
			return nil, eofOrWrap(err)
		}

		typ, err := d.r.ReadByte()
		if err != nil {
			return nil, eofOrWrap(err)
		}

		format, ok := d.formats[typ]
		if !ok {
			// No FMT declaration seen for this type: the record length is
			// unknown, so skip ahead to the next header.
			if err = d.recordError(fmt.Errorf("unknown record type 0x%02X", typ)); err != nil {
				return nil, err
			}
			continue
		}

		payload := make([]byte, format.payloadLen)
		if _, err = io.ReadFull(d.r, payload); err != nil {
			// A truncated trailing record is normal for logs cut by power
			// loss; treat it as end of stream.
			return nil, eofOrWrap(err)
		}

		fields, err := d.decodePayload(format, payload)
		if err != nil {
			if err = d.recordError(err); err != nil {
				return nil, err
			}
			continue
		}
		d.errCount = 0

		if typ == dfFmtType {
			d.registerFormat(fields)
		}

		return &Message{
			Type:       format.name,
			TimeBootMS: d.timeBootMS(fields),
			Fields:     fields,
		}, nil
	}
}

// sync advances the reader to the byte just past the next record header.
func (d *dataFlashDecoder) sync() error {
	for {
		b, err := d.r.ReadByte()
		if err != nil {
			return err
		}
		if b != dfHead1 {
			continue
		}

		b, err = d.r.ReadByte()
		if err != nil {
			return err
		}
		if b == dfHead2 {
			return nil
		}
		if b == dfHead1 {
			_ = d.r.UnreadByte() // may start the real header
		}
	}
}

func (d *dataFlashDecoder) recordError(err error) error {
	d.errCount++
	if d.errCount >= decodeErrorsThreshold {
		return fmt.Errorf("%w: %w", ErrTooManyDecodeErrors, err)
	}
	return nil
}

func (d *dataFlashDecoder) decodePayload(format *dfFormat, payload []byte) (map[string]any, error) {
	fields := make(map[string]any, len(format.columns))

	offset := 0
	for i, kind := range format.kinds {
		size := dfFieldSizes[kind]
		if offset+size > len(payload) {
			return nil, fmt.Errorf("record %s: field %s overruns payload", format.name, format.columns[i])
		}

		fields[format.columns[i]] = decodeDataFlashField(kind, payload[offset:offset+size])
		offset += size
	}

	return fields, nil
}

func decodeDataFlashField(kind byte, data []byte) any {
	switch kind {
	case 'b':
		return int64(int8(data[0]))
	case 'B', 'M':
		return int64(data[0])
	case 'h':
		return int64(int16(binary.LittleEndian.Uint16(data)))
	case 'H':
		return int64(binary.LittleEndian.Uint16(data))
	case 'i', 'L':
		return int64(int32(binary.LittleEndian.Uint32(data)))
	case 'I':
		return int64(binary.LittleEndian.Uint32(data))
	case 'q', 'Q':
		return int64(binary.LittleEndian.Uint64(data))
	case 'f':
		return float64(math.Float32frombits(binary.LittleEndian.Uint32(data)))
	case 'd':
		return math.Float64frombits(binary.LittleEndian.Uint64(data))
	case 'c':
		return float64(int16(binary.LittleEndian.Uint16(data))) * 0.01
	case 'C':
		return float64(binary.LittleEndian.Uint16(data)) * 0.01
	case 'e':
		return float64(int32(binary.LittleEndian.Uint32(data))) * 0.01
	case 'E':
		return float64(binary.LittleEndian.Uint32(data)) * 0.01
	case 'n', 'N', 'Z':
		return trimNul(data)
	case 'a':
		values := make([]int64, 0, len(data)/2)
		for i := 0; i+1 < len(data); i += 2 {
			values = append(values, int64(int16(binary.LittleEndian.Uint16(data[i:]))))
		}
		return values
	default:
		return nil
	}
}

// registerFormat records the declaration carried by a decoded FMT record.
// Declarations with unknown format characters or impossible lengths are
// ignored, leaving their record type undecodable.
func (d *dataFlashDecoder) registerFormat(fields map[string]any) {
	typ, ok := fields["Type"].(int64)
	if !ok || typ <= 0 || typ > 0xFF {
		return
	}
	length, ok := fields["Length"].(int64)
	if !ok || length <= 3 {
		return
	}
	name, _ := fields["Name"].(string)
	formatStr, _ := fields["Format"].(string)
	columnsStr, _ := fields["Columns"].(string)
	if name == "" || formatStr == "" {
		return
	}

	columns := strings.Split(columnsStr, ",")
	if len(columns) != len(formatStr) {
		return
	}

	kinds := make([]byte, 0, len(formatStr))
	total := 0
	for i := 0; i < len(formatStr); i++ {
		size, ok := dfFieldSizes[formatStr[i]]
		if !ok {
			return
		}
		kinds = append(kinds, formatStr[i])
		total += size
	}
	if total != int(length)-3 {
		return
	}

	d.formats[byte(typ)] = &dfFormat{
		name:       name,
		payloadLen: total,
		kinds:      kinds,
		columns:    columns,
	}
}

func (d *dataFlashDecoder) timeBootMS(fields map[string]any) float64 {
	if us, ok := fields["TimeUS"].(int64); ok {
		d.lastTimeMS = float64(us) / 1000.0
	} else if ms, ok := fields["TimeMS"].(int64); ok {
		d.lastTimeMS = float64(ms)
	}
	return d.lastTimeMS
}

func (d *dataFlashDecoder) Close() error {
	d.closeOnce.Do(func() {
		d.closeErr = d.f.Close()
	})
	return d.closeErr
}

func trimNul(data []byte) string {
	if i := strings.IndexByte(string(data), 0); i >= 0 {
		return string(data[:i])
	}
	return string(data)
}

func eofOrWrap(err error) error {
	if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
		return io.EOF
	}
	return fmt.Errorf("reading log: %w", err)
}
