package storage

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"
)

// TrackPoint is one position sample of a session's flight track, as read
// back for rendering and analysis.
type TrackPoint struct {
	TimeBootMS   float64
	TimestampUTC *time.Time
	Lat          *float64
	Lon          *float64
	Alt          *float64
	RelativeAlt  *float64
	GroundSpeed  *float64
}

type trackQuery struct {
	minTimeMS *float64
	maxTimeMS *float64
	fixOnly   bool
}

// TrackOption configures a PositionTrack read.
type TrackOption func(*trackQuery)

// WithTimeRange limits the track to samples within [minMS, maxMS]
// time_boot_ms.
func WithTimeRange(minMS, maxMS float64) TrackOption {
	return func(q *trackQuery) {
		q.minTimeMS = &minMS
		q.maxTimeMS = &maxMS
	}
}

// WithFixOnly drops samples without a latitude/longitude fix.
func WithFixOnly() TrackOption {
	return func(q *trackQuery) {
		q.fixOnly = true
	}
}

// PositionTrack reads the session's position samples ordered by
// time_boot_ms.
func (s *DuckDBStore) PositionTrack(ctx context.Context, sessionID string, opts ...TrackOption) (points []TrackPoint, err error) {
	var q trackQuery
	for _, opt := range opts {
		opt(&q)
	}

	db, err := s.getDB()
	if err != nil {
		err = fmt.Errorf("getting connection: %w", err)
		return
	}

	var sb strings.Builder
	sb.WriteString(selectPositionTrackSQL)

	args := []any{sessionID}
	if q.minTimeMS != nil {
		sb.WriteString(" AND time_boot_ms >= ?")
		args = append(args, *q.minTimeMS)
	}
	if q.maxTimeMS != nil {
		sb.WriteString(" AND time_boot_ms <= ?")
		args = append(args, *q.maxTimeMS)
	}
	if q.fixOnly {
		sb.WriteString(" AND lat IS NOT NULL AND lon IS NOT NULL")
	}
	sb.WriteString(" ORDER BY time_boot_ms")

	rows, err := db.QueryContext(ctx, sb.String(), args...)
	if err != nil {
		err = fmt.Errorf("querying positions: %w", err)
		return
	}
	defer closeWithError(rows, &err)

	for rows.Next() {
		var p TrackPoint
		var timestamp sql.NullTime
		var lat, lon, alt, relAlt, speed sql.NullFloat64

		if err = rows.Scan(&p.TimeBootMS, &timestamp, &lat, &lon, &alt, &relAlt, &speed); err != nil {
			err = fmt.Errorf("scanning position: %w", err)
			return
		}

		p.TimestampUTC = fromNullTime(timestamp)
		p.Lat = fromNullFloat(lat)
		p.Lon = fromNullFloat(lon)
		p.Alt = fromNullFloat(alt)
		p.RelativeAlt = fromNullFloat(relAlt)
		p.GroundSpeed = fromNullFloat(speed)
		points = append(points, p)
	}
	if err = rows.Err(); err != nil {
		err = fmt.Errorf("reading positions: %w", err)
	}
	return
}
