package storage

// Analytical store schema (DuckDB). One table per channel, fixed column
// counts, session-scoped rows. Indexes are deferred until Close so bulk
// ingestion is not paying index maintenance per batch.
const (
	initChannelSchemaSQL = `
CREATE TABLE IF NOT EXISTS positions (
    session_id         VARCHAR NOT NULL,
    time_boot_ms       DOUBLE NOT NULL,
    timestamp_utc      TIMESTAMP,
    lat                DOUBLE,
    lon                DOUBLE,
    alt                DOUBLE,
    relative_alt       DOUBLE,
    vx                 DOUBLE,
    vy                 DOUBLE,
    vz                 DOUBLE,
    heading            DOUBLE,
    eph                DOUBLE,
    epv                DOUBLE,
    ground_speed       DOUBLE,
    course             DOUBLE,
    fix_type           BIGINT,
    satellites_visible BIGINT,
    dgps_numch         BIGINT,
    dgps_age           DOUBLE
);

CREATE TABLE IF NOT EXISTS attitudes (
    session_id    VARCHAR NOT NULL,
    time_boot_ms  DOUBLE NOT NULL,
    timestamp_utc TIMESTAMP,
    roll          DOUBLE,
    pitch         DOUBLE,
    yaw           DOUBLE,
    rollspeed     DOUBLE,
    pitchspeed    DOUBLE,
    yawspeed      DOUBLE
);

CREATE TABLE IF NOT EXISTS sensors (
    session_id    VARCHAR NOT NULL,
    time_boot_ms  DOUBLE NOT NULL,
    timestamp_utc TIMESTAMP,
    accel_x       DOUBLE,
    accel_y       DOUBLE,
    accel_z       DOUBLE,
    gyro_x        DOUBLE,
    gyro_y        DOUBLE,
    gyro_z        DOUBLE,
    mag_x         DOUBLE,
    mag_y         DOUBLE,
    mag_z         DOUBLE
);

CREATE TABLE IF NOT EXISTS events (
    session_id    VARCHAR NOT NULL,
    time_boot_ms  DOUBLE NOT NULL,
    timestamp_utc TIMESTAMP,
    event_type    BIGINT,
    description   VARCHAR,
    severity      BIGINT,
    parameters    VARCHAR
);

CREATE TABLE IF NOT EXISTS systems (
    session_id          VARCHAR NOT NULL,
    time_boot_ms        DOUBLE NOT NULL,
    timestamp_utc       TIMESTAMP,
    battery_voltage     DOUBLE,
    battery_current     DOUBLE,
    battery_remaining   BIGINT,
    battery_temperature DOUBLE,
    radio_rssi          BIGINT,
    radio_remrssi       BIGINT,
    radio_noise         BIGINT,
    radio_remnoise      BIGINT,
    mode                VARCHAR,
    armed               BOOLEAN
);`

	initChannelIndexesSQL = `
CREATE INDEX IF NOT EXISTS idx_positions_session_time ON positions (session_id, time_boot_ms);
CREATE INDEX IF NOT EXISTS idx_positions_session_utc  ON positions (session_id, timestamp_utc);
CREATE INDEX IF NOT EXISTS idx_attitudes_session_time ON attitudes (session_id, time_boot_ms);
CREATE INDEX IF NOT EXISTS idx_attitudes_session_utc  ON attitudes (session_id, timestamp_utc);
CREATE INDEX IF NOT EXISTS idx_sensors_session_time   ON sensors (session_id, time_boot_ms);
CREATE INDEX IF NOT EXISTS idx_sensors_session_utc    ON sensors (session_id, timestamp_utc);
CREATE INDEX IF NOT EXISTS idx_events_session_time    ON events (session_id, time_boot_ms);
CREATE INDEX IF NOT EXISTS idx_events_session_utc     ON events (session_id, timestamp_utc);
CREATE INDEX IF NOT EXISTS idx_systems_session_time   ON systems (session_id, time_boot_ms);
CREATE INDEX IF NOT EXISTS idx_systems_session_utc    ON systems (session_id, timestamp_utc);`

	selectPositionTrackSQL = `
SELECT
    time_boot_ms,
    timestamp_utc,
    lat,
    lon,
    alt,
    relative_alt,
    ground_speed
FROM positions
WHERE
    session_id = ?`
)

// Session metadata store schema (SQLite).
const (
	initSessionSchemaSQL = `
CREATE TABLE IF NOT EXISTS sessions (
    id                      TEXT PRIMARY KEY,
    file_name               TEXT NOT NULL,
    file_size               INTEGER NOT NULL,
    status                  TEXT NOT NULL,
    error                   TEXT,
    message_count           INTEGER NOT NULL DEFAULT 0,
    flight_duration_seconds REAL,
    vehicle_type            TEXT,
    autopilot_version       TEXT,
    flight_modes            TEXT,
    message_types           TEXT,
    created_at              TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
    finished_at             TIMESTAMP
);`

	insertSessionSQL = `
INSERT INTO sessions (
                      id,
                      file_name,
                      file_size,
                      status)
VALUES (?, ?, ?, ?)`

	finalizeSessionSQL = `
UPDATE sessions
SET status                  = ?,
    error                   = ?,
    message_count           = ?,
    flight_duration_seconds = ?,
    vehicle_type            = ?,
    autopilot_version       = ?,
    flight_modes            = ?,
    message_types           = ?,
    finished_at             = CURRENT_TIMESTAMP
WHERE
    id = ?`

	selectSessionSQL = `
SELECT
    id,
    file_name,
    file_size,
    status,
    error,
    message_count,
    flight_duration_seconds,
    vehicle_type,
    autopilot_version,
    flight_modes,
    message_types,
    created_at,
    finished_at
FROM sessions
WHERE
    id = ?`

	selectSessionsSQL = `
SELECT
    id,
    file_name,
    file_size,
    status,
    error,
    message_count,
    flight_duration_seconds,
    vehicle_type,
    autopilot_version,
    flight_modes,
    message_types,
    created_at,
    finished_at
FROM sessions
ORDER BY
    created_at`
)
