package storage

const initSchemaSQL = `
CREATE TABLE IF NOT EXISTS sessions (
    id         INTEGER PRIMARY KEY AUTOINCREMENT,
    start_time TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
    source     TEXT      NOT NULL,
    config     TEXT
);

CREATE TABLE IF NOT EXISTS readings (
    id         INTEGER PRIMARY KEY AUTOINCREMENT,
    session_id INTEGER   NOT NULL REFERENCES sessions (id),
    timestamp  TIMESTAMP NOT NULL,
    protocol   TEXT      NOT NULL,
    device_id  TEXT      NOT NULL,
    metric     TEXT      NOT NULL,
    value      REAL      NOT NULL,
    unit       TEXT      NOT NULL DEFAULT '',
    suspect    INTEGER   NOT NULL DEFAULT 0
);`

const initIndexesSQL = `
CREATE INDEX IF NOT EXISTS idx_readings_session ON readings (session_id);
CREATE INDEX IF NOT EXISTS idx_readings_device ON readings (session_id, protocol, device_id);`

const (
	insertSessionSQL = `
INSERT INTO sessions (
                      start_time,
                      source,
                      config)
VALUES (CURRENT_TIMESTAMP, ?, ?)`

	selectSessionSQL = `
SELECT
    id,
    start_time,
    source,
    config
FROM sessions
WHERE
    id = ?`

	selectSessionsSQL = `
SELECT
    id,
    start_time,
    source,
    config
FROM sessions
ORDER BY start_time`

	insertReadingSQL = `
    INSERT INTO readings (
        session_id,
        timestamp,
        protocol,
        device_id,
        metric,
        value,
        unit,
        suspect
    )
    VALUES `

	selectReadingsSQL = `
SELECT
    timestamp,
    protocol,
    device_id,
    metric,
    value,
    unit,
    suspect
FROM readings
WHERE
    session_id = ?`
)
