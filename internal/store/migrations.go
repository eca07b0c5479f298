package store

const schema = `
CREATE TABLE IF NOT EXISTS runs (
    id              INTEGER PRIMARY KEY AUTOINCREMENT,
    origin          TEXT NOT NULL,
    start_date      TEXT NOT NULL,
    end_date        TEXT NOT NULL,
    currency        TEXT NOT NULL,
    weights         TEXT NOT NULL DEFAULT '{}',
    dropped         TEXT NOT NULL DEFAULT '[]',
    candidate_count INTEGER NOT NULL DEFAULT 0,
    triggered_by    TEXT NOT NULL DEFAULT '',
    created_at      DATETIME NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_runs_origin ON runs(origin);
CREATE INDEX IF NOT EXISTS idx_runs_created_at ON runs(created_at);

CREATE TABLE IF NOT EXISTS results (
    run_id            INTEGER NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
    position          INTEGER NOT NULL,
    origin            TEXT NOT NULL,
    destination       TEXT NOT NULL,
    start_date        TEXT NOT NULL,
    end_date          TEXT NOT NULL,
    currency          TEXT NOT NULL,
    flight_cost       REAL,
    avg_hotel_cost    REAL,
    total_cost        REAL,
    weather_score     REAL NOT NULL DEFAULT 0,
    activity_score    REAL NOT NULL DEFAULT 0,
    travel_time_hours REAL NOT NULL DEFAULT 0,
    lat               REAL NOT NULL DEFAULT 0,
    lon               REAL NOT NULL DEFAULT 0,
    norm_total_cost   REAL NOT NULL DEFAULT 0,
    norm_travel_time  REAL NOT NULL DEFAULT 0,
    score             REAL NOT NULL DEFAULT 0,
    fallbacks         TEXT NOT NULL DEFAULT '[]',
    PRIMARY KEY (run_id, position)
);

CREATE INDEX IF NOT EXISTS idx_results_destination ON results(destination);
`
