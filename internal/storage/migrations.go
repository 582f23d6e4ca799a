package storage

const schemaVersion = 1

// All timestamps are integer unix seconds, UTC. Intervals are half-open
// [start, end).
const schema = `
CREATE TABLE IF NOT EXISTS schema_version (
	version INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS monitors (
	id                         INTEGER PRIMARY KEY AUTOINCREMENT,
	name                       TEXT    NOT NULL,
	type                       TEXT    NOT NULL,
	target                     TEXT    NOT NULL,
	interval_sec               INTEGER NOT NULL DEFAULT 60,
	timeout_ms                 INTEGER NOT NULL DEFAULT 5000,
	is_active                  INTEGER NOT NULL DEFAULT 1,
	http_method                TEXT,
	http_headers               TEXT,
	http_body                  TEXT,
	expected_status            TEXT,
	response_keyword           TEXT,
	response_forbidden_keyword TEXT,
	created_at                 INTEGER NOT NULL,
	updated_at                 INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS monitor_states (
	monitor_id            INTEGER PRIMARY KEY REFERENCES monitors(id) ON DELETE CASCADE,
	status                TEXT    NOT NULL DEFAULT 'unknown',
	last_checked_at       INTEGER,
	last_changed_at       INTEGER,
	last_latency_ms       INTEGER,
	last_error            TEXT    NOT NULL DEFAULT '',
	consecutive_failures  INTEGER NOT NULL DEFAULT 0,
	consecutive_successes INTEGER NOT NULL DEFAULT 0
);

CREATE TABLE IF NOT EXISTS check_results (
	id          INTEGER PRIMARY KEY AUTOINCREMENT,
	monitor_id  INTEGER NOT NULL REFERENCES monitors(id) ON DELETE CASCADE,
	checked_at  INTEGER NOT NULL,
	status      TEXT    NOT NULL,
	latency_ms  INTEGER,
	http_status INTEGER,
	error       TEXT    NOT NULL DEFAULT '',
	attempt     INTEGER NOT NULL DEFAULT 1,
	location    TEXT
);

CREATE INDEX IF NOT EXISTS idx_check_results_monitor ON check_results(monitor_id, checked_at DESC);
CREATE INDEX IF NOT EXISTS idx_check_results_checked_at ON check_results(checked_at);

CREATE TABLE IF NOT EXISTS outages (
	id            INTEGER PRIMARY KEY AUTOINCREMENT,
	monitor_id    INTEGER NOT NULL REFERENCES monitors(id) ON DELETE CASCADE,
	started_at    INTEGER NOT NULL,
	ended_at      INTEGER,
	initial_error TEXT    NOT NULL DEFAULT '',
	last_error    TEXT    NOT NULL DEFAULT ''
);

CREATE UNIQUE INDEX IF NOT EXISTS idx_outages_ongoing ON outages(monitor_id) WHERE ended_at IS NULL;
CREATE INDEX IF NOT EXISTS idx_outages_monitor ON outages(monitor_id, started_at DESC);

CREATE TABLE IF NOT EXISTS incidents (
	id          INTEGER PRIMARY KEY AUTOINCREMENT,
	title       TEXT    NOT NULL,
	status      TEXT    NOT NULL DEFAULT 'investigating',
	impact      TEXT    NOT NULL DEFAULT 'none',
	message     TEXT    NOT NULL DEFAULT '',
	started_at  INTEGER NOT NULL,
	resolved_at INTEGER,
	created_at  INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS incident_monitors (
	incident_id INTEGER NOT NULL REFERENCES incidents(id) ON DELETE CASCADE,
	monitor_id  INTEGER NOT NULL,
	PRIMARY KEY (incident_id, monitor_id)
);

CREATE TABLE IF NOT EXISTS incident_updates (
	id          INTEGER PRIMARY KEY AUTOINCREMENT,
	incident_id INTEGER NOT NULL REFERENCES incidents(id) ON DELETE CASCADE,
	status      TEXT    NOT NULL DEFAULT '',
	message     TEXT    NOT NULL,
	created_at  INTEGER NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_incident_updates_incident ON incident_updates(incident_id);

CREATE TABLE IF NOT EXISTS maintenance_windows (
	id         INTEGER PRIMARY KEY AUTOINCREMENT,
	title      TEXT    NOT NULL,
	message    TEXT    NOT NULL DEFAULT '',
	starts_at  INTEGER NOT NULL,
	ends_at    INTEGER NOT NULL,
	created_at INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS maintenance_monitors (
	maintenance_id INTEGER NOT NULL REFERENCES maintenance_windows(id) ON DELETE CASCADE,
	monitor_id     INTEGER NOT NULL,
	PRIMARY KEY (maintenance_id, monitor_id)
);

CREATE TABLE IF NOT EXISTS notification_channels (
	id          INTEGER PRIMARY KEY AUTOINCREMENT,
	name        TEXT    NOT NULL,
	type        TEXT    NOT NULL DEFAULT 'webhook',
	config_json TEXT    NOT NULL DEFAULT '{}',
	is_active   INTEGER NOT NULL DEFAULT 1,
	created_at  INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS notification_deliveries (
	id          INTEGER PRIMARY KEY AUTOINCREMENT,
	event_key   TEXT    NOT NULL,
	channel_id  INTEGER NOT NULL REFERENCES notification_channels(id) ON DELETE CASCADE,
	status      TEXT    NOT NULL DEFAULT 'pending',
	http_status INTEGER,
	error       TEXT    NOT NULL DEFAULT '',
	created_at  INTEGER NOT NULL,
	UNIQUE (event_key, channel_id)
);

CREATE TABLE IF NOT EXISTS monitor_daily_rollups (
	monitor_id             INTEGER NOT NULL REFERENCES monitors(id) ON DELETE CASCADE,
	day_start_at           INTEGER NOT NULL,
	total_sec              INTEGER NOT NULL,
	downtime_sec           INTEGER NOT NULL,
	unknown_sec            INTEGER NOT NULL,
	uptime_sec             INTEGER NOT NULL,
	checks_total           INTEGER NOT NULL,
	checks_up              INTEGER NOT NULL,
	checks_down            INTEGER NOT NULL,
	checks_unknown         INTEGER NOT NULL,
	checks_maintenance     INTEGER NOT NULL,
	avg_latency_ms         INTEGER,
	p50_latency_ms         INTEGER,
	p95_latency_ms         INTEGER,
	latency_histogram_json TEXT    NOT NULL DEFAULT '[]',
	PRIMARY KEY (monitor_id, day_start_at)
);

CREATE TABLE IF NOT EXISTS locks (
	name       TEXT PRIMARY KEY,
	expires_at INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS public_snapshots (
	key          TEXT PRIMARY KEY,
	generated_at INTEGER NOT NULL,
	body_json    TEXT    NOT NULL,
	updated_at   INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS settings (
	key   TEXT PRIMARY KEY,
	value TEXT NOT NULL
);
`

type migration struct {
	version int
	sql     string
}

// Incremental migrations applied on top of the base schema.
var migrations = []migration{}
