package sqlite

const schemaVersion = 2

const schema = `
CREATE TABLE IF NOT EXISTS schema_version (
	version INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS targets (
	id           INTEGER PRIMARY KEY AUTOINCREMENT,
	name         TEXT NOT NULL,
	url          TEXT NOT NULL,
	method       TEXT NOT NULL DEFAULT 'GET',
	timeout_ms   INTEGER NOT NULL DEFAULT 5000,
	request_body TEXT NOT NULL DEFAULT '',
	enabled      INTEGER NOT NULL DEFAULT 1,
	environment  TEXT NOT NULL DEFAULT '',
	description  TEXT NOT NULL DEFAULT '',
	created_at   TEXT NOT NULL,
	updated_at   TEXT NOT NULL,
	UNIQUE (name, environment)
);

CREATE TABLE IF NOT EXISTS execution_logs (
	id            INTEGER PRIMARY KEY AUTOINCREMENT,
	target_id     INTEGER NOT NULL DEFAULT 0,
	server_name   TEXT NOT NULL,
	url           TEXT NOT NULL,
	method        TEXT NOT NULL,
	success       INTEGER NOT NULL,
	status_code   INTEGER NOT NULL DEFAULT 0,
	elapsed_ms    INTEGER NOT NULL DEFAULT 0,
	error_message TEXT NOT NULL DEFAULT '',
	response_body TEXT NOT NULL DEFAULT '',
	executed_at   TEXT NOT NULL,
	run_id        TEXT NOT NULL,
	environment   TEXT NOT NULL DEFAULT ''
);

CREATE INDEX IF NOT EXISTS idx_logs_executed_at ON execution_logs(executed_at);
CREATE INDEX IF NOT EXISTS idx_logs_run_id ON execution_logs(run_id);
CREATE INDEX IF NOT EXISTS idx_logs_server_name ON execution_logs(server_name);
CREATE INDEX IF NOT EXISTS idx_logs_success_time ON execution_logs(success, executed_at);
`

type migration struct {
	version int
	sql     string
}

// migrations upgrade databases created by older builds. Fresh databases get
// the full schema and skip them.
var migrations = []migration{
	{2, `CREATE INDEX IF NOT EXISTS idx_logs_success_time ON execution_logs(success, executed_at);`},
}
