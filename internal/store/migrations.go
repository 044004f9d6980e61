package store

// migration holds a single schema migration with its target version and SQL.
type migration struct {
	version int
	sql     string
}

// migrations is the ordered list of schema migrations.
// Each migration's version must be sequential starting from 1.
var migrations = []migration{
	{
		version: 1,
		sql: `
CREATE TABLE IF NOT EXISTS schema_version (
	version INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS kv (
	key        TEXT PRIMARY KEY,
	value      TEXT NOT NULL,
	updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);

INSERT INTO schema_version (version) VALUES (1);
`,
	},
	{
		version: 2,
		sql: `
CREATE TABLE IF NOT EXISTS dispatch_log (
	channel      TEXT NOT NULL,
	content_hash TEXT NOT NULL,
	event_id     TEXT NOT NULL,
	sent_at      INTEGER NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_dispatch_log_lookup
	ON dispatch_log(channel, content_hash, sent_at);

INSERT INTO schema_version (version) VALUES (2);
`,
	},
}
