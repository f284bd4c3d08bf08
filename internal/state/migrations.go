package state

// migration holds a single schema migration with its target version and SQL.
type migration struct {
	version int
	sql     string
}

// migrations is the ordered list of schema migrations. Versions must be
// sequential starting from 1.
var migrations = []migration{
	{
		version: 1,
		sql: `
CREATE TABLE IF NOT EXISTS schema_version (
	version INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS watermarks (
	folder    TEXT PRIMARY KEY,
	last_uid  INTEGER NOT NULL DEFAULT 0
);

CREATE TABLE IF NOT EXISTS sessions (
	chat_key   TEXT PRIMARY KEY,
	uid        INTEGER NOT NULL,
	folder     TEXT NOT NULL,
	updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS stages (
	chat_key   TEXT PRIMARY KEY,
	stage      TEXT NOT NULL,
	payload    TEXT NOT NULL DEFAULT '{}',
	updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS languages (
	chat_key TEXT PRIMARY KEY,
	code     TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS snoozes (
	chat_key     TEXT NOT NULL,
	uid          INTEGER NOT NULL,
	folder       TEXT NOT NULL DEFAULT '',
	duration     TEXT NOT NULL DEFAULT '',
	requested_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
	PRIMARY KEY (chat_key, uid)
);

INSERT INTO schema_version (version) VALUES (1);
`,
	},
}
