package resultstore

const schemaVersion = 1

// schema is the DDL of a result store. One row in fields holds one field of
// one increment for every material point, packed row-major.
var schema = `
CREATE TABLE IF NOT EXISTS schema_version (version INTEGER NOT NULL);

CREATE TABLE IF NOT EXISTS meta (
	key   TEXT PRIMARY KEY,
	value TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS increments (
	inc  INTEGER PRIMARY KEY,
	time REAL NOT NULL DEFAULT 0
);

CREATE TABLE IF NOT EXISTS fields (
	inc        INTEGER NOT NULL REFERENCES increments(inc),
	name       TEXT NOT NULL,
	components INTEGER NOT NULL,
	points     INTEGER NOT NULL,
	derived    INTEGER NOT NULL DEFAULT 0,
	data       BLOB NOT NULL,
	PRIMARY KEY (inc, name)
);
`
