package store

// schemaVersionV1 stored decisions without the rule that fired.
const schemaVersionV1 = 1

// schemaVersionV2 adds the rule column and a run index.
const schemaVersionV2 = 2

var schemaV1 = `
CREATE TABLE IF NOT EXISTS schema_version (version INTEGER NOT NULL);
CREATE TABLE IF NOT EXISTS decisions (
	id          INTEGER PRIMARY KEY AUTOINCREMENT,
	run_id      TEXT NOT NULL,
	repo_owner  TEXT NOT NULL,
	repo_name   TEXT NOT NULL,
	pr_number   INTEGER NOT NULL,
	status      TEXT NOT NULL,
	confidence  INTEGER NOT NULL,
	risk_score  REAL NOT NULL,
	coverage    REAL NOT NULL,
	pass_rate   REAL NOT NULL,
	payload     TEXT NOT NULL,
	created_at  TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_decisions_pr ON decisions(repo_owner, repo_name, pr_number);
`

var schemaV2 = `
CREATE TABLE IF NOT EXISTS schema_version (version INTEGER NOT NULL);
CREATE TABLE IF NOT EXISTS decisions (
	id          INTEGER PRIMARY KEY AUTOINCREMENT,
	run_id      TEXT NOT NULL,
	repo_owner  TEXT NOT NULL,
	repo_name   TEXT NOT NULL,
	pr_number   INTEGER NOT NULL,
	status      TEXT NOT NULL,
	confidence  INTEGER NOT NULL,
	rule        TEXT NOT NULL DEFAULT '',
	risk_score  REAL NOT NULL,
	coverage    REAL NOT NULL,
	pass_rate   REAL NOT NULL,
	payload     TEXT NOT NULL,
	created_at  TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_decisions_pr ON decisions(repo_owner, repo_name, pr_number);
CREATE INDEX IF NOT EXISTS idx_decisions_run ON decisions(run_id);
`

var migrationV1ToV2 = `
ALTER TABLE decisions ADD COLUMN rule TEXT NOT NULL DEFAULT '';
UPDATE decisions SET rule = COALESCE(json_extract(payload, '$.rule'), '');
CREATE INDEX IF NOT EXISTS idx_decisions_run ON decisions(run_id);
UPDATE schema_version SET version = 2;
`
