// Package store provides SQLite-backed persistence for the Gatewright engine.
package store

import (
	"context"
	"database/sql"
	"fmt"

	_ "modernc.org/sqlite"
)

// schemaV1 defines the initial database schema.
//
// decision_log, evidence_log, and rule_register are append-only: rows are
// inserted and never updated or deleted, except for the superseded flag on
// evidence rows, which only ever flips from 0 to 1.
const schemaV1 = `
CREATE TABLE IF NOT EXISTS sessions (
	session_id        TEXT PRIMARY KEY,
	ticket_id         TEXT NOT NULL,
	run_id            TEXT NOT NULL,
	phase             TEXT NOT NULL DEFAULT 'bootstrap',
	mode              TEXT NOT NULL DEFAULT 'NORMAL',
	status            TEXT NOT NULL DEFAULT 'active',
	confidence        INTEGER NOT NULL DEFAULT 0,
	reason_code       TEXT NOT NULL DEFAULT '',
	plan_json         TEXT NOT NULL DEFAULT '',
	plan_hash         TEXT NOT NULL DEFAULT '',
	pinned_plan_hash  TEXT NOT NULL DEFAULT '',
	ruleset_hash      TEXT NOT NULL DEFAULT '',
	repo_facts_hash   TEXT NOT NULL DEFAULT '',
	manifests_hash    TEXT NOT NULL DEFAULT '',
	state_version     INTEGER NOT NULL DEFAULT 1,
	last_decision_seq INTEGER NOT NULL DEFAULT 0,
	updated_at_unix   INTEGER NOT NULL DEFAULT 0
);
CREATE UNIQUE INDEX IF NOT EXISTS idx_sessions_scope ON sessions(ticket_id, run_id);

CREATE TABLE IF NOT EXISTS decision_log (
	id           INTEGER PRIMARY KEY AUTOINCREMENT,
	session_id   TEXT NOT NULL,
	seq_no       INTEGER NOT NULL,
	phase        TEXT NOT NULL,
	event_type   TEXT NOT NULL,
	payload_json TEXT NOT NULL DEFAULT '{}',
	created_at   INTEGER NOT NULL,
	UNIQUE(session_id, seq_no)
);
CREATE INDEX IF NOT EXISTS idx_decisions_session_seq ON decision_log(session_id, seq_no);

CREATE TABLE IF NOT EXISTS evidence_log (
	evidence_id   TEXT PRIMARY KEY,
	claim_kind    TEXT NOT NULL,
	kind          TEXT NOT NULL,
	source        TEXT NOT NULL DEFAULT '',
	outcome       TEXT NOT NULL,
	snippet_ref   TEXT NOT NULL DEFAULT '',
	ticket_id     TEXT NOT NULL,
	run_id        TEXT NOT NULL,
	supersedes_id TEXT NOT NULL DEFAULT '',
	superseded    INTEGER NOT NULL DEFAULT 0,
	seq_no        INTEGER NOT NULL,
	recorded_at   INTEGER NOT NULL,
	UNIQUE(ticket_id, run_id, seq_no)
);
CREATE INDEX IF NOT EXISTS idx_evidence_scope_claim ON evidence_log(ticket_id, run_id, claim_kind);

CREATE TABLE IF NOT EXISTS gate_results (
	id           INTEGER PRIMARY KEY AUTOINCREMENT,
	session_id   TEXT NOT NULL,
	gate_id      TEXT NOT NULL,
	decision     TEXT NOT NULL,
	score        INTEGER NOT NULL DEFAULT 0,
	max_score    INTEGER NOT NULL DEFAULT 0,
	trace_json   TEXT NOT NULL DEFAULT '[]',
	plan_hash    TEXT NOT NULL DEFAULT '',
	evaluated_at INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_gate_results_session ON gate_results(session_id, gate_id);

CREATE TABLE IF NOT EXISTS rule_register (
	id         INTEGER PRIMARY KEY AUTOINCREMENT,
	rule_id    TEXT NOT NULL,
	status     TEXT NOT NULL,
	body       TEXT NOT NULL DEFAULT '',
	created_at INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_rule_register_rule ON rule_register(rule_id, id);
`

// NewDB opens a SQLite database at the given path with recommended pragmas
// and runs the V1 schema migration.
func NewDB(path string) (*sql.DB, error) {
	dsn := fmt.Sprintf("file:%s?_pragma=journal_mode(WAL)&_pragma=synchronous(NORMAL)&_pragma=foreign_keys(ON)&_pragma=busy_timeout(5000)", path)

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	// Limit connections to 1 for SQLite (WAL allows concurrent reads but single writer).
	db.SetMaxOpenConns(1)

	if err := migrate(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate schema: %w", err)
	}

	return db, nil
}

func migrate(db *sql.DB) error {
	_, err := db.ExecContext(context.Background(), schemaV1)
	return err
}
