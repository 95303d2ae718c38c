// Package sqlite provides single-file SQLite persistence for local and
// single-node deployments.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	msqlite "modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	"github.com/JakeFAU/govjobs-pipeline/internal/jobs"
)

const schema = `
CREATE TABLE IF NOT EXISTS jobs (
	id                TEXT PRIMARY KEY,
	title             TEXT NOT NULL,
	department        TEXT NOT NULL,
	location          TEXT NOT NULL,
	qualification     TEXT NOT NULL,
	deadline          TEXT NOT NULL,
	apply_link        TEXT NOT NULL,
	posted_on         TEXT NOT NULL,
	source_url        TEXT NOT NULL,
	salary            TEXT NOT NULL DEFAULT '',
	age_limit         TEXT NOT NULL DEFAULT '',
	application_fee   TEXT NOT NULL DEFAULT '',
	description       TEXT NOT NULL DEFAULT '',
	selection_process TEXT NOT NULL DEFAULT '',
	positions         INTEGER NOT NULL DEFAULT 1,
	quality_score     REAL NOT NULL,
	created_at        INTEGER NOT NULL
);
CREATE UNIQUE INDEX IF NOT EXISTS jobs_identity_idx ON jobs (title, department, source_url);

CREATE TABLE IF NOT EXISTS extraction_logs (
	id            TEXT PRIMARY KEY,
	operator      TEXT NOT NULL,
	url           TEXT NOT NULL,
	template_id   TEXT NOT NULL DEFAULT '',
	status        TEXT NOT NULL,
	extracted     TEXT,
	validated     TEXT,
	error_text    TEXT NOT NULL DEFAULT '',
	elapsed_ms    INTEGER NOT NULL DEFAULT 0,
	job_id        TEXT NOT NULL DEFAULT '',
	quality_score REAL NOT NULL DEFAULT 0,
	created_at    INTEGER NOT NULL,
	finished_at   INTEGER,
	reviewed_by   TEXT NOT NULL DEFAULT '',
	reviewed_at   INTEGER
);
CREATE INDEX IF NOT EXISTS extraction_logs_status_idx ON extraction_logs (status, created_at);

CREATE TABLE IF NOT EXISTS extraction_templates (
	id         TEXT PRIMARY KEY,
	name       TEXT NOT NULL,
	domain     TEXT NOT NULL,
	fields     TEXT NOT NULL,
	active     INTEGER NOT NULL DEFAULT 1,
	updated_at INTEGER NOT NULL
)`

// Open opens (or creates) the database at path and ensures the schema exists.
func Open(ctx context.Context, path string) (*sql.DB, error) {
	if path == "" {
		return nil, fmt.Errorf("storage.path is required")
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening sqlite db: %w", err)
	}
	// SQLite allows a single writer.
	db.SetMaxOpenConns(1)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("pinging sqlite db: %w", err)
	}
	if _, err := db.ExecContext(ctx, schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}
	return db, nil
}

func isConstraintViolation(err error) bool {
	var se *msqlite.Error
	return errors.As(err, &se) && se.Code()&0xff == sqlite3.SQLITE_CONSTRAINT
}

func toUnix(t time.Time) int64 {
	return t.UnixNano()
}

func fromUnix(n int64) time.Time {
	return time.Unix(0, n).UTC()
}

func nullableUnix(t time.Time) sql.NullInt64 {
	if t.IsZero() {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: t.UnixNano(), Valid: true}
}

func fromNullable(n sql.NullInt64) *time.Time {
	if !n.Valid {
		return nil
	}
	t := fromUnix(n.Int64)
	return &t
}

func marshalExtraction(raw jobs.RawExtraction) (sql.NullString, error) {
	if raw == nil {
		return sql.NullString{}, nil
	}
	data, err := json.Marshal(raw)
	if err != nil {
		return sql.NullString{}, fmt.Errorf("marshal extraction: %w", err)
	}
	return sql.NullString{String: string(data), Valid: true}, nil
}

func unmarshalExtraction(s sql.NullString) (jobs.RawExtraction, error) {
	if !s.Valid || s.String == "" {
		return nil, nil
	}
	var raw jobs.RawExtraction
	if err := json.Unmarshal([]byte(s.String), &raw); err != nil {
		return nil, err
	}
	return raw, nil
}
