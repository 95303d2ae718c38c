package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/JakeFAU/govjobs-pipeline/internal/jobs"
)

const logColumns = `id, operator, url, template_id, status, extracted, validated, error_text,
	elapsed_ms, job_id, quality_score, created_at, finished_at, reviewed_by, reviewed_at`

// LogStore persists processing-log entries.
type LogStore struct {
	db DB
}

// NewLogStore wraps db.
func NewLogStore(db DB) (*LogStore, error) {
	if db == nil {
		return nil, fmt.Errorf("pool is required")
	}
	return &LogStore{db: db}, nil
}

// Create inserts a processing entry.
func (s *LogStore) Create(ctx context.Context, entry jobs.LogEntry) error {
	_, err := s.db.Exec(ctx, `INSERT INTO extraction_logs (id, operator, url, template_id, status, created_at)
VALUES ($1, $2, $3, $4, $5, $6)`,
		entry.ID, entry.Operator, entry.URL, entry.TemplateID, string(entry.Status), entry.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert log entry: %w", err)
	}
	return nil
}

// Complete applies the terminal transition for a processing entry.
func (s *LogStore) Complete(ctx context.Context, id string, done jobs.LogCompletion) error {
	extracted, err := marshalExtraction(done.Extracted)
	if err != nil {
		return err
	}
	tag, err := s.db.Exec(ctx, `UPDATE extraction_logs SET
	status = $2,
	extracted = $3,
	error_text = $4,
	elapsed_ms = $5,
	job_id = $6,
	template_id = COALESCE(NULLIF($7, ''), template_id),
	quality_score = $8,
	finished_at = $9
WHERE id = $1 AND status = 'processing'`,
		id,
		string(done.Status),
		extracted,
		done.ErrorText,
		done.ElapsedMs,
		done.JobID,
		done.TemplateID,
		done.QualityScore,
		done.FinishedAt,
	)
	if err != nil {
		return fmt.Errorf("complete log entry %s: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return s.missOrConflict(ctx, id, jobs.ErrLogFinalized)
	}
	return nil
}

// RecordReview attaches a manual publication to a review_required entry that
// has no job yet.
func (s *LogStore) RecordReview(ctx context.Context, id string, review jobs.LogReview) error {
	validated, err := marshalExtraction(review.Validated)
	if err != nil {
		return err
	}
	tag, err := s.db.Exec(ctx, `UPDATE extraction_logs SET
	validated = $2,
	job_id = $3,
	reviewed_by = $4,
	reviewed_at = $5
WHERE id = $1 AND status = 'review_required' AND job_id = ''`,
		id, validated, review.JobID, review.Reviewer, review.ReviewedAt)
	if err != nil {
		return fmt.Errorf("record review for %s: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return s.missOrConflict(ctx, id, jobs.ErrNotReviewable)
	}
	return nil
}

// Get returns the entry with id.
func (s *LogStore) Get(ctx context.Context, id string) (jobs.LogEntry, error) {
	row := s.db.QueryRow(ctx, `SELECT `+logColumns+` FROM extraction_logs WHERE id = $1`, id)
	return scanLogEntry(row)
}

// List returns entries newest first, optionally filtered by status.
func (s *LogStore) List(ctx context.Context, filter jobs.LogFilter) ([]jobs.LogEntry, error) {
	query := `SELECT ` + logColumns + ` FROM extraction_logs`
	args := []any{}
	if filter.Status != "" {
		args = append(args, string(filter.Status))
		query += fmt.Sprintf(` WHERE status = $%d`, len(args))
	}
	query += ` ORDER BY created_at DESC, id DESC`
	if filter.Limit > 0 {
		args = append(args, filter.Limit)
		query += fmt.Sprintf(` LIMIT $%d`, len(args))
	}
	rows, err := s.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list log entries: %w", err)
	}
	defer rows.Close()

	var out []jobs.LogEntry
	for rows.Next() {
		entry, err := scanLogEntry(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list log entries: %w", err)
	}
	return out, nil
}

// missOrConflict distinguishes an unknown id from a guarded update that
// matched no row.
func (s *LogStore) missOrConflict(ctx context.Context, id string, conflict error) error {
	var status string
	err := s.db.QueryRow(ctx, `SELECT status FROM extraction_logs WHERE id = $1`, id).Scan(&status)
	if errors.Is(err, pgx.ErrNoRows) {
		return jobs.ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("load log entry %s: %w", id, err)
	}
	return fmt.Errorf("log entry %s is %s: %w", id, status, conflict)
}

func scanLogEntry(row pgx.Row) (jobs.LogEntry, error) {
	var (
		entry      jobs.LogEntry
		status     string
		extracted  []byte
		validated  []byte
		finishedAt *time.Time
		reviewedAt *time.Time
	)
	err := row.Scan(
		&entry.ID,
		&entry.Operator,
		&entry.URL,
		&entry.TemplateID,
		&status,
		&extracted,
		&validated,
		&entry.ErrorText,
		&entry.ElapsedMs,
		&entry.JobID,
		&entry.QualityScore,
		&entry.CreatedAt,
		&finishedAt,
		&entry.ReviewedBy,
		&reviewedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return jobs.LogEntry{}, jobs.ErrNotFound
	}
	if err != nil {
		return jobs.LogEntry{}, fmt.Errorf("scan log entry: %w", err)
	}
	entry.Status = jobs.LogStatus(status)
	entry.FinishedAt = finishedAt
	entry.ReviewedAt = reviewedAt
	if entry.Extracted, err = unmarshalExtraction(extracted); err != nil {
		return jobs.LogEntry{}, fmt.Errorf("decode extracted for %s: %w", entry.ID, err)
	}
	if entry.Validated, err = unmarshalExtraction(validated); err != nil {
		return jobs.LogEntry{}, fmt.Errorf("decode validated for %s: %w", entry.ID, err)
	}
	return entry, nil
}

func marshalExtraction(raw jobs.RawExtraction) ([]byte, error) {
	if raw == nil {
		return nil, nil
	}
	data, err := json.Marshal(raw)
	if err != nil {
		return nil, fmt.Errorf("marshal extraction: %w", err)
	}
	return data, nil
}

func unmarshalExtraction(data []byte) (jobs.RawExtraction, error) {
	if len(data) == 0 {
		return nil, nil
	}
	var raw jobs.RawExtraction
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, err
	}
	return raw, nil
}
