package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/JakeFAU/govjobs-pipeline/internal/jobs"
)

const jobColumns = `id, title, department, location, qualification, deadline, apply_link, posted_on,
	source_url, salary, age_limit, application_fee, description, selection_process, positions,
	quality_score, created_at`

const logColumns = `id, operator, url, template_id, status, extracted, validated, error_text,
	elapsed_ms, job_id, quality_score, created_at, finished_at, reviewed_by, reviewed_at`

type rowScanner interface {
	Scan(dest ...any) error
}

// JobStore persists canonical jobs in SQLite.
type JobStore struct {
	db *sql.DB
}

// NewJobStore wraps db.
func NewJobStore(db *sql.DB) *JobStore {
	return &JobStore{db: db}
}

// FindByKey returns the job stored under key.
func (s *JobStore) FindByKey(ctx context.Context, key jobs.JobKey) (jobs.Job, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+jobColumns+` FROM jobs
WHERE title = ? AND department = ? AND source_url = ?`, key.Title, key.Department, key.SourceURL)
	return scanJob(row)
}

// Insert stores job. A unique-index violation maps to jobs.ErrDuplicateJob.
func (s *JobStore) Insert(ctx context.Context, job jobs.Job) error {
	_, err := s.db.ExecContext(ctx, `INSERT INTO jobs (`+jobColumns+`)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		job.ID, job.Title, job.Department, job.Location, job.Qualification, job.Deadline,
		job.ApplyLink, job.PostedOn, job.SourceURL, job.Salary, job.AgeLimit, job.ApplicationFee,
		job.Description, job.SelectionProcess, job.Positions, job.QualityScore, toUnix(job.CreatedAt),
	)
	if err != nil {
		if isConstraintViolation(err) {
			return fmt.Errorf("job %q: %w", job.Title, jobs.ErrDuplicateJob)
		}
		return fmt.Errorf("inserting job %s: %w", job.ID, err)
	}
	return nil
}

// Get returns the job with id.
func (s *JobStore) Get(ctx context.Context, id string) (jobs.Job, error) {
	return scanJob(s.db.QueryRowContext(ctx, `SELECT `+jobColumns+` FROM jobs WHERE id = ?`, id))
}

// List returns up to limit jobs, newest first. A non-positive limit returns all.
func (s *JobStore) List(ctx context.Context, limit int) ([]jobs.Job, error) {
	if limit <= 0 {
		limit = -1
	}
	rows, err := s.db.QueryContext(ctx, `SELECT `+jobColumns+` FROM jobs
ORDER BY created_at DESC, id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("listing jobs: %w", err)
	}
	defer rows.Close()

	var out []jobs.Job
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, job)
	}
	return out, rows.Err()
}

func scanJob(row rowScanner) (jobs.Job, error) {
	var (
		job     jobs.Job
		created int64
	)
	err := row.Scan(
		&job.ID, &job.Title, &job.Department, &job.Location, &job.Qualification, &job.Deadline,
		&job.ApplyLink, &job.PostedOn, &job.SourceURL, &job.Salary, &job.AgeLimit, &job.ApplicationFee,
		&job.Description, &job.SelectionProcess, &job.Positions, &job.QualityScore, &created,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return jobs.Job{}, jobs.ErrNotFound
	}
	if err != nil {
		return jobs.Job{}, fmt.Errorf("scanning job: %w", err)
	}
	job.CreatedAt = fromUnix(created)
	return job, nil
}

// LogStore persists processing-log entries in SQLite.
type LogStore struct {
	db *sql.DB
}

// NewLogStore wraps db.
func NewLogStore(db *sql.DB) *LogStore {
	return &LogStore{db: db}
}

// Create inserts a processing entry.
func (s *LogStore) Create(ctx context.Context, entry jobs.LogEntry) error {
	_, err := s.db.ExecContext(ctx, `INSERT INTO extraction_logs (id, operator, url, template_id, status, created_at)
VALUES (?, ?, ?, ?, ?, ?)`,
		entry.ID, entry.Operator, entry.URL, entry.TemplateID, string(entry.Status), toUnix(entry.CreatedAt))
	if err != nil {
		return fmt.Errorf("inserting log entry %s: %w", entry.ID, err)
	}
	return nil
}

// Complete applies the terminal transition for a processing entry.
func (s *LogStore) Complete(ctx context.Context, id string, done jobs.LogCompletion) error {
	extracted, err := marshalExtraction(done.Extracted)
	if err != nil {
		return err
	}
	res, err := s.db.ExecContext(ctx, `UPDATE extraction_logs SET
	status = ?,
	extracted = ?,
	error_text = ?,
	elapsed_ms = ?,
	job_id = ?,
	template_id = CASE WHEN ? = '' THEN template_id ELSE ? END,
	quality_score = ?,
	finished_at = ?
WHERE id = ? AND status = 'processing'`,
		string(done.Status), extracted, done.ErrorText, done.ElapsedMs, done.JobID,
		done.TemplateID, done.TemplateID, done.QualityScore, nullableUnix(done.FinishedAt), id,
	)
	if err != nil {
		return fmt.Errorf("completing log entry %s: %w", id, err)
	}
	return s.checkAffected(ctx, res, id, jobs.ErrLogFinalized)
}

// RecordReview attaches a manual publication to a review_required entry.
func (s *LogStore) RecordReview(ctx context.Context, id string, review jobs.LogReview) error {
	validated, err := marshalExtraction(review.Validated)
	if err != nil {
		return err
	}
	res, err := s.db.ExecContext(ctx, `UPDATE extraction_logs SET
	validated = ?,
	job_id = ?,
	reviewed_by = ?,
	reviewed_at = ?
WHERE id = ? AND status = 'review_required' AND job_id = ''`,
		validated, review.JobID, review.Reviewer, nullableUnix(review.ReviewedAt), id)
	if err != nil {
		return fmt.Errorf("recording review for %s: %w", id, err)
	}
	return s.checkAffected(ctx, res, id, jobs.ErrNotReviewable)
}

// Get returns the entry with id.
func (s *LogStore) Get(ctx context.Context, id string) (jobs.LogEntry, error) {
	return scanLogEntry(s.db.QueryRowContext(ctx, `SELECT `+logColumns+` FROM extraction_logs WHERE id = ?`, id))
}

// List returns entries newest first, optionally filtered by status.
func (s *LogStore) List(ctx context.Context, filter jobs.LogFilter) ([]jobs.LogEntry, error) {
	limit := filter.Limit
	if limit <= 0 {
		limit = -1
	}
	rows, err := s.db.QueryContext(ctx, `SELECT `+logColumns+` FROM extraction_logs
WHERE ? = '' OR status = ?
ORDER BY created_at DESC, id DESC LIMIT ?`, string(filter.Status), string(filter.Status), limit)
	if err != nil {
		return nil, fmt.Errorf("listing log entries: %w", err)
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
	return out, rows.Err()
}

func (s *LogStore) checkAffected(ctx context.Context, res sql.Result, id string, conflict error) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected for %s: %w", id, err)
	}
	if n > 0 {
		return nil
	}
	var status string
	err = s.db.QueryRowContext(ctx, `SELECT status FROM extraction_logs WHERE id = ?`, id).Scan(&status)
	if errors.Is(err, sql.ErrNoRows) {
		return jobs.ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("loading log entry %s: %w", id, err)
	}
	return fmt.Errorf("log entry %s is %s: %w", id, status, conflict)
}

func scanLogEntry(row rowScanner) (jobs.LogEntry, error) {
	var (
		entry      jobs.LogEntry
		status     string
		extracted  sql.NullString
		validated  sql.NullString
		created    int64
		finishedAt sql.NullInt64
		reviewedAt sql.NullInt64
	)
	err := row.Scan(
		&entry.ID, &entry.Operator, &entry.URL, &entry.TemplateID, &status, &extracted, &validated,
		&entry.ErrorText, &entry.ElapsedMs, &entry.JobID, &entry.QualityScore, &created,
		&finishedAt, &entry.ReviewedBy, &reviewedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return jobs.LogEntry{}, jobs.ErrNotFound
	}
	if err != nil {
		return jobs.LogEntry{}, fmt.Errorf("scanning log entry: %w", err)
	}
	entry.Status = jobs.LogStatus(status)
	entry.CreatedAt = fromUnix(created)
	entry.FinishedAt = fromNullable(finishedAt)
	entry.ReviewedAt = fromNullable(reviewedAt)
	if entry.Extracted, err = unmarshalExtraction(extracted); err != nil {
		return jobs.LogEntry{}, fmt.Errorf("decoding extracted for %s: %w", entry.ID, err)
	}
	if entry.Validated, err = unmarshalExtraction(validated); err != nil {
		return jobs.LogEntry{}, fmt.Errorf("decoding validated for %s: %w", entry.ID, err)
	}
	return entry, nil
}

// TemplateStore persists extraction templates in SQLite.
type TemplateStore struct {
	db *sql.DB
}

// NewTemplateStore wraps db.
func NewTemplateStore(db *sql.DB) *TemplateStore {
	return &TemplateStore{db: db}
}

// List returns every stored template ordered by id.
func (s *TemplateStore) List(ctx context.Context) ([]jobs.ExtractionTemplate, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, name, domain, fields, active, updated_at
FROM extraction_templates ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("listing templates: %w", err)
	}
	defer rows.Close()

	var out []jobs.ExtractionTemplate
	for rows.Next() {
		tmpl, err := scanTemplate(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, tmpl)
	}
	return out, rows.Err()
}

// Get returns the template with id.
func (s *TemplateStore) Get(ctx context.Context, id string) (jobs.ExtractionTemplate, error) {
	return scanTemplate(s.db.QueryRowContext(ctx, `SELECT id, name, domain, fields, active, updated_at
FROM extraction_templates WHERE id = ?`, id))
}

// Upsert inserts or replaces tmpl.
func (s *TemplateStore) Upsert(ctx context.Context, tmpl jobs.ExtractionTemplate) error {
	fields, err := json.Marshal(tmpl.Fields)
	if err != nil {
		return fmt.Errorf("marshal template fields: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `INSERT INTO extraction_templates (id, name, domain, fields, active, updated_at)
VALUES (?, ?, ?, ?, ?, ?)
ON CONFLICT (id) DO UPDATE SET
	name = excluded.name,
	domain = excluded.domain,
	fields = excluded.fields,
	active = excluded.active,
	updated_at = excluded.updated_at`,
		tmpl.ID, tmpl.Name, tmpl.Domain, string(fields), tmpl.Active, toUnix(tmpl.UpdatedAt))
	if err != nil {
		return fmt.Errorf("upserting template %s: %w", tmpl.ID, err)
	}
	return nil
}

func scanTemplate(row rowScanner) (jobs.ExtractionTemplate, error) {
	var (
		tmpl    jobs.ExtractionTemplate
		fields  string
		updated int64
	)
	err := row.Scan(&tmpl.ID, &tmpl.Name, &tmpl.Domain, &fields, &tmpl.Active, &updated)
	if errors.Is(err, sql.ErrNoRows) {
		return jobs.ExtractionTemplate{}, jobs.ErrNotFound
	}
	if err != nil {
		return jobs.ExtractionTemplate{}, fmt.Errorf("scanning template: %w", err)
	}
	tmpl.UpdatedAt = fromUnix(updated)
	if err := json.Unmarshal([]byte(fields), &tmpl.Fields); err != nil {
		return jobs.ExtractionTemplate{}, fmt.Errorf("decoding template %s fields: %w", tmpl.ID, err)
	}
	return tmpl, nil
}
