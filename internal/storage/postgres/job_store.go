package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/JakeFAU/govjobs-pipeline/internal/jobs"
)

const jobColumns = `id, title, department, location, qualification, deadline, apply_link, posted_on,
	source_url, salary, age_limit, application_fee, description, selection_process, positions,
	quality_score, created_at`

// JobStore persists canonical jobs. The unique index on
// (title, department, source_url) arbitrates concurrent inserts.
type JobStore struct {
	db DB
}

// NewJobStore wraps db.
func NewJobStore(db DB) (*JobStore, error) {
	if db == nil {
		return nil, fmt.Errorf("pool is required")
	}
	return &JobStore{db: db}, nil
}

// FindByKey returns the job stored under key.
func (s *JobStore) FindByKey(ctx context.Context, key jobs.JobKey) (jobs.Job, error) {
	row := s.db.QueryRow(ctx, `SELECT `+jobColumns+` FROM jobs
WHERE title = $1 AND department = $2 AND source_url = $3`, key.Title, key.Department, key.SourceURL)
	return scanJob(row)
}

// Insert stores job. A unique violation maps to jobs.ErrDuplicateJob.
func (s *JobStore) Insert(ctx context.Context, job jobs.Job) error {
	_, err := s.db.Exec(ctx, `INSERT INTO jobs (`+jobColumns+`) VALUES (
	$1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17
)`,
		job.ID,
		job.Title,
		job.Department,
		job.Location,
		job.Qualification,
		job.Deadline,
		job.ApplyLink,
		job.PostedOn,
		job.SourceURL,
		job.Salary,
		job.AgeLimit,
		job.ApplicationFee,
		job.Description,
		job.SelectionProcess,
		job.Positions,
		job.QualityScore,
		job.CreatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("job %q: %w", job.Title, jobs.ErrDuplicateJob)
		}
		return fmt.Errorf("insert job: %w", err)
	}
	return nil
}

// Get returns the job with id.
func (s *JobStore) Get(ctx context.Context, id string) (jobs.Job, error) {
	row := s.db.QueryRow(ctx, `SELECT `+jobColumns+` FROM jobs WHERE id = $1`, id)
	return scanJob(row)
}

// List returns up to limit jobs, newest first. A non-positive limit returns all.
func (s *JobStore) List(ctx context.Context, limit int) ([]jobs.Job, error) {
	query := `SELECT ` + jobColumns + ` FROM jobs ORDER BY created_at DESC`
	args := []any{}
	if limit > 0 {
		query += ` LIMIT $1`
		args = append(args, limit)
	}
	rows, err := s.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list jobs: %w", err)
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
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list jobs: %w", err)
	}
	return out, nil
}

func scanJob(row pgx.Row) (jobs.Job, error) {
	var job jobs.Job
	err := row.Scan(
		&job.ID,
		&job.Title,
		&job.Department,
		&job.Location,
		&job.Qualification,
		&job.Deadline,
		&job.ApplyLink,
		&job.PostedOn,
		&job.SourceURL,
		&job.Salary,
		&job.AgeLimit,
		&job.ApplicationFee,
		&job.Description,
		&job.SelectionProcess,
		&job.Positions,
		&job.QualityScore,
		&job.CreatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return jobs.Job{}, jobs.ErrNotFound
	}
	if err != nil {
		return jobs.Job{}, fmt.Errorf("scan job: %w", err)
	}
	return job, nil
}
