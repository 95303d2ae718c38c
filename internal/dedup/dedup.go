// Package dedup guards job persistence against duplicate (title, department,
// source URL) records.
package dedup

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/JakeFAU/govjobs-pipeline/internal/jobs"
)

// Deduplicator returns existing jobs instead of inserting duplicates.
type Deduplicator struct {
	store  jobs.JobStore
	ids    jobs.IDGenerator
	clock  jobs.Clock
	logger *zap.Logger
}

// New constructs a Deduplicator over store.
func New(store jobs.JobStore, ids jobs.IDGenerator, clock jobs.Clock, logger *zap.Logger) *Deduplicator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Deduplicator{store: store, ids: ids, clock: clock, logger: logger.Named("dedup")}
}

// Create persists job unless one with the same key exists. created is false
// when an existing record is returned.
func (d *Deduplicator) Create(ctx context.Context, job jobs.CanonicalJob, score float64) (jobs.Job, bool, error) {
	key := job.Key()
	existing, err := d.store.FindByKey(ctx, key)
	switch {
	case err == nil:
		d.logger.Debug("Job already stored", zap.String("job_id", existing.ID), zap.String("title", key.Title))
		return existing, false, nil
	case !errors.Is(err, jobs.ErrNotFound):
		return jobs.Job{}, false, fmt.Errorf("find job: %w", err)
	}

	id, err := d.ids.NewID()
	if err != nil {
		return jobs.Job{}, false, fmt.Errorf("generate job id: %w", err)
	}
	record := jobs.Job{
		ID:           id,
		QualityScore: score,
		CreatedAt:    d.clock.Now(),
		CanonicalJob: job,
	}
	if err := d.store.Insert(ctx, record); err != nil {
		if !errors.Is(err, jobs.ErrDuplicateJob) {
			return jobs.Job{}, false, fmt.Errorf("insert job: %w", err)
		}
		// Lost a race with a concurrent insert of the same key.
		winner, ferr := d.store.FindByKey(ctx, key)
		if ferr != nil {
			return jobs.Job{}, false, fmt.Errorf("reload duplicate job: %w", ferr)
		}
		return winner, false, nil
	}
	d.logger.Info("Job stored", zap.String("job_id", record.ID), zap.String("title", key.Title), zap.Float64("score", score))
	return record, true, nil
}
