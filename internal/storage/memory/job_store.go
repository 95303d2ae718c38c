// Package memory provides in-process stores for development and tests.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/JakeFAU/govjobs-pipeline/internal/jobs"
)

// JobStore provides an in-memory implementation for development/testing.
type JobStore struct {
	mu    sync.RWMutex
	jobs  map[string]jobs.Job
	byKey map[jobs.JobKey]string
	order []string
}

// NewJobStore constructs a JobStore.
func NewJobStore() *JobStore {
	return &JobStore{
		jobs:  make(map[string]jobs.Job),
		byKey: make(map[jobs.JobKey]string),
	}
}

// FindByKey returns the job stored under the (title, department, source URL) triple.
func (s *JobStore) FindByKey(_ context.Context, key jobs.JobKey) (jobs.Job, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	id, ok := s.byKey[key]
	if !ok {
		return jobs.Job{}, jobs.ErrNotFound
	}
	return s.jobs[id], nil
}

// Insert stores a new job, rejecting duplicates by ID or key.
func (s *JobStore) Insert(_ context.Context, job jobs.Job) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.jobs[job.ID]; exists {
		return fmt.Errorf("job %s: %w", job.ID, jobs.ErrDuplicateJob)
	}
	key := job.Key()
	if _, exists := s.byKey[key]; exists {
		return fmt.Errorf("job %q: %w", job.Title, jobs.ErrDuplicateJob)
	}
	s.jobs[job.ID] = job
	s.byKey[key] = job.ID
	s.order = append(s.order, job.ID)
	return nil
}

// Get fetches a job by ID.
func (s *JobStore) Get(_ context.Context, id string) (jobs.Job, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	job, ok := s.jobs[id]
	if !ok {
		return jobs.Job{}, jobs.ErrNotFound
	}
	return job, nil
}

// List returns up to limit jobs, newest first. A non-positive limit returns all.
func (s *JobStore) List(_ context.Context, limit int) ([]jobs.Job, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]jobs.Job, 0, len(s.order))
	for i := len(s.order) - 1; i >= 0; i-- {
		out = append(out, s.jobs[s.order[i]])
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out, nil
}

// LogStore keeps processing log entries in memory.
type LogStore struct {
	mu      sync.RWMutex
	entries map[string]jobs.LogEntry
}

// NewLogStore constructs a LogStore.
func NewLogStore() *LogStore {
	return &LogStore{entries: make(map[string]jobs.LogEntry)}
}

// Create records a new entry.
func (s *LogStore) Create(_ context.Context, entry jobs.LogEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.entries[entry.ID]; exists {
		return fmt.Errorf("log entry %s already exists", entry.ID)
	}
	entry.Extracted = entry.Extracted.Clone()
	s.entries[entry.ID] = entry
	return nil
}

// Complete applies the single terminal transition for an entry.
func (s *LogStore) Complete(_ context.Context, id string, done jobs.LogCompletion) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	entry, ok := s.entries[id]
	if !ok {
		return jobs.ErrNotFound
	}
	if entry.Status != jobs.LogStatusProcessing {
		return fmt.Errorf("log entry %s: %w", id, jobs.ErrLogFinalized)
	}
	entry.Status = done.Status
	entry.ErrorText = done.ErrorText
	entry.ElapsedMs = done.ElapsedMs
	entry.JobID = done.JobID
	entry.QualityScore = done.QualityScore
	if done.TemplateID != "" {
		entry.TemplateID = done.TemplateID
	}
	if done.Extracted != nil {
		entry.Extracted = done.Extracted.Clone()
	}
	entry.FinishedAt = pointerTime(done.FinishedAt)
	s.entries[id] = entry
	return nil
}

// RecordReview attaches a manual publication to a review_required entry.
func (s *LogStore) RecordReview(_ context.Context, id string, review jobs.LogReview) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	entry, ok := s.entries[id]
	if !ok {
		return jobs.ErrNotFound
	}
	if entry.Status != jobs.LogStatusReviewRequired || entry.JobID != "" {
		return fmt.Errorf("log entry %s: %w", id, jobs.ErrNotReviewable)
	}
	entry.Validated = review.Validated.Clone()
	entry.ReviewedBy = review.Reviewer
	entry.JobID = review.JobID
	entry.ReviewedAt = pointerTime(review.ReviewedAt)
	s.entries[id] = entry
	return nil
}

// Get fetches an entry by ID.
func (s *LogStore) Get(_ context.Context, id string) (jobs.LogEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	entry, ok := s.entries[id]
	if !ok {
		return jobs.LogEntry{}, jobs.ErrNotFound
	}
	return entry, nil
}

// List returns entries newest first, optionally filtered by status.
func (s *LogStore) List(_ context.Context, filter jobs.LogFilter) ([]jobs.LogEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]jobs.LogEntry, 0, len(s.entries))
	for _, entry := range s.entries {
		if filter.Status != "" && entry.Status != filter.Status {
			continue
		}
		out = append(out, entry)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID > out[j].ID
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	if filter.Limit > 0 && len(out) > filter.Limit {
		out = out[:filter.Limit]
	}
	return out, nil
}

// TemplateStore keeps extraction templates in memory.
type TemplateStore struct {
	mu        sync.RWMutex
	templates map[string]jobs.ExtractionTemplate
}

// NewTemplateStore constructs a TemplateStore.
func NewTemplateStore() *TemplateStore {
	return &TemplateStore{templates: make(map[string]jobs.ExtractionTemplate)}
}

// List returns every stored template.
func (s *TemplateStore) List(_ context.Context) ([]jobs.ExtractionTemplate, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]jobs.ExtractionTemplate, 0, len(s.templates))
	for _, tmpl := range s.templates {
		out = append(out, tmpl.Clone())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// Get fetches a template by ID.
func (s *TemplateStore) Get(_ context.Context, id string) (jobs.ExtractionTemplate, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	tmpl, ok := s.templates[id]
	if !ok {
		return jobs.ExtractionTemplate{}, jobs.ErrNotFound
	}
	return tmpl.Clone(), nil
}

// Upsert inserts or replaces a template.
func (s *TemplateStore) Upsert(_ context.Context, tmpl jobs.ExtractionTemplate) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.templates[tmpl.ID] = tmpl.Clone()
	return nil
}

func pointerTime(t time.Time) *time.Time {
	ts := t
	return &ts
}
