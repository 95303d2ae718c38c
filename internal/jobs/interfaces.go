package jobs

import (
	"context"
	"time"
)

// Fetcher retrieves raw page content for a URL.
type Fetcher interface {
	Fetch(ctx context.Context, url string) (Page, error)
}

// JobStore persists canonical jobs.
type JobStore interface {
	FindByKey(ctx context.Context, key JobKey) (Job, error)
	// Insert returns ErrDuplicateJob when the key already exists.
	Insert(ctx context.Context, job Job) error
	Get(ctx context.Context, id string) (Job, error)
	List(ctx context.Context, limit int) ([]Job, error)
}

// LogStore persists the processing audit trail.
type LogStore interface {
	Create(ctx context.Context, entry LogEntry) error
	// Complete applies the terminal transition. Returns ErrLogFinalized when the
	// entry has already left the processing state.
	Complete(ctx context.Context, id string, done LogCompletion) error
	// RecordReview attaches a manual publication to a review_required entry.
	RecordReview(ctx context.Context, id string, review LogReview) error
	Get(ctx context.Context, id string) (LogEntry, error)
	List(ctx context.Context, filter LogFilter) ([]LogEntry, error)
}

// TemplateStore persists extraction templates.
type TemplateStore interface {
	List(ctx context.Context) ([]ExtractionTemplate, error)
	Get(ctx context.Context, id string) (ExtractionTemplate, error)
	Upsert(ctx context.Context, tmpl ExtractionTemplate) error
}

// Clock returns the current time (useful for testing).
type Clock interface {
	Now() time.Time
}

// IDGenerator produces record IDs (UUIDs).
type IDGenerator interface {
	NewID() (string, error)
}
