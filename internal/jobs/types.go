// Package jobs defines the core types shared across the extraction pipeline.
package jobs

import (
	"time"
)

// LogStatus represents the lifecycle state of a processing log entry.
type LogStatus string

// Processing log status values persisted in the log store.
const (
	LogStatusProcessing     LogStatus = "processing"
	LogStatusCompleted      LogStatus = "completed"
	LogStatusFailed         LogStatus = "failed"
	LogStatusReviewRequired LogStatus = "review_required"
)

// IsTerminal reports whether no further transitions are allowed from s.
func (s LogStatus) IsTerminal() bool {
	switch s {
	case LogStatusCompleted, LogStatusFailed, LogStatusReviewRequired:
		return true
	default:
		return false
	}
}

// SystemOperator identifies attempts started by the scheduler.
const SystemOperator = "system"

// Placeholder values substituted by the normalizer when a field is missing.
// The quality scorer treats them as absent.
const (
	PlaceholderTitle     = "Government Job Notification"
	DefaultDepartment    = "Government of India"
	DefaultLocation      = "India"
	DefaultQualification = "As per official notification"
	DefaultSalary        = "As per government norms"
	DefaultDeadline      = "Check official notification"
	DefaultPositions     = 1
)

// DateLayout is the canonical date-string format for deadlines and posted-on dates.
const DateLayout = "02/01/2006"

var placeholders = map[string]struct{}{
	PlaceholderTitle:     {},
	DefaultDepartment:    {},
	DefaultLocation:      {},
	DefaultQualification: {},
	DefaultSalary:        {},
	DefaultDeadline:      {},
}

// IsPlaceholder reports whether value is one of the normalizer defaults.
func IsPlaceholder(value string) bool {
	_, ok := placeholders[value]
	return ok
}

// RawExtraction is the best-effort bag of field values produced for one attempt.
// A missing key means the field could not be extracted.
type RawExtraction map[Field]string

// Get returns the value for f, or "" when absent.
func (r RawExtraction) Get(f Field) string {
	if r == nil {
		return ""
	}
	return r[f]
}

// Clone returns a copy that can be mutated independently.
func (r RawExtraction) Clone() RawExtraction {
	out := make(RawExtraction, len(r))
	for k, v := range r {
		out[k] = v
	}
	return out
}

// CanonicalJob is the normalized job record ready for storage and display.
type CanonicalJob struct {
	Title            string `json:"title"`
	Department       string `json:"department"`
	Location         string `json:"location"`
	Qualification    string `json:"qualification"`
	Deadline         string `json:"deadline"`
	ApplyLink        string `json:"apply_link"`
	PostedOn         string `json:"posted_on"`
	SourceURL        string `json:"source_url"`
	Salary           string `json:"salary,omitempty"`
	AgeLimit         string `json:"age_limit,omitempty"`
	ApplicationFee   string `json:"application_fee,omitempty"`
	Description      string `json:"description,omitempty"`
	SelectionProcess string `json:"selection_process,omitempty"`
	Positions        int    `json:"positions"`
}

// Key returns the uniqueness triple used for deduplication.
func (j CanonicalJob) Key() JobKey {
	return JobKey{Title: j.Title, Department: j.Department, SourceURL: j.SourceURL}
}

// JobKey identifies a job for deduplication.
type JobKey struct {
	Title      string
	Department string
	SourceURL  string
}

// Job is a persisted CanonicalJob.
type Job struct {
	ID           string    `json:"id"`
	QualityScore float64   `json:"quality_score"`
	CreatedAt    time.Time `json:"created_at"`
	CanonicalJob
}

// LogEntry is one processing attempt in the audit trail.
type LogEntry struct {
	ID           string        `json:"id"`
	Operator     string        `json:"operator"`
	URL          string        `json:"url"`
	TemplateID   string        `json:"template_id,omitempty"`
	Status       LogStatus     `json:"status"`
	Extracted    RawExtraction `json:"extracted,omitempty"`
	Validated    RawExtraction `json:"validated,omitempty"`
	ErrorText    string        `json:"error_text,omitempty"`
	ElapsedMs    int64         `json:"elapsed_ms"`
	JobID        string        `json:"job_id,omitempty"`
	QualityScore float64       `json:"quality_score"`
	CreatedAt    time.Time     `json:"created_at"`
	FinishedAt   *time.Time    `json:"finished_at,omitempty"`
	ReviewedBy   string        `json:"reviewed_by,omitempty"`
	ReviewedAt   *time.Time    `json:"reviewed_at,omitempty"`
}

// LogCompletion is the single terminal update applied to a log entry.
type LogCompletion struct {
	Status       LogStatus
	Extracted    RawExtraction
	ErrorText    string
	ElapsedMs    int64
	JobID        string
	TemplateID   string
	QualityScore float64
	FinishedAt   time.Time
}

// LogReview records a manual publication of a review_required entry.
type LogReview struct {
	Reviewer   string
	Validated  RawExtraction
	JobID      string
	ReviewedAt time.Time
}

// LogFilter narrows log listings.
type LogFilter struct {
	Status LogStatus
	Limit  int
}

// Page is raw content returned by a Fetcher.
type Page struct {
	URL        string
	StatusCode int
	Body       []byte
	Duration   time.Duration
}

// Source describes a listing page crawled on schedule.
type Source struct {
	Name    string `json:"name" mapstructure:"name" yaml:"name"`
	BaseURL string `json:"base_url" mapstructure:"base_url" yaml:"base_url"`
}
