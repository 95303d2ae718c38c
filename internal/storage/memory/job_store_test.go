package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/JakeFAU/govjobs-pipeline/internal/jobs"
)

func TestJobStoreRejectsDuplicateKey(t *testing.T) {
	t.Parallel()

	store := NewJobStore()
	ctx := context.Background()
	job := jobs.Job{ID: "job-1", CanonicalJob: jobs.CanonicalJob{
		Title: "SSC CGL 2025", Department: "Staff Selection Commission", SourceURL: "https://ssc.nic.in/cgl",
	}}

	if err := store.Insert(ctx, job); err != nil {
		t.Fatalf("Insert() error = %v", err)
	}
	dup := job
	dup.ID = "job-2"
	if err := store.Insert(ctx, dup); !errors.Is(err, jobs.ErrDuplicateJob) {
		t.Fatalf("expected ErrDuplicateJob, got %v", err)
	}

	found, err := store.FindByKey(ctx, job.Key())
	if err != nil || found.ID != "job-1" {
		t.Fatalf("FindByKey() = %+v, %v", found, err)
	}
	if _, err := store.Get(ctx, "missing"); !errors.Is(err, jobs.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	list, err := store.List(ctx, 0)
	if err != nil || len(list) != 1 {
		t.Fatalf("List() = %v, %v", list, err)
	}
}

func TestLogStoreLifecycle(t *testing.T) {
	t.Parallel()

	store := NewLogStore()
	ctx := context.Background()
	now := time.Date(2025, 3, 1, 6, 0, 0, 0, time.UTC)
	entry := jobs.LogEntry{ID: "log-1", URL: "https://ssc.nic.in", Status: jobs.LogStatusProcessing, CreatedAt: now}

	if err := store.Create(ctx, entry); err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if err := store.RecordReview(ctx, entry.ID, jobs.LogReview{Reviewer: "admin"}); !errors.Is(err, jobs.ErrNotReviewable) {
		t.Fatalf("expected ErrNotReviewable while processing, got %v", err)
	}

	done := jobs.LogCompletion{
		Status:     jobs.LogStatusReviewRequired,
		Extracted:  jobs.RawExtraction{jobs.FieldTitle: "Clerk Recruitment"},
		ElapsedMs:  120,
		FinishedAt: now.Add(time.Second),
	}
	if err := store.Complete(ctx, entry.ID, done); err != nil {
		t.Fatalf("Complete() error = %v", err)
	}
	if err := store.Complete(ctx, entry.ID, done); !errors.Is(err, jobs.ErrLogFinalized) {
		t.Fatalf("expected ErrLogFinalized, got %v", err)
	}

	review := jobs.LogReview{
		Reviewer:   "admin",
		Validated:  jobs.RawExtraction{jobs.FieldTitle: "Clerk Recruitment 2025"},
		JobID:      "job-9",
		ReviewedAt: now.Add(time.Hour),
	}
	if err := store.RecordReview(ctx, entry.ID, review); err != nil {
		t.Fatalf("RecordReview() error = %v", err)
	}
	if err := store.RecordReview(ctx, entry.ID, review); !errors.Is(err, jobs.ErrNotReviewable) {
		t.Fatalf("expected second review to be rejected, got %v", err)
	}

	got, err := store.Get(ctx, entry.ID)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if got.Status != jobs.LogStatusReviewRequired || got.JobID != "job-9" || got.ReviewedBy != "admin" {
		t.Fatalf("unexpected entry after review: %+v", got)
	}
	if got.FinishedAt == nil || got.ReviewedAt == nil {
		t.Fatalf("expected timestamps set, got %+v", got)
	}

	list, err := store.List(ctx, jobs.LogFilter{Status: jobs.LogStatusFailed})
	if err != nil || len(list) != 0 {
		t.Fatalf("List(failed) = %v, %v", list, err)
	}
}

func TestTemplateStoreReturnsCopies(t *testing.T) {
	t.Parallel()

	store := NewTemplateStore()
	ctx := context.Background()
	tmpl := jobs.ExtractionTemplate{
		ID:     "ssc",
		Domain: "ssc.nic.in",
		Fields: map[jobs.Field]jobs.FieldRule{jobs.FieldTitle: {Selectors: []string{"h1"}}},
	}
	if err := store.Upsert(ctx, tmpl); err != nil {
		t.Fatalf("Upsert() error = %v", err)
	}
	got, err := store.Get(ctx, "ssc")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	got.Fields[jobs.FieldTitle] = jobs.FieldRule{Selectors: []string{"h2"}}

	again, _ := store.Get(ctx, "ssc")
	if again.Fields[jobs.FieldTitle].Selectors[0] != "h1" {
		t.Fatal("expected Get to return a copy")
	}
}
