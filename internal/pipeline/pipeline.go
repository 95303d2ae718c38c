// Package pipeline sequences fetch, extract, normalize, score and publish for
// a single URL and records every attempt in the processing log.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/JakeFAU/govjobs-pipeline/internal/jobs"
	"github.com/JakeFAU/govjobs-pipeline/internal/metrics"
	"github.com/JakeFAU/govjobs-pipeline/internal/quality"
)

// TemplateSource resolves extraction templates.
type TemplateSource interface {
	Select(ctx context.Context, rawURL string) (jobs.ExtractionTemplate, error)
	Get(ctx context.Context, id string) (jobs.ExtractionTemplate, error)
}

// Extractor produces raw field bags from pages.
type Extractor interface {
	Extract(page jobs.Page, tmpl jobs.ExtractionTemplate) jobs.RawExtraction
}

// Normalizer maps raw field bags to canonical jobs.
type Normalizer interface {
	Normalize(raw jobs.RawExtraction, sourceURL string) jobs.CanonicalJob
}

// JobCreator persists canonical jobs idempotently.
type JobCreator interface {
	Create(ctx context.Context, job jobs.CanonicalJob, score float64) (jobs.Job, bool, error)
}

// Config controls orchestration policy.
type Config struct {
	AutoPublishThreshold float64
}

// Request describes one single-URL attempt.
type Request struct {
	URL         string `json:"url"`
	TemplateID  string `json:"template_id,omitempty"`
	AutoPublish bool   `json:"auto_publish"`
	Operator    string `json:"operator,omitempty"`
}

// Result is the outcome of one attempt.
type Result struct {
	Success   bool               `json:"success"`
	LogID     string             `json:"log_id,omitempty"`
	Status    jobs.LogStatus     `json:"status,omitempty"`
	JobID     string             `json:"job_id,omitempty"`
	Job       *jobs.CanonicalJob `json:"job,omitempty"`
	Score     float64            `json:"score"`
	Extracted jobs.RawExtraction `json:"extracted,omitempty"`
	Error     string             `json:"error,omitempty"`
	ElapsedMs int64              `json:"elapsed_ms"`
}

// Orchestrator runs the extraction state machine:
// processing -> completed | review_required | failed.
type Orchestrator struct {
	fetcher    jobs.Fetcher
	templates  TemplateSource
	extractor  Extractor
	normalizer Normalizer
	creator    JobCreator
	logs       jobs.LogStore
	ids        jobs.IDGenerator
	clock      jobs.Clock
	cfg        Config
	logger     *zap.Logger
}

// finalizeTimeout bounds the terminal log update.
const finalizeTimeout = 5 * time.Second

// New constructs an Orchestrator.
func New(
	fetcher jobs.Fetcher,
	templates TemplateSource,
	extractor Extractor,
	normalizer Normalizer,
	creator JobCreator,
	logs jobs.LogStore,
	ids jobs.IDGenerator,
	clock jobs.Clock,
	cfg Config,
	logger *zap.Logger,
) *Orchestrator {
	if cfg.AutoPublishThreshold <= 0 {
		cfg.AutoPublishThreshold = quality.DefaultThreshold
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Orchestrator{
		fetcher:    fetcher,
		templates:  templates,
		extractor:  extractor,
		normalizer: normalizer,
		creator:    creator,
		logs:       logs,
		ids:        ids,
		clock:      clock,
		cfg:        cfg,
		logger:     logger.Named("pipeline"),
	}
}

// ProcessURL runs one attempt for req. A malformed URL fails before any log
// entry or network call. Fetch failures mark the log failed and are returned
// as errors. A review_required outcome is not an error.
func (o *Orchestrator) ProcessURL(ctx context.Context, req Request) (Result, error) {
	start := time.Now()
	req.URL = strings.TrimSpace(req.URL)
	if req.Operator == "" {
		req.Operator = jobs.SystemOperator
	}
	logger := o.logger.With(zap.String("url", req.URL), zap.String("operator", req.Operator))

	if err := jobs.ValidateURL(req.URL); err != nil {
		logger.Warn("Rejected malformed URL", zap.Error(err))
		return Result{Error: err.Error(), ElapsedMs: elapsedMs(start)}, err
	}

	logID, err := o.ids.NewID()
	if err != nil {
		return Result{Error: err.Error(), ElapsedMs: elapsedMs(start)}, fmt.Errorf("generate log id: %w", err)
	}
	entry := jobs.LogEntry{
		ID:         logID,
		Operator:   req.Operator,
		URL:        req.URL,
		TemplateID: req.TemplateID,
		Status:     jobs.LogStatusProcessing,
		CreatedAt:  o.clock.Now(),
	}
	if err := o.logs.Create(ctx, entry); err != nil {
		return Result{Error: err.Error(), ElapsedMs: elapsedMs(start)}, fmt.Errorf("create log entry: %w", err)
	}
	logger = logger.With(zap.String("log_id", logID))

	page, err := o.fetcher.Fetch(ctx, req.URL)
	if err != nil {
		res := Result{LogID: logID, Status: jobs.LogStatusFailed, Error: err.Error()}
		o.finish(ctx, logger, &res, start, jobs.LogCompletion{Status: jobs.LogStatusFailed, ErrorText: err.Error()})
		logger.Warn("Fetch failed", zap.Error(err))
		return res, err
	}

	tmpl := o.chooseTemplate(ctx, logger, req)
	raw := o.extractor.Extract(page, tmpl)
	job := o.normalizer.Normalize(raw, req.URL)
	score := quality.Score(job)
	metrics.ObserveScore(score)

	res := Result{
		Success:   true,
		LogID:     logID,
		Status:    jobs.LogStatusReviewRequired,
		Job:       &job,
		Score:     score,
		Extracted: raw,
	}
	done := jobs.LogCompletion{
		Status:       jobs.LogStatusReviewRequired,
		Extracted:    raw,
		TemplateID:   tmpl.ID,
		QualityScore: score,
	}

	if req.AutoPublish && quality.Publishable(score, o.cfg.AutoPublishThreshold) {
		stored, created, perr := o.creator.Create(ctx, job, score)
		switch {
		case perr != nil:
			perr = &jobs.PersistenceError{Err: perr}
			metrics.ObservePersist("error")
			logger.Error("Publication failed; routing to review", zap.Error(perr))
			done.ErrorText = perr.Error()
			res.Error = perr.Error()
		default:
			if created {
				metrics.ObservePersist("created")
			} else {
				metrics.ObservePersist("duplicate")
			}
			done.Status = jobs.LogStatusCompleted
			done.JobID = stored.ID
			res.Status = jobs.LogStatusCompleted
			res.JobID = stored.ID
		}
	}

	o.finish(ctx, logger, &res, start, done)
	logger.Info("Extraction finished",
		zap.String("status", string(res.Status)),
		zap.String("template_id", tmpl.ID),
		zap.Float64("score", score),
		zap.String("job_id", res.JobID),
		zap.Int64("elapsed_ms", res.ElapsedMs),
	)
	return res, nil
}

// Publish manually publishes a review_required entry. edited replaces the
// extracted payload when non-empty. The entry keeps its terminal status and
// records the reviewer, validated payload and job id.
func (o *Orchestrator) Publish(ctx context.Context, logID, reviewer string, edited jobs.RawExtraction) (jobs.Job, error) {
	entry, err := o.logs.Get(ctx, logID)
	if err != nil {
		return jobs.Job{}, fmt.Errorf("load log entry %s: %w", logID, err)
	}
	if entry.Status != jobs.LogStatusReviewRequired || entry.JobID != "" {
		return jobs.Job{}, fmt.Errorf("log entry %s is %s: %w", logID, entry.Status, jobs.ErrNotReviewable)
	}
	if reviewer == "" {
		reviewer = "unknown"
	}
	payload := edited
	if len(payload) == 0 {
		payload = entry.Extracted
	}

	job := o.normalizer.Normalize(payload, entry.URL)
	score := quality.Score(job)
	stored, created, err := o.creator.Create(ctx, job, score)
	if err != nil {
		metrics.ObservePersist("error")
		return jobs.Job{}, &jobs.PersistenceError{Err: err}
	}
	if created {
		metrics.ObservePersist("created")
	} else {
		metrics.ObservePersist("duplicate")
	}

	review := jobs.LogReview{
		Reviewer:   reviewer,
		Validated:  payload,
		JobID:      stored.ID,
		ReviewedAt: o.clock.Now(),
	}
	if err := o.logs.RecordReview(ctx, logID, review); err != nil {
		return stored, fmt.Errorf("record review for %s: %w", logID, err)
	}
	o.logger.Info("Published reviewed job",
		zap.String("log_id", logID),
		zap.String("job_id", stored.ID),
		zap.String("reviewer", reviewer),
		zap.Float64("score", score),
	)
	return stored, nil
}

func (o *Orchestrator) chooseTemplate(ctx context.Context, logger *zap.Logger, req Request) jobs.ExtractionTemplate {
	if req.TemplateID != "" {
		tmpl, err := o.templates.Get(ctx, req.TemplateID)
		switch {
		case err == nil && tmpl.Active:
			return tmpl
		case err == nil:
			logger.Warn("Requested template is inactive; selecting by domain", zap.String("template_id", req.TemplateID))
		case errors.Is(err, jobs.ErrNotFound):
			logger.Warn("Requested template not found; selecting by domain", zap.String("template_id", req.TemplateID))
		default:
			logger.Warn("Template lookup failed; selecting by domain", zap.String("template_id", req.TemplateID), zap.Error(err))
		}
	}
	tmpl, err := o.templates.Select(ctx, req.URL)
	if err != nil {
		logger.Warn("Template selection degraded", zap.Error(err))
	}
	return tmpl
}

// finish applies the single terminal log update and stamps elapsed time.
func (o *Orchestrator) finish(ctx context.Context, logger *zap.Logger, res *Result, start time.Time, done jobs.LogCompletion) {
	res.ElapsedMs = elapsedMs(start)
	done.ElapsedMs = res.ElapsedMs
	done.FinishedAt = o.clock.Now()
	// The entry must leave processing even when the caller gave up.
	finCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), finalizeTimeout)
	defer cancel()
	if err := o.logs.Complete(finCtx, res.LogID, done); err != nil {
		logger.Error("Failed to finalize log entry", zap.Error(err))
	}
	metrics.ObserveAttempt(string(done.Status), time.Since(start))
}

func elapsedMs(start time.Time) int64 {
	return time.Since(start).Milliseconds()
}
