package api

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/JakeFAU/govjobs-pipeline/internal/config"
	"github.com/JakeFAU/govjobs-pipeline/internal/jobs"
	"github.com/JakeFAU/govjobs-pipeline/internal/metrics"
	"github.com/JakeFAU/govjobs-pipeline/internal/pipeline"
)

const defaultListLimit = 50

// Orchestrator runs and publishes extractions.
type Orchestrator interface {
	ProcessURL(ctx context.Context, req pipeline.Request) (pipeline.Result, error)
	Publish(ctx context.Context, logID, reviewer string, edited jobs.RawExtraction) (jobs.Job, error)
}

// TemplateRegistry maintains extraction templates.
type TemplateRegistry interface {
	List(ctx context.Context) ([]jobs.ExtractionTemplate, error)
	Get(ctx context.Context, id string) (jobs.ExtractionTemplate, error)
	Upsert(ctx context.Context, tmpl jobs.ExtractionTemplate) (jobs.ExtractionTemplate, error)
	Deactivate(ctx context.Context, id string) (jobs.ExtractionTemplate, error)
}

// RunTrigger starts a crawl run in the background.
type RunTrigger interface {
	TriggerAsync(ctx context.Context) error
}

// Server wires HTTP handlers to the pipeline and stores.
type Server struct {
	router    chi.Router
	orch      Orchestrator
	templates TemplateRegistry
	logs      jobs.LogStore
	jobStore  jobs.JobStore
	runs      RunTrigger
	cfg       config.Config
	logger    *zap.Logger
}

// NewServer constructs a Server with middleware and routes. runs may be nil,
// in which case POST /v1/runs answers 503.
func NewServer(
	orch Orchestrator,
	templates TemplateRegistry,
	logs jobs.LogStore,
	jobStore jobs.JobStore,
	runs RunTrigger,
	cfg config.Config,
	logger *zap.Logger,
) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Server{
		orch:      orch,
		templates: templates,
		logs:      logs,
		jobStore:  jobStore,
		runs:      runs,
		cfg:       cfg,
		logger:    logger.Named("api"),
	}
	timeout := cfg.RequestTimeout()
	if timeout <= 0 {
		timeout = 120 * time.Second
	}

	r := chi.NewRouter()
	r.Use(requestIDMiddleware)
	r.Use(s.loggingMiddleware)
	r.Use(metrics.Middleware)
	r.Use(s.recoverMiddleware)
	r.Use(timeoutMiddleware(timeout))

	r.Get("/healthz", s.healthz)
	r.Handle("/metrics", metrics.Handler())

	r.Route("/v1", func(r chi.Router) {
		if cfg.Auth.Enabled {
			r.Use(apiKeyMiddleware(cfg.Auth.APIKey))
		}
		r.Post("/extractions", s.processURL)
		r.Post("/runs", s.triggerRun)
		r.Route("/logs", func(r chi.Router) {
			r.Get("/", s.listLogs)
			r.Get("/{log_id}", s.getLog)
			r.Post("/{log_id}/publish", s.publishLog)
		})
		r.Route("/jobs", func(r chi.Router) {
			r.Get("/", s.listJobs)
			r.Get("/{job_id}", s.getJob)
		})
		r.Route("/templates", func(r chi.Router) {
			r.Get("/", s.listTemplates)
			r.Get("/{template_id}", s.getTemplate)
			r.Put("/{template_id}", s.putTemplate)
			r.Post("/{template_id}/deactivate", s.deactivateTemplate)
		})
	})

	s.router = r
	return s
}

// Handler returns the Router for use with http.Server.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) healthz(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type extractionRequest struct {
	URL         string `json:"url"`
	TemplateID  string `json:"template_id"`
	AutoPublish *bool  `json:"auto_publish"`
	Operator    string `json:"operator"`
}

func (s *Server) processURL(w http.ResponseWriter, r *http.Request) {
	var req extractionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	if req.URL == "" {
		s.writeError(w, http.StatusBadRequest, "url required")
		return
	}
	autoPublish := true
	if req.AutoPublish != nil {
		autoPublish = *req.AutoPublish
	}
	if req.Operator == "" {
		req.Operator = r.Header.Get("X-Operator")
	}

	res, err := s.orch.ProcessURL(r.Context(), pipeline.Request{
		URL:         req.URL,
		TemplateID:  req.TemplateID,
		AutoPublish: autoPublish,
		Operator:    req.Operator,
	})
	var malformed *jobs.MalformedURLError
	switch {
	case errors.As(err, &malformed):
		s.writeError(w, http.StatusBadRequest, err.Error())
	case err != nil && res.LogID != "":
		s.writeJSON(w, http.StatusBadGateway, res)
	case err != nil:
		s.writeError(w, http.StatusInternalServerError, err.Error())
	default:
		s.writeJSON(w, http.StatusOK, res)
	}
}

func (s *Server) triggerRun(w http.ResponseWriter, r *http.Request) {
	if s.runs == nil {
		s.writeError(w, http.StatusServiceUnavailable, "scheduler disabled")
		return
	}
	// The run outlives this request; the scheduler owns its lifetime.
	err := s.runs.TriggerAsync(r.Context())
	if err != nil {
		s.writeError(w, statusFor(err), err.Error())
		return
	}
	s.writeJSON(w, http.StatusAccepted, map[string]string{"status": "started"})
}

func (s *Server) listLogs(w http.ResponseWriter, r *http.Request) {
	filter := jobs.LogFilter{
		Status: jobs.LogStatus(r.URL.Query().Get("status")),
		Limit:  queryLimit(r),
	}
	if filter.Status != "" && !filter.Status.IsTerminal() && filter.Status != jobs.LogStatusProcessing {
		s.writeError(w, http.StatusBadRequest, "unknown status")
		return
	}
	entries, err := s.logs.List(r.Context(), filter)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, "failed to list log entries")
		return
	}
	if entries == nil {
		entries = []jobs.LogEntry{}
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"entries": entries})
}

func (s *Server) getLog(w http.ResponseWriter, r *http.Request) {
	entry, err := s.logs.Get(r.Context(), chi.URLParam(r, "log_id"))
	if err != nil {
		s.writeError(w, statusFor(err), "log entry not found")
		return
	}
	s.writeJSON(w, http.StatusOK, entry)
}

type publishRequest struct {
	Reviewer string            `json:"reviewer"`
	Fields   map[string]string `json:"fields"`
}

func (s *Server) publishLog(w http.ResponseWriter, r *http.Request) {
	var req publishRequest
	if r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			s.writeError(w, http.StatusBadRequest, "invalid JSON")
			return
		}
	}
	edited := make(jobs.RawExtraction, len(req.Fields))
	for name, value := range req.Fields {
		field, err := jobs.ParseField(name)
		if err != nil {
			s.writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		edited[field] = value
	}
	if req.Reviewer == "" {
		req.Reviewer = r.Header.Get("X-Operator")
	}

	job, err := s.orch.Publish(r.Context(), chi.URLParam(r, "log_id"), req.Reviewer, edited)
	if err != nil {
		s.writeError(w, statusFor(err), err.Error())
		return
	}
	s.writeJSON(w, http.StatusCreated, job)
}

func (s *Server) listJobs(w http.ResponseWriter, r *http.Request) {
	list, err := s.jobStore.List(r.Context(), queryLimit(r))
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, "failed to list jobs")
		return
	}
	if list == nil {
		list = []jobs.Job{}
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"jobs": list})
}

func (s *Server) getJob(w http.ResponseWriter, r *http.Request) {
	job, err := s.jobStore.Get(r.Context(), chi.URLParam(r, "job_id"))
	if err != nil {
		s.writeError(w, statusFor(err), "job not found")
		return
	}
	s.writeJSON(w, http.StatusOK, job)
}

func (s *Server) listTemplates(w http.ResponseWriter, r *http.Request) {
	list, err := s.templates.List(r.Context())
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, "failed to list templates")
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"templates": list})
}

func (s *Server) getTemplate(w http.ResponseWriter, r *http.Request) {
	tmpl, err := s.templates.Get(r.Context(), chi.URLParam(r, "template_id"))
	if err != nil {
		s.writeError(w, statusFor(err), "template not found")
		return
	}
	s.writeJSON(w, http.StatusOK, tmpl)
}

func (s *Server) putTemplate(w http.ResponseWriter, r *http.Request) {
	var tmpl jobs.ExtractionTemplate
	if err := json.NewDecoder(r.Body).Decode(&tmpl); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	tmpl.ID = chi.URLParam(r, "template_id")
	saved, err := s.templates.Upsert(r.Context(), tmpl)
	if err != nil {
		s.writeError(w, statusFor(err), err.Error())
		return
	}
	s.writeJSON(w, http.StatusOK, saved)
}

func (s *Server) deactivateTemplate(w http.ResponseWriter, r *http.Request) {
	tmpl, err := s.templates.Deactivate(r.Context(), chi.URLParam(r, "template_id"))
	if err != nil {
		s.writeError(w, statusFor(err), err.Error())
		return
	}
	s.writeJSON(w, http.StatusOK, tmpl)
}

func statusFor(err error) int {
	var malformed *jobs.MalformedURLError
	switch {
	case errors.Is(err, jobs.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, jobs.ErrNotReviewable), errors.Is(err, jobs.ErrLogFinalized), errors.Is(err, jobs.ErrRunInProgress):
		return http.StatusConflict
	case errors.Is(err, jobs.ErrInvalidTemplate), errors.As(err, &malformed):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

func queryLimit(r *http.Request) int {
	limit, err := strconv.Atoi(r.URL.Query().Get("limit"))
	if err != nil || limit <= 0 {
		return defaultListLimit
	}
	return limit
}

func requestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		reqID := r.Header.Get("X-Request-ID")
		if reqID == "" {
			reqID = uuid.NewString()
		}
		ctx := context.WithValue(r.Context(), requestIDKey{}, reqID)
		w.Header().Set("X-Request-ID", reqID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := &responseWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(ww, r)
		reqID, _ := r.Context().Value(requestIDKey{}).(string)
		s.logger.Info("Request completed",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.status),
			zap.String("request_id", reqID),
			zap.Int64("duration_ms", time.Since(start).Milliseconds()),
		)
	})
}

func (s *Server) recoverMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				s.logger.Error("Panic recovered", zap.Any("error", rec), zap.String("path", r.URL.Path))
				s.writeError(w, http.StatusInternalServerError, "internal server error")
			}
		}()
		next.ServeHTTP(w, r)
	})
}

func timeoutMiddleware(d time.Duration) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.TimeoutHandler(next, d, "request timed out")
	}
}

type responseWriter struct {
	http.ResponseWriter
	status int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.status = code
	rw.ResponseWriter.WriteHeader(code)
}

func (rw *responseWriter) Write(b []byte) (int, error) {
	n, err := rw.ResponseWriter.Write(b)
	if err != nil {
		return n, fmt.Errorf("write response: %w", err)
	}
	return n, nil
}

func (rw *responseWriter) Flush() {
	if f, ok := rw.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

func (rw *responseWriter) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	if h, ok := rw.ResponseWriter.(http.Hijacker); ok {
		conn, buf, err := h.Hijack()
		if err != nil {
			return nil, nil, fmt.Errorf("hijack connection: %w", err)
		}
		return conn, buf, nil
	}
	return nil, nil, errors.New("hijacker not supported")
}

type requestIDKey struct{}

func apiKeyMiddleware(expected string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := r.Header.Get("X-API-Key")
			if key == "" {
				key = r.URL.Query().Get("api_key")
			}
			if key != expected {
				writeErrorTo(w, http.StatusForbidden, "unauthorized", nil)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, payload any) {
	writeJSONTo(w, status, payload, s.logger)
}

func (s *Server) writeError(w http.ResponseWriter, status int, msg string) {
	writeErrorTo(w, status, msg, s.logger)
}

func writeJSONTo(w http.ResponseWriter, status int, payload any, logger *zap.Logger) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil && logger != nil {
		logger.Error("Write JSON failed", zap.Error(err))
	}
}

func writeErrorTo(w http.ResponseWriter, status int, msg string, logger *zap.Logger) {
	writeJSONTo(w, status, map[string]string{"error": msg}, logger)
}
