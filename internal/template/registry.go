package template

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/JakeFAU/govjobs-pipeline/internal/jobs"
)

// Registry selects and maintains extraction templates backed by a TemplateStore.
// Every call re-reads the store so admin edits apply to the next extraction.
type Registry struct {
	store  jobs.TemplateStore
	clock  jobs.Clock
	logger *zap.Logger
}

// NewRegistry builds a registry over store.
func NewRegistry(store jobs.TemplateStore, clock jobs.Clock, logger *zap.Logger) *Registry {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Registry{store: store, clock: clock, logger: logger.Named("templates")}
}

// Seed upserts templates that are not already stored. Existing templates keep
// their admin edits.
func (r *Registry) Seed(ctx context.Context, templates []jobs.ExtractionTemplate) error {
	_, err := r.seed(ctx, templates)
	return err
}

// SeedFile seeds templates read from the templates file. A stored template
// with the same ID wins, so edits to the file after the first start are
// ignored; each skipped ID is logged with a warning and returned.
func (r *Registry) SeedFile(ctx context.Context, path string, templates []jobs.ExtractionTemplate) ([]string, error) {
	skipped, err := r.seed(ctx, templates)
	for _, id := range skipped {
		r.logger.Warn("Template from file already stored; keeping stored version",
			zap.String("template_id", id), zap.String("path", path))
	}
	return skipped, err
}

func (r *Registry) seed(ctx context.Context, templates []jobs.ExtractionTemplate) ([]string, error) {
	var skipped []string
	for _, tmpl := range templates {
		_, err := r.store.Get(ctx, tmpl.ID)
		switch {
		case err == nil:
			skipped = append(skipped, tmpl.ID)
			continue
		case !errors.Is(err, jobs.ErrNotFound):
			return skipped, fmt.Errorf("seed template %s: %w", tmpl.ID, err)
		}
		if _, err := r.Upsert(ctx, tmpl); err != nil {
			return skipped, fmt.Errorf("seed template %s: %w", tmpl.ID, err)
		}
		r.logger.Debug("Seeded template", zap.String("template_id", tmpl.ID), zap.String("domain", tmpl.Domain))
	}
	return skipped, nil
}

// Select returns the most specific active template for rawURL. A template
// matches when its domain is a substring of the URL's hostname; the longest
// matching domain wins. When nothing matches the wildcard is returned. The
// returned template is always usable; a non-nil error only reports that the
// store could not be read and the built-in wildcard was substituted.
func (r *Registry) Select(ctx context.Context, rawURL string) (jobs.ExtractionTemplate, error) {
	host := hostname(rawURL)

	all, err := r.store.List(ctx)
	if err != nil {
		r.logger.Warn("Template store unavailable; using built-in wildcard", zap.Error(err))
		return Wildcard(), fmt.Errorf("list templates: %w", err)
	}

	var (
		best     jobs.ExtractionTemplate
		found    bool
		wildcard jobs.ExtractionTemplate
		haveWild bool
	)
	for _, tmpl := range all {
		if !tmpl.Active {
			continue
		}
		if tmpl.IsWildcard() {
			if !haveWild {
				wildcard, haveWild = tmpl, true
			}
			continue
		}
		domain := normalizeDomain(tmpl.Domain)
		if host == "" || domain == "" || !strings.Contains(host, domain) {
			continue
		}
		if !found || len(domain) > len(normalizeDomain(best.Domain)) {
			best, found = tmpl, true
		}
	}

	switch {
	case found:
		return best, nil
	case haveWild:
		return wildcard, nil
	default:
		return Wildcard(), nil
	}
}

// Get returns the template with id.
func (r *Registry) Get(ctx context.Context, id string) (jobs.ExtractionTemplate, error) {
	tmpl, err := r.store.Get(ctx, id)
	if err != nil {
		return jobs.ExtractionTemplate{}, fmt.Errorf("get template %s: %w", id, err)
	}
	return tmpl, nil
}

// List returns all templates ordered by ID.
func (r *Registry) List(ctx context.Context) ([]jobs.ExtractionTemplate, error) {
	all, err := r.store.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list templates: %w", err)
	}
	sort.Slice(all, func(i, j int) bool { return all[i].ID < all[j].ID })
	return all, nil
}

// Upsert validates and stores tmpl, stamping UpdatedAt.
func (r *Registry) Upsert(ctx context.Context, tmpl jobs.ExtractionTemplate) (jobs.ExtractionTemplate, error) {
	if err := Validate(tmpl); err != nil {
		return jobs.ExtractionTemplate{}, err
	}
	if tmpl.IsWildcard() && !tmpl.Active {
		return jobs.ExtractionTemplate{}, fmt.Errorf("%w: wildcard template must stay active", jobs.ErrInvalidTemplate)
	}
	tmpl = tmpl.Clone()
	tmpl.Domain = normalizeDomain(tmpl.Domain)
	tmpl.UpdatedAt = r.clock.Now()
	if err := r.store.Upsert(ctx, tmpl); err != nil {
		return jobs.ExtractionTemplate{}, fmt.Errorf("upsert template %s: %w", tmpl.ID, err)
	}
	r.logger.Info("Template saved", zap.String("template_id", tmpl.ID), zap.String("domain", tmpl.Domain), zap.Bool("active", tmpl.Active))
	return tmpl, nil
}

// Deactivate marks a template inactive. The wildcard cannot be deactivated.
func (r *Registry) Deactivate(ctx context.Context, id string) (jobs.ExtractionTemplate, error) {
	tmpl, err := r.Get(ctx, id)
	if err != nil {
		return jobs.ExtractionTemplate{}, err
	}
	if tmpl.IsWildcard() {
		return jobs.ExtractionTemplate{}, fmt.Errorf("%w: wildcard template cannot be deactivated", jobs.ErrInvalidTemplate)
	}
	tmpl.Active = false
	return r.Upsert(ctx, tmpl)
}

func hostname(rawURL string) string {
	u, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil {
		return ""
	}
	return strings.ToLower(u.Hostname())
}
