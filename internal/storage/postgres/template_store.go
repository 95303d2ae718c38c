package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/JakeFAU/govjobs-pipeline/internal/jobs"
)

// TemplateStore persists extraction templates with their field rules as JSONB.
type TemplateStore struct {
	db DB
}

// NewTemplateStore wraps db.
func NewTemplateStore(db DB) (*TemplateStore, error) {
	if db == nil {
		return nil, fmt.Errorf("pool is required")
	}
	return &TemplateStore{db: db}, nil
}

// List returns every stored template ordered by id.
func (s *TemplateStore) List(ctx context.Context) ([]jobs.ExtractionTemplate, error) {
	rows, err := s.db.Query(ctx, `SELECT id, name, domain, fields, active, updated_at
FROM extraction_templates ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("list templates: %w", err)
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
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list templates: %w", err)
	}
	return out, nil
}

// Get returns the template with id.
func (s *TemplateStore) Get(ctx context.Context, id string) (jobs.ExtractionTemplate, error) {
	row := s.db.QueryRow(ctx, `SELECT id, name, domain, fields, active, updated_at
FROM extraction_templates WHERE id = $1`, id)
	return scanTemplate(row)
}

// Upsert inserts or replaces tmpl.
func (s *TemplateStore) Upsert(ctx context.Context, tmpl jobs.ExtractionTemplate) error {
	fields, err := json.Marshal(tmpl.Fields)
	if err != nil {
		return fmt.Errorf("marshal template fields: %w", err)
	}
	_, err = s.db.Exec(ctx, `INSERT INTO extraction_templates (id, name, domain, fields, active, updated_at)
VALUES ($1, $2, $3, $4, $5, $6)
ON CONFLICT (id) DO UPDATE SET
	name = EXCLUDED.name,
	domain = EXCLUDED.domain,
	fields = EXCLUDED.fields,
	active = EXCLUDED.active,
	updated_at = EXCLUDED.updated_at`,
		tmpl.ID, tmpl.Name, tmpl.Domain, fields, tmpl.Active, tmpl.UpdatedAt)
	if err != nil {
		return fmt.Errorf("upsert template %s: %w", tmpl.ID, err)
	}
	return nil
}

func scanTemplate(row pgx.Row) (jobs.ExtractionTemplate, error) {
	var (
		tmpl   jobs.ExtractionTemplate
		fields []byte
	)
	err := row.Scan(&tmpl.ID, &tmpl.Name, &tmpl.Domain, &fields, &tmpl.Active, &tmpl.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return jobs.ExtractionTemplate{}, jobs.ErrNotFound
	}
	if err != nil {
		return jobs.ExtractionTemplate{}, fmt.Errorf("scan template: %w", err)
	}
	if err := json.Unmarshal(fields, &tmpl.Fields); err != nil {
		return jobs.ExtractionTemplate{}, fmt.Errorf("decode template %s fields: %w", tmpl.ID, err)
	}
	return tmpl, nil
}
