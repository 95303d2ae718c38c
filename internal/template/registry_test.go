package template

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/JakeFAU/govjobs-pipeline/internal/jobs"
	"github.com/JakeFAU/govjobs-pipeline/internal/storage/memory"
)

type fixedClock struct{ t time.Time }

func (c fixedClock) Now() time.Time { return c.t }

type failingStore struct{ jobs.TemplateStore }

func (failingStore) List(context.Context) ([]jobs.ExtractionTemplate, error) {
	return nil, errors.New("db down")
}

func newRegistry(t *testing.T) *Registry {
	t.Helper()
	reg := NewRegistry(memory.NewTemplateStore(), fixedClock{t: time.Unix(1700000000, 0).UTC()}, zap.NewNop())
	require.NoError(t, reg.Seed(context.Background(), Builtins()))
	return reg
}

func exampleTemplate(id, domain string) jobs.ExtractionTemplate {
	return jobs.ExtractionTemplate{
		ID:     id,
		Domain: domain,
		Active: true,
		Fields: map[jobs.Field]jobs.FieldRule{jobs.FieldTitle: {Selectors: []string{"h1"}}},
	}
}

func TestSelectPrefersSpecificDomain(t *testing.T) {
	t.Parallel()

	reg := newRegistry(t)
	ctx := context.Background()
	_, err := reg.Upsert(ctx, exampleTemplate("example", "example.gov.in"))
	require.NoError(t, err)

	got, err := reg.Select(ctx, "https://sub.example.gov.in/jobs/1")
	require.NoError(t, err)
	require.Equal(t, "example", got.ID)

	got, err = reg.Select(ctx, "https://unknown.org/page")
	require.NoError(t, err)
	require.Equal(t, WildcardID, got.ID)
}

func TestSelectLongestDomainWins(t *testing.T) {
	t.Parallel()

	reg := newRegistry(t)
	ctx := context.Background()
	_, err := reg.Upsert(ctx, exampleTemplate("gov", "gov.in"))
	require.NoError(t, err)
	_, err = reg.Upsert(ctx, exampleTemplate("rrb", "rrbcdg.gov.in"))
	require.NoError(t, err)

	got, err := reg.Select(ctx, "https://www.rrbcdg.gov.in/notice")
	require.NoError(t, err)
	require.Equal(t, "rrb", got.ID)

	got, err = reg.Select(ctx, "https://other.gov.in/notice")
	require.NoError(t, err)
	require.Equal(t, "gov", got.ID)
}

func TestDeactivatedTemplateIsSkipped(t *testing.T) {
	t.Parallel()

	reg := newRegistry(t)
	ctx := context.Background()

	tmpl, err := reg.Deactivate(ctx, "ssc")
	require.NoError(t, err)
	require.False(t, tmpl.Active)

	got, err := reg.Select(ctx, "https://ssc.nic.in/notice")
	require.NoError(t, err)
	require.Equal(t, WildcardID, got.ID)

	_, err = reg.Deactivate(ctx, WildcardID)
	require.ErrorIs(t, err, jobs.ErrInvalidTemplate)
}

func TestSelectFallsBackWhenStoreFails(t *testing.T) {
	t.Parallel()

	reg := NewRegistry(failingStore{}, fixedClock{}, zap.NewNop())
	got, err := reg.Select(context.Background(), "https://ssc.nic.in")
	require.Error(t, err)
	require.Equal(t, WildcardID, got.ID)
	require.True(t, got.IsWildcard())
}

func TestUpsertRejectsInvalidTemplates(t *testing.T) {
	t.Parallel()

	reg := newRegistry(t)
	ctx := context.Background()

	bad := exampleTemplate("bad", "bad.gov.in")
	bad.Fields[jobs.FieldDeadline] = jobs.FieldRule{Pattern: "(unclosed"}
	_, err := reg.Upsert(ctx, bad)
	require.ErrorIs(t, err, jobs.ErrInvalidTemplate)

	bad = exampleTemplate("bad", "bad.gov.in")
	bad.Fields[jobs.FieldTitle] = jobs.FieldRule{Selectors: []string{"div[["}}
	_, err = reg.Upsert(ctx, bad)
	require.ErrorIs(t, err, jobs.ErrInvalidTemplate)

	bad = exampleTemplate("bad", "bad.gov.in")
	bad.Fields["bogus"] = jobs.FieldRule{Selectors: []string{"p"}}
	_, err = reg.Upsert(ctx, bad)
	require.ErrorIs(t, err, jobs.ErrInvalidTemplate)

	_, err = reg.Get(ctx, "bad")
	require.ErrorIs(t, err, jobs.ErrNotFound)
}

func TestSeedKeepsAdminEdits(t *testing.T) {
	t.Parallel()

	reg := newRegistry(t)
	ctx := context.Background()
	_, err := reg.Deactivate(ctx, "upsc")
	require.NoError(t, err)

	require.NoError(t, reg.Seed(ctx, Builtins()))
	got, err := reg.Get(ctx, "upsc")
	require.NoError(t, err)
	require.False(t, got.Active)
}

func TestSeedFileWarnsOnStoredTemplates(t *testing.T) {
	t.Parallel()

	core, logs := observer.New(zap.WarnLevel)
	store := memory.NewTemplateStore()
	reg := NewRegistry(store, fixedClock{t: time.Unix(1700000000, 0).UTC()}, zap.New(core))
	ctx := context.Background()

	first := exampleTemplate("rbi", "rbi.org.in")
	skipped, err := reg.SeedFile(ctx, "templates.yaml", []jobs.ExtractionTemplate{first})
	require.NoError(t, err)
	require.Empty(t, skipped)
	require.Zero(t, logs.Len())

	edited := exampleTemplate("rbi", "rbi.gov.in")
	skipped, err = reg.SeedFile(ctx, "templates.yaml", []jobs.ExtractionTemplate{edited})
	require.NoError(t, err)
	require.Equal(t, []string{"rbi"}, skipped)
	require.Equal(t, 1, logs.FilterField(zap.String("template_id", "rbi")).Len())

	got, err := reg.Get(ctx, "rbi")
	require.NoError(t, err)
	require.Equal(t, "rbi.org.in", got.Domain)
}

func TestLoadFile(t *testing.T) {
	t.Parallel()

	doc := `
templates:
  - id: rbi
    name: Reserve Bank of India
    domain: rbi.org.in
    active: true
    fields:
      title:
        selectors: ["h1.tablebg", "h1"]
      deadline:
        pattern: '(?i)last date[^0-9]*(\d{1,2}/\d{1,2}/\d{4})'
`
	path := filepath.Join(t.TempDir(), "templates.yaml")
	require.NoError(t, os.WriteFile(path, []byte(doc), 0o600))

	templates, err := LoadFile(path)
	require.NoError(t, err)
	require.Len(t, templates, 1)
	require.Equal(t, "rbi.org.in", templates[0].Domain)
	require.Equal(t, []string{"h1.tablebg", "h1"}, templates[0].Fields[jobs.FieldTitle].Selectors)
	require.NotEmpty(t, templates[0].Fields[jobs.FieldDeadline].Pattern)

	_, err = Parse([]byte("templates:\n  - id: x\n    domain: x.in\n    fields:\n      nope:\n        selectors: [p]\n"))
	require.ErrorIs(t, err, jobs.ErrInvalidTemplate)
}

func TestBuiltinsAreValid(t *testing.T) {
	t.Parallel()

	for _, tmpl := range Builtins() {
		require.NoError(t, Validate(tmpl), tmpl.ID)
	}
}
