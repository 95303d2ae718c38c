// Package normalize maps best-effort raw extractions into canonical job records.
package normalize

import (
	"net/url"
	"regexp"
	"strconv"
	"strings"

	"github.com/JakeFAU/govjobs-pipeline/internal/jobs"
)

var firstInteger = regexp.MustCompile(`\d[\d,]*`)

// Normalizer converts RawExtraction values into CanonicalJob records. It is the
// single place where required display fields receive their defaults.
type Normalizer struct {
	clock       jobs.Clock
	departments map[string]string
}

// New constructs a Normalizer. A nil departments table uses DefaultDepartments.
func New(clock jobs.Clock, departments map[string]string) *Normalizer {
	if departments == nil {
		departments = DefaultDepartments
	}
	table := make(map[string]string, len(departments))
	for host, name := range departments {
		table[strings.ToLower(strings.TrimSpace(host))] = name
	}
	return &Normalizer{clock: clock, departments: table}
}

// Normalize builds a CanonicalJob from raw for a page fetched from sourceURL.
// Every required field of the result is non-empty.
func (n *Normalizer) Normalize(raw jobs.RawExtraction, sourceURL string) jobs.CanonicalJob {
	sourceURL = strings.TrimSpace(sourceURL)
	job := jobs.CanonicalJob{
		Title:            orDefault(clean(raw.Get(jobs.FieldTitle)), jobs.PlaceholderTitle),
		Department:       clean(raw.Get(jobs.FieldDepartment)),
		Location:         orDefault(clean(raw.Get(jobs.FieldLocation)), jobs.DefaultLocation),
		Qualification:    orDefault(clean(raw.Get(jobs.FieldQualification)), jobs.DefaultQualification),
		Salary:           orDefault(clean(raw.Get(jobs.FieldSalary)), jobs.DefaultSalary),
		Deadline:         normalizeDeadline(raw.Get(jobs.FieldDeadline)),
		ApplyLink:        orDefault(clean(raw.Get(jobs.FieldApplyLink)), sourceURL),
		SourceURL:        sourceURL,
		AgeLimit:         clean(raw.Get(jobs.FieldAgeLimit)),
		ApplicationFee:   clean(raw.Get(jobs.FieldApplicationFee)),
		Description:      clean(raw.Get(jobs.FieldDescription)),
		SelectionProcess: clean(raw.Get(jobs.FieldSelectionProcess)),
		Positions:        ParsePositions(raw.Get(jobs.FieldPositions)),
		PostedOn:         n.postedOn(raw.Get(jobs.FieldPostedOn)),
	}
	if job.Department == "" {
		job.Department = n.Department(sourceURL)
	}
	if job.SourceURL == "" {
		job.SourceURL = job.ApplyLink
	}
	return job
}

// Department resolves the department for a URL from the hostname table,
// falling back to the generic government label.
func (n *Normalizer) Department(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return jobs.DefaultDepartment
	}
	host := strings.TrimPrefix(strings.ToLower(u.Hostname()), "www.")
	best, bestLen := "", 0
	for domain, name := range n.departments {
		if host != domain && !strings.HasSuffix(host, "."+domain) {
			continue
		}
		if len(domain) > bestLen {
			best, bestLen = name, len(domain)
		}
	}
	if best == "" {
		return jobs.DefaultDepartment
	}
	return best
}

func (n *Normalizer) postedOn(raw string) string {
	raw = clean(raw)
	if raw == "" {
		return FormatDate(n.clock.Now())
	}
	if out, ok := NormalizeDate(raw); ok {
		return out
	}
	return raw
}

// ParsePositions returns the first integer in s, or the default of 1 when s
// holds no positive integer.
func ParsePositions(s string) int {
	m := firstInteger.FindString(s)
	if m == "" {
		return jobs.DefaultPositions
	}
	v, err := strconv.Atoi(strings.ReplaceAll(m, ",", ""))
	if err != nil || v < 1 {
		return jobs.DefaultPositions
	}
	return v
}

func normalizeDeadline(raw string) string {
	raw = clean(raw)
	if raw == "" {
		return jobs.DefaultDeadline
	}
	if out, ok := NormalizeDate(raw); ok {
		return out
	}
	return raw
}

// CollapseSpace trims s and folds internal whitespace runs to single spaces.
func CollapseSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

func clean(s string) string {
	return CollapseSpace(s)
}

func orDefault(v, def string) string {
	if v == "" {
		return def
	}
	return v
}
