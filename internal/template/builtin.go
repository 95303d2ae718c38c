package template

import "github.com/JakeFAU/govjobs-pipeline/internal/jobs"

// WildcardID is the ID of the built-in catch-all template.
const WildcardID = "generic"

// Wildcard returns the built-in catch-all template. It is used for unknown
// domains and whenever the store cannot supply an active wildcard.
func Wildcard() jobs.ExtractionTemplate {
	return jobs.ExtractionTemplate{
		ID:     WildcardID,
		Name:   "Generic government job page",
		Domain: jobs.WildcardDomain,
		Active: true,
		Fields: map[jobs.Field]jobs.FieldRule{
			jobs.FieldTitle: {
				Selectors: []string{"h1.job-title", ".job-title", ".post-title", "article h1"},
			},
			jobs.FieldDepartment: {
				Selectors: []string{".department", ".organization", ".org-name"},
				Pattern:   `(?i)(?:department|organisation|organization)\s*[:\-]\s*([^\n]{3,120})`,
			},
			jobs.FieldLocation: {
				Selectors: []string{".location", ".job-location"},
				Pattern:   `(?i)(?:job location|place of posting)\s*[:\-]\s*([^\n]{2,80})`,
			},
			jobs.FieldQualification: {
				Selectors: []string{".qualification", ".eligibility"},
				Pattern:   `(?i)(?:educational qualification|qualification)\s*[:\-]\s*([^\n]{3,200})`,
			},
			jobs.FieldDeadline: {
				Selectors: []string{".last-date", ".deadline", ".closing-date"},
			},
			jobs.FieldApplyLink: {
				Selectors: []string{"a.apply-link", "a.apply-online", "a[href*='apply']"},
			},
			jobs.FieldSalary: {
				Selectors: []string{".salary", ".pay-scale"},
			},
			jobs.FieldAgeLimit: {
				Selectors: []string{".age-limit"},
				Pattern:   `(?i)age limit\s*[:\-]\s*([^\n]{2,80})`,
			},
			jobs.FieldApplicationFee: {
				Selectors: []string{".application-fee", ".fee"},
				Pattern:   `(?i)application fee\s*[:\-]\s*([^\n]{2,120})`,
			},
			jobs.FieldDescription: {
				Selectors: []string{".job-description", ".description", "article p"},
			},
			jobs.FieldSelectionProcess: {
				Selectors: []string{".selection-process"},
				Pattern:   `(?i)selection process\s*[:\-]\s*([^\n]{3,200})`,
			},
			jobs.FieldPositions: {
				Selectors: []string{".vacancies", ".total-posts"},
			},
		},
	}
}

// Builtins returns the templates seeded at process start.
func Builtins() []jobs.ExtractionTemplate {
	return []jobs.ExtractionTemplate{
		Wildcard(),
		{
			ID:     "ssc",
			Name:   "Staff Selection Commission",
			Domain: "ssc.nic.in",
			Active: true,
			Fields: map[jobs.Field]jobs.FieldRule{
				jobs.FieldTitle:         {Selectors: []string{".notice-title", "h2.title", "h1"}},
				jobs.FieldDeadline:      {Pattern: `(?i)last date[^0-9]{0,40}(\d{1,2}[-/.]\d{1,2}[-/.]\d{2,4})`},
				jobs.FieldQualification: {Selectors: []string{".eligibility"}},
				jobs.FieldApplyLink:     {Selectors: []string{"a[href*='apply']", "a.apply"}},
			},
		},
		{
			ID:     "upsc",
			Name:   "Union Public Service Commission",
			Domain: "upsc.gov.in",
			Active: true,
			Fields: map[jobs.Field]jobs.FieldRule{
				jobs.FieldTitle:     {Selectors: []string{".views-field-title", "h1.page-header", "h1"}},
				jobs.FieldDeadline:  {Pattern: `(?i)(?:last date|closing date)[^0-9]{0,40}(\d{1,2}[-/.]\d{1,2}[-/.]\d{2,4})`},
				jobs.FieldApplyLink: {Selectors: []string{"a[href*='upsconline']"}},
			},
		},
		{
			ID:     "ibps",
			Name:   "Institute of Banking Personnel Selection",
			Domain: "ibps.in",
			Active: true,
			Fields: map[jobs.Field]jobs.FieldRule{
				jobs.FieldTitle:     {Selectors: []string{".entry-title", "h1"}},
				jobs.FieldApplyLink: {Selectors: []string{"a[href*='ibpsonline']", "a[href*='apply']"}},
			},
		},
	}
}
