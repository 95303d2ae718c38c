package extract

import (
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/PuerkitoBio/goquery"

	"github.com/JakeFAU/govjobs-pipeline/internal/jobs"
	"github.com/JakeFAU/govjobs-pipeline/internal/normalize"
)

// DefaultTitleKeywords mark a heading as describing a job.
var DefaultTitleKeywords = []string{
	"recruitment", "vacancy", "notification", "posts", "jobs", "hiring",
	"officer", "clerk", "assistant", "engineer", "teacher",
}

// DefaultQualificationTerms is the vocabulary scanned for a qualification.
var DefaultQualificationTerms = []string{
	"graduation", "graduate", "12th", "10th", "diploma", "degree",
	"b.tech", "b.e.", "m.tech", "mba", "ca", "cs",
}

const (
	minTitleLen = 10
	maxTitleLen = 200
)

var (
	deadlinePattern = regexp.MustCompile(`(?i)(?:last\s+date|deadline|closing\s+date|apply\s+by)[^0-9\n]{0,40}?(` + normalize.DateTokenPattern + `)`)
	salaryPattern   = regexp.MustCompile(`(?i)(?:₹|\brs\.?|\binr)\s*\d[\d,]*(?:\.\d+)?(?:\s*/-)?(?:\s*(?:-|–|to)\s*(?:₹|rs\.?|inr)?\s*\d[\d,]*(?:\.\d+)?(?:\s*/-)?)?(?:\s*per\s+month)?`)
	positionPattern = regexp.MustCompile(`(?i)\b(?:vacancy|vacancies|posts|positions)\b\s*(?:[:\-]|of|for)?\s*(\d[\d,]*)`)
)

// Heuristics is the final extraction tier. It only runs for title, deadline,
// qualification, salary and positions when the earlier tiers found nothing.
type Heuristics struct {
	titleKeywords []string
	qualification *regexp.Regexp
}

// NewHeuristics builds a heuristic set. Empty lists fall back to the defaults.
func NewHeuristics(titleKeywords, qualificationTerms []string) Heuristics {
	if len(titleKeywords) == 0 {
		titleKeywords = DefaultTitleKeywords
	}
	if len(qualificationTerms) == 0 {
		qualificationTerms = DefaultQualificationTerms
	}
	lower := make([]string, 0, len(titleKeywords))
	for _, kw := range titleKeywords {
		if kw = strings.ToLower(strings.TrimSpace(kw)); kw != "" {
			lower = append(lower, kw)
		}
	}
	quoted := make([]string, 0, len(qualificationTerms))
	for _, term := range qualificationTerms {
		if term = strings.TrimSpace(term); term != "" {
			quoted = append(quoted, regexp.QuoteMeta(term))
		}
	}
	return Heuristics{
		titleKeywords: lower,
		qualification: regexp.MustCompile(`(?i)(?:^|[^a-z0-9])(` + strings.Join(quoted, "|") + `)(?:[^a-z0-9]|$)`),
	}
}

func (h Heuristics) apply(field jobs.Field, doc *goquery.Document, text string) string {
	switch field {
	case jobs.FieldTitle:
		return h.title(doc)
	case jobs.FieldDeadline:
		return deadline(text)
	case jobs.FieldQualification:
		return h.qualificationTerm(text)
	case jobs.FieldSalary:
		return normalize.CollapseSpace(salaryPattern.FindString(text))
	case jobs.FieldPositions:
		return positions(text)
	default:
		return ""
	}
}

// HasHeuristic reports whether field has a heuristic tier.
func HasHeuristic(field jobs.Field) bool {
	switch field {
	case jobs.FieldTitle, jobs.FieldDeadline, jobs.FieldQualification, jobs.FieldSalary, jobs.FieldPositions:
		return true
	default:
		return false
	}
}

func (h Heuristics) title(doc *goquery.Document) string {
	if doc == nil {
		return ""
	}
	for _, sel := range []string{"title", "h1", "h2"} {
		candidate := normalize.CollapseSpace(doc.Find(sel).First().Text())
		if h.acceptTitle(candidate) {
			return candidate
		}
	}
	return ""
}

func (h Heuristics) acceptTitle(candidate string) bool {
	n := utf8.RuneCountInString(candidate)
	if n < minTitleLen || n > maxTitleLen {
		return false
	}
	lower := strings.ToLower(candidate)
	for _, kw := range h.titleKeywords {
		if strings.Contains(lower, kw) {
			return true
		}
	}
	return false
}

func (h Heuristics) qualificationTerm(text string) string {
	m := h.qualification.FindStringSubmatch(text)
	if m == nil {
		return ""
	}
	return m[1]
}

func deadline(text string) string {
	m := deadlinePattern.FindStringSubmatch(text)
	if m == nil {
		return ""
	}
	if out, ok := normalize.NormalizeDate(m[1]); ok {
		return out
	}
	return ""
}

func positions(text string) string {
	m := positionPattern.FindStringSubmatch(text)
	if m == nil {
		return ""
	}
	return strings.ReplaceAll(m[1], ",", "")
}
