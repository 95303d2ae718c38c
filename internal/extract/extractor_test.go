package extract

import (
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/JakeFAU/govjobs-pipeline/internal/jobs"
)

const noticePage = `<!doctype html>
<html><head><title>Home | Staff Selection Commission</title>
<script>var lastDate = "01-01-2001";</script></head>
<body>
<h1 class="notice-title">  Combined Graduate Level
   Examination 2025 </h1>
<div class="meta">
<p>Department: Staff Selection Commission</p>
<p>Last date for receipt of applications: 15-03-2025</p>
<p>Essential qualification: Bachelor's Degree or Graduation from a recognised university</p>
<p>Pay Level-6: Rs. 35,400 - Rs. 1,12,400 per month</p>
<p>Total Vacancies: 17,727</p>
</div>
<a class="apply" href="/apply/cgl2025">Apply Online</a>
</body></html>`

func page(body string) jobs.Page {
	return jobs.Page{URL: "https://ssc.nic.in/notices/cgl", StatusCode: 200, Body: []byte(body)}
}

func TestExtractSelectorTier(t *testing.T) {
	t.Parallel()

	tmpl := jobs.ExtractionTemplate{
		ID:     "ssc",
		Domain: "ssc.nic.in",
		Fields: map[jobs.Field]jobs.FieldRule{
			jobs.FieldTitle:     {Selectors: []string{".missing", "h1.notice-title"}},
			jobs.FieldApplyLink: {Selectors: []string{"a.apply"}},
		},
	}
	raw := New(NewHeuristics(nil, nil), zap.NewNop()).Extract(page(noticePage), tmpl)

	require.Equal(t, "Combined Graduate Level Examination 2025", raw[jobs.FieldTitle])
	require.Equal(t, "https://ssc.nic.in/apply/cgl2025", raw[jobs.FieldApplyLink])
}

func TestExtractPatternTier(t *testing.T) {
	t.Parallel()

	tmpl := jobs.ExtractionTemplate{
		ID:     "generic",
		Domain: jobs.WildcardDomain,
		Fields: map[jobs.Field]jobs.FieldRule{
			jobs.FieldDepartment: {Selectors: []string{".department"}, Pattern: `(?i)department:\s*([^\n]+)`},
			jobs.FieldLocation:   {Pattern: `(?i)location:\s*([^\n]+)`},
		},
	}
	raw := New(NewHeuristics(nil, nil), nil).Extract(page(noticePage), tmpl)

	require.Equal(t, "Staff Selection Commission", raw[jobs.FieldDepartment])
	_, hasLocation := raw[jobs.FieldLocation]
	require.False(t, hasLocation)
}

func TestExtractHeuristicTier(t *testing.T) {
	t.Parallel()

	tmpl := jobs.ExtractionTemplate{ID: "empty", Domain: jobs.WildcardDomain, Fields: map[jobs.Field]jobs.FieldRule{}}
	raw := New(NewHeuristics(nil, nil), nil).Extract(page(noticePage), tmpl)

	// <title> has no job keyword, the <h1> has none either, so no title.
	_, hasTitle := raw[jobs.FieldTitle]
	require.False(t, hasTitle)
	require.Equal(t, "15/03/2025", raw[jobs.FieldDeadline])
	// The heading mentions "Graduate" before the eligibility paragraph.
	require.Equal(t, "Graduate", raw[jobs.FieldQualification])
	require.Equal(t, "Rs. 35,400 - Rs. 1,12,400 per month", raw[jobs.FieldSalary])
	require.Equal(t, "17727", raw[jobs.FieldPositions])
}

func TestTitleHeuristicAcceptsJobHeadings(t *testing.T) {
	t.Parallel()

	body := `<html><head><title>Welcome</title></head><body>
<h1>Recruitment of Junior Engineer 2025</h1><h2>Other</h2></body></html>`
	raw := New(NewHeuristics(nil, nil), nil).Extract(page(body), jobs.ExtractionTemplate{})
	require.Equal(t, "Recruitment of Junior Engineer 2025", raw[jobs.FieldTitle])

	body = `<html><head><title>Jobs</title></head><body><h1>Home</h1></body></html>`
	raw = New(NewHeuristics(nil, nil), nil).Extract(page(body), jobs.ExtractionTemplate{})
	_, hasTitle := raw[jobs.FieldTitle]
	require.False(t, hasTitle, "titles shorter than ten characters are rejected")
}

func TestQualificationLeftmostMatchWins(t *testing.T) {
	t.Parallel()

	h := NewHeuristics(nil, nil)
	require.Equal(t, "12th", h.qualificationTerm("Candidates must have passed 12th or hold a Diploma"))
	require.Equal(t, "B.E.", h.qualificationTerm("B.E. / B.Tech in Civil"))
	require.Empty(t, h.qualificationTerm("Local candidates only"))
}

func TestCustomHeuristics(t *testing.T) {
	t.Parallel()

	h := NewHeuristics([]string{"apprentice"}, []string{"iti"})
	require.True(t, h.acceptTitle("Apprentice Intake 2025"))
	require.False(t, h.acceptTitle("Recruitment Notice 2025"))
	require.Equal(t, "ITI", h.qualificationTerm("Pass in ITI trade"))
}

func TestExtractEmptyBody(t *testing.T) {
	t.Parallel()

	raw := New(NewHeuristics(nil, nil), nil).Extract(jobs.Page{URL: "https://x.in"}, jobs.ExtractionTemplate{})
	require.Empty(t, raw)
}
