package quality

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/govjobs-pipeline/internal/jobs"
)

func scenarioA() jobs.CanonicalJob {
	return jobs.CanonicalJob{
		Title:         "SSC CGL Recruitment 2025 Notification",
		Department:    "Staff Selection Commission",
		Location:      jobs.DefaultLocation,
		Qualification: "Graduate",
		Deadline:      "15/03/2025",
		Salary:        "₹35,400",
		ApplyLink:     "https://ssc.nic.in",
		SourceURL:     "https://ssc.nic.in",
		Positions:     1,
	}
}

func TestScoreScenarioA(t *testing.T) {
	t.Parallel()

	score := Score(scenarioA())
	require.InDelta(t, 0.9, score, 1e-9)
	require.True(t, Publishable(score, DefaultThreshold))
}

func TestScorePlaceholderJob(t *testing.T) {
	t.Parallel()

	job := jobs.CanonicalJob{
		Title:         jobs.PlaceholderTitle,
		Department:    jobs.DefaultDepartment,
		Location:      jobs.DefaultLocation,
		Qualification: jobs.DefaultQualification,
		Deadline:      jobs.DefaultDeadline,
		Salary:        jobs.DefaultSalary,
		Positions:     1,
	}
	score := Score(job)
	require.InDelta(t, 0.05, score, 1e-9)
	require.False(t, Publishable(score, DefaultThreshold))
}

func TestScoreIsCappedAndBounded(t *testing.T) {
	t.Parallel()

	full := scenarioA()
	full.Location = "New Delhi, India"
	full.Description = "Applications are invited for the Combined Graduate Level Examination across India."
	require.InDelta(t, 1.0, Score(full), 1e-9)
	require.InDelta(t, 0.0, Score(jobs.CanonicalJob{}), 1e-9)
}

func TestScoreMonotonicInRequiredFields(t *testing.T) {
	t.Parallel()

	base := jobs.CanonicalJob{Positions: 1}
	setters := []func(*jobs.CanonicalJob){
		func(j *jobs.CanonicalJob) { j.Title = "Junior Engineer Recruitment" },
		func(j *jobs.CanonicalJob) { j.Department = "Railway Recruitment Board" },
		func(j *jobs.CanonicalJob) { j.Location = "Chennai, Tamil Nadu" },
		func(j *jobs.CanonicalJob) { j.Qualification = "Diploma in Engineering" },
		func(j *jobs.CanonicalJob) { j.Deadline = "30/04/2025" },
	}
	prev := Score(base)
	for _, set := range setters {
		set(&base)
		next := Score(base)
		require.GreaterOrEqual(t, next, prev)
		prev = next
	}
	for i := len(setters) - 1; i >= 0; i-- {
		reduced := base
		switch i {
		case 0:
			reduced.Title = ""
		case 1:
			reduced.Department = ""
		case 2:
			reduced.Location = ""
		case 3:
			reduced.Qualification = ""
		case 4:
			reduced.Deadline = ""
		}
		require.LessOrEqual(t, Score(reduced), Score(base))
	}
}

func TestShortValuesDoNotCount(t *testing.T) {
	t.Parallel()

	job := jobs.CanonicalJob{Title: "Clerk", Qualification: "10th", Salary: "Rs5"}
	require.InDelta(t, 0.0, Score(job), 1e-9)
}
