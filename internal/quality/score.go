// Package quality scores canonical jobs for automatic publication.
package quality

import (
	"math"
	"unicode/utf8"

	"github.com/JakeFAU/govjobs-pipeline/internal/jobs"
)

// DefaultThreshold is the minimum score for automatic publication.
const DefaultThreshold = 0.8

const (
	requiredWeight = 0.20
	bonusWeight    = 0.05

	minRequiredLen    = 5
	minSalaryLen      = 3
	minDescriptionLen = 50
)

// Score returns a confidence in [0, 1] derived from field completeness.
// Normalizer placeholders count as missing.
func Score(job jobs.CanonicalJob) float64 {
	score := 0.0
	for _, v := range []string{job.Title, job.Department, job.Location, job.Qualification, job.Deadline} {
		if present(v, minRequiredLen) {
			score += requiredWeight
		}
	}
	if present(job.Salary, minSalaryLen) {
		score += bonusWeight
	}
	if present(job.Description, minDescriptionLen) {
		score += bonusWeight
	}
	if job.Positions >= 1 {
		score += bonusWeight
	}
	return math.Min(1, math.Round(score*100)/100)
}

// Publishable reports whether score meets threshold.
func Publishable(score, threshold float64) bool {
	return score >= threshold
}

func present(v string, minLen int) bool {
	return v != "" && !jobs.IsPlaceholder(v) && utf8.RuneCountInString(v) > minLen
}
