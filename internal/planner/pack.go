package planner

import (
	"fmt"
	"time"

	"github.com/joescharf/sprintplan/internal/models"
)

// EffortPoints maps a complexity to its point value. Unknown complexities
// count as moderate.
func EffortPoints(c models.Complexity) int {
	switch c {
	case models.ComplexitySimple:
		return 5
	case models.ComplexityModerate:
		return 13
	case models.ComplexityComplex:
		return 21
	default:
		return 13
	}
}

// Bin is the set of features packed into one sprint.
type Bin struct {
	Number   int
	Features []models.Feature
	Velocity int
}

// Pack greedily fills sprints in the given order. A feature that would push
// a non-empty sprint over velocityCap starts the next sprint; a feature that
// alone exceeds the cap still gets a sprint to itself.
func Pack(features []models.Feature, velocityCap int) []Bin {
	var bins []Bin
	current := Bin{Number: 1}

	for _, f := range features {
		points := EffortPoints(f.Complexity)
		if current.Velocity+points > velocityCap && len(current.Features) > 0 {
			bins = append(bins, current)
			current = Bin{Number: current.Number + 1}
		}
		current.Features = append(current.Features, f)
		current.Velocity += points
	}

	if len(current.Features) > 0 {
		bins = append(bins, current)
	}
	return bins
}

// SprintWindow returns the first and last calendar day of sprint number n (1-based).
func SprintWindow(cfg models.SprintConfiguration, n int) (start, end time.Time) {
	days := cfg.SprintLengthWeeks * 7
	start = cfg.StartDate.AddDate(0, 0, (n-1)*days)
	end = start.AddDate(0, 0, days-1)
	return start, end
}

// SprintGoal summarizes a sprint from its leading feature.
func SprintGoal(features []models.Feature) string {
	switch len(features) {
	case 0:
		return ""
	case 1:
		return "Complete " + features[0].Title
	default:
		return fmt.Sprintf("Implement %s and %d supporting features", features[0].Title, len(features)-1)
	}
}
