package planner

import (
	"cmp"
	"slices"

	"github.com/joescharf/sprintplan/internal/models"
)

// PriorityRank orders priorities from critical (4) down to low (1).
// Unrecognized priorities rank 0 and sort after low.
func PriorityRank(p models.Priority) int {
	switch p {
	case models.PriorityCritical:
		return 4
	case models.PriorityHigh:
		return 3
	case models.PriorityMedium:
		return 2
	case models.PriorityLow:
		return 1
	default:
		return 0
	}
}

// Prioritize returns the approved features of backlog, highest priority
// first. Features of equal priority keep their backlog order.
func Prioritize(backlog []models.Feature) []models.Feature {
	out := make([]models.Feature, 0, len(backlog))
	for _, f := range backlog {
		if f.Status == models.FeatureStatusApproved {
			out = append(out, f)
		}
	}
	slices.SortStableFunc(out, func(a, b models.Feature) int {
		return cmp.Compare(PriorityRank(b.Priority), PriorityRank(a.Priority))
	})
	return out
}
