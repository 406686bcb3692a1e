package health

import (
	"math"
	"slices"
	"strings"

	"github.com/joescharf/sprintplan/internal/models"
)

// MemberLoad is the work assigned to one member. Roster members with no
// tasks are listed with zero load.
type MemberLoad struct {
	MemberID string `json:"member_id"`
	Tasks    int    `json:"tasks"`
	Points   int    `json:"points"`
}

// PlanScore represents the computed health of a generated plan.
type PlanScore struct {
	Total       int          `json:"total"`
	Utilization int          `json:"utilization"` // 0-40
	Overflow    int          `json:"overflow"`    // 0-20
	Coverage    int          `json:"coverage"`    // 0-20
	Balance     int          `json:"balance"`     // 0-20
	Load        []MemberLoad `json:"load"`
}

// Scorer computes health scores for sprint plans.
type Scorer struct{}

// NewScorer returns a new health Scorer.
func NewScorer() *Scorer {
	return &Scorer{}
}

// Score computes a health score (0-100) for a list of generated sprints.
// roster is the team the plan was drawn from; idle members count against
// the balance score.
func (s *Scorer) Score(sprints []models.GeneratedSprint, cfg models.SprintConfiguration, roster []models.TeamMember) *PlanScore {
	h := &PlanScore{Load: []MemberLoad{}}
	if len(sprints) == 0 {
		return h
	}

	// Utilization (40 pts) - sprints filled close to capacity
	h.Utilization = scoreUtilization(sprints, cfg.VelocityPerSprint, 40)

	// Overflow (20 pts) - single features larger than the cap
	h.Overflow = scoreOverflow(sprints, cfg.VelocityPerSprint, 20)

	// Coverage (20 pts) - tasks with an assignee
	h.Coverage = scoreCoverage(sprints, 20)

	h.Load = memberLoad(sprints, roster)
	h.Balance = scoreBalance(h.Load, 20)

	h.Total = h.Utilization + h.Overflow + h.Coverage + h.Balance
	return h
}

func scoreUtilization(sprints []models.GeneratedSprint, capacity, maxPoints int) int {
	if capacity <= 0 {
		return 0
	}
	var sum float64
	for _, sp := range sprints {
		sum += math.Min(float64(sp.Velocity)/float64(capacity), 1)
	}
	return int(math.Round(float64(maxPoints) * sum / float64(len(sprints))))
}

func scoreOverflow(sprints []models.GeneratedSprint, capacity, maxPoints int) int {
	over := 0
	for _, sp := range sprints {
		if sp.Velocity > capacity {
			over++
		}
	}
	if over == 0 {
		return maxPoints
	}
	return int(math.Round(float64(maxPoints) * (1 - float64(over)/float64(len(sprints)))))
}

func scoreCoverage(sprints []models.GeneratedSprint, maxPoints int) int {
	total, assigned := 0, 0
	for _, sp := range sprints {
		for _, t := range sp.Tasks {
			total++
			if t.AssigneeID != nil {
				assigned++
			}
		}
	}
	if total == 0 {
		return maxPoints
	}
	return int(math.Round(float64(maxPoints) * float64(assigned) / float64(total)))
}

// memberLoad tallies tasks and points per roster member and assignee,
// sorted by member ID.
func memberLoad(sprints []models.GeneratedSprint, roster []models.TeamMember) []MemberLoad {
	byID := map[string]*MemberLoad{}
	for _, m := range roster {
		byID[m.UserEmail] = &MemberLoad{MemberID: m.UserEmail}
	}
	for _, sp := range sprints {
		for _, t := range sp.Tasks {
			if t.AssigneeID == nil {
				continue
			}
			l, ok := byID[*t.AssigneeID]
			if !ok {
				l = &MemberLoad{MemberID: *t.AssigneeID}
				byID[*t.AssigneeID] = l
			}
			l.Tasks++
			l.Points += t.StoryPoints
		}
	}

	out := make([]MemberLoad, 0, len(byID))
	for _, l := range byID {
		out = append(out, *l)
	}
	slices.SortFunc(out, func(a, b MemberLoad) int {
		return strings.Compare(a.MemberID, b.MemberID)
	})
	return out
}

// scoreBalance compares the lightest and heaviest task counts.
func scoreBalance(load []MemberLoad, maxPoints int) int {
	if len(load) <= 1 {
		return maxPoints
	}
	lo, hi := load[0].Tasks, load[0].Tasks
	for _, l := range load[1:] {
		lo = min(lo, l.Tasks)
		hi = max(hi, l.Tasks)
	}
	if hi == 0 {
		return maxPoints
	}
	return int(math.Round(float64(maxPoints) * float64(lo) / float64(hi)))
}
