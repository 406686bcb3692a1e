package health

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joescharf/sprintplan/internal/models"
	"github.com/joescharf/sprintplan/internal/planner"
)

func ptr(s string) *string { return &s }

func sprint(velocity int, assignees ...*string) models.GeneratedSprint {
	sp := models.GeneratedSprint{Velocity: velocity}
	for _, a := range assignees {
		sp.Tasks = append(sp.Tasks, models.Task{AssigneeID: a, StoryPoints: 3})
	}
	return sp
}

func TestScore_HealthyPlan(t *testing.T) {
	s := NewScorer()
	cfg := models.SprintConfiguration{VelocityPerSprint: 20}

	h := s.Score([]models.GeneratedSprint{
		sprint(20, ptr("a"), ptr("b")),
		sprint(20, ptr("b"), ptr("a")),
	}, cfg, nil)

	assert.Equal(t, 40, h.Utilization, "full sprints should get full utilization points")
	assert.Equal(t, 20, h.Overflow)
	assert.Equal(t, 20, h.Coverage)
	assert.Equal(t, 20, h.Balance)
	assert.Equal(t, 100, h.Total)

	require.Len(t, h.Load, 2)
	assert.Equal(t, MemberLoad{MemberID: "a", Tasks: 2, Points: 6}, h.Load[0])
	assert.Equal(t, MemberLoad{MemberID: "b", Tasks: 2, Points: 6}, h.Load[1])
}

func TestScore_UnhealthyPlan(t *testing.T) {
	s := NewScorer()
	cfg := models.SprintConfiguration{VelocityPerSprint: 20}

	h := s.Score([]models.GeneratedSprint{
		sprint(21, ptr("a"), ptr("a"), ptr("a"), nil),
		sprint(5, ptr("b"), nil, nil, nil),
	}, cfg, nil)

	// (1 + 0.25) / 2 * 40
	assert.Equal(t, 25, h.Utilization)
	assert.Equal(t, 10, h.Overflow, "one of two sprints exceeds the cap")
	assert.Equal(t, 10, h.Coverage, "4 of 8 tasks assigned")
	assert.Equal(t, 7, h.Balance, "1 vs 3 tasks")
	assert.Equal(t, h.Utilization+h.Overflow+h.Coverage+h.Balance, h.Total)
	assert.Less(t, h.Total, 60)
}

func TestScore_EmptyPlan(t *testing.T) {
	h := NewScorer().Score(nil, models.SprintConfiguration{VelocityPerSprint: 20}, nil)
	assert.Equal(t, 0, h.Total)
	assert.NotNil(t, h.Load)
	assert.Empty(t, h.Load)
}

func TestScore_NoRoster(t *testing.T) {
	h := NewScorer().Score([]models.GeneratedSprint{sprint(20, nil, nil, nil)}, models.SprintConfiguration{VelocityPerSprint: 20}, nil)
	assert.Equal(t, 0, h.Coverage)
	assert.Equal(t, 20, h.Balance, "no assignees is trivially balanced")
	assert.Empty(t, h.Load)
}

func TestScoreBalance(t *testing.T) {
	tests := []struct {
		name string
		load []MemberLoad
		want int
	}{
		{"none", nil, 20},
		{"single", []MemberLoad{{Tasks: 5}}, 20},
		{"even", []MemberLoad{{Tasks: 3}, {Tasks: 3}}, 20},
		{"half", []MemberLoad{{Tasks: 2}, {Tasks: 4}}, 10},
		{"idle member", []MemberLoad{{Tasks: 0}, {Tasks: 4}}, 0},
		{"all idle", []MemberLoad{{Tasks: 0}, {Tasks: 0}}, 20},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, scoreBalance(tt.load, 20))
		})
	}
}

func TestScore_IdleRosterMembers(t *testing.T) {
	roster := []models.TeamMember{
		{UserEmail: "a", Role: models.RoleDeveloper},
		{UserEmail: "b", Role: models.RoleDeveloper},
		{UserEmail: "c", Role: models.RoleDeveloper},
	}
	h := NewScorer().Score([]models.GeneratedSprint{
		sprint(20, ptr("a"), ptr("a")),
	}, models.SprintConfiguration{VelocityPerSprint: 20}, roster)

	require.Len(t, h.Load, 3)
	assert.Equal(t, MemberLoad{MemberID: "b"}, h.Load[1])
	assert.Equal(t, MemberLoad{MemberID: "c"}, h.Load[2])
	assert.Equal(t, 0, h.Balance, "two of three members idle")
}

func TestScore_CumulativeBalancesAtLeastAsWellAsPerLookup(t *testing.T) {
	roster := []models.TeamMember{
		{UserEmail: "d@example.com", Role: models.RoleDesigner},
		{UserEmail: "a@example.com", Role: models.RoleDeveloper},
		{UserEmail: "b@example.com", Role: models.RoleDeveloper},
		{UserEmail: "c@example.com", Role: models.RoleDeveloper},
		{UserEmail: "t@example.com", Role: models.RoleTester},
	}
	var backlog []models.Feature
	for _, id := range []string{"F1", "F2", "F3"} {
		backlog = append(backlog, models.Feature{
			ID: id, Title: id, Status: models.FeatureStatusApproved,
			Priority: models.PriorityMedium, Complexity: models.ComplexityModerate,
		})
	}
	cfg := models.SprintConfiguration{
		SprintLengthWeeks: 2,
		StartDate:         time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		VelocityPerSprint: 40,
	}

	score := func(mode planner.BalanceMode) *PlanScore {
		sprints, err := planner.New(planner.Options{Balancing: mode}).Generate(backlog, roster, cfg)
		require.NoError(t, err)
		return NewScorer().Score(sprints, cfg, roster)
	}

	cumulative := score(planner.BalanceCumulative)
	perLookup := score(planner.BalancePerLookup)

	assert.Len(t, cumulative.Load, 5)
	assert.Len(t, perLookup.Load, 5)
	assert.Equal(t, 0, perLookup.Balance, "per_lookup leaves three members idle")
	assert.GreaterOrEqual(t, cumulative.Balance, perLookup.Balance)
	assert.Greater(t, cumulative.Balance, 0)
}
