package planner

import (
	"errors"
	"fmt"
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joescharf/sprintplan/internal/models"
)

func date(t *testing.T, s string) time.Time {
	t.Helper()
	d, err := ParseDate(s)
	require.NoError(t, err)
	return d
}

func feature(id string, p models.Priority, c models.Complexity) models.Feature {
	return models.Feature{
		ID:         id,
		Title:      "Feature " + id,
		Status:     models.FeatureStatusApproved,
		Priority:   p,
		Complexity: c,
	}
}

func member(email string, role models.Role) models.TeamMember {
	return models.TeamMember{UserEmail: email, FullName: email, Role: role}
}

func assignee(task models.Task) string {
	if task.AssigneeID == nil {
		return ""
	}
	return *task.AssigneeID
}

func TestGenerate_WorkedExample(t *testing.T) {
	backlog := []models.Feature{
		feature("F1", models.PriorityCritical, models.ComplexitySimple),
		feature("F2", models.PriorityHigh, models.ComplexityComplex),
		feature("F3", models.PriorityLow, models.ComplexityModerate),
	}
	roster := []models.TeamMember{
		member("d@example.com", models.RoleDesigner),
		member("dev@example.com", models.RoleDeveloper),
		member("t@example.com", models.RoleTester),
	}
	cfg := models.SprintConfiguration{
		SprintLengthWeeks: 2,
		StartDate:         date(t, "2024-01-01"),
		VelocityPerSprint: 20,
	}

	sprints, err := Generate(backlog, roster, cfg)
	require.NoError(t, err)
	require.Len(t, sprints, 3)

	windows := [][2]string{
		{"2024-01-01", "2024-01-14"},
		{"2024-01-15", "2024-01-28"},
		{"2024-01-29", "2024-02-11"},
	}
	velocities := []int{5, 21, 13}
	ids := []string{"F1", "F2", "F3"}

	total := 0
	for i, s := range sprints {
		assert.Equal(t, i+1, s.Number)
		assert.Equal(t, fmt.Sprintf("Sprint %d", i+1), s.Name)
		assert.Equal(t, windows[i][0], s.StartDate.Format(DateLayout))
		assert.Equal(t, windows[i][1], s.EndDate.Format(DateLayout))
		assert.Equal(t, velocities[i], s.Velocity)
		require.Len(t, s.Features, 1)
		assert.Equal(t, ids[i], s.Features[0].ID)
		assert.Equal(t, "Complete Feature "+ids[i], s.Goal)
		require.Len(t, s.Tasks, 3)
		assert.Equal(t, "d@example.com", assignee(s.Tasks[0]))
		assert.Equal(t, "dev@example.com", assignee(s.Tasks[1]))
		assert.Equal(t, "t@example.com", assignee(s.Tasks[2]))
		total += len(s.Tasks)
	}
	assert.Equal(t, 9, total)
}

func TestGenerate_TaskTemplate(t *testing.T) {
	f := feature("F1", models.PriorityLow, models.ComplexityComplex)
	cfg := models.SprintConfiguration{SprintLengthWeeks: 1, StartDate: date(t, "2024-03-04"), VelocityPerSprint: 30}

	sprints, err := Generate([]models.Feature{f}, nil, cfg)
	require.NoError(t, err)
	require.Len(t, sprints, 1)
	tasks := sprints[0].Tasks
	require.Len(t, tasks, 3)

	assert.Equal(t, models.TaskKindDesign, tasks[0].Kind)
	assert.Equal(t, "Design Feature F1", tasks[0].Title)
	assert.Equal(t, models.PriorityHigh, tasks[0].Priority)
	assert.Equal(t, 3, tasks[0].StoryPoints)
	assert.Equal(t, 8, tasks[0].EstimatedHours)

	assert.Equal(t, models.TaskKindImplement, tasks[1].Kind)
	assert.Equal(t, "Implement Feature F1", tasks[1].Title)
	assert.Equal(t, models.PriorityLow, tasks[1].Priority, "implement inherits feature priority")
	assert.Equal(t, 16, tasks[1].StoryPoints)
	assert.Equal(t, 32, tasks[1].EstimatedHours)

	assert.Equal(t, models.TaskKindTest, tasks[2].Kind)
	assert.Equal(t, "Test Feature F1", tasks[2].Title)
	assert.Equal(t, models.PriorityMedium, tasks[2].Priority)
	assert.Equal(t, 2, tasks[2].StoryPoints)
	assert.Equal(t, 4, tasks[2].EstimatedHours)

	for _, task := range tasks {
		assert.Equal(t, "F1", task.FeatureID)
		assert.Nil(t, task.AssigneeID, "empty roster leaves tasks unassigned")
		assert.NotEmpty(t, task.Description)
	}
}

func TestGenerate_SimpleFeatureImplementPoints(t *testing.T) {
	f := feature("S", models.PriorityMedium, models.ComplexitySimple)
	cfg := models.SprintConfiguration{SprintLengthWeeks: 1, StartDate: date(t, "2024-01-01"), VelocityPerSprint: 10}

	t.Run("literal zero by default", func(t *testing.T) {
		sprints, err := Generate([]models.Feature{f}, nil, cfg)
		require.NoError(t, err)
		impl := sprints[0].Tasks[1]
		assert.Equal(t, 0, impl.StoryPoints)
		assert.Equal(t, 0, impl.EstimatedHours)
	})

	t.Run("floored by option", func(t *testing.T) {
		sprints, err := New(Options{MinImplementPoints: 1}).Generate([]models.Feature{f}, nil, cfg)
		require.NoError(t, err)
		impl := sprints[0].Tasks[1]
		assert.Equal(t, 1, impl.StoryPoints)
		assert.Equal(t, 2, impl.EstimatedHours)
	})
}

func TestGenerate_EmptyInputs(t *testing.T) {
	cfg := models.SprintConfiguration{SprintLengthWeeks: 2, StartDate: date(t, "2024-01-01"), VelocityPerSprint: 20}

	sprints, err := Generate(nil, nil, cfg)
	require.NoError(t, err)
	assert.Empty(t, sprints)

	drafts := []models.Feature{
		{ID: "a", Title: "A", Status: models.FeatureStatusDraft, Priority: models.PriorityHigh},
		{ID: "b", Title: "B", Status: models.FeatureStatusRejected, Priority: models.PriorityCritical},
	}
	sprints, err = Generate(drafts, []models.TeamMember{member("x@example.com", models.RoleLead)}, cfg)
	require.NoError(t, err)
	assert.Empty(t, sprints, "only approved features are scheduled")
}

func TestGenerate_InvalidConfig(t *testing.T) {
	valid := models.SprintConfiguration{SprintLengthWeeks: 2, StartDate: date(t, "2024-01-01"), VelocityPerSprint: 20}

	tests := []struct {
		name  string
		edit  func(*models.SprintConfiguration)
		field string
	}{
		{"zero weeks", func(c *models.SprintConfiguration) { c.SprintLengthWeeks = 0 }, "sprint_length_weeks"},
		{"negative velocity", func(c *models.SprintConfiguration) { c.VelocityPerSprint = -5 }, "velocity_per_sprint"},
		{"missing start", func(c *models.SprintConfiguration) { c.StartDate = time.Time{} }, "start_date"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid
			tt.edit(&cfg)
			_, err := Generate(nil, nil, cfg)
			require.Error(t, err)
			var cerr *ConfigError
			require.True(t, errors.As(err, &cerr))
			assert.Equal(t, tt.field, cerr.Field)
		})
	}
}

func TestGenerate_OnStage(t *testing.T) {
	backlog := []models.Feature{
		feature("F1", models.PriorityCritical, models.ComplexitySimple),
		feature("F2", models.PriorityHigh, models.ComplexityComplex),
		feature("F3", models.PriorityLow, models.ComplexityModerate),
		{ID: "F4", Title: "draft", Status: models.FeatureStatusDraft},
	}
	cfg := models.SprintConfiguration{SprintLengthWeeks: 2, StartDate: date(t, "2024-01-01"), VelocityPerSprint: 20}

	var events []StageEvent
	p := New(Options{OnStage: func(e StageEvent) { events = append(events, e) }})
	_, err := p.Generate(backlog, nil, cfg)
	require.NoError(t, err)

	assert.Equal(t, []StageEvent{
		{Stage: StagePrioritize, Count: 3},
		{Stage: StagePack, Count: 3},
		{Stage: StageSynthesize, Count: 9},
	}, events)
}

func TestGenerate_DoesNotMutateInputs(t *testing.T) {
	backlog := []models.Feature{
		feature("A", models.PriorityLow, models.ComplexitySimple),
		feature("B", models.PriorityCritical, models.ComplexitySimple),
	}
	orig := append([]models.Feature(nil), backlog...)
	cfg := models.SprintConfiguration{SprintLengthWeeks: 1, StartDate: date(t, "2024-01-01"), VelocityPerSprint: 50}

	_, err := Generate(backlog, nil, cfg)
	require.NoError(t, err)
	assert.Equal(t, orig, backlog)
}

var (
	allPriorities   = []models.Priority{models.PriorityCritical, models.PriorityHigh, models.PriorityMedium, models.PriorityLow, "someday"}
	allComplexities = []models.Complexity{models.ComplexitySimple, models.ComplexityModerate, models.ComplexityComplex, ""}
	allStatuses     = []models.FeatureStatus{models.FeatureStatusApproved, models.FeatureStatusApproved, models.FeatureStatusDraft, models.FeatureStatusRejected}
	allRoles        = []models.Role{models.RoleDesigner, models.RoleDeveloper, models.RoleTester, models.RoleLead, "manager"}
)

func randomInputs(r *rand.Rand) ([]models.Feature, []models.TeamMember, models.SprintConfiguration) {
	backlog := make([]models.Feature, r.Intn(40))
	for i := range backlog {
		backlog[i] = models.Feature{
			ID:         fmt.Sprintf("F%03d", i),
			Title:      fmt.Sprintf("Feature %d", i),
			Status:     allStatuses[r.Intn(len(allStatuses))],
			Priority:   allPriorities[r.Intn(len(allPriorities))],
			Complexity: allComplexities[r.Intn(len(allComplexities))],
		}
	}
	roster := make([]models.TeamMember, r.Intn(6))
	for i := range roster {
		roster[i] = member(fmt.Sprintf("m%d@example.com", i), allRoles[r.Intn(len(allRoles))])
	}
	cfg := models.SprintConfiguration{
		SprintLengthWeeks: 1 + r.Intn(4),
		StartDate:         time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC).AddDate(0, 0, r.Intn(365)),
		VelocityPerSprint: 1 + r.Intn(60),
	}
	return backlog, roster, cfg
}

func TestGenerate_Properties(t *testing.T) {
	r := rand.New(rand.NewSource(42))

	for run := 0; run < 200; run++ {
		backlog, roster, cfg := randomInputs(r)

		sprints, err := Generate(backlog, roster, cfg)
		require.NoError(t, err)

		approved := map[string]bool{}
		for _, f := range backlog {
			if f.Status == models.FeatureStatusApproved {
				approved[f.ID] = true
			}
		}

		seen := map[string]int{}
		for i, s := range sprints {
			require.NotEmpty(t, s.Features, "run %d: sprint %d is empty", run, s.Number)

			if len(s.Features) > 1 {
				assert.LessOrEqual(t, s.Velocity, cfg.VelocityPerSprint, "run %d: sprint %d over capacity", run, s.Number)
			}

			sum := 0
			for _, f := range s.Features {
				seen[f.ID]++
				sum += f.Points
			}
			assert.Equal(t, sum, s.Velocity)

			if i > 0 {
				assert.Equal(t, sprints[i-1].EndDate.AddDate(0, 0, 1), s.StartDate, "run %d: windows not contiguous", run)
			}

			require.Len(t, s.Tasks, 3*len(s.Features))
			for j, f := range s.Features {
				kinds := []models.TaskKind{models.TaskKindDesign, models.TaskKindImplement, models.TaskKindTest}
				for k, kind := range kinds {
					task := s.Tasks[3*j+k]
					assert.Equal(t, kind, task.Kind)
					assert.Equal(t, f.ID, task.FeatureID)
					if len(roster) == 0 {
						assert.Nil(t, task.AssigneeID)
					} else {
						assert.NotNil(t, task.AssigneeID)
					}
				}
			}
		}

		assert.Len(t, seen, len(approved), "run %d: coverage mismatch", run)
		for id, n := range seen {
			assert.True(t, approved[id], "run %d: %s was not approved", run, id)
			assert.Equal(t, 1, n, "run %d: %s scheduled %d times", run, id, n)
		}

		again, err := Generate(backlog, roster, cfg)
		require.NoError(t, err)
		assert.Equal(t, sprints, again, "run %d: output is not deterministic", run)
	}
}

func TestParseBalanceMode(t *testing.T) {
	m, err := ParseBalanceMode("")
	require.NoError(t, err)
	assert.Equal(t, BalanceCumulative, m)

	m, err = ParseBalanceMode("per_lookup")
	require.NoError(t, err)
	assert.Equal(t, BalancePerLookup, m)

	_, err = ParseBalanceMode("random")
	assert.Error(t, err)
}

func TestParseDate(t *testing.T) {
	d, err := ParseDate("2024-02-29")
	require.NoError(t, err)
	assert.Equal(t, time.UTC, d.Location())
	assert.Equal(t, 29, d.Day())

	_, err = ParseDate("29/02/2024")
	assert.Error(t, err)
}
