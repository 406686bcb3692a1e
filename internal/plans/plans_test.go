package plans

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joescharf/sprintplan/internal/models"
	"github.com/joescharf/sprintplan/internal/planner"
	"github.com/joescharf/sprintplan/internal/store"
)

func setupStore(t *testing.T) store.Store {
	t.Helper()
	s, err := store.NewSQLiteStore(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	require.NoError(t, s.Migrate(context.Background()))
	t.Cleanup(func() { s.Close() })
	return s
}

func seed(t *testing.T, s store.Store) *models.Project {
	t.Helper()
	ctx := context.Background()
	p := &models.Project{Name: "shop"}
	require.NoError(t, s.CreateProject(ctx, p))

	for _, f := range []models.Feature{
		{Title: "Checkout", Status: models.FeatureStatusApproved, Priority: models.PriorityHigh, Complexity: models.ComplexityModerate},
		{Title: "Search", Status: models.FeatureStatusApproved, Priority: models.PriorityCritical, Complexity: models.ComplexitySimple},
		{Title: "Wishlist", Status: models.FeatureStatusDraft, Priority: models.PriorityCritical, Complexity: models.ComplexitySimple},
	} {
		f.ProjectID = p.ID
		require.NoError(t, s.CreateFeature(ctx, &f))
	}
	for _, m := range []models.TeamMember{
		{UserEmail: "dana@example.com", Role: models.RoleDesigner},
		{UserEmail: "eli@example.com", Role: models.RoleDeveloper},
	} {
		m.ProjectID = p.ID
		require.NoError(t, s.CreateMember(ctx, &m))
	}
	return p
}

func testConfig() models.SprintConfiguration {
	return models.SprintConfiguration{
		SprintLengthWeeks: 2,
		StartDate:         time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		VelocityPerSprint: 20,
	}
}

func TestInputs(t *testing.T) {
	s := setupStore(t)
	p := seed(t, s)

	backlog, roster, err := Inputs(context.Background(), s, p.ID)
	require.NoError(t, err)
	require.Len(t, backlog, 3)
	assert.Equal(t, "Checkout", backlog[0].Title)
	require.Len(t, roster, 2)
	assert.Equal(t, "dana@example.com", roster[0].UserEmail)
}

func TestGenerate_Preview(t *testing.T) {
	s := setupStore(t)
	p := seed(t, s)
	ctx := context.Background()

	plan, err := Generate(ctx, s, p.ID, testConfig(), planner.Options{}, false)
	require.NoError(t, err)
	assert.Empty(t, plan.ID)
	assert.Equal(t, "cumulative", plan.Balancing)

	// Search (critical, 5) and Checkout (high, 13) fit in one 20-point sprint.
	require.Len(t, plan.Sprints, 1)
	assert.Equal(t, 18, plan.Sprints[0].Velocity)
	assert.Equal(t, "Search", plan.Sprints[0].Features[0].Title)
	assert.Len(t, plan.Sprints[0].Tasks, 6)

	saved, err := s.ListPlans(ctx, p.ID)
	require.NoError(t, err)
	assert.Empty(t, saved)
}

func TestGenerate_Save(t *testing.T) {
	s := setupStore(t)
	p := seed(t, s)
	ctx := context.Background()

	plan, err := Generate(ctx, s, p.ID, testConfig(), planner.Options{Balancing: planner.BalancePerLookup}, true)
	require.NoError(t, err)
	require.NotEmpty(t, plan.ID)

	got, err := s.GetPlan(ctx, plan.ID)
	require.NoError(t, err)
	assert.Equal(t, "per_lookup", got.Balancing)
	assert.Equal(t, plan.Sprints, got.Sprints)
}

func TestGenerate_UnknownProject(t *testing.T) {
	s := setupStore(t)
	_, err := Generate(context.Background(), s, "nope", testConfig(), planner.Options{}, false)
	assert.True(t, errors.Is(err, store.ErrNotFound))
}

func TestGenerate_InvalidConfig(t *testing.T) {
	s := setupStore(t)
	p := seed(t, s)
	cfg := testConfig()
	cfg.VelocityPerSprint = 0

	_, err := Generate(context.Background(), s, p.ID, cfg, planner.Options{}, true)
	var cfgErr *planner.ConfigError
	require.ErrorAs(t, err, &cfgErr)
	assert.Equal(t, "velocity_per_sprint", cfgErr.Field)
}

func TestResolve(t *testing.T) {
	defaults := models.SprintConfiguration{SprintLengthWeeks: 2, VelocityPerSprint: 40}
	now := time.Date(2024, 3, 4, 18, 0, 0, 0, time.UTC)

	t.Run("defaults with today", func(t *testing.T) {
		cfg, opts, err := Resolve(defaults, planner.Options{}, Overrides{}, now)
		require.NoError(t, err)
		assert.Equal(t, 2, cfg.SprintLengthWeeks)
		assert.Equal(t, 40, cfg.VelocityPerSprint)
		assert.Equal(t, time.Date(2024, 3, 4, 0, 0, 0, 0, time.UTC), cfg.StartDate)
		assert.Equal(t, planner.BalanceMode(""), opts.Balancing)
	})

	t.Run("overrides", func(t *testing.T) {
		cfg, opts, err := Resolve(defaults, planner.Options{}, Overrides{
			LengthWeeks: 3, StartDate: "2024-01-01", Velocity: 15, Balancing: "per_lookup",
		}, now)
		require.NoError(t, err)
		assert.Equal(t, 3, cfg.SprintLengthWeeks)
		assert.Equal(t, 15, cfg.VelocityPerSprint)
		assert.Equal(t, "2024-01-01", cfg.StartDate.Format(planner.DateLayout))
		assert.Equal(t, planner.BalancePerLookup, opts.Balancing)
	})

	t.Run("bad date", func(t *testing.T) {
		_, _, err := Resolve(defaults, planner.Options{}, Overrides{StartDate: "tomorrow"}, now)
		var cfgErr *planner.ConfigError
		require.ErrorAs(t, err, &cfgErr)
		assert.Equal(t, "start_date", cfgErr.Field)
	})

	t.Run("bad balancing", func(t *testing.T) {
		_, _, err := Resolve(defaults, planner.Options{}, Overrides{Balancing: "random"}, now)
		var cfgErr *planner.ConfigError
		require.ErrorAs(t, err, &cfgErr)
		assert.Equal(t, "balancing", cfgErr.Field)
	})
}
