package cmd

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joescharf/sprintplan/internal/models"
	"github.com/joescharf/sprintplan/internal/store"
)

// resetPlanFlags clears the shared plan flag variables after a test.
func resetPlanFlags(t *testing.T) {
	t.Helper()
	t.Cleanup(func() {
		planFile, planStart, planBalancing, planFormat = "", "", "", ""
		planWeeks, planVelocity = 0, 0
		planSave = false
		reportFormat, exportOut = "", ""
		nowFunc = time.Now
	})
}

// seedPlanProject adds two approved features, one draft, and a designer and developer.
func seedPlanProject(t *testing.T, s store.Store, proj *models.Project) {
	t.Helper()
	ctx := context.Background()

	for _, f := range []*models.Feature{
		{Title: "Checkout", Status: models.FeatureStatusApproved, Priority: models.PriorityHigh, Complexity: models.ComplexityModerate},
		{Title: "Search", Status: models.FeatureStatusApproved, Priority: models.PriorityCritical, Complexity: models.ComplexitySimple},
		{Title: "Reports", Status: models.FeatureStatusDraft, Priority: models.PriorityLow, Complexity: models.ComplexityComplex},
	} {
		f.ProjectID = proj.ID
		require.NoError(t, s.CreateFeature(ctx, f))
	}
	for _, m := range []*models.TeamMember{
		{UserEmail: "dana@example.com", FullName: "Dana", Role: models.RoleDesigner},
		{UserEmail: "eli@example.com", FullName: "Eli", Role: models.RoleDeveloper},
	} {
		m.ProjectID = proj.ID
		require.NoError(t, s.CreateMember(ctx, m))
	}
}

func TestPlanGenerateRun_Preview(t *testing.T) {
	s, proj := setupTestStore(t)
	seedPlanProject(t, s, proj)
	out, _ := captureOutput(t)
	resetPlanFlags(t)

	planStart = "2024-01-01"
	planVelocity = 20

	require.NoError(t, planGenerateRun(""))

	text := out.String()
	assert.Contains(t, text, "Sprint 1")
	assert.Contains(t, text, "2024-01-01 to 2024-01-14")
	assert.Contains(t, text, "18/20 pts")
	assert.Contains(t, text, "Design Search")
	assert.NotContains(t, text, "Reports")
	assert.Contains(t, text, "Health:")

	saved, err := s.ListPlans(context.Background(), proj.ID)
	require.NoError(t, err)
	assert.Empty(t, saved)
}

func TestPlanGenerateRun_DefaultStartIsToday(t *testing.T) {
	s, proj := setupTestStore(t)
	seedPlanProject(t, s, proj)
	out, _ := captureOutput(t)
	resetPlanFlags(t)

	nowFunc = func() time.Time { return time.Date(2024, 3, 4, 15, 30, 0, 0, time.UTC) }

	require.NoError(t, planGenerateRun(proj.Name))
	assert.Contains(t, out.String(), "2024-03-04 to 2024-03-17")
}

func TestPlanGenerateRun_SaveAndManage(t *testing.T) {
	s, proj := setupTestStore(t)
	seedPlanProject(t, s, proj)
	out, _ := captureOutput(t)
	resetPlanFlags(t)
	ctx := context.Background()

	planStart = "2024-01-01"
	planSave = true
	planFormat = "json"
	require.NoError(t, planGenerateRun(proj.Name))
	assert.Contains(t, out.String(), "Saved plan")

	saved, err := s.ListPlans(ctx, proj.ID)
	require.NoError(t, err)
	require.Len(t, saved, 1)
	id := saved[0].ID

	t.Run("list", func(t *testing.T) {
		out.Reset()
		require.NoError(t, planListRun(""))
		assert.Contains(t, out.String(), shortID(id))
	})

	t.Run("show by prefix", func(t *testing.T) {
		out.Reset()
		planFormat = "table"
		require.NoError(t, planShowRun(strings.ToLower(shortID(id))))
		assert.Contains(t, out.String(), id)
		assert.Contains(t, out.String(), "Implement Checkout")
	})

	t.Run("health", func(t *testing.T) {
		out.Reset()
		require.NoError(t, planHealthRun(id))
		text := out.String()
		assert.Contains(t, text, "Utilization:")
		assert.Contains(t, text, "dana@example.com")
		assert.Contains(t, text, "eli@example.com")
	})

	t.Run("health counts idle members", func(t *testing.T) {
		idle := &models.TeamMember{ProjectID: proj.ID, UserEmail: "tia@example.com", FullName: "Tia", Role: models.RoleTester}
		require.NoError(t, s.CreateMember(ctx, idle))
		t.Cleanup(func() { _ = s.DeleteMember(ctx, idle.ID) })

		out.Reset()
		require.NoError(t, planHealthRun(id))
		text := out.String()
		assert.Contains(t, text, "tia@example.com")
		assert.Contains(t, text, "Balance:      0/20")
	})

	t.Run("show rejects export formats", func(t *testing.T) {
		for _, format := range []string{"csv", "pdf"} {
			out.Reset()
			planFormat = format
			err := planShowRun(id)
			require.Error(t, err, format)
			assert.Contains(t, err.Error(), "unknown format: "+format)
			assert.Contains(t, err.Error(), "plan export")
			assert.Empty(t, out.String())
		}
		planFormat = "table"
	})

	t.Run("export csv", func(t *testing.T) {
		file := filepath.Join(t.TempDir(), "plan.csv")
		reportFormat = "csv"
		exportOut = file
		require.NoError(t, planExportRun(id))

		data, err := os.ReadFile(file)
		require.NoError(t, err)
		lines := strings.Split(strings.TrimSpace(string(data)), "\n")
		assert.Len(t, lines, 7)
		assert.True(t, strings.HasPrefix(lines[0], "Sprint,Start,End,Feature"))
	})

	t.Run("export pdf needs out", func(t *testing.T) {
		reportFormat = "pdf"
		exportOut = ""
		err := planExportRun(id)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "--out")
	})

	t.Run("remove", func(t *testing.T) {
		require.NoError(t, planRemoveRun(id))
		_, err := findPlan(ctx, s, id)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "plan not found")
	})
}

func TestPlanGenerateRun_FromFile(t *testing.T) {
	testEnv(t)
	out, _ := captureOutput(t)
	resetPlanFlags(t)

	file := filepath.Join(t.TempDir(), "backlog.yaml")
	require.NoError(t, os.WriteFile(file, []byte(`sprint:
  start_date: 2024-02-05
  velocity: 10
features:
  - title: Login
    status: approved
    priority: high
    complexity: simple
team:
  - email: dev@example.com
    role: developer
`), 0o644))

	planFile = file
	planVelocity = 30
	planFormat = "json"

	require.NoError(t, planGenerateRun(""))
	text := out.String()
	assert.Contains(t, text, `"velocity_per_sprint": 30`)
	assert.Contains(t, text, "2024-02-05")
	assert.Contains(t, text, "Implement Login")
	assert.NotContains(t, text, "Saved plan")
}

func TestPlanGenerateRun_Errors(t *testing.T) {
	s, proj := setupTestStore(t)
	seedPlanProject(t, s, proj)
	captureOutput(t)
	resetPlanFlags(t)

	t.Run("save with file", func(t *testing.T) {
		planFile, planSave = "backlog.yaml", true
		t.Cleanup(func() { planFile, planSave = "", false })
		err := planGenerateRun("")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "--save")
	})

	t.Run("unknown format", func(t *testing.T) {
		planFormat = "xml"
		t.Cleanup(func() { planFormat = "" })
		err := planGenerateRun("")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "unknown format")
	})

	t.Run("bad start date", func(t *testing.T) {
		planStart = "01/02/2024"
		t.Cleanup(func() { planStart = "" })
		err := planGenerateRun("")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "start_date")
	})

	t.Run("bad balancing", func(t *testing.T) {
		planBalancing = "random"
		t.Cleanup(func() { planBalancing = "" })
		err := planGenerateRun("")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "balancing")
	})

	t.Run("unknown project", func(t *testing.T) {
		err := planGenerateRun("nope")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "project not found")
	})
}

func TestReportSummaryRun(t *testing.T) {
	s, proj := setupTestStore(t)
	seedPlanProject(t, s, proj)
	out, _ := captureOutput(t)

	require.NoError(t, reportSummaryRun(out))
	text := out.String()
	assert.Contains(t, text, "## shop")
	assert.Contains(t, text, "2 approved, 1 draft, 0 rejected")
	assert.Contains(t, text, "Latest plan: none")
}
