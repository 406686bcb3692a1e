package cmd

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joescharf/sprintplan/internal/llm"
	"github.com/joescharf/sprintplan/internal/models"
	"github.com/joescharf/sprintplan/internal/store"
)

func setupTestStore(t *testing.T) (store.Store, *models.Project) {
	t.Helper()
	testEnv(t)

	s, err := getStore()
	require.NoError(t, err)

	proj := &models.Project{Name: "shop"}
	require.NoError(t, s.CreateProject(context.Background(), proj))
	return s, proj
}

func TestParseMarkdownFeatures(t *testing.T) {
	content := `# Roadmap

Some intro text that is not a list item.

1. Checkout: one-page checkout flow
2. Urgent: fix login blocker
- Dark mode is a nice to have
* Payment provider integration

10. Small copy change on the landing page
`

	features := parseMarkdownFeatures(content)
	require.Len(t, features, 5)

	assert.Equal(t, "Checkout", features[0].Title)
	assert.Equal(t, "one-page checkout flow", features[0].Description)
	assert.Equal(t, "medium", features[0].Priority)
	assert.Equal(t, "moderate", features[0].Complexity)

	assert.Equal(t, "critical", features[1].Priority)

	assert.Equal(t, "Dark mode is a nice to have", features[2].Title)
	assert.Equal(t, "low", features[2].Priority)

	assert.Equal(t, "Payment provider integration", features[3].Title)
	assert.Equal(t, "complex", features[3].Complexity)

	assert.Equal(t, "Small copy change on the landing page", features[4].Title)
	assert.Equal(t, "simple", features[4].Complexity)
}

func TestParseMarkdownFeatures_NoItems(t *testing.T) {
	assert.Empty(t, parseMarkdownFeatures("# Title\n\nJust prose.\n2024 was a year.\n"))
}

func TestCreateExtractedFeatures_Idempotent(t *testing.T) {
	t.Run("first import creates drafts", func(t *testing.T) {
		s, proj := setupTestStore(t)
		ctx := context.Background()

		extracted := []llm.ExtractedFeature{
			{Title: "Feature A", Priority: "high", Complexity: "simple"},
			{Title: "Feature B", Priority: "bogus", Complexity: ""},
		}
		created, skipped, err := createExtractedFeatures(ctx, s, proj.ID, nil, extracted)
		require.NoError(t, err)
		assert.Equal(t, 2, created)
		assert.Equal(t, 0, skipped)

		features, err := s.ListFeatures(ctx, store.FeatureListFilter{ProjectID: proj.ID})
		require.NoError(t, err)
		require.Len(t, features, 2)
		for _, f := range features {
			assert.Equal(t, models.FeatureStatusDraft, f.Status)
		}
		assert.Equal(t, models.PriorityHigh, features[0].Priority)
		assert.Equal(t, models.PriorityMedium, features[1].Priority)
		assert.Equal(t, models.ComplexityModerate, features[1].Complexity)
	})

	t.Run("existing titles are skipped case-insensitively", func(t *testing.T) {
		s, proj := setupTestStore(t)
		ctx := context.Background()

		_, _, err := createExtractedFeatures(ctx, s, proj.ID, nil, []llm.ExtractedFeature{{Title: "Existing A"}})
		require.NoError(t, err)
		existing, err := s.ListFeatures(ctx, store.FeatureListFilter{ProjectID: proj.ID})
		require.NoError(t, err)

		created, skipped, err := createExtractedFeatures(ctx, s, proj.ID, existing, []llm.ExtractedFeature{
			{Title: "existing a"},
			{Title: "New C"},
			{Title: "New C"},
		})
		require.NoError(t, err)
		assert.Equal(t, 1, created)
		assert.Equal(t, 2, skipped)

		features, err := s.ListFeatures(ctx, store.FeatureListFilter{ProjectID: proj.ID})
		require.NoError(t, err)
		assert.Len(t, features, 2)
	})
}

func TestFeatureImportRun_NoLLM(t *testing.T) {
	s, proj := setupTestStore(t)
	out, _ := captureOutput(t)

	file := filepath.Join(t.TempDir(), "roadmap.md")
	require.NoError(t, os.WriteFile(file, []byte("- Checkout\n- Search\n"), 0o644))

	importNoLLM = true
	t.Cleanup(func() { importNoLLM = false })

	require.NoError(t, featureImportRun(file, ""))
	assert.Contains(t, out.String(), "Imported 2 draft features")

	// Second run imports nothing new
	require.NoError(t, featureImportRun(file, proj.Name))

	features, err := s.ListFeatures(context.Background(), store.FeatureListFilter{ProjectID: proj.ID})
	require.NoError(t, err)
	assert.Len(t, features, 2)
}

func TestFeatureImportRun_EmptyFile(t *testing.T) {
	setupTestStore(t)
	captureOutput(t)

	file := filepath.Join(t.TempDir(), "empty.md")
	require.NoError(t, os.WriteFile(file, []byte("  \n"), 0o644))

	err := featureImportRun(file, "")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "empty")
}
