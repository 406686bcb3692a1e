package cmd

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/joescharf/sprintplan/internal/llm"
	"github.com/joescharf/sprintplan/internal/models"
	"github.com/joescharf/sprintplan/internal/store"
)

var importNoLLM bool

var featureImportCmd = &cobra.Command{
	Use:   "import <file.md> [project]",
	Short: "Import backlog features from a markdown file",
	Long: `Import features from a markdown file. Imported features are drafts;
approve them with 'sprintplan feature approve'.

With an Anthropic API key configured (anthropic.api_key or ANTHROPIC_API_KEY),
an LLM extracts titles, descriptions, priorities, and complexities. Otherwise,
or with --no-llm, each numbered or bulleted item becomes one feature and
priority and complexity are guessed from keywords.

Features whose title already exists in the backlog are skipped.`,
	Args: cobra.RangeArgs(1, 2),
	RunE: func(cmd *cobra.Command, args []string) error {
		return featureImportRun(args[0], optionalArg(args[1:]))
	},
}

func init() {
	featureImportCmd.Flags().BoolVar(&importNoLLM, "no-llm", false, "Parse list items directly instead of calling the LLM")
	featureCmd.AddCommand(featureImportCmd)
}

func featureImportRun(file, projectRef string) error {
	data, err := os.ReadFile(file)
	if err != nil {
		return fmt.Errorf("read file: %w", err)
	}
	content := string(data)
	if strings.TrimSpace(content) == "" {
		return fmt.Errorf("file is empty: %s", file)
	}

	s, err := getStore()
	if err != nil {
		return err
	}
	ctx := context.Background()

	p, err := resolveProjectFlag(ctx, s, projectRef)
	if err != nil {
		return err
	}

	existing, err := s.ListFeatures(ctx, store.FeatureListFilter{ProjectID: p.ID})
	if err != nil {
		return fmt.Errorf("list features: %w", err)
	}
	titles := make([]string, len(existing))
	for i, f := range existing {
		titles[i] = f.Title
	}

	var extracted []llm.ExtractedFeature
	client := newLLMClient()
	switch {
	case importNoLLM:
		extracted = parseMarkdownFeatures(content)
	case client == nil:
		ui.Warning("No Anthropic API key configured; parsing list items directly")
		extracted = parseMarkdownFeatures(content)
	default:
		ui.Info("Extracting features with LLM...")
		extracted, err = client.ExtractFeatures(ctx, content, titles)
		if err != nil {
			return fmt.Errorf("extract features: %w", err)
		}
	}

	if len(extracted) == 0 {
		ui.Info("No features found in file.")
		return nil
	}

	// Preview table
	table := ui.Table([]string{"#", "Title", "Priority", "Complexity"})
	for i, e := range extracted {
		_ = table.Append([]string{
			fmt.Sprintf("%d", i+1),
			e.Title,
			e.Priority,
			e.Complexity,
		})
	}
	_ = table.Render()

	if dryRun {
		ui.DryRunMsg("Would import %d features into %s", len(extracted), p.Name)
		return nil
	}

	created, skipped, err := createExtractedFeatures(ctx, s, p.ID, existing, extracted)
	if err != nil {
		return err
	}
	ui.Success("Imported %d draft features into %s", created, p.Name)
	if skipped > 0 {
		ui.Warning("Skipped %d features already in the backlog", skipped)
	}
	return nil
}

// parseMarkdownFeatures turns numbered and bulleted list items into features.
// "Title: details" items are split at the first colon.
func parseMarkdownFeatures(content string) []llm.ExtractedFeature {
	var features []llm.ExtractedFeature

	for _, line := range strings.Split(content, "\n") {
		line = strings.TrimSpace(line)
		text := listItemText(line)
		if text == "" {
			continue
		}

		title, desc := text, ""
		if i := strings.Index(text, ": "); i > 0 {
			title, desc = strings.TrimSpace(text[:i]), strings.TrimSpace(text[i+2:])
		}
		features = append(features, llm.ExtractedFeature{
			Title:       title,
			Description: desc,
			Priority:    string(guessPriority(text)),
			Complexity:  string(guessComplexity(text)),
		})
	}

	return features
}

// listItemText returns the text of a "1. text", "- text", or "* text" line.
func listItemText(line string) string {
	if strings.HasPrefix(line, "- ") || strings.HasPrefix(line, "* ") {
		return strings.TrimSpace(line[2:])
	}
	// Numbered: "1. text", "12. text"
	for i, c := range line {
		if c == '.' && i > 0 && i < 4 {
			return strings.TrimSpace(line[i+1:])
		}
		if c < '0' || c > '9' {
			return ""
		}
	}
	return ""
}

func containsAny(s string, words ...string) bool {
	for _, w := range words {
		if strings.Contains(s, w) {
			return true
		}
	}
	return false
}

func guessPriority(text string) models.Priority {
	lower := strings.ToLower(text)
	switch {
	case containsAny(lower, "critical", "urgent", "blocker", "asap"):
		return models.PriorityCritical
	case containsAny(lower, "important", "must have", "high priority"):
		return models.PriorityHigh
	case containsAny(lower, "minor", "nice to have", "cosmetic", "someday"):
		return models.PriorityLow
	default:
		return models.PriorityMedium
	}
}

func guessComplexity(text string) models.Complexity {
	lower := strings.ToLower(text)
	switch {
	case containsAny(lower, "typo", "small", "simple", "tweak", "rename", "copy change"):
		return models.ComplexitySimple
	case containsAny(lower, "migration", "overhaul", "rewrite", "integration", "redesign", "complex"):
		return models.ComplexityComplex
	default:
		return models.ComplexityModerate
	}
}

// createExtractedFeatures stores extracted features as drafts, skipping
// titles already present in existing or earlier in extracted.
func createExtractedFeatures(ctx context.Context, s store.Store, projectID string, existing []*models.Feature, extracted []llm.ExtractedFeature) (created, skipped int, err error) {
	seen := make(map[string]bool, len(existing))
	for _, f := range existing {
		seen[strings.ToLower(f.Title)] = true
	}

	for _, e := range extracted {
		key := strings.ToLower(strings.TrimSpace(e.Title))
		if key == "" || seen[key] {
			skipped++
			continue
		}
		seen[key] = true

		f := &models.Feature{
			ProjectID:   projectID,
			Title:       strings.TrimSpace(e.Title),
			Description: e.Description,
			Status:      models.FeatureStatusDraft,
			Priority:    models.Priority(e.Priority),
			Complexity:  models.Complexity(e.Complexity),
		}
		if !f.Priority.Valid() {
			f.Priority = models.PriorityMedium
		}
		if !f.Complexity.Valid() {
			f.Complexity = models.ComplexityModerate
		}

		if err := s.CreateFeature(ctx, f); err != nil {
			return created, skipped, fmt.Errorf("create feature %q: %w", f.Title, err)
		}
		created++
	}
	return created, skipped, nil
}
