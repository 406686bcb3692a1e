package cmd

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/joescharf/sprintplan/internal/models"
	"github.com/joescharf/sprintplan/internal/output"
	"github.com/joescharf/sprintplan/internal/planner"
	"github.com/joescharf/sprintplan/internal/store"
)

var (
	featureTitle      string
	featureDesc       string
	featurePriority   string
	featureComplexity string
	featureStatus     string
)

var featureCmd = &cobra.Command{
	Use:   "feature",
	Short: "Manage the project backlog",
	Long: `Add, review, and list backlog features.

Only approved features are scheduled by 'sprintplan plan generate'.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return featureListRun("")
	},
}

var featureAddCmd = &cobra.Command{
	Use:   "add [project]",
	Short: "Add a feature to the backlog",
	Long:  "Add a feature to a project's backlog. Without <project>, uses the only project.",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return featureAddRun(optionalArg(args))
	},
}

var featureListCmd = &cobra.Command{
	Use:     "list [project]",
	Aliases: []string{"ls"},
	Short:   "List backlog features in creation order",
	Args:    cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return featureListRun(optionalArg(args))
	},
}

var featureShowCmd = &cobra.Command{
	Use:   "show <feature-id>",
	Short: "Show feature details",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return featureShowRun(args[0])
	},
}

var featureUpdateCmd = &cobra.Command{
	Use:   "update <feature-id>",
	Short: "Update a feature",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return featureUpdateRun(args[0])
	},
}

var featureApproveCmd = &cobra.Command{
	Use:   "approve <feature-id>...",
	Short: "Approve features for scheduling",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return featureSetStatusRun(args, models.FeatureStatusApproved)
	},
}

var featureRejectCmd = &cobra.Command{
	Use:   "reject <feature-id>...",
	Short: "Reject features",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return featureSetStatusRun(args, models.FeatureStatusRejected)
	},
}

var featureRemoveCmd = &cobra.Command{
	Use:     "remove <feature-id>",
	Aliases: []string{"rm"},
	Short:   "Remove a feature",
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return featureRemoveRun(args[0])
	},
}

func init() {
	featureAddCmd.Flags().StringVar(&featureTitle, "title", "", "Feature title (required)")
	featureAddCmd.Flags().StringVar(&featureDesc, "desc", "", "Feature description")
	featureAddCmd.Flags().StringVar(&featurePriority, "priority", "", "Priority: critical, high, medium, low (default medium)")
	featureAddCmd.Flags().StringVar(&featureComplexity, "complexity", "", "Complexity: simple, moderate, complex (default moderate)")
	featureAddCmd.Flags().StringVar(&featureStatus, "status", "", "Status: draft, approved, rejected (default draft)")
	_ = featureAddCmd.MarkFlagRequired("title")

	featureListCmd.Flags().StringVar(&featureStatus, "status", "", "Filter by status: draft, approved, rejected")
	featureListCmd.Flags().StringVar(&featurePriority, "priority", "", "Filter by priority")

	featureUpdateCmd.Flags().StringVar(&featureStatus, "status", "", "New status")
	featureUpdateCmd.Flags().StringVar(&featurePriority, "priority", "", "New priority")
	featureUpdateCmd.Flags().StringVar(&featureComplexity, "complexity", "", "New complexity")
	featureUpdateCmd.Flags().StringVar(&featureTitle, "title", "", "New title")
	featureUpdateCmd.Flags().StringVar(&featureDesc, "desc", "", "New description")

	featureCmd.AddCommand(featureAddCmd)
	featureCmd.AddCommand(featureListCmd)
	featureCmd.AddCommand(featureShowCmd)
	featureCmd.AddCommand(featureUpdateCmd)
	featureCmd.AddCommand(featureApproveCmd)
	featureCmd.AddCommand(featureRejectCmd)
	featureCmd.AddCommand(featureRemoveCmd)
	rootCmd.AddCommand(featureCmd)
}

func optionalArg(args []string) string {
	if len(args) > 0 {
		return args[0]
	}
	return ""
}

// orDefault returns v, or def when v is empty. Flag variables are shared
// between subcommands, so registered defaults cannot be relied on.
func orDefault(v, def string) string {
	if v == "" {
		return def
	}
	return v
}

// validateFeature rejects unknown enum values.
func validateFeature(f *models.Feature) error {
	switch {
	case strings.TrimSpace(f.Title) == "":
		return fmt.Errorf("title is required")
	case !f.Status.Valid():
		return fmt.Errorf("invalid status %q (use: draft, approved, rejected)", f.Status)
	case !f.Priority.Valid():
		return fmt.Errorf("invalid priority %q (use: critical, high, medium, low)", f.Priority)
	case !f.Complexity.Valid():
		return fmt.Errorf("invalid complexity %q (use: simple, moderate, complex)", f.Complexity)
	}
	return nil
}

func featureAddRun(projectRef string) error {
	s, err := getStore()
	if err != nil {
		return err
	}
	ctx := context.Background()

	p, err := resolveProjectFlag(ctx, s, projectRef)
	if err != nil {
		return err
	}

	f := &models.Feature{
		ProjectID:   p.ID,
		Title:       featureTitle,
		Description: featureDesc,
		Status:      models.FeatureStatus(orDefault(featureStatus, string(models.FeatureStatusDraft))),
		Priority:    models.Priority(orDefault(featurePriority, string(models.PriorityMedium))),
		Complexity:  models.Complexity(orDefault(featureComplexity, string(models.ComplexityModerate))),
	}
	if err := validateFeature(f); err != nil {
		return err
	}

	if dryRun {
		ui.DryRunMsg("Would add feature: %s [%s/%s] to %s", f.Title, f.Priority, f.Complexity, p.Name)
		return nil
	}

	if err := s.CreateFeature(ctx, f); err != nil {
		return fmt.Errorf("create feature: %w", err)
	}

	ui.Success("Created feature %s: %s", output.Cyan(shortID(f.ID)), f.Title)
	return nil
}

func featureListRun(projectRef string) error {
	s, err := getStore()
	if err != nil {
		return err
	}
	ctx := context.Background()

	p, err := resolveProjectFlag(ctx, s, projectRef)
	if err != nil {
		return err
	}

	features, err := s.ListFeatures(ctx, store.FeatureListFilter{
		ProjectID: p.ID,
		Status:    models.FeatureStatus(featureStatus),
		Priority:  models.Priority(featurePriority),
	})
	if err != nil {
		return err
	}

	if len(features) == 0 {
		ui.Info("No features found.")
		return nil
	}

	table := ui.Table([]string{"ID", "Title", "Status", "Priority", "Complexity", "Points"})
	for _, f := range features {
		_ = table.Append([]string{
			shortID(f.ID),
			f.Title,
			output.StatusColor(string(f.Status)),
			output.PriorityColor(string(f.Priority)),
			string(f.Complexity),
			fmt.Sprintf("%d", planner.EffortPoints(f.Complexity)),
		})
	}
	_ = table.Render()
	return nil
}

func featureShowRun(id string) error {
	s, err := getStore()
	if err != nil {
		return err
	}
	ctx := context.Background()

	f, err := findFeature(ctx, s, id)
	if err != nil {
		return err
	}

	projName := ""
	if p, err := s.GetProject(ctx, f.ProjectID); err == nil {
		projName = p.Name
	}

	fmt.Fprintf(ui.Out, "%s  %s\n", output.Cyan(shortID(f.ID)), f.Title)
	fmt.Fprintf(ui.Out, "  Project:    %s\n", projName)
	fmt.Fprintf(ui.Out, "  Status:     %s\n", output.StatusColor(string(f.Status)))
	fmt.Fprintf(ui.Out, "  Priority:   %s\n", output.PriorityColor(string(f.Priority)))
	fmt.Fprintf(ui.Out, "  Complexity: %s (%d points)\n", f.Complexity, planner.EffortPoints(f.Complexity))
	if f.Description != "" {
		fmt.Fprintf(ui.Out, "  Desc:       %s\n", f.Description)
	}
	fmt.Fprintf(ui.Out, "  Created:    %s\n", f.CreatedAt.Format(time.RFC3339))
	fmt.Fprintf(ui.Out, "  Full ID:    %s\n", f.ID)

	return nil
}

func featureUpdateRun(id string) error {
	s, err := getStore()
	if err != nil {
		return err
	}
	ctx := context.Background()

	f, err := findFeature(ctx, s, id)
	if err != nil {
		return err
	}

	changed := false
	if featureStatus != "" {
		f.Status = models.FeatureStatus(featureStatus)
		changed = true
	}
	if featurePriority != "" {
		f.Priority = models.Priority(featurePriority)
		changed = true
	}
	if featureComplexity != "" {
		f.Complexity = models.Complexity(featureComplexity)
		changed = true
	}
	if featureTitle != "" {
		f.Title = featureTitle
		changed = true
	}
	if featureDesc != "" {
		f.Description = featureDesc
		changed = true
	}

	if !changed {
		return fmt.Errorf("no updates specified (use --status, --priority, --complexity, --title, or --desc)")
	}
	if err := validateFeature(f); err != nil {
		return err
	}

	if dryRun {
		ui.DryRunMsg("Would update feature %s", shortID(f.ID))
		return nil
	}

	if err := s.UpdateFeature(ctx, f); err != nil {
		return fmt.Errorf("update feature: %w", err)
	}

	ui.Success("Updated feature %s", output.Cyan(shortID(f.ID)))
	return nil
}

func featureSetStatusRun(ids []string, status models.FeatureStatus) error {
	s, err := getStore()
	if err != nil {
		return err
	}
	ctx := context.Background()

	fullIDs := make([]string, 0, len(ids))
	for _, id := range ids {
		f, err := findFeature(ctx, s, id)
		if err != nil {
			return err
		}
		fullIDs = append(fullIDs, f.ID)
		ui.VerboseLog("%s  %s", shortID(f.ID), f.Title)
	}

	if dryRun {
		ui.DryRunMsg("Would mark %d features %s", len(fullIDs), status)
		return nil
	}

	n, err := s.BulkUpdateFeatureStatus(ctx, fullIDs, status)
	if err != nil {
		return fmt.Errorf("update status: %w", err)
	}

	ui.Success("Marked %d features %s", n, output.StatusColor(string(status)))
	return nil
}

func featureRemoveRun(id string) error {
	s, err := getStore()
	if err != nil {
		return err
	}
	ctx := context.Background()

	f, err := findFeature(ctx, s, id)
	if err != nil {
		return err
	}

	if dryRun {
		ui.DryRunMsg("Would remove feature %s: %s", shortID(f.ID), f.Title)
		return nil
	}

	if err := s.DeleteFeature(ctx, f.ID); err != nil {
		return fmt.Errorf("remove feature: %w", err)
	}

	ui.Success("Removed feature %s: %s", output.Cyan(shortID(f.ID)), f.Title)
	return nil
}

// findFeature finds a feature by full ID or unique prefix.
func findFeature(ctx context.Context, s store.Store, id string) (*models.Feature, error) {
	// Try exact match first
	if f, err := s.GetFeature(ctx, id); err == nil {
		return f, nil
	}

	// Try prefix match - list all and filter
	upper := strings.ToUpper(id)
	features, err := s.ListFeatures(ctx, store.FeatureListFilter{})
	if err != nil {
		return nil, err
	}

	var matches []*models.Feature
	for _, f := range features {
		if strings.HasPrefix(f.ID, upper) {
			matches = append(matches, f)
		}
	}

	switch len(matches) {
	case 0:
		return nil, fmt.Errorf("feature not found: %s", id)
	case 1:
		return matches[0], nil
	default:
		return nil, fmt.Errorf("ambiguous feature ID %s: matches %d features", id, len(matches))
	}
}
