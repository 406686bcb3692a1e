package cmd

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/joescharf/sprintplan/internal/models"
	"github.com/joescharf/sprintplan/internal/output"
	"github.com/joescharf/sprintplan/internal/store"
)

var projectDescription string

var projectCmd = &cobra.Command{
	Use:   "project",
	Short: "Manage projects",
	Long:  "Add, remove, list, and show projects. Each project has its own backlog, roster, and saved plans.",
}

var projectAddCmd = &cobra.Command{
	Use:   "add <name>",
	Short: "Create a project",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return projectAddRun(args[0])
	},
}

var projectRemoveCmd = &cobra.Command{
	Use:     "remove <name>",
	Aliases: []string{"rm"},
	Short:   "Remove a project with its backlog, roster, and plans",
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return projectRemoveRun(args[0])
	},
}

var projectListCmd = &cobra.Command{
	Use:     "list",
	Aliases: []string{"ls"},
	Short:   "List projects",
	RunE: func(cmd *cobra.Command, args []string) error {
		return projectListRun()
	},
}

var projectShowCmd = &cobra.Command{
	Use:   "show <name>",
	Short: "Show project details",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return projectShowRun(args[0])
	},
}

func init() {
	projectAddCmd.Flags().StringVarP(&projectDescription, "description", "d", "", "Project description")

	projectCmd.AddCommand(projectAddCmd)
	projectCmd.AddCommand(projectRemoveCmd)
	projectCmd.AddCommand(projectListCmd)
	projectCmd.AddCommand(projectShowCmd)
	rootCmd.AddCommand(projectCmd)
}

func projectAddRun(name string) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return fmt.Errorf("project name is required")
	}

	s, err := getStore()
	if err != nil {
		return err
	}
	ctx := context.Background()

	if _, err := s.GetProjectByName(ctx, name); err == nil {
		return fmt.Errorf("project already exists: %s", name)
	}

	if dryRun {
		ui.DryRunMsg("Would create project: %s", name)
		return nil
	}

	p := &models.Project{Name: name, Description: projectDescription}
	if err := s.CreateProject(ctx, p); err != nil {
		return fmt.Errorf("create project: %w", err)
	}

	ui.Success("Created project: %s", output.Cyan(p.Name))
	ui.VerboseLog("ID: %s", p.ID)
	return nil
}

func projectRemoveRun(name string) error {
	s, err := getStore()
	if err != nil {
		return err
	}
	ctx := context.Background()

	p, err := resolveProject(ctx, s, name)
	if err != nil {
		return err
	}

	if dryRun {
		ui.DryRunMsg("Would remove project: %s", p.Name)
		return nil
	}

	if err := s.DeleteProject(ctx, p.ID); err != nil {
		return fmt.Errorf("remove project: %w", err)
	}

	ui.Success("Removed project: %s", output.Cyan(p.Name))
	return nil
}

func projectListRun() error {
	s, err := getStore()
	if err != nil {
		return err
	}
	ctx := context.Background()

	projects, err := s.ListProjects(ctx)
	if err != nil {
		return err
	}

	if len(projects) == 0 {
		ui.Info("No projects yet. Use 'sprintplan project add <name>' to get started.")
		return nil
	}

	table := ui.Table([]string{"Name", "Approved", "Draft", "Members", "Plans"})
	for _, p := range projects {
		counts, _ := featureCounts(ctx, s, p.ID)
		members, _ := s.ListMembers(ctx, p.ID)
		plans, _ := s.ListPlans(ctx, p.ID)

		table.Append([]string{
			output.Cyan(p.Name),
			fmt.Sprintf("%d", counts[models.FeatureStatusApproved]),
			fmt.Sprintf("%d", counts[models.FeatureStatusDraft]),
			fmt.Sprintf("%d", len(members)),
			fmt.Sprintf("%d", len(plans)),
		})
	}
	table.Render()
	return nil
}

func projectShowRun(name string) error {
	s, err := getStore()
	if err != nil {
		return err
	}
	ctx := context.Background()

	p, err := resolveProject(ctx, s, name)
	if err != nil {
		return err
	}

	// Header
	fmt.Fprintf(ui.Out, "%s\n", output.Cyan(p.Name))
	fmt.Fprintf(ui.Out, "  ID:         %s\n", p.ID)
	if p.Description != "" {
		fmt.Fprintf(ui.Out, "  Desc:       %s\n", p.Description)
	}
	fmt.Fprintf(ui.Out, "  Created:    %s\n", timeAgo(p.CreatedAt))
	fmt.Fprintln(ui.Out)

	counts, err := featureCounts(ctx, s, p.ID)
	if err != nil {
		return err
	}
	fmt.Fprintf(ui.Out, "  Features:   %d approved, %d draft, %d rejected\n",
		counts[models.FeatureStatusApproved], counts[models.FeatureStatusDraft], counts[models.FeatureStatusRejected])

	members, err := s.ListMembers(ctx, p.ID)
	if err != nil {
		return err
	}
	roles := map[models.Role]int{}
	for _, m := range members {
		roles[m.Role]++
	}
	fmt.Fprintf(ui.Out, "  Team:       %d (%d designer, %d developer, %d tester, %d lead)\n", len(members),
		roles[models.RoleDesigner], roles[models.RoleDeveloper], roles[models.RoleTester], roles[models.RoleLead])

	plans, err := s.ListPlans(ctx, p.ID)
	if err != nil {
		return err
	}
	fmt.Fprintf(ui.Out, "  Plans:      %d saved", len(plans))
	if len(plans) > 0 {
		fmt.Fprintf(ui.Out, ", latest %s (%s)", shortID(plans[0].ID), timeAgo(plans[0].CreatedAt))
	}
	fmt.Fprintln(ui.Out)

	return nil
}

// featureCounts tallies a project's features by status.
func featureCounts(ctx context.Context, s store.Store, projectID string) (map[models.FeatureStatus]int, error) {
	features, err := s.ListFeatures(ctx, store.FeatureListFilter{ProjectID: projectID})
	if err != nil {
		return nil, err
	}
	counts := make(map[models.FeatureStatus]int)
	for _, f := range features {
		counts[f.Status]++
	}
	return counts, nil
}

// resolveProject finds a project by name or ID.
func resolveProject(ctx context.Context, s store.Store, nameOrID string) (*models.Project, error) {
	if p, err := s.GetProjectByName(ctx, nameOrID); err == nil {
		return p, nil
	}
	if p, err := s.GetProject(ctx, nameOrID); err == nil {
		return p, nil
	}
	return nil, fmt.Errorf("project not found: %s", nameOrID)
}

// resolveProjectFlag resolves the --project flag. When it is empty and only
// one project exists, that project is used.
func resolveProjectFlag(ctx context.Context, s store.Store, name string) (*models.Project, error) {
	if name != "" {
		return resolveProject(ctx, s, name)
	}
	projects, err := s.ListProjects(ctx)
	if err != nil {
		return nil, err
	}
	switch len(projects) {
	case 0:
		return nil, errors.New("no projects yet; create one with 'sprintplan project add <name>'")
	case 1:
		return projects[0], nil
	default:
		return nil, errors.New("several projects exist; name one explicitly")
	}
}

// shortID returns the first 12 characters of a ULID.
func shortID(id string) string {
	if len(id) > 12 {
		return id[:12]
	}
	return id
}

// timeAgo returns a human-readable duration from a time.
func timeAgo(t time.Time) string {
	d := time.Since(t)
	switch {
	case d < time.Minute:
		return "just now"
	case d < time.Hour:
		return fmt.Sprintf("%dm ago", int(d.Minutes()))
	case d < 24*time.Hour:
		return fmt.Sprintf("%dh ago", int(d.Hours()))
	default:
		days := int(d.Hours() / 24)
		if days == 1 {
			return "1d ago"
		}
		return fmt.Sprintf("%dd ago", days)
	}
}
