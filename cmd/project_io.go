package cmd

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/joescharf/sprintplan/internal/backlog"
	"github.com/joescharf/sprintplan/internal/models"
	"github.com/joescharf/sprintplan/internal/output"
	"github.com/joescharf/sprintplan/internal/store"
)

var (
	projectFile string
	projectOut  string
)

var projectImportCmd = &cobra.Command{
	Use:   "import <name>",
	Short: "Load a backlog file into a project",
	Long: `Load features and team members from a backlog YAML file into a project,
creating the project if needed. Features whose title already exists and
members whose email already exists are skipped. The file's sprint section
is ignored; sprint settings come from config and flags at generation time.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return projectImportRun(args[0])
	},
}

var projectExportCmd = &cobra.Command{
	Use:   "export <name>",
	Short: "Write a project's backlog and roster as a backlog file",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return projectExportRun(args[0])
	},
}

func init() {
	projectImportCmd.Flags().StringVarP(&projectFile, "file", "f", "", "Backlog YAML file (required)")
	_ = projectImportCmd.MarkFlagRequired("file")
	projectExportCmd.Flags().StringVarP(&projectOut, "out", "o", "", "Write to file instead of stdout")

	projectCmd.AddCommand(projectImportCmd)
	projectCmd.AddCommand(projectExportCmd)
}

func projectImportRun(name string) error {
	doc, err := backlog.Load(projectFile)
	if err != nil {
		return err
	}

	s, err := getStore()
	if err != nil {
		return err
	}
	ctx := context.Background()

	p, err := s.GetProjectByName(ctx, name)
	if err != nil {
		if dryRun {
			ui.DryRunMsg("Would create project %s with %d features and %d members", name, len(doc.Features), len(doc.Team))
			return nil
		}
		p = &models.Project{Name: name}
		if err := s.CreateProject(ctx, p); err != nil {
			return fmt.Errorf("create project: %w", err)
		}
		ui.Success("Created project: %s", output.Cyan(p.Name))
	}

	if dryRun {
		ui.DryRunMsg("Would import %d features and %d members into %s", len(doc.Features), len(doc.Team), p.Name)
		return nil
	}

	features, members, err := importBacklog(ctx, s, p.ID, doc)
	if err != nil {
		return err
	}
	ui.Success("Imported %d features and %d members into %s", features, members, p.Name)
	return nil
}

// importBacklog stores the document's features and roster under projectID,
// skipping titles and emails already present. Missing enum values get the
// usual defaults.
func importBacklog(ctx context.Context, s store.Store, projectID string, doc *backlog.File) (features, members int, err error) {
	existing, err := s.ListFeatures(ctx, store.FeatureListFilter{ProjectID: projectID})
	if err != nil {
		return 0, 0, err
	}
	titles := make(map[string]bool, len(existing))
	for _, f := range existing {
		titles[strings.ToLower(f.Title)] = true
	}

	for _, fe := range doc.Backlog() {
		if titles[strings.ToLower(fe.Title)] {
			continue
		}
		titles[strings.ToLower(fe.Title)] = true

		f := &models.Feature{
			ProjectID:   projectID,
			Title:       fe.Title,
			Description: fe.Description,
			Status:      models.FeatureStatus(orDefault(string(fe.Status), string(models.FeatureStatusDraft))),
			Priority:    models.Priority(orDefault(string(fe.Priority), string(models.PriorityMedium))),
			Complexity:  models.Complexity(orDefault(string(fe.Complexity), string(models.ComplexityModerate))),
		}
		if err := validateFeature(f); err != nil {
			return features, members, fmt.Errorf("feature %q: %w", fe.Title, err)
		}
		if err := s.CreateFeature(ctx, f); err != nil {
			return features, members, fmt.Errorf("create feature %q: %w", fe.Title, err)
		}
		features++
	}

	roster, err := s.ListMembers(ctx, projectID)
	if err != nil {
		return features, members, err
	}
	emails := make(map[string]bool, len(roster))
	for _, m := range roster {
		emails[strings.ToLower(m.UserEmail)] = true
	}

	for _, tm := range doc.Roster() {
		if emails[strings.ToLower(tm.UserEmail)] {
			continue
		}
		if !tm.Role.Valid() {
			return features, members, fmt.Errorf("member %s: invalid role %q", tm.UserEmail, tm.Role)
		}
		m := &models.TeamMember{
			ProjectID: projectID,
			UserEmail: tm.UserEmail,
			FullName:  tm.FullName,
			Role:      tm.Role,
		}
		if err := s.CreateMember(ctx, m); err != nil {
			return features, members, fmt.Errorf("add member %s: %w", tm.UserEmail, err)
		}
		members++
	}

	return features, members, nil
}

func projectExportRun(name string) error {
	s, err := getStore()
	if err != nil {
		return err
	}
	ctx := context.Background()

	p, err := resolveProject(ctx, s, name)
	if err != nil {
		return err
	}

	features, err := s.ListFeatures(ctx, store.FeatureListFilter{ProjectID: p.ID})
	if err != nil {
		return err
	}
	members, err := s.ListMembers(ctx, p.ID)
	if err != nil {
		return err
	}

	cfg := sprintDefaults()
	data, err := backlog.Marshal(&cfg, features, members)
	if err != nil {
		return err
	}

	if projectOut == "" {
		_, err = ui.Out.Write(data)
		return err
	}
	if dryRun {
		ui.DryRunMsg("Would write %s", projectOut)
		return nil
	}
	if err := os.WriteFile(projectOut, data, 0o644); err != nil {
		return fmt.Errorf("write backlog file: %w", err)
	}
	ui.Success("Wrote %d features and %d members to %s", len(features), len(members), projectOut)
	return nil
}
