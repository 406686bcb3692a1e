package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/joescharf/sprintplan/internal/health"
	"github.com/joescharf/sprintplan/internal/models"
	"github.com/joescharf/sprintplan/internal/planner"
	"github.com/joescharf/sprintplan/internal/plans"
	"github.com/joescharf/sprintplan/internal/report"
)

var (
	reportFormat string
	exportOut    string
)

var planExportCmd = &cobra.Command{
	Use:   "export <plan-id>",
	Short: "Export a saved plan as JSON, CSV, Markdown, or PDF",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return planExportRun(args[0])
	},
}

func init() {
	planExportCmd.Flags().StringVar(&reportFormat, "format", "json", "Output format: "+strings.Join(report.Formats, ", "))
	planExportCmd.Flags().StringVarP(&exportOut, "out", "o", "", "Write to file instead of stdout (required for pdf)")
	planCmd.AddCommand(planExportCmd)
}

func planExportRun(id string) error {
	if reportFormat == "pdf" && exportOut == "" {
		return fmt.Errorf("pdf export needs --out <file>")
	}

	s, err := getStore()
	if err != nil {
		return err
	}
	ctx := context.Background()

	plan, err := findPlan(ctx, s, id)
	if err != nil {
		return err
	}
	score, err := scoreSaved(ctx, s, plan)
	if err != nil {
		return err
	}

	if exportOut == "" {
		return report.Write(ui.Out, reportFormat, plan, score)
	}

	if dryRun {
		ui.DryRunMsg("Would write %s export of plan %s to %s", reportFormat, shortID(plan.ID), exportOut)
		return nil
	}

	f, err := os.Create(exportOut)
	if err != nil {
		return fmt.Errorf("create output file: %w", err)
	}
	if err := report.Write(f, reportFormat, plan, score); err != nil {
		_ = f.Close()
		_ = os.Remove(exportOut)
		return err
	}
	if err := f.Close(); err != nil {
		return err
	}
	ui.Success("Wrote %s", exportOut)
	return nil
}

var reportCmd = &cobra.Command{
	Use:   "report",
	Short: "Summarize every project",
	Long:  "Print a Markdown summary of each project's backlog, team, and latest saved plan.",
	RunE: func(cmd *cobra.Command, args []string) error {
		return reportSummaryRun(ui.Out)
	},
}

func init() {
	rootCmd.AddCommand(reportCmd)
}

func reportSummaryRun(w io.Writer) error {
	s, err := getStore()
	if err != nil {
		return err
	}
	ctx := context.Background()

	projects, err := s.ListProjects(ctx)
	if err != nil {
		return err
	}

	fmt.Fprintln(w, "# Sprint Planning Report")
	fmt.Fprintln(w)

	scorer := health.NewScorer()
	for _, p := range projects {
		counts, _ := featureCounts(ctx, s, p.ID)
		members, _ := s.ListMembers(ctx, p.ID)
		saved, _ := s.ListPlans(ctx, p.ID)

		fmt.Fprintf(w, "## %s\n", p.Name)
		fmt.Fprintf(w, "- Features: %d approved, %d draft, %d rejected\n",
			counts[models.FeatureStatusApproved], counts[models.FeatureStatusDraft], counts[models.FeatureStatusRejected])
		fmt.Fprintf(w, "- Team: %d members\n", len(members))
		if len(saved) > 0 {
			latest := saved[0]
			roster, _ := plans.Roster(ctx, s, p.ID)
			score := scorer.Score(latest.Sprints, latest.Config, roster)
			fmt.Fprintf(w, "- Latest plan: %s, %d sprints from %s, health %d/100\n",
				shortID(latest.ID), len(latest.Sprints), latest.Config.StartDate.Format(planner.DateLayout), score.Total)
		} else {
			fmt.Fprintln(w, "- Latest plan: none")
		}
		fmt.Fprintln(w)
	}

	return nil
}
