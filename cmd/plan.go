package cmd

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/joescharf/sprintplan/internal/backlog"
	"github.com/joescharf/sprintplan/internal/health"
	"github.com/joescharf/sprintplan/internal/models"
	"github.com/joescharf/sprintplan/internal/output"
	"github.com/joescharf/sprintplan/internal/planner"
	"github.com/joescharf/sprintplan/internal/plans"
	"github.com/joescharf/sprintplan/internal/report"
	"github.com/joescharf/sprintplan/internal/store"
)

var (
	planFile      string
	planStart     string
	planWeeks     int
	planVelocity  int
	planBalancing string
	planSave      bool
	planFormat    string
)

// nowFunc is overridden in tests.
var nowFunc = time.Now

var planCmd = &cobra.Command{
	Use:   "plan",
	Short: "Generate and manage sprint plans",
	Long: `Generate sprint plans from a project's approved backlog and roster, and
inspect, score, export, or remove saved plans.`,
}

var planGenerateCmd = &cobra.Command{
	Use:   "generate [project]",
	Short: "Generate a sprint plan",
	Long: `Generate a sprint plan. Approved features are ordered by priority,
packed into sprints up to the velocity cap, and split into design,
implementation, and test tasks assigned across the roster.

Settings come from the config file, then the backlog file's sprint section
(with --file), then flags. The start date defaults to today.

With --file, the backlog and roster are read from a YAML file instead of
the database and the plan cannot be saved.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return planGenerateRun(optionalArg(args))
	},
}

var planListCmd = &cobra.Command{
	Use:     "list [project]",
	Aliases: []string{"ls"},
	Short:   "List saved plans, newest first",
	Args:    cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return planListRun(optionalArg(args))
	},
}

var planShowCmd = &cobra.Command{
	Use:   "show <plan-id>",
	Short: "Show a saved plan",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return planShowRun(args[0])
	},
}

var planHealthCmd = &cobra.Command{
	Use:   "health <plan-id>",
	Short: "Score a saved plan",
	Long: `Score a saved plan from 0 to 100:

  Utilization  40  mean sprint velocity relative to the cap
  Overflow     20  sprints that exceed the cap (oversized features)
  Coverage     20  tasks that found an assignee
  Balance      20  spread of task counts across the roster; idle members count`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return planHealthRun(args[0])
	},
}

var planRemoveCmd = &cobra.Command{
	Use:     "remove <plan-id>",
	Aliases: []string{"rm"},
	Short:   "Remove a saved plan",
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return planRemoveRun(args[0])
	},
}

func init() {
	f := planGenerateCmd.Flags()
	f.StringVarP(&planFile, "file", "f", "", "Read backlog and roster from a YAML file")
	f.StringVar(&planStart, "start", "", "First sprint start date (YYYY-MM-DD, default today)")
	f.IntVar(&planWeeks, "weeks", 0, "Sprint length in weeks (default from config)")
	f.IntVar(&planVelocity, "velocity", 0, "Story points per sprint (default from config)")
	f.StringVar(&planBalancing, "balancing", "", "Assignment balancing: cumulative or per_lookup (default from config)")
	f.BoolVar(&planSave, "save", false, "Save the generated plan")
	f.StringVar(&planFormat, "format", "table", "Output format: table, json, markdown")

	planShowCmd.Flags().StringVar(&planFormat, "format", "table", "Output format: table, json, markdown")

	planCmd.AddCommand(planGenerateCmd)
	planCmd.AddCommand(planListCmd)
	planCmd.AddCommand(planShowCmd)
	planCmd.AddCommand(planHealthCmd)
	planCmd.AddCommand(planRemoveCmd)
	rootCmd.AddCommand(planCmd)
}

func planOverrides() plans.Overrides {
	return plans.Overrides{
		LengthWeeks: planWeeks,
		StartDate:   planStart,
		Velocity:    planVelocity,
		Balancing:   planBalancing,
	}
}

// stageLogger reports planner stages in verbose mode.
func stageLogger(e planner.StageEvent) {
	switch e.Stage {
	case planner.StagePrioritize:
		ui.VerboseLog("Prioritized %d approved features", e.Count)
	case planner.StagePack:
		ui.VerboseLog("Packed into %d sprints", e.Count)
	case planner.StageSynthesize:
		ui.VerboseLog("Synthesized %d tasks", e.Count)
	}
}

// checkViewFormat rejects formats renderPlan cannot print.
func checkViewFormat(format string) error {
	switch format {
	case "table", "json", "markdown", "md":
		return nil
	}
	return fmt.Errorf("unknown format: %s (use: table, json, markdown; for csv or pdf use 'sprintplan plan export')", format)
}

func planGenerateRun(projectRef string) error {
	format := orDefault(planFormat, "table")
	if err := checkViewFormat(format); err != nil {
		return err
	}

	opts, err := plannerOptions()
	if err != nil {
		return err
	}
	opts.OnStage = stageLogger

	var (
		plan   *models.SprintPlan
		roster []models.TeamMember
	)
	if planFile != "" {
		if planSave {
			return errors.New("--save cannot be combined with --file; import the file with 'sprintplan project import' first")
		}
		plan, roster, err = generateFromFile(planFile, opts)
	} else {
		plan, roster, err = generateFromStore(projectRef, opts)
	}
	if err != nil {
		return err
	}

	score := health.NewScorer().Score(plan.Sprints, plan.Config, roster)
	if err := renderPlan(plan, score, format); err != nil {
		return err
	}

	if plan.ID != "" {
		ui.Success("Saved plan %s", output.Cyan(shortID(plan.ID)))
	} else if planSave && dryRun {
		ui.DryRunMsg("Would save plan with %d sprints", len(plan.Sprints))
	}
	return nil
}

func generateFromFile(path string, opts planner.Options) (*models.SprintPlan, []models.TeamMember, error) {
	doc, err := backlog.Load(path)
	if err != nil {
		return nil, nil, err
	}

	// Config defaults, then the file, then flags.
	base, opts, err := plans.Resolve(sprintDefaults(), opts, plans.Overrides{}, nowFunc())
	if err != nil {
		return nil, nil, err
	}
	cfg, err := doc.Config(base)
	if err != nil {
		return nil, nil, err
	}
	cfg, opts, err = plans.Resolve(cfg, opts, planOverrides(), nowFunc())
	if err != nil {
		return nil, nil, err
	}

	roster := doc.Roster()
	p := planner.New(opts)
	sprints, err := p.Generate(doc.Backlog(), roster, cfg)
	if err != nil {
		return nil, nil, err
	}
	return &models.SprintPlan{
		Config:    cfg,
		Balancing: string(p.Balancing()),
		Sprints:   sprints,
	}, roster, nil
}

func generateFromStore(projectRef string, opts planner.Options) (*models.SprintPlan, []models.TeamMember, error) {
	s, err := getStore()
	if err != nil {
		return nil, nil, err
	}
	ctx := context.Background()

	proj, err := resolveProjectFlag(ctx, s, projectRef)
	if err != nil {
		return nil, nil, err
	}

	cfg, opts, err := plans.Resolve(sprintDefaults(), opts, planOverrides(), nowFunc())
	if err != nil {
		return nil, nil, err
	}
	ui.VerboseLog("Project %s: %d-week sprints from %s, velocity %d, %s balancing",
		proj.Name, cfg.SprintLengthWeeks, cfg.StartDate.Format(planner.DateLayout), cfg.VelocityPerSprint, opts.Balancing)

	plan, err := plans.Generate(ctx, s, proj.ID, cfg, opts, planSave && !dryRun)
	if err != nil {
		return nil, nil, err
	}
	roster, err := plans.Roster(ctx, s, proj.ID)
	if err != nil {
		return nil, nil, err
	}
	return plan, roster, nil
}

// scoreSaved scores a saved plan against its project's current roster.
func scoreSaved(ctx context.Context, s store.Store, plan *models.SprintPlan) (*health.PlanScore, error) {
	roster, err := plans.Roster(ctx, s, plan.ProjectID)
	if err != nil {
		return nil, err
	}
	return health.NewScorer().Score(plan.Sprints, plan.Config, roster), nil
}

// renderPlan writes plan to ui.Out in the given format.
func renderPlan(plan *models.SprintPlan, score *health.PlanScore, format string) error {
	switch format {
	case "json":
		return report.WriteJSON(ui.Out, plan)
	case "markdown", "md":
		return report.WriteMarkdown(ui.Out, plan, score)
	}

	if len(plan.Sprints) == 0 {
		ui.Info("No approved features to schedule.")
		return nil
	}

	for _, sp := range plan.Sprints {
		fmt.Fprintf(ui.Out, "%s  %s to %s  %d/%d pts\n",
			output.Cyan(sp.Name),
			sp.StartDate.Format(planner.DateLayout),
			sp.EndDate.Format(planner.DateLayout),
			sp.Velocity, plan.Config.VelocityPerSprint)
		fmt.Fprintf(ui.Out, "  %s\n", sp.Goal)

		table := ui.Table([]string{"Feature", "Kind", "Task", "Priority", "Pts", "Hrs", "Assignee"})
		titles := make(map[string]string, len(sp.Features))
		for _, f := range sp.Features {
			titles[f.ID] = f.Title
		}
		for _, t := range sp.Tasks {
			assignee := report.Assignee(t)
			if t.AssigneeID == nil {
				assignee = output.Red(assignee)
			}
			_ = table.Append([]string{
				titles[t.FeatureID],
				string(t.Kind),
				t.Title,
				output.PriorityColor(string(t.Priority)),
				fmt.Sprintf("%d", t.StoryPoints),
				fmt.Sprintf("%d", t.EstimatedHours),
				assignee,
			})
		}
		_ = table.Render()
		fmt.Fprintln(ui.Out)
	}

	if score != nil {
		fmt.Fprintf(ui.Out, "Health: %s/100 (utilization %d/40, overflow %d/20, coverage %d/20, balance %d/20)\n",
			output.HealthColor(score.Total), score.Utilization, score.Overflow, score.Coverage, score.Balance)
	}
	return nil
}

// findPlan resolves a plan by full ID or a unique ID prefix.
func findPlan(ctx context.Context, s store.Store, id string) (*models.SprintPlan, error) {
	if plan, err := s.GetPlan(ctx, id); err == nil {
		return plan, nil
	}

	projects, err := s.ListProjects(ctx)
	if err != nil {
		return nil, err
	}
	prefix := strings.ToUpper(id)
	var match *models.SprintPlan
	for _, p := range projects {
		saved, err := s.ListPlans(ctx, p.ID)
		if err != nil {
			return nil, err
		}
		for _, plan := range saved {
			if !strings.HasPrefix(plan.ID, prefix) {
				continue
			}
			if match != nil {
				return nil, fmt.Errorf("plan ID prefix is ambiguous: %s", id)
			}
			match = plan
		}
	}
	if match == nil {
		return nil, fmt.Errorf("plan not found: %s", id)
	}
	return match, nil
}

func planListRun(projectRef string) error {
	s, err := getStore()
	if err != nil {
		return err
	}
	ctx := context.Background()

	proj, err := resolveProjectFlag(ctx, s, projectRef)
	if err != nil {
		return err
	}

	saved, err := s.ListPlans(ctx, proj.ID)
	if err != nil {
		return err
	}
	if len(saved) == 0 {
		ui.Info("No saved plans for %s. Use 'sprintplan plan generate --save'.", proj.Name)
		return nil
	}

	roster, err := plans.Roster(ctx, s, proj.ID)
	if err != nil {
		return err
	}

	scorer := health.NewScorer()
	table := ui.Table([]string{"ID", "Created", "Start", "Sprints", "Tasks", "Velocity", "Health"})
	for _, plan := range saved {
		tasks := 0
		for _, sp := range plan.Sprints {
			tasks += len(sp.Tasks)
		}
		score := scorer.Score(plan.Sprints, plan.Config, roster)
		_ = table.Append([]string{
			output.Cyan(shortID(plan.ID)),
			timeAgo(plan.CreatedAt),
			plan.Config.StartDate.Format(planner.DateLayout),
			fmt.Sprintf("%d", len(plan.Sprints)),
			fmt.Sprintf("%d", tasks),
			fmt.Sprintf("%d", plan.Config.VelocityPerSprint),
			output.HealthColor(score.Total),
		})
	}
	_ = table.Render()
	return nil
}

func planShowRun(id string) error {
	format := orDefault(planFormat, "table")
	if err := checkViewFormat(format); err != nil {
		return err
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

	if format == "table" {
		fmt.Fprintf(ui.Out, "Plan %s  %d-week sprints, velocity %d, %s balancing\n\n",
			output.Cyan(plan.ID), plan.Config.SprintLengthWeeks, plan.Config.VelocityPerSprint, plan.Balancing)
	}
	return renderPlan(plan, score, format)
}

func planHealthRun(id string) error {
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
	fmt.Fprintf(ui.Out, "Health: %s/100\n", output.HealthColor(score.Total))
	fmt.Fprintf(ui.Out, "  Utilization:  %d/40\n", score.Utilization)
	fmt.Fprintf(ui.Out, "  Overflow:     %d/20\n", score.Overflow)
	fmt.Fprintf(ui.Out, "  Coverage:     %d/20\n", score.Coverage)
	fmt.Fprintf(ui.Out, "  Balance:      %d/20\n", score.Balance)

	if len(score.Load) == 0 {
		return nil
	}
	fmt.Fprintln(ui.Out)
	table := ui.Table([]string{"Assignee", "Tasks", "Points"})
	for _, l := range score.Load {
		_ = table.Append([]string{
			l.MemberID,
			fmt.Sprintf("%d", l.Tasks),
			fmt.Sprintf("%d", l.Points),
		})
	}
	_ = table.Render()
	return nil
}

func planRemoveRun(id string) error {
	s, err := getStore()
	if err != nil {
		return err
	}
	ctx := context.Background()

	plan, err := findPlan(ctx, s, id)
	if err != nil {
		return err
	}

	if dryRun {
		ui.DryRunMsg("Would remove plan %s", shortID(plan.ID))
		return nil
	}

	if err := s.DeletePlan(ctx, plan.ID); err != nil {
		return fmt.Errorf("remove plan: %w", err)
	}
	ui.Success("Removed plan %s", output.Cyan(shortID(plan.ID)))
	return nil
}
