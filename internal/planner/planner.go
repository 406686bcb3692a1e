// Package planner turns a feature backlog and a team roster into a sprint plan.
//
// Generation runs in three synchronous stages: prioritize the approved
// features, pack them into velocity-capped sprints, then synthesize and
// assign the per-feature tasks. The package does no I/O and holds no state
// between runs, so concurrent calls need no coordination.
package planner

import (
	"fmt"
	"time"

	"github.com/joescharf/sprintplan/internal/models"
)

// BalanceMode selects how the assignment balancer counts prior assignments.
type BalanceMode string

const (
	// BalanceCumulative keeps per-member counters for the whole run.
	BalanceCumulative BalanceMode = "cumulative"
	// BalancePerLookup resets counters on every lookup, so the first
	// eligible member in roster order always wins.
	BalancePerLookup BalanceMode = "per_lookup"
)

// ParseBalanceMode validates a balancing mode name. Empty means cumulative.
func ParseBalanceMode(s string) (BalanceMode, error) {
	switch BalanceMode(s) {
	case "", BalanceCumulative:
		return BalanceCumulative, nil
	case BalancePerLookup:
		return BalancePerLookup, nil
	default:
		return "", &ConfigError{Field: "balancing", Reason: fmt.Sprintf("unknown mode %q (use cumulative or per_lookup)", s)}
	}
}

// Stage names a generation boundary reported through Options.OnStage.
type Stage string

const (
	StagePrioritize Stage = "prioritize"
	StagePack       Stage = "pack"
	StageSynthesize Stage = "synthesize"
)

// StageEvent is reported after a stage completes. Count is the number of
// features kept, sprints packed, or tasks synthesized respectively.
type StageEvent struct {
	Stage Stage
	Count int
}

// Options tunes a Planner. The zero value is valid.
type Options struct {
	Balancing BalanceMode
	// MinImplementPoints floors the implement task's story points. Zero keeps
	// the literal featurePoints-5, which is 0 for simple features.
	MinImplementPoints int
	// OnStage, if set, is called synchronously at each stage boundary.
	OnStage func(StageEvent)
}

// Planner generates sprint plans.
type Planner struct {
	opts Options
}

// New returns a Planner with the given options.
func New(opts Options) *Planner {
	if opts.Balancing == "" {
		opts.Balancing = BalanceCumulative
	}
	return &Planner{opts: opts}
}

// Balancing reports the balancing mode in effect.
func (p *Planner) Balancing() BalanceMode {
	return p.opts.Balancing
}

// Generate builds a plan with default options.
func Generate(backlog []models.Feature, roster []models.TeamMember, cfg models.SprintConfiguration) ([]models.GeneratedSprint, error) {
	return New(Options{}).Generate(backlog, roster, cfg)
}

// Generate partitions the approved features of backlog into sprints and
// assigns their tasks to members of roster. Inputs are not modified.
func (p *Planner) Generate(backlog []models.Feature, roster []models.TeamMember, cfg models.SprintConfiguration) ([]models.GeneratedSprint, error) {
	if err := ValidateConfig(cfg); err != nil {
		return nil, err
	}

	ordered := Prioritize(backlog)
	p.report(StagePrioritize, len(ordered))

	bins := Pack(ordered, cfg.VelocityPerSprint)
	p.report(StagePack, len(bins))

	balancer := NewBalancer(roster, p.opts.Balancing)
	sprints := make([]models.GeneratedSprint, 0, len(bins))
	taskCount := 0
	for _, bin := range bins {
		sprint := p.buildSprint(bin, cfg, balancer)
		taskCount += len(sprint.Tasks)
		sprints = append(sprints, sprint)
	}
	p.report(StageSynthesize, taskCount)

	return sprints, nil
}

func (p *Planner) buildSprint(bin Bin, cfg models.SprintConfiguration, balancer *Balancer) models.GeneratedSprint {
	start, end := SprintWindow(cfg, bin.Number)

	refs := make([]models.FeatureRef, 0, len(bin.Features))
	tasks := make([]models.Task, 0, len(bin.Features)*3)
	for _, f := range bin.Features {
		refs = append(refs, models.FeatureRef{
			ID:         f.ID,
			Title:      f.Title,
			Priority:   f.Priority,
			Complexity: f.Complexity,
			Points:     EffortPoints(f.Complexity),
		})
		tasks = append(tasks, p.synthesize(f, balancer)...)
	}

	return models.GeneratedSprint{
		Number:    bin.Number,
		Name:      fmt.Sprintf("Sprint %d", bin.Number),
		StartDate: start,
		EndDate:   end,
		Goal:      SprintGoal(bin.Features),
		Velocity:  bin.Velocity,
		Features:  refs,
		Tasks:     tasks,
	}
}

func (p *Planner) report(stage Stage, count int) {
	if p.opts.OnStage != nil {
		p.opts.OnStage(StageEvent{Stage: stage, Count: count})
	}
}

// ConfigError reports an invalid sprint configuration field.
type ConfigError struct {
	Field  string
	Reason string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("invalid sprint configuration: %s: %s", e.Field, e.Reason)
}

// ValidateConfig rejects configurations the packer cannot honor.
func ValidateConfig(cfg models.SprintConfiguration) error {
	if cfg.SprintLengthWeeks <= 0 {
		return &ConfigError{Field: "sprint_length_weeks", Reason: "must be positive"}
	}
	if cfg.VelocityPerSprint <= 0 {
		return &ConfigError{Field: "velocity_per_sprint", Reason: "must be positive"}
	}
	if cfg.StartDate.IsZero() {
		return &ConfigError{Field: "start_date", Reason: "is required"}
	}
	return nil
}

// DateLayout is the calendar date format used for sprint windows.
const DateLayout = "2006-01-02"

// ParseDate parses a YYYY-MM-DD date as UTC midnight.
func ParseDate(s string) (time.Time, error) {
	t, err := time.Parse(DateLayout, s)
	if err != nil {
		return time.Time{}, &ConfigError{Field: "start_date", Reason: fmt.Sprintf("%q is not a YYYY-MM-DD date", s)}
	}
	return t, nil
}
