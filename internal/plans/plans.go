// Package plans generates sprint plans from a project's stored backlog and roster.
package plans

import (
	"context"
	"fmt"
	"time"

	"github.com/joescharf/sprintplan/internal/models"
	"github.com/joescharf/sprintplan/internal/planner"
	"github.com/joescharf/sprintplan/internal/store"
)

// Overrides are per-request changes to the configured defaults. Zero values
// keep the default.
type Overrides struct {
	LengthWeeks int
	StartDate   string
	Velocity    int
	Balancing   string
}

// Resolve merges o over the defaults. A start date that is still unset
// becomes today's date (UTC midnight). The merged configuration is not
// validated here; the planner does that.
func Resolve(cfg models.SprintConfiguration, opts planner.Options, o Overrides, now time.Time) (models.SprintConfiguration, planner.Options, error) {
	if o.LengthWeeks != 0 {
		cfg.SprintLengthWeeks = o.LengthWeeks
	}
	if o.Velocity != 0 {
		cfg.VelocityPerSprint = o.Velocity
	}
	if o.StartDate != "" {
		start, err := planner.ParseDate(o.StartDate)
		if err != nil {
			return cfg, opts, err
		}
		cfg.StartDate = start
	}
	if cfg.StartDate.IsZero() {
		y, m, d := now.Date()
		cfg.StartDate = time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
	}
	if o.Balancing != "" {
		mode, err := planner.ParseBalanceMode(o.Balancing)
		if err != nil {
			return cfg, opts, err
		}
		opts.Balancing = mode
	}
	return cfg, opts, nil
}

// Inputs loads a project's backlog in creation order and its roster in insertion order.
func Inputs(ctx context.Context, s store.Store, projectID string) ([]models.Feature, []models.TeamMember, error) {
	features, err := s.ListFeatures(ctx, store.FeatureListFilter{ProjectID: projectID})
	if err != nil {
		return nil, nil, fmt.Errorf("list features: %w", err)
	}
	roster, err := Roster(ctx, s, projectID)
	if err != nil {
		return nil, nil, err
	}

	backlog := make([]models.Feature, 0, len(features))
	for _, f := range features {
		backlog = append(backlog, *f)
	}
	return backlog, roster, nil
}

// Roster loads a project's team in insertion order.
func Roster(ctx context.Context, s store.Store, projectID string) ([]models.TeamMember, error) {
	members, err := s.ListMembers(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("list members: %w", err)
	}
	roster := make([]models.TeamMember, 0, len(members))
	for _, m := range members {
		roster = append(roster, *m)
	}
	return roster, nil
}

// Generate runs the planner over the project's stored data. When save is true
// the result is persisted and carries its new ID.
func Generate(ctx context.Context, s store.Store, projectID string, cfg models.SprintConfiguration, opts planner.Options, save bool) (*models.SprintPlan, error) {
	if _, err := s.GetProject(ctx, projectID); err != nil {
		return nil, err
	}

	backlog, roster, err := Inputs(ctx, s, projectID)
	if err != nil {
		return nil, err
	}

	p := planner.New(opts)
	sprints, err := p.Generate(backlog, roster, cfg)
	if err != nil {
		return nil, err
	}

	plan := &models.SprintPlan{
		ProjectID: projectID,
		Config:    cfg,
		Balancing: string(p.Balancing()),
		Sprints:   sprints,
	}
	if save {
		if err := s.CreatePlan(ctx, plan); err != nil {
			return nil, fmt.Errorf("save plan: %w", err)
		}
	}
	return plan, nil
}
