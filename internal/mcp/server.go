package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/joescharf/sprintplan/internal/health"
	"github.com/joescharf/sprintplan/internal/models"
	"github.com/joescharf/sprintplan/internal/planner"
	"github.com/joescharf/sprintplan/internal/plans"
	"github.com/joescharf/sprintplan/internal/store"
)

// Server wraps the sprintplan data layer and exposes it as MCP tools.
type Server struct {
	store    store.Store
	defaults models.SprintConfiguration
	options  planner.Options
	scorer   *health.Scorer
	now      func() time.Time
}

// NewServer creates the MCP server wrapper. defaults and opts apply to
// sp_generate_plan calls that leave fields out.
func NewServer(s store.Store, defaults models.SprintConfiguration, opts planner.Options) *Server {
	return &Server{
		store:    s,
		defaults: defaults,
		options:  opts,
		scorer:   health.NewScorer(),
		now:      time.Now,
	}
}

// MCPServer returns a configured mcp-go server with all tools registered.
func (s *Server) MCPServer() *server.MCPServer {
	srv := server.NewMCPServer("sprintplan", "1.0.0", server.WithToolCapabilities(true))

	srv.AddTool(s.listProjectsTool())
	srv.AddTool(s.listFeaturesTool())
	srv.AddTool(s.createFeatureTool())
	srv.AddTool(s.updateFeatureTool())
	srv.AddTool(s.listMembersTool())
	srv.AddTool(s.generatePlanTool())
	srv.AddTool(s.planHealthTool())

	return srv
}

// ServeStdio starts the stdio transport, blocking until ctx is cancelled.
func (s *Server) ServeStdio(ctx context.Context) error {
	srv := s.MCPServer()
	stdioServer := server.NewStdioServer(srv)
	return stdioServer.Listen(ctx, os.Stdin, os.Stdout)
}

// jsonResult marshals v as the tool's text result.
func jsonResult(what string, v any) (*mcp.CallToolResult, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to marshal %s: %v", what, err)), nil
	}
	return mcp.NewToolResultText(string(data)), nil
}

// ---------------------------------------------------------------------------
// Tool definitions and handlers
// ---------------------------------------------------------------------------

// sp_list_projects
func (s *Server) listProjectsTool() (mcp.Tool, server.ToolHandlerFunc) {
	tool := mcp.NewTool("sp_list_projects",
		mcp.WithDescription("List all projects. Returns a JSON array of projects with id, name, and description."),
	)
	return tool, s.handleListProjects
}

func (s *Server) handleListProjects(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	projects, err := s.store.ListProjects(ctx)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to list projects: %v", err)), nil
	}
	if projects == nil {
		projects = []*models.Project{}
	}
	return jsonResult("projects", projects)
}

// sp_list_features
func (s *Server) listFeaturesTool() (mcp.Tool, server.ToolHandlerFunc) {
	tool := mcp.NewTool("sp_list_features",
		mcp.WithDescription("List backlog features of a project in creation order, optionally filtered by status and/or priority. Only approved features are scheduled by sp_generate_plan."),
		mcp.WithString("project", mcp.Required(), mcp.Description("Project name or ID")),
		mcp.WithString("status", mcp.Description("Status filter: draft, approved, rejected")),
		mcp.WithString("priority", mcp.Description("Priority filter: critical, high, medium, low")),
	)
	return tool, s.handleListFeatures
}

func (s *Server) handleListFeatures(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	projectName, err := request.RequireString("project")
	if err != nil {
		return mcp.NewToolResultError("missing required parameter: project"), nil
	}
	p, err := s.resolveProject(ctx, projectName)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("project not found: %s", projectName)), nil
	}

	features, err := s.store.ListFeatures(ctx, store.FeatureListFilter{
		ProjectID: p.ID,
		Status:    models.FeatureStatus(request.GetString("status", "")),
		Priority:  models.Priority(request.GetString("priority", "")),
	})
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to list features: %v", err)), nil
	}
	if features == nil {
		features = []*models.Feature{}
	}
	return jsonResult("features", features)
}

// sp_create_feature
func (s *Server) createFeatureTool() (mcp.Tool, server.ToolHandlerFunc) {
	tool := mcp.NewTool("sp_create_feature",
		mcp.WithDescription("Add a feature to a project's backlog. New features are drafts unless status is given. Returns the created feature as JSON."),
		mcp.WithString("project", mcp.Required(), mcp.Description("Project name or ID")),
		mcp.WithString("title", mcp.Required(), mcp.Description("Feature title")),
		mcp.WithString("description", mcp.Description("Feature description")),
		mcp.WithString("priority", mcp.Description("critical, high, medium, low (default: medium)")),
		mcp.WithString("complexity", mcp.Description("simple (5 pts), moderate (13 pts), complex (21 pts) (default: moderate)")),
		mcp.WithString("status", mcp.Description("draft, approved, rejected (default: draft)")),
	)
	return tool, s.handleCreateFeature
}

func (s *Server) handleCreateFeature(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	projectName, err := request.RequireString("project")
	if err != nil {
		return mcp.NewToolResultError("missing required parameter: project"), nil
	}
	title, err := request.RequireString("title")
	if err != nil || strings.TrimSpace(title) == "" {
		return mcp.NewToolResultError("missing required parameter: title"), nil
	}

	p, err := s.resolveProject(ctx, projectName)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("project not found: %s", projectName)), nil
	}

	f := &models.Feature{
		ProjectID:   p.ID,
		Title:       title,
		Description: request.GetString("description", ""),
		Status:      models.FeatureStatus(request.GetString("status", string(models.FeatureStatusDraft))),
		Priority:    models.Priority(request.GetString("priority", string(models.PriorityMedium))),
		Complexity:  models.Complexity(request.GetString("complexity", string(models.ComplexityModerate))),
	}
	if msg := checkFeature(f); msg != "" {
		return mcp.NewToolResultError(msg), nil
	}

	if err := s.store.CreateFeature(ctx, f); err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to create feature: %v", err)), nil
	}
	return jsonResult("feature", f)
}

// sp_update_feature
func (s *Server) updateFeatureTool() (mcp.Tool, server.ToolHandlerFunc) {
	tool := mcp.NewTool("sp_update_feature",
		mcp.WithDescription("Update a backlog feature. Provide the feature ID (full or prefix) and at least one field. Set status to approved to make it schedulable."),
		mcp.WithString("feature_id", mcp.Required(), mcp.Description("Feature ID (full ULID or unique prefix)")),
		mcp.WithString("status", mcp.Description("New status: draft, approved, rejected")),
		mcp.WithString("title", mcp.Description("New title")),
		mcp.WithString("description", mcp.Description("New description")),
		mcp.WithString("priority", mcp.Description("New priority: critical, high, medium, low")),
		mcp.WithString("complexity", mcp.Description("New complexity: simple, moderate, complex")),
	)
	return tool, s.handleUpdateFeature
}

func (s *Server) handleUpdateFeature(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	featureID, err := request.RequireString("feature_id")
	if err != nil {
		return mcp.NewToolResultError("missing required parameter: feature_id"), nil
	}

	f, err := s.findFeature(ctx, featureID)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	updated := false
	if v := request.GetString("status", ""); v != "" {
		f.Status = models.FeatureStatus(v)
		updated = true
	}
	if v := request.GetString("title", ""); v != "" {
		f.Title = v
		updated = true
	}
	if v := request.GetString("description", ""); v != "" {
		f.Description = v
		updated = true
	}
	if v := request.GetString("priority", ""); v != "" {
		f.Priority = models.Priority(v)
		updated = true
	}
	if v := request.GetString("complexity", ""); v != "" {
		f.Complexity = models.Complexity(v)
		updated = true
	}
	if !updated {
		return mcp.NewToolResultError("no fields provided to update; specify at least one of: status, title, description, priority, complexity"), nil
	}
	if msg := checkFeature(f); msg != "" {
		return mcp.NewToolResultError(msg), nil
	}

	if err := s.store.UpdateFeature(ctx, f); err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to update feature: %v", err)), nil
	}
	return jsonResult("feature", f)
}

// sp_list_members
func (s *Server) listMembersTool() (mcp.Tool, server.ToolHandlerFunc) {
	tool := mcp.NewTool("sp_list_members",
		mcp.WithDescription("List a project's team roster in roster order. Task assignees in generated plans are member emails."),
		mcp.WithString("project", mcp.Required(), mcp.Description("Project name or ID")),
	)
	return tool, s.handleListMembers
}

func (s *Server) handleListMembers(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	projectName, err := request.RequireString("project")
	if err != nil {
		return mcp.NewToolResultError("missing required parameter: project"), nil
	}
	p, err := s.resolveProject(ctx, projectName)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("project not found: %s", projectName)), nil
	}

	members, err := s.store.ListMembers(ctx, p.ID)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to list members: %v", err)), nil
	}
	if members == nil {
		members = []*models.TeamMember{}
	}
	return jsonResult("members", members)
}

// sp_generate_plan
func (s *Server) generatePlanTool() (mcp.Tool, server.ToolHandlerFunc) {
	tool := mcp.NewTool("sp_generate_plan",
		mcp.WithDescription("Generate a sprint plan from a project's approved features and roster. Features are ordered by priority, packed into sprints up to the velocity cap, and split into design, implement, and test tasks. Returns the plan and its health score as JSON."),
		mcp.WithString("project", mcp.Required(), mcp.Description("Project name or ID")),
		mcp.WithString("start_date", mcp.Description("First sprint start date, YYYY-MM-DD (default: today)")),
		mcp.WithNumber("sprint_length_weeks", mcp.Description("Sprint length in weeks")),
		mcp.WithNumber("velocity", mcp.Description("Story point cap per sprint")),
		mcp.WithString("balancing", mcp.Description("cumulative or per_lookup")),
		mcp.WithBoolean("save", mcp.Description("Persist the plan (default: false)")),
	)
	return tool, s.handleGeneratePlan
}

func (s *Server) handleGeneratePlan(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	projectName, err := request.RequireString("project")
	if err != nil {
		return mcp.NewToolResultError("missing required parameter: project"), nil
	}
	p, err := s.resolveProject(ctx, projectName)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("project not found: %s", projectName)), nil
	}

	cfg, opts, err := plans.Resolve(s.defaults, s.options, plans.Overrides{
		LengthWeeks: request.GetInt("sprint_length_weeks", 0),
		StartDate:   request.GetString("start_date", ""),
		Velocity:    request.GetInt("velocity", 0),
		Balancing:   request.GetString("balancing", ""),
	}, s.now())
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	plan, err := plans.Generate(ctx, s.store, p.ID, cfg, opts, request.GetBool("save", false))
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to generate plan: %v", err)), nil
	}

	roster, err := plans.Roster(ctx, s.store, p.ID)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to load roster: %v", err)), nil
	}

	return jsonResult("plan", map[string]any{
		"project": p.Name,
		"plan":    plan,
		"health":  s.scorer.Score(plan.Sprints, plan.Config, roster),
	})
}

// sp_plan_health
func (s *Server) planHealthTool() (mcp.Tool, server.ToolHandlerFunc) {
	tool := mcp.NewTool("sp_plan_health",
		mcp.WithDescription("Score a saved sprint plan 0-100: utilization (40), overflow (20), assignment coverage (20), and workload balance (20). Returns the breakdown and per-member load as JSON."),
		mcp.WithString("plan_id", mcp.Required(), mcp.Description("Saved plan ID")),
	)
	return tool, s.handlePlanHealth
}

func (s *Server) handlePlanHealth(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	planID, err := request.RequireString("plan_id")
	if err != nil {
		return mcp.NewToolResultError("missing required parameter: plan_id"), nil
	}
	plan, err := s.store.GetPlan(ctx, planID)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("plan not found: %s", planID)), nil
	}
	roster, err := plans.Roster(ctx, s.store, plan.ProjectID)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to load roster: %v", err)), nil
	}
	return jsonResult("health", s.scorer.Score(plan.Sprints, plan.Config, roster))
}

// ---------------------------------------------------------------------------
// Helpers
// ---------------------------------------------------------------------------

// checkFeature returns a message for the first invalid field, or "".
func checkFeature(f *models.Feature) string {
	switch {
	case !f.Status.Valid():
		return fmt.Sprintf("invalid status %q: use draft, approved, rejected", f.Status)
	case !f.Priority.Valid():
		return fmt.Sprintf("invalid priority %q: use critical, high, medium, low", f.Priority)
	case !f.Complexity.Valid():
		return fmt.Sprintf("invalid complexity %q: use simple, moderate, complex", f.Complexity)
	}
	return ""
}

// resolveProject tries to find a project by name first, then by ID.
func (s *Server) resolveProject(ctx context.Context, name string) (*models.Project, error) {
	if p, err := s.store.GetProjectByName(ctx, name); err == nil {
		return p, nil
	}
	if p, err := s.store.GetProject(ctx, name); err == nil {
		return p, nil
	}
	return nil, fmt.Errorf("project not found: %s", name)
}

// findFeature finds a feature by full ID or unique prefix.
func (s *Server) findFeature(ctx context.Context, id string) (*models.Feature, error) {
	if f, err := s.store.GetFeature(ctx, id); err == nil {
		return f, nil
	}

	upper := strings.ToUpper(id)
	features, err := s.store.ListFeatures(ctx, store.FeatureListFilter{})
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
