package api

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/joescharf/sprintplan/internal/backlog"
	"github.com/joescharf/sprintplan/internal/health"
	"github.com/joescharf/sprintplan/internal/models"
	"github.com/joescharf/sprintplan/internal/planner"
	"github.com/joescharf/sprintplan/internal/plans"
	"github.com/joescharf/sprintplan/internal/store"
)

// Defaults fill in whatever a generation request leaves out.
type Defaults struct {
	Sprint  models.SprintConfiguration
	Options planner.Options
}

// Server provides the REST API handlers.
type Server struct {
	store    store.Store
	defaults Defaults
	scorer   *health.Scorer
	now      func() time.Time
}

// NewServer creates a new API server.
func NewServer(s store.Store, defaults Defaults) *Server {
	return &Server{
		store:    s,
		defaults: defaults,
		scorer:   health.NewScorer(),
		now:      time.Now,
	}
}

// Router returns an http.Handler for the API routes.
func (s *Server) Router() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /api/v1/projects", s.listProjects)
	mux.HandleFunc("POST /api/v1/projects", s.createProject)
	mux.HandleFunc("GET /api/v1/projects/{id}", s.getProject)
	mux.HandleFunc("PUT /api/v1/projects/{id}", s.updateProject)
	mux.HandleFunc("DELETE /api/v1/projects/{id}", s.deleteProject)

	mux.HandleFunc("GET /api/v1/projects/{id}/features", s.listProjectFeatures)
	mux.HandleFunc("POST /api/v1/projects/{id}/features", s.createProjectFeature)
	mux.HandleFunc("POST /api/v1/features/bulk-status", s.bulkFeatureStatus)
	mux.HandleFunc("GET /api/v1/features/{id}", s.getFeature)
	mux.HandleFunc("PUT /api/v1/features/{id}", s.updateFeature)
	mux.HandleFunc("DELETE /api/v1/features/{id}", s.deleteFeature)

	mux.HandleFunc("GET /api/v1/projects/{id}/members", s.listProjectMembers)
	mux.HandleFunc("POST /api/v1/projects/{id}/members", s.createProjectMember)
	mux.HandleFunc("DELETE /api/v1/members/{id}", s.deleteMember)

	mux.HandleFunc("GET /api/v1/projects/{id}/plans", s.listProjectPlans)
	mux.HandleFunc("POST /api/v1/projects/{id}/plans", s.generatePlan)
	mux.HandleFunc("GET /api/v1/plans/{id}", s.getPlan)
	mux.HandleFunc("DELETE /api/v1/plans/{id}", s.deletePlan)
	mux.HandleFunc("GET /api/v1/plans/{id}/health", s.planHealth)

	mux.HandleFunc("POST /api/v1/preview", s.preview)

	return corsMiddleware(mux)
}

func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// writeStoreError maps lookup and validation failures to 404 and 400.
func writeStoreError(w http.ResponseWriter, r *http.Request, err error) {
	var cfgErr *planner.ConfigError
	switch {
	case errors.Is(err, store.ErrNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.As(err, &cfgErr):
		writeError(w, http.StatusBadRequest, err.Error())
	default:
		slog.Error("request failed", "method", r.Method, "path", r.URL.Path, "error", err)
		writeError(w, http.StatusInternalServerError, err.Error())
	}
}

// patchString applies a string value from a JSON patch map to the target if the key is present and non-empty.
func patchString(patch map[string]any, key string, target *string) {
	if v, ok := patch[key]; ok {
		if str, ok := v.(string); ok && str != "" {
			*target = str
		}
	}
}

// --- Projects ---

func (s *Server) listProjects(w http.ResponseWriter, r *http.Request) {
	projects, err := s.store.ListProjects(r.Context())
	if err != nil {
		writeStoreError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, projects)
}

func (s *Server) getProject(w http.ResponseWriter, r *http.Request) {
	project, err := s.store.GetProject(r.Context(), r.PathValue("id"))
	if err != nil {
		writeStoreError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, project)
}

func (s *Server) createProject(w http.ResponseWriter, r *http.Request) {
	var p models.Project
	if err := json.NewDecoder(r.Body).Decode(&p); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	if strings.TrimSpace(p.Name) == "" {
		writeError(w, http.StatusBadRequest, "name is required")
		return
	}
	if err := s.store.CreateProject(r.Context(), &p); err != nil {
		writeStoreError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, p)
}

func (s *Server) updateProject(w http.ResponseWriter, r *http.Request) {
	existing, err := s.store.GetProject(r.Context(), r.PathValue("id"))
	if err != nil {
		writeStoreError(w, r, err)
		return
	}

	var patch map[string]any
	if err := json.NewDecoder(r.Body).Decode(&patch); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	patchString(patch, "name", &existing.Name)
	patchString(patch, "description", &existing.Description)

	if err := s.store.UpdateProject(r.Context(), existing); err != nil {
		writeStoreError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, existing)
}

func (s *Server) deleteProject(w http.ResponseWriter, r *http.Request) {
	if err := s.store.DeleteProject(r.Context(), r.PathValue("id")); err != nil {
		writeStoreError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// --- Features ---

func (s *Server) listProjectFeatures(w http.ResponseWriter, r *http.Request) {
	filter := store.FeatureListFilter{
		ProjectID: r.PathValue("id"),
		Status:    models.FeatureStatus(r.URL.Query().Get("status")),
		Priority:  models.Priority(r.URL.Query().Get("priority")),
	}
	features, err := s.store.ListFeatures(r.Context(), filter)
	if err != nil {
		writeStoreError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, features)
}

// validateFeature fills defaults and rejects unknown enum values.
func validateFeature(f *models.Feature) string {
	if strings.TrimSpace(f.Title) == "" {
		return "title is required"
	}
	if f.Status == "" {
		f.Status = models.FeatureStatusDraft
	}
	if f.Priority == "" {
		f.Priority = models.PriorityMedium
	}
	if f.Complexity == "" {
		f.Complexity = models.ComplexityModerate
	}
	switch {
	case !f.Status.Valid():
		return "invalid status: " + string(f.Status)
	case !f.Priority.Valid():
		return "invalid priority: " + string(f.Priority)
	case !f.Complexity.Valid():
		return "invalid complexity: " + string(f.Complexity)
	}
	return ""
}

func (s *Server) createProjectFeature(w http.ResponseWriter, r *http.Request) {
	projectID := r.PathValue("id")
	if _, err := s.store.GetProject(r.Context(), projectID); err != nil {
		writeStoreError(w, r, err)
		return
	}

	var f models.Feature
	if err := json.NewDecoder(r.Body).Decode(&f); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	f.ID = ""
	f.ProjectID = projectID
	if msg := validateFeature(&f); msg != "" {
		writeError(w, http.StatusBadRequest, msg)
		return
	}

	if err := s.store.CreateFeature(r.Context(), &f); err != nil {
		writeStoreError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, f)
}

func (s *Server) getFeature(w http.ResponseWriter, r *http.Request) {
	f, err := s.store.GetFeature(r.Context(), r.PathValue("id"))
	if err != nil {
		writeStoreError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, f)
}

func (s *Server) updateFeature(w http.ResponseWriter, r *http.Request) {
	existing, err := s.store.GetFeature(r.Context(), r.PathValue("id"))
	if err != nil {
		writeStoreError(w, r, err)
		return
	}

	var patch map[string]any
	if err := json.NewDecoder(r.Body).Decode(&patch); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}

	// Empty strings are treated as "not provided" to avoid wiping existing data.
	patchString(patch, "title", &existing.Title)
	patchString(patch, "description", &existing.Description)
	status, priority, complexity := string(existing.Status), string(existing.Priority), string(existing.Complexity)
	patchString(patch, "status", &status)
	patchString(patch, "priority", &priority)
	patchString(patch, "complexity", &complexity)
	existing.Status = models.FeatureStatus(status)
	existing.Priority = models.Priority(priority)
	existing.Complexity = models.Complexity(complexity)

	if msg := validateFeature(existing); msg != "" {
		writeError(w, http.StatusBadRequest, msg)
		return
	}
	if err := s.store.UpdateFeature(r.Context(), existing); err != nil {
		writeStoreError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, existing)
}

func (s *Server) deleteFeature(w http.ResponseWriter, r *http.Request) {
	if err := s.store.DeleteFeature(r.Context(), r.PathValue("id")); err != nil {
		writeStoreError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) bulkFeatureStatus(w http.ResponseWriter, r *http.Request) {
	var req struct {
		IDs    []string `json:"ids"`
		Status string   `json:"status"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	status := models.FeatureStatus(req.Status)
	if !status.Valid() {
		writeError(w, http.StatusBadRequest, "invalid status: "+req.Status)
		return
	}
	if len(req.IDs) == 0 {
		writeError(w, http.StatusBadRequest, "ids must not be empty")
		return
	}

	n, err := s.store.BulkUpdateFeatureStatus(r.Context(), req.IDs, status)
	if err != nil {
		writeStoreError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int64{"updated": n})
}

// --- Members ---

func (s *Server) listProjectMembers(w http.ResponseWriter, r *http.Request) {
	members, err := s.store.ListMembers(r.Context(), r.PathValue("id"))
	if err != nil {
		writeStoreError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, members)
}

func (s *Server) createProjectMember(w http.ResponseWriter, r *http.Request) {
	projectID := r.PathValue("id")
	if _, err := s.store.GetProject(r.Context(), projectID); err != nil {
		writeStoreError(w, r, err)
		return
	}

	var m models.TeamMember
	if err := json.NewDecoder(r.Body).Decode(&m); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	m.ID = ""
	m.ProjectID = projectID
	if strings.TrimSpace(m.UserEmail) == "" {
		writeError(w, http.StatusBadRequest, "user_email is required")
		return
	}
	if !m.Role.Valid() {
		writeError(w, http.StatusBadRequest, "invalid role: "+string(m.Role))
		return
	}
	m.UserEmail = strings.TrimSpace(m.UserEmail)

	existing, err := store.FindMemberByEmail(r.Context(), s.store, projectID, m.UserEmail)
	switch {
	case err == nil:
		writeError(w, http.StatusConflict, "member already exists: "+existing.UserEmail)
		return
	case !errors.Is(err, store.ErrNotFound):
		writeStoreError(w, r, err)
		return
	}

	if err := s.store.CreateMember(r.Context(), &m); err != nil {
		writeStoreError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, m)
}

func (s *Server) deleteMember(w http.ResponseWriter, r *http.Request) {
	if err := s.store.DeleteMember(r.Context(), r.PathValue("id")); err != nil {
		writeStoreError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// --- Plans ---

// generateRequest overrides the server defaults for one generation.
type generateRequest struct {
	SprintLengthWeeks int    `json:"sprint_length_weeks"`
	StartDate         string `json:"start_date"`
	VelocityPerSprint int    `json:"velocity_per_sprint"`
	Balancing         string `json:"balancing"`
	Save              bool   `json:"save"`
}

func (s *Server) resolve(req generateRequest) (models.SprintConfiguration, planner.Options, error) {
	return plans.Resolve(s.defaults.Sprint, s.defaults.Options, plans.Overrides{
		LengthWeeks: req.SprintLengthWeeks,
		StartDate:   req.StartDate,
		Velocity:    req.VelocityPerSprint,
		Balancing:   req.Balancing,
	}, s.now())
}

func (s *Server) generatePlan(w http.ResponseWriter, r *http.Request) {
	var req generateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}

	cfg, opts, err := s.resolve(req)
	if err != nil {
		writeStoreError(w, r, err)
		return
	}

	plan, err := plans.Generate(r.Context(), s.store, r.PathValue("id"), cfg, opts, req.Save)
	if err != nil {
		writeStoreError(w, r, err)
		return
	}

	status := http.StatusOK
	if req.Save {
		status = http.StatusCreated
	}
	writeJSON(w, status, plan)
}

func (s *Server) listProjectPlans(w http.ResponseWriter, r *http.Request) {
	list, err := s.store.ListPlans(r.Context(), r.PathValue("id"))
	if err != nil {
		writeStoreError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}

func (s *Server) getPlan(w http.ResponseWriter, r *http.Request) {
	plan, err := s.store.GetPlan(r.Context(), r.PathValue("id"))
	if err != nil {
		writeStoreError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, plan)
}

func (s *Server) deletePlan(w http.ResponseWriter, r *http.Request) {
	if err := s.store.DeletePlan(r.Context(), r.PathValue("id")); err != nil {
		writeStoreError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) planHealth(w http.ResponseWriter, r *http.Request) {
	plan, err := s.store.GetPlan(r.Context(), r.PathValue("id"))
	if err != nil {
		writeStoreError(w, r, err)
		return
	}
	roster, err := plans.Roster(r.Context(), s.store, plan.ProjectID)
	if err != nil {
		writeStoreError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, s.scorer.Score(plan.Sprints, plan.Config, roster))
}

// previewResponse is a stateless generation result.
type previewResponse struct {
	Config  models.SprintConfiguration `json:"config"`
	Sprints []models.GeneratedSprint   `json:"sprints"`
	Health  *health.PlanScore          `json:"health"`
}

// preview generates from a backlog document in the request body. The body
// uses the backlog file layout and may be YAML or JSON.
func (s *Server) preview(w http.ResponseWriter, r *http.Request) {
	data, err := io.ReadAll(r.Body)
	if err != nil {
		writeError(w, http.StatusBadRequest, "read body: "+err.Error())
		return
	}
	doc, err := backlog.Parse(data)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	defaults, opts, err := s.resolve(generateRequest{Balancing: r.URL.Query().Get("balancing")})
	if err != nil {
		writeStoreError(w, r, err)
		return
	}
	cfg, err := doc.Config(defaults)
	if err != nil {
		writeStoreError(w, r, err)
		return
	}

	roster := doc.Roster()
	sprints, err := planner.New(opts).Generate(doc.Backlog(), roster, cfg)
	if err != nil {
		writeStoreError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, previewResponse{
		Config:  cfg,
		Sprints: sprints,
		Health:  s.scorer.Score(sprints, cfg, roster),
	})
}
