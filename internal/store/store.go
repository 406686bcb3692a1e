package store

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/joescharf/sprintplan/internal/models"
)

// ErrNotFound is wrapped by every lookup that matches no row.
var ErrNotFound = errors.New("not found")

// FeatureListFilter specifies filters for listing features.
type FeatureListFilter struct {
	ProjectID string
	Status    models.FeatureStatus
	Priority  models.Priority
}

// Store defines the persistence interface for sprintplan.
type Store interface {
	// Projects
	CreateProject(ctx context.Context, p *models.Project) error
	GetProject(ctx context.Context, id string) (*models.Project, error)
	GetProjectByName(ctx context.Context, name string) (*models.Project, error)
	ListProjects(ctx context.Context) ([]*models.Project, error)
	UpdateProject(ctx context.Context, p *models.Project) error
	DeleteProject(ctx context.Context, id string) error

	// Features, listed in creation order
	CreateFeature(ctx context.Context, f *models.Feature) error
	GetFeature(ctx context.Context, id string) (*models.Feature, error)
	ListFeatures(ctx context.Context, filter FeatureListFilter) ([]*models.Feature, error)
	UpdateFeature(ctx context.Context, f *models.Feature) error
	DeleteFeature(ctx context.Context, id string) error
	BulkUpdateFeatureStatus(ctx context.Context, ids []string, status models.FeatureStatus) (int64, error)

	// Team members, listed in roster order
	CreateMember(ctx context.Context, m *models.TeamMember) error
	GetMember(ctx context.Context, id string) (*models.TeamMember, error)
	ListMembers(ctx context.Context, projectID string) ([]*models.TeamMember, error)
	DeleteMember(ctx context.Context, id string) error

	// Sprint plans
	CreatePlan(ctx context.Context, plan *models.SprintPlan) error
	GetPlan(ctx context.Context, id string) (*models.SprintPlan, error)
	ListPlans(ctx context.Context, projectID string) ([]*models.SprintPlan, error)
	DeletePlan(ctx context.Context, id string) error

	// Lifecycle
	Migrate(ctx context.Context) error
	Close() error
}

// FindMemberByEmail returns the project's roster entry whose email matches,
// ignoring case. It wraps ErrNotFound when there is none.
func FindMemberByEmail(ctx context.Context, s Store, projectID, email string) (*models.TeamMember, error) {
	members, err := s.ListMembers(ctx, projectID)
	if err != nil {
		return nil, err
	}
	for _, m := range members {
		if strings.EqualFold(m.UserEmail, email) {
			return m, nil
		}
	}
	return nil, fmt.Errorf("member %s: %w", email, ErrNotFound)
}
