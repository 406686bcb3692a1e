package store

import (
	"context"
	"database/sql"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"math/rand"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/joescharf/sprintplan/internal/models"

	_ "modernc.org/sqlite"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// SQLiteStore implements Store using modernc.org/sqlite (pure Go, no CGO).
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens (or creates) a SQLite database at the given path.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	// SQLite allows one writer; a single connection keeps API requests from
	// tripping over "database is locked".
	db.SetMaxOpenConns(1)

	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA foreign_keys=ON",
	} {
		if _, err := db.Exec(pragma); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("%s: %w", pragma, err)
		}
	}

	return &SQLiteStore{db: db}, nil
}

// newULID generates a new ULID string.
func newULID() string {
	entropy := rand.New(rand.NewSource(time.Now().UnixNano()))
	return ulid.MustNew(ulid.Timestamp(time.Now()), ulid.Monotonic(entropy, 0)).String()
}

func notFound(kind, key string) error {
	return fmt.Errorf("%s %s: %w", kind, key, ErrNotFound)
}

// Migrate runs all embedded SQL migration files in order.
func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `CREATE TABLE IF NOT EXISTS schema_migrations (
		filename TEXT PRIMARY KEY,
		applied_at DATETIME NOT NULL DEFAULT (datetime('now'))
	)`)
	if err != nil {
		return fmt.Errorf("create migrations table: %w", err)
	}

	entries, err := migrationsFS.ReadDir("migrations")
	if err != nil {
		return fmt.Errorf("read migrations dir: %w", err)
	}
	sort.Slice(entries, func(i, j int) bool {
		return entries[i].Name() < entries[j].Name()
	})

	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		name := entry.Name()

		var count int
		err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM schema_migrations WHERE filename = ?", name).Scan(&count)
		if err != nil {
			return fmt.Errorf("check migration %s: %w", name, err)
		}
		if count > 0 {
			continue
		}

		data, err := migrationsFS.ReadFile("migrations/" + name)
		if err != nil {
			return fmt.Errorf("read migration %s: %w", name, err)
		}
		if _, err := s.db.ExecContext(ctx, string(data)); err != nil {
			return fmt.Errorf("apply migration %s: %w", name, err)
		}
		if _, err := s.db.ExecContext(ctx, "INSERT INTO schema_migrations (filename) VALUES (?)", name); err != nil {
			return fmt.Errorf("record migration %s: %w", name, err)
		}
	}

	return nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// rowScanner is satisfied by both *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

// execOne runs a write that must touch exactly one row.
func (s *SQLiteStore) execOne(ctx context.Context, kind, id, query string, args ...any) error {
	result, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return err
	}
	n, _ := result.RowsAffected()
	if n == 0 {
		return notFound(kind, id)
	}
	return nil
}

// --- Projects ---

const projectColumns = `id, name, description, created_at, updated_at`

func scanProject(row rowScanner) (*models.Project, error) {
	p := &models.Project{}
	if err := row.Scan(&p.ID, &p.Name, &p.Description, &p.CreatedAt, &p.UpdatedAt); err != nil {
		return nil, err
	}
	return p, nil
}

func (s *SQLiteStore) CreateProject(ctx context.Context, p *models.Project) error {
	if p.ID == "" {
		p.ID = newULID()
	}
	now := time.Now().UTC()
	p.CreatedAt = now
	p.UpdatedAt = now

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO projects (`+projectColumns+`) VALUES (?, ?, ?, ?, ?)`,
		p.ID, p.Name, p.Description, p.CreatedAt, p.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("create project: %w", err)
	}
	return nil
}

func (s *SQLiteStore) GetProject(ctx context.Context, id string) (*models.Project, error) {
	p, err := scanProject(s.db.QueryRowContext(ctx, `SELECT `+projectColumns+` FROM projects WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, notFound("project", id)
	}
	if err != nil {
		return nil, fmt.Errorf("get project: %w", err)
	}
	return p, nil
}

func (s *SQLiteStore) GetProjectByName(ctx context.Context, name string) (*models.Project, error) {
	p, err := scanProject(s.db.QueryRowContext(ctx, `SELECT `+projectColumns+` FROM projects WHERE name = ?`, name))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, notFound("project", name)
	}
	if err != nil {
		return nil, fmt.Errorf("get project by name: %w", err)
	}
	return p, nil
}

func (s *SQLiteStore) ListProjects(ctx context.Context) ([]*models.Project, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+projectColumns+` FROM projects ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("list projects: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var projects []*models.Project
	for rows.Next() {
		p, err := scanProject(rows)
		if err != nil {
			return nil, fmt.Errorf("scan project: %w", err)
		}
		projects = append(projects, p)
	}
	return projects, rows.Err()
}

func (s *SQLiteStore) UpdateProject(ctx context.Context, p *models.Project) error {
	p.UpdatedAt = time.Now().UTC()
	err := s.execOne(ctx, "project", p.ID,
		`UPDATE projects SET name=?, description=?, updated_at=? WHERE id=?`,
		p.Name, p.Description, p.UpdatedAt, p.ID,
	)
	if err != nil {
		return fmt.Errorf("update project: %w", err)
	}
	return nil
}

func (s *SQLiteStore) DeleteProject(ctx context.Context, id string) error {
	if err := s.execOne(ctx, "project", id, `DELETE FROM projects WHERE id = ?`, id); err != nil {
		return fmt.Errorf("delete project: %w", err)
	}
	return nil
}

// --- Features ---

const featureColumns = `id, project_id, title, description, status, priority, complexity, created_at, updated_at`

func scanFeature(row rowScanner) (*models.Feature, error) {
	f := &models.Feature{}
	var status, priority, complexity string
	if err := row.Scan(&f.ID, &f.ProjectID, &f.Title, &f.Description, &status, &priority, &complexity, &f.CreatedAt, &f.UpdatedAt); err != nil {
		return nil, err
	}
	f.Status = models.FeatureStatus(status)
	f.Priority = models.Priority(priority)
	f.Complexity = models.Complexity(complexity)
	return f, nil
}

func (s *SQLiteStore) CreateFeature(ctx context.Context, f *models.Feature) error {
	if f.ID == "" {
		f.ID = newULID()
	}
	if f.Status == "" {
		f.Status = models.FeatureStatusDraft
	}
	now := time.Now().UTC()
	f.CreatedAt = now
	f.UpdatedAt = now

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO features (`+featureColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		f.ID, f.ProjectID, f.Title, f.Description, string(f.Status), string(f.Priority), string(f.Complexity), f.CreatedAt, f.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("create feature: %w", err)
	}
	return nil
}

func (s *SQLiteStore) GetFeature(ctx context.Context, id string) (*models.Feature, error) {
	f, err := scanFeature(s.db.QueryRowContext(ctx, `SELECT `+featureColumns+` FROM features WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, notFound("feature", id)
	}
	if err != nil {
		return nil, fmt.Errorf("get feature: %w", err)
	}
	return f, nil
}

// ListFeatures returns features in creation order, which the planner uses
// to break priority ties.
func (s *SQLiteStore) ListFeatures(ctx context.Context, filter FeatureListFilter) ([]*models.Feature, error) {
	query := `SELECT ` + featureColumns + ` FROM features`
	var conditions []string
	var args []any

	if filter.ProjectID != "" {
		conditions = append(conditions, "project_id = ?")
		args = append(args, filter.ProjectID)
	}
	if filter.Status != "" {
		conditions = append(conditions, "status = ?")
		args = append(args, string(filter.Status))
	}
	if filter.Priority != "" {
		conditions = append(conditions, "priority = ?")
		args = append(args, string(filter.Priority))
	}

	if len(conditions) > 0 {
		query += " WHERE " + strings.Join(conditions, " AND ")
	}
	query += " ORDER BY rowid"

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list features: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var features []*models.Feature
	for rows.Next() {
		f, err := scanFeature(rows)
		if err != nil {
			return nil, fmt.Errorf("scan feature: %w", err)
		}
		features = append(features, f)
	}
	return features, rows.Err()
}

func (s *SQLiteStore) UpdateFeature(ctx context.Context, f *models.Feature) error {
	f.UpdatedAt = time.Now().UTC()
	err := s.execOne(ctx, "feature", f.ID,
		`UPDATE features SET title=?, description=?, status=?, priority=?, complexity=?, updated_at=? WHERE id=?`,
		f.Title, f.Description, string(f.Status), string(f.Priority), string(f.Complexity), f.UpdatedAt, f.ID,
	)
	if err != nil {
		return fmt.Errorf("update feature: %w", err)
	}
	return nil
}

func (s *SQLiteStore) DeleteFeature(ctx context.Context, id string) error {
	if err := s.execOne(ctx, "feature", id, `DELETE FROM features WHERE id = ?`, id); err != nil {
		return fmt.Errorf("delete feature: %w", err)
	}
	return nil
}

func (s *SQLiteStore) BulkUpdateFeatureStatus(ctx context.Context, ids []string, status models.FeatureStatus) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	placeholders := make([]string, len(ids))
	args := make([]any, 0, len(ids)+2)
	args = append(args, string(status), time.Now().UTC())
	for i, id := range ids {
		placeholders[i] = "?"
		args = append(args, id)
	}

	query := fmt.Sprintf(
		"UPDATE features SET status=?, updated_at=? WHERE id IN (%s)",
		strings.Join(placeholders, ","),
	)
	result, err := tx.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("bulk update feature status: %w", err)
	}
	n, _ := result.RowsAffected()
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit tx: %w", err)
	}
	return n, nil
}

// --- Team members ---

const memberColumns = `id, project_id, user_email, full_name, role, created_at`

func scanMember(row rowScanner) (*models.TeamMember, error) {
	m := &models.TeamMember{}
	var role string
	if err := row.Scan(&m.ID, &m.ProjectID, &m.UserEmail, &m.FullName, &role, &m.CreatedAt); err != nil {
		return nil, err
	}
	m.Role = models.Role(role)
	return m, nil
}

func (s *SQLiteStore) CreateMember(ctx context.Context, m *models.TeamMember) error {
	if m.ID == "" {
		m.ID = newULID()
	}
	m.CreatedAt = time.Now().UTC()

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO team_members (`+memberColumns+`) VALUES (?, ?, ?, ?, ?, ?)`,
		m.ID, m.ProjectID, m.UserEmail, m.FullName, string(m.Role), m.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("create member: %w", err)
	}
	return nil
}

func (s *SQLiteStore) GetMember(ctx context.Context, id string) (*models.TeamMember, error) {
	m, err := scanMember(s.db.QueryRowContext(ctx, `SELECT `+memberColumns+` FROM team_members WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, notFound("member", id)
	}
	if err != nil {
		return nil, fmt.Errorf("get member: %w", err)
	}
	return m, nil
}

// ListMembers returns a project's roster in the order members were added.
func (s *SQLiteStore) ListMembers(ctx context.Context, projectID string) ([]*models.TeamMember, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+memberColumns+` FROM team_members WHERE project_id = ? ORDER BY rowid`, projectID)
	if err != nil {
		return nil, fmt.Errorf("list members: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var members []*models.TeamMember
	for rows.Next() {
		m, err := scanMember(rows)
		if err != nil {
			return nil, fmt.Errorf("scan member: %w", err)
		}
		members = append(members, m)
	}
	return members, rows.Err()
}

func (s *SQLiteStore) DeleteMember(ctx context.Context, id string) error {
	if err := s.execOne(ctx, "member", id, `DELETE FROM team_members WHERE id = ?`, id); err != nil {
		return fmt.Errorf("delete member: %w", err)
	}
	return nil
}

// --- Sprint plans ---

const planColumns = `id, project_id, sprint_length_weeks, start_date, velocity_per_sprint, balancing, sprints_json, created_at`

const dateLayout = "2006-01-02"

func scanPlan(row rowScanner) (*models.SprintPlan, error) {
	p := &models.SprintPlan{}
	var startDate, sprintsJSON string
	if err := row.Scan(&p.ID, &p.ProjectID, &p.Config.SprintLengthWeeks, &startDate, &p.Config.VelocityPerSprint,
		&p.Balancing, &sprintsJSON, &p.CreatedAt); err != nil {
		return nil, err
	}

	start, err := time.Parse(dateLayout, startDate)
	if err != nil {
		return nil, fmt.Errorf("parse start date %q: %w", startDate, err)
	}
	p.Config.StartDate = start

	if err := json.Unmarshal([]byte(sprintsJSON), &p.Sprints); err != nil {
		return nil, fmt.Errorf("decode sprints: %w", err)
	}
	return p, nil
}

func (s *SQLiteStore) CreatePlan(ctx context.Context, plan *models.SprintPlan) error {
	if plan.ID == "" {
		plan.ID = newULID()
	}
	plan.CreatedAt = time.Now().UTC()
	if plan.Sprints == nil {
		plan.Sprints = []models.GeneratedSprint{}
	}

	sprintsJSON, err := json.Marshal(plan.Sprints)
	if err != nil {
		return fmt.Errorf("encode sprints: %w", err)
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO sprint_plans (`+planColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		plan.ID, plan.ProjectID, plan.Config.SprintLengthWeeks, plan.Config.StartDate.Format(dateLayout),
		plan.Config.VelocityPerSprint, plan.Balancing, string(sprintsJSON), plan.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("create plan: %w", err)
	}
	return nil
}

func (s *SQLiteStore) GetPlan(ctx context.Context, id string) (*models.SprintPlan, error) {
	p, err := scanPlan(s.db.QueryRowContext(ctx, `SELECT `+planColumns+` FROM sprint_plans WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, notFound("plan", id)
	}
	if err != nil {
		return nil, fmt.Errorf("get plan: %w", err)
	}
	return p, nil
}

// ListPlans returns a project's plans, newest first.
func (s *SQLiteStore) ListPlans(ctx context.Context, projectID string) ([]*models.SprintPlan, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+planColumns+` FROM sprint_plans WHERE project_id = ? ORDER BY rowid DESC`, projectID)
	if err != nil {
		return nil, fmt.Errorf("list plans: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var plans []*models.SprintPlan
	for rows.Next() {
		p, err := scanPlan(rows)
		if err != nil {
			return nil, fmt.Errorf("scan plan: %w", err)
		}
		plans = append(plans, p)
	}
	return plans, rows.Err()
}

func (s *SQLiteStore) DeletePlan(ctx context.Context, id string) error {
	if err := s.execOne(ctx, "plan", id, `DELETE FROM sprint_plans WHERE id = ?`, id); err != nil {
		return fmt.Errorf("delete plan: %w", err)
	}
	return nil
}
