// Package backlog reads backlog files: a YAML document holding a sprint
// configuration, the feature backlog and the team roster.
//
//	sprint:
//	  length_weeks: 2
//	  start_date: 2024-01-01
//	  velocity: 20
//	features:
//	  - id: F1
//	    title: Checkout
//	    status: approved
//	    priority: critical
//	    complexity: simple
//	team:
//	  - email: dana@example.com
//	    name: Dana
//	    role: designer
package backlog

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/joescharf/sprintplan/internal/models"
	"github.com/joescharf/sprintplan/internal/planner"
)

// File is a parsed backlog file.
type File struct {
	Sprint   SprintSection  `yaml:"sprint"`
	Features []FeatureEntry `yaml:"features"`
	Team     []MemberEntry  `yaml:"team"`
}

// SprintSection holds optional sprint settings. Zero values fall back to
// the caller's defaults.
type SprintSection struct {
	LengthWeeks int    `yaml:"length_weeks"`
	StartDate   string `yaml:"start_date"`
	Velocity    int    `yaml:"velocity"`
}

// FeatureEntry is one backlog item.
type FeatureEntry struct {
	ID          string `yaml:"id"`
	Title       string `yaml:"title"`
	Description string `yaml:"description,omitempty"`
	Status      string `yaml:"status"`
	Priority    string `yaml:"priority"`
	Complexity  string `yaml:"complexity"`
}

// MemberEntry is one roster entry.
type MemberEntry struct {
	Email string `yaml:"email"`
	Name  string `yaml:"name"`
	Role  string `yaml:"role"`
}

// Load reads and parses the backlog file at path.
func Load(path string) (*File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read backlog file: %w", err)
	}
	f, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return f, nil
}

// Parse decodes a backlog document. Unknown keys are rejected, features
// without an id are numbered F1, F2, ... by position, and titles and member
// emails must be present and unique.
func Parse(data []byte) (*File, error) {
	var f File
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&f); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("parse backlog: %w", err)
	}

	seenIDs := make(map[string]bool, len(f.Features))
	for i := range f.Features {
		fe := &f.Features[i]
		if strings.TrimSpace(fe.Title) == "" {
			return nil, fmt.Errorf("feature %d: title is required", i+1)
		}
		if fe.ID == "" {
			fe.ID = fmt.Sprintf("F%d", i+1)
		}
		if seenIDs[fe.ID] {
			return nil, fmt.Errorf("feature %d: duplicate id %q", i+1, fe.ID)
		}
		seenIDs[fe.ID] = true
	}

	seenEmails := make(map[string]bool, len(f.Team))
	for i, m := range f.Team {
		if m.Email == "" {
			return nil, fmt.Errorf("team member %d: email is required", i+1)
		}
		key := strings.ToLower(m.Email)
		if seenEmails[key] {
			return nil, fmt.Errorf("team member %d: duplicate email %q", i+1, m.Email)
		}
		seenEmails[key] = true
	}

	return &f, nil
}

// Backlog returns the features in file order.
func (f *File) Backlog() []models.Feature {
	out := make([]models.Feature, len(f.Features))
	for i, fe := range f.Features {
		out[i] = models.Feature{
			ID:          fe.ID,
			Title:       fe.Title,
			Description: fe.Description,
			Status:      models.FeatureStatus(fe.Status),
			Priority:    models.Priority(fe.Priority),
			Complexity:  models.Complexity(fe.Complexity),
		}
	}
	return out
}

// Roster returns the team in file order.
func (f *File) Roster() []models.TeamMember {
	out := make([]models.TeamMember, len(f.Team))
	for i, m := range f.Team {
		out[i] = models.TeamMember{
			UserEmail: m.Email,
			FullName:  m.Name,
			Role:      models.Role(m.Role),
		}
	}
	return out
}

// Config overlays the file's sprint section on defaults and validates the result.
func (f *File) Config(defaults models.SprintConfiguration) (models.SprintConfiguration, error) {
	cfg := defaults
	if f.Sprint.LengthWeeks != 0 {
		cfg.SprintLengthWeeks = f.Sprint.LengthWeeks
	}
	if f.Sprint.Velocity != 0 {
		cfg.VelocityPerSprint = f.Sprint.Velocity
	}
	if f.Sprint.StartDate != "" {
		start, err := planner.ParseDate(f.Sprint.StartDate)
		if err != nil {
			return cfg, err
		}
		cfg.StartDate = start
	}
	if err := planner.ValidateConfig(cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// Marshal renders features and a roster as a backlog document.
func Marshal(cfg *models.SprintConfiguration, features []*models.Feature, roster []*models.TeamMember) ([]byte, error) {
	var f File
	if cfg != nil {
		f.Sprint = SprintSection{
			LengthWeeks: cfg.SprintLengthWeeks,
			Velocity:    cfg.VelocityPerSprint,
		}
		if !cfg.StartDate.IsZero() {
			f.Sprint.StartDate = cfg.StartDate.Format(planner.DateLayout)
		}
	}
	for _, fe := range features {
		f.Features = append(f.Features, FeatureEntry{
			ID:          fe.ID,
			Title:       fe.Title,
			Description: fe.Description,
			Status:      string(fe.Status),
			Priority:    string(fe.Priority),
			Complexity:  string(fe.Complexity),
		})
	}
	for _, m := range roster {
		f.Team = append(f.Team, MemberEntry{Email: m.UserEmail, Name: m.FullName, Role: string(m.Role)})
	}

	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(&f); err != nil {
		return nil, fmt.Errorf("encode backlog: %w", err)
	}
	if err := enc.Close(); err != nil {
		return nil, fmt.Errorf("encode backlog: %w", err)
	}
	return buf.Bytes(), nil
}
