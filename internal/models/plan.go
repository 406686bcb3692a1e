package models

import "time"

// SprintConfiguration controls how a backlog is cut into sprints.
type SprintConfiguration struct {
	SprintLengthWeeks int       `json:"sprint_length_weeks"`
	StartDate         time.Time `json:"start_date"`
	VelocityPerSprint int       `json:"velocity_per_sprint"`
}

// TaskKind identifies which slot of the per-feature template a task fills.
type TaskKind string

const (
	TaskKindDesign    TaskKind = "design"
	TaskKindImplement TaskKind = "implement"
	TaskKindTest      TaskKind = "test"
)

// FeatureRef is the snapshot of a feature carried inside a generated sprint.
type FeatureRef struct {
	ID         string     `json:"id"`
	Title      string     `json:"title"`
	Priority   Priority   `json:"priority"`
	Complexity Complexity `json:"complexity"`
	Points     int        `json:"points"`
}

// Task is a generated sub-task of a feature.
type Task struct {
	Kind           TaskKind `json:"kind"`
	Title          string   `json:"title"`
	Description    string   `json:"description"`
	Priority       Priority `json:"priority"`
	StoryPoints    int      `json:"story_points"`
	EstimatedHours int      `json:"estimated_hours"`
	AssigneeID     *string  `json:"assignee_id"` // team member email, nil when unassigned
	FeatureID      string   `json:"feature_id"`
}

// GeneratedSprint is one sprint of a generated plan.
type GeneratedSprint struct {
	Number    int          `json:"number"`
	Name      string       `json:"name"`
	StartDate time.Time    `json:"start_date"`
	EndDate   time.Time    `json:"end_date"`
	Goal      string       `json:"goal"`
	Velocity  int          `json:"velocity"`
	Features  []FeatureRef `json:"features"`
	Tasks     []Task       `json:"tasks"`
}

// SprintPlan is a saved generation run for a project.
type SprintPlan struct {
	ID        string              `json:"id"`
	ProjectID string              `json:"project_id"`
	Config    SprintConfiguration `json:"config"`
	Balancing string              `json:"balancing"`
	Sprints   []GeneratedSprint   `json:"sprints"`
	CreatedAt time.Time           `json:"created_at"`
}
