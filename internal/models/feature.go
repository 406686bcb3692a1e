package models

import "time"

// FeatureStatus represents the review state of a backlog feature.
type FeatureStatus string

const (
	FeatureStatusDraft    FeatureStatus = "draft"
	FeatureStatusApproved FeatureStatus = "approved"
	FeatureStatusRejected FeatureStatus = "rejected"
)

// Priority represents the urgency of a feature or task.
type Priority string

const (
	PriorityCritical Priority = "critical"
	PriorityHigh     Priority = "high"
	PriorityMedium   Priority = "medium"
	PriorityLow      Priority = "low"
)

// Complexity is the coarse size estimate of a feature.
type Complexity string

const (
	ComplexitySimple   Complexity = "simple"
	ComplexityModerate Complexity = "moderate"
	ComplexityComplex  Complexity = "complex"
)

// Feature is a backlog item that may be scheduled into a sprint once approved.
type Feature struct {
	ID          string        `json:"id"`
	ProjectID   string        `json:"project_id"`
	Title       string        `json:"title"`
	Description string        `json:"description"`
	Status      FeatureStatus `json:"status"`
	Priority    Priority      `json:"priority"`
	Complexity  Complexity    `json:"complexity"`
	CreatedAt   time.Time     `json:"created_at"`
	UpdatedAt   time.Time     `json:"updated_at"`
}

// Valid reports whether s is a known feature status.
func (s FeatureStatus) Valid() bool {
	switch s {
	case FeatureStatusDraft, FeatureStatusApproved, FeatureStatusRejected:
		return true
	}
	return false
}

// Valid reports whether p is a known priority.
func (p Priority) Valid() bool {
	switch p {
	case PriorityCritical, PriorityHigh, PriorityMedium, PriorityLow:
		return true
	}
	return false
}

// Valid reports whether c is a known complexity.
func (c Complexity) Valid() bool {
	switch c {
	case ComplexitySimple, ComplexityModerate, ComplexityComplex:
		return true
	}
	return false
}
