package planner

import "github.com/joescharf/sprintplan/internal/models"

// synthesize expands a feature into its design, implement and test tasks.
func (p *Planner) synthesize(f models.Feature, balancer *Balancer) []models.Task {
	implPoints := EffortPoints(f.Complexity) - 5
	if implPoints < p.opts.MinImplementPoints {
		implPoints = p.opts.MinImplementPoints
	}

	return []models.Task{
		{
			Kind:           models.TaskKindDesign,
			Title:          "Design " + f.Title,
			Description:    "Create designs and specifications for " + f.Title,
			Priority:       models.PriorityHigh,
			StoryPoints:    3,
			EstimatedHours: 8,
			AssigneeID:     balancer.Assign(models.RoleDesigner),
			FeatureID:      f.ID,
		},
		{
			Kind:           models.TaskKindImplement,
			Title:          "Implement " + f.Title,
			Description:    "Develop and implement " + f.Title,
			Priority:       f.Priority,
			StoryPoints:    implPoints,
			EstimatedHours: implPoints * 2,
			AssigneeID:     balancer.Assign(models.RoleDeveloper),
			FeatureID:      f.ID,
		},
		{
			Kind:           models.TaskKindTest,
			Title:          "Test " + f.Title,
			Description:    "Test and validate " + f.Title,
			Priority:       models.PriorityMedium,
			StoryPoints:    2,
			EstimatedHours: 4,
			AssigneeID:     balancer.Assign(models.RoleTester),
			FeatureID:      f.ID,
		},
	}
}
