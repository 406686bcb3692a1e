package models

import "time"

// Role is a team member's discipline.
type Role string

const (
	RoleDesigner  Role = "designer"
	RoleDeveloper Role = "developer"
	RoleTester    Role = "tester"
	RoleLead      Role = "lead"
)

// TeamMember is a person on a project's roster. UserEmail is the assignee key.
type TeamMember struct {
	ID        string    `json:"id"`
	ProjectID string    `json:"project_id"`
	UserEmail string    `json:"user_email"`
	FullName  string    `json:"full_name"`
	Role      Role      `json:"role"`
	CreatedAt time.Time `json:"created_at"`
}

// Valid reports whether r is a known role.
func (r Role) Valid() bool {
	switch r {
	case RoleDesigner, RoleDeveloper, RoleTester, RoleLead:
		return true
	}
	return false
}
