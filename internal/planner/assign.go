package planner

import "github.com/joescharf/sprintplan/internal/models"

// EligibleRoles lists the member roles that may take a task needing role.
func EligibleRoles(role models.Role) []models.Role {
	switch role {
	case models.RoleDesigner:
		return []models.Role{models.RoleDesigner, models.RoleLead}
	case models.RoleDeveloper:
		return []models.Role{models.RoleDeveloper, models.RoleLead}
	case models.RoleTester:
		return []models.Role{models.RoleTester, models.RoleDeveloper}
	default:
		return nil
	}
}

func eligible(member models.Role, requested models.Role) bool {
	for _, r := range EligibleRoles(requested) {
		if r == member {
			return true
		}
	}
	return false
}

// Balancer picks task owners for a single generation run.
type Balancer struct {
	roster []models.TeamMember
	mode   BalanceMode
	counts map[string]int
}

// NewBalancer creates a Balancer over roster. Every member starts at zero.
func NewBalancer(roster []models.TeamMember, mode BalanceMode) *Balancer {
	counts := make(map[string]int, len(roster))
	for _, m := range roster {
		counts[m.UserEmail] = 0
	}
	return &Balancer{roster: roster, mode: mode, counts: counts}
}

// Assign returns the email of the member who should own a task needing
// role, or nil when the roster is empty. The least-loaded eligible member
// wins, ties going to roster order. With no eligible member the first
// roster member is used.
func (b *Balancer) Assign(role models.Role) *string {
	if len(b.roster) == 0 {
		return nil
	}

	counts := b.counts
	if b.mode == BalancePerLookup {
		counts = make(map[string]int, len(b.roster))
	}

	pick := -1
	for i, m := range b.roster {
		if !eligible(m.Role, role) {
			continue
		}
		if pick < 0 || counts[m.UserEmail] < counts[b.roster[pick].UserEmail] {
			pick = i
		}
	}
	if pick < 0 {
		pick = 0
	}

	email := b.roster[pick].UserEmail
	counts[email]++
	return &email
}
