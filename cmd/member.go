package cmd

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/joescharf/sprintplan/internal/models"
	"github.com/joescharf/sprintplan/internal/output"
	"github.com/joescharf/sprintplan/internal/store"
)

var (
	memberEmail string
	memberName  string
	memberRole  string
)

var memberCmd = &cobra.Command{
	Use:     "member",
	Aliases: []string{"team"},
	Short:   "Manage a project's team roster",
	Long: `Add, list, and remove team members. Roster order matters: when two
members are equally loaded, the earlier one gets the next task.`,
}

var memberAddCmd = &cobra.Command{
	Use:   "add [project]",
	Short: "Add a team member",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return memberAddRun(optionalArg(args))
	},
}

var memberListCmd = &cobra.Command{
	Use:     "list [project]",
	Aliases: []string{"ls"},
	Short:   "List team members in roster order",
	Args:    cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return memberListRun(optionalArg(args))
	},
}

var memberRemoveCmd = &cobra.Command{
	Use:     "remove <email> [project]",
	Aliases: []string{"rm"},
	Short:   "Remove a team member",
	Args:    cobra.RangeArgs(1, 2),
	RunE: func(cmd *cobra.Command, args []string) error {
		return memberRemoveRun(args[0], optionalArg(args[1:]))
	},
}

func init() {
	memberAddCmd.Flags().StringVar(&memberEmail, "email", "", "Member email, used as the assignee key (required)")
	memberAddCmd.Flags().StringVar(&memberName, "name", "", "Full name")
	memberAddCmd.Flags().StringVar(&memberRole, "role", "developer", "Role: designer, developer, tester, lead")
	_ = memberAddCmd.MarkFlagRequired("email")

	memberCmd.AddCommand(memberAddCmd)
	memberCmd.AddCommand(memberListCmd)
	memberCmd.AddCommand(memberRemoveCmd)
	rootCmd.AddCommand(memberCmd)
}

func memberAddRun(projectRef string) error {
	email := strings.TrimSpace(memberEmail)
	if email == "" {
		return fmt.Errorf("--email is required")
	}
	role := models.Role(strings.ToLower(orDefault(memberRole, string(models.RoleDeveloper))))
	if !role.Valid() {
		return fmt.Errorf("invalid role %q (use designer, developer, tester, or lead)", memberRole)
	}

	s, err := getStore()
	if err != nil {
		return err
	}
	ctx := context.Background()

	p, err := resolveProjectFlag(ctx, s, projectRef)
	if err != nil {
		return err
	}

	if _, err := findMember(ctx, s, p.ID, email); err == nil {
		return fmt.Errorf("member already on %s: %s", p.Name, email)
	}

	if dryRun {
		ui.DryRunMsg("Would add %s (%s) to %s", email, role, p.Name)
		return nil
	}

	m := &models.TeamMember{
		ProjectID: p.ID,
		UserEmail: email,
		FullName:  memberName,
		Role:      role,
	}
	if err := s.CreateMember(ctx, m); err != nil {
		return fmt.Errorf("add member: %w", err)
	}

	ui.Success("Added %s as %s to %s", output.Cyan(email), role, p.Name)
	return nil
}

func memberListRun(projectRef string) error {
	s, err := getStore()
	if err != nil {
		return err
	}
	ctx := context.Background()

	p, err := resolveProjectFlag(ctx, s, projectRef)
	if err != nil {
		return err
	}

	members, err := s.ListMembers(ctx, p.ID)
	if err != nil {
		return err
	}
	if len(members) == 0 {
		ui.Info("No team members in %s. Use 'sprintplan member add --email <email> --role <role>'.", p.Name)
		return nil
	}

	table := ui.Table([]string{"#", "Email", "Name", "Role"})
	for i, m := range members {
		_ = table.Append([]string{
			fmt.Sprintf("%d", i+1),
			output.Cyan(m.UserEmail),
			m.FullName,
			string(m.Role),
		})
	}
	_ = table.Render()
	return nil
}

func memberRemoveRun(email, projectRef string) error {
	s, err := getStore()
	if err != nil {
		return err
	}
	ctx := context.Background()

	p, err := resolveProjectFlag(ctx, s, projectRef)
	if err != nil {
		return err
	}

	m, err := findMember(ctx, s, p.ID, email)
	if err != nil {
		return err
	}

	if dryRun {
		ui.DryRunMsg("Would remove %s from %s", m.UserEmail, p.Name)
		return nil
	}

	if err := s.DeleteMember(ctx, m.ID); err != nil {
		return fmt.Errorf("remove member: %w", err)
	}
	ui.Success("Removed %s from %s", output.Cyan(m.UserEmail), p.Name)
	return nil
}

// findMember looks up a roster entry by email, case-insensitively.
func findMember(ctx context.Context, s store.Store, projectID, email string) (*models.TeamMember, error) {
	m, err := store.FindMemberByEmail(ctx, s, projectID, email)
	if errors.Is(err, store.ErrNotFound) {
		return nil, fmt.Errorf("member not found: %s", email)
	}
	return m, err
}
