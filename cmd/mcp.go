package cmd

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/joescharf/sprintplan/internal/mcp"
)

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Start MCP stdio server for Claude Code integration",
	Long: `Start an MCP (Model Context Protocol) server on stdio.

This lets an assistant browse backlogs, edit features, and generate sprint
plans. Configure in Claude Code with:

  {
    "mcpServers": {
      "sprintplan": { "command": "sprintplan", "args": ["mcp"] }
    }
  }

Available tools: sp_list_projects, sp_list_features, sp_create_feature,
sp_update_feature, sp_list_members, sp_generate_plan, sp_plan_health`,
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := getStore()
		if err != nil {
			return err
		}
		opts, err := plannerOptions()
		if err != nil {
			return err
		}

		ctx := cmd.Context()
		if ctx == nil {
			ctx = context.Background()
		}
		return mcp.NewServer(s, sprintDefaults(), opts).ServeStdio(ctx)
	},
}

func init() {
	rootCmd.AddCommand(mcpCmd)
}
