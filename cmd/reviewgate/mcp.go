package main

import (
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/ericfisherdev/reviewgate/internal/adapter/driving/mcp"
)

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Start an MCP stdio server over the approval queue",
	Long: `Start an MCP (Model Context Protocol) server on stdio so an assistant
can inspect and decide pending approvals. Configure it with:

  {
    "mcpServers": {
      "reviewgate": { "command": "reviewgate", "args": ["mcp"] }
    }
  }

Available tools: list_pending, get_pending, edit_pending, approve_pending,
reject_pending, list_escalations, clear_escalation, review_stats`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		a, err := openApp(ctx, false)
		if err != nil {
			return err
		}
		defer a.Close()

		slog.Info("mcp server starting", "version", version, "db_path", cfg.DBPath)
		return mcp.NewServer(a.machine, version).ServeStdio(ctx)
	},
}

func init() {
	rootCmd.AddCommand(mcpCmd)
}
