package main

import (
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

var pollCmd = &cobra.Command{
	Use:   "poll",
	Short: "Poll GitHub and act on review requests",
	Long: `Run the discovery loop without the HTTP server. With --once a single
cycle runs and its summary is printed.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		once, _ := cmd.Flags().GetBool("once")

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		a, err := openApp(ctx, true)
		if err != nil {
			return err
		}
		defer a.Close()

		svc, err := a.newPollService()
		if err != nil {
			return err
		}

		if once {
			if cfg.DryRun {
				ui.DryRunMsg("verdicts are logged, nothing is posted or queued")
			}
			summary, err := svc.RunOnce(ctx)
			if err != nil {
				return err
			}
			ui.CycleSummary(summary)
			return nil
		}

		svc.Start(ctx)
		slog.Info("shutdown complete")
		return nil
	},
}

func init() {
	pollCmd.Flags().Bool("once", false, "Run a single cycle and exit")
	rootCmd.AddCommand(pollCmd)
}
