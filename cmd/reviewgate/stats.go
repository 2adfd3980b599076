package main

import (
	"github.com/spf13/cobra"
)

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show review and queue counts",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		a, err := openApp(cmd.Context(), false)
		if err != nil {
			return err
		}
		defer a.Close()

		s, err := a.machine.Stats(cmd.Context())
		if err != nil {
			return err
		}
		return ui.Stats(s)
	},
}

func init() {
	rootCmd.AddCommand(statsCmd)
}
