package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ericfisherdev/reviewgate/internal/domain/model"
)

var historyCmd = &cobra.Command{
	Use:       "history <approved|rejected|outdated>",
	Short:     "List decided pending approvals, newest first",
	Args:      cobra.ExactArgs(1),
	ValidArgs: []string{"approved", "rejected", "outdated"},
	RunE: func(cmd *cobra.Command, args []string) error {
		status, ok := model.ParseHistoryStatus(args[0])
		if !ok {
			return fmt.Errorf("invalid status %q: want approved, rejected or outdated", args[0])
		}
		number, _ := cmd.Flags().GetInt("page")
		perPage, _ := cmd.Flags().GetInt("per-page")
		page := model.Page{Number: number, PerPage: perPage}.Normalize()

		a, err := openApp(cmd.Context(), false)
		if err != nil {
			return err
		}
		defer a.Close()

		rows, total, err := a.machine.History(cmd.Context(), status, page)
		if err != nil {
			return err
		}
		return ui.HistoryTable(rows, total, page)
	},
}

var reviewsCmd = &cobra.Command{
	Use:   "reviews [owner/repo]",
	Short: "List completed reviews, optionally for one repository",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		limit, _ := cmd.Flags().GetInt("limit")
		if len(args) == 1 && !validRepoName(args[0]) {
			return fmt.Errorf("invalid repository %q: want owner/repo", args[0])
		}

		a, err := openApp(cmd.Context(), false)
		if err != nil {
			return err
		}
		defer a.Close()

		var reviews []model.CompletedReview
		if len(args) == 1 {
			reviews, err = a.machine.RepoHistory(cmd.Context(), args[0], limit)
		} else {
			reviews, err = a.machine.RecentReviews(cmd.Context(), limit)
		}
		if err != nil {
			return err
		}
		return ui.ReviewTable(reviews)
	},
}

func init() {
	historyCmd.Flags().Int("page", 1, "Page number, starting at 1")
	historyCmd.Flags().Int("per-page", model.DefaultPerPage, "Rows per page")
	reviewsCmd.Flags().Int("limit", 20, "Maximum number of reviews")

	rootCmd.AddCommand(historyCmd, reviewsCmd)
}
