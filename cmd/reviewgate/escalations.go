package main

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/ericfisherdev/reviewgate/internal/domain/model"
	"github.com/ericfisherdev/reviewgate/internal/domain/port/driven"
)

var escalationsCmd = &cobra.Command{
	Use:     "escalations",
	Aliases: []string{"esc"},
	Short:   "Manage pull requests handed back to you",
}

var escalationsListCmd = &cobra.Command{
	Use:     "list",
	Aliases: []string{"ls"},
	Short:   "List escalated pull requests",
	Args:    cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		a, err := openApp(cmd.Context(), false)
		if err != nil {
			return err
		}
		defer a.Close()

		markers, err := a.machine.ListEscalations(cmd.Context())
		if err != nil {
			return err
		}
		return ui.EscalationTable(markers)
	},
}

var escalationsClearCmd = &cobra.Command{
	Use:   "clear <owner/repo#number>",
	Short: "Return an escalated pull request to automated review",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		repo, number, err := parsePRRef(args[0])
		if err != nil {
			return err
		}
		key := model.PRKey(repo, number)
		if cfg.DryRun {
			ui.DryRunMsg("would clear the escalation on %s", key)
			return nil
		}
		a, err := openApp(cmd.Context(), false)
		if err != nil {
			return err
		}
		defer a.Close()

		if err := a.machine.ClearEscalation(cmd.Context(), repo, number); err != nil {
			if errors.Is(err, driven.ErrNotFound) {
				return fmt.Errorf("%s is not escalated", key)
			}
			return err
		}
		ui.Success("Cleared escalation on %s", key)
		return nil
	},
}

func init() {
	escalationsCmd.AddCommand(escalationsListCmd, escalationsClearCmd)
	rootCmd.AddCommand(escalationsCmd)
}

// parsePRRef splits "owner/repo#number".
func parsePRRef(ref string) (string, int, error) {
	repo, num, ok := strings.Cut(strings.TrimSpace(ref), "#")
	if !ok {
		return "", 0, fmt.Errorf("invalid pull request %q: want owner/repo#number", ref)
	}
	if !validRepoName(repo) {
		return "", 0, fmt.Errorf("invalid repository %q: want owner/repo", repo)
	}
	n, err := strconv.Atoi(num)
	if err != nil || n < 1 {
		return "", 0, fmt.Errorf("invalid pull request number %q", num)
	}
	return repo, n, nil
}

func validRepoName(name string) bool {
	owner, repo, ok := strings.Cut(name, "/")
	return ok && owner != "" && repo != "" && !strings.ContainsAny(repo, "/ ")
}
