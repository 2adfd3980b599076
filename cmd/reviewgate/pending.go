package main

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/ericfisherdev/reviewgate/internal/domain/model"
	"github.com/ericfisherdev/reviewgate/internal/domain/port/driven"
	"github.com/ericfisherdev/reviewgate/internal/output"
)

var pendingCmd = &cobra.Command{
	Use:     "pending",
	Aliases: []string{"p"},
	Short:   "Work through verdicts waiting for your approval",
}

var pendingListCmd = &cobra.Command{
	Use:     "list",
	Aliases: []string{"ls"},
	Short:   "List open pending approvals",
	Args:    cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		a, err := openApp(cmd.Context(), false)
		if err != nil {
			return err
		}
		defer a.Close()

		rows, err := a.machine.ListPending(cmd.Context())
		if err != nil {
			return err
		}
		return ui.PendingTable(rows)
	},
}

var pendingShowCmd = &cobra.Command{
	Use:   "show <id>",
	Short: "Show the full text a pending approval would post",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := parseID(args[0])
		if err != nil {
			return err
		}
		a, err := openApp(cmd.Context(), false)
		if err != nil {
			return err
		}
		defer a.Close()

		row, err := a.machine.GetPending(cmd.Context(), id)
		if err != nil {
			return pendingError(id, err)
		}
		printPending(row)
		return nil
	},
}

var pendingApproveCmd = &cobra.Command{
	Use:   "approve <id>",
	Short: "Post a pending verdict to GitHub",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := parseID(args[0])
		if err != nil {
			return err
		}
		if cfg.DryRun {
			ui.DryRunMsg("would approve pending approval %d", id)
			return nil
		}
		a, err := openApp(cmd.Context(), true)
		if err != nil {
			return err
		}
		defer a.Close()

		action, err := a.machine.Approve(cmd.Context(), id, model.PendingEdits{})
		if err != nil {
			return pendingError(id, err)
		}
		ui.Success("Posted %s to %s at %s", action.Kind,
			model.PRKey(action.RepoFullName, action.PRNumber), model.ShortSHA(action.HeadSHA))
		return nil
	},
}

var pendingRejectCmd = &cobra.Command{
	Use:   "reject <id>",
	Short: "Reject a pending verdict without posting anything",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := parseID(args[0])
		if err != nil {
			return err
		}
		reason, _ := cmd.Flags().GetString("reason")
		if cfg.DryRun {
			ui.DryRunMsg("would reject pending approval %d", id)
			return nil
		}
		a, err := openApp(cmd.Context(), false)
		if err != nil {
			return err
		}
		defer a.Close()

		if err := a.machine.Reject(cmd.Context(), id, strings.TrimSpace(reason)); err != nil {
			return pendingError(id, err)
		}
		ui.Success("Rejected pending approval %d", id)
		return nil
	},
}

var pendingEditCmd = &cobra.Command{
	Use:   "edit <id>",
	Short: "Replace the comment or summary of a pending verdict",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := parseID(args[0])
		if err != nil {
			return err
		}

		var edits model.PendingEdits
		if cmd.Flags().Changed("comment") {
			comment, _ := cmd.Flags().GetString("comment")
			edits.Comment = &comment
		}
		if cmd.Flags().Changed("summary") {
			summary, _ := cmd.Flags().GetString("summary")
			edits.Summary = &summary
		}
		if edits.IsZero() {
			return errors.New("nothing to edit: pass --comment or --summary")
		}

		a, err := openApp(cmd.Context(), false)
		if err != nil {
			return err
		}
		defer a.Close()

		row, err := a.machine.Edit(cmd.Context(), id, edits)
		if err != nil {
			return pendingError(id, err)
		}
		ui.Success("Updated pending approval %d", id)
		printPending(row)
		return nil
	},
}

var pendingResetCmd = &cobra.Command{
	Use:   "reset <id>",
	Short: "Discard your edits and restore the agent's proposal",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := parseID(args[0])
		if err != nil {
			return err
		}
		a, err := openApp(cmd.Context(), false)
		if err != nil {
			return err
		}
		defer a.Close()

		if _, err := a.machine.ResetEdits(cmd.Context(), id); err != nil {
			return pendingError(id, err)
		}
		ui.Success("Discarded edits on pending approval %d", id)
		return nil
	},
}

func init() {
	pendingRejectCmd.Flags().String("reason", "", "Why the verdict was rejected")
	pendingEditCmd.Flags().String("comment", "", "Replacement review comment")
	pendingEditCmd.Flags().String("summary", "", "Replacement summary")

	pendingCmd.AddCommand(pendingListCmd, pendingShowCmd, pendingApproveCmd, pendingRejectCmd, pendingEditCmd, pendingResetCmd)
	rootCmd.AddCommand(pendingCmd)
}

func parseID(raw string) (int64, error) {
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id < 1 {
		return 0, fmt.Errorf("invalid pending approval id %q", raw)
	}
	return id, nil
}

// pendingError turns state machine sentinels into messages for the terminal.
func pendingError(id int64, err error) error {
	switch {
	case errors.Is(err, driven.ErrNotFound):
		return fmt.Errorf("pending approval %d not found", id)
	case errors.Is(err, driven.ErrInvalidTransition):
		return fmt.Errorf("pending approval %d has already been decided", id)
	default:
		return err
	}
}

func printPending(p model.PendingApproval) {
	fmt.Fprintf(ui.Out, "%s %s  %s\n", output.Cyan(p.Key()), p.Title, p.URL)
	fmt.Fprintf(ui.Out, "verdict: %s  status: %s  head: %s\n",
		verdictLabel(p), output.StatusColor(p.Status), model.ShortSHA(p.HeadSHA))
	if c := p.FinalComment(); c != "" {
		fmt.Fprintf(ui.Out, "\ncomment:\n%s\n", c)
	}
	if s := p.FinalSummary(); s != "" {
		fmt.Fprintf(ui.Out, "\nsummary:\n%s\n", s)
	}
	for i, an := range p.FinalAnnotations() {
		fmt.Fprintf(ui.Out, "\n[%d] %s:%d\n%s\n", i, an.File, an.Line, an.Message)
	}
	if p.RejectionReason != "" {
		fmt.Fprintf(ui.Out, "\nrejected: %s\n", p.RejectionReason)
	}
	if p.Reason != "" {
		fmt.Fprintf(ui.Out, "\nagent reason: %s\n", p.Reason)
	}
}

func verdictLabel(p model.PendingApproval) string {
	label := output.VerdictColor(p.Verdict)
	if p.IsEdited() {
		label += " (edited)"
	}
	return label
}
