// Package output renders reviewgate state for the terminal.
package output

import (
	"fmt"
	"io"
	"os"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/fatih/color"
	"github.com/olekukonko/tablewriter"
	"github.com/olekukonko/tablewriter/tw"

	"github.com/ericfisherdev/reviewgate/internal/application"
	"github.com/ericfisherdev/reviewgate/internal/domain/model"
)

// UI provides colored output and respects verbose/dry-run modes.
type UI struct {
	Verbose bool
	DryRun  bool
	Out     io.Writer
	ErrOut  io.Writer
}

// New creates a UI with default stdout/stderr writers.
func New() *UI {
	return &UI{
		Out:    os.Stdout,
		ErrOut: os.Stderr,
	}
}

var (
	infoPrefix    = color.New(color.FgHiBlue).Sprint("i")
	successPrefix = color.New(color.FgHiGreen).Sprint("✓")
	warningPrefix = color.New(color.FgHiYellow).Sprint("⚠")
	errorPrefix   = color.New(color.FgHiRed).Sprint("✗")
	verbosePrefix = color.New(color.FgHiBlue).Sprint("  →")
	cyan          = color.New(color.FgHiCyan).SprintFunc()
	green         = color.New(color.FgHiGreen).SprintFunc()
	yellow        = color.New(color.FgHiYellow).SprintFunc()
	red           = color.New(color.FgHiRed).SprintFunc()
)

// Cyan returns a cyan-colored string.
func Cyan(s string) string { return cyan(s) }

// Green returns a green-colored string.
func Green(s string) string { return green(s) }

// Yellow returns a yellow-colored string.
func Yellow(s string) string { return yellow(s) }

// Red returns a red-colored string.
func Red(s string) string { return red(s) }

// VerdictColor returns the verdict name colored by outcome.
func VerdictColor(k model.VerdictKind) string {
	s := string(k)
	switch k {
	case model.VerdictApproveWithoutComment, model.VerdictApproveWithComment:
		return green(s)
	case model.VerdictRequestChanges:
		return red(s)
	case model.VerdictRequiresHumanReview:
		return yellow(s)
	default:
		return s
	}
}

// StatusColor returns the pending status colored by state.
func StatusColor(s model.PendingStatus) string {
	switch s {
	case model.PendingStatusPending:
		return cyan(string(s))
	case model.PendingStatusApproved:
		return green(string(s))
	case model.PendingStatusRejected:
		return red(string(s))
	case model.PendingStatusOutdated:
		return yellow(string(s))
	default:
		return string(s)
	}
}

func (u *UI) Info(format string, a ...any) {
	fmt.Fprintf(u.Out, "%s %s\n", infoPrefix, fmt.Sprintf(format, a...))
}

func (u *UI) Success(format string, a ...any) {
	fmt.Fprintf(u.Out, "%s %s\n", successPrefix, fmt.Sprintf(format, a...))
}

func (u *UI) Warning(format string, a ...any) {
	fmt.Fprintf(u.ErrOut, "%s %s\n", warningPrefix, fmt.Sprintf(format, a...))
}

func (u *UI) Error(format string, a ...any) {
	fmt.Fprintf(u.ErrOut, "%s %s\n", errorPrefix, fmt.Sprintf(format, a...))
}

func (u *UI) VerboseLog(format string, a ...any) {
	if u.Verbose {
		fmt.Fprintf(u.Out, "%s %s\n", verbosePrefix, fmt.Sprintf(format, a...))
	}
}

func (u *UI) DryRunMsg(format string, a ...any) {
	if u.DryRun {
		u.Warning("[DRY-RUN] "+format, a...)
	}
}

// Table creates a new tablewriter configured with consistent styling.
func (u *UI) Table(headers []string) *tablewriter.Table {
	table := tablewriter.NewTable(u.Out,
		tablewriter.WithHeaderAlignment(tw.AlignLeft),
		tablewriter.WithRowAlignment(tw.AlignLeft),
		tablewriter.WithRendition(tw.Rendition{
			Borders: tw.BorderNone,
			Settings: tw.Settings{
				Lines:      tw.LinesNone,
				Separators: tw.SeparatorsNone,
			},
		}),
		tablewriter.WithPadding(tw.Padding{Left: "", Right: "  "}),
	)
	table.Header(headers)
	return table
}

// PendingTable lists pending approvals with the text that would be posted.
func (u *UI) PendingTable(rows []model.PendingApproval) error {
	if len(rows) == 0 {
		u.Info("No pending approvals")
		return nil
	}

	table := u.Table([]string{"ID", "PR", "Head", "Verdict", "Status", "Proposal", "Created"})
	for _, p := range rows {
		verdict := VerdictColor(p.Verdict)
		if p.IsEdited() {
			verdict += " (edited)"
		}
		proposal := p.FinalComment()
		if proposal == "" {
			proposal = p.FinalSummary()
		}
		if n := len(p.FinalAnnotations()); n > 0 {
			proposal += fmt.Sprintf(" [+%d inline]", n)
		}
		_ = table.Append([]string{
			strconv.FormatInt(p.ID, 10),
			p.Key(),
			model.ShortSHA(p.HeadSHA),
			verdict,
			StatusColor(p.Status),
			Truncate(proposal, 60),
			formatTime(p.CreatedAt),
		})
	}
	return table.Render()
}

// EscalationTable lists escalated pull requests.
func (u *UI) EscalationTable(markers []model.Escalation) error {
	if len(markers) == 0 {
		u.Info("No escalated pull requests")
		return nil
	}

	table := u.Table([]string{"PR", "Title", "Head", "Reason", "Escalated"})
	for _, e := range markers {
		_ = table.Append([]string{
			e.Key(),
			Truncate(e.Title, 40),
			model.ShortSHA(e.HeadSHA),
			Truncate(e.Reason, 60),
			formatTime(e.CreatedAt),
		})
	}
	return table.Render()
}

// HistoryTable lists one page of decided approvals.
func (u *UI) HistoryTable(rows []model.PendingApproval, total int, page model.Page) error {
	if len(rows) == 0 {
		u.Info("No matching history")
		return nil
	}

	table := u.Table([]string{"ID", "PR", "Head", "Verdict", "Status", "Decided", "Note"})
	for _, p := range rows {
		decided := ""
		if p.DecidedAt != nil {
			decided = formatTime(*p.DecidedAt)
		}
		_ = table.Append([]string{
			strconv.FormatInt(p.ID, 10),
			p.Key(),
			model.ShortSHA(p.HeadSHA),
			VerdictColor(p.Verdict),
			StatusColor(p.Status),
			decided,
			Truncate(p.RejectionReason, 40),
		})
	}
	if err := table.Render(); err != nil {
		return err
	}

	fmt.Fprintf(u.Out, "\npage %d, %d of %d total\n", page.Number, len(rows), total)
	return nil
}

// ReviewTable lists completed reviews.
func (u *UI) ReviewTable(reviews []model.CompletedReview) error {
	if len(reviews) == 0 {
		u.Info("No completed reviews")
		return nil
	}

	table := u.Table([]string{"PR", "Head", "Verdict", "Source", "Reviewed"})
	for _, r := range reviews {
		_ = table.Append([]string{
			model.PRKey(r.RepoFullName, r.PRNumber),
			model.ShortSHA(r.HeadSHA),
			VerdictColor(r.Verdict),
			string(r.Source),
			formatTime(r.ReviewedAt),
		})
	}
	return table.Render()
}

// Stats prints aggregate review counts.
func (u *UI) Stats(s model.ReviewStats) error {
	fmt.Fprintf(u.Out, "%s %d (%d in the last 7 days) across %d repositories\n\n",
		cyan("Reviews:"), s.TotalReviews, s.RecentReviews, s.Repositories)

	table := u.Table([]string{"Verdict", "Count"})
	for _, k := range model.AllVerdictKinds {
		_ = table.Append([]string{VerdictColor(k), strconv.Itoa(s.ByVerdict[k])})
	}
	if err := table.Render(); err != nil {
		return err
	}

	fmt.Fprintf(u.Out, "\n%s pending %d, approved %d, rejected %d, outdated %d, escalated %d\n",
		cyan("Queue:"), s.Pending, s.Approved, s.Rejected, s.Outdated, s.Escalated)
	return nil
}

// CycleSummary describes one finished poll cycle.
func (u *UI) CycleSummary(s application.CycleSummary) {
	u.Success("Cycle %s finished in %s", s.CycleID, s.Duration.Round(time.Millisecond))
	fmt.Fprintf(u.Out, "  discovered %d, candidates %d, owed %d, outdated %d\n",
		s.Discovered, s.Candidates, s.Owed, s.Outdated)

	kinds := make([]string, 0, len(s.Actions))
	for k := range s.Actions {
		kinds = append(kinds, string(k))
	}
	sort.Strings(kinds)
	for _, k := range kinds {
		fmt.Fprintf(u.Out, "  %s %d\n", k, s.Actions[model.ActionKind(k)])
	}
	if s.Failures > 0 {
		u.Warning("%d pull requests failed and will be retried next cycle", s.Failures)
	}
}

// Truncate shortens s to at most n runes on one line, marking the cut.
func Truncate(s string, n int) string {
	s = strings.Join(strings.Fields(s), " ")
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	if n <= 1 {
		return string(r[:n])
	}
	return string(r[:n-1]) + "…"
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Local().Format("2006-01-02 15:04")
}
