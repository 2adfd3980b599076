package web

import (
	"fmt"
	"strings"
	"time"

	vm "github.com/ericfisherdev/reviewgate/internal/adapter/driving/web/viewmodel"
	"github.com/ericfisherdev/reviewgate/internal/domain/model"
)

const timeLayout = "2006-01-02 15:04 MST"

// tab names in display order. "escalated" lists escalation markers; the rest
// list pending approvals by status.
var tabOrder = []struct {
	name  string
	label string
}{
	{"pending", "Pending"},
	{"escalated", "Escalated"},
	{string(model.PendingStatusApproved), "Approved"},
	{string(model.PendingStatusRejected), "Rejected"},
	{string(model.PendingStatusOutdated), "Outdated"},
}

func tabPath(name string) string {
	switch name {
	case "pending":
		return "/"
	case "escalated":
		return "/app/escalations"
	default:
		return "/app/history/" + name
	}
}

// toTabs builds the tab bar with counts taken from stats.
func toTabs(active string, stats model.ReviewStats) []vm.TabViewModel {
	tabs := make([]vm.TabViewModel, 0, len(tabOrder))
	for _, t := range tabOrder {
		tabs = append(tabs, vm.TabViewModel{
			Name:   t.name,
			Label:  t.label,
			Path:   tabPath(t.name),
			Count:  tabCount(t.name, stats),
			Active: t.name == active,
		})
	}
	return tabs
}

func tabCount(name string, stats model.ReviewStats) int {
	switch name {
	case "pending":
		return stats.Pending
	case "escalated":
		return stats.Escalated
	case string(model.PendingStatusApproved):
		return stats.Approved
	case string(model.PendingStatusRejected):
		return stats.Rejected
	case string(model.PendingStatusOutdated):
		return stats.Outdated
	}
	return 0
}

func toStatsViewModel(s model.ReviewStats) vm.StatsViewModel {
	verdicts := make([]vm.VerdictCountViewModel, 0, len(model.AllVerdictKinds))
	for _, k := range model.AllVerdictKinds {
		verdicts = append(verdicts, vm.VerdictCountViewModel{
			Label: verdictLabel(k),
			Count: s.ByVerdict[k],
		})
	}
	return vm.StatsViewModel{
		TotalReviews:  s.TotalReviews,
		RecentReviews: s.RecentReviews,
		Repositories:  s.Repositories,
		Verdicts:      verdicts,
	}
}

func verdictLabel(k model.VerdictKind) string {
	switch k {
	case model.VerdictApproveWithoutComment:
		return "Approve"
	case model.VerdictApproveWithComment:
		return "Approve with comment"
	case model.VerdictRequestChanges:
		return "Request changes"
	case model.VerdictRequiresHumanReview:
		return "Needs human review"
	default:
		return strings.ReplaceAll(string(k), "_", " ")
	}
}

// toProposalViewModel converts a pending approval into its card. Markdown in
// the final comment, summary and annotation messages is rendered to safe HTML,
// along with the agent's original proposal when a human edited it.
func toProposalViewModel(p model.PendingApproval) vm.ProposalViewModel {
	base := fmt.Sprintf("/app/pending/%d", p.ID)
	open := p.Status == model.PendingStatusPending

	deleteBase := ""
	if open {
		deleteBase = base + "/annotations"
	}
	annotations := toAnnotationViewModels(p.FinalAnnotations(), deleteBase)

	card := vm.ProposalViewModel{
		ID:              p.ID,
		Key:             p.Key(),
		Repository:      p.RepoFullName,
		Number:          p.PRNumber,
		Title:           p.Title,
		Author:          p.Author,
		URL:             p.URL,
		ShortSHA:        model.ShortSHA(p.HeadSHA),
		Verdict:         string(p.Verdict),
		VerdictLabel:    verdictLabel(p.Verdict),
		Comment:         p.FinalComment(),
		Summary:         p.FinalSummary(),
		CommentHTML:     RenderMarkdown(p.FinalComment()),
		SummaryHTML:     RenderMarkdown(p.FinalSummary()),
		Annotations:     annotations,
		Edited:          p.IsEdited(),
		Open:            open,
		Status:          string(p.Status),
		RejectionReason: p.RejectionReason,
		CreatedAt:       formatTime(p.CreatedAt),
	}
	if card.Edited {
		card.OriginalCommentHTML = RenderMarkdown(p.Comment)
		card.OriginalSummaryHTML = RenderMarkdown(p.Summary)
		card.OriginalAnnotations = toAnnotationViewModels(p.Annotations, "")
	}
	if p.DecidedAt != nil {
		card.DecidedAt = formatTime(*p.DecidedAt)
	}
	if open {
		card.ApproveURL = base + "/approve"
		card.RejectURL = base + "/reject"
		card.EditURL = base + "/edit"
		card.ResetURL = base + "/reset"
	}
	return card
}

// toAnnotationViewModels renders annotation messages. Delete links are only
// added when deleteBase is set.
func toAnnotationViewModels(list []model.Annotation, deleteBase string) []vm.AnnotationViewModel {
	out := make([]vm.AnnotationViewModel, 0, len(list))
	for i, a := range list {
		av := vm.AnnotationViewModel{
			Index:       i,
			File:        a.File,
			Line:        a.Line,
			Message:     a.Message,
			MessageHTML: RenderMarkdown(a.Message),
		}
		if deleteBase != "" {
			av.DeleteURL = fmt.Sprintf("%s/%d/delete", deleteBase, i)
		}
		out = append(out, av)
	}
	return out
}

func toProposalViewModels(rows []model.PendingApproval) []vm.ProposalViewModel {
	out := make([]vm.ProposalViewModel, 0, len(rows))
	for _, row := range rows {
		out = append(out, toProposalViewModel(row))
	}
	return out
}

func toEscalationViewModels(markers []model.Escalation) []vm.EscalationViewModel {
	out := make([]vm.EscalationViewModel, 0, len(markers))
	for _, e := range markers {
		out = append(out, vm.EscalationViewModel{
			Key:        e.Key(),
			Repository: e.RepoFullName,
			Number:     e.PRNumber,
			Title:      e.Title,
			Author:     e.Author,
			URL:        e.URL,
			ShortSHA:   model.ShortSHA(e.HeadSHA),
			Reason:     e.Reason,
			CreatedAt:  formatTime(e.CreatedAt),
			ClearURL:   fmt.Sprintf("/app/escalations/%s/%d/clear", e.RepoFullName, e.PRNumber),
		})
	}
	return out
}

// toHistoryViewModel builds one page of history with prev/next links.
func toHistoryViewModel(status model.PendingStatus, rows []model.PendingApproval, total int, page model.Page) vm.HistoryViewModel {
	h := vm.HistoryViewModel{
		Status:    string(status),
		Proposals: toProposalViewModels(rows),
		Page:      page.Number,
		Total:     total,
	}
	path := tabPath(string(status))
	if page.Number > 1 {
		h.PrevURL = fmt.Sprintf("%s?page=%d", path, page.Number-1)
	}
	if page.Number*page.PerPage < total {
		h.NextURL = fmt.Sprintf("%s?page=%d", path, page.Number+1)
	}
	return h
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(timeLayout)
}
