// Package web implements the HTML GUI driving adapter using templ components.
package web

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/a-h/templ"

	"github.com/ericfisherdev/reviewgate/internal/adapter/driving/web/templates"
	vm "github.com/ericfisherdev/reviewgate/internal/adapter/driving/web/viewmodel"
	"github.com/ericfisherdev/reviewgate/internal/application"
	"github.com/ericfisherdev/reviewgate/internal/domain/model"
	"github.com/ericfisherdev/reviewgate/internal/domain/port/driven"
)

// ReviewQueue is the part of the review state machine the dashboard drives.
type ReviewQueue interface {
	ListPending(ctx context.Context) ([]model.PendingApproval, error)
	GetPending(ctx context.Context, id int64) (model.PendingApproval, error)
	Approve(ctx context.Context, id int64, edits model.PendingEdits) (model.Action, error)
	Reject(ctx context.Context, id int64, reason string) error
	Edit(ctx context.Context, id int64, edits model.PendingEdits) (model.PendingApproval, error)
	EditAnnotation(ctx context.Context, id int64, index int, annotation *model.Annotation) (model.PendingApproval, error)
	ResetEdits(ctx context.Context, id int64) (model.PendingApproval, error)
	History(ctx context.Context, status model.PendingStatus, page model.Page) ([]model.PendingApproval, int, error)
	ListEscalations(ctx context.Context) ([]model.Escalation, error)
	ClearEscalation(ctx context.Context, repoFullName string, prNumber int) error
	Stats(ctx context.Context) (model.ReviewStats, error)
}

// flashMessages maps the flash codes carried across redirects to their text.
// Only known codes are shown.
var flashMessages = map[string]string{
	"approved": "Review posted to GitHub.",
	"rejected": "Proposal rejected.",
	"edited":   "Edits saved.",
	"reset":    "Edits discarded.",
	"cleared":  "Escalation cleared. The pull request will be reviewed on the next poll.",
	"decided":  "That proposal has already been decided.",
}

// Handler is the web GUI driving adapter that serves HTML via templ components.
type Handler struct {
	queue  ReviewQueue
	logger *slog.Logger
}

// NewHandler creates a Handler.
func NewHandler(queue ReviewQueue, logger *slog.Logger) *Handler {
	return &Handler{
		queue:  queue,
		logger: logger,
	}
}

// Pending renders the pending tab, which is also the landing page.
func (h *Handler) Pending(w http.ResponseWriter, r *http.Request) {
	rows, err := h.queue.ListPending(r.Context())
	if err != nil {
		h.serverError(w, "failed to list pending approvals", err)
		return
	}

	token := csrfToken(w, r)
	h.render(w, r, "pending", "Pending approvals",
		templates.PendingList(toProposalViewModels(rows), token), token)
}

// Escalations renders the escalated tab.
func (h *Handler) Escalations(w http.ResponseWriter, r *http.Request) {
	markers, err := h.queue.ListEscalations(r.Context())
	if err != nil {
		h.serverError(w, "failed to list escalations", err)
		return
	}

	token := csrfToken(w, r)
	h.render(w, r, "escalated", "Escalated",
		templates.EscalationList(toEscalationViewModels(markers), token), token)
}

// History renders the approved, rejected or outdated tab.
func (h *Handler) History(w http.ResponseWriter, r *http.Request) {
	status, ok := model.ParseHistoryStatus(r.PathValue("status"))
	if !ok {
		http.NotFound(w, r)
		return
	}

	number, _ := strconv.Atoi(r.URL.Query().Get("page"))
	page := model.Page{Number: number, PerPage: model.DefaultPerPage}.Normalize()

	rows, total, err := h.queue.History(r.Context(), status, page)
	if err != nil {
		h.serverError(w, "failed to list history", err, "status", string(status))
		return
	}

	token := csrfToken(w, r)
	title := strings.ToUpper(string(status[:1])) + string(status[1:])
	h.render(w, r, string(status), title,
		templates.History(toHistoryViewModel(status, rows, total, page)), token)
}

// ApprovePending posts the final proposal and returns to the pending tab.
func (h *Handler) ApprovePending(w http.ResponseWriter, r *http.Request) {
	id, ok := h.decisionRequest(w, r)
	if !ok {
		return
	}

	if _, err := h.queue.Approve(r.Context(), id, model.PendingEdits{}); err != nil {
		h.decisionError(w, r, err, "failed to approve pending approval", id)
		return
	}
	redirect(w, r, "/", "approved")
}

// RejectPending closes a proposal without posting anything.
func (h *Handler) RejectPending(w http.ResponseWriter, r *http.Request) {
	id, ok := h.decisionRequest(w, r)
	if !ok {
		return
	}

	reason := strings.TrimSpace(r.FormValue("reason"))
	if err := h.queue.Reject(r.Context(), id, reason); err != nil {
		h.decisionError(w, r, err, "failed to reject pending approval", id)
		return
	}
	redirect(w, r, "/", "rejected")
}

// EditPending saves the edit form. Fields equal to the current final value
// are not recorded as edits; a filled-in annotation is appended.
func (h *Handler) EditPending(w http.ResponseWriter, r *http.Request) {
	id, ok := h.decisionRequest(w, r)
	if !ok {
		return
	}

	row, err := h.queue.GetPending(r.Context(), id)
	if err != nil {
		h.decisionError(w, r, err, "failed to load pending approval", id)
		return
	}

	edits, msg := editsFromForm(r, row)
	if msg != "" {
		http.Error(w, msg, http.StatusBadRequest)
		return
	}
	if edits.IsZero() {
		redirect(w, r, "/", "")
		return
	}

	if _, err := h.queue.Edit(r.Context(), id, edits); err != nil {
		h.decisionError(w, r, err, "failed to edit pending approval", id)
		return
	}
	redirect(w, r, "/", "edited")
}

// ResetPending discards all edits of a proposal.
func (h *Handler) ResetPending(w http.ResponseWriter, r *http.Request) {
	id, ok := h.decisionRequest(w, r)
	if !ok {
		return
	}

	if _, err := h.queue.ResetEdits(r.Context(), id); err != nil {
		h.decisionError(w, r, err, "failed to reset edits", id)
		return
	}
	redirect(w, r, "/", "reset")
}

// DeleteAnnotation removes one inline comment from a proposal.
func (h *Handler) DeleteAnnotation(w http.ResponseWriter, r *http.Request) {
	id, ok := h.decisionRequest(w, r)
	if !ok {
		return
	}
	index, err := strconv.Atoi(r.PathValue("index"))
	if err != nil || index < 0 {
		http.Error(w, "invalid annotation index", http.StatusBadRequest)
		return
	}

	if _, err := h.queue.EditAnnotation(r.Context(), id, index, nil); err != nil {
		h.decisionError(w, r, err, "failed to delete annotation", id)
		return
	}
	redirect(w, r, "/", "edited")
}

// ClearEscalation returns an escalated pull request to automated review.
func (h *Handler) ClearEscalation(w http.ResponseWriter, r *http.Request) {
	if !validateCSRF(r) {
		http.Error(w, "invalid CSRF token", http.StatusForbidden)
		return
	}

	repoFullName := r.PathValue("owner") + "/" + r.PathValue("repo")
	number, err := strconv.Atoi(r.PathValue("number"))
	if err != nil || number < 1 {
		http.Error(w, "invalid PR number", http.StatusBadRequest)
		return
	}

	if err := h.queue.ClearEscalation(r.Context(), repoFullName, number); err != nil {
		if errors.Is(err, driven.ErrNotFound) {
			http.NotFound(w, r)
			return
		}
		h.serverError(w, "failed to clear escalation", err, "repo", repoFullName, "pr", number)
		return
	}
	redirect(w, r, "/app/escalations", "cleared")
}

// decisionRequest checks the CSRF token and parses the pending id.
func (h *Handler) decisionRequest(w http.ResponseWriter, r *http.Request) (int64, bool) {
	if !validateCSRF(r) {
		http.Error(w, "invalid CSRF token", http.StatusForbidden)
		return 0, false
	}
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil || id < 1 {
		http.Error(w, "invalid pending approval id", http.StatusBadRequest)
		return 0, false
	}
	return id, true
}

func (h *Handler) decisionError(w http.ResponseWriter, r *http.Request, err error, msg string, id int64) {
	switch {
	case errors.Is(err, driven.ErrNotFound):
		http.NotFound(w, r)
	case errors.Is(err, driven.ErrInvalidTransition):
		redirect(w, r, "/", "decided")
	case errors.Is(err, application.ErrInvalidEdit):
		http.Error(w, err.Error(), http.StatusBadRequest)
	default:
		h.serverError(w, msg, err, "pending_id", id)
	}
}

func (h *Handler) serverError(w http.ResponseWriter, msg string, err error, args ...any) {
	h.logger.Error(msg, append(args, "error", err)...)
	http.Error(w, "internal server error", http.StatusInternalServerError)
}

// render wraps body in the layout with the tab bar and stats header.
func (h *Handler) render(w http.ResponseWriter, r *http.Request, tab, title string, body templ.Component, token string) {
	stats, err := h.queue.Stats(r.Context())
	if err != nil {
		h.serverError(w, "failed to compute stats", err)
		return
	}

	page := vm.PageViewModel{
		Title:     title + " - reviewgate",
		Tabs:      toTabs(tab, stats),
		CSRFToken: token,
		Flash:     flashMessages[r.URL.Query().Get("flash")],
		Stats:     toStatsViewModel(stats),
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := templates.Layout(page, body).Render(r.Context(), w); err != nil {
		h.logger.Error("failed to render page", "tab", tab, "error", err)
	}
}

// editsFromForm turns the edit form into PendingEdits against the current row.
// A non-empty string is a validation message.
func editsFromForm(r *http.Request, row model.PendingApproval) (model.PendingEdits, string) {
	var edits model.PendingEdits
	if err := r.ParseForm(); err != nil {
		return edits, "invalid form"
	}

	if values, ok := r.PostForm["comment"]; ok {
		comment := normalizeNewlines(values[0])
		if comment != row.FinalComment() {
			edits.Comment = &comment
		}
	}
	if values, ok := r.PostForm["summary"]; ok {
		summary := normalizeNewlines(values[0])
		if summary != row.FinalSummary() {
			edits.Summary = &summary
		}
	}

	file := strings.TrimSpace(r.PostFormValue("annotation_file"))
	if file == "" {
		return edits, ""
	}
	line, err := strconv.Atoi(r.PostFormValue("annotation_line"))
	if err != nil || line < 1 {
		return edits, "annotation line must be a positive number"
	}
	message := strings.TrimSpace(normalizeNewlines(r.PostFormValue("annotation_message")))
	if message == "" {
		return edits, "annotation message is required"
	}

	annotations := model.CloneAnnotations(row.FinalAnnotations())
	edits.Annotations = append(annotations, model.Annotation{File: file, Line: line, Message: message})
	edits.AnnotationsEdited = true
	return edits, ""
}

func normalizeNewlines(s string) string {
	return strings.ReplaceAll(s, "\r\n", "\n")
}

// redirect sends the browser back to path after a form POST.
func redirect(w http.ResponseWriter, r *http.Request, path, flash string) {
	if flash != "" {
		path += "?flash=" + url.QueryEscape(flash)
	}
	http.Redirect(w, r, path, http.StatusSeeOther)
}
