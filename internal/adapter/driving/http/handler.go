package httphandler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/ericfisherdev/reviewgate/internal/application"
	"github.com/ericfisherdev/reviewgate/internal/domain/model"
	"github.com/ericfisherdev/reviewgate/internal/domain/port/driven"
)

// ReviewQueue is the part of the review state machine the API drives.
type ReviewQueue interface {
	ListPending(ctx context.Context) ([]model.PendingApproval, error)
	GetPending(ctx context.Context, id int64) (model.PendingApproval, error)
	Approve(ctx context.Context, id int64, edits model.PendingEdits) (model.Action, error)
	Reject(ctx context.Context, id int64, reason string) error
	Edit(ctx context.Context, id int64, edits model.PendingEdits) (model.PendingApproval, error)
	EditAnnotation(ctx context.Context, id int64, index int, annotation *model.Annotation) (model.PendingApproval, error)
	ReplaceEdits(ctx context.Context, id int64, edits model.PendingEdits) (model.PendingApproval, error)
	History(ctx context.Context, status model.PendingStatus, page model.Page) ([]model.PendingApproval, int, error)
	ListEscalations(ctx context.Context) ([]model.Escalation, error)
	ClearEscalation(ctx context.Context, repoFullName string, prNumber int) error
	RepoHistory(ctx context.Context, repoFullName string, limit int) ([]model.CompletedReview, error)
	Stats(ctx context.Context) (model.ReviewStats, error)
}

// Poller runs a discovery cycle on demand.
type Poller interface {
	TriggerPoll(ctx context.Context) (application.CycleSummary, error)
}

// defaultRepoHistoryLimit caps per-repository history when no limit is given.
const defaultRepoHistoryLimit = 50

// Handler is the HTTP driving adapter that serves the REST API.
type Handler struct {
	queue  ReviewQueue
	poller Poller
	logger *slog.Logger
}

// NewHandler creates a Handler. poller may be nil when no poll loop runs.
func NewHandler(queue ReviewQueue, poller Poller, logger *slog.Logger) *Handler {
	return &Handler{
		queue:  queue,
		poller: poller,
		logger: logger,
	}
}

// Register adds the API routes to mux.
func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/v1/health", h.Health)

	mux.HandleFunc("GET /api/v1/pending", h.ListPending)
	mux.HandleFunc("GET /api/v1/pending/{id}", h.GetPending)
	mux.HandleFunc("PATCH /api/v1/pending/{id}", h.EditPending)
	mux.HandleFunc("PUT /api/v1/pending/{id}/annotations/{index}", h.ReplaceAnnotation)
	mux.HandleFunc("DELETE /api/v1/pending/{id}/annotations/{index}", h.DeleteAnnotation)
	mux.HandleFunc("POST /api/v1/pending/{id}/approve", h.ApprovePending)
	mux.HandleFunc("POST /api/v1/pending/{id}/reject", h.RejectPending)

	mux.HandleFunc("GET /api/v1/history/{status}", h.History)
	mux.HandleFunc("GET /api/v1/escalations", h.ListEscalations)
	mux.HandleFunc("DELETE /api/v1/escalations/{owner}/{repo}/{number}", h.ClearEscalation)
	mux.HandleFunc("GET /api/v1/repos/{owner}/{repo}/reviews", h.RepoReviews)
	mux.HandleFunc("GET /api/v1/stats", h.Stats)
	mux.HandleFunc("POST /api/v1/poll", h.TriggerPoll)
}

// NewServeMux creates an http.Handler with the API routes registered and
// wrapped with logging and recovery middleware.
func NewServeMux(h *Handler, logger *slog.Logger) http.Handler {
	mux := http.NewServeMux()
	h.Register(mux)
	return Wrap(mux, logger)
}

// Wrap applies the logging and recovery middleware to next.
func Wrap(next http.Handler, logger *slog.Logger) http.Handler {
	// Recovery innermost so panics are caught before logging.
	wrapped := recoveryMiddleware(logger, next)
	return loggingMiddleware(logger, wrapped)
}

// Health returns a simple health check response.
func (h *Handler) Health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, HealthResponse{
		Status: "ok",
		Time:   time.Now().UTC().Format(time.RFC3339),
	})
}

// History returns one page of decided approvals with the given status.
func (h *Handler) History(w http.ResponseWriter, r *http.Request) {
	status, ok := model.ParseHistoryStatus(r.PathValue("status"))
	if !ok {
		writeError(w, http.StatusBadRequest, "status must be approved, rejected or outdated")
		return
	}

	page := model.Page{
		Number:  queryInt(r, "page", 1),
		PerPage: queryInt(r, "per_page", model.DefaultPerPage),
	}.Normalize()

	rows, total, err := h.queue.History(r.Context(), status, page)
	if err != nil {
		h.writeDomainError(w, err, "failed to list history", "status", string(status))
		return
	}

	items := make([]PendingResponse, 0, len(rows))
	for _, row := range rows {
		items = append(items, toPendingResponse(row))
	}

	writeJSON(w, http.StatusOK, HistoryResponse{
		Items:   items,
		Total:   total,
		Page:    page.Number,
		PerPage: page.PerPage,
	})
}

// ListEscalations returns every escalated pull request.
func (h *Handler) ListEscalations(w http.ResponseWriter, r *http.Request) {
	markers, err := h.queue.ListEscalations(r.Context())
	if err != nil {
		h.writeDomainError(w, err, "failed to list escalations")
		return
	}

	resp := make([]EscalationResponse, 0, len(markers))
	for _, m := range markers {
		resp = append(resp, toEscalationResponse(m))
	}

	writeJSON(w, http.StatusOK, resp)
}

// ClearEscalation returns an escalated pull request to automated review.
func (h *Handler) ClearEscalation(w http.ResponseWriter, r *http.Request) {
	repoFullName := r.PathValue("owner") + "/" + r.PathValue("repo")
	if !isValidRepoName(repoFullName) {
		writeError(w, http.StatusBadRequest, "invalid repository name: expected owner/repo format")
		return
	}

	number, err := strconv.Atoi(r.PathValue("number"))
	if err != nil || number < 1 {
		writeError(w, http.StatusBadRequest, "invalid PR number")
		return
	}

	if err := h.queue.ClearEscalation(r.Context(), repoFullName, number); err != nil {
		h.writeDomainError(w, err, "failed to clear escalation", "repo", repoFullName, "pr", number)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// RepoReviews returns the latest completed reviews for one repository.
func (h *Handler) RepoReviews(w http.ResponseWriter, r *http.Request) {
	repoFullName := r.PathValue("owner") + "/" + r.PathValue("repo")
	if !isValidRepoName(repoFullName) {
		writeError(w, http.StatusBadRequest, "invalid repository name: expected owner/repo format")
		return
	}

	limit := queryInt(r, "limit", defaultRepoHistoryLimit)
	if limit < 1 || limit > 500 {
		writeError(w, http.StatusBadRequest, "limit must be between 1 and 500")
		return
	}

	reviews, err := h.queue.RepoHistory(r.Context(), repoFullName, limit)
	if err != nil {
		h.writeDomainError(w, err, "failed to list repository reviews", "repo", repoFullName)
		return
	}

	resp := make([]ReviewResponse, 0, len(reviews))
	for _, rv := range reviews {
		resp = append(resp, toReviewResponse(rv))
	}

	writeJSON(w, http.StatusOK, resp)
}

// Stats returns aggregate review counts.
func (h *Handler) Stats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.queue.Stats(r.Context())
	if err != nil {
		h.writeDomainError(w, err, "failed to compute stats")
		return
	}

	writeJSON(w, http.StatusOK, toStatsResponse(stats))
}

// TriggerPoll runs a discovery cycle immediately and returns its summary.
func (h *Handler) TriggerPoll(w http.ResponseWriter, r *http.Request) {
	if h.poller == nil {
		writeError(w, http.StatusServiceUnavailable, "polling is not running")
		return
	}

	summary, err := h.poller.TriggerPoll(r.Context())
	if err != nil {
		h.logger.Error("manual poll failed", "error", err)
		writeError(w, http.StatusBadGateway, "poll cycle failed")
		return
	}

	writeJSON(w, http.StatusOK, toCycleResponse(summary))
}

// writeDomainError maps state machine and store sentinels to status codes.
// Anything unrecognized is logged and reported as a 500.
func (h *Handler) writeDomainError(w http.ResponseWriter, err error, msg string, args ...any) {
	switch {
	case errors.Is(err, driven.ErrNotFound):
		writeError(w, http.StatusNotFound, "not found")
	case errors.Is(err, driven.ErrInvalidTransition):
		writeError(w, http.StatusConflict, "pending approval has already been decided")
	case errors.Is(err, application.ErrInvalidEdit), errors.Is(err, application.ErrInvalidStatus):
		writeError(w, http.StatusBadRequest, err.Error())
	default:
		h.logger.Error(msg, append(args, "error", err)...)
		writeError(w, http.StatusInternalServerError, "internal server error")
	}
}

// queryInt parses an integer query parameter, returning def when absent or invalid.
func queryInt(r *http.Request, key string, def int) int {
	v := r.URL.Query().Get(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}

// isValidRepoName validates that name is in owner/repo format where each part
// contains only alphanumeric characters, hyphens, dots, or underscores.
func isValidRepoName(name string) bool {
	owner, repo, ok := strings.Cut(name, "/")
	if !ok || owner == "" || repo == "" {
		return false
	}

	for _, part := range []string{owner, repo} {
		for _, ch := range part {
			if !isValidRepoChar(ch) {
				return false
			}
		}
	}

	return true
}

// isValidRepoChar returns true if the rune is allowed in a repository owner or name.
func isValidRepoChar(ch rune) bool {
	return (ch >= 'a' && ch <= 'z') ||
		(ch >= 'A' && ch <= 'Z') ||
		(ch >= '0' && ch <= '9') ||
		ch == '-' || ch == '.' || ch == '_'
}
