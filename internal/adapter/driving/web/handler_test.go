package web

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ericfisherdev/reviewgate/internal/domain/model"
	"github.com/ericfisherdev/reviewgate/internal/domain/port/driven"
)

type mockQueue struct {
	pending     []model.PendingApproval
	escalations []model.Escalation
	history     []model.PendingApproval
	total       int
	stats       model.ReviewStats

	approveErr error

	approvedID   int64
	rejectedID   int64
	rejectReason string
	edits        *model.PendingEdits
	deletedIndex int
	resetID      int64
	cleared      string
	historyPage  model.Page
}

func (m *mockQueue) ListPending(_ context.Context) ([]model.PendingApproval, error) {
	return m.pending, nil
}

func (m *mockQueue) GetPending(_ context.Context, id int64) (model.PendingApproval, error) {
	for _, p := range m.pending {
		if p.ID == id {
			return p, nil
		}
	}
	return model.PendingApproval{}, driven.ErrNotFound
}

func (m *mockQueue) Approve(_ context.Context, id int64, _ model.PendingEdits) (model.Action, error) {
	if m.approveErr != nil {
		return model.Action{}, m.approveErr
	}
	m.approvedID = id
	return model.Action{Kind: model.ActionPostApproval, PendingID: id}, nil
}

func (m *mockQueue) Reject(_ context.Context, id int64, reason string) error {
	m.rejectedID = id
	m.rejectReason = reason
	return nil
}

func (m *mockQueue) Edit(_ context.Context, id int64, edits model.PendingEdits) (model.PendingApproval, error) {
	m.edits = &edits
	return model.PendingApproval{ID: id}, nil
}

func (m *mockQueue) EditAnnotation(_ context.Context, id int64, index int, _ *model.Annotation) (model.PendingApproval, error) {
	m.deletedIndex = index
	return model.PendingApproval{ID: id}, nil
}

func (m *mockQueue) ResetEdits(_ context.Context, id int64) (model.PendingApproval, error) {
	m.resetID = id
	return model.PendingApproval{ID: id}, nil
}

func (m *mockQueue) History(_ context.Context, _ model.PendingStatus, page model.Page) ([]model.PendingApproval, int, error) {
	m.historyPage = page
	return m.history, m.total, nil
}

func (m *mockQueue) ListEscalations(_ context.Context) ([]model.Escalation, error) {
	return m.escalations, nil
}

func (m *mockQueue) ClearEscalation(_ context.Context, repoFullName string, prNumber int) error {
	m.cleared = model.PRKey(repoFullName, prNumber)
	return nil
}

func (m *mockQueue) Stats(_ context.Context) (model.ReviewStats, error) {
	return m.stats, nil
}

func setupMux(q *mockQueue) *http.ServeMux {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	mux := http.NewServeMux()
	RegisterRoutes(mux, NewHandler(q, logger))
	return mux
}

func pendingRow() model.PendingApproval {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	return model.PendingApproval{
		ID:           7,
		RepoFullName: "org/repo",
		PRNumber:     42,
		Title:        "Add <retry> logic",
		Author:       "alice",
		URL:          "https://github.com/org/repo/pull/42",
		HeadSHA:      "abcdef1234567890",
		Verdict:      model.VerdictRequestChanges,
		Summary:      "Please **fix** the loop.",
		Annotations:  []model.Annotation{{File: "main.go", Line: 10, Message: "off by one"}},
		Status:       model.PendingStatusPending,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
}

// postForm sends a form POST with a matching CSRF cookie and field.
func postForm(mux http.Handler, path string, form url.Values) *httptest.ResponseRecorder {
	if form == nil {
		form = url.Values{}
	}
	form.Set(csrfFormField, "token123")
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.AddCookie(&http.Cookie{Name: csrfCookieName, Value: "token123"})
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)
	return rec
}

func TestPending_RendersProposalsAndSetsCSRFCookie(t *testing.T) {
	q := &mockQueue{
		pending: []model.PendingApproval{pendingRow()},
		stats:   model.ReviewStats{Pending: 1, Escalated: 2},
	}
	mux := setupMux(q)

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, "org/repo#42")
	assert.Contains(t, body, "Add &lt;retry&gt; logic")
	assert.Contains(t, body, "<strong>fix</strong>")
	assert.Contains(t, body, "main.go:10")
	assert.Contains(t, body, `action="/app/pending/7/approve"`)
	assert.Contains(t, body, `action="/app/pending/7/annotations/0/delete"`)
	assert.Contains(t, body, "Escalated <span class=\"count\">2</span>")

	cookies := rec.Result().Cookies()
	require.Len(t, cookies, 1)
	assert.Equal(t, csrfCookieName, cookies[0].Name)
	assert.Contains(t, body, `value="`+cookies[0].Value+`"`)
}

func TestPending_Empty(t *testing.T) {
	mux := setupMux(&mockQueue{})

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/?flash=approved", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "Nothing is waiting for confirmation.")
	assert.Contains(t, rec.Body.String(), "Review posted to GitHub.")
}

func TestPending_UnknownFlashIgnored(t *testing.T) {
	mux := setupMux(&mockQueue{})

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/?flash=bogus", nil))

	assert.NotContains(t, rec.Body.String(), `class="flash"`)
}

func TestHistory_PaginatesAndHidesForms(t *testing.T) {
	row := pendingRow()
	row.Status = model.PendingStatusRejected
	row.RejectionReason = "not now"
	decided := row.CreatedAt.Add(time.Hour)
	row.DecidedAt = &decided

	q := &mockQueue{history: []model.PendingApproval{row}, total: 120}
	mux := setupMux(q)

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/app/history/rejected?page=2", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.Equal(t, 2, q.historyPage.Number)
	assert.Contains(t, body, "Rejected: not now")
	assert.Contains(t, body, `href="/app/history/rejected?page=1"`)
	assert.Contains(t, body, `href="/app/history/rejected?page=3"`)
	assert.NotContains(t, body, `action="/app/pending/7/approve"`)
	assert.NotContains(t, body, `action="/app/pending/7/reject"`)
}

func TestHistory_EditedShowsProposalAndFinal(t *testing.T) {
	row := pendingRow()
	row.Status = model.PendingStatusApproved
	decided := row.CreatedAt.Add(time.Hour)
	row.DecidedAt = &decided
	summary := "Loop bound is **wrong** on line 10."
	row.Edits = model.PendingEdits{
		Summary:           &summary,
		Annotations:       []model.Annotation{{File: "loop.go", Line: 3, Message: "use < not <="}},
		AnnotationsEdited: true,
	}

	q := &mockQueue{history: []model.PendingApproval{row}, total: 1}
	mux := setupMux(q)

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/app/history/approved", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, `<span class="badge edited">edited</span>`)
	assert.Contains(t, body, "<strong>wrong</strong>")
	assert.Contains(t, body, "loop.go")
	assert.Contains(t, body, "Proposed by the agent")
	assert.Contains(t, body, "<strong>fix</strong>")
	assert.Contains(t, body, "off by one")
	assert.Less(t, strings.Index(body, "<strong>wrong</strong>"), strings.Index(body, "Proposed by the agent"))
	assert.NotContains(t, body, "/annotations/0/delete")
}

func TestHistory_UneditedHasNoProposalSection(t *testing.T) {
	row := pendingRow()
	row.Status = model.PendingStatusApproved

	mux := setupMux(&mockQueue{history: []model.PendingApproval{row}, total: 1})

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/app/history/approved", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "<strong>fix</strong>")
	assert.NotContains(t, rec.Body.String(), "Proposed by the agent")
}

func TestHistory_UnknownStatus(t *testing.T) {
	mux := setupMux(&mockQueue{})

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/app/history/pending", nil))

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestEscalations_Renders(t *testing.T) {
	q := &mockQueue{escalations: []model.Escalation{{
		RepoFullName: "org/repo",
		PRNumber:     3,
		HeadSHA:      "1234567890",
		Title:        "Risky migration",
		Reason:       "touches billing",
	}}}
	mux := setupMux(q)

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/app/escalations", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "touches billing")
	assert.Contains(t, rec.Body.String(), `action="/app/escalations/org/repo/3/clear"`)
}

func TestApprove_RequiresCSRF(t *testing.T) {
	q := &mockQueue{}
	mux := setupMux(q)

	req := httptest.NewRequest(http.MethodPost, "/app/pending/7/approve", nil)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Zero(t, q.approvedID)
}

func TestApprove_Redirects(t *testing.T) {
	q := &mockQueue{}
	mux := setupMux(q)

	rec := postForm(mux, "/app/pending/7/approve", nil)

	assert.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Equal(t, "/?flash=approved", rec.Header().Get("Location"))
	assert.Equal(t, int64(7), q.approvedID)
}

func TestApprove_AlreadyDecided(t *testing.T) {
	q := &mockQueue{approveErr: driven.ErrInvalidTransition}
	mux := setupMux(q)

	rec := postForm(mux, "/app/pending/7/approve", nil)

	assert.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Equal(t, "/?flash=decided", rec.Header().Get("Location"))
}

func TestReject_PassesReason(t *testing.T) {
	q := &mockQueue{}
	mux := setupMux(q)

	rec := postForm(mux, "/app/pending/7/reject", url.Values{"reason": {"  wrong repo "}})

	assert.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Equal(t, int64(7), q.rejectedID)
	assert.Equal(t, "wrong repo", q.rejectReason)
}

func TestEdit_OnlyChangedFieldsAndNewAnnotation(t *testing.T) {
	q := &mockQueue{pending: []model.PendingApproval{pendingRow()}}
	mux := setupMux(q)

	rec := postForm(mux, "/app/pending/7/edit", url.Values{
		"comment":            {""},
		"summary":            {"Please fix the loop.\r\nThanks."},
		"annotation_file":    {"util.go"},
		"annotation_line":    {"4"},
		"annotation_message": {"unused"},
	})

	require.Equal(t, http.StatusSeeOther, rec.Code)
	require.NotNil(t, q.edits)
	assert.Nil(t, q.edits.Comment)
	require.NotNil(t, q.edits.Summary)
	assert.Equal(t, "Please fix the loop.\nThanks.", *q.edits.Summary)
	assert.True(t, q.edits.AnnotationsEdited)
	assert.Equal(t, []model.Annotation{
		{File: "main.go", Line: 10, Message: "off by one"},
		{File: "util.go", Line: 4, Message: "unused"},
	}, q.edits.Annotations)
}

func TestEdit_NoChangesSkipsEdit(t *testing.T) {
	row := pendingRow()
	q := &mockQueue{pending: []model.PendingApproval{row}}
	mux := setupMux(q)

	rec := postForm(mux, "/app/pending/7/edit", url.Values{
		"comment": {row.Comment},
		"summary": {row.Summary},
	})

	assert.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Equal(t, "/", rec.Header().Get("Location"))
	assert.Nil(t, q.edits)
}

func TestEdit_InvalidAnnotationLine(t *testing.T) {
	q := &mockQueue{pending: []model.PendingApproval{pendingRow()}}
	mux := setupMux(q)

	rec := postForm(mux, "/app/pending/7/edit", url.Values{
		"annotation_file":    {"util.go"},
		"annotation_line":    {"zero"},
		"annotation_message": {"unused"},
	})

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Nil(t, q.edits)
}

func TestEdit_UnknownPending(t *testing.T) {
	mux := setupMux(&mockQueue{})

	rec := postForm(mux, "/app/pending/99/edit", url.Values{"comment": {"x"}})

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestResetAndDeleteAnnotation(t *testing.T) {
	q := &mockQueue{deletedIndex: -1}
	mux := setupMux(q)

	rec := postForm(mux, "/app/pending/7/reset", nil)
	assert.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Equal(t, int64(7), q.resetID)

	rec = postForm(mux, "/app/pending/7/annotations/2/delete", nil)
	assert.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Equal(t, 2, q.deletedIndex)
}

func TestClearEscalation(t *testing.T) {
	q := &mockQueue{}
	mux := setupMux(q)

	rec := postForm(mux, "/app/escalations/org/repo/3/clear", nil)

	assert.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Equal(t, "/app/escalations?flash=cleared", rec.Header().Get("Location"))
	assert.Equal(t, "org/repo#3", q.cleared)
}

func TestStaticAssets(t *testing.T) {
	mux := setupMux(&mockQueue{})

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/static/app.css", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), ".proposal")
}
