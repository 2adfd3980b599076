package httphandler_test

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	httphandler "github.com/ericfisherdev/reviewgate/internal/adapter/driving/http"
	"github.com/ericfisherdev/reviewgate/internal/application"
	"github.com/ericfisherdev/reviewgate/internal/domain/model"
	"github.com/ericfisherdev/reviewgate/internal/domain/port/driven"
)

// --- Mock implementations ---

// mockQueue implements httphandler.ReviewQueue and records the arguments
// of mutating calls.
type mockQueue struct {
	pending    []model.PendingApproval
	row        model.PendingApproval
	escalation []model.Escalation
	reviews    []model.CompletedReview
	stats      model.ReviewStats
	total      int
	err        error

	gotEdits      model.PendingEdits
	gotReason     string
	gotIndex      int
	gotAnnotation *model.Annotation
	gotPage       model.Page
	gotStatus     model.PendingStatus
	gotRepo       string
	gotNumber     int
	gotLimit      int
	resetCalled   bool
}

func (m *mockQueue) ListPending(context.Context) ([]model.PendingApproval, error) {
	return m.pending, m.err
}
func (m *mockQueue) GetPending(_ context.Context, id int64) (model.PendingApproval, error) {
	if m.err != nil {
		return model.PendingApproval{}, m.err
	}
	row := m.row
	row.ID = id
	return row, nil
}
func (m *mockQueue) Approve(_ context.Context, id int64, edits model.PendingEdits) (model.Action, error) {
	m.gotEdits = edits
	if m.err != nil {
		return model.NoAction, m.err
	}
	return model.Action{Kind: model.ActionPostApproval, RepoFullName: m.row.RepoFullName, PRNumber: m.row.PRNumber, HeadSHA: m.row.HeadSHA, PendingID: id}, nil
}
func (m *mockQueue) Reject(_ context.Context, _ int64, reason string) error {
	m.gotReason = reason
	return m.err
}
func (m *mockQueue) Edit(_ context.Context, id int64, edits model.PendingEdits) (model.PendingApproval, error) {
	m.gotEdits = edits
	if m.err != nil {
		return model.PendingApproval{}, m.err
	}
	row := m.row
	row.ID = id
	row.Edits = row.Edits.Merge(edits)
	return row, nil
}
func (m *mockQueue) EditAnnotation(_ context.Context, id int64, index int, a *model.Annotation) (model.PendingApproval, error) {
	m.gotIndex = index
	m.gotAnnotation = a
	if m.err != nil {
		return model.PendingApproval{}, m.err
	}
	row := m.row
	row.ID = id
	return row, nil
}
func (m *mockQueue) ReplaceEdits(_ context.Context, id int64, edits model.PendingEdits) (model.PendingApproval, error) {
	m.resetCalled = true
	m.gotEdits = edits
	if m.err != nil {
		return model.PendingApproval{}, m.err
	}
	row := m.row
	row.ID = id
	row.Edits = model.PendingEdits{}.Merge(edits)
	return row, nil
}
func (m *mockQueue) History(_ context.Context, status model.PendingStatus, page model.Page) ([]model.PendingApproval, int, error) {
	m.gotStatus = status
	m.gotPage = page
	return m.pending, m.total, m.err
}
func (m *mockQueue) ListEscalations(context.Context) ([]model.Escalation, error) {
	return m.escalation, m.err
}
func (m *mockQueue) ClearEscalation(_ context.Context, repo string, number int) error {
	m.gotRepo = repo
	m.gotNumber = number
	return m.err
}
func (m *mockQueue) RepoHistory(_ context.Context, repo string, limit int) ([]model.CompletedReview, error) {
	m.gotRepo = repo
	m.gotLimit = limit
	return m.reviews, m.err
}
func (m *mockQueue) Stats(context.Context) (model.ReviewStats, error) {
	return m.stats, m.err
}

type mockPoller struct {
	summary application.CycleSummary
	err     error
}

func (m *mockPoller) TriggerPoll(context.Context) (application.CycleSummary, error) {
	return m.summary, m.err
}

// --- Test helpers ---

var (
	testTime    = time.Date(2026, 2, 10, 12, 0, 0, 0, time.UTC)
	testTimeStr = "2026-02-10T12:00:00Z"
)

func pendingRow() model.PendingApproval {
	return model.PendingApproval{
		ID:           7,
		RepoFullName: "owner/repo",
		PRNumber:     42,
		Title:        "Fix bug",
		Author:       "alice",
		URL:          "https://github.com/owner/repo/pull/42",
		HeadSHA:      "abc123",
		Verdict:      model.VerdictApproveWithComment,
		Comment:      "Looks good",
		Annotations:  []model.Annotation{{File: "main.go", Line: 3, Message: "nit"}},
		Status:       model.PendingStatusPending,
		CreatedAt:    testTime,
		UpdatedAt:    testTime,
	}
}

func setupMux(queue *mockQueue, poller httphandler.Poller) http.Handler {
	h := httphandler.NewHandler(queue, poller, slog.Default())
	return httphandler.NewServeMux(h, slog.Default())
}

func do(t *testing.T, mux http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)
	return rec
}

func decodeJSON(t *testing.T, rec *httptest.ResponseRecorder, v any) {
	t.Helper()
	require.Equal(t, "application/json; charset=utf-8", rec.Header().Get("Content-Type"))
	err := json.NewDecoder(rec.Body).Decode(v)
	require.NoError(t, err)
}

// --- Tests ---

func TestHealth(t *testing.T) {
	rec := do(t, setupMux(&mockQueue{}, nil), http.MethodGet, "/api/v1/health", "")

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.NotEmpty(t, rec.Header().Get("X-Request-Id"))

	var body map[string]any
	decodeJSON(t, rec, &body)
	assert.Equal(t, "ok", body["status"])
}

func TestListPending(t *testing.T) {
	tests := []struct {
		name       string
		queue      *mockQueue
		wantStatus int
		wantLen    int
	}{
		{name: "empty list is an array", queue: &mockQueue{}, wantStatus: http.StatusOK, wantLen: 0},
		{name: "one row", queue: &mockQueue{pending: []model.PendingApproval{pendingRow()}}, wantStatus: http.StatusOK, wantLen: 1},
		{name: "store error", queue: &mockQueue{err: errors.New("db down")}, wantStatus: http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := do(t, setupMux(tt.queue, nil), http.MethodGet, "/api/v1/pending", "")
			assert.Equal(t, tt.wantStatus, rec.Code)
			if tt.wantStatus != http.StatusOK {
				return
			}

			var body []map[string]any
			decodeJSON(t, rec, &body)
			require.NotNil(t, body)
			assert.Len(t, body, tt.wantLen)
		})
	}
}

func TestGetPending(t *testing.T) {
	row := pendingRow()
	edited := "Edited comment"
	row.Edits = model.PendingEdits{Comment: &edited}

	rec := do(t, setupMux(&mockQueue{row: row}, nil), http.MethodGet, "/api/v1/pending/7", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var body map[string]any
	decodeJSON(t, rec, &body)
	assert.Equal(t, float64(7), body["id"])
	assert.Equal(t, "owner/repo", body["repository"])
	assert.Equal(t, float64(42), body["number"])
	assert.Equal(t, "approve_with_comment", body["verdict"])
	assert.Equal(t, "Looks good", body["comment"])
	assert.Equal(t, "Edited comment", body["final_comment"])
	assert.Equal(t, true, body["edited"])
	assert.Equal(t, "pending", body["status"])
	assert.Equal(t, testTimeStr, body["created_at"])
	assert.NotContains(t, body, "decided_at")

	annotations, ok := body["final_annotations"].([]any)
	require.True(t, ok)
	assert.Len(t, annotations, 1)
}

func TestGetPending_Errors(t *testing.T) {
	tests := []struct {
		name       string
		path       string
		err        error
		wantStatus int
	}{
		{name: "non-numeric id", path: "/api/v1/pending/abc", wantStatus: http.StatusBadRequest},
		{name: "zero id", path: "/api/v1/pending/0", wantStatus: http.StatusBadRequest},
		{name: "unknown id", path: "/api/v1/pending/9", err: fmt.Errorf("pending 9: %w", driven.ErrNotFound), wantStatus: http.StatusNotFound},
		{name: "store failure", path: "/api/v1/pending/9", err: errors.New("disk I/O error"), wantStatus: http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := do(t, setupMux(&mockQueue{err: tt.err}, nil), http.MethodGet, tt.path, "")
			assert.Equal(t, tt.wantStatus, rec.Code)

			var body map[string]any
			decodeJSON(t, rec, &body)
			assert.NotEmpty(t, body["error"])
		})
	}
}

func TestEditPending(t *testing.T) {
	queue := &mockQueue{row: pendingRow()}
	body := `{"comment": "Nice work", "annotations": [{"file": "a.go", "line": 9, "message": "rename"}]}`

	rec := do(t, setupMux(queue, nil), http.MethodPatch, "/api/v1/pending/7", body)
	require.Equal(t, http.StatusOK, rec.Code)

	require.NotNil(t, queue.gotEdits.Comment)
	assert.Equal(t, "Nice work", *queue.gotEdits.Comment)
	assert.Nil(t, queue.gotEdits.Summary, "absent fields stay unedited")
	assert.True(t, queue.gotEdits.AnnotationsEdited)
	assert.Equal(t, []model.Annotation{{File: "a.go", Line: 9, Message: "rename"}}, queue.gotEdits.Annotations)
	assert.False(t, queue.resetCalled)

	var resp map[string]any
	decodeJSON(t, rec, &resp)
	assert.Equal(t, "Nice work", resp["final_comment"])
}

func TestEditPending_EmptyAnnotationListDeletesAll(t *testing.T) {
	queue := &mockQueue{row: pendingRow()}

	rec := do(t, setupMux(queue, nil), http.MethodPatch, "/api/v1/pending/7", `{"annotations": []}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, queue.gotEdits.AnnotationsEdited)
	assert.Empty(t, queue.gotEdits.Annotations)
}

func TestEditPending_Reset(t *testing.T) {
	queue := &mockQueue{row: pendingRow()}

	rec := do(t, setupMux(queue, nil), http.MethodPatch, "/api/v1/pending/7", `{"reset": true}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, queue.resetCalled)
	assert.True(t, queue.gotEdits.IsZero())
}

func TestEditPending_ResetWithEditsIsOneCall(t *testing.T) {
	row := pendingRow()
	old := "old comment"
	row.Edits = model.PendingEdits{Comment: &old}
	queue := &mockQueue{row: row}

	rec := do(t, setupMux(queue, nil), http.MethodPatch, "/api/v1/pending/7", `{"reset": true, "summary": "fresh"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, queue.resetCalled)
	require.NotNil(t, queue.gotEdits.Summary)
	assert.Equal(t, "fresh", *queue.gotEdits.Summary)

	var resp map[string]any
	decodeJSON(t, rec, &resp)
	assert.Equal(t, "fresh", resp["final_summary"])
	assert.Equal(t, row.Comment, resp["final_comment"], "earlier edits are discarded")
}

func TestEditPending_ResetDecided(t *testing.T) {
	queue := &mockQueue{err: fmt.Errorf("pending 7 is rejected: %w", driven.ErrInvalidTransition)}

	rec := do(t, setupMux(queue, nil), http.MethodPatch, "/api/v1/pending/7", `{"reset": true, "comment": "late"}`)
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.True(t, queue.resetCalled)
}

func TestEditPending_BadInput(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{name: "malformed JSON", body: `{"comment":`},
		{name: "unknown field", body: `{"verdict": "request_changes"}`},
		{name: "annotation without file", body: `{"annotations": [{"file": "", "line": 1, "message": "x"}]}`},
		{name: "annotation with zero line", body: `{"annotations": [{"file": "a.go", "line": 0, "message": "x"}]}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := do(t, setupMux(&mockQueue{row: pendingRow()}, nil), http.MethodPatch, "/api/v1/pending/7", tt.body)
			assert.Equal(t, http.StatusBadRequest, rec.Code)
		})
	}
}

func TestEditPending_Decided(t *testing.T) {
	queue := &mockQueue{err: fmt.Errorf("pending 7 is approved: %w", driven.ErrInvalidTransition)}

	rec := do(t, setupMux(queue, nil), http.MethodPatch, "/api/v1/pending/7", `{"comment": "late"}`)
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestReplaceAnnotation(t *testing.T) {
	queue := &mockQueue{row: pendingRow()}

	rec := do(t, setupMux(queue, nil), http.MethodPut, "/api/v1/pending/7/annotations/0", `{"file": "main.go", "line": 4, "message": "better"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 0, queue.gotIndex)
	require.NotNil(t, queue.gotAnnotation)
	assert.Equal(t, model.Annotation{File: "main.go", Line: 4, Message: "better"}, *queue.gotAnnotation)
}

func TestDeleteAnnotation(t *testing.T) {
	queue := &mockQueue{row: pendingRow()}

	rec := do(t, setupMux(queue, nil), http.MethodDelete, "/api/v1/pending/7/annotations/2", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 2, queue.gotIndex)
	assert.Nil(t, queue.gotAnnotation)
}

func TestAnnotationIndexOutOfRange(t *testing.T) {
	queue := &mockQueue{err: fmt.Errorf("annotation 5 of pending 7: %w", application.ErrInvalidEdit)}

	rec := do(t, setupMux(queue, nil), http.MethodDelete, "/api/v1/pending/7/annotations/5", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(t, setupMux(&mockQueue{}, nil), http.MethodDelete, "/api/v1/pending/7/annotations/-1", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestApprovePending(t *testing.T) {
	t.Run("without body", func(t *testing.T) {
		queue := &mockQueue{row: pendingRow()}
		rec := do(t, setupMux(queue, nil), http.MethodPost, "/api/v1/pending/7/approve", "")
		require.Equal(t, http.StatusOK, rec.Code)
		assert.True(t, queue.gotEdits.IsZero())

		var body map[string]any
		decodeJSON(t, rec, &body)
		assert.Equal(t, "post_approval", body["action"])
		assert.Equal(t, "owner/repo", body["repository"])
		assert.Equal(t, float64(7), body["pending_id"])
	})

	t.Run("with last-minute edit", func(t *testing.T) {
		queue := &mockQueue{row: pendingRow()}
		rec := do(t, setupMux(queue, nil), http.MethodPost, "/api/v1/pending/7/approve", `{"comment": "Ship it"}`)
		require.Equal(t, http.StatusOK, rec.Code)
		require.NotNil(t, queue.gotEdits.Comment)
		assert.Equal(t, "Ship it", *queue.gotEdits.Comment)
	})

	t.Run("already decided", func(t *testing.T) {
		queue := &mockQueue{err: fmt.Errorf("pending 7 is rejected: %w", driven.ErrInvalidTransition)}
		rec := do(t, setupMux(queue, nil), http.MethodPost, "/api/v1/pending/7/approve", "")
		assert.Equal(t, http.StatusConflict, rec.Code)
	})

	t.Run("github failure", func(t *testing.T) {
		queue := &mockQueue{err: errors.New("submit review: 502")}
		rec := do(t, setupMux(queue, nil), http.MethodPost, "/api/v1/pending/7/approve", "")
		assert.Equal(t, http.StatusInternalServerError, rec.Code)
	})
}

func TestRejectPending(t *testing.T) {
	queue := &mockQueue{row: pendingRow()}

	rec := do(t, setupMux(queue, nil), http.MethodPost, "/api/v1/pending/7/reject", `{"reason": "  wrong call  "}`)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "wrong call", queue.gotReason)

	rec = do(t, setupMux(&mockQueue{err: fmt.Errorf("pending 8: %w", driven.ErrNotFound)}, nil), http.MethodPost, "/api/v1/pending/8/reject", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestHistory(t *testing.T) {
	decided := testTime.Add(time.Hour)
	row := pendingRow()
	row.Status = model.PendingStatusRejected
	row.RejectionReason = "not needed"
	row.DecidedAt = &decided
	queue := &mockQueue{pending: []model.PendingApproval{row}, total: 31}

	rec := do(t, setupMux(queue, nil), http.MethodGet, "/api/v1/history/rejected?page=2&per_page=10", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, model.PendingStatusRejected, queue.gotStatus)
	assert.Equal(t, model.Page{Number: 2, PerPage: 10}, queue.gotPage)

	var body struct {
		Items   []map[string]any `json:"items"`
		Total   int              `json:"total"`
		Page    int              `json:"page"`
		PerPage int              `json:"per_page"`
	}
	decodeJSON(t, rec, &body)
	assert.Equal(t, 31, body.Total)
	assert.Equal(t, 2, body.Page)
	assert.Equal(t, 10, body.PerPage)
	require.Len(t, body.Items, 1)
	assert.Equal(t, "not needed", body.Items[0]["rejection_reason"])
	assert.Equal(t, "2026-02-10T13:00:00Z", body.Items[0]["decided_at"])
}

func TestHistory_Defaults(t *testing.T) {
	queue := &mockQueue{}

	rec := do(t, setupMux(queue, nil), http.MethodGet, "/api/v1/history/approved?page=x", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, model.Page{Number: 1, PerPage: model.DefaultPerPage}, queue.gotPage)
}

func TestHistory_RejectsOpenStatus(t *testing.T) {
	rec := do(t, setupMux(&mockQueue{}, nil), http.MethodGet, "/api/v1/history/pending", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestListEscalations(t *testing.T) {
	queue := &mockQueue{escalation: []model.Escalation{{
		RepoFullName: "owner/repo",
		PRNumber:     5,
		HeadSHA:      "def456",
		Reason:       "Automated review timed out after 600 seconds",
		CreatedAt:    testTime,
	}}}

	rec := do(t, setupMux(queue, nil), http.MethodGet, "/api/v1/escalations", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var body []map[string]any
	decodeJSON(t, rec, &body)
	require.Len(t, body, 1)
	assert.Equal(t, "owner/repo", body[0]["repository"])
	assert.Equal(t, float64(5), body[0]["number"])
	assert.Equal(t, "Automated review timed out after 600 seconds", body[0]["reason"])
}

func TestClearEscalation(t *testing.T) {
	queue := &mockQueue{}

	rec := do(t, setupMux(queue, nil), http.MethodDelete, "/api/v1/escalations/owner/repo/5", "")
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "owner/repo", queue.gotRepo)
	assert.Equal(t, 5, queue.gotNumber)

	rec = do(t, setupMux(&mockQueue{err: fmt.Errorf("clear: %w", driven.ErrNotFound)}, nil), http.MethodDelete, "/api/v1/escalations/owner/repo/6", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = do(t, setupMux(&mockQueue{}, nil), http.MethodDelete, "/api/v1/escalations/owner/repo/abc", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(t, setupMux(&mockQueue{}, nil), http.MethodDelete, "/api/v1/escalations/own$er/repo/1", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestRepoReviews(t *testing.T) {
	queue := &mockQueue{reviews: []model.CompletedReview{{
		ID:           1,
		RepoFullName: "owner/repo",
		PRNumber:     3,
		HeadSHA:      "aaa",
		Verdict:      model.VerdictApproveWithoutComment,
		Source:       model.ReviewSourceAutomated,
		ReviewedAt:   testTime,
	}}}

	rec := do(t, setupMux(queue, nil), http.MethodGet, "/api/v1/repos/owner/repo/reviews?limit=5", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "owner/repo", queue.gotRepo)
	assert.Equal(t, 5, queue.gotLimit)

	var body []map[string]any
	decodeJSON(t, rec, &body)
	require.Len(t, body, 1)
	assert.Equal(t, "approve_without_comment", body[0]["verdict"])
	assert.Equal(t, "automated", body[0]["source"])
	annotations, ok := body[0]["annotations"].([]any)
	require.True(t, ok, "annotations is an array, not null")
	assert.Empty(t, annotations)

	rec = do(t, setupMux(&mockQueue{}, nil), http.MethodGet, "/api/v1/repos/owner/repo/reviews?limit=0", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestStats(t *testing.T) {
	queue := &mockQueue{stats: model.ReviewStats{
		TotalReviews:  4,
		ByVerdict:     map[model.VerdictKind]int{model.VerdictApproveWithoutComment: 3, model.VerdictRequestChanges: 1},
		RecentReviews: 2,
		Repositories:  2,
		Pending:       1,
		Escalated:     1,
	}}

	rec := do(t, setupMux(queue, nil), http.MethodGet, "/api/v1/stats", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var body map[string]any
	decodeJSON(t, rec, &body)
	assert.Equal(t, float64(4), body["total_reviews"])
	assert.Equal(t, float64(2), body["recent_reviews"])
	byVerdict, ok := body["by_verdict"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, float64(3), byVerdict["approve_without_comment"])
	assert.Equal(t, float64(0), byVerdict["requires_human_review"], "every verdict is present")
}

func TestTriggerPoll(t *testing.T) {
	t.Run("not running", func(t *testing.T) {
		rec := do(t, setupMux(&mockQueue{}, nil), http.MethodPost, "/api/v1/poll", "")
		assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	})

	t.Run("runs a cycle", func(t *testing.T) {
		poller := &mockPoller{summary: application.CycleSummary{
			CycleID:    "01J0000000000000000000000",
			Discovered: 3,
			Owed:       1,
			Actions:    map[model.ActionKind]int{model.ActionEnqueue: 1},
			Duration:   1500 * time.Millisecond,
		}}
		rec := do(t, setupMux(&mockQueue{}, poller), http.MethodPost, "/api/v1/poll", "")
		require.Equal(t, http.StatusOK, rec.Code)

		var body map[string]any
		decodeJSON(t, rec, &body)
		assert.Equal(t, float64(3), body["discovered"])
		assert.Equal(t, float64(1500), body["duration_ms"])
		actions, ok := body["actions"].(map[string]any)
		require.True(t, ok)
		assert.Equal(t, float64(1), actions["enqueue"])
	})

	t.Run("cycle failure", func(t *testing.T) {
		poller := &mockPoller{err: errors.New("discover review requests: 401")}
		rec := do(t, setupMux(&mockQueue{}, poller), http.MethodPost, "/api/v1/poll", "")
		assert.Equal(t, http.StatusBadGateway, rec.Code)
	})
}

func TestRecoveryMiddleware(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /boom", func(http.ResponseWriter, *http.Request) { panic("boom") })
	wrapped := httphandler.Wrap(mux, slog.Default())

	rec := do(t, wrapped, http.MethodGet, "/boom", "")
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}
