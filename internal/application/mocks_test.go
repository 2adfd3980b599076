package application_test

import (
	"context"
	"slices"
	"sync"
	"time"

	"github.com/ericfisherdev/reviewgate/internal/domain/model"
	"github.com/ericfisherdev/reviewgate/internal/domain/port/driven"
)

// --- In-memory store ---

// memStore implements ReviewStore, PendingStore, EscalationStore and
// StatsStore with the same constraints as the SQLite store.
type memStore struct {
	mu          sync.Mutex
	nextID      int64
	reviews     []model.CompletedReview
	pending     []model.PendingApproval
	escalations []model.Escalation

	// reviewWriteErr, when set, is returned once by the next completed review write.
	reviewWriteErr error
}

var (
	_ driven.ReviewStore     = (*memStore)(nil)
	_ driven.PendingStore    = (*memStore)(nil)
	_ driven.EscalationStore = (*memStore)(nil)
	_ driven.StatsStore      = (*memStore)(nil)
)

func newMemStore() *memStore {
	return &memStore{}
}

func (m *memStore) id() int64 {
	m.nextID++
	return m.nextID
}

func (m *memStore) insertReview(review model.CompletedReview) (int64, error) {
	if m.reviewWriteErr != nil {
		err := m.reviewWriteErr
		m.reviewWriteErr = nil
		return 0, err
	}
	for _, r := range m.reviews {
		if r.RepoFullName == review.RepoFullName && r.PRNumber == review.PRNumber && r.HeadSHA == review.HeadSHA {
			return 0, driven.ErrConstraintViolation
		}
	}
	review.ID = m.id()
	if review.ReviewedAt.IsZero() {
		review.ReviewedAt = time.Now().UTC()
	}
	review.Annotations = model.CloneAnnotations(review.Annotations)
	m.reviews = append(m.reviews, review)
	return review.ID, nil
}

func (m *memStore) UpsertCompletedReview(_ context.Context, review model.CompletedReview) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.insertReview(review)
}

func (m *memStore) GetForCommit(_ context.Context, repo string, number int, head string) (*model.CompletedReview, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, r := range m.reviews {
		if r.RepoFullName == repo && r.PRNumber == number && r.HeadSHA == head {
			return &r, nil
		}
	}
	return nil, nil
}

func (m *memStore) GetLatest(_ context.Context, repo string, number int) (*model.CompletedReview, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := len(m.reviews) - 1; i >= 0; i-- {
		if r := m.reviews[i]; r.RepoFullName == repo && r.PRNumber == number {
			return &r, nil
		}
	}
	return nil, nil
}

func (m *memStore) ListByRepo(_ context.Context, repo string, limit int) ([]model.CompletedReview, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []model.CompletedReview{}
	for i := len(m.reviews) - 1; i >= 0 && len(out) < limit; i-- {
		if m.reviews[i].RepoFullName == repo {
			out = append(out, m.reviews[i])
		}
	}
	return out, nil
}

func (m *memStore) ListRecent(_ context.Context, limit int) ([]model.CompletedReview, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []model.CompletedReview{}
	for i := len(m.reviews) - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, m.reviews[i])
	}
	return out, nil
}

func (m *memStore) UpsertPending(_ context.Context, candidate model.PendingApproval) (model.PendingApproval, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := time.Now().UTC()
	for i := range m.pending {
		p := &m.pending[i]
		if p.RepoFullName == candidate.RepoFullName && p.PRNumber == candidate.PRNumber && p.Status == model.PendingStatusPending {
			candidate.ID = p.ID
			candidate.CreatedAt = p.CreatedAt
			candidate.UpdatedAt = now
			candidate.Status = model.PendingStatusPending
			candidate.Edits = model.PendingEdits{}
			candidate.Annotations = model.CloneAnnotations(candidate.Annotations)
			*p = candidate
			return *p, nil
		}
	}

	candidate.ID = m.id()
	candidate.Status = model.PendingStatusPending
	candidate.CreatedAt = now
	candidate.UpdatedAt = now
	candidate.Annotations = model.CloneAnnotations(candidate.Annotations)
	m.pending = append(m.pending, candidate)
	return candidate, nil
}

func (m *memStore) find(id int64) *model.PendingApproval {
	for i := range m.pending {
		if m.pending[i].ID == id {
			return &m.pending[i]
		}
	}
	return nil
}

func (m *memStore) GetByID(_ context.Context, id int64) (*model.PendingApproval, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if p := m.find(id); p != nil {
		cp := *p
		return &cp, nil
	}
	return nil, nil
}

func (m *memStore) GetOpen(_ context.Context, repo string, number int) (*model.PendingApproval, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, p := range m.pending {
		if p.RepoFullName == repo && p.PRNumber == number && p.Status == model.PendingStatusPending {
			return &p, nil
		}
	}
	return nil, nil
}

func (m *memStore) GetLatestForCommit(_ context.Context, repo string, number int, head string) (*model.PendingApproval, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := len(m.pending) - 1; i >= 0; i-- {
		if p := m.pending[i]; p.RepoFullName == repo && p.PRNumber == number && p.HeadSHA == head {
			return &p, nil
		}
	}
	return nil, nil
}

func (m *memStore) ListOpen(_ context.Context) ([]model.PendingApproval, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []model.PendingApproval{}
	for _, p := range m.pending {
		if p.Status == model.PendingStatusPending {
			out = append(out, p)
		}
	}
	return out, nil
}

func (m *memStore) ListByStatus(_ context.Context, status model.PendingStatus, page model.Page) ([]model.PendingApproval, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var all []model.PendingApproval
	for _, p := range m.pending {
		if p.Status == status {
			all = append(all, p)
		}
	}
	page = page.Normalize()
	start := min(page.Offset(), len(all))
	end := min(start+page.PerPage, len(all))
	return slices.Clone(all[start:end]), len(all), nil
}

func (m *memStore) requireOpen(id int64) (*model.PendingApproval, error) {
	p := m.find(id)
	if p == nil {
		return nil, driven.ErrNotFound
	}
	if p.Status != model.PendingStatusPending {
		return nil, driven.ErrInvalidTransition
	}
	return p, nil
}

func (m *memStore) SaveEdits(_ context.Context, id int64, edits model.PendingEdits) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, err := m.requireOpen(id)
	if err != nil {
		return err
	}
	p.Edits = edits
	return nil
}

func (m *memStore) SetStatus(_ context.Context, id int64, status model.PendingStatus, reason string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if status != model.PendingStatusRejected && status != model.PendingStatusOutdated {
		return driven.ErrInvalidTransition
	}
	p, err := m.requireOpen(id)
	if err != nil {
		return err
	}
	now := time.Now().UTC()
	p.Status = status
	if status == model.PendingStatusRejected {
		p.RejectionReason = reason
	}
	p.DecidedAt = &now
	return nil
}

func (m *memStore) Approve(_ context.Context, id int64, edits model.PendingEdits, review model.CompletedReview) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, err := m.requireOpen(id)
	if err != nil {
		return err
	}
	review.PendingID = id
	review.Source = model.ReviewSourceHuman
	if _, err := m.insertReview(review); err != nil {
		return err
	}
	now := time.Now().UTC()
	p.Edits = edits
	p.Status = model.PendingStatusApproved
	p.DecidedAt = &now
	return nil
}

func (m *memStore) Create(_ context.Context, marker model.Escalation) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, e := range m.escalations {
		if e.RepoFullName == marker.RepoFullName && e.PRNumber == marker.PRNumber {
			return driven.ErrAlreadyEscalated
		}
	}
	marker.ID = m.id()
	marker.CreatedAt = time.Now().UTC()
	m.escalations = append(m.escalations, marker)
	return nil
}

func (m *memStore) Get(_ context.Context, repo string, number int) (*model.Escalation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, e := range m.escalations {
		if e.RepoFullName == repo && e.PRNumber == number {
			return &e, nil
		}
	}
	return nil, nil
}

func (m *memStore) ListAll(_ context.Context) ([]model.Escalation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return slices.Clone(m.escalations), nil
}

func (m *memStore) Clear(_ context.Context, repo string, number int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i, e := range m.escalations {
		if e.RepoFullName == repo && e.PRNumber == number {
			m.escalations = slices.Delete(m.escalations, i, i+1)
			return nil
		}
	}
	return driven.ErrNotFound
}

func (m *memStore) ReviewStats(_ context.Context, since time.Time) (model.ReviewStats, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	stats := model.ReviewStats{ByVerdict: map[model.VerdictKind]int{}}
	repos := map[string]bool{}
	for _, r := range m.reviews {
		stats.TotalReviews++
		stats.ByVerdict[r.Verdict]++
		repos[r.RepoFullName] = true
		if !r.ReviewedAt.Before(since) {
			stats.RecentReviews++
		}
	}
	stats.Repositories = len(repos)
	for _, p := range m.pending {
		switch p.Status {
		case model.PendingStatusPending:
			stats.Pending++
		case model.PendingStatusApproved:
			stats.Approved++
		case model.PendingStatusRejected:
			stats.Rejected++
		case model.PendingStatusOutdated:
			stats.Outdated++
		}
	}
	stats.Escalated = len(m.escalations)
	return stats, nil
}

func (m *memStore) openCount(repo string, number int) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int
	for _, p := range m.pending {
		if p.RepoFullName == repo && p.PRNumber == number && p.Status == model.PendingStatusPending {
			n++
		}
	}
	return n
}

func (m *memStore) reviewCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.reviews)
}

// --- GitHub writer ---

type submitCall struct {
	RepoFullName string
	PRNumber     int
	Request      driven.ReviewRequest
}

type mockWriter struct {
	mu    sync.Mutex
	calls []submitCall
	err   error
}

func (w *mockWriter) SubmitReview(_ context.Context, repo string, number int, req driven.ReviewRequest) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.err != nil {
		return w.err
	}
	w.calls = append(w.calls, submitCall{RepoFullName: repo, PRNumber: number, Request: req})
	return nil
}

func (w *mockWriter) submitted() []submitCall {
	w.mu.Lock()
	defer w.mu.Unlock()
	return slices.Clone(w.calls)
}

// --- Notifier ---

type mockNotifier struct {
	mu     sync.Mutex
	events []model.Notification
}

func (n *mockNotifier) Notify(_ context.Context, notification model.Notification) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.events = append(n.events, notification)
	return nil
}

func (n *mockNotifier) received() []model.NotificationEvent {
	n.mu.Lock()
	defer n.mu.Unlock()
	out := make([]model.NotificationEvent, len(n.events))
	for i, e := range n.events {
		out[i] = e.Event
	}
	return out
}

// --- GitHub client ---

type mockGitHubClient struct {
	mu       sync.Mutex
	prs      []model.PullRequest
	fetchErr error
	statuses map[string]model.PRStatus
	repos    [][]string
}

func (c *mockGitHubClient) FetchReviewRequests(_ context.Context, repositories []string) ([]model.PullRequest, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.repos = append(c.repos, repositories)
	if c.fetchErr != nil {
		return nil, c.fetchErr
	}
	return slices.Clone(c.prs), nil
}

func (c *mockGitHubClient) FetchPRStatus(_ context.Context, repo string, number int) (model.PRStatus, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if status, ok := c.statuses[model.PRKey(repo, number)]; ok {
		return status, nil
	}
	return model.PRStatusOpen, nil
}

// --- Decision agent ---

type mockAgent struct {
	mu     sync.Mutex
	review func(ctx context.Context, pr model.PullRequest) (model.Verdict, error)
	calls  []string
}

func (a *mockAgent) Review(ctx context.Context, pr model.PullRequest) (model.Verdict, error) {
	a.mu.Lock()
	a.calls = append(a.calls, pr.Key())
	a.mu.Unlock()
	return a.review(ctx, pr)
}

func (a *mockAgent) reviewed() []string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return slices.Clone(a.calls)
}

func fixedVerdict(v model.Verdict) func(context.Context, model.PullRequest) (model.Verdict, error) {
	return func(context.Context, model.PullRequest) (model.Verdict, error) {
		return v, nil
	}
}

func makePR(repo string, number int, head string) model.PullRequest {
	return model.PullRequest{
		Number:       number,
		RepoFullName: repo,
		Title:        "Add widget",
		Author:       "alice",
		URL:          "https://github.com/" + repo + "/pull/1",
		Status:       model.PRStatusOpen,
		HeadSHA:      head,
		BaseSHA:      "base000",
	}
}
