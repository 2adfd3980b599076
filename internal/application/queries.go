package application

import (
	"context"
	"fmt"
	"time"

	"github.com/ericfisherdev/reviewgate/internal/domain/model"
	"github.com/ericfisherdev/reviewgate/internal/domain/port/driven"
)

// recentWindow is the trailing period counted as recent in ReviewStats.
const recentWindow = 7 * 24 * time.Hour

// ListPending returns every open pending approval, oldest first.
func (m *StateMachine) ListPending(ctx context.Context) ([]model.PendingApproval, error) {
	return m.pending.ListOpen(ctx)
}

// GetPending returns a pending approval of any status by id.
func (m *StateMachine) GetPending(ctx context.Context, id int64) (model.PendingApproval, error) {
	row, err := m.pending.GetByID(ctx, id)
	if err != nil {
		return model.PendingApproval{}, err
	}
	if row == nil {
		return model.PendingApproval{}, fmt.Errorf("pending %d: %w", id, driven.ErrNotFound)
	}
	return *row, nil
}

// History returns one page of decided approvals with the given terminal
// status and the total number of such rows.
func (m *StateMachine) History(ctx context.Context, status model.PendingStatus, page model.Page) ([]model.PendingApproval, int, error) {
	if !status.IsTerminal() {
		return nil, 0, fmt.Errorf("history for status %q: %w", status, ErrInvalidStatus)
	}
	return m.pending.ListByStatus(ctx, status, page)
}

// ListEscalations returns every active escalation marker.
func (m *StateMachine) ListEscalations(ctx context.Context) ([]model.Escalation, error) {
	return m.escalations.ListAll(ctx)
}

// RepoHistory returns the latest completed reviews for a repository.
func (m *StateMachine) RepoHistory(ctx context.Context, repoFullName string, limit int) ([]model.CompletedReview, error) {
	return m.reviews.ListByRepo(ctx, repoFullName, limit)
}

// RecentReviews returns the latest completed reviews across repositories.
func (m *StateMachine) RecentReviews(ctx context.Context, limit int) ([]model.CompletedReview, error) {
	return m.reviews.ListRecent(ctx, limit)
}

// Stats aggregates review counts, counting the last seven days as recent.
func (m *StateMachine) Stats(ctx context.Context) (model.ReviewStats, error) {
	return m.stats.ReviewStats(ctx, time.Now().UTC().Add(-recentWindow))
}
