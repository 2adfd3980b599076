// Package driven defines secondary port interfaces for external adapters.
package driven

import (
	"context"
	"errors"
	"time"

	"github.com/ericfisherdev/reviewgate/internal/domain/model"
)

// ErrConstraintViolation indicates a completed review already exists for the
// same (repository, PR, head commit). Callers treat it as a lost race.
var ErrConstraintViolation = errors.New("completed review already exists for commit")

// ReviewStore defines the driven port for completed review persistence.
// Completed reviews are write-once: UpsertCompletedReview returns
// ErrConstraintViolation instead of replacing an existing row.
type ReviewStore interface {
	UpsertCompletedReview(ctx context.Context, review model.CompletedReview) (int64, error)
	// GetForCommit returns nil, nil when the commit has not been reviewed.
	GetForCommit(ctx context.Context, repoFullName string, prNumber int, headSHA string) (*model.CompletedReview, error)
	// GetLatest returns the most recent completed review for the PR, or nil, nil.
	GetLatest(ctx context.Context, repoFullName string, prNumber int) (*model.CompletedReview, error)
	ListByRepo(ctx context.Context, repoFullName string, limit int) ([]model.CompletedReview, error)
	ListRecent(ctx context.Context, limit int) ([]model.CompletedReview, error)
}

// StatsStore aggregates counts across all review state tables.
type StatsStore interface {
	ReviewStats(ctx context.Context, since time.Time) (model.ReviewStats, error)
}
