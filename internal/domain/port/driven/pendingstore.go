package driven

import (
	"context"
	"errors"

	"github.com/ericfisherdev/reviewgate/internal/domain/model"
)

// Sentinel errors returned by PendingStore and EscalationStore implementations.
var (
	// ErrNotFound indicates the requested pending approval or escalation does not exist.
	ErrNotFound = errors.New("not found")

	// ErrInvalidTransition indicates the pending approval is already terminal.
	ErrInvalidTransition = errors.New("pending approval is no longer pending")
)

// PendingStore defines the driven port for the human-confirmation queue.
//
// UpsertPending supersedes the pending row for (repository, PR) in place, or
// inserts a new row when none is pending. Terminal rows are never modified.
// SaveEdits, SetStatus and Approve return ErrNotFound when the id is unknown
// and ErrInvalidTransition when the row is already terminal.
type PendingStore interface {
	UpsertPending(ctx context.Context, candidate model.PendingApproval) (model.PendingApproval, error)
	// GetByID returns nil, nil when no row has the id.
	GetByID(ctx context.Context, id int64) (*model.PendingApproval, error)
	// GetOpen returns the pending-status row for the PR, or nil, nil.
	GetOpen(ctx context.Context, repoFullName string, prNumber int) (*model.PendingApproval, error)
	// GetLatestForCommit returns the newest row of any status proposed against
	// the given head commit, or nil, nil.
	GetLatestForCommit(ctx context.Context, repoFullName string, prNumber int, headSHA string) (*model.PendingApproval, error)
	ListOpen(ctx context.Context) ([]model.PendingApproval, error)
	ListByStatus(ctx context.Context, status model.PendingStatus, page model.Page) ([]model.PendingApproval, int, error)
	SaveEdits(ctx context.Context, id int64, edits model.PendingEdits) error
	// SetStatus moves a pending row to rejected or outdated. reason is stored
	// for rejections and ignored otherwise.
	SetStatus(ctx context.Context, id int64, status model.PendingStatus, reason string) error
	// Approve marks the row approved with the final edits and records the
	// completed review atomically.
	Approve(ctx context.Context, id int64, edits model.PendingEdits, review model.CompletedReview) error
}
