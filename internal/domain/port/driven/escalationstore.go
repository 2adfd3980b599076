package driven

import (
	"context"
	"errors"

	"github.com/ericfisherdev/reviewgate/internal/domain/model"
)

// ErrAlreadyEscalated indicates an escalation marker already exists for the PR.
// Callers treat it as a no-op.
var ErrAlreadyEscalated = errors.New("pull request already escalated")

// EscalationStore defines the driven port for escalation markers.
// Clear returns ErrNotFound if the PR is not escalated.
type EscalationStore interface {
	Create(ctx context.Context, marker model.Escalation) error
	// Get returns nil, nil when the PR is not escalated.
	Get(ctx context.Context, repoFullName string, prNumber int) (*model.Escalation, error)
	ListAll(ctx context.Context) ([]model.Escalation, error)
	Clear(ctx context.Context, repoFullName string, prNumber int) error
}
