package driven

import (
	"context"
	"errors"

	"github.com/ericfisherdev/reviewgate/internal/domain/model"
)

// Sentinel errors returned by DecisionAgent implementations.
var (
	// ErrMalformedOutput indicates the agent ran but produced no usable verdict.
	ErrMalformedOutput = errors.New("agent output contained no valid verdict")

	// ErrAgentTimeout indicates the agent did not finish within its time limit.
	ErrAgentTimeout = errors.New("agent timed out")
)

// DecisionAgent reviews a pull request and returns a verdict.
type DecisionAgent interface {
	Review(ctx context.Context, pr model.PullRequest) (model.Verdict, error)
}
