package driven

import (
	"context"

	"github.com/ericfisherdev/reviewgate/internal/domain/model"
)

// GitHubClient defines the driven port for reading pull request state from GitHub.
type GitHubClient interface {
	// FetchReviewRequests returns open pull requests awaiting review from the
	// authenticated user, optionally restricted to the given repositories.
	// Each result carries head and base commit ids.
	FetchReviewRequests(ctx context.Context, repositories []string) ([]model.PullRequest, error)

	// FetchPRStatus returns whether the pull request is open, closed or merged.
	FetchPRStatus(ctx context.Context, repoFullName string, prNumber int) (model.PRStatus, error)
}
