package github

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	gh "github.com/google/go-github/v82/github"

	"github.com/ericfisherdev/reviewgate/internal/domain/port/driven"
)

// Compile-time interface satisfaction check.
var _ driven.GitHubWriter = (*Client)(nil)

// ErrStaleCommit indicates GitHub rejected a review because the commit it
// was made against is no longer part of the pull request.
var ErrStaleCommit = errors.New("review commit is no longer part of the pull request")

// SubmitReview creates a pull request review with optional inline comments,
// pinned to req.CommitID when set.
func (c *Client) SubmitReview(ctx context.Context, repoFullName string, prNumber int, req driven.ReviewRequest) error {
	owner, repo, err := splitRepo(repoFullName)
	if err != nil {
		return err
	}

	draftComments := make([]*gh.DraftReviewComment, 0, len(req.Comments))
	for _, dlc := range req.Comments {
		draftComments = append(draftComments, &gh.DraftReviewComment{
			Path: gh.Ptr(dlc.Path),
			Body: gh.Ptr(dlc.Body),
			Line: gh.Ptr(dlc.Line),
			Side: gh.Ptr("RIGHT"),
		})
	}

	reviewReq := &gh.PullRequestReviewRequest{
		Event:    gh.Ptr(req.Event),
		Comments: draftComments,
	}
	if req.CommitID != "" {
		reviewReq.CommitID = gh.Ptr(req.CommitID)
	}

	// GitHub rejects REQUEST_CHANGES without a body; APPROVE may omit it.
	if req.Body != "" || req.Event != driven.ReviewEventApprove {
		reviewReq.Body = gh.Ptr(req.Body)
	}

	_, resp, err := c.gh.PullRequests.CreateReview(ctx, owner, repo, prNumber, reviewReq)
	if err != nil {
		var ghErr *gh.ErrorResponse
		if errors.As(err, &ghErr) && ghErr.Response != nil && ghErr.Response.StatusCode == http.StatusUnprocessableEntity {
			return fmt.Errorf("submitting review for %s#%d: %w: %w", repoFullName, prNumber, ErrStaleCommit, err)
		}
		return fmt.Errorf("submitting review for %s#%d: %w", repoFullName, prNumber, err)
	}
	logRateLimit(resp, repoFullName+"/reviews", 0, 1)

	return nil
}
