package driven

import "context"

// Review events accepted by GitHubWriter.SubmitReview.
const (
	ReviewEventApprove        = "APPROVE"
	ReviewEventRequestChanges = "REQUEST_CHANGES"
)

// DraftLineComment represents a single inline comment to be submitted as part
// of a pull request review.
type DraftLineComment struct {
	Path string // File path relative to repository root.
	Line int    // Source file line number on the RIGHT side.
	Body string
}

// ReviewRequest is the input to GitHubWriter.SubmitReview.
type ReviewRequest struct {
	CommitID string // HEAD SHA the decision was made against.
	Event    string
	Body     string
	Comments []DraftLineComment
}

// GitHubWriter defines the driven port for GitHub write operations.
// It is separate from GitHubClient so the dashboard can be wired without
// discovery and tests can observe writes alone.
type GitHubWriter interface {
	SubmitReview(ctx context.Context, repoFullName string, prNumber int, req ReviewRequest) error
}
