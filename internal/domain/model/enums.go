package model

// PRStatus represents the state of a pull request.
type PRStatus string

const (
	PRStatusOpen   PRStatus = "open"
	PRStatusClosed PRStatus = "closed"
	PRStatusMerged PRStatus = "merged"
)

// IsFinished reports whether the pull request can no longer receive reviews.
func (s PRStatus) IsFinished() bool {
	return s == PRStatusClosed || s == PRStatusMerged
}

// VerdictKind is one of the four outcomes a decision agent can return.
type VerdictKind string

const (
	VerdictApproveWithoutComment VerdictKind = "approve_without_comment"
	VerdictApproveWithComment    VerdictKind = "approve_with_comment"
	VerdictRequestChanges        VerdictKind = "request_changes"
	VerdictRequiresHumanReview   VerdictKind = "requires_human_review"
)

// AllVerdictKinds lists every verdict in display order.
var AllVerdictKinds = []VerdictKind{
	VerdictApproveWithoutComment,
	VerdictApproveWithComment,
	VerdictRequestChanges,
	VerdictRequiresHumanReview,
}

// Valid reports whether k is a known verdict.
func (k VerdictKind) Valid() bool {
	switch k {
	case VerdictApproveWithoutComment, VerdictApproveWithComment, VerdictRequestChanges, VerdictRequiresHumanReview:
		return true
	}
	return false
}

// PendingStatus is the lifecycle state of a pending approval.
type PendingStatus string

const (
	PendingStatusPending  PendingStatus = "pending"
	PendingStatusApproved PendingStatus = "approved"
	PendingStatusRejected PendingStatus = "rejected"
	PendingStatusOutdated PendingStatus = "outdated"
)

// IsTerminal reports whether the status can no longer change.
func (s PendingStatus) IsTerminal() bool {
	return s == PendingStatusApproved || s == PendingStatusRejected || s == PendingStatusOutdated
}

// ParseHistoryStatus validates a terminal status name used by history views.
func ParseHistoryStatus(s string) (PendingStatus, bool) {
	status := PendingStatus(s)
	if !status.IsTerminal() {
		return "", false
	}
	return status, true
}

// Eligibility classifies whether a (repository, PR, head commit) is owed a review.
type Eligibility string

const (
	EligibilityOwed                  Eligibility = "owed"
	EligibilitySkipReviewed          Eligibility = "skip_reviewed"
	EligibilitySkipPendingSameCommit Eligibility = "skip_pending_same_commit"
	EligibilitySkipEscalated         Eligibility = "skip_escalated"
)

// ReviewSource records who made the decision behind a completed review.
type ReviewSource string

const (
	ReviewSourceAutomated ReviewSource = "automated"
	ReviewSourceHuman     ReviewSource = "human"
)

// ActionKind identifies the side effect produced by applying a verdict.
type ActionKind string

const (
	ActionNone              ActionKind = "none"
	ActionPostApproval      ActionKind = "post_approval"
	ActionPostChangeRequest ActionKind = "post_change_request"
	ActionEnqueue           ActionKind = "enqueue"
	ActionEscalate          ActionKind = "escalate"
)

// PostsToGitHub reports whether the action results in a GitHub review.
func (k ActionKind) PostsToGitHub() bool {
	return k == ActionPostApproval || k == ActionPostChangeRequest
}
