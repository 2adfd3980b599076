// Package viewmodel defines presentation-ready structs for templ components.
// View models decouple template rendering from domain model types.
package viewmodel

// PageViewModel holds the data every dashboard page shares.
type PageViewModel struct {
	Title     string
	Tabs      []TabViewModel
	CSRFToken string
	Flash     string
	Stats     StatsViewModel
}

// TabViewModel is one entry in the dashboard tab bar.
type TabViewModel struct {
	Name   string
	Label  string
	Path   string
	Count  int
	Active bool
}

// StatsViewModel holds the headline counters shown above the tabs.
type StatsViewModel struct {
	TotalReviews  int
	RecentReviews int
	Repositories  int
	Verdicts      []VerdictCountViewModel
}

// VerdictCountViewModel is the number of completed reviews with one verdict.
type VerdictCountViewModel struct {
	Label string
	Count int
}

// ProposalViewModel holds presentation-ready data for a pending approval,
// open or decided.
type ProposalViewModel struct {
	ID           int64
	Key          string
	Repository   string
	Number       int
	Title        string
	Author       string
	URL          string
	ShortSHA     string
	Verdict      string
	VerdictLabel string

	// Final values, as they would be posted.
	Comment     string
	Summary     string
	CommentHTML string
	SummaryHTML string
	Annotations []AnnotationViewModel

	// The agent's proposal as queued. Only set when Edited.
	OriginalCommentHTML string
	OriginalSummaryHTML string
	OriginalAnnotations []AnnotationViewModel

	Edited          bool
	Open            bool
	Status          string
	RejectionReason string
	CreatedAt       string
	DecidedAt       string

	ApproveURL string
	RejectURL  string
	EditURL    string
	ResetURL   string
}

// AnnotationViewModel is one inline comment of a proposal.
type AnnotationViewModel struct {
	Index       int
	File        string
	Line        int
	Message     string
	MessageHTML string
	DeleteURL   string
}

// EscalationViewModel holds presentation-ready data for an escalated PR.
type EscalationViewModel struct {
	Key        string
	Repository string
	Number     int
	Title      string
	Author     string
	URL        string
	ShortSHA   string
	Reason     string
	CreatedAt  string
	ClearURL   string
}

// HistoryViewModel is one page of decided proposals.
type HistoryViewModel struct {
	Status    string
	Proposals []ProposalViewModel
	Page      int
	Total     int
	PrevURL   string
	NextURL   string
}
