package model

import "time"

// CompletedReview is the immutable record of a terminal decision for one head
// commit of a pull request. At most one exists per (repository, PR, head commit).
type CompletedReview struct {
	ID           int64
	RepoFullName string
	PRNumber     int
	HeadSHA      string
	BaseSHA      string
	Title        string
	Author       string
	Verdict      VerdictKind
	Comment      string
	Summary      string
	Annotations  []Annotation // As posted to GitHub.
	Source       ReviewSource
	PendingID    int64 // Pending approval this review confirmed; 0 for automated reviews.
	ReviewedAt   time.Time
}
