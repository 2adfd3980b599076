package model

import "time"

// Escalation marks a pull request as permanently removed from automated
// review until an operator clears it. It is independent of the head commit.
type Escalation struct {
	ID           int64
	RepoFullName string
	PRNumber     int
	HeadSHA      string // Commit under review when the escalation happened.
	Title        string
	Author       string
	URL          string
	Reason       string
	CreatedAt    time.Time
}

// Key returns the "owner/repo#number" identifier of the pull request.
func (e Escalation) Key() string {
	return PRKey(e.RepoFullName, e.PRNumber)
}
