package model

import (
	"fmt"
	"time"
)

// PullRequest is a snapshot of a pull request at the moment it was discovered.
type PullRequest struct {
	Number       int
	RepoFullName string
	Title        string
	Author       string
	URL          string
	Status       PRStatus
	IsDraft      bool
	HeadSHA      string // Current head commit; compared against stored reviews on every poll.
	BaseSHA      string
	UpdatedAt    time.Time
}

// Key returns the "owner/repo#number" identifier used for logging and locking.
func (pr PullRequest) Key() string {
	return PRKey(pr.RepoFullName, pr.Number)
}

// PRKey formats a repository and PR number as "owner/repo#number".
func PRKey(repoFullName string, number int) string {
	return fmt.Sprintf("%s#%d", repoFullName, number)
}

// ShortSHA returns the first eight characters of a commit id.
func ShortSHA(sha string) string {
	if len(sha) > 8 {
		return sha[:8]
	}
	return sha
}
