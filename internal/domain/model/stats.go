package model

// ReviewStats summarizes reviewing activity for the dashboard and CLI.
type ReviewStats struct {
	TotalReviews  int
	ByVerdict     map[VerdictKind]int
	RecentReviews int // Completed in the trailing seven days.
	Repositories  int
	Pending       int
	Approved      int
	Rejected      int
	Outdated      int
	Escalated     int
}

// Page selects a window of a history listing. Number is one-based.
type Page struct {
	Number  int
	PerPage int
}

// DefaultPerPage is used when a caller does not specify a page size.
const DefaultPerPage = 50

// Normalize clamps the page to sane bounds.
func (p Page) Normalize() Page {
	if p.Number < 1 {
		p.Number = 1
	}
	if p.PerPage < 1 {
		p.PerPage = DefaultPerPage
	}
	if p.PerPage > 200 {
		p.PerPage = 200
	}
	return p
}

// Offset returns the number of rows to skip.
func (p Page) Offset() int {
	n := p.Normalize()
	return (n.Number - 1) * n.PerPage
}
