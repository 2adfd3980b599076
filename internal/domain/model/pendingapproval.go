package model

import "time"

// PendingEdits captures human modifications made to a proposal before it is
// confirmed. A nil Comment or Summary means the field was not edited.
type PendingEdits struct {
	Comment           *string
	Summary           *string
	Annotations       []Annotation
	AnnotationsEdited bool
}

// IsZero reports whether no field has been edited.
func (e PendingEdits) IsZero() bool {
	return e.Comment == nil && e.Summary == nil && !e.AnnotationsEdited
}

// Merge overlays the fields set in other onto e.
func (e PendingEdits) Merge(other PendingEdits) PendingEdits {
	if other.Comment != nil {
		e.Comment = other.Comment
	}
	if other.Summary != nil {
		e.Summary = other.Summary
	}
	if other.AnnotationsEdited {
		e.Annotations = CloneAnnotations(other.Annotations)
		e.AnnotationsEdited = true
	}
	return e
}

// PendingApproval is a verdict awaiting human confirmation. While Status is
// pending the proposal may be superseded or edited; afterwards it is history.
type PendingApproval struct {
	ID           int64
	RepoFullName string
	PRNumber     int
	Title        string
	Author       string
	URL          string
	HeadSHA      string
	BaseSHA      string

	// Proposal as returned by the decision agent. Never changed by edits.
	Verdict     VerdictKind
	Comment     string
	Summary     string
	Reason      string
	Annotations []Annotation

	Edits           PendingEdits
	Status          PendingStatus
	RejectionReason string

	CreatedAt time.Time
	UpdatedAt time.Time
	DecidedAt *time.Time
}

// FinalComment returns the edited comment if present, else the proposed one.
func (p PendingApproval) FinalComment() string {
	if p.Edits.Comment != nil {
		return *p.Edits.Comment
	}
	return p.Comment
}

// FinalSummary returns the edited summary if present, else the proposed one.
func (p PendingApproval) FinalSummary() string {
	if p.Edits.Summary != nil {
		return *p.Edits.Summary
	}
	return p.Summary
}

// FinalAnnotations returns the edited annotations if present, else the proposed ones.
func (p PendingApproval) FinalAnnotations() []Annotation {
	if p.Edits.AnnotationsEdited {
		return p.Edits.Annotations
	}
	return p.Annotations
}

// IsEdited reports whether a human changed any part of the proposal.
func (p PendingApproval) IsEdited() bool {
	return !p.Edits.IsZero()
}

// Key returns the "owner/repo#number" identifier of the pull request.
func (p PendingApproval) Key() string {
	return PRKey(p.RepoFullName, p.PRNumber)
}
