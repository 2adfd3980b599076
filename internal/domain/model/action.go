package model

// Action is the concrete side effect produced by applying a verdict or
// confirming a pending approval.
type Action struct {
	Kind         ActionKind
	RepoFullName string
	PRNumber     int
	HeadSHA      string
	Body         string
	Annotations  []Annotation
	PendingID    int64
	Reason       string
}

// NoAction is returned when nothing was done, e.g. the PR was no longer owed.
var NoAction = Action{Kind: ActionNone}
