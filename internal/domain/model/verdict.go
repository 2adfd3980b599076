package model

// Annotation is a single inline comment anchored to a file and line.
type Annotation struct {
	File    string
	Line    int
	Message string
}

// Verdict is the decision agent's answer for one pull request. Which payload
// fields are meaningful depends on Kind: Comment for approve_with_comment,
// Summary and Annotations for request_changes, Reason for requires_human_review.
type Verdict struct {
	Kind        VerdictKind
	Comment     string
	Summary     string
	Reason      string
	Annotations []Annotation
}

// CloneAnnotations returns a copy of the slice so callers can edit it freely.
func CloneAnnotations(in []Annotation) []Annotation {
	if in == nil {
		return nil
	}
	out := make([]Annotation, len(in))
	copy(out, in)
	return out
}
