package httphandler

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/ericfisherdev/reviewgate/internal/application"
	"github.com/ericfisherdev/reviewgate/internal/domain/model"
)

// writeJSON marshals v to JSON and writes it to the response with the given
// status code. If marshaling fails, a 500 error is written instead.
func writeJSON(w http.ResponseWriter, status int, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"error":"internal server error"}`))
		return
	}

	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_, _ = w.Write(data)
}

// writeError writes a JSON error response with the given status code and message.
func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, errorResponse{Error: message})
}

// errorResponse is the standard error response body.
type errorResponse struct {
	Error string `json:"error"`
}

// HealthResponse is the JSON response for the health check endpoint.
type HealthResponse struct {
	Status string `json:"status"`
	Time   string `json:"time"`
}

// AnnotationJSON is the wire form of an inline comment, in both directions.
type AnnotationJSON struct {
	File    string `json:"file"`
	Line    int    `json:"line"`
	Message string `json:"message"`
}

// PendingResponse is the JSON representation of a pending approval. The
// proposal fields hold what the agent suggested; the final_* fields hold what
// would be posted on approval.
type PendingResponse struct {
	ID               int64            `json:"id"`
	Repository       string           `json:"repository"`
	Number           int              `json:"number"`
	Title            string           `json:"title"`
	Author           string           `json:"author"`
	URL              string           `json:"url"`
	HeadSHA          string           `json:"head_sha"`
	Verdict          string           `json:"verdict"`
	Comment          string           `json:"comment"`
	Summary          string           `json:"summary"`
	Annotations      []AnnotationJSON `json:"annotations"`
	FinalComment     string           `json:"final_comment"`
	FinalSummary     string           `json:"final_summary"`
	FinalAnnotations []AnnotationJSON `json:"final_annotations"`
	Edited           bool             `json:"edited"`
	Status           string           `json:"status"`
	RejectionReason  string           `json:"rejection_reason,omitempty"`
	CreatedAt        string           `json:"created_at"`
	UpdatedAt        string           `json:"updated_at"`
	DecidedAt        *string          `json:"decided_at,omitempty"`
}

// HistoryResponse is one page of decided pending approvals.
type HistoryResponse struct {
	Items   []PendingResponse `json:"items"`
	Total   int               `json:"total"`
	Page    int               `json:"page"`
	PerPage int               `json:"per_page"`
}

// EscalationResponse is the JSON representation of an escalation marker.
type EscalationResponse struct {
	Repository string `json:"repository"`
	Number     int    `json:"number"`
	HeadSHA    string `json:"head_sha"`
	Title      string `json:"title"`
	Author     string `json:"author"`
	URL        string `json:"url"`
	Reason     string `json:"reason"`
	CreatedAt  string `json:"created_at"`
}

// ReviewResponse is the JSON representation of a completed review.
type ReviewResponse struct {
	ID          int64            `json:"id"`
	Repository  string           `json:"repository"`
	Number      int              `json:"number"`
	HeadSHA     string           `json:"head_sha"`
	Title       string           `json:"title"`
	Author      string           `json:"author"`
	Verdict     string           `json:"verdict"`
	Comment     string           `json:"comment,omitempty"`
	Summary     string           `json:"summary,omitempty"`
	Annotations []AnnotationJSON `json:"annotations"`
	Source      string           `json:"source"`
	PendingID   int64            `json:"pending_id,omitempty"`
	ReviewedAt  string           `json:"reviewed_at"`
}

// StatsResponse is the JSON representation of review statistics.
type StatsResponse struct {
	TotalReviews  int            `json:"total_reviews"`
	ByVerdict     map[string]int `json:"by_verdict"`
	RecentReviews int            `json:"recent_reviews"`
	Repositories  int            `json:"repositories"`
	Pending       int            `json:"pending"`
	Approved      int            `json:"approved"`
	Rejected      int            `json:"rejected"`
	Outdated      int            `json:"outdated"`
	Escalated     int            `json:"escalated"`
}

// ActionResponse describes what confirming a pending approval did.
type ActionResponse struct {
	Action     string `json:"action"`
	Repository string `json:"repository"`
	Number     int    `json:"number"`
	HeadSHA    string `json:"head_sha"`
	PendingID  int64  `json:"pending_id"`
}

// CycleResponse summarizes a manually triggered poll cycle.
type CycleResponse struct {
	CycleID    string         `json:"cycle_id"`
	Discovered int            `json:"discovered"`
	Candidates int            `json:"candidates"`
	Owed       int            `json:"owed"`
	Actions    map[string]int `json:"actions"`
	Failures   int            `json:"failures"`
	Outdated   int            `json:"outdated"`
	DurationMS int64          `json:"duration_ms"`
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}

func toAnnotationsJSON(in []model.Annotation) []AnnotationJSON {
	out := make([]AnnotationJSON, 0, len(in))
	for _, a := range in {
		out = append(out, AnnotationJSON(a))
	}
	return out
}

func fromAnnotationsJSON(in []AnnotationJSON) []model.Annotation {
	out := make([]model.Annotation, 0, len(in))
	for _, a := range in {
		out = append(out, model.Annotation(a))
	}
	return out
}

// toPendingResponse converts a domain PendingApproval to its JSON representation.
func toPendingResponse(p model.PendingApproval) PendingResponse {
	resp := PendingResponse{
		ID:               p.ID,
		Repository:       p.RepoFullName,
		Number:           p.PRNumber,
		Title:            p.Title,
		Author:           p.Author,
		URL:              p.URL,
		HeadSHA:          p.HeadSHA,
		Verdict:          string(p.Verdict),
		Comment:          p.Comment,
		Summary:          p.Summary,
		Annotations:      toAnnotationsJSON(p.Annotations),
		FinalComment:     p.FinalComment(),
		FinalSummary:     p.FinalSummary(),
		FinalAnnotations: toAnnotationsJSON(p.FinalAnnotations()),
		Edited:           p.IsEdited(),
		Status:           string(p.Status),
		RejectionReason:  p.RejectionReason,
		CreatedAt:        formatTime(p.CreatedAt),
		UpdatedAt:        formatTime(p.UpdatedAt),
	}
	if p.DecidedAt != nil {
		decided := formatTime(*p.DecidedAt)
		resp.DecidedAt = &decided
	}
	return resp
}

// toEscalationResponse converts a domain Escalation to its JSON representation.
func toEscalationResponse(e model.Escalation) EscalationResponse {
	return EscalationResponse{
		Repository: e.RepoFullName,
		Number:     e.PRNumber,
		HeadSHA:    e.HeadSHA,
		Title:      e.Title,
		Author:     e.Author,
		URL:        e.URL,
		Reason:     e.Reason,
		CreatedAt:  formatTime(e.CreatedAt),
	}
}

// toReviewResponse converts a domain CompletedReview to its JSON representation.
func toReviewResponse(r model.CompletedReview) ReviewResponse {
	return ReviewResponse{
		ID:          r.ID,
		Repository:  r.RepoFullName,
		Number:      r.PRNumber,
		HeadSHA:     r.HeadSHA,
		Title:       r.Title,
		Author:      r.Author,
		Verdict:     string(r.Verdict),
		Comment:     r.Comment,
		Summary:     r.Summary,
		Annotations: toAnnotationsJSON(r.Annotations),
		Source:      string(r.Source),
		PendingID:   r.PendingID,
		ReviewedAt:  formatTime(r.ReviewedAt),
	}
}

func toStatsResponse(s model.ReviewStats) StatsResponse {
	byVerdict := make(map[string]int, len(model.AllVerdictKinds))
	for _, k := range model.AllVerdictKinds {
		byVerdict[string(k)] = s.ByVerdict[k]
	}
	return StatsResponse{
		TotalReviews:  s.TotalReviews,
		ByVerdict:     byVerdict,
		RecentReviews: s.RecentReviews,
		Repositories:  s.Repositories,
		Pending:       s.Pending,
		Approved:      s.Approved,
		Rejected:      s.Rejected,
		Outdated:      s.Outdated,
		Escalated:     s.Escalated,
	}
}

func toActionResponse(a model.Action) ActionResponse {
	return ActionResponse{
		Action:     string(a.Kind),
		Repository: a.RepoFullName,
		Number:     a.PRNumber,
		HeadSHA:    a.HeadSHA,
		PendingID:  a.PendingID,
	}
}

func toCycleResponse(s application.CycleSummary) CycleResponse {
	actions := make(map[string]int, len(s.Actions))
	for k, v := range s.Actions {
		actions[string(k)] = v
	}
	return CycleResponse{
		CycleID:    s.CycleID,
		Discovered: s.Discovered,
		Candidates: s.Candidates,
		Owed:       s.Owed,
		Actions:    actions,
		Failures:   s.Failures,
		Outdated:   s.Outdated,
		DurationMS: s.Duration.Milliseconds(),
	}
}
