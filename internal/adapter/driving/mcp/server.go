// Package mcp exposes the review queue to assistants as MCP tools over stdio.
package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/ericfisherdev/reviewgate/internal/domain/model"
	"github.com/ericfisherdev/reviewgate/internal/domain/port/driven"
)

// ReviewQueue is the part of the review state machine the tools drive.
type ReviewQueue interface {
	ListPending(ctx context.Context) ([]model.PendingApproval, error)
	GetPending(ctx context.Context, id int64) (model.PendingApproval, error)
	Approve(ctx context.Context, id int64, edits model.PendingEdits) (model.Action, error)
	Reject(ctx context.Context, id int64, reason string) error
	Edit(ctx context.Context, id int64, edits model.PendingEdits) (model.PendingApproval, error)
	EditAnnotation(ctx context.Context, id int64, index int, annotation *model.Annotation) (model.PendingApproval, error)
	ListEscalations(ctx context.Context) ([]model.Escalation, error)
	ClearEscalation(ctx context.Context, repoFullName string, prNumber int) error
	Stats(ctx context.Context) (model.ReviewStats, error)
}

// Server wraps the review queue and exposes it as MCP tools.
type Server struct {
	queue   ReviewQueue
	version string
}

// NewServer creates the MCP server wrapper.
func NewServer(queue ReviewQueue, version string) *Server {
	return &Server{queue: queue, version: version}
}

// MCPServer returns a configured mcp-go server with all tools registered.
func (s *Server) MCPServer() *server.MCPServer {
	srv := server.NewMCPServer("reviewgate", s.version, server.WithToolCapabilities(true))

	srv.AddTool(s.listPendingTool())
	srv.AddTool(s.getPendingTool())
	srv.AddTool(s.editPendingTool())
	srv.AddTool(s.approvePendingTool())
	srv.AddTool(s.rejectPendingTool())
	srv.AddTool(s.listEscalationsTool())
	srv.AddTool(s.clearEscalationTool())
	srv.AddTool(s.reviewStatsTool())

	return srv
}

// ServeStdio starts the stdio transport, blocking until ctx is cancelled.
func (s *Server) ServeStdio(ctx context.Context) error {
	stdioServer := server.NewStdioServer(s.MCPServer())
	return stdioServer.Listen(ctx, os.Stdin, os.Stdout)
}

// ---------------------------------------------------------------------------
// Output shapes
// ---------------------------------------------------------------------------

type annotationOut struct {
	File    string `json:"file"`
	Line    int    `json:"line"`
	Message string `json:"message"`
}

type pendingOut struct {
	ID          int64           `json:"id"`
	PR          string          `json:"pr"`
	Title       string          `json:"title"`
	Author      string          `json:"author"`
	URL         string          `json:"url"`
	HeadSHA     string          `json:"head_sha"`
	Verdict     string          `json:"verdict"`
	Comment     string          `json:"comment,omitempty"`
	Summary     string          `json:"summary,omitempty"`
	Annotations []annotationOut `json:"annotations"`
	Edited      bool            `json:"edited"`
	Status      string          `json:"status"`
	CreatedAt   string          `json:"created_at"`
}

func toPendingOut(p model.PendingApproval) pendingOut {
	final := p.FinalAnnotations()
	annotations := make([]annotationOut, len(final))
	for i, a := range final {
		annotations[i] = annotationOut(a)
	}
	return pendingOut{
		ID:          p.ID,
		PR:          p.Key(),
		Title:       p.Title,
		Author:      p.Author,
		URL:         p.URL,
		HeadSHA:     p.HeadSHA,
		Verdict:     string(p.Verdict),
		Comment:     p.FinalComment(),
		Summary:     p.FinalSummary(),
		Annotations: annotations,
		Edited:      p.IsEdited(),
		Status:      string(p.Status),
		CreatedAt:   p.CreatedAt.UTC().Format(time.RFC3339),
	}
}

func jsonResult(v any) (*mcp.CallToolResult, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to marshal result: %v", err)), nil
	}
	return mcp.NewToolResultText(string(data)), nil
}

// errorResult turns a queue error into a tool error the assistant can read.
func errorResult(action string, err error) *mcp.CallToolResult {
	switch {
	case errors.Is(err, driven.ErrNotFound):
		return mcp.NewToolResultError(action + ": not found")
	case errors.Is(err, driven.ErrInvalidTransition):
		return mcp.NewToolResultError(action + ": pending approval has already been decided")
	}
	return mcp.NewToolResultError(fmt.Sprintf("%s: %v", action, err))
}

func requireID(request mcp.CallToolRequest) (int64, *mcp.CallToolResult) {
	id, err := request.RequireInt("id")
	if err != nil || id < 1 {
		return 0, mcp.NewToolResultError("missing or invalid parameter: id")
	}
	return int64(id), nil
}

// ---------------------------------------------------------------------------
// Tool definitions and handlers
// ---------------------------------------------------------------------------

// list_pending
func (s *Server) listPendingTool() (mcp.Tool, server.ToolHandlerFunc) {
	tool := mcp.NewTool("list_pending",
		mcp.WithDescription("List review proposals waiting for human confirmation. Returns a JSON array with id, pr, verdict and the text that would be posted."),
	)
	return tool, s.handleListPending
}

func (s *Server) handleListPending(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	rows, err := s.queue.ListPending(ctx)
	if err != nil {
		return errorResult("failed to list pending approvals", err), nil
	}

	out := make([]pendingOut, len(rows))
	for i, row := range rows {
		out[i] = toPendingOut(row)
	}
	return jsonResult(out)
}

// get_pending
func (s *Server) getPendingTool() (mcp.Tool, server.ToolHandlerFunc) {
	tool := mcp.NewTool("get_pending",
		mcp.WithDescription("Get one review proposal by id, including its status once decided."),
		mcp.WithNumber("id", mcp.Required(), mcp.Description("Pending approval id")),
	)
	return tool, s.handleGetPending
}

func (s *Server) handleGetPending(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, bad := requireID(request)
	if bad != nil {
		return bad, nil
	}

	row, err := s.queue.GetPending(ctx, id)
	if err != nil {
		return errorResult(fmt.Sprintf("failed to get pending approval %d", id), err), nil
	}
	return jsonResult(toPendingOut(row))
}

// edit_pending
func (s *Server) editPendingTool() (mcp.Tool, server.ToolHandlerFunc) {
	tool := mcp.NewTool("edit_pending",
		mcp.WithDescription("Edit an open review proposal before it is approved. Only the given fields change. Set remove_annotation to drop one inline comment by index."),
		mcp.WithNumber("id", mcp.Required(), mcp.Description("Pending approval id")),
		mcp.WithString("comment", mcp.Description("Replacement approval comment")),
		mcp.WithString("summary", mcp.Description("Replacement change request summary")),
		mcp.WithNumber("remove_annotation", mcp.Description("Index of the inline comment to remove")),
	)
	return tool, s.handleEditPending
}

func (s *Server) handleEditPending(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, bad := requireID(request)
	if bad != nil {
		return bad, nil
	}

	args := request.GetArguments()
	var edits model.PendingEdits
	if _, ok := args["comment"]; ok {
		comment := request.GetString("comment", "")
		edits.Comment = &comment
	}
	if _, ok := args["summary"]; ok {
		summary := request.GetString("summary", "")
		edits.Summary = &summary
	}

	var row model.PendingApproval
	var err error
	if !edits.IsZero() {
		row, err = s.queue.Edit(ctx, id, edits)
		if err != nil {
			return errorResult(fmt.Sprintf("failed to edit pending approval %d", id), err), nil
		}
	}

	if _, ok := args["remove_annotation"]; ok {
		index := request.GetInt("remove_annotation", -1)
		if index < 0 {
			return mcp.NewToolResultError("remove_annotation must be a non-negative index"), nil
		}
		row, err = s.queue.EditAnnotation(ctx, id, index, nil)
		if err != nil {
			return errorResult(fmt.Sprintf("failed to remove annotation %d", index), err), nil
		}
	} else if edits.IsZero() {
		return mcp.NewToolResultError("nothing to edit: pass comment, summary or remove_annotation"), nil
	}

	return jsonResult(toPendingOut(row))
}

// approve_pending
func (s *Server) approvePendingTool() (mcp.Tool, server.ToolHandlerFunc) {
	tool := mcp.NewTool("approve_pending",
		mcp.WithDescription("Confirm a review proposal. Its final text is posted to GitHub as a review and the decision is recorded."),
		mcp.WithNumber("id", mcp.Required(), mcp.Description("Pending approval id")),
	)
	return tool, s.handleApprovePending
}

func (s *Server) handleApprovePending(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, bad := requireID(request)
	if bad != nil {
		return bad, nil
	}

	action, err := s.queue.Approve(ctx, id, model.PendingEdits{})
	if err != nil {
		return errorResult(fmt.Sprintf("failed to approve pending approval %d", id), err), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("Posted %s to %s at %s",
		action.Kind, model.PRKey(action.RepoFullName, action.PRNumber), model.ShortSHA(action.HeadSHA))), nil
}

// reject_pending
func (s *Server) rejectPendingTool() (mcp.Tool, server.ToolHandlerFunc) {
	tool := mcp.NewTool("reject_pending",
		mcp.WithDescription("Reject a review proposal. Nothing is posted and the commit is not reviewed again."),
		mcp.WithNumber("id", mcp.Required(), mcp.Description("Pending approval id")),
		mcp.WithString("reason", mcp.Description("Why the proposal was rejected")),
	)
	return tool, s.handleRejectPending
}

func (s *Server) handleRejectPending(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, bad := requireID(request)
	if bad != nil {
		return bad, nil
	}

	reason := strings.TrimSpace(request.GetString("reason", ""))
	if err := s.queue.Reject(ctx, id, reason); err != nil {
		return errorResult(fmt.Sprintf("failed to reject pending approval %d", id), err), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("Rejected pending approval %d", id)), nil
}

// list_escalations
func (s *Server) listEscalationsTool() (mcp.Tool, server.ToolHandlerFunc) {
	tool := mcp.NewTool("list_escalations",
		mcp.WithDescription("List pull requests removed from automated review, with the reason for each."),
	)
	return tool, s.handleListEscalations
}

func (s *Server) handleListEscalations(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	markers, err := s.queue.ListEscalations(ctx)
	if err != nil {
		return errorResult("failed to list escalations", err), nil
	}

	type escalationOut struct {
		PR        string `json:"pr"`
		Title     string `json:"title"`
		Author    string `json:"author"`
		URL       string `json:"url"`
		HeadSHA   string `json:"head_sha"`
		Reason    string `json:"reason"`
		CreatedAt string `json:"created_at"`
	}

	out := make([]escalationOut, len(markers))
	for i, e := range markers {
		out[i] = escalationOut{
			PR:        e.Key(),
			Title:     e.Title,
			Author:    e.Author,
			URL:       e.URL,
			HeadSHA:   e.HeadSHA,
			Reason:    e.Reason,
			CreatedAt: e.CreatedAt.UTC().Format(time.RFC3339),
		}
	}
	return jsonResult(out)
}

// clear_escalation
func (s *Server) clearEscalationTool() (mcp.Tool, server.ToolHandlerFunc) {
	tool := mcp.NewTool("clear_escalation",
		mcp.WithDescription("Return an escalated pull request to automated review."),
		mcp.WithString("repository", mcp.Required(), mcp.Description("Repository in owner/repo form")),
		mcp.WithNumber("number", mcp.Required(), mcp.Description("Pull request number")),
	)
	return tool, s.handleClearEscalation
}

func (s *Server) handleClearEscalation(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	repo, err := request.RequireString("repository")
	if err != nil || strings.Count(repo, "/") != 1 {
		return mcp.NewToolResultError("missing or invalid parameter: repository (owner/repo)"), nil
	}
	number, err := request.RequireInt("number")
	if err != nil || number < 1 {
		return mcp.NewToolResultError("missing or invalid parameter: number"), nil
	}

	if err := s.queue.ClearEscalation(ctx, repo, number); err != nil {
		return errorResult("failed to clear escalation for "+model.PRKey(repo, number), err), nil
	}
	return mcp.NewToolResultText("Cleared escalation for " + model.PRKey(repo, number)), nil
}

// review_stats
func (s *Server) reviewStatsTool() (mcp.Tool, server.ToolHandlerFunc) {
	tool := mcp.NewTool("review_stats",
		mcp.WithDescription("Review counts: total, by verdict, last seven days, repositories, and queue sizes."),
	)
	return tool, s.handleReviewStats
}

func (s *Server) handleReviewStats(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	stats, err := s.queue.Stats(ctx)
	if err != nil {
		return errorResult("failed to compute stats", err), nil
	}

	byVerdict := make(map[string]int, len(model.AllVerdictKinds))
	for _, k := range model.AllVerdictKinds {
		byVerdict[string(k)] = stats.ByVerdict[k]
	}
	return jsonResult(map[string]any{
		"total_reviews":  stats.TotalReviews,
		"by_verdict":     byVerdict,
		"recent_reviews": stats.RecentReviews,
		"repositories":   stats.Repositories,
		"pending":        stats.Pending,
		"approved":       stats.Approved,
		"rejected":       stats.Rejected,
		"outdated":       stats.Outdated,
		"escalated":      stats.Escalated,
	})
}
