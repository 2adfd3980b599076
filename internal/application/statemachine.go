package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"github.com/ericfisherdev/reviewgate/internal/domain/model"
	"github.com/ericfisherdev/reviewgate/internal/domain/port/driven"
)

var (
	// ErrInvalidVerdict is returned by Apply for a verdict kind it does not know.
	ErrInvalidVerdict = errors.New("invalid verdict")

	// ErrInvalidEdit is returned when an edit targets an annotation that does not exist.
	ErrInvalidEdit = errors.New("invalid edit")

	// ErrInvalidStatus is returned when history is requested for a non-terminal status.
	ErrInvalidStatus = errors.New("invalid history status")
)

// sweepConcurrency bounds concurrent PR status lookups during the outdated sweep.
const sweepConcurrency = 4

// PRStatusFunc looks up whether a pull request is still open.
type PRStatusFunc func(ctx context.Context, repoFullName string, prNumber int) (model.PRStatus, error)

// StateMachine decides whether a pull request is owed a review, applies
// verdicts, and runs the human confirmation workflow for pending approvals.
// Every mutation for a PR happens while holding that PR's lock.
type StateMachine struct {
	reviews     driven.ReviewStore
	pending     driven.PendingStore
	escalations driven.EscalationStore
	stats       driven.StatsStore
	writer      driven.GitHubWriter
	notifier    driven.Notifier
	locks       *prLocks

	// confirmChangeRequests routes request_changes verdicts through the
	// pending queue instead of posting them directly.
	confirmChangeRequests bool
}

// NewStateMachine creates a StateMachine. notifier may be nil.
func NewStateMachine(
	reviews driven.ReviewStore,
	pending driven.PendingStore,
	escalations driven.EscalationStore,
	stats driven.StatsStore,
	writer driven.GitHubWriter,
	notifier driven.Notifier,
	confirmChangeRequests bool,
) *StateMachine {
	return &StateMachine{
		reviews:               reviews,
		pending:               pending,
		escalations:           escalations,
		stats:                 stats,
		writer:                writer,
		notifier:              notifier,
		locks:                 newPRLocks(),
		confirmChangeRequests: confirmChangeRequests,
	}
}

// Eligibility classifies a (repository, PR, head commit). Checks run in order
// and the first match wins: escalation, completed review for the commit, open
// pending approval for the commit, rejected approval for the commit.
func (m *StateMachine) Eligibility(ctx context.Context, repoFullName string, prNumber int, headSHA string) (model.Eligibility, error) {
	marker, err := m.escalations.Get(ctx, repoFullName, prNumber)
	if err != nil {
		return "", fmt.Errorf("check escalation: %w", err)
	}
	if marker != nil {
		return model.EligibilitySkipEscalated, nil
	}

	review, err := m.reviews.GetForCommit(ctx, repoFullName, prNumber, headSHA)
	if err != nil {
		return "", fmt.Errorf("check completed review: %w", err)
	}
	if review != nil {
		return model.EligibilitySkipReviewed, nil
	}

	open, err := m.pending.GetOpen(ctx, repoFullName, prNumber)
	if err != nil {
		return "", fmt.Errorf("check pending approval: %w", err)
	}
	if open != nil && open.HeadSHA == headSHA {
		return model.EligibilitySkipPendingSameCommit, nil
	}

	// A human already turned down a proposal for this exact code.
	latest, err := m.pending.GetLatestForCommit(ctx, repoFullName, prNumber, headSHA)
	if err != nil {
		return "", fmt.Errorf("check rejected approval: %w", err)
	}
	if latest != nil && latest.Status == model.PendingStatusRejected {
		return model.EligibilitySkipReviewed, nil
	}

	return model.EligibilityOwed, nil
}

// Apply records a decision agent verdict for pr and performs the resulting
// GitHub action. Eligibility is re-checked under the PR lock; if the PR is no
// longer owed, Apply does nothing and returns NoAction. GitHub writes happen
// before the store write, so a failed post records nothing.
func (m *StateMachine) Apply(ctx context.Context, pr model.PullRequest, verdict model.Verdict) (model.Action, error) {
	return m.apply(ctx, pr, verdict, model.NotifyEscalation)
}

// EscalateTimeout escalates a PR whose automated review did not finish in time.
func (m *StateMachine) EscalateTimeout(ctx context.Context, pr model.PullRequest, reason string) (model.Action, error) {
	verdict := model.Verdict{Kind: model.VerdictRequiresHumanReview, Reason: reason}
	return m.apply(ctx, pr, verdict, model.NotifyAgentTimeout)
}

func (m *StateMachine) apply(ctx context.Context, pr model.PullRequest, verdict model.Verdict, escalationEvent model.NotificationEvent) (model.Action, error) {
	if !verdict.Kind.Valid() {
		return model.NoAction, fmt.Errorf("apply %q to %s: %w", verdict.Kind, pr.Key(), ErrInvalidVerdict)
	}

	unlock := m.locks.lock(pr.Key())
	defer unlock()

	for attempt := 0; ; attempt++ {
		eligibility, err := m.Eligibility(ctx, pr.RepoFullName, pr.Number, pr.HeadSHA)
		if err != nil {
			return model.NoAction, fmt.Errorf("recheck eligibility for %s: %w", pr.Key(), err)
		}
		if eligibility != model.EligibilityOwed {
			slog.Info("verdict dropped, PR no longer owed",
				"repo", pr.RepoFullName, "pr", pr.Number, "head", model.ShortSHA(pr.HeadSHA),
				"eligibility", string(eligibility), "verdict", string(verdict.Kind),
			)
			return model.NoAction, nil
		}

		action, err := m.applyOwed(ctx, pr, verdict, escalationEvent)
		if errors.Is(err, driven.ErrConstraintViolation) && attempt == 0 {
			slog.Warn("lost write race, re-evaluating eligibility",
				"repo", pr.RepoFullName, "pr", pr.Number, "head", model.ShortSHA(pr.HeadSHA),
			)
			continue
		}
		return action, err
	}
}

func (m *StateMachine) applyOwed(ctx context.Context, pr model.PullRequest, verdict model.Verdict, escalationEvent model.NotificationEvent) (model.Action, error) {
	switch verdict.Kind {
	case model.VerdictApproveWithoutComment:
		action := model.Action{
			Kind:         model.ActionPostApproval,
			RepoFullName: pr.RepoFullName,
			PRNumber:     pr.Number,
			HeadSHA:      pr.HeadSHA,
			Body:         verdict.Comment,
		}
		return action, m.postAndRecord(ctx, pr, verdict, action)

	case model.VerdictRequestChanges:
		if m.confirmChangeRequests {
			return m.enqueue(ctx, pr, verdict)
		}
		action := model.Action{
			Kind:         model.ActionPostChangeRequest,
			RepoFullName: pr.RepoFullName,
			PRNumber:     pr.Number,
			HeadSHA:      pr.HeadSHA,
			Body:         verdict.Summary,
			Annotations:  model.CloneAnnotations(verdict.Annotations),
		}
		return action, m.postAndRecord(ctx, pr, verdict, action)

	case model.VerdictApproveWithComment:
		return m.enqueue(ctx, pr, verdict)

	case model.VerdictRequiresHumanReview:
		return m.escalate(ctx, pr, verdict.Reason, escalationEvent)
	}

	return model.NoAction, fmt.Errorf("apply %q to %s: %w", verdict.Kind, pr.Key(), ErrInvalidVerdict)
}

// postAndRecord submits the review to GitHub and, only once that succeeded,
// writes the completed review.
func (m *StateMachine) postAndRecord(ctx context.Context, pr model.PullRequest, verdict model.Verdict, action model.Action) error {
	if err := m.perform(ctx, action); err != nil {
		return err
	}

	review := model.CompletedReview{
		RepoFullName: pr.RepoFullName,
		PRNumber:     pr.Number,
		HeadSHA:      pr.HeadSHA,
		BaseSHA:      pr.BaseSHA,
		Title:        pr.Title,
		Author:       pr.Author,
		Verdict:      verdict.Kind,
		Comment:      verdict.Comment,
		Summary:      verdict.Summary,
		Annotations:  action.Annotations,
		Source:       model.ReviewSourceAutomated,
	}

	if _, err := m.reviews.UpsertCompletedReview(ctx, review); err != nil {
		return fmt.Errorf("record review for %s: %w", pr.Key(), err)
	}

	slog.Info("review posted",
		"repo", pr.RepoFullName, "pr", pr.Number, "head", model.ShortSHA(pr.HeadSHA),
		"verdict", string(verdict.Kind), "annotations", len(action.Annotations),
	)

	return nil
}

func (m *StateMachine) enqueue(ctx context.Context, pr model.PullRequest, verdict model.Verdict) (model.Action, error) {
	candidate := model.PendingApproval{
		RepoFullName: pr.RepoFullName,
		PRNumber:     pr.Number,
		Title:        pr.Title,
		Author:       pr.Author,
		URL:          pr.URL,
		HeadSHA:      pr.HeadSHA,
		BaseSHA:      pr.BaseSHA,
		Verdict:      verdict.Kind,
		Comment:      verdict.Comment,
		Summary:      verdict.Summary,
		Reason:       verdict.Reason,
		Annotations:  model.CloneAnnotations(verdict.Annotations),
	}

	stored, err := m.pending.UpsertPending(ctx, candidate)
	if err != nil {
		return model.NoAction, fmt.Errorf("enqueue %s: %w", pr.Key(), err)
	}

	slog.Info("pending approval queued",
		"repo", pr.RepoFullName, "pr", pr.Number, "head", model.ShortSHA(pr.HeadSHA),
		"pending_id", stored.ID, "verdict", string(verdict.Kind),
	)

	m.notify(ctx, model.Notification{
		Event:        model.NotifyPendingApproval,
		RepoFullName: pr.RepoFullName,
		PRNumber:     pr.Number,
		Title:        pr.Title,
		URL:          pr.URL,
		Message:      fmt.Sprintf("Review awaiting approval: %s", pr.Title),
	})

	return model.Action{
		Kind:         model.ActionEnqueue,
		RepoFullName: pr.RepoFullName,
		PRNumber:     pr.Number,
		HeadSHA:      pr.HeadSHA,
		PendingID:    stored.ID,
	}, nil
}

func (m *StateMachine) escalate(ctx context.Context, pr model.PullRequest, reason string, event model.NotificationEvent) (model.Action, error) {
	marker := model.Escalation{
		RepoFullName: pr.RepoFullName,
		PRNumber:     pr.Number,
		HeadSHA:      pr.HeadSHA,
		Title:        pr.Title,
		Author:       pr.Author,
		URL:          pr.URL,
		Reason:       reason,
	}

	err := m.escalations.Create(ctx, marker)
	if errors.Is(err, driven.ErrAlreadyEscalated) {
		return model.NoAction, nil
	}
	if err != nil {
		return model.NoAction, fmt.Errorf("escalate %s: %w", pr.Key(), err)
	}

	slog.Info("PR escalated",
		"repo", pr.RepoFullName, "pr", pr.Number, "head", model.ShortSHA(pr.HeadSHA), "reason", reason,
	)

	m.notify(ctx, model.Notification{
		Event:        event,
		RepoFullName: pr.RepoFullName,
		PRNumber:     pr.Number,
		Title:        pr.Title,
		URL:          pr.URL,
		Message:      reason,
	})

	return model.Action{
		Kind:         model.ActionEscalate,
		RepoFullName: pr.RepoFullName,
		PRNumber:     pr.Number,
		HeadSHA:      pr.HeadSHA,
		Reason:       reason,
	}, nil
}

// perform submits a GitHub-facing action through the writer.
func (m *StateMachine) perform(ctx context.Context, action model.Action) error {
	event := driven.ReviewEventApprove
	if action.Kind == model.ActionPostChangeRequest {
		event = driven.ReviewEventRequestChanges
	}

	req := driven.ReviewRequest{
		CommitID: action.HeadSHA,
		Event:    event,
		Body:     action.Body,
	}
	for _, a := range action.Annotations {
		req.Comments = append(req.Comments, driven.DraftLineComment{Path: a.File, Line: a.Line, Body: a.Message})
	}

	if err := m.writer.SubmitReview(ctx, action.RepoFullName, action.PRNumber, req); err != nil {
		return fmt.Errorf("submit %s review to %s: %w", event, model.PRKey(action.RepoFullName, action.PRNumber), err)
	}
	return nil
}

func (m *StateMachine) notify(ctx context.Context, n model.Notification) {
	if m.notifier == nil {
		return
	}
	if err := m.notifier.Notify(ctx, n); err != nil {
		slog.Warn("notification failed", "event", string(n.Event), "repo", n.RepoFullName, "pr", n.PRNumber, "error", err)
	}
}

// Approve confirms a pending approval. The final content (edited where a
// human changed it, proposed otherwise) is posted to GitHub, then the row is
// marked approved and the completed review is written in one transaction.
// edits are overlaid on any edits already saved for the row.
func (m *StateMachine) Approve(ctx context.Context, pendingID int64, edits model.PendingEdits) (model.Action, error) {
	row, unlock, err := m.lockOpen(ctx, pendingID)
	if err != nil {
		return model.NoAction, err
	}
	defer unlock()

	row.Edits = row.Edits.Merge(edits)

	kind := model.ActionPostApproval
	body := row.FinalComment()
	if row.Verdict == model.VerdictRequestChanges {
		kind = model.ActionPostChangeRequest
		body = row.FinalSummary()
	}

	action := model.Action{
		Kind:         kind,
		RepoFullName: row.RepoFullName,
		PRNumber:     row.PRNumber,
		HeadSHA:      row.HeadSHA,
		Body:         body,
		Annotations:  model.CloneAnnotations(row.FinalAnnotations()),
		PendingID:    row.ID,
	}

	if err := m.perform(ctx, action); err != nil {
		return model.NoAction, err
	}

	review := model.CompletedReview{
		RepoFullName: row.RepoFullName,
		PRNumber:     row.PRNumber,
		HeadSHA:      row.HeadSHA,
		BaseSHA:      row.BaseSHA,
		Title:        row.Title,
		Author:       row.Author,
		Verdict:      row.Verdict,
		Comment:      row.FinalComment(),
		Summary:      row.FinalSummary(),
		Annotations:  action.Annotations,
		Source:       model.ReviewSourceHuman,
		PendingID:    row.ID,
	}

	if err := m.pending.Approve(ctx, row.ID, row.Edits, review); err != nil {
		return model.NoAction, fmt.Errorf("record approval of pending %d for %s: %w", row.ID, row.Key(), err)
	}

	slog.Info("pending approval approved",
		"repo", row.RepoFullName, "pr", row.PRNumber, "head", model.ShortSHA(row.HeadSHA),
		"pending_id", row.ID, "edited", row.IsEdited(),
	)

	return action, nil
}

// Reject closes a pending approval without posting anything to GitHub.
func (m *StateMachine) Reject(ctx context.Context, pendingID int64, reason string) error {
	row, unlock, err := m.lockOpen(ctx, pendingID)
	if err != nil {
		return err
	}
	defer unlock()

	if err := m.pending.SetStatus(ctx, row.ID, model.PendingStatusRejected, reason); err != nil {
		return fmt.Errorf("reject pending %d for %s: %w", row.ID, row.Key(), err)
	}

	slog.Info("pending approval rejected",
		"repo", row.RepoFullName, "pr", row.PRNumber, "pending_id", row.ID, "reason", reason,
	)

	return nil
}

// Edit overlays edits on the saved edits of an open pending approval.
func (m *StateMachine) Edit(ctx context.Context, pendingID int64, edits model.PendingEdits) (model.PendingApproval, error) {
	row, unlock, err := m.lockOpen(ctx, pendingID)
	if err != nil {
		return model.PendingApproval{}, err
	}
	defer unlock()

	row.Edits = row.Edits.Merge(edits)
	if err := m.pending.SaveEdits(ctx, row.ID, row.Edits); err != nil {
		return model.PendingApproval{}, fmt.Errorf("edit pending %d: %w", row.ID, err)
	}

	return *row, nil
}

// EditAnnotation replaces the annotation at index in the final annotation
// list, or deletes it when annotation is nil.
func (m *StateMachine) EditAnnotation(ctx context.Context, pendingID int64, index int, annotation *model.Annotation) (model.PendingApproval, error) {
	row, unlock, err := m.lockOpen(ctx, pendingID)
	if err != nil {
		return model.PendingApproval{}, err
	}
	defer unlock()

	current := model.CloneAnnotations(row.FinalAnnotations())
	if index < 0 || index >= len(current) {
		return model.PendingApproval{}, fmt.Errorf("annotation %d of pending %d: %w", index, row.ID, ErrInvalidEdit)
	}

	if annotation == nil {
		current = append(current[:index], current[index+1:]...)
	} else {
		current[index] = *annotation
	}

	row.Edits.Annotations = current
	row.Edits.AnnotationsEdited = true
	if err := m.pending.SaveEdits(ctx, row.ID, row.Edits); err != nil {
		return model.PendingApproval{}, fmt.Errorf("edit annotation %d of pending %d: %w", index, row.ID, err)
	}

	return *row, nil
}

// ResetEdits discards every human edit so the proposal is used as-is.
func (m *StateMachine) ResetEdits(ctx context.Context, pendingID int64) (model.PendingApproval, error) {
	row, unlock, err := m.lockOpen(ctx, pendingID)
	if err != nil {
		return model.PendingApproval{}, err
	}
	defer unlock()

	row.Edits = model.PendingEdits{}
	if err := m.pending.SaveEdits(ctx, row.ID, row.Edits); err != nil {
		return model.PendingApproval{}, fmt.Errorf("reset edits of pending %d: %w", row.ID, err)
	}

	return *row, nil
}

// ReplaceEdits discards the saved edits and applies edits in their place,
// under one lock and in one write.
func (m *StateMachine) ReplaceEdits(ctx context.Context, pendingID int64, edits model.PendingEdits) (model.PendingApproval, error) {
	row, unlock, err := m.lockOpen(ctx, pendingID)
	if err != nil {
		return model.PendingApproval{}, err
	}
	defer unlock()

	row.Edits = model.PendingEdits{}.Merge(edits)
	if err := m.pending.SaveEdits(ctx, row.ID, row.Edits); err != nil {
		return model.PendingApproval{}, fmt.Errorf("replace edits of pending %d: %w", row.ID, err)
	}

	return *row, nil
}

// lockOpen loads the row, takes its PR lock and re-reads it so a concurrent
// supersede or decision is observed. The returned unlock must be called.
func (m *StateMachine) lockOpen(ctx context.Context, pendingID int64) (*model.PendingApproval, func(), error) {
	row, err := m.pending.GetByID(ctx, pendingID)
	if err != nil {
		return nil, nil, fmt.Errorf("load pending %d: %w", pendingID, err)
	}
	if row == nil {
		return nil, nil, fmt.Errorf("pending %d: %w", pendingID, driven.ErrNotFound)
	}

	unlock := m.locks.lock(row.Key())

	row, err = m.pending.GetByID(ctx, pendingID)
	if err != nil {
		unlock()
		return nil, nil, fmt.Errorf("reload pending %d: %w", pendingID, err)
	}
	if row == nil {
		unlock()
		return nil, nil, fmt.Errorf("pending %d: %w", pendingID, driven.ErrNotFound)
	}
	if row.Status != model.PendingStatusPending {
		unlock()
		return nil, nil, fmt.Errorf("pending %d is %s: %w", pendingID, row.Status, driven.ErrInvalidTransition)
	}

	return row, unlock, nil
}

// SweepOutdated moves every pending approval whose PR was merged or closed to
// outdated. Lookup failures are logged and leave the row untouched. It
// returns the number of rows transitioned.
func (m *StateMachine) SweepOutdated(ctx context.Context, status PRStatusFunc) (int, error) {
	open, err := m.pending.ListOpen(ctx)
	if err != nil {
		return 0, fmt.Errorf("list pending approvals: %w", err)
	}

	results := make([]bool, len(open))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(sweepConcurrency)

	for i, row := range open {
		g.Go(func() error {
			results[i] = m.sweepOne(gctx, row, status)
			return nil
		})
	}
	_ = g.Wait()

	var outdated int
	for _, ok := range results {
		if ok {
			outdated++
		}
	}

	if len(open) > 0 {
		slog.Info("outdated sweep complete", "checked", len(open), "outdated", outdated)
	}

	return outdated, nil
}

func (m *StateMachine) sweepOne(ctx context.Context, row model.PendingApproval, status PRStatusFunc) bool {
	prStatus, err := status(ctx, row.RepoFullName, row.PRNumber)
	if err != nil {
		slog.Warn("PR status lookup failed, leaving pending approval", "repo", row.RepoFullName, "pr", row.PRNumber, "error", err)
		return false
	}
	if !prStatus.IsFinished() {
		return false
	}

	unlock := m.locks.lock(row.Key())
	defer unlock()

	err = m.pending.SetStatus(ctx, row.ID, model.PendingStatusOutdated, "")
	if errors.Is(err, driven.ErrInvalidTransition) || errors.Is(err, driven.ErrNotFound) {
		// A human decided while the lookup was in flight.
		return false
	}
	if err != nil {
		slog.Error("mark pending approval outdated failed", "repo", row.RepoFullName, "pr", row.PRNumber, "error", err)
		return false
	}

	slog.Info("pending approval outdated",
		"repo", row.RepoFullName, "pr", row.PRNumber, "pending_id", row.ID, "pr_status", string(prStatus),
	)

	m.notify(ctx, model.Notification{
		Event:        model.NotifyOutdated,
		RepoFullName: row.RepoFullName,
		PRNumber:     row.PRNumber,
		Title:        row.Title,
		URL:          row.URL,
		Message:      fmt.Sprintf("PR %s, pending approval outdated", prStatus),
	})

	return true
}

// ClearEscalation removes the escalation marker so the PR re-enters automated review.
func (m *StateMachine) ClearEscalation(ctx context.Context, repoFullName string, prNumber int) error {
	unlock := m.locks.lock(model.PRKey(repoFullName, prNumber))
	defer unlock()

	if err := m.escalations.Clear(ctx, repoFullName, prNumber); err != nil {
		return fmt.Errorf("clear escalation %s: %w", model.PRKey(repoFullName, prNumber), err)
	}

	slog.Info("escalation cleared", "repo", repoFullName, "pr", prNumber)
	return nil
}
