// Package application contains use-case orchestration services.
package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
	"golang.org/x/sync/errgroup"

	"github.com/ericfisherdev/reviewgate/internal/domain/model"
	"github.com/ericfisherdev/reviewgate/internal/domain/port/driven"
)

// PollConfig is the immutable configuration of a PollService.
type PollConfig struct {
	Interval       time.Duration
	Repositories   []string // Allow-list of "owner/repo"; empty allows all.
	Authors        []string // Allow-list of PR authors; empty allows all.
	ExcludeAuthors []string
	DryRun         bool
	Concurrency    int
	AgentTimeout   time.Duration // Zero disables the timeout.
}

// CycleSummary reports what a single poll cycle did.
type CycleSummary struct {
	CycleID    string
	Discovered int
	Candidates int
	Owed       int
	Actions    map[model.ActionKind]int
	Failures   int
	Outdated   int
	Duration   time.Duration
}

// refreshRequest represents a manual poll trigger.
type refreshRequest struct {
	done chan refreshResult
}

type refreshResult struct {
	summary CycleSummary
	err     error
}

// PollService drives discovery cycles: sweep outdated approvals, discover PRs
// awaiting review, consult the state machine, run the decision agent and
// apply its verdict.
type PollService struct {
	ghClient  driven.GitHubClient
	agent     driven.DecisionAgent
	machine   *StateMachine
	cfg       PollConfig
	refreshCh chan refreshRequest
	done      chan struct{}
}

// NewPollService creates a new PollService with all required dependencies.
// The config is copied so later changes by the caller have no effect.
func NewPollService(
	ghClient driven.GitHubClient,
	agent driven.DecisionAgent,
	machine *StateMachine,
	cfg PollConfig,
) *PollService {
	cfg.Repositories = slices.Clone(cfg.Repositories)
	cfg.Authors = slices.Clone(cfg.Authors)
	cfg.ExcludeAuthors = slices.Clone(cfg.ExcludeAuthors)
	if cfg.Concurrency < 1 {
		cfg.Concurrency = 1
	}
	if cfg.Interval <= 0 {
		cfg.Interval = time.Minute
	}

	return &PollService{
		ghClient:  ghClient,
		agent:     agent,
		machine:   machine,
		cfg:       cfg,
		refreshCh: make(chan refreshRequest),
		done:      make(chan struct{}),
	}
}

// Start begins the polling loop. It runs an immediate cycle, then polls on the
// configured interval and serves manual triggers. Start blocks until the
// context is canceled and the in-flight cycle has drained.
func (s *PollService) Start(ctx context.Context) {
	defer close(s.done)

	mode := "live"
	if s.cfg.DryRun {
		mode = "dry-run"
	}
	slog.Info("poll service started",
		"mode", mode,
		"interval", s.cfg.Interval,
		"concurrency", s.cfg.Concurrency,
		"repositories", len(s.cfg.Repositories),
		"excluded_authors", len(s.cfg.ExcludeAuthors),
	)

	if _, err := s.RunOnce(ctx); err != nil {
		slog.Error("initial poll failed", "error", err)
	}

	ticker := time.NewTicker(s.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			slog.Info("poll service stopped")
			return
		case <-ticker.C:
			if _, err := s.RunOnce(ctx); err != nil {
				slog.Error("poll cycle failed", "error", err)
			}
		case req := <-s.refreshCh:
			summary, err := s.RunOnce(ctx)
			req.done <- refreshResult{summary: summary, err: err}
		}
	}
}

// Done is closed once Start has returned.
func (s *PollService) Done() <-chan struct{} {
	return s.done
}

// TriggerPoll asks the running loop for an immediate cycle, bypassing the
// interval. It blocks until the cycle completes or the context is canceled.
func (s *PollService) TriggerPoll(ctx context.Context) (CycleSummary, error) {
	done := make(chan refreshResult, 1)

	select {
	case s.refreshCh <- refreshRequest{done: done}:
	case <-s.done:
		return CycleSummary{}, errors.New("poll service is not running")
	case <-ctx.Done():
		return CycleSummary{}, ctx.Err()
	}

	select {
	case res := <-done:
		return res.summary, res.err
	case <-ctx.Done():
		return CycleSummary{}, ctx.Err()
	}
}

// RunOnce runs a single discovery cycle. It does not require Start and is
// used directly by one-shot invocations.
func (s *PollService) RunOnce(ctx context.Context) (CycleSummary, error) {
	summary := CycleSummary{
		CycleID: ulid.Make().String(),
		Actions: make(map[model.ActionKind]int),
	}
	start := time.Now()
	log := slog.With("cycle_id", summary.CycleID)

	if s.cfg.DryRun {
		log.Info("dry run: skipping outdated sweep")
	} else {
		outdated, err := s.machine.SweepOutdated(ctx, s.ghClient.FetchPRStatus)
		if err != nil {
			log.Error("outdated sweep failed", "error", err)
		}
		summary.Outdated = outdated
	}

	prs, err := s.ghClient.FetchReviewRequests(ctx, s.cfg.Repositories)
	if err != nil {
		summary.Duration = time.Since(start)
		return summary, fmt.Errorf("discover review requests: %w", err)
	}
	summary.Discovered = len(prs)

	candidates := FilterCandidates(prs, s.cfg)
	summary.Candidates = len(candidates)

	var mu sync.Mutex
	record := func(owed bool, kind model.ActionKind, failed bool) {
		mu.Lock()
		defer mu.Unlock()
		if owed {
			summary.Owed++
		}
		if kind != "" && kind != model.ActionNone {
			summary.Actions[kind]++
		}
		if failed {
			summary.Failures++
		}
	}

	var g errgroup.Group
	g.SetLimit(s.cfg.Concurrency)

	for _, pr := range candidates {
		if ctx.Err() != nil {
			log.Info("poll cycle interrupted, not starting remaining PRs")
			break
		}
		g.Go(func() error {
			owed, kind, failed := s.processPR(ctx, log, pr)
			record(owed, kind, failed)
			return nil
		})
	}
	_ = g.Wait()

	summary.Duration = time.Since(start).Round(time.Millisecond)

	log.Info("poll cycle complete",
		"discovered", summary.Discovered,
		"candidates", summary.Candidates,
		"owed", summary.Owed,
		"failures", summary.Failures,
		"outdated", summary.Outdated,
		"duration", summary.Duration,
	)

	return summary, nil
}

// processPR handles one candidate. It reports whether the PR was owed a
// review, the action taken, and whether anything failed.
func (s *PollService) processPR(ctx context.Context, log *slog.Logger, pr model.PullRequest) (bool, model.ActionKind, bool) {
	log = log.With("repo", pr.RepoFullName, "pr", pr.Number, "head", model.ShortSHA(pr.HeadSHA))

	eligibility, err := s.machine.Eligibility(ctx, pr.RepoFullName, pr.Number, pr.HeadSHA)
	if err != nil {
		log.Error("eligibility check failed", "error", err)
		return false, "", true
	}
	if eligibility != model.EligibilityOwed {
		log.Debug("skipping PR", "eligibility", string(eligibility))
		return false, "", false
	}

	log.Info("reviewing PR", "title", pr.Title, "author", pr.Author)

	verdict, err := s.review(ctx, pr)
	switch {
	case err == nil:
	case errors.Is(err, driven.ErrAgentTimeout):
		kind, failed := s.handleTimeout(ctx, log, pr)
		return true, kind, failed
	case ctx.Err() != nil:
		log.Info("review abandoned on shutdown")
		return true, "", false
	case errors.Is(err, driven.ErrMalformedOutput):
		log.Warn("agent returned no usable verdict, will retry next cycle", "error", err)
		return true, "", true
	default:
		log.Error("review failed, will retry next cycle", "error", err)
		return true, "", true
	}

	if s.cfg.DryRun {
		logDryRun(log, verdict)
		return true, "", false
	}

	// The verdict is in hand; finish applying it even if shutdown begins.
	action, err := s.machine.Apply(context.WithoutCancel(ctx), pr, verdict)
	if err != nil {
		log.Error("apply verdict failed", "verdict", string(verdict.Kind), "error", err)
		return true, "", true
	}

	return true, action.Kind, false
}

// review invokes the decision agent under the configured timeout.
func (s *PollService) review(ctx context.Context, pr model.PullRequest) (model.Verdict, error) {
	if s.cfg.AgentTimeout <= 0 {
		return s.agent.Review(ctx, pr)
	}

	agentCtx, cancel := context.WithTimeout(ctx, s.cfg.AgentTimeout)
	defer cancel()

	verdict, err := s.agent.Review(agentCtx, pr)
	if err != nil && ctx.Err() == nil && errors.Is(agentCtx.Err(), context.DeadlineExceeded) && !errors.Is(err, driven.ErrAgentTimeout) {
		err = fmt.Errorf("%w: %w", driven.ErrAgentTimeout, err)
	}
	return verdict, err
}

func (s *PollService) handleTimeout(ctx context.Context, log *slog.Logger, pr model.PullRequest) (model.ActionKind, bool) {
	reason := fmt.Sprintf("Automated review timed out after %d seconds", int(s.cfg.AgentTimeout.Seconds()))
	log.Error("review timed out", "timeout", s.cfg.AgentTimeout)

	if s.cfg.DryRun {
		log.Info("dry run: would escalate PR", "reason", reason)
		return "", false
	}

	action, err := s.machine.EscalateTimeout(context.WithoutCancel(ctx), pr, reason)
	if err != nil {
		log.Error("escalate after timeout failed", "error", err)
		return "", true
	}
	return action.Kind, false
}

func logDryRun(log *slog.Logger, verdict model.Verdict) {
	switch verdict.Kind {
	case model.VerdictApproveWithoutComment:
		log.Info("dry run: would approve without comment")
	case model.VerdictApproveWithComment:
		log.Info("dry run: would queue approval for confirmation", "comment", verdict.Comment)
	case model.VerdictRequestChanges:
		log.Info("dry run: would request changes", "summary", verdict.Summary, "annotations", len(verdict.Annotations))
	case model.VerdictRequiresHumanReview:
		log.Info("dry run: would escalate PR", "reason", verdict.Reason)
	}
}

// FilterCandidates applies the repository and author allow-lists and the
// author exclusion. It is pure and preserves input order. Comparisons are
// case-insensitive.
func FilterCandidates(prs []model.PullRequest, cfg PollConfig) []model.PullRequest {
	out := make([]model.PullRequest, 0, len(prs))
	for _, pr := range prs {
		if len(cfg.Repositories) > 0 && !containsFold(cfg.Repositories, pr.RepoFullName) {
			continue
		}
		if len(cfg.Authors) > 0 && !containsFold(cfg.Authors, pr.Author) {
			continue
		}
		if containsFold(cfg.ExcludeAuthors, pr.Author) {
			continue
		}
		out = append(out, pr)
	}
	return out
}

func containsFold(list []string, s string) bool {
	for _, item := range list {
		if strings.EqualFold(item, s) {
			return true
		}
	}
	return false
}
