package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/ericfisherdev/reviewgate/internal/adapter/driven/agent"
	githubadapter "github.com/ericfisherdev/reviewgate/internal/adapter/driven/github"
	"github.com/ericfisherdev/reviewgate/internal/adapter/driven/notify"
	sqliteadapter "github.com/ericfisherdev/reviewgate/internal/adapter/driven/sqlite"
	"github.com/ericfisherdev/reviewgate/internal/application"
	"github.com/ericfisherdev/reviewgate/internal/domain/port/driven"
)

// errNoGitHub is returned by the placeholder writer used when no token is
// configured and a command only reads local state.
var errNoGitHub = errors.New("github.token is required to post reviews (set REVIEWGATE_GITHUB_TOKEN or GITHUB_TOKEN)")

type noGitHub struct{}

func (noGitHub) SubmitReview(context.Context, string, int, driven.ReviewRequest) error {
	return errNoGitHub
}

// app is the wired object graph shared by every subcommand.
type app struct {
	db       *sqliteadapter.DB
	github   *githubadapter.Client // nil unless requested
	notifier *notify.Dispatcher
	machine  *application.StateMachine
}

// openApp opens the database, applies migrations and builds the review state
// machine. With needGitHub the GitHub client is created and the reviewer login
// resolved; without it reviews can still be read, but approving one fails.
func openApp(ctx context.Context, needGitHub bool) (*app, error) {
	// 1. Open database (dual reader/writer with WAL mode).
	db, err := sqliteadapter.NewDB(cfg.DBPath)
	if err != nil {
		return nil, err
	}
	slog.Debug("database opened", "path", cfg.DBPath)

	// 2. Run migrations on writer connection.
	if err := sqliteadapter.RunMigrations(db.Writer); err != nil {
		_ = db.Close()
		return nil, err
	}

	a := &app{db: db}

	// 3. GitHub client (ETag cache + secondary rate limit transport).
	var writer driven.GitHubWriter = noGitHub{}
	if needGitHub || cfg.GitHub.Token != "" {
		if err := cfg.RequireGitHub(); err != nil {
			_ = db.Close()
			return nil, err
		}
		client, err := githubadapter.NewClient(cfg.GitHub.Token, cfg.GitHub.Username, cfg.GitHub.APIURL)
		if err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("creating github client: %w", err)
		}
		a.github = client
		writer = client
	}
	if needGitHub {
		login, err := a.github.ResolveUsername(ctx)
		if err != nil {
			_ = db.Close()
			return nil, err
		}
		slog.Debug("github user resolved", "username", login)
	}

	// 4. Notification hook and state machine.
	a.notifier = notify.New(notify.Options{
		Command: cfg.Notify.Command,
		Events:  cfg.NotifyEvents(),
		Timeout: cfg.Notify.Timeout,
	})
	a.machine = application.NewStateMachine(
		sqliteadapter.NewReviewRepo(db),
		sqliteadapter.NewPendingRepo(db),
		sqliteadapter.NewEscalationRepo(db),
		sqliteadapter.NewStatsRepo(db),
		writer,
		a.notifier,
		cfg.Review.ConfirmChangeRequests,
	)
	return a, nil
}

// newPollService builds the poll orchestrator. The app must have been opened
// with needGitHub.
func (a *app) newPollService() (*application.PollService, error) {
	decider, err := agent.New(agent.Options{
		Kind:       cfg.Agent.Kind,
		Command:    cfg.Agent.Command,
		WorkDir:    cfg.Agent.WorkDir,
		PromptFile: cfg.Agent.PromptFile,
		Model:      cfg.Agent.Model,
		MaxTokens:  cfg.Agent.MaxTokens,
		APIKey:     cfg.Anthropic.APIKey,
		BaseURL:    cfg.Anthropic.BaseURL,
	}, a.github)
	if err != nil {
		return nil, fmt.Errorf("creating decision agent: %w", err)
	}
	slog.Info("decision agent ready", "kind", cfg.Agent.Kind, "timeout", cfg.Agent.Timeout)
	return application.NewPollService(a.github, decider, a.machine, cfg.PollConfig()), nil
}

// Close waits for in-flight notification hooks, then closes the database.
func (a *app) Close() {
	a.notifier.Close()
	if err := a.db.Close(); err != nil {
		slog.Error("error closing database", "error", err)
	}
}
