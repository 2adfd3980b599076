package agent

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/ericfisherdev/reviewgate/internal/domain/model"
	"github.com/ericfisherdev/reviewgate/internal/domain/port/driven"
)

// Compile-time interface satisfaction check.
var _ driven.DecisionAgent = (*APIAgent)(nil)

// maxDiffBytes keeps large diffs from exhausting the context window.
const maxDiffBytes = 200_000

// DiffSource returns the unified diff of a pull request.
type DiffSource interface {
	FetchDiff(ctx context.Context, repoFullName string, prNumber int) (string, error)
}

// APIAgent reviews pull requests through the Anthropic Messages API.
type APIAgent struct {
	api          *anthropic.Client
	model        anthropic.Model
	maxTokens    int64
	instructions string
	diffs        DiffSource
}

// NewAPIAgent creates an API-backed agent. An empty apiKey falls back to the
// SDK's ANTHROPIC_API_KEY lookup; baseURL is for tests and proxies.
func NewAPIAgent(apiKey, model string, maxTokens int64, instructions string, diffs DiffSource, baseURL string) *APIAgent {
	opts := []option.RequestOption{}
	if apiKey != "" {
		opts = append(opts, option.WithAPIKey(apiKey))
	}
	if baseURL != "" {
		opts = append(opts, option.WithBaseURL(baseURL), option.WithMaxRetries(0))
	}
	client := anthropic.NewClient(opts...)
	if maxTokens <= 0 {
		maxTokens = 4096
	}
	return &APIAgent{
		api:          &client,
		model:        anthropic.Model(model),
		maxTokens:    maxTokens,
		instructions: instructions,
		diffs:        diffs,
	}
}

// Review sends the PR metadata and diff to the model and parses its verdict.
func (a *APIAgent) Review(ctx context.Context, pr model.PullRequest) (model.Verdict, error) {
	var diff string
	if a.diffs != nil {
		d, err := a.diffs.FetchDiff(ctx, pr.RepoFullName, pr.Number)
		if err != nil {
			if timeoutErr := a.contextErr(ctx, pr); timeoutErr != nil {
				return model.Verdict{}, timeoutErr
			}
			return model.Verdict{}, fmt.Errorf("fetch diff for %s: %w", pr.Key(), err)
		}
		diff = truncateDiff(d, maxDiffBytes)
	}

	systemPrompt, userPrompt := buildAPIPrompt(pr, a.instructions, diff)

	msg, err := a.api.Messages.New(ctx, anthropic.MessageNewParams{
		Model:     a.model,
		MaxTokens: a.maxTokens,
		System: []anthropic.TextBlockParam{
			{Text: systemPrompt},
		},
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(userPrompt)),
		},
	})
	if err != nil {
		if timeoutErr := a.contextErr(ctx, pr); timeoutErr != nil {
			return model.Verdict{}, timeoutErr
		}
		var apiErr *anthropic.Error
		if errors.As(err, &apiErr) {
			return model.Verdict{}, fmt.Errorf("anthropic API call for %s (status %d): %w", pr.Key(), apiErr.StatusCode, err)
		}
		return model.Verdict{}, fmt.Errorf("anthropic API call for %s: %w", pr.Key(), err)
	}

	var text strings.Builder
	for _, block := range msg.Content {
		if block.Type == "text" {
			text.WriteString(block.Text)
			text.WriteString("\n")
		}
	}

	slog.Debug("agent finished", "agent", "anthropic", "repo", pr.RepoFullName, "pr", pr.Number,
		"input_tokens", msg.Usage.InputTokens, "output_tokens", msg.Usage.OutputTokens)

	verdict, err := ParseVerdict(text.String())
	if err != nil {
		return model.Verdict{}, fmt.Errorf("parse anthropic output: %w", err)
	}
	return verdict, nil
}

func (a *APIAgent) contextErr(ctx context.Context, pr model.PullRequest) error {
	switch {
	case errors.Is(ctx.Err(), context.DeadlineExceeded):
		return fmt.Errorf("anthropic review of %s: %w", pr.Key(), driven.ErrAgentTimeout)
	case ctx.Err() != nil:
		return fmt.Errorf("anthropic review of %s: %w", pr.Key(), ctx.Err())
	}
	return nil
}
