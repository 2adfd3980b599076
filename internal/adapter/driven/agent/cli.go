package agent

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os/exec"
	"strings"
	"time"

	"github.com/ericfisherdev/reviewgate/internal/domain/model"
	"github.com/ericfisherdev/reviewgate/internal/domain/port/driven"
)

// Compile-time interface satisfaction check.
var _ driven.DecisionAgent = (*CLIAgent)(nil)

// stderrLimit bounds how much stderr is quoted in errors.
const stderrLimit = 2000

// CLIAgent runs a coding-assistant CLI with the review prompt on stdin and
// parses the verdict from its stdout.
type CLIAgent struct {
	name         string
	command      []string
	instructions string
	dir          string
}

// NewCLIAgent creates an agent that executes command. The first element is
// the executable; the rest are fixed arguments.
func NewCLIAgent(name string, command []string, instructions, dir string) (*CLIAgent, error) {
	if len(command) == 0 || command[0] == "" {
		return nil, fmt.Errorf("%s agent: empty command", name)
	}
	return &CLIAgent{
		name:         name,
		command:      append([]string(nil), command...),
		instructions: instructions,
		dir:          dir,
	}, nil
}

// Review runs the CLI once for pr. A context deadline yields an error
// wrapping driven.ErrAgentTimeout; cancellation returns the context error.
func (a *CLIAgent) Review(ctx context.Context, pr model.PullRequest) (model.Verdict, error) {
	prompt := buildCLIPrompt(pr, a.instructions)

	cmd := exec.CommandContext(ctx, a.command[0], a.command[1:]...)
	cmd.Dir = a.dir
	cmd.Stdin = strings.NewReader(prompt)
	cmd.WaitDelay = 5 * time.Second

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	start := time.Now()
	err := cmd.Run()
	elapsed := time.Since(start).Round(time.Millisecond)

	if ctxErr := ctx.Err(); ctxErr != nil {
		if errors.Is(ctxErr, context.DeadlineExceeded) {
			return model.Verdict{}, fmt.Errorf("%s review of %s after %s: %w", a.name, pr.Key(), elapsed, driven.ErrAgentTimeout)
		}
		return model.Verdict{}, fmt.Errorf("%s review of %s: %w", a.name, pr.Key(), ctxErr)
	}
	if err != nil {
		return model.Verdict{}, fmt.Errorf("%s failed (%s): %w\nstderr: %s", a.name, strings.Join(a.command, " "), err, tail(stderr.String(), stderrLimit))
	}

	slog.Debug("agent finished", "agent", a.name, "repo", pr.RepoFullName, "pr", pr.Number, "elapsed", elapsed, "output_bytes", stdout.Len())

	verdict, err := ParseVerdict(stdout.String())
	if err != nil {
		slog.Error("agent output preview", "agent", a.name, "output", tail(stdout.String(), 1000))
		return model.Verdict{}, fmt.Errorf("parse %s output: %w", a.name, err)
	}
	return verdict, nil
}

func tail(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return "..." + s[len(s)-n:]
}
