package agent

import (
	_ "embed"
	"fmt"
	"os"
	"strings"

	"github.com/ericfisherdev/reviewgate/internal/domain/model"
)

//go:embed prompt.md
var defaultInstructions string

// LoadInstructions reads review instructions from path, or returns the
// built-in instructions when path is empty.
func LoadInstructions(path string) (string, error) {
	if path == "" {
		return defaultInstructions, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("read prompt file: %w", err)
	}
	if strings.TrimSpace(string(data)) == "" {
		return "", fmt.Errorf("prompt file %s is empty", path)
	}
	return string(data), nil
}

// buildCLIPrompt frames the instructions around the PR link. CLI agents
// fetch the pull request themselves.
func buildCLIPrompt(pr model.PullRequest, instructions string) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Please review this GitHub pull request: %s\n\n", pr.URL)
	fmt.Fprintf(&sb, "Repository: %s\n", pr.RepoFullName)
	fmt.Fprintf(&sb, "PR Number: #%d\n", pr.Number)
	fmt.Fprintf(&sb, "Head commit: %s\n\n", pr.HeadSHA)
	sb.WriteString(strings.TrimSpace(instructions))
	fmt.Fprintf(&sb, "\n\nPlease analyze the pull request at %s and provide your review following the instructions above.\n", pr.URL)
	return sb.String()
}

// buildAPIPrompt returns the system and user prompts for API-backed review.
// The diff is inlined because the model has no tools to fetch it.
func buildAPIPrompt(pr model.PullRequest, instructions, diff string) (system string, user string) {
	system = strings.TrimSpace(instructions)

	var sb strings.Builder
	fmt.Fprintf(&sb, "Pull request: %s\n", pr.URL)
	fmt.Fprintf(&sb, "Repository: %s\n", pr.RepoFullName)
	fmt.Fprintf(&sb, "PR Number: #%d\n", pr.Number)
	fmt.Fprintf(&sb, "Title: %s\n", pr.Title)
	fmt.Fprintf(&sb, "Author: %s\n", pr.Author)
	fmt.Fprintf(&sb, "Head commit: %s\n", pr.HeadSHA)
	if diff != "" {
		sb.WriteString("\nUnified diff:\n```diff\n")
		sb.WriteString(diff)
		if !strings.HasSuffix(diff, "\n") {
			sb.WriteString("\n")
		}
		sb.WriteString("```\n")
	}
	user = sb.String()
	return
}

// truncateDiff caps the diff at limit bytes, cutting on a line boundary.
func truncateDiff(diff string, limit int) string {
	if limit <= 0 || len(diff) <= limit {
		return diff
	}
	cut := diff[:limit]
	if i := strings.LastIndexByte(cut, '\n'); i > 0 {
		cut = cut[:i+1]
	}
	return cut + "... diff truncated ...\n"
}
