// Package agent implements the DecisionAgent port with coding-assistant CLIs
// and the Anthropic Messages API.
package agent

import (
	"fmt"
	"strings"

	"github.com/ericfisherdev/reviewgate/internal/domain/port/driven"
)

// Agent kinds accepted by New.
const (
	KindClaude    = "claude"
	KindCodex     = "codex"
	KindAnthropic = "anthropic"
)

// defaultCommands are the non-interactive invocations of each CLI.
var defaultCommands = map[string][]string{
	KindClaude: {"claude", "--print"},
	KindCodex:  {"codex", "exec", "--sandbox", "danger-full-access", "--skip-git-repo-check"},
}

// Options selects and configures a decision agent.
type Options struct {
	Kind       string
	Command    string // Overrides the default CLI invocation; split on whitespace.
	WorkDir    string
	PromptFile string
	Model      string
	MaxTokens  int64
	APIKey     string
	BaseURL    string
}

// New builds the agent described by opts. diffs is only used by the
// anthropic kind and may be nil.
func New(opts Options, diffs DiffSource) (driven.DecisionAgent, error) {
	instructions, err := LoadInstructions(opts.PromptFile)
	if err != nil {
		return nil, err
	}

	switch opts.Kind {
	case KindClaude, KindCodex:
		command := defaultCommands[opts.Kind]
		if opts.Command != "" {
			command = strings.Fields(opts.Command)
		}
		return NewCLIAgent(opts.Kind, command, instructions, opts.WorkDir)
	case KindAnthropic:
		if opts.Model == "" {
			return nil, fmt.Errorf("anthropic agent: model is required")
		}
		return NewAPIAgent(opts.APIKey, opts.Model, opts.MaxTokens, instructions, diffs, opts.BaseURL), nil
	default:
		return nil, fmt.Errorf("unknown agent kind %q (want %s, %s or %s)", opts.Kind, KindClaude, KindCodex, KindAnthropic)
	}
}
