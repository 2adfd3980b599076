// Package config loads application configuration from a YAML file, a .env
// file, REVIEWGATE_* environment variables and command-line flags.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/ericfisherdev/reviewgate/internal/application"
	"github.com/ericfisherdev/reviewgate/internal/domain/model"
)

// EnvPrefix is prepended to every configuration key looked up in the environment.
const EnvPrefix = "REVIEWGATE"

// Agent kinds accepted by agent.kind.
const (
	AgentClaude    = "claude"
	AgentCodex     = "codex"
	AgentAnthropic = "anthropic"
)

// Config holds the validated application configuration. It is not modified
// after Load returns.
type Config struct {
	GitHub         GitHubConfig
	Poll           PollConfig
	Repositories   []string
	Authors        []string
	ExcludeAuthors []string
	DryRun         bool
	DBPath         string
	ListenAddr     string
	Agent          AgentConfig
	Anthropic      AnthropicConfig
	Review         ReviewConfig
	Notify         NotifyConfig
	Log            LogConfig
}

type GitHubConfig struct {
	Token    string
	Username string
	APIURL   string
}

type PollConfig struct {
	Interval    time.Duration
	Concurrency int
}

type AgentConfig struct {
	Kind       string
	Timeout    time.Duration
	Command    string
	WorkDir    string
	PromptFile string
	Model      string
	MaxTokens  int64
}

type AnthropicConfig struct {
	APIKey  string
	BaseURL string
}

type ReviewConfig struct {
	// ConfirmChangeRequests queues request_changes verdicts for a human
	// instead of posting them directly.
	ConfirmChangeRequests bool
}

type NotifyConfig struct {
	Command      string
	Timeout      time.Duration
	OnPending    bool
	OnEscalation bool
	OnTimeout    bool
	OnOutdated   bool
}

type LogConfig struct {
	Level  string
	Format string
}

// flagKeys maps persistent flag names to configuration keys.
var flagKeys = map[string]string{
	"dry-run": "dry_run",
	"db":      "db_path",
	"listen":  "listen_addr",
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("github.token", "")
	v.SetDefault("github.username", "")
	v.SetDefault("github.api_url", "")
	v.SetDefault("poll.interval", "60s")
	v.SetDefault("poll.concurrency", 4)
	v.SetDefault("repositories", []string{})
	v.SetDefault("authors", []string{})
	v.SetDefault("exclude_authors", []string{})
	v.SetDefault("dry_run", false)
	v.SetDefault("db_path", filepath.Join("data", "reviews.db"))
	v.SetDefault("listen_addr", "127.0.0.1:8000")
	v.SetDefault("agent.kind", AgentClaude)
	v.SetDefault("agent.timeout", "600s")
	v.SetDefault("agent.command", "")
	v.SetDefault("agent.workdir", "")
	v.SetDefault("agent.prompt_file", "")
	v.SetDefault("agent.model", "")
	v.SetDefault("agent.max_tokens", 4096)
	v.SetDefault("anthropic.api_key", "")
	v.SetDefault("anthropic.base_url", "")
	v.SetDefault("review.confirm_change_requests", false)
	v.SetDefault("notify.command", "")
	v.SetDefault("notify.timeout", "30s")
	v.SetDefault("notify.on_pending", true)
	v.SetDefault("notify.on_escalation", true)
	v.SetDefault("notify.on_timeout", true)
	v.SetDefault("notify.on_outdated", false)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")
}

// Load reads configuration with precedence flags > environment > config file >
// defaults and returns a validated Config. path selects the config file; when
// empty, reviewgate.yaml is looked up in the working directory and in
// $HOME/.config/reviewgate, and a missing file is not an error. flags may be nil.
func Load(path string, flags *pflag.FlagSet) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	// Conventional variables used by gh and the Anthropic SDK.
	_ = v.BindEnv("github.token", EnvPrefix+"_GITHUB_TOKEN", "GITHUB_TOKEN")
	_ = v.BindEnv("anthropic.api_key", EnvPrefix+"_ANTHROPIC_API_KEY", "ANTHROPIC_API_KEY")

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	} else {
		v.SetConfigName("reviewgate")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		if home, err := os.UserHomeDir(); err == nil {
			v.AddConfigPath(filepath.Join(home, ".config", "reviewgate"))
		}
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return nil, fmt.Errorf("read config: %w", err)
			}
		}
	}

	if flags != nil {
		for name, key := range flagKeys {
			if f := flags.Lookup(name); f != nil {
				if err := v.BindPFlag(key, f); err != nil {
					return nil, fmt.Errorf("bind flag %s: %w", name, err)
				}
			}
		}
	}

	cfg := &Config{
		GitHub: GitHubConfig{
			Token:    v.GetString("github.token"),
			Username: v.GetString("github.username"),
			APIURL:   v.GetString("github.api_url"),
		},
		Poll: PollConfig{
			Interval:    v.GetDuration("poll.interval"),
			Concurrency: v.GetInt("poll.concurrency"),
		},
		Repositories:   stringList(v.Get("repositories")),
		Authors:        stringList(v.Get("authors")),
		ExcludeAuthors: stringList(v.Get("exclude_authors")),
		DryRun:         v.GetBool("dry_run"),
		DBPath:         v.GetString("db_path"),
		ListenAddr:     v.GetString("listen_addr"),
		Agent: AgentConfig{
			Kind:       strings.ToLower(strings.TrimSpace(v.GetString("agent.kind"))),
			Timeout:    v.GetDuration("agent.timeout"),
			Command:    v.GetString("agent.command"),
			WorkDir:    v.GetString("agent.workdir"),
			PromptFile: v.GetString("agent.prompt_file"),
			Model:      v.GetString("agent.model"),
			MaxTokens:  v.GetInt64("agent.max_tokens"),
		},
		Anthropic: AnthropicConfig{
			APIKey:  v.GetString("anthropic.api_key"),
			BaseURL: v.GetString("anthropic.base_url"),
		},
		Review: ReviewConfig{
			ConfirmChangeRequests: v.GetBool("review.confirm_change_requests"),
		},
		Notify: NotifyConfig{
			Command:      v.GetString("notify.command"),
			Timeout:      v.GetDuration("notify.timeout"),
			OnPending:    v.GetBool("notify.on_pending"),
			OnEscalation: v.GetBool("notify.on_escalation"),
			OnTimeout:    v.GetBool("notify.on_timeout"),
			OnOutdated:   v.GetBool("notify.on_outdated"),
		},
		Log: LogConfig{
			Level:  strings.ToLower(v.GetString("log.level")),
			Format: strings.ToLower(v.GetString("log.format")),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the configuration for values the services cannot run with.
// GitHub credentials are checked separately by RequireGitHub because read-only
// commands do not need them.
func (c *Config) Validate() error {
	var errs []error

	if c.Poll.Interval <= 0 {
		errs = append(errs, fmt.Errorf("poll.interval must be positive, got %s", c.Poll.Interval))
	}
	if c.Poll.Concurrency < 1 {
		errs = append(errs, fmt.Errorf("poll.concurrency must be at least 1, got %d", c.Poll.Concurrency))
	}
	for _, repo := range c.Repositories {
		if !validRepo(repo) {
			errs = append(errs, fmt.Errorf("repositories: %q is not in owner/repo form", repo))
		}
	}
	if c.DBPath == "" {
		errs = append(errs, errors.New("db_path is required"))
	}
	if c.ListenAddr == "" {
		errs = append(errs, errors.New("listen_addr is required"))
	}

	switch c.Agent.Kind {
	case AgentClaude, AgentCodex:
	case AgentAnthropic:
		if c.Agent.Model == "" {
			errs = append(errs, errors.New("agent.model is required for the anthropic agent"))
		}
		if c.Anthropic.APIKey == "" {
			errs = append(errs, errors.New("anthropic.api_key is required for the anthropic agent"))
		}
	default:
		errs = append(errs, fmt.Errorf("agent.kind must be claude, codex or anthropic, got %q", c.Agent.Kind))
	}
	if c.Agent.Timeout < 0 {
		errs = append(errs, errors.New("agent.timeout must not be negative"))
	}
	if c.Agent.MaxTokens < 1 {
		errs = append(errs, errors.New("agent.max_tokens must be positive"))
	}

	switch c.Log.Level {
	case "debug", "info", "warn", "error":
	default:
		errs = append(errs, fmt.Errorf("log.level must be debug, info, warn or error, got %q", c.Log.Level))
	}
	switch c.Log.Format {
	case "text", "json":
	default:
		errs = append(errs, fmt.Errorf("log.format must be text or json, got %q", c.Log.Format))
	}

	return errors.Join(errs...)
}

// RequireGitHub reports an error when no GitHub token is configured.
func (c *Config) RequireGitHub() error {
	if c.GitHub.Token == "" {
		return errors.New("github.token is required (set REVIEWGATE_GITHUB_TOKEN or GITHUB_TOKEN)")
	}
	return nil
}

// PollConfig derives the poll orchestrator configuration.
func (c *Config) PollConfig() application.PollConfig {
	return application.PollConfig{
		Interval:       c.Poll.Interval,
		Repositories:   c.Repositories,
		Authors:        c.Authors,
		ExcludeAuthors: c.ExcludeAuthors,
		DryRun:         c.DryRun,
		Concurrency:    c.Poll.Concurrency,
		AgentTimeout:   c.Agent.Timeout,
	}
}

// NotifyEvents lists the notification events that run the hook command.
func (c *Config) NotifyEvents() []model.NotificationEvent {
	var events []model.NotificationEvent
	if c.Notify.OnPending {
		events = append(events, model.NotifyPendingApproval)
	}
	if c.Notify.OnEscalation {
		events = append(events, model.NotifyEscalation)
	}
	if c.Notify.OnTimeout {
		events = append(events, model.NotifyAgentTimeout)
	}
	if c.Notify.OnOutdated {
		events = append(events, model.NotifyOutdated)
	}
	return events
}

// YAML renders the effective configuration with secrets redacted.
func (c *Config) YAML() ([]byte, error) {
	view := map[string]any{
		"github": map[string]any{
			"token":    redact(c.GitHub.Token),
			"username": c.GitHub.Username,
			"api_url":  c.GitHub.APIURL,
		},
		"poll": map[string]any{
			"interval":    c.Poll.Interval.String(),
			"concurrency": c.Poll.Concurrency,
		},
		"repositories":    c.Repositories,
		"authors":         c.Authors,
		"exclude_authors": c.ExcludeAuthors,
		"dry_run":         c.DryRun,
		"db_path":         c.DBPath,
		"listen_addr":     c.ListenAddr,
		"agent": map[string]any{
			"kind":        c.Agent.Kind,
			"timeout":     c.Agent.Timeout.String(),
			"command":     c.Agent.Command,
			"workdir":     c.Agent.WorkDir,
			"prompt_file": c.Agent.PromptFile,
			"model":       c.Agent.Model,
			"max_tokens":  c.Agent.MaxTokens,
		},
		"anthropic": map[string]any{
			"api_key":  redact(c.Anthropic.APIKey),
			"base_url": c.Anthropic.BaseURL,
		},
		"review": map[string]any{
			"confirm_change_requests": c.Review.ConfirmChangeRequests,
		},
		"notify": map[string]any{
			"command":       c.Notify.Command,
			"timeout":       c.Notify.Timeout.String(),
			"on_pending":    c.Notify.OnPending,
			"on_escalation": c.Notify.OnEscalation,
			"on_timeout":    c.Notify.OnTimeout,
			"on_outdated":   c.Notify.OnOutdated,
		},
		"log": map[string]any{
			"level":  c.Log.Level,
			"format": c.Log.Format,
		},
	}
	return yaml.Marshal(view)
}

func redact(secret string) string {
	if secret == "" {
		return ""
	}
	return "<redacted>"
}

// stringList accepts a YAML list or a comma/space separated string.
func stringList(raw any) []string {
	var parts []string
	switch val := raw.(type) {
	case nil:
	case string:
		parts = strings.FieldsFunc(val, func(r rune) bool {
			return r == ',' || r == ' ' || r == '\t' || r == '\n'
		})
	case []string:
		parts = val
	case []any:
		for _, item := range val {
			parts = append(parts, fmt.Sprint(item))
		}
	default:
		parts = []string{fmt.Sprint(val)}
	}

	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func validRepo(name string) bool {
	owner, repo, ok := strings.Cut(name, "/")
	return ok && owner != "" && repo != "" && !strings.Contains(repo, "/")
}
