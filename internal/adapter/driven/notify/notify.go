// Package notify implements the Notifier port. Every notification is logged;
// enabled events additionally run a user-supplied shell command.
package notify

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/ericfisherdev/reviewgate/internal/domain/model"
	"github.com/ericfisherdev/reviewgate/internal/domain/port/driven"
)

// Compile-time interface satisfaction check.
var _ driven.Notifier = (*Dispatcher)(nil)

const defaultTimeout = 30 * time.Second

// Options configures a Dispatcher.
type Options struct {
	// Command is run through "sh -c" with the notification in REVIEWGATE_*
	// environment variables. Empty disables the hook.
	Command string
	// Events lists which events run the hook. Events not listed are only logged.
	Events  []model.NotificationEvent
	Timeout time.Duration
}

// Dispatcher logs notifications and runs the configured hook in the
// background so the caller never waits on it.
type Dispatcher struct {
	command string
	enabled map[model.NotificationEvent]bool
	timeout time.Duration
	wg      sync.WaitGroup
}

// New creates a Dispatcher.
func New(opts Options) *Dispatcher {
	enabled := make(map[model.NotificationEvent]bool, len(opts.Events))
	for _, e := range opts.Events {
		enabled[e] = true
	}
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &Dispatcher{
		command: strings.TrimSpace(opts.Command),
		enabled: enabled,
		timeout: timeout,
	}
}

// Notify logs n and, when the hook is enabled for its event, starts the hook.
// It returns immediately; hook failures are logged.
func (d *Dispatcher) Notify(ctx context.Context, n model.Notification) error {
	slog.Info("notification",
		"event", string(n.Event),
		"repo", n.RepoFullName,
		"pr", n.PRNumber,
		"title", n.Title,
		"message", n.Message,
	)

	if d.command == "" || !d.enabled[n.Event] {
		return nil
	}

	d.wg.Add(1)
	go func() {
		defer d.wg.Done()

		hookCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), d.timeout)
		defer cancel()

		if err := d.run(hookCtx, n); err != nil {
			slog.Warn("notification hook failed", "event", string(n.Event), "repo", n.RepoFullName, "pr", n.PRNumber, "error", err)
		}
	}()

	return nil
}

// Close waits for running hooks to finish.
func (d *Dispatcher) Close() {
	d.wg.Wait()
}

func (d *Dispatcher) run(ctx context.Context, n model.Notification) error {
	cmd := exec.CommandContext(ctx, "sh", "-c", d.command)
	cmd.Env = append(os.Environ(), Env(n)...)
	cmd.WaitDelay = 2 * time.Second

	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return fmt.Errorf("run %q: %w: %s", d.command, err, strings.TrimSpace(stderr.String()))
	}
	return nil
}

// Env renders n as REVIEWGATE_* environment variables.
func Env(n model.Notification) []string {
	return []string{
		"REVIEWGATE_EVENT=" + string(n.Event),
		"REVIEWGATE_REPO=" + n.RepoFullName,
		"REVIEWGATE_PR=" + strconv.Itoa(n.PRNumber),
		"REVIEWGATE_TITLE=" + n.Title,
		"REVIEWGATE_URL=" + n.URL,
		"REVIEWGATE_MESSAGE=" + n.Message,
	}
}
