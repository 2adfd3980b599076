package notify_test

import (
	"context"
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ericfisherdev/reviewgate/internal/adapter/driven/notify"
	"github.com/ericfisherdev/reviewgate/internal/domain/model"
)

func sample(event model.NotificationEvent) model.Notification {
	return model.Notification{
		Event:        event,
		RepoFullName: "org/repo",
		PRNumber:     7,
		Title:        "Fix flaky test",
		URL:          "https://github.com/org/repo/pull/7",
		Message:      "Approval waiting for confirmation",
	}
}

func TestDispatcher_RunsHookForEnabledEvent(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("hook runs through sh")
	}

	out := filepath.Join(t.TempDir(), "hook.out")
	d := notify.New(notify.Options{
		Command: `echo "$REVIEWGATE_EVENT $REVIEWGATE_REPO#$REVIEWGATE_PR" >> ` + out,
		Events:  []model.NotificationEvent{model.NotifyPendingApproval},
	})

	require.NoError(t, d.Notify(context.Background(), sample(model.NotifyPendingApproval)))
	require.NoError(t, d.Notify(context.Background(), sample(model.NotifyOutdated)))
	d.Close()

	data, err := os.ReadFile(out)
	require.NoError(t, err)
	assert.Equal(t, "pending_approval org/repo#7\n", string(data))
}

func TestDispatcher_HookFailureIsNotReturned(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("hook runs through sh")
	}

	d := notify.New(notify.Options{
		Command: "exit 1",
		Events:  []model.NotificationEvent{model.NotifyEscalation},
	})

	assert.NoError(t, d.Notify(context.Background(), sample(model.NotifyEscalation)))
	d.Close()
}

func TestDispatcher_NoCommandOnlyLogs(t *testing.T) {
	d := notify.New(notify.Options{Events: []model.NotificationEvent{model.NotifyEscalation}})
	assert.NoError(t, d.Notify(context.Background(), sample(model.NotifyEscalation)))
	d.Close()
}

func TestEnv(t *testing.T) {
	env := notify.Env(sample(model.NotifyAgentTimeout))
	assert.Contains(t, env, "REVIEWGATE_EVENT=agent_timeout")
	assert.Contains(t, env, "REVIEWGATE_PR=7")
	assert.Contains(t, env, "REVIEWGATE_URL=https://github.com/org/repo/pull/7")
}
