package model

// NotificationEvent identifies why a human is being alerted.
type NotificationEvent string

const (
	NotifyPendingApproval NotificationEvent = "pending_approval"
	NotifyEscalation      NotificationEvent = "escalation"
	NotifyAgentTimeout    NotificationEvent = "agent_timeout"
	NotifyOutdated        NotificationEvent = "outdated"
)

// Notification is delivered fire-and-forget to the notifier.
type Notification struct {
	Event        NotificationEvent
	RepoFullName string
	PRNumber     int
	Title        string
	URL          string
	Message      string
}
