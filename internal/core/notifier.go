package core

import "sync"

// NotificationLevel grades a user-facing notification.
type NotificationLevel string

// Notification levels.
const (
	NotifyInfo    NotificationLevel = "info"
	NotifyWarning NotificationLevel = "warning"
	NotifyError   NotificationLevel = "error"
)

// Notification is a message surfaced to the user. Failures are reported
// through notifications and never abort the editing session.
type Notification struct {
	Level       NotificationLevel
	CharacterID string
	Message     string
	Err         error
}

// Notifier receives user-facing notifications.
type Notifier interface {
	Notify(Notification)
}

// NotifierFunc adapts a function to Notifier.
type NotifierFunc func(Notification)

// Notify implements Notifier.
func (f NotifierFunc) Notify(n Notification) { f(n) }

type noopNotifier struct{}

func (noopNotifier) Notify(Notification) {}

// NotificationLog collects notifications in memory.
type NotificationLog struct {
	mu      sync.Mutex
	entries []Notification
}

// Notify implements Notifier.
func (l *NotificationLog) Notify(n Notification) {
	l.mu.Lock()
	l.entries = append(l.entries, n)
	l.mu.Unlock()
}

// Entries returns a copy of the collected notifications.
func (l *NotificationLog) Entries() []Notification {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]Notification, len(l.entries))
	copy(out, l.entries)
	return out
}

// Drain returns and clears the collected notifications.
func (l *NotificationLog) Drain() []Notification {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := l.entries
	l.entries = nil
	return out
}
