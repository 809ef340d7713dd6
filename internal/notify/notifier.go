package notify

import (
	"log/slog"
	"sync"
	"time"

	"github.com/godbus/dbus/v5"
)

// DefaultMinInterval is how long an identical notification is suppressed.
const DefaultMinInterval = 5 * time.Second

// Level indicates the severity of a notification.
type Level int

const (
	// LevelInfo is for informational messages (low urgency).
	LevelInfo Level = iota
	// LevelWarning is for warning messages (normal urgency).
	LevelWarning
	// LevelError is for error messages (critical urgency).
	LevelError
)

// Sender delivers a notification.
type Sender interface {
	Send(n *Notification) (uint32, error)
}

// Notifier builds cuedeck notifications and rate-limits repeats.
type Notifier struct {
	mu     sync.Mutex
	logger *slog.Logger
	sender Sender

	lastNotifyTime map[string]time.Time // key -> last notification time
	minInterval    time.Duration
	now            func() time.Time

	enabled bool
}

// NewNotifier creates a Notifier. A nil sender disables sending.
func NewNotifier(sender Sender, logger *slog.Logger) *Notifier {
	if logger == nil {
		logger = slog.Default()
	}
	return &Notifier{
		logger:         logger,
		sender:         sender,
		lastNotifyTime: make(map[string]time.Time),
		minInterval:    DefaultMinInterval,
		now:            time.Now,
		enabled:        sender != nil,
	}
}

// SetEnabled enables or disables notifications.
func (n *Notifier) SetEnabled(enabled bool) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.enabled = enabled && n.sender != nil
}

// SetMinInterval sets the minimum interval between notifications with the
// same key.
func (n *Notifier) SetMinInterval(interval time.Duration) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.minInterval = interval
}

// Notify sends a notification unless one with the same key was sent within
// the minimum interval. Returns whether it was sent.
func (n *Notifier) Notify(key, summary, body string, level Level) bool {
	n.mu.Lock()
	if !n.enabled {
		n.mu.Unlock()
		return false
	}

	now := n.now()
	if last, ok := n.lastNotifyTime[key]; ok && now.Sub(last) < n.minInterval {
		n.mu.Unlock()
		n.logger.Debug("notification rate-limited", "key", key, "summary", summary)
		return false
	}
	n.lastNotifyTime[key] = now
	sender := n.sender
	n.mu.Unlock()

	notification := build(summary, body, level)

	n.logger.Debug("sending notification", "key", key, "summary", summary, "level", level)
	if _, err := sender.Send(notification); err != nil {
		n.logger.Debug("notification failed", "key", key, "error", err)
		return false
	}
	return true
}

// NotifyError reports a failed console operation.
func (n *Notifier) NotifyError(message string) bool {
	return n.Notify("error:"+message, "cuedeck error", message, LevelError)
}

// NotifySaved reports a saved recording.
func (n *Notifier) NotifySaved(name string) bool {
	return n.Notify("saved:"+name, "Recording saved", "Saved cue '"+name+"'.", LevelInfo)
}

// NotifyDeleted reports a deleted cue.
func (n *Notifier) NotifyDeleted(name string) bool {
	return n.Notify("deleted:"+name, "Cue deleted", "Deleted cue '"+name+"'.", LevelInfo)
}

func build(summary, body string, level Level) *Notification {
	// Map level to D-Bus urgency
	urgency := byte(1)
	icon := "dialog-information"
	switch level {
	case LevelInfo:
		urgency = 0
	case LevelWarning:
		icon = "dialog-warning"
	case LevelError:
		urgency = 2
		icon = "dialog-error"
	}

	return &Notification{
		AppName: "cuedeck",
		AppIcon: icon,
		Summary: summary,
		Body:    body,
		Hints: map[string]dbus.Variant{
			"urgency":       dbus.MakeVariant(urgency),
			"category":      dbus.MakeVariant("device"),
			"transient":     dbus.MakeVariant(true),
			"desktop-entry": dbus.MakeVariant("cuedeck"),
		},
		ExpireTimeout: 5000,
	}
}
