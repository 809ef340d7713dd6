package notify

import (
	"fmt"
	"sync"

	"github.com/godbus/dbus/v5"
)

// D-Bus names of the notification service.
const (
	busName    = "org.freedesktop.Notifications"
	objectPath = "/org/freedesktop/Notifications"
	notifyCall = busName + ".Notify"
)

// Notification holds the parameters of a Notify call.
type Notification struct {
	AppName       string
	ReplacesID    uint32
	AppIcon       string
	Summary       string
	Body          string
	Actions       []string // Alternating key, label pairs
	Hints         map[string]dbus.Variant
	ExpireTimeout int32 // -1 = server default, 0 = never expire
}

// Urgency returns the urgency hint, or 1 (normal) when unset.
func (n *Notification) Urgency() byte {
	if v, ok := n.Hints["urgency"]; ok {
		if b, ok := v.Value().(byte); ok {
			return b
		}
	}
	return 1
}

// Desktop is a client for the session bus notification daemon.
type Desktop struct {
	mu   sync.Mutex
	conn *dbus.Conn
}

// NewDesktop creates a client. The bus is connected on first use.
func NewDesktop() *Desktop {
	return &Desktop{}
}

// Send delivers n and returns the id the daemon assigned to it.
func (d *Desktop) Send(n *Notification) (uint32, error) {
	conn, err := d.connect()
	if err != nil {
		return 0, err
	}

	actions := n.Actions
	if actions == nil {
		actions = []string{}
	}
	hints := n.Hints
	if hints == nil {
		hints = map[string]dbus.Variant{}
	}

	var id uint32
	obj := conn.Object(busName, dbus.ObjectPath(objectPath))
	call := obj.Call(notifyCall, 0,
		n.AppName,
		n.ReplacesID,
		n.AppIcon,
		n.Summary,
		n.Body,
		actions,
		hints,
		n.ExpireTimeout,
	)
	if call.Err != nil {
		return 0, fmt.Errorf("notify call failed: %w", call.Err)
	}
	if err := call.Store(&id); err != nil {
		return 0, fmt.Errorf("failed to read notification id: %w", err)
	}
	return id, nil
}

func (d *Desktop) connect() (*dbus.Conn, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.conn != nil && d.conn.Connected() {
		return d.conn, nil
	}

	// Shared connection; never closed here.
	conn, err := dbus.SessionBus()
	if err != nil {
		return nil, fmt.Errorf("failed to connect to session bus: %w", err)
	}
	d.conn = conn
	return conn, nil
}
