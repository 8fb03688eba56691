// Package notification sends desktop notifications through
// org.freedesktop.Notifications.
package notification

import (
	"fmt"

	"github.com/godbus/dbus/v5"
)

const (
	notifyDest      = "org.freedesktop.Notifications"
	notifyPath      = "/org/freedesktop/Notifications"
	notifyInterface = "org.freedesktop.Notifications"
)

// Caller performs a method call on the bus. *dbus.Conn satisfies it via
// ConnCaller.
type Caller interface {
	Call(dest string, path dbus.ObjectPath, method string, args ...interface{}) (*dbus.Call, error)
}

// ConnCaller adapts *dbus.Conn to Caller.
type ConnCaller struct {
	Conn *dbus.Conn
}

func (c ConnCaller) Call(dest string, path dbus.ObjectPath, method string, args ...interface{}) (*dbus.Call, error) {
	call := c.Conn.Object(dest, path).Call(method, 0, args...)
	return call, call.Err
}

// DBusNotifier sends notifications on an existing connection. Each
// notification replaces the previous one so repeated failures don't pile up.
// It is not safe for concurrent use.
type DBusNotifier struct {
	caller  Caller
	appName string
	lastID  uint32
}

// NewDBusNotifier creates a notifier that uses caller and reports appName.
func NewDBusNotifier(caller Caller, appName string) *DBusNotifier {
	return &DBusNotifier{caller: caller, appName: appName}
}

// Notify sends a notification and returns its ID.
func (n *DBusNotifier) Notify(summary, body, icon string) (uint32, error) {
	call, err := n.caller.Call(notifyDest, notifyPath, notifyInterface+".Notify",
		n.appName, // app_name
		n.lastID,  // replaces_id (0 = new notification)
		icon,      // app_icon
		summary,   // summary
		body,      // body
		[]string{},
		map[string]dbus.Variant{
			"urgency": dbus.MakeVariant(byte(1)), // normal
		},
		int32(-1), // expire_timeout (-1 = server default)
	)
	if err != nil {
		return 0, fmt.Errorf("notify call: %w", err)
	}

	var id uint32
	if err := call.Store(&id); err != nil {
		return 0, fmt.Errorf("store notify result: %w", err)
	}
	n.lastID = id
	return id, nil
}
