// Package tray exposes the toggle switch as a StatusNotifierItem and drives
// its registration and event loop.
package tray

import (
	"context"
	"errors"

	"github.com/godbus/dbus/v5"
)

// Transport is the subset of a bus connection the tray needs.
// *dbus.Conn satisfies it through connTransport.
type Transport interface {
	Call(ctx context.Context, dest string, path dbus.ObjectPath, method string, args ...interface{}) error
	AddMatchSignal(options ...dbus.MatchOption) error
	Emit(path dbus.ObjectPath, name string, values ...interface{}) error
}

// connTransport adapts *dbus.Conn to Transport.
type connTransport struct {
	*dbus.Conn
}

func (t connTransport) Call(ctx context.Context, dest string, path dbus.ObjectPath, method string, args ...interface{}) error {
	return t.Object(dest, path).CallWithContext(ctx, method, 0, args...).Err
}

// errorName returns the D-Bus error name carried by err, if any.
func errorName(err error) (string, bool) {
	var e dbus.Error
	if errors.As(err, &e) {
		return e.Name, true
	}
	var pe *dbus.Error
	if errors.As(err, &pe) && pe != nil {
		return pe.Name, true
	}
	return "", false
}
