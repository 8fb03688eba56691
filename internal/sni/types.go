// Package sni provides D-Bus names and error helpers for the StatusNotifierItem protocol.
package sni

import "github.com/godbus/dbus/v5"

// StatusNotifierItem side (exported by us).
const (
	ItemInterface = "org.kde.StatusNotifierItem"
	ItemPath      = dbus.ObjectPath("/StatusNotifierItem")

	SignalNewIcon   = ItemInterface + ".NewIcon"
	SignalNewStatus = ItemInterface + ".NewStatus"
)

// StatusNotifierWatcher side (the registration service).
const (
	WatcherBusName   = "org.kde.StatusNotifierWatcher"
	WatcherInterface = "org.kde.StatusNotifierWatcher"
	WatcherPath      = dbus.ObjectPath("/StatusNotifierWatcher")

	MethodRegisterItem = WatcherInterface + ".RegisterStatusNotifierItem"
)

// Message bus itself.
const (
	BusDaemonName      = "org.freedesktop.DBus"
	BusDaemonInterface = "org.freedesktop.DBus"
	BusDaemonPath      = dbus.ObjectPath("/org/freedesktop/DBus")

	MemberNameOwnerChanged = "NameOwnerChanged"
	SignalNameOwnerChanged = BusDaemonInterface + "." + MemberNameOwnerChanged

	PropertiesInterface     = "org.freedesktop.DBus.Properties"
	IntrospectableInterface = "org.freedesktop.DBus.Introspectable"
	MethodPing              = "org.freedesktop.DBus.Peer.Ping"
)

// Well-known error names.
const (
	ErrServiceUnknown   = "org.freedesktop.DBus.Error.ServiceUnknown"
	ErrNameHasNoOwner   = "org.freedesktop.DBus.Error.NameHasNoOwner"
	ErrFailed           = "org.freedesktop.DBus.Error.Failed"
	ErrUnknownInterface = "org.freedesktop.DBus.Error.UnknownInterface"
	ErrUnknownProperty  = "org.freedesktop.DBus.Error.UnknownProperty"
	ErrPropertyReadOnly = "org.freedesktop.DBus.Error.PropertyReadOnly"
	ErrAccessDenied     = "org.freedesktop.DBus.Error.AccessDenied"
)

// NewDBusError creates a D-Bus error with the given name and message.
func NewDBusError(name, message string) *dbus.Error {
	return &dbus.Error{
		Name: name,
		Body: []interface{}{message},
	}
}

// ErrInterfaceNotFound returns an UnknownInterface error.
func ErrInterfaceNotFound(iface string) *dbus.Error {
	return NewDBusError(ErrUnknownInterface, "Interface "+iface+" is not implemented")
}

// ErrPropertyNotFound returns an UnknownProperty error.
func ErrPropertyNotFound(name string) *dbus.Error {
	return NewDBusError(ErrUnknownProperty, "Property "+name+" does not exist")
}

// ErrReadOnly returns a PropertyReadOnly error.
func ErrReadOnly(name string) *dbus.Error {
	return NewDBusError(ErrPropertyReadOnly, "Property "+name+" is read-only")
}
