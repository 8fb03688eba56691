// Package testutil provides test utilities including a mock StatusNotifierWatcher.
package testutil

import (
	"fmt"
	"slices"
	"strings"
	"sync"

	"github.com/godbus/dbus/v5"
	"github.com/godbus/dbus/v5/introspect"

	"github.com/nikicat/toggler/internal/sni"
)

// MockWatcher is a minimal StatusNotifierWatcher implementation for testing.
type MockWatcher struct {
	conn *dbus.Conn

	mu         sync.Mutex
	items      []string
	registered chan string
	reject     string
}

// NewMockWatcher creates a new mock watcher.
func NewMockWatcher() *MockWatcher {
	return &MockWatcher{
		registered: make(chan string, 16),
	}
}

// Reject makes every later registration fail with an AccessDenied error
// carrying message. An empty message accepts registrations again.
func (w *MockWatcher) Reject(message string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.reject = message
}

// Register exports the mock watcher on conn and takes its well-known name.
func (w *MockWatcher) Register(conn *dbus.Conn) error {
	w.conn = conn

	if err := conn.Export(w, sni.WatcherPath, sni.WatcherInterface); err != nil {
		return fmt.Errorf("export Watcher: %w", err)
	}

	node := &introspect.Node{
		Interfaces: []introspect.Interface{
			introspect.IntrospectData,
			{
				Name:    sni.WatcherInterface,
				Methods: introspect.Methods(w),
				Signals: []introspect.Signal{{
					Name: "StatusNotifierItemRegistered",
					Args: []introspect.Arg{{Name: "service", Type: "s"}},
				}},
			},
		},
	}
	if err := conn.Export(introspect.NewIntrospectable(node), sni.WatcherPath, sni.IntrospectableInterface); err != nil {
		return fmt.Errorf("export Introspectable: %w", err)
	}

	reply, err := conn.RequestName(sni.WatcherBusName, dbus.NameFlagDoNotQueue)
	if err != nil {
		return fmt.Errorf("request name: %w", err)
	}
	if reply != dbus.RequestNameReplyPrimaryOwner {
		return fmt.Errorf("not primary owner (reply=%d)", reply)
	}

	return nil
}

// RegisterStatusNotifierItem records the item. A bare path is qualified
// with the caller's unique name, the way real watchers do it.
func (w *MockWatcher) RegisterStatusNotifierItem(service string, sender dbus.Sender) *dbus.Error {
	w.mu.Lock()
	if w.reject != "" {
		msg := w.reject
		w.mu.Unlock()
		return sni.NewDBusError(sni.ErrAccessDenied, msg)
	}

	identifier := service + string(sni.ItemPath)
	if strings.HasPrefix(service, "/") {
		identifier = string(sender) + service
	}
	if !slices.Contains(w.items, identifier) {
		w.items = append(w.items, identifier)
	}
	w.mu.Unlock()

	if w.conn != nil {
		w.conn.Emit(sni.WatcherPath, sni.WatcherInterface+".StatusNotifierItemRegistered", identifier)
	}

	select {
	case w.registered <- identifier:
	default:
	}
	return nil
}

// Items returns the registered item identifiers.
func (w *MockWatcher) Items() []string {
	w.mu.Lock()
	defer w.mu.Unlock()
	return slices.Clone(w.items)
}

// Registered returns a channel that receives each accepted registration.
func (w *MockWatcher) Registered() <-chan string {
	return w.registered
}

// Close releases the well-known name.
func (w *MockWatcher) Close() error {
	if w.conn == nil {
		return nil
	}
	_, err := w.conn.ReleaseName(sni.WatcherBusName)
	return err
}
