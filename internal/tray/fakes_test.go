package tray

import (
	"context"
	"log/slog"
	"sync"

	"github.com/godbus/dbus/v5"

	"github.com/nikicat/toggler/internal/sni"
	"github.com/nikicat/toggler/internal/toggle"
)

var discardLogger = slog.New(slog.DiscardHandler)

type fakeCall struct {
	dest   string
	path   dbus.ObjectPath
	method string
	args   []interface{}
}

// fakeTransport records bus traffic. Call answers are taken from callErrs in
// order; once exhausted, calls succeed.
type fakeTransport struct {
	mu       sync.Mutex
	callErrs []error
	calls    []fakeCall
	added    int
	emitted  []string
	emitErr  error
	addErr   error
}

func (f *fakeTransport) Call(ctx context.Context, dest string, path dbus.ObjectPath, method string, args ...interface{}) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, fakeCall{dest, path, method, args})
	if len(f.callErrs) == 0 {
		return nil
	}
	err := f.callErrs[0]
	f.callErrs = f.callErrs[1:]
	return err
}

func (f *fakeTransport) AddMatchSignal(options ...dbus.MatchOption) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.addErr != nil {
		return f.addErr
	}
	f.added++
	return nil
}

func (f *fakeTransport) Emit(path dbus.ObjectPath, name string, values ...interface{}) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.emitErr != nil {
		return f.emitErr
	}
	f.emitted = append(f.emitted, string(path)+" "+name)
	return nil
}

func (f *fakeTransport) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

func (f *fakeTransport) emits() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.emitted...)
}

func (f *fakeTransport) matches() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.added
}

// fakeRunner fails the commands listed in fail with the given exit code.
type fakeRunner struct {
	mu   sync.Mutex
	fail map[string]int
	ran  []string
}

func (r *fakeRunner) Run(command string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.ran = append(r.ran, command)
	if code, ok := r.fail[command]; ok {
		return &toggle.CommandError{Command: command, ExitCode: code}
	}
	return nil
}

func (r *fakeRunner) commands() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.ran...)
}

type fakeNotifier struct {
	bodies []string
	err    error
}

func (n *fakeNotifier) Notify(summary, body, icon string) (uint32, error) {
	n.bodies = append(n.bodies, body)
	return uint32(len(n.bodies)), n.err
}

func serviceUnknown() error {
	return dbus.Error{
		Name: sni.ErrServiceUnknown,
		Body: []interface{}{"The name org.kde.StatusNotifierWatcher was not provided by any .service files"},
	}
}

func nameOwnerChanged(body ...interface{}) *dbus.Signal {
	return &dbus.Signal{
		Sender: sni.BusDaemonName,
		Path:   sni.BusDaemonPath,
		Name:   sni.SignalNameOwnerChanged,
		Body:   body,
	}
}

func watcherAppeared() *dbus.Signal {
	return nameOwnerChanged(sni.WatcherBusName, "", ":1.42")
}

var expectedEmits = []string{
	"/StatusNotifierItem org.kde.StatusNotifierItem.NewIcon",
	"/StatusNotifierItem org.kde.StatusNotifierItem.NewStatus",
}
