package tray

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/godbus/dbus/v5"

	"github.com/nikicat/toggler/internal/sni"
)

func TestRegisterSuccessFirstAttempt(t *testing.T) {
	ft := &fakeTransport{}
	r := NewRegistrar(ft, ":1.7", discardLogger)

	if err := r.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}

	if r.State() != Registered {
		t.Errorf("state = %v, want registered", r.State())
	}
	if added := ft.matches(); added != 0 {
		t.Errorf("added %d match rules, want 0", added)
	}
	if r.Armed() {
		t.Error("subscription armed after first-attempt success")
	}

	if len(ft.calls) != 1 {
		t.Fatalf("expected 1 call, got %d", len(ft.calls))
	}
	c := ft.calls[0]
	if c.dest != sni.WatcherBusName || c.path != sni.WatcherPath || c.method != sni.MethodRegisterItem {
		t.Errorf("unexpected call target %s %s %s", c.dest, c.path, c.method)
	}
	if len(c.args) != 1 || c.args[0] != ":1.7" {
		t.Errorf("args = %v, want [:1.7]", c.args)
	}
}

func TestRegisterClassifiesOutcome(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want OutcomeKind
	}{
		{"success", nil, OutcomeSuccess},
		{"service unknown", serviceUnknown(), OutcomeServiceUnavailable},
		{"name has no owner", dbus.Error{Name: sni.ErrNameHasNoOwner}, OutcomeServiceUnavailable},
		{"pointer error", dbus.NewError(sni.ErrServiceUnknown, nil), OutcomeServiceUnavailable},
		{"rejected", dbus.Error{Name: sni.ErrAccessDenied, Body: []interface{}{"go away"}}, OutcomeFailure},
		{"transport", errors.New("connection reset"), OutcomeFailure},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ft := &fakeTransport{callErrs: []error{tt.err}}
			got := NewRegistrar(ft, ":1.7", discardLogger).Register(context.Background())
			if got.Kind != tt.want {
				t.Errorf("Kind = %v, want %v", got.Kind, tt.want)
			}
			if (got.Err != nil) != (tt.want == OutcomeFailure) {
				t.Errorf("Err = %v for kind %v", got.Err, got.Kind)
			}
		})
	}
}

func TestRegisterFatalFailure(t *testing.T) {
	ft := &fakeTransport{callErrs: []error{
		dbus.Error{Name: sni.ErrAccessDenied, Body: []interface{}{"items not welcome"}},
	}}
	r := NewRegistrar(ft, ":1.7", discardLogger)

	err := r.Start(context.Background())
	if err == nil {
		t.Fatal("expected fatal error")
	}
	if !strings.Contains(err.Error(), "items not welcome") {
		t.Errorf("error should carry remote message: %v", err)
	}
	if r.Armed() {
		t.Error("subscription armed after fatal failure")
	}
}

func TestRegisterRetryOnAppearance(t *testing.T) {
	ctx := context.Background()
	ft := &fakeTransport{callErrs: []error{serviceUnknown()}}
	r := NewRegistrar(ft, ":1.7", discardLogger)

	if err := r.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if r.State() != AwaitingWatcher {
		t.Errorf("state = %v, want awaiting_watcher", r.State())
	}
	if added := ft.matches(); added != 1 {
		t.Fatalf("added %d match rules, want 1", added)
	}

	if err := r.HandleSignal(ctx, watcherAppeared()); err != nil {
		t.Fatalf("HandleSignal: %v", err)
	}
	if n := ft.callCount(); n != 2 {
		t.Errorf("calls = %d, want 2 (one retry)", n)
	}
	if r.State() != Registered {
		t.Errorf("state = %v, want registered", r.State())
	}
	if !r.Armed() {
		t.Error("match rule should stay armed after a late registration")
	}
}

func TestRegisterAgainAfterWatcherRestart(t *testing.T) {
	ctx := context.Background()
	ft := &fakeTransport{callErrs: []error{serviceUnknown()}}
	r := NewRegistrar(ft, ":1.7", discardLogger)

	if err := r.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if err := r.HandleSignal(ctx, watcherAppeared()); err != nil {
		t.Fatalf("HandleSignal: %v", err)
	}

	// The shell restarts: the watcher goes away, then comes back.
	if err := r.HandleSignal(ctx, nameOwnerChanged(sni.WatcherBusName, ":1.42", "")); err != nil {
		t.Fatalf("HandleSignal: %v", err)
	}
	if r.State() != AwaitingWatcher {
		t.Errorf("state = %v after watcher vanished, want awaiting_watcher", r.State())
	}
	if n := ft.callCount(); n != 2 {
		t.Errorf("calls = %d after watcher vanished, want 2", n)
	}

	if err := r.HandleSignal(ctx, nameOwnerChanged(sni.WatcherBusName, "", ":1.60")); err != nil {
		t.Fatalf("HandleSignal: %v", err)
	}
	if n := ft.callCount(); n != 3 {
		t.Errorf("calls = %d, want 3 (one registration per new watcher)", n)
	}
	if r.State() != Registered {
		t.Errorf("state = %v, want registered", r.State())
	}
	if added := ft.matches(); added != 1 {
		t.Errorf("added %d match rules, want 1", added)
	}
}

func TestRegisterOwnerHandoverReregisters(t *testing.T) {
	ctx := context.Background()
	ft := &fakeTransport{callErrs: []error{serviceUnknown()}}
	r := NewRegistrar(ft, ":1.7", discardLogger)

	if err := r.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if err := r.HandleSignal(ctx, watcherAppeared()); err != nil {
		t.Fatalf("HandleSignal: %v", err)
	}
	// Name passed straight to a queued owner.
	if err := r.HandleSignal(ctx, nameOwnerChanged(sni.WatcherBusName, ":1.42", ":1.43")); err != nil {
		t.Fatalf("HandleSignal: %v", err)
	}
	if n := ft.callCount(); n != 3 {
		t.Errorf("calls = %d, want 3", n)
	}
}

func TestRegisterStillUnavailableKeepsOneSubscription(t *testing.T) {
	ctx := context.Background()
	ft := &fakeTransport{callErrs: []error{serviceUnknown(), serviceUnknown()}}
	r := NewRegistrar(ft, ":1.7", discardLogger)

	if err := r.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if err := r.HandleSignal(ctx, watcherAppeared()); err != nil {
		t.Fatalf("HandleSignal: %v", err)
	}
	if added := ft.matches(); added != 1 {
		t.Errorf("added %d match rules, want 1", added)
	}
	if r.State() != AwaitingWatcher {
		t.Errorf("state = %v, want awaiting_watcher", r.State())
	}

	if err := r.HandleSignal(ctx, watcherAppeared()); err != nil {
		t.Fatalf("HandleSignal: %v", err)
	}
	if r.State() != Registered {
		t.Errorf("state = %v, want registered", r.State())
	}
}

func TestRegisterRetryRejected(t *testing.T) {
	ctx := context.Background()
	ft := &fakeTransport{callErrs: []error{
		serviceUnknown(),
		dbus.Error{Name: sni.ErrAccessDenied, Body: []interface{}{"nope"}},
	}}
	r := NewRegistrar(ft, ":1.7", discardLogger)

	if err := r.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}
	err := r.HandleSignal(ctx, watcherAppeared())
	if err == nil || errors.Is(err, ErrMalformedSignal) {
		t.Fatalf("HandleSignal = %v, want fatal registration error", err)
	}
}

func TestRegisterAddMatchFailure(t *testing.T) {
	ft := &fakeTransport{callErrs: []error{serviceUnknown()}, addErr: errors.New("match refused")}
	r := NewRegistrar(ft, ":1.7", discardLogger)

	if err := r.Start(context.Background()); err == nil {
		t.Fatal("expected error when the match rule cannot be added")
	}
}

func TestHandleSignalIgnoresUnrelated(t *testing.T) {
	ctx := context.Background()
	ft := &fakeTransport{callErrs: []error{serviceUnknown()}}
	r := NewRegistrar(ft, ":1.7", discardLogger)
	if err := r.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}

	signals := []*dbus.Signal{
		// Watcher disappeared.
		nameOwnerChanged(sni.WatcherBusName, ":1.42", ""),
		// Some other name.
		nameOwnerChanged("org.example.Other", "", ":1.50"),
		// Other member entirely, with a body that would be malformed.
		{Name: "org.freedesktop.DBus.NameAcquired", Body: []interface{}{":1.7"}},
	}
	for _, sig := range signals {
		if err := r.HandleSignal(ctx, sig); err != nil {
			t.Errorf("HandleSignal(%v) = %v, want nil", sig.Body, err)
		}
	}

	if n := ft.callCount(); n != 1 {
		t.Errorf("calls = %d, want 1 (no retry)", n)
	}
}

func TestHandleSignalMalformed(t *testing.T) {
	ctx := context.Background()
	ft := &fakeTransport{callErrs: []error{serviceUnknown()}}
	r := NewRegistrar(ft, ":1.7", discardLogger)
	if err := r.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}

	tests := []struct {
		name string
		sig  *dbus.Signal
	}{
		{"missing new owner", nameOwnerChanged(sni.WatcherBusName, "")},
		{"empty body", nameOwnerChanged()},
		{"wrong type", nameOwnerChanged(sni.WatcherBusName, "", uint32(5))},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := r.HandleSignal(ctx, tt.sig)
			if !errors.Is(err, ErrMalformedSignal) {
				t.Errorf("HandleSignal = %v, want ErrMalformedSignal", err)
			}
		})
	}

	if n := ft.callCount(); n != 1 {
		t.Errorf("calls = %d, want 1", n)
	}
}
