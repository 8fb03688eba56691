package tray

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/godbus/dbus/v5"

	"github.com/nikicat/toggler/internal/sni"
)

// ErrMalformedSignal is returned for a NameOwnerChanged signal whose body is
// not (name, old_owner, new_owner).
var ErrMalformedSignal = errors.New("malformed NameOwnerChanged signal")

// OutcomeKind classifies one registration attempt.
type OutcomeKind int

const (
	OutcomeSuccess OutcomeKind = iota
	OutcomeServiceUnavailable
	OutcomeFailure
)

func (k OutcomeKind) String() string {
	switch k {
	case OutcomeSuccess:
		return "success"
	case OutcomeServiceUnavailable:
		return "service_unavailable"
	case OutcomeFailure:
		return "failure"
	default:
		return fmt.Sprintf("OutcomeKind(%d)", int(k))
	}
}

// Outcome is the result of one registration attempt. Err is set only for
// OutcomeFailure.
type Outcome struct {
	Kind OutcomeKind
	Err  error
}

// RegistrationState is the state of the Registrar.
type RegistrationState int

const (
	AwaitingWatcher RegistrationState = iota
	Registered
)

func (s RegistrationState) String() string {
	if s == Registered {
		return "registered"
	}
	return "awaiting_watcher"
}

// watcherMatch is the match rule for the watcher's name changing owner.
var watcherMatch = []dbus.MatchOption{
	dbus.WithMatchSender(sni.BusDaemonName),
	dbus.WithMatchObjectPath(sni.BusDaemonPath),
	dbus.WithMatchInterface(sni.BusDaemonInterface),
	dbus.WithMatchMember(sni.MemberNameOwnerChanged),
	dbus.WithMatchArg(0, sni.WatcherBusName),
}

// Registrar registers the item with the StatusNotifierWatcher and, while the
// watcher is absent, waits for it to appear.
type Registrar struct {
	transport Transport
	identity  string
	logger    *slog.Logger

	state RegistrationState
	armed bool
}

// NewRegistrar creates a Registrar for the connection's unique name identity.
func NewRegistrar(transport Transport, identity string, logger *slog.Logger) *Registrar {
	if logger == nil {
		logger = slog.Default()
	}
	return &Registrar{
		transport: transport,
		identity:  identity,
		logger:    logger,
	}
}

// State returns the current registration state.
func (r *Registrar) State() RegistrationState { return r.state }

// Armed reports whether the appearance-watch match rule is installed.
func (r *Registrar) Armed() bool { return r.armed }

// Register performs one RegisterStatusNotifierItem call and classifies it.
func (r *Registrar) Register(ctx context.Context) Outcome {
	err := r.transport.Call(ctx, sni.WatcherBusName, sni.WatcherPath, sni.MethodRegisterItem, r.identity)
	if err == nil {
		return Outcome{Kind: OutcomeSuccess}
	}
	if name, ok := errorName(err); ok && (name == sni.ErrServiceUnknown || name == sni.ErrNameHasNoOwner) {
		return Outcome{Kind: OutcomeServiceUnavailable}
	}
	return Outcome{Kind: OutcomeFailure, Err: err}
}

// Start runs the first registration attempt.
func (r *Registrar) Start(ctx context.Context) error {
	return r.advance(ctx)
}

// advance is the single transition function of the state machine. It is a
// no-op once Registered.
func (r *Registrar) advance(ctx context.Context) error {
	if r.state == Registered {
		return nil
	}

	outcome := r.Register(ctx)
	switch outcome.Kind {
	case OutcomeSuccess:
		r.state = Registered
		r.logger.Info("registered as StatusNotifierItem", "name", r.identity)
		return nil

	case OutcomeServiceUnavailable:
		if r.armed {
			r.logger.Warn("StatusNotifierWatcher vanished again, still waiting for it")
			return nil
		}
		r.logger.Warn("StatusNotifierWatcher is not available, waiting for it to appear")
		if err := r.transport.AddMatchSignal(watcherMatch...); err != nil {
			return fmt.Errorf("add watcher match rule: %w", err)
		}
		r.armed = true
		return nil

	default:
		return fmt.Errorf("register as StatusNotifierItem: %w", outcome.Err)
	}
}

// HandleSignal reacts to a signal delivered to the connection. Only
// NameOwnerChanged for the watcher's name is acted upon. Once armed, the
// match rule stays installed: a watcher that goes away drops the item back
// to AwaitingWatcher, and every new owner gets a fresh registration.
func (r *Registrar) HandleSignal(ctx context.Context, sig *dbus.Signal) error {
	if sig.Name != sni.SignalNameOwnerChanged {
		return nil
	}

	// NameOwnerChanged(name string, old_owner string, new_owner string)
	if len(sig.Body) != 3 {
		return fmt.Errorf("%w: got %d arguments", ErrMalformedSignal, len(sig.Body))
	}
	name, ok1 := sig.Body[0].(string)
	oldOwner, ok2 := sig.Body[1].(string)
	newOwner, ok3 := sig.Body[2].(string)
	if !ok1 || !ok2 || !ok3 {
		return fmt.Errorf("%w: signature is not sss", ErrMalformedSignal)
	}

	if name != sni.WatcherBusName || !r.armed {
		return nil
	}

	r.logger.Debug("watcher owner changed", "old_owner", oldOwner, "new_owner", newOwner)
	// A new owner has never heard of us, whatever the previous one knew.
	r.state = AwaitingWatcher
	if newOwner == "" {
		return nil
	}
	return r.advance(ctx)
}
