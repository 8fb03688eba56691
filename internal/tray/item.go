package tray

import (
	"context"
	"errors"
	"fmt"
	"html"
	"log/slog"

	"github.com/godbus/dbus/v5"
	"github.com/google/uuid"

	"github.com/nikicat/toggler/internal/logging"
	"github.com/nikicat/toggler/internal/sni"
	"github.com/nikicat/toggler/internal/toggle"
)

// Notifier reports a failed toggle to the user. It is optional.
type Notifier interface {
	Notify(summary, body, icon string) (uint32, error)
}

// Item implements the actions of the StatusNotifierItem. Its methods run on
// the event loop goroutine only.
type Item struct {
	state    *toggle.State
	runner   toggle.Runner
	emitter  Transport
	notifier Notifier
	actions  *logging.Logger
	logger   *slog.Logger
}

// NewItem creates an Item. notifier may be nil.
func NewItem(state *toggle.State, runner toggle.Runner, emitter Transport, notifier Notifier, logger *slog.Logger) *Item {
	if logger == nil {
		logger = slog.Default()
	}
	return &Item{
		state:    state,
		runner:   runner,
		emitter:  emitter,
		notifier: notifier,
		actions:  logging.New(logger, toggle.ID),
		logger:   logger,
	}
}

// State returns the toggle state the item acts on.
func (it *Item) State() *toggle.State { return it.state }

// Activate runs the command for the current state and, if it succeeds,
// flips the state and emits NewIcon then NewStatus.
//
// A failed command leaves the state untouched and returns nil. The returned
// error is non-nil only if a signal could not be emitted, after the state
// has already flipped.
func (it *Item) Activate(ctx context.Context) error {
	activationID := uuid.NewString()
	command := it.state.NextCommand()

	if err := it.runner.Run(command); err != nil {
		it.actions.LogActivate(ctx, activationID, command, string(it.state.Status()), "command_failed", err)
		it.notifyFailure(command, err)
		return nil
	}

	it.state.Flip()

	if err := it.emitter.Emit(sni.ItemPath, sni.SignalNewIcon); err != nil {
		return fmt.Errorf("emit NewIcon: %w", err)
	}
	if err := it.emitter.Emit(sni.ItemPath, sni.SignalNewStatus); err != nil {
		return fmt.Errorf("emit NewStatus: %w", err)
	}

	it.actions.LogActivate(ctx, activationID, command, string(it.state.Status()), "ok", nil)
	return nil
}

// SecondaryActivate requests the loop to exit.
func (it *Item) SecondaryActivate(ctx context.Context) {
	it.actions.LogSecondaryActivate(ctx, uuid.NewString())
	if !it.state.ExitRequested() {
		it.logger.Info("exiting")
	}
	it.state.RequestExit()
}

func (it *Item) notifyFailure(command string, err error) {
	if it.notifier == nil {
		return
	}

	code := -1
	var cmdErr *toggle.CommandError
	if errors.As(err, &cmdErr) {
		code = cmdErr.ExitCode
	}

	body := fmt.Sprintf("Command <i>%s</i> returned code %d", html.EscapeString(command), code)
	if _, nerr := it.notifier.Notify("Toggle failed", body, "dialog-error"); nerr != nil {
		it.logger.Warn("failed to send desktop notification", "error", nerr)
	}
}

// Property returns a single exposed property.
func (it *Item) Property(iface, name string) (dbus.Variant, *dbus.Error) {
	if iface != sni.ItemInterface {
		return dbus.Variant{}, sni.ErrInterfaceNotFound(iface)
	}
	v, ok := propertyMap(it.state.Properties())[name]
	if !ok {
		return dbus.Variant{}, sni.ErrPropertyNotFound(name)
	}
	return v, nil
}

// Properties returns every exposed property of iface.
func (it *Item) Properties(iface string) (map[string]dbus.Variant, *dbus.Error) {
	if iface != sni.ItemInterface && iface != "" {
		return nil, sni.ErrInterfaceNotFound(iface)
	}
	return propertyMap(it.state.Properties()), nil
}

// propertyMap converts the view to D-Bus values with the protocol's types.
func propertyMap(p toggle.Properties) map[string]dbus.Variant {
	return map[string]dbus.Variant{
		"Category":   dbus.MakeVariant(p.Category),
		"Id":         dbus.MakeVariant(p.ID),
		"Title":      dbus.MakeVariant(p.Title),
		"Status":     dbus.MakeVariant(string(p.Status)),
		"WindowId":   dbus.MakeVariant(p.WindowID),
		"IconName":   dbus.MakeVariant(p.IconName),
		"ItemIsMenu": dbus.MakeVariant(p.ItemIsMenu),
	}
}
