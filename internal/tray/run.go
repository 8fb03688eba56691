package tray

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/godbus/dbus/v5"

	"github.com/nikicat/toggler/internal/notification"
	"github.com/nikicat/toggler/internal/sni"
	"github.com/nikicat/toggler/internal/toggle"
)

const flushTimeout = time.Second

// Config holds tray startup parameters.
type Config struct {
	// BusAddress is the D-Bus address to connect to. Empty means the session
	// bus; tests point it at a private dbus-daemon.
	BusAddress string

	State  *toggle.State
	Runner toggle.Runner

	// NotifyFailures pops a desktop notification when a command fails.
	NotifyFailures bool

	// Ready is called once after the first registration attempt, whether the
	// watcher was there or not.
	Ready func()

	Logger *slog.Logger
}

// Run connects to the bus, exports the item and runs the event loop until
// the item is told to exit, ctx is cancelled or a fatal error occurs.
func Run(ctx context.Context, cfg Config) error {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	runner := cfg.Runner
	if runner == nil {
		runner = toggle.NewShellRunner()
	}
	state := cfg.State
	if state == nil {
		state = toggle.New(toggle.Options{})
	}

	var conn *dbus.Conn
	var err error
	if cfg.BusAddress == "" {
		conn, err = dbus.ConnectSessionBus()
	} else {
		conn, err = dbus.Connect(cfg.BusAddress)
	}
	if err != nil {
		return fmt.Errorf("connect to D-Bus: %w", err)
	}
	defer conn.Close()

	// The unique name is fixed for the lifetime of the connection.
	names := conn.Names()
	if len(names) == 0 {
		return fmt.Errorf("read unique D-Bus name: connection has no name")
	}
	identity := names[0]

	signals := make(chan *dbus.Signal, 16)
	conn.Signal(signals)
	defer conn.RemoveSignal(signals)

	transport := connTransport{conn}

	var notifier Notifier
	if cfg.NotifyFailures {
		notifier = notification.NewDBusNotifier(notification.ConnCaller{Conn: conn}, "toggler")
	}

	item := NewItem(state, runner, transport, notifier, logger)
	reg := NewRegistrar(transport, identity, logger)
	loop := NewLoop(item, reg, signals, conn.Context().Done(), logger)
	loop.ready = cfg.Ready

	if err := export(conn, loop); err != nil {
		return err
	}
	logger.Debug("exported StatusNotifierItem", "name", identity, "path", sni.ItemPath)

	err = loop.Run(ctx)
	loop.quiesce()
	flush(conn, logger)
	return err
}

// flush makes one round trip to the bus so that replies queued by the
// handlers that just returned are written before the connection closes.
func flush(conn *dbus.Conn, logger *slog.Logger) {
	ctx, cancel := context.WithTimeout(context.Background(), flushTimeout)
	defer cancel()
	if err := conn.BusObject().CallWithContext(ctx, sni.MethodPing, 0).Err; err != nil {
		logger.Debug("failed to flush bus connection", "error", err)
	}
}
