package tray

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"github.com/godbus/dbus/v5"

	"github.com/nikicat/toggler/internal/sni"
)

var (
	// ErrBusClosed is returned by Loop.Run when the bus connection goes away.
	ErrBusClosed = errors.New("bus connection closed")

	// ErrLoopStopped is reported to callers whose request arrives after the
	// loop has returned.
	ErrLoopStopped = errors.New("event loop stopped")
)

type requestKind int

const (
	reqActivate requestKind = iota
	reqSecondaryActivate
	reqGetProperty
	reqGetAllProperties
)

// request is an inbound method call forwarded from a godbus handler
// goroutine to the loop.
type request struct {
	kind  requestKind
	iface string
	name  string
	reply chan response
}

type response struct {
	value  dbus.Variant
	values map[string]dbus.Variant
	err    *dbus.Error
}

// Loop serialises every inbound call and signal onto one goroutine. Item and
// Registrar state is only touched from Run.
type Loop struct {
	item     *Item
	reg      *Registrar
	requests chan request
	signals  <-chan *dbus.Signal
	closed   <-chan struct{}
	done     chan struct{}
	logger   *slog.Logger

	// ready, if set, is called once after the first registration attempt.
	ready func()

	// handlers counts godbus handler goroutines inside call.
	mu       sync.Mutex
	stopped  bool
	handlers sync.WaitGroup
}

// NewLoop creates a loop. signals carries signals delivered to the
// connection; closed is closed when the connection dies. Either may be nil.
func NewLoop(item *Item, reg *Registrar, signals <-chan *dbus.Signal, closed <-chan struct{}, logger *slog.Logger) *Loop {
	if logger == nil {
		logger = slog.Default()
	}
	return &Loop{
		item:     item,
		reg:      reg,
		requests: make(chan request),
		signals:  signals,
		closed:   closed,
		done:     make(chan struct{}),
		logger:   logger,
	}
}

// Run registers the item and dispatches inbound messages until exit is
// requested (returns nil), ctx is cancelled (returns ctx.Err()) or a fatal
// error occurs. Run must be called at most once.
func (l *Loop) Run(ctx context.Context) error {
	defer close(l.done)

	if err := l.reg.Start(ctx); err != nil {
		return err
	}
	if l.ready != nil {
		l.ready()
	}

	for {
		n, err := l.drain(ctx)
		if err != nil {
			return err
		}
		if n > 0 {
			continue
		}
		// Quiescent: nothing queued, so a pending Activate cannot be cut off.
		if l.item.State().ExitRequested() {
			return nil
		}
		if err := l.wait(ctx); err != nil {
			return err
		}
	}
}

// drain dispatches everything already queued without blocking and returns
// how many messages it handled.
func (l *Loop) drain(ctx context.Context) (int, error) {
	n := 0
	for {
		select {
		case req := <-l.requests:
			if err := l.dispatchRequest(ctx, req); err != nil {
				return n, err
			}
		case sig, ok := <-l.signals:
			if !ok {
				return n, ErrBusClosed
			}
			if err := l.dispatchSignal(ctx, sig); err != nil {
				return n, err
			}
		default:
			return n, nil
		}
		n++
	}
}

// wait blocks until one message arrives and dispatches it.
func (l *Loop) wait(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-l.closed:
		return ErrBusClosed
	case req := <-l.requests:
		return l.dispatchRequest(ctx, req)
	case sig, ok := <-l.signals:
		if !ok {
			return ErrBusClosed
		}
		return l.dispatchSignal(ctx, sig)
	}
}

func (l *Loop) dispatchRequest(ctx context.Context, req request) error {
	var resp response
	var fatal error

	switch req.kind {
	case reqActivate:
		if err := l.item.Activate(ctx); err != nil {
			resp.err = sni.NewDBusError(sni.ErrFailed, err.Error())
			fatal = err
		}
	case reqSecondaryActivate:
		l.item.SecondaryActivate(ctx)
	case reqGetProperty:
		resp.value, resp.err = l.item.Property(req.iface, req.name)
	case reqGetAllProperties:
		resp.values, resp.err = l.item.Properties(req.iface)
	}

	req.reply <- resp
	return fatal
}

func (l *Loop) dispatchSignal(ctx context.Context, sig *dbus.Signal) error {
	err := l.reg.HandleSignal(ctx, sig)
	if errors.Is(err, ErrMalformedSignal) {
		l.logger.Error("failed to handle signal", "signal", sig.Name, "sender", sig.Sender, "error", err)
		return nil
	}
	return err
}

func stoppedResponse() response {
	return response{err: sni.NewDBusError(sni.ErrFailed, ErrLoopStopped.Error())}
}

// call is the entry point for godbus handler goroutines. It is tracked so
// that quiesce can wait for the handler to hand its reply back to godbus.
func (l *Loop) call(req request) response {
	l.mu.Lock()
	if l.stopped {
		l.mu.Unlock()
		return stoppedResponse()
	}
	l.handlers.Add(1)
	l.mu.Unlock()
	defer l.handlers.Done()

	return l.submit(req)
}

// quiesce refuses new calls and waits for running handlers to return. It
// must be called after Run has returned.
func (l *Loop) quiesce() {
	l.mu.Lock()
	l.stopped = true
	l.mu.Unlock()
	l.handlers.Wait()
}

// submit hands req to the loop and waits for the reply.
func (l *Loop) submit(req request) response {
	req.reply = make(chan response, 1)

	select {
	case l.requests <- req:
	case <-l.done:
		return stoppedResponse()
	}

	select {
	case resp := <-req.reply:
		return resp
	case <-l.done:
		// The reply may have been sent just before the loop returned.
		select {
		case resp := <-req.reply:
			return resp
		default:
			return stoppedResponse()
		}
	}
}
