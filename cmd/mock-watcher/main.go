// mock-watcher runs a minimal StatusNotifierWatcher for testing.
package main

import (
	"flag"
	"fmt"
	"os"
	"os/signal"

	"github.com/godbus/dbus/v5"
	"golang.org/x/sys/unix"

	"github.com/nikicat/toggler/internal/testutil"
)

func main() {
	var (
		reject = flag.String("reject", "", "Reject every registration with this message")
	)
	flag.Parse()

	conn, err := dbus.ConnectSessionBus()
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: connect to session bus: %v\n", err)
		os.Exit(1)
	}
	defer conn.Close()

	watcher := testutil.NewMockWatcher()
	if *reject != "" {
		watcher.Reject(*reject)
	}
	if err := watcher.Register(conn); err != nil {
		fmt.Fprintf(os.Stderr, "error: register mock watcher: %v\n", err)
		os.Exit(1)
	}

	fmt.Println("Mock StatusNotifierWatcher running. Press Ctrl+C to exit.")

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, unix.SIGINT, unix.SIGTERM)

	for {
		select {
		case item := <-watcher.Registered():
			fmt.Printf("Registered %s\n", item)
		case <-sigCh:
			fmt.Println("Shutting down...")
			return
		}
	}
}
