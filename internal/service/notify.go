package service

import (
	"log/slog"
	"net"
	"os"
	"strings"
)

// SdNotify sends assignments such as "READY=1" or "STATUS=..." to systemd
// as one datagram on NOTIFY_SOCKET. It reports whether the datagram was sent.
// Without NOTIFY_SOCKET (not started by systemd) it does nothing; send
// failures are logged, never returned.
func SdNotify(assignments ...string) bool {
	socket := os.Getenv("NOTIFY_SOCKET")
	if socket == "" || len(assignments) == 0 {
		return false
	}

	conn, err := net.Dial("unixgram", socket)
	if err != nil {
		slog.Warn("sd-notify dial failed", "socket", socket, "error", err)
		return false
	}
	defer conn.Close()

	if _, err := conn.Write([]byte(strings.Join(assignments, "\n"))); err != nil {
		slog.Warn("sd-notify write failed", "socket", socket, "error", err)
		return false
	}
	return true
}
