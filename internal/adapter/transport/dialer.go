package transport

import (
	"fmt"
	"log/slog"
	"net"
	"time"

	"github.com/gantryio/gantry/internal/core/ports"
)

// NewTCPDialer returns the origin-side dialer: it opens a TCP connection,
// binds the channel to the given loop and starts the HTTP response decoder.
// The returned channel carries no handlers yet; the pool's pipeline
// initializer runs afterwards on the loop.
func NewTCPDialer(logger *slog.Logger) func(loop ports.EventLoop, host string, port int, timeout time.Duration) (ports.Channel, error) {
	return func(loop ports.EventLoop, host string, port int, timeout time.Duration) (ports.Channel, error) {
		addr := net.JoinHostPort(host, fmt.Sprintf("%d", port))
		conn, err := net.DialTimeout("tcp", addr, timeout)
		if err != nil {
			return nil, fmt.Errorf("dial %s: %w", addr, err)
		}
		if tcp, ok := conn.(*net.TCPConn); ok {
			_ = tcp.SetNoDelay(true)
		}

		sink := newWireSink(conn)
		ch := NewChannel(loop, sink, logger)
		reader := newWireReader(ch, conn)
		go reader.runClient(sink)

		return ch, nil
	}
}
