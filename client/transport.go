package client

import (
	"errors"
	"fmt"
	"net"
	"time"

	"github.com/spacemonkeygo/monotime"
)

// errRecvTimeout reports that the bounded receive expired with no datagram
// available. It is the only non-fatal transport error.
var errRecvTimeout = errors.New("receive timed out")

// transport is the engine's view of the network: a datagram send, a
// receive bounded by a timeout, and a monotonic clock read. Timer
// arithmetic uses durations on that clock, so deadlines stay valid across
// early wakeups.
type transport interface {
	Send(p []byte, addr net.Addr) error
	Recv(p []byte, timeout time.Duration) (int, net.Addr, error)
	Now() time.Duration
}

// udpTransport adapts an unconnected UDP socket. The bounded wait is
// realized as a read deadline on the socket.
type udpTransport struct {
	conn *net.UDPConn
}

// Send writes one datagram. UDP sends are all-or-nothing, so any non-error
// return is a complete send.
func (t *udpTransport) Send(p []byte, addr net.Addr) error {
	if _, err := t.conn.WriteTo(p, addr); err != nil {
		return fmt.Errorf("datagram send: %w", err)
	}
	return nil
}

// Recv reads one datagram into p, waiting at most timeout. Deadline expiry
// is reported as errRecvTimeout; anything else is fatal.
func (t *udpTransport) Recv(p []byte, timeout time.Duration) (int, net.Addr, error) {
	if err := t.conn.SetReadDeadline(time.Now().Add(timeout)); err != nil {
		return 0, nil, fmt.Errorf("setting read deadline: %w", err)
	}
	n, addr, err := t.conn.ReadFrom(p)
	if err != nil {
		var nerr net.Error
		if errors.As(err, &nerr) && nerr.Timeout() {
			return 0, nil, errRecvTimeout
		}
		return 0, nil, fmt.Errorf("datagram receive: %w", err)
	}
	return n, addr, nil
}

func (t *udpTransport) Now() time.Duration {
	return monotime.Monotonic()
}
