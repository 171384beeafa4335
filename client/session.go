package client

import (
	"io"
	"net"
	"time"

	"github.com/rcoop/tftpc/internal/protocol"
)

// direction selects which side of the transfer this client drives.
type direction int

const (
	dirRead  direction = iota // download: RRQ, receive DATA, send ACK
	dirWrite                  // upload: WRQ, send DATA, receive ACK
)

func (d direction) String() string {
	if d == dirRead {
		return "read"
	}
	return "write"
}

// state is the protocol engine's position in the transfer.
type state int

const (
	stateClosed state = iota
	stateRRQSent
	stateWRQSent
	stateDataSent
	stateLastDataSent
	stateAckSent
	stateLastAckSent
)

var stateNames = map[state]string{
	stateClosed:       "CLOSED",
	stateRRQSent:      "RRQ_SENT",
	stateWRQSent:      "WRQ_SENT",
	stateDataSent:     "DATA_SENT",
	stateLastDataSent: "LAST_DATA_SENT",
	stateAckSent:      "ACK_SENT",
	stateLastAckSent:  "LAST_ACK_SENT",
}

func (s state) String() string { return stateNames[s] }

// session is the single long-lived record for one transfer. It is created
// by the bootstrap, mutated only by the engine, and torn down by the
// transfer wrapper, which closes the socket and file exactly once.
type session struct {
	remote   net.Addr // server endpoint; rewritten to the server's TID once fixed
	tidFixed bool

	dir  direction
	mode string

	// Exactly one of rd/wr is set, matching dir.
	rd io.Reader // upload source
	wr io.Writer // download sink

	blkno uint16 // next expected DATA block (read) or last sent block (write)
	state state

	// sendBuf holds the packet the engine is authoritative for
	// retransmitting; it is overwritten only when the state machine
	// advances.
	sendBuf [protocol.MaxPacketSize]byte
	sendLen int

	deadline time.Duration // absolute, on the transport's monotonic clock
	armed    bool
	backoff  time.Duration
	retries  int

	transferred int64 // payload bytes moved, for the final summary
}

func (s *session) clearTimer() { s.armed = false }

// load encodes pkt into the send buffer, making it the authoritative
// retransmission payload. Encoding failures are programming errors in this
// client and are fatal to the transfer.
func (s *session) load(pkt protocol.Packet) error {
	n, err := pkt.Encode(s.sendBuf[:])
	if err != nil {
		return err
	}
	s.sendLen = n
	return nil
}
