package client

import (
	"errors"
	"fmt"
	"io"
	"net"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/rcoop/tftpc/internal/protocol"
)

const (
	defaultRetries = 6
	defaultBackoff = 50 * time.Millisecond
)

// ErrMaxRetries is returned when the retry budget for the outstanding
// packet is exhausted.
var ErrMaxRetries = errors.New("timeout, aborting")

// RemoteError is an ERROR packet reported by the server. It ends the
// transfer from the server's perspective.
type RemoteError struct {
	Code    protocol.ErrCode
	Message string
}

func (e *RemoteError) Error() string {
	return fmt.Sprintf("server error %d (%s): %s", uint16(e.Code), e.Code, e.Message)
}

// engine drives a single transfer from its initial request until the
// session closes. It owns the retransmission loop, the exponential
// backoff, the retry budget, and the state machine.
type engine struct {
	tr      transport
	log     *logrus.Logger
	retries int
	backoff time.Duration

	// block is the staging area for upload reads; scratch holds
	// UNKNOWN_TID replies so they never disturb the session's send buffer.
	block   [protocol.BlockSize]byte
	scratch [protocol.MaxPacketSize]byte
}

// run loops until the session reaches stateClosed, the retry budget runs
// out, or a fatal error surfaces. Each iteration: (re)transmit if the
// timer is unset or expired, arm or extend the timer, wait for a datagram
// within the remaining time, then apply the state transition.
func (e *engine) run(s *session) error {
	// One byte beyond the maximum so oversized datagrams are detectable.
	rx := make([]byte, protocol.MaxPacketSize+1)

	for {
		now := e.tr.Now()

		if !s.armed || now >= s.deadline {
			if err := e.tr.Send(s.sendBuf[:s.sendLen], s.remote); err != nil {
				return fmt.Errorf("sending %s: %w", s.state, err)
			}
			if s.state == stateLastAckSent {
				// The final ACK is on the wire; nothing left to confirm.
				s.state = stateClosed
				return nil
			}
			if !s.armed {
				s.backoff = e.backoff
				s.armed = true
			} else {
				s.backoff *= 2
				e.log.Debugf("retransmitted in %s, next timeout %v", s.state, s.backoff)
			}
			s.deadline = now + s.backoff
		}

		n, from, err := e.tr.Recv(rx, s.deadline-now)
		if err != nil {
			if !errors.Is(err, errRecvTimeout) {
				return fmt.Errorf("receiving in %s: %w", s.state, err)
			}
			s.retries--
			if s.retries <= 0 {
				e.log.Warnf("no reply from %v after %d attempts", s.remote, e.retries)
				return ErrMaxRetries
			}
			continue
		}

		// Datagrams from a foreign transfer ID never advance the session.
		if s.tidFixed && from.String() != s.remote.String() {
			e.log.Debugf("dropping datagram from %v, transfer is with %v", from, s.remote)
			e.rejectTID(from)
			continue
		}

		pkt, err := protocol.Parse(rx[:n])
		if err != nil {
			// The peer is silent from our point of view: the timer keeps
			// running and the retry budget is untouched.
			e.log.Debugf("dropping malformed datagram from %v: %v", from, err)
			continue
		}

		// The source of the first valid reply is the server's chosen TID.
		if !s.tidFixed {
			e.log.Debugf("transfer ID fixed to %v", from)
			s.remote = from
			s.tidFixed = true
		}

		if err := e.transition(s, pkt); err != nil {
			return err
		}
		if s.state == stateClosed {
			return nil
		}
	}
}

// transition applies the state table: which packets advance the session,
// which are ignored, and which end the transfer.
func (e *engine) transition(s *session, pkt protocol.Packet) error {
	switch s.state {
	case stateRRQSent, stateAckSent:
		switch p := pkt.(type) {
		case *protocol.Data:
			return e.acceptData(s, p)
		case *protocol.Error:
			s.state = stateClosed
			return &RemoteError{Code: p.Code, Message: p.Message}
		default:
			e.log.Debugf("unexpected %s in %s, ignoring", pkt.Op(), s.state)
		}

	case stateWRQSent, stateDataSent, stateLastDataSent:
		switch p := pkt.(type) {
		case *protocol.Ack:
			return e.acceptAck(s, p)
		case *protocol.Error:
			s.state = stateClosed
			return &RemoteError{Code: p.Code, Message: p.Message}
		default:
			e.log.Debugf("unexpected %s in %s, ignoring", pkt.Op(), s.state)
		}
	}
	return nil
}

// acceptData handles one DATA block of a download: write the payload,
// stage the matching ACK, and advance the block counter. A short payload
// means this ACK is the last.
func (e *engine) acceptData(s *session, p *protocol.Data) error {
	if p.Block != s.blkno {
		e.log.Debugf("ignoring DATA block %d, expecting %d", p.Block, s.blkno)
		return nil
	}

	if _, err := s.wr.Write(p.Payload); err != nil {
		return fmt.Errorf("writing block %d: %w", p.Block, err)
	}
	s.transferred += int64(len(p.Payload))

	if err := s.load(&protocol.Ack{Block: s.blkno}); err != nil {
		return err
	}
	s.blkno++
	if len(p.Payload) < protocol.BlockSize {
		s.state = stateLastAckSent
	} else {
		s.state = stateAckSent
	}
	e.advance(s)
	return nil
}

// acceptAck handles one ACK of an upload: if it confirms the final block
// the transfer is complete, otherwise read the next block from the file
// and stage it.
func (e *engine) acceptAck(s *session, p *protocol.Ack) error {
	if p.Block != s.blkno {
		e.log.Debugf("ignoring ACK %d, expecting %d", p.Block, s.blkno)
		return nil
	}

	if s.state == stateLastDataSent {
		s.state = stateClosed
		return nil
	}

	n, err := io.ReadFull(s.rd, e.block[:])
	if err != nil && err != io.EOF && err != io.ErrUnexpectedEOF {
		return fmt.Errorf("reading block %d: %w", s.blkno+1, err)
	}

	s.blkno++
	if err := s.load(&protocol.Data{Block: s.blkno, Payload: e.block[:n]}); err != nil {
		return err
	}
	s.transferred += int64(n)
	if n < protocol.BlockSize {
		s.state = stateLastDataSent
	} else {
		s.state = stateDataSent
	}
	e.advance(s)
	return nil
}

// advance records a successful exchange: the retry budget refills and the
// timer is cleared so the next loop iteration transmits immediately with a
// fresh backoff.
func (e *engine) advance(s *session) {
	s.retries = e.retries
	s.clearTimer()
}

// rejectTID answers a datagram from the wrong endpoint with ERROR 5,
// best-effort, per RFC 1350 §4. The reply is encoded in a scratch buffer so
// the authoritative send buffer is untouched.
func (e *engine) rejectTID(from net.Addr) {
	pkt := &protocol.Error{Code: protocol.ErrUnknownTransferID, Message: "unknown transfer id"}
	n, err := pkt.Encode(e.scratch[:])
	if err != nil {
		return
	}
	if err := e.tr.Send(e.scratch[:n], from); err != nil {
		e.log.Debugf("sending UNKNOWN_TID to %v: %v", from, err)
	}
}
