// Package protocol implements the RFC 1350 wire format: encoding and
// decoding of the five TFTP packet kinds. It performs no I/O.
package protocol

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
)

var (
	// ErrPacketTooLarge means the encoded packet would exceed MaxPacketSize.
	ErrPacketTooLarge = errors.New("packet exceeds 516 bytes")
	// ErrPacketTooShort means a received buffer is too small for its opcode.
	ErrPacketTooShort = errors.New("packet too short")
	// ErrUnknownOpcode means the leading 2 bytes are not a known opcode.
	ErrUnknownOpcode = errors.New("unknown opcode")
	// ErrNotTerminated means a string field is missing its NUL terminator.
	ErrNotTerminated = errors.New("string field not NUL-terminated")
)

// Packet is one TFTP message. Encode writes the wire form into b and
// returns the number of bytes written; it fails with ErrPacketTooLarge if
// the packet would not fit in b or would exceed MaxPacketSize.
type Packet interface {
	Op() Opcode
	Encode(b []byte) (int, error)
}

// ReadRequest asks the server to send the named file.
type ReadRequest struct {
	Filename string
	Mode     string
}

// WriteRequest asks the server to accept the named file.
type WriteRequest struct {
	Filename string
	Mode     string
}

// Data carries one block of file content. A payload shorter than BlockSize
// marks the final block.
type Data struct {
	Block   uint16
	Payload []byte
}

// Ack acknowledges the DATA block (or, for block 0, the write request)
// carrying the same number.
type Ack struct {
	Block uint16
}

// Error is a terminal diagnostic from the peer.
type Error struct {
	Code    ErrCode
	Message string
}

// Op implements Packet.
func (r *ReadRequest) Op() Opcode  { return OpRRQ }
func (w *WriteRequest) Op() Opcode { return OpWRQ }
func (d *Data) Op() Opcode         { return OpDATA }
func (a *Ack) Op() Opcode          { return OpACK }
func (e *Error) Op() Opcode        { return OpERROR }

// Encode implements Packet.
func (r *ReadRequest) Encode(b []byte) (int, error) {
	return encodeRequest(b, OpRRQ, r.Filename, r.Mode)
}

// Encode implements Packet.
func (w *WriteRequest) Encode(b []byte) (int, error) {
	return encodeRequest(b, OpWRQ, w.Filename, w.Mode)
}

// Encode implements Packet.
func (d *Data) Encode(b []byte) (int, error) {
	n := HeaderSize + len(d.Payload)
	if len(d.Payload) > BlockSize || n > len(b) {
		return 0, fmt.Errorf("encoding DATA block %d (%d payload bytes): %w",
			d.Block, len(d.Payload), ErrPacketTooLarge)
	}
	binary.BigEndian.PutUint16(b[0:2], uint16(OpDATA))
	binary.BigEndian.PutUint16(b[2:4], d.Block)
	copy(b[4:], d.Payload)
	return n, nil
}

// Encode implements Packet.
func (a *Ack) Encode(b []byte) (int, error) {
	if len(b) < HeaderSize {
		return 0, fmt.Errorf("encoding ACK %d: %w", a.Block, ErrPacketTooLarge)
	}
	binary.BigEndian.PutUint16(b[0:2], uint16(OpACK))
	binary.BigEndian.PutUint16(b[2:4], a.Block)
	return HeaderSize, nil
}

// Encode implements Packet.
func (e *Error) Encode(b []byte) (int, error) {
	n := HeaderSize + len(e.Message) + 1
	if n > MaxPacketSize || n > len(b) {
		return 0, fmt.Errorf("encoding ERROR %q: %w", e.Message, ErrPacketTooLarge)
	}
	binary.BigEndian.PutUint16(b[0:2], uint16(OpERROR))
	binary.BigEndian.PutUint16(b[2:4], uint16(e.Code))
	copy(b[4:], e.Message)
	b[n-1] = 0
	return n, nil
}

func encodeRequest(b []byte, op Opcode, filename, mode string) (int, error) {
	n := 2 + len(filename) + 1 + len(mode) + 1
	if n > MaxPacketSize || n > len(b) {
		return 0, fmt.Errorf("encoding %s for %q/%q: %w", op, filename, mode, ErrPacketTooLarge)
	}
	binary.BigEndian.PutUint16(b[0:2], uint16(op))
	off := 2
	off += copy(b[off:], filename)
	b[off] = 0
	off++
	off += copy(b[off:], mode)
	b[off] = 0
	off++
	return off, nil
}

// Parse decodes one received datagram. Any validation failure means the
// datagram is malformed and should be dropped by the caller.
func Parse(b []byte) (Packet, error) {
	if len(b) < 2 {
		return nil, fmt.Errorf("%d-byte datagram: %w", len(b), ErrPacketTooShort)
	}

	switch op := Opcode(binary.BigEndian.Uint16(b[0:2])); op {
	case OpRRQ, OpWRQ:
		filename, mode, err := parseRequest(b[2:])
		if err != nil {
			return nil, fmt.Errorf("parsing %s: %w", op, err)
		}
		if op == OpRRQ {
			return &ReadRequest{Filename: filename, Mode: mode}, nil
		}
		return &WriteRequest{Filename: filename, Mode: mode}, nil

	case OpDATA:
		if len(b) < HeaderSize {
			return nil, fmt.Errorf("parsing DATA: %w", ErrPacketTooShort)
		}
		if len(b) > MaxPacketSize {
			return nil, fmt.Errorf("parsing DATA: %d bytes: %w", len(b), ErrPacketTooLarge)
		}
		return &Data{
			Block:   binary.BigEndian.Uint16(b[2:4]),
			Payload: b[HeaderSize:],
		}, nil

	case OpACK:
		if len(b) < HeaderSize {
			return nil, fmt.Errorf("parsing ACK: %w", ErrPacketTooShort)
		}
		return &Ack{Block: binary.BigEndian.Uint16(b[2:4])}, nil

	case OpERROR:
		if len(b) < HeaderSize+1 {
			return nil, fmt.Errorf("parsing ERROR: %w", ErrPacketTooShort)
		}
		if b[len(b)-1] != 0 {
			return nil, fmt.Errorf("parsing ERROR: %w", ErrNotTerminated)
		}
		return &Error{
			Code:    ErrCode(binary.BigEndian.Uint16(b[2:4])),
			Message: string(b[HeaderSize : len(b)-1]),
		}, nil

	default:
		return nil, fmt.Errorf("opcode %d: %w", uint16(op), ErrUnknownOpcode)
	}
}

// parseRequest splits "filename NUL mode NUL" from a request body. Trailing
// bytes after the mode terminator (RFC 2347 options) are ignored.
func parseRequest(b []byte) (filename, mode string, err error) {
	i := bytes.IndexByte(b, 0)
	if i < 1 {
		return "", "", ErrNotTerminated
	}
	j := bytes.IndexByte(b[i+1:], 0)
	if j < 1 {
		return "", "", ErrNotTerminated
	}
	return string(b[:i]), string(b[i+1 : i+1+j]), nil
}
