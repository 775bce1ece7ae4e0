package wire

import (
	"encoding/binary"
	"io"
	"time"

	"github.com/librescoot/fpm10-driver/pkg/iostream"
)

// Type classifies a packet's role in a command/ack/data conversation.
type Type byte

const (
	TypeCommand Type = 0x01
	TypeData    Type = 0x02
	TypeAck     Type = 0x07
	TypeEndData Type = 0x08
)

const (
	headerHi byte = 0xEF
	headerLo byte = 0x01

	// DefaultAddress is used until a successful ReadSysParam overrides it.
	DefaultAddress uint32 = 0xFFFFFFFF
)

// Packet is the atomic unit of the FPM10 framed packet protocol: a
// fixed prolog (header + module address) followed by a
// type/length/payload/checksum tail, carried over the byte-level
// reader in pkg/iostream.
type Packet struct {
	Type    Type
	Payload []byte
}

// Transport serializes and deserializes packets against a module
// address (the prolog's 4 address bytes), set at construction and
// replaceable with SetAddress.
type Transport struct {
	r    *iostream.Reader
	w    io.Writer
	addr uint32
}

// NewTransport builds a Transport over an already-running byte reader
// and a writer for the same underlying port.
func NewTransport(r *iostream.Reader, w io.Writer, address uint32) *Transport {
	return &Transport{r: r, w: w, addr: address}
}

// Address returns the module address this transport addresses packets to.
func (t *Transport) Address() uint32 { return t.addr }

// SetAddress updates the module address, used once a handshake's
// ReadSysParam reports the device's real address.
func (t *Transport) SetAddress(addr uint32) { t.addr = addr }

func checksum(typ Type, lengthHi, lengthLo byte, payload []byte) uint16 {
	sum := uint32(typ) + uint32(lengthHi) + uint32(lengthLo)
	for _, b := range payload {
		sum += uint32(b)
	}
	return uint16(sum & 0xFFFF)
}

// Write emits prolog, type, big-endian length, payload, then the
// big-endian checksum. The only failure mode is the underlying UART
// write failing.
func (t *Transport) Write(typ Type, payload []byte) error {
	length := uint16(len(payload) + 2)
	lengthHi := byte(length >> 8)
	lengthLo := byte(length & 0xFF)
	cksum := checksum(typ, lengthHi, lengthLo, payload)

	frame := make([]byte, 0, 6+3+len(payload)+2)
	frame = append(frame, headerHi, headerLo)
	var addrBuf [4]byte
	binary.BigEndian.PutUint32(addrBuf[:], t.addr)
	frame = append(frame, addrBuf[:]...)
	frame = append(frame, byte(typ), lengthHi, lengthLo)
	frame = append(frame, payload...)
	frame = append(frame, byte(cksum>>8), byte(cksum&0xFF))

	if _, err := t.w.Write(frame); err != nil {
		return &TransportError{Op: "write", Err: err}
	}
	return nil
}

// Read synchronizes to the prolog, then reads and validates a single
// packet. Any failure (sync timeout, short length, checksum mismatch,
// deadline elapsed mid-frame) returns (nil, nil): the caller treats a
// nil packet as a transport-level non-event and maps it to an error
// itself.
func (t *Transport) Read(deadline time.Duration) (*Packet, error) {
	remaining := deadline
	start := time.Now()

	if err := t.syncProlog(remaining); err != nil {
		return nil, nil
	}
	remaining = deadlineLeft(start, deadline)

	meta, err := t.r.ReadN(3, remaining)
	if err != nil {
		return nil, nil
	}
	typ := Type(meta[0])
	length := uint16(meta[1])<<8 | uint16(meta[2])
	if length < 2 {
		return nil, nil
	}

	remaining = deadlineLeft(start, deadline)
	rest, err := t.r.ReadN(int(length), remaining)
	if err != nil {
		return nil, nil
	}
	payload := rest[:len(rest)-2]
	gotCksum := uint16(rest[len(rest)-2])<<8 | uint16(rest[len(rest)-1])

	wantCksum := checksum(typ, meta[1], meta[2], payload)
	if wantCksum != gotCksum {
		return nil, nil
	}

	return &Packet{Type: typ, Payload: append([]byte(nil), payload...)}, nil
}

func deadlineLeft(start time.Time, total time.Duration) time.Duration {
	left := total - time.Since(start)
	if left < 0 {
		return 0
	}
	return left
}

// syncProlog slides a match index across incoming bytes looking for
// headerHi, headerLo, then the 4 address bytes. A mismatch at any
// position resets the match index (to one if the mismatching byte is
// itself headerHi, otherwise to zero) without re-examining earlier
// consumed bytes: safe because the header byte is distinctive and the
// driver never begins a read while unread data remains.
func (t *Transport) syncProlog(timeout time.Duration) error {
	start := time.Now()
	want := make([]byte, 6)
	want[0] = headerHi
	want[1] = headerLo
	binary.BigEndian.PutUint32(want[2:], t.addr)

	matched := 0
	for matched < len(want) {
		left := deadlineLeft(start, timeout)
		if left <= 0 {
			return iostream.ErrTimeout
		}
		b, err := t.r.ReadByte(left)
		if err != nil {
			return err
		}
		if b == want[matched] {
			matched++
		} else if b == want[0] {
			matched = 1
		} else {
			matched = 0
		}
	}
	return nil
}
