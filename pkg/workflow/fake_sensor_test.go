package workflow

import (
	"bytes"
	"sync"
	"time"

	"github.com/librescoot/fpm10-driver/pkg/fpm10"
	"github.com/librescoot/fpm10-driver/pkg/iostream"
	"github.com/librescoot/fpm10-driver/pkg/wire"
)

// These opcode values mirror pkg/fpm10's unexported command table; they
// are only used here to assemble literal wire frames for the scripted
// fake port, the same approach pkg/fpm10's own tests use.
const (
	opGetImage    byte = 0x01
	opImage2Tz    byte = 0x02
	opCreateModel byte = 0x05
	opStore       byte = 0x06
)

// scriptedPort mirrors pkg/fpm10's fake_port_test.go harness: each
// Write pops the next queued response blob onto the read side.
type scriptedPort struct {
	mu        sync.Mutex
	responses [][]byte
	buf       bytes.Buffer
	writes    [][]byte
}

func newScriptedPort(responses ...[]byte) *scriptedPort {
	return &scriptedPort{responses: responses}
}

func (p *scriptedPort) Write(b []byte) (int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	cp := append([]byte(nil), b...)
	p.writes = append(p.writes, cp)
	if len(p.responses) > 0 {
		p.buf.Write(p.responses[0])
		p.responses = p.responses[1:]
	}
	return len(b), nil
}

func (p *scriptedPort) Read(b []byte) (int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.buf.Len() == 0 {
		return 0, nil
	}
	return p.buf.Read(b)
}

func (p *scriptedPort) Close() error { return nil }

func (p *scriptedPort) writeCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.writes)
}

func (p *scriptedPort) opcodeAt(i int) byte {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.writes[i][9]
}

func checksumBytes(typ byte, payload []byte) (hi, lo byte) {
	sum := uint32(typ)
	length := uint16(len(payload) + 2)
	sum += uint32(byte(length >> 8))
	sum += uint32(byte(length))
	for _, b := range payload {
		sum += uint32(b)
	}
	c := uint16(sum & 0xFFFF)
	return byte(c >> 8), byte(c)
}

func frame(addr uint32, typ byte, payload []byte) []byte {
	length := uint16(len(payload) + 2)
	cksumHi, cksumLo := checksumBytes(typ, payload)
	out := []byte{0xEF, 0x01,
		byte(addr >> 24), byte(addr >> 16), byte(addr >> 8), byte(addr),
		typ, byte(length >> 8), byte(length),
	}
	out = append(out, payload...)
	out = append(out, cksumHi, cksumLo)
	return out
}

const testTimeout = 300 * time.Millisecond

func engineWithResponses(responses ...[]byte) (*Engine, *scriptedPort) {
	port := newScriptedPort(responses...)
	reader := iostream.New(port, 115200)
	tr := wire.NewTransport(reader, port, wire.DefaultAddress)
	sensor := fpm10.New(tr, testTimeout)
	return NewEngine(sensor, 64, 128, DefaultConfig()), port
}

func ackOK() []byte {
	return frame(wire.DefaultAddress, byte(wire.TypeAck), []byte{0x00})
}

func ackCode(code byte) []byte {
	return frame(wire.DefaultAddress, byte(wire.TypeAck), []byte{code})
}

func templateCountAck(count uint16) []byte {
	return frame(wire.DefaultAddress, byte(wire.TypeAck), []byte{0x00, byte(count >> 8), byte(count)})
}

// countingListener records call order so tests can assert the exact
// human-interaction sequence a workflow produces.
type countingListener struct {
	mu     sync.Mutex
	events []string
}

func (l *countingListener) PutFinger() { l.record("put") }

func (l *countingListener) RemoveFinger() { l.record("remove") }

func (l *countingListener) WaitWhileDataTransferring() { l.record("wait") }

func (l *countingListener) record(ev string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.events = append(l.events, ev)
}

func (l *countingListener) snapshot() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]string(nil), l.events...)
}

var _ HumanActionListener = (*countingListener)(nil)
