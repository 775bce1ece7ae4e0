package fpm10

import (
	"io"
	"time"

	"github.com/librescoot/fpm10-driver/pkg/iostream"
	"github.com/librescoot/fpm10-driver/pkg/wire"
)

// Port is the narrow interface Session needs from a serial port: a
// duplex byte stream the caller owns the lifecycle of. The serial.Port
// returned by go.bug.st/serial's serial.Open satisfies this directly.
type Port interface {
	io.ReadWriter
	io.Closer
}

// Config holds the recognized session options.
type Config struct {
	Baud             int // default 57600
	DefaultTimeoutMS int // default 2000
	Password         uint32
}

// DefaultConfig returns the documented session defaults.
func DefaultConfig() Config {
	return Config{Baud: 57600, DefaultTimeoutMS: 2000, Password: 0}
}

// Session owns an open port, its byte reader, and the handshake-derived
// parameters, and exposes the Sensor built on top of them.
type Session struct {
	port   Port
	reader *iostream.Reader
	Sensor *Sensor
	Params Params
}

// Open starts the byte reader over an already-open port and performs
// the handshake: VerifyPassword then ReadSysParam. It does not open or
// configure the port: baud rate and 8-N-1 framing are whatever the
// caller set up, and cfg.Baud only sizes the byte reader's idle-poll
// interval.
// On any handshake failure the port is closed and a SensorError with
// KindHandshakeFailed is returned.
func Open(port Port, cfg Config) (*Session, error) {
	if cfg.Baud == 0 {
		cfg.Baud = 57600
	}
	if cfg.DefaultTimeoutMS == 0 {
		cfg.DefaultTimeoutMS = 2000
	}

	reader := iostream.New(port, cfg.Baud)
	tr := wire.NewTransport(reader, port, wire.DefaultAddress)
	sensor := New(tr, time.Duration(cfg.DefaultTimeoutMS)*time.Millisecond)

	sess := &Session{port: port, reader: reader, Sensor: sensor}

	if err := sensor.VerifyPassword(cfg.Password); err != nil {
		sess.Close()
		return nil, ErrHandshakeFailed(err.Error())
	}

	params, err := sensor.ReadSysParam()
	if err != nil {
		sess.Close()
		return nil, ErrHandshakeFailed(err.Error())
	}
	sess.Params = params
	tr.SetAddress(params.Address)

	return sess, nil
}

// Close is idempotent and swallows errors encountered while tearing
// down the byte reader and the port.
func (s *Session) Close() error {
	if s.reader != nil {
		_ = s.reader.Close()
	}
	if s.port != nil {
		_ = s.port.Close()
	}
	return nil
}
