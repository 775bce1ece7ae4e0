package fpm10

import (
	"time"

	"github.com/librescoot/fpm10-driver/pkg/wire"
)

const (
	opGetImage       byte = 0x01
	opImage2Tz       byte = 0x02
	opMatch          byte = 0x03
	opSearch         byte = 0x04
	opCreateModel    byte = 0x05
	opStore          byte = 0x06
	opLoadChar       byte = 0x07
	opDownloadChar   byte = 0x08
	opUploadChar     byte = 0x09
	opDownloadImage  byte = 0x0A
	opUploadImage    byte = 0x0B
	opDeleteChar     byte = 0x0C
	opEmptyLib       byte = 0x0D
	opReadSysParam   byte = 0x0F
	opVerifyPassword byte = 0x13
	opTemplateCount  byte = 0x1D
)

// Buffer identifies one of the device's two volatile char buffers.
type Buffer byte

const (
	Buffer1 Buffer = 1
	Buffer2 Buffer = 2
)

// SearchResult is the outcome of a library search.
type SearchResult struct {
	ID    uint16
	Score uint16
}

// Sensor drives a single FPM10-family fingerprint device over a framed
// transport (pkg/wire), implementing its command layer, data-stream
// layer, and session lifecycle. It does not itself enforce
// single-flight access to the sensor, that exclusion is
// pkg/workflow's Engine's job.
type Sensor struct {
	tr      *wire.Transport
	timeout time.Duration
}

// New builds a Sensor around an already-open transport. timeout is the
// default per-command deadline (2000ms is the documented default).
func New(tr *wire.Transport, timeout time.Duration) *Sensor {
	return &Sensor{tr: tr, timeout: timeout}
}

// Transport exposes the underlying framed transport, e.g. so the
// stream layer (same package) and session lifecycle can address it.
func (s *Sensor) Transport() *wire.Transport { return s.tr }

// Timeout returns the sensor's default per-command deadline.
func (s *Sensor) Timeout() time.Duration { return s.timeout }

// exchange writes a single Command packet (opcode + args) and reads
// exactly one Ack packet, returning its confirmation code and the
// payload bytes following it. Any transport-level failure (no Ack,
// wrong packet type, wrong length) becomes a TransportError.
func (s *Sensor) exchange(opcode byte, args []byte, timeout time.Duration) (Code, []byte, error) {
	payload := make([]byte, 0, 1+len(args))
	payload = append(payload, opcode)
	payload = append(payload, args...)

	if err := s.tr.Write(wire.TypeCommand, payload); err != nil {
		return 0, nil, err
	}

	pkt, err := s.tr.Read(timeout)
	if err != nil {
		return 0, nil, err
	}
	if pkt == nil {
		return 0, nil, &wire.TransportError{Op: "read ack", Err: errTimeoutOrSync}
	}
	if pkt.Type != wire.TypeAck {
		return 0, nil, &wire.TransportError{Op: "read ack", Err: errUnexpectedType}
	}
	if len(pkt.Payload) < 1 {
		return 0, nil, &wire.TransportError{Op: "read ack", Err: errShortAck}
	}
	return Code(pkt.Payload[0]), pkt.Payload[1:], nil
}

func be16(hi, lo byte) uint16 { return uint16(hi)<<8 | uint16(lo) }

// GetImage captures the image buffer from the live sensor. It returns
// true when a finger was present and the capture succeeded, false for
// the benign "no finger" code, and an error for anything else.
func (s *Sensor) GetImage() (bool, error) {
	code, _, err := s.exchange(opGetImage, nil, s.timeout)
	if err != nil {
		return false, err
	}
	switch code {
	case CodeOK:
		return true, nil
	case CodeNoFinger:
		return false, nil
	default:
		return false, newCodeError(code)
	}
}

// Image2Tz derives a feature template from the current image buffer
// into the given char buffer.
func (s *Sensor) Image2Tz(buf Buffer) error {
	code, _, err := s.exchange(opImage2Tz, []byte{byte(buf)}, s.timeout)
	if err != nil {
		return err
	}
	if code == CodeOK {
		return nil
	}
	return newCodeError(code)
}

// Match compares char buffers 1 and 2, returning their match score, or
// -1 for the benign "templates do not match" code.
func (s *Sensor) Match() (int, error) {
	code, payload, err := s.exchange(opMatch, nil, s.timeout)
	if err != nil {
		return -1, err
	}
	switch code {
	case CodeOK:
		if len(payload) < 2 {
			return -1, &wire.TransportError{Op: "match", Err: errShortAck}
		}
		return int(be16(payload[0], payload[1])), nil
	case CodeTemplatesDoNotMatch:
		return -1, nil
	default:
		return -1, newCodeError(code)
	}
}

// Search looks up the template in buf against [start, start+count) of
// the library, returning nil for the benign "no match" code.
func (s *Sensor) Search(buf Buffer, start, count uint16) (*SearchResult, error) {
	args := []byte{
		byte(buf),
		byte(start >> 8), byte(start),
		byte(count >> 8), byte(count),
	}
	code, payload, err := s.exchange(opSearch, args, s.timeout)
	if err != nil {
		return nil, err
	}
	switch code {
	case CodeOK:
		if len(payload) < 4 {
			return nil, &wire.TransportError{Op: "search", Err: errShortAck}
		}
		return &SearchResult{
			ID:    be16(payload[0], payload[1]),
			Score: be16(payload[2], payload[3]),
		}, nil
	case CodeNoMatchInLibrary:
		return nil, nil
	default:
		return nil, newCodeError(code)
	}
}

// CreateModel combines char buffers 1 and 2 into a single template in
// buffer 2.
func (s *Sensor) CreateModel() error {
	code, _, err := s.exchange(opCreateModel, nil, s.timeout)
	if err != nil {
		return err
	}
	if code == CodeOK {
		return nil
	}
	return newCodeError(code)
}

// Store writes the template in buf to the given library slot.
func (s *Sensor) Store(buf Buffer, slot uint16) error {
	args := []byte{byte(buf), byte(slot >> 8), byte(slot)}
	code, _, err := s.exchange(opStore, args, s.timeout)
	if err != nil {
		return err
	}
	if code == CodeOK {
		return nil
	}
	return newCodeError(code)
}

// LoadChar loads the template at slot from the library into buf.
func (s *Sensor) LoadChar(buf Buffer, slot uint16) error {
	args := []byte{byte(buf), byte(slot >> 8), byte(slot)}
	code, _, err := s.exchange(opLoadChar, args, s.timeout)
	if err != nil {
		return err
	}
	if code == CodeOK {
		return nil
	}
	return newCodeError(code)
}

// DeleteChar deletes count consecutive slots starting at slot.
func (s *Sensor) DeleteChar(slot, count uint16) error {
	args := []byte{byte(slot >> 8), byte(slot), byte(count >> 8), byte(count)}
	code, _, err := s.exchange(opDeleteChar, args, s.timeout)
	if err != nil {
		return err
	}
	if code == CodeOK {
		return nil
	}
	return newCodeError(code)
}

// EmptyLib clears the entire template library.
func (s *Sensor) EmptyLib() error {
	code, _, err := s.exchange(opEmptyLib, nil, s.timeout)
	if err != nil {
		return err
	}
	if code == CodeOK {
		return nil
	}
	return newCodeError(code)
}

// ReadSysParam reads the 16-byte session parameter block.
func (s *Sensor) ReadSysParam() (Params, error) {
	code, payload, err := s.exchange(opReadSysParam, nil, s.timeout)
	if err != nil {
		return Params{}, err
	}
	if code != CodeOK {
		return Params{}, newCodeError(code)
	}
	full := append([]byte{byte(code)}, payload...)
	params, err := parseSysParams(full)
	if err != nil {
		return Params{}, &wire.TransportError{Op: "read sys param", Err: err}
	}
	return params, nil
}

// VerifyPassword authenticates against the device's 32-bit password
// (default 0).
func (s *Sensor) VerifyPassword(password uint32) error {
	args := []byte{
		byte(password >> 24), byte(password >> 16),
		byte(password >> 8), byte(password),
	}
	code, _, err := s.exchange(opVerifyPassword, args, s.timeout)
	if err != nil {
		return err
	}
	if code == CodeOK {
		return nil
	}
	return newCodeError(code)
}

// TemplateCount returns the number of templates currently stored in
// the library.
func (s *Sensor) TemplateCount() (uint16, error) {
	code, payload, err := s.exchange(opTemplateCount, nil, s.timeout)
	if err != nil {
		return 0, err
	}
	if code != CodeOK {
		return 0, newCodeError(code)
	}
	if len(payload) < 2 {
		return 0, &wire.TransportError{Op: "template count", Err: errShortAck}
	}
	return be16(payload[0], payload[1]), nil
}

// startDownload issues the ack-only command that precedes a
// device-to-host data stream (DownloadChar/DownloadImage). The caller
// then reads Data/EndData packets directly off the transport.
func (s *Sensor) startDownload(opcode byte, buf Buffer) error {
	code, _, err := s.exchange(opcode, []byte{byte(buf)}, s.timeout)
	if err != nil {
		return err
	}
	if code == CodeOK {
		return nil
	}
	return newCodeError(code)
}

// startUpload issues the ack-only command that precedes a
// host-to-device data stream (UploadChar/UploadImage).
func (s *Sensor) startUpload(opcode byte, buf Buffer) error {
	code, _, err := s.exchange(opcode, []byte{byte(buf)}, s.timeout)
	if err != nil {
		return err
	}
	if code == CodeOK {
		return nil
	}
	return newCodeError(code)
}

// startImageCommand issues an ack-only command with no arguments, used
// by DownloadImage/UploadImage which address the single image buffer
// rather than one of the two char buffers.
func (s *Sensor) startImageCommand(opcode byte) error {
	code, _, err := s.exchange(opcode, nil, s.timeout)
	if err != nil {
		return err
	}
	if code == CodeOK {
		return nil
	}
	return newCodeError(code)
}
