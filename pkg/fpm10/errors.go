package fpm10

import "fmt"

// Kind distinguishes SensorError causes beyond the raw confirmation
// code table: cases the driver itself detects rather than the device.
type Kind int

const (
	KindConfirmationCode Kind = iota
	KindWrongScanSize
	KindUnknownCode
	KindCancelled
	KindHandshakeFailed
)

// SensorError wraps a non-OK, non-benign confirmation code (or a
// driver-detected condition) returned by the sensor.
type SensorError struct {
	Kind Kind
	Code Code // valid when Kind == KindConfirmationCode or KindUnknownCode
	Msg  string
}

func (e *SensorError) Error() string {
	switch e.Kind {
	case KindConfirmationCode:
		return fmt.Sprintf("fpm10: sensor error: %s (code 0x%02x)", e.Code, byte(e.Code))
	case KindUnknownCode:
		return fmt.Sprintf("fpm10: sensor error: unknown confirmation code 0x%02x", byte(e.Code))
	case KindCancelled:
		return "fpm10: cancelled"
	case KindHandshakeFailed:
		return fmt.Sprintf("fpm10: handshake failed: %s", e.Msg)
	case KindWrongScanSize:
		return fmt.Sprintf("fpm10: wrong scan size: %s", e.Msg)
	default:
		return "fpm10: sensor error"
	}
}

// newCodeError builds a SensorError from a confirmation code, tagging
// codes absent from the documented table as KindUnknownCode.
func newCodeError(c Code) *SensorError {
	if _, ok := codeMeanings[c]; !ok {
		return &SensorError{Kind: KindUnknownCode, Code: c}
	}
	return &SensorError{Kind: KindConfirmationCode, Code: c}
}

// ErrCancelled is returned by workflow polling loops (pkg/workflow)
// when a caller requests cancellation; defined here so both packages
// agree on a single SensorError shape.
var ErrCancelled = &SensorError{Kind: KindCancelled}

// ErrHandshakeFailed wraps a failed VerifyPassword/ReadSysParam during Open.
func ErrHandshakeFailed(reason string) *SensorError {
	return &SensorError{Kind: KindHandshakeFailed, Msg: reason}
}

// ErrWrongScanSize signals an image upload given a pixel buffer that
// doesn't match the sensor's documented 288x256 image size.
func ErrWrongScanSize(reason string) *SensorError {
	return &SensorError{Kind: KindWrongScanSize, Msg: reason}
}
