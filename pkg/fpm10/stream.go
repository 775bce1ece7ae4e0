package fpm10

import (
	"bytes"
	"time"

	"github.com/librescoot/fpm10-driver/pkg/wire"
)

const (
	imageRows = 288
	imageCols = 256
	imageSize = imageRows * imageCols

	drainTimeout = 50 * time.Millisecond
)

// downloadStream reads Data packets until the first EndData,
// concatenating payloads in arrival order, then drains (and discards)
// any further packets that arrive while the host is still listening,
// tolerating trailing packets that race the EndData marker.
func (s *Sensor) downloadStream(timeout time.Duration) ([]byte, error) {
	var data []byte
	for {
		pkt, err := s.tr.Read(timeout)
		if err != nil {
			return nil, err
		}
		if pkt == nil {
			return nil, &wire.TransportError{Op: "download stream", Err: errTimeoutOrSync}
		}
		switch pkt.Type {
		case wire.TypeEndData:
			data = append(data, pkt.Payload...)
			s.drainTrailing()
			return data, nil
		case wire.TypeData:
			data = append(data, pkt.Payload...)
		default:
			return nil, &wire.TransportError{Op: "download stream", Err: errUnexpectedType}
		}
	}
}

func (s *Sensor) drainTrailing() {
	for {
		pkt, err := s.tr.Read(drainTimeout)
		if err != nil || pkt == nil {
			return
		}
	}
}

// uploadStream chunks data into packageLen-sized Data packets, marking
// the final (possibly short, possibly full-length) chunk EndData.
func (s *Sensor) uploadStream(data []byte, packageLen int) error {
	if packageLen <= 0 {
		packageLen = 32
	}
	if len(data) == 0 {
		return s.tr.Write(wire.TypeEndData, nil)
	}
	for offset := 0; offset < len(data); offset += packageLen {
		end := offset + packageLen
		last := false
		if end >= len(data) {
			end = len(data)
			last = true
		}
		typ := wire.TypeData
		if last {
			typ = wire.TypeEndData
		}
		if err := s.tr.Write(typ, data[offset:end]); err != nil {
			return err
		}
	}
	return nil
}

// DownloadChar streams the template in buf from device to host.
func (s *Sensor) DownloadChar(buf Buffer) ([]byte, error) {
	if err := s.startDownload(opDownloadChar, buf); err != nil {
		return nil, err
	}
	return s.downloadStream(s.timeout)
}

// UploadChar streams data from host to device into char buffer buf.
// packageLen is the session's negotiated data-package length.
func (s *Sensor) UploadChar(buf Buffer, data []byte, packageLen int) error {
	if err := s.startUpload(opUploadChar, buf); err != nil {
		return err
	}
	return s.uploadStream(data, packageLen)
}

// UploadModel uploads data into buf, then downloads it back and
// reports success iff the echoed bytes equal the input: a costly but
// bit-exact verification of the round trip.
func (s *Sensor) UploadModel(buf Buffer, data []byte, packageLen int) (bool, error) {
	if err := s.UploadChar(buf, data, packageLen); err != nil {
		return false, err
	}
	echo, err := s.DownloadChar(buf)
	if err != nil {
		return false, err
	}
	return bytes.Equal(echo, data), nil
}

// DownloadImage streams the image buffer from device to host and
// unpacks it into one byte per pixel, row-major, 288x256.
func (s *Sensor) DownloadImage() ([]byte, error) {
	if err := s.startImageCommand(opDownloadImage); err != nil {
		return nil, err
	}
	packed, err := s.downloadStream(s.timeout)
	if err != nil {
		return nil, err
	}
	return unpackImage(packed), nil
}

// UploadImage packs a 288x256 one-byte-per-pixel image and streams it
// host to device into the image buffer.
func (s *Sensor) UploadImage(pixels []byte, packageLen int) error {
	if len(pixels) != imageSize {
		return ErrWrongScanSize("image must be 288x256 bytes")
	}
	if err := s.startImageCommand(opUploadImage); err != nil {
		return err
	}
	return s.uploadStream(packImage(pixels), packageLen)
}

// unpackImage expands each packed byte into two pixels: the high
// nibble first, then the low nibble, each multiplied by 16 because
// only the top four bits of intensity survive the wire encoding.
func unpackImage(packed []byte) []byte {
	out := make([]byte, len(packed)*2)
	for i, b := range packed {
		out[2*i] = (b >> 4) * 16
		out[2*i+1] = (b & 0x0F) * 16
	}
	return out
}

// packImage inverts unpackImage: two adjacent pixels collapse into one
// byte, each truncated to its high nibble.
func packImage(pixels []byte) []byte {
	out := make([]byte, len(pixels)/2)
	for i := range out {
		hi := pixels[2*i] >> 4
		lo := pixels[2*i+1] >> 4
		out[i] = hi<<4 | lo
	}
	return out
}
