package fpm10

import "fmt"

// Confirmation code, the first payload byte of every Ack packet.
type Code byte

const (
	CodeOK                     Code = 0x00
	CodePacketReceiveError     Code = 0x01
	CodeNoFinger               Code = 0x02
	CodeImageCaptureFailed     Code = 0x03
	CodeImageTooDisordered     Code = 0x06
	CodeTooFewFeaturePoints    Code = 0x07
	CodeTemplatesDoNotMatch    Code = 0x08
	CodeNoMatchInLibrary       Code = 0x09
	CodeEnrolMismatch          Code = 0x0A
	CodeSlotOutOfRange         Code = 0x0B
	CodeTemplateReadError      Code = 0x0C
	CodeTemplateUploadError    Code = 0x0D
	CodeCannotAcceptDataPacket Code = 0x0E
	CodeImageUploadError       Code = 0x0F
	CodeDeleteFailed           Code = 0x10
	CodeLibraryClearFailed     Code = 0x11
	CodeIncorrectPassword      Code = 0x13
	CodeImageInvalid           Code = 0x15
	CodeFlashWriteError        Code = 0x18
	CodeInvalidRegister        Code = 0x1A
	CodeWrongAddress           Code = 0x20
	CodePasswordNotVerified    Code = 0x21
)

var codeMeanings = map[Code]string{
	CodeOK:                     "ok",
	CodePacketReceiveError:     "packet receive error",
	CodeNoFinger:               "no finger",
	CodeImageCaptureFailed:     "image capture failed",
	CodeImageTooDisordered:     "image too disordered",
	CodeTooFewFeaturePoints:    "too few feature points",
	CodeTemplatesDoNotMatch:    "templates do not match",
	CodeNoMatchInLibrary:       "no match found in library",
	CodeEnrolMismatch:          "enrol mismatch (two scans incompatible)",
	CodeSlotOutOfRange:         "slot id out of library range",
	CodeTemplateReadError:      "template read error",
	CodeTemplateUploadError:    "template upload error",
	CodeCannotAcceptDataPacket: "module cannot accept following data packets",
	CodeImageUploadError:       "image upload error",
	CodeDeleteFailed:           "delete failed",
	CodeLibraryClearFailed:     "library clear failed",
	CodeIncorrectPassword:      "incorrect password",
	CodeImageInvalid:           "image invalid",
	CodeFlashWriteError:        "flash write error",
	CodeInvalidRegister:        "invalid register",
	CodeWrongAddress:           "wrong address",
	CodePasswordNotVerified:    "password not yet verified",
}

// String renders the documented meaning of a confirmation code, or
// "unknown(0xNN)" for anything the device table doesn't name.
func (c Code) String() string {
	if s, ok := codeMeanings[c]; ok {
		return s
	}
	return fmt.Sprintf("unknown(0x%02X)", byte(c))
}
