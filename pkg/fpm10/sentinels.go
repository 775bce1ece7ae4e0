package fpm10

import "errors"

var (
	errTimeoutOrSync  = errors.New("no ack received before deadline")
	errUnexpectedType = errors.New("unexpected reply packet type")
	errShortAck       = errors.New("ack payload shorter than expected")
)
