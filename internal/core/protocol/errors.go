package protocol

import "errors"

var (
	ErrMalformed   = errors.New("malformed message")
	ErrUnknownType = errors.New("unknown message type")
	ErrEncode      = errors.New("message encoding failed")
)
