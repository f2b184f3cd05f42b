package crdt

import "errors"

var (
	ErrMalformedID     = errors.New("malformed operation id")
	ErrInvalidElement  = errors.New("invalid element")
	ErrUnknownOrigin   = errors.New("origin not integrated")
	ErrDuplicateID     = errors.New("duplicate element id")
	ErrIndexOutOfRange = errors.New("visible index out of range")
)
