package connection

import "errors"

var (
	ErrIDInUse       = errors.New("request id already in use")
	ErrTimeout       = errors.New("timeout")
	ErrNoBaseURL     = errors.New("base url not set")
	ErrNoMarshaler   = errors.New("marshaler is not set")
	ErrNoUnmarshaler = errors.New("unmarshaler is not set")
	ErrClosed        = errors.New("connection closed")
)
