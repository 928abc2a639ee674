package realtime

import "errors"

var (
	// ErrMalformedReply reports a reply lacking a field its parser requires.
	ErrMalformedReply = errors.New("malformed reply")

	// ErrUnexpectedEvent reports a push frame whose shape an adapter cannot unwrap.
	ErrUnexpectedEvent = errors.New("unexpected event shape")
)
