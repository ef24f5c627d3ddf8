package telldus

import (
	"errors"
	"fmt"
)

var (
	// ErrNoAnswer is returned by command calls when both the first attempt and
	// the retry failed at the transport level. It wraps the last cause. A
	// no-answer result is an expected outcome (the daemon is down or
	// restarting), not a programming error.
	ErrNoAnswer = errors.New("telldus: no answer from service")

	// ErrUnknownKind is wrapped by DesyncError when an event tag has no
	// registered decoder.
	ErrUnknownKind = errors.New("telldus: unknown event kind")

	// ErrMalformedReply is returned when a command reply cannot be decoded as
	// the expected field.
	ErrMalformedReply = errors.New("telldus: malformed reply")

	ErrAlreadyStarted = errors.New("telldus: event channel already started")
	ErrNoHandler      = errors.New("telldus: subscriber handles no event kind")
	ErrNotComparable  = errors.New("telldus: subscriber type is not comparable")
)

// ConnectionError wraps transport failures (connect, read, write).
// The connection is unusable afterwards and has been, or must be, closed.
type ConnectionError struct {
	Op   string // Operation that failed: connect, read, write
	Addr string
	Err  error
}

func (e *ConnectionError) Error() string {
	return fmt.Sprintf("telldus: %s %s: %v", e.Op, e.Addr, e.Err)
}

// Unwrap returns the underlying error for error chain inspection
func (e *ConnectionError) Unwrap() error {
	return e.Err
}

// DesyncError reports that buffered event bytes no longer line up with a
// frame boundary: the leading field is not a tag, the tag is unknown, or the
// fields following it do not match the tag's schema. The event channel
// recovers by discarding its buffer and reconnecting.
type DesyncError struct {
	Tag string // Decoded tag, empty if the tag itself could not be read
	Err error
}

func (e *DesyncError) Error() string {
	if e.Tag == "" {
		return "telldus: event stream out of sync: " + e.Err.Error()
	}
	return fmt.Sprintf("telldus: event stream out of sync at %s: %v", e.Tag, e.Err)
}

// Unwrap returns the underlying error for error chain inspection
func (e *DesyncError) Unwrap() error {
	return e.Err
}

// isTransportError reports whether err is a transport failure that warrants a
// retry with a fresh connection.
func isTransportError(err error) bool {
	var ce *ConnectionError
	return errors.As(err, &ce)
}
