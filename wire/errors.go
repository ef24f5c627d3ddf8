package wire

import (
	"errors"
	"strconv"
)

// ErrNeedMoreData is returned when the buffer holds an incomplete field.
// It is not a failure: the buffer is left exactly as it was and the caller
// should retry after more bytes have been appended.
var ErrNeedMoreData = errors.New("wire: need more data")

// ParseError is returned when the buffered bytes cannot be decoded as the
// requested field. The stream is out of sync and waiting for more data will
// not help.
type ParseError struct {
	Message string
	Offset  int   // Offset of the offending byte, relative to the read cursor
	Err     error // Underlying error, if any
}

func (e *ParseError) Error() string {
	msg := "wire: parse error at offset " + strconv.Itoa(e.Offset) + ": " + e.Message
	if e.Err != nil {
		return msg + ": " + e.Err.Error()
	}
	return msg
}

// Unwrap returns the underlying error for error chain inspection
func (e *ParseError) Unwrap() error {
	return e.Err
}

// IsParseError reports whether err is, or wraps, a *ParseError.
func IsParseError(err error) bool {
	var pe *ParseError
	return errors.As(err, &pe)
}
