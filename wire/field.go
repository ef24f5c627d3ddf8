package wire

import (
	"fmt"
	"strconv"
)

// Kind identifies the type of the next field in a buffer.
type Kind uint8

const (
	// KindIndeterminate means the next field cannot be identified: the buffer
	// is empty, or its next byte starts no known field.
	KindIndeterminate Kind = iota
	KindInt
	KindString
)

func (k Kind) String() string {
	switch k {
	case KindInt:
		return "int"
	case KindString:
		return "string"
	default:
		return "indeterminate"
	}
}

// Field is a single protocol value: an integer or a string.
type Field struct {
	kind Kind
	num  int
	str  string
}

// Int returns an integer field.
func Int(v int) Field {
	return Field{kind: KindInt, num: v}
}

// String returns a string field.
func String(s string) Field {
	return Field{kind: KindString, str: s}
}

// Kind returns KindInt or KindString. The zero Field is KindIndeterminate.
func (f Field) Kind() Kind {
	return f.kind
}

// IntValue returns the value of an integer field, or 0.
func (f Field) IntValue() int {
	return f.num
}

// StringValue returns the value of a string field, or "".
func (f Field) StringValue() string {
	return f.str
}

// AppendTo appends the wire encoding of f to dst.
func (f Field) AppendTo(dst []byte) []byte {
	switch f.kind {
	case KindInt:
		return AppendInt(dst, f.num)
	case KindString:
		return AppendString(dst, f.str)
	default:
		return dst
	}
}

func (f Field) String() string {
	switch f.kind {
	case KindInt:
		return strconv.Itoa(f.num)
	case KindString:
		return strconv.Quote(f.str)
	default:
		return "<invalid>"
	}
}

// AppendInt appends the encoding of v to dst: i<digits>s
func AppendInt(dst []byte, v int) []byte {
	dst = append(dst, IntPrefix)
	dst = strconv.AppendInt(dst, int64(v), 10)
	return append(dst, IntTerminator)
}

// AppendString appends the encoding of s to dst: <byte length>:<bytes>
// The prefix counts UTF-8 bytes, not characters.
func AppendString(dst []byte, s string) []byte {
	dst = strconv.AppendInt(dst, int64(len(s)), 10)
	dst = append(dst, StringSeparator)
	return append(dst, s...)
}

// PeekKind reports the kind of the next field without consuming anything.
func PeekKind(b *Buffer) Kind {
	if b.Len() == 0 {
		return KindIndeterminate
	}
	c := b.buf[b.r]
	switch {
	case c == IntPrefix:
		return KindInt
	case isDigit(c):
		return KindString
	default:
		return KindIndeterminate
	}
}

// TakeInt decodes the integer field at the read cursor.
//
// On success the field is consumed and the buffer compacted (unless a mark
// is set). ErrNeedMoreData is returned when the terminator has not arrived
// yet; the buffer is then left untouched. A *ParseError is returned when the
// next field is not a well-formed integer.
func TakeInt(b *Buffer) (int, error) {
	v, n, err := parseInt(b.Unread())
	if err != nil {
		return 0, err
	}
	b.advance(n)
	return v, nil
}

// TakeString decodes the string field at the read cursor.
//
// The length prefix is re-parsed on every call, so a call that returned
// ErrNeedMoreData can be repeated once more bytes have been appended. On
// success the field is consumed and the buffer compacted (unless a mark is
// set).
func TakeString(b *Buffer) (string, error) {
	s, n, err := parseString(b.Unread())
	if err != nil {
		return "", err
	}
	b.advance(n)
	return s, nil
}

// TakeField decodes the next field, whatever its kind.
func TakeField(b *Buffer) (Field, error) {
	switch PeekKind(b) {
	case KindInt:
		v, err := TakeInt(b)
		if err != nil {
			return Field{}, err
		}
		return Int(v), nil
	case KindString:
		s, err := TakeString(b)
		if err != nil {
			return Field{}, err
		}
		return String(s), nil
	}

	if b.Len() == 0 {
		return Field{}, ErrNeedMoreData
	}
	return Field{}, &ParseError{Message: fmt.Sprintf("unexpected byte %q", b.buf[b.r])}
}

// parseInt decodes an integer field from the start of p and returns its
// value and encoded length. Only the canonical form is accepted: no leading
// zeros and no "-0".
func parseInt(p []byte) (int, int, error) {
	if len(p) == 0 {
		return 0, 0, ErrNeedMoreData
	}
	if p[0] != IntPrefix {
		return 0, 0, &ParseError{Message: fmt.Sprintf("expected integer field, got %q", p[0])}
	}

	i := 1
	if i < len(p) && p[i] == IntSign {
		i++
	}
	digits := i
	for ; i < len(p) && p[i] != IntTerminator; i++ {
		if !isDigit(p[i]) {
			return 0, 0, &ParseError{Message: fmt.Sprintf("invalid byte %q in integer", p[i]), Offset: i}
		}
		if i > digits && p[digits] == '0' {
			return 0, 0, &ParseError{Message: "leading zero in integer", Offset: digits}
		}
		if i-digits >= maxDigits {
			return 0, 0, &ParseError{Message: "integer too long", Offset: i}
		}
	}
	if i == len(p) {
		return 0, 0, ErrNeedMoreData
	}
	if i == digits {
		return 0, 0, &ParseError{Message: "empty integer", Offset: i}
	}
	if digits == 2 && p[2] == '0' {
		return 0, 0, &ParseError{Message: "negative zero", Offset: 1}
	}

	v, err := strconv.ParseInt(string(p[1:i]), 10, strconv.IntSize)
	if err != nil {
		return 0, 0, &ParseError{Message: "integer out of range", Offset: 1, Err: err}
	}
	return int(v), i + 1, nil
}

// parseString decodes a string field from the start of p and returns its
// value and encoded length. The length prefix has no leading zeros.
func parseString(p []byte) (string, int, error) {
	if len(p) == 0 {
		return "", 0, ErrNeedMoreData
	}
	if !isDigit(p[0]) {
		return "", 0, &ParseError{Message: fmt.Sprintf("expected string field, got %q", p[0])}
	}

	i := 0
	for ; i < len(p) && p[i] != StringSeparator; i++ {
		if !isDigit(p[i]) {
			return "", 0, &ParseError{Message: fmt.Sprintf("invalid byte %q in string length", p[i]), Offset: i}
		}
		if i > 0 && p[0] == '0' {
			return "", 0, &ParseError{Message: "leading zero in string length"}
		}
		if i >= maxDigits {
			return "", 0, &ParseError{Message: "string length too long", Offset: i}
		}
	}
	if i == len(p) {
		return "", 0, ErrNeedMoreData
	}

	length, err := strconv.Atoi(string(p[:i]))
	if err != nil {
		return "", 0, &ParseError{Message: "invalid string length", Err: err}
	}
	if length > MaxStringLength {
		return "", 0, &ParseError{Message: fmt.Sprintf("string length %d exceeds limit", length)}
	}

	start := i + 1
	if len(p)-start < length {
		return "", 0, ErrNeedMoreData
	}
	return string(p[start : start+length]), start + length, nil
}

func isDigit(c byte) bool {
	return c >= '0' && c <= '9'
}
