package wire

import (
	"io"
	"strconv"
	"strings"

	"github.com/pior/telldus/internal/bufpool"
)

// Typical requests are a function name and a couple of arguments.
var bufferPool = bufpool.New(128)

// Message is an ordered sequence of fields. On the command endpoint the first
// field is the name of the remote function; on the event endpoint it is the
// event tag.
//
// A Message has no length envelope: its encoding is the concatenation of its
// fields.
type Message struct {
	fields []Field
}

// NewMessage returns a message starting with the given function name.
func NewMessage(function string, args ...Field) *Message {
	m := &Message{fields: make([]Field, 0, 1+len(args))}
	m.fields = append(m.fields, String(function))
	m.fields = append(m.fields, args...)
	return m
}

// AddInt appends an integer argument.
func (m *Message) AddInt(v int) *Message {
	m.fields = append(m.fields, Int(v))
	return m
}

// AddString appends a string argument.
func (m *Message) AddString(s string) *Message {
	m.fields = append(m.fields, String(s))
	return m
}

// Add appends fields.
func (m *Message) Add(fields ...Field) *Message {
	m.fields = append(m.fields, fields...)
	return m
}

// Fields returns a copy of the message fields.
func (m *Message) Fields() []Field {
	out := make([]Field, len(m.fields))
	copy(out, m.fields)
	return out
}

// Function returns the leading string field, or "" if there is none.
func (m *Message) Function() string {
	if len(m.fields) == 0 || m.fields[0].kind != KindString {
		return ""
	}
	return m.fields[0].str
}

// AppendTo appends the encoding of every field to dst.
func (m *Message) AppendTo(dst []byte) []byte {
	for _, f := range m.fields {
		dst = f.AppendTo(dst)
	}
	return dst
}

// Bytes returns the wire encoding of the message.
func (m *Message) Bytes() []byte {
	return m.AppendTo(nil)
}

// Len returns the length of the wire encoding.
func (m *Message) Len() int {
	var scratch [24]byte
	n := 0
	for _, f := range m.fields {
		switch f.kind {
		case KindInt:
			n += len(AppendInt(scratch[:0], f.num))
		case KindString:
			n += len(strconv.AppendInt(scratch[:0], int64(len(f.str)), 10)) + 1 + len(f.str)
		}
	}
	return n
}

// WriteTo writes the encoded message to w with a single Write call.
func (m *Message) WriteTo(w io.Writer) (int64, error) {
	buf := bufferPool.Get()
	defer bufferPool.Put(buf)

	buf.Write(m.AppendTo(buf.AvailableBuffer()))
	n, err := w.Write(buf.Bytes())
	return int64(n), err
}

// String formats the message for logs: function(arg, arg, ...)
func (m *Message) String() string {
	if len(m.fields) == 0 {
		return "()"
	}

	var sb strings.Builder
	args := m.fields
	if m.fields[0].kind == KindString {
		sb.WriteString(m.fields[0].str)
		args = m.fields[1:]
	}
	sb.WriteByte('(')
	for i, f := range args {
		if i > 0 {
			sb.WriteString(", ")
		}
		sb.WriteString(f.String())
	}
	sb.WriteByte(')')
	return sb.String()
}

// ParseMessage decodes every field in p. It returns ErrNeedMoreData if p ends
// in the middle of a field.
func ParseMessage(p []byte) (*Message, error) {
	b := NewBufferBytes(p)
	m := &Message{}
	for b.Len() > 0 {
		f, err := TakeField(b)
		if err != nil {
			return nil, err
		}
		m.fields = append(m.fields, f)
	}
	return m, nil
}
