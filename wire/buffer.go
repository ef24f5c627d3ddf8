package wire

import "io"

// DefaultBufferSize matches the read buffer size used by telldusd's own
// client communication handler.
const DefaultBufferSize = 2000

// Buffer is an owned byte arena with separate read and write cursors.
//
// Bytes in [r, w) are unread. Bytes before r have been consumed by a
// successful decode and are reclaimed by Compact, which moves the unread
// region to the front without changing its order. A buffer is not safe for
// concurrent use.
//
// Mark starts a transaction: while a mark is set, decodes advance the read
// cursor but compaction is suspended, so Rewind can restore every byte
// consumed since the mark. This lets a caller decode a multi-field frame as
// a unit and retry it from the start once more data has arrived.
type Buffer struct {
	buf  []byte
	r, w int
	mark int
}

// NewBuffer returns an empty buffer with the given capacity.
// A non-positive capacity selects DefaultBufferSize.
func NewBuffer(capacity int) *Buffer {
	if capacity <= 0 {
		capacity = DefaultBufferSize
	}
	return &Buffer{buf: make([]byte, capacity), mark: -1}
}

// NewBufferBytes returns a buffer holding a copy of p as unread data.
func NewBufferBytes(p []byte) *Buffer {
	b := &Buffer{buf: make([]byte, len(p)), mark: -1}
	b.w = copy(b.buf, p)
	return b
}

// NewBufferString returns a buffer holding s as unread data.
func NewBufferString(s string) *Buffer {
	return NewBufferBytes([]byte(s))
}

// Len returns the number of unread bytes.
func (b *Buffer) Len() int {
	return b.w - b.r
}

// Cap returns the current capacity of the buffer.
func (b *Buffer) Cap() int {
	return len(b.buf)
}

// Free returns the number of bytes that can be written without growing
// or compacting.
func (b *Buffer) Free() int {
	return len(b.buf) - b.w
}

// Unread returns the unread bytes. The slice aliases the buffer and is only
// valid until the next mutating call.
func (b *Buffer) Unread() []byte {
	return b.buf[b.r:b.w]
}

// Write appends p at the write cursor, growing the buffer when needed.
// It always returns len(p), nil.
func (b *Buffer) Write(p []byte) (int, error) {
	b.ensure(len(p))
	n := copy(b.buf[b.w:], p)
	b.w += n
	return n, nil
}

// WriteString appends s at the write cursor.
func (b *Buffer) WriteString(s string) (int, error) {
	b.ensure(len(s))
	n := copy(b.buf[b.w:], s)
	b.w += n
	return n, nil
}

// Fill performs exactly one Read from r into the free space after the write
// cursor and returns the number of bytes appended. Consumed bytes are
// reclaimed first when the buffer is full; it only grows when there is no
// consumed space left to reclaim.
func (b *Buffer) Fill(r io.Reader) (int, error) {
	b.ensure(1)
	n, err := r.Read(b.buf[b.w:])
	if n > 0 {
		b.w += n
	}
	return n, err
}

// Compact discards consumed bytes and moves the unread region to the start
// of the buffer. It is a no-op while a mark is set.
func (b *Buffer) Compact() {
	if b.mark >= 0 || b.r == 0 {
		return
	}
	n := copy(b.buf, b.buf[b.r:b.w])
	b.r, b.w = 0, n
}

// Reset empties the buffer and clears any mark. Capacity is retained.
func (b *Buffer) Reset() {
	b.r, b.w = 0, 0
	b.mark = -1
}

// Discard drops all unread bytes and returns how many were dropped.
func (b *Buffer) Discard() int {
	n := b.Len()
	b.Reset()
	return n
}

// Mark records the read cursor and suspends compaction until Rewind or Commit.
func (b *Buffer) Mark() {
	b.mark = b.r
}

// Rewind restores the read cursor to the mark and clears it. Without a mark
// it does nothing.
func (b *Buffer) Rewind() {
	if b.mark < 0 {
		return
	}
	b.r = b.mark
	b.mark = -1
}

// Commit clears the mark, keeping everything consumed since Mark, and
// compacts the buffer.
func (b *Buffer) Commit() {
	b.mark = -1
	b.Compact()
}

// Marked reports whether a mark is set.
func (b *Buffer) Marked() bool {
	return b.mark >= 0
}

// advance consumes n unread bytes. Outside a transaction the consumed bytes
// are reclaimed immediately.
func (b *Buffer) advance(n int) {
	b.r += n
	if b.mark < 0 {
		b.Compact()
	}
}

// ensure makes room for n more bytes at the write cursor.
func (b *Buffer) ensure(n int) {
	if b.Free() >= n {
		return
	}
	b.Compact()
	if b.Free() >= n {
		return
	}

	newCap := 2 * len(b.buf)
	if need := b.w + n; newCap < need {
		newCap = need
	}
	buf := make([]byte, newCap)
	copy(buf, b.buf[:b.w])
	b.buf = buf
}
