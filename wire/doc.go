// Package wire implements the length-prefixed text protocol spoken by the
// Telldus daemon (telldusd) on both its command and its event endpoint.
//
// The package has no I/O of its own beyond io.Reader/io.Writer plumbing and
// is shared by the command channel and the event channel of package telldus.
//
// # Encoding
//
// A message is the concatenation of its fields, with no outer envelope:
//
//   - String: decimal UTF-8 byte length, ':', then the raw bytes ("5:hello")
//   - Integer: 'i', decimal digits with an optional '-', then 's' ("i42s", "i-3s")
//
// Decoding accepts only this canonical form: a length prefix or an integer
// with a leading zero, or "-0", is a ParseError. Every decoded field
// therefore encodes back to exactly the bytes it was read from.
//
// For example the request to turn on device 1 is:
//
//	8:tdTurnOni1s
//
// # Building requests
//
//	msg := wire.NewMessage("tdDim").AddInt(1).AddInt(128)
//	_, err := msg.WriteTo(conn)
//
// # Resumable decoding
//
// Replies and events are decoded from a Buffer, an owned byte arena with a
// read and a write cursor. Bytes arriving from the network are appended with
// Fill or Write, and fields are consumed with TakeInt and TakeString:
//
//	buf := wire.NewBuffer(wire.DefaultBufferSize)
//	if _, err := buf.Fill(conn); err != nil {
//	    return err
//	}
//	code, err := wire.TakeInt(buf)
//
// When a field is only partially buffered the Take functions return
// ErrNeedMoreData and leave the buffer untouched, so the same call can be
// repeated after the next read. A successful Take consumes the field and
// compacts the buffer, keeping any bytes that belong to later fields.
//
// Frames made of several fields are decoded as a unit with Mark, Rewind and
// Commit:
//
//	buf.Mark()
//	tag, err := wire.TakeString(buf)
//	if err == nil {
//	    id, err = wire.TakeInt(buf)
//	}
//	if err != nil {
//	    buf.Rewind() // everything since Mark is unread again
//	    return err
//	}
//	buf.Commit()
//
// # Errors
//
//   - ErrNeedMoreData: incomplete field, retry after more data arrives
//   - ParseError: the bytes do not form the expected field; the stream is out
//     of sync and must be resynchronized by the caller
package wire
