package telldus

import (
	"errors"
	"fmt"
	"sync"

	"github.com/pior/telldus/wire"
)

// DecodeFunc decodes the fields that follow an event tag. It returns
// wire.ErrNeedMoreData when the frame is incomplete.
type DecodeFunc func(b *wire.Buffer) (Event, error)

// Registry maps event tags to decoders.
type Registry struct {
	mu       sync.RWMutex
	decoders map[string]DecodeFunc
}

// NewRegistry returns an empty registry. See DefaultRegistry for one that
// knows the daemon's events.
func NewRegistry() *Registry {
	return &Registry{decoders: make(map[string]DecodeFunc)}
}

// DefaultRegistry returns a registry with decoders for every event the
// daemon emits.
func DefaultRegistry() *Registry {
	r := NewRegistry()
	r.Register(TagDeviceEvent, decodeDeviceEvent)
	r.Register(TagDeviceChangeEvent, decodeDeviceChangeEvent)
	r.Register(TagRawDeviceEvent, decodeRawDeviceEvent)
	r.Register(TagSensorEvent, decodeSensorEvent)
	r.Register(TagControllerEvent, decodeControllerEvent)
	return r
}

// Register sets the decoder for tag, replacing any previous one. The Event
// type is closed, so decode returns one of the five event types and the bus
// delivers it like the daemon's own event of that type.
func (r *Registry) Register(tag string, decode DecodeFunc) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.decoders[tag] = decode
}

// Tags returns the number of registered tags.
func (r *Registry) Tags() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.decoders)
}

// Decode decodes one frame: a string tag followed by the tag's fields.
//
// Bytes are consumed field by field, so a call that fails part way leaves the
// buffer in between. Callers that must retry after wire.ErrNeedMoreData
// bracket the call with Buffer.Mark and Buffer.Rewind.
//
// Any other error is a *DesyncError. It wraps ErrUnknownKind when the tag has
// no decoder.
func (r *Registry) Decode(b *wire.Buffer) (Event, error) {
	if b.Len() == 0 {
		return nil, wire.ErrNeedMoreData
	}
	if wire.PeekKind(b) != wire.KindString {
		return nil, &DesyncError{Err: &wire.ParseError{
			Message: fmt.Sprintf("expected event tag, got %q", b.Unread()[0]),
		}}
	}

	tag, err := wire.TakeString(b)
	if err != nil {
		if errors.Is(err, wire.ErrNeedMoreData) {
			return nil, err
		}
		return nil, &DesyncError{Err: err}
	}

	r.mu.RLock()
	decode, ok := r.decoders[tag]
	r.mu.RUnlock()
	if !ok {
		return nil, &DesyncError{Tag: tag, Err: ErrUnknownKind}
	}

	ev, err := decode(b)
	if err != nil {
		if errors.Is(err, wire.ErrNeedMoreData) {
			return nil, err
		}
		return nil, &DesyncError{Tag: tag, Err: err}
	}
	return ev, nil
}

// fieldReader takes successive fields and keeps the first error, so that a
// decoder reads like its schema and checks once at the end.
type fieldReader struct {
	b   *wire.Buffer
	err error
}

func (f *fieldReader) takeInt() int {
	if f.err != nil {
		return 0
	}
	v, err := wire.TakeInt(f.b)
	f.err = err
	return v
}

func (f *fieldReader) takeString() string {
	if f.err != nil {
		return ""
	}
	s, err := wire.TakeString(f.b)
	f.err = err
	return s
}

func decodeDeviceEvent(b *wire.Buffer) (Event, error) {
	f := fieldReader{b: b}
	ev := DeviceEvent{
		DeviceID: f.takeInt(),
		Method:   Method(f.takeInt()),
		Value:    f.takeString(),
	}
	if f.err != nil {
		return nil, f.err
	}
	return ev, nil
}

func decodeDeviceChangeEvent(b *wire.Buffer) (Event, error) {
	f := fieldReader{b: b}
	ev := DeviceChangeEvent{
		DeviceID:    f.takeInt(),
		ChangeEvent: ChangeEvent(f.takeInt()),
		ChangeType:  ChangeType(f.takeInt()),
	}
	if f.err != nil {
		return nil, f.err
	}
	return ev, nil
}

func decodeRawDeviceEvent(b *wire.Buffer) (Event, error) {
	f := fieldReader{b: b}
	ev := RawDeviceEvent{
		Data:         f.takeString(),
		ControllerID: f.takeInt(),
	}
	if f.err != nil {
		return nil, f.err
	}
	return ev, nil
}

func decodeSensorEvent(b *wire.Buffer) (Event, error) {
	f := fieldReader{b: b}
	var ev SensorEvent
	ev.Sensor.Protocol = f.takeString()
	ev.Sensor.Model = f.takeString()
	ev.Sensor.ID = f.takeInt()
	ev.Value.DataType = SensorValueType(f.takeInt())
	ev.Value.Value = f.takeString()
	ev.Value.Timestamp = unixTime(f.takeInt())
	if f.err != nil {
		return nil, f.err
	}
	ev.Sensor.DataTypes = ev.Value.DataType
	return ev, nil
}

func decodeControllerEvent(b *wire.Buffer) (Event, error) {
	f := fieldReader{b: b}
	ev := ControllerEvent{
		ControllerID: f.takeInt(),
		ChangeEvent:  ChangeEvent(f.takeInt()),
		ChangeType:   ChangeType(f.takeInt()),
		NewValue:     f.takeString(),
	}
	if f.err != nil {
		return nil, f.err
	}
	return ev, nil
}
