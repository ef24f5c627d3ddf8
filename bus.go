package telldus

import (
	"fmt"
	"reflect"
	"slices"
	"sync"
	"sync/atomic"

	"github.com/rs/zerolog"
)

// DeviceEventHandler receives DeviceEvent notifications.
type DeviceEventHandler interface {
	HandleDeviceEvent(DeviceEvent)
}

// DeviceChangeEventHandler receives DeviceChangeEvent notifications.
type DeviceChangeEventHandler interface {
	HandleDeviceChangeEvent(DeviceChangeEvent)
}

// RawDeviceEventHandler receives RawDeviceEvent notifications.
type RawDeviceEventHandler interface {
	HandleRawDeviceEvent(RawDeviceEvent)
}

// SensorEventHandler receives SensorEvent notifications.
type SensorEventHandler interface {
	HandleSensorEvent(SensorEvent)
}

// ControllerEventHandler receives ControllerEvent notifications.
type ControllerEventHandler interface {
	HandleControllerEvent(ControllerEvent)
}

// KindSelector narrows the kinds a subscriber is registered for. Without it a
// subscriber receives every kind whose handler interface it implements.
type KindSelector interface {
	SupportedKinds() []Kind
}

// Bus delivers events to subscribers.
//
// Delivery is synchronous, on the goroutine calling Dispatch (the event
// channel's reader), in registration order. Handlers should return quickly;
// a slow handler delays every later event. Handlers may call Subscribe and
// Unsubscribe; the change applies from the next Dispatch.
type Bus struct {
	logger zerolog.Logger

	mu   sync.Mutex // serializes writers
	subs atomic.Pointer[map[Kind][]any]
}

// NewBus returns a bus without subscribers.
func NewBus(logger zerolog.Logger) *Bus {
	b := &Bus{logger: logger}
	empty := map[Kind][]any{}
	b.subs.Store(&empty)
	return b
}

// Subscribe registers sub under every kind it supports. The supported kinds
// are the handler interfaces sub implements (DeviceEventHandler, ...),
// restricted to SupportedKinds() when sub implements KindSelector.
//
// sub must be comparable (typically a pointer) so that Unsubscribe can find
// it. Comparability is checked on the value, so a struct holding a slice in
// an interface field is rejected too. Subscribing the same value twice delivers every event to it twice.
func (b *Bus) Subscribe(sub any) error {
	if sub == nil {
		return ErrNoHandler
	}
	if !reflect.ValueOf(sub).Comparable() {
		return fmt.Errorf("%w: %T", ErrNotComparable, sub)
	}

	kinds := supportedKinds(sub)
	if len(kinds) == 0 {
		return fmt.Errorf("%w: %T", ErrNoHandler, sub)
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	current := *b.subs.Load()
	next := make(map[Kind][]any, len(current)+len(kinds))
	for k, list := range current {
		next[k] = list
	}
	for _, k := range kinds {
		next[k] = append(slices.Clip(next[k]), sub)
	}
	b.subs.Store(&next)

	b.logger.Debug().Str("subscriber", fmt.Sprintf("%T", sub)).Int("kinds", len(kinds)).Msg("subscribed")
	return nil
}

// Unsubscribe removes every registration of sub. It reports whether sub was
// registered.
func (b *Bus) Unsubscribe(sub any) bool {
	if sub == nil || !reflect.ValueOf(sub).Comparable() {
		return false
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	current := *b.subs.Load()
	next := make(map[Kind][]any, len(current))
	found := false
	for k, list := range current {
		kept := make([]any, 0, len(list))
		for _, s := range list {
			if s == sub {
				found = true
				continue
			}
			kept = append(kept, s)
		}
		if len(kept) > 0 {
			next[k] = kept
		}
	}
	if found {
		b.subs.Store(&next)
	}
	return found
}

// Subscribers returns the number of registrations for kind.
func (b *Bus) Subscribers(kind Kind) int {
	return len((*b.subs.Load())[kind])
}

// Dispatch delivers ev to the subscribers of its kind. A handler that panics
// is logged and skipped.
func (b *Bus) Dispatch(ev Event) {
	if ev == nil {
		return
	}
	for _, sub := range (*b.subs.Load())[ev.Kind()] {
		b.deliver(sub, ev)
	}
}

func (b *Bus) deliver(sub any, ev Event) {
	defer func() {
		if r := recover(); r != nil {
			b.logger.Error().
				Str("kind", ev.Kind().String()).
				Str("subscriber", fmt.Sprintf("%T", sub)).
				Interface("panic", r).
				Msg("event handler panicked")
		}
	}()

	switch e := ev.(type) {
	case DeviceEvent:
		sub.(DeviceEventHandler).HandleDeviceEvent(e)
	case DeviceChangeEvent:
		sub.(DeviceChangeEventHandler).HandleDeviceChangeEvent(e)
	case RawDeviceEvent:
		sub.(RawDeviceEventHandler).HandleRawDeviceEvent(e)
	case SensorEvent:
		sub.(SensorEventHandler).HandleSensorEvent(e)
	case ControllerEvent:
		sub.(ControllerEventHandler).HandleControllerEvent(e)
	default:
		b.logger.Warn().
			Str("kind", ev.Kind().String()).
			Str("type", fmt.Sprintf("%T", ev)).
			Msg("event type has no handler interface, dropped")
	}
}

// supportedKinds returns the kinds sub can handle, in Kind order.
func supportedKinds(sub any) []Kind {
	var kinds []Kind
	for _, k := range AllKinds {
		if handles(sub, k) {
			kinds = append(kinds, k)
		}
	}

	sel, ok := sub.(KindSelector)
	if !ok {
		return kinds
	}
	wanted := sel.SupportedKinds()
	return slices.DeleteFunc(kinds, func(k Kind) bool {
		return !slices.Contains(wanted, k)
	})
}

func handles(sub any, k Kind) bool {
	var ok bool
	switch k {
	case KindDevice:
		_, ok = sub.(DeviceEventHandler)
	case KindDeviceChange:
		_, ok = sub.(DeviceChangeEventHandler)
	case KindRawDevice:
		_, ok = sub.(RawDeviceEventHandler)
	case KindSensor:
		_, ok = sub.(SensorEventHandler)
	case KindController:
		_, ok = sub.(ControllerEventHandler)
	}
	return ok
}

// HandlerFuncs adapts plain functions to the handler interfaces. Only the
// kinds with a non-nil function are subscribed. Subscribe a pointer:
//
//	bus.Subscribe(&telldus.HandlerFuncs{
//		Device: func(ev telldus.DeviceEvent) { ... },
//	})
type HandlerFuncs struct {
	Device       func(DeviceEvent)
	DeviceChange func(DeviceChangeEvent)
	RawDevice    func(RawDeviceEvent)
	Sensor       func(SensorEvent)
	Controller   func(ControllerEvent)
}

func (h *HandlerFuncs) HandleDeviceEvent(ev DeviceEvent)             { h.Device(ev) }
func (h *HandlerFuncs) HandleDeviceChangeEvent(ev DeviceChangeEvent) { h.DeviceChange(ev) }
func (h *HandlerFuncs) HandleRawDeviceEvent(ev RawDeviceEvent)       { h.RawDevice(ev) }
func (h *HandlerFuncs) HandleSensorEvent(ev SensorEvent)             { h.Sensor(ev) }
func (h *HandlerFuncs) HandleControllerEvent(ev ControllerEvent)     { h.Controller(ev) }

// SupportedKinds implements KindSelector.
func (h *HandlerFuncs) SupportedKinds() []Kind {
	var kinds []Kind
	if h.Device != nil {
		kinds = append(kinds, KindDevice)
	}
	if h.DeviceChange != nil {
		kinds = append(kinds, KindDeviceChange)
	}
	if h.RawDevice != nil {
		kinds = append(kinds, KindRawDevice)
	}
	if h.Sensor != nil {
		kinds = append(kinds, KindSensor)
	}
	if h.Controller != nil {
		kinds = append(kinds, KindController)
	}
	return kinds
}

// Func is a handler for every kind of event. Subscribe a pointer to it.
type Func func(Event)

func (f *Func) HandleDeviceEvent(ev DeviceEvent)             { (*f)(ev) }
func (f *Func) HandleDeviceChangeEvent(ev DeviceChangeEvent) { (*f)(ev) }
func (f *Func) HandleRawDeviceEvent(ev RawDeviceEvent)       { (*f)(ev) }
func (f *Func) HandleSensorEvent(ev SensorEvent)             { (*f)(ev) }
func (f *Func) HandleControllerEvent(ev ControllerEvent)     { (*f)(ev) }
