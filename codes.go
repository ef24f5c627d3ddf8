package telldus

import (
	"strconv"
	"strings"
)

// The code tables below mirror telldus-core's public constants. The client
// treats them as opaque: unknown values are carried through untouched and
// print as Type(n).

// Method is a device method. Values are bit flags so that a set of supported
// methods can be OR'ed into one integer (see Client.Methods).
type Method int

const (
	MethodTurnOn  Method = 1
	MethodTurnOff Method = 2
	MethodBell    Method = 4
	MethodToggle  Method = 8
	MethodDim     Method = 16
	MethodLearn   Method = 32
	MethodExecute Method = 64
	MethodUp      Method = 128
	MethodDown    Method = 256
	MethodStop    Method = 512
)

var methodNames = []struct {
	m    Method
	name string
}{
	{MethodTurnOn, "turnon"},
	{MethodTurnOff, "turnoff"},
	{MethodBell, "bell"},
	{MethodToggle, "toggle"},
	{MethodDim, "dim"},
	{MethodLearn, "learn"},
	{MethodExecute, "execute"},
	{MethodUp, "up"},
	{MethodDown, "down"},
	{MethodStop, "stop"},
}

// AllMethods is the set of every method known to the client.
const AllMethods = MethodTurnOn | MethodTurnOff | MethodBell | MethodToggle | MethodDim |
	MethodLearn | MethodExecute | MethodUp | MethodDown | MethodStop

// Has reports whether every flag of other is set in m.
func (m Method) Has(other Method) bool {
	return m&other == other
}

// String returns the method name, or a "|"-joined list for a set of methods.
func (m Method) String() string {
	if m == 0 {
		return "none"
	}
	var parts []string
	rest := m
	for _, mn := range methodNames {
		if m&mn.m != 0 {
			parts = append(parts, mn.name)
			rest &^= mn.m
		}
	}
	if rest != 0 {
		parts = append(parts, "Method("+strconv.Itoa(int(rest))+")")
	}
	return strings.Join(parts, "|")
}

// ParseMethod returns the method with the given name, as printed by String.
func ParseMethod(name string) (Method, bool) {
	name = strings.ToLower(strings.TrimSpace(name))
	for _, mn := range methodNames {
		if mn.name == name {
			return mn.m, true
		}
	}
	return 0, false
}

// SensorValueType is the kind of a sensor reading. Values are bit flags; a
// sensor listing reports the OR of every type the sensor provides.
type SensorValueType int

const (
	SensorTemperature   SensorValueType = 1
	SensorHumidity      SensorValueType = 2
	SensorRainRate      SensorValueType = 4
	SensorRainTotal     SensorValueType = 8
	SensorWindDirection SensorValueType = 16
	SensorWindAverage   SensorValueType = 32
	SensorWindGust      SensorValueType = 64
)

var sensorValueTypes = []struct {
	t    SensorValueType
	name string
	unit string
}{
	{SensorTemperature, "temperature", "°C"},
	{SensorHumidity, "humidity", "%"},
	{SensorRainRate, "rainrate", "mm/h"},
	{SensorRainTotal, "raintotal", "mm"},
	{SensorWindDirection, "winddirection", ""},
	{SensorWindAverage, "windaverage", "m/s"},
	{SensorWindGust, "windgust", "m/s"},
}

// Types splits a set of value types into its individual flags, in table order.
func (t SensorValueType) Types() []SensorValueType {
	var out []SensorValueType
	for _, st := range sensorValueTypes {
		if t&st.t != 0 {
			out = append(out, st.t)
		}
	}
	return out
}

// Unit returns the unit of a single value type, or "".
func (t SensorValueType) Unit() string {
	for _, st := range sensorValueTypes {
		if st.t == t {
			return st.unit
		}
	}
	return ""
}

func (t SensorValueType) String() string {
	for _, st := range sensorValueTypes {
		if st.t == t {
			return st.name
		}
	}
	if types := t.Types(); len(types) > 1 {
		names := make([]string, len(types))
		for i, tt := range types {
			names[i] = tt.String()
		}
		return strings.Join(names, "|")
	}
	return "SensorValueType(" + strconv.Itoa(int(t)) + ")"
}

// ErrorCode is the status returned by most remote functions. ErrorCode
// implements error so that non-zero codes can be returned directly; Success
// is never returned as an error by this package.
type ErrorCode int

const (
	Success                 ErrorCode = 0
	ErrNotFound             ErrorCode = -1
	ErrPermissionDenied     ErrorCode = -2
	ErrDeviceNotFound       ErrorCode = -3
	ErrMethodNotSupported   ErrorCode = -4
	ErrCommunication        ErrorCode = -5
	ErrConnectingService    ErrorCode = -6
	ErrUnknownResponse      ErrorCode = -7
	ErrSyntax               ErrorCode = -8
	ErrBrokenPipe           ErrorCode = -9
	ErrCommunicatingService ErrorCode = -10
	ErrUnknown              ErrorCode = -99
)

var errorCodeMessages = map[ErrorCode]string{
	Success:                 "success",
	ErrNotFound:             "TellStick not found",
	ErrPermissionDenied:     "permission denied",
	ErrDeviceNotFound:       "device not found",
	ErrMethodNotSupported:   "the method you tried to use is not supported by the device",
	ErrCommunication:        "an error occurred while communicating with TellStick",
	ErrConnectingService:    "could not connect to the Telldus service",
	ErrUnknownResponse:      "received an unknown response",
	ErrSyntax:               "input/command could not be parsed or didn't follow input rules",
	ErrBrokenPipe:           "pipe broken during communication",
	ErrCommunicatingService: "timeout waiting for response from the Telldus service",
	ErrUnknown:              "unknown error",
}

func (e ErrorCode) Error() string {
	return "telldus: " + e.String()
}

func (e ErrorCode) String() string {
	if msg, ok := errorCodeMessages[e]; ok {
		return msg
	}
	return "ErrorCode(" + strconv.Itoa(int(e)) + ")"
}

// Err returns nil for Success and e otherwise.
func (e ErrorCode) Err() error {
	if e == Success {
		return nil
	}
	return e
}

// DeviceType distinguishes plain devices from groups and scenes.
type DeviceType int

const (
	DeviceTypeDevice DeviceType = 1
	DeviceTypeGroup  DeviceType = 2
	DeviceTypeScene  DeviceType = 3
)

func (t DeviceType) String() string {
	switch t {
	case DeviceTypeDevice:
		return "device"
	case DeviceTypeGroup:
		return "group"
	case DeviceTypeScene:
		return "scene"
	}
	return "DeviceType(" + strconv.Itoa(int(t)) + ")"
}

// ControllerType is the hardware model of a controller.
type ControllerType int

const (
	ControllerTellStick    ControllerType = 1
	ControllerTellStickDuo ControllerType = 2
	ControllerTellStickNet ControllerType = 3
)

func (t ControllerType) String() string {
	switch t {
	case ControllerTellStick:
		return "TellStick"
	case ControllerTellStickDuo:
		return "TellStick Duo"
	case ControllerTellStickNet:
		return "TellStick Net"
	}
	return "ControllerType(" + strconv.Itoa(int(t)) + ")"
}

// ChangeEvent describes what happened to a device or controller. Zero means
// no change event was reported.
type ChangeEvent int

const (
	ChangeAdded        ChangeEvent = 1
	ChangeChanged      ChangeEvent = 2
	ChangeRemoved      ChangeEvent = 3
	ChangeStateChanged ChangeEvent = 4
)

func (c ChangeEvent) String() string {
	switch c {
	case 0:
		return "none"
	case ChangeAdded:
		return "added"
	case ChangeChanged:
		return "changed"
	case ChangeRemoved:
		return "removed"
	case ChangeStateChanged:
		return "state-changed"
	}
	return "ChangeEvent(" + strconv.Itoa(int(c)) + ")"
}

// ChangeType tells which attribute a ChangeChanged event refers to. Zero
// means not applicable.
type ChangeType int

const (
	ChangeName      ChangeType = 1
	ChangeProtocol  ChangeType = 2
	ChangeModel     ChangeType = 3
	ChangeMethod    ChangeType = 4
	ChangeAvailable ChangeType = 5
	ChangeFirmware  ChangeType = 6
)

func (c ChangeType) String() string {
	switch c {
	case 0:
		return "none"
	case ChangeName:
		return "name"
	case ChangeProtocol:
		return "protocol"
	case ChangeModel:
		return "model"
	case ChangeMethod:
		return "method"
	case ChangeAvailable:
		return "available"
	case ChangeFirmware:
		return "firmware"
	}
	return "ChangeType(" + strconv.Itoa(int(c)) + ")"
}
