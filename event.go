package telldus

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Kind identifies an event variant.
type Kind uint8

const (
	KindDevice Kind = iota + 1
	KindDeviceChange
	KindRawDevice
	KindSensor
	KindController
)

// AllKinds lists every event kind in declaration order.
var AllKinds = []Kind{KindDevice, KindDeviceChange, KindRawDevice, KindSensor, KindController}

func (k Kind) String() string {
	switch k {
	case KindDevice:
		return "device"
	case KindDeviceChange:
		return "device-change"
	case KindRawDevice:
		return "raw-device"
	case KindSensor:
		return "sensor"
	case KindController:
		return "controller"
	}
	return "Kind(" + strconv.Itoa(int(k)) + ")"
}

// Tag returns the wire tag of the kind, or "" for an unknown kind.
func (k Kind) Tag() string {
	switch k {
	case KindDevice:
		return TagDeviceEvent
	case KindDeviceChange:
		return TagDeviceChangeEvent
	case KindRawDevice:
		return TagRawDeviceEvent
	case KindSensor:
		return TagSensorEvent
	case KindController:
		return TagControllerEvent
	}
	return ""
}

// Event is a notification received on the event endpoint. The set of
// implementations is closed: DeviceEvent, DeviceChangeEvent, RawDeviceEvent,
// SensorEvent and ControllerEvent. Use a type switch to inspect one.
type Event interface {
	Kind() Kind
	isEvent()
}

// DeviceEvent reports that a method was executed on a device.
type DeviceEvent struct {
	DeviceID int
	Method   Method
	Value    string // Dim level for MethodDim, empty otherwise
}

func (DeviceEvent) Kind() Kind { return KindDevice }
func (DeviceEvent) isEvent()   {}

func (e DeviceEvent) String() string {
	return fmt.Sprintf("device %d %s %q", e.DeviceID, e.Method, e.Value)
}

// DeviceChangeEvent reports that a device was added, removed or reconfigured.
type DeviceChangeEvent struct {
	DeviceID    int
	ChangeEvent ChangeEvent
	ChangeType  ChangeType
}

func (DeviceChangeEvent) Kind() Kind { return KindDeviceChange }
func (DeviceChangeEvent) isEvent()   {}

func (e DeviceChangeEvent) String() string {
	return fmt.Sprintf("device %d %s %s", e.DeviceID, e.ChangeEvent, e.ChangeType)
}

// RawDeviceEvent carries a radio message as decoded by the controller, for
// example "class:command;protocol:arctech;model:selflearning;house:1;unit:2;method:turnon;".
type RawDeviceEvent struct {
	Data         string
	ControllerID int
}

func (RawDeviceEvent) Kind() Kind { return KindRawDevice }
func (RawDeviceEvent) isEvent()   {}

// Params splits Data into its key:value pairs. Malformed pairs are skipped.
func (e RawDeviceEvent) Params() map[string]string {
	params := make(map[string]string)
	for _, pair := range strings.Split(e.Data, ";") {
		key, value, ok := strings.Cut(pair, ":")
		if !ok || key == "" {
			continue
		}
		params[key] = value
	}
	return params
}

func (e RawDeviceEvent) String() string {
	return fmt.Sprintf("raw controller=%d %s", e.ControllerID, e.Data)
}

// Sensor identifies a sensor. The protocol, model and ID triplet is unique.
type Sensor struct {
	Protocol string
	Model    string
	ID       int

	// DataTypes is the set of value types the sensor reports. In a sensor
	// event it holds the single type of the reported value.
	DataTypes SensorValueType
}

func (s Sensor) String() string {
	return fmt.Sprintf("%s/%s/%d", s.Protocol, s.Model, s.ID)
}

// SensorValue is one reading of a sensor.
type SensorValue struct {
	DataType  SensorValueType
	Value     string
	Timestamp time.Time
}

var compassPoints = [16]string{
	"N", "NNE", "NE", "ENE", "E", "ESE", "SE", "SSE",
	"S", "SSW", "SW", "WSW", "W", "WNW", "NW", "NNW",
}

// unixTime converts a daemon timestamp, in seconds since the epoch.
func unixTime(sec int) time.Time {
	return time.Unix(int64(sec), 0)
}

// Direction converts a wind direction reading to a compass point. Readings
// are sixteenths of a full turn, 0 being north. ok is false for other value
// types and for readings that are not in 0..15.
func (v SensorValue) Direction() (string, bool) {
	if v.DataType != SensorWindDirection {
		return "", false
	}
	n, err := strconv.Atoi(v.Value)
	if err != nil || n < 0 || n >= len(compassPoints) {
		return "", false
	}
	return compassPoints[n], true
}

// Float parses the reading as a number.
func (v SensorValue) Float() (float64, error) {
	return strconv.ParseFloat(strings.TrimSpace(v.Value), 64)
}

func (v SensorValue) String() string {
	if dir, ok := v.Direction(); ok {
		return fmt.Sprintf("%s=%s", v.DataType, dir)
	}
	return fmt.Sprintf("%s=%s%s", v.DataType, v.Value, v.DataType.Unit())
}

// SensorEvent reports a new sensor reading.
type SensorEvent struct {
	Sensor Sensor
	Value  SensorValue
}

func (SensorEvent) Kind() Kind { return KindSensor }
func (SensorEvent) isEvent()   {}

func (e SensorEvent) String() string {
	return fmt.Sprintf("sensor %s %s at %s", e.Sensor, e.Value, e.Value.Timestamp.Format(time.RFC3339))
}

// ControllerEvent reports a change on a controller.
type ControllerEvent struct {
	ControllerID int
	ChangeEvent  ChangeEvent
	ChangeType   ChangeType
	NewValue     string
}

func (ControllerEvent) Kind() Kind { return KindController }
func (ControllerEvent) isEvent()   {}

func (e ControllerEvent) String() string {
	return fmt.Sprintf("controller %d %s %s %q", e.ControllerID, e.ChangeEvent, e.ChangeType, e.NewValue)
}
