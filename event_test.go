package telldus

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKind(t *testing.T) {
	for _, k := range AllKinds {
		assert.NotEmpty(t, k.Tag(), k.String())
		assert.NotContains(t, k.String(), "Kind(")
	}
	assert.Equal(t, "Kind(42)", Kind(42).String())
	assert.Equal(t, "", Kind(42).Tag())
	assert.Equal(t, TagSensorEvent, KindSensor.Tag())
}

func TestEvent_Kinds(t *testing.T) {
	tests := []struct {
		ev   Event
		kind Kind
	}{
		{DeviceEvent{}, KindDevice},
		{DeviceChangeEvent{}, KindDeviceChange},
		{RawDeviceEvent{}, KindRawDevice},
		{SensorEvent{}, KindSensor},
		{ControllerEvent{}, KindController},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.kind, tt.ev.Kind())
	}
}

func TestRawDeviceEvent_Params(t *testing.T) {
	ev := RawDeviceEvent{Data: "class:command;protocol:arctech;model:selflearning;house:1234;unit:2;group:0;method:turnon;"}
	params := ev.Params()

	assert.Equal(t, "command", params["class"])
	assert.Equal(t, "arctech", params["protocol"])
	assert.Equal(t, "1234", params["house"])
	assert.Equal(t, "turnon", params["method"])
	assert.Len(t, params, 7)

	assert.Empty(t, RawDeviceEvent{Data: "garbage;:x;"}.Params())
}

func TestSensorValue_Direction(t *testing.T) {
	tests := []struct {
		value string
		want  string
		ok    bool
	}{
		{"0", "N", true},
		{"4", "E", true},
		{"9", "SSW", true},
		{"15", "NNW", true},
		{"16", "", false},
		{"-1", "", false},
		{"north", "", false},
	}
	for _, tt := range tests {
		got, ok := SensorValue{DataType: SensorWindDirection, Value: tt.value}.Direction()
		assert.Equal(t, tt.ok, ok, tt.value)
		assert.Equal(t, tt.want, got, tt.value)
	}

	_, ok := SensorValue{DataType: SensorTemperature, Value: "4"}.Direction()
	assert.False(t, ok)
}

func TestSensorValue_Float(t *testing.T) {
	f, err := SensorValue{DataType: SensorTemperature, Value: "-3.5"}.Float()
	require.NoError(t, err)
	assert.InDelta(t, -3.5, f, 1e-9)

	_, err = SensorValue{Value: "NNE"}.Float()
	require.Error(t, err)
}

func TestEvent_String(t *testing.T) {
	ts := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)

	assert.Equal(t, `device 3 dim "128"`, DeviceEvent{DeviceID: 3, Method: MethodDim, Value: "128"}.String())
	assert.Equal(t, "device 3 changed name", DeviceChangeEvent{DeviceID: 3, ChangeEvent: ChangeChanged, ChangeType: ChangeName}.String())
	assert.Equal(t, "temperature=21.5°C", SensorValue{DataType: SensorTemperature, Value: "21.5", Timestamp: ts}.String())
	assert.Equal(t, "winddirection=SW", SensorValue{DataType: SensorWindDirection, Value: "10"}.String())
	assert.Equal(t, "fineoffset/temperature/135", Sensor{Protocol: "fineoffset", Model: "temperature", ID: 135}.String())
}
