package telldus

import (
	"context"
	"fmt"

	"github.com/pior/telldus/wire"
)

// Caller performs one request/response exchange with the daemon.
// *CommandChannel and *Client satisfy it.
type Caller interface {
	Call(ctx context.Context, req *wire.Message) (*wire.Buffer, error)
}

// Commands provides the daemon's remote functions as typed methods.
// This struct can be used independently with any Caller, or embedded in
// Client.
//
// Functions that return a status report failures as an ErrorCode error.
// Arguments are passed through unchecked; the daemon validates them.
type Commands struct {
	caller Caller
}

// NewCommands creates a new Commands instance on top of caller.
func NewCommands(caller Caller) *Commands {
	return &Commands{
		caller: caller,
	}
}

// Device describes a configured device, as listed by Devices.
type Device struct {
	ID       int
	Name     string
	Type     DeviceType
	Protocol string
	Model    string
	Methods  Method
}

// Controller describes a controller, as listed by Controllers.
type Controller struct {
	ID        int
	Type      ControllerType
	Name      string
	Available bool
}

// TurnOn turns a device on.
func (c *Commands) TurnOn(ctx context.Context, deviceID int) error {
	return c.callStatus(ctx, wire.NewMessage(FnTurnOn, wire.Int(deviceID)))
}

// TurnOff turns a device off.
func (c *Commands) TurnOff(ctx context.Context, deviceID int) error {
	return c.callStatus(ctx, wire.NewMessage(FnTurnOff, wire.Int(deviceID)))
}

// Bell sends the bell command to a device.
func (c *Commands) Bell(ctx context.Context, deviceID int) error {
	return c.callStatus(ctx, wire.NewMessage(FnBell, wire.Int(deviceID)))
}

// Dim dims a device to level (0-255).
func (c *Commands) Dim(ctx context.Context, deviceID int, level int) error {
	return c.callStatus(ctx, wire.NewMessage(FnDim, wire.Int(deviceID), wire.Int(level)))
}

// Execute executes a scene.
func (c *Commands) Execute(ctx context.Context, deviceID int) error {
	return c.callStatus(ctx, wire.NewMessage(FnExecute, wire.Int(deviceID)))
}

func (c *Commands) Up(ctx context.Context, deviceID int) error {
	return c.callStatus(ctx, wire.NewMessage(FnUp, wire.Int(deviceID)))
}

func (c *Commands) Down(ctx context.Context, deviceID int) error {
	return c.callStatus(ctx, wire.NewMessage(FnDown, wire.Int(deviceID)))
}

// Stop sends the stop command to a device (blinds, awnings).
func (c *Commands) Stop(ctx context.Context, deviceID int) error {
	return c.callStatus(ctx, wire.NewMessage(FnStop, wire.Int(deviceID)))
}

// Learn sends the learn command to self-learning devices.
func (c *Commands) Learn(ctx context.Context, deviceID int) error {
	return c.callStatus(ctx, wire.NewMessage(FnLearn, wire.Int(deviceID)))
}

// LastSentCommand returns the last method sent to a device, remapped to the
// methods the caller supports.
func (c *Commands) LastSentCommand(ctx context.Context, deviceID int, supported Method) (Method, error) {
	v, err := c.callInt(ctx, wire.NewMessage(FnLastSentCommand, wire.Int(deviceID), wire.Int(int(supported))))
	return Method(v), err
}

// LastSentValue returns the value of the last command, the dim level when it
// was MethodDim.
func (c *Commands) LastSentValue(ctx context.Context, deviceID int) (string, error) {
	return c.callString(ctx, wire.NewMessage(FnLastSentValue, wire.Int(deviceID)))
}

// NumberOfDevices returns the number of configured devices.
func (c *Commands) NumberOfDevices(ctx context.Context) (int, error) {
	return c.callInt(ctx, wire.NewMessage(FnGetNumberOfDevices))
}

// DeviceID returns the ID of the device at index, in 0..NumberOfDevices-1.
func (c *Commands) DeviceID(ctx context.Context, index int) (int, error) {
	return c.callInt(ctx, wire.NewMessage(FnGetDeviceID, wire.Int(index)))
}

func (c *Commands) DeviceType(ctx context.Context, deviceID int) (DeviceType, error) {
	v, err := c.callInt(ctx, wire.NewMessage(FnGetDeviceType, wire.Int(deviceID)))
	return DeviceType(v), err
}

func (c *Commands) Name(ctx context.Context, deviceID int) (string, error) {
	return c.callString(ctx, wire.NewMessage(FnGetName, wire.Int(deviceID)))
}

func (c *Commands) SetName(ctx context.Context, deviceID int, name string) error {
	return c.callStatus(ctx, wire.NewMessage(FnSetName, wire.Int(deviceID), wire.String(name)))
}

func (c *Commands) Protocol(ctx context.Context, deviceID int) (string, error) {
	return c.callString(ctx, wire.NewMessage(FnGetProtocol, wire.Int(deviceID)))
}

// SetProtocol changes the protocol of a device. Its parameters must be set
// again afterwards.
func (c *Commands) SetProtocol(ctx context.Context, deviceID int, protocol string) error {
	return c.callStatus(ctx, wire.NewMessage(FnSetProtocol, wire.Int(deviceID), wire.String(protocol)))
}

func (c *Commands) Model(ctx context.Context, deviceID int) (string, error) {
	return c.callString(ctx, wire.NewMessage(FnGetModel, wire.Int(deviceID)))
}

func (c *Commands) SetModel(ctx context.Context, deviceID int, model string) error {
	return c.callStatus(ctx, wire.NewMessage(FnSetModel, wire.Int(deviceID), wire.String(model)))
}

// DeviceParameter returns a protocol parameter of a device, or defaultValue
// when it was never set.
func (c *Commands) DeviceParameter(ctx context.Context, deviceID int, name, defaultValue string) (string, error) {
	return c.callString(ctx, wire.NewMessage(FnGetDeviceParameter,
		wire.Int(deviceID), wire.String(name), wire.String(defaultValue)))
}

func (c *Commands) SetDeviceParameter(ctx context.Context, deviceID int, name, value string) error {
	return c.callStatus(ctx, wire.NewMessage(FnSetDeviceParameter,
		wire.Int(deviceID), wire.String(name), wire.String(value)))
}

// AddDevice creates a device and returns its ID.
func (c *Commands) AddDevice(ctx context.Context) (int, error) {
	return c.callInt(ctx, wire.NewMessage(FnAddDevice))
}

func (c *Commands) RemoveDevice(ctx context.Context, deviceID int) error {
	return c.callStatus(ctx, wire.NewMessage(FnRemoveDevice, wire.Int(deviceID)))
}

// Methods returns the methods a device supports, restricted and remapped to
// the methods the caller supports. Pass AllMethods to get everything.
func (c *Commands) Methods(ctx context.Context, deviceID int, supported Method) (Method, error) {
	v, err := c.callInt(ctx, wire.NewMessage(FnMethods, wire.Int(deviceID), wire.Int(int(supported))))
	return Method(v), err
}

// SendRawCommand sends a command in the controller's native format.
func (c *Commands) SendRawCommand(ctx context.Context, command string, reserved int) error {
	return c.callStatus(ctx, wire.NewMessage(FnSendRawCommand, wire.String(command), wire.Int(reserved)))
}

// ConnectController tells the daemon a USB controller was plugged in.
func (c *Commands) ConnectController(ctx context.Context, vendorID, productID int, serial string) error {
	_, err := c.callString(ctx, wire.NewMessage(FnConnectController,
		wire.Int(vendorID), wire.Int(productID), wire.String(serial)))
	return err
}

// DisconnectController tells the daemon a USB controller was unplugged.
func (c *Commands) DisconnectController(ctx context.Context, vendorID, productID int, serial string) error {
	_, err := c.callString(ctx, wire.NewMessage(FnDisconnectController,
		wire.Int(vendorID), wire.Int(productID), wire.String(serial)))
	return err
}

// Sensors lists every sensor the daemon has heard from.
func (c *Commands) Sensors(ctx context.Context) ([]Sensor, error) {
	list, err := c.list(ctx, wire.NewMessage(FnSensor))
	if err != nil || list == nil {
		return nil, err
	}

	sensors := make([]Sensor, 0, list.count)
	for range list.count {
		s := Sensor{
			Protocol:  list.takeString(),
			Model:     list.takeString(),
			ID:        list.takeInt(),
			DataTypes: SensorValueType(list.takeInt()),
		}
		if list.err != nil {
			return nil, list.malformed(FnSensor)
		}
		sensors = append(sensors, s)
	}
	return sensors, nil
}

// SensorValue returns the last reading of one value type of a sensor.
// ErrMethodNotSupported is returned when the sensor does not report it.
func (c *Commands) SensorValue(ctx context.Context, protocol, model string, sensorID int, dataType SensorValueType) (SensorValue, error) {
	req := wire.NewMessage(FnSensorValue,
		wire.String(protocol), wire.String(model), wire.Int(sensorID), wire.Int(int(dataType)))
	reply, err := c.callString(ctx, req)
	if err != nil {
		return SensorValue{}, err
	}
	if reply == "" {
		return SensorValue{}, ErrMethodNotSupported
	}

	f := fieldReader{b: wire.NewBufferString(reply)}
	v := SensorValue{
		DataType:  dataType,
		Value:     f.takeString(),
		Timestamp: unixTime(f.takeInt()),
	}
	if f.err != nil {
		return SensorValue{}, fmt.Errorf("%w: %s: %w", ErrMalformedReply, FnSensorValue, f.err)
	}
	return v, nil
}

// Controllers lists every controller known to the daemon.
func (c *Commands) Controllers(ctx context.Context) ([]Controller, error) {
	list, err := c.list(ctx, wire.NewMessage(FnController))
	if err != nil || list == nil {
		return nil, err
	}

	controllers := make([]Controller, 0, list.count)
	for range list.count {
		ctrl := Controller{
			ID:        list.takeInt(),
			Type:      ControllerType(list.takeInt()),
			Name:      list.takeString(),
			Available: list.takeInt() == 1,
		}
		if list.err != nil {
			return nil, list.malformed(FnController)
		}
		controllers = append(controllers, ctrl)
	}
	return controllers, nil
}

// ControllerValue returns a controller parameter such as "serial" or
// "firmware".
func (c *Commands) ControllerValue(ctx context.Context, controllerID int, name string) (string, error) {
	return c.callString(ctx, wire.NewMessage(FnControllerValue, wire.Int(controllerID), wire.String(name)))
}

// SetControllerValue sets a controller parameter. Only "name" is writable.
func (c *Commands) SetControllerValue(ctx context.Context, controllerID int, name, value string) error {
	return c.callStatus(ctx, wire.NewMessage(FnSetControllerValue,
		wire.Int(controllerID), wire.String(name), wire.String(value)))
}

// RemoveController forgets a disconnected controller. ErrPermissionDenied is
// returned while it is still connected.
func (c *Commands) RemoveController(ctx context.Context, controllerID int) error {
	return c.callStatus(ctx, wire.NewMessage(FnRemoveController, wire.Int(controllerID)))
}

// Devices enumerates every configured device with its attributes. It makes
// several calls per device; the listing may be inconsistent if devices are
// added or removed meanwhile.
func (c *Commands) Devices(ctx context.Context) ([]Device, error) {
	n, err := c.NumberOfDevices(ctx)
	if err != nil {
		return nil, err
	}

	devices := make([]Device, 0, n)
	for i := range n {
		id, err := c.DeviceID(ctx, i)
		if err != nil {
			return nil, fmt.Errorf("device at index %d: %w", i, err)
		}

		d := Device{ID: id}
		if d.Name, err = c.Name(ctx, id); err != nil {
			return nil, err
		}
		if d.Type, err = c.DeviceType(ctx, id); err != nil {
			return nil, err
		}
		if d.Protocol, err = c.Protocol(ctx, id); err != nil {
			return nil, err
		}
		if d.Model, err = c.Model(ctx, id); err != nil {
			return nil, err
		}
		if d.Methods, err = c.Methods(ctx, id, AllMethods); err != nil {
			return nil, err
		}
		devices = append(devices, d)
	}
	return devices, nil
}

// callInt calls a function returning an integer. Negative values are error
// codes.
func (c *Commands) callInt(ctx context.Context, req *wire.Message) (int, error) {
	reply, err := c.caller.Call(ctx, req)
	if err != nil {
		return 0, err
	}
	v, err := wire.TakeInt(reply)
	if err != nil {
		return 0, fmt.Errorf("%w: %s: %w", ErrMalformedReply, req.Function(), err)
	}
	if v < 0 {
		return 0, ErrorCode(v)
	}
	return v, nil
}

// callStatus calls a function returning an ErrorCode.
func (c *Commands) callStatus(ctx context.Context, req *wire.Message) error {
	reply, err := c.caller.Call(ctx, req)
	if err != nil {
		return err
	}
	v, err := wire.TakeInt(reply)
	if err != nil {
		return fmt.Errorf("%w: %s: %w", ErrMalformedReply, req.Function(), err)
	}
	return ErrorCode(v).Err()
}

func (c *Commands) callString(ctx context.Context, req *wire.Message) (string, error) {
	reply, err := c.caller.Call(ctx, req)
	if err != nil {
		return "", err
	}
	s, err := wire.TakeString(reply)
	if err != nil {
		return "", fmt.Errorf("%w: %s: %w", ErrMalformedReply, req.Function(), err)
	}
	return s, nil
}

// nestedList is a list reply: a string field holding a nested message that
// starts with the item count.
type nestedList struct {
	fieldReader
	count int
}

func (l *nestedList) malformed(fn string) error {
	return fmt.Errorf("%w: %s: %w", ErrMalformedReply, fn, l.err)
}

// list returns nil, nil when the daemon replies with an empty string.
func (c *Commands) list(ctx context.Context, req *wire.Message) (*nestedList, error) {
	reply, err := c.callString(ctx, req)
	if err != nil || reply == "" {
		return nil, err
	}

	l := &nestedList{fieldReader: fieldReader{b: wire.NewBufferString(reply)}}
	l.count = l.takeInt()
	if l.err == nil && l.count < 0 {
		l.err = fmt.Errorf("negative item count %d", l.count)
	}
	if l.err != nil {
		return nil, l.malformed(req.Function())
	}
	return l, nil
}
