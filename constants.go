package telldus

import "time"

// Default endpoint and buffer settings
const (
	DefaultHost             = "127.0.0.1"
	DefaultCommandPort      = 50800
	DefaultEventPort        = 50801
	DefaultReconnectBackoff = time.Second

	// DefaultReplyBufferSize matches telldusd's client communication handler.
	DefaultReplyBufferSize = 2000

	// DefaultEventBufferSize is the initial event buffer; it grows as needed.
	DefaultEventBufferSize = 2000

	// DefaultMaxFrameSize bounds a partially received event frame. Anything
	// larger is treated as a desynchronized stream.
	DefaultMaxFrameSize = 64 * 1024
)

// Remote function names on the command endpoint
const (
	FnTurnOn               = "tdTurnOn"
	FnTurnOff              = "tdTurnOff"
	FnBell                 = "tdBell"
	FnDim                  = "tdDim"
	FnExecute              = "tdExecute"
	FnUp                   = "tdUp"
	FnDown                 = "tdDown"
	FnStop                 = "tdStop"
	FnLearn                = "tdLearn"
	FnLastSentCommand      = "tdLastSentCommand"
	FnLastSentValue        = "tdLastSentValue"
	FnGetNumberOfDevices   = "tdGetNumberOfDevices"
	FnGetDeviceID          = "tdGetDeviceId"
	FnGetDeviceType        = "tdGetDeviceType"
	FnGetName              = "tdGetName"
	FnSetName              = "tdSetName"
	FnGetProtocol          = "tdGetProtocol"
	FnSetProtocol          = "tdSetProtocol"
	FnGetModel             = "tdGetModel"
	FnSetModel             = "tdSetModel"
	FnGetDeviceParameter   = "tdGetDeviceParameter"
	FnSetDeviceParameter   = "tdSetDeviceParameter"
	FnAddDevice            = "tdAddDevice"
	FnRemoveDevice         = "tdRemoveDevice"
	FnMethods              = "tdMethods"
	FnSendRawCommand       = "tdSendRawCommand"
	FnConnectController    = "tdConnectTellStickController"
	FnDisconnectController = "tdDisconnectTellStickController"
	FnSensor               = "tdSensor"
	FnSensorValue          = "tdSensorValue"
	FnController           = "tdController"
	FnControllerValue      = "tdControllerValue"
	FnSetControllerValue   = "tdSetControllerValue"
	FnRemoveController     = "tdRemoveController"
)

// Event tags on the event endpoint
const (
	TagDeviceEvent       = "TDDeviceEvent"
	TagDeviceChangeEvent = "TDDeviceChangeEvent"
	TagRawDeviceEvent    = "TDRawDeviceEvent"
	TagSensorEvent       = "TDSensorEvent"
	TagControllerEvent   = "TDControllerEvent"
)
