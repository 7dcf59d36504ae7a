package keg

// Basic denotes a basic keg monitor
type Basic interface {

	// ConnectionStatus returns the current status of the bluetooth adapter
	ConnectionStatus() ConnectionStatus

	// SetStateChangeHandler defines a handler function that is called upon state change
	SetStateChangeHandler(fn func(status ConnectionStatus))

	// SetStateChangeChannel defines a channel that receives state changes
	SetStateChangeChannel(ch chan ConnectionStatus)

	// SetDataHandler defines a handler function that is called upon retrieval of data
	SetDataHandler(fn func(device Device))

	// SetDataChannel defines a channel that receives all decoded device observations
	SetDataChannel(ch chan Device)

	// Close stops scanning and releases the device
	Close() error
}

// Registry denotes access to the last known state of all observed devices
type Registry interface {

	// Device returns the last known state of a device / port (see Device.Key())
	Device(key string) (Device, bool)

	// DevicesByID returns the last known state of all ports of a device
	DevicesByID(id string) Devices

	// Devices returns the last known state of all observed devices / ports
	Devices() Devices

	// KnownDevices returns the keys of all observed devices / ports
	KnownDevices() []string
}

// EventSource denotes pour / keg replacement detection functionality
type EventSource interface {

	// SetEventHandler defines a handler function that is called upon a pour or new keg
	SetEventHandler(fn func(ev Event))

	// SetEventChannel defines a channel that receives pours and new kegs
	SetEventChannel(ch chan Event)

	// Tracker provides access to the per-device baseline store
	Tracker() *Tracker
}

// Monitor denotes the "default" keg monitor containing all functionality
type Monitor interface {
	Basic
	Registry
	EventSource
}
