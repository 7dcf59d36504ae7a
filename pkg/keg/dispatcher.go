package keg

import (
	"sync"
)

// Dispatcher provides the handler / channel plumbing and device registry shared by
// all Monitor implementations. It is meant to be embedded, the embedding type only
// needs to provide Close()
type Dispatcher struct {
	mu               sync.RWMutex
	connectionStatus ConnectionStatus

	stateChangeHandler func(status ConnectionStatus)
	stateChangeChan    chan ConnectionStatus

	dataHandler func(device Device)
	dataChan    chan Device

	eventHandler func(ev Event)
	eventChan    chan Event

	tracker *Tracker
}

// NewDispatcher instantiates a new Dispatcher classifying observations using the provided classifier
func NewDispatcher(classifier Classifier) *Dispatcher {
	return &Dispatcher{
		tracker: NewTracker(classifier),
	}
}

// ConnectionStatus returns the current status of the bluetooth adapter
func (d *Dispatcher) ConnectionStatus() ConnectionStatus {
	d.mu.RLock()
	defer d.mu.RUnlock()

	return d.connectionStatus
}

// SetStateChangeHandler defines a handler function that is called upon state change
func (d *Dispatcher) SetStateChangeHandler(fn func(status ConnectionStatus)) {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.stateChangeHandler = fn
}

// SetStateChangeChannel defines a channel that receives state changes
func (d *Dispatcher) SetStateChangeChannel(ch chan ConnectionStatus) {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.stateChangeChan = ch
}

// SetDataHandler defines a handler function that is called upon retrieval of data
func (d *Dispatcher) SetDataHandler(fn func(device Device)) {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.dataHandler = fn
}

// SetDataChannel defines a channel that receives all decoded device observations
func (d *Dispatcher) SetDataChannel(ch chan Device) {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.dataChan = ch
}

// SetEventHandler defines a handler function that is called upon a pour or new keg
func (d *Dispatcher) SetEventHandler(fn func(ev Event)) {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.eventHandler = fn
}

// SetEventChannel defines a channel that receives pours and new kegs
func (d *Dispatcher) SetEventChannel(ch chan Event) {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.eventChan = ch
}

// Tracker provides access to the per-device baseline store
func (d *Dispatcher) Tracker() *Tracker {
	return d.tracker
}

// Device returns the last known state of a device / port (see Device.Key())
func (d *Dispatcher) Device(key string) (Device, bool) {
	return d.tracker.Device(key)
}

// DevicesByID returns the last known state of all ports of a device
func (d *Dispatcher) DevicesByID(id string) Devices {
	return d.tracker.DevicesByID(id)
}

// Devices returns the last known state of all observed devices / ports
func (d *Dispatcher) Devices() Devices {
	return d.tracker.Devices()
}

// KnownDevices returns the keys of all observed devices / ports
func (d *Dispatcher) KnownDevices() []string {
	return d.tracker.KnownDevices()
}

// SetStatus updates the connection status and notifies handler / channel, if any
func (d *Dispatcher) SetStatus(state State, err error) {
	d.mu.Lock()
	d.connectionStatus = ConnectionStatus{
		State: state,
		Error: err,
	}
	status, handler, ch := d.connectionStatus, d.stateChangeHandler, d.stateChangeChan
	d.mu.Unlock()

	// Call handler function, if any
	if handler != nil {
		handler(status)
	}

	// Put state change on channel, if any
	if ch != nil {
		select {
		case ch <- status:
		default:
		}
	}
}

// Publish classifies a device observation against the tracked baseline, stores it
// and notifies data / event handlers and channels, if any. The resulting event is
// returned (EventNone if nothing happened)
func (d *Dispatcher) Publish(device Device) Event {

	ev := d.tracker.Observe(device)

	d.mu.RLock()
	dataHandler, dataChan := d.dataHandler, d.dataChan
	eventHandler, eventChan := d.eventHandler, d.eventChan
	d.mu.RUnlock()

	// Call handler function, if any
	if dataHandler != nil {
		dataHandler(device)
	}

	// Put data point on channel, if any
	if dataChan != nil {
		dataChan <- device
	}

	if ev.Type == EventNone {
		return ev
	}

	if eventHandler != nil {
		eventHandler(ev)
	}
	if eventChan != nil {
		eventChan <- ev
	}

	return ev
}
