package kegtron

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/fako1024/btkeg/pkg/keg"
	"github.com/fako1024/gatt"
)

// Kegtron denotes a passive monitor for Kegtron devices, decoding their broadcast
// advertisements without ever connecting to them
type Kegtron struct {
	*keg.Dispatcher

	deviceID   string
	classifier keg.Classifier

	btDevice gatt.Device
	doneChan chan struct{}
	doneOnce sync.Once

	logger keg.Logger
}

// New instantiates a new Kegtron monitor, executing functional options, if any
func New(options ...func(*Kegtron)) (*Kegtron, error) {

	k := newKegtron(options...)

	// Initialize a new GATT device (if not provided as option)
	if k.btDevice == nil {
		btDevice, err := gatt.NewDevice(defaultBTClientOptions...)
		if err != nil {
			return nil, err
		}
		k.btDevice = btDevice
	}

	// Release the device if it cannot be initialized, the caller never gets hold of it
	if err := k.subscribe(); err != nil {
		_ = k.Close()
		return nil, err
	}

	return k, nil
}

// ScanDevices scans for Kegtron devices for the given duration (or until the context is
// cancelled) and returns all devices / ports observed in the meantime
func ScanDevices(ctx context.Context, timeout time.Duration, options ...func(*Kegtron)) (devices keg.Devices, err error) {

	k, err := New(options...)
	if err != nil {
		return nil, err
	}
	defer func() {
		if cerr := k.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}()

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case <-ctx.Done():
	case <-timer.C:
	}

	return k.Devices(), nil
}

// ScanDevice scans for a specific Kegtron device (by ID, case-insensitive) and returns all of
// its ports observed during the scan. An empty result denotes that the device was not found
func ScanDevice(ctx context.Context, id string, timeout time.Duration, options ...func(*Kegtron)) (keg.Devices, error) {
	return ScanDevices(ctx, timeout, append(options, WithDeviceID(id))...)
}

// Close stops scanning and releases the bluetooth device
func (k *Kegtron) Close() error {
	k.doneOnce.Do(func() {
		close(k.doneChan)
	})

	_ = k.btDevice.StopScanning()
	k.SetStatus(keg.StateStopped, nil)

	return k.btDevice.RemoveAllServices()
}

////////////////////////////////////////////////////////////////////////////////

func newKegtron(options ...func(*Kegtron)) *Kegtron {

	// Initialize a new instance of a Kegtron monitor
	k := &Kegtron{
		classifier: keg.NewClassifier(),
		doneChan:   make(chan struct{}),
		logger:     &keg.NullLogger{},
	}

	// Execute functional options (if any), see options.go for implementation
	for _, option := range options {
		option(k)
	}
	k.Dispatcher = keg.NewDispatcher(k.classifier)

	return k
}

func (k *Kegtron) subscribe() error {

	// Register handlers
	k.btDevice.Handle(
		gatt.AddPeripheralDiscovered(k.onPeriphDiscovered),
	)

	// Initialize the device
	return k.btDevice.Init(k.onStateChanged)
}

func (k *Kegtron) isDone() bool {
	select {
	case <-k.doneChan:
		return true
	default:
		return false
	}
}

////////////////////////////////////////////////////////////////////////////////

func (k *Kegtron) onStateChanged(d gatt.Device, s gatt.State) {
	switch s {
	case gatt.StatePoweredOn:
		k.SetStatus(keg.StateScanning, nil)

		// Duplicates are required: every broadcast carries updated counters
		if err := d.Scan([]gatt.UUID{}, true); err != nil {
			k.logger.Warnf("failed to enable scanning: %s", err)
			k.SetStatus(keg.StateStopped, err)
		}
		return
	case gatt.StatePoweredOff:
		k.SetStatus(keg.StateStopped, nil)
		return
	default:
		if err := d.StopScanning(); err != nil {
			k.logger.Warnf("failed to stop scanning: %s", err)
		}
		k.SetStatus(keg.StateIdle, nil)
	}
}

func (k *Kegtron) onPeriphDiscovered(p gatt.Peripheral, adv *gatt.Advertisement, rssi int) {
	if adv == nil || k.isDone() {
		return
	}

	name := p.Name()
	if name == "" {
		name = adv.LocalName
	}

	k.handleAdvertisement(Advertisement{
		Name:             name,
		Address:          p.ID(),
		RSSI:             rssi,
		ManufacturerData: adv.ManufacturerData,
	}, time.Now())
}

func (k *Kegtron) handleAdvertisement(a Advertisement, seenAt time.Time) {

	device, err := DeviceFromAdvertisement(a, seenAt)
	if err != nil {
		switch {
		case errors.Is(err, ErrNotKegtron):
		case errors.Is(err, ErrNoKegtronData):
			k.logger.Debugf("Kegtron device `%s/%s` has no manufacturer data", a.Name, a.Address)
		default:
			k.logger.Warnf("skipping advertisement of `%s/%s`: %s", a.Name, a.Address, err)
		}
		return
	}

	if !k.thisDevice(device) {
		return
	}

	k.logger.Debugf("received data from device `%s/%s`: %+v", device.Name, device.Address, device.Reading)

	if ev := k.Publish(device); ev.Type != keg.EventNone {
		k.logger.Infof("detected event: %s", ev)
	}
}

func (k *Kegtron) thisDevice(d keg.Device) bool {

	// Check if the device ID has been restricted
	if k.deviceID == "" {
		return true
	}
	return strings.EqualFold(d.ID, k.deviceID)
}
