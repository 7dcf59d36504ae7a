package kegtron

import (
	"github.com/fako1024/btkeg/pkg/keg"
	"github.com/fako1024/gatt"
)

// WithDeviceID restricts the monitor to a single device ID (case-insensitive)
func WithDeviceID(deviceID string) func(*Kegtron) {
	return func(k *Kegtron) {
		k.deviceID = deviceID
	}
}

// WithDevice sets the Bluetooth device
func WithDevice(btDevice gatt.Device) func(*Kegtron) {
	return func(k *Kegtron) {
		k.btDevice = btDevice
	}
}

// WithLogger sets a logger
func WithLogger(logger keg.Logger) func(*Kegtron) {
	return func(k *Kegtron) {
		k.logger = logger
	}
}

// WithClassifier sets the classifier used to detect pours and new kegs
func WithClassifier(classifier keg.Classifier) func(*Kegtron) {
	return func(k *Kegtron) {
		k.classifier = classifier
	}
}
