package keg

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// Common keg sizes in milliliters
const (
	KegSizeMini          = 5000  // 5 L
	KegSizeCornelius     = 18927 // 5 gal
	KegSizeSixthBarrel   = 19550 // 1/6 bbl
	KegSizeQuarterBarrel = 29337 // 1/4 bbl (pony keg)
	KegSizeSlimQuarter   = 29337 // 1/4 bbl (tall quarter)
	KegSizeHalfBarrel    = 58674 // 1/2 bbl (full size)

	// DefaultLowThreshold denotes the percentage below which a keg is considered low
	DefaultLowThreshold = 15.
)

// PortState denotes the operational state of a dispense port
type PortState uint8

const (

	// PortStateDisabled denotes a disabled port
	PortStateDisabled PortState = iota

	// PortStateEnabled denotes an enabled port
	PortStateEnabled

	// PortStateReserved2 denotes a state value not (yet) assigned by the firmware
	PortStateReserved2

	// PortStateReserved3 denotes a state value not (yet) assigned by the firmware
	PortStateReserved3
)

// IsKnown returns if the port state is one of the assigned (non-reserved) values
func (s PortState) IsKnown() bool {
	return s == PortStateDisabled || s == PortStateEnabled
}

// String returns a string representation of the port state
func (s PortState) String() string {
	switch s {
	case PortStateDisabled:
		return "disabled"
	case PortStateEnabled:
		return "enabled"
	default:
		return fmt.Sprintf("unknown(%d)", uint8(s))
	}
}

// Reading denotes the state of a single keg port as decoded from one broadcast
type Reading struct {
	KegSizeML         uint16
	VolumeStartML     uint16
	VolumeDispensedML uint16

	PortCount uint8
	PortIndex uint8
	PortState PortState

	BeerName string

	// Degraded is set if the beer name was not valid UTF-8 and had to be decoded lossily
	Degraded bool
}

// VolumeRemainingML returns the remaining volume, clamped to zero
func (r Reading) VolumeRemainingML() int {
	return max(0, int(r.VolumeStartML)-int(r.VolumeDispensedML))
}

// PercentRemaining returns the remaining volume relative to the keg size, clamped to [0, 100]
func (r Reading) PercentRemaining() float64 {
	if r.KegSizeML == 0 {
		return 0.
	}

	return min(100., max(0., 100.*float64(r.VolumeRemainingML())/float64(r.KegSizeML)))
}

// PercentDispensed returns the complement of PercentRemaining()
func (r Reading) PercentDispensed() float64 {
	return 100. - r.PercentRemaining()
}

// IsEmpty returns if there is no volume left
func (r Reading) IsEmpty() bool {
	return r.VolumeRemainingML() <= 0
}

// IsLow returns if the remaining percentage is below the provided threshold
func (r Reading) IsLow(thresholdPercent float64) bool {
	return r.PercentRemaining() < thresholdPercent
}

// Device denotes a discovered keg monitor (port) along with its most recent reading
type Device struct {
	ID       string
	Name     string
	Address  string
	RSSI     int
	LastSeen time.Time

	Reading Reading
}

// Key returns the tracking key of the device, separating individual ports
// of multi-port hardware that advertise under the same name
func (d Device) Key() string {
	return DeviceKey(d.ID, d.Reading.PortIndex)
}

// DeviceKey constructs a tracking key from a device ID and a port index
func DeviceKey(id string, portIndex uint8) string {
	return fmt.Sprintf("%s/%d", strings.ToUpper(id), portIndex)
}

// MarshalJSON fulfils the json.Marshaler interface, including derived values
func (d Device) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		ID                string    `json:"device_id"`
		Name              string    `json:"device_name"`
		Address           string    `json:"ble_address"`
		RSSI              int       `json:"rssi"`
		LastSeen          time.Time `json:"last_seen"`
		KegSizeML         uint16    `json:"keg_size_ml"`
		VolumeStartML     uint16    `json:"volume_start_ml"`
		VolumeDispensedML uint16    `json:"volume_dispensed_ml"`
		VolumeRemainingML int       `json:"volume_remaining_ml"`
		PercentRemaining  float64   `json:"percent_remaining"`
		PortCount         uint8     `json:"port_count"`
		PortIndex         uint8     `json:"port_index"`
		PortState         string    `json:"port_state"`
		BeerName          string    `json:"beer_name"`
		Degraded          bool      `json:"degraded,omitempty"`
	}{
		ID:                d.ID,
		Name:              d.Name,
		Address:           d.Address,
		RSSI:              d.RSSI,
		LastSeen:          d.LastSeen,
		KegSizeML:         d.Reading.KegSizeML,
		VolumeStartML:     d.Reading.VolumeStartML,
		VolumeDispensedML: d.Reading.VolumeDispensedML,
		VolumeRemainingML: d.Reading.VolumeRemainingML(),
		PercentRemaining:  d.Reading.PercentRemaining(),
		PortCount:         d.Reading.PortCount,
		PortIndex:         d.Reading.PortIndex,
		PortState:         d.Reading.PortState.String(),
		BeerName:          d.Reading.BeerName,
		Degraded:          d.Reading.Degraded,
	})
}

// Devices denotes a set of devices
type Devices []Device

// State denotes a scanning state
type State int

const (

	// StateIdle is active before the bluetooth adapter has been powered on
	StateIdle State = iota

	// StateScanning is active while scanning for advertisements
	StateScanning

	// StateStopped is active after the adapter has been powered off or scanning was stopped
	StateStopped
)

// String returns a string representation of the state
func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateScanning:
		return "scanning"
	case StateStopped:
		return "stopped"
	default:
		return "unknown"
	}
}

// ConnectionStatus denotes the current status of the bluetooth adapter
type ConnectionStatus struct {
	Error error
	State
}
