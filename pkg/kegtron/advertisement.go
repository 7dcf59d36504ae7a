package kegtron

import (
	"encoding/binary"
	"errors"
	"fmt"
	"time"

	"github.com/fako1024/btkeg/pkg/keg"
)

const companyIDLength = 2

var (

	// ErrNotKegtron denotes an advertisement of an unrelated device
	ErrNotKegtron = errors.New("not a Kegtron device")

	// ErrNoKegtronData denotes a Kegtron advertisement lacking Kegtron manufacturer data
	ErrNoKegtronData = errors.New("no Kegtron manufacturer data")
)

// Advertisement denotes a single BLE advertisement as provided by the scanning stack
type Advertisement struct {
	Name    string
	Address string
	RSSI    int

	// ManufacturerData includes the leading (little endian) company ID
	ManufacturerData []byte
}

// NewAdvertisement constructs an advertisement carrying a Kegtron payload (prefixing
// the company ID), mostly useful for simulation purposes
func NewAdvertisement(name, address string, payload []byte) Advertisement {
	data := make([]byte, companyIDLength, companyIDLength+len(payload))
	binary.LittleEndian.PutUint16(data, ManufacturerID)

	return Advertisement{
		Name:             name,
		Address:          address,
		ManufacturerData: append(data, payload...),
	}
}

// CompanyID returns the company ID of the manufacturer data, if any
func (a Advertisement) CompanyID() (uint16, bool) {
	if len(a.ManufacturerData) < companyIDLength {
		return 0, false
	}

	return binary.LittleEndian.Uint16(a.ManufacturerData), true
}

// Payload returns the manufacturer data without the company ID
func (a Advertisement) Payload() []byte {
	if len(a.ManufacturerData) < companyIDLength {
		return nil
	}

	return a.ManufacturerData[companyIDLength:]
}

// DeviceFromAdvertisement resolves the device identity and decodes the reading of an
// advertisement, stamping it with the time of observation
func DeviceFromAdvertisement(a Advertisement, seenAt time.Time) (keg.Device, error) {

	id, ok := ExtractDeviceID(a.Name)
	if !ok {
		return keg.Device{}, fmt.Errorf("%w: %q", ErrNotKegtron, a.Name)
	}

	if companyID, ok := a.CompanyID(); !ok || companyID != ManufacturerID {
		return keg.Device{}, fmt.Errorf("%w: %q", ErrNoKegtronData, a.Name)
	}

	reading, err := Decode(a.Payload())
	if err != nil {
		return keg.Device{}, fmt.Errorf("failed to decode advertisement of `%s`: %w", a.Name, err)
	}

	return keg.Device{
		ID:       id,
		Name:     a.Name,
		Address:  a.Address,
		RSSI:     a.RSSI,
		LastSeen: seenAt,
		Reading:  reading,
	}, nil
}
