package kegtron

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/fako1024/btkeg/pkg/keg"
)

const (

	// ManufacturerID denotes the BLE company identifier used by Kegtron advertisements
	ManufacturerID = 0xFFFF

	// PayloadLength denotes the length of the manufacturer data (company ID stripped)
	PayloadLength = 27

	// BeerNameLength denotes the (fixed, NUL-padded) length of the beer name field
	BeerNameLength = 20

	offsetKegSize         = 0
	offsetVolumeStart     = 2
	offsetVolumeDispensed = 4
	offsetPortState       = 6
	offsetBeerName        = 7

	portCountShift = 6
	portIndexShift = 4
	twoBitMask     = 0b11
)

var (

	// ErrMalformedPayload denotes a payload that cannot be decoded
	ErrMalformedPayload = errors.New("malformed payload")
)

// MalformedPayloadError denotes a payload of unexpected length
type MalformedPayloadError struct {
	Expected int
	Actual   int
}

// Error fulfils the error interface
func (e *MalformedPayloadError) Error() string {
	return fmt.Sprintf("%s: expected %d bytes, got %d bytes", ErrMalformedPayload, e.Expected, e.Actual)
}

// Is allows matching against ErrMalformedPayload using errors.Is()
func (e *MalformedPayloadError) Is(target error) bool {
	return target == ErrMalformedPayload
}

// Decode parses the manufacturer data of a Kegtron advertisement (without the company
// ID) into a Reading. If the beer name is not valid UTF-8 it is decoded lossily (invalid
// sequences replaced by U+FFFD) and the reading is flagged as degraded
func Decode(data []byte) (keg.Reading, error) {
	if len(data) != PayloadLength {
		return keg.Reading{}, &MalformedPayloadError{
			Expected: PayloadLength,
			Actual:   len(data),
		}
	}

	portCount, portIndex, portState := DecodePortState(data[offsetPortState])
	beerName, valid := decodeText(data[offsetBeerName : offsetBeerName+BeerNameLength])

	return keg.Reading{
		KegSizeML:         binary.BigEndian.Uint16(data[offsetKegSize:]),
		VolumeStartML:     binary.BigEndian.Uint16(data[offsetVolumeStart:]),
		VolumeDispensedML: binary.BigEndian.Uint16(data[offsetVolumeDispensed:]),
		PortCount:         portCount,
		PortIndex:         portIndex,
		PortState:         portState,
		BeerName:          beerName,
		Degraded:          !valid,
	}, nil
}

// Encode serializes a Reading into its wire representation (inverse of Decode for
// readings with a valid beer name of at most BeerNameLength bytes, longer names
// are truncated)
func Encode(r keg.Reading) []byte {
	data := make([]byte, PayloadLength)

	binary.BigEndian.PutUint16(data[offsetKegSize:], r.KegSizeML)
	binary.BigEndian.PutUint16(data[offsetVolumeStart:], r.VolumeStartML)
	binary.BigEndian.PutUint16(data[offsetVolumeDispensed:], r.VolumeDispensedML)
	data[offsetPortState] = EncodePortState(r.PortCount, r.PortIndex, r.PortState)
	copy(data[offsetBeerName:], r.BeerName)

	return data
}

// DecodePortState decomposes the port state byte (bits 6-7: port count, bits 4-5: port
// index, bits 0-1: state, bits 2-3 are ignored)
func DecodePortState(b byte) (count, index uint8, state keg.PortState) {
	return (b >> portCountShift) & twoBitMask,
		(b >> portIndexShift) & twoBitMask,
		keg.PortState(b & twoBitMask)
}

// EncodePortState composes the port state byte, each value is truncated to two bits
// and the reserved bits 2-3 are left zero
func EncodePortState(count, index uint8, state keg.PortState) byte {
	return (count&twoBitMask)<<portCountShift |
		(index&twoBitMask)<<portIndexShift |
		byte(state)&twoBitMask
}

////////////////////////////////////////////////////////////////////////////////

func decodeText(data []byte) (string, bool) {

	// Padding is stripped from the raw bytes, prior to any validation
	trimmed := bytes.TrimRight(data, "\x00")
	if utf8.Valid(trimmed) {
		return string(trimmed), true
	}

	return strings.ToValidUTF8(string(trimmed), string(utf8.RuneError)), false
}
