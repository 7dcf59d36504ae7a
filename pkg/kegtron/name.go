package kegtron

import (
	"regexp"
	"strings"
)

// DefaultNamePrefix denotes the prefix token of advertised Kegtron device names
const DefaultNamePrefix = "Kegtron"

// Names follow the pattern "Kegtron F1EDC6"
var namePattern = regexp.MustCompile(`(?i)^\s*` + DefaultNamePrefix + `\s+([0-9a-f]+)\s*$`)

// ExtractDeviceID extracts the (upper case) device ID from an advertised device name.
// Names not following the Kegtron convention yield false
func ExtractDeviceID(name string) (string, bool) {
	match := namePattern.FindStringSubmatch(name)
	if match == nil {
		return "", false
	}

	return strings.ToUpper(match[1]), true
}

// IsKegtronDevice returns if an advertised device name follows the Kegtron convention
func IsKegtronDevice(name string) bool {
	return namePattern.MatchString(name)
}

// HasKegtronData returns if a set of manufacturer data (keyed by company ID) contains
// a Kegtron payload
func HasKegtronData(manufacturerData map[uint16][]byte) bool {
	_, ok := manufacturerData[ManufacturerID]
	return ok
}
