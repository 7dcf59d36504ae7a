package keg

import (
	"fmt"
	"strings"
)

// Conversion constants
const (
	MLPerOz     = 29.5735
	MLPerGallon = 3785.41
	MLPerLiter  = 1000.
	MLPerPint   = 473.176

	// DefaultPrecision denotes the default number of decimals used by FormatVolume
	DefaultPrecision = 1
)

// Unit denotes the unit of a volume
type Unit string

const (

	// UnitMilliliters denotes milliliters (the native unit of the device)
	UnitMilliliters Unit = "ml"

	// UnitOunces denotes US fluid ounces
	UnitOunces Unit = "oz"

	// UnitGallons denotes US gallons
	UnitGallons Unit = "gal"

	// UnitLiters denotes liters
	UnitLiters Unit = "L"

	// UnitPints denotes US pints
	UnitPints Unit = "pt"
)

var unitAliases = map[string]Unit{
	"ml":     UnitMilliliters,
	"oz":     UnitOunces,
	"floz":   UnitOunces,
	"gal":    UnitGallons,
	"l":      UnitLiters,
	"pt":     UnitPints,
	"pint":   UnitPints,
	"pints":  UnitPints,
	"liter":  UnitLiters,
	"liters": UnitLiters,
}

// ParseUnit parses a unit symbol (case-insensitive)
func ParseUnit(s string) (Unit, error) {
	if u, ok := unitAliases[strings.ToLower(strings.TrimSpace(s))]; ok {
		return u, nil
	}

	return "", fmt.Errorf("%w: %q", ErrUnsupportedUnit, s)
}

// String returns the symbol of the unit
func (u Unit) String() string {
	return string(u)
}

// FromML converts a volume in milliliters to the unit
func (u Unit) FromML(ml float64) (float64, error) {
	switch u {
	case UnitMilliliters:
		return ml, nil
	case UnitOunces:
		return MLToOz(ml), nil
	case UnitGallons:
		return MLToGallons(ml), nil
	case UnitLiters:
		return MLToLiters(ml), nil
	case UnitPints:
		return MLToPints(ml), nil
	}

	return 0, fmt.Errorf("%w: %q", ErrUnsupportedUnit, string(u))
}

// MLToOz converts milliliters to US fluid ounces
func MLToOz(ml float64) float64 {
	return ml / MLPerOz
}

// OzToML converts US fluid ounces to milliliters
func OzToML(oz float64) float64 {
	return oz * MLPerOz
}

// MLToGallons converts milliliters to US gallons
func MLToGallons(ml float64) float64 {
	return ml / MLPerGallon
}

// MLToLiters converts milliliters to liters
func MLToLiters(ml float64) float64 {
	return ml / MLPerLiter
}

// MLToPints converts milliliters to US pints
func MLToPints(ml float64) float64 {
	return ml / MLPerPint
}

// FormatVolume renders a volume (given in milliliters) in the requested unit using
// a fixed number of decimals, e.g. "33.8 oz"
func FormatVolume(ml float64, unit Unit, precision int) (string, error) {
	if precision < 0 {
		return "", fmt.Errorf("%w: negative precision %d", ErrInvalidArgument, precision)
	}

	val, err := unit.FromML(ml)
	if err != nil {
		return "", err
	}

	return fmt.Sprintf("%.*f %s", precision, val, unit), nil
}
