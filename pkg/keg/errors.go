package keg

import "errors"

var (

	// ErrUnsupportedUnit denotes a volume unit outside of the supported set
	ErrUnsupportedUnit = errors.New("unsupported unit")

	// ErrInvalidArgument denotes an out-of-domain numeric argument
	ErrInvalidArgument = errors.New("invalid argument")
)
