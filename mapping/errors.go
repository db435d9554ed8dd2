package mapping

import "errors"

var (
	// ErrNilSurface is returned when a mapper is created without a
	// control surface to dispatch to.
	ErrNilSurface = errors.New("control surface is nil")

	// ErrInvalidMapping is returned when a mapping fails validation.
	ErrInvalidMapping = errors.New("invalid mapping")

	// ErrMappingNotFound is returned when removing an unknown mapping ID.
	ErrMappingNotFound = errors.New("mapping not found")
)
