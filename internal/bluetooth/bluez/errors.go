package bluez

import "errors"

var (
	// ErrNotOpen is returned by radio operations before Open.
	ErrNotOpen = errors.New("bluez: radio not open")

	// ErrAdapterNotFound is returned by Open when the adapter does not exist.
	ErrAdapterNotFound = errors.New("bluez: adapter not found")
)
