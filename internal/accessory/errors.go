package accessory

import "errors"

// Domain errors for the accessory package.
//
//	if errors.Is(err, accessory.ErrNotFound) {
//	    // register instead
//	}
var (
	// ErrNotFound is returned when a record UUID does not exist.
	ErrNotFound = errors.New("accessory: not found")

	// ErrExists is returned when registering a UUID that is already stored.
	ErrExists = errors.New("accessory: already exists")

	// ErrInvalid is returned when a record fails validation.
	ErrInvalid = errors.New("accessory: invalid record")
)
