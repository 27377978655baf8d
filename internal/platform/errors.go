package platform

import "errors"

var (
	// ErrAlreadyRunning is returned by a second call to Run.
	ErrAlreadyRunning = errors.New("platform: already running")

	// ErrLoopStopped is returned by Loop.Do after the loop has exited.
	ErrLoopStopped = errors.New("platform: event loop stopped")

	// ErrDeviceNotFound is returned by Device for an unknown accessory ID.
	ErrDeviceNotFound = errors.New("platform: device not found")
)
