package scan

import "errors"

var (
	// ErrAlreadyRunning is returned by Start on a running scheduler.
	ErrAlreadyRunning = errors.New("scan: scheduler already running")

	// ErrNotRunning is returned by Shutdown on a scheduler that was never started.
	ErrNotRunning = errors.New("scan: scheduler not running")
)
