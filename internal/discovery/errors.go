package discovery

import "errors"

var (
	// ErrPersistence is returned by Route when the registry rejects a
	// Register or Update. The handler is not inserted.
	ErrPersistence = errors.New("discovery: persistence failed")

	// ErrBind is returned by Route when the handler constructor fails.
	ErrBind = errors.New("discovery: binding handler failed")
)
