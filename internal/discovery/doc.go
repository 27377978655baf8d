// Package discovery maps sensor readings onto live device handlers.
//
// Each reading is resolved to an identity key, checked against the
// configured ignore list and routed through the Cache:
//
//   - Updated: the key already has a live handler; the reading is forwarded.
//   - Restored: the key is unknown in this process but the registry holds
//     a record from an earlier run; a handler is bound to that record and
//     its battery threshold and humidity offset are refreshed.
//   - Created: the key is new; a record is allocated and registered and
//     a handler is bound to it.
//
// At most one handler exists per key for the lifetime of the process.
// The Cache is not safe for concurrent use; the platform event loop owns it.
package discovery
