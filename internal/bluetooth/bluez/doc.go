// Package bluez implements the scan radio over the BlueZ D-Bus API.
//
// Radio drives org.bluez.Adapter1 discovery and watches the object
// manager for Device1 objects. Every advertisement update (a new device
// or a change to its RSSI, manufacturer data or service data) is turned
// into an Advertisement and passed through a Decoder; decoded readings go
// to the scan callback.
//
// The adapter's Discovering property drives the scan-started and
// scan-stopped callbacks, so a stop requested with StopScan and a stop
// made by BlueZ itself are reported the same way.
//
// Decoding sensor payload bytes is left to the Decoder. The default
// NameDecoder only reports identity and signal strength, and readings
// without values are never published.
package bluez
