// Package sensor implements the per-device handler bound by the discovery
// cache.
//
// A Sensor accumulates readings for one accessory. It applies the
// configured humidity calibration, derives the low battery flag from the
// accessory's threshold and publishes a State whenever the derived values
// change. Repeated identical readings only refresh LastSeen and RSSI.
//
// The package also stores a local history of published states in SQLite
// (HistoryRepository), used by the status API when no time-series backend
// is configured.
package sensor
