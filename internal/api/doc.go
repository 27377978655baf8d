// Package api implements the read-only HTTP status API and WebSocket stream
// for the Govee bridge.
//
// This package provides:
//   - REST endpoints for tracked sensors, reading history and scanner state
//   - WebSocket hub broadcasting discovery, reading and scanner events
//   - Middleware stack (request ID, logging, recovery, body limit)
//
// # Architecture
//
// The server never touches platform state directly. Every read goes through
// a Source, which the platform implements by running the query on its event
// loop. The Hub doubles as the telemetry broadcaster, so events published by
// the platform reach subscribed WebSocket clients without a round trip
// through MQTT.
package api
