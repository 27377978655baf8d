// Package platform wires the discovery cache and the scan scheduler onto
// a single event loop.
//
// Every state transition, cache mutation and handler call runs on the
// goroutine executing Platform.Run. Radio callbacks and timer firings are
// posted to that goroutine as closures, so the scheduler and cache need no
// locks. HTTP handlers read platform state by posting a query with
// Loop.Do.
//
// Lifecycle:
//
//	p := platform.New(cfg, registry, radio, telemetry)
//	go telemetry.Run(ctx)
//	err := p.Run(ctx) // restore, ready, scan until ctx is cancelled
//
// Run returns a non-nil error only when startup fails or the accessory
// registry rejects a write.
package platform
