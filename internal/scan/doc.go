// Package scan implements the scan cycle scheduler.
//
// The Scheduler drives a Radio through a duty cycle:
//
//	Idle -> Scanning -> CoolingDown -> Scanning -> ...
//
// With a zero ScanDuration the radio scans indefinitely. The radio reports
// both requested and unrequested scan stops through the same callback; the
// scheduler's cooldown-pending flag tells them apart. An unrequested stop
// is a stall and is recovered by resuming the scan after StallRecoveryDelay.
//
// A Scheduler is not safe for concurrent use. Every method, radio callback
// and timer callback must run on one goroutine; internal/platform arranges
// this by posting them onto its event loop.
package scan
