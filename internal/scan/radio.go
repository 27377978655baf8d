package scan

import (
	"context"

	"github.com/nerrad567/govee-bridge/internal/reading"
)

// Radio is the low-level scanning collaborator.
//
// StopScan only requests a stop; the radio confirms it later through the
// OnScanStop callback. The same callback fires when the radio stops on its
// own.
type Radio interface {
	// StartScan begins scanning and delivers every parsed advertisement
	// to onReading.
	StartScan(ctx context.Context, onReading func(reading.Reading)) error

	// ResumeScan restarts scanning with the callbacks bound by the last
	// StartScan.
	ResumeScan(ctx context.Context) error

	// StopScan requests the radio stop scanning.
	StopScan(ctx context.Context) error

	// OnScanStart registers the scan-started callback, replacing any prior one.
	OnScanStart(fn func())

	// OnScanStop registers the scan-stopped callback, replacing any prior one.
	OnScanStop(fn func())

	// SetDebug toggles verbose radio logging.
	SetDebug(debug bool)
}
