package platform

import (
	"context"
	"time"

	"github.com/nerrad567/govee-bridge/internal/clock"
	"github.com/nerrad567/govee-bridge/internal/reading"
	"github.com/nerrad567/govee-bridge/internal/scan"
)

// loopClock posts every timer callback onto the loop.
type loopClock struct {
	clock clock.Clock
	loop  *Loop
}

func (c loopClock) Now() time.Time {
	return c.clock.Now()
}

func (c loopClock) AfterFunc(d time.Duration, f func()) clock.Timer {
	return c.clock.AfterFunc(d, func() { c.loop.Post(f) })
}

// loopRadio posts every radio callback onto the loop. Calls into the
// radio pass straight through.
type loopRadio struct {
	radio scan.Radio
	loop  *Loop
}

func (r loopRadio) StartScan(ctx context.Context, onReading func(reading.Reading)) error {
	return r.radio.StartScan(ctx, func(rd reading.Reading) {
		r.loop.Post(func() { onReading(rd) })
	})
}

func (r loopRadio) ResumeScan(ctx context.Context) error {
	return r.radio.ResumeScan(ctx)
}

func (r loopRadio) StopScan(ctx context.Context) error {
	return r.radio.StopScan(ctx)
}

func (r loopRadio) OnScanStart(fn func()) {
	r.radio.OnScanStart(func() { r.loop.Post(fn) })
}

func (r loopRadio) OnScanStop(fn func()) {
	r.radio.OnScanStop(func() { r.loop.Post(fn) })
}

func (r loopRadio) SetDebug(debug bool) {
	r.radio.SetDebug(debug)
}
