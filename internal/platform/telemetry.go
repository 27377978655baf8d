package platform

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/nerrad567/govee-bridge/internal/accessory"
	"github.com/nerrad567/govee-bridge/internal/infrastructure/influxdb"
	"github.com/nerrad567/govee-bridge/internal/infrastructure/mqtt"
	"github.com/nerrad567/govee-bridge/internal/scan"
	"github.com/nerrad567/govee-bridge/internal/sensor"
)

// Event channels broadcast to websocket clients.
const (
	EventSensorDiscovered = "sensor.discovered"
	EventReadingUpdated   = "reading.updated"
	EventScannerState     = "scanner.state"
)

const (
	defaultTelemetryQueue = 512
	historyRetention      = 7 * 24 * time.Hour
	historyPruneInterval  = time.Hour
	telemetryWriteTimeout = 5 * time.Second
)

// MessagePublisher publishes JSON payloads to the message broker.
type MessagePublisher interface {
	PublishJSON(topic string, v any, retained bool) error
	Topics() mqtt.Topics
}

// ReadingWriter records sensor readings in a time-series store.
type ReadingWriter interface {
	WriteReading(r influxdb.ReadingPoint)
}

// Broadcaster pushes events to live stream subscribers.
type Broadcaster interface {
	Broadcast(channel string, payload any)
}

// TelemetryOptions selects the sinks a Telemetry fans out to. Nil sinks
// are skipped.
type TelemetryOptions struct {
	MQTT        MessagePublisher
	Influx      ReadingWriter
	History     sensor.HistoryRepository
	Broadcaster Broadcaster

	// QueueSize bounds the number of pending publishes. Defaults to 512.
	QueueSize int
}

// Telemetry implements Publisher. Calls only enqueue work so the event
// loop never waits on the network; Run performs the writes.
type Telemetry struct {
	opts    TelemetryOptions
	jobs    chan func(ctx context.Context)
	logger  Logger
	dropped atomic.Uint64
}

// NewTelemetry creates a Telemetry over the given sinks.
func NewTelemetry(opts TelemetryOptions) *Telemetry {
	if opts.QueueSize <= 0 {
		opts.QueueSize = defaultTelemetryQueue
	}
	return &Telemetry{
		opts:   opts,
		jobs:   make(chan func(ctx context.Context), opts.QueueSize),
		logger: noopLogger{},
	}
}

// SetLogger sets the logger for telemetry.
func (t *Telemetry) SetLogger(logger Logger) {
	t.logger = logger
}

// Announce publishes the retained discovery message of a bound sensor.
func (t *Telemetry) Announce(rec *accessory.Record) {
	rec = rec.Copy()
	t.enqueue(func(_ context.Context) {
		if t.opts.MQTT != nil {
			topic := t.opts.MQTT.Topics().Discovery(rec.UUID)
			if err := t.opts.MQTT.PublishJSON(topic, rec, true); err != nil {
				t.logger.Warn("publishing discovery failed", "uuid", rec.UUID, "error", err)
			}
		}
		if t.opts.Broadcaster != nil {
			t.opts.Broadcaster.Broadcast(EventSensorDiscovered, rec)
		}
	})
}

// Publish fans a sensor state out to every configured sink.
func (t *Telemetry) Publish(state sensor.State) {
	state = state.Copy()
	t.enqueue(func(ctx context.Context) {
		if t.opts.MQTT != nil {
			topic := t.opts.MQTT.Topics().State(state.AccessoryID)
			if err := t.opts.MQTT.PublishJSON(topic, state, true); err != nil {
				t.logger.Warn("publishing state failed", "uuid", state.AccessoryID, "error", err)
			}
		}
		if t.opts.Influx != nil {
			t.opts.Influx.WriteReading(influxdb.ReadingPoint{
				AccessoryID: state.AccessoryID,
				Name:        state.Name,
				Model:       state.Model,
				Values:      state.Values,
				RSSI:        state.RSSI,
				LowBattery:  state.LowBattery,
				At:          state.LastSeen,
			})
		}
		if t.opts.History != nil {
			writeCtx, cancel := context.WithTimeout(ctx, telemetryWriteTimeout)
			err := t.opts.History.Record(writeCtx, state)
			cancel()
			if err != nil {
				t.logger.Warn("recording reading history failed", "uuid", state.AccessoryID, "error", err)
			}
		}
		if t.opts.Broadcaster != nil {
			t.opts.Broadcaster.Broadcast(EventReadingUpdated, state)
		}
	})
}

// PublishScanner publishes the retained scanner state.
func (t *Telemetry) PublishScanner(snap scan.Snapshot) {
	t.enqueue(func(_ context.Context) {
		if t.opts.MQTT != nil {
			if err := t.opts.MQTT.PublishJSON(t.opts.MQTT.Topics().ScannerState(), snap, true); err != nil {
				t.logger.Debug("publishing scanner state failed", "error", err)
			}
		}
		if t.opts.Broadcaster != nil {
			t.opts.Broadcaster.Broadcast(EventScannerState, snap)
		}
	})
}

// Dropped returns the number of publishes discarded because the queue was full.
func (t *Telemetry) Dropped() uint64 {
	return t.dropped.Load()
}

// Run performs queued publishes until ctx is cancelled, then drains what
// is already queued. It also prunes the local reading history.
func (t *Telemetry) Run(ctx context.Context) error {
	prune := time.NewTicker(historyPruneInterval)
	defer prune.Stop()

	// Writes already dequeued complete even if ctx is cancelled meanwhile.
	jobCtx := context.WithoutCancel(ctx)
	for {
		select {
		case job := <-t.jobs:
			job(jobCtx)
		case <-prune.C:
			t.pruneHistory(ctx)
		case <-ctx.Done():
			t.drain()
			return nil
		}
	}
}

func (t *Telemetry) drain() {
	ctx, cancel := context.WithTimeout(context.Background(), telemetryWriteTimeout)
	defer cancel()
	for {
		select {
		case job := <-t.jobs:
			job(ctx)
		default:
			return
		}
	}
}

func (t *Telemetry) pruneHistory(ctx context.Context) {
	if t.opts.History == nil {
		return
	}
	n, err := t.opts.History.Prune(ctx, historyRetention)
	if err != nil {
		t.logger.Warn("pruning reading history failed", "error", err)
		return
	}
	if n > 0 {
		t.logger.Debug("reading history pruned", "rows", n)
	}
}

func (t *Telemetry) enqueue(job func(ctx context.Context)) {
	select {
	case t.jobs <- job:
	default:
		if t.dropped.Add(1)%100 == 1 {
			t.logger.Warn("telemetry queue full, dropping update", "dropped", t.dropped.Load())
		}
	}
}
