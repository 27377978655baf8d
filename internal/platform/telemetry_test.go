package platform

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/nerrad567/govee-bridge/internal/accessory"
	"github.com/nerrad567/govee-bridge/internal/infrastructure/influxdb"
	"github.com/nerrad567/govee-bridge/internal/infrastructure/mqtt"
	"github.com/nerrad567/govee-bridge/internal/scan"
	"github.com/nerrad567/govee-bridge/internal/sensor"
)

type published struct {
	topic    string
	payload  any
	retained bool
}

type fakeBroker struct {
	mu   sync.Mutex
	msgs []published
	err  error
}

func (f *fakeBroker) PublishJSON(topic string, v any, retained bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.msgs = append(f.msgs, published{topic: topic, payload: v, retained: retained})
	return f.err
}

func (f *fakeBroker) Topics() mqtt.Topics {
	return mqtt.Topics{Prefix: "govee"}
}

type fakeWriter struct {
	points []influxdb.ReadingPoint
}

func (f *fakeWriter) WriteReading(r influxdb.ReadingPoint) {
	f.points = append(f.points, r)
}

type fakeHistory struct {
	recorded []sensor.State
}

func (f *fakeHistory) Record(_ context.Context, st sensor.State) error {
	f.recorded = append(f.recorded, st)
	return nil
}

func (f *fakeHistory) History(context.Context, string, int) ([]sensor.HistoryEntry, error) {
	return nil, nil
}

func (f *fakeHistory) Prune(context.Context, time.Duration) (int64, error) {
	return 0, nil
}

type fakeBroadcaster struct {
	channels []string
}

func (f *fakeBroadcaster) Broadcast(channel string, _ any) {
	f.channels = append(f.channels, channel)
}

// runToCompletion runs t with an already cancelled context so every queued
// job is drained before it returns.
func runToCompletion(t *testing.T, tel *Telemetry) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := tel.Run(ctx); err != nil {
		t.Fatalf("Run() error = %v", err)
	}
}

func TestTelemetry_FansOut(t *testing.T) {
	broker := &fakeBroker{}
	writer := &fakeWriter{}
	history := &fakeHistory{}
	ws := &fakeBroadcaster{}
	tel := NewTelemetry(TelemetryOptions{MQTT: broker, Influx: writer, History: history, Broadcaster: ws})

	rec := &accessory.Record{UUID: "acc-1", DisplayName: "Govee H5075"}
	state := sensor.State{
		AccessoryID: "acc-1",
		Name:        "Govee H5075",
		Values:      map[string]float64{"temperature": 21},
		RSSI:        -70,
		LastSeen:    epoch,
	}

	tel.Announce(rec)
	tel.Publish(state)
	tel.PublishScanner(scan.Snapshot{State: scan.StateScanning, Running: true})
	runToCompletion(t, tel)

	wantTopics := []string{"govee/discovery/acc-1", "govee/state/acc-1", "govee/scanner/state"}
	if len(broker.msgs) != len(wantTopics) {
		t.Fatalf("published %d messages, want %d", len(broker.msgs), len(wantTopics))
	}
	for i, want := range wantTopics {
		if broker.msgs[i].topic != want {
			t.Errorf("msgs[%d].topic = %q, want %q", i, broker.msgs[i].topic, want)
		}
		if !broker.msgs[i].retained {
			t.Errorf("msgs[%d] not retained", i)
		}
	}

	if len(writer.points) != 1 || writer.points[0].RSSI != -70 || !writer.points[0].At.Equal(epoch) {
		t.Errorf("influx points = %+v", writer.points)
	}
	if len(history.recorded) != 1 || history.recorded[0].AccessoryID != "acc-1" {
		t.Errorf("history = %+v", history.recorded)
	}

	wantEvents := []string{EventSensorDiscovered, EventReadingUpdated, EventScannerState}
	if len(ws.channels) != len(wantEvents) {
		t.Fatalf("broadcast %v, want %v", ws.channels, wantEvents)
	}
	for i := range wantEvents {
		if ws.channels[i] != wantEvents[i] {
			t.Errorf("broadcast[%d] = %q, want %q", i, ws.channels[i], wantEvents[i])
		}
	}
}

func TestTelemetry_PublishCopiesState(t *testing.T) {
	writer := &fakeWriter{}
	tel := NewTelemetry(TelemetryOptions{Influx: writer})

	state := sensor.State{AccessoryID: "acc-1", Values: map[string]float64{"temperature": 21}}
	tel.Publish(state)
	state.Values["temperature"] = 99
	runToCompletion(t, tel)

	if got := writer.points[0].Values["temperature"]; got != 21 {
		t.Errorf("temperature = %v, want the value at publish time", got)
	}
}

func TestTelemetry_BrokerErrorDoesNotStopOtherSinks(t *testing.T) {
	broker := &fakeBroker{err: errors.New("not connected")}
	writer := &fakeWriter{}
	tel := NewTelemetry(TelemetryOptions{MQTT: broker, Influx: writer})

	tel.Publish(sensor.State{AccessoryID: "acc-1", Values: map[string]float64{"humidity": 40}})
	runToCompletion(t, tel)

	if len(writer.points) != 1 {
		t.Errorf("influx points = %d, want 1", len(writer.points))
	}
}

func TestTelemetry_QueueFullDrops(t *testing.T) {
	tel := NewTelemetry(TelemetryOptions{QueueSize: 1})

	tel.PublishScanner(scan.Snapshot{})
	tel.PublishScanner(scan.Snapshot{})
	tel.PublishScanner(scan.Snapshot{})

	if got := tel.Dropped(); got != 2 {
		t.Errorf("Dropped() = %d, want 2", got)
	}
}
