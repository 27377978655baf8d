package sensor

import (
	"maps"
	"math"
	"time"

	"github.com/nerrad567/govee-bridge/internal/accessory"
	"github.com/nerrad567/govee-bridge/internal/discovery"
	"github.com/nerrad567/govee-bridge/internal/reading"
)

// State is the published view of one sensor.
type State struct {
	AccessoryID string             `json:"accessory_id"`
	Name        string             `json:"name"`
	Model       string             `json:"model"`
	Address     string             `json:"address"`
	Values      map[string]float64 `json:"values"`
	RSSI        int16              `json:"rssi,omitempty"`
	LowBattery  bool               `json:"low_battery"`
	LastSeen    time.Time          `json:"last_seen"`
	Updates     uint64             `json:"updates"`
}

// Copy returns a deep copy of s.
func (s State) Copy() State {
	s.Values = maps.Clone(s.Values)
	if s.Values == nil {
		s.Values = map[string]float64{}
	}
	return s
}

// Publisher receives sensor announcements and state changes.
type Publisher interface {
	// Announce is called once when a sensor is bound.
	Announce(rec *accessory.Record)

	// Publish is called whenever the published state changes.
	Publish(state State)
}

// Sensor is the handler for one accessory.
type Sensor struct {
	record    *accessory.Record
	publisher Publisher
	state     State
	published bool
	now       func() time.Time

	initial   reading.Reading
	activated bool
}

// New creates a sensor bound to rec. rec is copied.
func New(rec *accessory.Record, publisher Publisher) *Sensor {
	rec = rec.Copy()
	return &Sensor{
		record:    rec,
		publisher: publisher,
		state: State{
			AccessoryID: rec.UUID,
			Name:        rec.DisplayName,
			Model:       rec.Model,
			Address:     rec.Address,
			Values:      map[string]float64{},
		},
		now: time.Now,
	}
}

// Binder returns the discovery.BindFunc that creates sensors publishing to
// publisher. Nothing is published until the cache activates the sensor.
func Binder(publisher Publisher) discovery.BindFunc {
	return func(rec *accessory.Record, initial reading.Reading) (discovery.Handler, error) {
		s := New(rec, publisher)
		s.initial = initial
		return s, nil
	}
}

// Activate announces the sensor and consumes the reading it was bound with.
// Later calls are no-ops.
func (s *Sensor) Activate() {
	if s.activated {
		return
	}
	s.activated = true
	s.publisher.Announce(s.record.Copy())
	s.UpdateReading(s.initial)
	s.initial = reading.Reading{}
}

// UpdateReading merges r into the sensor state. Readings carry partial
// payloads; absent values keep their last known value.
func (s *Sensor) UpdateReading(r reading.Reading) {
	seen := r.ReceivedAt
	if seen.IsZero() {
		seen = s.now()
	}
	seen = seen.UTC()
	s.state.LastSeen = seen
	s.record.LastSeen = &seen
	if r.RSSI != 0 {
		s.state.RSSI = r.RSSI
	}
	if addr := accessory.SanitizeAddress(r.Address); addr != "" {
		s.state.Address = addr
	}

	changed := false
	for k, v := range r.Values {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			continue
		}
		v = s.calibrate(k, v)
		if old, ok := s.state.Values[k]; ok && old == v {
			continue
		}
		s.state.Values[k] = v
		changed = true
	}

	low := s.lowBattery()
	if low != s.state.LowBattery {
		s.state.LowBattery = low
		changed = true
	}

	if !changed && s.published {
		return
	}
	if len(s.state.Values) == 0 {
		return
	}
	s.state.Updates++
	s.published = true
	s.publisher.Publish(s.state.Copy())
}

func (s *Sensor) calibrate(key string, v float64) float64 {
	if key != reading.ValueHumidity {
		return v
	}
	v += s.record.HumidityOffset
	return math.Round(math.Min(math.Max(v, 0), 100)*10) / 10
}

func (s *Sensor) lowBattery() bool {
	battery, ok := s.state.Values[reading.ValueBattery]
	if !ok {
		return false
	}
	return battery <= float64(s.record.BatteryThreshold)
}

// State returns a copy of the current state.
func (s *Sensor) State() State {
	return s.state.Copy()
}

// Record returns a copy of the bound accessory record.
func (s *Sensor) Record() *accessory.Record {
	return s.record.Copy()
}
