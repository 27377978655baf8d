package sensor

import (
	"math"
	"testing"
	"time"

	"github.com/nerrad567/govee-bridge/internal/accessory"
	"github.com/nerrad567/govee-bridge/internal/discovery"
	"github.com/nerrad567/govee-bridge/internal/reading"
)

// recordingPublisher captures announcements and published states.
type recordingPublisher struct {
	announced []*accessory.Record
	states    []State
}

func (p *recordingPublisher) Announce(rec *accessory.Record) {
	p.announced = append(p.announced, rec.Copy())
}

func (p *recordingPublisher) Publish(state State) {
	p.states = append(p.states, state)
}

var seenAt = time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

func testRecord() *accessory.Record {
	return &accessory.Record{
		UUID:             accessory.GenerateIdentity("GVH5075A1B2"),
		IdentityKey:      "GVH5075A1B2",
		Address:          "A4:C1:38:00:00:01",
		Model:            "GVH5075_A1B2",
		DisplayName:      "Govee GVH5075_A1B2",
		BatteryThreshold: 25,
		HumidityOffset:   -2,
	}
}

func values(temp, hum, batt float64) map[string]float64 {
	return map[string]float64{
		reading.ValueTemperature: temp,
		reading.ValueHumidity:    hum,
		reading.ValueBattery:     batt,
	}
}

var _ discovery.Activator = (*Sensor)(nil)

func TestBinder_PublishesOnlyOnceActivated(t *testing.T) {
	pub := &recordingPublisher{}
	bind := Binder(pub)

	h, err := bind(testRecord(), reading.Reading{Values: values(21.5, 50, 80), ReceivedAt: seenAt, RSSI: -70})
	if err != nil {
		t.Fatalf("bind error = %v", err)
	}
	if len(pub.announced) != 0 || len(pub.states) != 0 {
		t.Fatalf("bind published %d announcements and %d states, want none before activation",
			len(pub.announced), len(pub.states))
	}

	h.(*Sensor).Activate()
	h.(*Sensor).Activate()
	if len(pub.announced) != 1 {
		t.Fatalf("announced %d times, want 1", len(pub.announced))
	}
	if len(pub.states) != 1 {
		t.Fatalf("published %d states, want 1", len(pub.states))
	}

	st := pub.states[0]
	if st.Values[reading.ValueHumidity] != 48 {
		t.Errorf("humidity = %v, want offset applied (48)", st.Values[reading.ValueHumidity])
	}
	if st.Values[reading.ValueTemperature] != 21.5 {
		t.Errorf("temperature = %v, want 21.5", st.Values[reading.ValueTemperature])
	}
	if st.LowBattery {
		t.Error("LowBattery = true at 80%")
	}
	if st.RSSI != -70 || !st.LastSeen.Equal(seenAt) {
		t.Errorf("RSSI/LastSeen = %d/%v", st.RSSI, st.LastSeen)
	}
	if h.(*Sensor).Record().LastSeen == nil {
		t.Error("record LastSeen not tracked")
	}
}

func TestSensor_UpdateReadingDedup(t *testing.T) {
	pub := &recordingPublisher{}
	s := New(testRecord(), pub)

	r := reading.Reading{Values: values(21.5, 50, 80), ReceivedAt: seenAt}
	s.UpdateReading(r)
	r.ReceivedAt = seenAt.Add(time.Minute)
	r.RSSI = -60
	s.UpdateReading(r)

	if len(pub.states) != 1 {
		t.Fatalf("published %d states for identical readings, want 1", len(pub.states))
	}
	if got := s.State(); !got.LastSeen.Equal(seenAt.Add(time.Minute)) || got.RSSI != -60 {
		t.Errorf("LastSeen/RSSI not refreshed: %v/%d", got.LastSeen, got.RSSI)
	}

	s.UpdateReading(reading.Reading{Values: map[string]float64{reading.ValueTemperature: 22}})
	if len(pub.states) != 2 {
		t.Fatalf("published %d states after a change, want 2", len(pub.states))
	}
	if got := pub.states[1]; got.Values[reading.ValueHumidity] != 48 || got.Updates != 2 {
		t.Errorf("partial update lost values or count: %+v", got)
	}
}

func TestSensor_LowBattery(t *testing.T) {
	tests := []struct {
		name    string
		battery float64
		want    bool
	}{
		{"above threshold", 26, false},
		{"at threshold", 25, true},
		{"below threshold", 5, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			pub := &recordingPublisher{}
			s := New(testRecord(), pub)
			s.UpdateReading(reading.Reading{Values: map[string]float64{reading.ValueBattery: tt.battery}})
			if got := s.State().LowBattery; got != tt.want {
				t.Errorf("LowBattery = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestSensor_HumidityCalibrationClamped(t *testing.T) {
	tests := []struct {
		name   string
		offset float64
		raw    float64
		want   float64
	}{
		{"negative offset clamps at 0", -5, 3, 0},
		{"positive offset clamps at 100", 5, 98, 100},
		{"rounds to one decimal", 0.26, 40.1, 40.4},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := testRecord()
			rec.HumidityOffset = tt.offset
			s := New(rec, &recordingPublisher{})
			s.UpdateReading(reading.Reading{Values: map[string]float64{reading.ValueHumidity: tt.raw}})
			if got := s.State().Values[reading.ValueHumidity]; got != tt.want {
				t.Errorf("humidity = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestSensor_IgnoresInvalidValuesAndEmptyPayload(t *testing.T) {
	pub := &recordingPublisher{}
	s := New(testRecord(), pub)

	s.UpdateReading(reading.Reading{Address: "a4:c1:38:00:00:02"})
	s.UpdateReading(reading.Reading{Values: map[string]float64{reading.ValueTemperature: math.NaN()}})
	if len(pub.states) != 0 {
		t.Errorf("published %d states without usable values", len(pub.states))
	}
	if got := s.State().Address; got != "A4:C1:38:00:00:02" {
		t.Errorf("Address = %q, want rotated address", got)
	}
}

func TestState_CopyIsIndependent(t *testing.T) {
	s := New(testRecord(), &recordingPublisher{})
	s.UpdateReading(reading.Reading{Values: map[string]float64{reading.ValueTemperature: 20}})

	st := s.State()
	st.Values[reading.ValueTemperature] = 99
	if s.State().Values[reading.ValueTemperature] != 20 {
		t.Error("State() shares its values map")
	}
}
