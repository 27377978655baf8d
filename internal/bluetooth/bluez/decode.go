package bluez

import (
	"strings"
	"time"

	"github.com/nerrad567/govee-bridge/internal/reading"
)

// Advertisement is the latest advertised state of one BlueZ device.
type Advertisement struct {
	Address          string
	Name             string
	RSSI             int16
	ManufacturerData map[uint16][]byte
	ServiceData      map[string][]byte
	ReceivedAt       time.Time
}

// Decoder turns an advertisement into a reading. It reports false for
// advertisements that are not from a tracked sensor.
type Decoder interface {
	Decode(adv Advertisement) (reading.Reading, bool)
}

// DecoderFunc adapts a function to the Decoder interface.
type DecoderFunc func(adv Advertisement) (reading.Reading, bool)

// Decode calls f(adv).
func (f DecoderFunc) Decode(adv Advertisement) (reading.Reading, bool) {
	return f(adv)
}

// DefaultNamePrefixes are the local name prefixes Govee thermo-hygrometers
// advertise with.
var DefaultNamePrefixes = []string{"GVH", "GV5", "Govee_", "ihoment_"}

// NameDecoder accepts devices whose local name starts with one of its
// prefixes and reports the name as the model hint.
//
// Its readings carry no Values. Sensors decoded this way are discovered,
// persisted and listed, but no state, history or reading events are
// published for them until a Decoder that parses the manufacturer data
// is passed to New.
type NameDecoder struct {
	Prefixes []string
}

// Decode implements Decoder.
func (d NameDecoder) Decode(adv Advertisement) (reading.Reading, bool) {
	name := strings.TrimSpace(adv.Name)
	if name == "" || !d.matches(name) {
		return reading.Reading{}, false
	}
	return reading.Reading{
		ModelHint:  name,
		Address:    adv.Address,
		RSSI:       adv.RSSI,
		ReceivedAt: adv.ReceivedAt,
	}, true
}

func (d NameDecoder) matches(name string) bool {
	prefixes := d.Prefixes
	if len(prefixes) == 0 {
		prefixes = DefaultNamePrefixes
	}
	for _, p := range prefixes {
		if len(name) >= len(p) && strings.EqualFold(name[:len(p)], p) {
			return true
		}
	}
	return false
}
