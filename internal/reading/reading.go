package reading

import (
	"errors"
	"strings"
	"time"
)

// ErrUnidentifiable is returned by Resolve for a reading with no usable identity hint.
var ErrUnidentifiable = errors.New("reading: no identity hint or model hint")

// Standard Values keys.
const (
	ValueTemperature = "temperature"
	ValueHumidity    = "humidity"
	ValueBattery     = "battery"
)

// Reading is one parsed observation of a broadcast-only sensor.
type Reading struct {
	// IdentityHint is a stable identifier supplied by the radio layer, if any.
	IdentityHint string `json:"identity_hint,omitempty"`

	// ModelHint is the advertised model or local name, if any.
	ModelHint string `json:"model_hint,omitempty"`

	// Address is the radio address. It may rotate on some device classes.
	Address string `json:"address"`

	// RSSI is the received signal strength in dBm, 0 when unknown.
	RSSI int16 `json:"rssi,omitempty"`

	// Values holds the decoded sensor payload, keyed by ValueTemperature etc.
	Values map[string]float64 `json:"values,omitempty"`

	ReceivedAt time.Time `json:"received_at"`
}

// Resolve derives the identity key of r.
func Resolve(r Reading) (string, error) {
	if key := Normalize(r.IdentityHint); key != "" {
		return key, nil
	}
	if key := Normalize(r.ModelHint); key != "" {
		return key, nil
	}
	return "", ErrUnidentifiable
}

// Normalize strips underscores, trims whitespace and upper-cases s.
// It is idempotent.
func Normalize(s string) string {
	s = strings.ReplaceAll(s, "_", "")
	return strings.ToUpper(strings.TrimSpace(s))
}
