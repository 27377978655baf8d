package accessory

import (
	"time"

	"github.com/google/uuid"
)

// identityNamespace scopes the name-based UUIDs generated for accessories.
var identityNamespace = uuid.NewSHA1(uuid.NameSpaceOID, []byte("govee-bridge/accessory"))

// Record is the durable representation of one discovered sensor.
type Record struct {
	// UUID is GenerateIdentity(IdentityKey).
	UUID string `json:"uuid"`

	// IdentityKey is the normalized key the UUID was derived from.
	IdentityKey string `json:"identity_key"`

	// Address is the sanitized radio address seen when the record was created.
	Address string `json:"address"`

	// Model is the sanitized advertised model name.
	Model string `json:"model"`

	// DisplayName is "<platform name> <model>".
	DisplayName string `json:"display_name"`

	// BatteryThreshold and HumidityOffset are refreshed from configuration
	// whenever the record is restored.
	BatteryThreshold int     `json:"battery_threshold"`
	HumidityOffset   float64 `json:"humidity_offset"`

	LastSeen  *time.Time `json:"last_seen,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
}

// Copy returns an independent copy of r.
func (r *Record) Copy() *Record {
	if r == nil {
		return nil
	}
	cpy := *r
	if r.LastSeen != nil {
		t := *r.LastSeen
		cpy.LastSeen = &t
	}
	return &cpy
}

// GenerateIdentity returns the stable accessory UUID for seed. The same
// seed always yields the same UUID, across processes and hosts.
func GenerateIdentity(seed string) string {
	return uuid.NewSHA1(identityNamespace, []byte(seed)).String()
}
