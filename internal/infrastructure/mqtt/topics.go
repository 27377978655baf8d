package mqtt

import "fmt"

// DefaultTopicPrefix is used when the configured prefix is empty.
const DefaultTopicPrefix = "govee"

// Topics builds the bridge's MQTT topics under a common prefix.
//
//	topics := mqtt.Topics{Prefix: "govee"}
//	topics.State("5b1f...")  // "govee/state/5b1f..."
type Topics struct {
	Prefix string
}

func (t Topics) prefix() string {
	if t.Prefix == "" {
		return DefaultTopicPrefix
	}
	return t.Prefix
}

// State returns the retained state topic of one accessory.
//
// Example: govee/state/3f2a9c4e-...
func (t Topics) State(accessoryID string) string {
	return fmt.Sprintf("%s/state/%s", t.prefix(), accessoryID)
}

// Discovery returns the retained description topic of one accessory.
//
// Example: govee/discovery/3f2a9c4e-...
func (t Topics) Discovery(accessoryID string) string {
	return fmt.Sprintf("%s/discovery/%s", t.prefix(), accessoryID)
}

// ScannerState returns the scan scheduler state topic.
//
// Example: govee/scanner/state
func (t Topics) ScannerState() string {
	return fmt.Sprintf("%s/scanner/state", t.prefix())
}

// SystemStatus returns the bridge online/offline topic.
//
// Example: govee/system/status
func (t Topics) SystemStatus() string {
	return fmt.Sprintf("%s/system/status", t.prefix())
}

// AllStates returns a pattern matching every accessory state topic.
//
// Pattern: govee/state/+
func (t Topics) AllStates() string {
	return fmt.Sprintf("%s/state/+", t.prefix())
}
