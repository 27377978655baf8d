package api

import (
	"fmt"
	"slices"
	"time"

	"github.com/nerrad567/govee-bridge/internal/accessory"
	"github.com/nerrad567/govee-bridge/internal/platform"
	"github.com/nerrad567/govee-bridge/internal/scan"
	"github.com/nerrad567/govee-bridge/internal/sensor"
)

// Stream channels a client can subscribe to.
const (
	ChannelSensorDiscovered = platform.EventSensorDiscovered
	ChannelReadingUpdated   = platform.EventReadingUpdated
	ChannelScannerState     = platform.EventScannerState
	ChannelAll              = "*"
)

// Message types sent to stream clients.
const (
	MessageEvent        = "event"
	MessageSnapshot     = "snapshot"
	MessageSubscribed   = "subscribed"
	MessageUnsubscribed = "unsubscribed"
	MessagePong         = "pong"
	MessageError        = "error"
)

// Request types accepted from stream clients.
const (
	RequestSubscribe   = "subscribe"
	RequestUnsubscribe = "unsubscribe"
	RequestPing        = "ping"
)

var knownChannels = []string{
	ChannelSensorDiscovered,
	ChannelReadingUpdated,
	ChannelScannerState,
	ChannelAll,
}

// Request is a control message from a stream client.
type Request struct {
	Type     string   `json:"type"`
	ID       string   `json:"id,omitempty"`
	Channels []string `json:"channels,omitempty"`
}

// Message is the envelope for everything the stream sends. Exactly one of
// Sensor, Reading, Scanner or Snapshot is set on events and snapshots.
type Message struct {
	Type     string          `json:"type"`
	ID       string          `json:"id,omitempty"`
	Channel  string          `json:"channel,omitempty"`
	Seq      uint64          `json:"seq,omitempty"`
	Time     time.Time       `json:"time"`
	Channels []string        `json:"channels,omitempty"`
	Sensor   *SensorInfo     `json:"sensor,omitempty"`
	Reading  *sensor.State   `json:"reading,omitempty"`
	Scanner  *scan.Snapshot  `json:"scanner,omitempty"`
	Snapshot *StreamSnapshot `json:"snapshot,omitempty"`
	Error    string          `json:"error,omitempty"`
}

// SensorInfo describes a newly bound sensor.
type SensorInfo struct {
	AccessoryID string     `json:"accessory_id"`
	Name        string     `json:"name"`
	Model       string     `json:"model"`
	Address     string     `json:"address"`
	IdentityKey string     `json:"identity_key"`
	LastSeen    *time.Time `json:"last_seen,omitempty"`
}

// StreamSnapshot is the current state sent right after a subscribe, so a
// client does not have to wait for the next event.
type StreamSnapshot struct {
	Devices []sensor.State `json:"devices,omitempty"`
	Scanner *scan.Snapshot `json:"scanner,omitempty"`
}

func sensorInfo(rec *accessory.Record) *SensorInfo {
	info := &SensorInfo{
		AccessoryID: rec.UUID,
		Name:        rec.DisplayName,
		Model:       rec.Model,
		Address:     rec.Address,
		IdentityKey: rec.IdentityKey,
	}
	if rec.LastSeen != nil {
		seen := *rec.LastSeen
		info.LastSeen = &seen
	}
	return info
}

// eventFor wraps a platform payload in the envelope for channel.
func eventFor(channel string, payload any) (Message, error) {
	msg := Message{Type: MessageEvent, Channel: channel}
	switch p := payload.(type) {
	case *accessory.Record:
		if p == nil || channel != ChannelSensorDiscovered {
			return Message{}, fmt.Errorf("unexpected sensor payload on %q", channel)
		}
		msg.Sensor = sensorInfo(p)
	case sensor.State:
		if channel != ChannelReadingUpdated {
			return Message{}, fmt.Errorf("unexpected reading payload on %q", channel)
		}
		st := p.Copy()
		msg.Reading = &st
	case scan.Snapshot:
		if channel != ChannelScannerState {
			return Message{}, fmt.Errorf("unexpected scanner payload on %q", channel)
		}
		msg.Scanner = &p
	default:
		return Message{}, fmt.Errorf("unsupported payload %T on %q", payload, channel)
	}
	return msg, nil
}

// validChannels reports the first unknown channel, if any.
func validChannels(channels []string) (string, bool) {
	for _, ch := range channels {
		if !slices.Contains(knownChannels, ch) {
			return ch, false
		}
	}
	return "", true
}

// wantsDevices reports whether a subscription to channels should be
// primed with the device list.
func wantsDevices(channels []string) bool {
	return slices.Contains(channels, ChannelAll) ||
		slices.Contains(channels, ChannelReadingUpdated) ||
		slices.Contains(channels, ChannelSensorDiscovered)
}

func wantsScanner(channels []string) bool {
	return slices.Contains(channels, ChannelAll) || slices.Contains(channels, ChannelScannerState)
}
