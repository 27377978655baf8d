//go:build integration

package mqtt

import (
	"sync/atomic"
	"testing"
	"time"

	pahomqtt "github.com/eclipse/paho.mqtt.golang"
)

// Integration tests require a running MQTT broker at 127.0.0.1:1883.
//
// Run with:
//   go test -tags=integration -v ./internal/infrastructure/mqtt/...

func TestIntegration_PublishRetainedState(t *testing.T) {
	cfg := testConfig()
	cfg.Broker.ClientID = "govee-int-publisher"

	client, err := Connect(cfg)
	if err != nil {
		t.Fatalf("Connect() error = %v", err)
	}
	defer client.Close()

	topic := client.Topics().State("integration-sensor")
	if err := client.PublishJSON(topic, map[string]float64{"temperature": 21.5}, true); err != nil {
		t.Fatalf("PublishJSON() error = %v", err)
	}

	// A fresh subscriber must receive the retained message.
	var received atomic.Value
	opts := pahomqtt.NewClientOptions().AddBroker("tcp://127.0.0.1:1883").SetClientID("govee-int-reader")
	reader := pahomqtt.NewClient(opts)
	if token := reader.Connect(); token.WaitTimeout(5*time.Second) && token.Error() != nil {
		t.Fatalf("reader connect: %v", token.Error())
	}
	defer reader.Disconnect(100)

	reader.Subscribe(topic, 1, func(_ pahomqtt.Client, msg pahomqtt.Message) {
		received.Store(string(msg.Payload()))
	}).WaitTimeout(5 * time.Second)

	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if v, ok := received.Load().(string); ok {
			if v != `{"temperature":21.5}` {
				t.Errorf("payload = %s", v)
			}
			return
		}
		time.Sleep(50 * time.Millisecond)
	}
	t.Fatal("retained state not received")
}

func TestIntegration_OnConnectCallback(t *testing.T) {
	cfg := testConfig()
	cfg.Broker.ClientID = "govee-int-callback"

	client, err := Connect(cfg)
	if err != nil {
		t.Fatalf("Connect() error = %v", err)
	}
	defer client.Close()

	if !client.IsConnected() {
		t.Error("IsConnected() = false after Connect")
	}
}
