// Package mqtt publishes Govee sensor state to an MQTT broker.
//
// This package manages:
//   - Connection to the broker with auto-reconnect
//   - Retained state, discovery and scanner topics
//   - Last Will and Testament (LWT) for offline detection
//   - Connection health monitoring
//
// # Topics
//
// All topics live under the configured prefix (default "govee"):
//
//	govee/state/{uuid}       retained sensor state
//	govee/discovery/{uuid}   retained accessory description
//	govee/scanner/state      retained scan scheduler state
//	govee/system/status      online/offline status and LWT
//
// # Usage
//
//	client, err := mqtt.Connect(cfg.MQTT)
//	if err != nil {
//	    return err
//	}
//	defer client.Close()
//
//	err = client.PublishJSON(client.Topics().State(id), state, true)
package mqtt
